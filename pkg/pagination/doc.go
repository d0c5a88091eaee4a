// Package pagination provides consumer-side collectors for endpoint engines.
//
// An engine emits items lazily and leaves deduplication, filtering and
// ordering to its consumer through Validate and InsertTo. Collect runs that
// consumer loop for one enumeration:
//
//	items, err := pagination.Collect(ctx, engine, 100)
//
// BatchCollector fans several independent enumerations out under a
// concurrency bound:
//
//	bc := pagination.NewBatchCollector[*model.Illustration](pagination.DefaultConfig())
//	results, err := bc.CollectAll(ctx, ranking, recommends, search)
//
// The batch collector:
//   - Runs at most MaxConcurrency enumerations at a time
//   - Applies a per-source item limit and timeout
//   - Keeps going when one source fails
//   - Returns partial results together with the first error
package pagination
