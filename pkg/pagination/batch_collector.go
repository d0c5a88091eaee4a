package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch collector configuration
type Config struct {
	// MaxConcurrency is the maximum number of enumerations running at once.
	// Each enumeration fetches its pages sequentially, so this bounds the
	// number of requests in flight.
	MaxConcurrency int

	// Limit caps the items kept per source, 0 means no cap.
	Limit int

	// Timeout per source, 0 means none.
	Timeout time.Duration
}

// DefaultConfig returns a configuration that stays within the client's
// default request pacing.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        5 * time.Minute,
	}
}

// BatchCollector drains several independent sources concurrently.
type BatchCollector[E any] struct {
	config Config
	logger zerolog.Logger
}

// NewBatchCollector creates a new batch collector
func NewBatchCollector[E any](config Config) *BatchCollector[E] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Limit < 0 {
		config.Limit = 0
	}

	return &BatchCollector[E]{
		config: config,
		logger: log.With().Str("component", "batch-collector").Logger(),
	}
}

// CollectAll drains every source and returns one Collection per source, in
// input order. A failing source does not stop its siblings; the first error
// is returned alongside the partial results.
func (bc *BatchCollector[E]) CollectAll(ctx context.Context, sources ...Source[E]) ([]Collection[E], error) {
	start := time.Now()
	results := make([]Collection[E], len(sources))

	bc.logger.Info().
		Int("sources", len(sources)).
		Int("max_concurrency", bc.config.MaxConcurrency).
		Msg("Starting batch collection")

	var g errgroup.Group
	g.SetLimit(bc.config.MaxConcurrency)

	for i, src := range sources {
		g.Go(func() error {
			sourceCtx := ctx
			if bc.config.Timeout > 0 {
				var cancel context.CancelFunc
				sourceCtx, cancel = context.WithTimeout(ctx, bc.config.Timeout)
				defer cancel()
			}

			results[i] = collect(sourceCtx, src, bc.config.Limit)

			if err := results[i].Err; err != nil {
				bc.logger.Warn().
					Err(err).
					Str("source", results[i].Name).
					Int("items", len(results[i].Items)).
					Msg("Source collection failed")
				return fmt.Errorf("%s: %w", results[i].Name, err)
			}

			bc.logger.Debug().
				Str("source", results[i].Name).
				Int("items", len(results[i].Items)).
				Bool("truncated", results[i].Truncated).
				Msg("Source collected")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		bc.logger.Warn().
			Err(err).
			Int("failed", failed).
			Int("sources", len(sources)).
			Msg("Batch collection error - returning partial results")
		return results, fmt.Errorf("collection error (partial data: %d/%d sources): %w",
			len(sources)-failed, len(sources), err)
	}

	bc.logger.Info().
		Int("sources", len(sources)).
		Dur("duration", time.Since(start)).
		Msg("Batch collection complete")

	return results, nil
}
