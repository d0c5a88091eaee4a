package pagination

import (
	"context"

	"github.com/Sternrassler/mako-go/pkg/engine"
)

// Source is the consumer surface of an engine. *engine.Engine satisfies it.
type Source[E any] interface {
	Name() string
	Begin() *engine.Enumerator[E]
	Validate(item E, collection []E) bool
	InsertTo(collection *[]E, item E)
}

// Collection is the outcome of draining one source.
type Collection[E any] struct {
	Name  string
	Items []E

	// Truncated is set when a continuation page came back empty and the
	// enumeration ended early.
	Truncated bool

	// Err is the terminal enumeration error. Items gathered before it stay valid.
	Err error
}

// Collect drives one enumeration of src, keeping every item src validates
// against the collection so far and placing it with src's insertion policy.
// It stops after limit kept items; limit <= 0 means no limit. Items kept
// before an error are returned with it.
func Collect[E any](ctx context.Context, src Source[E], limit int) ([]E, error) {
	c := collect(ctx, src, limit)
	return c.Items, c.Err
}

func collect[E any](ctx context.Context, src Source[E], limit int) Collection[E] {
	en := src.Begin()
	defer en.Close()

	out := Collection[E]{Name: src.Name()}
	for en.Next(ctx) {
		item := en.Item()
		if !src.Validate(item, out.Items) {
			continue
		}
		src.InsertTo(&out.Items, item)
		if limit > 0 && len(out.Items) >= limit {
			break
		}
	}
	out.Truncated = en.Truncated()
	out.Err = en.Err()
	return out
}
