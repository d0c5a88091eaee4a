// Package engine turns page-based JSON endpoints into lazily evaluated,
// cancellable sequences of typed items.
//
// An Engine binds one Endpoint description to a Fetcher. Each call to Begin
// returns an independent Enumerator that walks the fetch, translate, emit,
// continue cycle one page at a time:
//
//	en := eng.Begin()
//	defer en.Close()
//	for en.Next(ctx) {
//		item := en.Item()
//		if eng.Validate(item, results) {
//			eng.InsertTo(&results, item)
//		}
//	}
//	if err := en.Err(); err != nil {
//		// results collected so far remain usable
//	}
//
// Pages are fetched strictly in sequence; page N+1 is requested only after
// every item of page N was consumed. Nothing runs in the background.
package engine

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sternrassler/mako-go/pkg/result"
	"github.com/Sternrassler/mako-go/pkg/session"
)

const tracerName = "github.com/Sternrassler/mako-go/pkg/engine"

// Options holds the collaborators and policies of an Engine. The zero value
// is usable.
type Options[E any] struct {
	// Context is the owner's cancellation scope. Once it is done, enumerations
	// end at their next step. Defaults to context.Background().
	Context context.Context

	// Session is read for the bypass flag reported in fetch errors.
	Session session.Source

	// Insert adds an accepted item to a consumer collection. Defaults to append.
	Insert func(collection *[]E, item E)

	// Validate decides whether an item may join a collection. Defaults to
	// rejecting items already present by identity.
	Validate func(item E, collection []E) bool

	Logger *zerolog.Logger
	Tracer trace.Tracer
}

// Engine holds the configuration and statistics shared by all enumerations
// of one endpoint. It is safe for concurrent use.
type Engine[E any] struct {
	pager   pager[E]
	fetcher Fetcher
	ctx     context.Context
	session session.Source

	insert   func(collection *[]E, item E)
	validate func(item E, collection []E) bool

	requestedPages atomic.Int64
	cancelled      atomic.Bool

	logger zerolog.Logger
	tracer trace.Tracer
}

// New creates an engine for ep.
func New[E any, P any](fetcher Fetcher, ep Endpoint[E, P], opts Options[E]) (*Engine[E], error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if err := ep.check(); err != nil {
		return nil, err
	}

	e := &Engine[E]{
		pager:    &ep,
		fetcher:  fetcher,
		ctx:      opts.Context,
		session:  opts.Session,
		insert:   opts.Insert,
		validate: opts.Validate,
		tracer:   opts.Tracer,
	}
	if e.ctx == nil {
		e.ctx = context.Background()
	}
	if e.insert == nil {
		e.insert = appendItem[E]
	}
	if e.validate == nil {
		e.validate = notPresent[E]
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	if opts.Logger != nil {
		e.logger = opts.Logger.With().Str("endpoint", ep.Name).Logger()
	} else {
		e.logger = log.With().Str("component", "engine").Str("endpoint", ep.Name).Logger()
	}

	return e, nil
}

// Name returns the endpoint name.
func (e *Engine[E]) Name() string {
	return e.pager.name()
}

// RequestedPages returns the number of pages fetched and translated by all
// enumerations of this engine.
func (e *Engine[E]) RequestedPages() int {
	return int(e.requestedPages.Load())
}

// Cancel stops all enumerations of this engine at their next step. An
// in-flight fetch is not interrupted.
func (e *Engine[E]) Cancel() {
	if e.cancelled.CompareAndSwap(false, true) {
		e.logger.Info().Msg("Engine cancelled")
	}
}

// Cancelled reports whether Cancel was called or the owner's context is done.
func (e *Engine[E]) Cancelled() bool {
	return e.cancelled.Load() || e.ctx.Err() != nil
}

// InsertTo adds item to collection using the engine's insertion policy.
func (e *Engine[E]) InsertTo(collection *[]E, item E) {
	e.insert(collection, item)
}

// Validate reports whether item may be added to collection.
func (e *Engine[E]) Validate(item E, collection []E) bool {
	return e.validate(item, collection)
}

// Begin starts a new enumeration. Enumerations are independent of each other
// and may run concurrently; a single Enumerator must not be shared.
func (e *Engine[E]) Begin() *Enumerator[E] {
	id := uuid.New()
	return &Enumerator[E]{
		id:     id,
		engine: e,
		logger: e.logger.With().Str("enumeration_id", id.String()).Logger(),
	}
}

// All returns the items of a new enumeration as an iterator. A terminal error
// is yielded once, with the zero item, after the last item.
func (e *Engine[E]) All(ctx context.Context) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		en := e.Begin()
		defer en.Close()

		for en.Next(ctx) {
			if !yield(en.Item(), nil) {
				return
			}
		}
		if err := en.Err(); err != nil {
			var zero E
			yield(zero, err)
		}
	}
}

// fetchPage fetches and translates one page. A Failure result means the page
// decoded but was structurally empty.
func (e *Engine[E]) fetchPage(ctx context.Context, id uuid.UUID, url string) (result.Result[page[E]], error) {
	name := e.pager.name()

	ctx, span := e.tracer.Start(ctx, "engine.fetch_page",
		trace.WithAttributes(
			attribute.String("endpoint", name),
			attribute.String("url", url),
			attribute.Int("requested_pages", e.RequestedPages()),
			attribute.String("enumeration_id", id.String()),
		))
	defer span.End()

	start := time.Now()
	res, err := e.pager.fetch(ctx, e.fetcher, url)
	makoPageFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page fetch failed")
		return res, err
	}

	p, ok := res.Get()
	if !ok {
		span.SetStatus(codes.Error, "empty page")
		return res, nil
	}

	pages := e.requestedPages.Add(1)
	makoPagesFetchedTotal.WithLabelValues(name).Inc()
	span.SetAttributes(attribute.Int("items", len(p.items)))
	span.SetStatus(codes.Ok, "page fetched")

	e.logger.Debug().
		Str("url", url).
		Str("enumeration_id", id.String()).
		Int64("requested_pages", pages).
		Int("items", len(p.items)).
		Msg("Page fetched")

	return res, nil
}

func (e *Engine[E]) newFetchError(url, message string, err error) *FetchError {
	bypass := false
	if e.session != nil {
		bypass = e.session.Snapshot().Bypass
	}
	return &FetchError{
		Endpoint:       e.pager.name(),
		URL:            url,
		RequestedPages: e.RequestedPages(),
		Message:        message,
		Bypass:         bypass,
		Err:            err,
	}
}

func appendItem[E any](collection *[]E, item E) {
	*collection = append(*collection, item)
}

// notPresent rejects items identical to an existing entry. Values of
// non-comparable types are always accepted and never match.
func notPresent[E any](item E, collection []E) bool {
	if !comparableValue(item) {
		return true
	}
	for _, existing := range collection {
		if !comparableValue(existing) {
			continue
		}
		if any(existing) == any(item) {
			return false
		}
	}
	return true
}

// comparableValue reports whether v can be compared with == without
// panicking, looking through interface fields at their dynamic values.
func comparableValue(v any) bool {
	return v == nil || reflect.ValueOf(v).Comparable()
}
