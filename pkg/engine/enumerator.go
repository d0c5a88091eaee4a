package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the lifecycle position of an Enumerator.
type State int32

const (
	StateNotStarted State = iota
	StateEmitting
	StateContinuing
	StateExhausted
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateEmitting:
		return "emitting"
	case StateContinuing:
		return "continuing"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == StateExhausted || s == StateCancelled
}

// Enumerator walks one enumeration of an Engine. It is not safe for
// concurrent use.
//
// Items are returned as translated, without validation. Consumers apply
// Engine.Validate and Engine.InsertTo themselves.
type Enumerator[E any] struct {
	id     uuid.UUID
	engine *Engine[E]
	logger zerolog.Logger

	state   State
	page    *page[E]
	cursor  int
	current E
	emitted int

	truncated bool
	err       error
}

// ID identifies the enumeration in logs and traces.
func (en *Enumerator[E]) ID() uuid.UUID {
	return en.id
}

// State returns the current lifecycle state.
func (en *Enumerator[E]) State() State {
	return en.state
}

// Item returns the item produced by the last successful call to Next.
func (en *Enumerator[E]) Item() E {
	return en.current
}

// Emitted returns the number of items produced so far.
func (en *Enumerator[E]) Emitted() int {
	return en.emitted
}

// Err returns the error that terminated the enumeration, if any.
//
// A failed or empty first page yields a *FetchError, a transport failure on
// any page yields a *FetchError wrapping it, and a done ctx passed to Next
// yields ctx.Err(). Engine or owner cancellation ends without an error.
func (en *Enumerator[E]) Err() error {
	return en.err
}

// Truncated reports whether the enumeration ended because a continuation
// page came back empty.
func (en *Enumerator[E]) Truncated() bool {
	return en.truncated
}

// Next advances to the next item, fetching pages as needed. It returns false
// once the enumeration has ended; check Err afterwards.
func (en *Enumerator[E]) Next(ctx context.Context) bool {
	if en.state.terminal() {
		return false
	}

	p := en.engine.pager
	for {
		if en.engine.Cancelled() {
			en.finish(StateCancelled, outcomeCancelled)
			return false
		}
		if err := ctx.Err(); err != nil {
			en.err = err
			en.finish(StateCancelled, outcomeCancelled)
			return false
		}
		if !p.hasMore(en.emitted) {
			en.finish(StateExhausted, outcomeExhausted)
			return false
		}

		if en.page == nil {
			if !en.fetchInitial(ctx) {
				return false
			}
			continue
		}

		if en.cursor < len(en.page.items) {
			en.current = en.page.items[en.cursor]
			en.cursor++
			en.emitted++
			en.state = StateEmitting
			return true
		}

		if !p.hasNextPage(en.page.next) {
			en.finish(StateExhausted, outcomeExhausted)
			return false
		}

		en.state = StateContinuing
		if !en.fetchContinuation(ctx, en.page.next) {
			return false
		}
	}
}

// Close ends the enumeration and releases the current page. It is safe to
// call more than once.
func (en *Enumerator[E]) Close() {
	if !en.state.terminal() {
		en.finish(StateExhausted, outcomeClosed)
	}
}

func (en *Enumerator[E]) fetchInitial(ctx context.Context) bool {
	url := en.engine.pager.initialURL()

	res, err := en.engine.fetchPage(ctx, en.id, url)
	if err != nil {
		en.fail(ctx, url, "", err)
		return false
	}

	pg, ok := res.Get()
	if !ok {
		en.fail(ctx, url, en.engine.pager.emptyMessage(), ErrEmptyPage)
		return false
	}

	en.install(pg)
	return true
}

func (en *Enumerator[E]) fetchContinuation(ctx context.Context, url string) bool {
	res, err := en.engine.fetchPage(ctx, en.id, url)
	if err != nil {
		en.fail(ctx, url, "", err)
		return false
	}

	pg, ok := res.Get()
	if !ok {
		en.truncated = true
		makoTruncationsTotal.WithLabelValues(en.engine.Name()).Inc()
		en.logger.Warn().
			Str("url", url).
			Int("requested_pages", en.engine.RequestedPages()).
			Int("emitted", en.emitted).
			Msg("Continuation page empty, ending enumeration")
		en.finish(StateExhausted, outcomeTruncated)
		return false
	}

	en.install(pg)
	return true
}

func (en *Enumerator[E]) install(pg page[E]) {
	en.page = &pg
	en.cursor = 0
	en.state = StateEmitting
}

func (en *Enumerator[E]) fail(ctx context.Context, url, message string, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		en.err = ctxErr
		en.finish(StateCancelled, outcomeCancelled)
		return
	}

	en.err = en.engine.newFetchError(url, message, err)
	en.logger.Error().Err(en.err).Msg("Enumeration failed")
	en.finish(StateExhausted, outcomeError)
}

func (en *Enumerator[E]) finish(state State, outcome string) {
	en.state = state
	en.page = nil
	en.cursor = 0
	var zero E
	en.current = zero

	makoEnumerationsTotal.WithLabelValues(en.engine.Name(), outcome).Inc()

	event := en.logger.Debug()
	if state == StateCancelled {
		event = en.logger.Info()
	}
	event.
		Str("outcome", outcome).
		Int("emitted", en.emitted).
		Int("requested_pages", en.engine.RequestedPages()).
		Msg("Enumeration finished")
}
