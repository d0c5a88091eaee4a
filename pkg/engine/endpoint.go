package engine

import (
	"context"
	"errors"

	"github.com/Sternrassler/mako-go/pkg/result"
)

// Fetcher retrieves one JSON page and decodes it into out. It is the only
// operation an engine performs against its environment.
type Fetcher interface {
	FetchJSON(ctx context.Context, locator string, out any) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, locator string, out any) error

// FetchJSON implements Fetcher.
func (f FetcherFunc) FetchJSON(ctx context.Context, locator string, out any) error {
	return f(ctx, locator, out)
}

// Endpoint describes one paged API family. E is the emitted item type and P
// the raw page payload the fetcher decodes into.
//
// Name, InitialURL, NextURL, Translate and ValidateResponse are required.
// HasNextPage defaults to "next locator is non-empty" and HasMore defaults to
// unbounded.
type Endpoint[E any, P any] struct {
	// Name identifies the endpoint in errors, logs and metrics.
	Name string

	// InitialURL builds the first request locator from the bound parameters.
	InitialURL func() string

	// NextURL extracts the continuation locator from a fetched page.
	NextURL func(page *P) string

	// Translate maps the raw records of a page to items, dropping records that
	// fail translation.
	Translate func(page *P) []E

	// ValidateResponse reports whether a decoded page is structurally usable.
	ValidateResponse func(page *P) bool

	// HasNextPage decides whether the continuation locator may be followed.
	HasNextPage func(next string) bool

	// HasMore reports whether another item may be emitted after emitted items.
	HasMore func(emitted int) bool

	// EmptyMessage is the diagnostic attached to an empty initial page.
	EmptyMessage string
}

func (ep *Endpoint[E, P]) check() error {
	switch {
	case ep.Name == "":
		return errors.New("endpoint name is required")
	case ep.InitialURL == nil:
		return errors.New("endpoint InitialURL is required")
	case ep.NextURL == nil:
		return errors.New("endpoint NextURL is required")
	case ep.Translate == nil:
		return errors.New("endpoint Translate is required")
	case ep.ValidateResponse == nil:
		return errors.New("endpoint ValidateResponse is required")
	}
	return nil
}

func (ep *Endpoint[E, P]) hasNextPage(next string) bool {
	if ep.HasNextPage != nil {
		return ep.HasNextPage(next)
	}
	return next != ""
}

func (ep *Endpoint[E, P]) hasMore(emitted int) bool {
	if ep.HasMore != nil {
		return ep.HasMore(emitted)
	}
	return true
}

// Unbounded is the item cap meaning "no limit".
const Unbounded = -1

// CountCap returns a HasMore predicate allowing at most limit items.
// Unbounded (or any negative limit) never stops.
func CountCap(limit int) func(emitted int) bool {
	return func(emitted int) bool {
		return limit < 0 || emitted < limit
	}
}

// page is a translated page: its items in server order and the
// continuation locator.
type page[E any] struct {
	items []E
	next  string
}

// pager is the type-erased view of an Endpoint used by engines, so that the
// raw payload type does not leak into Engine and Enumerator.
type pager[E any] interface {
	name() string
	emptyMessage() string
	initialURL() string
	fetch(ctx context.Context, f Fetcher, url string) (result.Result[page[E]], error)
	hasNextPage(next string) bool
	hasMore(emitted int) bool
}

func (ep *Endpoint[E, P]) name() string         { return ep.Name }
func (ep *Endpoint[E, P]) emptyMessage() string { return ep.EmptyMessage }
func (ep *Endpoint[E, P]) initialURL() string   { return ep.InitialURL() }

func (ep *Endpoint[E, P]) fetch(ctx context.Context, f Fetcher, url string) (result.Result[page[E]], error) {
	var raw P
	if err := f.FetchJSON(ctx, url, &raw); err != nil {
		return result.Failure[page[E]](), err
	}
	if !ep.ValidateResponse(&raw) {
		return result.Failure[page[E]](), nil
	}
	return result.Success(page[E]{
		items: ep.Translate(&raw),
		next:  ep.NextURL(&raw),
	}), nil
}
