package engine

import (
	"errors"
	"fmt"
)

// ErrEmptyPage is wrapped by a FetchError when the first page of an
// enumeration is structurally empty.
var ErrEmptyPage = errors.New("empty result page")

// FetchError terminates an enumeration. It carries the request context at
// the time of failure.
type FetchError struct {
	Endpoint       string
	URL            string
	RequestedPages int
	Message        string
	Bypass         bool
	Err            error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: current requesting url: %s, current page requested: %d",
		e.Endpoint, e.URL, e.RequestedPages)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Bypass {
		msg += " (bypassing)"
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
