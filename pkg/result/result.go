// Package result provides a two-variant outcome type used to report expected
// end-of-data conditions without resorting to errors.
//
// A Result is either a Success carrying a value or a Failure carrying nothing.
// There is no implicit truthiness: callers inspect the variant through Get or
// Match. Genuine transport or decoding problems are reported as errors next to
// the Result, never folded into it.
package result

// Result is the outcome of an attempt that may legitimately produce nothing.
type Result[T any] struct {
	value T
	ok    bool
}

// Success wraps a value.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Failure returns the empty variant.
func Failure[T any]() Result[T] {
	return Result[T]{}
}

// Get returns the wrapped value and true for a Success, or the zero value and
// false for a Failure.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// IsSuccess reports whether r is a Success.
func (r Result[T]) IsSuccess() bool {
	return r.ok
}

// Match calls onSuccess with the value for a Success, or onFailure otherwise.
func Match[T, R any](r Result[T], onSuccess func(T) R, onFailure func() R) R {
	if r.ok {
		return onSuccess(r.value)
	}
	return onFailure()
}
