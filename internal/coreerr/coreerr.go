// Package coreerr defines the error kinds shared across the ingestion and
// retrieval core, grounded on the teacher's sentinel-error style
// (internal/resilience.ErrCircuitOpen, internal/resilience.ErrAllFailed).
package coreerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide retry/rollback/user-facing
// behavior without string-matching error messages.
type Kind string

const (
	// InputInvalid marks a bad filter, unknown operator, or unsupported input.
	// Surfaced to the caller verbatim; never retried.
	InputInvalid Kind = "input_invalid"

	// Upstream marks a vector store, graph store, model, or extractor failure.
	Upstream Kind = "upstream"

	// Partial marks a result where one of two parallel operations failed.
	Partial Kind = "partial"

	// Consistency marks a post-condition violation (e.g., only one store wrote).
	Consistency Kind = "consistency"

	// Timeout marks an operation that exceeded its budget.
	Timeout Kind = "timeout"

	// NotFound marks a lookup for an id that does not exist.
	NotFound Kind = "not_found"
)

// Error makes a bare Kind usable as an errors.Is target (see [Error.Is]).
func (k Kind) Error() string { return string(k) }

// Error wraps an underlying cause with a Kind so that errors.Is/As and
// %w-wrapping continue to work through the call chain.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is enables errors.Is(err, coreerr.Upstream)-style comparisons by treating
// a bare Kind value as a sentinel that matches any *Error with that Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// New constructs an *Error for op with the given kind and cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind of err if it (or something it wraps) is a
// *Error, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
