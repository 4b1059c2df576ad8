package search

import (
	"errors"
	"fmt"
)

// GeocodeError means a location phrase could not be resolved. Isolated to its query.
type GeocodeError struct {
	Location string
	Err      error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("failed to geocode %q: %v", e.Location, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

// ProviderError means a single provider call failed. Isolated to that call.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError means a business record could not be read or written. Aborts the job.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UnexpectedError wraps anything else escaping a job, including recovered panics.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected failure: %v", e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }

// IsIsolated reports whether err only affects the query or call that produced it.
func IsIsolated(err error) bool {
	var ge *GeocodeError
	var pe *ProviderError
	return errors.As(err, &ge) || errors.As(err, &pe)
}
