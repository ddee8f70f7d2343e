package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the sigcap domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInvalidArgument is returned when a constructor or operation receives malformed input.
	ErrInvalidArgument = errors.New("sigcap: invalid argument")

	// ErrInvalidState is returned when an operation is not valid for the current lifecycle state.
	ErrInvalidState = errors.New("sigcap: invalid state")

	// ErrBackendFailure is returned when the acquisition backend reports a failure.
	ErrBackendFailure = errors.New("sigcap: backend failure")

	// ErrNotFound is returned when a handle, name or key is unknown.
	ErrNotFound = errors.New("sigcap: not found")

	// ErrNotSupported lets backends signal that a capability is not available.
	ErrNotSupported = errors.New("sigcap: not supported")

	// ErrShutdownTimeout is returned when plugins do not shut down in time.
	ErrShutdownTimeout = errors.New("sigcap: shutdown timeout")
)

// BackendError wraps a failure reported by the backend together with the
// operation and the resource it was performed on.
type BackendError struct {
	Op       string
	Resource Handle
	Err      error
}

// NewBackendError wraps err, or returns nil when err is nil.
func NewBackendError(op string, resource Handle, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Resource: resource, Err: err}
}

func (e *BackendError) Error() string {
	if e.Resource.IsZero() {
		return fmt.Sprintf("sigcap: backend failure: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sigcap: backend failure: %s %s: %v", e.Op, e.Resource, e.Err)
}

// Unwrap returns the native cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is reports ErrBackendFailure as a match so callers need not know the concrete type.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendFailure
}
