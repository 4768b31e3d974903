package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique key collision.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation marks input rejected before it reaches the network.
	ErrValidation = errors.New("validation failed")
	// ErrTransport marks a network or backend failure.
	ErrTransport = errors.New("transport failure")
)

// ValidationError reports caller input that was never sent to the gateway.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransportError wraps a failed gateway call. The previous snapshot is kept
// and the user may retry.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NotFoundError reports a referenced resource that vanished server-side.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewValidationError is a shorthand used by input checks.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
