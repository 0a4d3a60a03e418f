package storage

import (
	"errors"
	"fmt"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("counter store closed")

// StoreError wraps a backend failure with the operation that caused it.
type StoreError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("counter store %s: %s failed: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{Backend: backend, Operation: operation, Cause: cause}
}
