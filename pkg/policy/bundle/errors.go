package bundle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidBundle is matched by errors.Is for any *InvalidBundleError.
	ErrInvalidBundle = errors.New("invalid policy bundle")

	// ErrBundleNotFound indicates no archived bundle exists for a version.
	ErrBundleNotFound = errors.New("policy bundle not found")

	// ErrNotFound is returned by blob and pointer stores for missing keys.
	ErrNotFound = errors.New("key not found")
)

// InvalidBundleError lists why a bundle document was rejected.
type InvalidBundleError struct {
	Version string
	Reasons []string
}

// Error returns the error message.
func (e *InvalidBundleError) Error() string {
	var b strings.Builder
	b.WriteString("invalid policy bundle")
	if e.Version != "" {
		fmt.Fprintf(&b, " %q", e.Version)
	}
	if len(e.Reasons) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Reasons, "; "))
	}
	return b.String()
}

// Is reports whether target is ErrInvalidBundle.
func (e *InvalidBundleError) Is(target error) bool {
	return target == ErrInvalidBundle
}

// NewInvalidBundleError creates an InvalidBundleError.
func NewInvalidBundleError(version string, reasons ...string) *InvalidBundleError {
	return &InvalidBundleError{Version: version, Reasons: reasons}
}

// StoreError wraps a blob or pointer backend failure.
type StoreError struct {
	Backend   string
	Operation string
	Key       string
	Cause     error
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Backend, e.Operation, e.Key, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

func newStoreError(backend, op, key string, cause error) error {
	return &StoreError{Backend: backend, Operation: op, Key: key, Cause: cause}
}
