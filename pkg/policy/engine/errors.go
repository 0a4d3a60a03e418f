package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is matched by errors.Is for any *RequestError.
var ErrInvalidRequest = errors.New("invalid policy request")

// RequestError lists the missing fields of a request.
type RequestError struct {
	Missing []string
}

// Error returns the error message.
func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid policy request: missing %s", strings.Join(e.Missing, ", "))
}

// Is reports whether target is ErrInvalidRequest.
func (e *RequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// EvaluationError is returned when a store call fails mid-evaluation.
type EvaluationError struct {
	TenantID string
	Stage    Stage
	Cause    error
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("policy evaluation failed [tenant=%s, stage=%s]: %v", e.TenantID, e.Stage, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

func newEvaluationError(tenantID string, stage Stage, cause error) *EvaluationError {
	return &EvaluationError{TenantID: tenantID, Stage: stage, Cause: cause}
}
