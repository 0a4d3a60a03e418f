package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExceeded is matched by errors.Is when a budget is spent.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCircuitOpen is matched by errors.Is while a circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit open")
)

// ErrorKind distinguishes rate limit failures.
type ErrorKind int

const (
	// KindExceeded means the request budget is spent.
	KindExceeded ErrorKind = iota
	// KindCircuitOpen means the breaker is failing fast.
	KindCircuitOpen
)

// RateLimitError describes a rejected check.
type RateLimitError struct {
	Kind     ErrorKind
	TenantID string

	// Limit is the sustained requests-per-minute budget (KindExceeded).
	Limit int64

	// Until is when the breaker closes again (KindCircuitOpen).
	Until time.Time
}

// Error returns the error message.
func (e *RateLimitError) Error() string {
	if e.Kind == KindCircuitOpen {
		return fmt.Sprintf("tenant %s: circuit open until epoch ms %d", e.TenantID, e.Until.UnixMilli())
	}
	return fmt.Sprintf("tenant %s: rate limit exceeded (%d rpm)", e.TenantID, e.Limit)
}

// Is matches the package sentinels.
func (e *RateLimitError) Is(target error) bool {
	switch target {
	case ErrRateLimitExceeded:
		return e.Kind == KindExceeded
	case ErrCircuitOpen:
		return e.Kind == KindCircuitOpen
	}
	return false
}

// RetryAfter suggests how long the caller should wait, relative to now.
func (e *RateLimitError) RetryAfter(now time.Time) time.Duration {
	if e.Kind == KindCircuitOpen && e.Until.After(now) {
		return e.Until.Sub(now)
	}
	return time.Second
}

// NewExceededError creates an exceeded error.
func NewExceededError(tenantID string, limit int64) *RateLimitError {
	return &RateLimitError{Kind: KindExceeded, TenantID: tenantID, Limit: limit}
}

// NewCircuitOpenError creates a circuit open error.
func NewCircuitOpenError(tenantID string, until time.Time) *RateLimitError {
	return &RateLimitError{Kind: KindCircuitOpen, TenantID: tenantID, Until: until}
}
