package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/limits/storage"
)

// FixedWindowLimiter enforces Rule budgets against a durable counter store.
type FixedWindowLimiter struct {
	store   storage.CounterStore
	breaker *CircuitBreaker
	logger  *slog.Logger
}

// NewFixedWindowLimiter creates a limiter over store. A nil breaker gets a
// default one.
func NewFixedWindowLimiter(store storage.CounterStore, breaker *CircuitBreaker) *FixedWindowLimiter {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultFailureThreshold, DefaultCooldown)
	}
	return &FixedWindowLimiter{
		store:   store,
		breaker: breaker,
		logger:  slog.Default().With("component", "limits.ratelimit.fixed_window"),
	}
}

// Breaker returns the limiter's circuit breaker.
func (l *FixedWindowLimiter) Breaker() *CircuitBreaker {
	return l.breaker
}

// Check counts one request against rule and reports whether it fits.
//
// A spent budget is not an error: the result has Allowed false. Errors are
// either a *RateLimitError of KindCircuitOpen, returned without touching the
// store, or a store failure, which is also reported to the breaker.
func (l *FixedWindowLimiter) Check(ctx context.Context, req CounterRequest, rule Rule, now time.Time) (*CheckResult, error) {
	if until, ok := l.breaker.Allow(now); !ok {
		return nil, NewCircuitOpenError(req.TenantID, until)
	}

	windowSeconds := rule.WindowSeconds
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	maxRequests := rule.MaxRequests
	if maxRequests < 1 {
		maxRequests = 1
	}

	unix := now.Unix()
	windowStart := unix - unix%windowSeconds
	key := storage.CounterKey{
		TenantID:      req.TenantID,
		Actor:         req.Actor,
		ActionClass:   req.ActionClass,
		WindowStart:   windowStart,
		WindowSeconds: windowSeconds,
	}

	count, err := l.store.Increment(ctx, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			l.breaker.RecordFailure()
		}
		l.logger.Warn("counter increment failed",
			"tenant_id", req.TenantID,
			"action_class", req.ActionClass,
			"failures", l.breaker.Failures(),
			"error", err,
		)
		return nil, err
	}
	l.breaker.RecordSuccess()

	reset := time.Unix(windowStart+windowSeconds, 0)
	result := &CheckResult{
		Allowed:   count <= maxRequests,
		Key:       key.String(),
		Count:     count,
		Limit:     maxRequests,
		Remaining: max(maxRequests-count, 0),
		Reset:     reset,
	}
	if !result.Allowed {
		result.RetryAfter = reset.Sub(now)
	}
	return result, nil
}
