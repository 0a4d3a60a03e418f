package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultFailureThreshold is the consecutive failure count that opens
	// the circuit.
	DefaultFailureThreshold = 5

	// DefaultCooldown is how long an open circuit stays open.
	DefaultCooldown = 30 * time.Second
)

// CircuitBreaker tracks consecutive failures of one dependency. It is not
// shared across instances and holds no durable state.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
}

// NewCircuitBreaker creates a breaker. Non-positive arguments take the
// defaults.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown}
}

// RecordFailure counts one more consecutive failure.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	b.failures++
	b.mu.Unlock()
}

// RecordSuccess resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// Failures returns the current consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Allow reports whether a check may proceed at now. When it may not, it
// returns the time the circuit closes again.
//
// An open circuit whose cooldown has elapsed closes and resets the failure
// count. A closed circuit with failures at the threshold opens here, so
// the trip happens on the first check after the last failure.
func (b *CircuitBreaker) Allow(now time.Time) (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.openUntil.IsZero() {
		if now.Before(b.openUntil) {
			return b.openUntil, false
		}
		b.openUntil = time.Time{}
		b.failures = 0
	}

	if b.failures >= b.threshold {
		b.openUntil = now.Add(b.cooldown)
		return b.openUntil, false
	}
	return time.Time{}, true
}

// Open reports whether the circuit is open at now without changing state.
func (b *CircuitBreaker) Open(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.openUntil.IsZero() && now.Before(b.openUntil)
}
