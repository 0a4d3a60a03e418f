package ratelimit

import (
	"sync"
	"time"
)

// DefaultSlidingWindow is the TenantLimiter window length.
const DefaultSlidingWindow = time.Minute

// TenantLimiter is an in-process sliding-window limiter keyed by tenant,
// with one circuit breaker per tenant.
type TenantLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	cooldown  time.Duration
	tenants   map[string]*tenantState
	lastSweep int64 // unix millis
}

type tenantState struct {
	hits    []int64 // unix millis within the window
	breaker *CircuitBreaker
}

// NewTenantLimiter creates a limiter with a one-minute window and the
// default breaker settings.
func NewTenantLimiter() *TenantLimiter {
	return NewTenantLimiterWithBreaker(DefaultFailureThreshold, DefaultCooldown)
}

// NewTenantLimiterWithBreaker creates a limiter with custom breaker
// settings.
func NewTenantLimiterWithBreaker(threshold int, cooldown time.Duration) *TenantLimiter {
	return &TenantLimiter{
		window:    DefaultSlidingWindow,
		threshold: threshold,
		cooldown:  cooldown,
		tenants:   make(map[string]*tenantState),
	}
}

// sweep drops tenants that have no hits in the window and a closed,
// failure-free breaker. It runs at most once per window.
func (l *TenantLimiter) sweep(now time.Time) {
	nowMs := now.UnixMilli()
	if nowMs-l.lastSweep < l.window.Milliseconds() {
		return
	}
	l.lastSweep = nowMs
	cutoff := nowMs - l.window.Milliseconds()
	for id, st := range l.tenants {
		if n := len(st.hits); n > 0 && st.hits[n-1] >= cutoff {
			continue
		}
		if st.breaker.Failures() > 0 || st.breaker.Open(now) {
			continue
		}
		delete(l.tenants, id)
	}
}

func (l *TenantLimiter) state(tenantID string) *tenantState {
	st, ok := l.tenants[tenantID]
	if !ok {
		st = &tenantState{breaker: NewCircuitBreaker(l.threshold, l.cooldown)}
		l.tenants[tenantID] = st
	}
	return st
}

// Check admits one request for tenantID at now or returns a
// *RateLimitError. The breaker is consulted first; then hits older than the
// window are dropped and the request is admitted if fewer than
// cfg.EffectiveLimit() remain.
func (l *TenantLimiter) Check(tenantID string, cfg TenantConfig, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	st := l.state(tenantID)
	if until, ok := st.breaker.Allow(now); !ok {
		return NewCircuitOpenError(tenantID, until)
	}

	nowMs := now.UnixMilli()
	cutoff := nowMs - l.window.Milliseconds()
	kept := st.hits[:0]
	for _, ts := range st.hits {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	st.hits = kept

	if int64(len(st.hits)) >= cfg.EffectiveLimit() {
		return NewExceededError(tenantID, cfg.RequestsPerMinute)
	}
	st.hits = append(st.hits, nowMs)
	return nil
}

// RecordFailure reports a failed downstream call for tenantID.
func (l *TenantLimiter) RecordFailure(tenantID string) {
	l.mu.Lock()
	st := l.state(tenantID)
	l.mu.Unlock()
	st.breaker.RecordFailure()
}

// RecordSuccess reports a successful downstream call for tenantID.
func (l *TenantLimiter) RecordSuccess(tenantID string) {
	l.mu.Lock()
	st, ok := l.tenants[tenantID]
	l.mu.Unlock()
	if ok {
		st.breaker.RecordSuccess()
	}
}

// Failures returns the consecutive failure count of tenantID.
func (l *TenantLimiter) Failures(tenantID string) int {
	l.mu.Lock()
	st, ok := l.tenants[tenantID]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	return st.breaker.Failures()
}

// WindowCount returns how many hits tenantID has in its window, as of the
// last Check.
func (l *TenantLimiter) WindowCount(tenantID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.tenants[tenantID]; ok {
		return len(st.hits)
	}
	return 0
}

// Tenants returns how many tenants currently hold limiter state.
func (l *TenantLimiter) Tenants() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tenants)
}
