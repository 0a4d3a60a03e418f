// Package ratelimit implements the two request limiters of the governance
// pipeline and the circuit breaker they share.
//
// # Fixed-Window Limiter
//
// FixedWindowLimiter counts requests per (tenant, actor, action class) in a
// durable storage.CounterStore. Windows are aligned to multiples of the
// rule's window length, which approximates a sliding window with far less
// write amplification. The request that pushes a counter past MaxRequests
// is itself rejected.
//
// Concurrent requests are not serialized here. Two requests racing on the
// same window may both be admitted after the counter passed the limit; the
// overshoot is bounded by the number of in-flight requests and accepted.
//
// # Tenant Limiter
//
// TenantLimiter is an in-process sliding window over request timestamps,
// one per tenant, used by the HTTP gateway. Its effective limit is
// RequestsPerMinute + BurstLimit.
//
// # Circuit Breaker
//
// CircuitBreaker counts consecutive failures reported by the caller. After
// the threshold it opens for a fixed cooldown and every check fails fast
// with ErrCircuitOpen. Breakers are per instance and never shared.
package ratelimit
