package ratelimit

import (
	"time"

	"mercator-hq/warden/pkg/risk"
)

// Rule is a fixed-window budget for one action class.
type Rule struct {
	ActionClass   string `json:"action_class" yaml:"action_class"`
	WindowSeconds int64  `json:"window_seconds" yaml:"window_seconds"`
	MaxRequests   int64  `json:"max_requests" yaml:"max_requests"`
}

// DefaultRuleFor returns the budget applied when no configured rule covers
// an action class.
func DefaultRuleFor(level risk.Level) Rule {
	switch level {
	case risk.Low:
		return Rule{ActionClass: risk.ClassRead, WindowSeconds: 60, MaxRequests: 240}
	case risk.High:
		return Rule{ActionClass: risk.ClassHighRisk, WindowSeconds: 60, MaxRequests: 30}
	case risk.Critical:
		return Rule{ActionClass: risk.ClassCritical, WindowSeconds: 60, MaxRequests: 10}
	default:
		return Rule{ActionClass: risk.ClassWrite, WindowSeconds: 60, MaxRequests: 120}
	}
}

// CounterRequest identifies whose budget a request draws from.
type CounterRequest struct {
	TenantID    string
	Actor       string
	ActionClass string
}

// CheckResult contains the result of a rate limit check.
type CheckResult struct {
	// Allowed indicates if the request is within budget.
	Allowed bool

	// Key is the counter key that was incremented.
	Key string

	// Count is the counter value after this request.
	Count int64

	// Limit is the configured maximum for the window.
	Limit int64

	// Remaining is how many requests remain in the window.
	Remaining int64

	// Reset is when the current window ends.
	Reset time.Time

	// RetryAfter suggests how long to wait before retrying.
	RetryAfter time.Duration
}

// TenantConfig is the per-tenant gateway budget.
type TenantConfig struct {
	RequestsPerMinute int64 `json:"requests_per_minute" yaml:"requests_per_minute"`
	BurstLimit        int64 `json:"burst_limit" yaml:"burst_limit"`
	QuotaBytes        int64 `json:"quota_bytes" yaml:"quota_bytes"`
}

// DefaultTenantConfig returns 120 rpm with a burst of 20 and a 5 GiB quota.
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		RequestsPerMinute: 120,
		BurstLimit:        20,
		QuotaBytes:        5 * 1024 * 1024 * 1024,
	}
}

// EffectiveLimit is the number of requests admitted per sliding minute.
func (c TenantConfig) EffectiveLimit() int64 {
	return c.RequestsPerMinute + c.BurstLimit
}
