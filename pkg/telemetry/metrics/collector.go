package metrics

import (
	"sync"
	"time"

	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherLabel replaces label values beyond the cardinality limit.
const OtherLabel = "other"

// Collector owns every Warden metric and the registry they live in.
//
// A nil *Collector is valid and records nothing, so components take one
// unconditionally and tests pass nil.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	policyMetrics  *PolicyMetrics
	limitMetrics   *LimitMetrics

	// ruleIDs bounds the rule_id label, which comes from tenant input.
	ruleIDs *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics with
// registry. A nil registry gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	return &Collector{
		config:         cfg,
		registry:       registry,
		requestMetrics: NewRequestMetrics(cfg, registry),
		policyMetrics:  NewPolicyMetrics(cfg, registry),
		limitMetrics:   NewLimitMetrics(cfg, registry),
		ruleIDs:        NewCardinalityLimiter(1000),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRequest records a completed HTTP request. route is the chi route
// pattern, never the raw path.
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.requestMetrics.Record(method, route, status, duration)
}

// RecordDecision records one policy evaluation.
//
// Parameters:
//   - decision: "allow", "deny" or "escalate"
//   - source: "bundle", "tenant", "fallback" or "rate_limit"
//   - riskLevel: the classified risk level name
//   - duration: end-to-end evaluation time, recording included
func (c *Collector) RecordDecision(decision, source, riskLevel string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordDecision(decision, source, riskLevel, duration)
}

// RecordRuleHit counts a matched rule.
func (c *Collector) RecordRuleHit(ruleID string) {
	if !c.enabled() {
		return
	}
	if !c.ruleIDs.Allow(ruleID) {
		ruleID = OtherLabel
	}
	c.policyMetrics.RecordRuleHit(ruleID)
}

// RecordEscalation counts an opened escalation.
func (c *Collector) RecordEscalation(riskLevel string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordEscalation(riskLevel)
}

// RecordBundleFallback counts evaluations that used the built-in bundle
// because the active bundle could not be loaded.
func (c *Collector) RecordBundleFallback() {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordBundleFallback()
}

// RecordBundlePublish counts a publish attempt by result ("stored",
// "unchanged", "invalid" or "error").
func (c *Collector) RecordBundlePublish(result string) {
	if !c.enabled() {
		return
	}
	c.policyMetrics.RecordBundlePublish(result)
}

// RecordRateLimit counts a limiter outcome.
//
// Parameters:
//   - limiter: "fixed_window" or "tenant"
//   - class: action class, or "" for the tenant limiter
//   - outcome: "allowed", "exceeded", "circuit_open" or "error"
func (c *Collector) RecordRateLimit(limiter, class, outcome string) {
	if !c.enabled() {
		return
	}
	c.limitMetrics.RecordCheck(limiter, class, outcome)
}

// RecordAuthzDenial counts a rejected authorization by kind.
func (c *Collector) RecordAuthzDenial(kind string) {
	if !c.enabled() {
		return
	}
	c.limitMetrics.RecordAuthzDenial(kind)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct values admitted for a
// label.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value is, or can become, an admitted value.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	_, exists := cl.current[value]
	cl.mu.RUnlock()
	if exists {
		return true
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the number of admitted values.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
