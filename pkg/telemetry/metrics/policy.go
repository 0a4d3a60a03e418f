package metrics

import (
	"time"

	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks policy evaluation and bundle activity.
//
// Metrics:
//   - warden_governance_decisions_total: decisions by decision, source and risk level
//   - warden_governance_evaluation_duration_seconds: evaluation latency
//   - warden_governance_rule_hits_total: matched rules
//   - warden_governance_escalations_total: opened escalations by risk level
//   - warden_governance_bundle_fallbacks_total: built-in bundle fallbacks
//   - warden_governance_bundle_publishes_total: publish attempts by result
type PolicyMetrics struct {
	decisionsTotal     *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	ruleHitsTotal      *prometheus.CounterVec
	escalationsTotal   *prometheus.CounterVec
	bundleFallbacks    prometheus.Counter
	bundlePublishes    *prometheus.CounterVec
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decisions_total",
				Help:      "Total number of policy decisions",
			},
			[]string{"decision", "source", "risk_level"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of policy evaluation in seconds, recording included",
				// Evaluations hit the counter and evidence stores.
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~800ms
			},
			[]string{"decision"},
		),

		ruleHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_hits_total",
				Help:      "Total number of policy rule matches",
			},
			[]string{"rule_id"},
		),

		escalationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "escalations_total",
				Help:      "Total number of escalations opened",
			},
			[]string{"risk_level"},
		),

		bundleFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "bundle_fallbacks_total",
				Help:      "Evaluations that fell back to the built-in bundle",
			},
		),

		bundlePublishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "bundle_publishes_total",
				Help:      "Policy bundle publish attempts by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		pm.decisionsTotal,
		pm.evaluationDuration,
		pm.ruleHitsTotal,
		pm.escalationsTotal,
		pm.bundleFallbacks,
		pm.bundlePublishes,
	)

	return pm
}

// RecordDecision records a policy decision and its latency.
func (pm *PolicyMetrics) RecordDecision(decision, source, riskLevel string, duration time.Duration) {
	pm.decisionsTotal.WithLabelValues(decision, source, riskLevel).Inc()
	pm.evaluationDuration.WithLabelValues(decision).Observe(duration.Seconds())
}

// RecordRuleHit records a matched rule.
func (pm *PolicyMetrics) RecordRuleHit(ruleID string) {
	pm.ruleHitsTotal.WithLabelValues(ruleID).Inc()
}

// RecordEscalation records an opened escalation.
func (pm *PolicyMetrics) RecordEscalation(riskLevel string) {
	pm.escalationsTotal.WithLabelValues(riskLevel).Inc()
}

// RecordBundleFallback records a built-in bundle fallback.
func (pm *PolicyMetrics) RecordBundleFallback() {
	pm.bundleFallbacks.Inc()
}

// RecordBundlePublish records a publish attempt.
func (pm *PolicyMetrics) RecordBundlePublish(result string) {
	pm.bundlePublishes.WithLabelValues(result).Inc()
}
