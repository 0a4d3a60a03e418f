package metrics

import (
	"mercator-hq/warden/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// LimitMetrics tracks rate limiting and authorization outcomes.
//
// Metrics:
//   - warden_governance_rate_limit_checks_total: limiter outcomes by limiter, class and outcome
//   - warden_governance_authz_denials_total: rejected authorizations by kind
type LimitMetrics struct {
	checksTotal       *prometheus.CounterVec
	authzDenialsTotal *prometheus.CounterVec
}

// NewLimitMetrics creates and registers limit metrics with the provided registry.
func NewLimitMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *LimitMetrics {
	lm := &LimitMetrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rate_limit_checks_total",
				Help:      "Rate limiter checks by outcome",
			},
			[]string{"limiter", "action_class", "outcome"},
		),
		authzDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "authz_denials_total",
				Help:      "Rejected authorization checks by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(lm.checksTotal, lm.authzDenialsTotal)
	return lm
}

// RecordCheck records a limiter outcome.
func (lm *LimitMetrics) RecordCheck(limiter, class, outcome string) {
	lm.checksTotal.WithLabelValues(limiter, class, outcome).Inc()
}

// RecordAuthzDenial records a rejected authorization.
func (lm *LimitMetrics) RecordAuthzDenial(kind string) {
	lm.authzDenialsTotal.WithLabelValues(kind).Inc()
}
