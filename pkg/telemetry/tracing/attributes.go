package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Custom keys use the "warden.*" namespace.
const (
	// Request attributes
	AttrRequestID = "warden.request_id"
	AttrTenantID  = "warden.tenant_id"
	AttrAction    = "warden.action"
	AttrActor     = "warden.actor"

	// Decision attributes
	AttrDecision      = "warden.decision"
	AttrRiskLevel     = "warden.risk_level"
	AttrPolicyVersion = "warden.policy.version"
	AttrMatchedRule   = "warden.policy.rule"
	AttrRuleSource    = "warden.policy.source"
	AttrEscalationID  = "warden.escalation_id"

	// Rate limit attributes
	AttrActionClass = "warden.rate_limit.action_class"
	AttrRateLimited = "warden.rate_limit.limited"
	AttrCount       = "warden.rate_limit.count"

	// Error attributes
	AttrErrorMessage = "error.message"
)

// SetRequestAttributes sets the identity of a governed action on a span.
// The actor is recorded as given; actors are agent identifiers, not
// personal data.
func SetRequestAttributes(span trace.Span, tenantID, action, actor string) {
	span.SetAttributes(
		attribute.String(AttrTenantID, tenantID),
		attribute.String(AttrAction, action),
		attribute.String(AttrActor, actor),
	)
}

// WithRiskLevel tags a span at start so the ratio sampler can keep risky
// checks.
func WithRiskLevel(level string) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String(AttrRiskLevel, level))
}

// SetDecisionAttributes sets the verdict of a policy check on a span.
func SetDecisionAttributes(span trace.Span, decision, riskLevel, policyVersion string) {
	span.SetAttributes(
		attribute.String(AttrDecision, decision),
		attribute.String(AttrRiskLevel, riskLevel),
		attribute.String(AttrPolicyVersion, policyVersion),
	)
}

// SetRuleAttributes records which rule decided a check and where it came
// from ("bundle", "tenant" or "fallback"). ruleID may be empty.
func SetRuleAttributes(span trace.Span, source, ruleID string) {
	attrs := []attribute.KeyValue{attribute.String(AttrRuleSource, source)}
	if ruleID != "" {
		attrs = append(attrs, attribute.String(AttrMatchedRule, ruleID))
	}
	span.SetAttributes(attrs...)
}

// SetRateLimitAttributes records a fixed-window limiter outcome.
func SetRateLimitAttributes(span trace.Span, actionClass string, count int64, limited bool) {
	span.SetAttributes(
		attribute.String(AttrActionClass, actionClass),
		attribute.Int64(AttrCount, count),
		attribute.Bool(AttrRateLimited, limited),
	)
}

// AddEvent adds a named event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
