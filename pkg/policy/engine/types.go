package engine

import (
	"strings"

	"mercator-hq/warden/pkg/evidence"
)

// Request is one governed action to evaluate.
type Request struct {
	TenantID string         `json:"tenant_id"`
	Action   string         `json:"action"`
	Resource string         `json:"resource,omitempty"`
	Actor    string         `json:"actor"`
	Context  map[string]any `json:"context,omitempty"`
}

// Validate checks the required fields.
func (r *Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.TenantID) == "" {
		missing = append(missing, "tenant_id")
	}
	if strings.TrimSpace(r.Action) == "" {
		missing = append(missing, "action")
	}
	if strings.TrimSpace(r.Actor) == "" {
		missing = append(missing, "actor")
	}
	if len(missing) > 0 {
		return &RequestError{Missing: missing}
	}
	return nil
}

// Stage is a step of one evaluation.
type Stage string

const (
	StageUnclassified   Stage = "unclassified"
	StageRiskClassified Stage = "risk_classified"
	StageRateChecked    Stage = "rate_checked"
	StageRuleMatched    Stage = "rule_matched"
	StageDecided        Stage = "decided"
	StageRecorded       Stage = "recorded"
)

// Decision sources, used in logs, metrics and spans.
const (
	SourceBundle    = "bundle"
	SourceTenant    = "tenant"
	SourceFallback  = "fallback"
	SourceRateLimit = "rate_limit"
)

// Reasons for verdicts not produced by a rule.
const (
	ReasonRateLimited      = "rate limit exceeded for actor/action class"
	ReasonCircuitOpen      = "rate limiter unavailable; circuit open"
	ReasonHighRiskNoPolicy = "high-risk action requires explicit policy match"
)

// Result is a decision together with how it was reached.
type Result struct {
	Decision *evidence.DecisionRecord

	// Source is where the verdict came from.
	Source string

	// ActionClass is the rate limit class the request was counted in.
	ActionClass string

	// Stages lists the stages completed, in order.
	Stages []Stage
}
