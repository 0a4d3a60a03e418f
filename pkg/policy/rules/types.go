package rules

import (
	"fmt"
	"strings"
	"time"

	"mercator-hq/warden/pkg/risk"
)

// Effect is the verdict a rule produces.
type Effect string

const (
	// EffectAllow lets the action proceed.
	EffectAllow Effect = "allow"
	// EffectDeny rejects the action.
	EffectDeny Effect = "deny"
	// EffectEscalate holds the action for human review.
	EffectEscalate Effect = "escalate"
)

// ParseEffect parses an effect name case-insensitively.
func ParseEffect(s string) (Effect, error) {
	switch e := Effect(strings.ToLower(strings.TrimSpace(s))); e {
	case EffectAllow, EffectDeny, EffectEscalate:
		return e, nil
	}
	return "", fmt.Errorf("unknown effect %q", s)
}

// Valid reports whether e is a known effect.
func (e Effect) Valid() bool {
	_, err := ParseEffect(string(e))
	return err == nil
}

// Rule is a single policy rule. Tenant rules and bundle rules share this
// shape; TenantID is empty for bundle rules.
type Rule struct {
	ID              string      `json:"id" yaml:"id"`
	TenantID        string      `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Name            string      `json:"name,omitempty" yaml:"name,omitempty"`
	Effect          Effect      `json:"effect" yaml:"effect"`
	ActionPattern   string      `json:"action_pattern" yaml:"action_pattern"`
	ResourcePattern string      `json:"resource_pattern" yaml:"resource_pattern"`
	ActorPattern    string      `json:"actor_pattern" yaml:"actor_pattern"`
	MinRisk         *risk.Level `json:"min_risk,omitempty" yaml:"min_risk,omitempty"`
	Reason          string      `json:"reason" yaml:"reason"`
	Priority        int         `json:"priority" yaml:"priority"`
	Enabled         bool        `json:"enabled" yaml:"enabled"`
	CreatedAt       time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" yaml:"updated_at"`
}

// Query is the action being evaluated.
type Query struct {
	Action   string
	Resource string
	Actor    string
	Risk     risk.Level
}

// Verdict is the outcome of matching, with or without a rule.
type Verdict struct {
	Effect Effect
	Reason string
	// Rule is the matched rule, or nil for a fallback verdict.
	Rule *Rule
}

// Source identifies where a rule set came from.
type Source string

const (
	// SourceBundle marks rules from a published policy bundle.
	SourceBundle Source = "bundle"
	// SourceTenant marks CRUD-managed tenant rules.
	SourceTenant Source = "tenant"
)
