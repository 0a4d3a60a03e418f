package bundle

import (
	"mercator-hq/warden/pkg/limits/ratelimit"
	"mercator-hq/warden/pkg/policy/rules"
	"mercator-hq/warden/pkg/risk"
)

// PolicyBundle is one immutable policy version.
type PolicyBundle struct {
	Version    string           `json:"version" yaml:"version"`
	Rules      []RuleSpec       `json:"rules" yaml:"rules"`
	RateLimits []ratelimit.Rule `json:"rate_limits,omitempty" yaml:"rate_limits,omitempty"`
}

// RuleSpec is a bundle rule as written in a bundle document. Omitted
// patterns match everything.
type RuleSpec struct {
	ID       string       `json:"id" yaml:"id"`
	Effect   rules.Effect `json:"effect" yaml:"effect"`
	Action   string       `json:"action,omitempty" yaml:"action,omitempty"`
	Resource string       `json:"resource,omitempty" yaml:"resource,omitempty"`
	Actor    string       `json:"actor,omitempty" yaml:"actor,omitempty"`
	MinRisk  *risk.Level  `json:"min_risk,omitempty" yaml:"min_risk,omitempty"`
	Reason   string       `json:"reason" yaml:"reason"`
	Priority int          `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Rule converts the spec into a matcher rule. Bundle rules are always
// enabled and carry no tenant id.
func (s RuleSpec) Rule() rules.Rule {
	r := rules.Rule{
		ID:              s.ID,
		Name:            s.ID,
		Effect:          s.Effect,
		ActionPattern:   s.Action,
		ResourcePattern: s.Resource,
		ActorPattern:    s.Actor,
		MinRisk:         s.MinRisk,
		Reason:          s.Reason,
		Priority:        s.Priority,
		Enabled:         true,
	}
	r.Normalize()
	return r
}

// MatcherRules returns the bundle's rules in document order, ready for
// rules.PriorityMatcher.
func (b *PolicyBundle) MatcherRules() []rules.Rule {
	out := make([]rules.Rule, 0, len(b.Rules))
	for _, spec := range b.Rules {
		out = append(out, spec.Rule())
	}
	return out
}

// RateLimitFor returns the first rate limit whose action class glob-matches
// class.
func (b *PolicyBundle) RateLimitFor(class string) (ratelimit.Rule, bool) {
	for _, rl := range b.RateLimits {
		if rules.WildcardMatch(rl.ActionClass, class) {
			return rl, true
		}
	}
	return ratelimit.Rule{}, false
}

// EffectiveRateLimit returns the bundle override for class, or the default
// budget for the risk level.
func (b *PolicyBundle) EffectiveRateLimit(class string, level risk.Level) ratelimit.Rule {
	if rl, ok := b.RateLimitFor(class); ok {
		return rl
	}
	return ratelimit.DefaultRuleFor(level)
}
