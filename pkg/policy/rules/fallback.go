package rules

import "mercator-hq/warden/pkg/risk"

// Fallback reasons.
const (
	ReasonDefaultAllowed   = "no matching rule; default-allowed"
	ReasonRequiresExplicit = "high-risk action requires explicit policy"
)

// Fallback is the verdict when no rule matches. Read and write actions are
// allowed; destructive and irreversible actions are escalated.
func Fallback(action string) Verdict {
	switch risk.ActionRisk(action) {
	case risk.ActionRiskDestructive, risk.ActionRiskIrreversible:
		return Verdict{Effect: EffectEscalate, Reason: ReasonRequiresExplicit}
	default:
		return Verdict{Effect: EffectAllow, Reason: ReasonDefaultAllowed}
	}
}

// Evaluate runs the matcher for source and falls back when nothing matches.
func Evaluate(source Source, rules []Rule, q Query) Verdict {
	if r, ok := MatcherFor(source).Match(rules, q); ok {
		return Verdict{Effect: r.Effect, Reason: r.Reason, Rule: r}
	}
	return Fallback(q.Action)
}
