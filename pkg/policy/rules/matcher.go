package rules

import (
	"sort"
)

// Matcher selects the winning rule for a query.
type Matcher interface {
	// Match returns the selected rule and true, or nil and false when no
	// rule matches.
	Match(rules []Rule, q Query) (*Rule, bool)

	// Name identifies the strategy in logs and metrics.
	Name() string
}

// Matches reports whether a single rule applies to the query: the minimum
// risk, when set, must not exceed the query risk and all three patterns must
// match.
func Matches(r *Rule, q Query) bool {
	if r.MinRisk != nil && q.Risk < *r.MinRisk {
		return false
	}
	return MatchPattern(r.ActionPattern, q.Action) &&
		MatchPattern(r.ResourcePattern, q.Resource) &&
		MatchPattern(r.ActorPattern, q.Actor)
}

// Prepare returns the enabled rules ordered by priority descending, then by
// creation time ascending. Equal keys keep their input order.
func Prepare(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// PriorityMatcher returns the first matching rule in list order. The list
// must already be prepared; no re-ranking by specificity happens.
type PriorityMatcher struct{}

// Match implements Matcher.
func (PriorityMatcher) Match(rules []Rule, q Query) (*Rule, bool) {
	for i := range rules {
		if Matches(&rules[i], q) {
			return &rules[i], true
		}
	}
	return nil, false
}

// Name implements Matcher.
func (PriorityMatcher) Name() string { return "priority" }

// SpecificityMatcher returns the matching rule with the highest Specificity
// score. Ties keep the earliest rule in list order.
type SpecificityMatcher struct{}

// Match implements Matcher.
func (SpecificityMatcher) Match(rules []Rule, q Query) (*Rule, bool) {
	best := -1
	bestScore := -1
	for i := range rules {
		r := &rules[i]
		if !Matches(r, q) {
			continue
		}
		if score := Specificity(r.ActionPattern, r.ResourcePattern, r.ActorPattern); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil, false
	}
	return &rules[best], true
}

// Name implements Matcher.
func (SpecificityMatcher) Name() string { return "specificity" }

// MatcherFor returns the strategy used for a rule source.
func MatcherFor(source Source) Matcher {
	if source == SourceTenant {
		return SpecificityMatcher{}
	}
	return PriorityMatcher{}
}
