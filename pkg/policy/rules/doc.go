// Package rules matches governed actions against policy rules.
//
// A rule names an effect (allow, deny or escalate), three patterns for the
// action, resource and actor, and an optional minimum risk. Two strategies
// select among matching rules, one per rule source:
//
//   - PriorityMatcher walks rules already ordered by priority and returns
//     the first match. Policy bundle rules are curated with explicit
//     priorities and use this strategy.
//   - SpecificityMatcher scores every match by how exact its patterns are
//     and returns the best one, keeping list order on ties. Ad hoc tenant
//     rules use this strategy.
//
// The strategies are deliberately separate. Their tie-break semantics
// differ and callers pick one by rule source.
//
// # Pattern Grammar
//
//	"*"          matches anything, including the empty string
//	"prefix:"    matches "prefix" or any value starting with "prefix:"
//	"prefix:*"   same as "prefix:"
//	"agent-*"    glob, each * matches any run of characters
//	"deploy"     exact match
//
// Matching is case-insensitive. An empty pattern behaves like "*".
package rules
