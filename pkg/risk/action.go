package risk

import "strings"

// Action classes used to select rate-limit budgets.
const (
	ClassRead     = "read"
	ClassWrite    = "write"
	ClassDeploy   = "deploy"
	ClassDelete   = "delete"
	ClassHighRisk = "high_risk"
	ClassCritical = "critical"
)

// ActionClass buckets an action into a coarse rate-limit class. Deploy and
// delete actions get their own class; everything else is derived from level.
func ActionClass(action string, level Level) string {
	a := strings.ToLower(action)
	switch {
	case strings.Contains(a, "deploy"):
		return ClassDeploy
	case strings.Contains(a, "delete"), strings.Contains(a, "drop"):
		return ClassDelete
	}
	switch level {
	case Low:
		return ClassRead
	case High:
		return ClassHighRisk
	case Critical:
		return ClassCritical
	default:
		return ClassWrite
	}
}

// Naming-based action risk buckets used when no rule matches.
const (
	ActionRiskRead         = "read"
	ActionRiskWrite        = "write"
	ActionRiskDestructive  = "destructive"
	ActionRiskIrreversible = "irreversible"
)

// ActionRisk buckets an action by its verb prefix. Unlike Classify it looks
// only at the action name, which is what tenant rule fallbacks key on.
func ActionRisk(action string) string {
	a := strings.ToLower(action)
	switch {
	case hasAnyPrefix(a, "read", "get", "list", "view", "describe"):
		return ActionRiskRead
	case hasAnyPrefix(a, "delete", "drop", "destroy", "purge"):
		return ActionRiskDestructive
	case strings.HasPrefix(a, "deploy:prod"), strings.Contains(a, "irreversible"), strings.HasPrefix(a, "revoke"):
		return ActionRiskIrreversible
	default:
		return ActionRiskWrite
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
