package bundle

import (
	"mercator-hq/warden/pkg/limits/ratelimit"
	"mercator-hq/warden/pkg/policy/rules"
	"mercator-hq/warden/pkg/risk"
)

// BuiltinVersion is the version of the compiled-in bundle.
const BuiltinVersion = "builtin-2026-02-22"

// Builtin returns the bundle used when a tenant has no usable active
// bundle. Each call returns a fresh copy.
func Builtin() *PolicyBundle {
	high, low := risk.High, risk.Low
	return &PolicyBundle{
		Version: BuiltinVersion,
		Rules: []RuleSpec{
			{
				ID:       "deny-credential-exfiltration",
				Effect:   rules.EffectDeny,
				Action:   "*credential*",
				Resource: "*",
				Actor:    "*",
				MinRisk:  &high,
				Reason:   "credential operations require dedicated secure channel",
			},
			{
				ID:       "escalate-prod-deploy",
				Effect:   rules.EffectEscalate,
				Action:   "*deploy*",
				Resource: "*prod*",
				Actor:    "*",
				MinRisk:  &high,
				Reason:   "production deploy requires human-in-the-loop approval",
			},
			{
				ID:       "allow-read",
				Effect:   rules.EffectAllow,
				Action:   "*read*",
				Resource: "*",
				Actor:    "*",
				MinRisk:  &low,
				Reason:   "read-only actions are auto-approved",
			},
		},
		RateLimits: []ratelimit.Rule{
			{ActionClass: risk.ClassRead, WindowSeconds: 60, MaxRequests: 240},
			{ActionClass: risk.ClassWrite, WindowSeconds: 60, MaxRequests: 120},
			{ActionClass: risk.ClassDeploy, WindowSeconds: 60, MaxRequests: 30},
			{ActionClass: risk.ClassDelete, WindowSeconds: 60, MaxRequests: 20},
		},
	}
}
