// Warden is a multi-tenant governance runtime for autonomous agents.
//
// It decides whether an agent action is allowed, denied or escalated to a
// human, based on the action's risk, the tenant's policy bundle and
// tenant rules, and per-tenant rate limits. Every decision is recorded as
// evidence.
//
// Usage:
//
//	# Start the server
//	warden run --config config.yaml
//
//	# Evaluate one action against a bundle file
//	warden check --bundle policy.yaml --tenant acme --action deploy_service --resource prod
//
//	# Validate a bundle file and print its digest
//	warden bundle validate policy.yaml
//	warden bundle digest policy.yaml
//
//	# Show version information
//	warden version
package main

func main() {
	Execute()
}
