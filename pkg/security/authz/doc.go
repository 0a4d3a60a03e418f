// Package authz enforces tenant boundaries and role-based permissions.
//
// Evaluate is the single authorization check. It first compares the
// caller's tenant with the resource owner and fails with CrossTenantAccess
// on mismatch, regardless of role. Only then does it consult permissions:
// scoped permissions carried by the token replace the role-derived set
// entirely; otherwise the Policy table is consulted for the role and
// resource type, falling back to the "*" entry.
//
// Evaluate does no I/O and does not allocate on success. BenchmarkEvaluate
// tracks its cost.
//
// PartitionKey is the one place tenant-scoped storage keys are built:
//
//	authz.PartitionKey("acme", "policy-bundles", "v3.json")
//	// tenants/acme/policy-bundles/v3.json
package authz
