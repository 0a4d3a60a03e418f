// Package query validates and normalizes evidence queries before they reach
// a storage backend.
//
// Validation rejects queries without a tenant id, negative or oversized
// limits, negative offsets, unknown decisions, unknown sort orders, and
// inverted time ranges. ApplyDefaults fills the limit and sort order.
//
//	q := &evidence.DecisionQuery{TenantID: "acme", Decision: "deny"}
//	if err := query.ValidateDecisions(q); err != nil {
//		return err
//	}
//	query.ApplyDecisionDefaults(q)
//	records, err := store.QueryDecisions(ctx, q)
package query
