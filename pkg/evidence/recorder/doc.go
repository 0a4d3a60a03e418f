// Package recorder turns policy decisions into evidence.
//
// The Recorder writes one DecisionRecord per evaluation. Before writing it
// merges the decision fields (risk_level, policy_version, matched_rule,
// escalation_id, rate_limited) into the request context, redacts sensitive
// context fields, truncates long string values and hashes the result.
// Writes are synchronous: a failed write is returned to the caller so an
// unrecorded decision is never reported as made.
//
// The EscalationManager opens pending escalations for escalated decisions
// and resolves them to approved or rejected.
//
// # Basic Usage
//
//	rec := recorder.NewRecorder(store, nil)
//	esc := recorder.NewEscalationManager(store)
//
//	escID, err := esc.Open(ctx, recorder.EscalationInput{...})
//	err = rec.Record(ctx, decision)
package recorder
