// Package evidence records governance decisions and escalations as
// append-only, tenant-scoped evidence.
//
// # Records
//
// A DecisionRecord is written for every policy evaluation, whatever its
// outcome. An EscalationRecord is written when a decision escalates; it is
// the only record whose status changes after creation (pending to approved
// or rejected).
//
// # Tenancy
//
// Every record belongs to exactly one tenant. All read paths take a tenant
// id and filter by it; a query without a tenant id is rejected with
// ErrTenantRequired. Retention deletes across tenants by age only.
//
// # Layers
//
//  1. Recorder (package recorder) - builds and persists decision and
//     escalation records for the policy engine
//  2. Storage (package storage) - memory, SQLite and PostgreSQL backends
//  3. Query (package query) - query validation and defaults
//  4. Export (package export) - JSON and CSV decision exports
//  5. Retention (package retention) - scheduled pruning of old evidence
package evidence
