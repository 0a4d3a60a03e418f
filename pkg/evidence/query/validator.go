package query

import (
	"fmt"

	"mercator-hq/warden/pkg/evidence"
)

const (
	// DefaultLimit is the default number of records to return if not specified.
	DefaultLimit = 100

	// MaxLimit is the maximum number of records that can be returned in a single query.
	MaxLimit = 10000
)

// ValidDecisions contains the decisions that can be filtered on.
var ValidDecisions = map[string]bool{
	"allow":    true,
	"deny":     true,
	"escalate": true,
}

// ValidSortOrders contains the valid sort orders.
var ValidSortOrders = map[string]bool{
	"asc":  true,
	"desc": true,
}

// ValidateDecisions validates a decision query.
func ValidateDecisions(q *evidence.DecisionQuery) error {
	if q.TenantID == "" {
		return evidence.NewQueryError(evidence.ErrTenantRequired)
	}
	if err := validatePage(q.Limit, q.Offset); err != nil {
		return err
	}
	if q.Decision != "" && !ValidDecisions[q.Decision] {
		return evidence.NewQueryError(fmt.Errorf("invalid decision: %s (must be 'allow', 'deny', or 'escalate')", q.Decision))
	}
	if q.SortOrder != "" && !ValidSortOrders[q.SortOrder] {
		return evidence.NewQueryError(fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return evidence.NewQueryError(fmt.Errorf("start_time must be before end_time"))
	}
	return nil
}

// ValidateEscalations validates an escalation query.
func ValidateEscalations(q *evidence.EscalationQuery) error {
	if q.TenantID == "" {
		return evidence.NewQueryError(evidence.ErrTenantRequired)
	}
	if err := validatePage(q.Limit, q.Offset); err != nil {
		return err
	}
	if q.Status != "" && !q.Status.Valid() {
		return evidence.NewQueryError(fmt.Errorf("invalid status: %s (must be 'pending', 'approved', or 'rejected')", q.Status))
	}
	return nil
}

func validatePage(limit, offset int) error {
	if limit < 0 {
		return evidence.NewQueryError(fmt.Errorf("limit must be >= 0, got %d", limit))
	}
	if limit > MaxLimit {
		return evidence.NewQueryError(fmt.Errorf("limit must be <= %d, got %d", MaxLimit, limit))
	}
	if offset < 0 {
		return evidence.NewQueryError(fmt.Errorf("offset must be >= 0, got %d", offset))
	}
	return nil
}

// ApplyDecisionDefaults applies default values to a decision query.
func ApplyDecisionDefaults(q *evidence.DecisionQuery) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

// ApplyEscalationDefaults applies default values to an escalation query.
func ApplyEscalationDefaults(q *evidence.EscalationQuery) {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
}
