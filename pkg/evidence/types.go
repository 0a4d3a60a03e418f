package evidence

import (
	"context"
	"io"
	"time"

	"mercator-hq/warden/pkg/risk"
)

// DecisionRecord is the append-only record of one policy evaluation.
type DecisionRecord struct {
	DecisionID    string     `json:"decision_id"`
	TenantID      string     `json:"tenant_id"`
	Decision      string     `json:"decision"` // "allow", "deny", "escalate"
	Reason        string     `json:"reason"`
	RiskLevel     risk.Level `json:"risk_level"`
	PolicyVersion string     `json:"policy_version"`
	MatchedRule   *string    `json:"matched_rule,omitempty"`
	EscalationID  *string    `json:"escalation_id,omitempty"`
	RateLimited   bool       `json:"rate_limited"`

	Action   string `json:"action"`
	Actor    string `json:"actor"`
	Resource string `json:"resource"`

	// Context is the request context enriched with the decision fields,
	// with sensitive values redacted.
	Context map[string]any `json:"context,omitempty"`

	// ContextHash is the sha256 of the stored context JSON.
	ContextHash string `json:"context_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// EscalationStatus is the review state of an escalation.
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationApproved EscalationStatus = "approved"
	EscalationRejected EscalationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s EscalationStatus) Valid() bool {
	switch s {
	case EscalationPending, EscalationApproved, EscalationRejected:
		return true
	}
	return false
}

// EscalationRecord tracks an action held for human review.
type EscalationRecord struct {
	ID         string           `json:"id"`
	TenantID   string           `json:"tenant_id"`
	DecisionID string           `json:"decision_id"`
	Action     string           `json:"action"`
	Actor      string           `json:"actor"`
	Resource   string           `json:"resource"`
	RiskLevel  risk.Level       `json:"risk_level"`
	Status     EscalationStatus `json:"status"`
	Reason     string           `json:"reason"`
	Context    map[string]any   `json:"context,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// Resolution closes a pending escalation.
type Resolution struct {
	Status     EscalationStatus `json:"status"`
	ResolvedBy string           `json:"resolved_by"`
	Note       string           `json:"note,omitempty"`
	ResolvedAt time.Time        `json:"-"`
}

// DecisionQuery filters decision records. TenantID is required.
type DecisionQuery struct {
	TenantID string `json:"tenant_id"`

	// Time range, inclusive
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Exact-match filters
	Action      string `json:"action,omitempty"`
	Actor       string `json:"actor,omitempty"`
	Decision    string `json:"decision,omitempty"`
	RateLimited *bool  `json:"rate_limited,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder orders by created_at: "asc" or "desc" (default).
	SortOrder string `json:"sort_order,omitempty"`
}

// EscalationQuery filters escalation records. TenantID is required.
type EscalationQuery struct {
	TenantID string           `json:"tenant_id"`
	Status   EscalationStatus `json:"status,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Storage defines the interface for evidence storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// StoreDecision appends a decision record.
	StoreDecision(ctx context.Context, record *DecisionRecord) error

	// GetDecision returns a tenant's decision by id, or ErrNotFound.
	GetDecision(ctx context.Context, tenantID, decisionID string) (*DecisionRecord, error)

	// QueryDecisions returns matching decisions, newest first unless the
	// query asks otherwise.
	QueryDecisions(ctx context.Context, query *DecisionQuery) ([]*DecisionRecord, error)

	// CountDecisions returns the number of matching decisions, ignoring
	// pagination.
	CountDecisions(ctx context.Context, query *DecisionQuery) (int64, error)

	// StoreEscalation creates an escalation record.
	StoreEscalation(ctx context.Context, record *EscalationRecord) error

	// GetEscalation returns a tenant's escalation by id, or ErrNotFound.
	GetEscalation(ctx context.Context, tenantID, id string) (*EscalationRecord, error)

	// QueryEscalations returns matching escalations, newest first.
	QueryEscalations(ctx context.Context, query *EscalationQuery) ([]*EscalationRecord, error)

	// ResolveEscalation moves a pending escalation to approved or
	// rejected. Resolving a non-pending escalation returns
	// ErrAlreadyResolved.
	ResolveEscalation(ctx context.Context, tenantID, id string, res Resolution) (*EscalationRecord, error)

	// DeleteBefore removes decisions, and resolved escalations, created
	// before cutoff. Pending escalations are kept. Returns the number of
	// records deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases any resources held by the storage backend.
	Close() error
}

// Exporter writes decision records in an export format.
type Exporter interface {
	Export(ctx context.Context, records []*DecisionRecord, w io.Writer) error
	ContentType() string
}
