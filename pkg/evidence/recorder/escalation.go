package recorder

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/evidence/query"
	"mercator-hq/warden/pkg/ids"
	"mercator-hq/warden/pkg/risk"
	"mercator-hq/warden/pkg/security/secrets"
)

// EscalationInput describes an escalated decision.
type EscalationInput struct {
	TenantID   string
	DecisionID string
	Action     string
	Actor      string
	Resource   string
	RiskLevel  risk.Level
	Reason     string
	Context    map[string]any
}

// EscalationManager opens and resolves escalations.
type EscalationManager struct {
	storage evidence.Storage
	logger  *slog.Logger
	now     func() time.Time
}

// NewEscalationManager creates an EscalationManager over storage.
func NewEscalationManager(storage evidence.Storage) *EscalationManager {
	return &EscalationManager{
		storage: storage,
		logger:  slog.Default().With("component", "evidence.escalation"),
		now:     time.Now,
	}
}

// Open creates a pending escalation and returns its id.
func (m *EscalationManager) Open(ctx context.Context, in EscalationInput) (string, error) {
	if in.TenantID == "" {
		return "", evidence.NewRecorderError("", evidence.ErrTenantRequired)
	}
	rec := &evidence.EscalationRecord{
		ID:         ids.New(),
		TenantID:   in.TenantID,
		DecisionID: in.DecisionID,
		Action:     in.Action,
		Actor:      in.Actor,
		Resource:   in.Resource,
		RiskLevel:  in.RiskLevel,
		Status:     evidence.EscalationPending,
		Reason:     in.Reason,
		CreatedAt:  m.now().UTC(),
	}
	if len(in.Context) > 0 {
		rec.Context = secrets.RedactSensitiveFields(maps.Clone(in.Context)).(map[string]any)
	}

	if err := m.storage.StoreEscalation(ctx, rec); err != nil {
		return "", evidence.NewRecorderError(rec.ID, err)
	}

	m.logger.Info("escalation opened",
		"escalation_id", rec.ID,
		"decision_id", rec.DecisionID,
		"tenant_id", rec.TenantID,
		"risk_level", rec.RiskLevel.String(),
	)
	return rec.ID, nil
}

// Resolve approves or rejects a pending escalation.
func (m *EscalationManager) Resolve(ctx context.Context, tenantID, id string, res evidence.Resolution) (*evidence.EscalationRecord, error) {
	if res.ResolvedAt.IsZero() {
		res.ResolvedAt = m.now().UTC()
	}
	rec, err := m.storage.ResolveEscalation(ctx, tenantID, id, res)
	if err != nil {
		return nil, err
	}
	m.logger.Info("escalation resolved",
		"escalation_id", id,
		"tenant_id", tenantID,
		"status", string(rec.Status),
		"resolved_by", rec.ResolvedBy,
	)
	return rec, nil
}

// Get returns one of a tenant's escalations.
func (m *EscalationManager) Get(ctx context.Context, tenantID, id string) (*evidence.EscalationRecord, error) {
	return m.storage.GetEscalation(ctx, tenantID, id)
}

// List returns a tenant's escalations after validating the query.
func (m *EscalationManager) List(ctx context.Context, q *evidence.EscalationQuery) ([]*evidence.EscalationRecord, error) {
	if err := query.ValidateEscalations(q); err != nil {
		return nil, err
	}
	query.ApplyEscalationDefaults(q)
	return m.storage.QueryEscalations(ctx, q)
}
