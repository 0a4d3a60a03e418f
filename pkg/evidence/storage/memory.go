package storage

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"mercator-hq/warden/pkg/evidence"
)

// MemoryStorage implements evidence.Storage with in-memory maps.
// It is intended for tests and single-process development.
type MemoryStorage struct {
	mu          sync.RWMutex
	decisions   map[string]*evidence.DecisionRecord
	escalations map[string]*evidence.EscalationRecord
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		decisions:   make(map[string]*evidence.DecisionRecord),
		escalations: make(map[string]*evidence.EscalationRecord),
	}
}

// StoreDecision appends a decision record.
func (s *MemoryStorage) StoreDecision(ctx context.Context, record *evidence.DecisionRecord) error {
	if record.TenantID == "" {
		return evidence.ErrTenantRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decisions[record.DecisionID]; exists {
		return evidence.NewStorageError("memory", "store_decision", errDuplicate(record.DecisionID))
	}
	s.decisions[record.DecisionID] = copyDecision(record)
	return nil
}

// GetDecision returns a tenant's decision by id.
func (s *MemoryStorage) GetDecision(ctx context.Context, tenantID, decisionID string) (*evidence.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.decisions[decisionID]
	if !ok || r.TenantID != tenantID {
		return nil, evidence.ErrNotFound
	}
	return copyDecision(r), nil
}

// QueryDecisions returns matching decisions.
func (s *MemoryStorage) QueryDecisions(ctx context.Context, query *evidence.DecisionQuery) ([]*evidence.DecisionRecord, error) {
	if query.TenantID == "" {
		return nil, evidence.ErrTenantRequired
	}
	s.mu.RLock()
	var results []*evidence.DecisionRecord
	for _, r := range s.decisions {
		if matchesDecision(r, query) {
			results = append(results, copyDecision(r))
		}
	}
	s.mu.RUnlock()

	sortDecisions(results, query.SortOrder)
	return paginate(results, query.Limit, query.Offset), nil
}

// CountDecisions returns the number of matching decisions.
func (s *MemoryStorage) CountDecisions(ctx context.Context, query *evidence.DecisionQuery) (int64, error) {
	if query.TenantID == "" {
		return 0, evidence.ErrTenantRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.decisions {
		if matchesDecision(r, query) {
			n++
		}
	}
	return n, nil
}

// StoreEscalation creates an escalation record.
func (s *MemoryStorage) StoreEscalation(ctx context.Context, record *evidence.EscalationRecord) error {
	if record.TenantID == "" {
		return evidence.ErrTenantRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.escalations[record.ID]; exists {
		return evidence.NewStorageError("memory", "store_escalation", errDuplicate(record.ID))
	}
	s.escalations[record.ID] = copyEscalation(record)
	return nil
}

// GetEscalation returns a tenant's escalation by id.
func (s *MemoryStorage) GetEscalation(ctx context.Context, tenantID, id string) (*evidence.EscalationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.escalations[id]
	if !ok || r.TenantID != tenantID {
		return nil, evidence.ErrNotFound
	}
	return copyEscalation(r), nil
}

// QueryEscalations returns matching escalations, newest first.
func (s *MemoryStorage) QueryEscalations(ctx context.Context, query *evidence.EscalationQuery) ([]*evidence.EscalationRecord, error) {
	if query.TenantID == "" {
		return nil, evidence.ErrTenantRequired
	}
	s.mu.RLock()
	var results []*evidence.EscalationRecord
	for _, r := range s.escalations {
		if r.TenantID != query.TenantID {
			continue
		}
		if query.Status != "" && r.Status != query.Status {
			continue
		}
		results = append(results, copyEscalation(r))
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})
	return paginate(results, query.Limit, query.Offset), nil
}

// ResolveEscalation moves a pending escalation to a final status.
func (s *MemoryStorage) ResolveEscalation(ctx context.Context, tenantID, id string, res evidence.Resolution) (*evidence.EscalationRecord, error) {
	if err := checkResolution(res); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.escalations[id]
	if !ok || r.TenantID != tenantID {
		return nil, evidence.ErrNotFound
	}
	if r.Status != evidence.EscalationPending {
		return nil, evidence.ErrAlreadyResolved
	}
	at := res.ResolvedAt
	r.Status = res.Status
	r.ResolvedAt = &at
	r.ResolvedBy = res.ResolvedBy
	r.Note = res.Note
	return copyEscalation(r), nil
}

// DeleteBefore removes decisions and resolved escalations created before
// cutoff.
func (s *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, r := range s.decisions {
		if r.CreatedAt.Before(cutoff) {
			delete(s.decisions, id)
			deleted++
		}
	}
	for id, r := range s.escalations {
		if r.Status != evidence.EscalationPending && r.CreatedAt.Before(cutoff) {
			delete(s.escalations, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close releases resources held by the storage backend.
func (s *MemoryStorage) Close() error {
	return nil
}

// Size returns the number of decision records held (for testing).
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}

func copyDecision(r *evidence.DecisionRecord) *evidence.DecisionRecord {
	c := *r
	c.Context = maps.Clone(r.Context)
	if r.MatchedRule != nil {
		v := *r.MatchedRule
		c.MatchedRule = &v
	}
	if r.EscalationID != nil {
		v := *r.EscalationID
		c.EscalationID = &v
	}
	return &c
}

func copyEscalation(r *evidence.EscalationRecord) *evidence.EscalationRecord {
	c := *r
	c.Context = maps.Clone(r.Context)
	if r.ResolvedAt != nil {
		v := *r.ResolvedAt
		c.ResolvedAt = &v
	}
	return &c
}
