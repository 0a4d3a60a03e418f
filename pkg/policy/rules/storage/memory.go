package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/warden/pkg/ids"
	"mercator-hq/warden/pkg/policy/rules"
)

// MemoryStore is an in-memory rules.Store.
type MemoryStore struct {
	mu    sync.RWMutex
	rules map[string]map[string]rules.Rule // tenant -> id -> rule
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory rule store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules: make(map[string]map[string]rules.Rule),
		now:   time.Now,
	}
}

// Create implements rules.Store.
func (m *MemoryStore) Create(ctx context.Context, tenantID string, r *rules.Rule) error {
	prepareForCreate(r, tenantID, m.now())
	if err := r.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.rules[tenantID]
	if !ok {
		byID = make(map[string]rules.Rule)
		m.rules[tenantID] = byID
	}
	byID[r.ID] = cloneRule(*r)
	return nil
}

// Get implements rules.Store.
func (m *MemoryStore) Get(ctx context.Context, tenantID, id string) (*rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[tenantID][id]
	if !ok {
		return nil, rules.ErrRuleNotFound
	}
	out := cloneRule(r)
	return &out, nil
}

// List implements rules.Store.
func (m *MemoryStore) List(ctx context.Context, tenantID string, enabledOnly bool) ([]rules.Rule, error) {
	m.mu.RLock()
	all := make([]rules.Rule, 0, len(m.rules[tenantID]))
	for _, r := range m.rules[tenantID] {
		all = append(all, cloneRule(r))
	}
	m.mu.RUnlock()

	sortRules(all)
	if !enabledOnly {
		return all, nil
	}
	enabled := all[:0]
	for _, r := range all {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	return enabled, nil
}

// Update implements rules.Store.
func (m *MemoryStore) Update(ctx context.Context, tenantID, id string, patch rules.Patch) (*rules.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[tenantID][id]
	if !ok {
		return nil, rules.ErrRuleNotFound
	}
	patch.Apply(&r, m.now())
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	m.rules[tenantID][id] = r
	out := cloneRule(r)
	return &out, nil
}

// Delete implements rules.Store.
func (m *MemoryStore) Delete(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[tenantID][id]; !ok {
		return rules.ErrRuleNotFound
	}
	delete(m.rules[tenantID], id)
	return nil
}

// Close implements rules.Store.
func (m *MemoryStore) Close() error {
	return nil
}

func prepareForCreate(r *rules.Rule, tenantID string, now time.Time) {
	if r.ID == "" {
		r.ID = ids.New()
	}
	r.TenantID = tenantID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	r.Normalize()
}

func cloneRule(r rules.Rule) rules.Rule {
	if r.MinRisk != nil {
		level := *r.MinRisk
		r.MinRisk = &level
	}
	return r
}

// sortRules orders rules the way the SQL backends do: priority descending,
// then created_at ascending, then id for a deterministic result.
func sortRules(list []rules.Rule) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
