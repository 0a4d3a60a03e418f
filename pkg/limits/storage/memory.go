package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements CounterStore in process memory. All data is lost
// when the process exits.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*Counter
	closed   bool
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*Counter),
		now:      time.Now,
	}
}

// Increment implements CounterStore.
func (m *MemoryStore) Increment(ctx context.Context, key CounterKey) (int64, error) {
	k := key.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	c, ok := m.counters[k]
	if !ok {
		c = &Counter{Key: k, TenantID: key.TenantID}
		m.counters[k] = c
	}
	c.Count++
	c.UpdatedAt = m.now()
	return c.Count, nil
}

// Get implements CounterStore.
func (m *MemoryStore) Get(ctx context.Context, key CounterKey) (*Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	c, ok := m.counters[key.String()]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

// Cleanup implements CounterStore.
func (m *MemoryStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for k, c := range m.counters {
		if c.UpdatedAt.Before(olderThan) {
			delete(m.counters, k)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements CounterStore.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of stored counters.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}
