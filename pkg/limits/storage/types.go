package storage

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// CounterStore persists fixed-window request counters.
// Implementations must be thread-safe and Increment must be atomic.
type CounterStore interface {
	// Increment creates the counter with count 1 or atomically adds 1 to
	// it, returning the count after the increment.
	Increment(ctx context.Context, key CounterKey) (int64, error)

	// Get returns the counter for key, or nil if it does not exist.
	Get(ctx context.Context, key CounterKey) (*Counter, error)

	// Cleanup removes counters last updated before olderThan and returns
	// how many were removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// CounterKey identifies one counter row.
type CounterKey struct {
	TenantID      string
	Actor         string
	ActionClass   string
	WindowStart   int64 // unix seconds, aligned to WindowSeconds
	WindowSeconds int64
}

// String returns tenant|actor|action_class|window_start|window_seconds.
func (k CounterKey) String() string {
	var b strings.Builder
	b.Grow(len(k.TenantID) + len(k.Actor) + len(k.ActionClass) + 28)
	b.WriteString(k.TenantID)
	b.WriteByte('|')
	b.WriteString(k.Actor)
	b.WriteByte('|')
	b.WriteString(k.ActionClass)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(k.WindowStart, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(k.WindowSeconds, 10))
	return b.String()
}

// Counter is a stored counter row.
type Counter struct {
	Key       string
	TenantID  string
	Count     int64
	UpdatedAt time.Time
}
