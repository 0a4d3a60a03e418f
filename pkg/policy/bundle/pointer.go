package bundle

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// PointerStore holds single string values such as the active bundle
// version. Get returns ErrNotFound for missing keys.
type PointerStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}

// MemoryPointerStore is an in-process PointerStore.
type MemoryPointerStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryPointerStore creates an empty MemoryPointerStore.
func NewMemoryPointerStore() *MemoryPointerStore {
	return &MemoryPointerStore{values: make(map[string]string)}
}

// Get returns the value for key.
func (m *MemoryPointerStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Put sets the value for key.
func (m *MemoryPointerStore) Put(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// RedisPointerStore keeps pointers as plain Redis strings.
type RedisPointerStore struct {
	client redis.UniversalClient
}

// NewRedisPointerStore creates a RedisPointerStore over client.
func NewRedisPointerStore(client redis.UniversalClient) *RedisPointerStore {
	return &RedisPointerStore{client: client}
}

// Get returns the value for key.
func (r *RedisPointerStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", newStoreError("redis", "get", key, err)
	}
	return v, nil
}

// Put sets the value for key without expiry.
func (r *RedisPointerStore) Put(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return newStoreError("redis", "put", key, err)
	}
	return nil
}

// BlobPointerStore keeps pointers as small objects in a BlobStore, next to
// the bundles they point at.
type BlobPointerStore struct {
	blobs BlobStore
}

// NewBlobPointerStore creates a BlobPointerStore over blobs.
func NewBlobPointerStore(blobs BlobStore) *BlobPointerStore {
	return &BlobPointerStore{blobs: blobs}
}

// Get returns the value for key.
func (b *BlobPointerStore) Get(ctx context.Context, key string) (string, error) {
	data, err := b.blobs.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Put sets the value for key.
func (b *BlobPointerStore) Put(ctx context.Context, key, value string) error {
	return b.blobs.Put(ctx, key, []byte(value+"\n"))
}
