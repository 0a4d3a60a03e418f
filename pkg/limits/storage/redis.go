package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mercator-hq/warden/pkg/security/authz"
)

// incrementScript bumps the counter and arms its expiry on first hit so that
// the window cleans itself up once retention has passed.
var incrementScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 and tonumber(ARGV[1]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisStore implements CounterStore on Redis. Counters are plain integer
// keys under the tenant's partition, so every instance sharing the server
// sees the same counts.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
	logger    *slog.Logger
}

// RedisConfig configures the Redis counter store.
type RedisConfig struct {
	// Addr is host:port of the Redis server.
	// Default: REDIS_ADDR or "127.0.0.1:6379"
	Addr string

	// Password for AUTH. Default: REDIS_PASSWORD.
	Password string

	// DB selects the logical database.
	DB int

	// Retention is how long a window's key lives after its first hit.
	// Zero disables expiry and leaves garbage collection to the operator.
	// Default: 24 hours
	Retention time.Duration
}

// NewRedisClient builds a client from config, falling back to the
// REDIS_ADDR, REDIS_PASSWORD and REDIS_DB environment variables.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	}
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	password := cfg.Password
	if password == "" {
		password = os.Getenv("REDIS_PASSWORD")
	}
	db := cfg.DB
	if db == 0 {
		if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
			db = v
		}
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, retention time.Duration) *RedisStore {
	s := &RedisStore{
		client:    client,
		retention: retention,
		logger:    slog.Default().With("component", "limits.storage.redis"),
	}
	s.logger.Debug("redis counter store created", "retention", retention)
	return s
}

// redisKey places the counter under the tenant's partition.
func redisKey(key CounterKey) string {
	return authz.PartitionKey(key.TenantID, "rate-limits", key.String())
}

// Increment implements CounterStore.
func (r *RedisStore) Increment(ctx context.Context, key CounterKey) (int64, error) {
	count, err := incrementScript.Run(ctx, r.client, []string{redisKey(key)}, r.retention.Milliseconds()).Int64()
	if err != nil {
		return 0, NewStoreError("redis", "increment", err)
	}
	return count, nil
}

// Get implements CounterStore. Redis does not track modification time, so
// UpdatedAt is left zero.
func (r *RedisStore) Get(ctx context.Context, key CounterKey) (*Counter, error) {
	count, err := r.client.Get(ctx, redisKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, NewStoreError("redis", "get", err)
	}
	return &Counter{Key: key.String(), TenantID: key.TenantID, Count: count}, nil
}

// Cleanup implements CounterStore. Redis expires windows on its own, so
// this is a no-op.
func (r *RedisStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return NewStoreError("redis", "ping", err)
	}
	return nil
}

// Close implements CounterStore.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
