package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements CounterStore using SQLite for persistence.
// It is suitable for single-instance deployments where counters must
// survive restarts.
//
// SQLiteStore uses a write-ahead log (WAL) and checkpoints it periodically
// to balance write performance with durability.
type SQLiteStore struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once
	logger             *slog.Logger
	now                func() time.Time

	incrementStmt *sql.Stmt
	getStmt       *sql.Stmt
	cleanupStmt   *sql.Stmt
}

// SQLiteConfig configures the SQLite counter store.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a SQLite counter store with default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig creates a SQLite counter store.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStoreError("sqlite", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
		logger:             slog.Default().With("component", "limits.storage.sqlite"),
		now:                time.Now,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, NewStoreError("sqlite", "init_schema", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, NewStoreError("sqlite", "prepare", err)
	}

	go s.checkpointLoop()

	s.logger.Info("counter store initialized", "path", cfg.DBPath)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rate_limit_counters (
		key TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		action_class TEXT NOT NULL,
		window_start INTEGER NOT NULL,
		window_seconds INTEGER NOT NULL,
		count INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_counters_updated_at ON rate_limit_counters(updated_at);
	CREATE INDEX IF NOT EXISTS idx_counters_tenant ON rate_limit_counters(tenant_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.incrementStmt, err = s.db.Prepare(`
		INSERT INTO rate_limit_counters
			(key, tenant_id, actor, action_class, window_start, window_seconds, count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT (key) DO UPDATE SET
			count = count + 1,
			updated_at = excluded.updated_at
		RETURNING count
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare increment statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT key, tenant_id, count, updated_at
		FROM rate_limit_counters
		WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM rate_limit_counters
		WHERE updated_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// Increment implements CounterStore.
func (s *SQLiteStore) Increment(ctx context.Context, key CounterKey) (int64, error) {
	var count int64
	err := s.incrementStmt.QueryRowContext(ctx,
		key.String(), key.TenantID, key.Actor, key.ActionClass,
		key.WindowStart, key.WindowSeconds, s.now().UnixMilli(),
	).Scan(&count)
	if err != nil {
		return 0, NewStoreError("sqlite", "increment", err)
	}
	return count, nil
}

// Get implements CounterStore.
func (s *SQLiteStore) Get(ctx context.Context, key CounterKey) (*Counter, error) {
	var (
		c         Counter
		updatedAt int64
	)
	err := s.getStmt.QueryRowContext(ctx, key.String()).Scan(&c.Key, &c.TenantID, &c.Count, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, NewStoreError("sqlite", "get", err)
	}
	c.UpdatedAt = time.UnixMilli(updatedAt)
	return &c, nil
}

// Cleanup implements CounterStore.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixMilli())
	if err != nil {
		return 0, NewStoreError("sqlite", "cleanup", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, NewStoreError("sqlite", "cleanup", err)
	}
	return int(deleted), nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases any resources held by the store.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{s.incrementStmt, s.getStmt, s.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
