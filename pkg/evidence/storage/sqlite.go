package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/risk"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/evidence.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements evidence.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite storage backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 5
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "evidence.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return evidence.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return evidence.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// StoreDecision appends a decision record.
func (s *SQLiteStorage) StoreDecision(ctx context.Context, r *evidence.DecisionRecord) error {
	if r.TenantID == "" {
		return evidence.ErrTenantRequired
	}
	contextJSON, err := encodeContext(r.Context)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store_decision", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO decisions ("+decisionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.DecisionID, r.TenantID, r.Decision, r.Reason, r.RiskLevel.String(), r.PolicyVersion,
		nullable(r.MatchedRule), nullable(r.EscalationID), r.RateLimited,
		r.Action, r.Actor, r.Resource, contextJSON, r.ContextHash, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store_decision", err)
	}
	return nil
}

// GetDecision returns a tenant's decision by id.
func (s *SQLiteStorage) GetDecision(ctx context.Context, tenantID, decisionID string) (*evidence.DecisionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+decisionColumns+" FROM decisions WHERE tenant_id = ? AND decision_id = ?",
		tenantID, decisionID)
	r, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, evidence.ErrNotFound
	}
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "get_decision", err)
	}
	return r, nil
}

// QueryDecisions returns matching decisions.
func (s *SQLiteStorage) QueryDecisions(ctx context.Context, query *evidence.DecisionQuery) ([]*evidence.DecisionRecord, error) {
	if query.TenantID == "" {
		return nil, evidence.ErrTenantRequired
	}
	w := decisionWhere(questionMark, query, unixNano)
	sqlQuery := fmt.Sprintf("SELECT %s FROM decisions WHERE %s ORDER BY created_at %s, decision_id %s LIMIT %d OFFSET %d",
		decisionColumns, w, sortOrder(query.SortOrder), sortOrder(query.SortOrder), limitOf(query.Limit), max(query.Offset, 0))

	rows, err := s.db.QueryContext(ctx, sqlQuery, w.args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query_decisions", err)
	}
	defer rows.Close()

	records := []*evidence.DecisionRecord{}
	for rows.Next() {
		r, err := scanDecision(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query_decisions", err)
	}
	return records, nil
}

// CountDecisions returns the number of matching decisions.
func (s *SQLiteStorage) CountDecisions(ctx context.Context, query *evidence.DecisionQuery) (int64, error) {
	if query.TenantID == "" {
		return 0, evidence.ErrTenantRequired
	}
	w := decisionWhere(questionMark, query, unixNano)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions WHERE "+w.String(), w.args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count_decisions", err)
	}
	return count, nil
}

// StoreEscalation creates an escalation record.
func (s *SQLiteStorage) StoreEscalation(ctx context.Context, r *evidence.EscalationRecord) error {
	if r.TenantID == "" {
		return evidence.ErrTenantRequired
	}
	contextJSON, err := encodeContext(r.Context)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store_escalation", err)
	}
	var resolvedAt any
	if r.ResolvedAt != nil {
		resolvedAt = r.ResolvedAt.UnixNano()
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO escalations ("+escalationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.TenantID, r.DecisionID, r.Action, r.Actor, r.Resource, r.RiskLevel.String(), string(r.Status),
		r.Reason, contextJSON, r.CreatedAt.UnixNano(), resolvedAt, r.ResolvedBy, r.Note,
	)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store_escalation", err)
	}
	return nil
}

// GetEscalation returns a tenant's escalation by id.
func (s *SQLiteStorage) GetEscalation(ctx context.Context, tenantID, id string) (*evidence.EscalationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+escalationColumns+" FROM escalations WHERE tenant_id = ? AND id = ?", tenantID, id)
	r, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, evidence.ErrNotFound
	}
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "get_escalation", err)
	}
	return r, nil
}

// QueryEscalations returns matching escalations, newest first.
func (s *SQLiteStorage) QueryEscalations(ctx context.Context, query *evidence.EscalationQuery) ([]*evidence.EscalationRecord, error) {
	if query.TenantID == "" {
		return nil, evidence.ErrTenantRequired
	}
	w := escalationWhere(questionMark, query)
	sqlQuery := fmt.Sprintf("SELECT %s FROM escalations WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		escalationColumns, w, limitOf(query.Limit), max(query.Offset, 0))

	rows, err := s.db.QueryContext(ctx, sqlQuery, w.args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query_escalations", err)
	}
	defer rows.Close()

	records := []*evidence.EscalationRecord{}
	for rows.Next() {
		r, err := scanEscalation(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query_escalations", err)
	}
	return records, nil
}

// ResolveEscalation moves a pending escalation to a final status. The
// status check and update happen in one conditional UPDATE.
func (s *SQLiteStorage) ResolveEscalation(ctx context.Context, tenantID, id string, res evidence.Resolution) (*evidence.EscalationRecord, error) {
	if err := checkResolution(res); err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET status = ?, resolved_at = ?, resolved_by = ?, note = ?
		 WHERE tenant_id = ? AND id = ? AND status = ?`,
		string(res.Status), res.ResolvedAt.UnixNano(), res.ResolvedBy, res.Note,
		tenantID, id, string(evidence.EscalationPending),
	)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "resolve_escalation", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "resolve_escalation", err)
	}

	current, err := s.GetEscalation(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, evidence.ErrAlreadyResolved
	}
	return current, nil
}

// DeleteBefore removes decisions and resolved escalations created before
// cutoff.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	defer tx.Rollback()

	var total int64
	for _, stmt := range []struct {
		query string
		args  []any
	}{
		{"DELETE FROM decisions WHERE created_at < ?", []any{cutoff.UnixNano()}},
		{"DELETE FROM escalations WHERE created_at < ? AND status != ?", []any{cutoff.UnixNano(), string(evidence.EscalationPending)}},
	} {
		result, err := tx.ExecContext(ctx, stmt.query, stmt.args...)
		if err != nil {
			return 0, evidence.NewStorageError("sqlite", "delete", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, evidence.NewStorageError("sqlite", "delete", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return total, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func unixNano(t time.Time) any { return t.UnixNano() }

// scanDecision scans a row selected with decisionColumns.
func scanDecision(row rowScanner) (*evidence.DecisionRecord, error) {
	var (
		r              evidence.DecisionRecord
		riskLevel      string
		matched, escID sql.NullString
		contextJSON    string
		createdAt      int64
	)
	err := row.Scan(
		&r.DecisionID, &r.TenantID, &r.Decision, &r.Reason, &riskLevel, &r.PolicyVersion,
		&matched, &escID, &r.RateLimited, &r.Action, &r.Actor, &r.Resource,
		&contextJSON, &r.ContextHash, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if r.RiskLevel, err = risk.ParseLevel(riskLevel); err != nil {
		return nil, err
	}
	if matched.Valid {
		r.MatchedRule = &matched.String
	}
	if escID.Valid {
		r.EscalationID = &escID.String
	}
	r.Context = decodeContext([]byte(contextJSON))
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return &r, nil
}

// scanEscalation scans a row selected with escalationColumns.
func scanEscalation(row rowScanner) (*evidence.EscalationRecord, error) {
	var (
		r           evidence.EscalationRecord
		riskLevel   string
		status      string
		contextJSON string
		createdAt   int64
		resolvedAt  sql.NullInt64
	)
	err := row.Scan(
		&r.ID, &r.TenantID, &r.DecisionID, &r.Action, &r.Actor, &r.Resource, &riskLevel, &status,
		&r.Reason, &contextJSON, &createdAt, &resolvedAt, &r.ResolvedBy, &r.Note,
	)
	if err != nil {
		return nil, err
	}
	if r.RiskLevel, err = risk.ParseLevel(riskLevel); err != nil {
		return nil, err
	}
	r.Status = evidence.EscalationStatus(status)
	r.Context = decodeContext([]byte(contextJSON))
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if resolvedAt.Valid {
		t := time.Unix(0, resolvedAt.Int64).UTC()
		r.ResolvedAt = &t
	}
	return &r, nil
}
