package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/risk"
)

// PostgresSchema creates the evidence tables. It is idempotent.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS decisions (
    decision_id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    decision TEXT NOT NULL,
    reason TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    policy_version TEXT NOT NULL,
    matched_rule TEXT,
    escalation_id TEXT,
    rate_limited BOOLEAN NOT NULL DEFAULT FALSE,
    action TEXT NOT NULL,
    actor TEXT NOT NULL,
    resource TEXT NOT NULL,
    context JSONB NOT NULL DEFAULT '{}'::jsonb,
    context_hash TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS escalations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    decision_id TEXT NOT NULL,
    action TEXT NOT NULL,
    actor TEXT NOT NULL,
    resource TEXT NOT NULL,
    risk_level TEXT NOT NULL,
    status TEXT NOT NULL,
    reason TEXT NOT NULL,
    context JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL,
    resolved_at TIMESTAMPTZ,
    resolved_by TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_decisions_tenant_created ON decisions(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_escalations_tenant_status ON escalations(tenant_id, status);
`

// PostgresConfig configures the PostgreSQL connection pool.
type PostgresConfig struct {
	URL        string
	MaxConns   int32
	MinConns   int32
	RequireTLS bool

	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
}

// NewPostgresPool opens and pings a pgx pool.
func NewPostgresPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("postgres url is required")
	}
	if cfg.RequireTLS {
		if err := validatePostgresTLS(cfg.URL); err != nil {
			return nil, err
		}
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolCfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = 1
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, evidence.NewStorageError("postgres", "open", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, evidence.NewStorageError("postgres", "ping", err)
	}
	return pool, nil
}

func validatePostgresTLS(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid postgres url: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(parsed.Query().Get("sslmode"))) {
	case "verify-full", "verify-ca", "require":
		return nil
	case "allow", "disable", "prefer":
		return errors.New("postgres TLS is required but sslmode is insecure")
	default:
		return errors.New("postgres TLS is required: set sslmode=require|verify-ca|verify-full")
	}
}

// PostgresStorage implements evidence.Storage on PostgreSQL.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStorage creates the schema if needed and returns the storage.
func NewPostgresStorage(ctx context.Context, pool *pgxpool.Pool) (*PostgresStorage, error) {
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		return nil, evidence.NewStorageError("postgres", "create_schema", err)
	}
	s := &PostgresStorage{
		pool:   pool,
		logger: slog.Default().With("component", "evidence.storage.postgres"),
	}
	s.logger.Info("PostgreSQL storage initialized")
	return s, nil
}

// StoreDecision appends a decision record.
func (s *PostgresStorage) StoreDecision(ctx context.Context, r *evidence.DecisionRecord) error {
	if r.TenantID == "" {
		return evidence.ErrTenantRequired
	}
	contextJSON, err := encodeContext(r.Context)
	if err != nil {
		return evidence.NewStorageError("postgres", "store_decision", err)
	}
	_, err = s.pool.Exec(ctx,
		"INSERT INTO decisions ("+decisionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14, $15)`,
		r.DecisionID, r.TenantID, r.Decision, r.Reason, r.RiskLevel.String(), r.PolicyVersion,
		nullable(r.MatchedRule), nullable(r.EscalationID), r.RateLimited,
		r.Action, r.Actor, r.Resource, contextJSON, r.ContextHash, r.CreatedAt.UTC(),
	)
	if err != nil {
		return evidence.NewStorageError("postgres", "store_decision", err)
	}
	return nil
}

// GetDecision returns a tenant's decision by id.
func (s *PostgresStorage) GetDecision(ctx context.Context, tenantID, decisionID string) (*evidence.DecisionRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+pgDecisionColumns+" FROM decisions WHERE tenant_id = $1 AND decision_id = $2",
		tenantID, decisionID)
	r, err := scanPgDecision(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, evidence.ErrNotFound
	}
	if err != nil {
		return nil, evidence.NewStorageError("postgres", "get_decision", err)
	}
	return r, nil
}

// QueryDecisions returns matching decisions.
func (s *PostgresStorage) QueryDecisions(ctx context.Context, query *evidence.DecisionQuery) ([]*evidence.DecisionRecord, error) {
	if query.TenantID == "" {
		return nil, evidence.ErrTenantRequired
	}
	w := decisionWhere(dollar, query, utcTime)
	sqlQuery := fmt.Sprintf("SELECT %s FROM decisions WHERE %s ORDER BY created_at %s, decision_id %s LIMIT %d OFFSET %d",
		pgDecisionColumns, w, sortOrder(query.SortOrder), sortOrder(query.SortOrder), limitOf(query.Limit), max(query.Offset, 0))

	rows, err := s.pool.Query(ctx, sqlQuery, w.args...)
	if err != nil {
		return nil, evidence.NewStorageError("postgres", "query_decisions", err)
	}
	defer rows.Close()

	records := []*evidence.DecisionRecord{}
	for rows.Next() {
		r, err := scanPgDecision(rows)
		if err != nil {
			return nil, evidence.NewStorageError("postgres", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("postgres", "query_decisions", err)
	}
	return records, nil
}

// CountDecisions returns the number of matching decisions.
func (s *PostgresStorage) CountDecisions(ctx context.Context, query *evidence.DecisionQuery) (int64, error) {
	if query.TenantID == "" {
		return 0, evidence.ErrTenantRequired
	}
	w := decisionWhere(dollar, query, utcTime)
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM decisions WHERE "+w.String(), w.args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError("postgres", "count_decisions", err)
	}
	return count, nil
}

// StoreEscalation creates an escalation record.
func (s *PostgresStorage) StoreEscalation(ctx context.Context, r *evidence.EscalationRecord) error {
	if r.TenantID == "" {
		return evidence.ErrTenantRequired
	}
	contextJSON, err := encodeContext(r.Context)
	if err != nil {
		return evidence.NewStorageError("postgres", "store_escalation", err)
	}
	_, err = s.pool.Exec(ctx,
		"INSERT INTO escalations ("+escalationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12, $13, $14)`,
		r.ID, r.TenantID, r.DecisionID, r.Action, r.Actor, r.Resource, r.RiskLevel.String(), string(r.Status),
		r.Reason, contextJSON, r.CreatedAt.UTC(), r.ResolvedAt, r.ResolvedBy, r.Note,
	)
	if err != nil {
		return evidence.NewStorageError("postgres", "store_escalation", err)
	}
	return nil
}

// GetEscalation returns a tenant's escalation by id.
func (s *PostgresStorage) GetEscalation(ctx context.Context, tenantID, id string) (*evidence.EscalationRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+pgEscalationColumns+" FROM escalations WHERE tenant_id = $1 AND id = $2", tenantID, id)
	r, err := scanPgEscalation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, evidence.ErrNotFound
	}
	if err != nil {
		return nil, evidence.NewStorageError("postgres", "get_escalation", err)
	}
	return r, nil
}

// QueryEscalations returns matching escalations, newest first.
func (s *PostgresStorage) QueryEscalations(ctx context.Context, query *evidence.EscalationQuery) ([]*evidence.EscalationRecord, error) {
	if query.TenantID == "" {
		return nil, evidence.ErrTenantRequired
	}
	w := escalationWhere(dollar, query)
	sqlQuery := fmt.Sprintf("SELECT %s FROM escalations WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		pgEscalationColumns, w, limitOf(query.Limit), max(query.Offset, 0))

	rows, err := s.pool.Query(ctx, sqlQuery, w.args...)
	if err != nil {
		return nil, evidence.NewStorageError("postgres", "query_escalations", err)
	}
	defer rows.Close()

	records := []*evidence.EscalationRecord{}
	for rows.Next() {
		r, err := scanPgEscalation(rows)
		if err != nil {
			return nil, evidence.NewStorageError("postgres", "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("postgres", "query_escalations", err)
	}
	return records, nil
}

// ResolveEscalation moves a pending escalation to a final status.
func (s *PostgresStorage) ResolveEscalation(ctx context.Context, tenantID, id string, res evidence.Resolution) (*evidence.EscalationRecord, error) {
	if err := checkResolution(res); err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE escalations SET status = $1, resolved_at = $2, resolved_by = $3, note = $4
		 WHERE tenant_id = $5 AND id = $6 AND status = $7
		 RETURNING `+pgEscalationColumns,
		string(res.Status), res.ResolvedAt.UTC(), res.ResolvedBy, res.Note,
		tenantID, id, string(evidence.EscalationPending),
	)
	r, err := scanPgEscalation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetEscalation(ctx, tenantID, id); getErr != nil {
			return nil, getErr
		}
		return nil, evidence.ErrAlreadyResolved
	}
	if err != nil {
		return nil, evidence.NewStorageError("postgres", "resolve_escalation", err)
	}
	return r, nil
}

// DeleteBefore removes decisions and resolved escalations created before
// cutoff.
func (s *PostgresStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM decisions WHERE created_at < $1", cutoff.UTC())
		if err != nil {
			return err
		}
		total += tag.RowsAffected()
		tag, err = tx.Exec(ctx, "DELETE FROM escalations WHERE created_at < $1 AND status <> $2",
			cutoff.UTC(), string(evidence.EscalationPending))
		if err != nil {
			return err
		}
		total += tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, evidence.NewStorageError("postgres", "delete", err)
	}
	return total, nil
}

// Ping verifies the pool can reach the server.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// JSONB columns are selected as text so they scan into strings.
const pgDecisionColumns = `decision_id, tenant_id, decision, reason, risk_level, policy_version,
	matched_rule, escalation_id, rate_limited, action, actor, resource, context::text, context_hash, created_at`

const pgEscalationColumns = `id, tenant_id, decision_id, action, actor, resource, risk_level, status,
	reason, context::text, created_at, resolved_at, resolved_by, note`

func utcTime(t time.Time) any { return t.UTC() }

func scanPgDecision(row pgx.Row) (*evidence.DecisionRecord, error) {
	var (
		r           evidence.DecisionRecord
		riskLevel   string
		contextJSON string
	)
	err := row.Scan(
		&r.DecisionID, &r.TenantID, &r.Decision, &r.Reason, &riskLevel, &r.PolicyVersion,
		&r.MatchedRule, &r.EscalationID, &r.RateLimited, &r.Action, &r.Actor, &r.Resource,
		&contextJSON, &r.ContextHash, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if r.RiskLevel, err = risk.ParseLevel(riskLevel); err != nil {
		return nil, err
	}
	r.Context = decodeContext([]byte(contextJSON))
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func scanPgEscalation(row pgx.Row) (*evidence.EscalationRecord, error) {
	var (
		r           evidence.EscalationRecord
		riskLevel   string
		status      string
		contextJSON string
	)
	err := row.Scan(
		&r.ID, &r.TenantID, &r.DecisionID, &r.Action, &r.Actor, &r.Resource, &riskLevel, &status,
		&r.Reason, &contextJSON, &r.CreatedAt, &r.ResolvedAt, &r.ResolvedBy, &r.Note,
	)
	if err != nil {
		return nil, err
	}
	if r.RiskLevel, err = risk.ParseLevel(riskLevel); err != nil {
		return nil, err
	}
	r.Status = evidence.EscalationStatus(status)
	r.Context = decodeContext([]byte(contextJSON))
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
