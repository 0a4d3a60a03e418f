package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"mercator-hq/warden/pkg/policy/rules"
	"mercator-hq/warden/pkg/risk"
)

const rulesSchema = `
CREATE TABLE IF NOT EXISTS policy_rules (
	tenant_id TEXT NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	effect TEXT NOT NULL,
	action_pattern TEXT NOT NULL DEFAULT '*',
	resource_pattern TEXT NOT NULL DEFAULT '*',
	actor_pattern TEXT NOT NULL DEFAULT '*',
	min_risk TEXT,
	reason TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_policy_rules_order
	ON policy_rules(tenant_id, enabled, priority DESC, created_at ASC);
`

const ruleColumns = `id, tenant_id, name, effect, action_pattern, resource_pattern, actor_pattern,
	min_risk, reason, priority, enabled, created_at, updated_at`

// SQLiteStore is a rules.Store backed by SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	insertStmt *sql.Stmt
	getStmt    *sql.Stmt
	updateStmt *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewSQLiteStore opens (or creates) the rule database at path.
func NewSQLiteStore(path string, busyTimeout time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "policy.rules.sqlite"),
		now:    time.Now,
	}

	if _, err := db.Exec(rulesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("rule store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO policy_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT ` + ruleColumns + `
		FROM policy_rules
		WHERE tenant_id = ? AND id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.updateStmt, err = s.db.Prepare(`
		UPDATE policy_rules SET
			name = ?, effect = ?, action_pattern = ?, resource_pattern = ?, actor_pattern = ?,
			min_risk = ?, reason = ?, priority = ?, enabled = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare update statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM policy_rules
		WHERE tenant_id = ? AND id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

// Create implements rules.Store.
func (s *SQLiteStore) Create(ctx context.Context, tenantID string, r *rules.Rule) error {
	prepareForCreate(r, tenantID, s.now())
	if err := r.Validate(); err != nil {
		return err
	}

	_, err := s.insertStmt.ExecContext(ctx,
		r.ID, tenantID, r.Name, string(r.Effect),
		r.ActionPattern, r.ResourcePattern, r.ActorPattern,
		minRiskValue(r.MinRisk), r.Reason, r.Priority, r.Enabled,
		r.CreatedAt.UnixNano(), r.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// Get implements rules.Store.
func (s *SQLiteStore) Get(ctx context.Context, tenantID, id string) (*rules.Rule, error) {
	r, err := scanRule(s.getStmt.QueryRowContext(ctx, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rules.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}
	return r, nil
}

// List implements rules.Store.
func (s *SQLiteStore) List(ctx context.Context, tenantID string, enabledOnly bool) ([]rules.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM policy_rules WHERE tenant_id = ?`
	if enabledOnly {
		query += ` AND enabled = 1`
	}
	query += ` ORDER BY priority DESC, created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return out, nil
}

// Update implements rules.Store.
func (s *SQLiteStore) Update(ctx context.Context, tenantID, id string, patch rules.Patch) (*rules.Rule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	r, err := scanRule(tx.StmtContext(ctx, s.getStmt).QueryRowContext(ctx, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rules.ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule: %w", err)
	}

	patch.Apply(r, s.now())
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}

	_, err = tx.StmtContext(ctx, s.updateStmt).ExecContext(ctx,
		r.Name, string(r.Effect), r.ActionPattern, r.ResourcePattern, r.ActorPattern,
		minRiskValue(r.MinRisk), r.Reason, r.Priority, r.Enabled, r.UpdatedAt.UnixNano(),
		tenantID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rule update: %w", err)
	}
	return r, nil
}

// Delete implements rules.Store.
func (s *SQLiteStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.deleteStmt.ExecContext(ctx, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return rules.ErrRuleNotFound
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements rules.Store.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.insertStmt, s.getStmt, s.updateStmt, s.deleteStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*rules.Rule, error) {
	var (
		r         rules.Rule
		effect    string
		minRisk   sql.NullString
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.Name, &effect,
		&r.ActionPattern, &r.ResourcePattern, &r.ActorPattern,
		&minRisk, &r.Reason, &r.Priority, &r.Enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.Effect = rules.Effect(effect)
	if minRisk.Valid {
		level, err := risk.ParseLevel(minRisk.String)
		if err != nil {
			return nil, err
		}
		r.MinRisk = &level
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &r, nil
}

func minRiskValue(level *risk.Level) any {
	if level == nil {
		return nil
	}
	return level.String()
}
