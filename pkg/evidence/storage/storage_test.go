package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/risk"
)

type backendFactory func(t *testing.T) evidence.Storage

func backends(t *testing.T) map[string]backendFactory {
	b := map[string]backendFactory{
		"memory": func(t *testing.T) evidence.Storage { return NewMemoryStorage() },
		"sqlite": func(t *testing.T) evidence.Storage {
			s, err := NewSQLiteStorage(&SQLiteConfig{
				Path:    filepath.Join(t.TempDir(), "evidence.db"),
				WALMode: true,
			})
			if err != nil {
				t.Fatalf("NewSQLiteStorage() error = %v", err)
			}
			return s
		},
	}
	if dsn := os.Getenv("WARDEN_TEST_POSTGRES_URL"); dsn != "" {
		b["postgres"] = func(t *testing.T) evidence.Storage {
			ctx := context.Background()
			pool, err := NewPostgresPool(ctx, PostgresConfig{URL: dsn})
			if err != nil {
				t.Fatalf("NewPostgresPool() error = %v", err)
			}
			if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS decisions, escalations"); err != nil {
				t.Fatal(err)
			}
			s, err := NewPostgresStorage(ctx, pool)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}
	}
	return b
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func decision(id, tenant, verdict string, offset time.Duration) *evidence.DecisionRecord {
	return &evidence.DecisionRecord{
		DecisionID:    id,
		TenantID:      tenant,
		Decision:      verdict,
		Reason:        "test",
		RiskLevel:     risk.Medium,
		PolicyVersion: "v1",
		Action:        "write_file",
		Actor:         "agent-1",
		Resource:      "repo",
		Context:       map[string]any{"risk_level": "medium"},
		CreatedAt:     base.Add(offset),
	}
}

func escalation(id, tenant string, offset time.Duration) *evidence.EscalationRecord {
	return &evidence.EscalationRecord{
		ID:         id,
		TenantID:   tenant,
		DecisionID: "d-" + id,
		Action:     "deploy",
		Actor:      "agent-1",
		Resource:   "svc-prod",
		RiskLevel:  risk.High,
		Status:     evidence.EscalationPending,
		Reason:     "needs review",
		CreatedAt:  base.Add(offset),
	}
}

func TestStorage_Decisions(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer s.Close()

			rule := "deny-credential-exfiltration"
			d1 := decision("d1", "acme", "allow", 0)
			d2 := decision("d2", "acme", "deny", time.Minute)
			d2.MatchedRule = &rule
			d2.RiskLevel = risk.High
			d3 := decision("d3", "globex", "allow", 2*time.Minute)

			for _, d := range []*evidence.DecisionRecord{d1, d2, d3} {
				if err := s.StoreDecision(ctx, d); err != nil {
					t.Fatalf("StoreDecision(%s) error = %v", d.DecisionID, err)
				}
			}

			got, err := s.GetDecision(ctx, "acme", "d2")
			if err != nil {
				t.Fatalf("GetDecision() error = %v", err)
			}
			if got.MatchedRule == nil || *got.MatchedRule != rule {
				t.Errorf("matched rule = %v", got.MatchedRule)
			}
			if got.RiskLevel != risk.High || !got.CreatedAt.Equal(d2.CreatedAt) {
				t.Errorf("round trip mismatch: %+v", got)
			}
			if got.Context["risk_level"] != "medium" {
				t.Errorf("context = %v", got.Context)
			}

			// Another tenant's id is not visible.
			if _, err := s.GetDecision(ctx, "acme", "d3"); !errors.Is(err, evidence.ErrNotFound) {
				t.Errorf("cross-tenant get: got %v", err)
			}

			all, err := s.QueryDecisions(ctx, &evidence.DecisionQuery{TenantID: "acme"})
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 2 || all[0].DecisionID != "d2" || all[1].DecisionID != "d1" {
				t.Errorf("expected newest first [d2 d1], got %v", ids(all))
			}

			asc, _ := s.QueryDecisions(ctx, &evidence.DecisionQuery{TenantID: "acme", SortOrder: "asc"})
			if len(asc) != 2 || asc[0].DecisionID != "d1" {
				t.Errorf("asc order = %v", ids(asc))
			}

			denied, _ := s.QueryDecisions(ctx, &evidence.DecisionQuery{TenantID: "acme", Decision: "deny"})
			if len(denied) != 1 || denied[0].DecisionID != "d2" {
				t.Errorf("deny filter = %v", ids(denied))
			}

			start := base.Add(30 * time.Second)
			later, _ := s.QueryDecisions(ctx, &evidence.DecisionQuery{TenantID: "acme", StartTime: &start})
			if len(later) != 1 || later[0].DecisionID != "d2" {
				t.Errorf("time filter = %v", ids(later))
			}

			page, _ := s.QueryDecisions(ctx, &evidence.DecisionQuery{TenantID: "acme", Limit: 1, Offset: 1})
			if len(page) != 1 || page[0].DecisionID != "d1" {
				t.Errorf("pagination = %v", ids(page))
			}

			n, err := s.CountDecisions(ctx, &evidence.DecisionQuery{TenantID: "acme", Limit: 1})
			if err != nil || n != 2 {
				t.Errorf("CountDecisions() = %d, %v; want 2", n, err)
			}

			if _, err := s.QueryDecisions(ctx, &evidence.DecisionQuery{}); !errors.Is(err, evidence.ErrTenantRequired) {
				t.Errorf("query without tenant: got %v", err)
			}
			if err := s.StoreDecision(ctx, decision("dx", "", "allow", 0)); !errors.Is(err, evidence.ErrTenantRequired) {
				t.Errorf("store without tenant: got %v", err)
			}
			if err := s.StoreDecision(ctx, d1); err == nil {
				t.Error("decisions are append-only; duplicate id must fail")
			}
		})
	}
}

func TestStorage_Escalations(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer s.Close()

			for _, e := range []*evidence.EscalationRecord{
				escalation("e1", "acme", 0),
				escalation("e2", "acme", time.Minute),
				escalation("e3", "globex", 0),
			} {
				if err := s.StoreEscalation(ctx, e); err != nil {
					t.Fatal(err)
				}
			}

			pending, err := s.QueryEscalations(ctx, &evidence.EscalationQuery{TenantID: "acme", Status: evidence.EscalationPending})
			if err != nil {
				t.Fatal(err)
			}
			if len(pending) != 2 || pending[0].ID != "e2" {
				t.Fatalf("pending = %v", escIDs(pending))
			}

			at := base.Add(time.Hour)
			res := evidence.Resolution{Status: evidence.EscalationApproved, ResolvedBy: "alice", Note: "ok", ResolvedAt: at}
			resolved, err := s.ResolveEscalation(ctx, "acme", "e1", res)
			if err != nil {
				t.Fatalf("ResolveEscalation() error = %v", err)
			}
			if resolved.Status != evidence.EscalationApproved || resolved.ResolvedBy != "alice" ||
				resolved.ResolvedAt == nil || !resolved.ResolvedAt.Equal(at) {
				t.Errorf("unexpected resolution %+v", resolved)
			}

			if _, err := s.ResolveEscalation(ctx, "acme", "e1", res); !errors.Is(err, evidence.ErrAlreadyResolved) {
				t.Errorf("second resolve: got %v", err)
			}
			if _, err := s.ResolveEscalation(ctx, "acme", "e3", res); !errors.Is(err, evidence.ErrNotFound) {
				t.Errorf("cross-tenant resolve: got %v", err)
			}
			bad := res
			bad.Status = evidence.EscalationPending
			if _, err := s.ResolveEscalation(ctx, "acme", "e2", bad); !errors.Is(err, evidence.ErrInvalidStatus) {
				t.Errorf("resolve to pending: got %v", err)
			}

			got, err := s.GetEscalation(ctx, "acme", "e1")
			if err != nil || got.Status != evidence.EscalationApproved {
				t.Errorf("GetEscalation() = %+v, %v", got, err)
			}
			approved, _ := s.QueryEscalations(ctx, &evidence.EscalationQuery{TenantID: "acme", Status: evidence.EscalationApproved})
			if len(approved) != 1 {
				t.Errorf("approved = %v", escIDs(approved))
			}
		})
	}
}

func TestStorage_DeleteBefore(t *testing.T) {
	for name, factory := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer s.Close()

			_ = s.StoreDecision(ctx, decision("old", "acme", "allow", -48*time.Hour))
			_ = s.StoreDecision(ctx, decision("new", "acme", "allow", 0))
			_ = s.StoreEscalation(ctx, escalation("old-pending", "acme", -48*time.Hour))
			_ = s.StoreEscalation(ctx, escalation("old-resolved", "acme", -48*time.Hour))
			if _, err := s.ResolveEscalation(ctx, "acme", "old-resolved", evidence.Resolution{
				Status: evidence.EscalationRejected, ResolvedBy: "bob", ResolvedAt: base,
			}); err != nil {
				t.Fatal(err)
			}

			deleted, err := s.DeleteBefore(ctx, base.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("DeleteBefore() error = %v", err)
			}
			if deleted != 2 {
				t.Errorf("deleted = %d, want 2", deleted)
			}
			if _, err := s.GetDecision(ctx, "acme", "new"); err != nil {
				t.Errorf("recent decision removed: %v", err)
			}
			if _, err := s.GetEscalation(ctx, "acme", "old-pending"); err != nil {
				t.Errorf("pending escalation removed: %v", err)
			}
			if _, err := s.GetEscalation(ctx, "acme", "old-resolved"); !errors.Is(err, evidence.ErrNotFound) {
				t.Errorf("resolved escalation kept: %v", err)
			}
		})
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.StoreDecision(ctx, decision("d1", "acme", "allow", 0)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStorage(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.GetDecision(ctx, "acme", "d1"); err != nil {
		t.Errorf("decision lost across reopen: %v", err)
	}
}

func TestDecisionWhere_Placeholders(t *testing.T) {
	limited := true
	start := base
	q := &evidence.DecisionQuery{TenantID: "acme", StartTime: &start, Decision: "deny", RateLimited: &limited}

	pg := decisionWhere(dollar, q, utcTime)
	want := "tenant_id = $1 AND created_at >= $2 AND decision = $3 AND rate_limited = $4"
	if pg.String() != want {
		t.Errorf("postgres where = %q, want %q", pg.String(), want)
	}
	if len(pg.args) != 4 || pg.args[0] != "acme" {
		t.Errorf("args = %v", pg.args)
	}

	lite := decisionWhere(questionMark, q, unixNano)
	if lite.String() != "tenant_id = ? AND created_at >= ? AND decision = ? AND rate_limited = ?" {
		t.Errorf("sqlite where = %q", lite.String())
	}
	if lite.args[1] != base.UnixNano() {
		t.Errorf("sqlite time arg = %v", lite.args[1])
	}
}

func TestValidatePostgresTLS(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"postgres://u:p@db:5432/x?sslmode=verify-full", false},
		{"postgres://u:p@db:5432/x?sslmode=require", false},
		{"postgres://u:p@db:5432/x?sslmode=prefer", true},
		{"postgres://u:p@db:5432/x", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		err := validatePostgresTLS(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("validatePostgresTLS(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestNewPostgresPool_RequiresURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), PostgresConfig{}); err == nil {
		t.Error("expected error for empty url")
	}
}

func ids(records []*evidence.DecisionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.DecisionID
	}
	return out
}

func escIDs(records []*evidence.EscalationRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = fmt.Sprintf("%s:%s", r.ID, r.Status)
	}
	return out
}
