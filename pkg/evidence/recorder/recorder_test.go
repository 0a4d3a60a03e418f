package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/evidence/storage"
	"mercator-hq/warden/pkg/risk"
)

type failingStorage struct {
	*storage.MemoryStorage
	err error
}

func (f *failingStorage) StoreDecision(ctx context.Context, r *evidence.DecisionRecord) error {
	return f.err
}

func TestRecord_AssignsIdentityAndEnrichesContext(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewRecorder(store, nil)

	rule := "allow-read"
	record := &evidence.DecisionRecord{
		TenantID:      "acme",
		Decision:      "allow",
		Reason:        "reads are allowed",
		RiskLevel:     risk.Low,
		PolicyVersion: "v1",
		MatchedRule:   &rule,
		Action:        "read",
		Actor:         "alice",
		Resource:      "repo/main",
		Context: map[string]any{
			"password": "hunter2",
			"email":    "alice@example.com",
			"branch":   "main",
		},
	}

	if err := rec.Record(context.Background(), record); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(record.DecisionID) != 32 {
		t.Errorf("DecisionID = %q, want 32 hex chars", record.DecisionID)
	}
	if record.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}

	got, err := store.GetDecision(context.Background(), "acme", record.DecisionID)
	if err != nil {
		t.Fatalf("GetDecision() error = %v", err)
	}

	want := map[string]any{
		"password":       "***REDACTED***",
		"email":          "al***",
		"branch":         "main",
		KeyRiskLevel:     "low",
		KeyPolicyVersion: "v1",
		KeyMatchedRule:   "allow-read",
		KeyRateLimited:   false,
	}
	for k, v := range want {
		if got.Context[k] != v {
			t.Errorf("Context[%q] = %v, want %v", k, got.Context[k], v)
		}
	}
	if v, ok := got.Context[KeyEscalationID]; !ok || v != nil {
		t.Errorf("Context[%q] = %v (present %v), want explicit nil", KeyEscalationID, v, ok)
	}

	raw, _ := json.Marshal(record.Context)
	if record.ContextHash != HashContent(raw) {
		t.Errorf("ContextHash = %q, want hash of stored context", record.ContextHash)
	}
}

func TestRecord_KeepsCallerIdentity(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewRecorder(store, nil)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := &evidence.DecisionRecord{
		DecisionID: "fixed-id",
		TenantID:   "acme",
		Decision:   "deny",
		CreatedAt:  at,
	}
	if err := rec.Record(context.Background(), record); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if record.DecisionID != "fixed-id" || !record.CreatedAt.Equal(at) {
		t.Errorf("identity changed: id=%q created_at=%v", record.DecisionID, record.CreatedAt)
	}
}

func TestRecord_RequiresTenant(t *testing.T) {
	rec := NewRecorder(storage.NewMemoryStorage(), nil)
	err := rec.Record(context.Background(), &evidence.DecisionRecord{Decision: "allow"})
	if !errors.Is(err, evidence.ErrTenantRequired) {
		t.Fatalf("Record() error = %v, want ErrTenantRequired", err)
	}
}

func TestRecord_TruncatesLongValues(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewRecorder(store, &Config{MaxFieldLength: 10})

	record := &evidence.DecisionRecord{
		TenantID: "acme",
		Decision: "allow",
		Context:  map[string]any{"note": strings.Repeat("x", 50), "password": "p"},
	}
	if err := rec.Record(context.Background(), record); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got := record.Context["note"]; got != "xxxxxxx..." {
		t.Errorf("note = %q, want truncated", got)
	}
	// Redaction is disabled in this config.
	if got := record.Context["password"]; got != "p" {
		t.Errorf("password = %q, want unredacted", got)
	}
}

func TestRecord_StorageFailureIsWrapped(t *testing.T) {
	cause := errors.New("disk full")
	rec := NewRecorder(&failingStorage{MemoryStorage: storage.NewMemoryStorage(), err: cause}, nil)

	err := rec.Record(context.Background(), &evidence.DecisionRecord{TenantID: "acme", Decision: "allow"})
	var recErr *evidence.RecorderError
	if !errors.As(err, &recErr) {
		t.Fatalf("Record() error = %T %v, want *RecorderError", err, err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Record() error does not wrap cause: %v", err)
	}
	if recErr.RecordID == "" {
		t.Error("RecorderError.RecordID is empty")
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 2, "ab"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := TruncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestEscalationManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	m := NewEscalationManager(store)

	id, err := m.Open(ctx, EscalationInput{
		TenantID:   "acme",
		DecisionID: "d1",
		Action:     "deploy",
		Actor:      "bob",
		Resource:   "prod/api",
		RiskLevel:  risk.High,
		Reason:     "production deploy requires review",
		Context:    map[string]any{"api_key": "sk-123"},
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	esc, err := m.Get(ctx, "acme", id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if esc.Status != evidence.EscalationPending {
		t.Errorf("Status = %q, want pending", esc.Status)
	}
	if esc.Context["api_key"] != "***REDACTED***" {
		t.Errorf("api_key = %v, want redacted", esc.Context["api_key"])
	}

	if _, err := m.Get(ctx, "other", id); !errors.Is(err, evidence.ErrNotFound) {
		t.Errorf("Get() from another tenant error = %v, want ErrNotFound", err)
	}

	resolved, err := m.Resolve(ctx, "acme", id, evidence.Resolution{
		Status:     evidence.EscalationApproved,
		ResolvedBy: "carol",
		Note:       "looks fine",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != evidence.EscalationApproved || resolved.ResolvedAt == nil || resolved.ResolvedBy != "carol" {
		t.Errorf("Resolve() = %+v", resolved)
	}

	_, err = m.Resolve(ctx, "acme", id, evidence.Resolution{Status: evidence.EscalationRejected, ResolvedBy: "dave"})
	if !errors.Is(err, evidence.ErrAlreadyResolved) {
		t.Errorf("second Resolve() error = %v, want ErrAlreadyResolved", err)
	}
}

func TestEscalationManager_ResolveRejectsPendingStatus(t *testing.T) {
	ctx := context.Background()
	m := NewEscalationManager(storage.NewMemoryStorage())
	id, err := m.Open(ctx, EscalationInput{TenantID: "acme", Action: "deploy"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_, err = m.Resolve(ctx, "acme", id, evidence.Resolution{Status: evidence.EscalationPending})
	if !errors.Is(err, evidence.ErrInvalidStatus) {
		t.Errorf("Resolve(pending) error = %v, want ErrInvalidStatus", err)
	}
}

func TestEscalationManager_List(t *testing.T) {
	ctx := context.Background()
	m := NewEscalationManager(storage.NewMemoryStorage())

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		m.now = func() time.Time { return at }
		id, err := m.Open(ctx, EscalationInput{TenantID: "acme", Action: "deploy"})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := m.Open(ctx, EscalationInput{TenantID: "other", Action: "deploy"}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := m.Resolve(ctx, "acme", ids[0], evidence.Resolution{Status: evidence.EscalationRejected, ResolvedBy: "x"}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	pending, err := m.List(ctx, &evidence.EscalationQuery{TenantID: "acme", Status: evidence.EscalationPending})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("List(pending) returned %d, want 2", len(pending))
	}
	if pending[0].ID != ids[2] {
		t.Errorf("List() not newest first: got %q, want %q", pending[0].ID, ids[2])
	}

	if _, err := m.List(ctx, &evidence.EscalationQuery{}); !errors.Is(err, evidence.ErrTenantRequired) {
		t.Errorf("List() without tenant error = %v, want ErrTenantRequired", err)
	}
	if _, err := m.List(ctx, &evidence.EscalationQuery{TenantID: "acme", Status: "open"}); err == nil {
		t.Error("List() with unknown status succeeded")
	}
}

func TestEscalationManager_OpenRequiresTenant(t *testing.T) {
	m := NewEscalationManager(storage.NewMemoryStorage())
	if _, err := m.Open(context.Background(), EscalationInput{Action: "deploy"}); !errors.Is(err, evidence.ErrTenantRequired) {
		t.Errorf("Open() error = %v, want ErrTenantRequired", err)
	}
}
