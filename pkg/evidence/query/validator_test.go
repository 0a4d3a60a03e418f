package query

import (
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/warden/pkg/evidence"
)

func TestValidateDecisions(t *testing.T) {
	now := time.Now()
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		query   *evidence.DecisionQuery
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid query with all filters",
			query: &evidence.DecisionQuery{
				TenantID:  "acme",
				StartTime: &past,
				EndTime:   &now,
				Action:    "deploy",
				Actor:     "agent-1",
				Decision:  "escalate",
				Limit:     100,
				SortOrder: "asc",
			},
		},
		{
			name:  "valid minimal query",
			query: &evidence.DecisionQuery{TenantID: "acme"},
		},
		{
			name:    "missing tenant",
			query:   &evidence.DecisionQuery{Limit: 10},
			wantErr: true,
			errMsg:  "tenant id is required",
		},
		{
			name:    "negative limit",
			query:   &evidence.DecisionQuery{TenantID: "acme", Limit: -1},
			wantErr: true,
			errMsg:  "limit must be >= 0",
		},
		{
			name:    "limit too large",
			query:   &evidence.DecisionQuery{TenantID: "acme", Limit: MaxLimit + 1},
			wantErr: true,
			errMsg:  "limit must be <=",
		},
		{
			name:    "negative offset",
			query:   &evidence.DecisionQuery{TenantID: "acme", Offset: -5},
			wantErr: true,
			errMsg:  "offset must be >= 0",
		},
		{
			name:    "unknown decision",
			query:   &evidence.DecisionQuery{TenantID: "acme", Decision: "block"},
			wantErr: true,
			errMsg:  "invalid decision",
		},
		{
			name:    "unknown sort order",
			query:   &evidence.DecisionQuery{TenantID: "acme", SortOrder: "sideways"},
			wantErr: true,
			errMsg:  "invalid sort order",
		},
		{
			name:    "inverted time range",
			query:   &evidence.DecisionQuery{TenantID: "acme", StartTime: &now, EndTime: &past},
			wantErr: true,
			errMsg:  "start_time must be before end_time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDecisions(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateDecisions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var qe *evidence.QueryError
			if !errors.As(err, &qe) {
				t.Errorf("expected *evidence.QueryError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestValidateDecisions_MissingTenantIsSentinel(t *testing.T) {
	err := ValidateDecisions(&evidence.DecisionQuery{})
	if !errors.Is(err, evidence.ErrTenantRequired) {
		t.Errorf("expected ErrTenantRequired, got %v", err)
	}
}

func TestValidateEscalations(t *testing.T) {
	if err := ValidateEscalations(&evidence.EscalationQuery{TenantID: "acme", Status: evidence.EscalationPending}); err != nil {
		t.Errorf("valid query rejected: %v", err)
	}
	if err := ValidateEscalations(&evidence.EscalationQuery{TenantID: "acme", Status: "lost"}); err == nil {
		t.Error("unknown status accepted")
	}
	if err := ValidateEscalations(&evidence.EscalationQuery{}); !errors.Is(err, evidence.ErrTenantRequired) {
		t.Errorf("missing tenant: got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	q := &evidence.DecisionQuery{TenantID: "acme"}
	ApplyDecisionDefaults(q)
	if q.Limit != DefaultLimit || q.SortOrder != "desc" {
		t.Errorf("defaults not applied: %+v", q)
	}

	q = &evidence.DecisionQuery{TenantID: "acme", Limit: 5, SortOrder: "asc"}
	ApplyDecisionDefaults(q)
	if q.Limit != 5 || q.SortOrder != "asc" {
		t.Errorf("explicit values overwritten: %+v", q)
	}

	eq := &evidence.EscalationQuery{TenantID: "acme"}
	ApplyEscalationDefaults(eq)
	if eq.Limit != DefaultLimit {
		t.Errorf("escalation limit = %d", eq.Limit)
	}
}
