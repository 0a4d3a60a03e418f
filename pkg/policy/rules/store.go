package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mercator-hq/warden/pkg/risk"
)

var (
	// ErrRuleNotFound is returned when a rule does not exist for the tenant.
	ErrRuleNotFound = errors.New("policy rule not found")

	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("invalid policy rule")
)

// Store persists tenant rules. Every method is scoped by tenant id and
// implementations must never return another tenant's rules.
type Store interface {
	// Create inserts a rule, assigning ID and timestamps when unset.
	Create(ctx context.Context, tenantID string, r *Rule) error

	// Get returns one rule or ErrRuleNotFound.
	Get(ctx context.Context, tenantID, id string) (*Rule, error)

	// List returns the tenant's rules ordered by priority descending, then
	// creation time ascending. With enabledOnly set, disabled rules are
	// skipped.
	List(ctx context.Context, tenantID string, enabledOnly bool) ([]Rule, error)

	// Update applies a partial update and bumps UpdatedAt.
	Update(ctx context.Context, tenantID, id string, patch Patch) (*Rule, error)

	// Delete removes a rule or returns ErrRuleNotFound.
	Delete(ctx context.Context, tenantID, id string) error

	// Close releases resources held by the store.
	Close() error
}

// Patch is a partial rule update. Nil fields are left unchanged.
type Patch struct {
	Name            *string     `json:"name,omitempty"`
	Effect          *Effect     `json:"effect,omitempty"`
	ActionPattern   *string     `json:"action_pattern,omitempty"`
	ResourcePattern *string     `json:"resource_pattern,omitempty"`
	ActorPattern    *string     `json:"actor_pattern,omitempty"`
	MinRisk         *risk.Level `json:"min_risk,omitempty"`
	Reason          *string     `json:"reason,omitempty"`
	Priority        *int        `json:"priority,omitempty"`
	Enabled         *bool       `json:"enabled,omitempty"`
}

// Apply copies the set fields of p onto r and stamps UpdatedAt.
func (p Patch) Apply(r *Rule, now time.Time) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Effect != nil {
		r.Effect = *p.Effect
	}
	if p.ActionPattern != nil {
		r.ActionPattern = *p.ActionPattern
	}
	if p.ResourcePattern != nil {
		r.ResourcePattern = *p.ResourcePattern
	}
	if p.ActorPattern != nil {
		r.ActorPattern = *p.ActorPattern
	}
	if p.MinRisk != nil {
		level := *p.MinRisk
		r.MinRisk = &level
	}
	if p.Reason != nil {
		r.Reason = *p.Reason
	}
	if p.Priority != nil {
		r.Priority = *p.Priority
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	r.UpdatedAt = now
}

// Normalize fills empty patterns with "*".
func (r *Rule) Normalize() {
	if strings.TrimSpace(r.ActionPattern) == "" {
		r.ActionPattern = "*"
	}
	if strings.TrimSpace(r.ResourcePattern) == "" {
		r.ResourcePattern = "*"
	}
	if strings.TrimSpace(r.ActorPattern) == "" {
		r.ActorPattern = "*"
	}
}

// Validate checks that a rule can be stored or evaluated.
func (r *Rule) Validate() error {
	if !r.Effect.Valid() {
		return fmt.Errorf("%w: effect %q must be allow, deny or escalate", ErrInvalidRule, r.Effect)
	}
	if r.MinRisk != nil && (*r.MinRisk < risk.Low || *r.MinRisk > risk.Critical) {
		return fmt.Errorf("%w: min_risk out of range", ErrInvalidRule)
	}
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalidRule)
	}
	return nil
}
