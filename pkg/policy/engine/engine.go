package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/evidence/recorder"
	"mercator-hq/warden/pkg/ids"
	"mercator-hq/warden/pkg/limits/ratelimit"
	"mercator-hq/warden/pkg/policy/bundle"
	"mercator-hq/warden/pkg/policy/rules"
	"mercator-hq/warden/pkg/risk"
	"mercator-hq/warden/pkg/telemetry/metrics"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// BundleSource returns a tenant's active policy bundle.
type BundleSource interface {
	Active(ctx context.Context, tenantID string) (*bundle.PolicyBundle, error)
}

// RateLimiter counts a request against a fixed-window budget.
type RateLimiter interface {
	Check(ctx context.Context, req ratelimit.CounterRequest, rule ratelimit.Rule, now time.Time) (*ratelimit.CheckResult, error)
}

// RuleLister lists a tenant's CRUD-managed rules.
type RuleLister interface {
	List(ctx context.Context, tenantID string, enabledOnly bool) ([]rules.Rule, error)
}

// DecisionRecorder persists decisions.
type DecisionRecorder interface {
	Record(ctx context.Context, record *evidence.DecisionRecord) error
}

// EscalationOpener opens escalations for escalated decisions.
type EscalationOpener interface {
	Open(ctx context.Context, in recorder.EscalationInput) (string, error)
}

// Config contains engine configuration.
type Config struct {
	// TenantRules consults tenant rules when no bundle rule matches.
	// Default: true
	TenantRules bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{TenantRules: true}
}

// Components are the collaborators of an Engine. Bundles, Limiter, Recorder
// and Escalations are required.
type Components struct {
	Bundles     BundleSource
	Limiter     RateLimiter
	TenantRules RuleLister
	Recorder    DecisionRecorder
	Escalations EscalationOpener
	Metrics     *metrics.Collector
	Tracer      *tracing.Tracer
}

// Engine evaluates governed actions.
type Engine struct {
	bundles     BundleSource
	limiter     RateLimiter
	tenantRules RuleLister
	recorder    DecisionRecorder
	escalations EscalationOpener
	metrics     *metrics.Collector
	tracer      *tracing.Tracer
	config      *Config
	logger      *slog.Logger
	now         func() time.Time
}

// New creates an Engine.
func New(c Components, config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	switch {
	case c.Bundles == nil:
		return nil, errors.New("bundle source cannot be nil")
	case c.Limiter == nil:
		return nil, errors.New("rate limiter cannot be nil")
	case c.Recorder == nil:
		return nil, errors.New("decision recorder cannot be nil")
	case c.Escalations == nil:
		return nil, errors.New("escalation opener cannot be nil")
	}
	return &Engine{
		bundles:     c.Bundles,
		limiter:     c.Limiter,
		tenantRules: c.TenantRules,
		recorder:    c.Recorder,
		escalations: c.Escalations,
		metrics:     c.Metrics,
		tracer:      c.Tracer,
		config:      config,
		logger:      slog.Default().With("component", "policy.engine"),
		now:         time.Now,
	}, nil
}

// Evaluate decides req and records the decision.
func (e *Engine) Evaluate(ctx context.Context, req *Request) (*evidence.DecisionRecord, error) {
	res, err := e.Check(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Decision, nil
}

// verdict is the working state of one evaluation.
type verdict struct {
	effect      rules.Effect
	reason      string
	source      string
	ruleID      *string
	rateLimited bool
}

// Check is Evaluate with the evaluation details.
//
// An escalation is opened before its decision is recorded. If recording
// then fails, the escalation stays pending and names a decision id that
// was never stored; both ids are logged at error level.
func (e *Engine) Check(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, &RequestError{Missing: []string{"request"}}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := e.now()
	level := risk.Classify(req.Action, req.Resource, req.Context)
	ctx, span := e.tracer.Start(ctx, "policy.evaluate", tracing.WithRiskLevel(level.String()))
	defer span.End()
	tracing.SetRequestAttributes(span, req.TenantID, req.Action, req.Actor)

	result := &Result{Stages: []Stage{StageUnclassified}}

	pb := e.activeBundle(ctx, req.TenantID)

	class := risk.ActionClass(req.Action, level)
	result.ActionClass = class
	result.Stages = append(result.Stages, StageRiskClassified)

	v, err := e.checkRate(ctx, req, pb, level, class, start)
	if err != nil {
		tracing.SetError(span, err)
		return nil, newEvaluationError(req.TenantID, StageRiskClassified, err)
	}
	result.Stages = append(result.Stages, StageRateChecked)

	if v == nil {
		v, err = e.matchRules(ctx, req, pb, level)
		if err != nil {
			tracing.SetError(span, err)
			return nil, newEvaluationError(req.TenantID, StageRateChecked, err)
		}
		result.Stages = append(result.Stages, StageRuleMatched)
	}

	record := &evidence.DecisionRecord{
		DecisionID:    ids.New(),
		TenantID:      req.TenantID,
		Decision:      string(v.effect),
		Reason:        v.reason,
		RiskLevel:     level,
		PolicyVersion: pb.Version,
		MatchedRule:   v.ruleID,
		RateLimited:   v.rateLimited,
		Action:        req.Action,
		Actor:         req.Actor,
		Resource:      req.Resource,
		Context:       req.Context,
	}

	if v.effect == rules.EffectEscalate {
		escalationID, err := e.escalations.Open(ctx, recorder.EscalationInput{
			TenantID:   req.TenantID,
			DecisionID: record.DecisionID,
			Action:     req.Action,
			Actor:      req.Actor,
			Resource:   req.Resource,
			RiskLevel:  level,
			Reason:     v.reason,
			Context:    req.Context,
		})
		if err != nil {
			tracing.SetError(span, err)
			return nil, newEvaluationError(req.TenantID, StageDecided, err)
		}
		record.EscalationID = &escalationID
		e.metrics.RecordEscalation(level.String())
	}
	result.Stages = append(result.Stages, StageDecided)

	if err := e.recorder.Record(ctx, record); err != nil {
		if record.EscalationID != nil {
			e.logger.ErrorContext(ctx, "decision not recorded, escalation orphaned",
				"tenant_id", req.TenantID,
				"decision_id", record.DecisionID,
				"escalation_id", *record.EscalationID,
				"error", err,
			)
		}
		tracing.SetError(span, err)
		return nil, newEvaluationError(req.TenantID, StageDecided, err)
	}
	result.Stages = append(result.Stages, StageRecorded)
	result.Decision = record
	result.Source = v.source

	tracing.SetDecisionAttributes(span, record.Decision, level.String(), pb.Version)
	tracing.SetRuleAttributes(span, v.source, derefString(v.ruleID))
	e.metrics.RecordDecision(record.Decision, v.source, level.String(), e.now().Sub(start))
	if v.ruleID != nil {
		e.metrics.RecordRuleHit(*v.ruleID)
	}

	e.logger.DebugContext(ctx, "policy decision",
		"tenant_id", req.TenantID,
		"decision_id", record.DecisionID,
		"decision", record.Decision,
		"source", v.source,
		"risk_level", level.String(),
		"action_class", class,
		"policy_version", pb.Version,
	)
	return result, nil
}

// activeBundle returns the tenant's active bundle, or the built-in bundle
// when it cannot be loaded.
func (e *Engine) activeBundle(ctx context.Context, tenantID string) *bundle.PolicyBundle {
	pb, err := e.bundles.Active(ctx, tenantID)
	if err == nil && pb != nil {
		return pb
	}
	e.logger.WarnContext(ctx, "active policy bundle unavailable, using built-in bundle",
		"tenant_id", tenantID,
		"error", err,
	)
	e.metrics.RecordBundleFallback()
	return bundle.Builtin()
}

// checkRate counts the request and returns a forced verdict when the
// budget is spent or the limiter's circuit is open. A nil verdict means
// evaluation continues.
func (e *Engine) checkRate(ctx context.Context, req *Request, pb *bundle.PolicyBundle, level risk.Level, class string, now time.Time) (*verdict, error) {
	ctx, span := e.tracer.Start(ctx, "policy.rate_limit")
	defer span.End()

	rule := pb.EffectiveRateLimit(class, level)
	res, err := e.limiter.Check(ctx, ratelimit.CounterRequest{
		TenantID:    req.TenantID,
		Actor:       req.Actor,
		ActionClass: class,
	}, rule, now)
	if errors.Is(err, ratelimit.ErrCircuitOpen) {
		e.metrics.RecordRateLimit("fixed_window", class, "circuit_open")
		tracing.SetRateLimitAttributes(span, class, 0, true)
		return &verdict{
			effect:      rules.EffectEscalate,
			reason:      ReasonCircuitOpen,
			source:      SourceRateLimit,
			rateLimited: true,
		}, nil
	}
	if err != nil {
		e.metrics.RecordRateLimit("fixed_window", class, "error")
		tracing.SetError(span, err)
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	tracing.SetRateLimitAttributes(span, class, res.Count, !res.Allowed)
	if !res.Allowed {
		e.metrics.RecordRateLimit("fixed_window", class, "exceeded")
		return &verdict{
			effect:      rules.EffectEscalate,
			reason:      ReasonRateLimited,
			source:      SourceRateLimit,
			rateLimited: true,
		}, nil
	}
	e.metrics.RecordRateLimit("fixed_window", class, "allowed")
	return nil, nil
}

// matchRules runs the bundle rules, then the tenant rules, then the
// fallbacks.
func (e *Engine) matchRules(ctx context.Context, req *Request, pb *bundle.PolicyBundle, level risk.Level) (*verdict, error) {
	q := rules.Query{
		Action:   req.Action,
		Resource: req.Resource,
		Actor:    req.Actor,
		Risk:     level,
	}

	bundleRules := rules.Prepare(pb.MatcherRules())
	if r, ok := rules.MatcherFor(rules.SourceBundle).Match(bundleRules, q); ok {
		return ruleVerdict(r, SourceBundle), nil
	}

	if e.config.TenantRules && e.tenantRules != nil {
		tenantRules, err := e.tenantRules.List(ctx, req.TenantID, true)
		if err != nil {
			return nil, fmt.Errorf("list tenant rules: %w", err)
		}
		if r, ok := rules.MatcherFor(rules.SourceTenant).Match(tenantRules, q); ok {
			return ruleVerdict(r, SourceTenant), nil
		}
	}

	if level.AtLeast(risk.High) {
		return &verdict{effect: rules.EffectEscalate, reason: ReasonHighRiskNoPolicy, source: SourceFallback}, nil
	}
	fb := rules.Fallback(req.Action)
	return &verdict{effect: fb.Effect, reason: fb.Reason, source: SourceFallback}, nil
}

func ruleVerdict(r *rules.Rule, source string) *verdict {
	id := r.ID
	return &verdict{effect: r.Effect, reason: r.Reason, source: source, ruleID: &id}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
