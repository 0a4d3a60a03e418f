package recorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"

	"mercator-hq/warden/pkg/evidence"
	"mercator-hq/warden/pkg/ids"
	"mercator-hq/warden/pkg/security/secrets"
)

// Context keys merged into every stored decision context.
const (
	KeyRiskLevel     = "risk_level"
	KeyPolicyVersion = "policy_version"
	KeyMatchedRule   = "matched_rule"
	KeyEscalationID  = "escalation_id"
	KeyRateLimited   = "rate_limited"
)

// Config contains configuration for the decision recorder.
type Config struct {
	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// RedactContext masks sensitive context fields before storage.
	// Default: true
	RedactContext bool

	// MaxFieldLength is the maximum length of a string context value before
	// truncation. Zero disables truncation.
	// Default: 500
	MaxFieldLength int
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		WriteTimeout:   5 * time.Second,
		RedactContext:  true,
		MaxFieldLength: 500,
	}
}

// Recorder persists decision records.
type Recorder struct {
	storage evidence.Storage
	config  *Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder creates a recorder over storage.
func NewRecorder(storage evidence.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	r := &Recorder{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "evidence.recorder"),
		now:     time.Now,
	}
	r.logger.Info("decision recorder initialized",
		"write_timeout", config.WriteTimeout,
		"redact_context", config.RedactContext,
	)
	return r
}

// Record finalizes and stores a decision. It assigns a decision id and
// timestamp when missing, and replaces record.Context with the enriched,
// redacted form that was stored.
func (r *Recorder) Record(ctx context.Context, record *evidence.DecisionRecord) error {
	if record.TenantID == "" {
		return evidence.NewRecorderError(record.DecisionID, evidence.ErrTenantRequired)
	}
	if record.DecisionID == "" {
		record.DecisionID = ids.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now().UTC()
	}

	record.Context = r.buildContext(record)
	if raw, err := json.Marshal(record.Context); err == nil {
		record.ContextHash = HashContent(raw)
	}

	writeCtx := ctx
	if r.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, r.config.WriteTimeout)
		defer cancel()
	}

	if err := r.storage.StoreDecision(writeCtx, record); err != nil {
		r.logger.Error("failed to write decision record",
			"decision_id", record.DecisionID,
			"tenant_id", record.TenantID,
			"error", err,
		)
		return evidence.NewRecorderError(record.DecisionID, err)
	}

	r.logger.Debug("decision recorded",
		"decision_id", record.DecisionID,
		"tenant_id", record.TenantID,
		"decision", record.Decision,
	)
	return nil
}

// buildContext merges the decision fields into a copy of the request
// context, then redacts and truncates it.
func (r *Recorder) buildContext(record *evidence.DecisionRecord) map[string]any {
	out := make(map[string]any, len(record.Context)+5)
	for k, v := range record.Context {
		out[k] = v
	}
	out[KeyRiskLevel] = record.RiskLevel.String()
	out[KeyPolicyVersion] = record.PolicyVersion
	out[KeyRateLimited] = record.RateLimited
	if record.MatchedRule != nil {
		out[KeyMatchedRule] = *record.MatchedRule
	} else {
		out[KeyMatchedRule] = nil
	}
	if record.EscalationID != nil {
		out[KeyEscalationID] = *record.EscalationID
	} else {
		out[KeyEscalationID] = nil
	}

	if r.config.RedactContext {
		out = secrets.RedactSensitiveFields(out).(map[string]any)
	}
	if r.config.MaxFieldLength > 0 {
		for k, v := range out {
			if s, ok := v.(string); ok {
				out[k] = TruncateString(s, r.config.MaxFieldLength)
			}
		}
	}
	return out
}

// TruncateString shortens s to at most maxLen runes, ending in "..." when
// cut.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
