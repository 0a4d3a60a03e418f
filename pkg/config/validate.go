package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/warden/pkg/security/authz"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// listing every problem, or nil.
func Validate(cfg *Config) error {
	var v validator

	v.validateServer(&cfg.Server)
	v.validatePolicy(&cfg.Policy)
	v.validateLimits(&cfg.Limits)
	v.validateEvidence(&cfg.Evidence)
	v.validateBundles(&cfg.Bundles)
	v.validateTelemetry(&cfg.Telemetry)
	v.validateSecurity(&cfg.Security)

	if len(v.errs) > 0 {
		return ValidationError{Errors: v.errs}
	}
	return nil
}

type validator struct {
	errs []FieldError
}

func (v *validator) add(field, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) oneOf(field, value string, options ...string) {
	for _, o := range options {
		if value == o {
			return
		}
	}
	v.add(field, "invalid value %q: must be one of %s", value, strings.Join(options, ", "))
}

func (v *validator) validateServer(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		v.add("server.listen_address", "listen address is required")
	}
	if cfg.ReadTimeout < 0 {
		v.add("server.read_timeout", "read timeout must be positive")
	}
	if cfg.WriteTimeout < 0 {
		v.add("server.write_timeout", "write timeout must be positive")
	}
	if cfg.MaxHeaderBytes < 0 || cfg.MaxHeaderBytes > 10*1024*1024 {
		v.add("server.max_header_bytes", "max header bytes must be between 0 and 10MB")
	}
	if cfg.MaxBodyBytes < 0 {
		v.add("server.max_body_bytes", "max body bytes must be non-negative")
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			v.add("server.tls", "cert_file and key_file are required when TLS is enabled")
		}
		v.oneOf("server.tls.min_version", cfg.TLS.MinVersion, "1.2", "1.3")
		v.oneOf("server.tls.client_auth", cfg.TLS.ClientAuth, "none", "verify_if_given", "require")
		if cfg.TLS.ClientAuth != "none" && cfg.TLS.ClientCAFile == "" {
			v.add("server.tls.client_ca_file", "client CA file is required when client certificates are verified")
		}
	}
}

func (v *validator) validatePolicy(cfg *PolicyConfig) {
	v.oneOf("policy.rules.backend", cfg.Rules.Backend, "memory", "sqlite")
	if cfg.Rules.Backend == "sqlite" && cfg.Rules.SQLitePath == "" {
		v.add("policy.rules.sqlite_path", "sqlite path is required for the sqlite backend")
	}
}

func (v *validator) validateLimits(cfg *LimitsConfig) {
	v.oneOf("limits.backend", cfg.Backend, "memory", "sqlite", "redis")
	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			v.add("limits.sqlite.path", "sqlite path is required for the sqlite backend")
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			v.add("limits.redis.addr", "redis address is required for the redis backend")
		}
	}
	if cfg.Breaker.Threshold < 1 {
		v.add("limits.breaker.threshold", "threshold must be at least 1")
	}
	if cfg.Breaker.Cooldown <= 0 {
		v.add("limits.breaker.cooldown", "cooldown must be positive")
	}
	if cfg.Tenant.RequestsPerMinute < 1 {
		v.add("limits.tenant.requests_per_minute", "requests per minute must be at least 1")
	}
	if cfg.Tenant.BurstLimit < 0 {
		v.add("limits.tenant.burst_limit", "burst limit must be non-negative")
	}
	for id, o := range cfg.Tenant.Overrides {
		field := fmt.Sprintf("limits.tenant.overrides[%s]", id)
		if err := authz.ValidateTenantID(id); err != nil {
			v.add(field, "%v", err)
		}
		if o.RequestsPerMinute < 1 {
			v.add(field+".requests_per_minute", "requests per minute must be at least 1")
		}
		if o.BurstLimit < 0 {
			v.add(field+".burst_limit", "burst limit must be non-negative")
		}
	}
}

func (v *validator) validateEvidence(cfg *EvidenceConfig) {
	v.oneOf("evidence.backend", cfg.Backend, "memory", "sqlite", "postgres")
	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			v.add("evidence.sqlite.path", "sqlite path is required for the sqlite backend")
		}
	case "postgres":
		if cfg.Postgres.URL == "" {
			v.add("evidence.postgres.url", "postgres url is required for the postgres backend")
		}
		if cfg.Postgres.MinConns > cfg.Postgres.MaxConns {
			v.add("evidence.postgres.min_conns", "min conns must not exceed max conns")
		}
	}
	if cfg.Recorder.MaxFieldLength < 0 {
		v.add("evidence.recorder.max_field_length", "max field length must be non-negative")
	}
	if cfg.Retention.Days < 0 {
		v.add("evidence.retention.days", "retention days must be non-negative")
	}
	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			v.add("evidence.retention.prune_schedule", "invalid cron expression: %v", err)
		}
	}
}

func (v *validator) validateBundles(cfg *BundlesConfig) {
	v.oneOf("bundles.blob.backend", cfg.Blob.Backend, "memory", "file", "s3")
	switch cfg.Blob.Backend {
	case "file":
		if cfg.Blob.Dir == "" {
			v.add("bundles.blob.dir", "directory is required for the file backend")
		}
	case "s3":
		if cfg.Blob.S3.Bucket == "" {
			v.add("bundles.blob.s3.bucket", "bucket is required for the s3 backend")
		}
	}
	v.oneOf("bundles.pointer.backend", cfg.Pointer.Backend, "memory", "blob", "redis")
	if cfg.Pointer.Backend == "redis" && cfg.Pointer.Redis.Addr == "" {
		v.add("bundles.pointer.redis.addr", "redis address is required for the redis backend")
	}
	if cfg.Watch.Enabled && cfg.Watch.Dir == "" {
		v.add("bundles.watch.dir", "directory is required when the watcher is enabled")
	}
	if cfg.Git.Enabled {
		if cfg.Git.Repository == "" {
			v.add("bundles.git.repository", "repository is required when the git source is enabled")
		}
		if cfg.Git.Branch == "" {
			v.add("bundles.git.branch", "branch is required when the git source is enabled")
		}
		if cfg.Git.Depth < 0 {
			v.add("bundles.git.depth", "depth must be non-negative")
		}
		v.oneOf("bundles.git.auth.type", cfg.Git.Auth.Type, "none", "token", "ssh")
		switch cfg.Git.Auth.Type {
		case "token":
			if cfg.Git.Auth.Token == "" {
				v.add("bundles.git.auth.token", "token is required for token auth")
			}
		case "ssh":
			if cfg.Git.Auth.SSHKeyPath == "" {
				v.add("bundles.git.auth.ssh_key_path", "key path is required for ssh auth")
			}
		}
	}
}

func (v *validator) validateTelemetry(cfg *TelemetryConfig) {
	v.oneOf("telemetry.logging.level", cfg.Logging.Level, "debug", "info", "warn", "error")
	v.oneOf("telemetry.logging.format", cfg.Logging.Format, "json", "text")

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		v.add("telemetry.metrics.path", "metrics path must start with /")
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			v.add("telemetry.tracing.endpoint", "tracing endpoint is required when tracing is enabled")
		}
		v.oneOf("telemetry.tracing.sampler", cfg.Tracing.Sampler, "always", "never", "ratio")
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		v.add("telemetry.tracing.sample_ratio", "sample ratio must be between 0.0 and 1.0")
	}
}

func (v *validator) validateSecurity(cfg *SecurityConfig) {
	if cfg.TenantHeader == "" {
		v.add("security.tenant_header", "tenant header is required")
	}
	for tenant := range cfg.Federation {
		if err := authz.ValidateTenantID(tenant); err != nil {
			v.add("security.federation", "%v", err)
		}
	}
	seen := make(map[string]bool, len(cfg.APIKeys))
	for i, key := range cfg.APIKeys {
		field := fmt.Sprintf("security.api_keys[%d]", i)
		hash := strings.ToLower(strings.TrimSpace(key.KeySHA256))
		if len(hash) != 64 {
			v.add(field+".key_sha256", "must be a 64 character hex sha256")
		} else if seen[hash] {
			v.add(field+".key_sha256", "duplicate key")
		}
		seen[hash] = true
		if strings.TrimSpace(key.TenantID) == "" {
			v.add(field+".tenant_id", "tenant id is required")
		} else if err := authz.ValidateTenantID(key.TenantID); err != nil {
			v.add(field+".tenant_id", "%v", err)
		}
		if key.Role != "" {
			v.oneOf(field+".role", strings.ToLower(key.Role), "viewer", "builder", "admin")
		}
	}
}
