package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WARDEN_"

// LoadConfig loads configuration from a YAML file at the specified path,
// applies defaults and validates it. An empty path yields the defaults.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides named WARDEN_SECTION_FIELD (for example
// WARDEN_SERVER_LISTEN_ADDRESS). Environment variables always take
// precedence over the file.
//
// The loading sequence is:
// 1. Start from Default and decode the YAML file over it
// 2. Apply default values to fields still unset
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies WARDEN_* environment variables. Values that do
// not parse are ignored and the file value is kept.
func applyEnvOverrides(cfg *Config) {
	// Server
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Policy
	envBool("POLICY_TENANT_RULES", &cfg.Policy.TenantRules)
	envString("POLICY_RULES_BACKEND", &cfg.Policy.Rules.Backend)
	envString("POLICY_RULES_SQLITE_PATH", &cfg.Policy.Rules.SQLitePath)

	// Limits
	envString("LIMITS_BACKEND", &cfg.Limits.Backend)
	envString("LIMITS_SQLITE_PATH", &cfg.Limits.SQLite.Path)
	envString("LIMITS_REDIS_ADDR", &cfg.Limits.Redis.Addr)
	envString("LIMITS_REDIS_PASSWORD", &cfg.Limits.Redis.Password)
	envInt("LIMITS_REDIS_DB", &cfg.Limits.Redis.DB)
	envInt("LIMITS_BREAKER_THRESHOLD", &cfg.Limits.Breaker.Threshold)
	envDuration("LIMITS_BREAKER_COOLDOWN", &cfg.Limits.Breaker.Cooldown)
	envInt64("LIMITS_TENANT_REQUESTS_PER_MINUTE", &cfg.Limits.Tenant.RequestsPerMinute)
	envInt64("LIMITS_TENANT_BURST_LIMIT", &cfg.Limits.Tenant.BurstLimit)

	// Evidence
	envString("EVIDENCE_BACKEND", &cfg.Evidence.Backend)
	envString("EVIDENCE_SQLITE_PATH", &cfg.Evidence.SQLite.Path)
	envString("EVIDENCE_POSTGRES_URL", &cfg.Evidence.Postgres.URL)
	envBool("EVIDENCE_POSTGRES_REQUIRE_TLS", &cfg.Evidence.Postgres.RequireTLS)
	envBool("EVIDENCE_RECORDER_REDACT_CONTEXT", &cfg.Evidence.Recorder.RedactContext)
	envInt("EVIDENCE_RETENTION_DAYS", &cfg.Evidence.Retention.Days)
	envString("EVIDENCE_RETENTION_PRUNE_SCHEDULE", &cfg.Evidence.Retention.PruneSchedule)

	// Bundles
	envString("BUNDLES_BLOB_BACKEND", &cfg.Bundles.Blob.Backend)
	envString("BUNDLES_BLOB_DIR", &cfg.Bundles.Blob.Dir)
	envString("BUNDLES_BLOB_S3_BUCKET", &cfg.Bundles.Blob.S3.Bucket)
	envString("BUNDLES_BLOB_S3_REGION", &cfg.Bundles.Blob.S3.Region)
	envString("BUNDLES_BLOB_S3_PREFIX", &cfg.Bundles.Blob.S3.Prefix)
	envString("BUNDLES_BLOB_S3_ENDPOINT", &cfg.Bundles.Blob.S3.Endpoint)
	envString("BUNDLES_POINTER_BACKEND", &cfg.Bundles.Pointer.Backend)
	envString("BUNDLES_POINTER_REDIS_ADDR", &cfg.Bundles.Pointer.Redis.Addr)
	envBool("BUNDLES_WATCH_ENABLED", &cfg.Bundles.Watch.Enabled)
	envString("BUNDLES_WATCH_DIR", &cfg.Bundles.Watch.Dir)
	envBool("BUNDLES_WATCH_ACTIVATE", &cfg.Bundles.Watch.Activate)
	envBool("BUNDLES_GIT_ENABLED", &cfg.Bundles.Git.Enabled)
	envString("BUNDLES_GIT_REPOSITORY", &cfg.Bundles.Git.Repository)
	envString("BUNDLES_GIT_BRANCH", &cfg.Bundles.Git.Branch)
	envString("BUNDLES_GIT_AUTH_TOKEN", &cfg.Bundles.Git.Auth.Token)

	// Telemetry
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT", &cfg.Telemetry.Logging.Redact)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	// Security
	envString("SECURITY_SECRETS_DIR", &cfg.Security.Secrets.Dir)
}

func envString(name string, field *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*field = val
	}
}

func envBool(name string, field *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*field = b
		}
	}
}

func envInt(name string, field *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*field = i
		}
	}
}

func envInt64(name string, field *int64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*field = i
		}
	}
}

func envFloat(name string, field *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*field = f
		}
	}
}

func envDuration(name string, field *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*field = d
		}
	}
}
