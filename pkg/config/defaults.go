package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = 1048576 // 1MB

	DefaultTLSMinVersion     = "1.3"
	DefaultTLSClientAuth     = "none"
	DefaultTLSReloadInterval = 5 * time.Minute

	// Policy defaults
	DefaultPolicyTenantRules = true
	DefaultRulesBackend      = "sqlite"
	DefaultRulesSQLitePath   = "data/rules.db"
	DefaultBusyTimeout       = 5 * time.Second

	// Limits defaults
	DefaultLimitsBackend            = "sqlite"
	DefaultLimitsSQLitePath         = "data/limits.db"
	DefaultLimitsCheckpointInterval = 5 * time.Minute
	DefaultRedisAddr                = "127.0.0.1:6379"
	DefaultRedisRetention           = 24 * time.Hour
	DefaultBreakerThreshold         = 5
	DefaultBreakerCooldown          = 30 * time.Second
	DefaultTenantRequestsPerMinute  = 120
	DefaultTenantBurstLimit         = 20
	DefaultTenantStorageQuotaBytes  = int64(5) << 30 // 5 GiB

	// Evidence defaults
	DefaultEvidenceBackend              = "sqlite"
	DefaultEvidenceSQLitePath           = "data/evidence.db"
	DefaultEvidenceSQLiteMaxOpenConns   = 10
	DefaultEvidenceSQLiteMaxIdleConns   = 5
	DefaultEvidenceSQLiteWALMode        = true
	DefaultPostgresMaxConns             = int32(10)
	DefaultPostgresMinConns             = int32(1)
	DefaultPostgresConnectTimeout       = 10 * time.Second
	DefaultEvidenceRecorderWriteTimeout = 5 * time.Second
	DefaultEvidenceRecorderRedact       = true
	DefaultEvidenceRecorderMaxFieldLen  = 500
	DefaultEvidenceRetentionDays        = 90
	DefaultCounterRetention             = 24 * time.Hour
	DefaultEvidenceRetentionSchedule    = "0 3 * * *"

	// Bundle defaults
	DefaultBlobBackend    = "file"
	DefaultBlobDir        = "data/bundles"
	DefaultS3Region       = "us-east-1"
	DefaultPointerBackend = "blob"
	DefaultWatchDir       = "bundles"
	DefaultWatchDebounce  = 100 * time.Millisecond
	DefaultGitBranch       = "main"
	DefaultGitLocalPath    = "data/bundles-git"
	DefaultGitPollInterval = 30 * time.Second
	DefaultGitTimeout      = 60 * time.Second
	DefaultGitAuthType     = "none"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultLoggingRedact      = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "warden"
	DefaultMetricsSubsystem   = "governance"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingService     = "warden"
	DefaultTracingInsecure    = true
	DefaultTracingTimeout     = 10 * time.Second

	// Security defaults
	DefaultTenantHeader     = "X-Tenant-ID"
	DefaultRoleHeader       = "X-Tenant-Role"
	DefaultFederationHeader = "X-Tenant-Federation"
	DefaultSecretsEnvPrefix = "WARDEN_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute
)

// Default returns a fully populated configuration. Files are decoded on top
// of it, so boolean settings that default to true stay true unless the file
// sets them.
func Default() *Config {
	cfg := &Config{}
	cfg.Policy.TenantRules = DefaultPolicyTenantRules
	cfg.Evidence.SQLite.WALMode = DefaultEvidenceSQLiteWALMode
	cfg.Evidence.Recorder.RedactContext = DefaultEvidenceRecorderRedact
	cfg.Evidence.Retention.Days = DefaultEvidenceRetentionDays
	cfg.Evidence.Retention.PruneSchedule = DefaultEvidenceRetentionSchedule
	cfg.Telemetry.Logging.Redact = DefaultLoggingRedact
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Insecure = DefaultTracingInsecure
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Booleans are
// left alone; see Default. This function is idempotent.
func ApplyDefaults(cfg *Config) {
	// Server
	setString(&cfg.Server.ListenAddress, DefaultListenAddress)
	setDuration(&cfg.Server.ReadTimeout, DefaultReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, DefaultWriteTimeout)
	setDuration(&cfg.Server.IdleTimeout, DefaultIdleTimeout)
	setDuration(&cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	setString(&cfg.Server.TLS.MinVersion, DefaultTLSMinVersion)
	setString(&cfg.Server.TLS.ClientAuth, DefaultTLSClientAuth)
	setDuration(&cfg.Server.TLS.ReloadInterval, DefaultTLSReloadInterval)

	// Policy
	setString(&cfg.Policy.Rules.Backend, DefaultRulesBackend)
	setString(&cfg.Policy.Rules.SQLitePath, DefaultRulesSQLitePath)
	setDuration(&cfg.Policy.Rules.BusyTimeout, DefaultBusyTimeout)

	// Limits
	setString(&cfg.Limits.Backend, DefaultLimitsBackend)
	setString(&cfg.Limits.SQLite.Path, DefaultLimitsSQLitePath)
	setDuration(&cfg.Limits.SQLite.CheckpointInterval, DefaultLimitsCheckpointInterval)
	setDuration(&cfg.Limits.SQLite.BusyTimeout, DefaultBusyTimeout)
	applyRedisDefaults(&cfg.Limits.Redis)
	if cfg.Limits.Breaker.Threshold == 0 {
		cfg.Limits.Breaker.Threshold = DefaultBreakerThreshold
	}
	setDuration(&cfg.Limits.Breaker.Cooldown, DefaultBreakerCooldown)
	if cfg.Limits.Tenant.RequestsPerMinute == 0 {
		cfg.Limits.Tenant.RequestsPerMinute = DefaultTenantRequestsPerMinute
	}
	if cfg.Limits.Tenant.BurstLimit == 0 {
		cfg.Limits.Tenant.BurstLimit = DefaultTenantBurstLimit
	}
	if cfg.Limits.Tenant.StorageQuotaBytes == 0 {
		cfg.Limits.Tenant.StorageQuotaBytes = DefaultTenantStorageQuotaBytes
	}

	// Evidence
	setString(&cfg.Evidence.Backend, DefaultEvidenceBackend)
	setString(&cfg.Evidence.SQLite.Path, DefaultEvidenceSQLitePath)
	if cfg.Evidence.SQLite.MaxOpenConns == 0 {
		cfg.Evidence.SQLite.MaxOpenConns = DefaultEvidenceSQLiteMaxOpenConns
	}
	if cfg.Evidence.SQLite.MaxIdleConns == 0 {
		cfg.Evidence.SQLite.MaxIdleConns = DefaultEvidenceSQLiteMaxIdleConns
	}
	setDuration(&cfg.Evidence.SQLite.BusyTimeout, DefaultBusyTimeout)
	if cfg.Evidence.Postgres.MaxConns == 0 {
		cfg.Evidence.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if cfg.Evidence.Postgres.MinConns == 0 {
		cfg.Evidence.Postgres.MinConns = DefaultPostgresMinConns
	}
	setDuration(&cfg.Evidence.Postgres.ConnectTimeout, DefaultPostgresConnectTimeout)
	setDuration(&cfg.Evidence.Recorder.WriteTimeout, DefaultEvidenceRecorderWriteTimeout)
	if cfg.Evidence.Recorder.MaxFieldLength == 0 {
		cfg.Evidence.Recorder.MaxFieldLength = DefaultEvidenceRecorderMaxFieldLen
	}
	setDuration(&cfg.Evidence.Retention.CounterRetention, DefaultCounterRetention)

	// Bundles
	setString(&cfg.Bundles.Blob.Backend, DefaultBlobBackend)
	setString(&cfg.Bundles.Blob.Dir, DefaultBlobDir)
	setString(&cfg.Bundles.Blob.S3.Region, DefaultS3Region)
	setString(&cfg.Bundles.Pointer.Backend, DefaultPointerBackend)
	applyRedisDefaults(&cfg.Bundles.Pointer.Redis)
	setString(&cfg.Bundles.Watch.Dir, DefaultWatchDir)
	setDuration(&cfg.Bundles.Watch.Debounce, DefaultWatchDebounce)
	setString(&cfg.Bundles.Git.Branch, DefaultGitBranch)
	setString(&cfg.Bundles.Git.LocalPath, DefaultGitLocalPath)
	setDuration(&cfg.Bundles.Git.PollInterval, DefaultGitPollInterval)
	setDuration(&cfg.Bundles.Git.Timeout, DefaultGitTimeout)
	setString(&cfg.Bundles.Git.Auth.Type, DefaultGitAuthType)

	// Telemetry
	setString(&cfg.Telemetry.Logging.Level, DefaultLoggingLevel)
	setString(&cfg.Telemetry.Logging.Format, DefaultLoggingFormat)
	setString(&cfg.Telemetry.Metrics.Path, DefaultMetricsPath)
	setString(&cfg.Telemetry.Metrics.Namespace, DefaultMetricsNamespace)
	setString(&cfg.Telemetry.Metrics.Subsystem, DefaultMetricsSubsystem)
	setString(&cfg.Telemetry.Tracing.Sampler, DefaultTracingSampler)
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	setString(&cfg.Telemetry.Tracing.Endpoint, DefaultTracingEndpoint)
	setString(&cfg.Telemetry.Tracing.ServiceName, DefaultTracingService)
	setDuration(&cfg.Telemetry.Tracing.Timeout, DefaultTracingTimeout)

	// Security
	setString(&cfg.Security.TenantHeader, DefaultTenantHeader)
	setString(&cfg.Security.RoleHeader, DefaultRoleHeader)
	setString(&cfg.Security.FederationHeader, DefaultFederationHeader)
	setString(&cfg.Security.Secrets.EnvPrefix, DefaultSecretsEnvPrefix)
	setDuration(&cfg.Security.Secrets.CacheTTL, DefaultSecretsCacheTTL)
}

func applyRedisDefaults(r *RedisConfig) {
	setString(&r.Addr, DefaultRedisAddr)
	setDuration(&r.Retention, DefaultRedisRetention)
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func setDuration(field *time.Duration, def time.Duration) {
	if *field == 0 {
		*field = def
	}
}
