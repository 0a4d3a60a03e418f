package config

import "time"

// Config is the root configuration structure for Warden.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Policy contains policy evaluation settings and the tenant rule store.
	Policy PolicyConfig `yaml:"policy"`

	// Limits contains rate limiter and counter store configuration.
	Limits LimitsConfig `yaml:"limits"`

	// Evidence contains decision/escalation storage, recorder and retention
	// configuration.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Bundles contains the policy bundle archive, active pointer and
	// directory watcher configuration.
	Bundles BundlesConfig `yaml:"bundles"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains tenant gateway configuration.
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits request body size.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// TLS configures HTTPS termination.
	TLS ServerTLSConfig `yaml:"tls"`
}

// ServerTLSConfig configures HTTPS for the server.
type ServerTLSConfig struct {
	// Enabled serves HTTPS instead of HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are the PEM certificate pair.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ClientAuth is "none", "verify_if_given" or "require".
	// Default: "none"
	ClientAuth string `yaml:"client_auth"`

	// ClientCAFile verifies client certificates when ClientAuth is not none.
	ClientCAFile string `yaml:"client_ca_file"`

	// ReloadInterval is how often the certificate files are checked for
	// changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// PolicyConfig contains policy evaluation configuration.
type PolicyConfig struct {
	// TenantRules enables evaluation of CRUD-managed tenant rules when no
	// bundle rule matches.
	// Default: true
	TenantRules bool `yaml:"tenant_rules"`

	// Rules configures the tenant rule store.
	Rules RulesStoreConfig `yaml:"rules"`
}

// RulesStoreConfig selects the tenant rule backend.
type RulesStoreConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the rule database file.
	// Default: "data/rules.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// LimitsConfig contains rate limiting configuration.
type LimitsConfig struct {
	// Backend is the durable counter store: "memory", "sqlite" or "redis".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite counter store.
	SQLite LimitsSQLiteConfig `yaml:"sqlite"`

	// Redis configures the Redis counter store.
	Redis RedisConfig `yaml:"redis"`

	// Breaker configures the circuit breaker in front of the counter store.
	Breaker BreakerConfig `yaml:"breaker"`

	// Tenant configures the per-tenant in-process limiter at the gateway.
	Tenant TenantLimitConfig `yaml:"tenant"`
}

// LimitsSQLiteConfig configures the SQLite counter store.
type LimitsSQLiteConfig struct {
	// Path is the database file.
	// Default: "data/limits.db"
	Path string `yaml:"path"`

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisConfig configures a Redis connection.
type RedisConfig struct {
	// Addr is host:port of the Redis server.
	// Default: "127.0.0.1:6379"
	Addr string `yaml:"addr"`

	// Password for AUTH.
	Password string `yaml:"password"`

	// DB selects the logical database.
	DB int `yaml:"db"`

	// Retention is how long counter keys live in Redis.
	// Default: 24h
	Retention time.Duration `yaml:"retention"`
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// breaker.
	// Default: 5
	Threshold int `yaml:"threshold"`

	// Cooldown is how long the breaker stays open.
	// Default: 30s
	Cooldown time.Duration `yaml:"cooldown"`
}

// TenantLimitConfig is the default per-tenant sliding window budget.
type TenantLimitConfig struct {
	// RequestsPerMinute is the sustained budget.
	// Default: 120
	RequestsPerMinute int64 `yaml:"requests_per_minute"`

	// BurstLimit is added to RequestsPerMinute to form the hard cap.
	// Default: 20
	BurstLimit int64 `yaml:"burst_limit"`

	// StorageQuotaBytes is the tenant storage quota.
	// Default: 5368709120 (5 GiB)
	StorageQuotaBytes int64 `yaml:"storage_quota_bytes"`

	// Overrides replaces the budget above for the named tenants.
	Overrides map[string]TenantLimitOverride `yaml:"overrides"`
}

// TenantLimitOverride is one tenant's budget. A zero StorageQuotaBytes
// keeps the default quota.
type TenantLimitOverride struct {
	RequestsPerMinute int64 `yaml:"requests_per_minute"`
	BurstLimit        int64 `yaml:"burst_limit"`
	StorageQuotaBytes int64 `yaml:"storage_quota_bytes"`
}

// EvidenceConfig contains decision storage configuration.
type EvidenceConfig struct {
	// Backend is "memory", "sqlite" or "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the SQLite evidence backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres configures the PostgreSQL evidence backend.
	Postgres PostgresConfig `yaml:"postgres"`

	// Recorder configures decision recording.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention configures pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig configures the SQLite evidence backend.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/evidence.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig configures the PostgreSQL evidence backend.
type PostgresConfig struct {
	// URL is the connection string.
	URL string `yaml:"url"`

	// MaxConns is the pool size.
	// Default: 10
	MaxConns int32 `yaml:"max_conns"`

	// MinConns is the number of connections kept open.
	// Default: 1
	MinConns int32 `yaml:"min_conns"`

	// RequireTLS rejects URLs whose sslmode does not verify the server.
	// Default: false
	RequireTLS bool `yaml:"require_tls"`

	// ConnectTimeout bounds the initial ping.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// RecorderConfig configures decision recording.
type RecorderConfig struct {
	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RedactContext masks sensitive context fields before storage.
	// Default: true
	RedactContext bool `yaml:"redact_context"`

	// MaxFieldLength truncates long string context values.
	// Default: 500
	MaxFieldLength int `yaml:"max_field_length"`
}

// RetentionConfig configures the retention pruner.
type RetentionConfig struct {
	// Days is how long decisions are kept. 0 keeps them forever.
	// Default: 90
	Days int `yaml:"days"`

	// CounterRetention is how long idle rate limit counters are kept.
	// Default: 24h
	CounterRetention time.Duration `yaml:"counter_retention"`

	// PruneSchedule is a five-field cron expression. Empty disables
	// scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// BundlesConfig configures policy bundle storage.
type BundlesConfig struct {
	// Blob configures the bundle archive.
	Blob BlobConfig `yaml:"blob"`

	// Pointer configures the active version pointer.
	Pointer PointerConfig `yaml:"pointer"`

	// Watch configures the bundle directory watcher.
	Watch WatchConfig `yaml:"watch"`

	// Git configures the git bundle source.
	Git GitConfig `yaml:"git"`
}

// BlobConfig selects the bundle archive backend.
type BlobConfig struct {
	// Backend is "memory", "file" or "s3".
	// Default: "file"
	Backend string `yaml:"backend"`

	// Dir is the root directory of the file backend.
	// Default: "data/bundles"
	Dir string `yaml:"dir"`

	// S3 configures the S3 backend.
	S3 S3Config `yaml:"s3"`
}

// S3Config configures the S3 bundle archive.
type S3Config struct {
	// Bucket is the bucket name.
	Bucket string `yaml:"bucket"`

	// Region is the AWS region.
	// Default: "us-east-1"
	Region string `yaml:"region"`

	// Prefix is prepended to every object key.
	Prefix string `yaml:"prefix"`

	// Endpoint overrides the S3 endpoint, for MinIO and similar.
	Endpoint string `yaml:"endpoint"`

	// UsePathStyle forces path-style addressing.
	UsePathStyle bool `yaml:"use_path_style"`
}

// PointerConfig selects the active pointer backend.
type PointerConfig struct {
	// Backend is "memory", "blob" or "redis". The blob backend stores the
	// pointer in the bundle archive.
	// Default: "blob"
	Backend string `yaml:"backend"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// WatchConfig configures the bundle directory watcher.
type WatchConfig struct {
	// Enabled starts the watcher with the server.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Dir is watched for {tenant}/{version}.(json|yaml|yml) files.
	// Default: "bundles"
	Dir string `yaml:"dir"`

	// Activate makes each published bundle the tenant's active bundle.
	// Default: false
	Activate bool `yaml:"activate"`

	// Debounce coalesces bursts of writes to one file.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}

// GitConfig configures a git repository laid out like the watched bundle
// directory: {path}/{tenant}/{version}.(json|yaml|yml).
type GitConfig struct {
	// Enabled clones the repository at startup and polls it.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Repository is the clone URL or a local path.
	Repository string `yaml:"repository"`

	// Branch is checked out and pulled.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the bundle directory inside the repository.
	Path string `yaml:"path"`

	// LocalPath is where the clone lives.
	// Default: "data/bundles-git"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history. Zero clones everything.
	Depth int `yaml:"depth"`

	// PollInterval is how often the remote is pulled.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Activate makes the newest changed version of each tenant active
	// after a sync.
	// Default: false
	Activate bool `yaml:"activate"`

	// Auth configures repository credentials.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures git transport credentials.
type GitAuthConfig struct {
	// Type is "none", "token" or "ssh".
	// Default: "none"
	Type string `yaml:"type"`

	// Token is sent as the HTTPS basic auth password. Accepts
	// ${secret:name} references.
	Token string `yaml:"token"`

	// SSHKeyPath is a private key file with mode 0600 or stricter.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase decrypts the key. Accepts ${secret:name} references.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact masks sensitive attributes and secret-looking values.
	// Default: true
	Redact bool `yaml:"redact"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "warden"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "governance"
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "warden"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the export timeout.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// SecurityConfig contains tenant gateway configuration.
type SecurityConfig struct {
	// TenantHeader carries the tenant id.
	// Default: "X-Tenant-ID"
	TenantHeader string `yaml:"tenant_header"`

	// RoleHeader carries the gateway role.
	// Default: "X-Tenant-Role"
	RoleHeader string `yaml:"role_header"`

	// FederationHeader carries the federation opt-in flag.
	// Default: "X-Tenant-Federation"
	FederationHeader string `yaml:"federation_header"`

	// Federation lists, per source tenant, who may receive its anonymized
	// data.
	Federation map[string]FederationConfig `yaml:"federation"`

	// APIKeys, when non-empty, switches the gateway to API key identity:
	// tenant and role come from the key instead of the headers.
	APIKeys []APIKeyConfig `yaml:"api_keys"`

	// Secrets configures ${secret:name} resolution for credential fields.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures where ${secret:name} references are looked up.
// The directory is consulted before the environment.
type SecretsConfig struct {
	// EnvPrefix is prepended to upper-cased secret names.
	// Default: "WARDEN_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret. Empty disables the directory source.
	Dir string `yaml:"dir"`

	// Watch drops memoized directory values when files change.
	Watch bool `yaml:"watch"`

	// CacheTTL bounds how long resolved values are reused.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// APIKeyConfig binds one API key to a tenant and role.
type APIKeyConfig struct {
	// Name labels the key in logs.
	Name string `yaml:"name"`

	// KeySHA256 is the hex sha256 of the key. Plaintext keys are never
	// configured.
	KeySHA256 string `yaml:"key_sha256"`

	// TenantID is the tenant the key acts for.
	TenantID string `yaml:"tenant_id"`

	// Role is "viewer", "builder" or "admin".
	// Default: "viewer"
	Role string `yaml:"role"`

	// Disabled rejects the key.
	Disabled bool `yaml:"disabled"`
}

// FederationConfig is one tenant's federation policy.
type FederationConfig struct {
	// AllowedTenants lists the tenants that may receive data.
	AllowedTenants []string `yaml:"allowed_tenants"`

	// SharingScope lists the data types that may be shared.
	SharingScope []string `yaml:"sharing_scope"`
}
