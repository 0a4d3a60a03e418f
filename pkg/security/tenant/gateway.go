package tenant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/limits/ratelimit"
	"mercator-hq/warden/pkg/security/auth"
	"mercator-hq/warden/pkg/security/authz"
	"mercator-hq/warden/pkg/telemetry/logging"
	"mercator-hq/warden/pkg/telemetry/metrics"
)

// Default header names.
const (
	DefaultTenantHeader     = "X-Tenant-ID"
	DefaultRoleHeader       = "X-Tenant-Role"
	DefaultFederationHeader = "X-Tenant-Federation"
)

// Route prefixes with special policy.
const (
	tenantsPrefix  = "/v1/tenants/"
	activatePrefix = "/v1/policies/activate"
	rulesPrefix    = "/v1/policies/rules"
)

// Config contains gateway configuration.
type Config struct {
	TenantHeader     string
	RoleHeader       string
	FederationHeader string

	// Limit is the default per-tenant budget.
	Limit ratelimit.TenantConfig

	// Overrides replaces Limit for specific tenants.
	Overrides map[string]ratelimit.TenantConfig

	// Authenticator, when set, takes tenant and role from the caller's API
	// key. The tenant header may still be sent but must match the key.
	Authenticator auth.Authenticator

	// KeySources lists where API keys are read from. Empty means
	// auth.DefaultSources.
	KeySources []auth.Source
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() *Config {
	return &Config{
		TenantHeader:     DefaultTenantHeader,
		RoleHeader:       DefaultRoleHeader,
		FederationHeader: DefaultFederationHeader,
		Limit:            ratelimit.DefaultTenantConfig(),
	}
}

// ConfigFrom builds a gateway configuration from the process config.
func ConfigFrom(sec *config.SecurityConfig, lim *config.TenantLimitConfig) *Config {
	cfg := DefaultConfig()
	if sec != nil {
		if sec.TenantHeader != "" {
			cfg.TenantHeader = sec.TenantHeader
		}
		if sec.RoleHeader != "" {
			cfg.RoleHeader = sec.RoleHeader
		}
		if sec.FederationHeader != "" {
			cfg.FederationHeader = sec.FederationHeader
		}
	}
	if lim != nil && lim.RequestsPerMinute > 0 {
		cfg.Limit = ratelimit.TenantConfig{
			RequestsPerMinute: lim.RequestsPerMinute,
			BurstLimit:        lim.BurstLimit,
			QuotaBytes:        lim.StorageQuotaBytes,
		}
	}
	if lim != nil && len(lim.Overrides) > 0 {
		cfg.Overrides = make(map[string]ratelimit.TenantConfig, len(lim.Overrides))
		for id, o := range lim.Overrides {
			quota := o.StorageQuotaBytes
			if quota == 0 {
				quota = cfg.Limit.QuotaBytes
			}
			cfg.Overrides[id] = ratelimit.TenantConfig{
				RequestsPerMinute: o.RequestsPerMinute,
				BurstLimit:        o.BurstLimit,
				QuotaBytes:        quota,
			}
		}
	}
	return cfg
}

// AuthenticatorFrom builds a key store from configured API keys. It
// returns nil when no keys are configured.
func AuthenticatorFrom(keys []config.APIKeyConfig) (auth.Authenticator, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	creds := make([]auth.Credential, 0, len(keys))
	for _, k := range keys {
		creds = append(creds, auth.Credential{
			Name:     k.Name,
			KeyHash:  k.KeySHA256,
			TenantID: k.TenantID,
			Role:     k.Role,
			Disabled: k.Disabled,
		})
	}
	store, err := auth.NewKeyStore(creds)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Gateway authenticates, authorizes and admits tenant requests.
type Gateway struct {
	config  *Config
	limiter *ratelimit.TenantLimiter
	metrics *metrics.Collector
	logger  *slog.Logger
	now     func() time.Time
}

// NewGateway creates a Gateway. A nil limiter gets a default one; a nil
// collector disables metrics.
func NewGateway(cfg *Config, limiter *ratelimit.TenantLimiter, collector *metrics.Collector) *Gateway {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if limiter == nil {
		limiter = ratelimit.NewTenantLimiter()
	}
	return &Gateway{
		config:  cfg,
		limiter: limiter,
		metrics: collector,
		logger:  slog.Default().With("component", "security.tenant"),
		now:     time.Now,
	}
}

// Limiter returns the gateway's tenant limiter.
func (g *Gateway) Limiter() *ratelimit.TenantLimiter {
	return g.limiter
}

// LimitFor returns the budget of tenantID.
func (g *Gateway) LimitFor(tenantID string) ratelimit.TenantConfig {
	if cfg, ok := g.config.Overrides[tenantID]; ok {
		return cfg
	}
	return g.config.Limit
}

// FromRequest extracts the tenant identity from r. The role defaults to
// viewer; federation is opted in only by the literal "true". With an
// Authenticator configured the identity comes from the API key.
func (g *Gateway) FromRequest(r *http.Request) (*Context, error) {
	if g.config.Authenticator != nil {
		return g.fromCredential(r)
	}

	tenantID := strings.TrimSpace(r.Header.Get(g.config.TenantHeader))
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if err := authz.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	role := RoleViewer
	if v := r.Header.Get(g.config.RoleHeader); v != "" {
		parsed, err := ParseRole(v)
		if err != nil {
			return nil, err
		}
		role = parsed
	}
	return g.newContext(r, tenantID, role), nil
}

func (g *Gateway) fromCredential(r *http.Request) (*Context, error) {
	sources := g.config.KeySources
	if len(sources) == 0 {
		sources = auth.DefaultSources()
	}
	key, err := auth.ExtractKey(r, sources)
	if err != nil {
		return nil, err
	}
	cred, err := g.config.Authenticator.Authenticate(key)
	if err != nil {
		return nil, err
	}

	if err := authz.ValidateTenantID(cred.TenantID); err != nil {
		return nil, err
	}
	if claimed := strings.TrimSpace(r.Header.Get(g.config.TenantHeader)); claimed != "" && claimed != cred.TenantID {
		return nil, authz.NewCrossTenantError(claimed, cred.TenantID)
	}

	role := RoleViewer
	if cred.Role != "" {
		if role, err = ParseRole(cred.Role); err != nil {
			return nil, err
		}
	}
	g.logger.Debug("api key authenticated", "key_name", cred.Name, "tenant_id", cred.TenantID)
	return g.newContext(r, cred.TenantID, role), nil
}

func (g *Gateway) newContext(r *http.Request, tenantID string, role Role) *Context {
	return &Context{
		TenantID:    tenantID,
		Role:        role,
		Permissions: authz.DefaultPolicy().PermissionsFor(role.AuthzRole(), authz.WildcardResourceType),
		RateLimit:   g.LimitFor(tenantID),
		Federation:  strings.EqualFold(strings.TrimSpace(r.Header.Get(g.config.FederationHeader)), "true"),
	}
}

// Authorize applies the route policy for tc's role.
func Authorize(tc *Context, method, path string) error {
	read := isRead(method)

	if strings.HasPrefix(path, tenantsPrefix) || strings.HasPrefix(path, activatePrefix) {
		if tc.Role != RoleAdmin {
			return &RouteError{Role: tc.Role, Method: method, Path: path, Reason: "admin role required"}
		}
		return nil
	}

	if strings.HasPrefix(path, rulesPrefix) && !read && tc.Role != RoleAdmin {
		return &RouteError{Role: tc.Role, Method: method, Path: path, Reason: "admin role required for policy rule mutation"}
	}

	if tc.Role == RoleViewer && !read {
		return &RouteError{Role: tc.Role, Method: method, Path: path, Reason: "viewer role is read-only"}
	}
	return nil
}

func isRead(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Middleware runs identity extraction, route policy and the tenant limiter
// before next. Responses with a 5xx status count as breaker failures for
// the tenant.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, err := g.FromRequest(r)
		if err != nil {
			g.logger.Warn("tenant identity rejected",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			g.metrics.RecordAuthzDenial("identity")
			g.reject(w, err)
			return
		}

		if err := Authorize(tc, r.Method, r.URL.Path); err != nil {
			g.logger.Warn("route denied",
				"tenant_id", tc.TenantID,
				"role", tc.Role.String(),
				"method", r.Method,
				"path", r.URL.Path,
			)
			g.metrics.RecordAuthzDenial("route")
			g.reject(w, err)
			return
		}

		if err := g.limiter.Check(tc.TenantID, tc.RateLimit, g.now()); err != nil {
			outcome := "exceeded"
			if errors.Is(err, ratelimit.ErrCircuitOpen) {
				outcome = "circuit_open"
			}
			g.metrics.RecordRateLimit("sliding_window", "tenant", outcome)
			g.logger.Info("tenant request rejected by limiter",
				"tenant_id", tc.TenantID,
				"outcome", outcome,
			)
			var rle *ratelimit.RateLimitError
			if errors.As(err, &rle) {
				if wait := rle.RetryAfter(g.now()); wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
				}
			}
			g.reject(w, err)
			return
		}
		g.metrics.RecordRateLimit("sliding_window", "tenant", "allowed")

		ctx := WithContext(r.Context(), tc)
		ctx = logging.WithTenantID(ctx, tc.TenantID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		if sw.status >= 500 {
			g.limiter.RecordFailure(tc.TenantID)
		} else {
			g.limiter.RecordSuccess(tc.TenantID)
		}
	})
}

func (g *Gateway) reject(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusWriter captures the response status.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
