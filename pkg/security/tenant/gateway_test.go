package tenant

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/limits/ratelimit"
	"mercator-hq/warden/pkg/security/authz"
	"mercator-hq/warden/pkg/telemetry/logging"
)

func newRequest(method, path string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestFromRequest(t *testing.T) {
	g := NewGateway(nil, nil, nil)

	tests := []struct {
		name       string
		headers    map[string]string
		wantErr    error
		wantRole   Role
		wantFed    bool
		wantTenant string
	}{
		{
			name:    "missing tenant",
			headers: map[string]string{},
			wantErr: ErrMissingTenant,
		},
		{
			name:    "blank tenant",
			headers: map[string]string{"X-Tenant-ID": "   "},
			wantErr: ErrMissingTenant,
		},
		{
			name:    "tenant with path traversal",
			headers: map[string]string{"X-Tenant-ID": "evil/../victim"},
			wantErr: authz.ErrInvalidTenantID,
		},
		{
			name:    "tenant with backslash",
			headers: map[string]string{"X-Tenant-ID": `evil\victim`},
			wantErr: authz.ErrInvalidTenantID,
		},
		{
			name:    "dot-dot tenant",
			headers: map[string]string{"X-Tenant-ID": ".."},
			wantErr: authz.ErrInvalidTenantID,
		},
		{
			name:       "role defaults to viewer",
			headers:    map[string]string{"X-Tenant-ID": "acme"},
			wantRole:   RoleViewer,
			wantTenant: "acme",
		},
		{
			name:       "role is case insensitive",
			headers:    map[string]string{"X-Tenant-ID": "acme", "X-Tenant-Role": "BUILDER"},
			wantRole:   RoleBuilder,
			wantTenant: "acme",
		},
		{
			name:    "unknown role",
			headers: map[string]string{"X-Tenant-ID": "acme", "X-Tenant-Role": "owner"},
			wantErr: ErrInvalidRole,
		},
		{
			name:       "federation opt in",
			headers:    map[string]string{"X-Tenant-ID": "acme", "X-Tenant-Role": "admin", "X-Tenant-Federation": "TRUE"},
			wantRole:   RoleAdmin,
			wantFed:    true,
			wantTenant: "acme",
		},
		{
			name:       "federation requires literal true",
			headers:    map[string]string{"X-Tenant-ID": "acme", "X-Tenant-Federation": "yes"},
			wantRole:   RoleViewer,
			wantTenant: "acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := g.FromRequest(newRequest(http.MethodGet, "/v1/policies/active", tt.headers))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromRequest() error = %v", err)
			}
			if tc.TenantID != tt.wantTenant {
				t.Errorf("TenantID = %q, want %q", tc.TenantID, tt.wantTenant)
			}
			if tc.Role != tt.wantRole {
				t.Errorf("Role = %v, want %v", tc.Role, tt.wantRole)
			}
			if tc.Federation != tt.wantFed {
				t.Errorf("Federation = %v, want %v", tc.Federation, tt.wantFed)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		role    Role
		method  string
		path    string
		allowed bool
	}{
		{RoleViewer, http.MethodGet, "/v1/policies/active", true},
		{RoleViewer, http.MethodPost, "/v1/policy/check", false},
		{RoleViewer, http.MethodGet, "/v1/tenants/acme/federation/export", false},
		{RoleBuilder, http.MethodPost, "/v1/policy/check", true},
		{RoleBuilder, http.MethodPut, "/v1/policies/v2", true},
		{RoleBuilder, http.MethodGet, "/v1/policies/rules", true},
		{RoleBuilder, http.MethodPost, "/v1/policies/rules", false},
		{RoleBuilder, http.MethodDelete, "/v1/policies/rules/r1", false},
		{RoleBuilder, http.MethodPost, "/v1/policies/activate/v2", false},
		{RoleBuilder, http.MethodPost, "/v1/tenants/acme/federation/export", false},
		{RoleAdmin, http.MethodPost, "/v1/policies/rules", true},
		{RoleAdmin, http.MethodPost, "/v1/policies/activate/v2", true},
		{RoleAdmin, http.MethodPost, "/v1/tenants/acme/federation/export", true},
		{RoleViewer, http.MethodHead, "/v1/escalations", true},
		{RoleViewer, http.MethodOptions, "/v1/policies/rules", true},
	}

	for _, tt := range tests {
		t.Run(tt.role.String()+" "+tt.method+" "+tt.path, func(t *testing.T) {
			err := Authorize(&Context{TenantID: "acme", Role: tt.role}, tt.method, tt.path)
			if tt.allowed && err != nil {
				t.Errorf("Authorize() error = %v, want nil", err)
			}
			if !tt.allowed {
				if !errors.Is(err, ErrForbidden) {
					t.Errorf("Authorize() error = %v, want ErrForbidden", err)
				}
			}
		})
	}
}

func TestAuthorize_ViewerMessage(t *testing.T) {
	err := Authorize(&Context{TenantID: "acme", Role: RoleViewer}, http.MethodPost, "/v1/policy/check")
	var re *RouteError
	if !errors.As(err, &re) {
		t.Fatalf("error type = %T, want *RouteError", err)
	}
	if re.Reason != "viewer role is read-only" {
		t.Errorf("Reason = %q", re.Reason)
	}
}

func TestRole_AuthzMapping(t *testing.T) {
	tests := map[Role]authz.Role{
		RoleViewer:  authz.RoleReader,
		RoleBuilder: authz.RoleContributor,
		RoleAdmin:   authz.RoleAdmin,
	}
	for gw, want := range tests {
		if got := gw.AuthzRole(); got != want {
			t.Errorf("%v.AuthzRole() = %v, want %v", gw, got, want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	var seen *Context
	var seenTenantLog string
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		seenTenantLog = logging.GetTenantID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := NewGateway(nil, nil, nil).Middleware(ok)

	t.Run("missing tenant is 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest(http.MethodGet, "/v1/policies/active", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("unsafe tenant id is 400", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest(http.MethodGet, "/v1/policies/active", map[string]string{"X-Tenant-ID": "evil/../victim"}))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if seen != nil {
			t.Error("handler ran for an unsafe tenant id")
		}
	})

	t.Run("viewer write is 403", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest(http.MethodPost, "/v1/policy/check", map[string]string{"X-Tenant-ID": "acme"}))
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("context stored for handler", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest(http.MethodPost, "/v1/policy/check", map[string]string{
			"X-Tenant-ID":   "acme",
			"X-Tenant-Role": "builder",
		}))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if seen == nil || seen.TenantID != "acme" || seen.Role != RoleBuilder {
			t.Errorf("context = %+v", seen)
		}
		if !seen.Permissions.Has(authz.PermWrite) {
			t.Error("builder context lacks write permission")
		}
		if seenTenantLog != "acme" {
			t.Errorf("log tenant = %q, want acme", seenTenantLog)
		}
	})
}

func TestMiddleware_TenantLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = ratelimit.TenantConfig{RequestsPerMinute: 2, BurstLimit: 1}
	g := NewGateway(cfg, nil, nil)
	now := time.UnixMilli(5_000_000)
	g.now = func() time.Time { return now }
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest(http.MethodGet, "/v1/escalations", map[string]string{"X-Tenant-ID": "acme"}))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest(http.MethodGet, "/v1/escalations", map[string]string{"X-Tenant-ID": "acme"}))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest(http.MethodGet, "/v1/escalations", map[string]string{"X-Tenant-ID": "other"}))
	if rec.Code != http.StatusOK {
		t.Errorf("other tenant status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_ServerErrorsOpenBreaker(t *testing.T) {
	limiter := ratelimit.NewTenantLimiterWithBreaker(2, 30*time.Second)
	g := NewGateway(nil, limiter, nil)
	now := time.UnixMilli(9_000_000)
	g.now = func() time.Time { return now }
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	headers := map[string]string{"X-Tenant-ID": "acme"}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, newRequest(http.MethodGet, "/v1/escalations", headers))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
	}
	if got := limiter.Failures("acme"); got != 2 {
		t.Fatalf("Failures = %d, want 2", got)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest(http.MethodGet, "/v1/escalations", headers))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status with open breaker = %d, want 429", rec.Code)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(
		&config.SecurityConfig{TenantHeader: "X-Org"},
		&config.TenantLimitConfig{
			RequestsPerMinute: 50,
			BurstLimit:        5,
			StorageQuotaBytes: 1 << 30,
			Overrides: map[string]config.TenantLimitOverride{
				"bulk": {RequestsPerMinute: 600, BurstLimit: 100},
			},
		},
	)
	if cfg.TenantHeader != "X-Org" {
		t.Errorf("TenantHeader = %q", cfg.TenantHeader)
	}
	if cfg.RoleHeader != DefaultRoleHeader {
		t.Errorf("RoleHeader = %q", cfg.RoleHeader)
	}
	if cfg.Limit.EffectiveLimit() != 55 {
		t.Errorf("EffectiveLimit = %d, want 55", cfg.Limit.EffectiveLimit())
	}

	g := NewGateway(cfg, nil, nil)
	if got := g.LimitFor("bulk"); got.EffectiveLimit() != 700 || got.QuotaBytes != 1<<30 {
		t.Errorf("LimitFor(bulk) = %+v, want 600+100 with the default quota", got)
	}
	if got := g.LimitFor("acme"); got != cfg.Limit {
		t.Errorf("LimitFor(acme) = %+v, want the default %+v", got, cfg.Limit)
	}
}

func TestMiddleware_TenantOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = ratelimit.TenantConfig{RequestsPerMinute: 5}
	cfg.Overrides = map[string]ratelimit.TenantConfig{"trial": {RequestsPerMinute: 1}}
	g := NewGateway(cfg, nil, nil)
	now := time.UnixMilli(6_000_000)
	g.now = func() time.Time { return now }
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := func(tenantID string, n int) []int {
		var out []int
		for i := 0; i < n; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, newRequest(http.MethodGet, "/v1/escalations", map[string]string{"X-Tenant-ID": tenantID}))
			out = append(out, rec.Code)
		}
		return out
	}
	if got := codes("trial", 2); got[0] != http.StatusOK || got[1] != http.StatusTooManyRequests {
		t.Errorf("trial statuses = %v, want [200 429]", got)
	}
	for i, code := range codes("acme", 5) {
		if code != http.StatusOK {
			t.Errorf("acme request %d status = %d, want 200", i+1, code)
		}
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrMissingTenant, http.StatusUnauthorized},
		{authz.ErrInvalidTenantID, http.StatusBadRequest},
		{&RouteError{Reason: "x"}, http.StatusForbidden},
		{authz.NewCrossTenantError("a", "b"), http.StatusForbidden},
		{authz.NewPermissionDeniedError(authz.RoleReader, authz.PermWrite), http.StatusForbidden},
		{ratelimit.NewExceededError("a", 10), http.StatusTooManyRequests},
		{ratelimit.NewCircuitOpenError("a", time.Now()), http.StatusTooManyRequests},
		{errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// A Contributor may write its own tenant's resources and is stopped at the
// tenant boundary for anyone else's, before permissions are considered.
func TestContext_TenantBoundaryEndToEnd(t *testing.T) {
	g := NewGateway(nil, nil, nil)
	tc, err := g.FromRequest(newRequest(http.MethodPost, "/v1/policy/check", map[string]string{
		"X-Tenant-ID":   "tenant-a",
		"X-Tenant-Role": "builder",
	}))
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}

	own := authz.Resource{TenantID: "tenant-a", ResourceType: "workflow", ResourceID: "wf-1"}
	if err := tc.Can(own, authz.PermWrite); err != nil {
		t.Errorf("own tenant write error = %v", err)
	}

	foreign := authz.Resource{TenantID: "tenant-b", ResourceType: "workflow", ResourceID: "wf-1"}
	err = tc.Can(foreign, authz.PermWrite)
	if !errors.Is(err, authz.ErrCrossTenantAccess) {
		t.Errorf("foreign tenant error = %v, want ErrCrossTenantAccess", err)
	}
	if err := authz.ValidateTenantAccess(tc, foreign); !errors.Is(err, authz.ErrCrossTenantAccess) {
		t.Errorf("ValidateTenantAccess error = %v, want ErrCrossTenantAccess", err)
	}
	if tc.Prefix() != "tenants/tenant-a/" {
		t.Errorf("Prefix() = %q", tc.Prefix())
	}
}
