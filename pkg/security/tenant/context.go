package tenant

import (
	"context"

	"mercator-hq/warden/pkg/limits/ratelimit"
	"mercator-hq/warden/pkg/security/authz"
)

// Context is the per-request tenant identity.
type Context struct {
	TenantID    string
	Role        Role
	Permissions authz.PermissionSet
	RateLimit   ratelimit.TenantConfig

	// Federation is the caller's federation opt-in for this request.
	Federation bool
}

// Tenant implements authz.Principal.
func (c *Context) Tenant() string {
	return c.TenantID
}

// Claims returns the authz claims for the caller.
func (c *Context) Claims() authz.TokenClaims {
	return authz.TokenClaims{TenantID: c.TenantID, Role: c.Role.AuthzRole()}
}

// Can reports whether the caller may perform action on resource.
func (c *Context) Can(resource authz.Resource, action authz.Permission) error {
	return authz.Evaluate(c.Claims(), resource, action)
}

// Prefix returns the tenant's storage key prefix.
func (c *Context) Prefix() string {
	return authz.TenantPrefix(c.TenantID)
}

type contextKey struct{}

// WithContext stores tc on ctx, along with its authz claims.
func WithContext(ctx context.Context, tc *Context) context.Context {
	ctx = authz.WithClaims(ctx, tc.Claims())
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the tenant context stored by the gateway.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok
}
