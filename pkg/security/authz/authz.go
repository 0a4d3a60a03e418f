package authz

import "context"

// Evaluate authorizes action on resource for the caller described by claims
// using the default policy.
func Evaluate(claims TokenClaims, resource Resource, action Permission) error {
	return EvaluateWithPolicy(defaultPolicy, claims, resource, action)
}

// EvaluateWithPolicy is Evaluate with an explicit policy table. The tenant
// check always runs first and cannot be overridden by any permission.
func EvaluateWithPolicy(policy *Policy, claims TokenClaims, resource Resource, action Permission) error {
	if claims.TenantID != resource.TenantID {
		return NewCrossTenantError(claims.TenantID, resource.TenantID)
	}

	var effective PermissionSet
	if claims.ScopedPermissions != nil {
		effective = *claims.ScopedPermissions
	} else {
		effective = policy.PermissionsFor(claims.Role, resource.ResourceType)
	}

	if !effective.Has(action) {
		return NewPermissionDeniedError(claims.Role, action)
	}
	return nil
}

// Principal is what ValidateTenantAccess needs from a request context.
type Principal interface {
	Tenant() string
}

// ValidateTenantAccess checks only the tenant boundary.
func ValidateTenantAccess(p Principal, resource Resource) error {
	if p.Tenant() != resource.TenantID {
		return NewCrossTenantError(p.Tenant(), resource.TenantID)
	}
	return nil
}

type claimsKey struct{}

// WithClaims returns a context carrying the caller's claims.
func WithClaims(ctx context.Context, claims TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(TokenClaims)
	return claims, ok
}
