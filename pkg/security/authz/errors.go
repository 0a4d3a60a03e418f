package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrCrossTenantAccess is matched by errors.Is for tenant boundary
	// violations.
	ErrCrossTenantAccess = errors.New("cross-tenant access")

	// ErrPermissionDenied is matched by errors.Is for missing permissions.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidTenantID is returned for tenant ids that cannot be used as
	// a partition key segment.
	ErrInvalidTenantID = errors.New("invalid tenant id")
)

// ErrorKind distinguishes authorization failures.
type ErrorKind int

const (
	// KindCrossTenantAccess means the resource belongs to another tenant.
	KindCrossTenantAccess ErrorKind = iota
	// KindPermissionDenied means the caller lacks the permission.
	KindPermissionDenied
)

// AuthzError describes a failed authorization check.
type AuthzError struct {
	Kind ErrorKind

	// RequestingTenant and ResourceTenant are set for cross-tenant access.
	RequestingTenant string
	ResourceTenant   string

	// Role and Required are set for permission denials.
	Role     Role
	Required Permission
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	if e.Kind == KindCrossTenantAccess {
		return fmt.Sprintf("tenant %s cannot access resources of tenant %s", e.RequestingTenant, e.ResourceTenant)
	}
	return fmt.Sprintf("role %s lacks %s permission", e.Role, e.Required)
}

// Is matches the package sentinels.
func (e *AuthzError) Is(target error) bool {
	switch target {
	case ErrCrossTenantAccess:
		return e.Kind == KindCrossTenantAccess
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	}
	return false
}

// NewCrossTenantError creates a tenant boundary error.
func NewCrossTenantError(requesting, owner string) *AuthzError {
	return &AuthzError{Kind: KindCrossTenantAccess, RequestingTenant: requesting, ResourceTenant: owner}
}

// NewPermissionDeniedError creates a permission error.
func NewPermissionDeniedError(role Role, required Permission) *AuthzError {
	return &AuthzError{Kind: KindPermissionDenied, Role: role, Required: required}
}
