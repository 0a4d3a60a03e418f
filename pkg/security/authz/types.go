package authz

import (
	"fmt"
	"strings"
)

// Permission is a single capability on a resource.
type Permission uint8

const (
	// PermRead allows reading resources.
	PermRead Permission = 1 << iota
	// PermWrite allows creating and modifying resources.
	PermWrite
	// PermAdmin allows tenant administration.
	PermAdmin
	// PermFederation allows sharing data with other tenants.
	PermFederation
)

// String returns the snake_case name of the permission.
func (p Permission) String() string {
	switch p {
	case PermRead:
		return "read"
	case PermWrite:
		return "write"
	case PermAdmin:
		return "admin"
	case PermFederation:
		return "federation"
	}
	return fmt.Sprintf("permission(%d)", uint8(p))
}

// ParsePermission parses a permission name.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return PermRead, nil
	case "write":
		return PermWrite, nil
	case "admin":
		return PermAdmin, nil
	case "federation":
		return PermFederation, nil
	}
	return 0, fmt.Errorf("unknown permission %q", s)
}

// PermissionSet is a bitset of permissions.
type PermissionSet uint8

// NewPermissionSet builds a set from individual permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s |= PermissionSet(p)
	}
	return s
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	return s&PermissionSet(p) != 0
}

// List returns the permissions in the set in ascending order.
func (s PermissionSet) List() []Permission {
	var out []Permission
	for p := PermRead; p <= PermFederation; p <<= 1 {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Role is a tenant member role.
type Role uint8

const (
	// RoleReader may only read.
	RoleReader Role = iota
	// RoleContributor may read and write.
	RoleContributor
	// RoleAdmin has every permission.
	RoleAdmin
	// RoleSystemService is used by internal services: read, write and
	// federation but no administration.
	RoleSystemService
)

// String returns the snake_case name of the role.
func (r Role) String() string {
	switch r {
	case RoleReader:
		return "reader"
	case RoleContributor:
		return "contributor"
	case RoleAdmin:
		return "admin"
	case RoleSystemService:
		return "system_service"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reader":
		return RoleReader, nil
	case "contributor":
		return RoleContributor, nil
	case "admin":
		return RoleAdmin, nil
	case "system_service":
		return RoleSystemService, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Resource identifies something a tenant owns. It is only used for checks
// and is never persisted.
type Resource struct {
	TenantID     string
	ResourceType string
	ResourceID   string
}

// TokenClaims are the authorization-relevant claims of a caller.
type TokenClaims struct {
	TenantID string
	Role     Role
	// ScopedPermissions, when non-nil, replaces the role-derived set.
	ScopedPermissions *PermissionSet
}
