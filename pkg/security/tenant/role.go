package tenant

import (
	"fmt"
	"strings"

	"mercator-hq/warden/pkg/security/authz"
)

// Role is a gateway role.
type Role uint8

const (
	// RoleViewer is read-only everywhere.
	RoleViewer Role = iota
	// RoleBuilder may read and write non-admin routes.
	RoleBuilder
	// RoleAdmin may use every route.
	RoleAdmin
)

// String returns the header form of the role.
func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleBuilder:
		return "builder"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// ParseRole parses a role header value, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return RoleViewer, nil
	case "builder":
		return RoleBuilder, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("%w: %q (expected viewer|builder|admin)", ErrInvalidRole, s)
}

// AuthzRole maps the gateway role onto the authz RBAC matrix.
func (r Role) AuthzRole() authz.Role {
	switch r {
	case RoleAdmin:
		return authz.RoleAdmin
	case RoleBuilder:
		return authz.RoleContributor
	default:
		return authz.RoleReader
	}
}
