package tenant

import (
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/warden/pkg/limits/ratelimit"
	"mercator-hq/warden/pkg/security/auth"
	"mercator-hq/warden/pkg/security/authz"
)

var (
	// ErrMissingTenant is returned when the tenant header is absent or empty.
	ErrMissingTenant = errors.New("missing tenant id")

	// ErrInvalidRole is returned for an unknown role header value.
	ErrInvalidRole = errors.New("invalid tenant role")

	// ErrForbidden is matched by errors.Is for route policy denials.
	ErrForbidden = errors.New("forbidden")
)

// RouteError is a route policy denial.
type RouteError struct {
	Role   Role
	Method string
	Path   string
	Reason string
}

// Error returns the error message.
func (e *RouteError) Error() string {
	return fmt.Sprintf("%s %s denied for %s: %s", e.Method, e.Path, e.Role, e.Reason)
}

// Is reports whether target is ErrForbidden.
func (e *RouteError) Is(target error) bool {
	return target == ErrForbidden
}

// StatusCode maps gateway, authz and rate limit errors to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingTenant),
		errors.Is(err, auth.ErrMissingKey),
		errors.Is(err, auth.ErrInvalidKey),
		errors.Is(err, auth.ErrKeyDisabled):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidRole),
		errors.Is(err, authz.ErrInvalidTenantID):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authz.ErrCrossTenantAccess),
		errors.Is(err, authz.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ratelimit.ErrRateLimitExceeded),
		errors.Is(err, ratelimit.ErrCircuitOpen):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
