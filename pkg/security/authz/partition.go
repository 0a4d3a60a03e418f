package authz

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxTenantIDLength bounds tenant ids.
const MaxTenantIDLength = 128

// PartitionKey builds the storage key of a tenant-owned object. Every
// tenant-scoped blob and row key is built here; the layout is
// tenants/{tenant_id}/{resource_type}/{id} and must not change.
func PartitionKey(tenantID, resourceType, id string) string {
	return TenantPrefix(tenantID) + resourceType + "/" + id
}

// TenantPrefix is the key prefix owning all of a tenant's objects.
func TenantPrefix(tenantID string) string {
	return "tenants/" + tenantID + "/"
}

// ValidateTenantID reports whether id is usable as the tenant segment of a
// partition key. A valid id is a single path segment: non-empty, at most
// MaxTenantIDLength bytes, not "." or "..", free of '/', '\\' and control
// characters, and without surrounding whitespace. Tenant ids taken from
// requests or config must pass it before reaching PartitionKey.
func ValidateTenantID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidTenantID)
	case len(id) > MaxTenantIDLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidTenantID, MaxTenantIDLength)
	case id == "." || id == "..":
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, id)
	case strings.TrimSpace(id) != id:
		return fmt.Errorf("%w: surrounding whitespace", ErrInvalidTenantID)
	}
	for _, r := range id {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidTenantID, id, r)
		}
	}
	return nil
}

// TenantFilter is a SQL predicate restricting rows to one tenant.
type TenantFilter struct {
	Clause string
	Value  string
}

// QueryFilter returns the row filter for a tenant. Callers bind Value at
// the placeholder in Clause.
func QueryFilter(tenantID string) TenantFilter {
	return TenantFilter{Clause: "tenant_id = ?", Value: tenantID}
}
