package authz

// WildcardResourceType is the fallback policy entry for any resource type.
const WildcardResourceType = "*"

type policyKey struct {
	role         Role
	resourceType string
}

// Policy maps (role, resource type) to a permission set. The zero value
// grants nothing; use DefaultPolicy for the standard matrix.
type Policy struct {
	rules map[policyKey]PermissionSet
}

// NewPolicy creates an empty policy.
func NewPolicy() *Policy {
	return &Policy{rules: make(map[policyKey]PermissionSet)}
}

// Set assigns the permissions of role on resourceType. Use
// WildcardResourceType for the fallback entry.
func (p *Policy) Set(role Role, resourceType string, perms PermissionSet) *Policy {
	p.rules[policyKey{role, resourceType}] = perms
	return p
}

// PermissionsFor returns the permissions of role on resourceType, falling
// back to the wildcard entry when no specific entry exists.
func (p *Policy) PermissionsFor(role Role, resourceType string) PermissionSet {
	if perms, ok := p.rules[policyKey{role, resourceType}]; ok {
		return perms
	}
	return p.rules[policyKey{role, WildcardResourceType}]
}

var defaultPolicy = NewPolicy().
	Set(RoleReader, WildcardResourceType, NewPermissionSet(PermRead)).
	Set(RoleContributor, WildcardResourceType, NewPermissionSet(PermRead, PermWrite)).
	Set(RoleAdmin, WildcardResourceType, NewPermissionSet(PermRead, PermWrite, PermAdmin, PermFederation)).
	Set(RoleSystemService, WildcardResourceType, NewPermissionSet(PermRead, PermWrite, PermFederation))

// DefaultPolicy returns the standard role matrix. The returned policy is
// shared and must not be modified.
func DefaultPolicy() *Policy {
	return defaultPolicy
}
