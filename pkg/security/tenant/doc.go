// Package tenant is the request-level entry point of every governed HTTP
// route.
//
// The gateway extracts the tenant identity from request headers, applies
// the route policy for the caller's gateway role, and admits the request
// through the tenant's sliding-window limiter before any handler runs. The
// resulting Context is stored on the request and never persisted.
//
// Gateway roles are coarser than the authz roles and map onto them:
//
//	viewer  -> reader
//	builder -> contributor
//	admin   -> admin
package tenant
