// Package server exposes warden over HTTP.
//
// Routes are served by a chi router. /health and /metrics are open; every
// /v1 route first passes the tenant gateway, which extracts the caller's
// tenant and role, enforces the route policy and admits the request
// through the tenant's sliding-window limiter. Handlers only ever read and
// write the caller's own tenant.
//
//	GET    /health                             readiness of backing stores
//	GET    /health/live                        liveness
//	GET    /metrics                            Prometheus metrics
//	POST   /v1/policy/check                    evaluate one action
//	GET    /v1/policies/active                 active bundle version
//	PUT    /v1/policies/{version}              publish a bundle
//	GET    /v1/policies/{version}              fetch an archived bundle
//	POST   /v1/policies/activate/{version}     activate an archived bundle
//	GET    /v1/policies/rules                  list tenant rules
//	POST   /v1/policies/rules                  create a tenant rule
//	GET    /v1/policies/rules/{id}             get a tenant rule
//	PATCH  /v1/policies/rules/{id}             update a tenant rule
//	DELETE /v1/policies/rules/{id}             delete a tenant rule
//	GET    /v1/policies/decisions              list decisions (json or csv)
//	GET    /v1/escalations                     list escalations
//	POST   /v1/escalations/{id}/resolve        approve or reject
//	POST   /v1/tenants/{id}/federation/export  anonymize data for another tenant
//
// Errors are JSON objects of the form {"error": "..."}; store failures are
// logged and reported as a generic 500 so backend details never reach the
// caller.
package server
