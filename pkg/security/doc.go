/*
Package security groups the tenant-facing security layers of Warden.

  - auth: API key credentials bound to a tenant and role
  - authz: role permissions, tenant isolation and partition keys
  - tenant: the HTTP gateway that resolves the caller's tenant and role and
    applies the per-tenant rate limit
  - secrets: field classification, redaction, federation anonymization and
    ${secret:name} resolution for configuration credentials
  - tls: HTTPS server configuration with certificate hot reload

A request passes them in order: tls terminates the connection, tenant
resolves identity (through auth when API keys are configured), and
handlers call authz before touching tenant data.
*/
package security
