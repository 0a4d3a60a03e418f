// Package logging builds Warden's structured logger.
//
// Every component logs through log/slog with a "component" attribute:
//
//	logger := slog.Default().With("component", "policy.engine")
//
// New builds the process logger from configuration and, when redaction is
// enabled, wraps its handler so attributes never carry plaintext secrets.
// Attribute keys are classified with secrets.Classify: Restricted values
// are replaced entirely, Confidential values keep a four character prefix.
// String values are additionally scrubbed of bearer tokens, API keys and
// password assignments wherever they appear.
//
// Request-scoped fields (request_id, tenant_id) travel in the context and
// are added by the *Context logging methods.
package logging
