// Package telemetry groups Warden's observability packages.
//
//   - logging: the slog process logger, context fields and secret redaction
//   - metrics: Prometheus collectors for HTTP requests, policy decisions,
//     rule hits, escalations, bundle publishes and rate limiting
//   - tracing: OpenTelemetry spans around policy evaluation
//   - health: readiness checks over the configured stores and a liveness
//     handler
//
// Every piece is optional at runtime. A nil metrics collector or a disabled
// tracer turns the corresponding calls into no-ops, so the policy engine
// never branches on whether telemetry is configured.
package telemetry
