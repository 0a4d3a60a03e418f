// Package metrics exposes Warden's Prometheus metrics.
//
// A Collector owns a registry and records:
//
//   - HTTP requests by method, chi route pattern and status
//   - Policy decisions by decision, source and risk level, with latency
//   - Matched rules, opened escalations and built-in bundle fallbacks
//   - Rate limiter outcomes and authorization denials
//
// Usage:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//	collector.RecordDecision("allow", "bundle", "low", elapsed)
//
// All Record methods are safe on a nil *Collector and when metrics are
// disabled in configuration.
package metrics
