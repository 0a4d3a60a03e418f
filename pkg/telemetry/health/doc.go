// Package health reports whether warden's backing stores are reachable.
//
// Each store registers a named check. GET /health runs every check
// concurrently, each under its own timeout, and answers 200 with status
// "ready" when all pass or 503 with status "degraded" otherwise. GET
// /health/live only reports that the process is up.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("evidence", health.PingCheck(evidenceDB))
//	r.Get("/health", checker.ReadinessHandler())
package health
