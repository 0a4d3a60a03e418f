// Package tracing provides OpenTelemetry distributed tracing for Warden.
//
// # Overview
//
// Policy checks are traced as one span per evaluation with child spans for
// the rate limiter, rule matching and recording. Spans carry the tenant,
// action class, risk level and verdict so slow or escalated checks can be
// found in a trace backend.
//
// # Trace Context Propagation
//
// Incoming requests are joined to the caller's trace using W3C Trace
// Context (https://www.w3.org/TR/trace-context/):
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// # Sampling Strategies
//
// Three sampling strategies are supported: always, never and ratio. Under
// ratio, a policy check whose request classifies as high or critical risk
// is always sampled, so denied and escalated deploys stay visible when the
// rest of the traffic is thinned.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "policy.evaluate")
//	defer span.End()
//	tracing.SetDecisionAttributes(span, "allow", "low", "bundle-v3")
//
// A disabled tracer is a no-op and costs well under a microsecond per span.
package tracing
