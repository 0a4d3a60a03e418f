package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Sampler strategies accepted by telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"

	// SamplerRatio samples a fraction of traces. Spans started with a high
	// or critical risk level are always kept.
	SamplerRatio = "ratio"
)

// createSampler builds the sampler for strategy. Every strategy respects
// the parent's decision, so a policy check joins the trace of the agent
// orchestrator that called it.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	switch strategy {
	case SamplerAlways:
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case SamplerNever:
		return sdktrace.ParentBased(sdktrace.NeverSample()), nil
	case SamplerRatio:
		if ratio < 0.0 || ratio > 1.0 {
			return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
		}
		return riskSampler{base: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))}, nil
	default:
		return nil, fmt.Errorf("unknown sampler strategy: %s (valid: always, never, ratio)", strategy)
	}
}

// riskSampler keeps spans tagged at start with a high or critical
// AttrRiskLevel and defers everything else to base.
type riskSampler struct {
	base sdktrace.Sampler
}

func (s riskSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, kv := range p.Attributes {
		if kv.Key != AttrRiskLevel {
			continue
		}
		if v := kv.Value.AsString(); v == "high" || v == "critical" {
			return sdktrace.SamplingResult{
				Decision:   sdktrace.RecordAndSample,
				Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
			}
		}
		break
	}
	return s.base.ShouldSample(p)
}

func (s riskSampler) Description() string {
	return "RiskSampler{" + s.base.Description() + "}"
}
