package observability

import (
	"context"
	"time"

	"gatekeeper/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedAdmitter wraps a ratelimit.Admitter with OpenTelemetry tracing
// and metrics instrumentation. Every admission check produces a span, a
// latency observation, and a decision counter increment labelled by policy
// and outcome.
type InstrumentedAdmitter struct {
	inner     ratelimit.Admitter
	tracer    trace.Tracer
	duration  metric.Float64Histogram
	decisions metric.Int64Counter
}

// NewInstrumentedAdmitter creates an admitter wrapper that records trace
// spans, check latency histograms, and per-policy decision counters.
func NewInstrumentedAdmitter(inner ratelimit.Admitter) (*InstrumentedAdmitter, error) {
	tracer := otel.Tracer("gatekeeper/ratelimit")
	meter := otel.Meter("gatekeeper/ratelimit")

	duration, err := meter.Float64Histogram(
		"ratelimit.check.duration",
		metric.WithDescription("Duration of admission checks in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	decisions, err := meter.Int64Counter(
		"ratelimit.decisions",
		metric.WithDescription("Number of admission decisions by policy and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedAdmitter{
		inner:     inner,
		tracer:    tracer,
		duration:  duration,
		decisions: decisions,
	}, nil
}

// Admit delegates to the wrapped admitter, recording a span and metrics for
// the check. The decision itself is never altered by instrumentation.
func (a *InstrumentedAdmitter) Admit(ctx context.Context, d ratelimit.Descriptor, p *ratelimit.Policy) ratelimit.Decision {
	policyName := ""
	if p != nil {
		policyName = p.Name
	}

	ctx, span := a.tracer.Start(ctx, "ratelimit.Admit",
		trace.WithAttributes(
			attribute.String("ratelimit.policy", policyName),
		),
	)

	start := time.Now()
	dec := a.inner.Admit(ctx, d, p)
	elapsed := time.Since(start).Seconds()

	outcome := outcomeLabel(dec)
	attrs := metric.WithAttributes(
		attribute.String("policy", policyName),
		attribute.String("decision", outcome),
	)

	a.duration.Record(ctx, elapsed, attrs)
	a.decisions.Add(ctx, 1, attrs)

	span.SetAttributes(
		attribute.String("ratelimit.decision", outcome),
		attribute.Int("ratelimit.remaining", dec.Remaining),
	)
	span.End()

	return dec
}

func outcomeLabel(dec ratelimit.Decision) string {
	switch {
	case dec.FailedOpen:
		return "fail_open"
	case dec.Admitted:
		return "admitted"
	default:
		return "denied"
	}
}
