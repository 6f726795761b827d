package observability

import (
	"context"
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedStorage wraps a storage.Storage implementation with
// OpenTelemetry tracing and metrics instrumentation.
type InstrumentedStorage struct {
	inner    storage.Storage
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedStorage creates a new storage wrapper that records trace spans,
// operation latency histograms, and error counters for every storage method call.
func NewInstrumentedStorage(inner storage.Storage) (*InstrumentedStorage, error) {
	tracer := otel.Tracer("gatekeeper/storage")
	meter := otel.Meter("gatekeeper/storage")

	duration, err := meter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"storage.operation.errors",
		metric.WithDescription("Number of storage operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedStorage{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (s *InstrumentedStorage) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "storage."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("storage.operation", operation),
		}, attrs...)...),
	)
	return ctx, span
}

func (s *InstrumentedStorage) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	s.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		s.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (s *InstrumentedStorage) Policies(ctx context.Context) ([]*models.Policy, error) {
	ctx, span := s.startSpan(ctx, "Policies")
	start := time.Now()
	result, err := s.inner.Policies(ctx)
	s.record(ctx, span, "Policies", start, err)
	return result, err
}

func (s *InstrumentedStorage) GetPolicy(ctx context.Context, name string) (*models.Policy, error) {
	ctx, span := s.startSpan(ctx, "GetPolicy", attribute.String("policy", name))
	start := time.Now()
	result, err := s.inner.GetPolicy(ctx, name)
	s.record(ctx, span, "GetPolicy", start, err)
	return result, err
}

func (s *InstrumentedStorage) SavePolicy(ctx context.Context, policy *models.Policy) error {
	ctx, span := s.startSpan(ctx, "SavePolicy", attribute.String("policy", policy.Name))
	start := time.Now()
	err := s.inner.SavePolicy(ctx, policy)
	s.record(ctx, span, "SavePolicy", start, err)
	return err
}

func (s *InstrumentedStorage) DeletePolicy(ctx context.Context, name string) error {
	ctx, span := s.startSpan(ctx, "DeletePolicy", attribute.String("policy", name))
	start := time.Now()
	err := s.inner.DeletePolicy(ctx, name)
	s.record(ctx, span, "DeletePolicy", start, err)
	return err
}

func (s *InstrumentedStorage) Ping(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Ping")
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.record(ctx, span, "Ping", start, err)
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
