package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the shipbrain tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("shipbrain")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartIngestSpan starts a span for one ingestion batch.
	StartIngestSpan(ctx context.Context, trackingCount, orderCount int) (context.Context, trace.Span)

	// StartAnalysisSpan starts a span for a full pattern/learning/insight run.
	StartAnalysisSpan(ctx context.Context, shipments int) (context.Context, trace.Span)

	// StartActionSpan starts a span for one action execution.
	StartActionSpan(ctx context.Context, actionType, decisionID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// OrNoopSpans returns s, or NoopSpanManager when s is nil.
func OrNoopSpans(s SpanManager) SpanManager {
	if s == nil {
		return NoopSpanManager{}
	}
	return s
}

func (m *otelSpanManager) StartIngestSpan(ctx context.Context, trackingCount, orderCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "shipbrain.ingest",
		trace.WithAttributes(
			attribute.Int("ingest.tracking", trackingCount),
			attribute.Int("ingest.orders", orderCount),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartAnalysisSpan(ctx context.Context, shipments int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "shipbrain.analysis",
		trace.WithAttributes(
			attribute.Int("analysis.shipments", shipments),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartActionSpan(ctx context.Context, actionType, decisionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "shipbrain.action."+actionType,
		trace.WithAttributes(
			attribute.String("action.type", actionType),
			attribute.String("decision.id", decisionID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
