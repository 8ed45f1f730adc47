package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordEvent(_ context.Context, _ string)                            {}
func (NoopMetrics) RecordListenerFault(_ context.Context, _ string)                    {}
func (NoopMetrics) RecordEventDropped(_ context.Context, _ string)                     {}
func (NoopMetrics) RecordDecision(_ context.Context, _ string, _ bool)                 {}
func (NoopMetrics) RecordAction(_ context.Context, _ string, _ time.Duration, _ error) {}
func (NoopMetrics) RecordAlert(_ context.Context, _, _ string)                         {}
func (NoopMetrics) RecordAnalysis(_ context.Context, _ time.Duration, _ int)           {}
func (NoopMetrics) RecordSweep(_ context.Context, _ string, _ int)                     {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

func (NoopSpanManager) StartIngestSpan(ctx context.Context, _, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) StartAnalysisSpan(ctx context.Context, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) StartActionSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
