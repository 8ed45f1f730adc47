package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records shipbrain metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEvent records an emitted event.
	RecordEvent(ctx context.Context, kind string)

	// RecordListenerFault records a listener that panicked or returned an error.
	RecordListenerFault(ctx context.Context, kind string)

	// RecordEventDropped records an event rejected because the queue was full.
	RecordEventDropped(ctx context.Context, kind string)

	// RecordDecision records a fired rule.
	RecordDecision(ctx context.Context, ruleID string, autoExecute bool)

	// RecordAction records an action execution with its duration and error status.
	RecordAction(ctx context.Context, actionType string, duration time.Duration, err error)

	// RecordAlert records a newly created alert.
	RecordAlert(ctx context.Context, severity, category string)

	// RecordAnalysis records a full analysis run.
	RecordAnalysis(ctx context.Context, duration time.Duration, patterns int)

	// RecordSweep records how many items a periodic sweep removed.
	RecordSweep(ctx context.Context, sweep string, removed int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	events          metric.Int64Counter
	listenerFaults  metric.Int64Counter
	eventsDropped   metric.Int64Counter
	decisions       metric.Int64Counter
	actions         metric.Int64Counter
	actionLatency   metric.Float64Histogram
	alerts          metric.Int64Counter
	analysisLatency metric.Float64Histogram
	patterns        metric.Int64Histogram
	sweepRemoved    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("shipbrain")
	m := &otelMetrics{}
	var err error

	if m.events, err = meter.Int64Counter("shipbrain.events.emitted",
		metric.WithDescription("Number of events emitted on the bus"),
	); err != nil {
		return nil, err
	}
	if m.listenerFaults, err = meter.Int64Counter("shipbrain.events.listener_faults",
		metric.WithDescription("Number of event listener failures"),
	); err != nil {
		return nil, err
	}
	if m.eventsDropped, err = meter.Int64Counter("shipbrain.events.dropped",
		metric.WithDescription("Number of events rejected by a full queue"),
	); err != nil {
		return nil, err
	}
	if m.decisions, err = meter.Int64Counter("shipbrain.decisions",
		metric.WithDescription("Number of decisions produced by rules"),
	); err != nil {
		return nil, err
	}
	if m.actions, err = meter.Int64Counter("shipbrain.actions",
		metric.WithDescription("Number of executed actions"),
	); err != nil {
		return nil, err
	}
	if m.actionLatency, err = meter.Float64Histogram("shipbrain.actions.latency_ms",
		metric.WithDescription("Action execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.alerts, err = meter.Int64Counter("shipbrain.alerts.created",
		metric.WithDescription("Number of alerts created"),
	); err != nil {
		return nil, err
	}
	if m.analysisLatency, err = meter.Float64Histogram("shipbrain.analysis.latency_ms",
		metric.WithDescription("Full analysis latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.patterns, err = meter.Int64Histogram("shipbrain.analysis.patterns",
		metric.WithDescription("Patterns detected per analysis run"),
	); err != nil {
		return nil, err
	}
	if m.sweepRemoved, err = meter.Int64Counter("shipbrain.sweeps.removed",
		metric.WithDescription("Items removed by periodic sweeps"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// OrNoop returns m, or NoopMetrics when m is nil.
func OrNoop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordEvent(ctx context.Context, kind string) {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *otelMetrics) RecordListenerFault(ctx context.Context, kind string) {
	m.listenerFaults.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *otelMetrics) RecordEventDropped(ctx context.Context, kind string) {
	m.eventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *otelMetrics) RecordDecision(ctx context.Context, ruleID string, autoExecute bool) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule_id", ruleID),
		attribute.Bool("auto_execute", autoExecute),
	))
}

func (m *otelMetrics) RecordAction(ctx context.Context, actionType string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("action_type", actionType),
		attribute.Bool("success", err == nil),
	}
	m.actions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.actionLatency.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))
}

func (m *otelMetrics) RecordAlert(ctx context.Context, severity, category string) {
	m.alerts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("severity", severity),
		attribute.String("category", category),
	))
}

func (m *otelMetrics) RecordAnalysis(ctx context.Context, duration time.Duration, patterns int) {
	m.analysisLatency.Record(ctx, float64(duration.Microseconds())/1000)
	m.patterns.Record(ctx, int64(patterns))
}

func (m *otelMetrics) RecordSweep(ctx context.Context, sweep string, removed int) {
	m.sweepRemoved.Add(ctx, int64(removed), metric.WithAttributes(attribute.String("sweep", sweep)))
}
