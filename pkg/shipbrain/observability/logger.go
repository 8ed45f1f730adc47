// Package observability provides structured logging, metrics and tracing
// for shipbrain.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// OrDefault returns logger, or slog.Default() when logger is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// ComponentLogger adds the component name to a logger.
//
// Example:
//
//	logger := ComponentLogger(base, "alerts")
//	logger.Info("alert created") // includes component=alerts
func ComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	return OrDefault(logger).With(slog.String("component", component))
}

// LogListenerFault logs a failing event listener. Delivery continues.
func LogListenerFault(logger *slog.Logger, eventID, kind string, listenerID int64, err error) {
	if logger == nil {
		return
	}
	logger.Error("event listener failed",
		slog.String("event_id", eventID),
		slog.String("event_kind", kind),
		slog.Int64("listener_id", listenerID),
		slog.String("error", err.Error()),
	)
}

// LogDecision logs a fired rule.
func LogDecision(logger *slog.Logger, decisionID, ruleID, actionType string, confidence float64) {
	if logger == nil {
		return
	}
	logger.Info("decision made",
		slog.String("decision_id", decisionID),
		slog.String("rule_id", ruleID),
		slog.String("action_type", actionType),
		slog.Float64("confidence", confidence),
	)
}

// LogActionComplete logs a successful action execution.
func LogActionComplete(logger *slog.Logger, actionType, resultID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("action executed",
		slog.String("action_type", actionType),
		slog.String("result_id", resultID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogActionError logs a failed action execution.
func LogActionError(logger *slog.Logger, actionType, resultID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("action failed",
		slog.String("action_type", actionType),
		slog.String("result_id", resultID),
		slog.String("error", err.Error()),
	)
}

// LogAnalysisComplete logs a finished analysis run.
func LogAnalysisComplete(logger *slog.Logger, shipments, patterns, insights int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("analysis completed",
		slog.Int("shipments", shipments),
		slog.Int("patterns", patterns),
		slog.Int("insights", insights),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSweep logs a periodic sweep that removed something.
func LogSweep(logger *slog.Logger, sweep string, removed int) {
	if logger == nil || removed == 0 {
		return
	}
	logger.Debug("sweep completed",
		slog.String("sweep", sweep),
		slog.Int("removed", removed),
	)
}

// LogSnapshot logs a persisted snapshot.
func LogSnapshot(logger *slog.Logger, namespace string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("snapshot saved",
		slog.String("namespace", namespace),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogSnapshotError logs snapshot failure (non-fatal).
func LogSnapshotError(logger *slog.Logger, namespace, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot failed",
		slog.String("namespace", namespace),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
