package shipbrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/alert"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/brain"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/memory"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/operator"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/query"
)

// Analyze runs a full analysis over the registry: pattern detection,
// learning model retraining, insight generation and a context refresh.
// Patterns replace the previous run's patterns in the memory store.
func (c *Core) Analyze(ctx context.Context) model.AnalysisReport {
	start := c.clock.Now()
	shipments := c.brain.All()

	ctx, span := c.spans.StartAnalysisSpan(ctx, len(shipments))
	defer span.End()

	patterns := c.detector.Analyze(shipments)
	c.memory.ForgetCategory(CategoryPattern)
	for _, p := range patterns {
		c.memory.Remember(CategoryPattern, p, memory.Options{
			ID:         CategoryPattern + ":" + string(p.Type) + ":" + p.ID,
			Tier:       memory.TierLong,
			Importance: int(p.Confidence),
		})
		if _, err := c.bus.Emit(ctx, event.PatternDetected{Pattern: p}, event.WithSource("pattern")); err != nil {
			c.logger.Warn("pattern event dropped", slog.String("pattern_type", string(p.Type)), slog.Any("error", err))
		}
	}
	c.spans.AddSpanEvent(ctx, "patterns_detected")

	mdl := c.learner.Train(ctx, shipments)
	c.insights.Generate(ctx, shipments)
	opCtx := c.brain.RefreshContext(ctx)

	dur := c.clock.Now().Sub(start)
	report := model.AnalysisReport{
		Shipments:       len(shipments),
		Patterns:        patterns,
		Insights:        c.insights.Current(),
		Trained:         mdl.Trained,
		LearningSamples: mdl.Global.Samples,
		Context:         opCtx,
		Duration:        dur,
		GeneratedAt:     c.clock.Now(),
	}
	c.metrics.RecordAnalysis(ctx, dur, len(patterns))
	observability.LogAnalysisComplete(c.logger, report.Shipments, len(report.Patterns), len(report.Insights), float64(dur.Microseconds())/1000)
	return report
}

// Predict returns delivery time, success and issue predictions for one
// shipment.
func (c *Core) Predict(shipmentID string) (model.ShipmentPrediction, error) {
	s, err := c.shipment(shipmentID)
	if err != nil {
		return model.ShipmentPrediction{}, err
	}
	return c.learner.Predict(s), nil
}

// Journey builds the timeline of one shipment.
func (c *Core) Journey(ctx context.Context, shipmentID string) (*model.Journey, error) {
	j, err := c.brain.BuildJourney(ctx, shipmentID)
	if errors.Is(err, brain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, shipmentID)
	}
	return j, err
}

// Shipment returns one shipment by internal ID or tracking number.
func (c *Core) Shipment(idOrTracking string) (*model.UnifiedShipment, error) {
	return c.shipment(idOrTracking)
}

func (c *Core) shipment(idOrTracking string) (*model.UnifiedShipment, error) {
	if s, err := c.brain.Get(idOrTracking); err == nil {
		return s, nil
	}
	if s, ok := c.brain.ByTracking(idOrTracking); ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrTracking)
}

// Shipments lists shipments matching f.
func (c *Core) Shipments(f brain.Filter) []*model.UnifiedShipment {
	return c.brain.Find(f)
}

// ActiveAlerts lists open alerts matching f.
func (c *Core) ActiveAlerts(f alert.Filter) []*model.Alert {
	return c.alerts.Active(f)
}

// PendingDecisions lists decisions waiting for approval.
func (c *Core) PendingDecisions() []*model.Decision {
	return c.decisions.Pending()
}

// Context returns the live operational context.
func (c *Core) Context() model.OperationalContext {
	return c.brain.Context()
}

// HealthCheck runs every module health check.
func (c *Core) HealthCheck(ctx context.Context) brain.Health {
	return c.brain.HealthCheck(ctx)
}

// Query runs a named query. See package query for the built-in names.
func (c *Core) Query(ctx context.Context, name, targetID string, args any) (any, error) {
	return c.queries.Execute(ctx, name, targetID, args)
}

// Command dispatches an operator command and returns the processed copy.
func (c *Core) Command(ctx context.Context, cmd *operator.Command) (*operator.Command, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.commands.Dispatch(ctx, cmd)
}

// CommandHistory returns the most recent operator commands.
func (c *Core) CommandHistory(limit int) []*operator.Command {
	return c.commands.History(limit)
}

var _ query.Source = (*Core)(nil)
