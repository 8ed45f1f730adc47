package query

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/alert"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/brain"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Built-in query names.
const (
	QueryShipments        = "shipments"
	QueryActiveAlerts     = "alerts.active"
	QueryPendingDecisions = "decisions.pending"
	QueryAnalysis         = "analysis.run"
	QueryPredict          = "shipment.predict"
	QueryHealth           = "health"
	QueryContext          = "context"
	QueryJourney          = "shipment.journey"
)

// Source is what the built-in queries read from. The core implements it.
type Source interface {
	Shipments(f brain.Filter) []*model.UnifiedShipment
	ActiveAlerts(f alert.Filter) []*model.Alert
	PendingDecisions() []*model.Decision
	Analyze(ctx context.Context) model.AnalysisReport
	Predict(shipmentID string) (model.ShipmentPrediction, error)
	Journey(ctx context.Context, shipmentID string) (*model.Journey, error)
	Context() model.OperationalContext
	HealthCheck(ctx context.Context) brain.Health
}

// RegisterBuiltins registers the standard queries against src.
func RegisterBuiltins(r *Registry, src Source) error {
	builtins := map[string]Handler{
		QueryShipments: func(_ context.Context, _ string, args any) (any, error) {
			f, err := decodeArgs[brain.Filter](args)
			if err != nil {
				return nil, err
			}
			return src.Shipments(f), nil
		},
		QueryActiveAlerts: func(_ context.Context, _ string, args any) (any, error) {
			f, err := decodeArgs[alert.Filter](args)
			if err != nil {
				return nil, err
			}
			return src.ActiveAlerts(f), nil
		},
		QueryPendingDecisions: func(context.Context, string, any) (any, error) {
			return src.PendingDecisions(), nil
		},
		QueryAnalysis: func(ctx context.Context, _ string, _ any) (any, error) {
			return src.Analyze(ctx), nil
		},
		QueryPredict: func(_ context.Context, targetID string, _ any) (any, error) {
			if targetID == "" {
				return nil, ErrTargetRequired
			}
			p, err := src.Predict(targetID)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrTargetNotFound, err)
			}
			return p, nil
		},
		QueryJourney: func(ctx context.Context, targetID string, _ any) (any, error) {
			if targetID == "" {
				return nil, ErrTargetRequired
			}
			j, err := src.Journey(ctx, targetID)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrTargetNotFound, err)
			}
			return j, nil
		},
		QueryContext: func(context.Context, string, any) (any, error) {
			return src.Context(), nil
		},
		QueryHealth: func(ctx context.Context, _ string, _ any) (any, error) {
			return src.HealthCheck(ctx), nil
		},
	}

	for name, handler := range builtins {
		if err := r.Register(name, handler); err != nil {
			return fmt.Errorf("failed to register builtin query %q: %w", name, err)
		}
	}
	return nil
}

// decodeArgs accepts nil, a T, a *T, or any JSON-shaped value (such as a
// map decoded from a request body) and returns a T.
func decodeArgs[T any](args any) (T, error) {
	var zero T
	switch v := args.(type) {
	case nil:
		return zero, nil
	case T:
		return v, nil
	case *T:
		if v == nil {
			return zero, nil
		}
		return *v, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrBadArgs, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrBadArgs, err)
	}
	return out, nil
}
