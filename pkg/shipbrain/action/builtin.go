package action

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/alert"
	sberrors "github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/errors"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/memory"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Built-in action types.
const (
	TypeCreateAlert      = "create_alert"
	TypeResolveAlerts    = "resolve_alerts"
	TypeSendNotification = "send_notification"
	TypeRemember         = "remember"
	TypeLog              = "log"
)

// AlertService is the part of alert.Manager the alert handlers use.
type AlertService interface {
	Create(ctx context.Context, req alert.Request) (*model.Alert, bool)
	Resolve(ctx context.Context, id, reason string) (*model.Alert, error)
	ResolveForShipment(ctx context.Context, shipmentID, reason string) int
}

// Builtins holds the collaborators of the built-in handlers. Nil
// collaborators leave their handlers unregistered.
type Builtins struct {
	Alerts   AlertService
	Memory   Rememberer
	Notifier Notifier
	Logger   *slog.Logger
}

// Register installs every built-in handler whose collaborator is set.
func (b Builtins) Register(e *Executor) {
	if b.Alerts != nil {
		e.Register(TypeCreateAlert, CreateAlert(b.Alerts))
		e.Register(TypeResolveAlerts, ResolveAlerts(b.Alerts))
	}
	if b.Notifier != nil {
		e.Register(TypeSendNotification, SendNotification(b.Notifier))
	}
	if b.Memory != nil {
		e.Register(TypeRemember, Remember(b.Memory))
	}
	e.Register(TypeLog, Log(b.Logger))
}

// CreateAlert raises (or deduplicates) an alert.
//
// Params: severity, category (required), title, message, autoResolvable
// (default true), ttl.
func CreateAlert(alerts AlertService) Handler {
	return func(ctx context.Context, req Request) (map[string]any, error) {
		p := req.Params
		category := p.String("category", "")
		if category == "" {
			return nil, sberrors.Permanent(&sberrors.ParamError{Param: "category", Reason: "required"}, TypeCreateAlert)
		}
		a, created := alerts.Create(ctx, alert.Request{
			Severity:       model.ParseSeverity(p.String("severity", "warning")),
			Category:       category,
			Title:          p.String("title", ""),
			Message:        p.String("message", ""),
			ShipmentID:     p.String("shipmentId", req.Target.ShipmentID),
			AutoResolvable: p.Bool("autoResolvable", true),
			TTL:            p.Duration("ttl", 0),
		})
		return map[string]any{
			"alertId":     a.ID,
			"created":     created,
			"occurrences": a.Occurrences,
		}, nil
	}
}

// ResolveAlerts resolves one alert by alertId, or every auto-resolvable
// alert of the target shipment.
func ResolveAlerts(alerts AlertService) Handler {
	return func(ctx context.Context, req Request) (map[string]any, error) {
		reason := req.Params.String("reason", "resolved by rule")
		if id := req.Params.String("alertId", ""); id != "" {
			if _, err := alerts.Resolve(ctx, id, reason); err != nil {
				return nil, sberrors.Permanent(err, TypeResolveAlerts)
			}
			return map[string]any{"resolved": 1}, nil
		}

		shipmentID := req.Params.String("shipmentId", req.Target.ShipmentID)
		if shipmentID == "" {
			return nil, sberrors.Permanent(&sberrors.ParamError{Param: "shipmentId", Reason: "required without alertId"}, TypeResolveAlerts)
		}
		return map[string]any{"resolved": alerts.ResolveForShipment(ctx, shipmentID, reason)}, nil
	}
}

// SendNotification hands a message to the notifier.
//
// Params: channel (default "customer"), template, to (default the
// customer field of the event), message (required).
func SendNotification(n Notifier) Handler {
	return func(ctx context.Context, req Request) (map[string]any, error) {
		p := req.Params
		msg := p.String("message", "")
		if msg == "" {
			return nil, sberrors.Permanent(&sberrors.ParamError{Param: "message", Reason: "required"}, TypeSendNotification)
		}
		recipient := p.String("to", "")
		if recipient == "" {
			if c, ok := req.Target.Vars["customer"].(string); ok {
				recipient = c
			}
		}
		note := Notification{
			Channel:    p.String("channel", "customer"),
			Template:   p.String("template", ""),
			Recipient:  recipient,
			Message:    msg,
			ShipmentID: req.Target.ShipmentID,
		}
		if err := n.Notify(ctx, note); err != nil {
			return nil, err
		}
		return map[string]any{"channel": note.Channel, "recipient": note.Recipient}, nil
	}
}

// Remember stores a fact in memory.
//
// Params: category (required), data, tier (default medium), importance.
func Remember(m Rememberer) Handler {
	return func(_ context.Context, req Request) (map[string]any, error) {
		p := req.Params
		category := p.String("category", "")
		if category == "" {
			return nil, sberrors.Permanent(&sberrors.ParamError{Param: "category", Reason: "required"}, TypeRemember)
		}
		data, ok := p.Raw()["data"]
		if !ok {
			data = req.Target.Vars
		}
		entry := m.Remember(category, data, memory.Options{
			Tier:       memory.Tier(p.String("tier", string(memory.TierMedium))),
			Importance: p.Int("importance", 0),
		})
		return map[string]any{"entryId": entry.ID}, nil
	}
}

// Log writes the message param to the logger.
func Log(logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req Request) (map[string]any, error) {
		level := slog.LevelInfo
		switch req.Params.String("level", "info") {
		case "debug":
			level = slog.LevelDebug
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		msg := req.Params.String("message", fmt.Sprintf("action %s", req.Type))
		logger.Log(ctx, level, msg,
			slog.String("decision_id", req.Target.DecisionID),
			slog.String("shipment_id", req.Target.ShipmentID),
		)
		return map[string]any{"logged": true}, nil
	}
}
