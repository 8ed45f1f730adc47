package action

import (
	"context"
	"log/slog"
)

// Notification is an outbound message to a customer or operator.
type Notification struct {
	Channel    string         `json:"channel"`
	Template   string         `json:"template,omitempty"`
	Recipient  string         `json:"recipient,omitempty"`
	Message    string         `json:"message"`
	ShipmentID string         `json:"shipmentId,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Notifier delivers notifications. Delivery channels (WhatsApp, SMS, email)
// live outside shipbrain; implementations wrap them. Errors categorized as
// transient are retried by the executor.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogNotifier writes notifications to a logger instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n.
func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		slog.String("channel", n.Channel),
		slog.String("template", n.Template),
		slog.String("recipient", n.Recipient),
		slog.String("shipment_id", n.ShipmentID),
		slog.String("message", n.Message),
	)
	return nil
}
