package rules

import (
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Default rule IDs.
const (
	RuleDelayedShipment = "delayed_shipment_alert"
	RuleShipmentIssue   = "shipment_issue_alert"
	RuleDeliveredNotify = "delivered_notification"
	RuleOutForDelivery  = "out_for_delivery_notification"
)

// Defaults returns the built-in rule set. Resolving alerts on delivery is
// not a rule: the core does it for every delivered shipment.
func Defaults() []Rule {
	return []Rule{
		{
			ID:           RuleDelayedShipment,
			Name:         "Delayed shipment",
			TriggerEvent: event.KindShipmentDelayed,
			When:         "daysInTransit > 5 and status not in [delivered, returned, cancelled]",
			Action: model.Action{Type: "create_alert", Params: map[string]any{
				"severity":       string(model.SeverityError),
				"category":       "delay",
				"title":          "Shipment ${trackingNumber} delayed",
				"message":        "${carrier} shipment to ${city} has been in transit ${daysInTransit} days",
				"autoResolvable": true,
			}},
			Priority:    100,
			Confidence:  95,
			Enabled:     true,
			AutoExecute: true,
		},
		{
			ID:           RuleShipmentIssue,
			Name:         "Shipment issue",
			TriggerEvent: event.KindShipmentIssue,
			Condition:    map[string]any{"hasIssue": true},
			Action: model.Action{Type: "create_alert", Params: map[string]any{
				"severity":       string(model.SeverityCritical),
				"category":       "issue",
				"title":          "Issue on shipment ${trackingNumber}",
				"message":        "${issueReason}",
				"autoResolvable": true,
			}},
			Priority:    90,
			Confidence:  90,
			Enabled:     true,
			AutoExecute: true,
		},
		{
			ID:           RuleDeliveredNotify,
			Name:         "Delivery confirmation",
			TriggerEvent: event.KindShipmentDelivered,
			Condition:    map[string]any{"customer": map[string]any{"ne": ""}},
			Action: model.Action{Type: "send_notification", Params: map[string]any{
				"channel":  "customer",
				"template": "delivered",
				"message":  "Hola ${customer}, tu pedido ${orderNumber} fue entregado",
			}},
			Priority:   50,
			Confidence: 85,
			Enabled:    true,
		},
		{
			ID:           RuleOutForDelivery,
			Name:         "Out for delivery",
			TriggerEvent: event.KindShipmentUpdated,
			Condition: map[string]any{
				"status":         string(model.StatusOutForDelivery),
				"previousStatus": map[string]any{"ne": string(model.StatusOutForDelivery)},
			},
			Action: model.Action{Type: "send_notification", Params: map[string]any{
				"channel":  "customer",
				"template": "out_for_delivery",
				"message":  "Hola ${customer}, tu pedido ${orderNumber} está en reparto",
			}},
			Priority:   40,
			Confidence: 80,
			Enabled:    true,
		},
	}
}

// LoadDefaults adds the built-in rules to m.
func LoadDefaults(m *Manager) error {
	return m.Replace(OriginDefault, Defaults())
}
