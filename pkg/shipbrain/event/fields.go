package event

import (
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Fields flattens an event into the variable map that rule conditions are
// evaluated against. Keys use the same camelCase names as the JSON encoding.
func Fields(evt Event) map[string]any {
	f := map[string]any{
		"eventId":   evt.ID,
		"eventKind": string(evt.Kind),
		"source":    evt.Source,
	}

	switch p := evt.Payload.(type) {
	case ShipmentCreated:
		shipmentFields(f, p.Shipment)
	case ShipmentUpdated:
		shipmentFields(f, p.Shipment)
		f["previousStatus"] = string(p.PreviousStatus)
		f["changed"] = p.Changed
	case ShipmentDelivered:
		shipmentFields(f, p.Shipment)
	case ShipmentDelayed:
		shipmentFields(f, p.Shipment)
	case ShipmentIssue:
		shipmentFields(f, p.Shipment)
		f["issueReason"] = p.Reason
	case AlertCreated:
		alertFields(f, p.Alert)
	case AlertResolved:
		alertFields(f, p.Alert)
	case DecisionMade:
		if d := p.Decision; d != nil {
			f["decisionId"] = d.ID
			f["ruleId"] = d.RuleID
			f["actionType"] = d.Action.Type
			f["confidence"] = d.Confidence
			f["shipmentId"] = d.ShipmentID
		}
		f["autoExecute"] = p.AutoExecute
	case ActionExecuted:
		f["actionType"] = p.Result.ActionType
		f["success"] = p.Result.Success
		f["error"] = p.Result.Error
		f["decisionId"] = p.Result.DecisionID
		f["shipmentId"] = p.Result.ShipmentID
		f["attempts"] = p.Result.Attempts
	case PatternDetected:
		f["patternType"] = string(p.Pattern.Type)
		f["confidence"] = p.Pattern.Confidence
		f["occurrences"] = p.Pattern.Occurrences
		f["actionable"] = p.Pattern.Actionable
		for k, v := range p.Pattern.Data {
			f[k] = v
		}
	case LearningUpdated:
		f["samples"] = p.Samples
		f["trained"] = p.Trained
		f["avgDeliveryDays"] = p.AvgDeliveryDays
		f["successRate"] = p.SuccessRate
		f["issueRate"] = p.IssueRate
	case JourneyBuilt:
		if j := p.Journey; j != nil {
			f["shipmentId"] = j.ShipmentID
			f["trackingNumber"] = j.TrackingNumber
			f["status"] = string(j.CurrentStatus)
			f["steps"] = len(j.Steps)
			f["completed"] = j.Completed
		}
	case ContextChanged:
		f["totalShipments"] = p.Context.TotalShipments
		f["delayed"] = p.Context.Delayed
		f["withIssues"] = p.Context.WithIssues
		f["delivered"] = p.Context.Delivered
		f["deliveryRate"] = p.Context.DeliveryRate
	case InsightGenerated:
		f["insightId"] = p.Insight.ID
		f["insightType"] = string(p.Insight.Type)
		f["priority"] = p.Insight.Priority
	case ModuleRegistered:
		f["module"] = p.Name
		f["version"] = p.Version
	}

	for k, v := range evt.Metadata {
		if _, taken := f[k]; !taken {
			f[k] = v
		}
	}
	return f
}

func shipmentFields(f map[string]any, s *model.UnifiedShipment) {
	if s == nil {
		return
	}
	f["shipmentId"] = s.ID
	f["trackingNumber"] = s.TrackingNumber
	f["orderNumber"] = s.OrderNumber
	f["status"] = string(s.CurrentStatus())
	f["carrier"] = s.CarrierName()
	f["city"] = s.DestinationCity()
	f["product"] = s.ProductName()
	f["customer"] = s.CustomerName()
	f["daysInTransit"] = s.DaysInTransit
	f["isDelayed"] = s.IsDelayed
	f["hasIssue"] = s.HasIssue
	f["hadIssue"] = s.HadIssue
	f["issueReason"] = s.IssueReason
	f["matchConfidence"] = s.MatchConfidence
	f["matchMethod"] = string(s.MatchMethod)
}

func alertFields(f map[string]any, a *model.Alert) {
	if a == nil {
		return
	}
	f["alertId"] = a.ID
	f["severity"] = string(a.Severity)
	f["alertStatus"] = string(a.Status)
	f["category"] = a.Category
	f["shipmentId"] = a.ShipmentID
	f["occurrences"] = a.Occurrences
}
