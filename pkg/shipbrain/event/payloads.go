package event

import (
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// ShipmentCreated is emitted when a shipment enters the registry.
type ShipmentCreated struct {
	Shipment *model.UnifiedShipment `json:"shipment"`
}

// ShipmentUpdated is emitted when a registered shipment changes.
type ShipmentUpdated struct {
	Shipment       *model.UnifiedShipment `json:"shipment"`
	PreviousStatus model.Status           `json:"previousStatus"`
	Changed        []string               `json:"changed,omitempty"`
}

// ShipmentDelivered is emitted when a shipment reaches delivered.
type ShipmentDelivered struct {
	Shipment *model.UnifiedShipment `json:"shipment"`
}

// ShipmentDelayed is emitted when a shipment becomes delayed.
type ShipmentDelayed struct {
	Shipment *model.UnifiedShipment `json:"shipment"`
}

// ShipmentIssue is emitted when a shipment reports a delivery problem.
type ShipmentIssue struct {
	Shipment *model.UnifiedShipment `json:"shipment"`
	Reason   string                 `json:"reason"`
}

// AlertCreated is emitted for a new alert (not for deduplicated updates).
type AlertCreated struct {
	Alert *model.Alert `json:"alert"`
}

// AlertResolved is emitted when an alert leaves the active set.
type AlertResolved struct {
	Alert *model.Alert `json:"alert"`
}

// DecisionMade is emitted when a rule fires.
type DecisionMade struct {
	Decision    *model.Decision `json:"decision"`
	AutoExecute bool            `json:"autoExecute"`
}

// ActionExecuted is emitted after every action execution.
type ActionExecuted struct {
	Result model.ActionResult `json:"result"`
}

// PatternDetected is emitted once per pattern found by an analysis run.
type PatternDetected struct {
	Pattern model.DetectedPattern `json:"pattern"`
}

// LearningUpdated is emitted after the learning models are retrained.
type LearningUpdated struct {
	Samples         int     `json:"samples"`
	Trained         bool    `json:"trained"`
	AvgDeliveryDays float64 `json:"avgDeliveryDays"`
	SuccessRate     float64 `json:"successRate"`
	IssueRate       float64 `json:"issueRate"`
}

// JourneyBuilt is emitted when a shipment journey is assembled.
type JourneyBuilt struct {
	Journey *model.Journey `json:"journey"`
}

// ContextChanged is emitted when the operational context is recomputed.
type ContextChanged struct {
	Context model.OperationalContext `json:"context"`
}

// InsightGenerated is emitted for every insight produced by a generation run.
type InsightGenerated struct {
	Insight model.Insight `json:"insight"`
}

// ModuleRegistered is emitted when a component registers with the brain.
type ModuleRegistered struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

func (ShipmentCreated) Kind() Kind   { return KindShipmentCreated }
func (ShipmentUpdated) Kind() Kind   { return KindShipmentUpdated }
func (ShipmentDelivered) Kind() Kind { return KindShipmentDelivered }
func (ShipmentDelayed) Kind() Kind   { return KindShipmentDelayed }
func (ShipmentIssue) Kind() Kind     { return KindShipmentIssue }
func (AlertCreated) Kind() Kind      { return KindAlertCreated }
func (AlertResolved) Kind() Kind     { return KindAlertResolved }
func (DecisionMade) Kind() Kind      { return KindDecisionMade }
func (ActionExecuted) Kind() Kind    { return KindActionExecuted }
func (PatternDetected) Kind() Kind   { return KindPatternDetected }
func (LearningUpdated) Kind() Kind   { return KindLearningUpdated }
func (JourneyBuilt) Kind() Kind      { return KindJourneyBuilt }
func (ContextChanged) Kind() Kind    { return KindContextChanged }
func (InsightGenerated) Kind() Kind  { return KindInsightGenerated }
func (ModuleRegistered) Kind() Kind  { return KindModuleRegistered }

func (ShipmentCreated) sealed()   {}
func (ShipmentUpdated) sealed()   {}
func (ShipmentDelivered) sealed() {}
func (ShipmentDelayed) sealed()   {}
func (ShipmentIssue) sealed()     {}
func (AlertCreated) sealed()      {}
func (AlertResolved) sealed()     {}
func (DecisionMade) sealed()      {}
func (ActionExecuted) sealed()    {}
func (PatternDetected) sealed()   {}
func (LearningUpdated) sealed()   {}
func (JourneyBuilt) sealed()      {}
func (ContextChanged) sealed()    {}
func (InsightGenerated) sealed()  {}
func (ModuleRegistered) sealed()  {}

// ShipmentOf returns the shipment carried by a shipment.* payload, or nil.
func ShipmentOf(p Payload) *model.UnifiedShipment {
	switch v := p.(type) {
	case ShipmentCreated:
		return v.Shipment
	case ShipmentUpdated:
		return v.Shipment
	case ShipmentDelivered:
		return v.Shipment
	case ShipmentDelayed:
		return v.Shipment
	case ShipmentIssue:
		return v.Shipment
	}
	return nil
}
