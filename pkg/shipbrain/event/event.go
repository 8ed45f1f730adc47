package event

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Kind identifies an event type.
type Kind string

// Event kinds. The set is closed; every kind has exactly one payload type.
const (
	KindShipmentCreated   Kind = "shipment.created"
	KindShipmentUpdated   Kind = "shipment.updated"
	KindShipmentDelivered Kind = "shipment.delivered"
	KindShipmentDelayed   Kind = "shipment.delayed"
	KindShipmentIssue     Kind = "shipment.issue"
	KindAlertCreated      Kind = "alert.created"
	KindAlertResolved     Kind = "alert.resolved"
	KindDecisionMade      Kind = "decision.made"
	KindActionExecuted    Kind = "action.executed"
	KindPatternDetected   Kind = "pattern.detected"
	KindLearningUpdated   Kind = "learning.updated"
	KindJourneyBuilt      Kind = "journey.built"
	KindContextChanged    Kind = "context.changed"
	KindInsightGenerated  Kind = "insight.generated"
	KindModuleRegistered  Kind = "module.registered"
)

// Kinds lists every known kind.
var Kinds = []Kind{
	KindShipmentCreated,
	KindShipmentUpdated,
	KindShipmentDelivered,
	KindShipmentDelayed,
	KindShipmentIssue,
	KindAlertCreated,
	KindAlertResolved,
	KindDecisionMade,
	KindActionExecuted,
	KindPatternDetected,
	KindLearningUpdated,
	KindJourneyBuilt,
	KindContextChanged,
	KindInsightGenerated,
	KindModuleRegistered,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Payload is the typed body of an event. Only the payload types declared in
// this package implement it.
type Payload interface {
	Kind() Kind
	sealed()
}

// Event is an emitted, immutable notification.
type Event struct {
	ID            string         `json:"id"`
	Kind          Kind           `json:"kind"`
	Payload       Payload        `json:"payload"`
	Timestamp     time.Time      `json:"timestamp"`
	Source        string         `json:"source,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CorrelationID string         `json:"correlationId"`
	CausationID   string         `json:"causationId,omitempty"`
}

// clone returns a copy of e with its own metadata map.
func (e Event) clone() Event {
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

// EmitOption customizes an emitted event.
type EmitOption func(*Event)

// WithSource sets the emitting component name.
func WithSource(source string) EmitOption {
	return func(e *Event) {
		e.Source = source
	}
}

// WithMetadata attaches metadata. The map is copied.
func WithMetadata(md map[string]any) EmitOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(md))
		}
		maps.Copy(e.Metadata, md)
	}
}

// WithCorrelation sets the correlation ID explicitly.
func WithCorrelation(id string) EmitOption {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// WithCausation marks the event as caused by parent. The new event joins the
// parent's correlation group.
func WithCausation(parent Event) EmitOption {
	return func(e *Event) {
		e.CausationID = parent.ID
		if parent.CorrelationID != "" {
			e.CorrelationID = parent.CorrelationID
		}
	}
}

func newEvent(p Payload, now time.Time, opts []EmitOption) Event {
	id := uuid.New().String()
	evt := Event{
		ID:            id,
		Kind:          p.Kind(),
		Payload:       p,
		Timestamp:     now,
		CorrelationID: id,
	}
	for _, opt := range opts {
		opt(&evt)
	}
	return evt
}
