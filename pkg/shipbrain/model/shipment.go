package model

import (
	"slices"
	"time"
)

// MatchMethod records how a tracking record was paired with an order.
type MatchMethod string

// Match methods in decreasing confidence.
const (
	MatchExact     MatchMethod = "exact"
	MatchNumeric   MatchMethod = "numeric"
	MatchFuzzy     MatchMethod = "fuzzy"
	MatchNone      MatchMethod = "none"
	MatchOrderOnly MatchMethod = "order_only"
)

// ShipmentEvent is one entry of a unified shipment timeline.
type ShipmentEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Status      Status    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Source      Source    `json:"source"`
}

// UnifiedShipment is the reconciled record for one physical shipment.
//
// TrackingNumber never changes once assigned. Status follows the transition
// rules in Status.CanTransition.
type UnifiedShipment struct {
	ID             string `json:"id"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	OrderNumber    string `json:"orderNumber,omitempty"`
	// TrackingAliases holds other carrier numbers merged into this
	// shipment, such as a bare guide number matched against a prefixed one.
	TrackingAliases []string `json:"trackingAliases,omitempty"`

	Status      *SourcedData[Status]   `json:"status,omitempty"`
	Location    *SourcedData[string]   `json:"location,omitempty"`
	Origin      *SourcedData[Place]    `json:"origin,omitempty"`
	Destination *SourcedData[Place]    `json:"destination,omitempty"`
	Customer    *SourcedData[Customer] `json:"customer,omitempty"`
	Product     *SourcedData[Product]  `json:"product,omitempty"`
	Carrier     *SourcedData[string]   `json:"carrier,omitempty"`

	HasIssue    bool   `json:"hasIssue"`
	IssueReason string `json:"issueReason,omitempty"`
	// HadIssue stays true once the shipment has been in issue status,
	// even after it recovers and is delivered.
	HadIssue      bool `json:"hadIssue"`
	IsDelayed     bool `json:"isDelayed"`
	DaysInTransit int  `json:"daysInTransit"`

	Events          []ShipmentEvent `json:"events,omitempty"`
	Sources         []Source        `json:"sources"`
	MatchConfidence int             `json:"matchConfidence"`
	MatchMethod     MatchMethod     `json:"matchMethod"`

	OrderCreatedAt time.Time  `json:"orderCreatedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	// LastActivityAt is the latest timestamp reported by a source. Unlike
	// UpdatedAt it does not move when derived fields are recomputed.
	LastActivityAt time.Time `json:"lastActivityAt,omitempty"`
}

// CurrentStatus returns the resolved status, or pending when unknown.
func (s *UnifiedShipment) CurrentStatus() Status {
	if s == nil || s.Status == nil {
		return StatusPending
	}
	return s.Status.Value
}

// CarrierName returns the resolved carrier or "".
func (s *UnifiedShipment) CarrierName() string {
	if s == nil || s.Carrier == nil {
		return ""
	}
	return s.Carrier.Value
}

// DestinationCity returns the resolved destination city or "".
func (s *UnifiedShipment) DestinationCity() string {
	if s == nil || s.Destination == nil {
		return ""
	}
	return s.Destination.Value.City
}

// ProductName returns the resolved product name or "".
func (s *UnifiedShipment) ProductName() string {
	if s == nil || s.Product == nil {
		return ""
	}
	return s.Product.Value.Name
}

// CustomerName returns the resolved customer name or "".
func (s *UnifiedShipment) CustomerName() string {
	if s == nil || s.Customer == nil {
		return ""
	}
	return s.Customer.Value.Name
}

// StartedAt returns the best known start of the shipment: the order date when
// known, otherwise the first timeline entry, otherwise CreatedAt.
func (s *UnifiedShipment) StartedAt() time.Time {
	if !s.OrderCreatedAt.IsZero() {
		return s.OrderCreatedAt
	}
	if len(s.Events) > 0 {
		return s.Events[0].Timestamp
	}
	return s.CreatedAt
}

// LastActivity returns when a source last reported on the shipment, falling
// back to UpdatedAt for records that predate LastActivityAt.
func (s *UnifiedShipment) LastActivity() time.Time {
	if !s.LastActivityAt.IsZero() {
		return s.LastActivityAt
	}
	return s.UpdatedAt
}

// HasSource reports whether src contributed to the shipment.
func (s *UnifiedShipment) HasSource(src Source) bool {
	return slices.Contains(s.Sources, src)
}

// Clone returns a copy that shares no mutable state with s.
// SourcedData values are immutable and may be shared.
func (s *UnifiedShipment) Clone() *UnifiedShipment {
	if s == nil {
		return nil
	}
	c := *s
	c.Events = slices.Clone(s.Events)
	c.Sources = slices.Clone(s.Sources)
	c.TrackingAliases = slices.Clone(s.TrackingAliases)
	if s.DeliveredAt != nil {
		t := *s.DeliveredAt
		c.DeliveredAt = &t
	}
	return &c
}

// DeliveryDays returns the whole days from start to delivery, and false when
// the shipment has not been delivered.
func (s *UnifiedShipment) DeliveryDays() (float64, bool) {
	if s.DeliveredAt == nil {
		return 0, false
	}
	d := s.DeliveredAt.Sub(s.StartedAt()).Hours() / 24
	if d < 0 {
		d = 0
	}
	return d, true
}
