package unify

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
)

// Field confidences assigned to values taken from each feed.
const (
	trackingConfidence = 90
	orderConfidence    = 95
)

// Change describes what a Unify call did to a shipment.
type Change struct {
	Created        bool
	PreviousStatus model.Status
	StatusChanged  bool
	// RejectedStatus is set when the incoming status was an illegal
	// transition and the current status was kept.
	RejectedStatus model.Status
	BecameDelayed  bool
	BecameIssue    bool
	Delivered      bool
	Fields         []string
}

// Changed reports whether anything observable changed.
func (c Change) Changed() bool {
	return c.Created || len(c.Fields) > 0
}

// Option configures a Unifier.
type Option func(*Unifier)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(u *Unifier) { u.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Unifier) { u.logger = logger }
}

// WithPriorities replaces the source ranking table.
func WithPriorities(t PriorityTable) Option {
	return func(u *Unifier) { u.priorities = t }
}

// WithDelayThreshold sets the days in transit after which a non-terminal
// shipment is delayed.
func WithDelayThreshold(days int) Option {
	return func(u *Unifier) {
		if days > 0 {
			u.delayDays = days
		}
	}
}

// DefaultDelayDays is the default delay threshold.
const DefaultDelayDays = 5

// Unifier builds and merges unified shipments.
type Unifier struct {
	clock      clock.Clock
	logger     *slog.Logger
	priorities PriorityTable
	delayDays  int
}

// NewUnifier creates a Unifier.
func NewUnifier(opts ...Option) *Unifier {
	u := &Unifier{
		priorities: DefaultPriorities,
		delayDays:  DefaultDelayDays,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.clock = clock.OrSystem(u.clock)
	u.logger = observability.ComponentLogger(u.logger, "unify")
	return u
}

// Unify merges a tracking record and/or an order into existing, or into a
// new shipment when existing is nil. existing is never modified; the result
// is a fresh copy.
func (u *Unifier) Unify(tr *model.TrackingRecord, order *model.OrderRecord, match MatchResult, existing *model.UnifiedShipment) (*model.UnifiedShipment, Change) {
	now := u.clock.Now()

	var s *model.UnifiedShipment
	var change Change
	if existing == nil {
		s = &model.UnifiedShipment{
			ID:          uuid.New().String(),
			CreatedAt:   now,
			MatchMethod: model.MatchNone,
		}
		change.Created = true
	} else {
		s = existing.Clone()
	}
	change.PreviousStatus = s.CurrentStatus()
	wasDelayed, hadIssue := s.IsDelayed, s.HasIssue
	touched := func(f string) {
		if !slices.Contains(change.Fields, f) {
			change.Fields = append(change.Fields, f)
		}
	}

	if tr != nil {
		u.applyTracking(s, tr, now, &change, touched)
	}
	if order != nil {
		u.applyOrder(s, order, touched)
	}

	switch {
	case tr != nil && order != nil:
		if match.Confidence > s.MatchConfidence || s.MatchMethod == model.MatchOrderOnly || s.MatchMethod == model.MatchNone {
			s.MatchConfidence = match.Confidence
			s.MatchMethod = match.Method
			touched("match")
		}
	case tr != nil && s.MatchMethod == model.MatchOrderOnly && match.Confidence > 0:
		// A tracking record joined an order-only shipment found by number.
		s.MatchConfidence = match.Confidence
		s.MatchMethod = match.Method
		touched("match")
	case order != nil && !s.HasSource(model.SourceTracking):
		s.MatchMethod = model.MatchOrderOnly
	}

	u.refresh(s, now)

	status := s.CurrentStatus()
	change.StatusChanged = status != change.PreviousStatus
	if change.StatusChanged {
		touched("status")
	}
	change.BecameDelayed = s.IsDelayed && !wasDelayed
	change.BecameIssue = s.HasIssue && !hadIssue
	change.Delivered = change.StatusChanged && status == model.StatusDelivered
	if change.Created {
		change.StatusChanged = false
	}
	if change.Changed() {
		s.UpdatedAt = now
	}
	return s, change
}

func (u *Unifier) applyTracking(s *model.UnifiedShipment, tr *model.TrackingRecord, now time.Time, change *Change, touched func(string)) {
	ts := tr.LastUpdate
	if ts.IsZero() {
		ts = now
	}

	tn := strings.TrimSpace(tr.TrackingNumber)
	switch {
	case s.TrackingNumber == "" && tn != "":
		s.TrackingNumber = tn
		touched("trackingNumber")
	case tn != "" && NormalizeTracking(tn) != NormalizeTracking(s.TrackingNumber) && !hasAlias(s, tn):
		s.TrackingAliases = append(s.TrackingAliases, tn)
		touched("trackingAliases")
	}
	u.addSource(s, model.SourceTracking, touched)

	if n := mergeEvents(s, tr.Events); n > 0 {
		touched("events")
	}

	activity := tr.LastUpdate
	for _, e := range tr.Events {
		if e.Timestamp.After(activity) {
			activity = e.Timestamp
		}
	}
	if activity.IsZero() && s.LastActivityAt.IsZero() {
		activity = now
	}
	if activity.After(s.LastActivityAt) {
		s.LastActivityAt = activity
		touched("lastActivityAt")
	}

	inferred := InferStatus(tr.Status)
	cand := model.Sourced(inferred, model.SourceTracking, ts, trackingConfidence)
	winner := Resolve(u.priorities, FieldStatus, s.Status, cand)
	if winner == cand {
		current := s.CurrentStatus()
		if s.Status == nil || current.CanTransition(inferred) {
			if s.Status == nil || inferred != current {
				appendEvent(s, model.ShipmentEvent{
					Timestamp:   ts,
					Status:      inferred,
					Description: tr.Status,
					Location:    tr.Location,
					Source:      model.SourceTracking,
				})
			}
			s.Status = cand
			if inferred == model.StatusIssue {
				s.IssueReason = strings.TrimSpace(tr.Status)
			}
		} else {
			change.RejectedStatus = inferred
			u.logger.Warn("illegal status transition ignored",
				slog.String("shipment_id", s.ID),
				slog.String("tracking_number", s.TrackingNumber),
				slog.String("from", string(current)),
				slog.String("to", string(inferred)),
			)
		}
	}

	if tr.Location != "" {
		s.Location = resolveField(u.priorities, FieldLocation, s.Location,
			model.Sourced(tr.Location, model.SourceTracking, ts, trackingConfidence), "location", touched)
	}
	if tr.Carrier != "" {
		s.Carrier = resolveField(u.priorities, FieldCarrier, s.Carrier,
			model.Sourced(tr.Carrier, model.SourceTracking, ts, trackingConfidence), "carrier", touched)
	}
	if tr.Origin != "" {
		s.Origin = resolveField(u.priorities, FieldOrigin, s.Origin,
			model.Sourced(model.Place{City: tr.Origin}, model.SourceTracking, ts, trackingConfidence), "origin", touched)
	}
	if tr.Destination != "" {
		s.Destination = resolveField(u.priorities, FieldDestination, s.Destination,
			model.Sourced(model.Place{City: tr.Destination}, model.SourceTracking, ts, trackingConfidence), "destination", touched)
	}
}

func (u *Unifier) applyOrder(s *model.UnifiedShipment, o *model.OrderRecord, touched func(string)) {
	ts := o.CreatedAt
	if s.OrderNumber == "" && o.OrderNumber != "" {
		s.OrderNumber = o.OrderNumber
		touched("orderNumber")
	}
	if s.TrackingNumber == "" && o.TrackingNumber != "" {
		s.TrackingNumber = strings.TrimSpace(o.TrackingNumber)
		touched("trackingNumber")
	}
	if s.OrderCreatedAt.IsZero() && !o.CreatedAt.IsZero() {
		s.OrderCreatedAt = o.CreatedAt
	}
	if s.LastActivityAt.IsZero() && !o.CreatedAt.IsZero() {
		s.LastActivityAt = o.CreatedAt
	}
	u.addSource(s, model.SourceOrder, touched)

	if s.Status == nil {
		s.Status = model.Sourced(model.StatusPending, model.SourceOrder, ts, orderConfidence)
		appendEvent(s, model.ShipmentEvent{
			Timestamp:   ts,
			Status:      model.StatusPending,
			Description: "order created",
			Source:      model.SourceOrder,
		})
	}

	s.Customer = resolveField(u.priorities, FieldCustomer, s.Customer,
		model.Sourced(o.Customer, model.SourceOrder, ts, orderConfidence), "customer", touched)
	s.Product = resolveField(u.priorities, FieldProduct, s.Product,
		model.Sourced(o.Product, model.SourceOrder, ts, orderConfidence), "product", touched)
	if o.Customer.City != "" {
		place := model.Place{City: o.Customer.City, Department: o.Customer.Department, Address: o.Customer.Address}
		s.Destination = resolveField(u.priorities, FieldDestination, s.Destination,
			model.Sourced(place, model.SourceOrder, ts, orderConfidence), "destination", touched)
	}
	if o.Carrier != "" {
		s.Carrier = resolveField(u.priorities, FieldCarrier, s.Carrier,
			model.Sourced(o.Carrier, model.SourceOrder, ts, orderConfidence), "carrier", touched)
	}
}

func resolveField[T any](t PriorityTable, field Field, current, cand *model.SourcedData[T], name string, touched func(string)) *model.SourcedData[T] {
	winner := Resolve(t, field, current, cand)
	if winner != current {
		touched(name)
	}
	return winner
}

func hasAlias(s *model.UnifiedShipment, tn string) bool {
	key := NormalizeTracking(tn)
	return slices.ContainsFunc(s.TrackingAliases, func(a string) bool { return NormalizeTracking(a) == key })
}

func (u *Unifier) addSource(s *model.UnifiedShipment, src model.Source, touched func(string)) {
	if !s.HasSource(src) {
		s.Sources = append(s.Sources, src)
		touched("sources")
	}
}

// Refresh returns a copy of s with days in transit and the delay flag
// recomputed against the current time.
func (u *Unifier) Refresh(s *model.UnifiedShipment) (*model.UnifiedShipment, bool) {
	c := s.Clone()
	wasDelayed := c.IsDelayed
	u.refresh(c, u.clock.Now())
	return c, c.IsDelayed && !wasDelayed
}

// refresh derives the flags that depend on status and time.
func (u *Unifier) refresh(s *model.UnifiedShipment, now time.Time) {
	status := s.CurrentStatus()

	if status == model.StatusDelivered && s.DeliveredAt == nil && s.Status != nil {
		t := s.Status.Timestamp
		s.DeliveredAt = &t
	}

	s.HasIssue = status == model.StatusIssue
	if !s.HasIssue {
		s.IssueReason = ""
	}
	if s.HasIssue || slices.ContainsFunc(s.Events, func(e model.ShipmentEvent) bool { return e.Status == model.StatusIssue }) {
		s.HadIssue = true
	}

	end := now
	switch {
	case s.DeliveredAt != nil:
		end = *s.DeliveredAt
	case status.IsTerminal() && s.Status != nil:
		end = s.Status.Timestamp
	}
	days := int(end.Sub(s.StartedAt()).Hours() / 24)
	if days < 0 {
		days = 0
	}
	s.DaysInTransit = days
	s.IsDelayed = !status.IsTerminal() && days > u.delayDays
}

// mergeEvents adds carrier scans not already on the timeline and returns how
// many were added.
func mergeEvents(s *model.UnifiedShipment, events []model.TrackingEvent) int {
	added := 0
	for _, ev := range events {
		text := ev.Status
		if text == "" {
			text = ev.Description
		}
		se := model.ShipmentEvent{
			Timestamp:   ev.Timestamp,
			Status:      InferStatus(text),
			Description: ev.Description,
			Location:    ev.Location,
			Source:      model.SourceTracking,
		}
		if appendEvent(s, se) {
			added++
		}
	}
	return added
}

// appendEvent inserts e in timestamp order unless an identical entry exists.
func appendEvent(s *model.UnifiedShipment, e model.ShipmentEvent) bool {
	for _, existing := range s.Events {
		if existing.Timestamp.Equal(e.Timestamp) && existing.Status == e.Status && existing.Description == e.Description {
			return false
		}
	}
	i, _ := slices.BinarySearchFunc(s.Events, e, func(a, b model.ShipmentEvent) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return -1
	})
	s.Events = slices.Insert(s.Events, i, e)
	return true
}
