// Package brain owns the shipment registry.
//
// The Brain stores unified shipments, announces their lifecycle on the
// event bus, aggregates the operational context, builds journeys and keeps
// a registry of the modules wired around it. Every accessor returns copies;
// the registry is the only place a shipment is mutable.
package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/registry"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/unify"
)

// ErrNotFound indicates no registered shipment has the ID.
var ErrNotFound = errors.New("shipment not found")

// Brain is the shipment registry.
//
// Thread-safety: safe for concurrent use. Events are emitted after the lock
// is released.
type Brain struct {
	mu         sync.RWMutex
	shipments  map[string]*model.UnifiedShipment
	byTracking map[string]string
	byOrder    map[string]string

	ctxMu    sync.Mutex
	opCtx    model.OperationalContext
	ctxDirty bool

	modules *registry.Registry[string, *Module]

	clock   clock.Clock
	logger  *slog.Logger
	emitter event.Emitter
}

// Option configures a Brain.
type Option func(*Brain)

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(b *Brain) { b.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Brain) { b.logger = l }
}

// WithEmitter sets where lifecycle events go.
func WithEmitter(em event.Emitter) Option {
	return func(b *Brain) { b.emitter = em }
}

// New creates an empty Brain.
func New(opts ...Option) *Brain {
	b := &Brain{
		shipments:  make(map[string]*model.UnifiedShipment),
		byTracking: make(map[string]string),
		byOrder:    make(map[string]string),
		modules:    registry.New[string, *Module](),
		ctxDirty:   true,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.clock = clock.OrSystem(b.clock)
	b.logger = observability.ComponentLogger(b.logger, "brain")
	if b.emitter == nil {
		b.emitter = event.NopEmitter{}
	}
	return b
}

// Register stores s and emits the lifecycle events described by change:
// created or updated first, then delivered, delayed and issue as they
// apply. Nothing is emitted when the change is empty.
func (b *Brain) Register(ctx context.Context, s *model.UnifiedShipment, change unify.Change) {
	stored := s.Clone()

	b.mu.Lock()
	if prev, ok := b.shipments[stored.ID]; ok && prev.TrackingNumber != "" && stored.TrackingNumber != prev.TrackingNumber {
		// Tracking numbers are identity once assigned.
		stored.TrackingNumber = prev.TrackingNumber
	}
	b.shipments[stored.ID] = stored
	if stored.TrackingNumber != "" {
		b.byTracking[unify.NormalizeTracking(stored.TrackingNumber)] = stored.ID
	}
	for _, alias := range stored.TrackingAliases {
		b.byTracking[unify.NormalizeTracking(alias)] = stored.ID
	}
	if stored.OrderNumber != "" {
		b.byOrder[stored.OrderNumber] = stored.ID
	}
	b.mu.Unlock()
	b.markDirty()

	if !change.Changed() {
		return
	}

	var first event.Event
	emit := func(p event.Payload) {
		var opts []event.EmitOption
		opts = append(opts, event.WithSource("brain"))
		if first.ID != "" {
			opts = append(opts, event.WithCausation(first))
		}
		evt, err := b.emitter.Emit(ctx, p, opts...)
		if err != nil {
			b.logger.Warn("lifecycle event dropped",
				slog.String("kind", string(p.Kind())),
				slog.String("shipment_id", stored.ID),
				slog.Any("error", err))
			return
		}
		if first.ID == "" {
			first = evt
		}
	}

	if change.Created {
		emit(event.ShipmentCreated{Shipment: stored.Clone()})
	} else {
		emit(event.ShipmentUpdated{Shipment: stored.Clone(), PreviousStatus: change.PreviousStatus, Changed: change.Fields})
	}
	if change.Delivered {
		emit(event.ShipmentDelivered{Shipment: stored.Clone()})
	}
	if change.BecameDelayed {
		emit(event.ShipmentDelayed{Shipment: stored.Clone()})
	}
	if change.BecameIssue {
		emit(event.ShipmentIssue{Shipment: stored.Clone(), Reason: stored.IssueReason})
	}
}

// Get returns a copy of the shipment.
func (b *Brain) Get(id string) (*model.UnifiedShipment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.shipments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Clone(), nil
}

// ByTracking returns the shipment with the tracking number or one of its
// aliases. Case, surrounding space and dashes are ignored.
func (b *Brain) ByTracking(trackingNumber string) (*model.UnifiedShipment, bool) {
	key := unify.NormalizeTracking(trackingNumber)
	if key == "" {
		return nil, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.byTracking[key]
	if !ok {
		return nil, false
	}
	return b.shipments[id].Clone(), true
}

// ByOrder returns the shipment created from the order number.
func (b *Brain) ByOrder(orderNumber string) (*model.UnifiedShipment, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.byOrder[orderNumber]
	if !ok {
		return nil, false
	}
	return b.shipments[id].Clone(), true
}

// All returns copies of every shipment.
func (b *Brain) All() []*model.UnifiedShipment {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*model.UnifiedShipment, 0, len(b.shipments))
	for _, s := range b.shipments {
		out = append(out, s.Clone())
	}
	sortShipments(out)
	return out
}

// Len returns the number of registered shipments.
func (b *Brain) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.shipments)
}
