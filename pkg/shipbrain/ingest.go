package shipbrain

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/memory"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/unify"
)

// Memory categories written by the core.
const (
	CategoryShipment = "shipment"
	CategoryFact     = "shipment_fact"
	CategoryPattern  = "pattern"
)

// DefaultOrderPoolSize caps the orders waiting for a tracking record.
const DefaultOrderPoolSize = 10000

var noMatch = unify.MatchResult{OrderIndex: -1, Method: model.MatchNone}

// IngestResult summarizes one Ingest call.
type IngestResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	// Matched counts tracking records paired with an order in this call.
	Matched int `json:"matched"`
	// PendingOrders is the size of the unmatched order pool afterwards.
	PendingOrders int `json:"pendingOrders"`
	// Shipments lists the IDs touched, in processing order.
	Shipments []string `json:"shipments"`
}

func (r *IngestResult) count(id string, change unify.Change) {
	switch {
	case change.Created:
		r.Created++
	case change.Changed():
		r.Updated++
	default:
		r.Unchanged++
	}
	if !slices.Contains(r.Shipments, id) {
		r.Shipments = append(r.Shipments, id)
	}
}

// Ingest merges a batch of tracking and order records into the registry.
//
// Orders for a known order number update that shipment. Other orders join
// the unmatched pool, which every tracking record without an order is
// matched against (exact, numeric, then fuzzy). Pool orders that carry a
// tracking number but found no tracking record become order-only
// shipments right away; the rest wait for a later batch.
func (c *Core) Ingest(ctx context.Context, trackings []model.TrackingRecord, orders []model.OrderRecord) (IngestResult, error) {
	if c.closed.Load() {
		return IngestResult{}, ErrClosed
	}
	ctx, span := c.spans.StartIngestSpan(ctx, len(trackings), len(orders))
	defer span.End()
	elapsed := observability.TimedOperation()

	c.ingestMu.Lock()
	defer c.ingestMu.Unlock()

	var res IngestResult

	for i := range orders {
		o := orders[i]
		if strings.TrimSpace(o.OrderNumber) == "" {
			c.logger.Warn("order without order number skipped")
			continue
		}
		if existing, ok := c.brain.ByOrder(o.OrderNumber); ok {
			s, change := c.unifier.Unify(nil, &o, noMatch, existing)
			c.register(ctx, s, change, &res)
			continue
		}
		c.pool.put(o)
	}

	// Tracking records whose shipment already has order data are merged
	// directly, as are records whose digits name an order-only shipment
	// from an earlier batch. The rest compete for pool orders.
	var needMatch []int
	joined := make(map[int]string)
	orderOnly := c.orderOnlyShipments()
	for i, tr := range trackings {
		if strings.TrimSpace(tr.TrackingNumber) == "" {
			c.logger.Warn("tracking record without tracking number skipped")
			continue
		}
		existing, ok := c.brain.ByTracking(tr.TrackingNumber)
		if ok && existing.HasSource(model.SourceOrder) {
			continue
		}
		if !ok {
			if s := c.orderOnlyFor(orderOnly, tr.TrackingNumber); s != nil {
				joined[i] = s.ID
				continue
			}
		}
		needMatch = append(needMatch, i)
	}

	pending := c.pool.list()
	batch := make([]model.TrackingRecord, len(needMatch))
	for j, i := range needMatch {
		batch[j] = trackings[i]
	}
	matches := c.matcher.MatchAll(batch, pending)
	matchOf := make(map[int]unify.MatchResult, len(needMatch))
	for j, i := range needMatch {
		matchOf[i] = matches[j]
	}

	for i := range trackings {
		tr := trackings[i]
		if strings.TrimSpace(tr.TrackingNumber) == "" {
			continue
		}
		existing, _ := c.brain.ByTracking(tr.TrackingNumber)
		if id, ok := joined[i]; ok && existing == nil {
			existing, _ = c.brain.Get(id)
		}

		m, ok := matchOf[i]
		if !ok || (existing != nil && existing.HasSource(model.SourceOrder)) {
			m = noMatch
		}
		if existing != nil && existing.MatchMethod == model.MatchOrderOnly {
			m = joinMatch(tr.TrackingNumber, existing.TrackingNumber)
			res.Matched++
		}
		var order *model.OrderRecord
		if m.Matched() {
			o := pending[m.OrderIndex]
			order = &o
			c.pool.remove(o.OrderNumber)
			res.Matched++
		}

		s, change := c.unifier.Unify(&tr, order, m, existing)
		c.register(ctx, s, change, &res)
	}

	for _, o := range c.pool.list() {
		if strings.TrimSpace(o.TrackingNumber) == "" {
			continue
		}
		c.pool.remove(o.OrderNumber)
		s, change := c.unifier.Unify(nil, &o, noMatch, nil)
		c.register(ctx, s, change, &res)
	}

	res.PendingOrders = c.pool.len()
	c.logger.Info("ingest complete",
		slog.Int("trackings", len(trackings)),
		slog.Int("orders", len(orders)),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("matched", res.Matched),
		slog.Int("pending_orders", res.PendingOrders),
		slog.Float64("duration_ms", elapsed()))
	return res, nil
}

func (c *Core) orderOnlyShipments() []*model.UnifiedShipment {
	var out []*model.UnifiedShipment
	for _, s := range c.brain.All() {
		if s.MatchMethod == model.MatchOrderOnly && s.TrackingNumber != "" {
			out = append(out, s)
		}
	}
	return out
}

// orderOnlyFor returns the order-only shipment whose tracking number shares
// its digits with tn, or nil.
func (c *Core) orderOnlyFor(candidates []*model.UnifiedShipment, tn string) *model.UnifiedShipment {
	for _, s := range candidates {
		if c.matcher.NumericMatch(tn, s.TrackingNumber) {
			return s
		}
	}
	return nil
}

// joinMatch describes how a tracking record was tied to an order-only
// shipment.
func joinMatch(tn, shipmentTN string) unify.MatchResult {
	if unify.NormalizeTracking(tn) == unify.NormalizeTracking(shipmentTN) {
		return unify.MatchResult{OrderIndex: -1, Confidence: unify.ConfidenceExact, Method: model.MatchExact}
	}
	return unify.MatchResult{OrderIndex: -1, Confidence: unify.ConfidenceNumeric, Method: model.MatchNumeric}
}

// register stores s in the registry and mirrors it into the memory store.
func (c *Core) register(ctx context.Context, s *model.UnifiedShipment, change unify.Change, res *IngestResult) {
	c.brain.Register(ctx, s, change)
	if change.Changed() {
		c.memory.Remember(CategoryShipment, s.Clone(), memory.Options{
			ID:   shipmentKey(s.ID),
			Tier: memory.TierLong,
		})
	}
	res.count(s.ID, change)
}

func shipmentKey(id string) string {
	return CategoryShipment + ":" + id
}

// Refresh recomputes days in transit and delay flags for every open
// shipment, emitting shipment.delayed for those that just crossed the
// threshold. Returns how many shipments changed.
func (c *Core) Refresh(ctx context.Context) int {
	c.ingestMu.Lock()
	defer c.ingestMu.Unlock()

	n := 0
	var res IngestResult
	for _, s := range c.brain.All() {
		if s.CurrentStatus().IsTerminal() {
			continue
		}
		refreshed, becameDelayed := c.unifier.Refresh(s)
		if refreshed.DaysInTransit == s.DaysInTransit && !becameDelayed {
			continue
		}
		change := unify.Change{
			PreviousStatus: s.CurrentStatus(),
			BecameDelayed:  becameDelayed,
			Fields:         []string{"daysInTransit"},
		}
		if becameDelayed {
			change.Fields = append(change.Fields, "isDelayed")
		}
		refreshed.UpdatedAt = c.clock.Now()
		c.register(ctx, refreshed, change, &res)
		n++
	}
	observability.LogSweep(c.logger, "refresh", n)
	return n
}

// resolveDelivered closes the auto-resolvable alerts of a delivered
// shipment. It runs regardless of which rules are enabled.
func (c *Core) resolveDelivered(ctx context.Context, evt event.Event) error {
	if s := event.ShipmentOf(evt.Payload); s != nil {
		c.alerts.ResolveForShipment(ctx, s.ID, "shipment delivered")
	}
	return nil
}

// rememberFact keeps delays and issues as medium-lived facts so they show
// up in memory searches after the shipment moves on.
func (c *Core) rememberFact(_ context.Context, evt event.Event) error {
	s := event.ShipmentOf(evt.Payload)
	if s == nil {
		return nil
	}
	importance := 60
	if evt.Kind == event.KindShipmentIssue {
		importance = 75
	}
	c.memory.Remember(CategoryFact, map[string]any{
		"kind":           string(evt.Kind),
		"shipmentId":     s.ID,
		"trackingNumber": s.TrackingNumber,
		"carrier":        s.CarrierName(),
		"city":           s.DestinationCity(),
		"daysInTransit":  s.DaysInTransit,
		"issueReason":    s.IssueReason,
	}, memory.Options{
		ID:         fmt.Sprintf("%s:%s", evt.Kind, s.ID),
		Tier:       memory.TierMedium,
		Importance: importance,
	})
	return nil
}

// orderPool holds orders waiting for a tracking record, oldest first.
// Callers hold Core.ingestMu.
type orderPool struct {
	limit  int
	orders []model.OrderRecord
}

func newOrderPool(limit int) *orderPool {
	return &orderPool{limit: limit}
}

// put adds o, replacing a pooled order with the same number.
func (p *orderPool) put(o model.OrderRecord) {
	if i := p.index(o.OrderNumber); i >= 0 {
		p.orders[i] = o
		return
	}
	p.orders = append(p.orders, o)
	if p.limit > 0 && len(p.orders) > p.limit {
		p.orders = slices.Delete(p.orders, 0, len(p.orders)-p.limit)
	}
}

func (p *orderPool) index(number string) int {
	return slices.IndexFunc(p.orders, func(o model.OrderRecord) bool { return o.OrderNumber == number })
}

func (p *orderPool) remove(number string) {
	if i := p.index(number); i >= 0 {
		p.orders = slices.Delete(p.orders, i, i+1)
	}
}

func (p *orderPool) list() []model.OrderRecord {
	return slices.Clone(p.orders)
}

func (p *orderPool) len() int {
	return len(p.orders)
}

// PendingOrders returns the orders still waiting for a tracking record.
func (c *Core) PendingOrders() []model.OrderRecord {
	c.ingestMu.Lock()
	defer c.ingestMu.Unlock()
	return c.pool.list()
}
