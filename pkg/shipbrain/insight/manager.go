// Package insight synthesizes operator-facing summaries from the shipment
// population.
//
// Each insight type has its own generator, minimum sample and cooldown. An
// insight ID is derived from its type and subject, so regenerating the same
// finding yields the same ID and a dismissal sticks across runs.
package insight

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
)

// ErrNotFound indicates no current insight has the ID.
var ErrNotFound = errors.New("insight not found")

// DefaultCooldown is the minimum time between two runs of one generator.
const DefaultCooldown = 6 * time.Hour

// Priorities. Lower is more urgent.
const (
	PriorityUrgent = 1
	PriorityHigh   = 2
	PriorityNormal = 3
	PriorityLow    = 4
)

// Milestones are the delivered-shipment counts worth celebrating.
var Milestones = []int{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// generator produces insights of one type from the population.
type generator struct {
	typ       model.InsightType
	minSample int
	run       func(m *Manager, shipments []*model.UnifiedShipment, now time.Time) []model.Insight
}

var generators = []generator{
	{model.InsightPerformanceSummary, 5, (*Manager).performanceSummary},
	{model.InsightBestCarrier, 10, (*Manager).bestCarrier},
	{model.InsightAtRiskShipments, 1, (*Manager).atRisk},
	{model.InsightWeeklyTrend, 10, (*Manager).weeklyTrend},
	{model.InsightImprovementOpportunity, 10, (*Manager).improvementOpportunity},
	{model.InsightDeliveryMilestone, 1, (*Manager).deliveryMilestone},
}

// Manager runs the generators and keeps the current insights.
//
// Thread-safety: safe for concurrent use. Generation runs under the lock so
// two concurrent Generate calls cannot both pass a cooldown gate.
type Manager struct {
	mu        sync.Mutex
	current   map[string]model.Insight
	dismissed map[string]struct{}
	lastRun   map[model.InsightType]time.Time

	cooldowns       map[model.InsightType]time.Duration
	defaultCooldown time.Duration
	clock           clock.Clock
	logger          *slog.Logger
	emitter         event.Emitter
}

// Option configures a Manager.
type Option func(*Manager)

// WithCooldown sets the cooldown of every generator.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) { m.defaultCooldown = d }
}

// WithTypeCooldown overrides the cooldown of one generator.
func WithTypeCooldown(t model.InsightType, d time.Duration) Option {
	return func(m *Manager) { m.cooldowns[t] = d }
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEmitter publishes insight.generated events.
func WithEmitter(em event.Emitter) Option {
	return func(m *Manager) { m.emitter = em }
}

// NewManager creates a manager with no insights.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		current:         make(map[string]model.Insight),
		dismissed:       make(map[string]struct{}),
		lastRun:         make(map[model.InsightType]time.Time),
		cooldowns:       make(map[model.InsightType]time.Duration),
		defaultCooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.clock = clock.OrSystem(m.clock)
	m.logger = observability.ComponentLogger(m.logger, "insight")
	if m.emitter == nil {
		m.emitter = event.NopEmitter{}
	}
	return m
}

func (m *Manager) cooldown(t model.InsightType) time.Duration {
	if d, ok := m.cooldowns[t]; ok {
		return d
	}
	return m.defaultCooldown
}

// Generate runs every generator that is out of cooldown and has enough
// shipments, and returns the new insights, most urgent first. Dismissed
// insights are dropped. A generator that ran replaces all current insights
// of its type.
func (m *Manager) Generate(ctx context.Context, shipments []*model.UnifiedShipment) []model.Insight {
	now := m.clock.Now()

	m.mu.Lock()
	var fresh []model.Insight
	for _, g := range generators {
		if last, ok := m.lastRun[g.typ]; ok && now.Sub(last) < m.cooldown(g.typ) {
			continue
		}
		if len(shipments) < g.minSample {
			m.logger.Debug("insight skipped: sample too small",
				slog.String("type", string(g.typ)), slog.Int("shipments", len(shipments)))
			continue
		}
		m.lastRun[g.typ] = now
		for id, in := range m.current {
			if in.Type == g.typ {
				delete(m.current, id)
			}
		}
		for _, in := range g.run(m, shipments, now) {
			if _, gone := m.dismissed[in.ID]; gone {
				continue
			}
			in.Type = g.typ
			in.GeneratedAt = now
			m.current[in.ID] = in
			fresh = append(fresh, in)
		}
	}
	m.mu.Unlock()

	sortInsights(fresh)
	for _, in := range fresh {
		if _, err := m.emitter.Emit(ctx, event.InsightGenerated{Insight: in}, event.WithSource("insight")); err != nil {
			m.logger.Warn("insight event dropped", slog.Any("error", err))
		}
	}
	return fresh
}

// Current returns the live, undismissed insights, most urgent first.
func (m *Manager) Current() []model.Insight {
	m.mu.Lock()
	out := make([]model.Insight, 0, len(m.current))
	for _, in := range m.current {
		out = append(out, in)
	}
	m.mu.Unlock()
	sortInsights(out)
	return out
}

// Dismiss hides an insight now and in every later run.
func (m *Manager) Dismiss(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.current[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.current, id)
	m.dismissed[id] = struct{}{}
	return nil
}

// Dismissed returns the dismissed insight IDs, sorted.
func (m *Manager) Dismissed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.dismissed))
	for id := range m.dismissed {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// RestoreDismissed replaces the dismissal set, typically from a snapshot.
func (m *Manager) RestoreDismissed(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dismissed = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m.dismissed[id] = struct{}{}
	}
}

func sortInsights(in []model.Insight) {
	slices.SortFunc(in, func(a, b model.Insight) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func insightID(t model.InsightType, subject string) string {
	return string(t) + ":" + subject
}

// subject lower-cases a name for use inside an insight ID.
func subject(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func (m *Manager) performanceSummary(shipments []*model.UnifiedShipment, _ time.Time) []model.Insight {
	var delivered, delayed, issues, returned int
	for _, s := range shipments {
		switch s.CurrentStatus() {
		case model.StatusDelivered:
			delivered++
		case model.StatusReturned:
			returned++
		}
		if s.IsDelayed {
			delayed++
		}
		if s.HasIssue || s.HadIssue {
			issues++
		}
	}
	total := len(shipments)
	priority := PriorityNormal
	if pct(delayed+issues, total) >= 30 {
		priority = PriorityHigh
	}
	return []model.Insight{{
		ID:    insightID(model.InsightPerformanceSummary, "all"),
		Title: "Performance summary",
		Description: fmt.Sprintf("%d shipments: %.1f%% delivered, %d delayed, %d with issues",
			total, pct(delivered, total), delayed, issues),
		Priority: priority,
		Data: map[string]any{
			"total": total, "delivered": delivered, "returned": returned,
			"delayed": delayed, "issues": issues, "deliveryRate": pct(delivered, total),
		},
	}}
}

type carrierStat struct {
	name                 string
	completed, delivered int
	daySum               float64
}

// bestCarrier needs at least two carriers with five completed shipments.
func (m *Manager) bestCarrier(shipments []*model.UnifiedShipment, _ time.Time) []model.Insight {
	byName := make(map[string]*carrierStat)
	for _, s := range shipments {
		name := s.CarrierName()
		if name == "" || !s.CurrentStatus().IsCompleted() {
			continue
		}
		st, ok := byName[name]
		if !ok {
			st = &carrierStat{name: name}
			byName[name] = st
		}
		st.completed++
		if d, ok := s.DeliveryDays(); ok {
			st.delivered++
			st.daySum += d
		}
	}

	var eligible []*carrierStat
	for _, st := range byName {
		if st.completed >= 5 {
			eligible = append(eligible, st)
		}
	}
	if len(eligible) < 2 {
		return nil
	}
	rate := func(st *carrierStat) float64 { return float64(st.delivered) / float64(st.completed) }
	avg := func(st *carrierStat) float64 {
		if st.delivered == 0 {
			return math.Inf(1)
		}
		return st.daySum / float64(st.delivered)
	}
	slices.SortFunc(eligible, func(a, b *carrierStat) int {
		if c := cmp.Compare(rate(b), rate(a)); c != 0 {
			return c
		}
		if c := cmp.Compare(avg(a), avg(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	best := eligible[0]
	return []model.Insight{{
		ID:    insightID(model.InsightBestCarrier, subject(best.name)),
		Title: fmt.Sprintf("%s is your most reliable carrier", best.name),
		Description: fmt.Sprintf("%s delivered %.1f%% of %d completed shipments in %.1f days on average",
			best.name, pct(best.delivered, best.completed), best.completed, avg(best)),
		Priority: PriorityNormal,
		Data: map[string]any{
			"carrier": best.name, "completed": best.completed,
			"successRate": pct(best.delivered, best.completed), "avgDeliveryDays": math.Round(avg(best)*10) / 10,
			"compared": len(eligible),
		},
	}}
}

// atRisk lists open shipments that are delayed or report an issue.
func (m *Manager) atRisk(shipments []*model.UnifiedShipment, _ time.Time) []model.Insight {
	var ids []string
	for _, s := range shipments {
		if s.CurrentStatus().IsTerminal() {
			continue
		}
		if s.IsDelayed || s.HasIssue {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	priority := PriorityHigh
	if len(ids) >= 10 {
		priority = PriorityUrgent
	}
	return []model.Insight{{
		ID:          insightID(model.InsightAtRiskShipments, "open"),
		Title:       fmt.Sprintf("%d shipments at risk", len(ids)),
		Description: "Delayed or problematic shipments that are still open and need follow-up",
		Priority:    priority,
		Data:        map[string]any{"count": len(ids), "shipmentIds": ids},
	}}
}

// weeklyTrend compares shipments created in the last seven days with the
// seven days before. Each week needs five shipments.
func (m *Manager) weeklyTrend(shipments []*model.UnifiedShipment, now time.Time) []model.Insight {
	thisStart := now.Add(-7 * 24 * time.Hour)
	lastStart := now.Add(-14 * 24 * time.Hour)
	var thisWeek, lastWeek, thisDelivered, lastDelivered int
	for _, s := range shipments {
		at := s.StartedAt()
		delivered := s.CurrentStatus() == model.StatusDelivered
		switch {
		case !at.Before(thisStart) && !at.After(now):
			thisWeek++
			if delivered {
				thisDelivered++
			}
		case !at.Before(lastStart) && at.Before(thisStart):
			lastWeek++
			if delivered {
				lastDelivered++
			}
		}
	}
	if thisWeek < 5 || lastWeek < 5 {
		return nil
	}
	change := math.Round(float64(thisWeek-lastWeek)/float64(lastWeek)*1000) / 10
	direction := "up"
	if change < 0 {
		direction = "down"
	}
	return []model.Insight{{
		ID:          insightID(model.InsightWeeklyTrend, now.Format("2006-01-02")),
		Title:       fmt.Sprintf("Volume %s %.1f%% week over week", direction, math.Abs(change)),
		Description: fmt.Sprintf("%d shipments this week against %d the week before", thisWeek, lastWeek),
		Priority:    PriorityLow,
		Data: map[string]any{
			"thisWeek": thisWeek, "lastWeek": lastWeek, "changePct": change,
			"thisWeekDeliveryRate": pct(thisDelivered, thisWeek), "lastWeekDeliveryRate": pct(lastDelivered, lastWeek),
		},
	}}
}

// improvementOpportunity points at the carrier with the worst delay rate
// when it delays at least a fifth of five or more shipments.
func (m *Manager) improvementOpportunity(shipments []*model.UnifiedShipment, _ time.Time) []model.Insight {
	type stat struct {
		name           string
		total, delayed int
	}
	byName := make(map[string]*stat)
	for _, s := range shipments {
		name := s.CarrierName()
		if name == "" {
			continue
		}
		st, ok := byName[name]
		if !ok {
			st = &stat{name: name}
			byName[name] = st
		}
		st.total++
		if s.IsDelayed {
			st.delayed++
		}
	}
	var worst *stat
	for _, st := range byName {
		if st.total < 5 || pct(st.delayed, st.total) < 20 {
			continue
		}
		if worst == nil || pct(st.delayed, st.total) > pct(worst.delayed, worst.total) ||
			(pct(st.delayed, st.total) == pct(worst.delayed, worst.total) && st.name < worst.name) {
			worst = st
		}
	}
	if worst == nil {
		return nil
	}
	return []model.Insight{{
		ID:    insightID(model.InsightImprovementOpportunity, subject(worst.name)),
		Title: fmt.Sprintf("Reduce delays with %s", worst.name),
		Description: fmt.Sprintf("%s delays %.1f%% of its shipments; moving volume or renegotiating could recover %d shipments",
			worst.name, pct(worst.delayed, worst.total), worst.delayed),
		Priority: PriorityHigh,
		Data:     map[string]any{"carrier": worst.name, "total": worst.total, "delayed": worst.delayed, "delayRate": pct(worst.delayed, worst.total)},
	}}
}

// deliveryMilestone reports the highest milestone reached. Each milestone
// has its own ID so dismissing one does not hide the next.
func (m *Manager) deliveryMilestone(shipments []*model.UnifiedShipment, _ time.Time) []model.Insight {
	delivered := 0
	for _, s := range shipments {
		if s.CurrentStatus() == model.StatusDelivered {
			delivered++
		}
	}
	reached := 0
	for _, ms := range Milestones {
		if delivered >= ms {
			reached = ms
		}
	}
	if reached == 0 {
		return nil
	}
	return []model.Insight{{
		ID:          insightID(model.InsightDeliveryMilestone, fmt.Sprint(reached)),
		Title:       fmt.Sprintf("%d deliveries completed", reached),
		Description: fmt.Sprintf("You have delivered %d shipments so far", delivered),
		Priority:    PriorityLow,
		Data:        map[string]any{"milestone": reached, "delivered": delivered},
	}}
}
