// Package learning fits running-average baselines over completed shipments
// and uses them to predict delivery time, success rate and issue rate.
//
// There is no statistical model here. Each prediction starts from the global
// average and is nudged toward the carrier and destination averages by fixed
// damping weights. Confidence grows with the logarithm of the sample behind
// the prediction and is capped per model. It is a heuristic, not a
// calibrated probability.
package learning

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sync"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/unify"
)

// MinSamples is the number of completed shipments needed before subgroup
// adjustments are applied.
const MinSamples = 10

// Damping weights applied to subgroup deltas.
const (
	CarrierWeight     = 0.7
	DestinationWeight = 0.3
)

// Model names reported in predictions.
const (
	ModelBaseline    = "global_baseline"
	ModelGlobal      = "global"
	ModelCarrier     = "carrier"
	ModelDestination = "destination"
	ModelCombined    = "carrier+destination"
)

// Priors used before any shipment has completed.
const (
	priorDeliveryDays = 5.0
	priorSuccessRate  = 80.0
	priorIssueRate    = 10.0
)

// Stats is one set of averages. Rates are percentages.
type Stats struct {
	Samples         int     `json:"samples"`
	Delivered       int     `json:"delivered"`
	AvgDeliveryDays float64 `json:"avgDeliveryDays"`
	SuccessRate     float64 `json:"successRate"`
	IssueRate       float64 `json:"issueRate"`
}

// Model is the fitted state. It serializes to JSON for snapshots.
type Model struct {
	Trained      bool             `json:"trained"`
	Global       Stats            `json:"global"`
	Carriers     map[string]Stats `json:"carriers,omitempty"`
	Destinations map[string]Stats `json:"destinations,omitempty"`
	TrainedAt    time.Time        `json:"trainedAt"`
}

// Engine holds the current model.
//
// Thread-safety: safe for concurrent use. Train swaps the model atomically.
type Engine struct {
	mu      sync.RWMutex
	model   Model
	clock   clock.Clock
	logger  *slog.Logger
	emitter event.Emitter
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEmitter publishes learning.updated after each training run.
func WithEmitter(em event.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// NewEngine creates an untrained engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.clock = clock.OrSystem(e.clock)
	e.logger = observability.ComponentLogger(e.logger, "learning")
	if e.emitter == nil {
		e.emitter = event.NopEmitter{}
	}
	e.model = Model{Global: priorStats()}
	return e
}

func priorStats() Stats {
	return Stats{AvgDeliveryDays: priorDeliveryDays, SuccessRate: priorSuccessRate, IssueRate: priorIssueRate}
}

type acc struct {
	n, delivered, success, issues int
	days                          float64
}

func (a *acc) add(s *model.UnifiedShipment) {
	a.n++
	if s.CurrentStatus() == model.StatusDelivered {
		a.success++
	}
	if s.HasIssue || s.HadIssue {
		a.issues++
	}
	if d, ok := s.DeliveryDays(); ok {
		a.delivered++
		a.days += d
	}
}

func (a *acc) stats(fallbackDays float64) Stats {
	st := Stats{Samples: a.n, Delivered: a.delivered, AvgDeliveryDays: fallbackDays}
	if a.delivered > 0 {
		st.AvgDeliveryDays = a.days / float64(a.delivered)
	}
	if a.n > 0 {
		st.SuccessRate = float64(a.success) / float64(a.n) * 100
		st.IssueRate = float64(a.issues) / float64(a.n) * 100
	}
	return st
}

// Train refits the model from the completed (delivered or returned)
// shipments in the input. Below MinSamples only the global averages are
// kept.
func (e *Engine) Train(ctx context.Context, shipments []*model.UnifiedShipment) Model {
	var global acc
	carriers := make(map[string]*acc)
	cities := make(map[string]*acc)
	for _, s := range shipments {
		if !s.CurrentStatus().IsCompleted() {
			continue
		}
		global.add(s)
		if c := s.CarrierName(); c != "" {
			bucket(carriers, c).add(s)
		}
		if city := unify.NormalizeCity(s.DestinationCity()); city != "" {
			bucket(cities, city).add(s)
		}
	}

	m := Model{Global: priorStats(), TrainedAt: e.clock.Now()}
	if global.n > 0 {
		m.Global = global.stats(priorDeliveryDays)
	}
	if global.n >= MinSamples {
		m.Trained = true
		m.Carriers = make(map[string]Stats, len(carriers))
		for k, a := range carriers {
			m.Carriers[k] = a.stats(m.Global.AvgDeliveryDays)
		}
		m.Destinations = make(map[string]Stats, len(cities))
		for k, a := range cities {
			m.Destinations[k] = a.stats(m.Global.AvgDeliveryDays)
		}
	}

	e.mu.Lock()
	e.model = m
	e.mu.Unlock()

	e.logger.Info("learning model trained",
		slog.Int("samples", m.Global.Samples),
		slog.Bool("trained", m.Trained),
		slog.Float64("avg_delivery_days", m.Global.AvgDeliveryDays),
	)
	if _, err := e.emitter.Emit(ctx, event.LearningUpdated{
		Samples:         m.Global.Samples,
		Trained:         m.Trained,
		AvgDeliveryDays: m.Global.AvgDeliveryDays,
		SuccessRate:     m.Global.SuccessRate,
		IssueRate:       m.Global.IssueRate,
	}, event.WithSource("learning")); err != nil {
		e.logger.Warn("learning event dropped", slog.Any("error", err))
	}
	return m
}

func bucket(m map[string]*acc, key string) *acc {
	a, ok := m[key]
	if !ok {
		a = &acc{}
		m[key] = a
	}
	return a
}

// Model returns a copy of the current model.
func (e *Engine) Model() Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model.clone()
}

// Load replaces the current model, typically from a snapshot.
func (e *Engine) Load(m Model) {
	e.mu.Lock()
	e.model = m.clone()
	e.mu.Unlock()
}

// Trained reports whether subgroup adjustments are active.
func (e *Engine) Trained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model.Trained
}

func (m Model) clone() Model {
	c := m
	c.Carriers = maps.Clone(m.Carriers)
	c.Destinations = maps.Clone(m.Destinations)
	return c
}

// Predict estimates the outcome of s from the current model.
func (e *Engine) Predict(s *model.UnifiedShipment) model.ShipmentPrediction {
	e.mu.RLock()
	m := e.model
	e.mu.RUnlock()

	out := model.ShipmentPrediction{ShipmentID: s.ID, Trained: m.Trained}
	if !m.Trained {
		out.DeliveryDays = baseline(m.Global, m.Global.AvgDeliveryDays, "days", 90)
		out.SuccessRate = baseline(m.Global, m.Global.SuccessRate, "%", 85)
		out.IssueRate = baseline(m.Global, m.Global.IssueRate, "%", 80)
		return out
	}

	carrier, hasCarrier := m.Carriers[s.CarrierName()]
	dest, hasDest := m.Destinations[unify.NormalizeCity(s.DestinationCity())]
	p := predictor{global: m.Global, carrier: carrier, dest: dest, hasCarrier: hasCarrier, hasDest: hasDest,
		carrierName: s.CarrierName(), city: s.DestinationCity()}

	out.DeliveryDays = p.predict(func(st Stats) float64 { return st.AvgDeliveryDays }, "days", 0, math.Inf(1), 90)
	out.SuccessRate = p.predict(func(st Stats) float64 { return st.SuccessRate }, "%", 0, 100, 85)
	out.IssueRate = p.predict(func(st Stats) float64 { return st.IssueRate }, "%", 0, 100, 80)
	return out
}

func baseline(g Stats, value float64, unit string, ceiling float64) model.Prediction {
	factor := fmt.Sprintf("global average %.1f%s from %d completed shipments", value, unitSuffix(unit), g.Samples)
	if g.Samples == 0 {
		factor = "no completed shipments yet; using default prior"
	}
	return model.Prediction{
		Value:      round1(value),
		Confidence: confidence(g.Samples, 20, 5, ceiling/2),
		Factors:    []string{factor, "model not trained"},
		ModelUsed:  ModelBaseline,
	}
}

type predictor struct {
	global, carrier, dest Stats
	hasCarrier, hasDest   bool
	carrierName, city     string
}

func (p predictor) predict(field func(Stats) float64, unit string, lo, hi, ceiling float64) model.Prediction {
	g := field(p.global)
	value := g
	samples := p.global.Samples
	factors := []string{fmt.Sprintf("global average %.1f%s", g, unitSuffix(unit))}
	used := ModelGlobal

	if p.hasCarrier {
		delta := field(p.carrier) - g
		value += CarrierWeight * delta
		samples = p.carrier.Samples
		factors = append(factors, fmt.Sprintf("carrier %s %+.1f%s", p.carrierName, delta, unitSuffix(unit)))
		used = ModelCarrier
	}
	if p.hasDest {
		delta := field(p.dest) - g
		value += DestinationWeight * delta
		if !p.hasCarrier || p.dest.Samples < samples {
			samples = p.dest.Samples
		}
		factors = append(factors, fmt.Sprintf("destination %s %+.1f%s", p.city, delta, unitSuffix(unit)))
		if p.hasCarrier {
			used = ModelCombined
		} else {
			used = ModelDestination
		}
	}

	return model.Prediction{
		Value:      round1(math.Max(lo, math.Min(hi, value))),
		Confidence: confidence(samples, 30, 12, ceiling),
		Factors:    factors,
		ModelUsed:  used,
	}
}

// confidence grows with ln(1+n) and stops at ceiling.
func confidence(n int, base, step, ceiling float64) float64 {
	return round1(math.Min(ceiling, base+step*math.Log1p(float64(n))))
}

func unitSuffix(unit string) string {
	if unit == "%" {
		return "%"
	}
	return " " + unit
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
