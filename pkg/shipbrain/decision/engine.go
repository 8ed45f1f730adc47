// Package decision turns rule matches into decisions and carries them to
// execution.
//
// For every event the engine asks the rules manager which enabled rules
// match, highest priority first. Each match yields its own Decision: rules
// are not mutually exclusive. A decision from an auto-executing rule runs
// immediately; any other waits in the pending set until an operator
// approves or rejects it, or it expires (24 hours by default).
//
// Every decision is also appended to the history when it is made. A
// recorded entry is never written again: when the decision leaves the
// pending set, a resolved copy replaces it.
package decision

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/action"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/rules"
)

// Sentinel errors.
var (
	// ErrNotFound indicates no pending decision has the ID. Expired
	// decisions are not found even before the sweep runs.
	ErrNotFound = errors.New("decision not found")

	// ErrResolved indicates the decision already left the pending set.
	ErrResolved = errors.New("decision already resolved")
)

// DefaultPendingTTL is how long a decision waits for approval.
const DefaultPendingTTL = 24 * time.Hour

// DefaultHistorySize caps the decision history.
const DefaultHistorySize = 1000

// Sources whose events the engine ignores, so actions cannot trigger
// themselves through their own bookkeeping events.
const (
	SourceDecision = "decision"
	SourceAction   = "action"
)

// RuleSource selects matching rules and records firings. *rules.Manager
// implements it.
type RuleSource interface {
	Evaluate(kind event.Kind, vars map[string]any) []rules.Rule
	RecordFired(id string)
}

// Executor runs actions. *action.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, act model.Action, target action.Target) model.ActionResult
}

// MetricsRecorder is the subset of observability.MetricsRecorder the engine
// uses.
type MetricsRecorder interface {
	RecordDecision(ctx context.Context, ruleID string, autoExecute bool)
	RecordSweep(ctx context.Context, sweep string, removed int)
}

// Stats counts decisions by outcome.
type Stats struct {
	Pending  int                          `json:"pending"`
	Total    int                          `json:"total"`
	ByResult map[model.DecisionResult]int `json:"byResult"`
}

type pendingEntry struct {
	decision *model.Decision
	vars     map[string]any
}

// Engine evaluates rules and tracks decisions.
//
// Thread-safety: all methods are safe for concurrent use. Actions run and
// events are emitted without the lock held.
type Engine struct {
	rules    RuleSource
	executor Executor

	mu      sync.Mutex
	pending map[string]*pendingEntry
	byID    map[string]*model.Decision
	history []*model.Decision

	ttl     time.Duration
	maxHist int
	clock   clock.Clock
	logger  *slog.Logger
	emitter event.Emitter
	metrics MetricsRecorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithPendingTTL sets how long decisions wait for approval.
func WithPendingTTL(d time.Duration) Option {
	return func(e *Engine) { e.ttl = d }
}

// WithHistorySize caps the history.
func WithHistorySize(n int) Option {
	return func(e *Engine) { e.maxHist = n }
}

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEmitter publishes decision.made events.
func WithEmitter(em event.Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over a rule source and an executor.
func NewEngine(rs RuleSource, exec Executor, opts ...Option) *Engine {
	e := &Engine{
		rules:    rs,
		executor: exec,
		pending:  make(map[string]*pendingEntry),
		byID:     make(map[string]*model.Decision),
		ttl:      DefaultPendingTTL,
		maxHist:  DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.clock = clock.OrSystem(e.clock)
	e.logger = observability.ComponentLogger(e.logger, "decision")
	if e.emitter == nil {
		e.emitter = event.NopEmitter{}
	}
	if e.metrics == nil {
		e.metrics = observability.NoopMetrics{}
	}
	return e
}

// Handle is an event.Handler that evaluates rules for evt. Events emitted
// by the engine or the action executor are skipped.
func (e *Engine) Handle(ctx context.Context, evt event.Event) error {
	if evt.Source == SourceDecision || evt.Source == SourceAction {
		return nil
	}
	e.Evaluate(ctx, evt)
	return nil
}

// Evaluate runs every matching rule for evt and returns the decisions made,
// in rule priority order. Auto-executed decisions come back resolved.
func (e *Engine) Evaluate(ctx context.Context, evt event.Event) []*model.Decision {
	vars := event.Fields(evt)
	matched := e.rules.Evaluate(evt.Kind, vars)
	if len(matched) == 0 {
		return nil
	}

	shipmentID, _ := vars["shipmentId"].(string)
	out := make([]*model.Decision, 0, len(matched))
	for _, r := range matched {
		d := e.propose(ctx, evt, r, shipmentID, vars)
		if r.AutoExecute {
			d = e.run(ctx, d.ID)
		}
		out = append(out, d)
	}
	return out
}

// propose records a pending decision for r and announces it.
func (e *Engine) propose(ctx context.Context, evt event.Event, r rules.Rule, shipmentID string, vars map[string]any) *model.Decision {
	now := e.clock.Now()
	d := &model.Decision{
		ID:         uuid.NewString(),
		Type:       r.Action.Type,
		Reason:     reason(r),
		Confidence: r.Confidence,
		Action:     r.Action.Clone(),
		RuleID:     r.ID,
		EventID:    evt.ID,
		ShipmentID: shipmentID,
		Result:     model.DecisionPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.ttl),
	}

	e.mu.Lock()
	e.pending[d.ID] = &pendingEntry{decision: d, vars: maps.Clone(vars)}
	rec := d.Clone()
	e.byID[d.ID] = rec
	e.history = append(e.history, rec)
	if e.maxHist > 0 && len(e.history) > e.maxHist {
		drop := len(e.history) - e.maxHist
		for _, old := range e.history[:drop] {
			if _, waiting := e.pending[old.ID]; !waiting {
				delete(e.byID, old.ID)
			}
		}
		e.history = slices.Delete(e.history, 0, drop)
	}
	snapshot := d.Clone()
	e.mu.Unlock()

	e.rules.RecordFired(r.ID)
	e.metrics.RecordDecision(ctx, r.ID, r.AutoExecute)
	observability.LogDecision(e.logger, d.ID, r.ID, d.Action.Type, d.Confidence)
	e.emit(ctx, event.DecisionMade{Decision: snapshot, AutoExecute: r.AutoExecute}, event.WithCausation(evt))
	return snapshot
}

func reason(r rules.Rule) string {
	cond := r.ConditionString()
	if cond == "" || cond == "true" {
		return fmt.Sprintf("rule %q triggered by %s", r.Name, r.TriggerEvent)
	}
	return fmt.Sprintf("rule %q matched %s", r.Name, cond)
}

// Approve executes a pending decision and returns its resolved copy.
func (e *Engine) Approve(ctx context.Context, id string) (*model.Decision, error) {
	e.mu.Lock()
	_, err := e.pendingLocked(id)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	d := e.run(ctx, id)
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrResolved, id)
	}
	return d, nil
}

// run takes the decision out of the pending set, executes its action and
// records the outcome. It returns nil if another caller got there first.
func (e *Engine) run(ctx context.Context, id string) *model.Decision {
	e.mu.Lock()
	p, ok := e.pending[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	delete(e.pending, id)
	act := p.decision.Action.Clone()
	target := action.Target{
		DecisionID: id,
		ShipmentID: p.decision.ShipmentID,
		EventID:    p.decision.EventID,
		Vars:       p.vars,
	}
	e.mu.Unlock()

	res := e.executor.Execute(ctx, act, target)

	result := model.DecisionSuccess
	if !res.Success {
		result = model.DecisionFailure
	}
	return e.resolve(p.decision, result, res.Error)
}

// resolve records the outcome on a fresh copy of d and swaps it in for the
// pending record. Caller has already removed d from the pending set.
func (e *Engine) resolve(d *model.Decision, result model.DecisionResult, msg string) *model.Decision {
	now := e.clock.Now()
	r := d.Clone()
	r.Result = result
	r.Error = msg
	r.ResolvedAt = &now

	e.mu.Lock()
	defer e.mu.Unlock()
	e.byID[r.ID] = r
	if i := slices.IndexFunc(e.history, func(h *model.Decision) bool { return h.ID == r.ID }); i >= 0 {
		e.history[i] = r
	}
	return r.Clone()
}

// Reject drops a pending decision without executing it.
func (e *Engine) Reject(id, why string) (*model.Decision, error) {
	e.mu.Lock()
	p, err := e.pendingLocked(id)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	delete(e.pending, id)
	e.mu.Unlock()

	e.logger.Info("decision rejected", slog.String("decision_id", id), slog.String("reason", why))
	return e.resolve(p.decision, model.DecisionRejected, why), nil
}

// pendingLocked returns a live pending entry.
func (e *Engine) pendingLocked(id string) (*pendingEntry, error) {
	p, ok := e.pending[id]
	if !ok {
		if _, known := e.byID[id]; known {
			return nil, fmt.Errorf("%w: %s", ErrResolved, id)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !e.clock.Now().Before(p.decision.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// ExpireSweep marks every overdue pending decision expired and returns how
// many it moved.
func (e *Engine) ExpireSweep(ctx context.Context) int {
	now := e.clock.Now()

	e.mu.Lock()
	var overdue []*model.Decision
	for id, p := range e.pending {
		if !now.Before(p.decision.ExpiresAt) {
			overdue = append(overdue, p.decision)
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()

	for _, d := range overdue {
		e.resolve(d, model.DecisionExpired, "expired")
	}
	e.metrics.RecordSweep(ctx, "decisions", len(overdue))
	observability.LogSweep(e.logger, "decisions", len(overdue))
	return len(overdue)
}

// Pending returns copies of live pending decisions, oldest first.
func (e *Engine) Pending() []*model.Decision {
	now := e.clock.Now()

	e.mu.Lock()
	out := make([]*model.Decision, 0, len(e.pending))
	for _, p := range e.pending {
		if now.Before(p.decision.ExpiresAt) {
			out = append(out, p.decision.Clone())
		}
	}
	e.mu.Unlock()

	slices.SortFunc(out, func(a, b *model.Decision) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Get returns a copy of any decision still in the history.
func (e *Engine) Get(id string) (*model.Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.Clone(), nil
}

// History returns copies of recorded decisions in creation order. limit
// <= 0 returns all of them.
func (e *Engine) History(limit int) []*model.Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := e.history
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]*model.Decision, len(src))
	for i, d := range src {
		out[i] = d.Clone()
	}
	return out
}

// Stats counts decisions in the history by result.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{Pending: len(e.pending), Total: len(e.history), ByResult: make(map[model.DecisionResult]int)}
	for _, d := range e.history {
		s.ByResult[d.Result]++
	}
	return s
}

func (e *Engine) emit(ctx context.Context, p event.Payload, opts ...event.EmitOption) {
	opts = append(opts, event.WithSource(SourceDecision))
	if _, err := e.emitter.Emit(ctx, p, opts...); err != nil {
		e.logger.Warn("decision event dropped", slog.Any("error", err))
	}
}
