package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/config"
	sberrors "github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/errors"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/memory"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/registry"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/template"
)

// DefaultHistorySize caps retained results.
const DefaultHistorySize = 500

// Executor runs actions through registered handlers.
//
// Thread-safety: all methods are safe for concurrent use.
type Executor struct {
	handlers *registry.Registry[string, Handler]
	renderer *template.Renderer

	mu      sync.Mutex
	history []model.ActionResult
	maxHist int
	stats   Stats

	retry   sberrors.RetryConfig
	memory  Rememberer
	emitter event.Emitter
	clock   clock.Clock
	logger  *slog.Logger
	metrics MetricsRecorder
	spans   observability.SpanManager
}

// Option configures an Executor.
type Option func(*Executor)

// WithRetry sets the retry policy for transient handler errors.
// Default: errors.DefaultRetry.
func WithRetry(cfg sberrors.RetryConfig) Option {
	return func(e *Executor) { e.retry = cfg }
}

// WithMemory records every result in m.
func WithMemory(m Rememberer) Option {
	return func(e *Executor) { e.memory = m }
}

// WithEmitter publishes an action.executed event per result.
func WithEmitter(em event.Emitter) Option {
	return func(e *Executor) { e.emitter = em }
}

// WithClock sets the clock used for result timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(e *Executor) { e.spans = s }
}

// WithHistorySize caps retained results.
func WithHistorySize(n int) Option {
	return func(e *Executor) { e.maxHist = n }
}

// NewExecutor creates an executor with no handlers.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		handlers: registry.New[string, Handler](),
		renderer: template.NewRenderer(),
		retry:    sberrors.DefaultRetry,
		maxHist:  DefaultHistorySize,
		stats:    Stats{ByType: make(map[string]int)},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.clock = clock.OrSystem(e.clock)
	e.logger = observability.ComponentLogger(e.logger, "action")
	if e.emitter == nil {
		e.emitter = event.NopEmitter{}
	}
	if e.metrics == nil {
		e.metrics = observability.NoopMetrics{}
	}
	e.spans = observability.OrNoopSpans(e.spans)
	return e
}

// Register sets the handler for an action type, replacing any previous one.
func (e *Executor) Register(actionType string, h Handler) {
	e.handlers.Register(actionType, h)
}

// Unregister removes the handler for an action type.
func (e *Executor) Unregister(actionType string) {
	e.handlers.Delete(actionType)
}

// Types lists registered action types in registration order.
func (e *Executor) Types() []string {
	return e.handlers.Keys()
}

// Has reports whether actionType has a handler.
func (e *Executor) Has(actionType string) bool {
	return e.handlers.Has(actionType)
}

// Execute runs act for target and returns the result. It never fails: a
// missing handler, handler error or panic yields Success=false.
func (e *Executor) Execute(ctx context.Context, act model.Action, target Target) model.ActionResult {
	started := time.Now()
	ctx, span := e.spans.StartActionSpan(ctx, act.Type, target.DecisionID)

	res := model.ActionResult{
		ID:         uuid.NewString(),
		ActionType: act.Type,
		DecisionID: target.DecisionID,
		ShipmentID: target.ShipmentID,
		ExecutedAt: e.clock.Now(),
	}

	var err error
	h, ok := e.handlers.Get(act.Type)
	if !ok {
		err = fmt.Errorf("%w: %s", ErrNoHandler, act.Type)
	} else {
		req := Request{
			Type:   act.Type,
			Params: config.New(e.render(act.Params, target.Vars)),
			Target: target,
		}
		out := sberrors.Retry(ctx, e.retry, func(ctx context.Context) (map[string]any, error) {
			return e.invoke(ctx, h, req)
		})
		res.Attempts = out.Attempts
		res.Output = out.Value
		err = out.Err
	}

	res.Duration = time.Since(started)
	res.Success = err == nil
	if err != nil {
		res.Error = rootMessage(err)
		observability.LogActionError(e.logger, act.Type, res.ID, err)
	} else {
		observability.LogActionComplete(e.logger, act.Type, res.ID, float64(res.Duration.Microseconds())/1000)
	}
	observability.EndSpanWithError(span, err)
	e.metrics.RecordAction(ctx, act.Type, res.Duration, err)

	e.record(res)
	e.remember(res)
	if _, emitErr := e.emitter.Emit(ctx, event.ActionExecuted{Result: cloneResult(res)},
		event.WithSource("action")); emitErr != nil {
		e.logger.Warn("action event dropped", slog.String("result_id", res.ID), slog.Any("error", emitErr))
	}
	return cloneResult(res)
}

// render expands ${field} placeholders, falling back to the raw params.
func (e *Executor) render(params, vars map[string]any) map[string]any {
	out, err := e.renderer.RenderParams(params, vars)
	if err != nil {
		return maps.Clone(params)
	}
	return out
}

// invoke calls h, turning a panic into a permanent error.
func (e *Executor) invoke(ctx context.Context, h Handler, req Request) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = sberrors.Permanent(fmt.Errorf("handler panic: %v", r), req.Type)
		}
	}()
	return h(ctx, req)
}

// rootMessage strips retry bookkeeping from err for the result message.
func rootMessage(err error) string {
	var ce *sberrors.CategorizedError
	if errors.As(err, &ce) && ce.Err != nil {
		return rootMessage(ce.Err)
	}
	return err.Error()
}

func (e *Executor) record(res model.ActionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, cloneResult(res))
	if e.maxHist > 0 && len(e.history) > e.maxHist {
		e.history = slices.Delete(e.history, 0, len(e.history)-e.maxHist)
	}
	e.stats.Executed++
	e.stats.ByType[res.ActionType]++
	if res.Success {
		e.stats.Succeeded++
	} else {
		e.stats.Failed++
	}
}

func (e *Executor) remember(res model.ActionResult) {
	if e.memory == nil {
		return
	}
	importance := ImportanceSuccess
	if !res.Success {
		importance = ImportanceFailure
	}
	e.memory.Remember(MemoryCategory, cloneResult(res), memory.Options{
		Tier:       memory.TierMedium,
		Importance: importance,
	})
}

// History returns recorded results, oldest first. limit <= 0 returns all.
func (e *Executor) History(limit int) []model.ActionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := e.history
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]model.ActionResult, len(src))
	for i, r := range src {
		out[i] = cloneResult(r)
	}
	return out
}

// Stats returns execution counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.ByType = maps.Clone(e.stats.ByType)
	return s
}

func cloneResult(r model.ActionResult) model.ActionResult {
	r.Output = maps.Clone(r.Output)
	return r
}
