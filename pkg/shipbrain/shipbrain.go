package shipbrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/action"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/alert"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/brain"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/config"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/decision"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/insight"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/learning"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/memory"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/operator"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/pattern"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/query"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/rules"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/scheduler"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/storage"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/unify"
)

// Version is reported by the module registry and the CLI.
const Version = "0.1.0"

// Core is one wired shipment intelligence instance.
//
// Thread-safety: all methods are safe for concurrent use. Ingest calls are
// serialized so matching always sees a consistent order pool.
type Core struct {
	settings config.Settings
	clock    clock.Clock
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager

	store     storage.Store
	ownsStore bool

	bus       *event.Bus
	memory    *memory.Manager
	unifier   *unify.Unifier
	matcher   unify.Matcher
	brain     *brain.Brain
	rules     *rules.Manager
	watcher   *rules.Watcher
	alerts    *alert.Manager
	executor  *action.Executor
	decisions *decision.Engine
	detector  *pattern.Detector
	learner   *learning.Engine
	insights  *insight.Manager
	queries   *query.Executor
	commands  *operator.Dispatcher
	sched     *scheduler.Scheduler

	ingestMu sync.Mutex
	pool     *orderPool

	sessionMu sync.Mutex
	session   *model.OperationalContext

	unsubscribe []func()
	closed      atomic.Bool
}

// New validates settings and builds a Core.
func New(settings config.Settings, opts ...Option) (*Core, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Core{
		settings: settings,
		clock:    clock.OrSystem(o.clock),
		logger:   observability.OrDefault(o.logger),
		metrics:  observability.OrNoop(o.metrics),
		spans:    observability.OrNoopSpans(o.spans),
		store:    o.store,
		pool:     newOrderPool(DefaultOrderPoolSize),
	}
	if c.store == nil {
		st, err := storage.Open(settings.Storage.Driver, settings.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		c.store = st
		c.ownsStore = true
	}

	c.bus = event.NewBus(
		event.BusConfig{HistorySize: settings.Bus.HistorySize, QueueSize: settings.Bus.QueueSize},
		event.WithLogger(c.logger),
		event.WithMetrics(c.metrics),
		event.WithClock(c.clock),
	)

	c.memory = memory.New(
		memory.WithClock(c.clock),
		memory.WithLogger(c.logger),
		memory.WithStore(c.store),
		memory.WithTTLs(map[memory.Tier]time.Duration{
			memory.TierShort:    settings.Memory.ShortTTL,
			memory.TierMedium:   settings.Memory.MediumTTL,
			memory.TierLong:     settings.Memory.LongTTL,
			memory.TierSemantic: settings.Memory.SemanticTTL,
		}),
	)

	c.unifier = unify.NewUnifier(
		unify.WithClock(c.clock),
		unify.WithLogger(c.logger),
		unify.WithDelayThreshold(settings.Unify.DelayDays),
	)
	c.matcher = unify.Matcher{FuzzyWindow: settings.Unify.FuzzyWindow, MinDigits: settings.Unify.MinDigits}

	c.brain = brain.New(brain.WithClock(c.clock), brain.WithLogger(c.logger), brain.WithEmitter(c.bus))

	if err := c.initRules(o); err != nil {
		c.closeStore()
		return nil, err
	}

	c.alerts = alert.NewManager(
		alert.WithClock(c.clock),
		alert.WithLogger(c.logger),
		alert.WithEmitter(c.bus),
		alert.WithMetrics(c.metrics),
		alert.WithTTL(settings.Alerts.TTL),
		alert.WithHistoryLimit(settings.Alerts.HistoryLimit),
	)

	c.executor = action.NewExecutor(
		action.WithMemory(c.memory),
		action.WithEmitter(c.bus),
		action.WithClock(c.clock),
		action.WithLogger(c.logger),
		action.WithMetrics(c.metrics),
		action.WithSpans(c.spans),
	)
	notifier := o.notifier
	if notifier == nil {
		notifier = action.LogNotifier{Logger: observability.ComponentLogger(c.logger, "notify")}
	}
	action.Builtins{
		Alerts:   c.alerts,
		Memory:   c.memory,
		Notifier: notifier,
		Logger:   c.logger,
	}.Register(c.executor)

	c.decisions = decision.NewEngine(c.rules, c.executor,
		decision.WithPendingTTL(settings.Decisions.PendingTTL),
		decision.WithClock(c.clock),
		decision.WithLogger(c.logger),
		decision.WithEmitter(c.bus),
		decision.WithMetrics(c.metrics),
	)

	c.detector = pattern.NewDetector(pattern.WithClock(c.clock), pattern.WithLogger(c.logger))
	c.learner = learning.NewEngine(learning.WithClock(c.clock), learning.WithLogger(c.logger), learning.WithEmitter(c.bus))
	c.insights = insight.NewManager(
		insight.WithCooldown(settings.Analysis.InsightCooldown),
		insight.WithClock(c.clock),
		insight.WithLogger(c.logger),
		insight.WithEmitter(c.bus),
	)

	queries := query.NewRegistry()
	if err := query.RegisterBuiltins(queries, c); err != nil {
		c.closeStore()
		return nil, err
	}
	c.queries = query.NewExecutor(queries, c.logger)

	commands := operator.NewRegistry()
	if err := (operator.Builtins{Alerts: c.alerts, Decisions: c.decisions, Rules: c.rules}).Register(commands); err != nil {
		c.closeStore()
		return nil, err
	}
	c.commands = operator.NewDispatcher(commands, operator.WithClock(c.clock), operator.WithLogger(c.logger))

	c.unsubscribe = append(c.unsubscribe,
		c.bus.OnAll(c.decisions.Handle),
		c.bus.On(event.KindShipmentDelayed, c.rememberFact),
		c.bus.On(event.KindShipmentIssue, c.rememberFact),
		c.bus.On(event.KindShipmentDelivered, c.resolveDelivered),
	)

	sched, err := c.newScheduler()
	if err != nil {
		c.closeStore()
		return nil, err
	}
	c.sched = sched

	if err := c.registerModules(context.Background()); err != nil {
		c.closeStore()
		return nil, err
	}
	return c, nil
}

func (c *Core) initRules(o options) error {
	c.rules = rules.NewManager(rules.WithClock(c.clock), rules.WithLogger(c.logger))
	if !o.skipDefaults {
		if err := rules.LoadDefaults(c.rules); err != nil {
			return fmt.Errorf("load default rules: %w", err)
		}
	}
	for _, r := range o.rules {
		if err := c.rules.Add(r); err != nil {
			return fmt.Errorf("add rule: %w", err)
		}
	}
	if c.settings.Rules.File != "" {
		c.watcher = rules.NewWatcher(c.settings.Rules.File, c.rules,
			rules.WithWatchLogger(observability.ComponentLogger(c.logger, "rules")))
		if _, err := c.watcher.Reload(); err != nil {
			return fmt.Errorf("load rule file: %w", err)
		}
	}
	return nil
}

func (c *Core) registerModules(ctx context.Context) error {
	modules := []struct {
		name  string
		check brain.HealthChecker
	}{
		{"event", func(context.Context) error {
			if c.closed.Load() {
				return event.ErrBusClosed
			}
			return nil
		}},
		{"memory", nil},
		{"unify", nil},
		{"rules", func(context.Context) error {
			if !c.rules.Enabled() {
				return errors.New("rule evaluation disabled")
			}
			return nil
		}},
		{"decision", nil},
		{"action", nil},
		{"alert", nil},
		{"pattern", nil},
		{"learning", nil},
		{"insight", nil},
		{"storage", func(context.Context) error {
			_, err := c.store.List(memory.SnapshotNamespace)
			return err
		}},
	}
	for _, m := range modules {
		if err := c.brain.RegisterModule(ctx, m.name, Version, m.check); err != nil {
			return fmt.Errorf("register module %s: %w", m.name, err)
		}
	}
	return nil
}

// Close stops event delivery and closes the store if the core opened it.
// It does not persist; call Persist first for a final snapshot.
func (c *Core) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, off := range c.unsubscribe {
		off()
	}
	return errors.Join(c.bus.Close(), c.closeStore())
}

func (c *Core) closeStore() error {
	if !c.ownsStore {
		return nil
	}
	return c.store.Close()
}

// Settings returns the settings the core was built with.
func (c *Core) Settings() config.Settings { return c.settings }

// Bus returns the event bus, for subscribing to lifecycle events.
func (c *Core) Bus() *event.Bus { return c.bus }

// Memory returns the memory store.
func (c *Core) Memory() *memory.Manager { return c.memory }

// Brain returns the shipment registry.
func (c *Core) Brain() *brain.Brain { return c.brain }

// Rules returns the rules manager.
func (c *Core) Rules() *rules.Manager { return c.rules }

// Alerts returns the alert manager.
func (c *Core) Alerts() *alert.Manager { return c.alerts }

// Decisions returns the decision engine.
func (c *Core) Decisions() *decision.Engine { return c.decisions }

// Actions returns the action executor, for registering custom handlers.
func (c *Core) Actions() *action.Executor { return c.executor }

// Insights returns the insights manager.
func (c *Core) Insights() *insight.Manager { return c.insights }

// Learning returns the learning engine.
func (c *Core) Learning() *learning.Engine { return c.learner }

// Store returns the snapshot backend.
func (c *Core) Store() storage.Store { return c.store }
