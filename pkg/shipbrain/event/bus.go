package event

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
)

// Handler processes a delivered event. A returned error is logged and
// counted; it does not affect other listeners.
type Handler func(ctx context.Context, evt Event) error

// Emitter publishes events. *Bus implements it; components take an Emitter
// so they can be tested without a bus.
type Emitter interface {
	Emit(ctx context.Context, p Payload, opts ...EmitOption) (Event, error)
}

// NopEmitter discards every event.
type NopEmitter struct{}

// Emit returns a zero Event.
func (NopEmitter) Emit(context.Context, Payload, ...EmitOption) (Event, error) {
	return Event{}, nil
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// HistorySize caps the event history ring buffer. Oldest events are
	// evicted first.
	// Default: 1000
	HistorySize int

	// QueueSize caps the number of events waiting for delivery. Emit fails
	// with ErrQueueFull beyond it.
	// Default: 10000
	QueueSize int
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	HistorySize: 1000,
	QueueSize:   10000,
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for listener faults.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(c clock.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// MetricsRecorder is the subset of observability.MetricsRecorder the bus uses.
type MetricsRecorder interface {
	RecordEvent(ctx context.Context, kind string)
	RecordListenerFault(ctx context.Context, kind string)
	RecordEventDropped(ctx context.Context, kind string)
}

// Stats reports bus counters.
type Stats struct {
	Emitted   int64 `json:"emitted"`
	Delivered int64 `json:"delivered"`
	Faults    int64 `json:"faults"`
	Dropped   int64 `json:"dropped"`
	Listeners int   `json:"listeners"`
	Queued    int   `json:"queued"`
	History   int   `json:"history"`
}

type listener struct {
	id int64
	// kind is "" for wildcard listeners.
	kind    Kind
	handler Handler
	once    bool
	fired   atomic.Bool
	removed atomic.Bool
}

type delivery struct {
	ctx       context.Context
	evt       Event
	listeners []*listener
}

// Bus is the in-memory event bus.
type Bus struct {
	config  BusConfig
	logger  *slog.Logger
	metrics MetricsRecorder
	clock   clock.Clock

	mu        sync.Mutex
	byKind    map[Kind][]*listener
	wildcards []*listener
	queue     []delivery
	draining  bool
	closed    bool
	nextID    int64

	history     []Event
	historyHead int
	historyLen  int

	emitted   atomic.Int64
	delivered atomic.Int64
	faults    atomic.Int64
	dropped   atomic.Int64
}

// NewBus creates a new event bus.
func NewBus(config BusConfig, opts ...Option) *Bus {
	if config.HistorySize <= 0 {
		config.HistorySize = DefaultBusConfig.HistorySize
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultBusConfig.QueueSize
	}

	b := &Bus{
		config: config,
		byKind: make(map[Kind][]*listener),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = observability.ComponentLogger(b.logger, "event")
	if b.metrics == nil {
		b.metrics = observability.NoopMetrics{}
	}
	b.clock = clock.OrSystem(b.clock)
	b.history = make([]Event, config.HistorySize)
	return b
}

// On registers handler for one kind and returns a function that removes it.
func (b *Bus) On(kind Kind, handler Handler) func() {
	return b.subscribe(kind, handler, false)
}

// OnAll registers a wildcard handler that receives every event after the
// kind-specific listeners.
func (b *Bus) OnAll(handler Handler) func() {
	return b.subscribe("", handler, false)
}

// Once registers handler for the next event of kind only. An empty kind
// fires on the next event of any kind.
func (b *Bus) Once(kind Kind, handler Handler) func() {
	return b.subscribe(kind, handler, true)
}

func (b *Bus) subscribe(kind Kind, handler Handler, once bool) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || handler == nil {
		return func() {}
	}

	b.nextID++
	l := &listener{id: b.nextID, kind: kind, handler: handler, once: once}
	if kind == "" {
		b.wildcards = append(b.wildcards, l)
	} else {
		b.byKind[kind] = append(b.byKind[kind], l)
	}

	return func() {
		b.remove(l)
	}
}

// remove detaches l from the list it was registered on.
func (b *Bus) remove(l *listener) {
	if l.removed.Swap(true) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	del := func(ls []*listener) []*listener {
		return slices.DeleteFunc(ls, func(x *listener) bool { return x == l })
	}
	if l.kind == "" {
		b.wildcards = del(b.wildcards)
		return
	}
	b.byKind[l.kind] = del(b.byKind[l.kind])
	if len(b.byKind[l.kind]) == 0 {
		delete(b.byKind, l.kind)
	}
}

// Emit records and delivers an event. The listeners registered at the time
// of the call are the ones that receive it.
//
// If a drain is already running, Emit only enqueues and returns; the event is
// delivered after every event queued before it.
func (b *Bus) Emit(ctx context.Context, p Payload, opts ...EmitOption) (Event, error) {
	if p == nil {
		return Event{}, ErrNilPayload
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Event{}, ErrBusClosed
	}

	evt := newEvent(p, b.clock.Now(), opts)
	if len(b.queue) >= b.config.QueueSize {
		b.mu.Unlock()
		b.dropped.Add(1)
		b.metrics.RecordEventDropped(ctx, string(evt.Kind))
		return Event{}, fmt.Errorf("emit %s: %w", evt.Kind, ErrQueueFull)
	}

	targets := make([]*listener, 0, len(b.byKind[evt.Kind])+len(b.wildcards))
	targets = append(targets, b.byKind[evt.Kind]...)
	targets = append(targets, b.wildcards...)

	b.queue = append(b.queue, delivery{ctx: ctx, evt: evt, listeners: targets})
	b.record(evt)
	b.emitted.Add(1)
	b.metrics.RecordEvent(ctx, string(evt.Kind))

	if b.draining {
		b.mu.Unlock()
		return evt.clone(), nil
	}
	b.draining = true
	b.drainLocked()
	b.mu.Unlock()

	return evt.clone(), nil
}

// EmitBatch emits payloads in order. It stops at the first error and returns
// the events emitted so far.
func (b *Bus) EmitBatch(ctx context.Context, payloads []Payload, opts ...EmitOption) ([]Event, error) {
	out := make([]Event, 0, len(payloads))
	for _, p := range payloads {
		evt, err := b.Emit(ctx, p, opts...)
		if err != nil {
			return out, err
		}
		out = append(out, evt)
	}
	return out, nil
}

// drainLocked delivers queued events until the queue is empty. Called with
// b.mu held; the lock is released around every listener call.
func (b *Bus) drainLocked() {
	for len(b.queue) > 0 {
		d := b.queue[0]
		b.queue[0] = delivery{}
		b.queue = b.queue[1:]

		b.mu.Unlock()
		b.deliver(d)
		b.mu.Lock()
	}
	b.queue = nil
	b.draining = false
}

func (b *Bus) deliver(d delivery) {
	for _, l := range d.listeners {
		if l.removed.Load() {
			continue
		}
		if l.once {
			if !l.fired.CompareAndSwap(false, true) {
				continue
			}
			b.remove(l)
		}
		if err := b.invoke(d.ctx, l, d.evt); err != nil {
			b.faults.Add(1)
			b.metrics.RecordListenerFault(d.ctx, string(d.evt.Kind))
			observability.LogListenerFault(b.logger, d.evt.ID, string(d.evt.Kind), l.id, err)
			continue
		}
		b.delivered.Add(1)
	}
}

func (b *Bus) invoke(ctx context.Context, l *listener, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ListenerError{EventID: evt.ID, Kind: evt.Kind, ListenerID: l.id, Panic: r}
		}
	}()
	if herr := l.handler(ctx, evt.clone()); herr != nil {
		return &ListenerError{EventID: evt.ID, Kind: evt.Kind, ListenerID: l.id, Err: herr}
	}
	return nil
}

// record appends evt to the history ring. Called with b.mu held.
func (b *Bus) record(evt Event) {
	size := len(b.history)
	idx := (b.historyHead + b.historyLen) % size
	b.history[idx] = evt
	if b.historyLen < size {
		b.historyLen++
		return
	}
	b.historyHead = (b.historyHead + 1) % size
}

// WaitFor blocks until the next event of kind is delivered, the timeout
// elapses or ctx is done. A zero timeout waits on ctx alone.
func (b *Bus) WaitFor(ctx context.Context, kind Kind, timeout time.Duration) (Event, error) {
	ch := make(chan Event, 1)
	unsubscribe := b.Once(kind, func(_ context.Context, evt Event) error {
		select {
		case ch <- evt:
		default:
		}
		return nil
	})
	defer unsubscribe()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case evt := <-ch:
		return evt, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Event{}, fmt.Errorf("wait for %s: %w", kind, ErrTimeout)
		}
		return Event{}, ctx.Err()
	}
}

// HistoryFilter selects events from the history. Zero fields match anything.
type HistoryFilter struct {
	Kinds      []Kind
	Source     string
	ShipmentID string
	Since      time.Time
	// Limit keeps only the most recent matches. Zero means no limit.
	Limit int
}

func (f HistoryFilter) matches(evt Event) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, evt.Kind) {
		return false
	}
	if f.Source != "" && evt.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && evt.Timestamp.Before(f.Since) {
		return false
	}
	if f.ShipmentID != "" {
		if id, _ := Fields(evt)["shipmentId"].(string); id != f.ShipmentID {
			return false
		}
	}
	return true
}

// History returns matching events oldest first.
func (b *Bus) History(filter HistoryFilter) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, b.historyLen)
	for i := 0; i < b.historyLen; i++ {
		evt := b.history[(b.historyHead+i)%len(b.history)]
		if filter.matches(evt) {
			out = append(out, evt.clone())
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

// ListenerCount returns the number of listeners for kind, or wildcard
// listeners when kind is empty.
func (b *Bus) ListenerCount(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if kind == "" {
		return len(b.wildcards)
	}
	return len(b.byKind[kind])
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	listeners := len(b.wildcards)
	for _, ls := range b.byKind {
		listeners += len(ls)
	}
	return Stats{
		Emitted:   b.emitted.Load(),
		Delivered: b.delivered.Load(),
		Faults:    b.faults.Load(),
		Dropped:   b.dropped.Load(),
		Listeners: listeners,
		Queued:    len(b.queue),
		History:   b.historyLen,
	}
}

// Close stops accepting events and removes every listener. Events already
// queued are still delivered by the running drain.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.byKind = make(map[Kind][]*listener)
	b.wildcards = nil
	return nil
}
