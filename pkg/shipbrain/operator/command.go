// Package operator dispatches operator commands to the core.
//
// A Command names an operation (alert.acknowledge, decision.approve,
// rule.disable, ...) and the entity it applies to. The Dispatcher looks up
// the handler, runs it synchronously, stamps the command processed or
// failed and keeps it in a bounded audit history.
package operator

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
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
)

// Status is the processing state of a command.
type Status string

// Command statuses.
const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Command is one operator request.
type Command struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	TargetID string         `json:"targetId,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	SenderID string         `json:"senderId,omitempty"`
	Status   Status         `json:"status"`

	SentAt      time.Time  `json:"sentAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`

	// Result is the handler's return value, typically the updated entity.
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewCommand creates a pending command.
func NewCommand(name, targetID string, payload map[string]any) *Command {
	return &Command{
		Name:     name,
		TargetID: targetID,
		Payload:  payload,
		Status:   StatusPending,
	}
}

// WithSender sets the sender ID on the command.
func (c *Command) WithSender(senderID string) *Command {
	c.SenderID = senderID
	return c
}

// Clone creates a copy of the command with its own payload map.
func (c *Command) Clone() *Command {
	cp := *c
	cp.Payload = maps.Clone(c.Payload)
	if c.ProcessedAt != nil {
		t := *c.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}

// String returns the payload value under key, or "".
func (c *Command) String(key string) string {
	s, _ := c.Payload[key].(string)
	return s
}

// Handler processes a command and returns its result.
type Handler func(ctx context.Context, cmd *Command) (any, error)

// Sentinel errors.
var (
	ErrNoHandler      = errors.New("no handler for command")
	ErrTargetRequired = errors.New("command target is required")
	ErrNotFound       = errors.New("command not found")
)

// Registry manages command handlers by name.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for a command name.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return errors.New("command name is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler for command %q already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

// Get returns the handler for a command name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// List returns the registered command names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultHistorySize caps the audit history.
const DefaultHistorySize = 500

// Dispatcher runs commands and records them.
type Dispatcher struct {
	registry *Registry
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	history []*Command
	byID    map[string]*Command
	maxHist int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithHistorySize caps the audit history.
func WithHistorySize(n int) Option {
	return func(d *Dispatcher) { d.maxHist = n }
}

// NewDispatcher creates a dispatcher over a registry.
func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		byID:     make(map[string]*Command),
		maxHist:  DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.clock = clock.OrSystem(d.clock)
	d.logger = observability.ComponentLogger(d.logger, "operator")
	return d
}

// Dispatch runs cmd and returns a processed or failed copy of it. The
// returned error is the handler's error; the command is recorded either way.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *Command) (*Command, error) {
	c := cmd.Clone()
	if c.ID == "" {
		c.ID = "cmd-" + uuid.NewString()[:8]
	}
	if c.SentAt.IsZero() {
		c.SentAt = d.clock.Now()
	}
	c.Status = StatusPending

	result, err := d.run(ctx, c)
	now := d.clock.Now()
	c.ProcessedAt = &now
	if err != nil {
		c.Status = StatusFailed
		c.Error = err.Error()
		d.logger.Warn("command failed",
			slog.String("command_id", c.ID),
			slog.String("command", c.Name),
			slog.String("target_id", c.TargetID),
			slog.String("error", err.Error()))
	} else {
		c.Status = StatusProcessed
		c.Result = result
		d.logger.Info("command processed",
			slog.String("command_id", c.ID),
			slog.String("command", c.Name),
			slog.String("target_id", c.TargetID))
	}

	d.record(c)
	return c.Clone(), err
}

func (d *Dispatcher) run(ctx context.Context, c *Command) (result any, err error) {
	if c.Name == "" {
		return nil, errors.New("command name is required")
	}
	handler, ok := d.registry.Get(c.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, c.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", c.Name, r)
		}
	}()
	return handler(ctx, c)
}

func (d *Dispatcher) record(c *Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, c)
	d.byID[c.ID] = c
	if d.maxHist > 0 && len(d.history) > d.maxHist {
		drop := len(d.history) - d.maxHist
		for _, old := range d.history[:drop] {
			delete(d.byID, old.ID)
		}
		d.history = slices.Delete(d.history, 0, drop)
	}
}

// Get returns a recorded command.
func (d *Dispatcher) Get(id string) (*Command, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.Clone(), nil
}

// History returns recorded commands oldest first. limit <= 0 returns all.
func (d *Dispatcher) History(limit int) []*Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	src := d.history
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]*Command, len(src))
	for i, c := range src {
		out[i] = c.Clone()
	}
	return out
}

// ForTarget returns the recorded commands that touched targetID.
func (d *Dispatcher) ForTarget(targetID string) []*Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Command
	for _, c := range d.history {
		if c.TargetID == targetID {
			out = append(out, c.Clone())
		}
	}
	return out
}
