// Package query provides the read-only query surface of the core.
//
// Queries are synchronous and never change state. Each query is a named
// handler in a Registry; the Executor runs them by name so outer surfaces
// (a CLI, an HTTP adapter, a UI bridge) can expose the whole surface
// without knowing the components behind it.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
)

// Handler executes a query. targetID is the queried entity when the query
// has one (shipment.predict) and empty otherwise.
type Handler func(ctx context.Context, targetID string, args any) (any, error)

// Sentinel errors.
var (
	ErrQueryNotFound  = errors.New("query not found")
	ErrTargetNotFound = errors.New("target not found")
	ErrTargetRequired = errors.New("target ID is required")
	ErrBadArgs        = errors.New("invalid query arguments")
)

// Registry manages query handlers by name.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for a query name.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return errors.New("query name is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler for query %q already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

// MustRegister registers a handler, panicking on error.
func (r *Registry) MustRegister(name string, handler Handler) {
	if err := r.Register(name, handler); err != nil {
		panic(err)
	}
}

// Get returns the handler for a query name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.handlers[name]
	return handler, exists
}

// List returns the registered query names, sorted.
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

// Unregister removes a handler.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// Executor runs queries by name.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an executor over a registry.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		logger:   observability.ComponentLogger(logger, "query"),
	}
}

// Execute runs one query.
func (e *Executor) Execute(ctx context.Context, name, targetID string, args any) (any, error) {
	if name == "" {
		return nil, errors.New("query name is required")
	}
	handler, exists := e.registry.Get(name)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, name)
	}
	v, err := handler(ctx, targetID, args)
	if err != nil {
		e.logger.Debug("query failed",
			slog.String("query", name),
			slog.String("target_id", targetID),
			slog.String("error", err.Error()))
	}
	return v, err
}

// Result wraps one query outcome.
type Result struct {
	Query    string `json:"query"`
	TargetID string `json:"targetId,omitempty"`
	Value    any    `json:"value,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Request names one query for ExecuteMultiple.
type Request struct {
	Query    string `json:"query"`
	TargetID string `json:"targetId,omitempty"`
	Args     any    `json:"args,omitempty"`
}

// ExecuteMultiple runs each request in order and returns every result,
// including failures.
func (e *Executor) ExecuteMultiple(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, 0, len(reqs))
	for _, req := range reqs {
		res := Result{Query: req.Query, TargetID: req.TargetID}
		v, err := e.Execute(ctx, req.Query, req.TargetID, req.Args)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Value = v
		}
		results = append(results, res)
	}
	return results
}
