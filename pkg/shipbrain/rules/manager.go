package rules

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
)

// Manager stores rules and selects the ones an event triggers.
//
// Thread-safety: all methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	rules   map[string]*Rule
	seq     map[string]int
	next    int
	enabled bool

	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for last-fired timestamps.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates an empty, globally enabled manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		rules:   make(map[string]*Rule),
		seq:     make(map[string]int),
		enabled: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.clock = clock.OrSystem(m.clock)
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Add compiles and stores r. Returns ErrDuplicate if the ID is taken.
func (m *Manager) Add(r Rule) error {
	if err := r.Compile(); err != nil {
		return err
	}
	if r.Origin == "" {
		r.Origin = OriginAPI
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[r.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, r.ID)
	}
	m.put(&r)
	return nil
}

// put stores r with a fresh ordering slot. Caller holds the write lock.
func (m *Manager) put(r *Rule) {
	m.rules[r.ID] = r
	if _, ok := m.seq[r.ID]; !ok {
		m.seq[r.ID] = m.next
		m.next++
	}
}

// Update replaces the definition of an existing rule, keeping its firing
// statistics and origin.
func (m *Manager) Update(r Rule) error {
	if err := r.Compile(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.rules[r.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	r.ExecutionCount = old.ExecutionCount
	r.LastFiredAt = old.LastFiredAt
	if r.Origin == "" {
		r.Origin = old.Origin
	}
	m.rules[r.ID] = &r
	return nil
}

// Delete removes a rule.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.rules, id)
	delete(m.seq, id)
	return nil
}

// Get returns a copy of one rule.
func (m *Manager) Get(id string) (Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// List returns copies of every rule, highest priority first.
func (m *Manager) List() []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(func(*Rule) bool { return true })
}

// sorted returns matching rules by descending priority, then insertion
// order. Caller holds a lock.
func (m *Manager) sorted(keep func(*Rule) bool) []Rule {
	out := make([]Rule, 0, len(m.rules))
	for _, r := range m.rules {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b Rule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(m.seq[a.ID], m.seq[b.ID])
	})
	return out
}

// Enable turns one rule on.
func (m *Manager) Enable(id string) error {
	return m.setEnabled(id, true)
}

// Disable turns one rule off without removing it.
func (m *Manager) Disable(id string) error {
	return m.setEnabled(id, false)
}

func (m *Manager) setEnabled(id string, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Enabled = on
	return nil
}

// EnableAll switches rule evaluation on globally.
func (m *Manager) EnableAll() {
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
	m.logger.Info("rules enabled")
}

// DisableAll switches rule evaluation off globally. Definitions and
// per-rule flags are kept.
func (m *Manager) DisableAll() {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
	m.logger.Info("rules disabled")
}

// Enabled reports the global switch.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// ForTrigger returns the enabled rules for kind, highest priority first.
// It returns nil while rules are globally disabled.
func (m *Manager) ForTrigger(kind event.Kind) []Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.enabled {
		return nil
	}
	return m.sorted(func(r *Rule) bool {
		return r.Enabled && r.TriggerEvent == kind
	})
}

// Evaluate returns every enabled rule for kind whose condition holds for
// vars, highest priority first. Each match is independent.
func (m *Manager) Evaluate(kind event.Kind, vars map[string]any) []Rule {
	candidates := m.ForTrigger(kind)
	matched := candidates[:0]
	for _, r := range candidates {
		if r.Matches(vars) {
			matched = append(matched, r)
		}
	}
	return matched
}

// RecordFired bumps a rule's execution count and last-fired time.
func (m *Manager) RecordFired(id string) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rules[id]; ok {
		r.ExecutionCount++
		r.LastFiredAt = &now
	}
}

// Replace swaps every rule of the given origin for rules, in one step.
// Rules whose ID survives keep their statistics. On a validation error
// nothing changes.
func (m *Manager) Replace(origin string, rules []Rule) error {
	compiled := make([]*Rule, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for i := range rules {
		r := rules[i]
		if err := r.Compile(); err != nil {
			return err
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicate, r.ID)
		}
		seen[r.ID] = true
		r.Origin = origin
		compiled = append(compiled, &r)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range compiled {
		if old, ok := m.rules[r.ID]; ok && old.Origin != origin {
			return fmt.Errorf("%w: %s (origin %s)", ErrDuplicate, r.ID, old.Origin)
		}
	}

	stats := make(map[string]*Rule)
	for id, r := range m.rules {
		if r.Origin == origin {
			stats[id] = r
			delete(m.rules, id)
			if !seen[id] {
				delete(m.seq, id)
			}
		}
	}
	for _, r := range compiled {
		if old, ok := stats[r.ID]; ok {
			r.ExecutionCount = old.ExecutionCount
			r.LastFiredAt = old.LastFiredAt
		}
		m.put(r)
	}

	m.logger.Info("rules replaced", "origin", origin, "count", len(compiled))
	return nil
}

// Len returns the number of rules.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}
