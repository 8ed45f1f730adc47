package alert

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
)

// Manager owns open alerts and their history.
//
// Thread-safety: all methods are safe for concurrent use. Events are emitted
// after the lock is released.
type Manager struct {
	mu   sync.Mutex
	open map[string]*model.Alert
	// closed holds the IDs of alerts still in history.
	closed  map[string]struct{}
	history []*model.Alert
	// closedTotal counts every alert ever closed.
	closedTotal int

	ttl     time.Duration
	maxHist int
	clock   clock.Clock
	logger  *slog.Logger
	emitter event.Emitter
	metrics MetricsRecorder
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEmitter publishes alert.created and alert.resolved events.
func WithEmitter(e event.Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r MetricsRecorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithTTL sets the default alert lifetime.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithHistoryLimit caps retained closed alerts. Zero or less keeps
// everything.
// Default: DefaultHistoryLimit
func WithHistoryLimit(n int) Option {
	return func(m *Manager) { m.maxHist = n }
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		open:    make(map[string]*model.Alert),
		closed:  make(map[string]struct{}),
		ttl:     DefaultTTL,
		maxHist: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.clock = clock.OrSystem(m.clock)
	m.logger = observability.ComponentLogger(m.logger, "alert")
	if m.emitter == nil {
		m.emitter = event.NopEmitter{}
	}
	if m.metrics == nil {
		m.metrics = observability.NoopMetrics{}
	}
	return m
}

// Create raises an alert, or updates the open alert with the same category
// and shipment. The returned bool is true when a new alert was created.
func (m *Manager) Create(ctx context.Context, req Request) (*model.Alert, bool) {
	now := m.clock.Now()
	if req.Severity == "" {
		req.Severity = model.SeverityWarning
	}

	m.mu.Lock()
	if existing := m.findOpenLocked(req.Category, req.ShipmentID, now); existing != nil {
		existing.Message = req.Message
		if req.Title != "" {
			existing.Title = req.Title
		}
		existing.Severity = maxSeverity(existing.Severity, req.Severity)
		existing.AutoResolvable = existing.AutoResolvable && req.AutoResolvable
		existing.Occurrences++
		existing.UpdatedAt = now
		existing.ExpiresAt = m.expiry(now, req.TTL)
		out := existing.Clone()
		m.mu.Unlock()

		m.logger.Debug("alert deduplicated",
			slog.String("alert_id", out.ID),
			slog.String("category", out.Category),
			slog.Int("occurrences", out.Occurrences),
		)
		return out, false
	}

	a := &model.Alert{
		ID:             uuid.NewString(),
		Severity:       req.Severity,
		Status:         model.AlertActive,
		Category:       req.Category,
		Title:          req.Title,
		Message:        req.Message,
		ShipmentID:     req.ShipmentID,
		AutoResolvable: req.AutoResolvable,
		Occurrences:    1,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      m.expiry(now, req.TTL),
	}
	m.open[a.ID] = a
	out := a.Clone()
	m.mu.Unlock()

	m.logger.Info("alert created",
		slog.String("alert_id", out.ID),
		slog.String("severity", string(out.Severity)),
		slog.String("category", out.Category),
		slog.String("shipment_id", out.ShipmentID),
	)
	m.metrics.RecordAlert(ctx, string(out.Severity), out.Category)
	m.emit(ctx, event.AlertCreated{Alert: out.Clone()})
	return out, true
}

func (m *Manager) expiry(now time.Time, ttl time.Duration) *time.Time {
	if ttl == 0 {
		ttl = m.ttl
	}
	if ttl < 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}

// findOpenLocked returns the live open alert for (category, shipmentID).
func (m *Manager) findOpenLocked(category, shipmentID string, now time.Time) *model.Alert {
	for _, a := range m.open {
		if a.Category == category && a.ShipmentID == shipmentID && !expired(a, now) {
			return a
		}
	}
	return nil
}

func expired(a *model.Alert, now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// Get returns a copy of an open alert.
func (m *Manager) Get(id string) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.liveLocked(id)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (m *Manager) liveLocked(id string) (*model.Alert, error) {
	if _, ok := m.closed[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrClosed, id)
	}
	a, ok := m.open[id]
	if !ok || expired(a, m.clock.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, nil
}

// Acknowledge marks an open alert as seen. Acknowledging twice is a no-op.
func (m *Manager) Acknowledge(id string) (*model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := m.liveLocked(id)
	if err != nil {
		return nil, err
	}
	if a.Status == model.AlertActive {
		a.Status = model.AlertAcknowledged
		a.UpdatedAt = m.clock.Now()
	}
	return a.Clone(), nil
}

// Resolve closes an alert as resolved.
func (m *Manager) Resolve(ctx context.Context, id, reason string) (*model.Alert, error) {
	return m.close(ctx, id, model.AlertResolved, reason)
}

// Dismiss closes an alert as dismissed.
func (m *Manager) Dismiss(ctx context.Context, id, reason string) (*model.Alert, error) {
	return m.close(ctx, id, model.AlertDismissed, reason)
}

func (m *Manager) close(ctx context.Context, id string, status model.AlertStatus, reason string) (*model.Alert, error) {
	m.mu.Lock()
	a, err := m.liveLocked(id)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	out := m.closeLocked(a, status, reason, m.clock.Now())
	m.mu.Unlock()

	m.logger.Info("alert closed",
		slog.String("alert_id", out.ID),
		slog.String("status", string(out.Status)),
		slog.String("reason", reason),
	)
	m.emit(ctx, event.AlertResolved{Alert: out.Clone()})
	return out, nil
}

// closeLocked moves a to history and returns a copy.
func (m *Manager) closeLocked(a *model.Alert, status model.AlertStatus, reason string, now time.Time) *model.Alert {
	a.Status = status
	a.CloseReason = reason
	a.UpdatedAt = now
	a.ClosedAt = &now

	delete(m.open, a.ID)
	m.closed[a.ID] = struct{}{}
	m.closedTotal++
	m.history = append(m.history, a)
	if m.maxHist > 0 && len(m.history) > m.maxHist {
		drop := len(m.history) - m.maxHist
		for _, old := range m.history[:drop] {
			delete(m.closed, old.ID)
		}
		m.history = slices.Delete(m.history, 0, drop)
	}
	return a.Clone()
}

// ResolveForShipment resolves every open auto-resolvable alert for a
// shipment and returns how many were closed.
func (m *Manager) ResolveForShipment(ctx context.Context, shipmentID, reason string) int {
	if shipmentID == "" {
		return 0
	}
	now := m.clock.Now()

	m.mu.Lock()
	var resolved []*model.Alert
	for _, a := range m.sortedOpenLocked() {
		if a.ShipmentID == shipmentID && a.AutoResolvable {
			resolved = append(resolved, m.closeLocked(a, model.AlertResolved, reason, now))
		}
	}
	m.mu.Unlock()

	for _, a := range resolved {
		m.emit(ctx, event.AlertResolved{Alert: a})
	}
	if len(resolved) > 0 {
		m.logger.Info("alerts resolved for shipment",
			slog.String("shipment_id", shipmentID),
			slog.Int("count", len(resolved)),
		)
	}
	return len(resolved)
}

// ExpireSweep moves every expired open alert to history as resolved with
// reason "expired". It returns how many moved.
func (m *Manager) ExpireSweep(ctx context.Context) int {
	now := m.clock.Now()

	m.mu.Lock()
	var moved []*model.Alert
	for _, a := range m.sortedOpenLocked() {
		if expired(a, now) {
			moved = append(moved, m.closeLocked(a, model.AlertResolved, "expired", now))
		}
	}
	m.mu.Unlock()

	for _, a := range moved {
		m.emit(ctx, event.AlertResolved{Alert: a})
	}
	m.metrics.RecordSweep(ctx, "alerts", len(moved))
	observability.LogSweep(m.logger, "alerts", len(moved))
	return len(moved)
}

// sortedOpenLocked orders open alerts by creation time for deterministic
// sweeps.
func (m *Manager) sortedOpenLocked() []*model.Alert {
	out := make([]*model.Alert, 0, len(m.open))
	for _, a := range m.open {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *model.Alert) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Active returns copies of the live open alerts matching f, most severe
// first, then most recently updated.
func (m *Manager) Active(f Filter) []*model.Alert {
	now := m.clock.Now()

	m.mu.Lock()
	out := make([]*model.Alert, 0, len(m.open))
	for _, a := range m.open {
		if !expired(a, now) && f.matches(a) {
			out = append(out, a.Clone())
		}
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b *model.Alert) int {
		if c := cmp.Compare(severityRank[b.Severity], severityRank[a.Severity]); c != 0 {
			return c
		}
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// History returns copies of closed alerts, oldest first. limit <= 0 returns
// all of them; otherwise the most recent limit.
func (m *Manager) History(limit int) []*model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.history
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]*model.Alert, len(src))
	for i, a := range src {
		out[i] = a.Clone()
	}
	return out
}

// Stats summarizes the manager.
func (m *Manager) Stats() Stats {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{BySeverity: make(map[model.Severity]int), Closed: m.closedTotal}
	for _, a := range m.open {
		if expired(a, now) {
			continue
		}
		s.Open++
		s.BySeverity[a.Severity]++
	}
	return s
}

func (m *Manager) emit(ctx context.Context, p event.Payload) {
	if _, err := m.emitter.Emit(ctx, p, event.WithSource("alert")); err != nil {
		m.logger.Warn("alert event dropped", slog.String("kind", string(p.Kind())), slog.Any("error", err))
	}
}
