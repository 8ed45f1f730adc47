package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/observability"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/storage"
)

// Snapshot location in the storage.Store.
const (
	SnapshotNamespace = "memory"
	SnapshotKey       = "entries"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source for expiry.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithStore sets the snapshot backend used by Persist and Restore.
func WithStore(s storage.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithTTLs overrides tier lifetimes. Tiers not in ttls keep their default.
func WithTTLs(ttls map[Tier]time.Duration) Option {
	return func(m *Manager) {
		for t, d := range ttls {
			if d > 0 {
				m.ttls[t] = d
			}
		}
	}
}

// Manager is the tiered memory store.
//
// Thread-safety: all methods are safe for concurrent use.
type Manager struct {
	clock  clock.Clock
	logger *slog.Logger
	store  storage.Store
	ttls   map[Tier]time.Duration

	mu      sync.Mutex
	entries map[string]*Entry
	entropy *rand.Rand
}

// New creates an empty memory store.
func New(opts ...Option) *Manager {
	m := &Manager{
		ttls:    maps.Clone(DefaultTTLs),
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.clock = clock.OrSystem(m.clock)
	m.logger = observability.ComponentLogger(m.logger, "memory")
	m.entropy = rand.New(rand.NewSource(m.clock.Now().UnixNano()))
	return m
}

func (m *Manager) newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), m.entropy).String()
}

// Remember stores data under category and returns the new entry.
func (m *Manager) Remember(category string, data any, opts Options) Entry {
	return m.remember(category, data, opts, false)
}

// RememberForever stores data with no expiry regardless of tier.
func (m *Manager) RememberForever(category string, data any, opts Options) Entry {
	return m.remember(category, data, opts, true)
}

func (m *Manager) remember(category string, data any, opts Options, forever bool) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	tier := opts.Tier
	if !tier.Valid() {
		tier = TierMedium
	}
	importance := defaultImportance
	if opts.Importance != 0 {
		importance = clampImportance(opts.Importance)
	}
	id := opts.ID
	if id == "" {
		id = m.newID(now)
	}

	e := &Entry{
		ID:           id,
		Tier:         tier,
		Category:     category,
		Data:         data,
		CreatedAt:    now,
		LastAccessed: now,
		Importance:   importance,
	}
	if !forever {
		ttl := opts.TTL
		if ttl <= 0 {
			ttl = m.ttls[tier]
		}
		exp := now.Add(ttl)
		e.ExpiresAt = &exp
	}

	m.entries[id] = e
	return e.clone()
}

// lookup returns a live entry. Called with m.mu held.
func (m *Manager) lookup(id string, now time.Time) (*Entry, bool) {
	e, ok := m.entries[id]
	if !ok || e.expired(now) {
		return nil, false
	}
	return e, true
}

// Recall returns the entry and counts the access.
// Returns ErrNotFound if the entry doesn't exist or has expired.
func (m *Manager) Recall(id string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	e, ok := m.lookup(id, now)
	if !ok {
		return Entry{}, fmt.Errorf("recall %s: %w", id, ErrNotFound)
	}
	e.AccessCount++
	e.LastAccessed = now
	return e.clone(), nil
}

// Search returns live entries matching q, best score first. Ties go to the
// most recently created entry.
func (m *Manager) Search(q Query) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var hits []*Entry
	for _, e := range m.entries {
		if e.expired(now) {
			continue
		}
		if q.Tier != "" && e.Tier != q.Tier {
			continue
		}
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		if e.Importance < q.MinImportance {
			continue
		}
		hits = append(hits, e)
	}

	slices.SortFunc(hits, func(a, b *Entry) int {
		if c := cmp.Compare(b.Score(), a.Score()); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}

	out := make([]Entry, len(hits))
	for i, e := range hits {
		out[i] = e.clone()
	}
	return out
}

// Forget removes an entry. Returns false if it did not exist.
func (m *Manager) Forget(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return false
	}
	delete(m.entries, id)
	return true
}

// ForgetCategory removes every entry in category and returns how many.
func (m *Manager) ForgetCategory(category string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.entries {
		if e.Category == category {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// Consolidate promotes a short-term entry to long-term, clears its expiry
// and raises its importance by 20 (capped at 100).
func (m *Manager) Consolidate(id string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(id, m.clock.Now())
	if !ok {
		return Entry{}, fmt.Errorf("consolidate %s: %w", id, ErrNotFound)
	}
	if e.Tier == TierShort {
		e.Tier = TierLong
	}
	e.ExpiresAt = nil
	e.Importance = clampImportance(e.Importance + consolidateBoost)
	return e.clone(), nil
}

// Cleanup removes expired entries and returns how many.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	n := 0
	for id, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, id)
			n++
		}
	}
	observability.LogSweep(m.logger, "memory", n)
	return n
}

// Len returns the number of stored entries, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats summarizes live entries and counts expired ones awaiting Cleanup.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	st := Stats{
		ByTier:     make(map[Tier]int),
		ByCategory: make(map[string]int),
	}
	for _, e := range m.entries {
		if e.expired(now) {
			st.Expired++
			continue
		}
		st.Total++
		st.ByTier[e.Tier]++
		st.ByCategory[e.Category]++
	}
	return st
}

// snapshot is the serialized form of the store.
type snapshot struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Entries    []Entry   `json:"entries"`
}

// Export serializes every live entry as JSON. Timestamps use RFC 3339.
func (m *Manager) Export() ([]byte, error) {
	m.mu.Lock()
	now := m.clock.Now()
	snap := snapshot{Version: 1, ExportedAt: now, Entries: make([]Entry, 0, len(m.entries))}
	for _, e := range m.entries {
		if !e.expired(now) {
			snap.Entries = append(snap.Entries, e.clone())
		}
	}
	m.mu.Unlock()

	slices.SortFunc(snap.Entries, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })
	return json.Marshal(snap)
}

// Import loads entries from an Export snapshot, replacing entries with the
// same ID. Entries already expired are skipped. Returns how many were loaded.
func (m *Manager) Import(data []byte) (int, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("decode memory snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	n := 0
	for i := range snap.Entries {
		e := snap.Entries[i]
		if e.ID == "" || e.expired(now) {
			continue
		}
		if !e.Tier.Valid() {
			e.Tier = TierMedium
		}
		e.Importance = clampImportance(e.Importance)
		m.entries[e.ID] = &e
		n++
	}
	return n, nil
}

// Persist writes a snapshot to the configured store.
func (m *Manager) Persist(ctx context.Context) error {
	if m.store == nil {
		return ErrNoStore
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := m.Export()
	if err != nil {
		return err
	}
	if err := m.store.Put(SnapshotNamespace, SnapshotKey, data); err != nil {
		observability.LogSnapshotError(m.logger, SnapshotNamespace, "save", err)
		return fmt.Errorf("persist memory: %w", err)
	}
	observability.LogSnapshot(m.logger, SnapshotNamespace, len(data))
	return nil
}

// Restore loads the snapshot from the configured store. A missing snapshot
// loads nothing and is not an error.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, ErrNoStore
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := m.store.Get(SnapshotNamespace, SnapshotKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		observability.LogSnapshotError(m.logger, SnapshotNamespace, "load", err)
		return 0, fmt.Errorf("restore memory: %w", err)
	}
	return m.Import(data)
}
