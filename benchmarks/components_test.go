package benchmarks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/memory"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/rules"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/storage"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/unify"
)

// BenchmarkMatchAll_1000 matches 1000 tracking records against 1000 orders.
func BenchmarkMatchAll_1000(b *testing.B) {
	trackings := buildTrackings(1000)
	orders := buildOrders(1000)
	m := unify.Matcher{}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.MatchAll(trackings, orders)
	}
}

// BenchmarkMatch_Fuzzy matches one record that only a fuzzy match can pair.
func BenchmarkMatch_Fuzzy(b *testing.B) {
	orders := buildOrders(1000)
	for i := range orders {
		orders[i].TrackingNumber = ""
	}
	tr := buildTrackings(1000)[999]
	m := unify.Matcher{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Match(tr, orders)
	}
}

// BenchmarkRulesEvaluate evaluates the default rule set for a delay event.
func BenchmarkRulesEvaluate(b *testing.B) {
	m := rules.NewManager()
	if err := rules.LoadDefaults(m); err != nil {
		b.Fatal(err)
	}
	vars := map[string]any{
		"trackingNumber": "BN00000001",
		"status":         "in_transit",
		"carrier":        "Servientrega",
		"city":           "Cali",
		"daysInTransit":  8,
		"isDelayed":      true,
		"hasIssue":       false,
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Evaluate(event.KindShipmentDelayed, vars)
	}
}

func fillMemory(m *memory.Manager, n int) {
	for i, tr := range buildTrackings(n) {
		m.Remember("shipment", tr, memory.Options{ID: tr.TrackingNumber, Tier: memory.TierLong, Importance: i % 100})
	}
}

func benchmarkPersist(b *testing.B, store storage.Store) {
	m := memory.New(memory.WithStore(store))
	fillMemory(m, 1000)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.Persist(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPersist_Memory snapshots 1000 entries to the in-memory store.
func BenchmarkPersist_Memory(b *testing.B) {
	benchmarkPersist(b, storage.NewMemoryStore())
}

// BenchmarkPersist_SQLite snapshots 1000 entries to SQLite.
func BenchmarkPersist_SQLite(b *testing.B) {
	store, err := storage.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	benchmarkPersist(b, store)
}

// BenchmarkRestore_SQLite loads a 1000 entry snapshot from SQLite.
func BenchmarkRestore_SQLite(b *testing.B) {
	store, err := storage.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()
	src := memory.New(memory.WithStore(store))
	fillMemory(src, 1000)
	ctx := context.Background()
	if err := src.Persist(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dst := memory.New(memory.WithStore(store))
		if _, err := dst.Restore(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBusEmit emits one event through a bus with a single listener.
func BenchmarkBusEmit(b *testing.B) {
	bus := event.NewBus(event.BusConfig{HistorySize: 100, QueueSize: 1000})
	defer bus.Close()
	bus.OnAll(func(context.Context, event.Event) error { return nil })
	ctx := context.Background()
	payload := event.ContextChanged{}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = bus.Emit(ctx, payload)
	}
}
