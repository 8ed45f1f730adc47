package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func shipment(id string) *model.UnifiedShipment {
	return &model.UnifiedShipment{ID: id, TrackingNumber: "TN-" + id}
}

func TestBus_DeliversToKindThenWildcard(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	var order []string
	bus.OnAll(func(_ context.Context, _ Event) error {
		order = append(order, "wildcard")
		return nil
	})
	bus.On(KindShipmentCreated, func(_ context.Context, _ Event) error {
		order = append(order, "first")
		return nil
	})
	bus.On(KindShipmentCreated, func(_ context.Context, _ Event) error {
		order = append(order, "second")
		return nil
	})
	bus.On(KindAlertCreated, func(_ context.Context, _ Event) error {
		order = append(order, "other-kind")
		return nil
	})

	evt, err := bus.Emit(ctx, ShipmentCreated{Shipment: shipment("s1")}, WithSource("test"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "wildcard"}, order)
	assert.Equal(t, KindShipmentCreated, evt.Kind)
	assert.Equal(t, "test", evt.Source)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, evt.ID, evt.CorrelationID)
}

func TestBus_ListenerFaultDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	calls := map[string]int{}
	bus.On(KindShipmentDelayed, func(_ context.Context, _ Event) error {
		calls["panics"]++
		panic("boom")
	})
	bus.On(KindShipmentDelayed, func(_ context.Context, _ Event) error {
		calls["errors"]++
		return errors.New("handler failed")
	})
	bus.On(KindShipmentDelayed, func(_ context.Context, _ Event) error {
		calls["ok"]++
		return nil
	})
	bus.OnAll(func(_ context.Context, _ Event) error {
		calls["wildcard"]++
		return nil
	})

	for i := 0; i < 2; i++ {
		_, err := bus.Emit(ctx, ShipmentDelayed{Shipment: shipment("s1")})
		require.NoError(t, err)
	}

	assert.Equal(t, map[string]int{"panics": 2, "errors": 2, "ok": 2, "wildcard": 2}, calls)

	stats := bus.Stats()
	assert.Equal(t, int64(2), stats.Emitted)
	assert.Equal(t, int64(4), stats.Faults)
	assert.Equal(t, int64(4), stats.Delivered)
}

func TestBus_ReentrantEmitIsQueued(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	var trace []string
	bus.On(KindShipmentCreated, func(ctx context.Context, evt Event) error {
		trace = append(trace, "created:start")
		_, err := bus.Emit(ctx, ShipmentDelayed{Shipment: shipment("s1")}, WithCausation(evt))
		trace = append(trace, "created:end")
		return err
	})
	bus.On(KindShipmentCreated, func(_ context.Context, _ Event) error {
		trace = append(trace, "created:second")
		return nil
	})
	var delayed Event
	bus.On(KindShipmentDelayed, func(_ context.Context, evt Event) error {
		trace = append(trace, "delayed")
		delayed = evt
		return nil
	})

	created, err := bus.Emit(ctx, ShipmentCreated{Shipment: shipment("s1")})
	require.NoError(t, err)

	// the nested event is delivered only after every listener of the first
	assert.Equal(t, []string{"created:start", "created:end", "created:second", "delayed"}, trace)
	assert.Equal(t, created.ID, delayed.CausationID)
	assert.Equal(t, created.CorrelationID, delayed.CorrelationID)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	count := 0
	unsubscribe := bus.On(KindAlertCreated, func(_ context.Context, _ Event) error {
		count++
		return nil
	})
	assert.Equal(t, 1, bus.ListenerCount(KindAlertCreated))

	_, _ = bus.Emit(ctx, AlertCreated{Alert: &model.Alert{ID: "a1"}})
	unsubscribe()
	unsubscribe()
	_, _ = bus.Emit(ctx, AlertCreated{Alert: &model.Alert{ID: "a2"}})

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.ListenerCount(KindAlertCreated))
}

func TestBus_Once(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	count := 0
	bus.Once(KindContextChanged, func(_ context.Context, _ Event) error {
		count++
		return nil
	})

	for i := 0; i < 3; i++ {
		_, err := bus.Emit(ctx, ContextChanged{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.ListenerCount(KindContextChanged))
}

func TestBus_OnceWildcardIsDetached(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	var got []Kind
	bus.Once("", func(_ context.Context, evt Event) error {
		got = append(got, evt.Kind)
		return nil
	})
	kindCount := 0
	bus.On(KindShipmentCreated, func(_ context.Context, _ Event) error {
		kindCount++
		return nil
	})
	require.Equal(t, 1, bus.ListenerCount(""))

	_, err := bus.Emit(ctx, ShipmentCreated{Shipment: shipment("s1")})
	require.NoError(t, err)
	_, err = bus.Emit(ctx, ContextChanged{})
	require.NoError(t, err)
	_, err = bus.Emit(ctx, ShipmentCreated{Shipment: shipment("s2")})
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindShipmentCreated}, got)
	assert.Equal(t, 0, bus.ListenerCount(""))
	assert.Equal(t, 1, bus.ListenerCount(KindShipmentCreated))
	assert.Equal(t, 2, kindCount)
	assert.Equal(t, 1, bus.Stats().Listeners)
}

func TestBus_HistoryIsBounded(t *testing.T) {
	bus := NewBus(BusConfig{HistorySize: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := bus.Emit(ctx, ModuleRegistered{Name: string(rune('a' + i))})
		require.NoError(t, err)
	}

	history := bus.History(HistoryFilter{})
	require.Len(t, history, 3)
	names := make([]string, 0, 3)
	for _, evt := range history {
		names = append(names, evt.Payload.(ModuleRegistered).Name)
	}
	assert.Equal(t, []string{"c", "d", "e"}, names)
}

func TestBus_HistoryFilter(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	bus := NewBus(DefaultBusConfig, WithClock(fake))
	ctx := context.Background()

	_, _ = bus.Emit(ctx, ShipmentCreated{Shipment: shipment("s1")}, WithSource("brain"))
	fake.Advance(time.Minute)
	_, _ = bus.Emit(ctx, ShipmentCreated{Shipment: shipment("s2")}, WithSource("brain"))
	_, _ = bus.Emit(ctx, AlertCreated{Alert: &model.Alert{ID: "a1", ShipmentID: "s2"}}, WithSource("alerts"))
	_, _ = bus.Emit(ctx, ShipmentDelayed{Shipment: shipment("s2")}, WithSource("brain"))

	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"all", HistoryFilter{}, 4},
		{"by kind", HistoryFilter{Kinds: []Kind{KindShipmentCreated}}, 2},
		{"by source", HistoryFilter{Source: "alerts"}, 1},
		{"by shipment", HistoryFilter{ShipmentID: "s2"}, 3},
		{"since", HistoryFilter{Since: fake.Now()}, 3},
		{"limit", HistoryFilter{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, bus.History(tt.filter), tt.want)
		})
	}

	last := bus.History(HistoryFilter{Limit: 1})
	require.Len(t, last, 1)
	assert.Equal(t, KindShipmentDelayed, last[0].Kind)
}

func TestBus_QueueFull(t *testing.T) {
	bus := NewBus(BusConfig{QueueSize: 1})
	ctx := context.Background()

	var nestedErr error
	bus.On(KindShipmentCreated, func(ctx context.Context, _ Event) error {
		// the first nested event fills the queue
		_, err := bus.Emit(ctx, ShipmentUpdated{Shipment: shipment("s1")})
		if err != nil {
			return err
		}
		_, nestedErr = bus.Emit(ctx, ShipmentUpdated{Shipment: shipment("s1")})
		return nil
	})

	_, err := bus.Emit(ctx, ShipmentCreated{Shipment: shipment("s1")})
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrQueueFull)
	assert.Equal(t, int64(1), bus.Stats().Dropped)
}

func TestBus_EmitErrors(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	_, err := bus.Emit(ctx, nil)
	assert.ErrorIs(t, err, ErrNilPayload)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, err = bus.Emit(ctx, ContextChanged{})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestBus_EmitBatch(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	var kinds []Kind
	bus.OnAll(func(_ context.Context, evt Event) error {
		kinds = append(kinds, evt.Kind)
		return nil
	})

	events, err := bus.EmitBatch(ctx, []Payload{
		ShipmentCreated{Shipment: shipment("s1")},
		ShipmentIssue{Shipment: shipment("s1"), Reason: "address"},
	})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, []Kind{KindShipmentCreated, KindShipmentIssue}, kinds)
}

func TestBus_MetadataIsCopied(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	md := map[string]any{"origin": "import"}

	evt, err := bus.Emit(context.Background(), ContextChanged{}, WithMetadata(md))
	require.NoError(t, err)
	md["origin"] = "changed"
	evt.Metadata["origin"] = "mutated"

	history := bus.History(HistoryFilter{})
	require.Len(t, history, 1)
	assert.Equal(t, "import", history[0].Metadata["origin"])
}

func TestBus_WaitFor(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for bus.ListenerCount(KindJourneyBuilt) == 0 {
			time.Sleep(time.Millisecond)
		}
		_, _ = bus.Emit(ctx, JourneyBuilt{Journey: &model.Journey{ShipmentID: "s9"}})
	}()

	evt, err := bus.WaitFor(ctx, KindJourneyBuilt, 5*time.Second)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, "s9", evt.Payload.(JourneyBuilt).Journey.ShipmentID)
	assert.Equal(t, 0, bus.ListenerCount(KindJourneyBuilt))
}

func TestBus_WaitForTimeout(t *testing.T) {
	bus := NewBus(DefaultBusConfig)

	_, err := bus.WaitFor(context.Background(), KindLearningUpdated, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, bus.ListenerCount(KindLearningUpdated))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bus.WaitFor(ctx, KindLearningUpdated, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus(DefaultBusConfig)
	ctx := context.Background()

	var mu sync.Mutex
	seen := 0
	bus.OnAll(func(_ context.Context, _ Event) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = bus.Emit(ctx, ContextChanged{})
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 400, seen)
	assert.Equal(t, int64(400), bus.Stats().Emitted)
}
