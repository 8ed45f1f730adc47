package decision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/action"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/rules"
)

var t0 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []action.Target
	actions []model.Action
	fail    bool
}

func (f *fakeExecutor) Execute(_ context.Context, act model.Action, target action.Target) model.ActionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, target)
	f.actions = append(f.actions, act)
	if f.fail {
		return model.ActionResult{ActionType: act.Type, Error: "carrier api down"}
	}
	return model.ActionResult{ActionType: act.Type, Success: true}
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu     sync.Mutex
	events []event.Payload
}

func (r *recorder) Emit(_ context.Context, p event.Payload, _ ...event.EmitOption) (event.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	return event.Event{Kind: p.Kind(), Payload: p}, nil
}

func delayedEvent(id string, days int, status model.Status) event.Event {
	s := &model.UnifiedShipment{
		ID:            id,
		Status:        model.Sourced(status, model.SourceTracking, t0, 90),
		DaysInTransit: days,
		IsDelayed:     true,
	}
	return event.Event{ID: "evt-" + id, Kind: event.KindShipmentDelayed, Payload: event.ShipmentDelayed{Shipment: s}}
}

func newTestEngine(t *testing.T, rs ...rules.Rule) (*Engine, *rules.Manager, *fakeExecutor, *clock.Fake, *recorder) {
	t.Helper()
	fc := clock.NewFake(t0)
	rm := rules.NewManager(rules.WithClock(fc))
	for _, r := range rs {
		require.NoError(t, rm.Add(r))
	}
	exec := &fakeExecutor{}
	rec := &recorder{}
	e := NewEngine(rm, exec, WithClock(fc), WithEmitter(rec))
	return e, rm, exec, fc, rec
}

func manualRule() rules.Rule {
	return rules.Rule{
		ID:           "notify_delay",
		TriggerEvent: event.KindShipmentDelayed,
		When:         "daysInTransit > 5",
		Action:       model.Action{Type: "send_notification", Params: map[string]any{"message": "late"}},
		Priority:     10,
		Confidence:   70,
		Enabled:      true,
	}
}

func autoRule() rules.Rule {
	return rules.Rule{
		ID:           "alert_delay",
		TriggerEvent: event.KindShipmentDelayed,
		When:         "daysInTransit > 5",
		Action:       model.Action{Type: "create_alert"},
		Priority:     100,
		Enabled:      true,
		AutoExecute:  true,
	}
}

func TestEvaluate_EveryMatchingRuleDecides(t *testing.T) {
	e, rm, exec, _, rec := newTestEngine(t, manualRule(), autoRule())

	got := e.Evaluate(context.Background(), delayedEvent("s1", 7, model.StatusInTransit))
	require.Len(t, got, 2)

	// Priority order: the auto rule first, already executed.
	assert.Equal(t, "alert_delay", got[0].RuleID)
	assert.Equal(t, model.DecisionSuccess, got[0].Result)
	require.NotNil(t, got[0].ResolvedAt)
	assert.Equal(t, "notify_delay", got[1].RuleID)
	assert.Equal(t, model.DecisionPending, got[1].Result)
	assert.Equal(t, "s1", got[1].ShipmentID)
	assert.Equal(t, "evt-s1", got[1].EventID)
	assert.Equal(t, t0.Add(DefaultPendingTTL), got[1].ExpiresAt)
	assert.InDelta(t, 70, got[1].Confidence, 0.001)
	assert.Equal(t, float64(rules.DefaultConfidence), got[0].Confidence)

	assert.Equal(t, 1, exec.count())
	assert.Equal(t, got[0].ID, exec.calls[0].DecisionID)
	assert.Equal(t, 7, exec.calls[0].Vars["daysInTransit"])

	pending := e.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, got[1].ID, pending[0].ID)
	assert.Len(t, e.History(0), 2)

	r, err := rm.Get("alert_delay")
	require.NoError(t, err)
	assert.Equal(t, 1, r.ExecutionCount)

	require.Len(t, rec.events, 2)
	made, ok := rec.events[0].(event.DecisionMade)
	require.True(t, ok)
	assert.True(t, made.AutoExecute)
}

func TestEvaluate_NoMatch(t *testing.T) {
	e, _, exec, _, _ := newTestEngine(t, manualRule(), autoRule())

	got := e.Evaluate(context.Background(), delayedEvent("s1", 3, model.StatusInTransit))
	assert.Empty(t, got)
	assert.Zero(t, exec.count())
	assert.Empty(t, e.History(0))
}

func TestEvaluate_FailedAutoExecution(t *testing.T) {
	e, _, exec, _, _ := newTestEngine(t, autoRule())
	exec.fail = true

	got := e.Evaluate(context.Background(), delayedEvent("s1", 9, model.StatusInTransit))
	require.Len(t, got, 1)
	assert.Equal(t, model.DecisionFailure, got[0].Result)
	assert.Equal(t, "carrier api down", got[0].Error)
	assert.Empty(t, e.Pending())
}

func TestApprove(t *testing.T) {
	e, _, exec, _, _ := newTestEngine(t, manualRule())
	ctx := context.Background()

	d := e.Evaluate(ctx, delayedEvent("s1", 7, model.StatusInTransit))[0]
	assert.Zero(t, exec.count())

	approved, err := e.Approve(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionSuccess, approved.Result)
	assert.Equal(t, 1, exec.count())
	assert.Equal(t, "late", exec.actions[0].Params["message"])
	assert.Empty(t, e.Pending())

	_, err = e.Approve(ctx, d.ID)
	assert.ErrorIs(t, err, ErrResolved)

	_, err = e.Approve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReject(t *testing.T) {
	e, _, exec, _, _ := newTestEngine(t, manualRule())
	ctx := context.Background()

	d := e.Evaluate(ctx, delayedEvent("s1", 7, model.StatusInTransit))[0]
	rejected, err := e.Reject(d.ID, "customer called")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionRejected, rejected.Result)
	assert.Equal(t, "customer called", rejected.Error)
	assert.Zero(t, exec.count())

	stored, err := e.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionRejected, stored.Result)
}

func TestExpiry(t *testing.T) {
	e, _, exec, fc, _ := newTestEngine(t, manualRule())
	ctx := context.Background()

	d := e.Evaluate(ctx, delayedEvent("s1", 7, model.StatusInTransit))[0]
	fc.Advance(DefaultPendingTTL)

	assert.Empty(t, e.Pending(), "expired decisions are hidden before the sweep")
	_, err := e.Approve(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, e.ExpireSweep(ctx))
	assert.Zero(t, e.ExpireSweep(ctx))
	assert.Zero(t, exec.count())

	stored, err := e.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionExpired, stored.Result)
	assert.Equal(t, 1, e.Stats().ByResult[model.DecisionExpired])
}

func TestHandle_SkipsOwnEvents(t *testing.T) {
	r := rules.Rule{
		ID:           "log_everything",
		TriggerEvent: event.KindActionExecuted,
		Action:       model.Action{Type: "log"},
		Enabled:      true,
		AutoExecute:  true,
	}
	e, _, exec, _, _ := newTestEngine(t, r)

	evt := event.Event{
		Kind:    event.KindActionExecuted,
		Source:  SourceAction,
		Payload: event.ActionExecuted{Result: model.ActionResult{ActionType: "log", Success: true}},
	}
	require.NoError(t, e.Handle(context.Background(), evt))
	assert.Zero(t, exec.count())

	evt.Source = "operator"
	require.NoError(t, e.Handle(context.Background(), evt))
	assert.Equal(t, 1, exec.count())
}

func TestHistoryBounded(t *testing.T) {
	fc := clock.NewFake(t0)
	rm := rules.NewManager(rules.WithClock(fc))
	require.NoError(t, rm.Add(manualRule()))
	e := NewEngine(rm, &fakeExecutor{}, WithClock(fc), WithHistorySize(3))

	for i := range 5 {
		e.Evaluate(context.Background(), delayedEvent(string(rune('a'+i)), 8, model.StatusInTransit))
	}
	assert.Len(t, e.History(0), 3)
	assert.Len(t, e.History(2), 2)
	assert.Len(t, e.Pending(), 5, "pending decisions outlive history trimming")
}

func TestHistoryEntriesAreNotRewritten(t *testing.T) {
	tests := []struct {
		name   string
		settle func(e *Engine, id string) error
		want   model.DecisionResult
	}{
		{
			name: "approve",
			settle: func(e *Engine, id string) error {
				_, err := e.Approve(context.Background(), id)
				return err
			},
			want: model.DecisionSuccess,
		},
		{
			name: "reject",
			settle: func(e *Engine, id string) error {
				_, err := e.Reject(id, "not needed")
				return err
			},
			want: model.DecisionRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _, _, _ := newTestEngine(t, manualRule())
			ds := e.Evaluate(context.Background(), delayedEvent("s1", 8, model.StatusInTransit))
			require.Len(t, ds, 1)

			e.mu.Lock()
			recorded := e.history[0]
			e.mu.Unlock()

			require.NoError(t, tt.settle(e, ds[0].ID))

			assert.Equal(t, model.DecisionPending, recorded.Result)
			assert.Nil(t, recorded.ResolvedAt)

			hist := e.History(0)
			require.Len(t, hist, 1)
			assert.Equal(t, tt.want, hist[0].Result)
			assert.NotNil(t, hist[0].ResolvedAt)

			got, err := e.Get(ds[0].ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Result)
			assert.Equal(t, 1, e.Stats().ByResult[tt.want])
		})
	}
}
