package operator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/alert"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/rules"
)

var t0 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, *Command) (any, error) { return nil, nil }

	require.NoError(t, r.Register("b", noop))
	require.NoError(t, r.Register("a", noop))
	assert.Error(t, r.Register("a", noop))
	assert.Error(t, r.Register("", noop))
	assert.Error(t, r.Register("c", nil))

	assert.Equal(t, []string{"a", "b"}, r.List())
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestDispatch(t *testing.T) {
	fc := clock.NewFake(t0)
	r := NewRegistry()
	require.NoError(t, r.Register("echo", func(_ context.Context, c *Command) (any, error) {
		return c.String("msg"), nil
	}))
	require.NoError(t, r.Register("fail", func(context.Context, *Command) (any, error) {
		return nil, errors.New("boom")
	}))
	require.NoError(t, r.Register("panic", func(context.Context, *Command) (any, error) {
		panic("kaboom")
	}))
	d := NewDispatcher(r, WithClock(fc))

	tests := []struct {
		name    string
		cmd     *Command
		status  Status
		wantErr error
		errText string
	}{
		{name: "processed", cmd: NewCommand("echo", "x", map[string]any{"msg": "hi"}), status: StatusProcessed},
		{name: "handler error", cmd: NewCommand("fail", "x", nil), status: StatusFailed, errText: "boom"},
		{name: "panic", cmd: NewCommand("panic", "x", nil), status: StatusFailed, errText: "kaboom"},
		{name: "unknown", cmd: NewCommand("nope", "", nil), status: StatusFailed, wantErr: ErrNoHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Dispatch(context.Background(), tt.cmd.WithSender("ops"))
			assert.Equal(t, tt.status, got.Status)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, "ops", got.SenderID)
			assert.Equal(t, t0, got.SentAt)
			require.NotNil(t, got.ProcessedAt)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, got.Error, tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, "hi", got.Result)
			}
			// The caller's command is left untouched.
			assert.Empty(t, tt.cmd.ID)

			stored, err := d.Get(got.ID)
			require.NoError(t, err)
			assert.Equal(t, got.Status, stored.Status)
		})
	}

	assert.Len(t, d.History(0), 4)
	assert.Len(t, d.History(2), 2)
	assert.Len(t, d.ForTarget("x"), 3)
	_, err := d.Get("cmd-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDispatch_HistoryBounded(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("noop", func(context.Context, *Command) (any, error) { return nil, nil }))
	d := NewDispatcher(r, WithHistorySize(2))

	var first *Command
	for i := 0; i < 3; i++ {
		c, err := d.Dispatch(context.Background(), NewCommand("noop", "", nil))
		require.NoError(t, err)
		if first == nil {
			first = c
		}
	}
	assert.Len(t, d.History(0), 2)
	_, err := d.Get(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeDecisions struct {
	approved []string
	rejected map[string]string
}

func (f *fakeDecisions) Approve(_ context.Context, id string) (*model.Decision, error) {
	f.approved = append(f.approved, id)
	return &model.Decision{ID: id, Result: model.DecisionSuccess}, nil
}

func (f *fakeDecisions) Reject(id, reason string) (*model.Decision, error) {
	if f.rejected == nil {
		f.rejected = map[string]string{}
	}
	f.rejected[id] = reason
	return &model.Decision{ID: id, Result: model.DecisionRejected, Error: reason}, nil
}

func newBuiltinDispatcher(t *testing.T) (*Dispatcher, *alert.Manager, *rules.Manager, *fakeDecisions) {
	t.Helper()
	fc := clock.NewFake(t0)
	am := alert.NewManager(alert.WithClock(fc))
	rm := rules.NewManager(rules.WithClock(fc))
	dec := &fakeDecisions{}

	r := NewRegistry()
	require.NoError(t, Builtins{Alerts: am, Decisions: dec, Rules: rm}.Register(r))
	return NewDispatcher(r, WithClock(fc)), am, rm, dec
}

func TestBuiltins_Registered(t *testing.T) {
	d, _, _, _ := newBuiltinDispatcher(t)
	assert.Equal(t, []string{
		CmdAlertAcknowledge, CmdAlertDismiss, CmdAlertResolve,
		CmdDecisionApprove, CmdDecisionReject,
		CmdRuleAdd, CmdRuleDelete, CmdRuleDisable, CmdRuleEnable, CmdRuleUpdate,
		CmdRulesDisableAll, CmdRulesEnableAll,
	}, d.registry.List())

	r := NewRegistry()
	require.NoError(t, Builtins{}.Register(r))
	assert.Empty(t, r.List())
}

func TestBuiltins_Alerts(t *testing.T) {
	d, am, _, _ := newBuiltinDispatcher(t)
	ctx := context.Background()
	a, created := am.Create(ctx, alert.Request{Severity: model.SeverityWarning, Category: "delay", Title: "late", ShipmentID: "s1"})
	require.True(t, created)

	got, err := d.Dispatch(ctx, NewCommand(CmdAlertAcknowledge, a.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, got.Status)

	_, err = d.Dispatch(ctx, NewCommand(CmdAlertResolve, a.ID, map[string]any{KeyReason: "carrier confirmed"}))
	require.NoError(t, err)
	closed, err := am.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AlertResolved, closed.Status)

	_, err = d.Dispatch(ctx, NewCommand(CmdAlertDismiss, a.ID, nil))
	assert.ErrorIs(t, err, alert.ErrClosed)

	_, err = d.Dispatch(ctx, NewCommand(CmdAlertAcknowledge, "", nil))
	assert.ErrorIs(t, err, ErrTargetRequired)
}

func TestBuiltins_Decisions(t *testing.T) {
	d, _, _, dec := newBuiltinDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, NewCommand(CmdDecisionApprove, "d1", nil))
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, NewCommand(CmdDecisionReject, "d2", map[string]any{KeyReason: "customer called"}))
	require.NoError(t, err)
	_, err = d.Dispatch(ctx, NewCommand(CmdDecisionReject, "d3", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"d1"}, dec.approved)
	assert.Equal(t, "customer called", dec.rejected["d2"])
	assert.Equal(t, "rejected by operator", dec.rejected["d3"])
}

func TestBuiltins_Rules(t *testing.T) {
	d, _, rm, _ := newBuiltinDispatcher(t)
	ctx := context.Background()

	payload := map[string]any{KeyRule: map[string]any{
		"id":       "stalled_notify",
		"name":     "Notify stalled",
		"trigger":  "shipment.delayed",
		"when":     "daysInTransit > 8",
		"action":   map[string]any{"type": "send_notification"},
		"priority": 20,
	}}
	got, err := d.Dispatch(ctx, NewCommand(CmdRuleAdd, "", payload))
	require.NoError(t, err)
	added, ok := got.Result.(rules.Rule)
	require.True(t, ok)
	assert.True(t, added.Enabled)
	assert.Equal(t, 20, added.Priority)

	_, err = d.Dispatch(ctx, NewCommand(CmdRuleDisable, "stalled_notify", nil))
	require.NoError(t, err)
	r, err := rm.Get("stalled_notify")
	require.NoError(t, err)
	assert.False(t, r.Enabled)

	_, err = d.Dispatch(ctx, NewCommand(CmdRuleEnable, "stalled_notify", nil))
	require.NoError(t, err)

	update := rules.Rule{
		Name:         "Notify stalled",
		TriggerEvent: "shipment.delayed",
		When:         "daysInTransit > 10",
		Action:       model.Action{Type: "send_notification"},
		Enabled:      true,
	}
	_, err = d.Dispatch(ctx, NewCommand(CmdRuleUpdate, "stalled_notify", map[string]any{KeyRule: update}))
	require.NoError(t, err)
	r, err = rm.Get("stalled_notify")
	require.NoError(t, err)
	assert.Equal(t, "daysInTransit > 10", r.When)

	_, err = d.Dispatch(ctx, NewCommand(CmdRuleAdd, "", nil))
	assert.ErrorIs(t, err, rules.ErrInvalid)

	_, err = d.Dispatch(ctx, NewCommand(CmdRulesDisableAll, "", nil))
	require.NoError(t, err)
	assert.False(t, rm.Enabled())
	_, err = d.Dispatch(ctx, NewCommand(CmdRulesEnableAll, "", nil))
	require.NoError(t, err)
	assert.True(t, rm.Enabled())

	_, err = d.Dispatch(ctx, NewCommand(CmdRuleDelete, "stalled_notify", nil))
	require.NoError(t, err)
	_, err = rm.Get("stalled_notify")
	assert.Error(t, err)
}
