package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

func alertRule(id string, priority int) Rule {
	return Rule{
		ID:           id,
		TriggerEvent: event.KindShipmentUpdated,
		Action:       model.Action{Type: "create_alert"},
		Priority:     priority,
		Enabled:      true,
	}
}

func TestRule_Compile(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr string
	}{
		{"valid", alertRule("r1", 1), ""},
		{"missing id", Rule{TriggerEvent: event.KindShipmentUpdated, Action: model.Action{Type: "x"}}, "id is required"},
		{"bad trigger", Rule{ID: "r", TriggerEvent: "shipment.exploded", Action: model.Action{Type: "x"}}, "unknown trigger"},
		{"no action", Rule{ID: "r", TriggerEvent: event.KindShipmentUpdated}, "action type is required"},
		{"confidence range", Rule{ID: "r", TriggerEvent: event.KindShipmentUpdated, Action: model.Action{Type: "x"}, Confidence: 120}, "confidence"},
		{"bad when", Rule{ID: "r", TriggerEvent: event.KindShipmentUpdated, Action: model.Action{Type: "x"}, When: "5 > x"}, "when"},
		{"bad condition", Rule{ID: "r", TriggerEvent: event.KindShipmentUpdated, Action: model.Action{Type: "x"}, Condition: map[string]any{"x": map[string]any{"approx": 1}}}, "condition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.rule
			err := r.Compile()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, float64(DefaultConfidence), r.Confidence)
				assert.Equal(t, r.ID, r.Name)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRule_DelayCondition(t *testing.T) {
	r := Rule{
		ID:           "delay",
		TriggerEvent: event.KindShipmentDelayed,
		Condition: map[string]any{
			"daysInTransit": map[string]any{"gt": 5},
			"status":        map[string]any{"notIn": []any{"delivered"}},
		},
		Action: model.Action{Type: "create_alert"},
	}
	require.NoError(t, r.Compile())

	tests := []struct {
		days   int
		status string
		want   bool
	}{
		{6, "in_transit", true},
		{5, "in_transit", false},
		{8, "delivered", false},
	}
	for _, tt := range tests {
		vars := map[string]any{"daysInTransit": tt.days, "status": tt.status}
		assert.Equal(t, tt.want, r.Matches(vars), "days=%d status=%s", tt.days, tt.status)
	}
	assert.Equal(t, []string{"daysInTransit", "status"}, r.Fields())
	assert.NotEmpty(t, r.ConditionString())
}

func TestRule_ConditionAndWhenCombine(t *testing.T) {
	r := Rule{
		ID:           "combo",
		TriggerEvent: event.KindShipmentUpdated,
		Condition:    map[string]any{"carrier": "envia"},
		When:         "daysInTransit >= 3",
		Action:       model.Action{Type: "log"},
	}
	require.NoError(t, r.Compile())

	assert.True(t, r.Matches(map[string]any{"carrier": "envia", "daysInTransit": 3}))
	assert.False(t, r.Matches(map[string]any{"carrier": "envia", "daysInTransit": 2}))
	assert.False(t, r.Matches(map[string]any{"carrier": "tcc", "daysInTransit": 9}))

	var uncompiled Rule
	assert.False(t, uncompiled.Matches(nil))
}

func TestManager_CRUD(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Add(alertRule("a", 1)))
	assert.ErrorIs(t, m.Add(alertRule("a", 2)), ErrDuplicate)
	assert.ErrorIs(t, m.Add(Rule{ID: "bad"}), ErrInvalid)

	got, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, OriginAPI, got.Origin)

	m.RecordFired("a")
	upd := alertRule("a", 7)
	upd.Name = "renamed"
	require.NoError(t, m.Update(upd))
	got, _ = m.Get("a")
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 7, got.Priority)
	assert.Equal(t, 1, got.ExecutionCount)

	assert.ErrorIs(t, m.Update(alertRule("zzz", 1)), ErrNotFound)
	require.NoError(t, m.Delete("a"))
	assert.ErrorIs(t, m.Delete("a"), ErrNotFound)
	_, err = m.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestManager_GetReturnsCopy(t *testing.T) {
	m := NewManager()
	r := alertRule("a", 1)
	r.Action.Params = map[string]any{"severity": "error"}
	require.NoError(t, m.Add(r))

	got, _ := m.Get("a")
	got.Action.Params["severity"] = "info"

	again, _ := m.Get("a")
	assert.Equal(t, "error", again.Action.Params["severity"])
}

func TestManager_PriorityOrder(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(alertRule("low", 1)))
	require.NoError(t, m.Add(alertRule("high", 10)))
	require.NoError(t, m.Add(alertRule("mid-first", 5)))
	require.NoError(t, m.Add(alertRule("mid-second", 5)))
	other := alertRule("other", 99)
	other.TriggerEvent = event.KindShipmentIssue
	require.NoError(t, m.Add(other))

	var ids []string
	for _, r := range m.ForTrigger(event.KindShipmentUpdated) {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"high", "mid-first", "mid-second", "low"}, ids)
	assert.Len(t, m.List(), 5)
	assert.Equal(t, "other", m.List()[0].ID)
}

func TestManager_EnableDisable(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(alertRule("a", 1)))
	require.NoError(t, m.Add(alertRule("b", 2)))

	require.NoError(t, m.Disable("b"))
	assert.Len(t, m.ForTrigger(event.KindShipmentUpdated), 1)
	assert.ErrorIs(t, m.Enable("missing"), ErrNotFound)

	m.DisableAll()
	assert.False(t, m.Enabled())
	assert.Empty(t, m.Evaluate(event.KindShipmentUpdated, nil))
	assert.Equal(t, 2, m.Len(), "definitions survive global disable")

	m.EnableAll()
	require.NoError(t, m.Enable("b"))
	assert.Len(t, m.Evaluate(event.KindShipmentUpdated, nil), 2)
}

func TestManager_EvaluateIndependentMatches(t *testing.T) {
	m := NewManager()
	a := alertRule("a", 2)
	a.When = "daysInTransit > 5"
	b := alertRule("b", 1)
	b.When = "carrier == envia"
	c := alertRule("c", 3)
	c.When = "hasIssue"
	require.NoError(t, m.Add(a))
	require.NoError(t, m.Add(b))
	require.NoError(t, m.Add(c))

	matched := m.Evaluate(event.KindShipmentUpdated, map[string]any{"daysInTransit": 7, "carrier": "envia", "hasIssue": false})
	require.Len(t, matched, 2)
	assert.Equal(t, "a", matched[0].ID)
	assert.Equal(t, "b", matched[1].ID)
}

func TestManager_RecordFired(t *testing.T) {
	fc := clock.NewFake(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	m := NewManager(WithClock(fc))
	require.NoError(t, m.Add(alertRule("a", 1)))

	m.RecordFired("a")
	fc.Advance(time.Hour)
	m.RecordFired("a")
	m.RecordFired("missing")

	got, _ := m.Get("a")
	assert.Equal(t, 2, got.ExecutionCount)
	require.NotNil(t, got.LastFiredAt)
	assert.Equal(t, fc.Now(), *got.LastFiredAt)
}

func TestManager_Replace(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Add(alertRule("api", 1)))
	require.NoError(t, m.Replace(OriginFile, []Rule{alertRule("f1", 1), alertRule("f2", 1)}))
	m.RecordFired("f1")

	require.NoError(t, m.Replace(OriginFile, []Rule{alertRule("f1", 3)}))
	assert.Equal(t, 2, m.Len())
	f1, err := m.Get("f1")
	require.NoError(t, err)
	assert.Equal(t, 1, f1.ExecutionCount)
	assert.Equal(t, 3, f1.Priority)
	_, err = m.Get("f2")
	assert.ErrorIs(t, err, ErrNotFound)

	// a file rule cannot shadow an api rule
	assert.ErrorIs(t, m.Replace(OriginFile, []Rule{alertRule("api", 1)}), ErrDuplicate)
	assert.ErrorIs(t, m.Replace(OriginFile, []Rule{alertRule("x", 1), alertRule("x", 2)}), ErrDuplicate)
	assert.ErrorIs(t, m.Replace(OriginFile, []Rule{{ID: "broken"}}), ErrInvalid)
	_, err = m.Get("f1")
	assert.NoError(t, err, "failed replace leaves rules untouched")
}

func TestDefaults(t *testing.T) {
	m := NewManager()
	require.NoError(t, LoadDefaults(m))
	assert.Equal(t, len(Defaults()), m.Len())

	delayed := m.Evaluate(event.KindShipmentDelayed, map[string]any{"daysInTransit": 8, "status": "in_transit"})
	require.Len(t, delayed, 1)
	assert.Equal(t, RuleDelayedShipment, delayed[0].ID)
	assert.Equal(t, 95.0, delayed[0].Confidence)
	assert.True(t, delayed[0].AutoExecute)

	assert.Empty(t, m.Evaluate(event.KindShipmentDelayed, map[string]any{"daysInTransit": 5, "status": "in_transit"}))
	assert.Empty(t, m.Evaluate(event.KindShipmentDelayed, map[string]any{"daysInTransit": 9, "status": "delivered"}))

	delivered := m.Evaluate(event.KindShipmentDelivered, map[string]any{"customer": "Ana"})
	require.Len(t, delivered, 1)
	assert.Equal(t, RuleDeliveredNotify, delivered[0].ID)
	assert.Empty(t, m.Evaluate(event.KindShipmentDelivered, map[string]any{"customer": ""}))

	ofd := map[string]any{"status": "out_for_delivery", "previousStatus": "in_distribution"}
	assert.Len(t, m.Evaluate(event.KindShipmentUpdated, ofd), 1)
	ofd["previousStatus"] = "out_for_delivery"
	assert.Empty(t, m.Evaluate(event.KindShipmentUpdated, ofd))
}
