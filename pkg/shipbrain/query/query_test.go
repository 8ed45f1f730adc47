package query_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/alert"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/brain"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/query"
)

type fakeSource struct {
	lastShipmentFilter brain.Filter
	lastAlertFilter    alert.Filter
}

func (f *fakeSource) Shipments(flt brain.Filter) []*model.UnifiedShipment {
	f.lastShipmentFilter = flt
	return []*model.UnifiedShipment{{ID: "s1"}}
}

func (f *fakeSource) ActiveAlerts(flt alert.Filter) []*model.Alert {
	f.lastAlertFilter = flt
	return []*model.Alert{{ID: "a1"}}
}

func (f *fakeSource) PendingDecisions() []*model.Decision {
	return []*model.Decision{{ID: "d1"}}
}

func (f *fakeSource) Analyze(context.Context) model.AnalysisReport {
	return model.AnalysisReport{Shipments: 3}
}

func (f *fakeSource) Predict(id string) (model.ShipmentPrediction, error) {
	if id != "s1" {
		return model.ShipmentPrediction{}, errors.New("no such shipment")
	}
	return model.ShipmentPrediction{ShipmentID: id}, nil
}

func (f *fakeSource) Journey(_ context.Context, id string) (*model.Journey, error) {
	if id != "s1" {
		return nil, errors.New("no such shipment")
	}
	return &model.Journey{ShipmentID: id}, nil
}

func (f *fakeSource) Context() model.OperationalContext {
	return model.OperationalContext{TotalShipments: 1}
}

func (f *fakeSource) HealthCheck(context.Context) brain.Health {
	return brain.Health{Healthy: true}
}

func newExecutor(t *testing.T) (*query.Executor, *fakeSource) {
	t.Helper()
	reg := query.NewRegistry()
	src := &fakeSource{}
	require.NoError(t, query.RegisterBuiltins(reg, src))
	return query.NewExecutor(reg, nil), src
}

func TestRegistry_Register(t *testing.T) {
	registry := query.NewRegistry()
	handler := func(context.Context, string, any) (any, error) { return "result", nil }

	require.NoError(t, registry.Register("test-query", handler))

	err := registry.Register("test-query", handler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	t.Run("empty name", func(t *testing.T) {
		err := registry.Register("", handler)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name is required")
	})

	t.Run("nil handler", func(t *testing.T) {
		err := registry.Register("other", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "handler is required")
	})

	assert.Panics(t, func() { registry.MustRegister("test-query", handler) })

	registry.Unregister("test-query")
	_, ok := registry.Get("test-query")
	assert.False(t, ok)
}

func TestRegisterBuiltins_Names(t *testing.T) {
	reg := query.NewRegistry()
	require.NoError(t, query.RegisterBuiltins(reg, &fakeSource{}))
	assert.Equal(t, []string{
		query.QueryActiveAlerts, query.QueryAnalysis, query.QueryContext, query.QueryPendingDecisions,
		query.QueryHealth, query.QueryJourney, query.QueryPredict, query.QueryShipments,
	}, reg.List())

	assert.Error(t, query.RegisterBuiltins(reg, &fakeSource{}), "duplicate registration fails")
}

func TestExecute_Shipments_DecodesArgs(t *testing.T) {
	exec, src := newExecutor(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args any
		want brain.Filter
	}{
		{"nil", nil, brain.Filter{}},
		{"value", brain.Filter{Carrier: "Envia"}, brain.Filter{Carrier: "Envia"}},
		{"pointer", &brain.Filter{City: "Cali"}, brain.Filter{City: "Cali"}},
		{"map", map[string]any{"carrier": "Envia", "limit": 5}, brain.Filter{Carrier: "Envia", Limit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := exec.Execute(ctx, query.QueryShipments, "", tt.args)
			require.NoError(t, err)
			assert.Len(t, v, 1)
			assert.Equal(t, tt.want, src.lastShipmentFilter)
		})
	}

	_, err := exec.Execute(ctx, query.QueryShipments, "", map[string]any{"limit": "many"})
	assert.ErrorIs(t, err, query.ErrBadArgs)
}

func TestExecute_AlertsAndDecisions(t *testing.T) {
	exec, src := newExecutor(t)
	ctx := context.Background()

	v, err := exec.Execute(ctx, query.QueryActiveAlerts, "", map[string]any{"severity": "critical"})
	require.NoError(t, err)
	assert.Len(t, v, 1)
	assert.Equal(t, model.SeverityCritical, src.lastAlertFilter.Severity)

	v, err = exec.Execute(ctx, query.QueryPendingDecisions, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "d1", v.([]*model.Decision)[0].ID)
}

func TestExecute_Predict(t *testing.T) {
	exec, _ := newExecutor(t)
	ctx := context.Background()

	v, err := exec.Execute(ctx, query.QueryPredict, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, "s1", v.(model.ShipmentPrediction).ShipmentID)

	_, err = exec.Execute(ctx, query.QueryPredict, "", nil)
	assert.ErrorIs(t, err, query.ErrTargetRequired)

	_, err = exec.Execute(ctx, query.QueryPredict, "missing", nil)
	assert.ErrorIs(t, err, query.ErrTargetNotFound)
}

func TestExecute_UnknownQuery(t *testing.T) {
	exec, _ := newExecutor(t)
	_, err := exec.Execute(context.Background(), "nope", "", nil)
	assert.ErrorIs(t, err, query.ErrQueryNotFound)
}

func TestExecuteMultiple(t *testing.T) {
	exec, _ := newExecutor(t)
	results := exec.ExecuteMultiple(context.Background(), []query.Request{
		{Query: query.QueryHealth},
		{Query: query.QueryAnalysis},
		{Query: query.QueryJourney, TargetID: "missing"},
	})
	require.Len(t, results, 3)
	assert.True(t, results[0].Value.(brain.Health).Healthy)
	assert.Equal(t, 3, results[1].Value.(model.AnalysisReport).Shipments)
	assert.Contains(t, results[2].Error, "target not found")
}
