package unify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/clock"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

func newTestUnifier(now time.Time) (*Unifier, *clock.Fake) {
	fake := clock.NewFake(now)
	return NewUnifier(WithClock(fake)), fake
}

func TestUnify_TrackingOnlyDelivered(t *testing.T) {
	u, _ := newTestUnifier(t10)
	tr := &model.TrackingRecord{
		TrackingNumber: "INT123",
		Carrier:        "CarrierX",
		Status:         "ENTREGADO",
		LastUpdate:     t10,
	}

	s, change := u.Unify(tr, nil, noMatch, nil)

	require.NotNil(t, s)
	assert.True(t, change.Created)
	assert.True(t, change.Delivered)
	assert.Equal(t, model.StatusDelivered, s.CurrentStatus())
	assert.False(t, s.HasIssue)
	assert.False(t, s.IsDelayed)
	assert.Equal(t, []model.Source{model.SourceTracking}, s.Sources)
	assert.Equal(t, "INT123", s.TrackingNumber)
	assert.Equal(t, "CarrierX", s.CarrierName())
	assert.Equal(t, model.MatchNone, s.MatchMethod)
	require.NotNil(t, s.DeliveredAt)
	assert.Equal(t, t10, *s.DeliveredAt)
}

func TestUnify_TrackingWithOrder(t *testing.T) {
	u, _ := newTestUnifier(t10)
	o := &model.OrderRecord{
		OrderNumber:    "ORD-1",
		TrackingNumber: "TN1",
		Customer:       model.Customer{Name: "Ana", City: "Medellín", Department: "Antioquia", Address: "Cl 1"},
		Product:        model.Product{Name: "Lamp", Quantity: 1, Value: 50},
		CreatedAt:      t10.Add(-2 * 24 * time.Hour),
	}
	tr := &model.TrackingRecord{
		TrackingNumber: "TN1",
		Carrier:        "Envia",
		Status:         "En tránsito",
		LastUpdate:     t10.Add(-time.Hour),
		Destination:    "MEDELLIN",
		Events: []model.TrackingEvent{
			{Timestamp: t10.Add(-40 * time.Hour), Description: "Recogido"},
		},
	}

	s, change := u.Unify(tr, o, MatchResult{OrderIndex: 0, Confidence: 100, Method: model.MatchExact}, nil)

	assert.True(t, change.Created)
	assert.Equal(t, model.StatusInTransit, s.CurrentStatus())
	assert.Equal(t, "ORD-1", s.OrderNumber)
	assert.Equal(t, "Ana", s.CustomerName())
	assert.Equal(t, "Lamp", s.ProductName())
	// destination prefers the order feed
	assert.Equal(t, "Medellín", s.DestinationCity())
	assert.Equal(t, model.SourceOrder, s.Destination.Source)
	assert.Equal(t, 100, s.MatchConfidence)
	assert.Equal(t, model.MatchExact, s.MatchMethod)
	assert.ElementsMatch(t, []model.Source{model.SourceTracking, model.SourceOrder}, s.Sources)
	assert.Equal(t, 2, s.DaysInTransit)

	for i := 1; i < len(s.Events); i++ {
		assert.False(t, s.Events[i].Timestamp.Before(s.Events[i-1].Timestamp))
	}
}

func TestUnify_DelayThreshold(t *testing.T) {
	start := t10.Add(-5 * 24 * time.Hour)
	u, fake := newTestUnifier(t10)
	o := &model.OrderRecord{OrderNumber: "O1", Customer: model.Customer{City: "Cali"}, CreatedAt: start}
	tr := &model.TrackingRecord{TrackingNumber: "T1", Status: "En tránsito", LastUpdate: start.Add(time.Hour)}

	s, change := u.Unify(tr, o, MatchResult{OrderIndex: 0, Confidence: 60, Method: model.MatchFuzzy}, nil)
	assert.Equal(t, 5, s.DaysInTransit)
	assert.False(t, s.IsDelayed)
	assert.False(t, change.BecameDelayed)

	fake.Advance(24 * time.Hour)
	refreshed, became := u.Refresh(s)
	assert.Equal(t, 6, refreshed.DaysInTransit)
	assert.True(t, refreshed.IsDelayed)
	assert.True(t, became)
	assert.False(t, s.IsDelayed, "Refresh must not modify its input")
}

func TestUnify_IllegalTransitionKeepsStatus(t *testing.T) {
	u, fake := newTestUnifier(t10)
	tr := &model.TrackingRecord{TrackingNumber: "T1", Status: "Entregado", LastUpdate: t10}
	s, _ := u.Unify(tr, nil, noMatch, nil)

	fake.Advance(time.Hour)
	late := &model.TrackingRecord{TrackingNumber: "T1", Status: "En tránsito", LastUpdate: t10.Add(time.Hour)}
	s2, change := u.Unify(late, nil, noMatch, s)

	assert.Equal(t, model.StatusDelivered, s2.CurrentStatus())
	assert.Equal(t, model.StatusInTransit, change.RejectedStatus)
	assert.False(t, change.StatusChanged)
}

func TestUnify_IssueThenRecovery(t *testing.T) {
	u, fake := newTestUnifier(t10)
	tr := &model.TrackingRecord{TrackingNumber: "T1", Status: "En tránsito", LastUpdate: t10}
	s, _ := u.Unify(tr, nil, noMatch, nil)

	fake.Advance(time.Hour)
	issue := &model.TrackingRecord{TrackingNumber: "T1", Status: "Novedad: dirección errada", LastUpdate: t10.Add(time.Hour)}
	s, change := u.Unify(issue, nil, noMatch, s)
	assert.True(t, s.HasIssue)
	assert.True(t, change.BecameIssue)
	assert.True(t, change.StatusChanged)
	assert.Equal(t, model.StatusInTransit, change.PreviousStatus)
	assert.Equal(t, "Novedad: dirección errada", s.IssueReason)

	fake.Advance(time.Hour)
	back := &model.TrackingRecord{TrackingNumber: "T1", Status: "En reparto", LastUpdate: t10.Add(2 * time.Hour)}
	s, _ = u.Unify(back, nil, noMatch, s)
	assert.False(t, s.HasIssue)
	assert.True(t, s.HadIssue, "a recovered shipment remembers the issue")
	assert.Empty(t, s.IssueReason)
	assert.Equal(t, model.StatusOutForDelivery, s.CurrentStatus())

	fake.Advance(time.Hour)
	done := &model.TrackingRecord{TrackingNumber: "T1", Status: "Entregado", LastUpdate: t10.Add(3 * time.Hour)}
	s, _ = u.Unify(done, nil, noMatch, s)
	refreshed, _ := u.Refresh(s)
	assert.True(t, refreshed.HadIssue)
}

func TestUnify_HadIssueFromCarrierHistory(t *testing.T) {
	u, _ := newTestUnifier(t10)
	tr := &model.TrackingRecord{
		TrackingNumber: "T2",
		Status:         "Entregado",
		LastUpdate:     t10,
		Events: []model.TrackingEvent{
			{Timestamp: t10.Add(-48 * time.Hour), Description: "En tránsito"},
			{Timestamp: t10.Add(-24 * time.Hour), Description: "Destinatario ausente"},
		},
	}
	s, change := u.Unify(tr, nil, noMatch, nil)
	assert.False(t, s.HasIssue)
	assert.True(t, s.HadIssue)
	assert.False(t, change.BecameIssue)
}

func TestUnify_OlderTrackingRecordIgnored(t *testing.T) {
	u, _ := newTestUnifier(t10)
	s, _ := u.Unify(&model.TrackingRecord{TrackingNumber: "T1", Status: "En reparto", LastUpdate: t10}, nil, noMatch, nil)

	old := &model.TrackingRecord{TrackingNumber: "T1", Status: "Recogido", LastUpdate: t10.Add(-time.Hour)}
	s2, change := u.Unify(old, nil, noMatch, s)

	assert.Equal(t, model.StatusOutForDelivery, s2.CurrentStatus())
	assert.Empty(t, change.RejectedStatus)
}

func TestUnify_OrderOnly(t *testing.T) {
	u, _ := newTestUnifier(t10)
	o := &model.OrderRecord{OrderNumber: "O9", TrackingNumber: "TN9", CreatedAt: t10}

	s, change := u.Unify(nil, o, noMatch, nil)
	assert.True(t, change.Created)
	assert.Equal(t, model.StatusPending, s.CurrentStatus())
	assert.Equal(t, model.MatchOrderOnly, s.MatchMethod)
	assert.Equal(t, "TN9", s.TrackingNumber)
	assert.Equal(t, []model.Source{model.SourceOrder}, s.Sources)

	// tracking arrives later and takes over status
	tr := &model.TrackingRecord{TrackingNumber: "TN9", Status: "Recogido", LastUpdate: t10.Add(time.Hour)}
	s2, change := u.Unify(tr, o, MatchResult{OrderIndex: 0, Confidence: 100, Method: model.MatchExact}, s)
	assert.Equal(t, model.StatusPickedUp, s2.CurrentStatus())
	assert.Equal(t, model.MatchExact, s2.MatchMethod)
	assert.True(t, change.StatusChanged)
	assert.Equal(t, s.ID, s2.ID)
}

func TestUnify_TrackingNumberIsStable(t *testing.T) {
	u, _ := newTestUnifier(t10)
	s, _ := u.Unify(&model.TrackingRecord{TrackingNumber: "FIRST", Status: "En tránsito", LastUpdate: t10}, nil, noMatch, nil)
	s2, _ := u.Unify(&model.TrackingRecord{TrackingNumber: "SECOND", Status: "En tránsito", LastUpdate: t10}, nil, noMatch, s)
	assert.Equal(t, "FIRST", s2.TrackingNumber)
	assert.Equal(t, []string{"SECOND"}, s2.TrackingAliases)

	s3, change := u.Unify(&model.TrackingRecord{TrackingNumber: " second ", Status: "En tránsito", LastUpdate: t10}, nil, noMatch, s2)
	assert.Equal(t, []string{"SECOND"}, s3.TrackingAliases)
	assert.False(t, change.Changed())

	s4, change := u.Unify(&model.TrackingRecord{TrackingNumber: "first", Status: "En tránsito", LastUpdate: t10}, nil, noMatch, s3)
	assert.Equal(t, []string{"SECOND"}, s4.TrackingAliases)
	assert.False(t, change.Changed())
}

func TestUnify_LastActivityAt(t *testing.T) {
	tests := []struct {
		name  string
		tr    *model.TrackingRecord
		order *model.OrderRecord
		want  time.Time
	}{
		{
			name: "latest carrier scan",
			tr: &model.TrackingRecord{TrackingNumber: "A1", Status: "En tránsito", LastUpdate: t10.Add(-48 * time.Hour),
				Events: []model.TrackingEvent{{Timestamp: t10.Add(-24 * time.Hour), Description: "En tránsito"}}},
			want: t10.Add(-24 * time.Hour),
		},
		{
			name: "last update",
			tr:   &model.TrackingRecord{TrackingNumber: "A2", Status: "En tránsito", LastUpdate: t10.Add(-5 * 24 * time.Hour)},
			want: t10.Add(-5 * 24 * time.Hour),
		},
		{
			name: "no timestamps uses now",
			tr:   &model.TrackingRecord{TrackingNumber: "A3", Status: "En tránsito"},
			want: t10,
		},
		{
			name:  "order only",
			order: &model.OrderRecord{OrderNumber: "O1", TrackingNumber: "A4", CreatedAt: t10.Add(-6 * time.Hour)},
			want:  t10.Add(-6 * time.Hour),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, fake := newTestUnifier(t10)
			s, _ := u.Unify(tt.tr, tt.order, noMatch, nil)
			assert.Equal(t, tt.want, s.LastActivityAt)

			fake.Advance(4 * 24 * time.Hour)
			refreshed, _ := u.Refresh(s)
			assert.Equal(t, tt.want, refreshed.LastActivityAt, "recomputing is not activity")
		})
	}
}

func TestUnify_LastActivityNeverMovesBack(t *testing.T) {
	u, _ := newTestUnifier(t10)
	s, _ := u.Unify(&model.TrackingRecord{TrackingNumber: "T1", Status: "En reparto", LastUpdate: t10}, nil, noMatch, nil)
	s, _ = u.Unify(&model.TrackingRecord{TrackingNumber: "T1", Status: "Recogido", LastUpdate: t10.Add(-time.Hour)}, nil, noMatch, s)
	assert.Equal(t, t10, s.LastActivityAt)

	s, change := u.Unify(&model.TrackingRecord{TrackingNumber: "T1", Status: "En reparto", LastUpdate: t10.Add(time.Hour)}, nil, noMatch, s)
	assert.Equal(t, t10.Add(time.Hour), s.LastActivityAt)
	assert.Contains(t, change.Fields, "lastActivityAt")
}

func TestUnify_TrackingJoinsOrderOnlyShipment(t *testing.T) {
	u, _ := newTestUnifier(t10)
	s, _ := u.Unify(nil, &model.OrderRecord{OrderNumber: "O7", TrackingNumber: "GUIA-123456789", CreatedAt: t10}, noMatch, nil)
	require.Equal(t, model.MatchOrderOnly, s.MatchMethod)

	tr := &model.TrackingRecord{TrackingNumber: "123456789", Status: "Recogido", LastUpdate: t10.Add(time.Hour)}
	s2, change := u.Unify(tr, nil, MatchResult{OrderIndex: -1, Confidence: ConfidenceNumeric, Method: model.MatchNumeric}, s)
	assert.Equal(t, model.MatchNumeric, s2.MatchMethod)
	assert.Equal(t, ConfidenceNumeric, s2.MatchConfidence)
	assert.Equal(t, "GUIA-123456789", s2.TrackingNumber)
	assert.Equal(t, []string{"123456789"}, s2.TrackingAliases)
	assert.Contains(t, change.Fields, "match")
}
