package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPickedUp, true},
		{StatusPending, StatusDelivered, true},
		{StatusInTransit, StatusPickedUp, false},
		{StatusOutForDelivery, StatusInTransit, false},
		{StatusInTransit, StatusInTransit, true},
		{StatusInTransit, StatusIssue, true},
		{StatusPending, StatusCancelled, true},
		{StatusIssue, StatusInTransit, true},
		{StatusInOffice, StatusDelivered, true},
		{StatusIssue, StatusPending, false},
		{StatusDelivered, StatusIssue, false},
		{StatusReturned, StatusInTransit, false},
		{StatusCancelled, StatusPending, false},
		{StatusInTransit, Status("lost"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusReturned.IsCompleted())
	assert.False(t, StatusCancelled.IsCompleted())
	assert.True(t, StatusInOffice.IsSideBranch())
	assert.False(t, StatusInTransit.IsSideBranch())
	assert.False(t, Status("").Valid())

	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), s)
	}
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityError, ParseSeverity("high"))
	assert.Equal(t, SeverityCritical, ParseSeverity("critical"))
	assert.Equal(t, SeverityInfo, ParseSeverity("low"))
	assert.Equal(t, SeverityWarning, ParseSeverity("whatever"))
}

func TestUnifiedShipmentHelpers(t *testing.T) {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	delivered := start.Add(72 * time.Hour)

	s := &UnifiedShipment{
		ID:             "s1",
		OrderCreatedAt: start,
		Status:         Sourced(StatusDelivered, SourceTracking, delivered, 100),
		Carrier:        Sourced("CarrierX", SourceTracking, start, 100),
		Destination:    Sourced(Place{City: "Medellin"}, SourceOrder, start, 100),
		Sources:        []Source{SourceTracking, SourceOrder},
		Events:         []ShipmentEvent{{Timestamp: start, Status: StatusPending}},
		DeliveredAt:    &delivered,
	}

	assert.Equal(t, StatusDelivered, s.CurrentStatus())
	assert.Equal(t, "CarrierX", s.CarrierName())
	assert.Equal(t, "Medellin", s.DestinationCity())
	assert.Empty(t, s.ProductName())
	assert.True(t, s.HasSource(SourceOrder))
	assert.False(t, s.HasSource(SourceManual))

	days, ok := s.DeliveryDays()
	assert.True(t, ok)
	assert.InDelta(t, 3.0, days, 0.001)

	c := s.Clone()
	c.Events[0].Description = "changed"
	c.Sources[0] = SourceManual
	*c.DeliveredAt = start
	assert.Empty(t, s.Events[0].Description)
	assert.Equal(t, SourceTracking, s.Sources[0])
	assert.Equal(t, delivered, *s.DeliveredAt)

	var empty *UnifiedShipment
	assert.Equal(t, StatusPending, empty.CurrentStatus())
}
