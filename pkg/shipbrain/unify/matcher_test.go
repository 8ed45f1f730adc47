package unify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

func order(number, tracking, carrier, city string, created time.Time) model.OrderRecord {
	return model.OrderRecord{
		OrderNumber:    number,
		TrackingNumber: tracking,
		Carrier:        carrier,
		Customer:       model.Customer{Name: "Cliente " + number, City: city},
		CreatedAt:      created,
	}
}

func TestMatch_Exact(t *testing.T) {
	tr := model.TrackingRecord{TrackingNumber: "INT123", Carrier: "CarrierX"}
	orders := []model.OrderRecord{
		order("o1", "OTHER", "", "", t10),
		order("o2", " int-123 ", "", "", t10),
	}

	got := DefaultMatcher.Match(tr, orders)
	assert.Equal(t, MatchResult{OrderIndex: 1, Confidence: 100, Method: model.MatchExact}, got)
}

func TestMatch_Numeric(t *testing.T) {
	tr := model.TrackingRecord{TrackingNumber: "CO-240012345678"}
	orders := []model.OrderRecord{order("o1", "240012345678X", "", "", t10)}

	got := DefaultMatcher.Match(tr, orders)
	assert.Equal(t, 85, got.Confidence)
	assert.Equal(t, model.MatchNumeric, got.Method)

	short := model.TrackingRecord{TrackingNumber: "AB12345"}
	assert.False(t, DefaultMatcher.Match(short, []model.OrderRecord{order("o1", "X12345Y", "", "", t10)}).Matched())
}

func TestMatcher_NumericMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"prefixed guide", "123456789", "GUIA-123456789", true},
		{"contained either way", "CO-240012345678", "12345678", true},
		{"same digits", "WS 123-456", "ws123456", true},
		{"different digits", "123456789", "987654321", false},
		{"too short", "AB12345", "X12345Y", false},
		{"empty", "", "123456", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultMatcher.NumericMatch(tt.a, tt.b))
			assert.Equal(t, tt.want, Matcher{}.NumericMatch(tt.b, tt.a))
		})
	}
}

func TestNormalizeTracking(t *testing.T) {
	assert.Equal(t, "WS123", NormalizeTracking(" ws-123 "))
	assert.Equal(t, "WS123", NormalizeTracking("WS 123"))
	assert.Empty(t, NormalizeTracking("   "))
}

func TestMatch_Fuzzy(t *testing.T) {
	tr := model.TrackingRecord{
		TrackingNumber: "ZZ1",
		Carrier:        "Servientrega",
		Destination:    "Medellín, Antioquia",
		LastUpdate:     t10,
	}

	t.Run("unique candidate", func(t *testing.T) {
		orders := []model.OrderRecord{
			order("o1", "", "SERVIENTREGA", "medellin", t10.Add(-3*24*time.Hour)),
			order("o2", "", "Servientrega", "Cali", t10),
			order("o3", "", "Servientrega", "Medellin", t10.Add(-10*24*time.Hour)),
		}
		got := DefaultMatcher.Match(tr, orders)
		assert.Equal(t, MatchResult{OrderIndex: 0, Confidence: 60, Method: model.MatchFuzzy}, got)
	})

	t.Run("ambiguous refuses", func(t *testing.T) {
		orders := []model.OrderRecord{
			order("o1", "", "Servientrega", "Medellin", t10.Add(-24*time.Hour)),
			order("o2", "", "Servientrega", "Medellín", t10.Add(-48*time.Hour)),
		}
		got := DefaultMatcher.Match(tr, orders)
		assert.False(t, got.Matched())
		assert.Equal(t, 0, got.Confidence)
		assert.Equal(t, model.MatchNone, got.Method)
	})

	t.Run("orders with tracking numbers are skipped", func(t *testing.T) {
		orders := []model.OrderRecord{order("o1", "OTHER999", "Servientrega", "Medellin", t10)}
		assert.False(t, DefaultMatcher.Match(tr, orders).Matched())
	})
}

func TestMatchAll_NoOrderMatchedTwice(t *testing.T) {
	trackings := []model.TrackingRecord{
		// would fuzzy-match o1 if it ran first
		{TrackingNumber: "NEW1", Carrier: "Envia", Destination: "Bogota", LastUpdate: t10},
		{TrackingNumber: "ABC777", Carrier: "Envia", Destination: "Bogota", LastUpdate: t10},
		{TrackingNumber: "ABC777", Carrier: "Envia", Destination: "Bogota", LastUpdate: t10},
	}
	orders := []model.OrderRecord{
		order("o1", "", "Envia", "Bogotá", t10),
		order("o2", "ABC777", "Envia", "Bogota", t10),
	}

	results := DefaultMatcher.MatchAll(trackings, orders)

	assert.Equal(t, 1, results[1].OrderIndex)
	assert.Equal(t, model.MatchExact, results[1].Method)
	// the duplicate tracking record cannot reuse o2; only o1 is left and
	// both remaining records qualify for it in turn, so the first one wins
	assert.Equal(t, 0, results[0].OrderIndex)
	assert.Equal(t, model.MatchFuzzy, results[0].Method)
	assert.False(t, results[2].Matched())

	seen := map[int]bool{}
	for _, r := range results {
		if r.Matched() {
			assert.False(t, seen[r.OrderIndex], "order %d matched twice", r.OrderIndex)
			seen[r.OrderIndex] = true
		}
	}
}
