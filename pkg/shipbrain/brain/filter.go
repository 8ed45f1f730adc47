package brain

import (
	"slices"
	"strings"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/unify"
)

// Filter selects shipments. Zero fields match everything.
type Filter struct {
	Statuses []model.Status `json:"statuses,omitempty"`
	Carrier  string         `json:"carrier,omitempty"`
	City     string         `json:"city,omitempty"`
	Delayed  *bool          `json:"delayed,omitempty"`
	HasIssue *bool          `json:"hasIssue,omitempty"`
	// Search matches tracking number, order number, customer or product,
	// case-insensitively.
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Match reports whether s passes the filter.
func (f Filter) Match(s *model.UnifiedShipment) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, s.CurrentStatus()) {
		return false
	}
	if f.Carrier != "" && !strings.EqualFold(f.Carrier, s.CarrierName()) {
		return false
	}
	if f.City != "" && !unify.SameCity(f.City, s.DestinationCity()) {
		return false
	}
	if f.Delayed != nil && *f.Delayed != s.IsDelayed {
		return false
	}
	if f.HasIssue != nil && *f.HasIssue != s.HasIssue {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hay := []string{s.TrackingNumber, s.OrderNumber, s.CustomerName(), s.ProductName()}
		if !slices.ContainsFunc(hay, func(h string) bool { return strings.Contains(strings.ToLower(h), q) }) {
			return false
		}
	}
	return true
}

// Find returns copies of matching shipments, most recently updated first.
func (b *Brain) Find(f Filter) []*model.UnifiedShipment {
	b.mu.RLock()
	var out []*model.UnifiedShipment
	for _, s := range b.shipments {
		if f.Match(s) {
			out = append(out, s.Clone())
		}
	}
	b.mu.RUnlock()

	sortShipments(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func sortShipments(ss []*model.UnifiedShipment) {
	slices.SortFunc(ss, func(a, b *model.UnifiedShipment) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
