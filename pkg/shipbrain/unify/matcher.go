package unify

import (
	"strings"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Match confidences.
const (
	ConfidenceExact   = 100
	ConfidenceNumeric = 85
	ConfidenceFuzzy   = 60
)

// MatchResult pairs a tracking record with an order.
type MatchResult struct {
	// OrderIndex is the position of the matched order in the input slice,
	// or -1 when unmatched.
	OrderIndex int
	Confidence int
	Method     model.MatchMethod
}

// Matched reports whether an order was found.
func (r MatchResult) Matched() bool {
	return r.OrderIndex >= 0
}

var noMatch = MatchResult{OrderIndex: -1, Method: model.MatchNone}

// Matcher pairs tracking records with order records.
type Matcher struct {
	// FuzzyWindow bounds the distance between the order date and the
	// tracking update for a fuzzy match.
	// Default: 7 days
	FuzzyWindow time.Duration

	// MinDigits is the shortest digit run accepted for numeric matching.
	// Default: 6
	MinDigits int
}

// DefaultMatcher uses the standard thresholds.
var DefaultMatcher = Matcher{
	FuzzyWindow: 7 * 24 * time.Hour,
	MinDigits:   6,
}

func (m Matcher) withDefaults() Matcher {
	if m.FuzzyWindow <= 0 {
		m.FuzzyWindow = DefaultMatcher.FuzzyWindow
	}
	if m.MinDigits <= 0 {
		m.MinDigits = DefaultMatcher.MinDigits
	}
	return m
}

// Match finds the best order for one tracking record.
func (m Matcher) Match(tr model.TrackingRecord, orders []model.OrderRecord) MatchResult {
	results := m.MatchAll([]model.TrackingRecord{tr}, orders)
	return results[0]
}

// MatchAll matches a batch. The result slice is aligned with trackings.
//
// Exact matches are resolved for the whole batch first and their orders
// marked consumed; numeric and then fuzzy matching only consider orders that
// are still unconsumed. No order is matched twice.
func (m Matcher) MatchAll(trackings []model.TrackingRecord, orders []model.OrderRecord) []MatchResult {
	m = m.withDefaults()

	results := make([]MatchResult, len(trackings))
	for i := range results {
		results[i] = noMatch
	}
	consumed := make([]bool, len(orders))

	passes := []struct {
		method     model.MatchMethod
		confidence int
		find       func(tr model.TrackingRecord, orders []model.OrderRecord, consumed []bool) int
	}{
		{model.MatchExact, ConfidenceExact, m.findExact},
		{model.MatchNumeric, ConfidenceNumeric, m.findNumeric},
		{model.MatchFuzzy, ConfidenceFuzzy, m.findFuzzy},
	}

	for _, pass := range passes {
		for i, tr := range trackings {
			if results[i].Matched() {
				continue
			}
			if j := pass.find(tr, orders, consumed); j >= 0 {
				consumed[j] = true
				results[i] = MatchResult{OrderIndex: j, Confidence: pass.confidence, Method: pass.method}
			}
		}
	}
	return results
}

func (m Matcher) findExact(tr model.TrackingRecord, orders []model.OrderRecord, consumed []bool) int {
	tn := NormalizeTracking(tr.TrackingNumber)
	if tn == "" {
		return -1
	}
	for j, o := range orders {
		if !consumed[j] && NormalizeTracking(o.TrackingNumber) == tn {
			return j
		}
	}
	return -1
}

// NumericMatch reports whether the digits of one tracking number contain
// the digits of the other, both runs being at least MinDigits long.
func (m Matcher) NumericMatch(a, b string) bool {
	m = m.withDefaults()
	ad, bd := digits(a), digits(b)
	if len(ad) < m.MinDigits || len(bd) < m.MinDigits {
		return false
	}
	return strings.Contains(ad, bd) || strings.Contains(bd, ad)
}

// findNumeric accepts an order whose tracking digits contain, or are
// contained in, the tracking record's digits. The first such order wins.
func (m Matcher) findNumeric(tr model.TrackingRecord, orders []model.OrderRecord, consumed []bool) int {
	for j, o := range orders {
		if !consumed[j] && m.NumericMatch(tr.TrackingNumber, o.TrackingNumber) {
			return j
		}
	}
	return -1
}

// findFuzzy considers only orders without a tracking number of their own.
// The match is accepted only when exactly one order qualifies.
func (m Matcher) findFuzzy(tr model.TrackingRecord, orders []model.OrderRecord, consumed []bool) int {
	carrier := normalizeCarrier(tr.Carrier)
	city := NormalizeCity(tr.Destination)
	if carrier == "" || city == "" || tr.LastUpdate.IsZero() {
		return -1
	}

	found := -1
	for j, o := range orders {
		if consumed[j] || strings.TrimSpace(o.TrackingNumber) != "" {
			continue
		}
		if normalizeCarrier(o.Carrier) != carrier || NormalizeCity(o.Customer.City) != city {
			continue
		}
		if absDuration(tr.LastUpdate.Sub(o.CreatedAt)) > m.FuzzyWindow {
			continue
		}
		if found >= 0 {
			return -1
		}
		found = j
	}
	return found
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
