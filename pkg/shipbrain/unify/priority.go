package unify

import (
	"slices"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Field names a unified shipment field with its own source ranking.
type Field string

// Ranked fields.
const (
	FieldStatus      Field = "status"
	FieldLocation    Field = "location"
	FieldCarrier     Field = "carrier"
	FieldOrigin      Field = "origin"
	FieldDestination Field = "destination"
	FieldCustomer    Field = "customer"
	FieldProduct     Field = "product"
)

// StaleAfter is how much older the current value must be than a candidate
// before a lower-priority source may replace it.
const StaleAfter = 24 * time.Hour

// PriorityTable ranks sources per field, best first.
type PriorityTable map[Field][]model.Source

// DefaultPriorities prefers the carrier feed for movement data and the order
// feed for who and what is being shipped.
var DefaultPriorities = PriorityTable{
	FieldStatus:      {model.SourceTracking, model.SourceManual, model.SourceSystem, model.SourceOrder},
	FieldLocation:    {model.SourceTracking, model.SourceManual, model.SourceSystem, model.SourceOrder},
	FieldCarrier:     {model.SourceTracking, model.SourceOrder, model.SourceManual, model.SourceSystem},
	FieldOrigin:      {model.SourceTracking, model.SourceOrder, model.SourceManual, model.SourceSystem},
	FieldDestination: {model.SourceOrder, model.SourceManual, model.SourceTracking, model.SourceSystem},
	FieldCustomer:    {model.SourceOrder, model.SourceManual, model.SourceTracking, model.SourceSystem},
	FieldProduct:     {model.SourceOrder, model.SourceManual, model.SourceTracking, model.SourceSystem},
}

// Rank returns the position of src for field; lower is better. Sources not
// listed rank after every listed one.
func (t PriorityTable) Rank(field Field, src model.Source) int {
	order := t[field]
	if i := slices.Index(order, src); i >= 0 {
		return i
	}
	return len(order)
}

// ShouldReplace reports whether a candidate from candSrc at candTS replaces
// the current value from curSrc at curTS.
//
// A strictly higher-priority source always wins. The same source wins when
// newer. A lower-priority source wins only when the current value is more
// than StaleAfter older than the candidate.
func (t PriorityTable) ShouldReplace(field Field, curSrc model.Source, curTS time.Time, candSrc model.Source, candTS time.Time) bool {
	cur, cand := t.Rank(field, curSrc), t.Rank(field, candSrc)
	switch {
	case cand < cur:
		return true
	case cand == cur:
		return candTS.After(curTS)
	default:
		return candTS.Sub(curTS) > StaleAfter
	}
}

// Resolve returns the winning value among current and candidates. Candidates
// are applied best rank first, newest first within a rank. nil candidates are
// ignored. The returned pointer is one of the inputs.
func Resolve[T any](t PriorityTable, field Field, current *model.SourcedData[T], candidates ...*model.SourcedData[T]) *model.SourcedData[T] {
	cands := slices.DeleteFunc(slices.Clone(candidates), func(c *model.SourcedData[T]) bool { return c == nil })
	slices.SortStableFunc(cands, func(a, b *model.SourcedData[T]) int {
		if ra, rb := t.Rank(field, a.Source), t.Rank(field, b.Source); ra != rb {
			return ra - rb
		}
		return b.Timestamp.Compare(a.Timestamp)
	})

	for _, c := range cands {
		if current == nil || t.ShouldReplace(field, current.Source, current.Timestamp, c.Source, c.Timestamp) {
			current = c
		}
	}
	return current
}
