package model

// Status is the lifecycle state of a shipment.
type Status string

// Shipment status constants. The main chain runs pending through delivered;
// in_office, issue, returned and cancelled are side branches.
const (
	StatusPending        Status = "pending"
	StatusPickedUp       Status = "picked_up"
	StatusInTransit      Status = "in_transit"
	StatusInDistribution Status = "in_distribution"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusInOffice       Status = "in_office"
	StatusIssue          Status = "issue"
	StatusReturned       Status = "returned"
	StatusCancelled      Status = "cancelled"
)

// mainChain holds the forward order of the main lifecycle.
var mainChain = map[Status]int{
	StatusPending:        0,
	StatusPickedUp:       1,
	StatusInTransit:      2,
	StatusInDistribution: 3,
	StatusOutForDelivery: 4,
	StatusDelivered:      5,
}

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusPending,
	StatusPickedUp,
	StatusInTransit,
	StatusInDistribution,
	StatusOutForDelivery,
	StatusDelivered,
	StatusInOffice,
	StatusIssue,
	StatusReturned,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPickedUp, StatusInTransit, StatusInDistribution,
		StatusOutForDelivery, StatusDelivered, StatusInOffice, StatusIssue,
		StatusReturned, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusReturned || s == StatusCancelled
}

// IsCompleted reports whether s counts as a finished shipment for learning
// purposes (delivered or returned).
func (s Status) IsCompleted() bool {
	return s == StatusDelivered || s == StatusReturned
}

// IsSideBranch reports whether s is reachable from any non-terminal state
// outside the main chain.
func (s Status) IsSideBranch() bool {
	switch s {
	case StatusInOffice, StatusIssue, StatusReturned, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is allowed.
//
// Terminal states never change. Side branches are reachable from any
// non-terminal state. Along the main chain a shipment only moves forward,
// except that in_office and issue may rejoin the chain at any point past
// pending. Staying in the same state is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	if next.IsSideBranch() {
		return true
	}
	if s == StatusInOffice || s == StatusIssue {
		return next != StatusPending
	}
	from, okFrom := mainChain[s]
	to, okTo := mainChain[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}
