// Package action dispatches decision actions to registered handlers.
//
// An Executor maps action type strings ("create_alert", "send_notification",
// ...) to Handlers. Executing an unregistered type fails closed: the caller
// gets a failed Result, never an error or panic. Handler panics are
// recovered the same way. Transient handler errors (see the shipbrain errors
// package) are retried with backoff.
//
// Before a handler runs, string parameters are rendered against the
// triggering event's fields, so rule files can write
//
//	message: "Shipment ${trackingNumber} is ${daysInTransit} days late"
//
// Every result is kept in a bounded history and remembered in the memory
// store, failures with higher importance than successes.
package action

import (
	"context"
	"errors"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/config"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/memory"
)

// ErrNoHandler is reported in a failed result when an action type has no
// registered handler.
var ErrNoHandler = errors.New("no handler for action type")

// Memory importance for recorded results.
const (
	ImportanceSuccess = 40
	ImportanceFailure = 80
)

// MemoryCategory is the memory category results are stored under.
const MemoryCategory = "action_result"

// Handler performs one action. The returned map becomes Result.Output.
type Handler func(ctx context.Context, req Request) (map[string]any, error)

// Target identifies what an action is executed for.
type Target struct {
	DecisionID string
	ShipmentID string
	EventID    string
	// Vars are the event fields parameters are rendered against.
	Vars map[string]any
}

// Request is what a handler receives.
type Request struct {
	Type   string
	Params config.Config
	Target Target
}

// Rememberer is the part of memory.Manager the executor writes to.
type Rememberer interface {
	Remember(category string, data any, opts memory.Options) memory.Entry
}

// MetricsRecorder is the subset of observability.MetricsRecorder the
// executor uses.
type MetricsRecorder interface {
	RecordAction(ctx context.Context, actionType string, duration time.Duration, err error)
}

// Stats counts executions.
type Stats struct {
	Executed  int            `json:"executed"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByType    map[string]int `json:"byType"`
}
