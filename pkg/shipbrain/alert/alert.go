// Package alert keeps the set of open operational alerts.
//
// Creating an alert first looks for an open alert with the same category and
// shipment; when one exists it is updated in place (message, timestamp,
// occurrence count) instead of duplicated. Closing an alert (resolve,
// dismiss, or expiry) moves it to an append-only history. A closed alert
// never re-enters the open set under the same ID.
//
// Statuses only move forward: active → acknowledged → resolved|dismissed.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Sentinel errors for alert operations.
var (
	// ErrNotFound indicates no open alert has the ID. Expired alerts are
	// not found even before the sweep moves them.
	ErrNotFound = errors.New("alert not found")

	// ErrClosed indicates the alert was already resolved or dismissed.
	ErrClosed = errors.New("alert already closed")
)

// DefaultTTL is how long an alert stays open when the request sets none.
const DefaultTTL = 7 * 24 * time.Hour

// DefaultHistoryLimit caps retained closed alerts.
const DefaultHistoryLimit = 1000

// Request describes an alert to raise.
type Request struct {
	Severity       model.Severity
	Category       string
	Title          string
	Message        string
	ShipmentID     string
	AutoResolvable bool

	// TTL overrides the manager's default lifetime. Negative means never
	// expire.
	TTL time.Duration
}

// Filter narrows Active.
type Filter struct {
	Severity   model.Severity `json:"severity,omitempty"`
	Category   string         `json:"category,omitempty"`
	ShipmentID string         `json:"shipmentId,omitempty"`
	Limit      int            `json:"limit,omitempty"`
}

func (f Filter) matches(a *model.Alert) bool {
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Category != "" && a.Category != f.Category {
		return false
	}
	if f.ShipmentID != "" && a.ShipmentID != f.ShipmentID {
		return false
	}
	return true
}

// Stats summarizes the open set and history.
type Stats struct {
	Open       int                    `json:"open"`
	BySeverity map[model.Severity]int `json:"bySeverity"`
	// Closed counts every alert closed since the manager started, including
	// those already trimmed from history.
	Closed int `json:"closed"`
}

// MetricsRecorder is the subset of observability.MetricsRecorder the
// manager uses.
type MetricsRecorder interface {
	RecordAlert(ctx context.Context, severity, category string)
	RecordSweep(ctx context.Context, sweep string, removed int)
}

var severityRank = map[model.Severity]int{
	model.SeverityInfo:     0,
	model.SeverityWarning:  1,
	model.SeverityError:    2,
	model.SeverityCritical: 3,
}

// maxSeverity returns the more severe of a and b.
func maxSeverity(a, b model.Severity) model.Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}
