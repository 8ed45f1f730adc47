package model

import "time"

// Severity ranks alerts.
type Severity string

// Alert severities.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps free-form severity labels onto the closed set.
// "high" maps to error and "low" to info; unknown labels become warning.
func ParseSeverity(s string) Severity {
	switch s {
	case "info", "low":
		return SeverityInfo
	case "warning", "medium":
		return SeverityWarning
	case "error", "high":
		return SeverityError
	case "critical", "urgent":
		return SeverityCritical
	}
	return SeverityWarning
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

// Alert statuses. Transitions only move forward.
const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertDismissed    AlertStatus = "dismissed"
)

// IsOpen reports whether the alert still belongs to the active set.
func (s AlertStatus) IsOpen() bool {
	return s == AlertActive || s == AlertAcknowledged
}

// Alert surfaces an operational condition to operators.
type Alert struct {
	ID             string      `json:"id"`
	Severity       Severity    `json:"severity"`
	Status         AlertStatus `json:"status"`
	Category       string      `json:"category"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	ShipmentID     string      `json:"shipmentId,omitempty"`
	AutoResolvable bool        `json:"autoResolvable"`
	Occurrences    int         `json:"occurrences"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
	ExpiresAt      *time.Time  `json:"expiresAt,omitempty"`
	ClosedAt       *time.Time  `json:"closedAt,omitempty"`
	CloseReason    string      `json:"closeReason,omitempty"`
}

// Clone returns a copy of a.
func (a *Alert) Clone() *Alert {
	c := *a
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		c.ExpiresAt = &t
	}
	if a.ClosedAt != nil {
		t := *a.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}
