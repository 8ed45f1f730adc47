package model

import (
	"maps"
	"time"
)

// Action is a typed request dispatched by the action executor.
type Action struct {
	Type   string         `json:"type" yaml:"type"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Clone returns a copy of a with its own params map.
func (a Action) Clone() Action {
	return Action{Type: a.Type, Params: maps.Clone(a.Params)}
}

// DecisionResult is the outcome of a decision.
type DecisionResult string

// Decision results.
const (
	DecisionPending  DecisionResult = "pending"
	DecisionSuccess  DecisionResult = "success"
	DecisionFailure  DecisionResult = "failure"
	DecisionRejected DecisionResult = "rejected"
	DecisionExpired  DecisionResult = "expired"
)

// Decision is a proposed action produced by a firing rule.
type Decision struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Reason     string         `json:"reason"`
	Confidence float64        `json:"confidence"`
	Action     Action         `json:"action"`
	RuleID     string         `json:"ruleId"`
	EventID    string         `json:"eventId"`
	ShipmentID string         `json:"shipmentId,omitempty"`
	Result     DecisionResult `json:"result"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	ExpiresAt  time.Time      `json:"expiresAt"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
}

// Clone returns a copy of d.
func (d *Decision) Clone() *Decision {
	c := *d
	c.Action = d.Action.Clone()
	if d.ResolvedAt != nil {
		t := *d.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// ActionResult records one action execution.
type ActionResult struct {
	ID         string         `json:"id"`
	ActionType string         `json:"actionType"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	DecisionID string         `json:"decisionId,omitempty"`
	ShipmentID string         `json:"shipmentId,omitempty"`
	Attempts   int            `json:"attempts"`
	ExecutedAt time.Time      `json:"executedAt"`
	Duration   time.Duration  `json:"durationNs"`
}
