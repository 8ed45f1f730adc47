// Package rules holds the declarative rules the decision engine evaluates.
//
// A rule names the event kind that triggers it, a condition over the
// event's fields (see event.Fields) and the action to propose when the
// condition holds. Conditions come in two forms that compile to the same
// expr tree: a field map
//
//	condition:
//	  daysInTransit: {gt: 5}
//	  status: {notIn: [delivered]}
//
// and a textual expression
//
//	when: daysInTransit > 5 and status not in [delivered]
//
// When both are present both must hold.
//
// Rules are held by a Manager, which orders them by priority, tracks how
// often each fired, and can be switched off globally without losing
// definitions. Rule files are YAML and can be hot reloaded with Watch.
package rules

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/expr"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// Sentinel errors for rule management.
var (
	// ErrNotFound indicates no rule has the requested ID.
	ErrNotFound = errors.New("rule not found")

	// ErrDuplicate indicates a rule with the same ID already exists.
	ErrDuplicate = errors.New("rule already exists")

	// ErrInvalid indicates a rule failed validation.
	ErrInvalid = errors.New("invalid rule")
)

// Rule origins.
const (
	OriginDefault = "default"
	OriginFile    = "file"
	OriginAPI     = "api"
)

// DefaultConfidence is used when a rule leaves Confidence at zero.
const DefaultConfidence = 80

// Rule proposes an action when its condition holds for a triggering event.
type Rule struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	TriggerEvent event.Kind     `json:"trigger" yaml:"trigger"`
	Condition    map[string]any `json:"condition,omitempty" yaml:"condition,omitempty"`
	When         string         `json:"when,omitempty" yaml:"when,omitempty"`
	Action       model.Action   `json:"action" yaml:"action"`
	Priority     int            `json:"priority" yaml:"priority"`
	Confidence   float64        `json:"confidence" yaml:"confidence"`
	Enabled      bool           `json:"enabled" yaml:"enabled"`
	AutoExecute  bool           `json:"autoExecute" yaml:"autoExecute"`

	Origin         string     `json:"origin,omitempty" yaml:"-"`
	ExecutionCount int        `json:"executionCount" yaml:"-"`
	LastFiredAt    *time.Time `json:"lastFiredAt,omitempty" yaml:"-"`

	node expr.Node
}

// Compile validates r and builds its condition tree.
func (r *Rule) Compile() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if !r.TriggerEvent.Valid() {
		return fmt.Errorf("%w: rule %s: unknown trigger %q", ErrInvalid, r.ID, r.TriggerEvent)
	}
	if r.Action.Type == "" {
		return fmt.Errorf("%w: rule %s: action type is required", ErrInvalid, r.ID)
	}
	if r.Confidence < 0 || r.Confidence > 100 {
		return fmt.Errorf("%w: rule %s: confidence %v outside 0-100", ErrInvalid, r.ID, r.Confidence)
	}
	if r.Confidence == 0 {
		r.Confidence = DefaultConfidence
	}
	if r.Name == "" {
		r.Name = r.ID
	}

	var nodes []expr.Node
	if len(r.Condition) > 0 {
		n, err := expr.FromCondition(r.Condition)
		if err != nil {
			return fmt.Errorf("%w: rule %s: condition: %w", ErrInvalid, r.ID, err)
		}
		nodes = append(nodes, n)
	}
	if strings.TrimSpace(r.When) != "" {
		n, err := expr.Parse(r.When)
		if err != nil {
			return fmt.Errorf("%w: rule %s: when: %w", ErrInvalid, r.ID, err)
		}
		nodes = append(nodes, n)
	}

	switch len(nodes) {
	case 0:
		r.node = expr.And{}
	case 1:
		r.node = nodes[0]
	default:
		r.node = expr.And{Nodes: nodes}
	}
	return nil
}

// Matches reports whether the compiled condition holds for vars.
// An uncompiled rule never matches.
func (r *Rule) Matches(vars map[string]any) bool {
	if r.node == nil {
		return false
	}
	return r.node.Eval(vars)
}

// ConditionString renders the compiled condition.
func (r *Rule) ConditionString() string {
	if r.node == nil {
		return ""
	}
	return r.node.String()
}

// Fields lists the event fields the condition reads.
func (r *Rule) Fields() []string {
	if r.node == nil {
		return nil
	}
	return expr.Fields(r.node)
}

// Clone returns a copy of r sharing only the immutable condition tree.
func (r *Rule) Clone() Rule {
	c := *r
	c.Condition = maps.Clone(r.Condition)
	c.Action = r.Action.Clone()
	if r.LastFiredAt != nil {
		t := *r.LastFiredAt
		c.LastFiredAt = &t
	}
	return c
}
