package operator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/rules"
)

// Built-in command names.
const (
	CmdAlertAcknowledge = "alert.acknowledge"
	CmdAlertResolve     = "alert.resolve"
	CmdAlertDismiss     = "alert.dismiss"
	CmdDecisionApprove  = "decision.approve"
	CmdDecisionReject   = "decision.reject"
	CmdRuleEnable       = "rule.enable"
	CmdRuleDisable      = "rule.disable"
	CmdRuleAdd          = "rule.add"
	CmdRuleUpdate       = "rule.update"
	CmdRuleDelete       = "rule.delete"
	CmdRulesEnableAll   = "rules.enable_all"
	CmdRulesDisableAll  = "rules.disable_all"
)

// Payload keys read by the built-in commands.
const (
	KeyReason = "reason"
	KeyRule   = "rule"
)

// AlertOps is the alert surface the commands drive. *alert.Manager
// implements it.
type AlertOps interface {
	Acknowledge(id string) (*model.Alert, error)
	Resolve(ctx context.Context, id, reason string) (*model.Alert, error)
	Dismiss(ctx context.Context, id, reason string) (*model.Alert, error)
}

// DecisionOps is the decision surface. *decision.Engine implements it.
type DecisionOps interface {
	Approve(ctx context.Context, id string) (*model.Decision, error)
	Reject(id, reason string) (*model.Decision, error)
}

// RuleOps is the rules surface. *rules.Manager implements it.
type RuleOps interface {
	Add(r rules.Rule) error
	Update(r rules.Rule) error
	Delete(id string) error
	Get(id string) (rules.Rule, error)
	Enable(id string) error
	Disable(id string) error
	EnableAll()
	DisableAll()
}

// Builtins wires the standard commands. Nil collaborators leave their
// commands unregistered.
type Builtins struct {
	Alerts    AlertOps
	Decisions DecisionOps
	Rules     RuleOps
}

// Register adds the built-in handlers to r.
func (b Builtins) Register(r *Registry) error {
	handlers := map[string]Handler{}
	if b.Alerts != nil {
		handlers[CmdAlertAcknowledge] = targeted(func(_ context.Context, c *Command) (any, error) {
			return b.Alerts.Acknowledge(c.TargetID)
		})
		handlers[CmdAlertResolve] = targeted(func(ctx context.Context, c *Command) (any, error) {
			return b.Alerts.Resolve(ctx, c.TargetID, reasonOr(c, "resolved by operator"))
		})
		handlers[CmdAlertDismiss] = targeted(func(ctx context.Context, c *Command) (any, error) {
			return b.Alerts.Dismiss(ctx, c.TargetID, reasonOr(c, "dismissed by operator"))
		})
	}
	if b.Decisions != nil {
		handlers[CmdDecisionApprove] = targeted(func(ctx context.Context, c *Command) (any, error) {
			return b.Decisions.Approve(ctx, c.TargetID)
		})
		handlers[CmdDecisionReject] = targeted(func(_ context.Context, c *Command) (any, error) {
			return b.Decisions.Reject(c.TargetID, reasonOr(c, "rejected by operator"))
		})
	}
	if b.Rules != nil {
		handlers[CmdRuleEnable] = targeted(func(_ context.Context, c *Command) (any, error) {
			if err := b.Rules.Enable(c.TargetID); err != nil {
				return nil, err
			}
			return b.Rules.Get(c.TargetID)
		})
		handlers[CmdRuleDisable] = targeted(func(_ context.Context, c *Command) (any, error) {
			if err := b.Rules.Disable(c.TargetID); err != nil {
				return nil, err
			}
			return b.Rules.Get(c.TargetID)
		})
		handlers[CmdRuleAdd] = func(_ context.Context, c *Command) (any, error) {
			r, err := ruleFromPayload(c)
			if err != nil {
				return nil, err
			}
			if err := b.Rules.Add(r); err != nil {
				return nil, err
			}
			return b.Rules.Get(r.ID)
		}
		handlers[CmdRuleUpdate] = func(_ context.Context, c *Command) (any, error) {
			r, err := ruleFromPayload(c)
			if err != nil {
				return nil, err
			}
			if err := b.Rules.Update(r); err != nil {
				return nil, err
			}
			return b.Rules.Get(r.ID)
		}
		handlers[CmdRuleDelete] = targeted(func(_ context.Context, c *Command) (any, error) {
			return nil, b.Rules.Delete(c.TargetID)
		})
		handlers[CmdRulesEnableAll] = func(context.Context, *Command) (any, error) {
			b.Rules.EnableAll()
			return nil, nil
		}
		handlers[CmdRulesDisableAll] = func(context.Context, *Command) (any, error) {
			b.Rules.DisableAll()
			return nil, nil
		}
	}

	for name, h := range handlers {
		if err := r.Register(name, h); err != nil {
			return fmt.Errorf("failed to register builtin command %q: %w", name, err)
		}
	}
	return nil
}

// targeted rejects commands without a target before calling h.
func targeted(h Handler) Handler {
	return func(ctx context.Context, c *Command) (any, error) {
		if c.TargetID == "" {
			return nil, fmt.Errorf("%w: %s", ErrTargetRequired, c.Name)
		}
		return h(ctx, c)
	}
}

func reasonOr(c *Command, fallback string) string {
	if r := c.String(KeyReason); r != "" {
		return r
	}
	return fallback
}

// ruleFromPayload reads the rule under the "rule" key. The value may be a
// rules.Rule or any JSON-shaped map. A command target overrides the rule ID.
func ruleFromPayload(c *Command) (rules.Rule, error) {
	var r rules.Rule
	switch v := c.Payload[KeyRule].(type) {
	case nil:
		return r, fmt.Errorf("%w: payload %q is required", rules.ErrInvalid, KeyRule)
	case rules.Rule:
		r = v
	case *rules.Rule:
		r = *v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return r, fmt.Errorf("%w: %w", rules.ErrInvalid, err)
		}
		if err := json.Unmarshal(data, &r); err != nil {
			return r, fmt.Errorf("%w: %w", rules.ErrInvalid, err)
		}
		// Rules arriving as maps default to enabled unless they say otherwise.
		if m, ok := v.(map[string]any); ok {
			if _, set := m["enabled"]; !set {
				r.Enabled = true
			}
		}
	}
	if c.TargetID != "" {
		r.ID = c.TargetID
	}
	return r, nil
}
