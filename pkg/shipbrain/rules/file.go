package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/event"
	"github.com/litpercolombia-glitch/ASDA3EEEE-sub002/pkg/shipbrain/model"
)

// document is the on-disk layout of a rule file.
type document struct {
	Rules []ruleDoc `yaml:"rules"`
}

// ruleDoc mirrors Rule with Enabled defaulting to true.
type ruleDoc struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Trigger     string         `yaml:"trigger"`
	Condition   map[string]any `yaml:"condition,omitempty"`
	When        string         `yaml:"when,omitempty"`
	Action      model.Action   `yaml:"action"`
	Priority    int            `yaml:"priority,omitempty"`
	Confidence  float64        `yaml:"confidence,omitempty"`
	Enabled     *bool          `yaml:"enabled,omitempty"`
	AutoExecute bool           `yaml:"autoExecute,omitempty"`
}

// Decode reads a YAML rule file and compiles every rule. All invalid rules
// are reported together.
func Decode(r io.Reader) ([]Rule, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	out := make([]Rule, 0, len(doc.Rules))
	seen := make(map[string]bool, len(doc.Rules))
	var errs []error
	for i, d := range doc.Rules {
		r := Rule{
			ID:           d.ID,
			Name:         d.Name,
			Description:  d.Description,
			TriggerEvent: event.Kind(d.Trigger),
			Condition:    d.Condition,
			When:         d.When,
			Action:       d.Action,
			Priority:     d.Priority,
			Confidence:   d.Confidence,
			Enabled:      d.Enabled == nil || *d.Enabled,
			AutoExecute:  d.AutoExecute,
			Origin:       OriginFile,
		}
		if err := r.Compile(); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Errorf("rules[%d]: %w: %s", i, ErrDuplicate, r.ID))
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// LoadFile decodes the rule file at path.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Encode writes rules in the rule file layout.
func Encode(w io.Writer, rules []Rule) error {
	doc := document{Rules: make([]ruleDoc, 0, len(rules))}
	for _, r := range rules {
		enabled := r.Enabled
		doc.Rules = append(doc.Rules, ruleDoc{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Trigger:     string(r.TriggerEvent),
			Condition:   r.Condition,
			When:        r.When,
			Action:      r.Action,
			Priority:    r.Priority,
			Confidence:  r.Confidence,
			Enabled:     &enabled,
			AutoExecute: r.AutoExecute,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}
