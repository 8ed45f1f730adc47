package expr

import (
	"fmt"
	"slices"
	"strings"
)

// FromCondition compiles the map form of a rule condition. Keys are field
// names; a plain value means equality and a map applies each listed
// operator. Every entry must hold. Keys are processed in sorted order so the
// resulting tree is deterministic.
func FromCondition(cond map[string]any) (Node, error) {
	keys := make([]string, 0, len(cond))
	for k := range cond {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	nodes := make([]Node, 0, len(keys))
	for _, field := range keys {
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrSyntax)
		}
		ops, ok := asMap(cond[field])
		if !ok {
			nodes = append(nodes, Comparison{Field: Field(field), Op: OpEq, Value: Literal{cond[field]}})
			continue
		}

		names := make([]string, 0, len(ops))
		for name := range ops {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			op, err := ParseOp(name)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			nodes = append(nodes, Comparison{Field: Field(field), Op: op, Value: Literal{ops[name]}})
		}
	}

	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return And{Nodes: nodes}, nil
}

// asMap accepts the map shapes produced by encoding/json and yaml.v3.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
