package expr

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Sentinel errors.
var (
	ErrSyntax          = errors.New("syntax error")
	ErrUnknownOperator = errors.New("unknown operator")
)

// Node is a boolean condition over a variable map.
type Node interface {
	// Eval evaluates the node against vars.
	Eval(vars map[string]any) bool

	// String renders the node in expression syntax.
	String() string
}

// Field references a variable by name. Dotted names reach into nested maps.
type Field string

// Value resolves the field, or nil when it is missing.
func (f Field) Value(vars map[string]any) any {
	return lookup(string(f), vars)
}

// Literal is a constant operand.
type Literal struct {
	Value any
}

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "null"
	case string:
		if v == "" || strings.ContainsAny(v, " ,[]()'\"") {
			return "'" + v + "'"
		}
		return v
	}
	if items, ok := listOf(l.Value); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = Literal{item}.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%v", l.Value)
}

// Comparison applies Op to a field and a literal.
type Comparison struct {
	Field Field
	Op    Op
	Value Literal
}

func (c Comparison) Eval(vars map[string]any) bool {
	ok, err := Compare(c.Field.Value(vars), c.Value.Value, c.Op)
	return err == nil && ok
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op.symbol(), c.Value)
}

// Truthy tests a single field for truthiness.
type Truthy struct {
	Field Field
}

func (t Truthy) Eval(vars map[string]any) bool {
	return IsTruthy(t.Field.Value(vars))
}

func (t Truthy) String() string {
	return string(t.Field)
}

// And holds when every child holds. An empty And is true.
type And struct {
	Nodes []Node
}

func (a And) Eval(vars map[string]any) bool {
	for _, n := range a.Nodes {
		if !n.Eval(vars) {
			return false
		}
	}
	return true
}

func (a And) String() string {
	if len(a.Nodes) == 0 {
		return "true"
	}
	return join(a.Nodes, " and ")
}

// Or holds when any child holds. An empty Or is false.
type Or struct {
	Nodes []Node
}

func (o Or) Eval(vars map[string]any) bool {
	for _, n := range o.Nodes {
		if n.Eval(vars) {
			return true
		}
	}
	return false
}

func (o Or) String() string {
	if len(o.Nodes) == 0 {
		return "false"
	}
	return join(o.Nodes, " or ")
}

// Not negates its child.
type Not struct {
	Node Node
}

func (n Not) Eval(vars map[string]any) bool {
	return !n.Node.Eval(vars)
}

func (n Not) String() string {
	return "not " + wrap(n.Node)
}

func join(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = wrap(n)
	}
	return strings.Join(parts, sep)
}

func wrap(n Node) string {
	switch v := n.(type) {
	case And:
		if len(v.Nodes) > 1 {
			return "(" + v.String() + ")"
		}
	case Or:
		if len(v.Nodes) > 1 {
			return "(" + v.String() + ")"
		}
	}
	return n.String()
}

// Fields returns the distinct field names referenced by n, sorted.
func Fields(n Node) []string {
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Comparison:
			out = append(out, string(v.Field))
		case Truthy:
			out = append(out, string(v.Field))
		case And:
			for _, c := range v.Nodes {
				walk(c)
			}
		case Or:
			for _, c := range v.Nodes {
				walk(c)
			}
		case Not:
			walk(v.Node)
		}
	}
	if n != nil {
		walk(n)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
