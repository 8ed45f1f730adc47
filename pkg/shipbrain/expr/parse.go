package expr

import (
	"fmt"
	"strings"
)

// comparison operators in match order: longer and negated forms first.
var textOps = []struct {
	token string
	op    Op
}{
	{" not in ", OpNotIn},
	{" in ", OpIn},
	{" contains ", OpContains},
	{"==", OpEq},
	{"!=", OpNe},
	{">=", OpGte},
	{"<=", OpLte},
	{">", OpGt},
	{"<", OpLt},
}

// Parse builds a tree from expression syntax. An empty expression is an
// empty And, which always holds.
func Parse(s string) (Node, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return And{}, nil
	}

	if parts := splitTop(s, " or "); len(parts) > 1 {
		return parseGroup(parts, func(nodes []Node) Node { return Or{Nodes: nodes} })
	}
	if parts := splitTop(s, " and "); len(parts) > 1 {
		return parseGroup(parts, func(nodes []Node) Node { return And{Nodes: nodes} })
	}

	if strings.HasPrefix(s, "not ") {
		inner, err := Parse(strings.TrimPrefix(s, "not "))
		if err != nil {
			return nil, err
		}
		return Not{Node: inner}, nil
	}
	if strings.HasPrefix(s, "!") && !strings.HasPrefix(s, "!=") {
		inner, err := Parse(strings.TrimPrefix(s, "!"))
		if err != nil {
			return nil, err
		}
		return Not{Node: inner}, nil
	}

	if strings.HasPrefix(s, "(") && enclosed(s) {
		return Parse(s[1 : len(s)-1])
	}

	for _, t := range textOps {
		parts := splitTop(s, t.token)
		if len(parts) == 1 {
			continue
		}
		if len(parts) > 2 {
			return nil, fmt.Errorf("%w: chained %q in %q", ErrSyntax, strings.TrimSpace(t.token), s)
		}
		field := strings.TrimSpace(parts[0])
		if !isIdent(field) {
			return nil, fmt.Errorf("%w: expected field name, got %q", ErrSyntax, field)
		}
		value, err := parseLiteral(parts[1])
		if err != nil {
			return nil, err
		}
		return Comparison{Field: Field(field), Op: t.op, Value: Literal{value}}, nil
	}

	if !isIdent(s) {
		return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, s)
	}
	return Truthy{Field: Field(s)}, nil
}

// MustParse is like Parse but panics on error. For static conditions.
func MustParse(s string) Node {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Eval parses and evaluates expression s against vars.
func Eval(s string, vars map[string]any) (bool, error) {
	n, err := Parse(s)
	if err != nil {
		return false, err
	}
	return n.Eval(vars), nil
}

func parseGroup(parts []string, build func([]Node) Node) (Node, error) {
	nodes := make([]Node, 0, len(parts))
	for _, p := range parts {
		n, err := Parse(p)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return build(nodes), nil
}

// enclosed reports whether the opening parenthesis of s closes at its end.
func enclosed(s string) bool {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i == len(s)-1
			}
		}
	}
	return false
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
