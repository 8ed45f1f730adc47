package expr

import (
	"fmt"
	"strings"
)

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpLt       Op = "lt"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpNotIn    Op = "notIn"
	OpContains Op = "contains"
)

var opAliases = map[string]Op{
	"eq": OpEq, "equals": OpEq, "==": OpEq,
	"ne": OpNe, "notEquals": OpNe, "!=": OpNe,
	"gt": OpGt, "greaterThan": OpGt, ">": OpGt,
	"lt": OpLt, "lessThan": OpLt, "<": OpLt,
	"gte": OpGte, ">=": OpGte,
	"lte": OpLte, "<=": OpLte,
	"in":    OpIn,
	"notIn": OpNotIn, "not_in": OpNotIn, "not in": OpNotIn,
	"contains": OpContains,
}

// ParseOp maps an operator name or symbol to an Op.
func ParseOp(s string) (Op, error) {
	if op, ok := opAliases[strings.TrimSpace(s)]; ok {
		return op, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownOperator, s)
}

// symbol returns the textual form of op.
func (op Op) symbol() string {
	switch op {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpGte:
		return ">="
	case OpLte:
		return "<="
	case OpNotIn:
		return "not in"
	}
	return string(op)
}

// Compare compares two values using the specified operator.
// Returns an error for unknown operators.
func Compare(left, right any, op Op) (bool, error) {
	switch op {
	case OpEq:
		return compareEquals(left, right), nil
	case OpNe:
		return !compareEquals(left, right), nil
	case OpLt:
		return ToFloat64(left) < ToFloat64(right), nil
	case OpGt:
		return ToFloat64(left) > ToFloat64(right), nil
	case OpLte:
		return ToFloat64(left) <= ToFloat64(right), nil
	case OpGte:
		return ToFloat64(left) >= ToFloat64(right), nil
	case OpIn:
		return compareIn(left, right), nil
	case OpNotIn:
		return !compareIn(left, right), nil
	case OpContains:
		return compareContains(left, right), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}
}

// compareEquals compares if left equals right using string comparison.
func compareEquals(left, right any) bool {
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

// compareIn reports whether left equals any element of right. A non-list
// right side is treated as a one-element list.
func compareIn(left, right any) bool {
	items, ok := listOf(right)
	if !ok {
		return compareEquals(left, right)
	}
	for _, item := range items {
		if compareEquals(left, item) {
			return true
		}
	}
	return false
}

// compareContains checks substring containment, or membership when left is
// a list.
func compareContains(left, right any) bool {
	if items, ok := listOf(left); ok {
		return compareIn(right, items)
	}
	if left == nil {
		return false
	}
	return strings.Contains(fmt.Sprintf("%v", left), fmt.Sprintf("%v", right))
}
