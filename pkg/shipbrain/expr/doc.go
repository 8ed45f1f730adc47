/*
Package expr provides the condition trees that shipbrain rules evaluate.

# Overview

A condition is a small tree of Node values: And, Or and Not combine
comparisons, a Comparison node applies an operator to a field reference and a
literal, and Truthy tests a single field. Trees are built either from the
map form used in rule files or from a textual expression.

# Map Form

Each key names a field. A plain value means equality; an object applies one
or more operators, all of which must hold:

	condition:
	  status: in_transit
	  daysInTransit: {gt: 5}
	  carrier: {in: [Servientrega, Envia]}

Operators: gt, lt, gte, lte, eq, ne, in, notIn, contains. The aliases
greaterThan, lessThan, equals, notEquals and not_in are accepted too.

# Expression Syntax

	<expr> := <expr> 'or' <expr>
	        | <expr> 'and' <expr>
	        | 'not' <expr> | '!' <expr>
	        | '(' <expr> ')'
	        | <field> <op> <literal>
	        | <field>

	<op> := '==' | '!=' | '<' | '>' | '<=' | '>=' | 'contains' | 'in' | 'not in'
	<literal> := 'string' | "string" | number | true | false | null | word | '[' literal, ... ']'

'and' binds tighter than 'or'. A bare word on the right-hand side is a
string literal:

	daysInTransit > 5 and status not in [delivered, returned]
	hasIssue or (carrier == 'Envia' and city == medellin)

# Semantics

  - == and != compare the %v renderings, so 8 == "8".
  - <, >, <=, >= compare numerically; non-numeric values count as 0.
  - in and not in test membership in a list literal.
  - contains tests substring for strings and membership for lists.
  - A missing field resolves to nil.

# Truthiness

A lone field is true unless it is nil, false, "", or a zero number.
*/
package expr
