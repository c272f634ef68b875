// Package querylanguage builds the filter predicates Store queries run over
// an ObjectList's tabular snapshot. It mirrors the shape of a small
// expression-tree query DSL: a comparison/call leaf, combined with boolean
// And/Or/Not, everything rendering to expr-lang source text that Match
// evaluates against a row with its own helper set — so the rendered string
// doubles as a debug trace of what Store.Filter actually ran.
//
// There is no entql-style runtime AST anywhere in the retrieved corpus, so
// this package's shape is grounded on a static/runtime split: compose a
// tree of typed nodes, render it to text.
package querylanguage

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// P is a filter predicate: something that can render itself as an
// expr-lang-compatible boolean expression, negate itself, and decide whether
// a tabular row matches, satisfying object.Predicate so a P can be passed
// directly to ObjectList.Filter.
type P interface {
	String() string
	Negate() P
	Match(row map[string]any) bool
}

// Field names a bare identifier operand, used where a predicate compares two
// fields to each other rather than a field to a literal (EQ/NEQ/GT/GTE/
// LT/LTE).
type Field string

// F wraps name as a Field operand.
func F(name string) Field { return Field(name) }

// negated wraps any P, rendering "!(<inner>)". Every concrete node's Negate
// returns one of these rather than attempting to simplify the inner
// expression (double negation renders as a literal double "!(!(...))").
type negated struct{ inner P }

func (n negated) String() string { return "!(" + n.inner.String() + ")" }
func (n negated) Negate() P      { return negated{n} }

// BinaryExpr is a two-operand comparison: "<left> <op> <right>".
type BinaryExpr struct {
	Left  string
	Op    string
	Right string
}

func (b BinaryExpr) String() string { return b.Left + " " + b.Op + " " + b.Right }
func (b BinaryExpr) Negate() P      { return negated{b} }

// UnaryExpr is a single-operand prefix expression: "!(<inner>)".
type UnaryExpr struct {
	Inner P
}

func (u UnaryExpr) String() string { return "!(" + u.Inner.String() + ")" }
func (u UnaryExpr) Negate() P      { return negated{u} }

// NaryExpr combines two or more children with a boolean glue operator. Two
// children render bare ("a && b"); any other count wraps in parens, matching
// how a composed tree reads once you're nesting predicates three deep.
type NaryExpr struct {
	Op       string
	Children []P
}

func (n NaryExpr) String() string {
	parts := make([]string, len(n.Children))
	for i, c := range n.Children {
		parts[i] = c.String()
	}
	joined := join(parts, " "+n.Op+" ")
	if len(n.Children) != 2 {
		return "(" + joined + ")"
	}
	return joined
}

func (n NaryExpr) Negate() P { return negated{n} }

// CallExpr renders a function-call-shaped predicate: "name(arg1, arg2)".
type CallExpr struct {
	Name string
	Args []string
}

func (c CallExpr) String() string { return c.Name + "(" + join(c.Args, ", ") + ")" }
func (c CallExpr) Negate() P      { return negated{c} }

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

// And combines preds with "&&".
func And(preds ...P) P { return NaryExpr{Op: "&&", Children: preds} }

// Or combines preds with "||".
func Or(preds ...P) P { return NaryExpr{Op: "||", Children: preds} }

// Not negates p (unconditionally wraps, even if p is already a Not).
func Not(p P) P { return UnaryExpr{Inner: p} }

// EQ/NEQ/GT/GTE/LT/LTE compare two fields to each other.
func EQ(a, b Field) P  { return BinaryExpr{Left: string(a), Op: "==", Right: string(b)} }
func NEQ(a, b Field) P { return BinaryExpr{Left: string(a), Op: "!=", Right: string(b)} }
func GT(a, b Field) P  { return BinaryExpr{Left: string(a), Op: ">", Right: string(b)} }
func GTE(a, b Field) P { return BinaryExpr{Left: string(a), Op: ">=", Right: string(b)} }
func LT(a, b Field) P  { return BinaryExpr{Left: string(a), Op: "<", Right: string(b)} }
func LTE(a, b Field) P { return BinaryExpr{Left: string(a), Op: "<=", Right: string(b)} }

// FieldEQ/FieldNEQ/FieldGT/FieldGTE/FieldLT/FieldLTE compare field to a
// rendered literal value.
func FieldEQ(field string, value any) P  { return BinaryExpr{Left: field, Op: "==", Right: renderLiteral(value)} }
func FieldNEQ(field string, value any) P { return BinaryExpr{Left: field, Op: "!=", Right: renderLiteral(value)} }
func FieldGT(field string, value any) P  { return BinaryExpr{Left: field, Op: ">", Right: renderLiteral(value)} }
func FieldGTE(field string, value any) P { return BinaryExpr{Left: field, Op: ">=", Right: renderLiteral(value)} }
func FieldLT(field string, value any) P  { return BinaryExpr{Left: field, Op: "<", Right: renderLiteral(value)} }
func FieldLTE(field string, value any) P { return BinaryExpr{Left: field, Op: "<=", Right: renderLiteral(value)} }

// FieldNil/FieldNotNil compare field against the literal nil.
func FieldNil(field string) P    { return BinaryExpr{Left: field, Op: "==", Right: "nil"} }
func FieldNotNil(field string) P { return BinaryExpr{Left: field, Op: "!=", Right: "nil"} }

// FieldIn/FieldNotIn render a field membership test against a literal list.
func FieldIn(field string, values ...any) P {
	return BinaryExpr{Left: field, Op: "in", Right: renderList(values)}
}
func FieldNotIn(field string, values ...any) P {
	return BinaryExpr{Left: field, Op: "not in", Right: renderList(values)}
}

// FieldContains/FieldContainsFold/FieldEqualFold/FieldHasPrefix/
// FieldHasSuffix render calls to the string helpers Match binds (see
// matchHelpers); transform.Host does not provide them.
func FieldContains(field string, substr string) P {
	return CallExpr{Name: "contains", Args: []string{field, renderLiteral(substr)}}
}
func FieldContainsFold(field string, substr string) P {
	return CallExpr{Name: "contains_fold", Args: []string{field, renderLiteral(substr)}}
}
func FieldEqualFold(field string, other string) P {
	return CallExpr{Name: "equal_fold", Args: []string{field, renderLiteral(other)}}
}
func FieldHasPrefix(field string, prefix string) P {
	return CallExpr{Name: "has_prefix", Args: []string{field, renderLiteral(prefix)}}
}
func FieldHasSuffix(field string, suffix string) P {
	return CallExpr{Name: "has_suffix", Args: []string{field, renderLiteral(suffix)}}
}

// HasEdge renders a has_edge(ref) call; HasEdgeWith renders
// has_edge(ref, with). Match evaluates both to false: a row snapshot carries
// no reference data, so bound targets are not checked.
func HasEdge(ref string) P { return CallExpr{Name: "has_edge", Args: []string{ref}} }
func HasEdgeWith(ref string, with P) P {
	return CallExpr{Name: "has_edge", Args: []string{ref, with.String()}}
}

func renderList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = renderLiteral(v)
	}
	return "[" + join(parts, ",") + "]"
}

// renderLiteral renders a Go value the way the field-level predicate
// builders above embed it in an expr-lang source fragment: quoted strings,
// bare booleans and numbers, base64-quoted byte slices, RFC3339-quoted
// timestamps.
func renderLiteral(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []byte:
		return fmt.Sprintf("%q", base64.StdEncoding.EncodeToString(t))
	case time.Time:
		return fmt.Sprintf("%q", t.Format(time.RFC3339))
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
