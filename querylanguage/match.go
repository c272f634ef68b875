package querylanguage

import (
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// matchCache holds one compiled program per distinct predicate source text,
// shared across every P.Match call the way transform.Host caches transformer
// bodies per source — the same compilation-cache idea, reused here for the
// predicate language.
var matchCache sync.Map // map[string]*vm.Program

// matchHelpers are the string-predicate call targets CallExpr renders
// (contains/contains_fold/equal_fold/has_prefix/has_suffix); they operate
// directly on the row value bound to the field operand. has_edge (rendered by
// both HasEdge and HasEdgeWith) renders for traceability but cannot be decided from a plain attribute row
// — ObjectList.Table carries no reference data — so they evaluate to false
// rather than erroring.
var matchHelpers = map[string]any{
	"contains":      func(s, substr string) bool { return strings.Contains(s, substr) },
	"contains_fold": func(s, substr string) bool { return strings.Contains(strings.ToLower(s), strings.ToLower(substr)) },
	"equal_fold":    func(a, b string) bool { return strings.EqualFold(a, b) },
	"has_prefix":    func(s, prefix string) bool { return strings.HasPrefix(s, prefix) },
	"has_suffix":    func(s, suffix string) bool { return strings.HasSuffix(s, suffix) },
	"has_edge":      func(args ...any) bool { return false },
}

// compileMatch compiles (or returns the cached compilation of) src as an
// expr-lang boolean expression over an arbitrary row environment.
func compileMatch(src string) (*vm.Program, error) {
	if cached, ok := matchCache.Load(src); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	matchCache.Store(src, program)
	return program, nil
}

// match renders p and evaluates it against row, used by every P
// implementation's Match method. A compilation or evaluation failure (e.g.
// a field the row doesn't carry) is treated as "does not match" rather than
// propagated — Filter's predicate argument has no error return.
func match(p P, row map[string]any) bool {
	program, err := compileMatch(p.String())
	if err != nil {
		return false
	}
	env := make(map[string]any, len(row)+len(matchHelpers))
	for k, v := range matchHelpers {
		env[k] = v
	}
	for k, v := range row {
		env[k] = v
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// Match evaluates the predicate against row, implementing object.Predicate
// so a querylanguage.P can be passed directly to ObjectList.Filter.
func (b BinaryExpr) Match(row map[string]any) bool { return match(b, row) }
func (u UnaryExpr) Match(row map[string]any) bool  { return match(u, row) }
func (n NaryExpr) Match(row map[string]any) bool   { return match(n, row) }
func (c CallExpr) Match(row map[string]any) bool   { return match(c, row) }
func (n negated) Match(row map[string]any) bool    { return match(n, row) }
