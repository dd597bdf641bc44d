package ninja

import "bytes"

// segKind distinguishes the two shapes an Expression segment can take:
// a literal byte run, already final, or a deferred reference to a
// variable that must be resolved against an Environment.
type segKind int

const (
	segLiteral segKind = iota
	segVarRef
)

type segment struct {
	kind    segKind
	literal string
	varName string
}

// Expression is the deferred form of a value: an ordered sequence of
// literal and variable-reference segments. Top-level and edge bindings
// are expanded eagerly at parse time and end up stored as a single
// segLiteral segment. Rule bindings keep their segVarRef segments and
// are re-expanded every time an edge using that rule runs.
type Expression []segment

// Literal wraps an already-expanded string as a one-segment Expression,
// used for eager (top-level, edge-level) bindings.
func Literal(s string) Expression {
	return Expression{{kind: segLiteral, literal: s}}
}

// Expand resolves every variable reference in the expression against env,
// innermost frame first. An unresolved variable is a semantic warning,
// not an error: it expands to the empty string.
func (e Expression) Expand(env *Environment) (string, error) {
	if len(e) == 1 && e[0].kind == segLiteral {
		return e[0].literal, nil
	}
	var buf bytes.Buffer
	for _, seg := range e {
		switch seg.kind {
		case segLiteral:
			buf.WriteString(seg.literal)
		case segVarRef:
			v, err := env.expandVar(seg.varName)
			if err != nil {
				return buf.String(), err
			}
			buf.WriteString(v)
		}
	}
	return buf.String(), nil
}

// Environment is a chain of name->Expression frames. Lookup walks from
// the innermost frame outward. The same type serves every scoping role:
// the top-level file frame, a subninja child frame (parent pointer lets
// reads fall through; writes only ever touch the child's own map), and
// the temporary per-edge frame assembled at execution time (innermost =
// the edge's own bindings, next the rule bindings, then the enclosing
// file env).
type Environment struct {
	parent *Environment
	vars   map[string]Expression
}

// NewEnvironment creates a frame chained to parent. parent may be nil for
// the top-level file environment.
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{parent: parent, vars: make(map[string]Expression)}
}

// Bind stores expr under name in this frame only, shadowing (not
// mutating) any outer binding of the same name.
func (e *Environment) Bind(name string, expr Expression) {
	e.vars[name] = expr
}

// Lookup walks the chain from e outward and returns the nearest binding.
func (e *Environment) Lookup(name string) (Expression, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// expandVar resolves a variable by name, returning "" if it is unbound.
// An unknown variable expands to the empty string, never an error.
func (e *Environment) expandVar(name string) (string, error) {
	expr, ok := e.Lookup(name)
	if !ok {
		return "", nil
	}
	return expr.Expand(e)
}
