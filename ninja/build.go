package ninja

// Edge is one declared recipe: a nonempty set of outputs built together
// from explicit, implicit, and order-only inputs via a named rule. The
// edge's own bindings are captured already expanded against the
// parse-time environment active when the build block was parsed.
type Edge struct {
	Outputs      []PathKey
	Explicit     []PathKey
	Implicit     []PathKey
	OrderOnly    []PathKey
	RuleName     string
	Title        string // canonical text of the first output, for display
	rule         *Rule
	EdgeEnv      *Environment
	fileEnv      *Environment
	DefiningFile string
	Line         int
}

// AllInputs returns explicit, implicit and order-only inputs in that
// order, the inputs that participate in the graph's fan-out arcs.
func (e *Edge) AllInputs() []PathKey {
	all := make([]PathKey, 0, len(e.Explicit)+len(e.Implicit)+len(e.OrderOnly))
	all = append(all, e.Explicit...)
	all = append(all, e.Implicit...)
	all = append(all, e.OrderOnly...)
	return all
}

// DirtyingInputs returns explicit and implicit inputs only: the ones
// whose mtimes participate in the rebuilder's out-of-date comparison.
// Order-only inputs are excluded.
func (e *Edge) DirtyingInputs() []PathKey {
	all := make([]PathKey, 0, len(e.Explicit)+len(e.Implicit))
	all = append(all, e.Explicit...)
	all = append(all, e.Implicit...)
	return all
}

// IsPhony reports whether this edge uses the built-in phony rule.
func (e *Edge) IsPhony() bool {
	return e.RuleName == phonyRuleName
}

// Command materializes the rule's command Expression against a temporary
// environment whose innermost frame is the edge's own bindings, next the
// rule's other bindings, then the enclosing file environment.
func (e *Edge) Command() (string, error) {
	if e.IsPhony() {
		return "", nil
	}
	cmdExpr, ok := e.rule.Command()
	if !ok {
		return "", &SemanticError{File: e.DefiningFile, Line: e.Line, Msg: "rule '" + e.RuleName + "' has no command binding"}
	}
	return cmdExpr.Expand(e.execEnv())
}

// Binding expands one of the edge's bindings by name (e.g. "description",
// "generator") against the same temporary chain Command uses. Edge-level
// bindings shadow rule-level ones.
func (e *Edge) Binding(name string) (string, error) {
	env := e.execEnv()
	if expr, ok := env.Lookup(name); ok {
		return expr.Expand(env)
	}
	return "", nil
}

// execEnv assembles the execution-time environment chain. Edge bindings
// must shadow rule bindings, which must shadow the file environment, so
// the chain is built innermost-last: file env, a frame of rule bindings,
// then a frame copying the edge's captured bindings.
func (e *Edge) execEnv() *Environment {
	ruleFrame := NewEnvironment(e.fileEnv)
	if e.rule != nil {
		for k, v := range e.rule.Bindings {
			if k == "command" {
				continue
			}
			ruleFrame.Bind(k, v)
		}
	}
	edgeFrame := NewEnvironment(ruleFrame)
	for k, v := range e.EdgeEnv.vars {
		edgeFrame.Bind(k, v)
	}
	return edgeFrame
}

// BuildDescription is the immutable result of parsing: every edge, a map
// from output PathKey to its owning edge, the default target list, and
// the build files that were read to produce it (a change to any of them
// invalidates everything built from them).
type BuildDescription struct {
	Interner *Interner
	Edges    []*Edge
	ByOutput map[PathKey]*Edge
	Defaults []PathKey
	Files    []string
}

// representation accumulates edges during parsing and freezes into a
// BuildDescription. It enforces that the set of output PathKeys is a
// strict partition: a duplicate output declaration is rejected here, at
// representation time.
type representation struct {
	interner *Interner
	edges    []*Edge
	byOutput map[PathKey]*Edge
	defaults []PathKey
	files    []string
}

func newRepresentation(interner *Interner) *representation {
	return &representation{
		interner: interner,
		byOutput: make(map[PathKey]*Edge),
	}
}

// addEdge rejects duplicate outputs and records the edge.
func (r *representation) addEdge(e *Edge) error {
	for _, o := range e.Outputs {
		if _, ok := r.byOutput[o]; ok {
			return &SemanticError{
				File: e.DefiningFile,
				Line: e.Line,
				Msg:  "duplicate output '" + r.interner.Lookup(o) + "'",
			}
		}
	}
	for _, o := range e.Outputs {
		r.byOutput[o] = e
	}
	r.edges = append(r.edges, e)
	return nil
}

func (r *representation) addDefaults(keys []PathKey) {
	r.defaults = append(r.defaults, keys...)
}

func (r *representation) addFile(path string) {
	r.files = append(r.files, path)
}

func (r *representation) freeze() *BuildDescription {
	return &BuildDescription{
		Interner: r.interner,
		Edges:    r.edges,
		ByOutput: r.byOutput,
		Defaults: r.defaults,
		Files:    r.files,
	}
}
