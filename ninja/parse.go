package ninja

import (
	"os"
	"path/filepath"
	"strings"
)

// FileLoader reads the contents of a build file by path, used to follow
// include and subninja directives. It is distinct from the FileSystem
// accessor in fs.go, which only stats mtimes for the rebuilder.
type FileLoader interface {
	ReadFile(path string) (string, error)
}

// OSFileLoader reads build files straight off disk.
type OSFileLoader struct{}

func (OSFileLoader) ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", &IOError{Path: path, Err: err}
	}
	return string(b), nil
}

// maxParseErrors bounds the collect-and-continue policy: after this many
// parse errors the parser gives up on the whole build.
const maxParseErrors = 20

// Parser drives the lexer and evaluates a chain of build files into a
// BuildDescription. It is deliberately stateful: parsing an edge or a
// binding has the side effect of mutating the active Environment/rule
// scope and feeding the representation builder, so no separate AST is
// ever materialized.
type Parser struct {
	loader   FileLoader
	interner *Interner
	repr     *representation
	errs     ErrorList
	predefs  [][2]string

	// per-file parse state, swapped on include/subninja recursion
	l       *lexer
	buf     string
	path    string
	pending *token
	env     *Environment
	rules   *ruleScope
}

// NewParser creates a parser that will read build files through loader
// and intern paths through interner.
func NewParser(loader FileLoader, interner *Interner) *Parser {
	return &Parser{loader: loader, interner: interner, repr: newRepresentation(interner)}
}

// Predefine binds name to an already-expanded value in the top-level
// environment before parsing begins, shadowable by the build file itself.
// Used for command-line "name=value" assignments.
func (p *Parser) Predefine(name, value string) {
	p.predefs = append(p.predefs, [2]string{name, value})
}

// ParseFile parses path as the top-level build file and returns the
// frozen BuildDescription. Lexer/parser errors are collected; if any
// were reported the build refuses to proceed.
func (p *Parser) ParseFile(path string) (*BuildDescription, error) {
	env := NewEnvironment(nil)
	for _, pd := range p.predefs {
		env.Bind(pd[0], Literal(pd[1]))
	}
	rules := newRuleScope(nil)
	if err := p.parseFileInto(path, env, rules); err != nil {
		return nil, err
	}
	if p.errs.HasErrors() {
		return nil, &p.errs
	}
	return p.repr.freeze(), nil
}

// parseFileInto reads and parses one file under the given environment and
// rule scope. include calls this with the caller's own env/rules (writes
// leak back); subninja calls this with forked child frames.
func (p *Parser) parseFileInto(path string, env *Environment, rules *ruleScope) error {
	content, err := p.loader.ReadFile(path)
	if err != nil {
		return err
	}
	p.repr.addFile(path)

	// Save and restore the enclosing file's parse state so recursion is
	// simply a nested call, not an explicit stack.
	savedL, savedBuf, savedPath, savedPending, savedEnv, savedRules :=
		p.l, p.buf, p.path, p.pending, p.env, p.rules
	defer func() {
		p.l, p.buf, p.path, p.pending, p.env, p.rules =
			savedL, savedBuf, savedPath, savedPending, savedEnv, savedRules
	}()

	p.l = newLexer(content)
	p.buf = content
	p.path = path
	p.pending = nil
	p.env = env
	p.rules = rules

	return p.parseStatements()
}

func (p *Parser) next(m mode) token {
	if p.pending != nil {
		t := *p.pending
		p.pending = nil
		return t
	}
	return p.l.next(m)
}

func (p *Parser) unread(t token) {
	p.pending = &t
}

func (p *Parser) text(t token) string {
	return t.text(p.buf)
}

func (p *Parser) parseErrorAt(t token, context, expected string) {
	p.errs.Add(&ParseError{
		File: p.path, Line: t.line, Col: t.col,
		Context: context,
		Msg:     "expected " + expected + " but found " + t.kind.String(),
		Excerpt: p.lineExcerpt(t),
	})
}

// lineExcerpt returns the text of the line the token sits on, for the
// one-line excerpt every parse diagnostic carries.
func (p *Parser) lineExcerpt(t token) string {
	start := t.offset
	if start > len(p.buf) {
		start = len(p.buf)
	}
	for start > 0 && p.buf[start-1] != '\n' {
		start--
	}
	end := start
	for end < len(p.buf) && p.buf[end] != '\n' {
		end++
	}
	return strings.TrimRight(p.buf[start:end], "\r")
}

// skipToNewline discards tokens until past the next newline, the parser's
// recovery point after a reported error.
func (p *Parser) skipToNewline() {
	for {
		t := p.next(modeDefault)
		if t.kind == tokNewline || t.kind == tokEOF {
			return
		}
	}
}

func (p *Parser) parseStatements() error {
	for {
		if len(p.errs.Errs) >= maxParseErrors {
			return &p.errs
		}
		t := p.next(modeDefault)
		switch t.kind {
		case tokEOF:
			return nil
		case tokNewline, tokComment:
			continue
		case tokIdentifier:
			p.parseBinding(t)
		case tokKeywordRule:
			p.parseRule()
		case tokKeywordBuild:
			p.parseEdge()
		case tokKeywordDefault:
			p.parseDefault()
		case tokKeywordInclude:
			if err := p.parseIncludeLike(false); err != nil {
				return err
			}
		case tokKeywordSubninja:
			if err := p.parseIncludeLike(true); err != nil {
				return err
			}
		case tokError:
			p.errs.Add(&LexError{File: p.path, Line: t.line, Col: t.col, Msg: t.errmsg})
		case tokIndent:
			p.parseErrorAt(t, "parsing a build file", "a rule, build edge, binding, default, include, or subninja")
			p.skipToNewline()
		default:
			p.parseErrorAt(t, "parsing a build file", "a rule, build edge, binding, default, include, or subninja")
			p.skipToNewline()
		}
	}
}

// readValueExpr consumes a VALUE production: one logical string
// continuing to the newline, as a sequence of literal/var-ref segments.
// It returns the expression and the terminating token (newline/eof).
func (p *Parser) readValueExpr() (Expression, token) {
	var expr Expression
	for {
		t := p.next(modeValue)
		switch t.kind {
		case tokStringPiece:
			expr = append(expr, segment{kind: segLiteral, literal: unescapeDollar(p.text(t))})
		case tokVarRef:
			expr = append(expr, segment{kind: segVarRef, varName: p.text(t)})
		case tokNewline, tokEOF:
			return expr, t
		case tokError:
			p.errs.Add(&LexError{File: p.path, Line: t.line, Col: t.col, Msg: t.errmsg})
			return expr, t
		default:
			// shouldn't happen in well-formed input; treat as terminator
			return expr, t
		}
	}
}

// readPathList consumes a PATHLIST production: a sequence of
// whitespace-delimited words, each itself a run of PathPiece/VarRef
// segments, stopping at ':', '|', '||', newline, or EOF. Adjacent pieces
// with no intervening whitespace are merged into a single Expression
// "word": the bytes between two tokens' offsets are checked for blanks,
// the "$", "${" and "}" of variable references not counting.
func (p *Parser) readPathList() ([]Expression, token) {
	var words []Expression
	var cur Expression
	have := false
	prevEnd := -1

	for {
		t := p.next(modePathList)
		if t.kind == tokPathPiece || t.kind == tokVarRef {
			if have && strings.ContainsAny(p.buf[prevEnd:t.offset], " \t\r\n") {
				words = append(words, cur)
				cur = nil
				have = false
			}
			if t.kind == tokPathPiece {
				cur = append(cur, segment{kind: segLiteral, literal: unescapeDollar(p.text(t))})
			} else {
				cur = append(cur, segment{kind: segVarRef, varName: p.text(t)})
			}
			have = true
			prevEnd = t.offset + t.length
			continue
		}
		if have {
			words = append(words, cur)
		}
		return words, t
	}
}

func joinKeys(interner *Interner, keys []PathKey) string {
	strs := make([]string, len(keys))
	for i, k := range keys {
		strs[i] = interner.Lookup(k)
	}
	return strings.Join(strs, " ")
}

func unescapeDollar(s string) string {
	if strings.IndexByte(s, '$') < 0 {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && (s[i+1] == '$' || s[i+1] == ' ' || s[i+1] == ':') {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// parseBindingRHS reads the "'=' VALUE NEWLINE" rest of a top-level
// "IDENT '=' VALUE NEWLINE" binding and returns the unexpanded
// Expression; parseBinding, its caller, expands it immediately.
func (p *Parser) parseBindingRHS(nameTok token) (name string, expr Expression, ok bool) {
	name = p.text(nameTok)
	eq := p.next(modeDefault)
	if eq.kind != tokAssign {
		p.parseErrorAt(eq, "reading a variable assignment", "'='")
		p.skipToNewline()
		return name, nil, false
	}
	expr, _ = p.readValueExpr()
	return name, expr, true
}

// parseBinding handles a top-level assignment: eager expansion against
// the file environment, immediately visible to subsequent statements.
func (p *Parser) parseBinding(nameTok token) {
	name, expr, ok := p.parseBindingRHS(nameTok)
	if !ok {
		return
	}
	val, err := expr.Expand(p.env)
	if err != nil {
		p.errs.Add(&SemanticError{File: p.path, Line: nameTok.line, Msg: err.Error()})
		return
	}
	p.env.Bind(name, Literal(val))
}

// parseRule handles "'rule' IDENT NEWLINE (INDENT binding)*". Bindings
// stay unevaluated Expressions for the life of the build.
func (p *Parser) parseRule() {
	nameTok := p.next(modeDefault)
	if nameTok.kind != tokIdentifier {
		p.parseErrorAt(nameTok, "reading a rule name", "an identifier")
		p.skipToNewline()
		return
	}
	nl := p.next(modeDefault)
	if nl.kind != tokNewline {
		p.parseErrorAt(nl, "reading a rule declaration", "a newline")
		p.skipToNewline()
		return
	}

	rule := &Rule{Name: p.text(nameTok), Bindings: make(map[string]Expression)}
	for {
		t := p.next(modeDefault)
		if t.kind != tokIndent {
			p.unread(t)
			break
		}
		bnameTok := p.next(modeDefault)
		if bnameTok.kind != tokIdentifier {
			p.parseErrorAt(bnameTok, "reading a rule binding", "an identifier")
			p.skipToNewline()
			continue
		}
		eq := p.next(modeDefault)
		if eq.kind != tokAssign {
			p.parseErrorAt(eq, "reading a rule binding", "'='")
			p.skipToNewline()
			continue
		}
		expr, _ := p.readValueExpr()
		rule.Bindings[p.text(bnameTok)] = expr
	}

	if rule.Name == phonyRuleName {
		p.errs.Add(&SemanticError{File: p.path, Line: nameTok.line, Msg: "'phony' is a built-in rule and cannot be redefined"})
		return
	}
	if err := p.rules.define(rule); err != nil {
		p.errs.Add(&SemanticError{File: p.path, Line: nameTok.line, Msg: err.Error()})
	}
}

// parseEdge handles the full "build" production, including the eager
// expansion and capture of indented edge-scope bindings into edge_env.
func (p *Parser) parseEdge() {
	outWords, t := p.readPathList()
	if t.kind != tokColon {
		p.parseErrorAt(t, "reading a build edge's outputs", "':'")
		p.skipToNewline()
		return
	}

	ruleTok := p.next(modeDefault)
	if ruleTok.kind != tokIdentifier {
		p.parseErrorAt(ruleTok, "reading a build edge's rule name", "a rule name")
		p.skipToNewline()
		return
	}
	ruleName := p.text(ruleTok)

	explicitWords, t := p.readPathList()
	var implicitWords, orderOnlyWords []Expression
	if t.kind == tokPipe {
		implicitWords, t = p.readPathList()
	}
	if t.kind == tokPipe2 {
		orderOnlyWords, t = p.readPathList()
	}
	if t.kind != tokNewline && t.kind != tokEOF {
		p.parseErrorAt(t, "reading a build edge", "a newline")
		p.skipToNewline()
		return
	}

	rule, ok := p.rules.lookup(ruleName)
	if !ok {
		p.errs.Add(&SemanticError{File: p.path, Line: ruleTok.line, Msg: "unknown rule '" + ruleName + "'"})
		return
	}

	// Output/input path lists are expanded against the parse-time
	// environment active at the edge (the enclosing file's env), before
	// any of the edge's own indented bindings exist.
	intern := func(words []Expression) ([]PathKey, error) {
		keys := make([]PathKey, 0, len(words))
		for _, w := range words {
			s, err := w.Expand(p.env)
			if err != nil {
				return nil, err
			}
			keys = append(keys, p.interner.Intern(s))
		}
		return keys, nil
	}

	outs, err := intern(outWords)
	if err != nil {
		p.errs.Add(&SemanticError{File: p.path, Line: t.line, Msg: err.Error()})
		return
	}
	if len(outs) == 0 {
		p.errs.Add(&SemanticError{File: p.path, Line: t.line, Msg: "build edge has no outputs"})
		return
	}
	explicit, err := intern(explicitWords)
	if err != nil {
		p.errs.Add(&SemanticError{File: p.path, Line: t.line, Msg: err.Error()})
		return
	}
	implicit, err := intern(implicitWords)
	if err != nil {
		p.errs.Add(&SemanticError{File: p.path, Line: t.line, Msg: err.Error()})
		return
	}
	orderOnly, err := intern(orderOnlyWords)
	if err != nil {
		p.errs.Add(&SemanticError{File: p.path, Line: t.line, Msg: err.Error()})
		return
	}

	// Edge-scope bindings: the indented lines following "build". Each is
	// expanded immediately against the environment active at the edge
	// (edgeEnv, which falls through to p.env), then stored as already-
	// expanded bytes. $in and $out name the edge's explicit inputs and
	// outputs, so rule commands can reference them.
	edgeEnv := NewEnvironment(p.env)
	edgeEnv.Bind("out", Literal(joinKeys(p.interner, outs)))
	edgeEnv.Bind("in", Literal(joinKeys(p.interner, explicit)))
	for {
		nt := p.next(modeDefault)
		if nt.kind != tokIndent {
			p.unread(nt)
			break
		}
		bnameTok := p.next(modeDefault)
		if bnameTok.kind != tokIdentifier {
			p.parseErrorAt(bnameTok, "reading a build edge's bindings", "an identifier")
			p.skipToNewline()
			continue
		}
		eq := p.next(modeDefault)
		if eq.kind != tokAssign {
			p.parseErrorAt(eq, "reading a build edge's bindings", "'='")
			p.skipToNewline()
			continue
		}
		expr, _ := p.readValueExpr()
		val, err := expr.Expand(edgeEnv)
		if err != nil {
			p.errs.Add(&SemanticError{File: p.path, Line: bnameTok.line, Msg: err.Error()})
			continue
		}
		edgeEnv.Bind(p.text(bnameTok), Literal(val))
	}

	edge := &Edge{
		Title:        p.interner.Lookup(outs[0]),
		Outputs:      outs,
		Explicit:     explicit,
		Implicit:     implicit,
		OrderOnly:    orderOnly,
		RuleName:     ruleName,
		rule:         rule,
		EdgeEnv:      edgeEnv,
		fileEnv:      p.env,
		DefiningFile: p.path,
		Line:         ruleTok.line,
	}
	if err := p.repr.addEdge(edge); err != nil {
		p.errs.Add(err)
	}
}

// parseDefault handles "'default' PATHLIST NEWLINE".
func (p *Parser) parseDefault() {
	words, t := p.readPathList()
	if t.kind != tokNewline && t.kind != tokEOF {
		p.parseErrorAt(t, "reading a default statement", "a newline")
		p.skipToNewline()
		return
	}
	keys := make([]PathKey, 0, len(words))
	for _, w := range words {
		s, err := w.Expand(p.env)
		if err != nil {
			p.errs.Add(&SemanticError{File: p.path, Line: t.line, Msg: err.Error()})
			return
		}
		keys = append(keys, p.interner.Intern(s))
	}
	p.repr.addDefaults(keys)
}

// parseIncludeLike handles both "include VALUE NEWLINE" and
// "subninja VALUE NEWLINE". include parses in the current env/rules
// (writes leak back); subninja forks a child env/rule scope (writes do
// not leak back, and rule redefinitions there don't conflict with the
// parent's).
func (p *Parser) parseIncludeLike(isSubninja bool) error {
	expr, t := p.readValueExpr()
	if t.kind != tokNewline && t.kind != tokEOF {
		p.parseErrorAt(t, "reading an include/subninja path", "a newline")
		p.skipToNewline()
		return nil
	}
	rel, err := expr.Expand(p.env)
	if err != nil {
		p.errs.Add(&SemanticError{File: p.path, Line: t.line, Msg: err.Error()})
		return nil
	}

	target := rel
	if !filepath.IsAbs(rel) {
		target = filepath.Join(filepath.Dir(p.path), rel)
	}

	childEnv, childRules := p.env, p.rules
	if isSubninja {
		childEnv = NewEnvironment(p.env)
		childRules = newRuleScope(p.rules)
	}

	if err := p.parseFileInto(target, childEnv, childRules); err != nil {
		if _, ok := err.(*IOError); ok {
			p.errs.Add(err)
			return nil
		}
		return err
	}
	return nil
}
