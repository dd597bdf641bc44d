package ninja

import "testing"

type lexStep struct {
	m    mode
	kind tokenKind
	text string
}

func runLexer(t *testing.T, input string, steps []lexStep) {
	t.Helper()
	l := newLexer(input)
	for i, s := range steps {
		tok := l.next(s.m)
		if tok.kind != s.kind {
			t.Fatalf("token %d: kind = %v, want %v", i, tok.kind, s.kind)
		}
		if s.text != "" && tok.text(input) != s.text {
			t.Fatalf("token %d: text = %q, want %q", i, tok.text(input), s.text)
		}
		// Position round-trip: the token's offset/length always slice out
		// its exact lexeme.
		if got := input[tok.offset : tok.offset+tok.length]; got != tok.text(input) {
			t.Fatalf("token %d: position round-trip mismatch: %q", i, got)
		}
	}
}

func TestLexRuleDeclaration(t *testing.T) {
	input := "rule cc\n  command = gcc -c $in\n"
	runLexer(t, input, []lexStep{
		{modeDefault, tokKeywordRule, "rule"},
		{modeDefault, tokIdentifier, "cc"},
		{modeDefault, tokNewline, ""},
		{modeDefault, tokIndent, ""},
		{modeDefault, tokIdentifier, "command"},
		{modeDefault, tokAssign, "="},
		{modeValue, tokStringPiece, "gcc -c "},
		{modeValue, tokVarRef, "in"},
		{modeValue, tokNewline, ""},
		{modeDefault, tokEOF, ""},
	})
}

func TestLexBuildLine(t *testing.T) {
	input := "build foo.o extra$ file: cc foo.c | dep.h || order.h\n"
	runLexer(t, input, []lexStep{
		{modeDefault, tokKeywordBuild, "build"},
		{modePathList, tokPathPiece, "foo.o"},
		{modePathList, tokPathPiece, "extra$ file"},
		{modePathList, tokColon, ":"},
		{modeDefault, tokIdentifier, "cc"},
		{modePathList, tokPathPiece, "foo.c"},
		{modePathList, tokPipe, "|"},
		{modePathList, tokPathPiece, "dep.h"},
		{modePathList, tokPipe2, "||"},
		{modePathList, tokPathPiece, "order.h"},
		{modePathList, tokNewline, ""},
	})
}

func TestLexVarRefsInValue(t *testing.T) {
	input := "x = ${foo}mid$bar\n"
	runLexer(t, input, []lexStep{
		{modeDefault, tokIdentifier, "x"},
		{modeDefault, tokAssign, "="},
		{modeValue, tokVarRef, "foo"},
		{modeValue, tokStringPiece, "mid"},
		{modeValue, tokVarRef, "bar"},
		{modeValue, tokNewline, ""},
	})
}

func TestLexLineContinuation(t *testing.T) {
	input := "x = one $\n    two\n"
	runLexer(t, input, []lexStep{
		{modeDefault, tokIdentifier, "x"},
		{modeDefault, tokAssign, "="},
		{modeValue, tokStringPiece, "one "},
		{modeValue, tokStringPiece, "two"},
		{modeValue, tokNewline, ""},
	})
}

func TestLexPathVarRefs(t *testing.T) {
	input := "build $outdir/a.o: cc ${srcdir}/a.c\n"
	runLexer(t, input, []lexStep{
		{modeDefault, tokKeywordBuild, "build"},
		{modePathList, tokVarRef, "outdir"},
		{modePathList, tokPathPiece, "/a.o"},
		{modePathList, tokColon, ":"},
		{modeDefault, tokIdentifier, "cc"},
		{modePathList, tokVarRef, "srcdir"},
		{modePathList, tokPathPiece, "/a.c"},
		{modePathList, tokNewline, ""},
	})
}

func TestLexComment(t *testing.T) {
	input := "# a comment\nx = 1\n"
	runLexer(t, input, []lexStep{
		{modeDefault, tokComment, "# a comment"},
		{modeDefault, tokNewline, ""},
		{modeDefault, tokIdentifier, "x"},
	})
}

func TestLexCRLF(t *testing.T) {
	input := "x = 1\r\ny = 2\r\n"
	runLexer(t, input, []lexStep{
		{modeDefault, tokIdentifier, "x"},
		{modeDefault, tokAssign, "="},
		{modeValue, tokStringPiece, "1"},
		{modeValue, tokNewline, ""},
		{modeDefault, tokIdentifier, "y"},
	})
}

func TestLexErrorRecovery(t *testing.T) {
	input := "x = ${unterminated\ny = 2\n"
	l := newLexer(input)
	if tok := l.next(modeDefault); tok.kind != tokIdentifier {
		t.Fatalf("kind = %v, want identifier", tok.kind)
	}
	if tok := l.next(modeDefault); tok.kind != tokAssign {
		t.Fatalf("kind = %v, want '='", tok.kind)
	}
	tok := l.next(modeValue)
	if tok.kind != tokError {
		t.Fatalf("kind = %v, want error", tok.kind)
	}
	if tok.errmsg == "" || tok.line != 1 {
		t.Fatalf("error token missing diagnostics: %+v", tok)
	}
	// The stream resumes at the next line instead of aborting.
	if tok := l.next(modeDefault); tok.kind != tokNewline {
		t.Fatalf("kind = %v, want newline after recovery", tok.kind)
	}
	if tok := l.next(modeDefault); tok.kind != tokIdentifier || tok.text(input) != "y" {
		t.Fatalf("got %v %q, want identifier y", tok.kind, tok.text(input))
	}
}

func TestLexStrayControlCharacter(t *testing.T) {
	input := "\x01bad\nx = 1\n"
	l := newLexer(input)
	tok := l.next(modeDefault)
	if tok.kind != tokError {
		t.Fatalf("kind = %v, want error", tok.kind)
	}
	if tok := l.next(modeDefault); tok.kind != tokNewline {
		t.Fatalf("kind = %v, want newline", tok.kind)
	}
	if tok := l.next(modeDefault); tok.kind != tokIdentifier || tok.text(input) != "x" {
		t.Fatalf("got %v, want identifier x", tok.kind)
	}
}

func TestLexPositions(t *testing.T) {
	input := "a = 1\nbuild x: r\n"
	l := newLexer(input)
	tok := l.next(modeDefault)
	if tok.line != 1 || tok.col != 1 {
		t.Fatalf("a at %d:%d, want 1:1", tok.line, tok.col)
	}
	l.next(modeDefault) // =
	l.next(modeValue)   // 1
	l.next(modeValue)   // newline
	tok = l.next(modeDefault)
	if tok.kind != tokKeywordBuild || tok.line != 2 || tok.col != 1 {
		t.Fatalf("build at %d:%d, want 2:1", tok.line, tok.col)
	}
	tok = l.next(modePathList)
	if tok.text(input) != "x" || tok.line != 2 || tok.col != 7 {
		t.Fatalf("x at %d:%d, want 2:7", tok.line, tok.col)
	}
}
