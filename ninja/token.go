package ninja

import "fmt"

// tokenKind classifies a lexeme. The lexer never owns bytes: every token
// refers back into the shared buffer by offset and length.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokError
	tokNewline
	tokIndent
	tokComment

	tokIdentifier
	tokPathPiece
	tokStringPiece
	tokVarRef

	tokAssign // =
	tokColon  // :
	tokPipe   // |
	tokPipe2  // ||

	tokKeywordRule
	tokKeywordBuild
	tokKeywordInclude
	tokKeywordSubninja
	tokKeywordDefault
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "EOF"
	case tokError:
		return "error"
	case tokNewline:
		return "newline"
	case tokIndent:
		return "indent"
	case tokComment:
		return "comment"
	case tokIdentifier:
		return "identifier"
	case tokPathPiece:
		return "path"
	case tokStringPiece:
		return "string"
	case tokVarRef:
		return "variable reference"
	case tokAssign:
		return "'='"
	case tokColon:
		return "':'"
	case tokPipe:
		return "'|'"
	case tokPipe2:
		return "'||'"
	case tokKeywordRule:
		return "'rule'"
	case tokKeywordBuild:
		return "'build'"
	case tokKeywordInclude:
		return "'include'"
	case tokKeywordSubninja:
		return "'subninja'"
	case tokKeywordDefault:
		return "'default'"
	}
	return "unknown"
}

var keywords = map[string]tokenKind{
	"rule":     tokKeywordRule,
	"build":    tokKeywordBuild,
	"include":  tokKeywordInclude,
	"subninja": tokKeywordSubninja,
	"default":  tokKeywordDefault,
}

// token is a positioned lexeme. offset/length index into the lexer's
// input buffer; text() dereferences them lazily so tokens stay zero-copy
// until a caller actually needs the bytes.
type token struct {
	kind   tokenKind
	offset int
	length int
	line   int
	col    int
	errmsg string // set only when kind == tokError
}

func (t token) text(buf string) string {
	return buf[t.offset : t.offset+t.length]
}

func (t token) String() string {
	return fmt.Sprintf("%s@%d:%d", t.kind, t.line, t.col)
}
