// Package expand performs the textual side of Ninja's variable
// substitution: turning a byte sequence containing $name, ${name}, $$ and
// $  escapes into plain bytes by asking a Resolver for the value of each
// variable reference it finds.
//
// This is a close cousin of a $-scanning expander found in build-file
// tools in general: it tracks whether it is inside a ${...} reference so
// that form and bare $name both resolve to the same callback, and it treats $$ and $<space> as escapes
// rather than variable references.
package expand

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

func identStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

func identInner(b byte) bool {
	return identStart(b) || (b >= '0' && b <= '9') || b == '.' || b == '-'
}

// Resolver looks up the expanded value of a variable reference.
type Resolver func(name string) (value string, err error)

// Expand replaces every $name, ${name}, $$  and $<space> in s, calling
// rvar to resolve each bare variable reference.
func Expand(s string, rvar Resolver) (string, error) {
	return expand(bufio.NewReader(strings.NewReader(s)), rvar)
}

func expand(r *bufio.Reader, rvar Resolver) (string, error) {
	buf := &bytes.Buffer{}
	namebuf := &bytes.Buffer{}

	inBraces := false
	inName := false

	var expandErr error

	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", err
		}

		switch {
		case b == '$' && !inBraces && !inName:
			p, err := r.Peek(1)
			if err == io.EOF {
				buf.WriteByte('$')
				continue
			} else if err != nil {
				return "", err
			}
			switch {
			case p[0] == '$':
				r.ReadByte()
				buf.WriteByte('$')
			case p[0] == ' ':
				r.ReadByte()
				buf.WriteByte(' ')
			case p[0] == ':':
				r.ReadByte()
				buf.WriteByte(':')
			case p[0] == '{':
				r.ReadByte()
				inBraces = true
			case identStart(p[0]):
				inName = true
			default:
				buf.WriteByte('$')
			}
			continue

		case inBraces && b == '}':
			inBraces = false
			value, err := rvar(namebuf.String())
			if err != nil && expandErr == nil {
				expandErr = err
			}
			buf.WriteString(value)
			namebuf.Reset()
			continue

		case inBraces:
			namebuf.WriteByte(b)
			continue

		case inName && identInner(b):
			namebuf.WriteByte(b)
			p, err := r.Peek(1)
			if err != nil && err != io.EOF {
				return "", err
			}
			if len(p) == 0 || !identInner(p[0]) {
				inName = false
				value, err := rvar(namebuf.String())
				if err != nil && expandErr == nil {
					expandErr = err
				}
				buf.WriteString(value)
				namebuf.Reset()
			}
			continue
		}

		buf.WriteByte(b)
	}

	if inName {
		value, err := rvar(namebuf.String())
		if err != nil && expandErr == nil {
			expandErr = err
		}
		buf.WriteString(value)
	}

	return buf.String(), expandErr
}
