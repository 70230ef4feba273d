package transform

import "strings"

// RootIdentifier returns the leading identifier of an assignable expression
// made of an identifier followed by .member and [index] accessors, such as
// user.contactDetails[i].email. Whitespace and comments may separate the
// accessors. Anything else is not an lvalue.
func RootIdentifier(expr string) (string, bool) {
	start, ok := skipSpace(expr, 0)
	if !ok {
		return "", false
	}
	end := identEnd(expr, start)
	if end == start {
		return "", false
	}
	root := expr[start:end]

	for i := end; ; {
		if i, ok = skipSpace(expr, i); !ok {
			return "", false
		}
		if i >= len(expr) {
			break
		}

		switch expr[i] {
		case '.':
			from, ok := skipSpace(expr, i+1)
			if !ok {
				return "", false
			}
			next := identEnd(expr, from)
			if next == from {
				return "", false
			}
			i = next
		case '[':
			next := closeBracket(expr, i)
			if next < 0 || next == i+1 {
				return "", false
			}
			i = next + 1
		default:
			return "", false
		}
	}

	return root, true
}

// skipSpace skips whitespace and comments starting at i. It fails on an
// unterminated block comment and on a line comment that runs to the end of
// s, since the generated handler appends code after the expression.
func skipSpace(s string, i int) (int, bool) {
	for i < len(s) {
		switch {
		case isSpace(s[i]):
			i++
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return i, false
			}
			i += 2 + end + 2
		case strings.HasPrefix(s[i:], "//"):
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				return i, false
			}
			i += end + 1
		default:
			return i, true
		}
	}
	return i, true
}

// identEnd returns the end of the identifier starting at i, or i if there
// is none
func identEnd(s string, i int) int {
	if i >= len(s) || !isIdentStart(s[i]) {
		return i
	}
	j := i + 1
	for j < len(s) && (isIdentStart(s[j]) || (s[j] >= '0' && s[j] <= '9')) {
		j++
	}
	return j
}

// closeBracket returns the index of the ']' matching the '[' at open
func closeBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
			if depth == 0 {
				if c != ']' {
					return -1
				}
				return i
			}
		case '"', '\'', '`':
			for i++; i < len(s) && s[i] != c; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		}
	}
	return -1
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
