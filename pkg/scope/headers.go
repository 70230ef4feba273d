package scope

import "strings"

// Binding is an identifier introduced by a block header
type Binding struct {
	Name      string
	Construct Construct
}

// EachHeader is the decomposed header of {#each <collection> as <context>, <index> (<key>)}
type EachHeader struct {
	Collection string
	Context    string
	Index      string
	Key        string
}

// Introduced returns the identifiers a block branch brings into scope.
// Clauses that bind nothing, like {:else}, return nil.
func Introduced(block, tag string) []Binding {
	var out []Binding
	add := func(names []string, c Construct) {
		for _, n := range names {
			out = append(out, Binding{Name: n, Construct: c})
		}
	}

	switch block {
	case "each":
		h, ok := ParseEach(tag)
		if !ok {
			return nil
		}
		add(PatternNames(h.Context), Each)
		if IsIdentifier(h.Index) {
			add([]string{h.Index}, EachIndex)
		}

	case "await":
		if body, ok := tagBody(tag, "{#await"); ok {
			for _, kw := range []string{"then", "catch"} {
				if i := lastKeyword(body, kw); i >= 0 {
					add(PatternNames(body[i+len(kw):]), Await)
					break
				}
			}
		} else if body, ok := tagBody(tag, "{:then"); ok {
			add(PatternNames(body), Await)
		} else if body, ok := tagBody(tag, "{:catch"); ok {
			add(PatternNames(body), Await)
		}

	case "snippet":
		body, ok := tagBody(tag, "{#snippet")
		if !ok {
			return nil
		}
		open := strings.IndexByte(body, '(')
		closing := strings.LastIndexByte(body, ')')
		if open < 0 || closing < open {
			return nil
		}
		for _, param := range splitTopLevel(body[open+1:closing], ',') {
			add(PatternNames(param), Snippet)
		}
	}

	return out
}

// ParseEach decomposes an {#each} opening tag
func ParseEach(tag string) (EachHeader, bool) {
	body, ok := tagBody(tag, "{#each")
	if !ok {
		return EachHeader{}, false
	}

	i := lastKeyword(body, "as")
	if i < 0 {
		return EachHeader{Collection: strings.TrimSpace(body)}, true
	}

	h := EachHeader{Collection: strings.TrimSpace(body[:i])}
	rest := strings.TrimSpace(body[i+2:])

	if strings.HasSuffix(rest, ")") {
		if open := matchingOpen(rest, len(rest)-1); open > 0 {
			h.Key = strings.TrimSpace(rest[open+1 : len(rest)-1])
			rest = strings.TrimSpace(rest[:open])
		}
	}

	parts := splitTopLevel(rest, ',')
	h.Context = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		h.Index = strings.TrimSpace(parts[1])
	}

	return h, true
}

// PatternNames returns the names bound by a declaration pattern: a plain
// identifier, or an object/array destructuring pattern with optional
// defaults and rest elements
func PatternNames(pattern string) []string {
	var names []string
	s := pattern

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = skipQuoted(s, i)
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := s[i:j]
			k := j
			for k < len(s) && isSpace(s[k]) {
				k++
			}
			switch {
			case k < len(s) && s[k] == ':':
				// property key, the bound name follows
				i = k + 1
			case k < len(s) && s[k] == '=':
				names = append(names, word)
				i = skipDefault(s, k+1)
			default:
				names = append(names, word)
				i = j
			}
		default:
			i++
		}
	}

	return names
}

// IsIdentifier reports whether s is a single JS identifier
func IsIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

// tagBody strips prefix and the closing brace from a block tag
func tagBody(tag, prefix string) (string, bool) {
	if !strings.HasPrefix(tag, prefix) || !strings.HasSuffix(tag, "}") {
		return "", false
	}
	body := tag[len(prefix) : len(tag)-1]
	if body != "" && !isSpace(body[0]) {
		// {#eachx} is not {#each}
		return "", false
	}
	return body, true
}

// lastKeyword finds the last whitespace-delimited kw outside of brackets
// and strings
func lastKeyword(s, kw string) int {
	found := -1
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' || c == '\'' || c == '`':
			i = skipQuoted(s, i) - 1
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case depth == 0 && i > 0 && isSpace(s[i-1]) && strings.HasPrefix(s[i:], kw) &&
			i+len(kw) < len(s) && isSpace(s[i+len(kw)]):
			found = i
		}
	}
	return found
}

// splitTopLevel splits s on sep outside of brackets and strings
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' || c == '\'' || c == '`':
			i = skipQuoted(s, i) - 1
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// matchingOpen returns the index of the '(' matching the ')' at end
func matchingOpen(s string, end int) int {
	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipDefault skips a default value expression up to the next top-level
// comma or an unmatched closing bracket
func skipDefault(s string, i int) int {
	depth := 0
	for ; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' || c == '\'' || c == '`':
			i = skipQuoted(s, i) - 1
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth == 0 {
				return i
			}
			depth--
		case c == ',' && depth == 0:
			return i
		}
	}
	return i
}

// skipQuoted returns the index just past the string literal starting at i
func skipQuoted(s string, i int) int {
	quote := s[i]
	for i++; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
