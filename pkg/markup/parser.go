package markup

import (
	"fmt"
	"strings"
)

// Parser is a recursive descent parser for component templates. It keeps
// every byte of the input so that Render(Parse(src)) == src.
type Parser struct {
	input    string
	pos      int
	line     int
	col      int
	filename string
}

type mark struct {
	pos, line, col int
}

// NewParser creates a new template parser
func NewParser(filename, input string) *Parser {
	return &Parser{
		input:    input,
		pos:      0,
		line:     1,
		col:      1,
		filename: filename,
	}
}

// Parse parses src into a Document
func Parse(filename, src string) (*Document, error) {
	return NewParser(filename, src).Parse()
}

// Parse parses the entire template
func (p *Parser) Parse() (*Document, error) {
	nodes, err := p.parseNodes()
	if err != nil {
		return nil, err
	}

	if p.pos < len(p.input) {
		// parseNodes only stops early on a closing construct
		switch {
		case p.peek("</"):
			return nil, p.error(fmt.Sprintf("unexpected closing tag </%s>", p.lookaheadName(2)))
		case p.peek("{/"):
			return nil, p.error(fmt.Sprintf("unexpected {/%s} without matching block", p.lookaheadName(2)))
		default:
			return nil, p.error(fmt.Sprintf("unexpected {:%s} outside of a block", p.lookaheadName(2)))
		}
	}

	return &Document{
		File:  p.filename,
		Nodes: nodes,
	}, nil
}

// parseNodes parses a sequence of nodes until EOF, a closing tag, a block
// clause or a block end
func (p *Parser) parseNodes() ([]Node, error) {
	var nodes []Node

	for p.pos < len(p.input) {
		switch {
		case p.peek("<!--"):
			node, err := p.parseComment()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		case p.peek("</"):
			return nodes, nil
		case p.peek("<!"):
			node, err := p.parseDeclaration()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		case p.peek("<") && p.isTagStart(p.pos+1):
			node, err := p.parseElement()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		case p.peek("{/") || p.peek("{:"):
			return nodes, nil
		case p.peek("{#"):
			node, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		case p.peek("{"):
			start := p.position()
			content, err := p.scanExpression()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &Expression{
				Content: content,
				Span:    Span{Start: start, End: p.position()},
			})
		default:
			nodes = append(nodes, p.parseText())
		}
	}

	return nodes, nil
}

// parseText parses plain text until the next tag or mustache. A '<' that
// does not start a tag is text.
func (p *Parser) parseText() *Text {
	start := p.pos

	for p.pos < len(p.input) {
		if p.pos > start && p.atMarkup() {
			break
		}
		p.advance()
	}

	return &Text{Content: p.input[start:p.pos]}
}

func (p *Parser) atMarkup() bool {
	switch p.input[p.pos] {
	case '{':
		return true
	case '<':
		if p.pos+1 >= len(p.input) {
			return false
		}
		next := p.input[p.pos+1]
		return next == '/' || next == '!' || isLetter(next)
	}
	return false
}

func (p *Parser) parseComment() (*Raw, error) {
	start := p.mark()
	end := strings.Index(p.input[p.pos+4:], "-->")
	if end < 0 {
		return nil, p.errorAt(start, "unterminated comment")
	}
	return &Raw{Content: p.take(4 + end + 3)}, nil
}

func (p *Parser) parseDeclaration() (*Raw, error) {
	start := p.mark()
	end := strings.IndexByte(p.input[p.pos:], '>')
	if end < 0 {
		return nil, p.errorAt(start, "unterminated declaration")
	}
	return &Raw{Content: p.take(end + 1)}, nil
}

// parseElement parses an element, its attributes, children and closing tag
func (p *Parser) parseElement() (*Element, error) {
	start := p.mark()
	startPos := p.position()
	p.advance() // <

	el := &Element{Name: p.parseTagName()}

	for {
		ws := p.parseWhitespace()
		if p.pos >= len(p.input) {
			return nil, p.errorAt(start, fmt.Sprintf("unterminated tag <%s>", el.Name))
		}
		if p.consume("/>") {
			el.Trailing = ws
			el.SelfClosing = true
			el.Span = Span{Start: startPos, End: p.position()}
			return el, nil
		}
		if p.consume(">") {
			el.Trailing = ws
			break
		}

		attr, err := p.parseAttribute(ws)
		if err != nil {
			return nil, err
		}
		el.Attrs = append(el.Attrs, attr)
	}

	if el.IsVoid() {
		el.Span = Span{Start: startPos, End: p.position()}
		return el, nil
	}

	if el.IsRawText() {
		end := indexFold(p.input[p.pos:], "</"+el.Name)
		if end < 0 {
			return nil, p.errorAt(start, fmt.Sprintf("unclosed element <%s>", el.Name))
		}
		if end > 0 {
			el.Children = []Node{&Raw{Content: p.take(end)}}
		}
	} else {
		children, err := p.parseNodes()
		if err != nil {
			return nil, err
		}
		el.Children = children

		if p.pos >= len(p.input) {
			return nil, p.errorAt(start, fmt.Sprintf("unclosed element <%s>", el.Name))
		}
		if !p.peek("</") {
			return nil, p.error(fmt.Sprintf("unexpected %s inside <%s>", p.lookaheadBrace(), el.Name))
		}
	}

	closeStart := p.pos
	p.consume("</")
	closing := p.parseTagName()
	p.parseWhitespace()
	if !p.consume(">") {
		return nil, p.error(fmt.Sprintf("unterminated closing tag </%s>", closing))
	}
	if !strings.EqualFold(closing, el.Name) || (closing != el.Name && !el.IsRawText()) {
		return nil, p.error(fmt.Sprintf("mismatched tags: <%s> and </%s>", el.Name, closing))
	}
	el.Close = p.input[closeStart:p.pos]
	el.Span = Span{Start: startPos, End: p.position()}

	return el, nil
}

// parseAttribute parses one attribute; prefix is the whitespace already
// consumed in front of it
func (p *Parser) parseAttribute(prefix string) (*Attribute, error) {
	if p.peek("{") {
		value, err := p.scanExpression()
		if err != nil {
			return nil, err
		}
		return &Attribute{Prefix: prefix, Value: value}, nil
	}

	name := p.parseAttributeName()
	if name == "" {
		return nil, p.error(fmt.Sprintf("unexpected character %q in tag", p.input[p.pos]))
	}
	attr := &Attribute{Prefix: prefix, Name: name}

	m := p.mark()
	before := p.parseWhitespace()
	if !p.consume("=") {
		// Boolean attribute, give the whitespace back to the tag
		p.reset(m)
		return attr, nil
	}
	after := p.parseWhitespace()
	attr.Eq = before + "=" + after

	if p.pos >= len(p.input) {
		return nil, p.error(fmt.Sprintf("missing value for attribute %s", name))
	}

	switch c := p.input[p.pos]; c {
	case '"', '\'':
		value, err := p.scanQuoted(c, name)
		if err != nil {
			return nil, err
		}
		attr.Value = value
	case '{':
		value, err := p.scanExpression()
		if err != nil {
			return nil, err
		}
		attr.Value = value
	default:
		start := p.pos
		for p.pos < len(p.input) && !isSpace(p.input[p.pos]) && !p.peek(">") && !p.peek("/>") {
			p.advance()
		}
		if p.pos == start {
			return nil, p.error(fmt.Sprintf("missing value for attribute %s", name))
		}
		attr.Value = p.input[start:p.pos]
	}

	return attr, nil
}

// scanQuoted consumes a quoted attribute value including the quotes. A '{'
// inside the value opens an expression that may itself contain the quote
// character, as in text="{ok ? "yes" : "no"}".
func (p *Parser) scanQuoted(quote byte, name string) (string, error) {
	start := p.mark()
	p.advance()

	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case quote:
			p.advance()
			return p.input[start.pos:p.pos], nil
		case '{':
			if _, err := p.scanExpression(); err != nil {
				return "", err
			}
			continue
		}
		p.advance()
	}

	return "", p.errorAt(start, fmt.Sprintf("unterminated value for attribute %s", name))
}

// parseBlock parses a {#name ...} block with all of its clauses
func (p *Parser) parseBlock() (*Block, error) {
	start := p.mark()
	startPos := p.position()

	tag, err := p.scanExpression()
	if err != nil {
		return nil, err
	}
	block := &Block{Name: BlockName(tag)}
	if block.Name == "" {
		return nil, p.errorAt(start, "expected block name after {#")
	}

	for {
		children, err := p.parseNodes()
		if err != nil {
			return nil, err
		}
		block.Branches = append(block.Branches, &Branch{Tag: tag, Children: children})

		switch {
		case p.pos >= len(p.input):
			return nil, p.errorAt(start, fmt.Sprintf("unclosed {#%s} block", block.Name))
		case p.peek("{:"):
			if tag, err = p.scanExpression(); err != nil {
				return nil, err
			}
		case p.peek("{/"):
			end := p.mark()
			closing, err := p.scanExpression()
			if err != nil {
				return nil, err
			}
			if BlockName(closing) != block.Name {
				return nil, p.errorAt(end, fmt.Sprintf("expected {/%s} but found %s", block.Name, closing))
			}
			block.Close = closing
			block.Span = Span{Start: startPos, End: p.position()}
			return block, nil
		default:
			return nil, p.error(fmt.Sprintf("unexpected closing tag </%s> inside {#%s} block", p.lookaheadName(2), block.Name))
		}
	}
}

// scanExpression consumes a brace-delimited expression starting at '{' and
// returns it including the braces. Braces inside JS strings and template
// literals do not count.
func (p *Parser) scanExpression() (string, error) {
	start := p.mark()
	depth := 0

	for p.pos < len(p.input) {
		switch c := p.input[p.pos]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.advance()
				return p.input[start.pos:p.pos], nil
			}
		case '"', '\'', '`':
			if err := p.skipString(c); err != nil {
				return "", err
			}
			continue
		}
		p.advance()
	}

	return "", p.errorAt(start, "unterminated expression")
}

func (p *Parser) skipString(quote byte) error {
	start := p.mark()
	p.advance()

	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '\\':
			p.advance()
		case c == quote:
			p.advance()
			return nil
		case quote == '`' && p.peek("${"):
			p.advance()
			if _, err := p.scanExpression(); err != nil {
				return err
			}
			continue
		case c == '\n' && quote != '`':
			return p.errorAt(start, "unterminated string in expression")
		}
		p.advance()
	}

	return p.errorAt(start, "unterminated string in expression")
}

// BlockName extracts the keyword from a block tag: "{#each xs as x}",
// "{:else}" and "{/each}" give "each", "else" and "each"
func BlockName(tag string) string {
	if len(tag) < 2 || tag[0] != '{' {
		return ""
	}
	i := 2
	for i < len(tag) && isLetter(tag[i]) {
		i++
	}
	return tag[2:i]
}

// ExpressionBody returns the text between the braces when raw is exactly one
// brace-delimited expression
func ExpressionBody(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "{") {
		return "", false
	}
	p := NewParser("", raw)
	expr, err := p.scanExpression()
	if err != nil || p.pos != len(raw) {
		return "", false
	}
	return expr[1 : len(expr)-1], true
}

// Helper methods

func (p *Parser) peek(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *Parser) consume(s string) bool {
	if p.peek(s) {
		for i := 0; i < len(s); i++ {
			p.advance()
		}
		return true
	}
	return false
}

// take consumes n bytes and returns them
func (p *Parser) take(n int) string {
	start := p.pos
	for i := 0; i < n; i++ {
		p.advance()
	}
	return p.input[start:p.pos]
}

func (p *Parser) advance() {
	if p.pos < len(p.input) {
		if p.input[p.pos] == '\n' {
			p.line++
			p.col = 1
		} else {
			p.col++
		}
		p.pos++
	}
}

func (p *Parser) mark() mark {
	return mark{pos: p.pos, line: p.line, col: p.col}
}

func (p *Parser) reset(m mark) {
	p.pos, p.line, p.col = m.pos, m.line, m.col
}

func (p *Parser) position() Position {
	return Position{Offset: p.pos, Line: p.line, Column: p.col}
}

func (p *Parser) parseWhitespace() string {
	start := p.pos
	for p.pos < len(p.input) && isSpace(p.input[p.pos]) {
		p.advance()
	}
	return p.input[start:p.pos]
}

func (p *Parser) parseTagName() string {
	start := p.pos
	for p.pos < len(p.input) && isNameChar(p.input[p.pos]) {
		p.advance()
	}
	return p.input[start:p.pos]
}

func (p *Parser) parseAttributeName() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if isSpace(c) || c == '=' || c == '>' || c == '/' || c == '"' || c == '\'' || c == '{' || c == '}' || c == '<' {
			break
		}
		p.advance()
	}
	return p.input[start:p.pos]
}

func (p *Parser) isTagStart(i int) bool {
	return i < len(p.input) && isLetter(p.input[i])
}

// lookaheadName returns the name that starts skip bytes past the cursor
func (p *Parser) lookaheadName(skip int) string {
	i := p.pos + skip
	j := i
	for j < len(p.input) && isNameChar(p.input[j]) {
		j++
	}
	return p.input[i:j]
}

func (p *Parser) lookaheadBrace() string {
	if p.peek("{/") {
		return "{/" + p.lookaheadName(2) + "}"
	}
	return "{:" + p.lookaheadName(2) + "}"
}

func (p *Parser) error(msg string) error {
	return &SyntaxError{File: p.filename, Line: p.line, Column: p.col, Msg: msg}
}

func (p *Parser) errorAt(m mark, msg string) error {
	return &SyntaxError{File: p.filename, Line: m.line, Column: m.col, Msg: msg}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == ':' || c == '.' || c == '_'
}

// indexFold is strings.Index ignoring ASCII case
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if asciiEqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

func asciiEqualFold(a, b string) bool {
	for i := 0; i < len(a); i++ {
		x, y := a[i], b[i]
		if 'A' <= x && x <= 'Z' {
			x += 'a' - 'A'
		}
		if 'A' <= y && y <= 'Z' {
			y += 'a' - 'A'
		}
		if x != y {
			return false
		}
	}
	return true
}
