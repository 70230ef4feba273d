// Package markup parses component template source into a tree that can be
// mutated and rendered back to text without losing any of the original
// formatting.
package markup

import "strings"

// Document is the root of a parsed template
type Document struct {
	File  string
	Nodes []Node
}

// Node is implemented by every tree node. The set of node types is closed:
// *Element, *Text, *Expression, *Block and *Raw.
type Node interface {
	render(b *strings.Builder)
}

// Position is a location in the source
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span is the source range a node was parsed from
type Span struct {
	Start Position
	End   Position
}

// Text is literal content between tags and mustaches
type Text struct {
	Content string
}

// Raw is source copied through untouched: comments, declarations and the
// bodies of script and style elements
type Raw struct {
	Content string
}

// Expression is a mustache such as {value}, {@html markup} or {@const x = 1}
type Expression struct {
	Content string // raw text including the braces
	Span    Span
}

// Element is a tag with its attributes and children
type Element struct {
	Name  string
	Attrs []*Attribute
	// Trailing is the whitespace between the last attribute and > or />
	Trailing    string
	SelfClosing bool
	Children    []Node
	// Close is the raw closing tag, empty for self-closing and void elements
	Close string
	Span  Span
}

// Attribute is a single attribute kept in its source form so that an
// untouched attribute renders byte for byte as it was read.
type Attribute struct {
	Prefix string // whitespace before the attribute
	Name   string // empty for {shorthand} and {...spread} attributes
	Eq     string // "=" plus any whitespace around it, empty when there is no value
	Value  string // raw value including quotes or braces
}

// Block is a control-flow construct such as {#each}, {#if} or {#await}
type Block struct {
	Name     string
	Branches []*Branch
	Close    string // raw {/name}
	Span     Span
}

// Branch is one arm of a block. The first branch's Tag is the opening tag,
// later ones are clauses like {:else} or {:then value}.
type Branch struct {
	Tag      string
	Children []Node
}

// NewAttribute returns a double-quoted attribute separated by a single space
func NewAttribute(name, value string) *Attribute {
	return &Attribute{
		Prefix: " ",
		Name:   name,
		Eq:     "=",
		Value:  `"` + strings.ReplaceAll(value, `"`, "&quot;") + `"`,
	}
}

// HasValue reports whether the attribute carries a value
func (a *Attribute) HasValue() bool {
	return a.Value != ""
}

// Unquoted returns the attribute value without its surrounding quotes
func (a *Attribute) Unquoted() string {
	v := a.Value
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// InsertAttrs inserts attributes before position i
func (e *Element) InsertAttrs(i int, attrs ...*Attribute) {
	e.Attrs = append(e.Attrs[:i], append(attrs, e.Attrs[i:]...)...)
}

// ReplaceAttr replaces the attribute at position i with attrs
func (e *Element) ReplaceAttr(i int, attrs ...*Attribute) {
	rest := append([]*Attribute{}, e.Attrs[i+1:]...)
	e.Attrs = append(append(e.Attrs[:i], attrs...), rest...)
}

// IsRawText reports whether the element body is copied verbatim
func (e *Element) IsRawText() bool {
	return isRawTextElement(e.Name)
}

// IsVoid reports whether the element never has a closing tag
func (e *Element) IsVoid() bool {
	return isVoidElement(e.Name)
}

func isRawTextElement(name string) bool {
	switch strings.ToLower(name) {
	case "script", "style":
		return true
	}
	return false
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

func isVoidElement(name string) bool {
	return voidElements[strings.ToLower(name)]
}
