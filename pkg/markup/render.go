package markup

import (
	"io"
	"strings"
)

// Render serializes the document back into template source
func (d *Document) Render() string {
	var b strings.Builder
	for _, n := range d.Nodes {
		n.render(&b)
	}
	return b.String()
}

// WriteTo writes the rendered document to w
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, d.Render())
	return int64(n), err
}

// RenderNode serializes a single node
func RenderNode(n Node) string {
	var b strings.Builder
	n.render(&b)
	return b.String()
}

func (t *Text) render(b *strings.Builder) {
	b.WriteString(t.Content)
}

func (r *Raw) render(b *strings.Builder) {
	b.WriteString(r.Content)
}

func (x *Expression) render(b *strings.Builder) {
	b.WriteString(x.Content)
}

func (e *Element) render(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(e.Name)
	for _, a := range e.Attrs {
		a.render(b)
	}
	b.WriteString(e.Trailing)
	if e.SelfClosing {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	for _, c := range e.Children {
		c.render(b)
	}
	b.WriteString(e.Close)
}

func (a *Attribute) render(b *strings.Builder) {
	b.WriteString(a.Prefix)
	b.WriteString(a.Name)
	b.WriteString(a.Eq)
	b.WriteString(a.Value)
}

// String returns the attribute in its source form, without the prefix
func (a *Attribute) String() string {
	return a.Name + a.Eq + a.Value
}

func (bl *Block) render(b *strings.Builder) {
	for _, br := range bl.Branches {
		b.WriteString(br.Tag)
		for _, c := range br.Children {
			c.render(b)
		}
	}
	b.WriteString(bl.Close)
}
