package transform

import "github.com/recera/tnsprep/pkg/markup"

// DefaultNamespaceURI is injected when no namespace is configured
const DefaultNamespaceURI = "tns"

// DecorateRoots adds xmlns="namespaceURI" as the first attribute of every
// element that has no element ancestor. Elements nested only inside blocks
// are roots too. Script and style elements are skipped, as are the special
// svelte: tags that configure the component or the document rather than
// render markup. It returns the number of decorated elements.
//
// DecorateRoots is not idempotent: running it twice adds a second xmlns.
func DecorateRoots(doc *markup.Document, namespaceURI string) int {
	return decorateNodes(doc.Nodes, namespaceURI)
}

// specialElements never accept attributes outside their own fixed set
var specialElements = map[string]bool{
	"svelte:options":  true,
	"svelte:window":   true,
	"svelte:document": true,
	"svelte:head":     true,
	"svelte:body":     true,
}

func decorateNodes(nodes []markup.Node, namespaceURI string) int {
	count := 0
	for _, n := range nodes {
		switch n := n.(type) {
		case *markup.Element:
			if n.IsRawText() || specialElements[n.Name] {
				continue
			}
			decorate(n, namespaceURI)
			count++
		case *markup.Block:
			for _, br := range n.Branches {
				count += decorateNodes(br.Children, namespaceURI)
			}
		}
	}
	return count
}

func decorate(el *markup.Element, namespaceURI string) {
	el.InsertAttrs(0, markup.NewAttribute("xmlns", namespaceURI))

	// Keep the injected attribute separated from whatever follows it:
	// <page/> becomes <page xmlns="tns" />, while <page\n> keeps its newline.
	if len(el.Attrs) > 1 {
		if next := el.Attrs[1]; !startsWithSpace(next.Prefix) {
			next.Prefix = " " + next.Prefix
		}
		return
	}
	if !startsWithSpace(el.Trailing) {
		el.Trailing = " " + el.Trailing
	}
}

func startsWithSpace(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}
