package transform

import (
	"sort"
	"strings"

	"github.com/recera/tnsprep/pkg/markup"
	"github.com/recera/tnsprep/pkg/scope"
	"github.com/rs/zerolog"
)

const bindPrefix = "bind:"

// SkipReason explains why a bind: attribute was left as written
type SkipReason string

const (
	NotSkipped     SkipReason = ""
	SkipComponent  SkipReason = "component"
	SkipNamespaced SkipReason = "namespaced tag"
	SkipThis       SkipReason = "bind:this"
	SkipShape      SkipReason = "unrecognized binding shape"
)

// Report describes one bind: attribute seen by ExpandBindings
type Report struct {
	Element    string
	Kind       Kind
	Property   string
	Expression string
	Position   markup.Position
	Expanded   bool
	Skip       SkipReason
	// ScopeLocal is set when the lvalue's root identifier was introduced by
	// an enclosing block, e.g. the item of an {#each}; Construct names that
	// block and ScopeDepth counts the blocks around the element
	ScopeLocal bool
	Construct  scope.Construct
	ScopeDepth int
}

// ExpandOptions configures ExpandBindings
type ExpandOptions struct {
	// ReservedNamespaces defaults to DefaultReservedNamespaces when nil
	ReservedNamespaces []string
	Logger             *zerolog.Logger
}

type expander struct {
	reserved []string
	log      zerolog.Logger
	reports  []Report
}

// ExpandBindings rewrites every bind:prop={expr} on a plain element into
//
//	prop="{expr}" on:propChange="{(e) => expr = e.value}"
//
// in place. Components, reserved-namespace tags and bind:this are left
// alone, as is any binding whose value is not a single lvalue expression.
// root is the scope the document is evaluated in; nil means an empty one.
func ExpandBindings(doc *markup.Document, root *scope.Scope, opts ExpandOptions) []Report {
	x := &expander{
		reserved: opts.ReservedNamespaces,
		log:      zerolog.Nop(),
	}
	if x.reserved == nil {
		x.reserved = DefaultReservedNamespaces
	}
	if opts.Logger != nil {
		x.log = opts.Logger.With().Str("file", doc.File).Logger()
	}
	if root == nil {
		root = scope.New(nil)
	}

	x.walk(doc.Nodes, root)
	return x.reports
}

// ChangeEvent returns the event a binding on property listens to
func ChangeEvent(property string) string {
	return property + "Change"
}

func (x *expander) walk(nodes []markup.Node, sc *scope.Scope) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *markup.Element:
			x.element(n, sc)
			if !n.IsRawText() {
				x.walk(n.Children, sc)
			}
		case *markup.Block:
			for _, br := range n.Branches {
				inner := scope.Enter(sc, n.Name, br.Tag)
				if names := inner.Names(); len(names) > 0 {
					sort.Strings(names)
					x.log.Trace().
						Str("block", n.Name).
						Strs("names", names).
						Int("depth", inner.Depth()).
						Msg("entered scope")
				}
				x.walk(br.Children, inner)
			}
		}
	}
}

func (x *expander) element(el *markup.Element, sc *scope.Scope) {
	kind := Classify(el.Name, x.reserved)

	for i := 0; i < len(el.Attrs); i++ {
		attr := el.Attrs[i]
		property, ok := strings.CutPrefix(attr.Name, bindPrefix)
		if !ok {
			continue
		}

		r := Report{
			Element:  el.Name,
			Kind:     kind,
			Property: property,
			Position: el.Span.Start,
		}

		switch {
		case kind == Component:
			r.Skip = SkipComponent
		case kind == Namespaced:
			r.Skip = SkipNamespaced
		case property == "this":
			r.Skip = SkipThis
		}
		if r.Skip != NotSkipped {
			x.record(r)
			continue
		}

		expr, root, ok := bindingExpression(attr, property)
		if !ok {
			r.Skip = SkipShape
			x.record(r)
			continue
		}

		r.Expression = expr
		r.Construct, r.ScopeLocal = sc.Lookup(root)
		r.ScopeDepth = sc.Depth()
		r.Expanded = true

		el.ReplaceAttr(i,
			&markup.Attribute{Prefix: attr.Prefix, Name: property, Eq: "=", Value: `"{` + expr + `}"`},
			&markup.Attribute{Prefix: " ", Name: "on:" + ChangeEvent(property), Eq: "=", Value: `"{(e) => ` + expr + ` = e.value}"`},
		)
		i++

		x.record(r)
	}
}

func (x *expander) record(r Report) {
	x.reports = append(x.reports, r)

	ev := x.log.Debug().
		Str("element", r.Element).
		Str("property", r.Property).
		Int("line", r.Position.Line).
		Int("column", r.Position.Column)
	if r.Expanded {
		ev = ev.Str("expression", r.Expression).Bool("scope_local", r.ScopeLocal)
		if r.ScopeLocal {
			ev = ev.Str("introduced_by", string(r.Construct)).Int("scope_depth", r.ScopeDepth)
		}
		ev.Msg("expanded binding")
		return
	}
	ev.Str("reason", string(r.Skip)).Msg("skipped binding")
}

// bindingExpression extracts the lvalue of a bind: attribute. The value must
// be {expr} or "{expr}"; a bare bind:prop stands for bind:prop={prop}.
func bindingExpression(attr *markup.Attribute, property string) (expr, root string, ok bool) {
	if !scope.IsIdentifier(property) {
		return "", "", false
	}

	switch {
	case !attr.HasValue():
		expr = property
	case strings.HasPrefix(attr.Value, "{"):
		if expr, ok = markup.ExpressionBody(attr.Value); !ok {
			return "", "", false
		}
	default:
		if expr, ok = markup.ExpressionBody(attr.Unquoted()); !ok || attr.Unquoted() == attr.Value {
			return "", "", false
		}
	}

	expr = strings.TrimSpace(expr)
	if root, ok = RootIdentifier(expr); !ok {
		return "", "", false
	}
	return expr, root, true
}
