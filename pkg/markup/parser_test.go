package markup

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{name: "empty", source: ""},
		{name: "self closing", source: `<page class="root-page"/>`},
		{name: "self closing with space", source: `<page />`},
		{name: "explicit close", source: `<page></page>`},
		{name: "newline before close", source: "<page\n></page>"},
		{name: "multiline attributes", source: "<page\n  class=\"hi\"\n\tid='x'  ></page>"},
		{name: "nested", source: "<page>\n  <stackLayout>\n    <label text=\"hi\" />\n  </stackLayout>\n</page>"},
		{name: "binding", source: `<textInput bind:text={user.contactDetais[i].email} />`},
		{name: "braces in strings", source: `<button on:tap={() => log("}{", '{')} />`},
		{name: "template literal", source: "<label text={`${a + `${b}`}}`} />"},
		{name: "shorthand and spread", source: `<label {text} {...rest} />`},
		{name: "boolean and bare", source: `<input disabled value=abc>`},
		{name: "equals with spaces", source: `<label text = "a" />`},
		{name: "each block", source: "{#each items as item, i (item.id)}\n<label text={item} />{:else}<label text=\"none\"/>{/each}"},
		{name: "if block", source: "{#if a}<a/>{:else if b}<b></b>{:else}c{/if}"},
		{name: "await block", source: "{#await p}wait{:then v}{v}{:catch e}{e.message}{/await}"},
		{name: "mustache tags", source: "<page>{@html raw}{@const x = 1}{x}</page>"},
		{name: "comment", source: "<!-- <page> {#if} -->\n<page/>"},
		{name: "script and style", source: "<script>\n  let a = '<page>';\n  if (a) { b(); }\n</script>\n<page/>\n<style>\n  page { color: red; }\n</style>"},
		{name: "stray less than", source: "<label>a < b</label>"},
		{name: "void element", source: "<div><br><img src=\"x\"></div>"},
		{name: "namespaced tags", source: "<svelte:component this={C} bind:a={this} /><Foo.Bar/>"},
		{name: "unicode text", source: "<label>héllo — wörld</label>"},
		{name: "doctype", source: "<!DOCTYPE html><page/>"},
		{name: "quotes inside quoted mustache", source: `<label text="{ok ? "yes" : 'no'}" class='a {b ? 'c' : "d"}' />`},
		{name: "string index in quoted value", source: `<textField text="{form["email"]}" on:textChange="{(e) => form["email"] = e.value}"/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse("Index.svelte", tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.source, doc.Render())
		})
	}
}

func TestParse_Structure(t *testing.T) {
	doc, err := Parse("Index.svelte", "<page xmlns=\"tns\">\n{#each xs as x}<textInput bind:text={x} />{/each}\n</page>")
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 1)

	page, ok := doc.Nodes[0].(*Element)
	require.True(t, ok)
	assert.Equal(t, "page", page.Name)
	assert.False(t, page.SelfClosing)
	assert.Equal(t, "</page>", page.Close)
	require.Len(t, page.Attrs, 1)
	assert.Equal(t, `"tns"`, page.Attrs[0].Value)
	assert.Equal(t, "tns", page.Attrs[0].Unquoted())

	require.Len(t, page.Children, 3)
	block, ok := page.Children[1].(*Block)
	require.True(t, ok)
	assert.Equal(t, "each", block.Name)
	assert.Equal(t, "{/each}", block.Close)
	require.Len(t, block.Branches, 1)
	assert.Equal(t, "{#each xs as x}", block.Branches[0].Tag)

	input, ok := block.Branches[0].Children[0].(*Element)
	require.True(t, ok)
	assert.True(t, input.SelfClosing)
	assert.Equal(t, " ", input.Trailing)
	require.Len(t, input.Attrs, 1)
	attr := input.Attrs[0]
	assert.Equal(t, "bind:text", attr.Name)
	assert.Equal(t, "{x}", attr.Value)
	assert.Equal(t, Position{Offset: 34, Line: 2, Column: 16}, input.Span.Start)
}

func TestParse_Attributes(t *testing.T) {
	doc, err := Parse("Index.svelte", "<textField a=\"1\" b='2' c={x}\n\td=bare e {y} {...rest} f = \"g\"/>")
	require.NoError(t, err)
	el := doc.Nodes[0].(*Element)

	want := []*Attribute{
		{Prefix: " ", Name: "a", Eq: "=", Value: `"1"`},
		{Prefix: " ", Name: "b", Eq: "=", Value: `'2'`},
		{Prefix: " ", Name: "c", Eq: "=", Value: "{x}"},
		{Prefix: "\n\t", Name: "d", Eq: "=", Value: "bare"},
		{Prefix: " ", Name: "e"},
		{Prefix: " ", Value: "{y}"},
		{Prefix: " ", Value: "{...rest}"},
		{Prefix: " ", Name: "f", Eq: " = ", Value: `"g"`},
	}
	if diff := cmp.Diff(want, el.Attrs); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "", el.Trailing)
	assert.True(t, el.SelfClosing)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
		col    int
	}{
		{name: "unterminated tag", source: "<page", line: 1, col: 1},
		{name: "unterminated attribute", source: "<page\n  class=\"x />", line: 2, col: 9},
		{name: "unterminated expression", source: "<page a={b />", line: 1, col: 9},
		{name: "unclosed element", source: "<page>\n<label/>", line: 1, col: 1},
		{name: "mismatched tags", source: "<page></pag>", line: 1, col: 13},
		{name: "stray closing tag", source: "</page>", line: 1, col: 1},
		{name: "unclosed block", source: "{#each xs as x}<a/>", line: 1, col: 1},
		{name: "mismatched block", source: "{#each xs as x}{/if}", line: 1, col: 16},
		{name: "stray block end", source: "{/each}", line: 1, col: 1},
		{name: "block end inside element", source: "{#if a}<page>{/if}</page>", line: 1, col: 14},
		{name: "unterminated comment", source: "<!-- x", line: 1, col: 1},
		{name: "unterminated string", source: "{'abc}", line: 1, col: 2},
		{name: "unterminated expression in quoted value", source: `<label text="{a" />`, line: 1, col: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("Index.svelte", tt.source)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMarkup))

			var syntaxErr *SyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, "Index.svelte", syntaxErr.File)
			assert.Equal(t, tt.line, syntaxErr.Line, "line")
			assert.Equal(t, tt.col, syntaxErr.Column, "column")
		})
	}
}

func TestExpressionBody(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "{email}", want: "email", ok: true},
		{raw: "{ a[b].c }", want: " a[b].c ", ok: true},
		{raw: "{a} {b}", ok: false},
		{raw: "email", ok: false},
		{raw: "{a", ok: false},
		{raw: `{"}"}`, want: `"}"`, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ExpressionBody(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBlockName(t *testing.T) {
	assert.Equal(t, "each", BlockName("{#each items as item}"))
	assert.Equal(t, "else", BlockName("{:else if x}"))
	assert.Equal(t, "if", BlockName("{/if}"))
	assert.Equal(t, "", BlockName("{x}"))
}

func TestElement_AttributeEditing(t *testing.T) {
	el := &Element{Name: "a", Attrs: []*Attribute{
		{Prefix: " ", Name: "x", Eq: "=", Value: `"1"`},
		{Prefix: " ", Name: "y", Eq: "=", Value: `"2"`},
	}}

	el.InsertAttrs(0, NewAttribute("xmlns", "tns"))
	el.ReplaceAttr(1, NewAttribute("x1", "a"), NewAttribute("x2", "b"))

	assert.Equal(t, `<a xmlns="tns" x1="a" x2="b" y="2"></a>`, RenderNode(el)+"</a>")
	assert.Equal(t, `q="&quot;"`, NewAttribute("q", `"`).String())
}
