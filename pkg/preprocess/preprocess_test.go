package preprocess

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/recera/tnsprep/pkg/markup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMarkup(t *testing.T, p *Preprocessor, input, expected string) {
	t.Helper()
	res, err := p.Markup(Input{Content: input, File: "Index.svelte"})
	require.NoError(t, err)
	assert.Equal(t, expected, res.Code)
}

// testElementMarkup wraps input in a page element so the root xmlns does
// not have to be accounted for
func testElementMarkup(t *testing.T, p *Preprocessor, input, expected string) {
	t.Helper()
	content := "<page xmlns=\"tns\">\n" + input + "\n</page>"
	res, err := p.Markup(Input{Content: content, File: "Index.svelte"})
	require.NoError(t, err)

	codeLines := strings.Split(res.Code, "\n")
	codeLines = codeLines[1 : len(codeLines)-1]

	assert.Equal(t, expected, strings.Join(codeLines, "\n"))
}

func TestPreprocess_EmptyFile(t *testing.T) {
	p := New(Options{})
	testMarkup(t, p, "", "")
}

func TestPreprocess_AddsXmlns(t *testing.T) {
	t.Run("single root element", func(t *testing.T) {
		p := New(Options{})
		testMarkup(t, p, `<page class="root-page"/>`, `<page xmlns="tns" class="root-page"/>`)
	})

	t.Run("single root element with no attributes", func(t *testing.T) {
		p := New(Options{})
		testMarkup(t, p, `<page/>`, `<page xmlns="tns" />`)
		testMarkup(t, p, `<page></page>`, `<page xmlns="tns" ></page>`)
	})

	t.Run("whitespace", func(t *testing.T) {
		p := New(Options{})
		testMarkup(t, p, "<page\n></page>", "<page xmlns=\"tns\"\n></page>")
		testMarkup(t, p, "<page\n  class=\"hi\"></page>", "<page xmlns=\"tns\"\n  class=\"hi\"></page>")
	})
}

func TestPreprocess_ExpandsBind(t *testing.T) {
	t.Run("not on components", func(t *testing.T) {
		p := New(Options{})
		testElementMarkup(t, p, `<SvelteComponent bind:a={this} />`, `<SvelteComponent bind:a={this} />`)
	})

	t.Run("not on namespaced tags", func(t *testing.T) {
		p := New(Options{})
		testElementMarkup(t, p,
			`<svelte:component this={SvelteComponent} bind:a={this} />`,
			`<svelte:component this={SvelteComponent} bind:a={this} />`)
	})

	t.Run("on regular tags", func(t *testing.T) {
		p := New(Options{})
		testElementMarkup(t, p,
			`<textInput bind:text={email} />`,
			`<textInput text="{email}" on:textChange="{(e) => email = e.value}" />`)
	})

	t.Run("complex lvalues", func(t *testing.T) {
		p := New(Options{})
		testElementMarkup(t, p,
			`<textInput bind:text={user.contactDetais[i].email} />`,
			`<textInput text="{user.contactDetais[i].email}" on:textChange="{(e) => user.contactDetais[i].email = e.value}" />`)
	})

	t.Run("not bind:this on regular tags", func(t *testing.T) {
		p := New(Options{})
		testElementMarkup(t, p, `<textInput bind:this={myinput} />`, `<textInput bind:this={myinput} />`)
	})

	t.Run("each scope variables", func(t *testing.T) {
		p := New(Options{})
		testElementMarkup(t, p,
			`{#each collection as item}<textInput bind:text={item} />{/each}`,
			`{#each collection as item}<textInput text="{item}" on:textChange="{(e) => item = e.value}" />{/each}`)
	})
}

func TestPreprocess_Options(t *testing.T) {
	p := New(Options{NamespaceURI: "http://schemas.nativescript.org/tns.xsd", ReservedNamespaces: []string{"ui"}})
	assert.Equal(t, "http://schemas.nativescript.org/tns.xsd", p.NamespaceURI())

	res, err := p.Markup(Input{Content: `<page><ui:x bind:v={a}/><svelte:self bind:v={a}/></page>`, File: "A.svelte"})
	require.NoError(t, err)
	assert.Equal(t,
		`<page xmlns="http://schemas.nativescript.org/tns.xsd" ><ui:x bind:v={a}/><svelte:self v="{a}" on:vChange="{(e) => a = e.value}"/></page>`,
		res.Code)
	assert.Equal(t, 1, res.Roots)
	assert.Equal(t, 1, res.Expanded())
	assert.Len(t, res.Bindings, 2)
	assert.Equal(t, "A.svelte", res.File)
}

func TestPreprocess_MalformedMarkup(t *testing.T) {
	p := New(Options{})
	res, err := p.Markup(Input{Content: "<page>\n  <label text=\"x\">\n</page>", File: "Broken.svelte"})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, markup.ErrMalformedMarkup))
	assert.Contains(t, err.Error(), "Broken.svelte:")
}

func TestPreprocess_ExpansionIsIdempotent(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "identifier", input: `<textInput bind:text={email} />`},
		{name: "string index", input: `<textField bind:text={form["email"]} />`},
		{name: "quoted ternary", input: `<label text="{ok ? "yes" : "no"}" />`},
	}

	p := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := p.Markup(Input{Content: tt.input, File: "a"})
			require.NoError(t, err)

			// strip the root decoration so only expansion is compared
			again := strings.Replace(first.Code, ` xmlns="tns"`, "", 1)
			second, err := p.Markup(Input{Content: again, File: "a"})
			require.NoError(t, err)
			assert.Equal(t, first.Code, second.Code)
			assert.Empty(t, second.Bindings)
		})
	}
}

func TestPreprocess_Concurrent(t *testing.T) {
	p := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Markup(Input{Content: `<page><textInput bind:text={email} /></page>`, File: "c"})
			if assert.NoError(t, err) {
				assert.Equal(t, `<page xmlns="tns" ><textInput text="{email}" on:textChange="{(e) => email = e.value}" /></page>`, res.Code)
			}
		}()
	}
	wg.Wait()
}
