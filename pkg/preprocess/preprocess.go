// Package preprocess is the entry point a build pipeline calls for each
// component template before handing it to the template compiler.
//
//	p := preprocess.New(preprocess.Options{})
//	res, err := p.Markup(preprocess.Input{Content: src, File: "Index.svelte"})
package preprocess

import (
	"github.com/recera/tnsprep/pkg/markup"
	"github.com/recera/tnsprep/pkg/scope"
	"github.com/recera/tnsprep/pkg/transform"
	"github.com/rs/zerolog"
)

// Options configures a Preprocessor. The zero value is usable.
type Options struct {
	// NamespaceURI is injected as xmlns on root elements. Default "tns".
	NamespaceURI string
	// ReservedNamespaces are tag prefixes whose bindings are never
	// expanded. Default ["svelte"].
	ReservedNamespaces []string
	// Logger receives debug events for every binding. Default is silent.
	Logger *zerolog.Logger
}

// Input is one template handed over by the host pipeline. File is only
// used to label diagnostics.
type Input struct {
	Content string
	File    string
}

// Result is the transformed template
type Result struct {
	Code     string
	File     string
	Roots    int
	Bindings []transform.Report
}

// Preprocessor applies the markup rewrites. It holds no per-call state and
// is safe for concurrent use.
type Preprocessor struct {
	namespaceURI string
	reserved     []string
	log          zerolog.Logger
}

// New creates a Preprocessor, filling in defaults for unset options
func New(opts Options) *Preprocessor {
	p := &Preprocessor{
		namespaceURI: opts.NamespaceURI,
		reserved:     opts.ReservedNamespaces,
		log:          zerolog.Nop(),
	}
	if p.namespaceURI == "" {
		p.namespaceURI = transform.DefaultNamespaceURI
	}
	if p.reserved == nil {
		p.reserved = transform.DefaultReservedNamespaces
	}
	if opts.Logger != nil {
		p.log = *opts.Logger
	}
	return p
}

// NamespaceURI returns the namespace injected on root elements
func (p *Preprocessor) NamespaceURI() string {
	return p.namespaceURI
}

// Markup parses in.Content, decorates its roots, expands its bindings and
// renders the result. A *markup.SyntaxError is returned when the content
// cannot be parsed; no partial output is produced.
func (p *Preprocessor) Markup(in Input) (*Result, error) {
	doc, err := markup.Parse(in.File, in.Content)
	if err != nil {
		p.log.Debug().Err(err).Str("file", in.File).Msg("parse failed")
		return nil, err
	}

	roots := transform.DecorateRoots(doc, p.namespaceURI)
	reports := transform.ExpandBindings(doc, scope.New(nil), transform.ExpandOptions{
		ReservedNamespaces: p.reserved,
		Logger:             &p.log,
	})

	res := &Result{
		Code:     doc.Render(),
		File:     in.File,
		Roots:    roots,
		Bindings: reports,
	}

	p.log.Debug().
		Str("file", in.File).
		Int("roots", res.Roots).
		Int("expanded", res.Expanded()).
		Msg("preprocessed markup")

	return res, nil
}

// Expanded counts the bindings that were rewritten
func (r *Result) Expanded() int {
	n := 0
	for _, b := range r.Bindings {
		if b.Expanded {
			n++
		}
	}
	return n
}
