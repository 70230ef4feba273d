// Package transform implements the rewrites applied to a parsed template:
// namespace injection on root elements and expansion of bind: shorthands.
package transform

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies an element for binding expansion
type Kind int

const (
	// Plain is an ordinary tag, eligible for expansion
	Plain Kind = iota
	// Component is a framework component such as <TextField> or <ui.Card>
	Component
	// Namespaced is a framework-reserved tag such as <svelte:component>
	Namespaced
)

// DefaultReservedNamespaces are the tag prefixes owned by the framework
var DefaultReservedNamespaces = []string{"svelte"}

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Component:
		return "component"
	case Namespaced:
		return "namespaced"
	}
	return "unknown"
}

// Eligible reports whether bind: attributes on this kind are expanded
func (k Kind) Eligible() bool {
	return k == Plain
}

// Classify returns the kind of a tag name. Components win over namespaced
// tags, which win over plain tags.
func Classify(name string, reserved []string) Kind {
	first, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(first) || strings.Contains(name, ".") {
		return Component
	}
	if prefix, _, ok := strings.Cut(name, ":"); ok {
		for _, ns := range reserved {
			if prefix == ns {
				return Namespaced
			}
		}
	}
	return Plain
}
