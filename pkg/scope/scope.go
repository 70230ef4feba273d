// Package scope tracks the identifiers that template blocks introduce, such
// as the item name of an {#each} block.
package scope

// Construct names the template construct that introduced an identifier
type Construct string

const (
	Each      Construct = "each"
	EachIndex Construct = "each-index"
	Await     Construct = "await"
	Snippet   Construct = "snippet"
)

// Scope is one level of the scope chain. The zero parent is the document
// root. A nil *Scope resolves nothing.
type Scope struct {
	parent *Scope
	names  map[string]Construct
}

// New creates a scope nested in parent
func New(parent *Scope) *Scope {
	return &Scope{
		parent: parent,
		names:  make(map[string]Construct),
	}
}

// Bind introduces name into s
func (s *Scope) Bind(name string, c Construct) {
	s.names[name] = c
}

// Resolve reports whether name is visible from s
func (s *Scope) Resolve(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Lookup returns the construct that introduced name, walking the parent chain
func (s *Scope) Lookup(name string) (Construct, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if c, ok := sc.names[name]; ok {
			return c, true
		}
	}
	return "", false
}

// Depth is the number of scopes above the root
func (s *Scope) Depth() int {
	d := 0
	for sc := s; sc != nil && sc.parent != nil; sc = sc.parent {
		d++
	}
	return d
}

// Names returns the identifiers bound directly in s
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.names))
	for n := range s.names {
		names = append(names, n)
	}
	return names
}

// Enter returns the scope covering one branch of a block. block is the
// block keyword and tag the branch's raw opening tag or clause, e.g.
// ("each", "{#each items as item, i}") or ("await", "{:then value}").
func Enter(parent *Scope, block, tag string) *Scope {
	sc := New(parent)
	for _, b := range Introduced(block, tag) {
		sc.Bind(b.Name, b.Construct)
	}
	return sc
}
