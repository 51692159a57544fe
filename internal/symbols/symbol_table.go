// Package symbols implements the scoped name table the resolver builds
// while walking the tree. Grounded on the teacher's symbols.SymbolTable:
// a chain of scopes (`outer *SymbolTable`), each a flat `map[string]Symbol`,
// with lookups walking outward. Declaration order within one scope is
// also recorded so Identifier nodes can resolve to `(scopeDepth, declIndex)`
// pairs instead of back-pointers (design note §9).
package symbols

import "github.com/jactl-lang/jactl/internal/typesystem"

type Kind int

const (
	KindVariable Kind = iota
	KindFunction
	KindClass
	KindParam
	KindBindingVar // a switch-pattern binding variable, scoped to one case
)

// Symbol is one declared name.
type Symbol struct {
	Name       string
	Type       typesystem.Type
	Kind       Kind
	IsConstant bool
	IsAsync    bool // for KindFunction: the resolver's transitive-async verdict
	DeclIndex  int  // position within its declaring scope's declaration vector
}

// Table is one lexical scope plus a pointer to its enclosing scope.
type Table struct {
	outer *Table
	store map[string]Symbol
	order []string // declaration order, so DeclIndex is stable
	depth int
}

// NewRoot creates the outermost (global) scope.
func NewRoot() *Table {
	return &Table{store: make(map[string]Symbol), depth: 0}
}

// NewChild opens a nested scope (block, function body, closure, switch case).
func (t *Table) NewChild() *Table {
	return &Table{outer: t, store: make(map[string]Symbol), depth: t.depth + 1}
}

func (t *Table) Depth() int { return t.depth }

// Define adds name to this scope. Returns the assigned DeclIndex.
func (t *Table) Define(name string, typ typesystem.Type, kind Kind) Symbol {
	sym := Symbol{Name: name, Type: typ, Kind: kind, DeclIndex: len(t.order)}
	t.store[name] = sym
	t.order = append(t.order, name)
	return sym
}

// DefineConst is Define for a `:-`/`const`-style immutable binding.
func (t *Table) DefineConst(name string, typ typesystem.Type, kind Kind) Symbol {
	sym := t.Define(name, typ, kind)
	sym.IsConstant = true
	t.store[name] = sym
	return sym
}

// Update replaces the stored Symbol for name in whichever scope defined it.
func (t *Table) Update(name string, sym Symbol) bool {
	for s := t; s != nil; s = s.outer {
		if _, ok := s.store[name]; ok {
			s.store[name] = sym
			return true
		}
	}
	return false
}

// Resolve looks up name outward from this scope, returning the symbol,
// the scope depth it was found at, and whether it was found at all.
func (t *Table) Resolve(name string) (Symbol, int, bool) {
	for s := t; s != nil; s = s.outer {
		if sym, ok := s.store[name]; ok {
			return sym, s.depth, true
		}
	}
	return Symbol{}, -1, false
}

// DefinedInScope reports whether name is declared directly in this
// scope (not an enclosing one) — used for I1's "repeated name within one
// case" check and for shadow detection (I1, binding-shadows-enclosing).
func (t *Table) DefinedInScope(name string) (Symbol, bool) {
	sym, ok := t.store[name]
	return sym, ok
}

// Outer exposes the enclosing scope, nil at the root.
func (t *Table) Outer() *Table { return t.outer }
