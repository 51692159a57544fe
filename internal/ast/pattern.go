package ast

import "github.com/jactl-lang/jactl/internal/typesystem"

func (*LiteralPattern) patternNode()    {}
func (*TypePattern) patternNode()       {}
func (*ListPattern) patternNode()       {}
func (*MapPattern) patternNode()        {}
func (*RegexPattern) patternNode()      {}
func (*IdentifierPattern) patternNode() {}
func (*WildcardPattern) patternNode()   {}
func (*SpreadPattern) patternNode()     {}

// LiteralPattern matches an exact int/long/double/decimal/string/null
// literal. Value holds the same representation as ast.Literal.Value.
type LiteralPattern struct {
	Meta
	Value interface{}
}

func (n *LiteralPattern) Accept(v Visitor) { v.VisitLiteralPattern(n) }

// TypePattern is `T` alone, or `T name` binding the matched value.
// Name == "" means no binding.
type TypePattern struct {
	Meta
	Target typesystem.Type
	Name   string
}

func (n *TypePattern) Accept(v Visitor) { v.VisitTypePattern(n) }

// ListPattern is `[p1, p2, ...]`, optionally containing exactly one
// SpreadPattern ("*") at any position (spec §3: "possibly containing one
// `*` wildcard at any position").
type ListPattern struct {
	Meta
	Elements []Pattern
}

func (n *ListPattern) Accept(v Visitor) { v.VisitListPattern(n) }

// MapPattern is `[k1:p1, k2:p2, ...]`, optionally with a `*` entry
// (HasRest) meaning further entries are allowed.
type MapPattern struct {
	Meta
	Keys    []string
	Values  []Pattern
	HasRest bool
}

func (n *MapPattern) Accept(v Visitor) { v.VisitMapPattern(n) }

// RegexPattern is a `/.../r` literal; captures are bound to $1..$N for
// the case's guard and result (not as named sub-patterns).
type RegexPattern struct {
	Meta
	Source string
}

func (n *RegexPattern) Accept(v Visitor) { v.VisitRegexPattern(n) }

// IdentifierPattern binds the matched value (or sub-value) to a name. A
// name repeated within one case imposes an equality test rather than a
// second binding (invariant I1).
type IdentifierPattern struct {
	Meta
	Name string
}

func (n *IdentifierPattern) Accept(v Visitor) { v.VisitIdentifierPattern(n) }

// WildcardPattern is `_`: matches anything, binds nothing. A single
// top-level `_` case is equivalent to `default` (§4.2 default-ordering rule).
type WildcardPattern struct{ Meta }

func (n *WildcardPattern) Accept(v Visitor) { v.VisitWildcardPattern(n) }

// SpreadPattern is the `*` entry inside a ListPattern or MapPattern.
// Inner may be an IdentifierPattern (bind the remainder) or nil (discard it).
type SpreadPattern struct {
	Meta
	Inner Pattern
}

func (n *SpreadPattern) Accept(v Visitor) { v.VisitSpreadPattern(n) }
