// Package typesystem models the value domain V from spec §3 as a closed
// set of types, the way the teacher's typesystem package models its own
// Hindley-Milner-ish domain with a closed `Type` interface
// (TCon/TVar/TApp/...). Ours is simpler (no unification variables): a
// fixed tag per value-domain member plus two parameterised shapes
// (Array, Instance).
package typesystem

import "fmt"

// Tag is one member of the value domain V (spec §3).
type Tag int

const (
	TAG_INT Tag = iota
	TAG_LONG
	TAG_DOUBLE
	TAG_DECIMAL
	TAG_STRING
	TAG_BYTEARRAY
	TAG_LIST
	TAG_MAP
	TAG_INSTANCE
	TAG_FUNCTION
	TAG_NULL
	TAG_ARRAY
	TAG_BOOLEAN
	TAG_DEF // dynamic: unknown until runtime
)

var tagNames = map[Tag]string{
	TAG_INT: "int", TAG_LONG: "long", TAG_DOUBLE: "double", TAG_DECIMAL: "Decimal",
	TAG_STRING: "String", TAG_BYTEARRAY: "byte[]", TAG_LIST: "List", TAG_MAP: "Map",
	TAG_INSTANCE: "instance", TAG_FUNCTION: "Function", TAG_NULL: "null",
	TAG_ARRAY: "array", TAG_BOOLEAN: "boolean", TAG_DEF: "def",
}

func (t Tag) String() string { return tagNames[t] }

// Type is the closed interface every static type implements.
type Type interface {
	Tag() Tag
	String() string
	typeNode()
}

// Prim is a non-parameterised value-domain member (int, long, double,
// Decimal, String, byte[], Map, null, boolean, def).
type Prim struct{ T Tag }

func (p Prim) Tag() Tag       { return p.T }
func (p Prim) String() string { return p.T.String() }
func (Prim) typeNode()        {}

// Def is the dynamic type: assignment-compatible with everything,
// resolved only at runtime.
func Def() Type { return Prim{T: TAG_DEF} }

// ListOf is a list whose element type is statically known (`def` if the
// list is heterogeneous/untyped).
type ListOf struct{ Elem Type }

func (ListOf) Tag() Tag           { return TAG_LIST }
func (l ListOf) String() string   { return fmt.Sprintf("List<%s>", l.Elem.String()) }
func (ListOf) typeNode()          {}

// ArrayOf is a typed array (distinct from List per spec §3).
type ArrayOf struct{ Elem Type }

func (ArrayOf) Tag() Tag         { return TAG_ARRAY }
func (a ArrayOf) String() string { return a.Elem.String() + "[]" }
func (ArrayOf) typeNode()        {}

// Instance is a user-class type, looked up by name in the symbol table.
type Instance struct {
	ClassName string
	Super     *Instance // nil if no superclass
}

func (Instance) Tag() Tag         { return TAG_INSTANCE }
func (i Instance) String() string { return i.ClassName }
func (Instance) typeNode()        {}

// FuncType is a method-handle type: parameter types plus return type.
type FuncType struct {
	Params []Type
	Return Type
}

func (FuncType) Tag() Tag { return TAG_FUNCTION }
func (f FuncType) String() string {
	s := "Function("
	for i, p := range f.Params {
		if i > 0 {
			s += ","
		}
		s += p.String()
	}
	return s + ") -> " + f.Return.String()
}
func (FuncType) typeNode() {}

// Int, Long, Double, Decimal, String, Boolean, Null, ByteArray, MapAny are
// the primitive singletons used throughout resolver/analyser.
var (
	Int       = Prim{T: TAG_INT}
	Long      = Prim{T: TAG_LONG}
	Double    = Prim{T: TAG_DOUBLE}
	Decimal   = Prim{T: TAG_DECIMAL}
	String    = Prim{T: TAG_STRING}
	Boolean   = Prim{T: TAG_BOOLEAN}
	Null      = Prim{T: TAG_NULL}
	ByteArray = Prim{T: TAG_BYTEARRAY}
	MapAny    = Prim{T: TAG_MAP}
	ListAny   = ListOf{Elem: Def()}
)

// IsNumeric reports whether t is one of the four numeric tags.
func IsNumeric(t Type) bool {
	switch t.Tag() {
	case TAG_INT, TAG_LONG, TAG_DOUBLE, TAG_DECIMAL:
		return true
	}
	return false
}

// numericWidth orders numeric tags from narrowest to widest so literal
// normalisation (spec P2: 1 == 1L == 1.0 == 1.00) can pick the wider
// representation to compare in.
var numericWidth = map[Tag]int{TAG_INT: 0, TAG_LONG: 1, TAG_DOUBLE: 2, TAG_DECIMAL: 3}

// Wider returns the wider of two numeric tags, or ok=false if either
// isn't numeric.
func Wider(a, b Tag) (Tag, bool) {
	wa, oka := numericWidth[a]
	wb, okb := numericWidth[b]
	if !oka || !okb {
		return a, false
	}
	if wa >= wb {
		return a, true
	}
	return b, true
}
