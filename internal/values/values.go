// Package values implements the runtime value domain V from spec §3: a
// closed set of tagged values the code generator's backend (internal/vm)
// operates on. Grounded on the teacher's evaluator.Object hierarchy
// (internal/evaluator/object.go-style "one struct per tag, one Type()
// method" shape) but flattened onto Jactl's own tag set from
// internal/typesystem rather than the teacher's ADT/record-shaped domain.
package values

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/jactl-lang/jactl/internal/typesystem"
)

// Value is the interface every member of the value domain implements.
type Value interface {
	Tag() typesystem.Tag
	String() string
}

// Int is a 32-bit integer value.
type Int int32

func (Int) Tag() typesystem.Tag { return typesystem.TAG_INT }
func (v Int) String() string    { return fmt.Sprintf("%d", int32(v)) }

// Long is a 64-bit integer value.
type Long int64

func (Long) Tag() typesystem.Tag { return typesystem.TAG_LONG }
func (v Long) String() string    { return fmt.Sprintf("%d", int64(v)) }

// Double is a 64-bit floating point value.
type Double float64

func (Double) Tag() typesystem.Tag { return typesystem.TAG_DOUBLE }
func (v Double) String() string    { return fmt.Sprintf("%v", float64(v)) }

// Decimal is an arbitrary-precision decimal, backed by *big.Rat the same
// way the teacher backs its BigInt/Rational value kinds.
type Decimal struct{ Rat *big.Rat }

func NewDecimal(s string) (Decimal, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Decimal{}, fmt.Errorf("values: invalid decimal literal %q", s)
	}
	return Decimal{Rat: r}, nil
}

func (Decimal) Tag() typesystem.Tag { return typesystem.TAG_DECIMAL }
func (v Decimal) String() string {
	if v.Rat == nil {
		return "0"
	}
	return v.Rat.RatString()
}

// Str is a string value.
type Str string

func (Str) Tag() typesystem.Tag { return typesystem.TAG_STRING }
func (v Str) String() string    { return string(v) }

// Bool is a boolean value. Not a distinct spec §3 domain member (the
// spec's value domain omits booleans from its enumerated list) but
// every example language in the pack keeps one, and Jactl's own
// conditionals need it; modelled as its own tag (typesystem.TAG_BOOLEAN)
// rather than folded into Int, matching how the teacher keeps Boolean
// distinct from Integer.
type Bool bool

func (Bool) Tag() typesystem.Tag { return typesystem.TAG_BOOLEAN }
func (v Bool) String() string {
	if v {
		return "true"
	}
	return "false"
}

// Null is the singleton null value.
type Null struct{}

func (Null) Tag() typesystem.Tag { return typesystem.TAG_NULL }
func (Null) String() string      { return "null" }

// List is an ordered, heterogeneous sequence of values.
type List struct{ Elements []Value }

func NewList(elems ...Value) *List { return &List{Elements: elems} }

func (*List) Tag() typesystem.Tag { return typesystem.TAG_LIST }
func (l *List) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Map is an insertion-ordered string-keyed mapping, the way the teacher
// keeps its own Map ordered rather than hash-random (spec §3: "ordered
// mapping from string to V, insertion-preserving").
type Map struct {
	keys   []string
	values map[string]Value
}

func NewMap() *Map { return &Map{values: make(map[string]Value)} }

func (*Map) Tag() typesystem.Tag { return typesystem.TAG_MAP }

func (m *Map) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Map) Keys() []string { return append([]string{}, m.keys...) }
func (m *Map) Size() int      { return len(m.keys) }

func (m *Map) String() string {
	parts := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, m.values[k].String()))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// SortedKeys is a helper for deterministic diagnostics/debug output
// (e.g. rendering a map pattern's residual key set); Jactl Map iteration
// order elsewhere always follows insertion order, per spec §3.
func (m *Map) SortedKeys() []string {
	out := append([]string{}, m.keys...)
	sort.Strings(out)
	return out
}

// Instance is a user-class value: a class name plus its field slots.
type Instance struct {
	ClassName string
	Fields    map[string]Value
	Super     *Instance
}

func (*Instance) Tag() typesystem.Tag { return typesystem.TAG_INSTANCE }
func (i *Instance) String() string     { return fmt.Sprintf("%s@%p", i.ClassName, i) }

// FuncHandle is a first-class reference to a Jactl function, closure, or
// a host-registered function (spec §3 "method handle").
type FuncHandle struct {
	Name      string
	IsAsync   bool
	Upvalues  []Value
	NativeRef interface{} // opaque host implementation, non-nil for a registered function
}

func (*FuncHandle) Tag() typesystem.Tag { return typesystem.TAG_FUNCTION }
func (f *FuncHandle) String() string    { return fmt.Sprintf("Function<%s>", f.Name) }

// TypedArray wraps a fixed-element-type array (spec §3: "Typed arrays
// carry an element type"), distinct from List.
type TypedArray struct {
	Elem     typesystem.Type
	Elements []Value
}

func (*TypedArray) Tag() typesystem.Tag { return typesystem.TAG_ARRAY }
func (a *TypedArray) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return fmt.Sprintf("%s[%s]", a.Elem.String(), strings.Join(parts, ", "))
}

// Truthy implements Jactl's boolean-coercion rule used by if/while/&&/||
// and switch guards: null and zero-valued/empty values are false.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case Null:
		return false
	case Bool:
		return bool(t)
	case Int:
		return t != 0
	case Long:
		return t != 0
	case Double:
		return t != 0
	case Decimal:
		return t.Rat != nil && t.Rat.Sign() != 0
	case Str:
		return t != ""
	case *List:
		return len(t.Elements) > 0
	case *Map:
		return t.Size() > 0
	default:
		return true
	}
}

// NumericValue extracts a widened float64 view of any numeric Value, for
// comparisons that cross int/long/double/decimal (spec P2 widening
// rule). ok is false for a non-numeric value.
func NumericValue(v Value) (f float64, ok bool) {
	switch t := v.(type) {
	case Int:
		return float64(t), true
	case Long:
		return float64(t), true
	case Double:
		return float64(t), true
	case Decimal:
		if t.Rat == nil {
			return 0, true
		}
		f, _ := t.Rat.Float64()
		return f, true
	default:
		return 0, false
	}
}
