package vm

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/jactl-lang/jactl/internal/codegen"
	"github.com/jactl-lang/jactl/internal/continuation"
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/token"
	"github.com/jactl-lang/jactl/internal/typesystem"
	"github.com/jactl-lang/jactl/internal/values"
)

// widestTag picks the tag OP_ADD/OP_SUB/etc. should compute in, per the
// P2 widening rule (int < long < double < Decimal) also used by pattern
// literal comparison in values.Equal/Compare.
func widestTag(a, b values.Value) (values.Value, values.Value, int) {
	rank := func(v values.Value) int {
		switch v.(type) {
		case values.Int:
			return 0
		case values.Long:
			return 1
		case values.Double:
			return 2
		case values.Decimal:
			return 3
		default:
			return -1
		}
	}
	ra, rb := rank(a), rank(b)
	if ra > rb {
		return a, b, ra
	}
	return a, b, rb
}

func toDecimal(v values.Value) *big.Rat {
	switch t := v.(type) {
	case values.Int:
		return new(big.Rat).SetInt64(int64(t))
	case values.Long:
		return new(big.Rat).SetInt64(int64(t))
	case values.Double:
		return new(big.Rat).SetFloat64(float64(t))
	case values.Decimal:
		if t.Rat == nil {
			return new(big.Rat)
		}
		return t.Rat
	default:
		return new(big.Rat)
	}
}

// arith evaluates a binary arithmetic opcode over two numeric values
// (widening per P2) or, for OP_ADD, string concatenation when either
// operand is a Str — the teacher's own `+` overload for strings.
func arith(op codegen.Opcode, a, b values.Value) (values.Value, error) {
	if op == codegen.OP_ADD {
		if as, ok := a.(values.Str); ok {
			return as + values.Str(stringOf(b)), nil
		}
		if bs, ok := b.(values.Str); ok {
			return values.Str(stringOf(a)) + bs, nil
		}
	}

	af, aok := values.NumericValue(a)
	bf, bok := values.NumericValue(b)
	if !aok || !bok {
		return nil, diagnostics.NewRuntimeError(diagnostics.ErrIncompatibleType, token.Token{}, a.Tag().String(), b.Tag().String())
	}

	_, _, rank := widestTag(a, b)
	if rank == 3 {
		ra, rb := toDecimal(a), toDecimal(b)
		var out *big.Rat
		switch op {
		case codegen.OP_ADD:
			out = new(big.Rat).Add(ra, rb)
		case codegen.OP_SUB:
			out = new(big.Rat).Sub(ra, rb)
		case codegen.OP_MUL:
			out = new(big.Rat).Mul(ra, rb)
		case codegen.OP_DIV:
			if rb.Sign() == 0 {
				return nil, diagnostics.NewRuntimeError(diagnostics.ErrDivisionByZero, token.Token{})
			}
			out = new(big.Rat).Quo(ra, rb)
		default:
			f, err := floatArith(op, af, bf)
			if err != nil {
				return nil, err
			}
			return values.Decimal{Rat: new(big.Rat).SetFloat64(f)}, nil
		}
		return values.Decimal{Rat: out}, nil
	}

	f, err := floatArith(op, af, bf)
	if err != nil {
		return nil, err
	}
	switch rank {
	case 0:
		return values.Int(int32(f)), nil
	case 1:
		return values.Long(int64(f)), nil
	default:
		return values.Double(f), nil
	}
}

func floatArith(op codegen.Opcode, a, b float64) (float64, error) {
	switch op {
	case codegen.OP_ADD:
		return a + b, nil
	case codegen.OP_SUB:
		return a - b, nil
	case codegen.OP_MUL:
		return a * b, nil
	case codegen.OP_DIV:
		if b == 0 {
			return 0, diagnostics.NewRuntimeError(diagnostics.ErrDivisionByZero, token.Token{})
		}
		return a / b, nil
	case codegen.OP_MOD:
		if b == 0 {
			return 0, diagnostics.NewRuntimeError(diagnostics.ErrDivisionByZero, token.Token{})
		}
		return float64(int64(a) % int64(b)), nil
	case codegen.OP_POW:
		result := 1.0
		n := int(b)
		neg := n < 0
		if neg {
			n = -n
		}
		for i := 0; i < n; i++ {
			result *= a
		}
		if neg {
			result = 1 / result
		}
		return result, nil
	}
	return 0, nil
}

func stringOf(v values.Value) string { return v.String() }

func negate(v values.Value) values.Value {
	switch t := v.(type) {
	case values.Int:
		return -t
	case values.Long:
		return -t
	case values.Double:
		return -t
	case values.Decimal:
		if t.Rat == nil {
			return t
		}
		return values.Decimal{Rat: new(big.Rat).Neg(t.Rat)}
	default:
		return v
	}
}

// compareOp interprets the three-way result Compare returns against the
// specific ordering opcode.
func compareOp(op codegen.Opcode, cmp int) bool {
	switch op {
	case codegen.OP_LT:
		return cmp < 0
	case codegen.OP_LE:
		return cmp <= 0
	case codegen.OP_GT:
		return cmp > 0
	case codegen.OP_GE:
		return cmp >= 0
	default:
		return false
	}
}

// listLen reports a list/array's element count for OP_CHECK_LEN.
func listLen(v values.Value) (int, bool) {
	switch t := v.(type) {
	case *values.List:
		return len(t.Elements), true
	case *values.TypedArray:
		return len(t.Elements), true
	default:
		return 0, false
	}
}

// matchRegex implements OP_MATCH_REGEX: the subject must be string-shaped
// (spec §4.3's "RegexPattern ... subject must be string-shaped"); capture
// groups are returned in $1..$N order for OP_GET_CAPTURE to index. source
// is either a bare pattern (RegexPattern's convention in
// internal/codegen/patterns.go) or a "pattern\x00flags" pair (RegexMatch's
// convention in internal/codegen/compiler.go) — both are accepted here.
func matchRegex(source string, subject values.Value) (bool, []string, error) {
	s, ok := subject.(values.Str)
	if !ok {
		return false, nil, diagnostics.NewRuntimeError(diagnostics.ErrRegexSubjectNotString, token.Token{}, subject.Tag().String())
	}
	pattern, flags := source, ""
	if i := strings.IndexByte(source, 0); i >= 0 {
		pattern, flags = source[:i], source[i+1:]
	}
	if strings.Contains(flags, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, nil, err
	}
	m := re.FindStringSubmatch(string(s))
	if m == nil {
		return false, nil, nil
	}
	// Keep index 0 as the whole match so $1 (OP_GET_CAPTURE A=1) lines up
	// with capture group 1 directly; $1..$N never read index 0.
	return true, m, nil
}

// castValue implements OP_CAST (`(T) expr`): numeric narrowing/widening
// between int/long/double/Decimal, string coercion via String(), and an
// identity cast whenever v already carries the target tag. Anything else
// (casting a List to an Instance, say) is the spec's "cannot cast" error,
// grounded on the teacher's own cast-check shape (one tag-pair switch,
// reusing the same diagnostics.ErrBadCast code InstanceOf checks rely on
// for its negative case).
func castValue(target typesystem.Tag, v values.Value) (values.Value, error) {
	if v.Tag() == target {
		return v, nil
	}
	switch target {
	case typesystem.TAG_INT:
		if f, ok := values.NumericValue(v); ok {
			return values.Int(int32(f)), nil
		}
	case typesystem.TAG_LONG:
		if f, ok := values.NumericValue(v); ok {
			return values.Long(int64(f)), nil
		}
	case typesystem.TAG_DOUBLE:
		if f, ok := values.NumericValue(v); ok {
			return values.Double(f), nil
		}
	case typesystem.TAG_DECIMAL:
		if _, ok := values.NumericValue(v); ok {
			return values.Decimal{Rat: toDecimal(v)}, nil
		}
	case typesystem.TAG_STRING:
		return values.Str(v.String()), nil
	case typesystem.TAG_DEF:
		return v, nil
	}
	return nil, diagnostics.NewRuntimeError(diagnostics.ErrBadCast, token.Token{}, v.Tag().String(), target.String())
}

// indexGet implements OP_INDEX_GET (`container[index]`), the
// runtime-computed-index counterpart to the pattern-matching opcodes'
// constant OP_GET_ELEM/OP_GET_MAPKEY: a List/TypedArray is indexed
// numerically (negative counts from the end, per the teacher's own
// array-index convention), a Map by the index value's string form, and a
// Str by single-character substring. Out-of-range indices return null
// rather than erroring, mirroring OP_GET_ELEM/OP_GET_TAIL_ELEM's existing
// pattern-match leniency.
func indexGet(container, index values.Value) values.Value {
	switch c := container.(type) {
	case *values.List:
		i, ok := values.NumericValue(index)
		if !ok {
			return values.Null{}
		}
		idx := int(i)
		if idx < 0 {
			idx += len(c.Elements)
		}
		if idx < 0 || idx >= len(c.Elements) {
			return values.Null{}
		}
		return c.Elements[idx]
	case *values.TypedArray:
		i, ok := values.NumericValue(index)
		if !ok {
			return values.Null{}
		}
		idx := int(i)
		if idx < 0 {
			idx += len(c.Elements)
		}
		if idx < 0 || idx >= len(c.Elements) {
			return values.Null{}
		}
		return c.Elements[idx]
	case *values.Map:
		v, found := c.Get(index.String())
		if !found {
			return values.Null{}
		}
		return v
	case values.Str:
		i, ok := values.NumericValue(index)
		if !ok {
			return values.Null{}
		}
		idx := int(i)
		runes := []rune(string(c))
		if idx < 0 {
			idx += len(runes)
		}
		if idx < 0 || idx >= len(runes) {
			return values.Null{}
		}
		return values.Str(string(runes[idx]))
	default:
		return values.Null{}
	}
}

// snapshotLocals captures a frame's live locals for a Continuation.
// Every slot is boxed into LocalObjects (see the package doc comment's
// note on why LocalPrimitives stays unused in this backend).
func snapshotLocals(fr *frame) ([]int64, []interface{}) {
	objs := make([]interface{}, len(fr.locals))
	for i, v := range fr.locals {
		objs[i] = v
	}
	return nil, objs
}

// restoreLocals rebuilds a frame's locals from a resumed Continuation.
func restoreLocals(fr *frame, cont *continuation.Continuation) {
	for i, o := range cont.LocalObjects {
		if i >= len(fr.locals) {
			break
		}
		if v, ok := o.(values.Value); ok {
			fr.locals[i] = v
		}
	}
}
