// Equality/ordering over the value domain, used by OP_EQ/OP_NE/OP_LT...
// and by the pattern-match compiler's literal/binding equality tests
// (spec §4.3). Numeric comparison widens across int/long/double/Decimal
// exactly as property P2 requires for switch literal matching
// (1 == 1L == 1.0 == 1.00), grounded on the teacher's own cross-numeric
// comparison helper in its evaluator.
package values

import "strings"

// Equal reports whether a and b compare equal under Jactl's numeric
// widening rule (P2) and structural equality for list/map/string/bool/null.
func Equal(a, b Value) bool {
	if af, aok := NumericValue(a); aok {
		if bf, bok := NumericValue(b); bok {
			return af == bf
		}
		return false
	}
	switch av := a.(type) {
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	case *List:
		bv, ok := b.(*List)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equal(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || av.Size() != bv.Size() {
			return false
		}
		for _, k := range av.keys {
			bvv, found := bv.Get(k)
			if !found || !Equal(av.values[k], bvv) {
				return false
			}
		}
		return true
	case *ByteArray:
		bv, ok := b.(*ByteArray)
		if !ok {
			return false
		}
		ad, aerr := av.Bytes()
		bd, berr := bv.Bytes()
		return aerr == nil && berr == nil && string(ad) == string(bd)
	default:
		return a == b
	}
}

// Compare orders two numeric values for </<=/>/>=, widening the same
// way Equal does; two strings compare lexically. ok is false unless both
// sides are numeric or both are strings.
func Compare(a, b Value) (result int, ok bool) {
	af, aok := NumericValue(a)
	bf, bok := NumericValue(b)
	if !aok || !bok {
		if as, ok1 := a.(Str); ok1 {
			if bs, ok2 := b.(Str); ok2 {
				return strings.Compare(string(as), string(bs)), true
			}
		}
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}
