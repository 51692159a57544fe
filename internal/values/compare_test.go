package values

import "testing"

// TestEqualNumericWidening exercises property P2 directly at the value
// layer: 1, 1L, 1.0, and 1.00 must all compare equal despite having
// different tags.
func TestEqualNumericWidening(t *testing.T) {
	dec, err := NewDecimal("1.00")
	if err != nil {
		t.Fatal(err)
	}
	vals := []Value{Int(1), Long(1), Double(1.0), dec}
	for i := range vals {
		for j := range vals {
			if !Equal(vals[i], vals[j]) {
				t.Errorf("Equal(%v, %v) = false, want true", vals[i], vals[j])
			}
		}
	}
}

func TestEqualDistinctValues(t *testing.T) {
	if Equal(Int(1), Int(2)) {
		t.Error("Equal(1, 2) = true")
	}
	if Equal(Int(1), Str("1")) {
		t.Error("Equal(1, \"1\") = true, numeric must not equal string")
	}
}

func TestEqualStructural(t *testing.T) {
	a := NewList(Int(1), Str("x"))
	b := NewList(Int(1), Str("x"))
	c := NewList(Int(1), Str("y"))
	if !Equal(a, b) {
		t.Error("structurally identical lists not Equal")
	}
	if Equal(a, c) {
		t.Error("structurally different lists compared Equal")
	}
}

func TestCompareOrdering(t *testing.T) {
	cmp, ok := Compare(Int(1), Long(2))
	if !ok || cmp >= 0 {
		t.Errorf("Compare(1, 2L) = (%d, %v), want negative, true", cmp, ok)
	}
	cmp, ok = Compare(Str("a"), Str("b"))
	if !ok || cmp >= 0 {
		t.Errorf("Compare(\"a\", \"b\") = (%d, %v), want negative, true", cmp, ok)
	}
	if _, ok := Compare(Int(1), NewList()); ok {
		t.Error("Compare(1, []) ok, want false for incompatible types")
	}
}
