package values

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null{}, false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero int", Int(0), false},
		{"nonzero int", Int(1), true},
		{"empty string", Str(""), false},
		{"nonempty string", Str("x"), true},
		{"empty list", NewList(), false},
		{"nonempty list", NewList(Int(1)), true},
		{"empty map", NewMap(), false},
		{"instance always truthy", &Instance{ClassName: "Foo"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Truthy(c.v); got != c.want {
				t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
			}
		})
	}
}

func TestMapInsertionOrder(t *testing.T) {
	m := NewMap()
	m.Set("b", Int(2))
	m.Set("a", Int(1))
	m.Set("c", Int(3))
	got := m.Keys()
	want := []string{"b", "a", "c"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("Keys()[%d] = %q, want %q (got %v)", i, got[i], k, got)
		}
	}
	m.Delete("a")
	if m.Size() != 2 {
		t.Fatalf("Size() after delete = %d, want 2", m.Size())
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("Get(\"a\") ok after Delete")
	}
}

func TestFormatLiteralWithEpochHint(t *testing.T) {
	if got := FormatLiteralWithEpochHint("42", 42); got != "42" {
		t.Errorf("small literal got annotated: %q", got)
	}
	got := FormatLiteralWithEpochHint("1700000000", 1700000000)
	if got == "1700000000" {
		t.Errorf("epoch-shaped literal was not annotated")
	}
}
