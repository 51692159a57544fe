package jactl

import (
	"strings"
	"testing"
	"time"

	"github.com/jactl-lang/jactl/internal/pipeline"
	"github.com/jactl-lang/jactl/internal/typesystem"
	"github.com/jactl-lang/jactl/internal/values"
	"github.com/jactl-lang/jactl/internal/vm"
)

// numeric reduces any of the value domain's numeric tags to a float64 so
// a test can compare "2" against int32(2) or int64(2) indifferently,
// mirroring spec P2's own numeric-widening equality.
func numeric(t *testing.T, v values.Value) float64 {
	t.Helper()
	f, ok := values.NumericValue(v)
	if !ok {
		t.Fatalf("value %#v (%s) is not numeric", v, v.String())
	}
	return f
}

func mustEval(t *testing.T, source string) values.Value {
	t.Helper()
	res := Eval(source)
	if res.Err != nil {
		t.Fatalf("Eval(%q): unexpected error: %v", source, res.Err)
	}
	return res.Value
}

// --- spec §8 concrete scenarios ------------------------------------------

func TestSwitchConcreteScenarios(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   float64
	}{
		{
			name:   "literal alternation",
			source: `switch (1) { 1,2 => 2 }`,
			want:   2,
		},
		{
			name:   "list pattern alternation",
			source: `switch ([1,2,3]) { [1,2],[1,2,4] => 1; [1,2,3] => 2 }`,
			want:   2,
		},
		{
			name:   "nested map/list destructure",
			source: `switch ([a:1,b:[2,3],c:3]) { [a:1,b:[int x,y],*] => x+y; default => 2 }`,
			want:   5,
		},
		{
			name:   "repeated binding equality",
			source: `def a = [1,2,3,2]; switch(a) { [_,z,_,z] => z }`,
			want:   2,
		},
		{
			name:   "per-alternative guards with it",
			source: `def a = 7; switch (a) { 1 if it != 2, 2 if it == 2, 3 => it; 7 if it == 7 => 11; _ => 0 }`,
			want:   11,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := numeric(t, mustEval(t, tc.source))
			if got != tc.want {
				t.Fatalf("%s = %v, want %v", tc.source, got, tc.want)
			}
		})
	}
}

// TestSwitchRegexCapture is scenario 6: a string-typed result ("b"), kept
// separate from the numeric table above.
func TestSwitchRegexCapture(t *testing.T) {
	source := `switch('abc') { /a(.)c/r => $1; default => 2 }`
	got := mustEval(t, source)
	s, ok := got.(values.Str)
	if !ok {
		t.Fatalf("result is %T (%s), want values.Str", got, got.String())
	}
	if string(s) != "b" {
		t.Fatalf("result = %q, want %q", s, "b")
	}
}

// --- spec §8 negative scenarios -------------------------------------------

func TestSwitchNegativeScenarios(t *testing.T) {
	cases := []struct {
		name      string
		source    string
		substring string
	}{
		{
			name:      "duplicate literal",
			source:    `switch (1) { 1 => 2; 1 => 3 }`,
			substring: "literal match occurs multiple times",
		},
		{
			name:      "can never be long",
			source:    `int x = 3; switch(x) { long => 4; default => 2 }`,
			substring: "can never be long",
		},
		{
			name:      "default never applicable",
			source:    `switch ([1,2,3]) { _ => 1; default => 2 }`,
			substring: "default case is never applicable",
		},
		{
			name:      "covered by previous",
			source:    `List a = [1,2]; switch(a) { [x,y],[_,x] => x }`,
			substring: "covered by previous",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Eval(tc.source)
			if res.Err == nil {
				t.Fatalf("%s: expected compile error containing %q, got value %v", tc.source, tc.substring, res.Value)
			}
			if !strings.Contains(res.Err.Error(), tc.substring) {
				t.Fatalf("%s: error %q does not contain %q", tc.source, res.Err.Error(), tc.substring)
			}
		})
	}
}

// TestSwitchMultipleDefault covers invariant I1's dual, the
// "cannot have multiple 'default'" diagnostic not among §8's four listed
// negative scenarios but named alongside them in §4.2's default-ordering
// rule.
func TestSwitchMultipleDefault(t *testing.T) {
	res := Eval(`switch (1) { default => 1; default => 2 }`)
	if res.Err == nil {
		t.Fatalf("expected compile error, got value %v", res.Value)
	}
	if !strings.Contains(res.Err.Error(), "cannot have multiple 'default'") {
		t.Fatalf("error %q does not contain expected substring", res.Err.Error())
	}
}

// --- spec P1: async/decorated equivalence ----------------------------------

// TestDecoratedEquivalence exercises P1 (§8): every concrete scenario
// above must evaluate to the same value when every eligible subexpression
// is forced through the decorator's sleep(0, _) wrapper (§4.6), proving
// the continuation transform is complete rather than merely untriggered.
func TestDecoratedEquivalence(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   float64
	}{
		{"literal alternation", `switch (1) { 1,2 => 2 }`, 2},
		{"list pattern alternation", `switch ([1,2,3]) { [1,2],[1,2,4] => 1; [1,2,3] => 2 }`, 2},
		{"nested map/list destructure", `switch ([a:1,b:[2,3],c:3]) { [a:1,b:[int x,y],*] => x+y; default => 2 }`, 5},
		{"repeated binding equality", `def a = [1,2,3,2]; switch(a) { [_,z,_,z] => z }`, 2},
		{"per-alternative guards with it", `def a = 7; switch (a) { 1 if it != 2, 2 if it == 2, 3 => it; 7 if it == 7 => 11; _ => 0 }`, 11},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := NewContext()
			script, err := ctx.CompileTestScript(tc.source, "<decorated>")
			if err != nil {
				t.Fatalf("CompileTestScript(%q): %v", tc.source, err)
			}
			res := script.RunSync()
			if res.Err != nil {
				t.Fatalf("decorated run of %q failed: %v", tc.source, res.Err)
			}
			got := numeric(t, res.Value)
			if got != tc.want {
				t.Fatalf("decorated %s = %v, want %v (undecorated value)", tc.source, got, tc.want)
			}
		})
	}
}

// --- spec §8 async scenario -------------------------------------------------

// TestSleepSuspendsAndResumes adapts §8's "measure(closure)" async scenario:
// registering a user async function that wraps a closure is outside what
// the current embedding surface exposes (no mechanism yet to invoke a
// Jactl closure value from Go host code), so this drives the same
// suspend/resume machinery directly through the built-in `sleep` suspension
// primitive (§4.1/§9) and measures the same property the original scenario
// checks: the call genuinely suspends for approximately its argument in
// milliseconds rather than completing synchronously.
func TestSleepSuspendsAndResumes(t *testing.T) {
	start := time.Now()
	res := Eval(`sleep(1000)`)
	elapsed := time.Since(start)
	if res.Err != nil {
		t.Fatalf("Eval(sleep(1000)): unexpected error: %v", res.Err)
	}
	if elapsed < 1_000*time.Millisecond {
		t.Fatalf("sleep(1000) returned after %v, want >= 1s (suspend must be genuine, not a no-op)", elapsed)
	}
	if elapsed > 1_100*time.Millisecond {
		t.Fatalf("sleep(1000) returned after %v, want <= 1.1s", elapsed)
	}
}

// --- embedding surface smoke tests ------------------------------------------

func TestRegisterNativeFunction(t *testing.T) {
	ctx := NewContext()
	double := vm.NativeFunc(func(args []values.Value) (values.Value, error) {
		n := numericArg(args, 0)
		return values.Int(int32(n * 2)), nil
	})
	ctx.RegisterFunction(pipeline.FuncRegistration{
		Name:       "double",
		ParamTypes: []typesystem.Type{typesystem.Def()},
		Impl:       double,
	})
	script, err := ctx.CompileScript(`double(21)`, "<native>")
	if err != nil {
		t.Fatalf("CompileScript: %v", err)
	}
	res := script.RunSync()
	if res.Err != nil {
		t.Fatalf("RunSync: %v", res.Err)
	}
	if got := numeric(t, res.Value); got != 42 {
		t.Fatalf("double(21) = %v, want 42", got)
	}
}

func numericArg(args []values.Value, i int) float64 {
	if i >= len(args) {
		return 0
	}
	f, _ := values.NumericValue(args[i])
	return f
}

// --- comment-4 node coverage: Closure, MethodCall, ExprString, ArrayGet,
// FieldAssign, InvokeNew, Eval -----------------------------------------

func TestClosureCallDynamic(t *testing.T) {
	got := numeric(t, mustEval(t, `def add = { x, y -> x + y }; add(3, 4)`))
	if got != 7 {
		t.Fatalf("add(3,4) = %v, want 7", got)
	}
}

// TestClosureCapturesUpvalue exercises compileClosure's free-variable
// capture: n is an outer local the closure body reads but never binds, so
// it must be threaded through as a leading synthetic-function parameter.
func TestClosureCapturesUpvalue(t *testing.T) {
	got := numeric(t, mustEval(t, `def n = 10; def addN = { x -> x + n }; addN(5)`))
	if got != 15 {
		t.Fatalf("addN(5) = %v, want 15", got)
	}
}

// TestClassFieldsAndMethodCall drives InvokeNew (construction, field
// defaulting/initialisation), FieldAssign (constructor body and a
// post-construction mutation), and MethodCall in both its zero-arg
// property-read and explicit-call forms.
func TestClassFieldsAndMethodCall(t *testing.T) {
	source := `
class Rectangle {
  int w
  int h
  Rectangle(int w, int h) {
    this.w = w
    this.h = h
  }
  int area() {
    return this.w * this.h
  }
}
def r = new Rectangle(3, 4)
r.area()
`
	got := numeric(t, mustEval(t, source))
	if got != 12 {
		t.Fatalf("r.area() = %v, want 12", got)
	}
}

func TestFieldAssignMutatesInstance(t *testing.T) {
	source := `
class Box {
  int v
  Box(int v) { this.v = v }
}
def b = new Box(1)
b.v = 42
b.v
`
	got := numeric(t, mustEval(t, source))
	if got != 42 {
		t.Fatalf("b.v after assignment = %v, want 42", got)
	}
}

func TestArrayGetRuntimeIndex(t *testing.T) {
	got := numeric(t, mustEval(t, `def a = [10, 20, 30]; def i = 2; a[i]`))
	if got != 30 {
		t.Fatalf("a[i] = %v, want 30", got)
	}
}

func TestExprStringInterpolation(t *testing.T) {
	got := mustEval(t, `def x = 41; "answer: ${x + 1}"`)
	s, ok := got.(values.Str)
	if !ok {
		t.Fatalf("result is %T (%s), want values.Str", got, got.String())
	}
	if string(s) != "answer: 42" {
		t.Fatalf("result = %q, want %q", s, "answer: 42")
	}
}

func TestEvalBuiltinNoBindings(t *testing.T) {
	got := numeric(t, mustEval(t, `eval("1 + 2")`))
	if got != 3 {
		t.Fatalf("eval(\"1+2\") = %v, want 3", got)
	}
}

func TestEvalBuiltinWithBindings(t *testing.T) {
	got := numeric(t, mustEval(t, `eval("x + 1", [x:10])`))
	if got != 11 {
		t.Fatalf("eval(\"x+1\", [x:10]) = %v, want 11", got)
	}
}

// TestMeasureAsyncClosure is spec §8's mandatory async scenario, driven
// exactly as described: measure{ sleep(1000) } must return a value
// between 1,000,000,000 and 1,100,000,000 nanoseconds, proving a
// suspension inside a dynamically-invoked closure value genuinely
// propagates through measure's own async call site rather than being
// swallowed or timed as zero.
func TestMeasureAsyncClosure(t *testing.T) {
	got := numeric(t, mustEval(t, `measure({ sleep(1000) })`))
	if got < 1_000_000_000 {
		t.Fatalf("measure(...) = %v ns, want >= 1,000,000,000", got)
	}
	if got > 1_100_000_000 {
		t.Fatalf("measure(...) = %v ns, want <= 1,100,000,000", got)
	}
}

func TestEvalRunAsync(t *testing.T) {
	c := NewContext()
	script, err := c.CompileScript(`1 + 1`, "<run>")
	if err != nil {
		t.Fatalf("CompileScript: %v", err)
	}
	done := make(chan Result, 1)
	script.Run(func(r Result) { done <- r })
	select {
	case r := <-done:
		if r.Err != nil {
			t.Fatalf("Run: %v", r.Err)
		}
		if got := numeric(t, r.Value); got != 2 {
			t.Fatalf("1+1 = %v, want 2", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not deliver a result in time")
	}
}
