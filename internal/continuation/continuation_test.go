package continuation

import (
	"testing"

	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/token"
)

func TestRootAndPushChain(t *testing.T) {
	root := Root("main", 0, nil, []interface{}{"a"})
	if root.Caller != nil {
		t.Fatal("Root must have a nil Caller")
	}
	if root.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", root.Depth())
	}

	mid := root.Push("helper", 2, nil, []interface{}{"b"})
	if mid.Caller != root {
		t.Fatal("Push did not chain onto its receiver")
	}
	if mid.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", mid.Depth())
	}

	leaf := mid.Push("innermost", 1, nil, nil)
	if leaf.Depth() != 3 {
		t.Fatalf("Depth() = %d, want 3", leaf.Depth())
	}

	// Walk from leaf back to root and confirm the chain order/content.
	walk := []*Continuation{leaf, mid, root}
	wantLocations := []string{"innermost", "helper", "main"}
	for i, c := range walk {
		if c.MethodLocation != wantLocations[i] {
			t.Errorf("frame %d MethodLocation = %q, want %q", i, c.MethodLocation, wantLocations[i])
		}
	}
}

func TestRecoverable(t *testing.T) {
	if !Recoverable(&SuspendSignal{Continuation: Root("f", 0, nil, nil)}) {
		t.Error("SuspendSignal should be Recoverable")
	}
	if !Recoverable(NullSignal{}) {
		t.Error("NullSignal should be Recoverable")
	}
	if Recoverable("boom") {
		t.Error("an arbitrary panic value must not be Recoverable")
	}
	if Recoverable(nil) {
		t.Error("nil should not be Recoverable")
	}
}

func TestInvalidLocationError(t *testing.T) {
	rerr := InvalidLocationError(token.Token{})
	if rerr.Code != diagnostics.ErrInvalidContinuationLoc {
		t.Errorf("Code = %v, want %v", rerr.Code, diagnostics.ErrInvalidContinuationLoc)
	}
}
