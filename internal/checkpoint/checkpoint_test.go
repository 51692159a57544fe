package checkpoint

import (
	"context"
	"testing"

	"github.com/jactl-lang/jactl/internal/continuation"
)

// TestMemStoreRoundTrip exercises property P6: a saved continuation chain
// loads back with the same shape and content it was saved with.
func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	root := continuation.Root("main", 3, []int64{7}, []interface{}{"hello"})
	root.Result = int32(42)
	chain := root.Push("helper", 1, nil, []interface{}{"world"})

	handle, err := store.Save(ctx, chain)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, handle)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.MethodLocation != "helper" || loaded.ResumeLocation != 1 {
		t.Fatalf("leaf frame mismatch: %+v", loaded)
	}
	if loaded.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", loaded.Depth())
	}
	caller := loaded.Caller
	if caller == nil || caller.MethodLocation != "main" || caller.ResumeLocation != 3 {
		t.Fatalf("caller frame mismatch: %+v", caller)
	}
	if len(caller.LocalObjects) != 1 || caller.LocalObjects[0] != "hello" {
		t.Fatalf("caller LocalObjects mismatch: %+v", caller.LocalObjects)
	}

	if err := store.Delete(ctx, handle); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, handle); err != ErrNotFound {
		t.Fatalf("Load after Delete = %v, want ErrNotFound", err)
	}
}

func TestMemStoreLoadMissing(t *testing.T) {
	store := NewMemStore()
	if _, err := store.Load(context.Background(), Handle("nope")); err != ErrNotFound {
		t.Fatalf("Load(missing) = %v, want ErrNotFound", err)
	}
}
