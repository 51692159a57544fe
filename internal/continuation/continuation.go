// Package continuation implements the suspend/resume control-flow model
// from spec §4.4/§9: a Continuation record capturing exactly the state
// a resumed call needs, and the SuspendSignal/NullSignal panic values
// used to unwind back to the nearest resumable frame.
//
// Grounded on the teacher's Task (internal/evaluator/builtins_task.go):
// where the teacher parks an async computation behind a channel and a
// goroutine, this package instead parks it as a serialisable record a
// host can persist and resume later, since spec §4.4 requires resumption
// across process boundaries rather than just across goroutines.
package continuation

import (
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/token"
)

// Continuation is the frozen state of one suspended call, per spec §4.4:
// the caller to resume into, the resume handle (method + dense location),
// and the local state needed to rebuild the frame. Primitive and object
// locals are kept in separate slices (mirroring the teacher's typed-slot
// split in its bytecode VM) so a checkpoint store can serialise
// localPrimitives compactly without boxing.
type Continuation struct {
	Caller         *Continuation
	MethodLocation string // name of the suspended function (its key in the Machine's function table)
	ResumeLocation int    // 0..K-1 suspension-point index within MethodLocation (§4.4 I4/I5)
	LocalPrimitives []int64
	LocalObjects    []interface{}
	Result          interface{} // the value the resumed frame is re-entering with
}

// Root creates a continuation with no caller: the outermost suspended
// frame of a script invocation.
func Root(methodLocation string, resumeLocation int, prims []int64, objs []interface{}) *Continuation {
	return &Continuation{MethodLocation: methodLocation, ResumeLocation: resumeLocation, LocalPrimitives: prims, LocalObjects: objs}
}

// Push builds a new continuation frame chained onto an existing caller,
// the shape produced every time a suspend unwinds through a nested call.
// The receiver becomes the new frame's Caller, so repeated Push calls
// build a chain head-to-tail from outermost to innermost (see decode in
// internal/checkpoint, which Pushes frames in that order to end up with
// the innermost frame at the head).
func (c *Continuation) Push(methodLocation string, resumeLocation int, prims []int64, objs []interface{}) *Continuation {
	return &Continuation{Caller: c, MethodLocation: methodLocation, ResumeLocation: resumeLocation, LocalPrimitives: prims, LocalObjects: objs}
}

// AppendCaller attaches a new outermost frame at the far end of this
// chain from Push — the end away from the head — so an existing head
// keeps identifying the innermost (leaf) frame Resume must re-enter
// first (chain[0] in its walk), no matter how many enclosing calls the
// suspend signal passes through afterward. Each suspend builds its own
// fresh chain that nothing else holds a reference into yet, so mutating
// the current tail's Caller in place is safe.
func (c *Continuation) AppendCaller(methodLocation string, resumeLocation int, prims []int64, objs []interface{}) *Continuation {
	tail := c
	for tail.Caller != nil {
		tail = tail.Caller
	}
	tail.Caller = Root(methodLocation, resumeLocation, prims, objs)
	return c
}

// Depth counts frames from this continuation down to the root, used by
// the checkpoint store to size its serialisation buffer up front.
func (c *Continuation) Depth() int {
	n := 0
	for f := c; f != nil; f = f.Caller {
		n++
	}
	return n
}

// SuspendSignal is panicked by a forced-suspension call site (the
// `sleep(0, expr)` wrapper the decorator inserts) to unwind the Go call
// stack back to the nearest recover point that owns a Continuation.
// Kept entirely outside internal/diagnostics per spec §7/§9: it is
// control flow, never a user-visible error.
type SuspendSignal struct {
	Continuation *Continuation
	Resume       func() (interface{}, error) // how the host resumes this suspension
}

func (s *SuspendSignal) Error() string { return "jactl: suspend signal escaped recover boundary" }

// NullSignal is panicked by a `?.` safe-navigation chain to short-circuit
// the remainder of the chain once a nil receiver is seen. Also kept
// outside diagnostics: it is resolved silently into a null result by the
// nearest enclosing expression evaluator, never surfaced to the host.
type NullSignal struct{}

func (NullSignal) Error() string { return "jactl: null signal escaped recover boundary" }

// Recoverable reports whether a recovered panic value is one of this
// package's control-flow signals rather than a genuine Go panic that
// should keep propagating.
func Recoverable(r interface{}) bool {
	switch r.(type) {
	case *SuspendSignal, NullSignal:
		return true
	default:
		return false
	}
}

// InvalidLocationError converts an unexpected resume-location mismatch
// (I4/I5 violation: a checkpoint whose ResumeLocation doesn't exist in
// the method it names) into the diagnostic spec §4.4 names explicitly.
// tok is the best available source position; callers with no live
// token (e.g. resuming from a cold checkpoint) pass the zero value.
func InvalidLocationError(tok token.Token) *diagnostics.RuntimeError {
	return diagnostics.NewRuntimeError(diagnostics.ErrInvalidContinuationLoc, tok)
}
