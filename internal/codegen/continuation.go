// Continuation transform (spec §4.4, SPEC_FULL §3.4). Grounded two ways:
// the dispatch-on-integer-location idiom comes from the teacher's own
// vm_exec.go opcode-fetch loop (switch on an integer instruction
// pointer); the async-coloring/live-locals-snapshot idiom is grounded on
// stealthrocket/coroutine's coroc compiler (colorFunctions in
// _examples/other_examples/b0e68cc2_tsingson-coroutine__coroc-compiler-compile.go.go),
// which identifies call sites that may yield and threads a serialized
// frame across them the same way this file threads a Continuation
// across OP_CALL_ASYNC sites.
//
// Every async function starts with an OP_RESUME_DISPATCH landing pad
// (emitFunctionPrologue): on a fresh call cont is absent and execution
// starts at offset 0; on a resumed call the VM's run() jumps, before its
// dispatch loop starts, straight to the instruction just past the
// OP_CALL_ASYNC that suspended, with every local already restored from
// the Continuation's LocalObjects slice (spec I4: the location space is dense 0..K-1 in source order, I5: a
// slot reserved at a suspension point stays reserved in every resume
// path for that function).
package codegen

import "github.com/jactl-lang/jactl/internal/ast"

// emitFunctionPrologue emits the landing pad of an async function. It
// reserves no location: a fresh call never consults ResumeOffsets, so
// registerSuspension numbers suspension points from 0 as compileCall
// discovers OP_CALL_ASYNC sites in source order.
func (c *Compiler) emitFunctionPrologue(fn *Function) {
	if fn.IsAsync {
		c.emit(Instr{Op: OP_RESUME_DISPATCH})
	}
}

// registerSuspension records a new dense suspension-point location
// (invariant I4) and returns its index, to be embedded in the
// OP_CALL_ASYNC/OP_MAKE_CONTINUATION instruction pair so the resume
// dispatch table and the Continuation.ResumeLocation value produced at
// suspend time agree on the same integer.
func (c *Compiler) registerSuspension() int {
	loc := len(c.fn.ResumeOffsets)
	c.fn.ResumeOffsets = append(c.fn.ResumeOffsets, 0) // patched once the resume offset is known
	return loc
}

// emitSuspendGuard wraps a compiled OP_CALL_ASYNC instruction with the
// bookkeeping a suspend needs: reserve the location, emit
// OP_MAKE_CONTINUATION tagged with that location so the runtime can
// build the Continuation record if the call signals SuspendSignal
// instead of returning, and record the instruction offset immediately
// after the call as this location's resume target (I4/I5).
func (c *Compiler) emitSuspendGuard(emitCall func()) {
	loc := c.registerSuspension()
	emitCall()
	c.emit(Instr{Op: OP_MAKE_CONTINUATION, A: loc})
	c.fn.ResumeOffsets[loc] = len(c.chunk.Code)
}

// --- Switch compilation --------------------------------------------------

// compileSwitch lowers a Switch expression (spec §4.2/§4.3). The subject
// is evaluated once and kept on the stack for the lifetime of the
// match — every pattern check DUPs it, and once a case's result is
// computed the subject copy underneath is discarded with SWAP+POP,
// leaving just the result (spec §4.3's "subject stays addressable by
// slot/index through the whole match").
func (c *Compiler) compileSwitch(n *ast.Switch) {
	if n.Subject != nil {
		c.compileExpr(n.Subject)
	} else if slot, ok := c.resolveLocal("it"); ok {
		c.emit(Instr{Op: OP_GET_LOCAL, A: slot})
	} else {
		c.emit(Instr{Op: OP_GET_GLOBAL, Str: "it"})
	}

	var endJumps []int
	for _, cs := range n.Cases {
		nextCase := c.compileSwitchCase(cs)
		c.emit(Instr{Op: OP_SWAP})
		c.emit(Instr{Op: OP_POP})
		endJumps = append(endJumps, c.emit(Instr{Op: OP_JUMP}))
		c.patchFails(nextCase)
	}

	if n.Default != nil {
		c.compileCaseBody(n.Default, map[string]int{})
		c.emit(Instr{Op: OP_SWAP})
		c.emit(Instr{Op: OP_POP})
	} else {
		// Analyser-guaranteed exhaustiveness (spec §4.2 step 4) makes this
		// path unreachable at runtime; keep the stack balanced defensively.
		c.emit(Instr{Op: OP_POP})
		c.emit(Instr{Op: OP_NIL})
	}

	for _, j := range endJumps {
		c.chunk.patchJumpHere(j)
	}
}

// bindItToSubject defines `it` as a local within the current (case)
// scope and sets it to the subject value already sitting on top of the
// stack — mirroring the resolver's per-case `it` (re)definition (§8
// scenario 5) so a guard/result can read the subject as `it` even when
// the switch names an explicit subject. OP_SET_LOCAL peeks rather than
// pops (see bindOrCompare), so DUP/SET_LOCAL/POP leaves the subject
// itself untouched underneath for the pattern checks that follow.
func (c *Compiler) bindItToSubject() {
	slot := c.defineLocal("it")
	c.emit(Instr{Op: OP_DUP})
	c.emit(Instr{Op: OP_SET_LOCAL, A: slot})
	c.emit(Instr{Op: OP_POP})
}

// compileSwitchCase compiles one case's pattern alternation (any
// Patterns[i] matching runs the shared body) and returns the jump
// indices to patch to the start of the *next* case, i.e. every
// alternative's failure path once the last alternative is reached.
func (c *Compiler) compileSwitchCase(cs *ast.SwitchCase) []int {
	c.beginScope()
	defer c.endScope()
	bindings := map[string]int{}
	c.bindItToSubject()

	var matched []int
	var nextCase []int
	for i, pat := range cs.Patterns {
		fails := c.compilePattern(pat, bindings)
		// Each alternative's own guard (spec §8 scenario 5) gates only
		// that alternative: a guard failure falls through to trying the
		// next alternative, exactly like a structural pattern failure.
		if guard := cs.GuardFor(i); guard != nil {
			c.compileExpr(guard)
			fails = append(fails, c.emit(Instr{Op: OP_JUMP_IF_FALSE}))
		}
		if i < len(cs.Patterns)-1 {
			matched = append(matched, c.emit(Instr{Op: OP_JUMP}))
			c.patchFails(fails)
		} else {
			nextCase = fails
		}
	}
	for _, j := range matched {
		c.chunk.patchJumpHere(j)
	}

	c.compileExpr(cs.Result)
	return nextCase
}

// compileCaseBody compiles a default case (no pattern, only an optional
// guard and always the result).
func (c *Compiler) compileCaseBody(cs *ast.SwitchCase, bindings map[string]int) {
	c.beginScope()
	defer c.endScope()
	c.bindItToSubject()
	if cs.Guard != nil {
		// A guarded default still must produce a value; the analyser
		// rejects a default whose guard can fail with nothing left to
		// fall back to (spec §8's "default case is never applicable" is
		// the dual of this), so codegen trusts the guard always holds here.
		c.compileExpr(cs.Guard)
		c.emit(Instr{Op: OP_POP})
	}
	c.compileExpr(cs.Result)
}
