package codegen

// Emitter is the contract spec §4.5 requires any backend to satisfy:
// local-variable slots (typed primitive vs reference), try/catch
// regions, a computed jump over a small integer (switch-table), object
// allocation, method handle lookup/invoke, and a throw primitive. The
// core (this package) never depends on a concrete backend directly — it
// only needs to be able to produce a Chunk an Emitter can run, which is
// exactly what internal/vm.Machine does.
//
// Any backend meeting this surface is acceptable per §4.5 ("Any backend
// (bytecode, IR, interpreter loop) meeting this surface is acceptable").
// internal/vm is the reference implementation; a real bytecode target
// would implement the same interface over its own encoding.
type Emitter interface {
	// AllocSlot reserves a new local-variable slot, typed primitive or
	// reference, and returns its index.
	AllocSlot(primitive bool) int

	// BeginTry/EndTry bracket a try/catch region (used by safe-navigation
	// NullSignal handling and by the continuation transform's suspend
	// guard, spec §4.4's "guarded region").
	BeginTry() int
	EndTry(tryToken int)

	// EmitSwitchTable emits a computed jump over a dense 0..n-1 integer,
	// returning patchable offsets the caller fills in once each arm's
	// code is known (spec §4.5's "computed jump over a small integer").
	EmitSwitchTable(n int) []int

	// EmitNewInstance allocates a user-class instance.
	EmitNewInstance(className string, numArgs int)

	// EmitInvoke looks up and invokes a method handle (spec §6's
	// "method handle lookup/invoke").
	EmitInvoke(name string, numArgs int, async bool)

	// EmitThrow emits the throw primitive (spec §7's runtime-error
	// channel, never conflated with SuspendSignal/NullSignal per §9).
	EmitThrow()
}
