// Package vm is the reference backend for the code generator's contract
// (spec §4.5, internal/codegen.Emitter): a stack-machine interpreter that
// runs the Instr stream internal/codegen produces, including the
// suspend/resume state machine of spec §4.4.
//
// Grounded on the teacher's internal/vm/vm_exec.go dispatch loop: a flat
// `for { instr := chunk.Code[ip]; switch instr.Op { ... }; ip++ }` over
// one function's instruction stream, a Go slice as the operand stack,
// and a slice of locals indexed by compile-time-assigned slot number.
// Unlike the teacher's loop, every call that may suspend is wrapped in a
// panic/recover pair carrying a *continuation.SuspendSignal: this is the
// "specialised throw/catch" non-local-transfer design note calls for
// (spec §9), never unified with diagnostics.CompileError/RuntimeError.
//
// Simplification recorded in DESIGN.md: codegen.Function.PrimitiveSlots
// is never populated and Continuation.LocalPrimitives stays empty here —
// every local is snapshotted through LocalObjects as a boxed
// values.Value, since Go's interface{} already unboxes/boxes uniformly
// and the primitive/object slot split only pays for itself against a
// backend with genuinely unboxed primitive registers (e.g. a JVM-style
// target), which this reference interpreter is not.
package vm

import (
	"context"
	"fmt"
	"time"

	"github.com/jactl-lang/jactl/internal/codegen"
	"github.com/jactl-lang/jactl/internal/continuation"
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/host"
	"github.com/jactl-lang/jactl/internal/token"
	"github.com/jactl-lang/jactl/internal/typesystem"
	"github.com/jactl-lang/jactl/internal/values"
)

// NativeFunc is a synchronous host-registered function (spec §6: "user
// function/method registration").
type NativeFunc func(args []values.Value) (values.Value, error)

// AsyncOutcome is the single result an async call's channel delivers.
type AsyncOutcome struct {
	Value values.Value
	Err   error
}

// AsyncFunc is a host-registered function marked async at registration
// (spec §6/§4.1 bullet 3). It returns a channel that receives exactly
// one AsyncOutcome once the operation completes. If the channel is
// already readable by the time OP_CALL_ASYNC checks it, the call
// behaves like a NativeFunc and never suspends its caller; otherwise the
// Machine suspends and the channel read is deferred into the resulting
// SuspendSignal.Resume closure for the host to drive later.
type AsyncFunc func(env host.Environment, args []values.Value) <-chan AsyncOutcome

// Machine holds every compiled Function plus the host collaborators
// (spec §5/§6) a running script needs: the scheduling Environment and
// the native/async registration tables bridging Jactl calls to Go code.
type Machine struct {
	Functions map[string]*codegen.Function
	Classes   map[string]*codegen.ClassInfo
	Natives   map[string]NativeFunc
	Asyncs    map[string]AsyncFunc
	Globals   map[string]values.Value
	Env       host.Environment
}

func New(functions map[string]*codegen.Function, env host.Environment) *Machine {
	m := &Machine{
		Functions: functions,
		Classes:   map[string]*codegen.ClassInfo{},
		Natives:   map[string]NativeFunc{},
		Asyncs:    map[string]AsyncFunc{},
		Globals:   map[string]values.Value{},
		Env:       env,
	}
	m.Asyncs["sleep"] = sleepBuiltin
	m.Asyncs["measure"] = m.measureBuiltin
	return m
}

// measureBuiltin is the mandatory async scenario's `measure(closure)`
// primitive (spec §8: "invoking measure{ sleep(1000) } must return a
// value >= 1,000,000,000 nanoseconds and <= 1,100,000,000"): it invokes a
// host-visible closure value (a *values.FuncHandle) through the same
// suspend-capable path OP_CALL_ASYNC_VALUE uses, and returns the wall-clock
// duration of that call — including any suspension inside it — as whole
// nanoseconds, matching the scenario's own units exactly rather than
// wrapping it in a result envelope. Grounded on the teacher's
// builtins_task.go pattern of a host-registered function driving a nested
// evaluation via a channel rather than a direct call, so a suspend inside
// the callback surfaces as this AsyncFunc's own channel send rather than
// blocking the scheduler goroutine.
func (m *Machine) measureBuiltin(env host.Environment, args []values.Value) <-chan AsyncOutcome {
	ch := make(chan AsyncOutcome, 1)
	var fh values.Value = values.Null{}
	if len(args) > 0 {
		fh = args[0]
	}
	handle, ok := fh.(*values.FuncHandle)
	if !ok {
		ch <- AsyncOutcome{Err: fmt.Errorf("vm: measure() expects a closure value as its first argument")}
		return ch
	}
	callArgs := args[1:]
	env.ScheduleBlocking(func(ctx context.Context) {
		start := time.Now()
		_, susp, resume, err := m.Invoke(handle, callArgs)
		for susp != nil && err == nil {
			res, rerr := resume()
			_, susp, resume, err = m.Resume(susp, res, rerr)
		}
		if err != nil {
			ch <- AsyncOutcome{Err: err}
			return
		}
		ch <- AsyncOutcome{Value: values.Long(time.Since(start).Nanoseconds())}
	})
	return ch
}

// sleepBuiltin is the `sleep(ms[, value])` primitive spec §4.1/§9 names
// as the canonical suspension point: the scheduled callback always runs
// through the Environment's event channel (even for ms == 0, the
// decorator's `sleep(0, expr)` wrapper, spec §4.6), so the caller's
// OP_CALL_ASYNC check never observes the channel as already-readable and
// the continuation machinery is genuinely exercised (property P1) rather
// than short-circuited.
func sleepBuiltin(env host.Environment, args []values.Value) <-chan AsyncOutcome {
	ch := make(chan AsyncOutcome, 1)
	var delayMs int64
	var result values.Value = values.Null{}
	if len(args) > 0 {
		if f, ok := values.NumericValue(args[0]); ok {
			delayMs = int64(f)
		}
	}
	if len(args) > 1 {
		result = args[1]
	}
	env.ScheduleEventAfter(context.Background(), func(ctx context.Context) {
		ch <- AsyncOutcome{Value: result}
	}, delayMs)
	return ch
}

// RegisterNative wires a synchronous host function under name (spec §6).
func (m *Machine) RegisterNative(name string, fn NativeFunc) { m.Natives[name] = fn }

// RegisterAsync wires an async host function under name (spec §6).
func (m *Machine) RegisterAsync(name string, fn AsyncFunc) { m.Asyncs[name] = fn }

// frame is one function activation's interpreter state.
type frame struct {
	fn       *codegen.Function
	locals   []values.Value
	stack    []values.Value
	ip       int
	captures []string // last OP_MATCH_REGEX's capture groups, for OP_GET_CAPTURE
}

func newFrame(fn *codegen.Function) *frame {
	return &frame{fn: fn, locals: make([]values.Value, fn.NumSlots)}
}

func (f *frame) push(v values.Value) { f.stack = append(f.stack, v) }
func (f *frame) pop() values.Value {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]
	return v
}
func (f *frame) peek() values.Value { return f.stack[len(f.stack)-1] }

func (f *frame) popN(n int) []values.Value {
	if n == 0 {
		return nil
	}
	start := len(f.stack) - n
	out := append([]values.Value{}, f.stack[start:]...)
	f.stack = f.stack[:start]
	return out
}

// Resumer is how a host drives a suspended script forward: calling it
// blocks until the suspension that produced it resolves (directly for an
// in-process collaborator, or after the host's own wait on an external
// event for a checkpointed one), returning the external result/error
// Resume should be fed.
type Resumer func() (values.Value, error)

// Call runs fn from the top (no saved continuation) with args bound to
// its first len(args) local slots. A non-nil Resumer is returned
// alongside a non-nil suspended continuation exactly when the call
// suspended instead of returning.
func (m *Machine) Call(fn *codegen.Function, args []values.Value) (result values.Value, suspended *continuation.Continuation, resume Resumer, err error) {
	return m.run(fn, args, nil, true)
}

// Resume re-enters a suspended call chain with the external result of
// the leaf suspension point (spec §4.4's resume label: "restores locals
// ... reads cont.getResult() ... proceeds"). The chain is walked
// innermost-first (the frame whose own async call actually completed)
// outward, since every enclosing frame was only ever waiting on its
// nested call's return value, never independently suspended.
func (m *Machine) Resume(cont *continuation.Continuation, result values.Value, resumeErr error) (values.Value, *continuation.Continuation, Resumer, error) {
	if resumeErr != nil {
		return nil, nil, nil, resumeErr
	}
	var chain []*continuation.Continuation
	for c := cont; c != nil; c = c.Caller {
		chain = append(chain, c)
	}
	// chain[0] is the leaf (innermost, actually-completed) frame; the
	// last element is the outermost caller.
	next := result
	for i := 0; i < len(chain); i++ {
		frameCont := chain[i]
		fn, ok := m.Functions[frameCont.MethodLocation]
		if !ok {
			return nil, nil, nil, diagnostics.InternalError(token.Token{}, diagnostics.ErrInvalidContinuationLoc)
		}
		frameCont.Result = next
		val, susp, resumeFn, rerr := m.run(fn, nil, frameCont, true)
		if rerr != nil {
			return nil, nil, nil, rerr
		}
		if susp != nil {
			// Re-suspended before finishing: graft the still-pending outer
			// frames (chain[i+1:], not yet re-entered) back onto the fresh
			// suspension so a later Resume still knows about them.
			combined := susp
			for j := i + 1; j < len(chain); j++ {
				outer := chain[j]
				combined = combined.AppendCaller(outer.MethodLocation, outer.ResumeLocation, outer.LocalPrimitives, outer.LocalObjects)
			}
			return nil, combined, resumeFn, nil
		}
		next = val
	}
	return next, nil, nil, nil
}

// run executes fn's instruction stream starting either from offset 0
// (cont == nil) or from the saved resume point (cont != nil), with
// locals restored from cont.LocalObjects in the latter case. entry
// marks this as either the outermost call a host driver made
// (Machine.Call) or a frame Machine.Resume is re-entering directly:
// both absorb a SuspendSignal into a returned continuation instead of
// pushing a new frame onto it and re-panicking outward, which is what
// every intermediate (nested, non-entry) frame does on the way back up
// through real Go call frames (spec §4.4's per-function resume
// trampoline, composed here via Go's own call stack).
func (m *Machine) run(fn *codegen.Function, args []values.Value, cont *continuation.Continuation, entry bool) (result values.Value, suspended *continuation.Continuation, resume Resumer, err error) {
	fr := newFrame(fn)
	pendingLoc := -1
	// rootedHere is set just before this frame panics with a freshly built
	// continuation.Root (its own OP_CALL_ASYNC handler called a suspending
	// builtin directly): that Root already carries this frame's
	// (fn.Name, pendingLoc, snapshot), so the recover below must not push
	// it a second time. Every other frame the signal passes through — an
	// intermediate caller, or the entry frame receiving a continuation
	// rooted by a callee several Go-call-stack levels down — has not yet
	// recorded itself and must push before propagating or absorbing.
	rootedHere := false

	if cont == nil {
		for i, a := range args {
			if i < len(fr.locals) {
				fr.locals[i] = a
			}
		}
		fr.ip = 0
	} else {
		restoreLocals(fr, cont)
		if cont.ResumeLocation < 0 || cont.ResumeLocation >= len(fn.ResumeOffsets) {
			err = continuation.InvalidLocationError(token.Token{})
			return
		}
		fr.ip = fn.ResumeOffsets[cont.ResumeLocation]
		if res, ok := cont.Result.(values.Value); ok {
			fr.push(res)
		} else {
			fr.push(values.Null{})
		}
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ss, ok := r.(*continuation.SuspendSignal)
		if !ok {
			panic(r) // a genuine Go panic, not our control-flow signal
		}
		outCont := ss.Continuation
		if !rootedHere {
			prims, objs := snapshotLocals(fr)
			outCont = outCont.AppendCaller(fn.Name, pendingLoc, prims, objs)
		}
		if entry {
			suspended = outCont
			rawResume := ss.Resume
			resume = func() (values.Value, error) {
				v, rerr := rawResume()
				if rv, ok := v.(values.Value); ok {
					return rv, rerr
				}
				return nil, rerr
			}
			result, err = nil, nil
			return
		}
		panic(&continuation.SuspendSignal{Continuation: outCont, Resume: ss.Resume})
	}()

	for {
		instr := fn.Chunk.Code[fr.ip]
		switch instr.Op {
		case codegen.OP_CONST:
			fr.push(instr.Val)
		case codegen.OP_POP:
			fr.pop()
		case codegen.OP_DUP:
			fr.push(fr.peek())
		case codegen.OP_SWAP:
			a, b := fr.pop(), fr.pop()
			fr.push(a)
			fr.push(b)
		case codegen.OP_NIL:
			fr.push(values.Null{})
		case codegen.OP_TRUE:
			fr.push(values.Bool(true))
		case codegen.OP_FALSE:
			fr.push(values.Bool(false))

		case codegen.OP_ADD, codegen.OP_SUB, codegen.OP_MUL, codegen.OP_DIV, codegen.OP_MOD, codegen.OP_POW:
			b, a := fr.pop(), fr.pop()
			v, e := arith(instr.Op, a, b)
			if e != nil {
				err = e
				return
			}
			fr.push(v)
		case codegen.OP_NEG:
			a := fr.pop()
			fr.push(negate(a))
		case codegen.OP_NOT:
			a := fr.pop()
			fr.push(values.Bool(!values.Truthy(a)))
		case codegen.OP_AND:
			b, a := fr.pop(), fr.pop()
			fr.push(values.Bool(values.Truthy(a) && values.Truthy(b)))
		case codegen.OP_OR:
			b, a := fr.pop(), fr.pop()
			fr.push(values.Bool(values.Truthy(a) || values.Truthy(b)))

		case codegen.OP_EQ:
			b, a := fr.pop(), fr.pop()
			fr.push(values.Bool(values.Equal(a, b)))
		case codegen.OP_NE:
			b, a := fr.pop(), fr.pop()
			fr.push(values.Bool(!values.Equal(a, b)))
		case codegen.OP_LT, codegen.OP_LE, codegen.OP_GT, codegen.OP_GE:
			b, a := fr.pop(), fr.pop()
			cmp, ok := values.Compare(a, b)
			if !ok {
				fr.push(values.Bool(false))
			} else {
				fr.push(values.Bool(compareOp(instr.Op, cmp)))
			}

		case codegen.OP_GET_LOCAL:
			fr.push(fr.locals[instr.A])
		case codegen.OP_SET_LOCAL:
			fr.locals[instr.A] = fr.peek()
		case codegen.OP_GET_GLOBAL:
			v, ok := m.Globals[instr.Str]
			if !ok {
				v = values.Null{}
			}
			fr.push(v)
		case codegen.OP_SET_GLOBAL:
			m.Globals[instr.Str] = fr.peek()

		case codegen.OP_JUMP:
			fr.ip = instr.A
			continue
		case codegen.OP_JUMP_IF_FALSE:
			v := fr.pop()
			if !values.Truthy(v) {
				fr.ip = instr.A
				continue
			}
		case codegen.OP_LOOP:
			fr.ip = instr.A
			continue

		case codegen.OP_MAKE_LIST:
			elems := fr.popN(instr.A)
			fr.push(values.NewList(elems...))
		case codegen.OP_MAKE_MAP:
			n := instr.A
			flat := fr.popN(n * 2)
			mv := values.NewMap()
			for i := 0; i < n; i++ {
				key := flat[i*2]
				mv.Set(key.String(), flat[i*2+1])
			}
			fr.push(mv)

		case codegen.OP_CHECK_TAG:
			v := fr.pop()
			fr.push(values.Bool(int(v.Tag()) == instr.A))
		case codegen.OP_CHECK_LEN:
			v := fr.pop()
			l, ok := listLen(v)
			match := ok && ((instr.B == 1 && l >= instr.A) || (instr.B == 0 && l == instr.A))
			fr.push(values.Bool(match))
		case codegen.OP_CHECK_MAPSIZE:
			v := fr.pop()
			mv, ok := v.(*values.Map)
			fr.push(values.Bool(ok && mv.Size() == instr.A))
		case codegen.OP_HAS_KEY:
			v := fr.pop()
			mv, ok := v.(*values.Map)
			if !ok {
				fr.push(values.Bool(false))
				break
			}
			_, found := mv.Get(instr.Str)
			fr.push(values.Bool(found))
		case codegen.OP_GET_ELEM:
			v := fr.pop()
			lv, _ := v.(*values.List)
			if lv == nil || instr.A >= len(lv.Elements) {
				fr.push(values.Null{})
				break
			}
			fr.push(lv.Elements[instr.A])
		case codegen.OP_GET_TAIL_ELEM:
			v := fr.pop()
			lv, _ := v.(*values.List)
			if lv == nil || instr.A >= len(lv.Elements) {
				fr.push(values.Null{})
				break
			}
			fr.push(lv.Elements[len(lv.Elements)-1-instr.A])
		case codegen.OP_GET_SLICE:
			v := fr.pop()
			lv, _ := v.(*values.List)
			if lv == nil {
				fr.push(values.NewList())
				break
			}
			lo, hi := instr.A, len(lv.Elements)-instr.B
			if lo < 0 {
				lo = 0
			}
			if hi < lo {
				hi = lo
			}
			fr.push(values.NewList(append([]values.Value{}, lv.Elements[lo:hi]...)...))
		case codegen.OP_GET_MAPKEY:
			v := fr.pop()
			mv, _ := v.(*values.Map)
			if mv == nil {
				fr.push(values.Null{})
				break
			}
			val, found := mv.Get(instr.Str)
			if !found {
				fr.push(values.Null{})
				break
			}
			fr.push(val)
		case codegen.OP_MATCH_REGEX:
			v := fr.pop()
			ok, groups, e := matchRegex(instr.Str, v)
			if e != nil {
				err = e
				return
			}
			fr.captures = groups
			fr.push(values.Bool(ok))
		case codegen.OP_GET_CAPTURE:
			if instr.A >= 0 && instr.A < len(fr.captures) {
				fr.push(values.Str(fr.captures[instr.A]))
			} else {
				fr.push(values.Null{})
			}

		case codegen.OP_PRINT:
			v := fr.pop()
			if instr.A == 1 {
				fmt.Println(v.String())
			} else {
				fmt.Print(v.String())
			}
		case codegen.OP_DIE:
			v := fr.pop()
			err = diagnostics.NewRuntimeError(diagnostics.ErrUserDie, token.Token{}, v.String())
			return
		case codegen.OP_RETURN:
			result = fr.pop()
			return

		case codegen.OP_CALL:
			args := fr.popN(instr.A)
			v, e := m.callSync(instr.Str, args)
			if e != nil {
				err = e
				return
			}
			fr.push(v)

		case codegen.OP_CALL_ASYNC:
			args := fr.popN(instr.A)
			locInstr := fn.Chunk.Code[fr.ip+1]
			pendingLoc = locInstr.A
			v, ch, e := m.callAsync(instr.Str, args)
			if e != nil {
				err = e
				return
			}
			if ch != nil {
				select {
				case o := <-ch:
					if o.Err != nil {
						err = o.Err
						return
					}
					fr.push(o.Value)
					fr.ip += 2
					continue
				default:
				}
				prims, objs := snapshotLocals(fr)
				root := continuation.Root(fn.Name, pendingLoc, prims, objs)
				rootedHere = true
				panic(&continuation.SuspendSignal{
					Continuation: root,
					Resume: func() (interface{}, error) {
						o := <-ch
						return o.Value, o.Err
					},
				})
			}
			fr.push(v)
			fr.ip += 2
			continue

		case codegen.OP_CALL_VALUE:
			args := fr.popN(instr.A)
			callee := fr.pop()
			fh, ok := callee.(*values.FuncHandle)
			if !ok {
				err = fmt.Errorf("vm: cannot call a %s value", callee.Tag().String())
				return
			}
			v, e := m.callValue(fh, args)
			if e != nil {
				err = e
				return
			}
			fr.push(v)

		case codegen.OP_CALL_ASYNC_VALUE:
			args := fr.popN(instr.A)
			callee := fr.pop()
			fh, ok := callee.(*values.FuncHandle)
			if !ok {
				err = fmt.Errorf("vm: cannot call a %s value", callee.Tag().String())
				return
			}
			locInstr := fn.Chunk.Code[fr.ip+1]
			pendingLoc = locInstr.A
			v, e := m.callValue(fh, args)
			if e != nil {
				err = e
				return
			}
			fr.push(v)
			fr.ip += 2
			continue

		case codegen.OP_MAKE_CLOSURE:
			captured := fr.popN(instr.A)
			closureFn, ok := m.Functions[instr.Str]
			fh := &values.FuncHandle{Name: instr.Str, Upvalues: captured}
			if ok {
				fh.IsAsync = closureFn.IsAsync
			}
			fr.push(fh)

		case codegen.OP_NEW_INSTANCE:
			args := fr.popN(instr.A)
			className := instr.Str
			inst := &values.Instance{ClassName: className, Fields: map[string]values.Value{}}
			for cn := className; cn != ""; {
				ci, ok := m.Classes[cn]
				if !ok {
					break
				}
				for _, field := range ci.Fields {
					if _, exists := inst.Fields[field]; !exists {
						inst.Fields[field] = values.Null{}
					}
				}
				cn = ci.Super
			}
			locInstr := fn.Chunk.Code[fr.ip+1]
			pendingLoc = locInstr.A
			if initFn, ok := m.Functions[className+".<init>"]; ok {
				full := append([]values.Value{values.Value(inst)}, args...)
				_, _, _, e := m.run(initFn, full, nil, false)
				if e != nil {
					err = e
					return
				}
			}
			fr.push(inst)
			fr.ip += 2
			continue

		case codegen.OP_INVOKE_METHOD:
			args := fr.popN(instr.A)
			recv := fr.pop()
			v, e := m.invokeMethod(recv, instr.Str, args)
			if e != nil {
				err = e
				return
			}
			fr.push(v)

		case codegen.OP_INVOKE_METHOD_ASYNC:
			args := fr.popN(instr.A)
			recv := fr.pop()
			locInstr := fn.Chunk.Code[fr.ip+1]
			pendingLoc = locInstr.A
			v, e := m.invokeMethod(recv, instr.Str, args)
			if e != nil {
				err = e
				return
			}
			fr.push(v)
			fr.ip += 2
			continue

		case codegen.OP_GET_FIELD:
			recv := fr.pop()
			inst, ok := recv.(*values.Instance)
			if !ok {
				err = fmt.Errorf("vm: cannot read field %q on a %s value", instr.Str, recv.Tag().String())
				return
			}
			v, found := inst.Fields[instr.Str]
			if !found {
				v = values.Null{}
			}
			fr.push(v)

		case codegen.OP_SET_FIELD:
			value := fr.pop()
			recv := fr.pop()
			inst, ok := recv.(*values.Instance)
			if !ok {
				err = fmt.Errorf("vm: cannot set field %q on a %s value", instr.Str, recv.Tag().String())
				return
			}
			inst.Fields[instr.Str] = value
			fr.push(value)

		case codegen.OP_INDEX_GET:
			index := fr.pop()
			container := fr.pop()
			fr.push(indexGet(container, index))

		case codegen.OP_CAST:
			v := fr.pop()
			out, e := castValue(typesystem.Tag(instr.A), v)
			if e != nil {
				err = e
				return
			}
			fr.push(out)

		case codegen.OP_RESUME_DISPATCH:
			// Only ever reached via the cont==nil fresh-entry path at offset
			// 0: a resumed call already jumps straight to fn.ResumeOffsets[
			// cont.ResumeLocation] above, in Go, before the dispatch loop
			// starts. A fresh call just falls straight through to whatever
			// follows (see emitFunctionPrologue).

		case codegen.OP_MAKE_CONTINUATION:
			// Never independently dispatched: OP_CALL_ASYNC's handler peeks
			// this instruction's A operand directly and always advances the
			// instruction pointer past it (see the `fr.ip += 2` above).

		default:
			err = fmt.Errorf("vm: unimplemented opcode %s", instr.Op)
			return
		}
		fr.ip++
	}
}

// callSync invokes an ordinary (non-async) call: a user function or a
// registered native. The resolver's async-coloring (SPEC_FULL §3.4)
// guarantees a call compiled as OP_CALL never reaches a function that
// can itself suspend, so a nested suspend surfacing here indicates a
// resolver/codegen invariant violation rather than a normal runtime
// condition.
func (m *Machine) callSync(name string, args []values.Value) (values.Value, error) {
	if fn, ok := m.Functions[name]; ok {
		v, susp, _, err := m.run(fn, args, nil, false)
		if susp != nil {
			return nil, diagnostics.InternalError(token.Token{}, diagnostics.ErrInvalidContinuationLoc)
		}
		return v, err
	}
	if native, ok := m.Natives[name]; ok {
		return native(args)
	}
	return nil, fmt.Errorf("vm: undefined function %q", name)
}

// callAsync invokes an async call site's callee: either a nested user
// function (which may itself suspend — handled by run's own deferred
// recover re-panicking a SuspendSignal, never returned here as a value),
// a registered AsyncFunc (including the built-in "sleep"), or a plain
// native reached through an async call site.
func (m *Machine) callAsync(name string, args []values.Value) (values.Value, <-chan AsyncOutcome, error) {
	if fn, ok := m.Functions[name]; ok {
		v, _, _, err := m.run(fn, args, nil, false)
		return v, nil, err
	}
	if asyncFn, ok := m.Asyncs[name]; ok {
		return nil, asyncFn(m.Env, args), nil
	}
	if native, ok := m.Natives[name]; ok {
		v, err := native(args)
		return v, nil, err
	}
	return nil, nil, fmt.Errorf("vm: undefined async function %q", name)
}

// callValue invokes a closure value (OP_CALL_VALUE/OP_CALL_ASYNC_VALUE):
// its captured upvalues are prepended to the caller-supplied args, in the
// exact order compileClosure laid them out as the synthetic function's
// leading parameters. A suspend inside fn panics naturally through this
// nested run() call (entry=false) the same way callSync/callAsync's own
// nested-function branches do; the caller opcode handler is responsible
// for setting pendingLoc beforehand so that panic's AppendCaller records
// the right resume location for this frame.
func (m *Machine) callValue(fh *values.FuncHandle, args []values.Value) (values.Value, error) {
	fn, ok := m.Functions[fh.Name]
	if !ok {
		return nil, fmt.Errorf("vm: undefined closure function %q", fh.Name)
	}
	full := append(append([]values.Value{}, fh.Upvalues...), args...)
	v, susp, _, err := m.run(fn, full, nil, false)
	if susp != nil {
		return nil, diagnostics.InternalError(token.Token{}, diagnostics.ErrInvalidContinuationLoc)
	}
	return v, err
}

// Invoke runs a closure value from the outside (a host-facing entry point
// for SPEC_FULL §8's measure()-style builtins): unlike callValue it's a
// Machine.Call wrapper, so a suspend is returned to the caller rather than
// re-panicked, letting a host-driven AsyncFunc resume it across its own
// blocking wait the same way a top-level script call would.
func (m *Machine) Invoke(fh *values.FuncHandle, args []values.Value) (values.Value, *continuation.Continuation, Resumer, error) {
	fn, ok := m.Functions[fh.Name]
	if !ok {
		return nil, nil, nil, fmt.Errorf("vm: undefined closure function %q", fh.Name)
	}
	full := append(append([]values.Value{}, fh.Upvalues...), args...)
	return m.Call(fn, full)
}

// findMethod walks a class's superclass chain (instr.Str names the most
// derived class at the call site; m.Classes[...].Super climbs from
// there) looking for a method the most-derived class itself doesn't
// override.
func (m *Machine) findMethod(className, method string) (*codegen.Function, bool) {
	for cn := className; cn != ""; {
		if fn, ok := m.Functions[cn+"."+method]; ok {
			return fn, true
		}
		ci, ok := m.Classes[cn]
		if !ok {
			break
		}
		cn = ci.Super
	}
	return nil, false
}

// invokeMethod is OP_INVOKE_METHOD(_ASYNC)'s shared runtime dispatch. The
// parser represents both `obj.field` and `obj.method(args)` as the same
// *ast.MethodCall node (zero Args for the property-read form — see
// resolver.go's shared MethodCall case), so a zero-arg call that names a
// live field reads the field instead of searching for a same-named
// method; a valid program never declares a field and method of the same
// name on one class, so this check is never ambiguous in practice.
// Receivers outside *values.Instance aren't supported (SPEC_FULL's surface
// has no builtin-type methods to dispatch to; narrowing recorded in
// DESIGN.md).
func (m *Machine) invokeMethod(recv values.Value, method string, args []values.Value) (values.Value, error) {
	inst, ok := recv.(*values.Instance)
	if !ok {
		return nil, fmt.Errorf("vm: cannot call method %q on a %s value", method, recv.Tag().String())
	}
	if len(args) == 0 {
		if v, found := inst.Fields[method]; found {
			return v, nil
		}
	}
	fn, found := m.findMethod(inst.ClassName, method)
	if !found {
		return nil, fmt.Errorf("vm: %s has no method or field %q", inst.ClassName, method)
	}
	full := append([]values.Value{recv}, args...)
	v, susp, _, err := m.run(fn, full, nil, false)
	if susp != nil {
		return nil, diagnostics.InternalError(token.Token{}, diagnostics.ErrInvalidContinuationLoc)
	}
	return v, err
}
