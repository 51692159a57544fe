// Compiler drives the top-level lowering from the annotated internal/ast
// tree to Chunks/Functions. Grounded on the teacher's vm.Compiler
// (compiler.go/compiler_statements.go/compiler_expressions.go): one
// method per AST node family, a flat per-function local-slot allocator,
// and a block-scope stack so slots are reused once a block exits exactly
// the way the teacher's addLocal/beginScope/endScope triple works.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jactl-lang/jactl/internal/ast"
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/pipeline"
	"github.com/jactl-lang/jactl/internal/token"
	"github.com/jactl-lang/jactl/internal/typesystem"
	"github.com/jactl-lang/jactl/internal/values"
)

// Compiler lowers one Program's worth of function declarations (plus an
// implicit top-level "main" function for bare statements) into Functions.
type Compiler struct {
	ctx *pipeline.Context

	fn     *Function
	chunk  *Chunk
	scopes []map[string]int // block-scope stack, innermost last
	nextSlot int
	tmpCounter int // uniquifies spill-slot names within a function
	closureCounter int // uniquifies synthetic closure function names

	Functions map[string]*Function
	Classes   map[string]*ClassInfo
	errs      []*diagnostics.CompileError
}

// ClassInfo is the per-class layout the VM needs at OP_NEW_INSTANCE/
// OP_INVOKE_METHOD(_ASYNC) time: the declared field names (so a fresh
// instance's Fields map starts with every field present, §6's "instance
// fields default to null/their initialiser") and the superclass to walk
// when a method or field isn't found directly on this class, since
// ast.ClassDecl.Super is just the bare name (no resolved pointer) and the
// VM needs the whole chain to dispatch through it.
type ClassInfo struct {
	Name    string
	Super   string
	Fields  []string
	HasInit bool
}

func New(ctx *pipeline.Context) *Compiler {
	return &Compiler{ctx: ctx, Functions: map[string]*Function{}, Classes: map[string]*ClassInfo{}}
}

func (c *Compiler) Errors() []*diagnostics.CompileError { return c.errs }

func (c *Compiler) err(n ast.Node, code diagnostics.ErrorCode, args ...interface{}) {
	tok := token.Token{Pos: n.GetMeta().Pos}
	c.errs = append(c.errs, diagnostics.NewCompileError(diagnostics.PhaseCodegen, code, tok, args...))
}

// Compile lowers every top-level FunDecl/ClassDecl method and wraps the
// remaining top-level statements in a synthetic "main" Function, the way
// a script entry point is always itself just another callable body
// (spec §6: compileScript produces a single script handle).
func (c *Compiler) Compile(prog *ast.Program) map[string]*Function {
	var mainStmts []ast.Statement
	for _, s := range prog.Statements {
		switch n := s.(type) {
		case *ast.FunDecl:
			c.Functions[n.Name] = c.compileFunction(n.Name, n.Params, n.Body, n.FnIsAsync)
		case *ast.ClassDecl:
			c.compileClass(n)
		default:
			mainStmts = append(mainStmts, s)
		}
	}
	body := &ast.Block{Statements: mainStmts}
	isAsync := false
	for _, s := range mainStmts {
		if s.GetMeta().IsAsync {
			isAsync = true
		}
	}
	c.Functions["main"] = c.compileFunction("main", nil, body, isAsync)
	return c.Functions
}

// compileClass lowers a class declaration into one Function per method
// plus a synthesized "<init>" constructor, recording a ClassInfo so
// OP_NEW_INSTANCE/OP_INVOKE_METHOD(_ASYNC) can find field/superclass
// layout at runtime without re-walking the AST.
func (c *Compiler) compileClass(n *ast.ClassDecl) {
	fields := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		fields[i] = f.Name
	}
	c.Classes[n.Name] = &ClassInfo{Name: n.Name, Super: n.Super, Fields: fields, HasInit: true}

	for _, m := range n.Methods {
		qualified := n.Name + "." + m.Name
		c.Functions[qualified] = c.compileMethod(qualified, m.Params, m.Body, m.FnIsAsync)
	}

	initParams, initBody, initAsync := []ast.Param{}, &ast.Block{}, false
	if n.Init != nil {
		initParams, initBody, initAsync = n.Init.Params, n.Init.Body, n.Init.FnIsAsync
	}
	c.Functions[n.Name+".<init>"] = c.compileInit(n, initParams, initBody, initAsync)
}

// compileMethod is compileFunction plus a hidden leading "this" parameter
// bound to slot 0, so ast.SpecialVar{Name:"this"} inside a method body
// resolves like any other local (compileSpecialVar's ordinary
// local-then-global lookup) instead of finding nothing — the receiver
// binding the bare compileFunction calls this replaces never reserved.
func (c *Compiler) compileMethod(name string, params []ast.Param, body *ast.Block, isAsync bool) *Function {
	withThis := append([]ast.Param{{Name: "this"}}, params...)
	return c.compileFunction(name, withThis, body, isAsync)
}

// compileInit compiles a class's constructor body, first running every
// field's own default-value initialiser (in declaration order) against
// the freshly bound "this" so a field left untouched by the explicit
// constructor body still ends up holding its declared default rather than
// null (the zeroing OP_NEW_INSTANCE itself does only covers fields with
// no initialiser expression at all).
func (c *Compiler) compileInit(n *ast.ClassDecl, params []ast.Param, body *ast.Block, isAsync bool) *Function {
	withThis := append([]ast.Param{{Name: "this"}}, params...)
	fn := NewFunction(n.Name + ".<init>")
	fn.IsAsync = isAsync
	prevFn, prevChunk, prevScopes, prevSlot := c.fn, c.chunk, c.scopes, c.nextSlot
	c.fn, c.chunk, c.scopes, c.nextSlot = fn, fn.Chunk, nil, 0

	c.beginScope()
	for _, p := range withThis {
		c.defineLocal(p.Name)
	}
	c.emitFunctionPrologue(fn)

	thisSlot, _ := c.resolveLocal("this")
	for _, f := range n.Fields {
		if f.Init == nil {
			continue
		}
		c.emit(Instr{Op: OP_GET_LOCAL, A: thisSlot})
		c.compileExpr(f.Init)
		c.emit(Instr{Op: OP_SET_FIELD, Str: f.Name})
		c.emit(Instr{Op: OP_POP})
	}

	c.compileFunctionBody(body)
	c.endScope()

	fn.NumSlots = c.nextSlot
	c.fn, c.chunk, c.scopes, c.nextSlot = prevFn, prevChunk, prevScopes, prevSlot
	return fn
}

// compileFunction lowers one function body, reserving param slots first,
// then delegates to the continuation-transform pass (continuation.go) to
// decide whether this body needs the resume-dispatch header.
func (c *Compiler) compileFunction(name string, params []ast.Param, body *ast.Block, isAsync bool) *Function {
	fn := NewFunction(name)
	fn.IsAsync = isAsync
	prevFn, prevChunk, prevScopes, prevSlot := c.fn, c.chunk, c.scopes, c.nextSlot
	c.fn, c.chunk, c.scopes, c.nextSlot = fn, fn.Chunk, nil, 0

	c.beginScope()
	for _, p := range params {
		c.defineLocal(p.Name)
	}

	c.emitFunctionPrologue(fn)
	c.compileFunctionBody(body)
	c.endScope()

	fn.NumSlots = c.nextSlot
	c.fn, c.chunk, c.scopes, c.nextSlot = prevFn, prevChunk, prevScopes, prevSlot
	return fn
}

// --- Scope / locals ------------------------------------------------------

func (c *Compiler) beginScope() { c.scopes = append(c.scopes, map[string]int{}) }

func (c *Compiler) endScope() { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *Compiler) defineLocal(name string) int {
	slot := c.nextSlot
	c.nextSlot++
	c.scopes[len(c.scopes)-1][name] = slot
	return slot
}

// resolveLocal looks up name in the active scope stack, innermost first.
func (c *Compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if slot, ok := c.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (c *Compiler) emit(i Instr) int { return c.chunk.emit(i) }

// --- Statements ------------------------------------------------------------

func (c *Compiler) compileBlockBody(b *ast.Block) {
	c.beginScope()
	for _, s := range b.Statements {
		c.compileStmt(s)
	}
	c.endScope()
}

// compileFunctionBody compiles a function/script's top-level block the
// way Jactl scripts are run (spec §6, §8's scenarios are bare
// expressions with no `return`): every statement but the last compiles
// normally, and a trailing bare expression statement becomes the
// function's implicit result instead of being popped and discarded, the
// same "last expression is the value" rule every case's Result already
// gets inside a Switch (§4.3). Anything else in tail position (an
// explicit `return`, a loop, …) falls back to the plain OP_NIL/OP_RETURN
// a non-value-producing body needs.
func (c *Compiler) compileFunctionBody(b *ast.Block) {
	c.beginScope()
	last := len(b.Statements) - 1
	for i, s := range b.Statements {
		if i == last {
			if es, ok := s.(*ast.ExprStmt); ok {
				c.compileExpr(es.Expr)
				c.emit(Instr{Op: OP_RETURN})
				c.endScope()
				return
			}
		}
		c.compileStmt(s)
	}
	c.emit(Instr{Op: OP_NIL})
	c.emit(Instr{Op: OP_RETURN})
	c.endScope()
}

func (c *Compiler) compileStmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.Block:
		c.compileBlockBody(n)
	case *ast.VarDecl:
		if n.Init != nil {
			c.compileExpr(n.Init)
		} else {
			c.emit(Instr{Op: OP_NIL})
		}
		slot := c.defineLocal(n.Name)
		c.emit(Instr{Op: OP_SET_LOCAL, A: slot})
		c.emit(Instr{Op: OP_POP})
	case *ast.If:
		c.compileExpr(n.Cond)
		elseJump := c.emit(Instr{Op: OP_JUMP_IF_FALSE})
		c.compileStmt(n.Then)
		endJump := c.emit(Instr{Op: OP_JUMP})
		c.chunk.patchJumpHere(elseJump)
		if n.Else != nil {
			c.compileStmt(n.Else)
		}
		c.chunk.patchJumpHere(endJump)
	case *ast.While:
		top := len(c.chunk.Code)
		c.compileExpr(n.Cond)
		exitJump := c.emit(Instr{Op: OP_JUMP_IF_FALSE})
		c.compileStmt(n.Body)
		c.emit(Instr{Op: OP_LOOP, A: top})
		c.chunk.patchJumpHere(exitJump)
	case *ast.Return:
		if n.Value != nil {
			c.compileExpr(n.Value)
		} else {
			c.emit(Instr{Op: OP_NIL})
		}
		c.emit(Instr{Op: OP_RETURN})
	case *ast.Print:
		if n.Value != nil {
			c.compileExpr(n.Value)
		} else {
			c.emit(Instr{Op: OP_CONST, Val: values.Str("")})
		}
		c.emit(Instr{Op: OP_PRINT, A: boolToInt(n.Newline)})
	case *ast.Die:
		c.compileExpr(n.Message)
		c.emit(Instr{Op: OP_DIE})
	case *ast.ExprStmt:
		c.compileExpr(n.Expr)
		c.emit(Instr{Op: OP_POP})
	case *ast.FunDecl:
		// Nested function declarations compile as ordinary top-level
		// functions keyed by name; closures capture via OP_MAKE_CLOSURE
		// at the Closure expression site instead.
		c.Functions[n.Name] = c.compileFunction(n.Name, n.Params, n.Body, n.FnIsAsync)
	default:
		c.err(s, diagnostics.ErrUnexpectedTok, "statement", fmt.Sprintf("%T", s))
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- Expressions -------------------------------------------------------

func (c *Compiler) compileExpr(e ast.Expression) {
	switch n := e.(type) {
	case *ast.Literal:
		c.emit(Instr{Op: OP_CONST, Val: literalToValue(n.Value)})
	case *ast.Identifier:
		if slot, ok := c.resolveLocal(n.Name); ok {
			c.emit(Instr{Op: OP_GET_LOCAL, A: slot})
		} else {
			c.emit(Instr{Op: OP_GET_GLOBAL, Str: n.Name})
		}
	case *ast.Binary:
		c.compileBinary(n)
	case *ast.Unary:
		c.compileExpr(n.Operand)
		switch n.Op {
		case token.BANG:
			c.emit(Instr{Op: OP_NOT})
		default:
			c.emit(Instr{Op: OP_NEG})
		}
	case *ast.Ternary:
		c.compileExpr(n.Cond)
		elseJump := c.emit(Instr{Op: OP_JUMP_IF_FALSE})
		c.compileExpr(n.Then)
		endJump := c.emit(Instr{Op: OP_JUMP})
		c.chunk.patchJumpHere(elseJump)
		c.compileExpr(n.Else)
		c.chunk.patchJumpHere(endJump)
	case *ast.VarAssign:
		// OP_SET_LOCAL/OP_SET_GLOBAL peek rather than pop (teacher's
		// vm_exec.go convention), so the assigned value is already left on
		// the stack as this expression's own result — no DUP needed.
		c.compileExpr(n.Value)
		if slot, ok := c.resolveLocal(n.Target.Name); ok {
			c.emit(Instr{Op: OP_SET_LOCAL, A: slot})
		} else {
			c.emit(Instr{Op: OP_SET_GLOBAL, Str: n.Target.Name})
		}
	case *ast.ListLiteral:
		slots := make([]int, len(n.Elements))
		for i, el := range n.Elements {
			slots[i] = c.spill(el)
		}
		for _, s := range slots {
			c.emit(Instr{Op: OP_GET_LOCAL, A: s})
		}
		c.emit(Instr{Op: OP_MAKE_LIST, A: len(n.Elements)})
	case *ast.MapLiteral:
		slots := make([]int, 0, len(n.Keys)*2)
		for i := range n.Keys {
			slots = append(slots, c.spill(n.Keys[i]), c.spill(n.Values[i]))
		}
		for _, s := range slots {
			c.emit(Instr{Op: OP_GET_LOCAL, A: s})
		}
		c.emit(Instr{Op: OP_MAKE_MAP, A: len(n.Keys)})
	case *ast.Call:
		c.compileCall(n)
	case *ast.Switch:
		c.compileSwitch(n)
	case *ast.InstanceOf:
		c.compileExpr(n.Value)
		c.emit(Instr{Op: OP_CHECK_TAG, A: int(n.Target.Tag())})
	case *ast.RegexMatch:
		c.compileExpr(n.Subject)
		// Separator is "\x00" rather than "/" since a regex source may
		// itself contain slashes; internal/vm splits on it to recover
		// the flags half.
		c.emit(Instr{Op: OP_MATCH_REGEX, Str: n.Pattern + "\x00" + n.Flags})
	case *ast.SpecialVar:
		c.compileSpecialVar(n)
	case *ast.Closure:
		c.compileClosure(n)
	case *ast.MethodCall:
		c.compileMethodCall(n)
	case *ast.FieldAssign:
		c.compileFieldAssign(n)
	case *ast.Cast:
		c.compileExpr(n.Value)
		c.emit(Instr{Op: OP_CAST, A: int(n.Target.Tag())})
	case *ast.ExprString:
		c.compileExprString(n)
	case *ast.ArrayGet:
		c.compileExpr(n.Array)
		c.compileExpr(n.Index)
		c.emit(Instr{Op: OP_INDEX_GET})
	case *ast.InvokeNew:
		c.compileInvokeNew(n)
	case *ast.Eval:
		c.compileEval(n)
	default:
		c.err(e, diagnostics.ErrUnexpectedTok, "expression", fmt.Sprintf("%T", e))
		c.emit(Instr{Op: OP_NIL})
	}
}

// compileSpecialVar lowers `it`, `this` and regex capture references
// (`$1`..`$N`). `it`/`this` resolve exactly like any other name (local
// slot first, global fallback) — bindItToSubject defines `it` as an
// ordinary local in every switch-case scope, so this is just
// Identifier's resolution rule applied to SpecialVar's two bare names.
// A `$N` reference reads the Nth capture group bound by the case's own
// regex-pattern match: index 0 is the whole match, so `$1` is capture
// slot 1.
func (c *Compiler) compileSpecialVar(n *ast.SpecialVar) {
	if strings.HasPrefix(n.Name, "$") {
		idx, _ := strconv.Atoi(n.Name[1:])
		c.emit(Instr{Op: OP_GET_CAPTURE, A: idx})
		return
	}
	if slot, ok := c.resolveLocal(n.Name); ok {
		c.emit(Instr{Op: OP_GET_LOCAL, A: slot})
	} else {
		c.emit(Instr{Op: OP_GET_GLOBAL, Str: n.Name})
	}
}

// compileCall lowers a call; whether it goes through OP_CALL_ASYNC instead
// of OP_CALL is decided purely from Meta.IsAsync, the resolver's
// transitive-async annotation (spec §4.1) — codegen never re-derives it.
// A callee that resolves to a local (a parameter/variable that may hold a
// closure, per the Identifier resolution rule compileExpr itself uses) is
// dynamic: its value is spilled and dispatched through OP_CALL_VALUE/
// OP_CALL_ASYNC_VALUE by runtime *values.FuncHandle lookup rather than the
// compile-time function name OP_CALL/OP_CALL_ASYNC dispatch by.
func (c *Compiler) compileCall(n *ast.Call) {
	name := ""
	dynamic := false
	if id, ok := n.Callee.(*ast.Identifier); ok {
		if _, isLocal := c.resolveLocal(id.Name); isLocal {
			dynamic = true
		} else {
			name = id.Name
		}
	} else {
		dynamic = true
	}

	calleeSlot := -1
	if dynamic {
		calleeSlot = c.spill(n.Callee)
	}
	// Each argument is spilled to its own temp slot immediately after
	// compiling, so an async call nested in a later argument never finds
	// an earlier argument's value stranded on the operand stack (the
	// Continuation record only ever needs to restore locals, never a
	// live operand stack, per SPEC_FULL §3.4's simplification note).
	argSlots := make([]int, len(n.Args))
	for i, a := range n.Args {
		argSlots[i] = c.spill(a)
	}
	if calleeSlot >= 0 {
		c.emit(Instr{Op: OP_GET_LOCAL, A: calleeSlot})
	}
	for _, s := range argSlots {
		c.emit(Instr{Op: OP_GET_LOCAL, A: s})
	}

	numArgs := len(n.Args)
	switch {
	case dynamic:
		// A callee value's own asyncness isn't visible to the resolver
		// (resolveIdentifier never looks inside a closure it names), so a
		// dynamic call site always takes the suspend-guarded opcode: the
		// cost is a pendingLoc write that's sometimes unnecessary, not a
		// missed one that would hand AppendCaller the wrong resume index.
		c.emitSuspendGuard(func() {
			c.emit(Instr{Op: OP_CALL_ASYNC_VALUE, A: numArgs})
		})
	case n.IsAsync:
		c.emitSuspendGuard(func() {
			c.emit(Instr{Op: OP_CALL_ASYNC, A: numArgs, Str: name})
		})
	default:
		c.emit(Instr{Op: OP_CALL, A: numArgs, Str: name})
	}
}

// spill compiles e and immediately moves its value into a fresh,
// compiler-private temp slot, leaving the operand stack empty. Every
// multi-operand construct (binary operators, call arguments, list/map
// literal elements) spills each operand this way specifically so that an
// async call nested inside one operand never leaves a sibling operand's
// value stranded on the operand stack across a suspend — the
// Continuation record (internal/continuation) only snapshots locals, so
// anything the resume needs alive must already be a local by the time
// the suspend happens.
func (c *Compiler) spill(e ast.Expression) int {
	c.compileExpr(e)
	c.tmpCounter++
	slot := c.defineLocal(fmt.Sprintf("$t%d", c.tmpCounter))
	c.emit(Instr{Op: OP_SET_LOCAL, A: slot})
	c.emit(Instr{Op: OP_POP})
	return slot
}

var binaryOps = map[token.Kind]Opcode{
	token.PLUS: OP_ADD, token.MINUS: OP_SUB, token.STAR: OP_MUL, token.SLASH: OP_DIV,
	token.PERCENT: OP_MOD, token.STAR_STAR: OP_POW,
	token.EQ: OP_EQ, token.NE: OP_NE, token.LT: OP_LT, token.LE: OP_LE, token.GT: OP_GT, token.GE: OP_GE,
}

// compileBinary lowers every Binary node except the short-circuiting
// `&&`/`||`, which need their own jump shape (mirrors the teacher's
// compileAnd/compileOr split in compiler_expressions.go).
func (c *Compiler) compileBinary(n *ast.Binary) {
	switch n.Op {
	case token.AND_AND:
		c.compileExpr(n.Left)
		c.emit(Instr{Op: OP_DUP})
		shortCircuit := c.emit(Instr{Op: OP_JUMP_IF_FALSE})
		c.emit(Instr{Op: OP_POP})
		c.compileExpr(n.Right)
		c.chunk.patchJumpHere(shortCircuit)
		return
	case token.OR_OR:
		c.compileExpr(n.Left)
		c.emit(Instr{Op: OP_DUP})
		c.emit(Instr{Op: OP_NOT})
		shortCircuit := c.emit(Instr{Op: OP_JUMP_IF_FALSE})
		c.emit(Instr{Op: OP_POP})
		c.compileExpr(n.Right)
		c.chunk.patchJumpHere(shortCircuit)
		return
	}
	leftSlot := c.spill(n.Left)
	c.compileExpr(n.Right)
	c.emit(Instr{Op: OP_GET_LOCAL, A: leftSlot})
	c.emit(Instr{Op: OP_SWAP})
	if op, ok := binaryOps[n.Op]; ok {
		c.emit(Instr{Op: op})
		return
	}
	c.err(n, diagnostics.ErrUnexpectedTok, "operator", n.Op)
	c.emit(Instr{Op: OP_NIL})
}

func literalToValue(v interface{}) values.Value {
	switch t := v.(type) {
	case int32:
		return values.Int(t)
	case int64:
		return values.Long(t)
	case float64:
		return values.Double(t)
	case string:
		return values.Str(t)
	case bool:
		return values.Bool(t)
	case []byte:
		return values.NewByteArray(t)
	case nil:
		return values.Null{}
	default:
		return values.Null{}
	}
}

// compileMethodCall lowers `receiver.method(args)` (also how the parser
// represents a bare property read `receiver.field`, as a zero-arg
// MethodCall — see OP_INVOKE_METHOD's runtime property-or-method check).
// `?.` (Safe) short-circuits to null without evaluating args or making
// the call when the receiver itself is null, checked with the same
// CHECK_TAG/JUMP_IF_FALSE shape the pattern matcher uses rather than
// continuation.NullSignal's panic/recover: a single-level check is all
// SPEC_FULL's surface needs, since nothing here chains a `?.` through a
// second `?.`/`.` in a way a subsequent null would also have to skip.
func (c *Compiler) compileMethodCall(n *ast.MethodCall) {
	c.compileExpr(n.Receiver)

	var jumpToEnd int
	if n.Safe {
		c.emit(Instr{Op: OP_DUP})
		c.emit(Instr{Op: OP_CHECK_TAG, A: int(typesystem.TAG_NULL)})
		jumpToCall := c.emit(Instr{Op: OP_JUMP_IF_FALSE})
		jumpToEnd = c.emit(Instr{Op: OP_JUMP})
		c.chunk.patchJumpHere(jumpToCall)
	}

	for _, a := range n.Args {
		c.compileExpr(a)
	}

	numArgs := len(n.Args)
	// n.GetMeta().IsAsync only reflects the receiver/argument expressions
	// (see resolver.go's *ast.MethodCall case) never whether the invoked
	// method's own body suspends, so it can't gate this choice: a method
	// call always takes the suspend-guarded opcode, matching the dynamic
	// branch of compileCall above for the same reason.
	c.emitSuspendGuard(func() {
		c.emit(Instr{Op: OP_INVOKE_METHOD_ASYNC, A: numArgs, Str: n.Method})
	})

	if n.Safe {
		c.chunk.patchJumpHere(jumpToEnd)
	}
}

// compileFieldAssign lowers `receiver.field = value`: receiver then value
// on the stack (value on top), OP_SET_FIELD sets and leaves value as the
// assignment expression's own result, mirroring OP_SET_LOCAL/
// OP_SET_GLOBAL's peek convention.
func (c *Compiler) compileFieldAssign(n *ast.FieldAssign) {
	c.compileExpr(n.Receiver)
	c.compileExpr(n.Value)
	c.emit(Instr{Op: OP_SET_FIELD, Str: n.Field})
}

// compileExprString lowers a `"...${expr}..."` interpolated string:
// literal parts become string constants, embedded expressions are cast to
// string via OP_ADD's existing string-concatenation overload (internal/vm
// helpers.go's arith already string-concatenates whenever either operand
// is a Str), so no dedicated concat opcode is needed — just fold every
// part left-to-right with OP_ADD.
func (c *Compiler) compileExprString(n *ast.ExprString) {
	if len(n.Parts) == 0 {
		c.emit(Instr{Op: OP_CONST, Val: values.Str("")})
		return
	}
	first := true
	for _, p := range n.Parts {
		if p.Expr != nil {
			c.compileExpr(p.Expr)
		} else {
			c.emit(Instr{Op: OP_CONST, Val: values.Str(p.Literal)})
		}
		if first {
			first = false
			continue
		}
		c.emit(Instr{Op: OP_SWAP})
		c.emit(Instr{Op: OP_ADD})
	}
}

// compileInvokeNew lowers `new ClassName(args)`: OP_NEW_INSTANCE zero-
// fills every declared field, then runs "<init>" with "this" bound ahead
// of the constructor's own args, and pushes the instance — never
// "<init>"'s own return value, since a constructor's result is the
// instance itself regardless of what its body's last expression computes.
func (c *Compiler) compileInvokeNew(n *ast.InvokeNew) {
	argSlots := make([]int, len(n.Args))
	for i, a := range n.Args {
		argSlots[i] = c.spill(a)
	}
	for _, s := range argSlots {
		c.emit(Instr{Op: OP_GET_LOCAL, A: s})
	}
	// The constructor body can itself contain a suspend (a field
	// initialiser or the explicit init body calling something async), so
	// this call site needs the same pendingLoc bookkeeping as any other
	// suspend-guarded call even though InvokeNew is exempt from the
	// decorator's forced-suspension wrapping (that exemption is only
	// about not double-wrapping `new T(...)` itself, not about whether
	// its constructor can suspend).
	c.emitSuspendGuard(func() {
		c.emit(Instr{Op: OP_NEW_INSTANCE, A: len(n.Args), Str: n.Class.String()})
	})
}

// compileEval lowers the `eval(source[, bindings])` builtin (SPEC_FULL's
// expansion of spec §6's host-embedding surface): always async per the
// resolver's unconditional `r.setAsync(n, true)`, since the evaluated
// source may itself suspend — dispatched through the fixed async-function
// name "eval" the embedding layer (internal/jactl) registers by default,
// the same way sleep/measure are Machine-level async builtins.
func (c *Compiler) compileEval(n *ast.Eval) {
	sourceSlot := c.spill(n.Source)
	bindingsSlot := -1
	if n.Bindings != nil {
		bindingsSlot = c.spill(n.Bindings)
	}
	c.emit(Instr{Op: OP_GET_LOCAL, A: sourceSlot})
	if bindingsSlot >= 0 {
		c.emit(Instr{Op: OP_GET_LOCAL, A: bindingsSlot})
	} else {
		c.emit(Instr{Op: OP_NIL})
	}
	c.emitSuspendGuard(func() {
		c.emit(Instr{Op: OP_CALL_ASYNC, A: 2, Str: "eval"})
	})
}
