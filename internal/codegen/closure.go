// Closure compilation: lowering a `{ params -> body }` literal (ast.Closure)
// into its own synthetic Function plus an OP_MAKE_CLOSURE site that bundles
// up whatever outer locals the body actually references.
//
// Grounded on the teacher's own hand-written AST walkers (no generic
// ast.Visitor dispatch is used for this kind of bottom-up name analysis
// anywhere in the teacher — see internal/decorator/decorator.go's
// decorateStmtAsync/decorateExprAsync pair) rather than the Visitor
// interface the internal/ast nodes' Accept methods otherwise support: a free-variable scan is a single
// pass with scope-sensitive bound-name tracking, which a generic visitor
// would only complicate.
package codegen

import (
	"fmt"

	"github.com/jactl-lang/jactl/internal/ast"
)

// freeVarCollector walks a closure body recording every identifier read
// that isn't bound somewhere inside that same body (a param, an implicit
// `it`, or a local VarDecl) — a conservative approximation that binds a
// VarDecl's name for the rest of the closure rather than just its
// enclosing block, and drops switch-pattern-bound names from bound
// tracking entirely. Both approximations only ever shrink or leave
// unchanged the set of names compileClosure tries to resolve as outer
// locals, so the worst they can do is skip a capture that resolveLocal
// would've dropped anyway — never capture something that isn't a real
// outer local.
type freeVarCollector struct {
	bound map[string]bool
	seen  map[string]bool
	free  []string
}

func newFreeVarCollector(initiallyBound map[string]bool) *freeVarCollector {
	bound := map[string]bool{}
	for k := range initiallyBound {
		bound[k] = true
	}
	return &freeVarCollector{bound: bound, seen: map[string]bool{}}
}

func (fc *freeVarCollector) use(name string) {
	if fc.bound[name] || fc.seen[name] {
		return
	}
	fc.seen[name] = true
	fc.free = append(fc.free, name)
}

func (fc *freeVarCollector) bind(name string) { fc.bound[name] = true }

// withBound adds names to the bound set for the duration of f, restoring
// the previous set afterward — used for a nested closure's own params so
// they don't leak out as free variables of the enclosing one.
func (fc *freeVarCollector) withBound(names []string, f func()) {
	prev := make(map[string]bool, len(names))
	for _, n := range names {
		prev[n] = fc.bound[n]
		fc.bound[n] = true
	}
	f()
	for _, n := range names {
		if !prev[n] {
			delete(fc.bound, n)
		}
	}
}

func (fc *freeVarCollector) walkStmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.Block:
		for _, st := range n.Statements {
			fc.walkStmt(st)
		}
	case *ast.If:
		fc.walkExpr(n.Cond)
		fc.walkStmt(n.Then)
		if n.Else != nil {
			fc.walkStmt(n.Else)
		}
	case *ast.While:
		fc.walkExpr(n.Cond)
		fc.walkStmt(n.Body)
	case *ast.Return:
		if n.Value != nil {
			fc.walkExpr(n.Value)
		}
	case *ast.VarDecl:
		if n.Init != nil {
			fc.walkExpr(n.Init)
		}
		fc.bind(n.Name)
	case *ast.FunDecl:
		fc.bind(n.Name)
		names := make([]string, len(n.Params))
		for i, p := range n.Params {
			names[i] = p.Name
		}
		fc.withBound(names, func() { fc.walkStmt(n.Body) })
	case *ast.Print:
		if n.Value != nil {
			fc.walkExpr(n.Value)
		}
	case *ast.Die:
		fc.walkExpr(n.Message)
	case *ast.ExprStmt:
		fc.walkExpr(n.Expr)
	}
}

func (fc *freeVarCollector) walkExpr(e ast.Expression) {
	switch n := e.(type) {
	case *ast.Literal, *ast.TypeExpr, *ast.ClassPath, *ast.Noop:
		return
	case *ast.Identifier:
		fc.use(n.Name)
	case *ast.Binary:
		fc.walkExpr(n.Left)
		fc.walkExpr(n.Right)
	case *ast.Ternary:
		fc.walkExpr(n.Cond)
		fc.walkExpr(n.Then)
		fc.walkExpr(n.Else)
	case *ast.Unary:
		fc.walkExpr(n.Operand)
	case *ast.Cast:
		fc.walkExpr(n.Value)
	case *ast.Call:
		fc.walkExpr(n.Callee)
		for _, a := range n.Args {
			fc.walkExpr(a)
		}
		for _, a := range n.Named {
			fc.walkExpr(a)
		}
	case *ast.MethodCall:
		fc.walkExpr(n.Receiver)
		for _, a := range n.Args {
			fc.walkExpr(a)
		}
	case *ast.Closure:
		names := make([]string, len(n.Params))
		for i, p := range n.Params {
			names[i] = p.Name
		}
		if n.ImplicitIt {
			names = append(names, "it")
		}
		fc.withBound(names, func() { fc.walkStmt(n.Body) })
	case *ast.ListLiteral:
		for _, el := range n.Elements {
			fc.walkExpr(el)
		}
	case *ast.MapLiteral:
		for i := range n.Keys {
			fc.walkExpr(n.Keys[i])
			fc.walkExpr(n.Values[i])
		}
	case *ast.ExprString:
		for _, p := range n.Parts {
			if p.Expr != nil {
				fc.walkExpr(p.Expr)
			}
		}
	case *ast.RegexMatch:
		fc.walkExpr(n.Subject)
	case *ast.RegexSubst:
		fc.walkExpr(n.Subject)
		fc.walkExpr(n.Replacement)
	case *ast.Switch:
		if n.Subject != nil {
			fc.walkExpr(n.Subject)
		}
		cases := append([]*ast.SwitchCase{}, n.Cases...)
		if n.Default != nil {
			cases = append(cases, n.Default)
		}
		for _, c := range cases {
			if c.Guard != nil {
				fc.walkExpr(c.Guard)
			}
			for _, g := range c.Guards {
				if g != nil {
					fc.walkExpr(g)
				}
			}
			fc.walkExpr(c.Result)
		}
	case *ast.InstanceOf:
		fc.walkExpr(n.Value)
	case *ast.InvokeNew:
		for _, a := range n.Args {
			fc.walkExpr(a)
		}
	case *ast.InvokeInit:
		for _, a := range n.Args {
			fc.walkExpr(a)
		}
	case *ast.CheckCast:
		fc.walkExpr(n.Value)
	case *ast.ArrayGet:
		fc.walkExpr(n.Array)
		fc.walkExpr(n.Index)
	case *ast.ArrayLength:
		fc.walkExpr(n.Array)
	case *ast.SpecialVar:
		if n.Name == "this" {
			fc.use("this")
		}
		// "it" and "$1".."$N" are never outer locals worth capturing: `it`
		// is always bound by its own closure/switch and capture groups
		// belong to the nearest enclosing OP_MATCH_REGEX, not a slot.
	case *ast.Eval:
		fc.walkExpr(n.Source)
		if n.Bindings != nil {
			fc.walkExpr(n.Bindings)
		}
	case *ast.VarAssign:
		fc.use(n.Target.Name)
		fc.walkExpr(n.Value)
	case *ast.FieldAssign:
		fc.walkExpr(n.Receiver)
		fc.walkExpr(n.Value)
	}
}

// compileClosure lowers a `{ params -> body }` literal into a synthetic
// Function (named "<closureN>", distinct from any user-nameable identifier
// so it can never collide with a real function/method) plus the
// instructions to build its FuncHandle: every outer local the body
// references free gets pushed before OP_MAKE_CLOSURE and becomes a leading
// parameter of the synthetic function, ahead of its own declared params, so
// OP_CALL_VALUE/OP_CALL_ASYNC_VALUE's caller-supplied args line up
// one-to-one with the trailing parameter slots regardless of how many
// upvalues got captured.
func (c *Compiler) compileClosure(n *ast.Closure) {
	bound := map[string]bool{}
	for _, p := range n.Params {
		bound[p.Name] = true
	}
	if n.ImplicitIt {
		bound["it"] = true
	}
	fc := newFreeVarCollector(bound)
	fc.walkStmt(n.Body)

	var upvalues []string
	for _, name := range fc.free {
		if _, ok := c.resolveLocal(name); ok {
			upvalues = append(upvalues, name)
		}
	}

	c.closureCounter++
	name := fmt.Sprintf("<closure%d>", c.closureCounter)

	params := make([]ast.Param, 0, len(upvalues)+len(n.Params)+1)
	for _, u := range upvalues {
		params = append(params, ast.Param{Name: u})
	}
	if n.ImplicitIt {
		params = append(params, ast.Param{Name: "it"})
	} else {
		params = append(params, n.Params...)
	}

	bodyAsync := n.Body.GetMeta().IsAsync
	c.Functions[name] = c.compileFunction(name, params, n.Body, bodyAsync)

	for _, u := range upvalues {
		slot, _ := c.resolveLocal(u)
		c.emit(Instr{Op: OP_GET_LOCAL, A: slot})
	}
	c.emit(Instr{Op: OP_MAKE_CLOSURE, A: len(upvalues), Str: name})
}
