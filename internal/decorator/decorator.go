// Package decorator implements the expression decorator from spec §4.6: a
// bottom-up AST rewriter that wraps every eligible async-colored
// subexpression in a forced-suspension wrapper, except for the explicit
// exemption list (VarDecl targets, TypeExpr, named-argument map entries,
// regex-substitution replacements, InvokeNew, assignment-LHS identifiers,
// ClassPath, Noop).
//
// Grounded on the teacher's internal/vm compiler's own "wrap async call
// results" pass, generalised here into a standalone tree rewrite stage
// that runs between the resolver/analyser and the code generator, mirroring
// how a generic bottom-up ast.Visitor rewrite is structured elsewhere in
// the teacher (cmd/gen-visitor-produced walkers).
package decorator

import (
	"github.com/jactl-lang/jactl/internal/ast"
	"github.com/jactl-lang/jactl/internal/pipeline"
)

// WrapFunc marks the site of a forced suspension. The code generator
// recognises a Call to this synthetic name as "insert a suspension point
// here" rather than as an ordinary call (§4.4/§4.6).
const WrapFunc = "sleep"

type Decorator struct {
	ctx      *pipeline.Context
	forceAll bool
}

func New(ctx *pipeline.Context) *Decorator { return &Decorator{ctx: ctx} }

// NewForceAll builds a Decorator that treats every wrap-eligible
// subexpression as async-colored, regardless of what the resolver found.
// Used by test-mode compilation (§8's decorated-equivalence property) to
// prove the continuation transform handles a suspension at every possible
// point, not just the ones a script happens to exercise naturally.
func NewForceAll(ctx *pipeline.Context) *Decorator { return &Decorator{ctx: ctx, forceAll: true} }

func (d *Decorator) Run(prog *ast.Program) {
	for i, s := range prog.Statements {
		stmt, async := d.decorateStmtAsync(s)
		prog.Statements[i] = stmt
		stmt.GetMeta().IsAsync = async
	}
}

func (d *Decorator) isAsync(n ast.Node) bool { return d.forceAll || d.ctx.AsyncMap[n] }

// wrap produces `sleep(0, expr)`, the forced-suspension wrapper (§4.6).
// isResultUsed is inherited from the original expression; the now-nested
// original expression itself becomes isResultUsed=true (its value is
// consumed by the wrapper call).
func (d *Decorator) wrap(e ast.Expression) ast.Expression {
	if !d.isAsync(e) {
		return e
	}
	if call, ok := e.(*ast.Call); ok {
		if ident, ok := call.Callee.(*ast.Identifier); ok && ident.Name == WrapFunc {
			return e // already wrapped (idempotent rewrite, avoids double-wrapping on re-run)
		}
	}
	pos := e.GetMeta().Pos
	zero := &ast.Literal{Meta: ast.Meta{Pos: pos}, Value: int32(0)}
	callee := &ast.Identifier{Meta: ast.Meta{Pos: pos}, Name: WrapFunc}
	wrapper := &ast.Call{
		Meta:   ast.Meta{Pos: e.GetMeta().Pos, StaticType: e.GetMeta().StaticType, IsAsync: true, IsResultUsed: e.GetMeta().IsResultUsed},
		Callee: callee,
		Args:   []ast.Expression{zero, e},
	}
	e.GetMeta().IsResultUsed = true
	d.ctx.AsyncMap[wrapper] = true
	d.ctx.ResultUsed[wrapper] = wrapper.Meta.IsResultUsed
	d.ctx.TypeMap[wrapper] = wrapper.Meta.StaticType
	return wrapper
}

// wrapAsync is wrap plus a "does the returned expression contain a genuine
// suspension point" report: true if e itself got wrapped here, or if
// childAsync (computed from already-decorated children) was already true.
func (d *Decorator) wrapAsync(e ast.Expression, childAsync bool) (ast.Expression, bool) {
	wrapped := d.wrap(e)
	return wrapped, childAsync || wrapped != e
}

// --- Statements ----------------------------------------------------------

// decorateStmtAsync decorates s in place and reports whether its subtree
// now contains a genuine suspension point. codegen.Compile derives each
// function's IsAsync purely from Meta.IsAsync (main's top-level statements)
// or FnIsAsync (FunDecl/methods) — both computed by the resolver BEFORE
// this pass runs, so force-wrapping a call here without also rewriting
// those flags would leave the resume-dispatch header missing from a
// function that now genuinely suspends mid-body.
func (d *Decorator) decorateStmt(s ast.Statement) ast.Statement {
	stmt, _ := d.decorateStmtAsync(s)
	return stmt
}

func (d *Decorator) decorateStmtAsync(s ast.Statement) (ast.Statement, bool) {
	async := false
	switch n := s.(type) {
	case *ast.Block:
		for i, st := range n.Statements {
			var a bool
			n.Statements[i], a = d.decorateStmtAsync(st)
			async = async || a
		}
	case *ast.If:
		n.Cond, async = d.decorateExprAsync(n.Cond)
		var a bool
		n.Then, a = d.decorateStmtAsync(n.Then)
		async = async || a
		if n.Else != nil {
			n.Else, a = d.decorateStmtAsync(n.Else)
			async = async || a
		}
	case *ast.While:
		n.Cond, async = d.decorateExprAsync(n.Cond)
		var a bool
		n.Body, a = d.decorateStmtAsync(n.Body)
		async = async || a
	case *ast.Return:
		if n.Value != nil {
			n.Value, async = d.decorateExprAsync(n.Value)
		}
	case *ast.VarDecl:
		// The declared name itself is exempt (§4.6 exemption list); only
		// the initialiser is eligible.
		if n.Init != nil {
			n.Init, async = d.decorateExprAsync(n.Init)
		}
	case *ast.FunDecl:
		_, bodyAsync := d.decorateStmtAsync(n.Body)
		n.FnIsAsync = n.FnIsAsync || bodyAsync
		// A FunDecl statement itself never suspends the enclosing flow —
		// only a later call to it can.
	case *ast.ClassDecl:
		for _, f := range n.Fields {
			d.decorateStmt(f)
		}
		for _, m := range n.Methods {
			_, bodyAsync := d.decorateStmtAsync(m.Body)
			m.FnIsAsync = m.FnIsAsync || bodyAsync
		}
		if n.Init != nil {
			_, bodyAsync := d.decorateStmtAsync(n.Init.Body)
			n.Init.FnIsAsync = n.Init.FnIsAsync || bodyAsync
		}
	case *ast.Print:
		if n.Value != nil {
			n.Value, async = d.decorateExprAsync(n.Value)
		}
	case *ast.Die:
		n.Message, async = d.decorateExprAsync(n.Message)
	case *ast.ExprStmt:
		n.Expr, async = d.decorateExprAsync(n.Expr)
	}
	return s, async
}

// decorateExpr recurses bottom-up (children first) then wraps the
// current node if it is itself async-colored, matching §4.6's bottom-up
// rewrite order: an async child gets its own wrapper before the parent
// is considered for one.
func (d *Decorator) decorateExpr(e ast.Expression) ast.Expression {
	out, _ := d.decorateExprAsync(e)
	return out
}

// decorateExprAsync is decorateExpr plus a "does this subtree now contain
// a real suspension point" report, used to keep enclosing statement/
// function async flags accurate after force-wrapping (see decorateStmt).
func (d *Decorator) decorateExprAsync(e ast.Expression) (ast.Expression, bool) {
	async := false
	switch n := e.(type) {
	case *ast.Literal, *ast.TypeExpr, *ast.ClassPath, *ast.Noop, *ast.SpecialVar:
		return e, false // never decorated (§4.6 exemption list)

	case *ast.Identifier:
		return e, false // bare identifier reads are never wrapped

	case *ast.Binary:
		var a, b bool
		n.Left, a = d.decorateExprAsync(n.Left)
		n.Right, b = d.decorateExprAsync(n.Right)
		async = a || b
	case *ast.Ternary:
		var a, b, c bool
		n.Cond, a = d.decorateExprAsync(n.Cond)
		n.Then, b = d.decorateExprAsync(n.Then)
		n.Else, c = d.decorateExprAsync(n.Else)
		async = a || b || c
	case *ast.Unary:
		n.Operand, async = d.decorateExprAsync(n.Operand)
	case *ast.Cast:
		n.Value, async = d.decorateExprAsync(n.Value)
	case *ast.Call:
		var a bool
		n.Callee, a = d.decorateExprAsync(n.Callee)
		async = async || a
		for i, arg := range n.Args {
			n.Args[i], a = d.decorateExprAsync(arg)
			async = async || a
		}
		// Named-argument map entries are exempt from individual wrapping
		// (§4.6 exemption list) but still need their own nested decoration.
		for k, arg := range n.Named {
			var out ast.Expression
			out, a = d.decorateExprAsync(arg)
			// Drop the wrapper decorateExprAsync put around the entry
			// itself, keeping any wrappers it added inside it.
			if w, ok := out.(*ast.Call); ok && out != arg && len(w.Args) == 2 && w.Args[1] == arg {
				out = arg
			}
			n.Named[k] = out
			async = async || a
		}
		return d.wrapAsync(n, async)
	case *ast.MethodCall:
		var a bool
		n.Receiver, a = d.decorateExprAsync(n.Receiver)
		async = async || a
		for i, arg := range n.Args {
			n.Args[i], a = d.decorateExprAsync(arg)
			async = async || a
		}
		return d.wrapAsync(n, async)
	case *ast.Closure:
		d.decorateStmt(n.Body)
		return e, false // the closure literal itself never suspends; a later call to it might
	case *ast.ListLiteral:
		for i, el := range n.Elements {
			var a bool
			n.Elements[i], a = d.decorateExprAsync(el)
			async = async || a
		}
	case *ast.MapLiteral:
		for i := range n.Keys {
			var a, b bool
			n.Keys[i], a = d.decorateExprAsync(n.Keys[i])
			n.Values[i], b = d.decorateExprAsync(n.Values[i])
			async = async || a || b
		}
	case *ast.ExprString:
		for i, part := range n.Parts {
			if part.Expr != nil {
				var a bool
				n.Parts[i].Expr, a = d.decorateExprAsync(part.Expr)
				async = async || a
			}
		}
	case *ast.RegexMatch:
		n.Subject, async = d.decorateExprAsync(n.Subject)
	case *ast.RegexSubst:
		n.Subject, async = d.decorateExprAsync(n.Subject)
		// Replacement is exempt (§4.6 exemption list): resolved but never wrapped.
	case *ast.Switch:
		if n.Subject != nil {
			var a bool
			n.Subject, a = d.decorateExprAsync(n.Subject)
			async = async || a
		}
		for _, c := range allCases(n) {
			var a bool
			if c.Guard != nil {
				c.Guard, a = d.decorateExprAsync(c.Guard)
				async = async || a
			}
			for i, g := range c.Guards {
				if g != nil {
					c.Guards[i], a = d.decorateExprAsync(g)
					async = async || a
				}
			}
			c.Result, a = d.decorateExprAsync(c.Result)
			async = async || a
		}
		return d.wrapAsync(n, async)
	case *ast.InstanceOf:
		n.Value, async = d.decorateExprAsync(n.Value)
	case *ast.InvokeNew:
		for i, arg := range n.Args {
			var a bool
			n.Args[i], a = d.decorateExprAsync(arg)
			async = async || a
		}
		return e, async // InvokeNew is exempt (§4.6 exemption list)
	case *ast.InvokeInit:
		for i, arg := range n.Args {
			var a bool
			n.Args[i], a = d.decorateExprAsync(arg)
			async = async || a
		}
	case *ast.CheckCast:
		n.Value, async = d.decorateExprAsync(n.Value)
	case *ast.ArrayGet:
		var a, b bool
		n.Array, a = d.decorateExprAsync(n.Array)
		n.Index, b = d.decorateExprAsync(n.Index)
		async = a || b
	case *ast.ArrayLength:
		n.Array, async = d.decorateExprAsync(n.Array)
	case *ast.Eval:
		var a bool
		n.Source, a = d.decorateExprAsync(n.Source)
		async = async || a
		if n.Bindings != nil {
			n.Bindings, a = d.decorateExprAsync(n.Bindings)
			async = async || a
		}
		return d.wrapAsync(n, async)
	case *ast.VarAssign:
		// The target identifier is exempt (§4.6 exemption list); only the
		// value expression is eligible.
		n.Value, async = d.decorateExprAsync(n.Value)
	case *ast.FieldAssign:
		var a, b bool
		n.Receiver, a = d.decorateExprAsync(n.Receiver)
		n.Value, b = d.decorateExprAsync(n.Value)
		async = a || b
	}
	return d.wrapAsync(e, async)
}

func allCases(n *ast.Switch) []*ast.SwitchCase {
	all := append([]*ast.SwitchCase{}, n.Cases...)
	if n.Default != nil {
		all = append(all, n.Default)
	}
	return all
}
