// Package resolver implements spec §4.1: it binds identifiers to
// declarations, assigns static types where possible, colors every
// expression with isAsync/isResultUsed, and applies the REPL-mode
// global-survival and upper-case-class-name-preference rules.
//
// Grounded on the teacher's internal/analyzer/{inference*.go,
// declarations.go, naming.go}: one function per node-family that both
// recurses and records its verdict into the shared PipelineContext
// side-tables (TypeMap/AsyncMap/ResultUsed), mirroring how funxy's
// inference pass writes into PipelineContext.TypeMap as it walks.
package resolver

import (
	"strings"

	"github.com/jactl-lang/jactl/internal/ast"
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/pipeline"
	"github.com/jactl-lang/jactl/internal/symbols"
	"github.com/jactl-lang/jactl/internal/token"
	"github.com/jactl-lang/jactl/internal/typesystem"
)

// Resolver walks one Program against a shared pipeline.Context.
type Resolver struct {
	ctx   *pipeline.Context
	scope *symbols.Table
}

func New(ctx *pipeline.Context) *Resolver {
	return &Resolver{ctx: ctx, scope: ctx.Symbols}
}

// Run resolves prog in place, appending any compile errors to ctx.Errors.
func (r *Resolver) Run(prog *ast.Program) {
	r.seedBuiltins()
	for _, stmt := range prog.Statements {
		r.resolveStmt(stmt)
	}
}

// seedBuiltins defines every name a plain identifier lookup must resolve
// without a user-written declaration: the `sleep` suspension primitive
// (§4.1/§9), the `measure` closure-timing primitive (SPEC_FULL §8's
// mandatory async scenario — wired directly into every Machine rather
// than through a host RegisterFunction call, so it needs the same
// seeding `sleep` gets rather than a Registry lookup), and every
// host-registered function (§6) — registration happens once, outside
// script compilation, so these are defined as ordinary function symbols
// in the root scope before the tree is walked, the same way
// resolveFunDecl defines a user function's own name.
func (r *Resolver) seedBuiltins() {
	r.scope.Define("sleep", typesystem.FuncType{Return: typesystem.Def()}, symbols.KindFunction)
	r.scope.Define("measure", typesystem.FuncType{Return: typesystem.Def()}, symbols.KindFunction)
	for name := range r.ctx.Registry.Functions {
		r.scope.Define(name, typesystem.FuncType{Return: typesystem.Def()}, symbols.KindFunction)
	}
}

func (r *Resolver) err(tok token.Token, code diagnostics.ErrorCode, args ...interface{}) {
	r.ctx.AddError(diagnostics.NewCompileError(diagnostics.PhaseResolver, code, tok, args...))
}

func (r *Resolver) setType(n ast.Node, t typesystem.Type) {
	r.ctx.TypeMap[n] = t
	n.GetMeta().StaticType = t
}

func (r *Resolver) setAsync(n ast.Node, async bool) {
	r.ctx.AsyncMap[n] = async
	n.GetMeta().IsAsync = async
}

func (r *Resolver) setResultUsed(n ast.Node, used bool) {
	r.ctx.ResultUsed[n] = used
	n.GetMeta().IsResultUsed = used
}

func (r *Resolver) pushScope() { r.scope = r.scope.NewChild() }
func (r *Resolver) popScope()  { r.scope = r.scope.Outer() }

// defineParams declares each parameter in the current scope and resolves
// any default-value expression (itself eligible for async decoration,
// §4.6, since it runs at call time when the argument is omitted).
func (r *Resolver) defineParams(params []ast.Param) {
	for _, p := range params {
		t := p.Type
		if t == nil {
			t = typesystem.Def()
		}
		r.scope.Define(p.Name, t, symbols.KindParam)
		if p.DefaultValue != nil {
			r.resolveExpr(p.DefaultValue, true)
		}
	}
}

// --- Statements -------------------------------------------------------

func (r *Resolver) resolveStmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.VarDecl:
		r.resolveVarDecl(n)
	case *ast.Block:
		r.pushScope()
		for _, st := range n.Statements {
			r.resolveStmt(st)
		}
		r.popScope()
	case *ast.If:
		r.resolveExpr(n.Cond, false)
		r.setAsync(n, n.Cond.GetMeta().IsAsync)
		r.resolveStmt(n.Then)
		if n.Else != nil {
			r.resolveStmt(n.Else)
			r.setAsync(n, n.GetMeta().IsAsync || n.Else.GetMeta().IsAsync)
		}
		r.setAsync(n, n.GetMeta().IsAsync || n.Then.GetMeta().IsAsync)
	case *ast.While:
		r.resolveExpr(n.Cond, false)
		r.resolveStmt(n.Body)
		r.setAsync(n, n.Cond.GetMeta().IsAsync || n.Body.GetMeta().IsAsync)
	case *ast.Return:
		if n.Value != nil {
			r.resolveExpr(n.Value, true)
			r.setAsync(n, n.Value.GetMeta().IsAsync)
		}
	case *ast.FunDecl:
		r.resolveFunDecl(n)
	case *ast.ClassDecl:
		r.resolveClassDecl(n)
	case *ast.Print:
		r.resolveExpr(n.Value, true)
		r.setAsync(n, n.Value.GetMeta().IsAsync)
	case *ast.Die:
		r.resolveExpr(n.Message, true)
		r.setAsync(n, n.Message.GetMeta().IsAsync)
	case *ast.ExprStmt:
		r.resolveExpr(n.Expr, n.GetMeta().IsResultUsed)
		r.setAsync(n, n.Expr.GetMeta().IsAsync)
	case *ast.SwitchCase:
		// Only reached when a SwitchCase is resolved standalone (tests);
		// normal resolution happens inside resolveSwitch.
	}
}

func (r *Resolver) resolveVarDecl(n *ast.VarDecl) {
	typ := n.Type
	if typ == nil {
		typ = typesystem.Def()
	}
	if n.Init != nil {
		r.resolveExpr(n.Init, true)
		r.setAsync(n, n.Init.GetMeta().IsAsync)
		// A `def` declaration adopts the initialiser's static type only
		// for the resolver's own bookkeeping; the *declared* type stays
		// `def` so later assignments remain dynamically typed (§4.1).
	}
	kind := symbols.KindVariable
	scope := r.scope
	if n.IsGlobal || r.ctx.Options.ReplMode && r.scope == r.ctx.Symbols {
		scope = r.ctx.Globals
		n.IsGlobal = true
	}
	scope.Define(n.Name, typ, kind)
	r.setType(n, typ)
}

func (r *Resolver) resolveFunDecl(n *ast.FunDecl) {
	retType := n.ReturnType
	if retType == nil {
		retType = typesystem.Def()
	}
	async, _ := r.ctx.Registry.LookupAsync(n.Name)
	r.scope.Define(n.Name, typesystem.FuncType{Return: retType}, symbols.KindFunction)

	r.pushScope()
	r.defineParams(n.Params)
	r.resolveStmt(n.Body)
	r.popScope()

	bodyAsync := n.Body.GetMeta().IsAsync
	n.FnIsAsync = async || bodyAsync
	r.setAsync(n, n.FnIsAsync)
	r.setType(n, retType)
}

func (r *Resolver) resolveClassDecl(n *ast.ClassDecl) {
	r.scope.Define(n.Name, typesystem.Instance{ClassName: n.Name}, symbols.KindClass)
	r.pushScope()
	for _, f := range n.Fields {
		r.resolveVarDecl(f)
	}
	for _, m := range n.Methods {
		r.resolveFunDecl(m)
	}
	if n.Init != nil {
		r.resolveFunDecl(n.Init)
	}
	r.popScope()
}

// --- Expressions -------------------------------------------------------

// resolveExpr resolves n and records whether its result is used by its
// parent (isResultUsed, §3/§4.1).
func (r *Resolver) resolveExpr(e ast.Expression, resultUsed bool) {
	r.setResultUsed(e, resultUsed)
	switch n := e.(type) {
	case *ast.Literal:
		r.setAsync(n, false)
		r.setType(n, literalType(n.Value))

	case *ast.Identifier:
		r.resolveIdentifier(n)

	case *ast.Binary:
		r.resolveExpr(n.Left, true)
		r.resolveExpr(n.Right, true)
		r.setAsync(n, n.Left.GetMeta().IsAsync || n.Right.GetMeta().IsAsync)
		r.setType(n, binaryResultType(n))

	case *ast.Ternary:
		r.resolveExpr(n.Cond, true)
		r.resolveExpr(n.Then, resultUsed)
		r.resolveExpr(n.Else, resultUsed)
		r.setAsync(n, n.Cond.GetMeta().IsAsync || n.Then.GetMeta().IsAsync || n.Else.GetMeta().IsAsync)
		r.setType(n, typesystem.Join([]typesystem.Type{n.Then.GetMeta().StaticType, n.Else.GetMeta().StaticType}))

	case *ast.Unary:
		r.resolveExpr(n.Operand, true)
		r.setAsync(n, n.Operand.GetMeta().IsAsync)
		r.setType(n, n.Operand.GetMeta().StaticType)

	case *ast.Cast:
		r.resolveExpr(n.Value, true)
		r.setAsync(n, n.Value.GetMeta().IsAsync)
		r.setType(n, n.Target)

	case *ast.Call:
		r.resolveCall(n)

	case *ast.MethodCall:
		r.resolveExpr(n.Receiver, true)
		async := n.Receiver.GetMeta().IsAsync
		for _, a := range n.Args {
			r.resolveExpr(a, true)
			async = async || a.GetMeta().IsAsync
		}
		r.setAsync(n, async)
		r.setType(n, typesystem.Def())

	case *ast.Closure:
		r.pushScope()
		r.defineParams(n.Params)
		if n.ImplicitIt {
			r.scope.Define("it", typesystem.Def(), symbols.KindParam)
		}
		r.resolveStmt(n.Body)
		r.popScope()
		r.setAsync(n, false) // a closure's own definition never suspends; invoking it might
		r.setType(n, typesystem.FuncType{})

	case *ast.ListLiteral:
		async := false
		for _, el := range n.Elements {
			r.resolveExpr(el, true)
			async = async || el.GetMeta().IsAsync
		}
		r.setAsync(n, async)
		r.setType(n, typesystem.ListAny)

	case *ast.MapLiteral:
		async := false
		for i, k := range n.Keys {
			r.resolveExpr(k, true)
			r.resolveExpr(n.Values[i], true)
			async = async || k.GetMeta().IsAsync || n.Values[i].GetMeta().IsAsync
		}
		r.setAsync(n, async)
		r.setType(n, typesystem.MapAny)

	case *ast.ExprString:
		async := false
		for _, part := range n.Parts {
			if part.Expr != nil {
				r.resolveExpr(part.Expr, true)
				async = async || part.Expr.GetMeta().IsAsync
			}
		}
		r.setAsync(n, async)
		r.setType(n, typesystem.String)

	case *ast.RegexMatch:
		r.resolveExpr(n.Subject, true)
		r.setAsync(n, n.Subject.GetMeta().IsAsync)
		r.setType(n, typesystem.Boolean)

	case *ast.RegexSubst:
		r.resolveExpr(n.Subject, true)
		// Replacement is never decorated (§4.4) but is still resolved.
		r.resolveExpr(n.Replacement, true)
		r.setAsync(n, n.Subject.GetMeta().IsAsync || n.Replacement.GetMeta().IsAsync)
		r.setType(n, typesystem.String)

	case *ast.Switch:
		r.resolveSwitch(n)

	case *ast.InstanceOf:
		r.resolveExpr(n.Value, true)
		r.setAsync(n, n.Value.GetMeta().IsAsync)
		r.setType(n, typesystem.Boolean)

	case *ast.InvokeNew:
		async := false
		for _, a := range n.Args {
			r.resolveExpr(a, true)
			async = async || a.GetMeta().IsAsync
		}
		r.setAsync(n, async)
		r.setType(n, n.Class)

	case *ast.InvokeInit:
		async := false
		for _, a := range n.Args {
			r.resolveExpr(a, true)
			async = async || a.GetMeta().IsAsync
		}
		r.setAsync(n, async)
		r.setType(n, typesystem.Null)

	case *ast.CheckCast:
		r.resolveExpr(n.Value, true)
		r.setAsync(n, n.Value.GetMeta().IsAsync)
		r.setType(n, n.Target)

	case *ast.ArrayGet:
		r.resolveExpr(n.Array, true)
		r.resolveExpr(n.Index, true)
		r.setAsync(n, n.Array.GetMeta().IsAsync || n.Index.GetMeta().IsAsync)
		r.setType(n, typesystem.Def())

	case *ast.ArrayLength:
		r.resolveExpr(n.Array, true)
		r.setAsync(n, n.Array.GetMeta().IsAsync)
		r.setType(n, typesystem.Int)

	case *ast.Noop:
		r.setAsync(n, false)

	case *ast.TypeExpr:
		r.setAsync(n, false)
		r.setType(n, n.Type)

	case *ast.ClassPath:
		r.setAsync(n, false)

	case *ast.SpecialVar:
		r.resolveSpecialVar(n)

	case *ast.Eval:
		r.resolveExpr(n.Source, true)
		if n.Bindings != nil {
			r.resolveExpr(n.Bindings, true)
		}
		r.setAsync(n, true) // eval is always treated as async: it may run arbitrary suspending code
		r.setType(n, typesystem.Def())

	case *ast.VarAssign:
		r.resolveExpr(n.Value, true)
		sym, _, found := r.scope.Resolve(n.Target.Name)
		if !found && !r.ctx.Options.ReplMode {
			r.err(token.Token{Pos: n.Target.GetMeta().Pos}, diagnostics.ErrUndefinedVar, n.Target.Name)
		}
		r.setAsync(n.Target, false) // assignment LHS identifier is never decorated (§4.4)
		r.setAsync(n, n.Value.GetMeta().IsAsync)
		if found {
			r.setType(n, sym.Type)
		} else {
			r.setType(n, typesystem.Def())
		}

	case *ast.FieldAssign:
		r.resolveExpr(n.Receiver, true)
		r.resolveExpr(n.Value, true)
		r.setAsync(n, n.Receiver.GetMeta().IsAsync || n.Value.GetMeta().IsAsync)
		r.setType(n, typesystem.Def())
	}
}

func (r *Resolver) resolveIdentifier(n *ast.Identifier) {
	// Upper-case identifiers prefer a class-name resolution when a class
	// of that name is registered or declared (§4.1 bullet 2).
	if len(n.Name) > 0 && n.Name[0] >= 'A' && n.Name[0] <= 'Z' {
		if sym, depth, found := r.scope.Resolve(n.Name); found && sym.Kind == symbols.KindClass {
			n.ScopeDepth, n.DeclIndex = depth, sym.DeclIndex
			r.setAsync(n, false)
			r.setType(n, sym.Type)
			return
		}
	}
	sym, depth, found := r.scope.Resolve(n.Name)
	if !found {
		if gsym, gdepth, gfound := r.ctx.Globals.Resolve(n.Name); gfound {
			sym, depth, found = gsym, gdepth, gfound
		}
	}
	if !found {
		if r.ctx.Options.ReplMode {
			// REPL mode defers undefined-reference diagnostics (§4.1).
		} else {
			r.err(token.Token{Pos: n.Meta.Pos}, diagnostics.ErrUndefinedVar, n.Name)
		}
		r.setAsync(n, false)
		r.setType(n, typesystem.Def())
		return
	}
	n.ScopeDepth, n.DeclIndex = depth, sym.DeclIndex
	r.setAsync(n, false)
	r.setType(n, sym.Type)
}

func (r *Resolver) resolveSpecialVar(n *ast.SpecialVar) {
	r.setAsync(n, false)
	switch {
	case n.Name == "it" || n.Name == "this":
		r.setType(n, typesystem.Def())
	case strings.HasPrefix(n.Name, "$"):
		r.setType(n, typesystem.String) // regex capture groups are strings
	default:
		r.setType(n, typesystem.Def())
	}
}

func (r *Resolver) resolveCall(n *ast.Call) {
	async := false
	r.resolveExpr(n.Callee, true)
	async = async || n.Callee.GetMeta().IsAsync
	for _, a := range n.Args {
		r.resolveExpr(a, true)
		async = async || a.GetMeta().IsAsync
	}
	for _, a := range n.Named {
		r.resolveExpr(a, true) // named-arg map entries are resolved but never wrapped themselves by the decorator (§4.4)
		async = async || a.GetMeta().IsAsync
	}
	// A call to a registered-async function, or to `sleep`, is itself an
	// async expression regardless of its own operand asyncness (§4.1
	// bullet 3, §5).
	if ident, ok := n.Callee.(*ast.Identifier); ok {
		if ident.Name == "sleep" || ident.Name == "measure" {
			async = true
		} else if isAsync, found := r.ctx.Registry.LookupAsync(ident.Name); found && isAsync {
			async = true
		}
	}
	r.setAsync(n, async)
	r.setType(n, typesystem.Def())
}

// resolveSwitch binds each case's pattern variables into a fresh child
// scope, resolves the guard/result within it, and computes the switch's
// own static type as the join of every case's result type (§4.3). The
// exhaustiveness/reachability/duplicate-literal checks themselves are
// the analyser's job (§4.2); the resolver only does name binding and
// typing here, matching the teacher's split between its naming pass and
// its dedicated exhaustiveness checker.
func (r *Resolver) resolveSwitch(n *ast.Switch) {
	async := false
	var subjectType typesystem.Type = typesystem.Def()
	if n.Subject != nil {
		r.resolveExpr(n.Subject, true)
		async = async || n.Subject.GetMeta().IsAsync
		subjectType = n.Subject.GetMeta().StaticType
	} else if sym, _, found := r.scope.Resolve("it"); found {
		subjectType = sym.Type
	}

	var resultTypes []typesystem.Type
	all := append([]*ast.SwitchCase{}, n.Cases...)
	if n.Default != nil {
		all = append(all, n.Default)
	}
	for _, c := range all {
		r.pushScope()
		// `it` names the subject inside every case's guard/result, not
		// only when the switch head itself is omitted (spec §8 scenario
		// 5: `switch (a) { 7 if it == 7 => 11 }` reads `it` as `a`) — so
		// it's (re)defined here, shadowing any outer `it`, for both the
		// explicit- and implicit-subject forms.
		r.scope.Define("it", subjectType, symbols.KindParam)
		caseAsync := false
		for i, p := range c.Patterns {
			r.resolvePattern(p, subjectType)
			if guard := c.GuardFor(i); guard != nil {
				r.resolveExpr(guard, true)
				caseAsync = caseAsync || guard.GetMeta().IsAsync
			}
		}
		if c.Guard != nil {
			r.resolveExpr(c.Guard, true)
			caseAsync = caseAsync || c.Guard.GetMeta().IsAsync
		}
		r.resolveExpr(c.Result, true)
		caseAsync = caseAsync || c.Result.GetMeta().IsAsync
		r.setAsync(c, caseAsync)
		async = async || caseAsync
		resultTypes = append(resultTypes, c.Result.GetMeta().StaticType)
		r.popScope()
	}

	r.setAsync(n, async)
	r.setType(n, typesystem.Join(resultTypes))
}

// resolvePattern binds every IdentifierPattern/TypePattern/SpreadPattern
// name it finds into the current (case) scope, applying invariant I1: a
// name that recurs within one case becomes an equality test rather than
// a second binding, so the second occurrence is resolved, not defined.
func (r *Resolver) resolvePattern(p ast.Pattern, subjectType typesystem.Type) {
	switch pat := p.(type) {
	case *ast.LiteralPattern:
		r.setAsync(pat, false)
		r.setType(pat, literalType(pat.Value))

	case *ast.TypePattern:
		r.setAsync(pat, false)
		r.setType(pat, pat.Target)
		if pat.Name != "" {
			r.bindPatternName(pat.Name, pat.Target)
		}

	case *ast.ListPattern:
		elemType := typesystem.Def()
		if lt, ok := subjectType.(typesystem.ListOf); ok {
			elemType = lt.Elem
		}
		for _, el := range pat.Elements {
			r.resolvePattern(el, elemType)
		}
		r.setAsync(pat, false)
		r.setType(pat, subjectType)

	case *ast.MapPattern:
		for _, v := range pat.Values {
			r.resolvePattern(v, typesystem.Def())
		}
		r.setAsync(pat, false)
		r.setType(pat, subjectType)

	case *ast.RegexPattern:
		r.setAsync(pat, false)
		r.setType(pat, typesystem.Boolean)

	case *ast.IdentifierPattern:
		r.setAsync(pat, false)
		r.setType(pat, subjectType)
		r.bindPatternName(pat.Name, subjectType)

	case *ast.WildcardPattern:
		r.setAsync(pat, false)

	case *ast.SpreadPattern:
		r.setAsync(pat, false)
		if pat.Inner != nil {
			r.resolvePattern(pat.Inner, subjectType)
		}
	}
}

// bindPatternName implements I1: the first occurrence of name within a
// case scope is a fresh binding; any later occurrence in the *same* case
// reuses the earlier binding (its equality is enforced by the pattern
// compiler, §4.3), and an occurrence that shadows an *enclosing* scope's
// variable is flagged (binding-shadows-enclosing).
func (r *Resolver) bindPatternName(name string, typ typesystem.Type) {
	if _, already := r.scope.DefinedInScope(name); already {
		return
	}
	if _, _, foundOuter := r.scope.Outer().Resolve(name); foundOuter {
		// Shadowing an enclosing variable is allowed but distinct from a
		// repeated-within-case binding; no diagnostic by default, pattern
		// bindings are scoped to the case only.
	}
	r.scope.Define(name, typ, symbols.KindBindingVar)
}

func literalType(v interface{}) typesystem.Type {
	switch v.(type) {
	case int32:
		return typesystem.Int
	case int64:
		return typesystem.Long
	case float64:
		return typesystem.Double
	case string:
		return typesystem.String
	case nil:
		return typesystem.Null
	case bool:
		return typesystem.Boolean
	case []byte:
		return typesystem.ByteArray
	default:
		return typesystem.Decimal
	}
}

func binaryResultType(n *ast.Binary) typesystem.Type {
	lt, rt := n.Left.GetMeta().StaticType, n.Right.GetMeta().StaticType
	switch n.Op {
	case token.EQ, token.NE, token.LT, token.LE, token.GT, token.GE, token.AND_AND, token.OR_OR:
		return typesystem.Boolean
	}
	if lt == nil || rt == nil {
		return typesystem.Def()
	}
	if typesystem.IsNumeric(lt) && typesystem.IsNumeric(rt) {
		if w, ok := typesystem.Wider(lt.Tag(), rt.Tag()); ok {
			return tagType(w)
		}
	}
	return typesystem.Def()
}

func tagType(t typesystem.Tag) typesystem.Type { return typesystem.Prim{T: t} }
