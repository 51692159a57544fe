// Package analyzer implements the pattern-match analyser from spec §4.2:
// type/tag-set compatibility checking, literal duplication detection
// across numeric widenings, top-down reachability with residual-set
// tracking, and the table-lookup-vs-sequential lowering decision.
//
// Grounded on the teacher's internal/analyzer/exhaustiveness.go: a
// residual-set walk over cases in source order, narrowing a working type
// set as each case is shown to handle part of it, flagging any case whose
// own narrowed set is empty (unreachable) and any switch whose final
// residual set is non-empty with no default (non-exhaustive).
package analyzer

import (
	"fmt"
	"strconv"

	"github.com/jactl-lang/jactl/internal/ast"
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/pipeline"
	"github.com/jactl-lang/jactl/internal/token"
	"github.com/jactl-lang/jactl/internal/typesystem"
	"github.com/jactl-lang/jactl/internal/values"
)

// Analyzer walks every ast.Switch node reachable from a Program and
// applies invariants I1-I3 (disjoint bindings, tag-set compatibility,
// reachability) plus the literal-duplication and lowering-strategy rules.
type Analyzer struct {
	ctx *pipeline.Context
}

func New(ctx *pipeline.Context) *Analyzer { return &Analyzer{ctx: ctx} }

func (a *Analyzer) Run(prog *ast.Program) {
	for _, s := range prog.Statements {
		a.walkStmt(s)
	}
}

func (a *Analyzer) err(n ast.Node, code diagnostics.ErrorCode, args ...interface{}) {
	tok := token.Token{Pos: n.GetMeta().Pos}
	a.ctx.AddError(diagnostics.NewCompileError(diagnostics.PhaseAnalyzer, code, tok, args...))
}

// walkStmt/walkExpr recurse into every nested Switch without needing a
// full Visitor round-trip — the analyser only cares about Switch nodes
// and the expressions/statements that might contain one.
func (a *Analyzer) walkStmt(s ast.Statement) {
	switch n := s.(type) {
	case *ast.Block:
		for _, st := range n.Statements {
			a.walkStmt(st)
		}
	case *ast.If:
		a.walkExpr(n.Cond)
		a.walkStmt(n.Then)
		if n.Else != nil {
			a.walkStmt(n.Else)
		}
	case *ast.While:
		a.walkExpr(n.Cond)
		a.walkStmt(n.Body)
	case *ast.Return:
		if n.Value != nil {
			a.walkExpr(n.Value)
		}
	case *ast.VarDecl:
		if n.Init != nil {
			a.walkExpr(n.Init)
		}
	case *ast.FunDecl:
		a.walkStmt(n.Body)
	case *ast.ClassDecl:
		for _, f := range n.Fields {
			a.walkStmt(f)
		}
		for _, m := range n.Methods {
			a.walkStmt(m)
		}
		if n.Init != nil {
			a.walkStmt(n.Init)
		}
	case *ast.Print:
		a.walkExpr(n.Value)
	case *ast.Die:
		a.walkExpr(n.Message)
	case *ast.ExprStmt:
		a.walkExpr(n.Expr)
	}
}

func (a *Analyzer) walkExpr(e ast.Expression) {
	switch n := e.(type) {
	case *ast.Binary:
		a.walkExpr(n.Left)
		a.walkExpr(n.Right)
	case *ast.Ternary:
		a.walkExpr(n.Cond)
		a.walkExpr(n.Then)
		a.walkExpr(n.Else)
	case *ast.Unary:
		a.walkExpr(n.Operand)
	case *ast.Cast:
		a.walkExpr(n.Value)
	case *ast.Call:
		a.walkExpr(n.Callee)
		for _, arg := range n.Args {
			a.walkExpr(arg)
		}
	case *ast.MethodCall:
		a.walkExpr(n.Receiver)
		for _, arg := range n.Args {
			a.walkExpr(arg)
		}
	case *ast.Closure:
		a.walkStmt(n.Body)
	case *ast.ListLiteral:
		for _, el := range n.Elements {
			a.walkExpr(el)
		}
	case *ast.MapLiteral:
		for i := range n.Keys {
			a.walkExpr(n.Keys[i])
			a.walkExpr(n.Values[i])
		}
	case *ast.ExprString:
		for _, part := range n.Parts {
			if part.Expr != nil {
				a.walkExpr(part.Expr)
			}
		}
	case *ast.RegexMatch:
		a.walkExpr(n.Subject)
	case *ast.RegexSubst:
		a.walkExpr(n.Subject)
		a.walkExpr(n.Replacement)
	case *ast.Switch:
		a.analyzeSwitch(n)
		for _, c := range allCases(n) {
			if c.Guard != nil {
				a.walkExpr(c.Guard)
			}
			for _, g := range c.Guards {
				if g != nil {
					a.walkExpr(g)
				}
			}
			a.walkExpr(c.Result)
		}
	case *ast.InstanceOf:
		a.walkExpr(n.Value)
	case *ast.InvokeNew:
		for _, arg := range n.Args {
			a.walkExpr(arg)
		}
	case *ast.CheckCast:
		a.walkExpr(n.Value)
	case *ast.ArrayGet:
		a.walkExpr(n.Array)
		a.walkExpr(n.Index)
	case *ast.ArrayLength:
		a.walkExpr(n.Array)
	case *ast.VarAssign:
		a.walkExpr(n.Value)
	case *ast.FieldAssign:
		a.walkExpr(n.Receiver)
		a.walkExpr(n.Value)
	case *ast.Eval:
		a.walkExpr(n.Source)
		if n.Bindings != nil {
			a.walkExpr(n.Bindings)
		}
	}
}

func allCases(n *ast.Switch) []*ast.SwitchCase {
	all := append([]*ast.SwitchCase{}, n.Cases...)
	if n.Default != nil {
		all = append(all, n.Default)
	}
	return all
}

// tagSet is the analyser's working residual set: either "everything"
// (open, represented by nil) or an explicit finite set of tags plus,
// for TAG_INSTANCE, a set of excluded/included class names layered on
// top (kept simple: class-shaped residuals are tracked as a single
// bucket since Jactl has no sealed class hierarates to exhaustively
// enumerate, per spec §4.2's Open Question decision recorded in
// DESIGN.md).
type tagSet struct {
	open bool
	tags map[typesystem.Tag]bool
}

func universe() tagSet { return tagSet{open: true} }

func (s tagSet) isEmpty() bool {
	if s.open {
		return false
	}
	return len(s.tags) == 0
}

func (s tagSet) remove(t typesystem.Tag) tagSet {
	if s.open {
		return s // an open (def-typed) residual is never narrowed to closed by one type pattern
	}
	out := tagSet{tags: map[typesystem.Tag]bool{}}
	for k := range s.tags {
		if k != t {
			out.tags[k] = true
		}
	}
	return out
}

func (s tagSet) covers(t typesystem.Tag) bool {
	if s.open {
		return true
	}
	return s.tags[t]
}

// analyzeSwitch implements §4.2 steps 1-5: tag-set compatibility (I2),
// literal-duplication detection (with numeric-widening normalisation,
// property P2), top-down reachability via residual-set narrowing (I3),
// default-case placement/uniqueness, and the table-vs-sequential lowering
// decision recorded onto n.Strategy.
func (a *Analyzer) analyzeSwitch(n *ast.Switch) {
	subjectType := typesystem.Def()
	if n.Subject != nil {
		if t, ok := a.ctx.TypeMap[n.Subject]; ok && t != nil {
			subjectType = t
		}
	}

	residual := universe()
	if !typesystem.IsNumeric(subjectType) && subjectType.Tag() != typesystem.TAG_DEF {
		residual = tagSet{tags: map[typesystem.Tag]bool{subjectType.Tag(): true}}
	}

	seenLiterals := map[string]bool{}
	defaultSeen := false
	allTableable := true

	for _, c := range n.Cases {
		if residual.isEmpty() {
			a.err(c, diagnostics.ErrUnreachableCase)
		}
		// caseResidual tracks what this case's own alternation patterns
		// have already covered, so a later alternative in the SAME case
		// that is entirely subsumed by an earlier one in that case is
		// also flagged (spec negative scenario: `[x,y],[_,x] => x`, the
		// second alternative covered by the first).
		caseResidual := residual
		for i, pat := range c.Patterns {
			a.checkPatternCompat(pat, subjectType)
			if lit, ok := pat.(*ast.LiteralPattern); ok {
				key := normalizeLiteralKey(lit.Value)
				if key != "" {
					if seenLiterals[key] {
						a.err(pat, diagnostics.ErrDuplicateLiteral, literalDisplay(lit.Value))
					}
					seenLiterals[key] = true
				}
			} else {
				allTableable = false
			}
			if i > 0 && caseResidual.isEmpty() {
				a.err(pat, diagnostics.ErrUnreachableCase)
			}
			// A guarded case never absorbs subsequent cases (P5): the
			// guard may reject the match at runtime, so nothing is
			// removed from the residual even though the shape matched.
			if c.GuardFor(i) == nil {
				caseResidual = a.narrow(caseResidual, pat)
			}
		}
		residual = caseResidual
	}

	if n.Default != nil {
		if defaultSeen {
			a.err(n.Default, diagnostics.ErrMultipleDefault)
		}
		defaultSeen = true
		if residual.isEmpty() && !residual.open {
			a.err(n.Default, diagnostics.ErrDefaultNeverApplicable)
		}
	}

	if allTableable && len(n.Cases) > 0 {
		n.Strategy = ast.StrategyTableLookup
	} else {
		n.Strategy = ast.StrategySequential
	}
}

// narrow removes from residual whatever a pattern is guaranteed to match,
// so later cases see only what remains unhandled (§4.2 step 3).
func (a *Analyzer) narrow(residual tagSet, pat ast.Pattern) tagSet {
	switch p := pat.(type) {
	case *ast.LiteralPattern:
		return residual // a single literal never exhausts a whole tag
	case *ast.TypePattern:
		return residual.remove(p.Target.Tag())
	case *ast.WildcardPattern, *ast.IdentifierPattern:
		return tagSet{tags: map[typesystem.Tag]bool{}} // matches anything: residual becomes empty
	case *ast.ListPattern:
		// A structural list pattern only absorbs the LIST tag entirely
		// when every element is an unconstrained wildcard/binding (i.e.
		// it is shape-equivalent to a bare `List` type pattern); a
		// pattern with fixed literal/typed positions only covers lists
		// of that exact shape, so narrower residual tracking than
		// "remove the whole tag" would be needed to flag it as
		// reachability-absorbing, and the conservative choice is to
		// leave LIST in the residual (spec §9: "keep the residual
		// conservative" for anything not provably exhausted).
		if isUnconstrainedShape(p.Elements) {
			return residual.remove(typesystem.TAG_LIST)
		}
		return residual
	case *ast.MapPattern:
		if p.HasRest && len(p.Keys) == 0 {
			return residual.remove(typesystem.TAG_MAP)
		}
		return residual
	case *ast.RegexPattern:
		return residual // a regex only conditionally matches a string subset
	}
	return residual
}

// isUnconstrainedShape reports whether every element of a list pattern
// is a wildcard/identifier-binding (or a bare spread), meaning the
// pattern matches every list regardless of length or content.
func isUnconstrainedShape(elems []ast.Pattern) bool {
	for _, e := range elems {
		switch e.(type) {
		case *ast.WildcardPattern, *ast.IdentifierPattern, *ast.SpreadPattern:
		default:
			return false
		}
	}
	return true
}

// checkPatternCompat enforces I2: every pattern's tag set must intersect
// the subject's static type (unless the subject is `def`).
func (a *Analyzer) checkPatternCompat(pat ast.Pattern, subjectType typesystem.Type) {
	if subjectType.Tag() == typesystem.TAG_DEF {
		return
	}
	var patType typesystem.Type
	// A bare type pattern (`T`, no binding name) names only its own
	// type in source, so an incompatibility reads as "can never be T";
	// every other pattern kind compares two named types, so it reads as
	// "cannot compare type T to U" (spec §4.2 step 1 gives both forms
	// without pinning which applies where — this mirrors which types
	// the offending pattern actually spells out).
	bareType := false
	switch p := pat.(type) {
	case *ast.LiteralPattern:
		patType = literalPatternType(p.Value)
	case *ast.TypePattern:
		patType = p.Target
		bareType = p.Name == ""
	case *ast.ListPattern:
		patType = typesystem.ListAny
	case *ast.MapPattern:
		patType = typesystem.MapAny
	case *ast.RegexPattern:
		patType = typesystem.String
	default:
		return // wildcard/identifier/spread are compatible with anything
	}
	if !typesystem.Intersects(patType, subjectType) {
		if bareType {
			a.err(pat, diagnostics.ErrCanNeverBe, patType.String())
		} else {
			a.err(pat, diagnostics.ErrIncompatibleType, patType.String(), subjectType.String())
		}
	}
}

func literalPatternType(v interface{}) typesystem.Type {
	switch v.(type) {
	case int32:
		return typesystem.Int
	case int64:
		return typesystem.Long
	case float64:
		return typesystem.Double
	case string:
		return typesystem.String
	case bool:
		return typesystem.Boolean
	case nil:
		return typesystem.Null
	default:
		return typesystem.Decimal
	}
}

// normalizeLiteralKey implements P2 (1 == 1L == 1.0 == 1.00): numeric
// literals are compared by widened numeric value, not by tag, so that
// "1, 1L =>" is flagged as a duplicate rather than accepted as two
// distinct cases.
func normalizeLiteralKey(v interface{}) string {
	switch val := v.(type) {
	case int32:
		return numKey(float64(val))
	case int64:
		return numKey(float64(val))
	case float64:
		return numKey(val)
	case string:
		return "s:" + val
	case bool:
		if val {
			return "b:true"
		}
		return "b:false"
	case nil:
		return "null"
	default:
		return ""
	}
}

func numKey(f float64) string {
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
}

// literalDisplay renders a literal pattern's value for the duplicate-case
// diagnostic. A whole-number literal that falls in a plausible unix-epoch
// range is additionally annotated with its calendar reading (via
// go-strftime, the same formatter internal/values uses for Decimal
// stringification) since "1700000000, 1700000000L =>" is otherwise a
// duplicate report with no hint as to why someone wrote both forms.
func literalDisplay(v interface{}) string {
	switch val := v.(type) {
	case int32:
		return values.FormatLiteralWithEpochHint(strconv.FormatInt(int64(val), 10), int64(val))
	case int64:
		return values.FormatLiteralWithEpochHint(strconv.FormatInt(val, 10), val)
	case float64:
		s := strconv.FormatFloat(val, 'g', -1, 64)
		if val == float64(int64(val)) {
			return values.FormatLiteralWithEpochHint(s, int64(val))
		}
		return s
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
