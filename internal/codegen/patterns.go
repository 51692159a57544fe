// Pattern-match compilation (spec §3.3/§4.3). Grounded on the teacher's
// compiler_patterns.go: compilePatternCheck/compileListPattern/
// compileRecordPattern/compileTypePattern, each leaving the matched
// subject on the stack and returning the list of "this pattern failed"
// jump instruction indices for the caller to thread/patch — the
// failJump-threading convention this file generalises across list
// patterns with a spread at any position, map patterns (the rest-marker
// generalisation of compileRecordPattern), and regex patterns (grounded
// on compileStringPattern's DUP/MATCH/bind-captures shape).
package codegen

import (
	"github.com/jactl-lang/jactl/internal/ast"
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/typesystem"
)

// compilePattern emits the check for one pattern against the value
// currently on top of the stack, leaving that value in place on success,
// and returns the jump indices to patch to the case's fail label.
// caseBindings tracks names already bound within the enclosing
// SwitchCase so a repeated identifier (invariant I1) compiles to an
// equality test against the first binding instead of a second slot.
func (c *Compiler) compilePattern(pat ast.Pattern, caseBindings map[string]int) []int {
	switch p := pat.(type) {
	case *ast.WildcardPattern:
		return nil

	case *ast.IdentifierPattern:
		return c.bindOrCompare(p.Name, caseBindings)

	case *ast.LiteralPattern:
		c.emit(Instr{Op: OP_DUP})
		c.emit(Instr{Op: OP_CONST, Val: literalToValue(p.Value)})
		c.emit(Instr{Op: OP_EQ})
		fail := c.emit(Instr{Op: OP_JUMP_IF_FALSE})
		return []int{fail}

	case *ast.TypePattern:
		c.emit(Instr{Op: OP_DUP})
		c.emit(Instr{Op: OP_CHECK_TAG, A: int(p.Target.Tag())})
		fails := []int{c.emit(Instr{Op: OP_JUMP_IF_FALSE})}
		if p.Name != "" {
			fails = append(fails, c.bindOrCompare(p.Name, caseBindings)...)
		}
		return fails

	case *ast.RegexPattern:
		c.emit(Instr{Op: OP_DUP})
		c.emit(Instr{Op: OP_MATCH_REGEX, Str: p.Source})
		fail := c.emit(Instr{Op: OP_JUMP_IF_FALSE})
		return []int{fail}

	case *ast.ListPattern:
		return c.compileListPattern(p, caseBindings)

	case *ast.MapPattern:
		return c.compileMapPattern(p, caseBindings)

	case *ast.SpreadPattern:
		// Only ever visited directly when a ListPattern/MapPattern hands
		// us the slice/rest-map value as the new stack top.
		if p.Inner == nil {
			return nil
		}
		return c.compilePattern(p.Inner, caseBindings)

	default:
		c.err(pat, diagnostics.ErrUnexpectedTok, "pattern", pat)
		return nil
	}
}

// bindOrCompare implements invariant I1: the first occurrence of a name
// within a case binds a fresh local; every subsequent occurrence becomes
// an equality test against the already-bound slot. OP_SET_LOCAL peeks
// rather than pops (mirroring the teacher's vm_exec.go OP_SET_LOCAL), so
// the binding case needs neither a DUP before nor a POP after: the
// matched value the caller handed us stays exactly where it was.
func (c *Compiler) bindOrCompare(name string, caseBindings map[string]int) []int {
	if slot, seen := caseBindings[name]; seen {
		c.emit(Instr{Op: OP_DUP})
		c.emit(Instr{Op: OP_GET_LOCAL, A: slot})
		c.emit(Instr{Op: OP_EQ})
		return []int{c.emit(Instr{Op: OP_JUMP_IF_FALSE})}
	}
	slot := c.defineLocal(name)
	c.emit(Instr{Op: OP_SET_LOCAL, A: slot})
	caseBindings[name] = slot
	return nil
}

// spreadIndex returns the index of the single SpreadPattern element, or
// -1 if the list pattern has none (spec §3: "possibly containing one `*`
// wildcard at any position").
func spreadIndex(elems []ast.Pattern) int {
	for i, e := range elems {
		if _, ok := e.(*ast.SpreadPattern); ok {
			return i
		}
	}
	return -1
}

// compileListPattern checks the tag and length, then extracts and
// recursively matches each fixed-position element: head elements by
// OP_GET_ELEM from the front, tail elements (after a spread) by
// OP_GET_TAIL_ELEM counted from the back, and the spread's own binding
// (if named) via OP_GET_SLICE. Each extracted element is matched with
// the subject copy still underneath, then popped so the original subject
// stays on top for the next sibling pattern, mirroring the teacher's
// compileListPattern push/match/pop per-element loop.
func (c *Compiler) compileListPattern(p *ast.ListPattern, caseBindings map[string]int) []int {
	var fails []int
	c.emit(Instr{Op: OP_DUP})
	fails = append(fails, c.emit(Instr{Op: OP_CHECK_TAG, A: int(typesystem.TAG_LIST)}))

	spread := spreadIndex(p.Elements)
	headCount := len(p.Elements)
	tailCount := 0
	if spread >= 0 {
		headCount = spread
		tailCount = len(p.Elements) - spread - 1
	}
	lenCheckMode := 0 // exact
	if spread >= 0 {
		lenCheckMode = 1 // at-least
	}
	c.emit(Instr{Op: OP_DUP})
	fails = append(fails, c.emit(Instr{Op: OP_CHECK_LEN, A: headCount + tailCount, B: lenCheckMode}))

	for i := 0; i < headCount; i++ {
		c.emit(Instr{Op: OP_DUP})
		c.emit(Instr{Op: OP_GET_ELEM, A: i})
		fails = append(fails, c.compilePattern(p.Elements[i], caseBindings)...)
		c.emit(Instr{Op: OP_POP})
	}

	if spread >= 0 {
		if sp := p.Elements[spread].(*ast.SpreadPattern); sp.Inner != nil {
			c.emit(Instr{Op: OP_DUP})
			c.emit(Instr{Op: OP_GET_SLICE, A: headCount, B: tailCount})
			fails = append(fails, c.compilePattern(sp.Inner, caseBindings)...)
			c.emit(Instr{Op: OP_POP})
		}
		for i := 0; i < tailCount; i++ {
			c.emit(Instr{Op: OP_DUP})
			c.emit(Instr{Op: OP_GET_TAIL_ELEM, A: tailCount - 1 - i})
			fails = append(fails, c.compilePattern(p.Elements[spread+1+i], caseBindings)...)
			c.emit(Instr{Op: OP_POP})
		}
	}
	return fails
}

// compileMapPattern is the rest-marker generalisation of the teacher's
// compileRecordPattern: every explicit key must be present and its value
// match; HasRest permits additional keys, its absence requires the map's
// size to equal len(Keys) exactly.
func (c *Compiler) compileMapPattern(p *ast.MapPattern, caseBindings map[string]int) []int {
	var fails []int
	c.emit(Instr{Op: OP_DUP})
	fails = append(fails, c.emit(Instr{Op: OP_CHECK_TAG, A: int(typesystem.TAG_MAP)}))

	if !p.HasRest {
		c.emit(Instr{Op: OP_DUP})
		fails = append(fails, c.emit(Instr{Op: OP_CHECK_MAPSIZE, A: len(p.Keys)}))
	}

	for i, key := range p.Keys {
		c.emit(Instr{Op: OP_DUP})
		fails = append(fails, c.emit(Instr{Op: OP_HAS_KEY, Str: key}))
		c.emit(Instr{Op: OP_DUP})
		c.emit(Instr{Op: OP_GET_MAPKEY, Str: key})
		fails = append(fails, c.compilePattern(p.Values[i], caseBindings)...)
		c.emit(Instr{Op: OP_POP})
	}
	return fails
}

// patchFails rewrites every jump index in fails to target the current
// end of the chunk (the case's shared fail label).
func (c *Compiler) patchFails(fails []int) {
	for _, at := range fails {
		c.chunk.patchJumpHere(at)
	}
}
