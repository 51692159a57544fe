// Package pipeline carries shared state between the tokeniser, parser,
// resolver, and analyser, the way the teacher's PipelineContext threads
// SourceCode/TokenStream/AstRoot/SymbolTable/TypeMap/Errors between
// stages. We add the host-registration tables and context options from
// spec §6.
package pipeline

import (
	"github.com/jactl-lang/jactl/internal/ast"
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/symbols"
	"github.com/jactl-lang/jactl/internal/typesystem"
)

// Options mirrors the context-options table from spec §6.
type Options struct {
	EvaluateConstExprs bool
	ReplMode           bool
	Debug              int
}

// FuncRegistration is a host-registered function or method (spec §6):
// name, parameter types with a per-param async marker, and whether the
// function itself may suspend.
type FuncRegistration struct {
	Name        string
	ParamTypes  []typesystem.Type
	ParamAsync  []bool
	IsAsync     bool
	Impl        interface{} // opaque host implementation reference
}

// ClassRegistration binds a host class under a Jactl type name with a
// selected method subset (spec §6, class-registration variant).
type ClassRegistration struct {
	JactlName string
	Methods   map[string]FuncRegistration
}

// Registry is the process-wide (but per-Context, never ambient-global —
// design note §9) table of registered functions and classes.
type Registry struct {
	Functions map[string]FuncRegistration
	Classes   map[string]ClassRegistration
}

func NewRegistry() *Registry {
	return &Registry{
		Functions: make(map[string]FuncRegistration),
		Classes:   make(map[string]ClassRegistration),
	}
}

func (r *Registry) RegisterFunction(f FuncRegistration) { r.Functions[f.Name] = f }
func (r *Registry) DeregisterFunction(name string)       { delete(r.Functions, name) }
func (r *Registry) RegisterClass(c ClassRegistration)    { r.Classes[c.JactlName] = c }
func (r *Registry) DeregisterClass(name string)          { delete(r.Classes, name) }

// LookupAsync reports whether a registered function is async (used by
// the resolver's isAsync rule, SPEC_FULL §3.1).
func (r *Registry) LookupAsync(name string) (async bool, found bool) {
	f, ok := r.Functions[name]
	if !ok {
		return false, false
	}
	return f.IsAsync, true
}

// Context is the compilation context threaded through every stage —
// equivalent to the teacher's PipelineContext, extended with the
// registration tables and options a host supplies (spec §6).
type Context struct {
	SourceCode string
	FilePath   string

	AstRoot     *ast.Program
	Symbols     *symbols.Table
	TypeMap     map[ast.Node]typesystem.Type
	AsyncMap    map[ast.Node]bool
	ResultUsed  map[ast.Node]bool

	Errors   []*diagnostics.CompileError
	Registry *Registry
	Options  Options

	// Globals persists across scripts in REPL mode (§4.1 "top-level
	// variable declarations are treated as globals and survive").
	Globals *symbols.Table
}

func NewContext(source, file string, opts Options) *Context {
	return &Context{
		SourceCode: source,
		FilePath:   file,
		Symbols:    symbols.NewRoot(),
		TypeMap:    make(map[ast.Node]typesystem.Type),
		AsyncMap:   make(map[ast.Node]bool),
		ResultUsed: make(map[ast.Node]bool),
		Registry:   NewRegistry(),
		Options:    opts,
		Globals:    symbols.NewRoot(),
	}
}

func (c *Context) AddError(e *diagnostics.CompileError) {
	c.Errors = append(c.Errors, e)
}

func (c *Context) HasErrors() bool { return len(c.Errors) > 0 }
