package ast

import "github.com/jactl-lang/jactl/internal/typesystem"

func (*VarDecl) statementNode()   {}
func (*Block) statementNode()     {}
func (*If) statementNode()        {}
func (*While) statementNode()     {}
func (*Return) statementNode()    {}
func (*FunDecl) statementNode()   {}
func (*ClassDecl) statementNode() {}
func (*Print) statementNode()     {}
func (*Die) statementNode()       {}
func (*ExprStmt) statementNode()  {}

// VarDecl declares a local or global variable. Type == typesystem.Def()
// means `def` (dynamic); any other type is the declared static type.
type VarDecl struct {
	Meta
	Name       string
	Type       typesystem.Type
	Init       Expression // nil if uninitialised
	IsGlobal   bool       // true in REPL mode top-level declarations (§4.1)
}

func (n *VarDecl) Accept(v Visitor) { v.VisitVarDecl(n) }

// Block is `{ stmt; stmt; ... }`.
type Block struct {
	Meta
	Statements []Statement
}

func (n *Block) Accept(v Visitor) { v.VisitBlock(n) }

// If is `if (cond) then [else else_]`.
type If struct {
	Meta
	Cond Expression
	Then Statement
	Else Statement // nil if no else branch
}

func (n *If) Accept(v Visitor) { v.VisitIf(n) }

// While is `while (cond) body`.
type While struct {
	Meta
	Cond Expression
	Body Statement
}

func (n *While) Accept(v Visitor) { v.VisitWhile(n) }

// Return is `return [value]`.
type Return struct {
	Meta
	Value Expression // nil for bare `return`
}

func (n *Return) Accept(v Visitor) { v.VisitReturn(n) }

// FunDecl is a named function/method declaration. IsAsync is filled in
// by the resolver's transitive-async coloring pass (§4.1, SPEC_FULL §3.1).
type FunDecl struct {
	Meta
	Name       string
	Params     []Param
	ReturnType typesystem.Type
	Body       *Block
	FnIsAsync  bool
	// SuspensionPoints is the size K of the dense 0..K-1 location space of
	// async calls inside this function (§4.4). No pass sets it; the code
	// generator keeps the locations in codegen.Function.ResumeOffsets.
	SuspensionPoints int
}

func (n *FunDecl) Accept(v Visitor) { v.VisitFunDecl(n) }

// ClassDecl declares a class: fields, methods, optional superclass.
type ClassDecl struct {
	Meta
	Name       string
	Super      string // "" if no superclass
	Fields     []*VarDecl
	Methods    []*FunDecl
	Init       *FunDecl // constructor, nil if implicit
}

func (n *ClassDecl) Accept(v Visitor) { v.VisitClassDecl(n) }

// Print is the `print`/`println` builtin statement form.
type Print struct {
	Meta
	Value   Expression
	Newline bool
}

func (n *Print) Accept(v Visitor) { v.VisitPrint(n) }

// Die raises a runtime error with a message expression.
type Die struct {
	Meta
	Message Expression
}

func (n *Die) Accept(v Visitor) { v.VisitDie(n) }

// ExprStmt wraps an expression used as a statement (its value discarded
// unless it is the final statement of a function/script, in which case
// IsResultUsed is set by the resolver).
type ExprStmt struct {
	Meta
	Expr Expression
}

func (n *ExprStmt) Accept(v Visitor) { v.VisitExprStmt(n) }
