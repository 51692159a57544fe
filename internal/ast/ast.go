// Package ast defines the expression/statement tree produced by the
// parser and annotated in place by the resolver and analyser.
//
// The shape is grounded on the teacher's ast package: a closed set of
// node structs, one `Accept(Visitor)` method per struct for double
// dispatch, and a single embedded location field. We generalize the
// teacher's per-node `Token token.Token` embed into a `Meta` struct that
// additionally carries the three annotations spec'd in §3: static type,
// isAsync, isResultUsed — since those are written by later passes
// (resolver, analyser) rather than known at parse time, Meta is a
// pointer-free value embedded by value so every node owns its own slot.
package ast

import (
	"github.com/jactl-lang/jactl/internal/token"
	"github.com/jactl-lang/jactl/internal/typesystem"
)

// Meta is embedded in every node. StaticType is nil until the resolver
// runs; typesystem.Def{} marks an intentionally dynamic (`def`) node.
type Meta struct {
	Pos          token.Pos
	StaticType   typesystem.Type
	IsAsync      bool
	IsResultUsed bool
}

func (m *Meta) GetMeta() *Meta { return m }

// Node is the base interface implemented by every AST struct.
type Node interface {
	Accept(v Visitor)
	GetMeta() *Meta
}

// Expression is a Node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// Statement is a Node executed for effect.
type Statement interface {
	Node
	statementNode()
}

// Pattern is a Node appearing inside a SwitchCase.
type Pattern interface {
	Node
	patternNode()
}

// Program is the root of every parsed script.
type Program struct {
	Meta
	Package    *ClassPath
	Statements []Statement
}

func (n *Program) Accept(v Visitor) { v.VisitProgram(n) }
