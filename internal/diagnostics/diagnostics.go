// Package diagnostics implements the three non-control-flow error kinds
// from spec §7: compile errors, runtime errors, and the internal
// "should never happen" cases. Grounded directly on the teacher's
// diagnostics package: a Phase enum, an ErrorCode enum with a
// format-string table, and two error types: *CompileError carrying
// {Code, Phase, Tok, File, Args} and *RuntimeError carrying
// {Code, Tok, File, Args}.
//
// NullSignal (safe-navigation) and SuspendSignal (continuation raise)
// are deliberately NOT CompileError/RuntimeError values — spec §7 and the design
// note in §9 require the continuation control-flow channel to never mix
// with the user error channel. Those two live in internal/continuation.
package diagnostics

import (
	"fmt"

	"github.com/jactl-lang/jactl/internal/token"
)

// Phase identifies which pipeline stage raised the diagnostic.
type Phase string

const (
	PhaseLexer    Phase = "lexer"
	PhaseParser   Phase = "parser"
	PhaseResolver Phase = "resolver"
	PhaseAnalyzer Phase = "analyzer"
	PhaseCodegen  Phase = "codegen"
	PhaseRuntime  Phase = "runtime"
)

// Kind distinguishes a compile-time diagnostic from a runtime error
// (spec §7's two recovered-by-the-host categories).
type Kind string

const (
	KindCompile Kind = "compile"
	KindRuntime Kind = "runtime"
)

type ErrorCode string

const (
	// Lexer/parser
	ErrIllegalChar   ErrorCode = "L001"
	ErrUnexpectedTok ErrorCode = "P001"

	// Resolver
	ErrUndefinedVar       ErrorCode = "R001"
	ErrBindingShadows     ErrorCode = "R002"
	ErrReplUndefinedDefer ErrorCode = "R003"

	// Pattern analyser (§4.2, §8 negative scenarios)
	ErrIncompatibleType       ErrorCode = "A001" // "cannot compare type X to Y"
	ErrCanNeverBe             ErrorCode = "A002" // "can never be X"
	ErrDuplicateLiteral       ErrorCode = "A003" // "literal match occurs multiple times"
	ErrUnreachableCase        ErrorCode = "A004" // "unreachable switch case" / "covered by previous"
	ErrDefaultNeverApplicable ErrorCode = "A005" // "default case is never applicable"
	ErrMultipleDefault        ErrorCode = "A006" // "cannot have multiple 'default'"
	ErrBindingTypeIncompatible ErrorCode = "A007" // "type of binding variable not compatible"
	ErrRegexSubjectNotString  ErrorCode = "A008"

	// Runtime
	ErrBadCast               ErrorCode = "E001"
	ErrNoRegexMatch          ErrorCode = "E002"
	ErrDivisionByZero        ErrorCode = "E003"
	ErrInvalidContinuationLoc ErrorCode = "E004" // "Internal error: Invalid location in continuation"
	ErrUserDie               ErrorCode = "E005"
)

var templates = map[ErrorCode]string{
	ErrIllegalChar:            "invalid character: %q",
	ErrUnexpectedTok:          "unexpected token: expected %s, got %s",
	ErrUndefinedVar:           "undefined variable: %s",
	ErrBindingShadows:         "binding variable %s shadows another variable",
	ErrReplUndefinedDefer:     "undefined reference to %s (deferred: repl mode)",
	ErrIncompatibleType:       "cannot compare type %s to %s",
	ErrCanNeverBe:             "can never be %s",
	ErrDuplicateLiteral:       "literal match occurs multiple times: %s",
	ErrUnreachableCase:        "unreachable switch case: covered by previous",
	ErrDefaultNeverApplicable: "default case is never applicable",
	ErrMultipleDefault:        "cannot have multiple 'default' cases",
	ErrBindingTypeIncompatible: "type of binding variable %s not compatible with %s",
	ErrRegexSubjectNotString:  "regex pattern subject must be string-shaped, got %s",
	ErrBadCast:                "cannot cast %s to %s",
	ErrNoRegexMatch:           "no match for regex %s",
	ErrDivisionByZero:         "division by zero",
	ErrInvalidContinuationLoc: "Internal error: Invalid location in continuation",
	ErrUserDie:                "%s",
}

// CompileError is returned by the lexer/parser/resolver/analyser. Never
// recovered inside the core (spec §7).
type CompileError struct {
	Code  ErrorCode
	Phase Phase
	Tok   token.Token
	File  string
	Args  []interface{}
}

func (e *CompileError) Error() string {
	return format(e.Code, e.Phase, e.Tok, e.File, e.Args)
}

// RuntimeError is surfaced at the nearest script boundary and delivered
// to the host's result handler (spec §7).
type RuntimeError struct {
	Code  ErrorCode
	Tok   token.Token
	File  string
	Args  []interface{}
}

func (e *RuntimeError) Error() string {
	return format(e.Code, PhaseRuntime, e.Tok, e.File, e.Args)
}

func format(code ErrorCode, phase Phase, tok token.Token, file string, args []interface{}) string {
	tmpl, ok := templates[code]
	if !ok {
		return fmt.Sprintf("unknown diagnostic code: %s", code)
	}
	msg := fmt.Sprintf(tmpl, args...)
	prefix := ""
	if file != "" {
		prefix = file + ": "
	}
	if tok.Pos.Line > 0 {
		return fmt.Sprintf("%s[%s] %d:%d: %s (%s)", prefix, phase, tok.Pos.Line, tok.Pos.Column, msg, code)
	}
	return fmt.Sprintf("%s[%s] %s (%s)", prefix, phase, msg, code)
}

// NewCompileError builds a CompileError at the given phase/token.
func NewCompileError(phase Phase, code ErrorCode, tok token.Token, args ...interface{}) *CompileError {
	return &CompileError{Code: code, Phase: phase, Tok: tok, Args: args}
}

// NewRuntimeError builds a RuntimeError at the given token (captured at
// the nearest statement, per spec §7).
func NewRuntimeError(code ErrorCode, tok token.Token, args ...interface{}) *RuntimeError {
	return &RuntimeError{Code: code, Tok: tok, Args: args}
}

// InternalError marks an "should never happen" invariant violation
// (e.g. I4/I5 breakage) surfaced as a RuntimeError per spec §4.4's
// location-space invariant.
func InternalError(tok token.Token, code ErrorCode, args ...interface{}) *RuntimeError {
	return NewRuntimeError(code, tok, args...)
}
