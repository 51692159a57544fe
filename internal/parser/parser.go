// Package parser implements a recursive-descent parser over the lexer's
// token stream, grounded on the teacher's hand-written internal/parser
// (single-token lookahead, one method per grammar production, Pratt-style
// precedence climbing for binary operators). It produces the closed
// internal/ast tree consumed by the resolver/analyser/decorator/codegen
// passes.
package parser

import (
	"strconv"

	"github.com/jactl-lang/jactl/internal/ast"
	"github.com/jactl-lang/jactl/internal/diagnostics"
	"github.com/jactl-lang/jactl/internal/lexer"
	"github.com/jactl-lang/jactl/internal/token"
	"github.com/jactl-lang/jactl/internal/typesystem"
)

type Parser struct {
	lex  *lexer.Lexer
	file string

	cur     token.Token
	next    token.Token
	curMark lexer.Mark // scanner position at the start of cur
	nextMark lexer.Mark // scanner position at the start of next

	errors []*diagnostics.CompileError
}

func New(src, file string) *Parser {
	p := &Parser{lex: lexer.New(src, file), file: file}
	p.curMark = p.lex.Mark()
	p.cur = p.lex.NextToken()
	p.nextMark = p.lex.Mark()
	p.next = p.lex.NextToken()
	return p
}

func (p *Parser) Errors() []*diagnostics.CompileError { return p.errors }

func (p *Parser) advance() {
	p.cur = p.next
	p.curMark = p.nextMark
	p.nextMark = p.lex.Mark()
	p.next = p.lex.NextToken()
}

// readRegexAtCur rewinds the scanner to where `cur` began and rescans that
// span as a regex literal, then resynchronises the two-token lookahead
// buffer from the scanner's new (post-regex) position. Grammar positions
// that expect a regex (switch patterns, `=~`/`=~s`) call this instead of
// advance() for the token that starts the regex.
func (p *Parser) readRegexAtCur() token.Token {
	p.lex.Reset(p.curMark)
	tok := p.lex.PeekRegex()
	p.curMark = p.lex.Mark()
	p.cur = p.lex.NextToken()
	p.nextMark = p.lex.Mark()
	p.next = p.lex.NextToken()
	return tok
}

func (p *Parser) at(k token.Kind) bool     { return p.cur.Kind == k }
func (p *Parser) nextAt(k token.Kind) bool { return p.next.Kind == k }

func (p *Parser) expect(k token.Kind, what string) token.Token {
	if !p.at(k) {
		p.errorf(diagnostics.ErrUnexpectedTok, what, p.cur.Lexeme)
		return p.cur
	}
	tok := p.cur
	p.advance()
	return tok
}

func (p *Parser) errorf(code diagnostics.ErrorCode, args ...interface{}) {
	p.errors = append(p.errors, diagnostics.NewCompileError(diagnostics.PhaseParser, code, p.cur, args...))
}

func meta(tok token.Token) ast.Meta { return ast.Meta{Pos: tok.Pos} }

// Parse consumes the whole token stream and returns the Program root.
func Parse(src, file string) (*ast.Program, []*diagnostics.CompileError) {
	p := New(src, file)
	prog := &ast.Program{Meta: meta(p.cur)}
	if p.at(token.PACKAGE) {
		prog.Package = p.parseClassPath()
	}
	for !p.at(token.EOF) {
		prog.Statements = append(prog.Statements, p.parseStatement())
	}
	return prog, p.errors
}

func (p *Parser) parseClassPath() *ast.ClassPath {
	tok := p.cur
	p.advance() // 'package' or 'import'
	cp := &ast.ClassPath{Meta: meta(tok)}
	cp.Segments = append(cp.Segments, p.expect(token.IDENT, "identifier").Lexeme)
	for p.at(token.DOT) {
		p.advance()
		cp.Segments = append(cp.Segments, p.cur.Lexeme)
		p.advance()
	}
	if p.at(token.SEMI) {
		p.advance()
	}
	return cp
}

// --- Statements ---------------------------------------------------------

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Kind {
	case token.LBRACE:
		return p.parseBlock()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.RETURN:
		return p.parseReturn()
	case token.DEF, token.VAR:
		return p.parseVarOrFunDecl()
	case token.CLASS:
		return p.parseClassDecl()
	case token.PRINT:
		return p.parsePrint()
	case token.DIE:
		return p.parseDie()
	case token.IDENT, token.UPPER_IDENT:
		if p.nextAt(token.IDENT) {
			return p.parseVarOrFunDecl()
		}
		fallthrough
	default:
		expr := p.parseExpr()
		p.consumeSemi()
		return &ast.ExprStmt{Meta: ast.Meta{Pos: expr.GetMeta().Pos}, Expr: expr}
	}
}

func (p *Parser) consumeSemi() {
	for p.at(token.SEMI) {
		p.advance()
	}
}

func (p *Parser) parseBlock() *ast.Block {
	tok := p.expect(token.LBRACE, "'{'")
	b := &ast.Block{Meta: meta(tok)}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		b.Statements = append(b.Statements, p.parseStatement())
	}
	p.expect(token.RBRACE, "'}'")
	return b
}

func (p *Parser) parseIf() ast.Statement {
	tok := p.cur
	p.advance()
	p.expect(token.LPAREN, "'('")
	cond := p.parseExpr()
	p.expect(token.RPAREN, "')'")
	then := p.parseStatement()
	n := &ast.If{Meta: meta(tok), Cond: cond, Then: then}
	if p.at(token.ELSE) {
		p.advance()
		n.Else = p.parseStatement()
	}
	return n
}

func (p *Parser) parseWhile() ast.Statement {
	tok := p.cur
	p.advance()
	p.expect(token.LPAREN, "'('")
	cond := p.parseExpr()
	p.expect(token.RPAREN, "')'")
	body := p.parseStatement()
	return &ast.While{Meta: meta(tok), Cond: cond, Body: body}
}

func (p *Parser) parseReturn() ast.Statement {
	tok := p.cur
	p.advance()
	n := &ast.Return{Meta: meta(tok)}
	if !p.at(token.SEMI) && !p.at(token.RBRACE) {
		n.Value = p.parseExpr()
	}
	p.consumeSemi()
	return n
}

// parseTypeRef parses a type name (UPPER_IDENT, a primitive keyword, or
// `def`) optionally followed by `[]` for an array type.
func (p *Parser) parseTypeRef() typesystem.Type {
	var t typesystem.Type
	switch p.cur.Kind {
	case token.DEF:
		t = typesystem.Def()
		p.advance()
	case token.UPPER_IDENT:
		name := p.cur.Lexeme
		p.advance()
		t = primForName(name)
	case token.IDENT:
		t = primForName(p.cur.Lexeme)
		p.advance()
	default:
		t = typesystem.Def()
	}
	for p.at(token.LBRACKET) && p.nextAt(token.RBRACKET) {
		p.advance()
		p.advance()
		t = typesystem.ArrayOf{Elem: t}
	}
	return t
}

// isLowerPrimTypeName reports whether name is one of the lowercase
// primitive type keywords (int/long/double/boolean) — the lexer does not
// reserve these as keywords (they're plain IDENT tokens, as in
// parseTypeRef's token.IDENT case), so a pattern parser must recognise
// them itself to tell `int x` (a type pattern) from a bare binding name.
func isLowerPrimTypeName(name string) bool {
	switch name {
	case "int", "long", "double", "boolean":
		return true
	default:
		return false
	}
}

func primForName(name string) typesystem.Type {
	switch name {
	case "int":
		return typesystem.Int
	case "long":
		return typesystem.Long
	case "double":
		return typesystem.Double
	case "Decimal":
		return typesystem.Decimal
	case "String":
		return typesystem.String
	case "boolean":
		return typesystem.Boolean
	case "Map":
		return typesystem.MapAny
	case "List":
		return typesystem.ListAny
	default:
		return typesystem.Instance{ClassName: name}
	}
}

// parseVarOrFunDecl parses the shared `type name` prefix common to
// variable and function declarations, then dispatches on whether a
// parameter list follows — the only point at which the two forms
// diverge, given the grammar's single-token lookahead (design note §9).
func (p *Parser) parseVarOrFunDecl() ast.Statement {
	tok := p.cur
	var declType typesystem.Type
	switch {
	case p.at(token.DEF):
		p.advance()
		declType = typesystem.Def()
	case p.at(token.VAR):
		p.advance()
		declType = nil // inferred from Init at resolve time
	default:
		declType = p.parseTypeRef()
	}
	name := p.expect(token.IDENT, "identifier").Lexeme

	if p.at(token.LPAREN) {
		params := p.parseParamList()
		body := p.parseBlock()
		retType := declType
		if retType == nil {
			retType = typesystem.Def()
		}
		return &ast.FunDecl{Meta: meta(tok), Name: name, Params: params, ReturnType: retType, Body: body}
	}

	n := &ast.VarDecl{Meta: meta(tok), Name: name, Type: declType}
	if p.at(token.ASSIGN) {
		p.advance()
		n.Init = p.parseExpr()
	}
	p.consumeSemi()
	return n
}

// parseVarDecl parses a bare variable declaration (no function form) —
// used for class fields, where a parameter list can never legally follow
// the name.
func (p *Parser) parseVarDecl() *ast.VarDecl {
	tok := p.cur
	var declType typesystem.Type
	switch {
	case p.at(token.DEF):
		p.advance()
		declType = typesystem.Def()
	case p.at(token.VAR):
		p.advance()
		declType = nil
	default:
		declType = p.parseTypeRef()
	}
	name := p.expect(token.IDENT, "identifier").Lexeme
	n := &ast.VarDecl{Meta: meta(tok), Name: name, Type: declType}
	if p.at(token.ASSIGN) {
		p.advance()
		n.Init = p.parseExpr()
	}
	return n
}

func (p *Parser) parseParamList() []ast.Param {
	p.expect(token.LPAREN, "'('")
	var params []ast.Param
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		t := typesystem.Type(typesystem.Def())
		if !p.nextAt(token.COMMA) && !p.nextAt(token.RPAREN) && !p.nextAt(token.ASSIGN) {
			t = p.parseTypeRef()
		}
		name := p.expect(token.IDENT, "parameter name").Lexeme
		param := ast.Param{Name: name, Type: t}
		if p.at(token.ASSIGN) {
			p.advance()
			param.DefaultValue = p.parseExpr()
		}
		params = append(params, param)
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN, "')'")
	return params
}

func (p *Parser) parseClassDecl() ast.Statement {
	tok := p.cur
	p.advance()
	name := p.expect(token.UPPER_IDENT, "class name").Lexeme
	n := &ast.ClassDecl{Meta: meta(tok), Name: name}
	if p.at(token.EXTENDS) {
		p.advance()
		n.Super = p.expect(token.UPPER_IDENT, "superclass name").Lexeme
	}
	p.expect(token.LBRACE, "'{'")
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		if p.cur.Lexeme == name && p.at(token.UPPER_IDENT) && p.nextAt(token.LPAREN) {
			n.Init = p.parseConstructor(name)
			continue
		}
		switch member := p.parseVarOrFunDecl().(type) {
		case *ast.FunDecl:
			n.Methods = append(n.Methods, member)
		case *ast.VarDecl:
			n.Fields = append(n.Fields, member)
		}
	}
	p.expect(token.RBRACE, "'}'")
	return n
}

func (p *Parser) parseConstructor(name string) *ast.FunDecl {
	tok := p.cur
	p.advance() // class-name-as-constructor token
	params := p.parseParamList()
	body := p.parseBlock()
	return &ast.FunDecl{Meta: meta(tok), Name: name, Params: params, ReturnType: typesystem.Null, Body: body}
}

func (p *Parser) parsePrint() ast.Statement {
	tok := p.cur
	newline := p.cur.Lexeme == "println"
	p.advance()
	n := &ast.Print{Meta: meta(tok), Newline: newline}
	if !p.at(token.SEMI) && !p.at(token.RBRACE) {
		n.Value = p.parseExpr()
	}
	p.consumeSemi()
	return n
}

func (p *Parser) parseDie() ast.Statement {
	tok := p.cur
	p.advance()
	n := &ast.Die{Meta: meta(tok), Message: p.parseExpr()}
	p.consumeSemi()
	return n
}

// --- Expressions: precedence climbing -----------------------------------
//
// Lowest to highest: assignment > ternary > || > && > equality >
// relational > additive > multiplicative > power > unary > postfix > primary.

func (p *Parser) parseExpr() ast.Expression { return p.parseAssign() }

func (p *Parser) parseAssign() ast.Expression {
	left := p.parseTernary()
	switch p.cur.Kind {
	case token.ASSIGN, token.PLUS_EQ, token.MINUS_EQ:
		op := p.cur.Kind
		tok := p.cur
		p.advance()
		value := p.parseAssign()
		if ident, ok := left.(*ast.Identifier); ok {
			return &ast.VarAssign{Meta: meta(tok), Target: ident, Op: op, Value: value}
		}
		if mc, ok := left.(*ast.MethodCall); ok && len(mc.Args) == 0 {
			return &ast.FieldAssign{Meta: meta(tok), Receiver: mc.Receiver, Field: mc.Method, Value: value}
		}
		p.errorf(diagnostics.ErrUnexpectedTok, "assignable target", "expression")
		return left
	}
	return left
}

func (p *Parser) parseTernary() ast.Expression {
	cond := p.parseOrOr()
	if p.at(token.QUESTION) {
		tok := p.cur
		p.advance()
		then := p.parseExpr()
		p.expect(token.COLON, "':'")
		els := p.parseExpr()
		return &ast.Ternary{Meta: meta(tok), Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *Parser) parseOrOr() ast.Expression {
	left := p.parseAndAnd()
	for p.at(token.OR_OR) {
		tok := p.cur
		p.advance()
		right := p.parseAndAnd()
		left = &ast.Binary{Meta: meta(tok), Left: left, Op: token.OR_OR, Right: right}
	}
	return left
}

func (p *Parser) parseAndAnd() ast.Expression {
	left := p.parseEquality()
	for p.at(token.AND_AND) {
		tok := p.cur
		p.advance()
		right := p.parseEquality()
		left = &ast.Binary{Meta: meta(tok), Left: left, Op: token.AND_AND, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expression {
	left := p.parseRegexOp()
	for p.at(token.EQ) || p.at(token.NE) {
		tok := p.cur
		op := p.cur.Kind
		p.advance()
		right := p.parseRegexOp()
		left = &ast.Binary{Meta: meta(tok), Left: left, Op: op, Right: right}
	}
	return left
}

// parseRegexOp handles `subject =~ /pattern/flags` and the substitution
// form `subject =~ s/pattern/replacement/flags`, between equality and
// relational precedence (grounded on the teacher's own regex-match level).
func (p *Parser) parseRegexOp() ast.Expression {
	left := p.parseRelational()
	if p.at(token.MATCH_OP) {
		tok := p.cur
		p.advance()
		if p.at(token.IDENT) && p.cur.Lexeme == "s" {
			p.advance()
			regexTok := p.readRegexAtCur()
			pattern, flags := splitRegexLexeme(regexTok.Lexeme)
			repl := p.parsePrimary()
			return &ast.RegexSubst{Meta: meta(tok), Subject: left, Pattern: pattern, Replacement: repl, Flags: flags}
		}
		regexTok := p.readRegexAtCur()
		pattern, flags := splitRegexLexeme(regexTok.Lexeme)
		return &ast.RegexMatch{Meta: meta(tok), Subject: left, Pattern: pattern, Flags: flags}
	}
	return left
}

func splitRegexLexeme(lexeme string) (pattern, flags string) {
	if len(lexeme) < 2 {
		return lexeme, ""
	}
	end := len(lexeme) - 1
	for end > 0 && lexeme[end] != '/' {
		end--
	}
	return lexeme[1:end], lexeme[end+1:]
}

func (p *Parser) parseRelational() ast.Expression {
	left := p.parseAdditive()
	for p.at(token.LT) || p.at(token.LE) || p.at(token.GT) || p.at(token.GE) || p.at(token.INSTANCEOF) {
		tok := p.cur
		if p.at(token.INSTANCEOF) {
			p.advance()
			target := p.parseTypeRef()
			left = &ast.InstanceOf{Meta: meta(tok), Value: left, Target: target}
			continue
		}
		op := p.cur.Kind
		p.advance()
		right := p.parseAdditive()
		left = &ast.Binary{Meta: meta(tok), Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.at(token.PLUS) || p.at(token.MINUS) {
		tok := p.cur
		op := p.cur.Kind
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.Binary{Meta: meta(tok), Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parsePower()
	for p.at(token.STAR) || p.at(token.SLASH) || p.at(token.PERCENT) {
		tok := p.cur
		op := p.cur.Kind
		p.advance()
		right := p.parsePower()
		left = &ast.Binary{Meta: meta(tok), Left: left, Op: op, Right: right}
	}
	return left
}

func (p *Parser) parsePower() ast.Expression {
	left := p.parseUnary()
	if p.at(token.STAR_STAR) {
		tok := p.cur
		p.advance()
		right := p.parsePower() // right-associative
		return &ast.Binary{Meta: meta(tok), Left: left, Op: token.STAR_STAR, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.at(token.BANG) || p.at(token.MINUS) || p.at(token.TILDE) {
		tok := p.cur
		op := p.cur.Kind
		p.advance()
		operand := p.parseUnary()
		return &ast.Unary{Meta: meta(tok), Op: op, Operand: operand}
	}
	if p.at(token.LPAREN) && p.isCastAhead() {
		tok := p.cur
		p.advance()
		target := p.parseTypeRef()
		p.expect(token.RPAREN, "')'")
		value := p.parseUnary()
		return &ast.Cast{Meta: meta(tok), Target: target, Value: value}
	}
	return p.parsePostfix()
}

// isCastAhead would disambiguate `(Type) expr` from a parenthesised
// expression with further lookahead; with the single extra token of
// lookahead this lexer provides we leave explicit casts to the `(Type)
// expr` form unsupported in favour of the unambiguous parenthesised
// primary path, and rely on `as`-style checked casts elsewhere (CheckCast
// is inserted by the resolver, not parsed directly).
func (p *Parser) isCastAhead() bool { return false }

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()
	for {
		switch {
		case p.at(token.DOT) || p.at(token.QDOT):
			safe := p.at(token.QDOT)
			p.advance()
			method := p.expect(token.IDENT, "member name").Lexeme
			if p.at(token.LPAREN) {
				args, named := p.parseArgList()
				expr = &ast.MethodCall{Meta: meta(p.cur), Receiver: expr, Method: method, Args: args, Safe: safe}
				_ = named
			} else if method == "length" {
				expr = &ast.ArrayLength{Meta: meta(p.cur), Array: expr}
			} else {
				expr = &ast.MethodCall{Meta: meta(p.cur), Receiver: expr, Method: method, Safe: safe}
			}
		case p.at(token.LBRACKET):
			tok := p.cur
			p.advance()
			idx := p.parseExpr()
			p.expect(token.RBRACKET, "']'")
			expr = &ast.ArrayGet{Meta: meta(tok), Array: expr, Index: idx}
		case p.at(token.LPAREN):
			if ident, ok := expr.(*ast.Identifier); ok {
				args, named := p.parseArgList()
				expr = &ast.Call{Meta: meta(p.cur), Callee: ident, Args: args, Named: named}
			} else {
				return expr
			}
		default:
			return expr
		}
	}
}

func (p *Parser) parseArgList() ([]ast.Expression, map[string]ast.Expression) {
	p.expect(token.LPAREN, "'('")
	var args []ast.Expression
	var named map[string]ast.Expression
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		if p.at(token.IDENT) && p.nextAt(token.COLON) {
			name := p.cur.Lexeme
			p.advance()
			p.advance()
			if named == nil {
				named = make(map[string]ast.Expression)
			}
			named[name] = p.parseExpr()
		} else {
			args = append(args, p.parseExpr())
		}
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN, "')'")
	return args, named
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.cur
	switch tok.Kind {
	case token.INT_LIT:
		p.advance()
		v, _ := strconv.ParseInt(tok.Lexeme, 10, 32)
		return &ast.Literal{Meta: meta(tok), Value: int32(v)}
	case token.LONG_LIT:
		p.advance()
		v, _ := strconv.ParseInt(tok.Lexeme, 10, 64)
		return &ast.Literal{Meta: meta(tok), Value: v}
	case token.DOUBLE_LIT:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Lexeme, 64)
		return &ast.Literal{Meta: meta(tok), Value: v}
	case token.DECIMAL_LIT:
		p.advance()
		return &ast.Literal{Meta: meta(tok), Value: tok.Lexeme} // decimal kept lexically; values.Decimal parses it
	case token.STRING_LIT:
		p.advance()
		return p.buildExprString(tok)
	case token.NULL:
		p.advance()
		return &ast.Literal{Meta: meta(tok), Value: nil}
	case token.TRUE:
		p.advance()
		return &ast.Literal{Meta: meta(tok), Value: true}
	case token.FALSE:
		p.advance()
		return &ast.Literal{Meta: meta(tok), Value: false}
	case token.SPECIAL_VAR:
		p.advance()
		return &ast.SpecialVar{Meta: meta(tok), Name: tok.Lexeme}
	case token.IT:
		p.advance()
		return &ast.SpecialVar{Meta: meta(tok), Name: "it"}
	case token.THIS:
		p.advance()
		return &ast.SpecialVar{Meta: meta(tok), Name: "this"}
	case token.IDENT:
		p.advance()
		return &ast.Identifier{Meta: meta(tok), Name: tok.Lexeme}
	case token.UPPER_IDENT:
		p.advance()
		return &ast.Identifier{Meta: meta(tok), Name: tok.Lexeme}
	case token.LPAREN:
		p.advance()
		expr := p.parseExpr()
		p.expect(token.RPAREN, "')'")
		return expr
	case token.LBRACE:
		return p.parseClosure()
	case token.LBRACKET:
		return p.parseListOrMapLiteral()
	case token.NEW:
		return p.parseNew()
	case token.SWITCH:
		return p.parseSwitch()
	case token.EVAL:
		return p.parseEval()
	case token.SLEEP:
		p.advance()
		p.expect(token.LPAREN, "'('")
		args, _ := p.parseArgListTail()
		return &ast.Call{Meta: meta(tok), Callee: &ast.Identifier{Meta: meta(tok), Name: "sleep"}, Args: args}
	default:
		p.errorf(diagnostics.ErrUnexpectedTok, "expression", tok.Lexeme)
		p.advance()
		return &ast.Noop{Meta: meta(tok)}
	}
}

// parseArgListTail consumes comma-separated expressions up to the closing
// ')' which has NOT yet been consumed by the caller's opening `(`.
func (p *Parser) parseArgListTail() ([]ast.Expression, map[string]ast.Expression) {
	var args []ast.Expression
	for !p.at(token.RPAREN) && !p.at(token.EOF) {
		args = append(args, p.parseExpr())
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN, "')'")
	return args, nil
}

func (p *Parser) parseEval() ast.Expression {
	tok := p.cur
	p.advance()
	p.expect(token.LPAREN, "'('")
	src := p.parseExpr()
	n := &ast.Eval{Meta: meta(tok), Source: src}
	if p.at(token.COMMA) {
		p.advance()
		n.Bindings = p.parseExpr()
	}
	p.expect(token.RPAREN, "')'")
	return n
}

func (p *Parser) parseNew() ast.Expression {
	tok := p.cur
	p.advance()
	class := p.parseTypeRef()
	args, _ := p.parseArgList()
	return &ast.InvokeNew{Meta: meta(tok), Class: class, Args: args}
}

func (p *Parser) parseClosure() ast.Expression {
	tok := p.cur
	p.advance() // '{'
	var params []ast.Param
	implicitIt := true
	if p.looksLikeParamHeader() {
		implicitIt = false
		for !p.at(token.CLOSURE_ARROW) && !p.at(token.EOF) {
			t := typesystem.Type(typesystem.Def())
			if !p.nextAt(token.COMMA) && !p.nextAt(token.CLOSURE_ARROW) {
				t = p.parseTypeRef()
			}
			name := p.expect(token.IDENT, "parameter name").Lexeme
			params = append(params, ast.Param{Name: name, Type: t})
			if p.at(token.COMMA) {
				p.advance()
			}
		}
		p.expect(token.CLOSURE_ARROW, "'->'")
	}
	body := &ast.Block{Meta: meta(tok)}
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		body.Statements = append(body.Statements, p.parseStatement())
	}
	p.expect(token.RBRACE, "'}'")
	return &ast.Closure{Meta: meta(tok), Params: params, Body: body, ImplicitIt: implicitIt}
}

// looksLikeParamHeader scans ahead (conceptually) for a `-> ` before the
// matching close brace at depth 0; since our lexer has only one token of
// extra lookahead we approximate with the common surface form: an IDENT
// (or type IDENT) directly followed eventually by CLOSURE_ARROW is assumed
// whenever the closure does not open with a statement keyword.
func (p *Parser) looksLikeParamHeader() bool {
	switch p.cur.Kind {
	case token.IDENT, token.UPPER_IDENT, token.DEF:
		return true
	}
	return false
}

// parseMapKey parses one map-literal key. A bare identifier immediately
// followed by ':' is shorthand for a string key (`[a:1]` means
// `["a":1]`, the common dynamic-language map-literal convention) —
// decided purely by one-token lookahead so it never disturbs list-literal
// parsing, where a bare identifier is an ordinary variable reference.
// Anything else (a quoted string, a computed expression) parses normally.
func (p *Parser) parseMapKey() ast.Expression {
	if (p.at(token.IDENT) || p.at(token.UPPER_IDENT)) && p.nextAt(token.COLON) {
		tok := p.cur
		p.advance()
		return &ast.Literal{Meta: meta(tok), Value: tok.Lexeme}
	}
	return p.parseExpr()
}

func (p *Parser) parseListOrMapLiteral() ast.Expression {
	tok := p.cur
	p.advance() // '['
	if p.at(token.COLON) { // `[:]` empty map
		p.advance()
		p.expect(token.RBRACKET, "']'")
		return &ast.MapLiteral{Meta: meta(tok)}
	}
	if p.at(token.RBRACKET) {
		p.advance()
		return &ast.ListLiteral{Meta: meta(tok)}
	}
	first := p.parseMapKey()
	if p.at(token.COLON) {
		p.advance()
		n := &ast.MapLiteral{Meta: meta(tok)}
		n.Keys = append(n.Keys, first)
		n.Values = append(n.Values, p.parseExpr())
		for p.at(token.COMMA) {
			p.advance()
			k := p.parseMapKey()
			p.expect(token.COLON, "':'")
			v := p.parseExpr()
			n.Keys = append(n.Keys, k)
			n.Values = append(n.Values, v)
		}
		p.expect(token.RBRACKET, "']'")
		return n
	}
	n := &ast.ListLiteral{Meta: meta(tok)}
	n.Elements = append(n.Elements, first)
	for p.at(token.COMMA) {
		p.advance()
		n.Elements = append(n.Elements, p.parseExpr())
	}
	p.expect(token.RBRACKET, "']'")
	return n
}

// buildExprString re-lexes any `${...}` spans inside a STRING_LIT's raw
// lexeme, per the design note in internal/lexer: each span is parsed as a
// full expression using a fresh Parser, and the fragments between spans
// become literal StringParts.
func (p *Parser) buildExprString(tok token.Token) ast.Expression {
	raw := tok.Lexeme
	n := &ast.ExprString{Meta: meta(tok)}
	hasInterp := false
	i := 0
	var lit []byte
	for i < len(raw) {
		if raw[i] == '\\' && i+1 < len(raw) {
			lit = append(lit, unescape(raw[i+1]))
			i += 2
			continue
		}
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			hasInterp = true
			n.Parts = append(n.Parts, ast.StringPart{Literal: string(lit)})
			lit = nil
			depth := 1
			j := i + 2
			for j < len(raw) && depth > 0 {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth == 0 {
					break
				}
				j++
			}
			inner := raw[i+2 : j]
			exprAst, errs := Parse(inner, p.file)
			p.errors = append(p.errors, errs...)
			var expr ast.Expression = &ast.Noop{Meta: meta(tok)}
			if len(exprAst.Statements) == 1 {
				if es, ok := exprAst.Statements[0].(*ast.ExprStmt); ok {
					expr = es.Expr
				}
			}
			n.Parts = append(n.Parts, ast.StringPart{Expr: expr})
			i = j + 1
			continue
		}
		lit = append(lit, raw[i])
		i++
	}
	if len(lit) > 0 || !hasInterp {
		n.Parts = append(n.Parts, ast.StringPart{Literal: string(lit)})
	}
	if !hasInterp {
		return &ast.Literal{Meta: meta(tok), Value: string(lit)}
	}
	return n
}

func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return ch
	}
}

// --- Switch / patterns ---------------------------------------------------

func (p *Parser) parseSwitch() ast.Expression {
	tok := p.cur
	p.advance()
	n := &ast.Switch{Meta: meta(tok)}
	if p.at(token.LPAREN) {
		p.advance()
		n.Subject = p.parseExpr()
		p.expect(token.RPAREN, "')'")
	}
	p.expect(token.LBRACE, "'{'")
	for !p.at(token.RBRACE) && !p.at(token.EOF) {
		c := p.parseSwitchCase()
		if c.IsDefault {
			n.Default = c
		} else {
			n.Cases = append(n.Cases, c)
		}
		for p.at(token.COMMA) || p.at(token.SEMI) {
			p.advance()
		}
	}
	p.expect(token.RBRACE, "'}'")
	return n
}

func (p *Parser) parseSwitchCase() *ast.SwitchCase {
	tok := p.cur
	c := &ast.SwitchCase{Meta: meta(tok)}
	if p.at(token.DEFAULT) {
		p.advance()
		c.IsDefault = true
		if p.at(token.IF) {
			p.advance()
			c.Guard = p.parseExpr()
		}
	} else {
		c.Patterns = append(c.Patterns, p.parsePattern())
		c.Guards = append(c.Guards, p.parseOptionalPatternGuard())
		for p.at(token.COMMA) {
			p.advance()
			c.Patterns = append(c.Patterns, p.parsePattern())
			c.Guards = append(c.Guards, p.parseOptionalPatternGuard())
		}
	}
	p.expect(token.ARROW, "'=>'")
	c.Result = p.parseExpr()
	return c
}

// parseOptionalPatternGuard parses a single alternative's own `if guard`
// (spec §8 scenario 5: "1 if it != 2, 2 if it == 2, 3 => it" guards its
// first two alternatives individually), returning nil when the
// alternative has none.
func (p *Parser) parseOptionalPatternGuard() ast.Expression {
	if p.at(token.IF) {
		p.advance()
		return p.parseExpr()
	}
	return nil
}

func (p *Parser) parsePattern() ast.Pattern {
	tok := p.cur
	switch tok.Kind {
	case token.IDENT:
		if tok.Lexeme == "_" {
			p.advance()
			return &ast.WildcardPattern{Meta: meta(tok)}
		}
		if isLowerPrimTypeName(tok.Lexeme) {
			target := p.parseTypeRef()
			name := ""
			if p.at(token.IDENT) {
				name = p.cur.Lexeme
				p.advance()
			}
			return &ast.TypePattern{Meta: meta(tok), Target: target, Name: name}
		}
		p.advance()
		return &ast.IdentifierPattern{Meta: meta(tok), Name: tok.Lexeme}
	case token.UPPER_IDENT, token.DEF:
		target := p.parseTypeRef()
		name := ""
		if p.at(token.IDENT) {
			name = p.cur.Lexeme
			p.advance()
		}
		return &ast.TypePattern{Meta: meta(tok), Target: target, Name: name}
	case token.STAR:
		p.advance()
		var inner ast.Pattern
		if p.at(token.IDENT) {
			inner = &ast.IdentifierPattern{Meta: meta(p.cur), Name: p.cur.Lexeme}
			p.advance()
		}
		return &ast.SpreadPattern{Meta: meta(tok), Inner: inner}
	case token.LBRACKET:
		return p.parseListOrMapPattern()
	case token.NULL:
		p.advance()
		return &ast.LiteralPattern{Meta: meta(tok), Value: nil}
	case token.TRUE:
		p.advance()
		return &ast.LiteralPattern{Meta: meta(tok), Value: true}
	case token.FALSE:
		p.advance()
		return &ast.LiteralPattern{Meta: meta(tok), Value: false}
	case token.INT_LIT, token.LONG_LIT, token.DOUBLE_LIT, token.DECIMAL_LIT, token.STRING_LIT, token.MINUS:
		lit := p.parseLiteralPatternValue()
		return lit
	case token.SLASH:
		regexTok := p.readRegexAtCur()
		pattern, flags := splitRegexLexeme(regexTok.Lexeme)
		return &ast.RegexPattern{Meta: meta(tok), Source: pattern + "\x00" + flags}
	default:
		p.errorf(diagnostics.ErrUnexpectedTok, "pattern", tok.Lexeme)
		p.advance()
		return &ast.WildcardPattern{Meta: meta(tok)}
	}
}

func (p *Parser) parseLiteralPatternValue() *ast.LiteralPattern {
	tok := p.cur
	neg := false
	if p.at(token.MINUS) {
		neg = true
		p.advance()
		tok = p.cur
	}
	var v interface{}
	switch tok.Kind {
	case token.INT_LIT:
		iv, _ := strconv.ParseInt(tok.Lexeme, 10, 32)
		if neg {
			iv = -iv
		}
		v = int32(iv)
	case token.LONG_LIT:
		iv, _ := strconv.ParseInt(tok.Lexeme, 10, 64)
		if neg {
			iv = -iv
		}
		v = iv
	case token.DOUBLE_LIT:
		fv, _ := strconv.ParseFloat(tok.Lexeme, 64)
		if neg {
			fv = -fv
		}
		v = fv
	case token.DECIMAL_LIT:
		s := tok.Lexeme
		if neg {
			s = "-" + s
		}
		v = s
	case token.STRING_LIT:
		v = tok.Lexeme
	}
	p.advance()
	return &ast.LiteralPattern{Meta: meta(tok), Value: v}
}

func (p *Parser) parseListOrMapPattern() ast.Pattern {
	tok := p.cur
	p.advance() // '['
	if p.at(token.RBRACKET) {
		p.advance()
		return &ast.ListPattern{Meta: meta(tok)}
	}
	// Disambiguate list vs. map pattern: a map pattern entry is
	// `IDENT : pattern` or the bare rest marker `*`.
	if (p.at(token.IDENT) || p.at(token.STRING_LIT)) && p.nextAt(token.COLON) {
		n := &ast.MapPattern{Meta: meta(tok)}
		for !p.at(token.RBRACKET) && !p.at(token.EOF) {
			if p.at(token.STAR) {
				p.advance()
				n.HasRest = true
			} else {
				key := p.cur.Lexeme
				p.advance()
				p.expect(token.COLON, "':'")
				n.Keys = append(n.Keys, key)
				n.Values = append(n.Values, p.parsePattern())
			}
			if p.at(token.COMMA) {
				p.advance()
			}
		}
		p.expect(token.RBRACKET, "']'")
		return n
	}
	n := &ast.ListPattern{Meta: meta(tok)}
	for !p.at(token.RBRACKET) && !p.at(token.EOF) {
		n.Elements = append(n.Elements, p.parsePattern())
		if p.at(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RBRACKET, "']'")
	return n
}
