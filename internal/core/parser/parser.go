// Package parser turns ValuaScript source text into an *ast.Root.
//
// Unlike the participle struct-tag grammars used elsewhere in this
// toolchain, ValuaScript's variadic operator grouping, right-associative
// power operator, and non-chaining comparisons are easiest to express as a
// hand-written precedence-climbing descent over participle's token stream.
// participle still does all of the tokenizing; only the grammar layer is
// hand-rolled.
package parser

import (
	"strconv"
	"strings"

	participlelexer "github.com/alecthomas/participle/v2/lexer"

	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/lexer"
)

var mathOperatorMap = map[string]string{"+": "add", "-": "subtract", "*": "multiply", "/": "divide", "^": "power"}
var comparisonOperatorMap = map[string]string{"==": "__eq__", "!=": "__neq__", ">": "__gt__", "<": "__lt__", ">=": "__gte__", "<=": "__lte__"}
var logicalOperatorMap = map[string]string{"and": "__and__", "or": "__or__"}

var variadicFunctions = map[string]bool{"add": true, "multiply": true, "__and__": true, "__or__": true}

// Parse runs the pre-parsing checks and then the full parse, returning a
// high-level AST for a single file.
func Parse(source, filePath string) (*ast.Root, error) {
	if err := preParsingChecks(source, filePath); err != nil {
		return nil, err
	}

	toks, names, err := tokenize(source, filePath)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks, names: names, filePath: filePath}
	return p.parseRoot()
}

func tokenize(source, filePath string) ([]participlelexer.Token, map[participlelexer.TokenType]string, error) {
	lex, err := lexer.Lexer.LexString(filePath, source)
	if err != nil {
		return nil, nil, diag.NewValuaScriptError(diag.SyntaxParsingError, nil, filePath, diag.Details{"details": err.Error()})
	}

	names := make(map[participlelexer.TokenType]string)
	for name, typ := range lexer.Lexer.Symbols() {
		names[typ] = name
	}

	var out []participlelexer.Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, nil, diag.NewValuaScriptError(diag.SyntaxInvalidCharacter, nil, filePath, diag.Details{"char": err.Error()})
		}
		if names[tok.Type] == "Whitespace" || names[tok.Type] == "Comment" {
			continue
		}
		out = append(out, tok)
		if tok.Type == participlelexer.EOF {
			break
		}
	}
	return out, names, nil
}

// parser walks a pre-lexed token slice with one token of lookahead.
type parser struct {
	toks     []participlelexer.Token
	names    map[participlelexer.TokenType]string
	pos      int
	filePath string
}

func (p *parser) cur() participlelexer.Token { return p.toks[p.pos] }

func (p *parser) name(tok participlelexer.Token) string {
	if tok.Type == participlelexer.EOF {
		return "EOF"
	}
	return p.names[tok.Type]
}

func (p *parser) is(name string) bool { return p.name(p.cur()) == name }

func (p *parser) advance() participlelexer.Token {
	tok := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) accept(name string) (participlelexer.Token, bool) {
	if p.is(name) {
		return p.advance(), true
	}
	return participlelexer.Token{}, false
}

func (p *parser) expect(name string) (participlelexer.Token, error) {
	if tok, ok := p.accept(name); ok {
		return tok, nil
	}
	return participlelexer.Token{}, p.unexpected(name)
}

func (p *parser) unexpected(expected string) error {
	tok := p.cur()
	found := tok.Value
	if tok.Type == participlelexer.EOF {
		found = "end of file"
	}
	details := "Found unexpected token '" + found + "'."
	if expected != "" {
		details = "Expected " + expected + ", but found '" + found + "' instead."
	}
	span := p.spanOf(tok)
	return diag.NewValuaScriptError(diag.SyntaxUnexpectedToken, &span, p.filePath, diag.Details{"details": details})
}

// spanOf converts a token's participle position into a diag.Span, handling
// the multi-line Docstring token.
func (p *parser) spanOf(tok participlelexer.Token) diag.Span {
	startCol := tok.Pos.Column
	endCol := startCol + len([]rune(tok.Value))
	endLine := tok.Pos.Line
	if idx := strings.LastIndexByte(tok.Value, '\n'); idx >= 0 {
		endLine = tok.Pos.Line + strings.Count(tok.Value, "\n")
		endCol = len([]rune(tok.Value[idx+1:])) + 1
	}
	return diag.Span{FilePath: p.filePath, SLine: tok.Pos.Line, SCol: startCol, ELine: endLine, ECol: endCol}
}

// peekIsNumber reports whether the token after the current one is a numeric
// literal, used to recognize a negative-number literal `-5` the way the
// lexer's SIGNED_NUMBER token would in the reference grammar.
func (p *parser) peekIsNumber() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}
	next := p.toks[p.pos+1]
	n := p.name(next)
	return n == "FloatLiteral" || n == "IntLiteral"
}

func (p *parser) skipNewlines() {
	for p.is("Newline") {
		p.advance()
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

// --- Top level ---

func (p *parser) parseRoot() (*ast.Root, error) {
	var imports []*ast.Import
	var directives []*ast.Directive
	var steps []ast.Assignment
	var funcs []*ast.FunctionDefinition

	firstSpan := p.spanOf(p.cur())
	p.skipNewlines()

	for !p.is("EOF") {
		switch {
		case p.is("Directive"):
			imp, dir, err := p.parseDirectiveOrImport()
			if err != nil {
				return nil, err
			}
			if imp != nil {
				imports = append(imports, imp)
			} else {
				directives = append(directives, dir)
			}
		case p.is("Func"):
			fn, err := p.parseFunctionDef()
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, fn)
		case p.is("Let"):
			a, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			steps = append(steps, a)
		default:
			return nil, p.unexpected("a directive, 'func', or 'let'")
		}

		if !p.is("EOF") {
			if _, err := p.expect("Newline"); err != nil {
				return nil, err
			}
		}
		p.skipNewlines()
	}

	lastSpan := p.spanOf(p.cur())
	return ast.NewRoot(p.filePath, firstSpan.Merge(lastSpan), imports, directives, steps, funcs), nil
}

// parseDirectiveOrImport returns either a populated Import or a populated
// Directive, never both.
func (p *parser) parseDirectiveOrImport() (*ast.Import, *ast.Directive, error) {
	tok := p.advance() // e.g. "@import", "@iterations", "@module"
	name := strings.TrimPrefix(tok.Value, "@")
	start := p.spanOf(tok)

	if name == "import" {
		pathTok, err := p.expect("StringLiteral")
		if err != nil {
			return nil, nil, err
		}
		span := start.Merge(p.spanOf(pathTok))
		return ast.NewImport(unquote(pathTok.Value), span), nil, nil
	}

	if _, ok := p.accept("Equals"); ok {
		value, err := p.parseDirectiveValue()
		if err != nil {
			return nil, nil, err
		}
		span := start.Merge(value.Span())
		return nil, ast.NewDirective(name, value, span), nil
	}

	return nil, ast.NewDirective(name, nil, start), nil
}

// parseDirectiveValue parses a directive's right-hand side: a literal or a
// bare identifier (e.g. `@output = result`).
func (p *parser) parseDirectiveValue() (ast.Expr, error) {
	switch {
	case p.is("StringLiteral"):
		tok := p.advance()
		return ast.NewStringLiteral(unquote(tok.Value), p.spanOf(tok)), nil
	case p.is("Minus") && p.peekIsNumber():
		minusTok := p.advance()
		numTok := p.advance()
		v, _ := strconv.ParseFloat(strings.ReplaceAll(numTok.Value, "_", ""), 64)
		return ast.NewNumberLiteral(-v, p.spanOf(minusTok).Merge(p.spanOf(numTok))), nil
	case p.is("FloatLiteral"), p.is("IntLiteral"):
		tok := p.advance()
		v, _ := strconv.ParseFloat(strings.ReplaceAll(tok.Value, "_", ""), 64)
		return ast.NewNumberLiteral(v, p.spanOf(tok)), nil
	case p.is("True"):
		tok := p.advance()
		return ast.NewBooleanLiteral(true, p.spanOf(tok)), nil
	case p.is("False"):
		tok := p.advance()
		return ast.NewBooleanLiteral(false, p.spanOf(tok)), nil
	case p.is("Ident"):
		tok := p.advance()
		return ast.NewIdentifier(tok.Value, p.spanOf(tok)), nil
	}
	return nil, p.unexpected("a directive value")
}

// --- Function definitions ---

func (p *parser) parseFunctionDef() (*ast.FunctionDefinition, error) {
	start := p.spanOf(p.cur())
	if _, err := p.expect("Func"); err != nil {
		return nil, err
	}
	nameTok, err := p.expect("Ident")
	if err != nil {
		return nil, err
	}
	name := ast.NewIdentifier(nameTok.Value, p.spanOf(nameTok))

	if _, err := p.expect("LParen"); err != nil {
		return nil, err
	}
	var params []*ast.Parameter
	if !p.is("RParen") {
		for {
			param, err := p.parseParameter()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if _, ok := p.accept("Comma"); !ok {
				break
			}
		}
	}
	if _, err := p.expect("RParen"); err != nil {
		return nil, err
	}

	if _, err := p.expect("Arrow"); err != nil {
		return nil, err
	}
	returnType, err := p.parseReturnType()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect("LBrace"); err != nil {
		return nil, err
	}
	p.skipNewlines()

	var docstring string
	if tok, ok := p.accept("Docstring"); ok {
		docstring = cleanDocstring(tok.Value)
		p.skipNewlines()
	}

	var body []ast.Stmt
	for !p.is("RBrace") {
		if p.is("Return") {
			ret, err := p.parseReturnStatement()
			if err != nil {
				return nil, err
			}
			body = append(body, ret)
		} else if p.is("Let") {
			a, err := p.parseAssignment()
			if err != nil {
				return nil, err
			}
			body = append(body, a)
		} else {
			return nil, p.unexpected("'let' or 'return'")
		}
		if !p.is("RBrace") {
			if _, err := p.expect("Newline"); err != nil {
				return nil, err
			}
		}
		p.skipNewlines()
	}
	endTok, err := p.expect("RBrace")
	if err != nil {
		return nil, err
	}

	span := start.Merge(p.spanOf(endTok))
	return ast.NewFunctionDefinition(name, params, returnType, body, docstring, span), nil
}

func cleanDocstring(raw string) string {
	inner := raw[3 : len(raw)-3]
	lines := strings.Split(inner, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (p *parser) parseParameter() (*ast.Parameter, error) {
	nameTok, err := p.expect("Ident")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("Colon"); err != nil {
		return nil, err
	}
	typeTok, err := p.parseTypeKeyword()
	if err != nil {
		return nil, err
	}
	name := ast.NewIdentifier(nameTok.Value, p.spanOf(nameTok))
	typ := ast.NewIdentifier(typeTok.Value, p.spanOf(typeTok))
	return ast.NewParameter(name, typ, p.spanOf(nameTok).Merge(p.spanOf(typeTok))), nil
}

func (p *parser) parseTypeKeyword() (participlelexer.Token, error) {
	for _, k := range []string{"Scalar", "Vector", "Boolean", "String"} {
		if tok, ok := p.accept(k); ok {
			return tok, nil
		}
	}
	return participlelexer.Token{}, p.unexpected("a type (scalar, vector, boolean, or string)")
}

// parseReturnType parses either a single type or a parenthesized tuple of
// types, e.g. `-> scalar` or `-> (scalar, scalar)`.
func (p *parser) parseReturnType() ([]string, error) {
	if _, ok := p.accept("LParen"); ok {
		var types []string
		for {
			tok, err := p.parseTypeKeyword()
			if err != nil {
				return nil, err
			}
			types = append(types, tok.Value)
			if _, ok := p.accept("Comma"); !ok {
				break
			}
		}
		if _, err := p.expect("RParen"); err != nil {
			return nil, err
		}
		return types, nil
	}
	tok, err := p.parseTypeKeyword()
	if err != nil {
		return nil, err
	}
	return []string{tok.Value}, nil
}

func (p *parser) parseReturnStatement() (*ast.ReturnStatement, error) {
	start := p.spanOf(p.cur())
	if _, err := p.expect("Return"); err != nil {
		return nil, err
	}
	var values []ast.Expr
	for {
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if _, ok := p.accept("Comma"); !ok {
			break
		}
	}
	span := start.Merge(values[len(values)-1].Span())
	return ast.NewReturnStatement(values, span), nil
}

// --- Assignments ---

func (p *parser) parseAssignment() (ast.Assignment, error) {
	start := p.spanOf(p.cur())
	if _, err := p.expect("Let"); err != nil {
		return nil, err
	}

	firstTok, err := p.expect("Ident")
	if err != nil {
		return nil, err
	}
	targets := []*ast.Identifier{ast.NewIdentifier(firstTok.Value, p.spanOf(firstTok))}
	for {
		if _, ok := p.accept("Comma"); !ok {
			break
		}
		tok, err := p.expect("Ident")
		if err != nil {
			return nil, err
		}
		targets = append(targets, ast.NewIdentifier(tok.Value, p.spanOf(tok)))
	}

	if _, err := p.expect("Equals"); err != nil {
		return nil, err
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	span := start.Merge(expr.Span())

	if tuple, ok := expr.(*ast.TupleLiteral); ok {
		tupleSpan := tuple.Span()
		return nil, diag.NewValuaScriptError(diag.SyntaxUnexpectedToken, &tupleSpan, p.filePath,
			diag.Details{"details": "A tuple literal cannot be assigned with 'let'; tuples may only appear in a function's return statement."})
	}

	if len(targets) > 1 {
		return ast.NewMultiAssignment(targets, expr, span), nil
	}

	target := targets[0]
	switch expr.(type) {
	case *ast.NumberLiteral, *ast.StringLiteral, *ast.BooleanLiteral, *ast.VectorLiteral:
		return ast.NewLiteralAssignment(target, expr, span), nil
	case *ast.ConditionalExpression:
		return ast.NewConditionalAssignment(target, expr.(*ast.ConditionalExpression), span), nil
	default:
		return ast.NewExecutionAssignment(target, expr, span), nil
	}
}

// --- Expressions, by ascending precedence ---
//
// conditional > or > and > not > comparison > add/sub > mul/div > power > atom

func (p *parser) parseExpression() (ast.Expr, error) {
	if p.is("If") {
		return p.parseConditional()
	}
	return p.parseOr()
}

func (p *parser) parseConditional() (ast.Expr, error) {
	start := p.spanOf(p.cur())
	p.advance() // If
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("Then"); err != nil {
		return nil, err
	}
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("Else"); err != nil {
		return nil, err
	}
	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	span := start.Merge(els.Span())
	return ast.NewConditionalExpression(cond, then, els, span), nil
}

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.is("Or") {
		opTok := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = combineVariadic(left, right, logicalOperatorMap[opTok.Value])
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.is("And") {
		opTok := p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = combineVariadic(left, right, logicalOperatorMap[opTok.Value])
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expr, error) {
	if p.is("Not") {
		tok := p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		span := p.spanOf(tok).Merge(operand.Span())
		return ast.NewFunctionCall("__not__", []ast.Expr{operand}, span), nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"Eq", "Neq", "Gte", "Lte", "Gt", "Lt"} {
		if p.is(name) {
			opTok := p.advance()
			right, err := p.parseAdd()
			if err != nil {
				return nil, err
			}
			span := left.Span().Merge(right.Span())
			return ast.NewFunctionCall(comparisonOperatorMap[opTok.Value], []ast.Expr{left, right}, span), nil
		}
	}
	return left, nil
}

func (p *parser) parseAdd() (ast.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.is("Plus") || p.is("Minus") {
		opTok := p.advance()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = combineVariadic(left, right, mathOperatorMap[opTok.Value])
	}
	return left, nil
}

func (p *parser) parseMul() (ast.Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for p.is("Star") || p.is("Slash") {
		opTok := p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = combineVariadic(left, right, mathOperatorMap[opTok.Value])
	}
	return left, nil
}

// parsePower is right-associative: 2^3^2 == 2^(3^2).
func (p *parser) parsePower() (ast.Expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.is("Caret") {
		p.advance()
		exp, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		span := base.Span().Merge(exp.Span())
		return ast.NewFunctionCall("power", []ast.Expr{base, exp}, span), nil
	}
	return base, nil
}

// combineVariadic folds consecutive same-operator applications into a
// single call for add/multiply/__and__/__or__, in place of the left-nested
// chain of binary calls a left-to-right infix parse would otherwise build.
func combineVariadic(left, right ast.Expr, funcName string) ast.Expr {
	if call, ok := left.(*ast.FunctionCall); ok && call.Function == funcName && variadicFunctions[funcName] {
		call.Args = append(call.Args, right)
		return ast.NewFunctionCall(call.Function, call.Args, call.Span().Merge(right.Span()))
	}
	span := left.Span().Merge(right.Span())
	return ast.NewFunctionCall(funcName, []ast.Expr{left, right}, span)
}

// --- Atoms ---

func (p *parser) parseAtom() (ast.Expr, error) {
	switch {
	case p.is("Minus") && p.peekIsNumber():
		minusTok := p.advance()
		numTok := p.advance()
		v, _ := strconv.ParseFloat(strings.ReplaceAll(numTok.Value, "_", ""), 64)
		return ast.NewNumberLiteral(-v, p.spanOf(minusTok).Merge(p.spanOf(numTok))), nil
	case p.is("FloatLiteral"), p.is("IntLiteral"):
		tok := p.advance()
		v, _ := strconv.ParseFloat(strings.ReplaceAll(tok.Value, "_", ""), 64)
		return ast.NewNumberLiteral(v, p.spanOf(tok)), nil
	case p.is("StringLiteral"):
		tok := p.advance()
		return ast.NewStringLiteral(unquote(tok.Value), p.spanOf(tok)), nil
	case p.is("True"):
		tok := p.advance()
		return ast.NewBooleanLiteral(true, p.spanOf(tok)), nil
	case p.is("False"):
		tok := p.advance()
		return ast.NewBooleanLiteral(false, p.spanOf(tok)), nil
	case p.is("LBracket"):
		return p.parseVector()
	case p.is("LParen"):
		return p.parseParenExpression()
	case p.is("Ident"):
		return p.parseIdentifierLed()
	}
	return nil, p.unexpected("an expression")
}

func (p *parser) parseVector() (ast.Expr, error) {
	start := p.advance() // LBracket
	var items []ast.Expr
	if !p.is("RBracket") {
		for {
			item, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if _, ok := p.accept("Comma"); !ok {
				break
			}
		}
	}
	end, err := p.expect("RBracket")
	if err != nil {
		return nil, err
	}
	return ast.NewVectorLiteral(items, p.spanOf(start).Merge(p.spanOf(end))), nil
}

// parseParenExpression parses `(expr)` as a grouping, or `(expr, expr, ...)`
// as a tuple literal.
func (p *parser) parseParenExpression() (ast.Expr, error) {
	start := p.advance() // LParen
	var items []ast.Expr
	for {
		item, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if _, ok := p.accept("Comma"); !ok {
			break
		}
	}
	end, err := p.expect("RParen")
	if err != nil {
		return nil, err
	}
	span := p.spanOf(start).Merge(p.spanOf(end))
	if len(items) == 1 {
		return items[0], nil
	}
	return ast.NewTupleLiteral(items, span), nil
}

// parseIdentifierLed parses everything that starts with a bare identifier:
// a plain variable reference, a function call, an element access `v[i]`, or
// a slice-delete `v[:i]`.
func (p *parser) parseIdentifierLed() (ast.Expr, error) {
	tok := p.advance()
	ident := ast.NewIdentifier(tok.Value, p.spanOf(tok))

	switch {
	case p.is("LParen"):
		return p.parseFunctionCall(ident)
	case p.is("LBracket"):
		return p.parseElementAccessOrDelete(ident)
	default:
		return ident, nil
	}
}

func (p *parser) parseFunctionCall(name *ast.Identifier) (ast.Expr, error) {
	p.advance() // LParen
	var args []ast.Expr
	if !p.is("RParen") {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if _, ok := p.accept("Comma"); !ok {
				break
			}
		}
	}
	end, err := p.expect("RParen")
	if err != nil {
		return nil, err
	}
	return ast.NewFunctionCall(name.Name, args, name.Span().Merge(p.spanOf(end))), nil
}

func (p *parser) parseElementAccessOrDelete(target *ast.Identifier) (ast.Expr, error) {
	p.advance() // LBracket
	if _, ok := p.accept("Colon"); ok {
		idx, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		end, err := p.expect("RBracket")
		if err != nil {
			return nil, err
		}
		return ast.NewDeleteElement(target, idx, target.Span().Merge(p.spanOf(end))), nil
	}

	idx, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	end, err := p.expect("RBracket")
	if err != nil {
		return nil, err
	}
	return ast.NewElementAccess(target, idx, target.Span().Merge(p.spanOf(end))), nil
}
