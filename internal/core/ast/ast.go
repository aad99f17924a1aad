// Package ast defines the typed AST produced by the ValuaScript parser.
//
// Every node carries its own Span so later stages (symbol discovery, type
// inference, validation) can report precise source locations. Unlike the
// VDL toolchain's participle-driven Schema AST, these nodes are built by a
// hand-written recursive-descent parser, but they keep the same
// discriminated-union-via-Kind() shape.
package ast

import "github.com/valuascript-lang/vsc/internal/core/diag"

// Kind discriminates the concrete type of an Expr or Stmt node.
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBoolean
	KindVector
	KindTuple
	KindIdentifier
	KindFunctionCall
	KindElementAccess
	KindDeleteElement
	KindConditional

	KindLiteralAssignment
	KindExecutionAssignment
	KindConditionalAssignment
	KindMultiAssignment
	KindReturnStatement
)

// Node is implemented by every AST node; it reports the node's source span.
type Node interface {
	Span() diag.Span
	Kind() Kind
}

type base struct {
	span diag.Span
}

func (b base) Span() diag.Span { return b.span }

// Expr is any node usable as a value-producing expression.
type Expr interface {
	Node
	exprNode()
}

type exprBase struct{ base }

func (exprBase) exprNode() {}

// NumberLiteral is a scalar numeric literal (ValuaScript has no separate int
// type at the value level; everything is an IEEE-754 double downstream).
type NumberLiteral struct {
	exprBase
	Value float64
}

func (NumberLiteral) Kind() Kind { return KindNumber }

// StringLiteral is a double-quoted string literal, already unquoted.
type StringLiteral struct {
	exprBase
	Value string
}

func (StringLiteral) Kind() Kind { return KindString }

// BooleanLiteral is `true` or `false`.
type BooleanLiteral struct {
	exprBase
	Value bool
}

func (BooleanLiteral) Kind() Kind { return KindBoolean }

// Identifier references a variable by name.
type Identifier struct {
	exprBase
	Name string
}

func (Identifier) Kind() Kind { return KindIdentifier }

// VectorLiteral is a `[a, b, c]` literal. Items must infer to a single
// homogeneous type; that check belongs to the semantic validator.
type VectorLiteral struct {
	exprBase
	Items []Expr
}

func (VectorLiteral) Kind() Kind { return KindVector }

// TupleLiteral is a `(a, b)` literal. It may only appear on the right-hand
// side of nothing valid in this language except as the parser's shape for
// an (illegal in a `let`) tuple expression - kept so the validator can
// reject it with a precise message.
type TupleLiteral struct {
	exprBase
	Items []Expr
}

func (TupleLiteral) Kind() Kind { return KindTuple }

// FunctionCall is `name(arg, arg, ...)`, including internal operator names
// like `__eq__`, `__and__`, and the variadic `add`/`multiply`/`__and__`/`__or__`
// groupings the parser collapses at parse time.
type FunctionCall struct {
	exprBase
	Function string
	Args     []Expr
}

func (FunctionCall) Kind() Kind { return KindFunctionCall }

// ElementAccess is `target[index]`.
type ElementAccess struct {
	exprBase
	Target *Identifier
	Index  Expr
}

func (ElementAccess) Kind() Kind { return KindElementAccess }

// DeleteElement is `target[:index]`.
type DeleteElement struct {
	exprBase
	Target *Identifier
	Index  Expr
}

func (DeleteElement) Kind() Kind { return KindDeleteElement }

// ConditionalExpression is `if cond then a else b`.
type ConditionalExpression struct {
	exprBase
	Condition Expr
	Then      Expr
	Else      Expr
}

func (ConditionalExpression) Kind() Kind { return KindConditional }

// Stmt is any top-level or function-body statement.
type Stmt interface {
	Node
	stmtNode()
}

type stmtBase struct{ base }

func (stmtBase) stmtNode() {}

// LiteralAssignment is `let x = <literal>`.
type LiteralAssignment struct {
	stmtBase
	Target *Identifier
	Value  Expr
}

func (LiteralAssignment) Kind() Kind { return KindLiteralAssignment }

// ExecutionAssignment is `let x = <call-or-identifier-or-access>`.
type ExecutionAssignment struct {
	stmtBase
	Target     *Identifier
	Expression Expr
}

func (ExecutionAssignment) Kind() Kind { return KindExecutionAssignment }

// ConditionalAssignment is `let x = if cond then a else b`.
type ConditionalAssignment struct {
	stmtBase
	Target     *Identifier
	Expression *ConditionalExpression
}

func (ConditionalAssignment) Kind() Kind { return KindConditionalAssignment }

// MultiAssignment is `let a, b = f(...)`.
type MultiAssignment struct {
	stmtBase
	Targets    []*Identifier
	Expression Expr
}

func (MultiAssignment) Kind() Kind { return KindMultiAssignment }

// ReturnStatement is `return expr` or `return a, b` inside a UDF body.
type ReturnStatement struct {
	stmtBase
	Values []Expr
}

func (ReturnStatement) Kind() Kind { return KindReturnStatement }

// Assignment is the subset of Stmt that assigns one or more variables.
type Assignment interface {
	Stmt
	ResultNames() []string
}

func (a *LiteralAssignment) ResultNames() []string     { return []string{a.Target.Name} }
func (a *ExecutionAssignment) ResultNames() []string   { return []string{a.Target.Name} }
func (a *ConditionalAssignment) ResultNames() []string { return []string{a.Target.Name} }
func (a *MultiAssignment) ResultNames() []string {
	names := make([]string, len(a.Targets))
	for i, t := range a.Targets {
		names[i] = t.Name
	}
	return names
}

// Directive is `@name` or `@name = value`.
type Directive struct {
	base
	Name  string
	Value Expr // nil for valueless directives like @module
}

// Import is `@import "relative/path"`.
type Import struct {
	base
	Path string
}

// Parameter is one `name: type` entry in a function definition.
type Parameter struct {
	base
	Name *Identifier
	Type *Identifier
}

// FunctionDefinition is a `func name(params) -> type { ... }` declaration.
type FunctionDefinition struct {
	base
	Name       *Identifier
	Params     []*Parameter
	ReturnType []string // length 1 for scalar/vector/boolean/string, >1 for tuple
	Body       []Stmt
	Docstring  string
}

// Root is the parsed representation of a single .vs file.
type Root struct {
	base
	FilePath           string
	Imports            []*Import
	Directives         []*Directive
	ExecutionSteps     []Assignment
	FunctionDefinitions []*FunctionDefinition
}

// --- Constructors ---
//
// Every node is built through one of these so the parser never has to poke
// at the unexported span field directly.

func NewNumberLiteral(v float64, span diag.Span) *NumberLiteral {
	return &NumberLiteral{exprBase: exprBase{base{span}}, Value: v}
}

func NewStringLiteral(v string, span diag.Span) *StringLiteral {
	return &StringLiteral{exprBase: exprBase{base{span}}, Value: v}
}

func NewBooleanLiteral(v bool, span diag.Span) *BooleanLiteral {
	return &BooleanLiteral{exprBase: exprBase{base{span}}, Value: v}
}

func NewIdentifier(name string, span diag.Span) *Identifier {
	return &Identifier{exprBase: exprBase{base{span}}, Name: name}
}

func NewVectorLiteral(items []Expr, span diag.Span) *VectorLiteral {
	return &VectorLiteral{exprBase: exprBase{base{span}}, Items: items}
}

func NewTupleLiteral(items []Expr, span diag.Span) *TupleLiteral {
	return &TupleLiteral{exprBase: exprBase{base{span}}, Items: items}
}

func NewFunctionCall(function string, args []Expr, span diag.Span) *FunctionCall {
	return &FunctionCall{exprBase: exprBase{base{span}}, Function: function, Args: args}
}

func NewElementAccess(target *Identifier, index Expr, span diag.Span) *ElementAccess {
	return &ElementAccess{exprBase: exprBase{base{span}}, Target: target, Index: index}
}

func NewDeleteElement(target *Identifier, index Expr, span diag.Span) *DeleteElement {
	return &DeleteElement{exprBase: exprBase{base{span}}, Target: target, Index: index}
}

func NewConditionalExpression(cond, then, els Expr, span diag.Span) *ConditionalExpression {
	return &ConditionalExpression{exprBase: exprBase{base{span}}, Condition: cond, Then: then, Else: els}
}

func NewLiteralAssignment(target *Identifier, value Expr, span diag.Span) *LiteralAssignment {
	return &LiteralAssignment{stmtBase: stmtBase{base{span}}, Target: target, Value: value}
}

func NewExecutionAssignment(target *Identifier, expr Expr, span diag.Span) *ExecutionAssignment {
	return &ExecutionAssignment{stmtBase: stmtBase{base{span}}, Target: target, Expression: expr}
}

func NewConditionalAssignment(target *Identifier, expr *ConditionalExpression, span diag.Span) *ConditionalAssignment {
	return &ConditionalAssignment{stmtBase: stmtBase{base{span}}, Target: target, Expression: expr}
}

func NewMultiAssignment(targets []*Identifier, expr Expr, span diag.Span) *MultiAssignment {
	return &MultiAssignment{stmtBase: stmtBase{base{span}}, Targets: targets, Expression: expr}
}

func NewReturnStatement(values []Expr, span diag.Span) *ReturnStatement {
	return &ReturnStatement{stmtBase: stmtBase{base{span}}, Values: values}
}

func NewDirective(name string, value Expr, span diag.Span) *Directive {
	return &Directive{base: base{span}, Name: name, Value: value}
}

func NewImport(path string, span diag.Span) *Import {
	return &Import{base: base{span}, Path: path}
}

func NewParameter(name, typ *Identifier, span diag.Span) *Parameter {
	return &Parameter{base: base{span}, Name: name, Type: typ}
}

func NewFunctionDefinition(name *Identifier, params []*Parameter, returnType []string, body []Stmt, docstring string, span diag.Span) *FunctionDefinition {
	return &FunctionDefinition{base: base{span}, Name: name, Params: params, ReturnType: returnType, Body: body, Docstring: docstring}
}

// NewRoot builds a Root, classifying already-parsed top-level nodes.
func NewRoot(filePath string, span diag.Span, imports []*Import, directives []*Directive, steps []Assignment, funcs []*FunctionDefinition) *Root {
	return &Root{
		base:               base{span: span},
		FilePath:           filePath,
		Imports:            imports,
		Directives:         directives,
		ExecutionSteps:     steps,
		FunctionDefinitions: funcs,
	}
}
