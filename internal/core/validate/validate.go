// Package validate implements the Semantic Validator: the stage that turns
// the inferred-but-unchecked symbol table into a trusted one. It checks
// directives, every expression's types and arities, function return paths,
// and the absence of recursion, raising a ValuaScriptError on the first
// violation.
package validate

import (
	"math"
	"sort"
	"strings"

	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/discovery"
	"github.com/valuascript-lang/vsc/internal/core/signatures"
	"github.com/valuascript-lang/vsc/internal/core/types"
)

// arithmeticOps maps the internal call names of the infix math operators to
// their surface symbols, for error messages.
var arithmeticOps = map[string]string{
	"add": "+", "subtract": "-", "multiply": "*", "divide": "/", "power": "^",
}

var logicalOps = map[string]string{
	"__and__": "and", "__or__": "or", "__not__": "not",
}

// comparisonOps covers the ordered comparisons, which require scalars on
// both sides. Equality (__eq__/__neq__) intentionally accepts any pairing.
var comparisonOps = map[string]string{
	"__gt__": ">", "__lt__": "<", "__gte__": ">=", "__lte__": "<=",
}

type directiveRule struct {
	required        bool
	allowedInModule bool
	valueError      string
	check           func(ast.Expr) bool
}

var directiveRules = map[string]directiveRule{
	"iterations": {
		required:   true,
		valueError: "The value for @iterations must be a whole number (e.g., 10000).",
		check: func(v ast.Expr) bool {
			n, ok := v.(*ast.NumberLiteral)
			return ok && n.Value >= 1 && n.Value == math.Trunc(n.Value)
		},
	},
	"output": {
		required:   true,
		valueError: "The value for @output must be a variable name (e.g., 'final_result').",
		check: func(v ast.Expr) bool {
			_, ok := v.(*ast.Identifier)
			return ok
		},
	},
	"output_file": {
		valueError: `The value for @output_file must be a string literal (e.g., "path/to/results.csv").`,
		check: func(v ast.Expr) bool {
			_, ok := v.(*ast.StringLiteral)
			return ok
		},
	},
	"module": {allowedInModule: true},
}

type validator struct {
	table     *discovery.SymbolTable
	model     *types.Result
	scopeName string // "global" or the current UDF's name
}

// Validate checks the enriched symbol table against the language rules.
// The table and model pass through unchanged; any violation is returned as
// a *diag.ValuaScriptError.
func Validate(table *discovery.SymbolTable, model *types.Result) error {
	v := &validator{table: table, model: model, scopeName: "global"}

	mainAST := table.ProcessedASTs[table.MainFilePath]
	isModule := hasModuleDirective(mainAST)

	if err := v.validateDirectives(mainAST, isModule); err != nil {
		return err
	}
	if err := v.checkRecursion(); err != nil {
		return err
	}

	for _, step := range mainAST.ExecutionSteps {
		if err := v.validateAssignment(step, model.Globals); err != nil {
			return err
		}
	}

	for _, name := range sortedFuncNames(table) {
		fn := table.Functions[name]
		v.scopeName = name
		if err := v.validateFunctionBody(fn); err != nil {
			return err
		}
	}
	v.scopeName = "global"
	return nil
}

func hasModuleDirective(root *ast.Root) bool {
	for _, d := range root.Directives {
		if d.Name == "module" {
			return true
		}
	}
	return false
}

func sortedFuncNames(table *discovery.SymbolTable) []string {
	names := make([]string, 0, len(table.Functions))
	for name := range table.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --- Directives ---

func (v *validator) validateDirectives(root *ast.Root, isModule bool) error {
	seen := map[string]*ast.Directive{}
	moduleSeen := false
	for _, d := range root.Directives {
		span := d.Span()
		rule, known := directiveRules[d.Name]
		if !known {
			return diag.NewValuaScriptError(diag.UnknownDirective, &span, root.FilePath, diag.Details{"name": d.Name})
		}

		if d.Name == "module" {
			if d.Value != nil {
				return diag.NewValuaScriptError(diag.ModuleDirectiveWithValue, &span, root.FilePath, nil)
			}
			if moduleSeen {
				return diag.NewValuaScriptError(diag.ModuleDirectiveDeclaredMoreThanOnce, &span, root.FilePath, nil)
			}
			moduleSeen = true
			continue
		}

		if _, dup := seen[d.Name]; dup {
			return diag.NewValuaScriptError(diag.DuplicateDirective, &span, root.FilePath, diag.Details{"name": d.Name})
		}
		seen[d.Name] = d

		if isModule && !rule.allowedInModule {
			return diag.NewValuaScriptError(diag.DirectiveNotAllowedInModule, &span, root.FilePath, diag.Details{"name": d.Name})
		}

		if rule.check != nil && (d.Value == nil || !rule.check(d.Value)) {
			return diag.NewValuaScriptError(diag.InvalidDirectiveValue, &span, root.FilePath, diag.Details{"error_msg": rule.valueError})
		}
	}

	if !isModule {
		if _, ok := seen["iterations"]; !ok {
			return diag.NewValuaScriptError(diag.MissingIterationsDirective, nil, root.FilePath, nil)
		}
		out, ok := seen["output"]
		if !ok {
			return diag.NewValuaScriptError(diag.MissingOutputDirective, nil, root.FilePath, nil)
		}
		outName := out.Value.(*ast.Identifier).Name
		if _, defined := v.table.Globals[outName]; !defined {
			span := out.Value.Span()
			return diag.NewValuaScriptError(diag.UndefinedVariable, &span, root.FilePath,
				diag.Details{"name": outName, "context": "the @output directive"})
		}
	}
	return nil
}

// --- Statements ---

func (v *validator) validateAssignment(a ast.Assignment, scope map[string]*types.VarType) error {
	names := a.ResultNames()

	switch s := a.(type) {
	case *ast.MultiAssignment:
		rhsTypes, err := v.exprTypeList(s.Expression, scope)
		if err != nil {
			return err
		}
		if len(rhsTypes) != len(names) {
			span := s.Span()
			return diag.NewValuaScriptError(diag.AssignmentError, &span, v.filePath(),
				diag.Details{"lhs_count": len(names), "rhs_count": len(rhsTypes)})
		}
	case *ast.LiteralAssignment:
		if _, err := v.exprType(s.Value, scope); err != nil {
			return err
		}
	case *ast.ExecutionAssignment:
		rhsTypes, err := v.exprTypeList(s.Expression, scope)
		if err != nil {
			return err
		}
		if len(rhsTypes) != 1 {
			span := s.Span()
			return diag.NewValuaScriptError(diag.AssignmentError, &span, v.filePath(),
				diag.Details{"lhs_count": 1, "rhs_count": len(rhsTypes)})
		}
	case *ast.ConditionalAssignment:
		if _, err := v.exprType(s.Expression, scope); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateFunctionBody(fn *discovery.UDF) error {
	scope := v.model.FuncScopes[fn.Name]

	var ret *ast.ReturnStatement
	for _, stmt := range fn.Body {
		switch s := stmt.(type) {
		case *ast.ReturnStatement:
			ret = s
		case ast.Assignment:
			if err := v.validateAssignment(s, scope); err != nil {
				return err
			}
		}
	}

	if ret == nil {
		span := fn.Span
		return diag.NewValuaScriptError(diag.MissingReturnStatement, &span, fn.SourcePath, diag.Details{"name": fn.Name})
	}
	return v.validateReturn(ret, fn, scope)
}

func (v *validator) validateReturn(ret *ast.ReturnStatement, fn *discovery.UDF, scope map[string]*types.VarType) error {
	span := ret.Span()

	var actual []string
	if len(ret.Values) == 1 {
		ts, err := v.exprTypeList(ret.Values[0], scope)
		if err != nil {
			return err
		}
		actual = ts
	} else {
		for _, val := range ret.Values {
			t, err := v.exprType(val, scope)
			if err != nil {
				return err
			}
			actual = append(actual, t)
		}
	}

	expected := fn.ReturnType
	if len(actual) != len(expected) {
		return diag.NewValuaScriptError(diag.ReturnTypeMismatch, &span, fn.SourcePath, diag.Details{
			"name":     fn.Name,
			"expected": tupleDescription(expected),
			"provided": tupleDescription(actual),
		})
	}
	for i := range expected {
		if actual[i] != expected[i] && actual[i] != "any" {
			return diag.NewValuaScriptError(diag.ReturnTypeMismatch, &span, fn.SourcePath, diag.Details{
				"name":     fn.Name,
				"expected": expected[i],
				"provided": actual[i],
			})
		}
	}
	return nil
}

func tupleDescription(ts []string) string {
	if len(ts) == 1 {
		return ts[0]
	}
	return "(" + strings.Join(ts, ", ") + ")"
}

// --- Expressions ---

// exprTypeList is exprType that preserves tuple-ness: a call to a
// multi-return function yields one type per returned value.
func (v *validator) exprTypeList(e ast.Expr, scope map[string]*types.VarType) ([]string, error) {
	t, err := v.exprType(e, scope)
	if err != nil {
		return nil, err
	}
	if multi, ok := signatures.MultiReturnTypes(t); ok {
		return multi, nil
	}
	return []string{t}, nil
}

// exprType validates an expression tree bottom-up and returns its type.
func (v *validator) exprType(e ast.Expr, scope map[string]*types.VarType) (string, error) {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return "scalar", nil
	case *ast.StringLiteral:
		return "string", nil
	case *ast.BooleanLiteral:
		return "boolean", nil

	case *ast.Identifier:
		if vt, ok := scope[n.Name]; ok {
			return vt.Type, nil
		}
		return "", v.undefinedVariable(n)

	case *ast.VectorLiteral:
		return v.vectorLiteralType(n, scope)

	case *ast.ElementAccess:
		return v.callType("GetElement", []ast.Expr{n.Target, n.Index}, n.Span(), scope)

	case *ast.DeleteElement:
		return v.callType("DeleteElement", []ast.Expr{n.Target, n.Index}, n.Span(), scope)

	case *ast.ConditionalExpression:
		condType, err := v.exprType(n.Condition, scope)
		if err != nil {
			return "", err
		}
		if condType != "boolean" && condType != "any" {
			span := n.Condition.Span()
			return "", diag.NewValuaScriptError(diag.IfConditionNotBoolean, &span, v.filePath(), diag.Details{"provided": condType})
		}
		thenType, err := v.exprType(n.Then, scope)
		if err != nil {
			return "", err
		}
		elseType, err := v.exprType(n.Else, scope)
		if err != nil {
			return "", err
		}
		if thenType != elseType && thenType != "any" && elseType != "any" {
			span := n.Span()
			return "", diag.NewValuaScriptError(diag.IfElseTypeMismatch, &span, v.filePath(),
				diag.Details{"then_type": thenType, "else_type": elseType})
		}
		return thenType, nil

	case *ast.FunctionCall:
		return v.callType(n.Function, n.Args, n.Span(), scope)

	case *ast.TupleLiteral:
		// The parser rejects tuple literals outside return statements, and
		// return statements carry their values individually.
		span := n.Span()
		return "", diag.NewValuaScriptError(diag.SyntaxUnexpectedToken, &span, v.filePath(),
			diag.Details{"details": "Unexpected tuple literal."})
	}
	return "any", nil
}

func (v *validator) vectorLiteralType(n *ast.VectorLiteral, scope map[string]*types.VarType) (string, error) {
	itemTypes := make([]string, 0, len(n.Items))
	for _, item := range n.Items {
		t, err := v.exprType(item, scope)
		if err != nil {
			return "", err
		}
		if t != "any" {
			itemTypes = append(itemTypes, t)
		}
	}

	distinct := map[string]bool{}
	for _, t := range itemTypes {
		distinct[t] = true
	}
	if len(distinct) > 1 {
		found := make([]string, 0, len(distinct))
		for t := range distinct {
			found = append(found, t)
		}
		sort.Strings(found)
		span := n.Span()
		return "", diag.NewValuaScriptError(diag.MixedTypesInVector, &span, v.filePath(),
			diag.Details{"found_types": strings.Join(found, ", ")})
	}
	if len(itemTypes) > 0 && itemTypes[0] != "scalar" {
		span := n.Span()
		return "", diag.NewValuaScriptError(diag.InvalidItemTypeInVector, &span, v.filePath(),
			diag.Details{"type": itemTypes[0]})
	}
	return "vector", nil
}

func (v *validator) callType(funcName string, args []ast.Expr, span diag.Span, scope map[string]*types.VarType) (string, error) {
	sig, ok := v.model.Signatures[funcName]
	if !ok {
		return "", diag.NewValuaScriptError(diag.UnknownFunction, &span, v.filePath(), diag.Details{"name": funcName})
	}

	argTypes := make([]string, len(args))
	for i, arg := range args {
		t, err := v.exprType(arg, scope)
		if err != nil {
			return "", err
		}
		argTypes[i] = t
	}

	if err := v.checkOperatorTypes(funcName, argTypes, span); err != nil {
		return "", err
	}

	if !sig.Variadic {
		if len(args) != len(sig.ArgTypes) {
			return "", diag.NewValuaScriptError(diag.ArgumentCountMismatch, &span, v.filePath(),
				diag.Details{"name": funcName, "expected": len(sig.ArgTypes), "provided": len(args)})
		}
		for i, expected := range sig.ArgTypes {
			if expected == "any" || argTypes[i] == "any" {
				continue
			}
			if argTypes[i] != expected {
				return "", diag.NewValuaScriptError(diag.ArgumentTypeMismatch, &span, v.filePath(),
					diag.Details{"arg_num": i + 1, "name": funcName, "expected": expected, "provided": argTypes[i]})
			}
		}
	} else if len(sig.ArgTypes) > 0 && sig.ArgTypes[0] != "any" {
		expected := sig.ArgTypes[0]
		for i, actual := range argTypes {
			if actual != "any" && actual != expected {
				return "", diag.NewValuaScriptError(diag.ArgumentTypeMismatch, &span, v.filePath(),
					diag.Details{"arg_num": i + 1, "name": funcName, "expected": expected, "provided": actual})
			}
		}
	}

	return sig.ResolveReturnType(argTypes), nil
}

// checkOperatorTypes enforces the operator-specific rules that the generic
// signature check is too loose for: arithmetic operators take only numeric
// operands, logical operators only booleans, and ordered comparisons only
// scalars. Equality stays unchecked (any vs any).
func (v *validator) checkOperatorTypes(funcName string, argTypes []string, span diag.Span) error {
	if op, ok := arithmeticOps[funcName]; ok {
		for _, t := range argTypes {
			if t != "scalar" && t != "vector" && t != "any" {
				return diag.NewValuaScriptError(diag.OperatorTypeMismatch, &span, v.filePath(),
					diag.Details{"op": op, "provided_type": t})
			}
		}
	}
	if op, ok := logicalOps[funcName]; ok {
		for _, t := range argTypes {
			if t != "boolean" && t != "any" {
				return diag.NewValuaScriptError(diag.LogicalOperatorTypeMismatch, &span, v.filePath(),
					diag.Details{"op": op, "provided": t})
			}
		}
	}
	if op, ok := comparisonOps[funcName]; ok && len(argTypes) == 2 {
		left, right := argTypes[0], argTypes[1]
		if (left != "scalar" && left != "any") || (right != "scalar" && right != "any") {
			return diag.NewValuaScriptError(diag.ComparisonTypeMismatch, &span, v.filePath(),
				diag.Details{"op": op, "left_type": left, "right_type": right})
		}
	}
	return nil
}

func (v *validator) undefinedVariable(n *ast.Identifier) error {
	span := n.Span()
	if v.scopeName == "global" {
		return diag.NewValuaScriptError(diag.UndefinedVariable, &span, v.filePath(),
			diag.Details{"name": n.Name, "context": "an expression"})
	}
	return diag.NewValuaScriptError(diag.UndefinedVariableInFunc, &span, v.filePath(),
		diag.Details{"name": n.Name, "func_name": v.scopeName})
}

func (v *validator) filePath() string {
	if v.scopeName != "global" {
		if fn, ok := v.table.Functions[v.scopeName]; ok {
			return fn.SourcePath
		}
	}
	return v.table.MainFilePath
}

// --- Recursion ---

// checkRecursion builds the static call graph between user-defined
// functions and rejects any cycle, reporting the path that closes it.
func (v *validator) checkRecursion() error {
	graph := make(map[string][]string, len(v.table.Functions))
	for name, fn := range v.table.Functions {
		callees := map[string]bool{}
		for _, stmt := range fn.Body {
			collectUDFCalls(stmt, v.table.Functions, callees)
		}
		sorted := make([]string, 0, len(callees))
		for c := range callees {
			sorted = append(sorted, c)
		}
		sort.Strings(sorted)
		graph[name] = sorted
	}

	visiting := map[string]bool{}
	visited := map[string]bool{}
	var path []string

	var visit func(name string) bool
	visit = func(name string) bool {
		visiting[name] = true
		path = append(path, name)
		for _, callee := range graph[name] {
			if visiting[callee] {
				path = append(path, callee)
				return true
			}
			if !visited[callee] && visit(callee) {
				return true
			}
		}
		delete(visiting, name)
		visited[name] = true
		path = path[:len(path)-1]
		return false
	}

	for _, name := range sortedFuncNames(v.table) {
		if visited[name] {
			continue
		}
		path = path[:0]
		if visit(name) {
			fn := v.table.Functions[path[0]]
			span := fn.Span
			return diag.NewValuaScriptError(diag.RecursiveCallDetected, &span, fn.SourcePath,
				diag.Details{"path": strings.Join(path, " -> ")})
		}
	}
	return nil
}

func collectUDFCalls(node ast.Node, funcs map[string]*discovery.UDF, out map[string]bool) {
	switch n := node.(type) {
	case *ast.FunctionCall:
		if _, ok := funcs[n.Function]; ok {
			out[n.Function] = true
		}
		for _, a := range n.Args {
			collectUDFCalls(a, funcs, out)
		}
	case *ast.VectorLiteral:
		for _, item := range n.Items {
			collectUDFCalls(item, funcs, out)
		}
	case *ast.TupleLiteral:
		for _, item := range n.Items {
			collectUDFCalls(item, funcs, out)
		}
	case *ast.ElementAccess:
		collectUDFCalls(n.Index, funcs, out)
	case *ast.DeleteElement:
		collectUDFCalls(n.Index, funcs, out)
	case *ast.ConditionalExpression:
		collectUDFCalls(n.Condition, funcs, out)
		collectUDFCalls(n.Then, funcs, out)
		collectUDFCalls(n.Else, funcs, out)
	case *ast.LiteralAssignment:
		collectUDFCalls(n.Value, funcs, out)
	case *ast.ExecutionAssignment:
		collectUDFCalls(n.Expression, funcs, out)
	case *ast.ConditionalAssignment:
		collectUDFCalls(n.Expression, funcs, out)
	case *ast.MultiAssignment:
		collectUDFCalls(n.Expression, funcs, out)
	case *ast.ReturnStatement:
		for _, val := range n.Values {
			collectUDFCalls(val, funcs, out)
		}
	}
}
