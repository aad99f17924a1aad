// Package dump renders intermediate compiler artifacts (AST, symbol table,
// IR, partitions) as JSON or YAML for the CLI's --compile flag.
package dump

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/discovery"
	"github.com/valuascript-lang/vsc/internal/core/ir"
	"github.com/valuascript-lang/vsc/internal/core/partition"
	"github.com/valuascript-lang/vsc/internal/core/types"
)

// Format selects the dump encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Marshal renders any pipeline artifact in the requested format.
func Marshal(artifact any, format Format) ([]byte, error) {
	plain := toPlain(artifact)
	switch format {
	case FormatYAML:
		return yaml.Marshal(plain)
	default:
		return json.MarshalIndent(plain, "", "  ")
	}
}

// toPlain converts the typed artifacts into plain maps and slices that
// both encoders render identically.
func toPlain(artifact any) any {
	switch v := artifact.(type) {
	case *ast.Root:
		return rootToPlain(v)
	case *discovery.SymbolTable:
		return tableToPlain(v)
	case *types.Result:
		return typesToPlain(v)
	case []ir.Step:
		return stepsToPlain(v)
	case *partition.Partitioned:
		return map[string]any{
			"pre_trial_steps": stepsToPlain(v.PreTrial),
			"per_trial_steps": stepsToPlain(v.PerTrial),
		}
	default:
		return artifact
	}
}

// --- AST ---

func rootToPlain(root *ast.Root) any {
	imports := make([]any, 0, len(root.Imports))
	for _, imp := range root.Imports {
		imports = append(imports, map[string]any{"path": imp.Path, "line": imp.Span().SLine})
	}
	directives := make([]any, 0, len(root.Directives))
	for _, d := range root.Directives {
		entry := map[string]any{"name": d.Name, "line": d.Span().SLine}
		if d.Value != nil {
			entry["value"] = exprToPlain(d.Value)
		}
		directives = append(directives, entry)
	}
	steps := make([]any, 0, len(root.ExecutionSteps))
	for _, s := range root.ExecutionSteps {
		steps = append(steps, stmtToPlain(s))
	}
	funcs := make([]any, 0, len(root.FunctionDefinitions))
	for _, fn := range root.FunctionDefinitions {
		funcs = append(funcs, funcToPlain(fn))
	}
	return map[string]any{
		"file_path":            root.FilePath,
		"imports":              imports,
		"directives":           directives,
		"execution_steps":      steps,
		"function_definitions": funcs,
	}
}

func funcToPlain(fn *ast.FunctionDefinition) any {
	params := make([]any, 0, len(fn.Params))
	for _, p := range fn.Params {
		params = append(params, map[string]any{"name": p.Name.Name, "type": p.Type.Name})
	}
	body := make([]any, 0, len(fn.Body))
	for _, s := range fn.Body {
		body = append(body, stmtToPlain(s))
	}
	out := map[string]any{
		"name":        fn.Name.Name,
		"params":      params,
		"return_type": fn.ReturnType,
		"body":        body,
		"line":        fn.Span().SLine,
	}
	if fn.Docstring != "" {
		out["docstring"] = fn.Docstring
	}
	return out
}

func stmtToPlain(s ast.Stmt) any {
	switch n := s.(type) {
	case *ast.LiteralAssignment:
		return map[string]any{"type": "literal_assignment", "result": n.Target.Name, "value": exprToPlain(n.Value), "line": n.Span().SLine}
	case *ast.ExecutionAssignment:
		return map[string]any{"type": "execution_assignment", "result": n.Target.Name, "expression": exprToPlain(n.Expression), "line": n.Span().SLine}
	case *ast.ConditionalAssignment:
		return map[string]any{"type": "conditional_assignment", "result": n.Target.Name, "expression": exprToPlain(n.Expression), "line": n.Span().SLine}
	case *ast.MultiAssignment:
		names := make([]any, 0, len(n.Targets))
		for _, t := range n.Targets {
			names = append(names, t.Name)
		}
		return map[string]any{"type": "multi_assignment", "results": names, "expression": exprToPlain(n.Expression), "line": n.Span().SLine}
	case *ast.ReturnStatement:
		values := make([]any, 0, len(n.Values))
		for _, v := range n.Values {
			values = append(values, exprToPlain(v))
		}
		return map[string]any{"type": "return_statement", "values": values, "line": n.Span().SLine}
	}
	return fmt.Sprintf("%T", s)
}

func exprToPlain(e ast.Expr) any {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return n.Value
	case *ast.StringLiteral:
		return map[string]any{"string": n.Value}
	case *ast.BooleanLiteral:
		return n.Value
	case *ast.Identifier:
		return map[string]any{"variable": n.Name}
	case *ast.VectorLiteral:
		items := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			items = append(items, exprToPlain(item))
		}
		return items
	case *ast.TupleLiteral:
		items := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			items = append(items, exprToPlain(item))
		}
		return map[string]any{"tuple": items}
	case *ast.FunctionCall:
		args := make([]any, 0, len(n.Args))
		for _, a := range n.Args {
			args = append(args, exprToPlain(a))
		}
		return map[string]any{"function": n.Function, "args": args}
	case *ast.ElementAccess:
		return map[string]any{"function": "GetElement", "args": []any{exprToPlain(n.Target), exprToPlain(n.Index)}}
	case *ast.DeleteElement:
		return map[string]any{"function": "DeleteElement", "args": []any{exprToPlain(n.Target), exprToPlain(n.Index)}}
	case *ast.ConditionalExpression:
		return map[string]any{
			"type":      "conditional_expression",
			"condition": exprToPlain(n.Condition),
			"then_expr": exprToPlain(n.Then),
			"else_expr": exprToPlain(n.Else),
		}
	}
	return fmt.Sprintf("%T", e)
}

// --- Symbol table and types ---

func tableToPlain(t *discovery.SymbolTable) any {
	globals := map[string]any{}
	for name, v := range t.Globals {
		globals[name] = map[string]any{"line": v.Span.SLine, "source_path": v.SourcePath}
	}
	funcs := map[string]any{}
	for name, fn := range t.Functions {
		params := make([]any, 0, len(fn.Params))
		for _, p := range fn.Params {
			params = append(params, map[string]any{"name": p.Name.Name, "type": p.Type.Name})
		}
		funcs[name] = map[string]any{
			"params":      params,
			"return_type": fn.ReturnType,
			"source_path": fn.SourcePath,
		}
	}
	return map[string]any{
		"main_file_path":         t.MainFilePath,
		"global_variables":       globals,
		"user_defined_functions": funcs,
	}
}

func typesToPlain(r *types.Result) any {
	globals := map[string]any{}
	for name, v := range r.Globals {
		globals[name] = map[string]any{"inferred_type": v.Type, "is_stochastic": v.IsStochastic}
	}
	scopes := map[string]any{}
	for fn, scope := range r.FuncScopes {
		vars := map[string]any{}
		for name, v := range scope {
			vars[name] = map[string]any{"inferred_type": v.Type, "is_stochastic": v.IsStochastic}
		}
		scopes[fn] = vars
	}
	return map[string]any{
		"global_variables":    globals,
		"function_scopes":     scopes,
		"function_stochastic": r.FuncStochastic,
	}
}

// --- IR ---

func stepsToPlain(steps []ir.Step) []any {
	out := make([]any, 0, len(steps))
	for _, s := range steps {
		out = append(out, stepToPlain(s))
	}
	return out
}

func stepToPlain(s ir.Step) any {
	switch n := s.(type) {
	case *ir.LiteralAssignment:
		return map[string]any{"type": "literal_assignment", "result": n.Result, "value": valueToPlain(n.Value), "line": n.LineNo}
	case *ir.ExecutionAssignment:
		args := make([]any, 0, len(n.Args))
		for _, a := range n.Args {
			args = append(args, valueToPlain(a))
		}
		return map[string]any{"type": "execution_assignment", "result": n.Result, "function": n.Function, "args": args, "line": n.LineNo}
	case *ir.ConditionalAssignment:
		return map[string]any{
			"type": "conditional_assignment", "result": n.Result,
			"condition": valueToPlain(n.Condition), "then_expr": valueToPlain(n.Then), "else_expr": valueToPlain(n.Else),
			"line": n.LineNo,
		}
	case *ir.Copy:
		return map[string]any{"type": "copy", "result": n.Result, "source": valueToPlain(n.Source), "line": n.LineNo}
	case *ir.Jump:
		return map[string]any{"type": "jump", "target": n.Target, "line": n.LineNo}
	case *ir.JumpIfFalse:
		return map[string]any{"type": "jump_if_false", "condition": valueToPlain(n.Condition), "target": n.Target, "line": n.LineNo}
	case *ir.Label:
		return map[string]any{"type": "label", "name": n.Name, "line": n.LineNo}
	}
	return fmt.Sprintf("%T", s)
}

func valueToPlain(v ir.Value) any {
	switch n := v.(type) {
	case ir.Scalar:
		return float64(n)
	case ir.Bool:
		return bool(n)
	case ir.Str:
		return map[string]any{"string": string(n)}
	case ir.Var:
		return map[string]any{"variable": string(n)}
	case ir.List:
		items := make([]any, 0, len(n))
		for _, item := range n {
			items = append(items, valueToPlain(item))
		}
		return items
	case *ir.Call:
		args := make([]any, 0, len(n.Args))
		for _, a := range n.Args {
			args = append(args, valueToPlain(a))
		}
		return map[string]any{"function": n.Function, "args": args}
	case *ir.Cond:
		return map[string]any{
			"type":      "conditional_expression",
			"condition": valueToPlain(n.Condition),
			"then_expr": valueToPlain(n.Then),
			"else_expr": valueToPlain(n.Else),
		}
	}
	return fmt.Sprintf("%T", v)
}
