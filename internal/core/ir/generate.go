package ir

import (
	"fmt"

	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/discovery"
	"github.com/valuascript-lang/vsc/internal/core/types"
)

// generator linearizes the validated program, inlining every call to a
// user-defined function. The emitted IR contains only built-in calls,
// literals, and (mangled) variable references.
type generator struct {
	table        *discovery.SymbolTable
	model        *types.Result
	steps        []Step
	udfCallCount map[string]int
	tempCount    int
}

// Generate produces the linear IR for the main file's execution steps.
// Temporaries created for nested UDF calls are registered in the model so
// later stages can resolve their types.
func Generate(table *discovery.SymbolTable, model *types.Result) ([]Step, error) {
	g := &generator{
		table:        table,
		model:        model,
		udfCallCount: make(map[string]int),
	}

	mainAST := table.ProcessedASTs[table.MainFilePath]
	for _, step := range mainAST.ExecutionSteps {
		if err := g.genAssignment(step, identityMangle); err != nil {
			return nil, err
		}
	}
	return g.steps, nil
}

// mangleFunc rewrites a local variable name into its inlined form; the
// global scope uses the identity mapping.
type mangleFunc func(name string) string

func identityMangle(name string) string { return name }

func prefixMangle(prefix string) mangleFunc {
	return func(name string) string { return prefix + name }
}

func (g *generator) genAssignment(a ast.Assignment, mangle mangleFunc) error {
	line := a.Span().SLine

	switch s := a.(type) {
	case *ast.LiteralAssignment:
		value, err := g.genExpr(s.Value, mangle, line)
		if err != nil {
			return err
		}
		// A vector literal with non-literal items came back as a
		// ComposeVector call and is no longer a plain literal.
		if call, ok := value.(*Call); ok {
			g.emit(&ExecutionAssignment{Result: []string{mangle(s.Target.Name)}, Function: call.Function, Args: call.Args, LineNo: line})
			return nil
		}
		g.emit(&LiteralAssignment{Result: []string{mangle(s.Target.Name)}, Value: value, LineNo: line})

	case *ast.ExecutionAssignment:
		return g.genValueAssignment([]string{mangle(s.Target.Name)}, s.Expression, mangle, line)

	case *ast.ConditionalAssignment:
		cond, err := g.genExpr(s.Expression.Condition, mangle, line)
		if err != nil {
			return err
		}
		then, err := g.genExpr(s.Expression.Then, mangle, line)
		if err != nil {
			return err
		}
		els, err := g.genExpr(s.Expression.Else, mangle, line)
		if err != nil {
			return err
		}
		g.emit(&ConditionalAssignment{
			Result: []string{mangle(s.Target.Name)}, Condition: cond, Then: then, Else: els, LineNo: line,
		})

	case *ast.MultiAssignment:
		targets := make([]string, len(s.Targets))
		for i, t := range s.Targets {
			targets[i] = mangle(t.Name)
		}
		return g.genValueAssignment(targets, s.Expression, mangle, line)
	}
	return nil
}

// genValueAssignment emits the step(s) assigning expr to targets,
// dispatching UDF calls to the inliner.
func (g *generator) genValueAssignment(targets []string, expr ast.Expr, mangle mangleFunc, line int) error {
	if call, ok := expr.(*ast.FunctionCall); ok {
		if fn, isUDF := g.table.Functions[call.Function]; isUDF {
			return g.inlineUDF(call, fn, targets, mangle, line)
		}
	}

	value, err := g.genExpr(expr, mangle, line)
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case *Call:
		g.emit(&ExecutionAssignment{Result: targets, Function: v.Function, Args: v.Args, LineNo: line})
	case *Cond:
		g.emit(&ConditionalAssignment{Result: targets, Condition: v.Condition, Then: v.Then, Else: v.Else, LineNo: line})
	default:
		// A bare variable reference or literal; wrapped in identity so the
		// optimizer's alias passes see one uniform shape.
		g.emit(&ExecutionAssignment{Result: targets, Function: "identity", Args: []Value{value}, LineNo: line})
	}
	return nil
}

// genExpr converts an AST expression into an IR value, inlining any nested
// UDF call into a fresh temporary along the way.
func (g *generator) genExpr(e ast.Expr, mangle mangleFunc, line int) (Value, error) {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return Scalar(n.Value), nil
	case *ast.StringLiteral:
		return Str(n.Value), nil
	case *ast.BooleanLiteral:
		return Bool(n.Value), nil
	case *ast.Identifier:
		return Var(mangle(n.Name)), nil

	case *ast.VectorLiteral:
		items := make(List, len(n.Items))
		for i, item := range n.Items {
			v, err := g.genExpr(item, mangle, line)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		// A vector whose items are all literals is a constant the VM loads
		// from its pool; anything else must be assembled at runtime.
		if IsLiteral(items) {
			return items, nil
		}
		return &Call{Function: "ComposeVector", Args: items}, nil

	case *ast.ElementAccess:
		index, err := g.genExpr(n.Index, mangle, line)
		if err != nil {
			return nil, err
		}
		return &Call{Function: "GetElement", Args: []Value{Var(mangle(n.Target.Name)), index}}, nil

	case *ast.DeleteElement:
		index, err := g.genExpr(n.Index, mangle, line)
		if err != nil {
			return nil, err
		}
		return &Call{Function: "DeleteElement", Args: []Value{Var(mangle(n.Target.Name)), index}}, nil

	case *ast.ConditionalExpression:
		cond, err := g.genExpr(n.Condition, mangle, line)
		if err != nil {
			return nil, err
		}
		then, err := g.genExpr(n.Then, mangle, line)
		if err != nil {
			return nil, err
		}
		els, err := g.genExpr(n.Else, mangle, line)
		if err != nil {
			return nil, err
		}
		return &Cond{Condition: cond, Then: then, Else: els}, nil

	case *ast.FunctionCall:
		if fn, isUDF := g.table.Functions[n.Function]; isUDF {
			// Nested UDF calls are lifted into a fresh temporary before
			// being passed upward.
			g.tempCount++
			temp := fmt.Sprintf("__temp_%d", g.tempCount)
			g.registerUDFTemp(temp, fn, n, mangle)
			if err := g.inlineUDF(n, fn, []string{temp}, mangle, line); err != nil {
				return nil, err
			}
			return Var(temp), nil
		}
		args := make([]Value, len(n.Args))
		for i, a := range n.Args {
			v, err := g.genExpr(a, mangle, line)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return &Call{Function: n.Function, Args: args}, nil
	}
	return nil, fmt.Errorf("ir: unsupported expression node %T", e)
}

// inlineUDF splices fn's body into the IR in place of a call: one identity
// binding per parameter, the mangled body statements, and an identity that
// lands the return value(s) on the caller-side targets.
func (g *generator) inlineUDF(call *ast.FunctionCall, fn *discovery.UDF, targets []string, callerMangle mangleFunc, line int) error {
	g.udfCallCount[fn.Name]++
	prefix := fmt.Sprintf("__%s_%d__", fn.Name, g.udfCallCount[fn.Name])
	mangle := prefixMangle(prefix)

	for i, param := range fn.Params {
		argValue, err := g.genExpr(call.Args[i], callerMangle, line)
		if err != nil {
			return err
		}
		g.emit(&ExecutionAssignment{
			Result:   []string{mangle(param.Name.Name)},
			Function: "identity",
			Args:     []Value{argValue},
			LineNo:   line,
		})
	}

	for _, stmt := range fn.Body {
		ret, isReturn := stmt.(*ast.ReturnStatement)
		if !isReturn {
			if a, ok := stmt.(ast.Assignment); ok {
				if err := g.genAssignment(a, mangle); err != nil {
					return err
				}
			}
			continue
		}

		values := make([]Value, len(ret.Values))
		for i, val := range ret.Values {
			v, err := g.genExpr(val, mangle, line)
			if err != nil {
				return err
			}
			values[i] = v
		}

		var arg Value
		if len(values) == 1 {
			arg = values[0]
		} else {
			arg = List(values)
		}
		g.emit(&ExecutionAssignment{Result: targets, Function: "identity", Args: []Value{arg}, LineNo: line})
	}
	return nil
}

// registerUDFTemp records the type of a temporary holding a nested UDF
// call's return value. The temp is stochastic if the function itself is, or
// if any argument expression is.
func (g *generator) registerUDFTemp(temp string, fn *discovery.UDF, call *ast.FunctionCall, mangle mangleFunc) {
	stochastic := g.model.FuncStochastic[fn.Name]
	if !stochastic {
		for _, a := range call.Args {
			if g.astExprStochastic(a, mangle) {
				stochastic = true
				break
			}
		}
	}
	g.model.RegisterTemp(temp, fn.ReturnType[0], stochastic)
}

func (g *generator) astExprStochastic(e ast.Expr, mangle mangleFunc) bool {
	switch n := e.(type) {
	case *ast.Identifier:
		if vt, ok := g.model.LookupVar(mangle(n.Name)); ok {
			return vt.IsStochastic
		}
	case *ast.VectorLiteral:
		for _, item := range n.Items {
			if g.astExprStochastic(item, mangle) {
				return true
			}
		}
	case *ast.ElementAccess:
		return g.astExprStochastic(n.Target, mangle) || g.astExprStochastic(n.Index, mangle)
	case *ast.DeleteElement:
		return g.astExprStochastic(n.Target, mangle) || g.astExprStochastic(n.Index, mangle)
	case *ast.ConditionalExpression:
		return g.astExprStochastic(n.Condition, mangle) || g.astExprStochastic(n.Then, mangle) || g.astExprStochastic(n.Else, mangle)
	case *ast.FunctionCall:
		if sig, ok := g.model.Signatures[n.Function]; ok && sig.IsStochastic {
			return true
		}
		for _, a := range n.Args {
			if g.astExprStochastic(a, mangle) {
				return true
			}
		}
	}
	return false
}

func (g *generator) emit(s Step) { g.steps = append(g.steps, s) }
