// Package types implements the Type Inferrer: it walks the discovered
// symbol table and annotates every variable with its inferred type and
// whether its value can vary between trials ("stochastic taint").
//
// Inference is non-validating - it assumes the program is structurally
// sound (that job belongs to the semantic validator, which runs next) and
// focuses purely on propagating type and taint information.
package types

import (
	"regexp"
	"sort"

	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/discovery"
	"github.com/valuascript-lang/vsc/internal/core/signatures"
)

// VarType is the inferred type and stochasticity of one variable or
// expression.
type VarType struct {
	Type         string
	IsStochastic bool
}

// Result is the fully type-annotated symbol table.
type Result struct {
	Globals        map[string]*VarType
	FuncScopes     map[string]map[string]*VarType // func name -> var name (incl. params) -> type
	FuncStochastic map[string]bool
	// Signatures combines the built-in registry with one synthesized entry
	// per user-defined function, stochasticity flags resolved to their
	// fixpoint. Later stages use this single table for every call lookup.
	Signatures map[string]signatures.Signature
}

// mangledName matches the `__<func>_<callid>__<local>` names the IR
// generator synthesizes when inlining user-defined functions.
var mangledName = regexp.MustCompile(`^__(.+)_[0-9]+__(.+)$`)

// LookupVar resolves a variable name to its inferred type, looking through
// globals (which include registered temporaries) and, for mangled names,
// the originating function's local scope.
func (r *Result) LookupVar(name string) (*VarType, bool) {
	if v, ok := r.Globals[name]; ok {
		return v, true
	}
	if m := mangledName.FindStringSubmatch(name); m != nil {
		if scope, ok := r.FuncScopes[m[1]]; ok {
			if v, ok := scope[m[2]]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// RegisterTemp records a compiler-synthesized temporary variable so later
// stages can resolve its type like any other global.
func (r *Result) RegisterTemp(name, typ string, stochastic bool) {
	r.Globals[name] = &VarType{Type: typ, IsStochastic: stochastic}
}

type inferrer struct {
	table    *discovery.SymbolTable
	combined map[string]signatures.Signature
	result   *Result
}

// Infer runs type inference and stochasticity tainting over table.
func Infer(table *discovery.SymbolTable) *Result {
	inf := &inferrer{
		table: table,
		result: &Result{
			Globals:        make(map[string]*VarType),
			FuncScopes:     make(map[string]map[string]*VarType),
			FuncStochastic: make(map[string]bool),
		},
	}
	inf.buildCombinedSignatures()
	inf.inferUDFStochasticity()
	inf.processGlobalScope()
	inf.processFunctionScopes()
	inf.result.Signatures = inf.combined
	return inf.result
}

func (inf *inferrer) sortedFuncNames() []string {
	names := make([]string, 0, len(inf.table.Functions))
	for name := range inf.table.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (inf *inferrer) buildCombinedSignatures() {
	inf.combined = make(map[string]signatures.Signature, len(signatures.Registry)+len(inf.table.Functions))
	for name, sig := range signatures.Registry {
		inf.combined[name] = sig
	}
	for _, name := range inf.sortedFuncNames() {
		fn := inf.table.Functions[name]
		argTypes := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			argTypes[i] = p.Type.Name
		}
		inf.combined[name] = signatures.Signature{
			ArgTypes:   argTypes,
			ReturnType: returnTypeMarker(fn.ReturnType),
		}
	}
}

func returnTypeMarker(returnType []string) string {
	if len(returnType) == 1 {
		return returnType[0]
	}
	marker := "tuple:"
	for i, t := range returnType {
		if i > 0 {
			marker += ","
		}
		marker += t
	}
	return marker
}

// inferUDFStochasticity runs the fixpoint pass: a UDF's own stochasticity
// depends on the stochasticity of the functions it calls, including other
// UDFs, so the whole set is re-evaluated until nothing changes.
func (inf *inferrer) inferUDFStochasticity() {
	names := inf.sortedFuncNames()
	changed := true
	for changed {
		changed = false
		for _, name := range names {
			fn := inf.table.Functions[name]
			scope := make(map[string]*VarType, len(fn.Params)+len(fn.DiscoveredBody))
			for _, p := range fn.Params {
				scope[p.Name.Name] = &VarType{Type: p.Type.Name, IsStochastic: false}
			}
			for bodyVar := range fn.DiscoveredBody {
				if _, ok := scope[bodyVar]; !ok {
					scope[bodyVar] = &VarType{Type: "any", IsStochastic: false}
				}
			}

			newStochastic := inf.isUDFBodyStochastic(fn, scope)
			sig := inf.combined[name]
			if sig.IsStochastic != newStochastic {
				changed = true
			}
			sig.IsStochastic = newStochastic
			inf.combined[name] = sig
			inf.result.FuncStochastic[name] = newStochastic
		}
	}
}

func (inf *inferrer) isUDFBodyStochastic(fn *discovery.UDF, scope map[string]*VarType) bool {
	var returnStmt *ast.ReturnStatement
	for _, stmt := range fn.Body {
		if rs, ok := stmt.(*ast.ReturnStatement); ok {
			returnStmt = rs
			break
		}
	}
	if returnStmt == nil {
		return false
	}

	for _, stmt := range fn.Body {
		assignment, ok := stmt.(ast.Assignment)
		if !ok {
			continue
		}
		inf.applyAssignment(assignment, scope)
	}

	_, stochastic := inf.inferExprList(returnStmt.Values, scope)
	return stochastic
}

func (inf *inferrer) processGlobalScope() {
	mainAST := inf.table.ProcessedASTs[inf.table.MainFilePath]
	if mainAST == nil {
		return
	}
	for _, step := range mainAST.ExecutionSteps {
		inf.applyAssignment(step, inf.result.Globals)
	}
}

func (inf *inferrer) processFunctionScopes() {
	for _, name := range inf.sortedFuncNames() {
		fn := inf.table.Functions[name]
		scope := make(map[string]*VarType, len(fn.Params)+len(fn.DiscoveredBody))
		for _, p := range fn.Params {
			scope[p.Name.Name] = &VarType{Type: p.Type.Name, IsStochastic: false}
		}
		for _, stmt := range fn.Body {
			assignment, ok := stmt.(ast.Assignment)
			if !ok {
				continue
			}
			inf.applyAssignment(assignment, scope)
		}
		inf.result.FuncScopes[name] = scope
	}
}

// applyAssignment infers the type(s) of an assignment's right-hand side and
// records them in scope under its target name(s).
func (inf *inferrer) applyAssignment(a ast.Assignment, scope map[string]*VarType) {
	names := a.ResultNames()
	resultTypes, stochastic := inf.inferAssignmentRHS(a, scope)
	for i, name := range names {
		t := "any"
		if i < len(resultTypes) {
			t = resultTypes[i]
		}
		scope[name] = &VarType{Type: t, IsStochastic: stochastic}
	}
}

func (inf *inferrer) inferAssignmentRHS(a ast.Assignment, scope map[string]*VarType) (types []string, stochastic bool) {
	switch s := a.(type) {
	case *ast.LiteralAssignment:
		t, st := inf.inferExpr(s.Value, scope)
		return []string{t}, st
	case *ast.ExecutionAssignment:
		t, st := inf.inferExpr(s.Expression, scope)
		if multi, ok := signatures.MultiReturnTypes(t); ok {
			return multi, st
		}
		return []string{t}, st
	case *ast.ConditionalAssignment:
		t, st := inf.inferExpr(s.Expression, scope)
		return []string{t}, st
	case *ast.MultiAssignment:
		t, st := inf.inferExpr(s.Expression, scope)
		if multi, ok := signatures.MultiReturnTypes(t); ok {
			return multi, st
		}
		return []string{t}, st
	}
	return []string{"any"}, false
}

// inferExpr computes the type and stochasticity taint of a single
// expression node against scope.
func (inf *inferrer) inferExpr(e ast.Expr, scope map[string]*VarType) (string, bool) {
	switch n := e.(type) {
	case *ast.NumberLiteral:
		return "scalar", false
	case *ast.StringLiteral:
		return "string", false
	case *ast.BooleanLiteral:
		return "boolean", false
	case *ast.Identifier:
		if v, ok := scope[n.Name]; ok {
			return v.Type, v.IsStochastic
		}
		return "any", false
	case *ast.VectorLiteral:
		_, stochastic := inf.inferExprList(n.Items, scope)
		return "vector", stochastic
	case *ast.TupleLiteral:
		_, stochastic := inf.inferExprList(n.Items, scope)
		return "any", stochastic
	case *ast.ElementAccess:
		_, targetStochastic := inf.inferExpr(n.Target, scope)
		_, indexStochastic := inf.inferExpr(n.Index, scope)
		return "scalar", targetStochastic || indexStochastic
	case *ast.DeleteElement:
		_, targetStochastic := inf.inferExpr(n.Target, scope)
		_, indexStochastic := inf.inferExpr(n.Index, scope)
		return "vector", targetStochastic || indexStochastic
	case *ast.ConditionalExpression:
		_, condStochastic := inf.inferExpr(n.Condition, scope)
		thenType, thenStochastic := inf.inferExpr(n.Then, scope)
		_, elseStochastic := inf.inferExpr(n.Else, scope)
		return thenType, condStochastic || thenStochastic || elseStochastic
	case *ast.FunctionCall:
		argTypes, argsStochastic := inf.inferExprList(n.Args, scope)
		sig, ok := inf.combined[n.Function]
		if !ok {
			return "any", argsStochastic
		}
		stochastic := argsStochastic || sig.IsStochastic
		return sig.ResolveReturnType(argTypes), stochastic
	}
	return "any", false
}

func (inf *inferrer) inferExprList(exprs []ast.Expr, scope map[string]*VarType) ([]string, bool) {
	types := make([]string, len(exprs))
	stochastic := false
	for i, e := range exprs {
		t, st := inf.inferExpr(e, scope)
		types[i] = t
		if st {
			stochastic = true
		}
	}
	return types, stochastic
}
