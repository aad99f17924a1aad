package optimize

import (
	"reflect"
	"strings"

	"github.com/valuascript-lang/vsc/internal/core/ir"
	"github.com/valuascript-lang/vsc/internal/core/signatures"
)

// constantFolding evaluates pure built-in calls whose arguments are all
// literals, propagates literal assignments into their uses, and collapses
// conditionals with a literal condition to their taken branch. The whole
// pass repeats until the IR stops changing. Stochastic calls are never
// folded; a call whose folder declines (division by zero, log of a
// non-positive number, mismatched vector lengths) is left in place for the
// VM to execute.
type constantFolding struct{}

func (constantFolding) Name() string { return "constant_folding" }

func (constantFolding) Run(steps []ir.Step) []ir.Step {
	current := steps
	for {
		f := &folder{constants: make(map[string]ir.Value)}
		next := make([]ir.Step, len(current))
		for i, step := range current {
			next[i] = f.processStep(step)
		}
		if reflect.DeepEqual(next, current) {
			return next
		}
		current = next
	}
}

type folder struct {
	constants map[string]ir.Value
}

func (f *folder) processStep(step ir.Step) ir.Step {
	switch s := step.(type) {
	case *ir.LiteralAssignment:
		// Only compiler-introduced temporaries (mangled "__" names) join the
		// constant map; user-named literals stay addressable registers so the
		// recipe keeps the variables the script declares.
		if len(s.Result) == 1 && strings.HasPrefix(s.Result[0], "__") && ir.IsLiteral(s.Value) {
			f.constants[s.Result[0]] = s.Value
		}
		return s

	case *ir.ExecutionAssignment:
		args := make([]ir.Value, len(s.Args))
		for i, a := range s.Args {
			args[i] = f.eval(a)
		}
		if folded, ok := f.foldCall(s.Function, args); ok {
			return f.rewriteAsLiteral(s.Result, folded, s.LineNo)
		}
		return &ir.ExecutionAssignment{Result: s.Result, Function: s.Function, Args: args, LineNo: s.LineNo}

	case *ir.ConditionalAssignment:
		cond := f.eval(s.Condition)
		then := f.eval(s.Then)
		els := f.eval(s.Else)
		if b, ok := cond.(ir.Bool); ok {
			taken := then
			if !bool(b) {
				taken = els
			}
			return f.takenBranchStep(s.Result, taken, s.LineNo)
		}
		return &ir.ConditionalAssignment{Result: s.Result, Condition: cond, Then: then, Else: els, LineNo: s.LineNo}
	}
	return step
}

// eval resolves constants and folds nested expressions inside a value.
func (f *folder) eval(v ir.Value) ir.Value {
	switch n := v.(type) {
	case ir.Var:
		if c, ok := f.constants[string(n)]; ok {
			return c
		}
		return n
	case ir.List:
		out := make(ir.List, len(n))
		for i, item := range n {
			out[i] = f.eval(item)
		}
		return out
	case *ir.Call:
		args := make([]ir.Value, len(n.Args))
		for i, a := range n.Args {
			args[i] = f.eval(a)
		}
		if folded, ok := f.foldCall(n.Function, args); ok {
			return folded
		}
		return &ir.Call{Function: n.Function, Args: args}
	case *ir.Cond:
		cond := f.eval(n.Condition)
		then := f.eval(n.Then)
		els := f.eval(n.Else)
		if b, ok := cond.(ir.Bool); ok {
			if bool(b) {
				return then
			}
			return els
		}
		return &ir.Cond{Condition: cond, Then: then, Else: els}
	}
	return v
}

func (f *folder) foldCall(funcName string, args []ir.Value) (ir.Value, bool) {
	sig, ok := signatures.Registry[funcName]
	if !ok || sig.ConstFolder == nil || sig.IsStochastic {
		return nil, false
	}

	raw := make([]any, len(args))
	for i, a := range args {
		r, ok := literalToGo(a)
		if !ok {
			return nil, false
		}
		raw[i] = r
	}

	result, ok := sig.ConstFolder(raw)
	if !ok {
		return nil, false
	}
	return goToLiteral(result), true
}

// rewriteAsLiteral turns a fully-folded step into a literal assignment and
// records the new constant under the same temporary-only rule.
func (f *folder) rewriteAsLiteral(result []string, value ir.Value, line int) ir.Step {
	if len(result) == 1 && strings.HasPrefix(result[0], "__") {
		f.constants[result[0]] = value
	}
	return &ir.LiteralAssignment{Result: result, Value: value, LineNo: line}
}

// takenBranchStep rewrites a conditional assignment whose condition folded
// to a literal boolean into a plain assignment of the surviving branch.
func (f *folder) takenBranchStep(result []string, taken ir.Value, line int) ir.Step {
	switch v := taken.(type) {
	case *ir.Call:
		return &ir.ExecutionAssignment{Result: result, Function: v.Function, Args: v.Args, LineNo: line}
	case *ir.Cond:
		return &ir.ConditionalAssignment{Result: result, Condition: v.Condition, Then: v.Then, Else: v.Else, LineNo: line}
	case ir.Var:
		return &ir.ExecutionAssignment{Result: result, Function: "identity", Args: []ir.Value{v}, LineNo: line}
	default:
		return f.rewriteAsLiteral(result, taken, line)
	}
}

// literalToGo converts a literal IR value into the plain Go representation
// the signature const-folders operate on.
func literalToGo(v ir.Value) (any, bool) {
	switch n := v.(type) {
	case ir.Scalar:
		return float64(n), true
	case ir.Bool:
		return bool(n), true
	case ir.Str:
		return string(n), true
	case ir.List:
		vec := make([]float64, len(n))
		for i, item := range n {
			s, ok := item.(ir.Scalar)
			if !ok {
				return nil, false
			}
			vec[i] = float64(s)
		}
		return vec, true
	}
	return nil, false
}

func goToLiteral(v any) ir.Value {
	switch n := v.(type) {
	case float64:
		return ir.Scalar(n)
	case bool:
		return ir.Bool(n)
	case string:
		return ir.Str(n)
	case []float64:
		out := make(ir.List, len(n))
		for i, x := range n {
			out[i] = ir.Scalar(x)
		}
		return out
	}
	return nil
}
