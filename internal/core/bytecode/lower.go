package bytecode

import (
	"fmt"

	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/ir"
	"github.com/valuascript-lang/vsc/internal/core/partition"
	"github.com/valuascript-lang/vsc/internal/core/signatures"
	"github.com/valuascript-lang/vsc/internal/core/types"
)

var variadicFunctions = map[string]bool{
	"add": true, "multiply": true, "__and__": true, "__or__": true,
}

// lowerer implements phase 8a: it flattens nested expressions by lifting
// them into typed temporaries, decomposes variadic calls into binary
// chains, and rewrites conditional assignments and identity calls into the
// straight-line copy/jump/label forms the emitter understands.
//
// The temporary and label counters are shared across both partitions so
// names stay unique over the whole program. Lifted temporaries are
// registered in the model (as the IR generator's __temp_N temporaries were
// before them) so that later sub-phases can resolve their types.
type lowerer struct {
	model        *types.Result
	tempCounter  int
	labelCounter int
}

// Lower runs the full lowering pipeline over both partitions.
func Lower(p *partition.Partitioned, model *types.Result) (*partition.Partitioned, error) {
	l := &lowerer{model: model}

	pre, err := l.lowerList(p.PreTrial)
	if err != nil {
		return nil, err
	}
	per, err := l.lowerList(p.PerTrial)
	if err != nil {
		return nil, err
	}
	return &partition.Partitioned{PreTrial: pre, PerTrial: per}, nil
}

func (l *lowerer) lowerList(steps []ir.Step) ([]ir.Step, error) {
	flattened, err := l.flatten(steps)
	if err != nil {
		return nil, err
	}
	return l.lowerControlFlow(flattened), nil
}

// --- Expression flattening and variadic decomposition ---

func (l *lowerer) flatten(steps []ir.Step) ([]ir.Step, error) {
	var out []ir.Step
	for _, step := range steps {
		lifted, flat, err := l.liftStep(step)
		if err != nil {
			return nil, err
		}
		// Lifted instructions can themselves be variadic calls (a
		// parenthesized b + c + d lifts as one three-argument add), so they
		// go through the same decomposition as the rewritten step.
		for _, lift := range append(lifted, flat) {
			decomposed, err := l.decomposeVariadic(lift)
			if err != nil {
				return nil, err
			}
			out = append(out, decomposed...)
		}
	}
	return out, nil
}

// liftStep hoists every nested call and conditional out of the step's
// expressions, returning the hoisted assignments and the rewritten step.
func (l *lowerer) liftStep(step ir.Step) ([]ir.Step, ir.Step, error) {
	var lifted []ir.Step
	line := step.Line()

	switch s := step.(type) {
	case *ir.LiteralAssignment:
		value, err := l.liftChildren(s.Value, &lifted, line)
		if err != nil {
			return nil, nil, err
		}
		return lifted, &ir.LiteralAssignment{Result: s.Result, Value: value, LineNo: line}, nil

	case *ir.ExecutionAssignment:
		args := make([]ir.Value, len(s.Args))
		for i, a := range s.Args {
			v, err := l.liftValue(a, &lifted, line)
			if err != nil {
				return nil, nil, err
			}
			args[i] = v
		}
		return lifted, &ir.ExecutionAssignment{Result: s.Result, Function: s.Function, Args: args, LineNo: line}, nil

	case *ir.ConditionalAssignment:
		cond, err := l.liftValue(s.Condition, &lifted, line)
		if err != nil {
			return nil, nil, err
		}
		then, err := l.liftValue(s.Then, &lifted, line)
		if err != nil {
			return nil, nil, err
		}
		els, err := l.liftValue(s.Else, &lifted, line)
		if err != nil {
			return nil, nil, err
		}
		return lifted, &ir.ConditionalAssignment{Result: s.Result, Condition: cond, Then: then, Else: els, LineNo: line}, nil
	}
	return nil, step, nil
}

// liftValue lifts v itself into a temporary when it is a call or a
// conditional, after lifting its own children first.
func (l *lowerer) liftValue(v ir.Value, lifted *[]ir.Step, line int) (ir.Value, error) {
	v, err := l.liftChildren(v, lifted, line)
	if err != nil {
		return nil, err
	}

	switch n := v.(type) {
	case *ir.Call:
		returnTypes, stochastic, err := l.exprDetails(n)
		if err != nil {
			return nil, err
		}
		temps, err := l.newTemps(returnTypes, stochastic)
		if err != nil {
			return nil, err
		}
		*lifted = append(*lifted, &ir.ExecutionAssignment{Result: temps, Function: n.Function, Args: n.Args, LineNo: line})
		return tempsValue(temps), nil

	case *ir.Cond:
		returnTypes, stochastic, err := l.exprDetails(n)
		if err != nil {
			return nil, err
		}
		temps, err := l.newTemps(returnTypes, stochastic)
		if err != nil {
			return nil, err
		}
		*lifted = append(*lifted, &ir.ConditionalAssignment{Result: temps, Condition: n.Condition, Then: n.Then, Else: n.Else, LineNo: line})
		return tempsValue(temps), nil
	}
	return v, nil
}

// liftChildren recurses into a value's children, lifting any nested call
// or conditional found below the top level.
func (l *lowerer) liftChildren(v ir.Value, lifted *[]ir.Step, line int) (ir.Value, error) {
	switch n := v.(type) {
	case ir.List:
		out := make(ir.List, len(n))
		for i, item := range n {
			lv, err := l.liftValue(item, lifted, line)
			if err != nil {
				return nil, err
			}
			out[i] = lv
		}
		return out, nil
	case *ir.Call:
		args := make([]ir.Value, len(n.Args))
		for i, a := range n.Args {
			lv, err := l.liftValue(a, lifted, line)
			if err != nil {
				return nil, err
			}
			args[i] = lv
		}
		return &ir.Call{Function: n.Function, Args: args}, nil
	case *ir.Cond:
		cond, err := l.liftValue(n.Condition, lifted, line)
		if err != nil {
			return nil, err
		}
		then, err := l.liftValue(n.Then, lifted, line)
		if err != nil {
			return nil, err
		}
		els, err := l.liftValue(n.Else, lifted, line)
		if err != nil {
			return nil, err
		}
		return &ir.Cond{Condition: cond, Then: then, Else: els}, nil
	}
	return v, nil
}

func tempsValue(temps []string) ir.Value {
	if len(temps) == 1 {
		return ir.Var(temps[0])
	}
	out := make(ir.List, len(temps))
	for i, t := range temps {
		out[i] = ir.Var(t)
	}
	return out
}

// decomposeVariadic breaks an N-ary add/multiply/and/or (N > 2) into a
// left-folded chain of binary operations, each intermediate in a fresh
// typed temporary.
func (l *lowerer) decomposeVariadic(step ir.Step) ([]ir.Step, error) {
	ea, ok := step.(*ir.ExecutionAssignment)
	if !ok || !variadicFunctions[ea.Function] || len(ea.Args) <= 2 {
		return []ir.Step{step}, nil
	}

	sig := signatures.Registry[ea.Function]
	var out []ir.Step
	current := ea.Args[0]

	for i := 1; i < len(ea.Args); i++ {
		var result []string
		if i == len(ea.Args)-1 {
			result = ea.Result
		} else {
			leftTypes, leftStochastic, err := l.exprDetails(current)
			if err != nil {
				return nil, err
			}
			rightTypes, rightStochastic, err := l.exprDetails(ea.Args[i])
			if err != nil {
				return nil, err
			}
			resultType := sig.ResolveReturnType([]string{leftTypes[0], rightTypes[0]})
			result, err = l.newTemps([]string{resultType}, leftStochastic || rightStochastic)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, &ir.ExecutionAssignment{
			Result:   result,
			Function: ea.Function,
			Args:     []ir.Value{current, ea.Args[i]},
			LineNo:   ea.LineNo,
		})
		current = ir.Var(result[0])
	}
	return out, nil
}

// exprDetails reports the type(s) and stochasticity of a flat-or-nested
// value, consulting the model for variables and the signature table for
// calls.
func (l *lowerer) exprDetails(v ir.Value) ([]string, bool, error) {
	switch n := v.(type) {
	case ir.Scalar:
		return []string{"scalar"}, false, nil
	case ir.Bool:
		return []string{"boolean"}, false, nil
	case ir.Str:
		return []string{"string"}, false, nil
	case ir.List:
		stochastic := false
		for _, item := range n {
			_, st, err := l.exprDetails(item)
			if err != nil {
				return nil, false, err
			}
			stochastic = stochastic || st
		}
		return []string{"vector"}, stochastic, nil

	case ir.Var:
		vt, ok := l.model.LookupVar(string(n))
		if !ok {
			return nil, false, diag.NewInternalCompilerError("lowerer could not find type info for variable %q", string(n))
		}
		return []string{vt.Type}, vt.IsStochastic, nil

	case *ir.Cond:
		thenTypes, thenStochastic, err := l.exprDetails(n.Then)
		if err != nil {
			return nil, false, err
		}
		_, elseStochastic, err := l.exprDetails(n.Else)
		if err != nil {
			return nil, false, err
		}
		_, condStochastic, err := l.exprDetails(n.Condition)
		if err != nil {
			return nil, false, err
		}
		return thenTypes, thenStochastic || elseStochastic || condStochastic, nil

	case *ir.Call:
		sig, ok := l.model.Signatures[n.Function]
		if !ok {
			return nil, false, diag.NewInternalCompilerError("lowerer found unknown function %q", n.Function)
		}
		stochastic := sig.IsStochastic
		argTypes := make([]string, len(n.Args))
		for i, a := range n.Args {
			ts, st, err := l.exprDetails(a)
			if err != nil {
				return nil, false, err
			}
			argTypes[i] = ts[0]
			stochastic = stochastic || st
		}
		returnType := sig.ResolveReturnType(argTypes)
		if multi, ok := signatures.MultiReturnTypes(returnType); ok {
			return multi, stochastic, nil
		}
		return []string{returnType}, stochastic, nil
	}
	return nil, false, diag.NewInternalCompilerError("lowerer could not determine expression details for %T", v)
}

// newTemps mints one typed `__temp_lifted_N` per return type and registers
// them in the model.
func (l *lowerer) newTemps(varTypes []string, stochastic bool) ([]string, error) {
	names := make([]string, len(varTypes))
	for i, t := range varTypes {
		if t == "" || t == "any" {
			return nil, diag.NewInternalCompilerError("lowerer attempted to create a temporary with unresolved type %q", t)
		}
		l.tempCounter++
		name := fmt.Sprintf("__temp_lifted_%d", l.tempCounter)
		l.model.RegisterTemp(name, t, stochastic)
		names[i] = name
	}
	return names, nil
}

// --- Control-flow lowering ---

func (l *lowerer) lowerControlFlow(steps []ir.Step) []ir.Step {
	var out []ir.Step
	for _, step := range steps {
		switch s := step.(type) {
		case *ir.ConditionalAssignment:
			out = append(out, l.lowerConditional(s)...)
		case *ir.ExecutionAssignment:
			if s.Function == "identity" {
				out = append(out, lowerIdentity(s)...)
				continue
			}
			out = append(out, s)
		default:
			out = append(out, step)
		}
	}
	return out
}

// lowerIdentity rewrites identity into copies, splitting a multi-value
// source into one copy per destination.
func lowerIdentity(s *ir.ExecutionAssignment) []ir.Step {
	source := s.Args[0]
	if list, ok := source.(ir.List); ok && len(s.Result) > 1 {
		out := make([]ir.Step, len(s.Result))
		for i, result := range s.Result {
			out[i] = &ir.Copy{Result: []string{result}, Source: list[i], LineNo: s.LineNo}
		}
		return out
	}
	return []ir.Step{&ir.Copy{Result: s.Result, Source: source, LineNo: s.LineNo}}
}

func (l *lowerer) nextLabelPair() (string, string) {
	base := l.labelCounter
	l.labelCounter += 2
	return fmt.Sprintf("__else_label_%d", base), fmt.Sprintf("__end_label_%d", base+1)
}

// lowerConditional rewrites `let x = if c then a else b` into the
// canonical jump sequence:
//
//	jump_if_false c -> else
//	x <- a
//	jump end
//	else: x <- b
//	end:
func (l *lowerer) lowerConditional(s *ir.ConditionalAssignment) []ir.Step {
	elseLabel, endLabel := l.nextLabelPair()
	return []ir.Step{
		&ir.JumpIfFalse{Condition: s.Condition, Target: elseLabel, LineNo: s.LineNo},
		assignmentFromValue(s.Result, s.Then, s.LineNo),
		&ir.Jump{Target: endLabel, LineNo: s.LineNo},
		&ir.Label{Name: elseLabel, LineNo: s.LineNo},
		assignmentFromValue(s.Result, s.Else, s.LineNo),
		&ir.Label{Name: endLabel, LineNo: s.LineNo},
	}
}

// assignmentFromValue builds the branch body of a lowered conditional: a
// copy for variable sources, a literal assignment otherwise. Calls cannot
// appear here; lifting already hoisted them.
func assignmentFromValue(result []string, v ir.Value, line int) ir.Step {
	if _, ok := v.(ir.Var); ok {
		return &ir.Copy{Result: result, Source: v, LineNo: line}
	}
	return &ir.LiteralAssignment{Result: result, Value: v, LineNo: line}
}
