// Package optimize contains the five IR-to-IR optimization passes: copy
// propagation, tuple forwarding, alias resolution, constant folding, and
// dead-code elimination. Each pass returns a fresh IR and is re-checked by
// the IR data-flow validator before the next pass runs.
package optimize

import (
	"github.com/valuascript-lang/vsc/internal/core/ir"
)

// Pass is one IR-to-IR transformation.
type Pass interface {
	Name() string
	Run(steps []ir.Step) []ir.Step
}

// Pipeline returns the five passes in their canonical order. outputVar
// names the variable dead-code elimination keeps alive.
func Pipeline(outputVar string) []Pass {
	return []Pass{
		copyPropagation{},
		tupleForwarding{},
		aliasResolution{},
		constantFolding{},
		deadCodeElimination{output: outputVar},
	}
}

// RunPasses executes the given passes in order, validating the IR after
// each one. A validation failure is an internal compiler error: the pass
// broke data flow the generator had established.
func RunPasses(steps []ir.Step, passes []Pass) ([]ir.Step, error) {
	current := steps
	for _, pass := range passes {
		current = pass.Run(current)
		if err := ir.ValidateDataFlow(current); err != nil {
			return nil, err
		}
	}
	return current, nil
}

// Run executes the full canonical pipeline.
func Run(steps []ir.Step, outputVar string) ([]ir.Step, error) {
	return RunPasses(steps, Pipeline(outputVar))
}

// substituteValue returns v with every variable present in repl swapped for
// its replacement, rebuilding containers as needed.
func substituteValue(v ir.Value, repl map[string]ir.Value) ir.Value {
	switch n := v.(type) {
	case ir.Var:
		if r, ok := repl[string(n)]; ok {
			return r
		}
		return n
	case ir.List:
		out := make(ir.List, len(n))
		for i, item := range n {
			out[i] = substituteValue(item, repl)
		}
		return out
	case *ir.Call:
		args := make([]ir.Value, len(n.Args))
		for i, a := range n.Args {
			args[i] = substituteValue(a, repl)
		}
		return &ir.Call{Function: n.Function, Args: args}
	case *ir.Cond:
		return &ir.Cond{
			Condition: substituteValue(n.Condition, repl),
			Then:      substituteValue(n.Then, repl),
			Else:      substituteValue(n.Else, repl),
		}
	}
	return v
}

// substituteStep rewrites one step's input values through repl, leaving the
// result variables untouched.
func substituteStep(s ir.Step, repl map[string]ir.Value) ir.Step {
	switch n := s.(type) {
	case *ir.LiteralAssignment:
		return &ir.LiteralAssignment{Result: n.Result, Value: substituteValue(n.Value, repl), LineNo: n.LineNo}
	case *ir.ExecutionAssignment:
		args := make([]ir.Value, len(n.Args))
		for i, a := range n.Args {
			args[i] = substituteValue(a, repl)
		}
		return &ir.ExecutionAssignment{Result: n.Result, Function: n.Function, Args: args, LineNo: n.LineNo}
	case *ir.ConditionalAssignment:
		return &ir.ConditionalAssignment{
			Result:    n.Result,
			Condition: substituteValue(n.Condition, repl),
			Then:      substituteValue(n.Then, repl),
			Else:      substituteValue(n.Else, repl),
			LineNo:    n.LineNo,
		}
	case *ir.Copy:
		return &ir.Copy{Result: n.Result, Source: substituteValue(n.Source, repl), LineNo: n.LineNo}
	}
	return s
}
