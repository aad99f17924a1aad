package optimize

import (
	"strings"

	"github.com/valuascript-lang/vsc/internal/core/ir"
)

// copyPropagation removes the `identity` bindings the inliner introduced
// for UDF parameters: every single-result identity whose target is a
// mangled temporary (name starts with "__") and whose argument is a literal
// or a variable gets folded into its uses. Chained identities resolve to
// their final value before substitution.
type copyPropagation struct{}

func (copyPropagation) Name() string { return "copy_propagation" }

func (copyPropagation) Run(steps []ir.Step) []ir.Step {
	repl := make(map[string]ir.Value)
	remove := make(map[int]bool)

	for i, step := range steps {
		ea, ok := step.(*ir.ExecutionAssignment)
		if !ok || ea.Function != "identity" || len(ea.Result) != 1 || len(ea.Args) != 1 {
			continue
		}
		if !strings.HasPrefix(ea.Result[0], "__") {
			continue
		}
		arg := ea.Args[0]
		switch arg.(type) {
		case ir.Var, ir.Scalar, ir.Bool, ir.Str:
			repl[ea.Result[0]] = arg
			remove[i] = true
		case ir.List:
			if ir.IsLiteral(arg) {
				repl[ea.Result[0]] = arg
				remove[i] = true
			}
		}
	}

	if len(repl) == 0 {
		return steps
	}

	// Resolve chains (a -> b, b -> c becomes a -> c) to a fixed point.
	changed := true
	for changed {
		changed = false
		for name, val := range repl {
			v, ok := val.(ir.Var)
			if !ok {
				continue
			}
			next, ok := repl[string(v)]
			if ok && next != val {
				repl[name] = next
				changed = true
			}
		}
	}

	out := make([]ir.Step, 0, len(steps)-len(remove))
	for i, step := range steps {
		if remove[i] {
			continue
		}
		out = append(out, substituteStep(step, repl))
	}
	return out
}
