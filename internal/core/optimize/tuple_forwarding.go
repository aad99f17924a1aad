package optimize

import (
	"github.com/valuascript-lang/vsc/internal/core/ir"
)

// tupleForwarding collapses the multi-result identity an inlined
// multi-return call leaves behind (`let a, b = identity([t1, t2])`): the
// upstream instruction producing exactly [t1, t2] is retargeted to [a, b]
// and the identity removed. Repeats until no opportunity remains.
type tupleForwarding struct{}

func (tupleForwarding) Name() string { return "tuple_forwarding" }

func (tupleForwarding) Run(steps []ir.Step) []ir.Step {
	out := append([]ir.Step(nil), steps...)

	for {
		removed := -1

		for i, step := range out {
			ea, ok := step.(*ir.ExecutionAssignment)
			if !ok || ea.Function != "identity" || len(ea.Result) <= 1 || len(ea.Args) != 1 {
				continue
			}
			sourceVars, ok := varNames(ea.Args[0])
			if !ok || len(sourceVars) != len(ea.Result) {
				continue
			}

			sourceIdx := -1
			for j := i - 1; j >= 0; j-- {
				if sameNames(out[j].Results(), sourceVars) {
					sourceIdx = j
					break
				}
			}
			if sourceIdx == -1 {
				continue
			}

			out[sourceIdx] = retarget(out[sourceIdx], ea.Result)
			removed = i
			break
		}

		if removed == -1 {
			return out
		}
		out = append(out[:removed], out[removed+1:]...)
	}
}

// varNames unpacks a List of plain variable references; ok is false if any
// item is not a Var.
func varNames(v ir.Value) ([]string, bool) {
	list, ok := v.(ir.List)
	if !ok {
		return nil, false
	}
	names := make([]string, len(list))
	for i, item := range list {
		name, ok := item.(ir.Var)
		if !ok {
			return nil, false
		}
		names[i] = string(name)
	}
	return names, true
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// retarget returns step with its result list replaced.
func retarget(s ir.Step, result []string) ir.Step {
	switch n := s.(type) {
	case *ir.LiteralAssignment:
		return &ir.LiteralAssignment{Result: result, Value: n.Value, LineNo: n.LineNo}
	case *ir.ExecutionAssignment:
		return &ir.ExecutionAssignment{Result: result, Function: n.Function, Args: n.Args, LineNo: n.LineNo}
	case *ir.ConditionalAssignment:
		return &ir.ConditionalAssignment{Result: result, Condition: n.Condition, Then: n.Then, Else: n.Else, LineNo: n.LineNo}
	case *ir.Copy:
		return &ir.Copy{Result: result, Source: n.Source, LineNo: n.LineNo}
	}
	return s
}
