package optimize

import (
	"github.com/valuascript-lang/vsc/internal/core/ir"
)

// aliasResolution is the single-assignment analog of tuple forwarding: for
// `let y = identity(x)` where a strictly earlier single-result instruction
// defines x and no other step reads x, that instruction is retargeted to y
// and the alias dropped. This restores user-facing variable names after UDF
// return values travel through mangled temporaries.
type aliasResolution struct{}

func (aliasResolution) Name() string { return "alias_resolution" }

func (aliasResolution) Run(steps []ir.Step) []ir.Step {
	out := append([]ir.Step(nil), steps...)

	for {
		removed := -1

		for i, step := range out {
			ea, ok := step.(*ir.ExecutionAssignment)
			if !ok || ea.Function != "identity" || len(ea.Result) != 1 || len(ea.Args) != 1 {
				continue
			}
			source, ok := ea.Args[0].(ir.Var)
			if !ok {
				continue
			}

			if useCount(out, string(source)) != 1 {
				continue
			}

			sourceIdx := -1
			for j := i - 1; j >= 0; j-- {
				results := out[j].Results()
				if len(results) == 1 && results[0] == string(source) {
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

// useCount counts how many steps read the named variable.
func useCount(steps []ir.Step, name string) int {
	count := 0
	for _, step := range steps {
		if ir.UsedVars(step)[name] {
			count++
		}
	}
	return count
}
