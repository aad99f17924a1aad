package optimize

import (
	"github.com/valuascript-lang/vsc/internal/core/ir"
)

// deadCodeElimination removes every step whose results contribute nothing,
// directly or transitively, to the @output variable. Liveness propagates
// backward from the output root; a multi-assignment survives as long as at
// least one of its results is live.
type deadCodeElimination struct {
	output string
}

func (deadCodeElimination) Name() string { return "dead_code_elimination" }

func (d deadCodeElimination) Run(steps []ir.Step) []ir.Step {
	if d.output == "" {
		return steps
	}

	live := map[string]bool{d.output: true}
	for i := len(steps) - 1; i >= 0; i-- {
		if anyLive(steps[i].Results(), live) {
			for name := range ir.UsedVars(steps[i]) {
				live[name] = true
			}
		}
	}

	out := make([]ir.Step, 0, len(steps))
	for _, step := range steps {
		if anyLive(step.Results(), live) {
			out = append(out, step)
		}
	}
	return out
}

func anyLive(names []string, live map[string]bool) bool {
	for _, n := range names {
		if live[n] {
			return true
		}
	}
	return false
}
