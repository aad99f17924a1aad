// Package partition splits the optimized IR into the block executed once
// before the Monte Carlo loop and the block executed on every trial, by
// running a taint fixpoint over the linear IR: a step is per-trial exactly
// when its value can differ between trials.
package partition

import (
	"github.com/valuascript-lang/vsc/internal/core/ir"
	"github.com/valuascript-lang/vsc/internal/core/signatures"
)

// Partitioned is the two-way split of the IR. Relative order inside each
// block preserves the original IR order.
type Partitioned struct {
	PreTrial []ir.Step
	PerTrial []ir.Step
}

var stochasticBuiltins = func() map[string]bool {
	out := make(map[string]bool)
	for name, sig := range signatures.Registry {
		if sig.IsStochastic {
			out[name] = true
		}
	}
	return out
}()

// Partition runs the taint fixpoint and splits steps accordingly.
func Partition(steps []ir.Step) *Partitioned {
	tainted := taintedVars(steps)

	p := &Partitioned{}
	for _, step := range steps {
		if anyTainted(step.Results(), tainted) {
			p.PerTrial = append(p.PerTrial, step)
		} else {
			p.PreTrial = append(p.PreTrial, step)
		}
	}
	return p
}

// taintedVars seeds taint from every step that calls a stochastic sampler
// anywhere in its expressions, then propagates through data dependencies
// until nothing changes.
func taintedVars(steps []ir.Step) map[string]bool {
	tainted := make(map[string]bool)

	for _, step := range steps {
		if ir.ContainsCallTo(step, stochasticBuiltins) {
			for _, name := range step.Results() {
				tainted[name] = true
			}
		}
	}

	for {
		changed := false
		for _, step := range steps {
			if allTainted(step.Results(), tainted) {
				continue
			}
			inputTainted := false
			for name := range ir.UsedVars(step) {
				if tainted[name] {
					inputTainted = true
					break
				}
			}
			if !inputTainted {
				continue
			}
			for _, name := range step.Results() {
				if !tainted[name] {
					tainted[name] = true
					changed = true
				}
			}
		}
		if !changed {
			return tainted
		}
	}
}

func anyTainted(names []string, tainted map[string]bool) bool {
	for _, n := range names {
		if tainted[n] {
			return true
		}
	}
	return false
}

func allTainted(names []string, tainted map[string]bool) bool {
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !tainted[n] {
			return false
		}
	}
	return true
}
