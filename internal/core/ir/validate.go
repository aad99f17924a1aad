package ir

import (
	"sort"
	"strings"

	"github.com/valuascript-lang/vsc/internal/core/diag"
)

// ValidateDataFlow verifies the IR's data-flow integrity: every variable a
// step reads must have been written by a strictly earlier step. It runs
// after IR generation and again after every optimization pass; a failure is
// always a compiler bug, never a user error.
func ValidateDataFlow(steps []Step) error {
	defined := make(map[string]bool)
	for i, step := range steps {
		var undefined []string
		for name := range UsedVars(step) {
			if !defined[name] {
				undefined = append(undefined, name)
			}
		}
		if len(undefined) > 0 {
			sort.Strings(undefined)
			return diag.NewInternalCompilerError(
				"IR validation failed at step %d: variable(s) used before being defined: %s",
				i, strings.Join(undefined, ", "))
		}
		for _, name := range step.Results() {
			defined[name] = true
		}
	}
	return nil
}
