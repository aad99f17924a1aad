package bytecode

import (
	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/partition"
	"github.com/valuascript-lang/vsc/internal/core/types"
)

// SimulationConfig carries the directive-driven settings the VM needs to
// run the compiled recipe.
type SimulationConfig struct {
	NumTrials      int    `json:"num_trials"`
	OutputVariable string `json:"output_variable"`
	OutputFile     string `json:"output_file,omitempty"`
}

// Recipe is the final compilation artifact handed to the simulation VM.
type Recipe struct {
	SimulationConfig       SimulationConfig `json:"simulation_config"`
	VariableRegisterCounts map[string]int   `json:"variable_register_counts"`
	Constants              *ConstantPools   `json:"constants"`
	PreTrialInstructions   []Instr          `json:"pre_trial_instructions"`
	PerTrialInstructions   []Instr          `json:"per_trial_instructions"`
}

// Generate runs the three bytecode sub-phases (lowering, resource
// allocation, emission) and assembles the recipe. directives come from the
// main file's AST; the semantic validator has already vetted them.
func Generate(p *partition.Partitioned, model *types.Result, directives []*ast.Directive) (*Recipe, error) {
	lowered, err := Lower(p, model)
	if err != nil {
		return nil, err
	}

	regs, err := Allocate(lowered, model)
	if err != nil {
		return nil, err
	}

	pre, per, err := Emit(lowered, regs)
	if err != nil {
		return nil, err
	}

	recipe := &Recipe{
		SimulationConfig: simulationConfig(directives),
		VariableRegisterCounts: map[string]int{
			"SCALAR":  len(regs.VariableRegistries["SCALAR"]),
			"VECTOR":  len(regs.VariableRegistries["VECTOR"]),
			"BOOLEAN": len(regs.VariableRegistries["BOOLEAN"]),
			"STRING":  len(regs.VariableRegistries["STRING"]),
		},
		Constants:            regs.ConstantPools,
		PreTrialInstructions: pre,
		PerTrialInstructions: per,
	}
	return recipe, nil
}

func simulationConfig(directives []*ast.Directive) SimulationConfig {
	var cfg SimulationConfig
	for _, d := range directives {
		switch d.Name {
		case "iterations":
			if n, ok := d.Value.(*ast.NumberLiteral); ok {
				cfg.NumTrials = int(n.Value)
			}
		case "output":
			if id, ok := d.Value.(*ast.Identifier); ok {
				cfg.OutputVariable = id.Name
			}
		case "output_file":
			if s, ok := d.Value.(*ast.StringLiteral); ok {
				cfg.OutputFile = s.Value
			}
		}
	}
	return cfg
}
