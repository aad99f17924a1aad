// Package compiler glues the eight pipeline stages together: parse,
// discover symbols, infer types, validate, generate IR, optimize,
// partition, and emit bytecode. Each stage's output feeds the next
// unchanged; the first error aborts the compilation.
package compiler

import (
	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/bytecode"
	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/discovery"
	"github.com/valuascript-lang/vsc/internal/core/ir"
	"github.com/valuascript-lang/vsc/internal/core/optimize"
	"github.com/valuascript-lang/vsc/internal/core/partition"
	"github.com/valuascript-lang/vsc/internal/core/parser"
	"github.com/valuascript-lang/vsc/internal/core/types"
	"github.com/valuascript-lang/vsc/internal/core/validate"
)

// Stage identifies a point in the pipeline the compilation can stop after,
// for inspecting intermediate artifacts.
type Stage string

const (
	StageNone               Stage = ""   // run the full pipeline
	StageAST                Stage = "1"  // parsed AST
	StageSymbolTable        Stage = "2"  // discovered symbols
	StageTypeInference      Stage = "3"  // inferred types and taints
	StageSemanticValidation Stage = "4"  // validated model
	StageIR                 Stage = "5"  // linear IR, UDFs inlined
	StageCopyPropagation    Stage = "6a" // IR after the first optimization pass
	StageOptimizedIR        Stage = "6"  // fully optimized IR
	StagePartitionedIR      Stage = "7"  // pre-trial / per-trial split
)

// StageNames maps each stop point to the artifact name the CLI reports.
var StageNames = map[Stage]string{
	StageAST:                "ast",
	StageSymbolTable:        "symbol_table",
	StageTypeInference:      "type_inference",
	StageSemanticValidation: "semantic_validation",
	StageIR:                 "ir",
	StageCopyPropagation:    "copy_propagation",
	StageOptimizedIR:        "optimized_ir",
	StagePartitionedIR:      "partitioned_ir",
}

// Options controls a single compilation.
type Options struct {
	// FilePath is the absolute path of the main source file, or empty when
	// the source was read from stdin (which disables @import).
	FilePath string
	// StopAfter halts the pipeline after the named stage and returns its
	// artifact instead of a recipe.
	StopAfter Stage
	// IterationsOverride, when positive, replaces the script's @iterations
	// value in the emitted recipe.
	IterationsOverride int
}

// Result is a successful compilation: the recipe for a full run, or the
// requested intermediate artifact for a staged one.
type Result struct {
	Recipe   *bytecode.Recipe
	Artifact any
	Stage    Stage
}

// Compile runs the pipeline over one source text.
func Compile(source string, opts Options) (*Result, error) {
	root, err := parser.Parse(source, opts.FilePath)
	if err != nil {
		return nil, err
	}
	if opts.StopAfter == StageAST {
		return &Result{Artifact: root, Stage: StageAST}, nil
	}

	table, err := discovery.Discover(root, opts.FilePath)
	if err != nil {
		return nil, err
	}
	if opts.StopAfter == StageSymbolTable {
		return &Result{Artifact: table, Stage: StageSymbolTable}, nil
	}

	model := types.Infer(table)
	if opts.StopAfter == StageTypeInference {
		return &Result{Artifact: model, Stage: StageTypeInference}, nil
	}

	if err := validate.Validate(table, model); err != nil {
		return nil, err
	}
	if opts.StopAfter == StageSemanticValidation {
		return &Result{Artifact: model, Stage: StageSemanticValidation}, nil
	}

	steps, err := ir.Generate(table, model)
	if err != nil {
		return nil, err
	}
	if err := ir.ValidateDataFlow(steps); err != nil {
		return nil, err
	}
	if opts.StopAfter == StageIR {
		return &Result{Artifact: steps, Stage: StageIR}, nil
	}

	outputVar := outputVariable(table)
	passes := optimize.Pipeline(outputVar)

	if opts.StopAfter == StageCopyPropagation {
		optimized, err := optimize.RunPasses(steps, passes[:1])
		if err != nil {
			return nil, err
		}
		return &Result{Artifact: optimized, Stage: StageCopyPropagation}, nil
	}

	optimized, err := optimize.RunPasses(steps, passes)
	if err != nil {
		return nil, err
	}
	if opts.StopAfter == StageOptimizedIR {
		return &Result{Artifact: optimized, Stage: StageOptimizedIR}, nil
	}

	partitioned := partition.Partition(optimized)
	if opts.StopAfter == StagePartitionedIR {
		return &Result{Artifact: partitioned, Stage: StagePartitionedIR}, nil
	}

	mainAST := table.ProcessedASTs[table.MainFilePath]
	if isModuleFile(mainAST) {
		return nil, diag.NewValuaScriptError(diag.MissingOutputDirective, nil, table.MainFilePath, nil)
	}

	recipe, err := bytecode.Generate(partitioned, model, mainAST.Directives)
	if err != nil {
		return nil, err
	}
	if opts.IterationsOverride > 0 {
		recipe.SimulationConfig.NumTrials = opts.IterationsOverride
	}
	return &Result{Recipe: recipe}, nil
}

func outputVariable(table *discovery.SymbolTable) string {
	mainAST := table.ProcessedASTs[table.MainFilePath]
	for _, d := range mainAST.Directives {
		if d.Name == "output" {
			if id, ok := d.Value.(*ast.Identifier); ok {
				return id.Name
			}
		}
	}
	return ""
}

func isModuleFile(root *ast.Root) bool {
	for _, d := range root.Directives {
		if d.Name == "module" {
			return true
		}
	}
	return false
}
