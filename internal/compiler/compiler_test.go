package compiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/valuascript-lang/vsc/internal/core/bytecode"
	"github.com/valuascript-lang/vsc/internal/core/diag"
)

func compile(t *testing.T, source string) *bytecode.Recipe {
	t.Helper()
	result, err := Compile(source, Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Recipe)
	return result.Recipe
}

func compileErr(t *testing.T, source string) *diag.ValuaScriptError {
	t.Helper()
	_, err := Compile(source, Options{})
	require.Error(t, err)
	var vsErr *diag.ValuaScriptError
	require.ErrorAs(t, err, &vsErr)
	return vsErr
}

func operandType(op uint32) bytecode.OperandType {
	typ, _ := bytecode.UnpackOperand(op)
	return typ
}

func TestPureConstantFolding(t *testing.T) {
	recipe := compile(t, "@iterations=1\n@output=x\nlet x = 2 + 3 * 4\n")

	require.Equal(t, 1, recipe.SimulationConfig.NumTrials)
	require.Equal(t, "x", recipe.SimulationConfig.OutputVariable)
	require.Empty(t, recipe.PerTrialInstructions)
	require.Len(t, recipe.PreTrialInstructions, 1)

	instr := recipe.PreTrialInstructions[0]
	op, err := bytecode.LookupOpcode("copy_S_S")
	require.NoError(t, err)
	require.Equal(t, op, instr.Op)

	require.Equal(t, bytecode.ScalarConst, operandType(instr.Srcs[0]))
	require.Equal(t, bytecode.ScalarReg, operandType(instr.Dests[0]))
	require.Equal(t, []float64{14}, recipe.Constants.Scalar)
}

func TestStochasticPartitioning(t *testing.T) {
	recipe := compile(t, "@iterations=10000\n@output=z\n"+
		"let d_vec = GrowSerie(100, 0, 1)\n"+
		"let d     = d_vec[0]\n"+
		"let s     = Normal(0, 1)\n"+
		"let z     = d + s\n")

	require.Equal(t, 10000, recipe.SimulationConfig.NumTrials)
	require.Len(t, recipe.PreTrialInstructions, 2)
	require.Len(t, recipe.PerTrialInstructions, 2)

	growOp, _ := bytecode.LookupOpcode("GrowSerie_V_SSS")
	getOp, _ := bytecode.LookupOpcode("GetElement_S_VS")
	normalOp, _ := bytecode.LookupOpcode("Normal_S_SS")
	addOp, _ := bytecode.LookupOpcode("add_S_SS")

	require.Equal(t, growOp, recipe.PreTrialInstructions[0].Op)
	require.Equal(t, getOp, recipe.PreTrialInstructions[1].Op)
	require.Equal(t, normalOp, recipe.PerTrialInstructions[0].Op)
	require.Equal(t, addOp, recipe.PerTrialInstructions[1].Op)

	// The sampler appears exactly once per trial.
	samplerCount := 0
	for _, instr := range recipe.PerTrialInstructions {
		if instr.Op == normalOp {
			samplerCount++
		}
	}
	require.Equal(t, 1, samplerCount)
}

func TestUDFInlining(t *testing.T) {
	recipe := compile(t, "@iterations=1\n@output=y\n"+
		"func add_margin(r: scalar) -> scalar {\n"+
		"    let m = 0.1\n"+
		"    return r * (1 + m)\n"+
		"}\n"+
		"let r0 = 1000\n"+
		"let y  = add_margin(r0)\n")

	mulOp, _ := bytecode.LookupOpcode("multiply_S_SS")
	mulCount := 0
	for _, instr := range recipe.PreTrialInstructions {
		if instr.Op == mulOp {
			mulCount++
		}
	}
	require.Equal(t, 1, mulCount)
	require.Contains(t, recipe.Constants.Scalar, 1.1)
	require.Empty(t, recipe.PerTrialInstructions)
}

func TestMultiReturn(t *testing.T) {
	recipe := compile(t, "@iterations=1\n@output=amort\n"+
		"let assets, amort = CapitalizeExpenses(100, [50,60,70], 5)\n")

	ceOp, _ := bytecode.LookupOpcode("CapitalizeExpenses_SS_SVS")
	var found *bytecode.Instr
	for i := range recipe.PreTrialInstructions {
		if recipe.PreTrialInstructions[i].Op == ceOp {
			found = &recipe.PreTrialInstructions[i]
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Dests, 2)
	require.Equal(t, bytecode.ScalarReg, operandType(found.Dests[0]))
	require.Equal(t, bytecode.ScalarReg, operandType(found.Dests[1]))
	require.Len(t, found.Srcs, 3)
	require.Equal(t, bytecode.ScalarConst, operandType(found.Srcs[0]))
	require.Equal(t, bytecode.VectorConst, operandType(found.Srcs[1]))
	require.Equal(t, bytecode.ScalarConst, operandType(found.Srcs[2]))
	require.Equal(t, [][]float64{{50, 60, 70}}, recipe.Constants.Vector)
}

func TestCircularImportScenario(t *testing.T) {
	dir := t.TempDir()
	archive := txtar.Parse([]byte(`Two modules importing each other.
-- main.vs --
@iterations = 1
@output = y
@import "a.vs"
let y = 1
-- a.vs --
@module
@import "b.vs"
-- b.vs --
@module
@import "a.vs"
`))
	for _, f := range archive.Files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o644))
	}

	mainPath := filepath.Join(dir, "main.vs")
	source, err := os.ReadFile(mainPath)
	require.NoError(t, err)

	_, err = Compile(string(source), Options{FilePath: mainPath})
	var vsErr *diag.ValuaScriptError
	require.ErrorAs(t, err, &vsErr)
	require.Equal(t, diag.CircularImport, vsErr.Code)
	require.NotNil(t, vsErr.Span)
}

func TestBlackScholesStringArgument(t *testing.T) {
	recipe := compile(t, "@iterations=1\n@output=op\n"+
		"let op = BlackScholes(100, 110, 0.05, 0.5, 0.2, \"call\")\n")

	bsOp, _ := bytecode.LookupOpcode("BlackScholes_S_SSSSSSTR")
	require.Len(t, recipe.PreTrialInstructions, 1)
	instr := recipe.PreTrialInstructions[0]
	require.Equal(t, bsOp, instr.Op)
	require.Len(t, instr.Srcs, 6)
	for i := 0; i < 5; i++ {
		require.Equal(t, bytecode.ScalarConst, operandType(instr.Srcs[i]))
	}
	require.Equal(t, bytecode.StringConst, operandType(instr.Srcs[5]))
	require.Len(t, instr.Dests, 1)
	require.Equal(t, bytecode.ScalarReg, operandType(instr.Dests[0]))
	require.Equal(t, []string{"call"}, recipe.Constants.String)
}

func TestConditionalLowering(t *testing.T) {
	recipe := compile(t, "@iterations=1\n@output=x\n"+
		"let c = true\n"+
		"let s = Normal(0, 1)\n"+
		"let x = if s > 0 then 1 else 2\n")

	// The conditional depends on the sampler, so its jump sequence runs
	// per trial: gt, jump_if_false, then-copy, jump, else-copy.
	var sawJumpIfFalse, sawJump bool
	for _, instr := range recipe.PerTrialInstructions {
		switch instr.Op {
		case bytecode.OpJumpIfFalse:
			sawJumpIfFalse = true
			// Its jump target is a raw address inside the partition.
			require.Less(t, instr.Srcs[1], uint32(len(recipe.PerTrialInstructions)+1))
		case bytecode.OpJump:
			sawJump = true
		}
	}
	require.True(t, sawJumpIfFalse)
	require.True(t, sawJump)
}

func TestDeadCodeIsDropped(t *testing.T) {
	recipe := compile(t, "@iterations=1\n@output=used\n"+
		"let unused = GrowSerie(1, 0, 1)\n"+
		"let used = 5\n")

	growOp, _ := bytecode.LookupOpcode("GrowSerie_V_SSS")
	for _, instr := range recipe.PreTrialInstructions {
		require.NotEqual(t, growOp, instr.Op)
	}
	require.Equal(t, 0, recipe.VariableRegisterCounts["VECTOR"])
}

func TestRecipeClosure(t *testing.T) {
	recipe := compile(t, "@iterations=100\n@output=z\n"+
		"func vol_shock(base: scalar) -> scalar {\n"+
		"    let s = Lognormal(0, 0.25)\n"+
		"    return base * s\n"+
		"}\n"+
		"let flows = [10, 20, 30]\n"+
		"let base  = Npv(0.05, flows)\n"+
		"let z     = vol_shock(base)\n")

	counts := map[bytecode.OperandType]int{
		bytecode.ScalarReg:    recipe.VariableRegisterCounts["SCALAR"],
		bytecode.VectorReg:    recipe.VariableRegisterCounts["VECTOR"],
		bytecode.BooleanReg:   recipe.VariableRegisterCounts["BOOLEAN"],
		bytecode.StringReg:    recipe.VariableRegisterCounts["STRING"],
		bytecode.ScalarConst:  len(recipe.Constants.Scalar),
		bytecode.VectorConst:  len(recipe.Constants.Vector),
		bytecode.BooleanConst: len(recipe.Constants.Boolean),
		bytecode.StringConst:  len(recipe.Constants.String),
	}

	check := func(instrs []bytecode.Instr) {
		for _, instr := range instrs {
			if instr.Op == bytecode.OpJump || instr.Op == bytecode.OpJumpIfFalse {
				continue
			}
			for _, operand := range append(append([]uint32{}, instr.Dests...), instr.Srcs...) {
				typ, index := bytecode.UnpackOperand(operand)
				limit, known := counts[typ]
				require.True(t, known, "unknown operand type %d", typ)
				require.Less(t, index, limit)
			}
		}
	}
	check(recipe.PreTrialInstructions)
	check(recipe.PerTrialInstructions)
}

func TestDeterministicOutput(t *testing.T) {
	source := "@iterations=500\n@output=z\n" +
		"let v = [1, 2, 3]\n" +
		"let m = SumVector(v)\n" +
		"let s = Pert(1, 2, 3)\n" +
		"let z = m * s\n"

	first, err := json.Marshal(compile(t, source))
	require.NoError(t, err)
	second, err := json.Marshal(compile(t, source))
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestIterationsOverride(t *testing.T) {
	result, err := Compile("@iterations=10\n@output=x\nlet x = 1\n", Options{IterationsOverride: 777})
	require.NoError(t, err)
	require.Equal(t, 777, result.Recipe.SimulationConfig.NumTrials)
}

func TestOutputFileCarriedIntoRecipe(t *testing.T) {
	recipe := compile(t, "@iterations=1\n@output=x\n@output_file = \"out/results.csv\"\nlet x = 1\n")
	require.Equal(t, "out/results.csv", recipe.SimulationConfig.OutputFile)
}

func TestStagedCompilation(t *testing.T) {
	source := "@iterations=1\n@output=y\n" +
		"func inc(x: scalar) -> scalar { return x + 1 }\n" +
		"let y = inc(41)\n"

	for _, stage := range []Stage{StageAST, StageSymbolTable, StageTypeInference, StageSemanticValidation, StageIR, StageCopyPropagation, StageOptimizedIR, StagePartitionedIR} {
		result, err := Compile(source, Options{StopAfter: stage})
		require.NoError(t, err, "stage %s", stage)
		require.Nil(t, result.Recipe)
		require.NotNil(t, result.Artifact)
		require.Equal(t, stage, result.Stage)
	}
}

func TestErrorsStopThePipeline(t *testing.T) {
	cases := []struct {
		name   string
		source string
		code   diag.ErrorCode
	}{
		{"syntax", "let x = (\n", diag.SyntaxUnmatchedBracket},
		{"missing directive", "let x = 1\n", diag.MissingIterationsDirective},
		{"type error", "@iterations=1\n@output=x\nlet b = true\nlet x = b + 1\n", diag.OperatorTypeMismatch},
		{"recursion", "@iterations=1\n@output=x\nfunc f(a: scalar) -> scalar { return f(a) }\nlet x = 1\n", diag.RecursiveCallDetected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.code, compileErr(t, tc.source).Code)
		})
	}
}

func TestFullProgramWithImports(t *testing.T) {
	dir := t.TempDir()
	archive := txtar.Parse([]byte(`A runnable program split across modules.
-- main.vs --
@iterations = 200
@output = value
@import "lib/growth.vs"
let base = 100
let value = project(base, 0.08)
-- lib/growth.vs --
@module
func project(start: scalar, rate: scalar) -> scalar {
    let factor = 1 + rate
    return start * factor
}
`))
	for _, f := range archive.Files {
		path := filepath.Join(dir, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	}

	mainPath := filepath.Join(dir, "main.vs")
	source, err := os.ReadFile(mainPath)
	require.NoError(t, err)

	result, err := Compile(string(source), Options{FilePath: mainPath})
	require.NoError(t, err)
	require.Equal(t, 200, result.Recipe.SimulationConfig.NumTrials)
	require.Equal(t, "value", result.Recipe.SimulationConfig.OutputVariable)
	require.Empty(t, result.Recipe.PerTrialInstructions)
	require.NotEmpty(t, result.Recipe.PreTrialInstructions)
}
