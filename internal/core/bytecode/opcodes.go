// Package bytecode lowers the partitioned IR into the final recipe: flat
// instructions over typed registers and constant pools, encoded for the
// register-based simulation VM.
package bytecode

import "fmt"

// OperandType occupies the top 5 bits of a packed 32-bit operand. Values
// are pinned to the VM's wire contract; register types are 1-based so a
// packed operand never reads as all zeroes.
type OperandType uint32

const (
	ScalarReg  OperandType = 1
	VectorReg  OperandType = 2
	BooleanReg OperandType = 3
	StringReg  OperandType = 4

	ScalarConst  OperandType = 17
	VectorConst  OperandType = 18
	BooleanConst OperandType = 19
	StringConst  OperandType = 20
)

const (
	// operandIndexBits is the width of an operand's index field; the top 5
	// bits carry the OperandType.
	operandIndexBits = 27
	operandIndexMax  = (1 << operandIndexBits) - 1
)

// PackOperand encodes a typed index into the VM's 32-bit operand format.
func PackOperand(t OperandType, index int) uint32 {
	return uint32(t)<<operandIndexBits | uint32(index)
}

// UnpackOperand splits a packed operand back into its type and index.
func UnpackOperand(op uint32) (OperandType, int) {
	return OperandType(op >> operandIndexBits), int(op & operandIndexMax)
}

// The instruction set, keyed by `<name>_<dest type chars>_<src type chars>`
// with S=scalar, V=vector, B=boolean, STR=string. Values are pinned to the
// VM's enumeration and never renumbered; 45 (SirModel_VVV_SSSSSSS) stays
// reserved with no compiler path targeting it.
const (
	opHalt        uint32 = 0
	OpJump        uint32 = 1
	OpJumpIfFalse uint32 = 2
)

var opcodeByKey = map[string]uint32{
	// Data movement
	"copy_S_S":     3,
	"copy_V_V":     4,
	"copy_B_B":     5,
	"copy_STR_STR": 6,

	// Core arithmetic
	"add_S_SS":      7,
	"subtract_S_SS": 8,
	"multiply_S_SS": 9,
	"divide_S_SS":   10,
	"power_S_SS":    11,
	"add_V_VV":      12,
	"subtract_V_VV": 13,
	"multiply_V_VV": 14,
	"divide_V_VV":   15,
	"power_V_VV":    16,
	"add_V_VS":      17,
	"add_V_SV":      18,
	"subtract_V_VS": 19,
	"subtract_V_SV": 20,
	"multiply_V_VS": 21,
	"multiply_V_SV": 22,
	"divide_V_VS":   23,
	"divide_V_SV":   24,
	"power_V_VS":    25,
	"power_V_SV":    26,

	// Core math and logic
	"log_S_S":  27,
	"exp_S_S":  28,
	"not_B_B":  29,
	"and_B_BB": 30,
	"or_B_BB":  31,

	// Core comparison
	"gt_B_SS":      32,
	"lt_B_SS":      33,
	"gte_B_SS":     34,
	"lte_B_SS":     35,
	"eq_B_SS":      36,
	"neq_B_SS":     37,
	"eq_B_BB":      38,
	"neq_B_BB":     39,
	"eq_B_STRSTR":  40,
	"neq_B_STRSTR": 41,

	// Financial
	"BlackScholes_S_SSSSSSTR":  42,
	"CapitalizeExpenses_SS_SVS": 43,
	"Npv_S_SV":                  44,

	// 45 is SirModel_VVV_SSSSSSS, reserved.

	// Series and vector
	"SumVector_S_V":        46,
	"GetElement_S_VS":      47,
	"GrowSerie_V_SSS":      48,
	"InterpolateSerie_V_SSS": 49,
	"CompoundSerie_V_SV":   50,
	"VectorDelta_V_V":      51,
	"DeleteElement_V_VS":   52,

	// Statistical samplers
	"Normal_S_SS":      53,
	"Lognormal_S_SS":   54,
	"Beta_S_SS":        55,
	"Uniform_S_SS":     56,
	"Pert_S_SSS":       57,
	"Triangular_S_SSS": 58,
	"Bernoulli_S_S":    59,

	// Extended math (past the original enumeration, values stay stable)
	"log10_S_S": 60,
	"sin_S_S":   61,
	"cos_S_S":   62,
	"tan_S_S":   63,
}

// composeVectorArityBase numbers the ComposeVector family: ComposeVector
// takes one opcode per arity so the VM can preallocate the result.
const composeVectorArityBase = 64

func init() {
	key := "ComposeVector_V_"
	for arity := 1; arity <= 16; arity++ {
		key += "S"
		opcodeByKey[key] = uint32(composeVectorArityBase + arity - 1)
	}
}

// LookupOpcode resolves a canonical instruction key to its opcode value.
func LookupOpcode(key string) (uint32, error) {
	op, ok := opcodeByKey[key]
	if !ok {
		return 0, fmt.Errorf("no opcode for key %q", key)
	}
	return op, nil
}
