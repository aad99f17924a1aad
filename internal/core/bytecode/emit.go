package bytecode

import (
	"strings"

	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/ir"
	"github.com/valuascript-lang/vsc/internal/core/partition"
)

// Instr is one encoded VM instruction. Operands are packed per the 5/27
// bit scheme except jump targets, which are raw instruction addresses.
type Instr struct {
	Op    uint32   `json:"op"`
	Dests []uint32 `json:"dests"`
	Srcs  []uint32 `json:"srcs"`
	Line  int      `json:"line"`
}

var typeChar = map[string]string{"SCALAR": "S", "VECTOR": "V", "BOOLEAN": "B", "STRING": "STR"}

var regOperandType = map[string]OperandType{
	"SCALAR": ScalarReg, "VECTOR": VectorReg, "BOOLEAN": BooleanReg, "STRING": StringReg,
}

var constOperandType = map[string]OperandType{
	"SCALAR": ScalarConst, "VECTOR": VectorConst, "BOOLEAN": BooleanConst, "STRING": StringConst,
}

// emitter implements phase 8c: the mechanical link-and-emit translation of
// the lowered IR into integer instructions.
type emitter struct {
	regs *Registries
}

// Emit encodes both partitions.
func Emit(p *partition.Partitioned, regs *Registries) (pre, per []Instr, err error) {
	e := &emitter{regs: regs}
	pre, err = e.emitPartition(p.PreTrial)
	if err != nil {
		return nil, nil, err
	}
	per, err = e.emitPartition(p.PerTrial)
	if err != nil {
		return nil, nil, err
	}
	return pre, per, nil
}

func (e *emitter) emitPartition(steps []ir.Step) ([]Instr, error) {
	// Link pass: labels collapse to the address of the next real
	// instruction.
	labels := map[string]int{}
	var linked []ir.Step
	for _, step := range steps {
		if lbl, ok := step.(*ir.Label); ok {
			labels[lbl.Name] = len(linked)
			continue
		}
		linked = append(linked, step)
	}

	out := make([]Instr, 0, len(linked))
	for _, step := range linked {
		switch s := step.(type) {
		case *ir.ExecutionAssignment:
			instr, err := e.encodeOp(s.Function, s.Result, s.Args, s.LineNo)
			if err != nil {
				return nil, err
			}
			out = append(out, instr)

		case *ir.Copy:
			if list, ok := s.Source.(ir.List); ok && len(s.Result) == len(list) && len(list) > 1 {
				for i, dest := range s.Result {
					instr, err := e.encodeOp("copy", []string{dest}, []ir.Value{list[i]}, s.LineNo)
					if err != nil {
						return nil, err
					}
					out = append(out, instr)
				}
				continue
			}
			instr, err := e.encodeOp("copy", s.Result, []ir.Value{s.Source}, s.LineNo)
			if err != nil {
				return nil, err
			}
			out = append(out, instr)

		case *ir.LiteralAssignment:
			instr, err := e.encodeOp("copy", s.Result, []ir.Value{s.Value}, s.LineNo)
			if err != nil {
				return nil, err
			}
			out = append(out, instr)

		case *ir.Jump:
			addr, ok := labels[s.Target]
			if !ok {
				return nil, diag.NewInternalCompilerError("emitter found unresolved label %q", s.Target)
			}
			out = append(out, Instr{Op: OpJump, Dests: []uint32{}, Srcs: []uint32{uint32(addr)}, Line: s.LineNo})

		case *ir.JumpIfFalse:
			addr, ok := labels[s.Target]
			if !ok {
				return nil, diag.NewInternalCompilerError("emitter found unresolved label %q", s.Target)
			}
			cond, err := e.resolveOperand(s.Condition)
			if err != nil {
				return nil, err
			}
			out = append(out, Instr{Op: OpJumpIfFalse, Dests: []uint32{}, Srcs: []uint32{cond, uint32(addr)}, Line: s.LineNo})

		default:
			return nil, diag.NewInternalCompilerError("emitter cannot encode step %T", step)
		}
	}
	return out, nil
}

func (e *emitter) encodeOp(funcName string, results []string, srcs []ir.Value, line int) (Instr, error) {
	op, err := e.resolveOpcode(funcName, results, srcs)
	if err != nil {
		return Instr{}, err
	}

	dests := make([]uint32, len(results))
	for i, r := range results {
		ref, ok := e.regs.VariableMap[r]
		if !ok {
			return Instr{}, diag.NewInternalCompilerError("emitter found unallocated variable %q", r)
		}
		dests[i] = PackOperand(regOperandType[ref.Type], ref.Index)
	}

	encoded := make([]uint32, len(srcs))
	for i, src := range srcs {
		operand, err := e.resolveOperand(src)
		if err != nil {
			return Instr{}, err
		}
		encoded[i] = operand
	}
	return Instr{Op: op, Dests: dests, Srcs: encoded, Line: line}, nil
}

func (e *emitter) resolveOperand(v ir.Value) (uint32, error) {
	if name, ok := v.(ir.Var); ok {
		ref, ok := e.regs.VariableMap[string(name)]
		if !ok {
			return 0, diag.NewInternalCompilerError("emitter found unallocated variable %q", string(name))
		}
		return PackOperand(regOperandType[ref.Type], ref.Index), nil
	}
	ref, ok := e.regs.ConstantMap[canonicalKey(v)]
	if !ok {
		return 0, diag.NewInternalCompilerError("emitter found uninterned constant %v", v)
	}
	return PackOperand(constOperandType[ref.Type], ref.Index), nil
}

func (e *emitter) operandTypeName(v ir.Value) (string, error) {
	if name, ok := v.(ir.Var); ok {
		ref, ok := e.regs.VariableMap[string(name)]
		if !ok {
			return "", diag.NewInternalCompilerError("emitter found unallocated variable %q", string(name))
		}
		return ref.Type, nil
	}
	ref, ok := e.regs.ConstantMap[canonicalKey(v)]
	if !ok {
		return "", diag.NewInternalCompilerError("emitter found uninterned constant %v", v)
	}
	return ref.Type, nil
}

// resolveOpcode builds the canonical `<name>_<dests>_<srcs>` key from the
// operand types and looks it up. A miss is an internal compiler error: the
// validator should have rejected any program that could produce one.
func (e *emitter) resolveOpcode(funcName string, results []string, srcs []ir.Value) (uint32, error) {
	name := funcName
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		name = strings.Trim(name, "_")
	}

	var destKey strings.Builder
	for _, r := range results {
		ref, ok := e.regs.VariableMap[r]
		if !ok {
			return 0, diag.NewInternalCompilerError("emitter found unallocated variable %q", r)
		}
		destKey.WriteString(typeChar[ref.Type])
	}

	var srcKey strings.Builder
	for _, src := range srcs {
		t, err := e.operandTypeName(src)
		if err != nil {
			return 0, err
		}
		srcKey.WriteString(typeChar[t])
	}

	key := name + "_" + destKey.String() + "_" + srcKey.String()
	op, err := LookupOpcode(key)
	if err != nil {
		return 0, diag.NewInternalCompilerError("emitter could not resolve opcode: %v", err)
	}
	return op, nil
}
