package bytecode

import (
	"sort"
	"strconv"
	"strings"

	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/ir"
	"github.com/valuascript-lang/vsc/internal/core/partition"
	"github.com/valuascript-lang/vsc/internal/core/types"
)

// Ref locates a variable or constant inside its typed registry.
type Ref struct {
	Type  string // "SCALAR", "VECTOR", "BOOLEAN", "STRING"
	Index int
}

// ConstantPools holds the deduplicated literal values per type, in the
// exact order instructions reference them.
type ConstantPools struct {
	Scalar  []float64   `json:"SCALAR"`
	Vector  [][]float64 `json:"VECTOR"`
	Boolean []bool      `json:"BOOLEAN"`
	String  []string    `json:"STRING"`
}

// Registries is the output of phase 8b: every variable and constant in the
// lowered IR, classified and indexed.
type Registries struct {
	VariableRegistries map[string][]string
	VariableMap        map[string]Ref
	ConstantPools      *ConstantPools
	ConstantMap        map[string]Ref
}

// allocator implements phase 8b.
type allocator struct {
	model *types.Result
	out   *Registries
}

// Allocate scans the fully lowered IR and builds the typed registries.
func Allocate(p *partition.Partitioned, model *types.Result) (*Registries, error) {
	a := &allocator{
		model: model,
		out: &Registries{
			VariableRegistries: map[string][]string{"SCALAR": {}, "VECTOR": {}, "BOOLEAN": {}, "STRING": {}},
			VariableMap:        make(map[string]Ref),
			ConstantPools: &ConstantPools{
				Scalar:  []float64{},
				Vector:  [][]float64{},
				Boolean: []bool{},
				String:  []string{},
			},
			ConstantMap: make(map[string]Ref),
		},
	}

	full := append(append([]ir.Step{}, p.PreTrial...), p.PerTrial...)
	a.allocateConstants(full)
	if err := a.allocateVariables(full); err != nil {
		return nil, err
	}
	return a.out, nil
}

// canonicalKey is the deduplication key for a literal value, shared with
// the emitter so both sides agree on pool addressing.
func canonicalKey(v ir.Value) string {
	switch n := v.(type) {
	case ir.Scalar:
		return "s_" + strconv.FormatFloat(float64(n), 'g', -1, 64)
	case ir.Bool:
		return "b_" + strconv.FormatBool(bool(n))
	case ir.Str:
		return "str_" + string(n)
	case ir.List:
		parts := make([]string, len(n))
		for i, item := range n {
			parts[i] = canonicalKey(item)
		}
		return "v_" + strings.Join(parts, "_")
	}
	return ""
}

func (a *allocator) allocateConstants(steps []ir.Step) {
	for _, step := range steps {
		switch s := step.(type) {
		case *ir.LiteralAssignment:
			a.findLiterals(s.Value)
		case *ir.ExecutionAssignment:
			for _, arg := range s.Args {
				a.findLiterals(arg)
			}
		case *ir.ConditionalAssignment:
			a.findLiterals(s.Condition)
			a.findLiterals(s.Then)
			a.findLiterals(s.Else)
		case *ir.Copy:
			a.findLiterals(s.Source)
		case *ir.JumpIfFalse:
			a.findLiterals(s.Condition)
		}
	}
}

func (a *allocator) findLiterals(v ir.Value) {
	switch n := v.(type) {
	case ir.Scalar:
		a.intern(v, "SCALAR", func() { a.out.ConstantPools.Scalar = append(a.out.ConstantPools.Scalar, float64(n)) })
	case ir.Bool:
		a.intern(v, "BOOLEAN", func() { a.out.ConstantPools.Boolean = append(a.out.ConstantPools.Boolean, bool(n)) })
	case ir.Str:
		a.intern(v, "STRING", func() { a.out.ConstantPools.String = append(a.out.ConstantPools.String, string(n)) })
	case ir.List:
		if ir.IsLiteral(n) {
			a.intern(v, "VECTOR", func() {
				vec := make([]float64, len(n))
				for i, item := range n {
					vec[i] = float64(item.(ir.Scalar))
				}
				a.out.ConstantPools.Vector = append(a.out.ConstantPools.Vector, vec)
			})
			return
		}
		for _, item := range n {
			a.findLiterals(item)
		}
	case *ir.Call:
		for _, arg := range n.Args {
			a.findLiterals(arg)
		}
	case *ir.Cond:
		a.findLiterals(n.Condition)
		a.findLiterals(n.Then)
		a.findLiterals(n.Else)
	}
}

func (a *allocator) intern(v ir.Value, poolType string, appendValue func()) {
	key := canonicalKey(v)
	if _, ok := a.out.ConstantMap[key]; ok {
		return
	}
	index := a.poolLen(poolType)
	a.out.ConstantMap[key] = Ref{Type: poolType, Index: index}
	appendValue()
}

func (a *allocator) poolLen(poolType string) int {
	switch poolType {
	case "SCALAR":
		return len(a.out.ConstantPools.Scalar)
	case "VECTOR":
		return len(a.out.ConstantPools.Vector)
	case "BOOLEAN":
		return len(a.out.ConstantPools.Boolean)
	default:
		return len(a.out.ConstantPools.String)
	}
}

func (a *allocator) allocateVariables(steps []ir.Step) error {
	names := map[string]bool{}
	for _, step := range steps {
		for _, r := range step.Results() {
			names[r] = true
		}
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		vt, ok := a.model.LookupVar(name)
		if !ok {
			return diag.NewInternalCompilerError("allocator could not find type for variable %q", name)
		}
		regType := strings.ToUpper(vt.Type)
		registry, ok := a.out.VariableRegistries[regType]
		if !ok {
			return diag.NewInternalCompilerError("allocator cannot register variable %q of type %q", name, vt.Type)
		}
		index := len(registry)
		if index > operandIndexMax {
			return diag.NewInternalCompilerError("register index overflow for %q", name)
		}
		a.out.VariableRegistries[regType] = append(registry, name)
		a.out.VariableMap[name] = Ref{Type: regType, Index: index}
	}
	return nil
}
