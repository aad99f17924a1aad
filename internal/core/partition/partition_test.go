package partition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valuascript-lang/vsc/internal/core/ir"
)

func TestPartitionSplitsByTaint(t *testing.T) {
	// The shape of a typical model: a deterministic series, a scalar read
	// from it, a sampler, and a variable mixing the two.
	steps := []ir.Step{
		&ir.ExecutionAssignment{Result: []string{"d_vec"}, Function: "GrowSerie", Args: []ir.Value{ir.Scalar(100), ir.Scalar(0), ir.Scalar(1)}, LineNo: 3},
		&ir.ExecutionAssignment{Result: []string{"d"}, Function: "GetElement", Args: []ir.Value{ir.Var("d_vec"), ir.Scalar(0)}, LineNo: 4},
		&ir.ExecutionAssignment{Result: []string{"s"}, Function: "Normal", Args: []ir.Value{ir.Scalar(0), ir.Scalar(1)}, LineNo: 5},
		&ir.ExecutionAssignment{Result: []string{"z"}, Function: "add", Args: []ir.Value{ir.Var("d"), ir.Var("s")}, LineNo: 6},
	}

	p := Partition(steps)

	require.Equal(t, []string{"d_vec"}, p.PreTrial[0].Results())
	require.Equal(t, []string{"d"}, p.PreTrial[1].Results())
	require.Len(t, p.PreTrial, 2)

	require.Equal(t, []string{"s"}, p.PerTrial[0].Results())
	require.Equal(t, []string{"z"}, p.PerTrial[1].Results())
	require.Len(t, p.PerTrial, 2)
}

func TestPartitionDisjointWrites(t *testing.T) {
	steps := []ir.Step{
		&ir.ExecutionAssignment{Result: []string{"a"}, Function: "Uniform", Args: []ir.Value{ir.Scalar(0), ir.Scalar(1)}, LineNo: 1},
		&ir.ExecutionAssignment{Result: []string{"b"}, Function: "add", Args: []ir.Value{ir.Var("a"), ir.Scalar(1)}, LineNo: 2},
		&ir.ExecutionAssignment{Result: []string{"c"}, Function: "add", Args: []ir.Value{ir.Scalar(1), ir.Scalar(2)}, LineNo: 3},
	}
	p := Partition(steps)

	written := map[string]string{}
	for _, s := range p.PreTrial {
		for _, r := range s.Results() {
			written[r] = "pre"
		}
	}
	for _, s := range p.PerTrial {
		for _, r := range s.Results() {
			_, clash := written[r]
			require.False(t, clash, "variable %s written in both partitions", r)
		}
	}
}

func TestPartitionNestedSamplerTaints(t *testing.T) {
	// The sampler hides inside a nested expression; the seeding pass has to
	// find it recursively.
	steps := []ir.Step{
		&ir.ExecutionAssignment{Result: []string{"x"}, Function: "add", Args: []ir.Value{
			ir.Scalar(1),
			&ir.Call{Function: "multiply", Args: []ir.Value{
				ir.Scalar(2),
				&ir.Call{Function: "Normal", Args: []ir.Value{ir.Scalar(0), ir.Scalar(1)}},
			}},
		}, LineNo: 1},
	}
	p := Partition(steps)
	require.Empty(t, p.PreTrial)
	require.Len(t, p.PerTrial, 1)
}

func TestPartitionTaintMonotonicity(t *testing.T) {
	// A long dependency chain off one sampler: every link must end up
	// per-trial, and adding steps never removes taint.
	steps := []ir.Step{
		&ir.ExecutionAssignment{Result: []string{"v0"}, Function: "Normal", Args: []ir.Value{ir.Scalar(0), ir.Scalar(1)}, LineNo: 1},
	}
	prev := "v0"
	for i := 1; i <= 10; i++ {
		name := prev + "x"
		steps = append(steps, &ir.ExecutionAssignment{
			Result: []string{name}, Function: "add", Args: []ir.Value{ir.Var(prev), ir.Scalar(1)}, LineNo: i + 1,
		})
		prev = name
	}
	p := Partition(steps)
	require.Empty(t, p.PreTrial)
	require.Len(t, p.PerTrial, len(steps))
}

func TestPartitionStableOrder(t *testing.T) {
	steps := []ir.Step{
		&ir.LiteralAssignment{Result: []string{"a"}, Value: ir.Scalar(1), LineNo: 1},
		&ir.ExecutionAssignment{Result: []string{"n"}, Function: "Normal", Args: []ir.Value{ir.Scalar(0), ir.Scalar(1)}, LineNo: 2},
		&ir.LiteralAssignment{Result: []string{"b"}, Value: ir.Scalar(2), LineNo: 3},
		&ir.ExecutionAssignment{Result: []string{"m"}, Function: "add", Args: []ir.Value{ir.Var("n"), ir.Scalar(1)}, LineNo: 4},
	}
	p := Partition(steps)
	require.Equal(t, []string{"a"}, p.PreTrial[0].Results())
	require.Equal(t, []string{"b"}, p.PreTrial[1].Results())
	require.Equal(t, []string{"n"}, p.PerTrial[0].Results())
	require.Equal(t, []string{"m"}, p.PerTrial[1].Results())
}
