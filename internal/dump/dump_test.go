package dump

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/valuascript-lang/vsc/internal/compiler"
)

const source = "@iterations = 5\n@output = z\n" +
	"let c = true\n" +
	"let z = if c then Normal(0, 1) else 0\n"

func artifactAt(t *testing.T, stage compiler.Stage) any {
	t.Helper()
	result, err := compiler.Compile(source, compiler.Options{StopAfter: stage})
	require.NoError(t, err)
	return result.Artifact
}

func TestMarshalASTAsJSON(t *testing.T) {
	data, err := Marshal(artifactAt(t, compiler.StageAST), FormatJSON)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "directives")
	require.Contains(t, decoded, "execution_steps")
	steps := decoded["execution_steps"].([]any)
	require.Len(t, steps, 2)
}

func TestMarshalIRAsYAML(t *testing.T) {
	data, err := Marshal(artifactAt(t, compiler.StageIR), FormatYAML)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.NotEmpty(t, decoded)
	require.Contains(t, decoded[0], "type")
}

func TestMarshalPartitionedIR(t *testing.T) {
	data, err := Marshal(artifactAt(t, compiler.StagePartitionedIR), FormatJSON)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "pre_trial_steps")
	require.Contains(t, decoded, "per_trial_steps")
	require.NotEmpty(t, decoded["per_trial_steps"])
}
