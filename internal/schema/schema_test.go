package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valuascript-lang/vsc/internal/compiler"
)

func TestGenerateRecipeSchema(t *testing.T) {
	data, err := GenerateRecipeSchema()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "$id")
	require.Equal(t, "ValuaScript Recipe Schema", decoded["title"])
}

func TestValidateRecipeAcceptsCompiledOutput(t *testing.T) {
	result, err := compiler.Compile("@iterations=10\n@output=z\n"+
		"let s = Normal(0, 1)\n"+
		"let z = s + 1\n", compiler.Options{})
	require.NoError(t, err)
	require.NoError(t, ValidateRecipe(result.Recipe))
}
