// Package schema publishes the JSON Schema for the compiled recipe and
// validates recipes against it before they leave the compiler.
package schema

import (
	"encoding/json"
	"fmt"

	invopop "github.com/invopop/jsonschema"
	kaptinlin "github.com/kaptinlin/jsonschema"

	"github.com/valuascript-lang/vsc/internal/core/bytecode"
	"github.com/valuascript-lang/vsc/internal/version"
)

// GenerateRecipeSchema reflects the Recipe struct into its JSON Schema.
func GenerateRecipeSchema() ([]byte, error) {
	r := &invopop.Reflector{}

	s := r.Reflect(&bytecode.Recipe{})
	s.ID = invopop.ID(fmt.Sprintf("https://valuascript.dev/schemas/%s/recipe.schema.json", version.VersionWithPrefix))
	s.Title = "ValuaScript Recipe Schema"
	s.Description = "JSON Schema for the bytecode recipe consumed by the simulation engine"

	return json.MarshalIndent(s, "", "  ")
}

// ValidateRecipe checks a compiled recipe against the generated schema.
// Any violation means the bytecode generator produced a malformed recipe,
// so the message is phrased as a compiler defect.
func ValidateRecipe(recipe *bytecode.Recipe) error {
	schemaJSON, err := GenerateRecipeSchema()
	if err != nil {
		return fmt.Errorf("generating recipe schema: %w", err)
	}

	compiled, err := kaptinlin.NewCompiler().Compile(schemaJSON)
	if err != nil {
		return fmt.Errorf("compiling recipe schema: %w", err)
	}

	recipeJSON, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("marshaling recipe: %w", err)
	}

	var instance any
	if err := json.Unmarshal(recipeJSON, &instance); err != nil {
		return fmt.Errorf("decoding recipe for validation: %w", err)
	}

	result := compiled.Validate(instance)
	if !result.IsValid() {
		return fmt.Errorf("recipe does not conform to its schema: %v", result.ToList().Errors)
	}
	return nil
}
