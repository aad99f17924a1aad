// Command schemagen writes the recipe JSON Schema to disk. It is a dev
// tool, run from the repository root whenever the Recipe shape changes.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/valuascript-lang/vsc/internal/schema"
)

func main() {
	data, err := schema.GenerateRecipeSchema()
	if err != nil {
		log.Fatalf("failed to generate recipe schema: %v", err)
	}

	outPath := filepath.Join("internal", "schema", "recipe.schema.json")
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		log.Fatalf("failed to write schema to %s: %v", outPath, err)
	}

	log.Printf("Generated %s", outPath)
}
