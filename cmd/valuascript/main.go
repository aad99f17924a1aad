// Command valuascript compiles a .vs script into the JSON recipe the
// simulation engine executes.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"

	"github.com/valuascript-lang/vsc/internal/compiler"
	"github.com/valuascript-lang/vsc/internal/dump"
	"github.com/valuascript-lang/vsc/internal/schema"
	"github.com/valuascript-lang/vsc/internal/util/filepathutil"
	"github.com/valuascript-lang/vsc/internal/version"
)

type cliArgs struct {
	InputFile      string `arg:"positional" help:"path to the input .vs file; omit to read from stdin"`
	Output         string `arg:"-o,--output" help:"path to the output .json recipe"`
	Compile        string `arg:"-c,--compile" help:"stop after a stage and dump its artifact (1: ast, 2: symbol table, 3: type inference, 4: semantic validation, 5: ir, 6a: copy propagation, 6: optimized ir, 7: partitioned ir)"`
	Format         string `arg:"--format" default:"json" help:"artifact dump format: json or yaml"`
	Iterations     int    `arg:"--iterations-override" help:"override the script's @iterations value"`
	SchemaValidate bool   `arg:"--schema-validate" help:"validate the compiled recipe against its JSON schema before writing it"`
}

func (cliArgs) Version() string {
	return "valuascript " + version.VersionWithPrefix
}

var validStages = map[string]compiler.Stage{
	"1": compiler.StageAST, "2": compiler.StageSymbolTable, "3": compiler.StageTypeInference,
	"4": compiler.StageSemanticValidation, "5": compiler.StageIR,
	"6a": compiler.StageCopyPropagation, "6": compiler.StageOptimizedIR, "7": compiler.StagePartitionedIR,
}

func main() {
	var args cliArgs
	p := arg.MustParse(&args)

	stage := compiler.StageNone
	if args.Compile != "" {
		s, ok := validStages[args.Compile]
		if !ok {
			p.Fail(fmt.Sprintf("invalid --compile stage %q", args.Compile))
		}
		stage = s
	}

	format := dump.Format(strings.ToLower(args.Format))
	if format != dump.FormatJSON && format != dump.FormatYAML {
		p.Fail(fmt.Sprintf("invalid --format %q (expected json or yaml)", args.Format))
	}

	if err := run(args, stage, format); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args cliArgs, stage compiler.Stage, format dump.Format) error {
	source, filePath, err := readSource(args.InputFile)
	if err != nil {
		return err
	}

	result, err := compiler.Compile(source, compiler.Options{
		FilePath:           filePath,
		StopAfter:          stage,
		IterationsOverride: args.Iterations,
	})
	if err != nil {
		return err
	}

	if stage != compiler.StageNone {
		data, err := dump.Marshal(result.Artifact, format)
		if err != nil {
			return fmt.Errorf("rendering %s artifact: %w", compiler.StageNames[stage], err)
		}
		return writeOutput(args, filePath, data, "."+string(format))
	}

	if args.SchemaValidate {
		if err := schema.ValidateRecipe(result.Recipe); err != nil {
			return err
		}
	}

	data, err := dump.Marshal(result.Recipe, dump.FormatJSON)
	if err != nil {
		return fmt.Errorf("rendering recipe: %w", err)
	}
	return writeOutput(args, filePath, data, ".json")
}

func readSource(inputFile string) (source, filePath string, err error) {
	if inputFile == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "", nil
	}

	abs, err := filepathutil.NormalizeFromWD(inputFile)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", "", fmt.Errorf("script file %q not found", inputFile)
	}
	return string(data), abs, nil
}

func writeOutput(args cliArgs, inputPath string, data []byte, ext string) error {
	outPath := args.Output
	if outPath == "" {
		if inputPath == "" {
			_, err := os.Stdout.Write(append(data, '\n'))
			return err
		}
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ext
	}

	abs, err := filepathutil.NormalizeFromWD(outPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(abs, append(data, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Printf("Recipe written to %s\n", abs)
	return nil
}
