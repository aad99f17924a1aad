package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/parser"
)

// writeFiles lays out a script tree in a temp dir and returns the dir.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func discoverMain(t *testing.T, dir, mainFile string) (*SymbolTable, error) {
	t.Helper()
	mainPath := filepath.Join(dir, mainFile)
	source, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	root, err := parser.Parse(string(source), mainPath)
	require.NoError(t, err)
	return Discover(root, mainPath)
}

func requireCode(t *testing.T, err error, code diag.ErrorCode) *diag.ValuaScriptError {
	t.Helper()
	require.Error(t, err)
	var vsErr *diag.ValuaScriptError
	require.ErrorAs(t, err, &vsErr)
	require.Equal(t, code, vsErr.Code)
	return vsErr
}

func TestDiscoverGlobalsAndFunctions(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.vs": "@iterations = 1\n@output = y\n" +
			"func double(x: scalar) -> scalar { return x * 2 }\n" +
			"let a = 1\nlet y = double(a)\n",
	})
	table, err := discoverMain(t, dir, "main.vs")
	require.NoError(t, err)

	require.Contains(t, table.Globals, "a")
	require.Contains(t, table.Globals, "y")
	require.Equal(t, []string{"a", "y"}, table.GlobalOrder)
	require.Contains(t, table.Functions, "double")
	require.Equal(t, []string{"scalar"}, table.Functions["double"].ReturnType)
}

func TestDiscoverImports(t *testing.T) {
	t.Run("imported functions merge into the global namespace", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n@import \"lib/margin.vs\"\nlet y = add_margin(1)\n",
			"lib/margin.vs": "@module\n" +
				"func add_margin(r: scalar) -> scalar { return r * 1.1 }\n",
		})
		table, err := discoverMain(t, dir, "main.vs")
		require.NoError(t, err)
		require.Contains(t, table.Functions, "add_margin")
	})

	t.Run("diamond imports parse the shared file once", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs":  "@iterations = 1\n@output = y\n@import \"a.vs\"\n@import \"b.vs\"\nlet y = 1\n",
			"a.vs":     "@module\n@import \"base.vs\"\nfunc fa(x: scalar) -> scalar { return base(x) }\n",
			"b.vs":     "@module\n@import \"base.vs\"\nfunc fb(x: scalar) -> scalar { return base(x) }\n",
			"base.vs":  "@module\nfunc base(x: scalar) -> scalar { return x }\n",
		})
		table, err := discoverMain(t, dir, "main.vs")
		require.NoError(t, err)
		require.Len(t, table.ProcessedASTs, 4)
	})

	t.Run("circular import", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n@import \"a.vs\"\nlet y = 1\n",
			"a.vs":    "@module\n@import \"b.vs\"\n",
			"b.vs":    "@module\n@import \"a.vs\"\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		vsErr := requireCode(t, err, diag.CircularImport)
		require.NotNil(t, vsErr.Span)
	})

	t.Run("imported file must be a module", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n@import \"a.vs\"\nlet y = 1\n",
			"a.vs":    "func fa(x: scalar) -> scalar { return x }\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.ImportNotAModule)
	})

	t.Run("module may not hold global lets", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n@import \"a.vs\"\nlet y = 1\n",
			"a.vs":    "@module\nlet leaked = 1\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.GlobalLetInModule)
	})

	t.Run("module may not carry runnable directives", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n@import \"a.vs\"\nlet y = 1\n",
			"a.vs":    "@module\n@iterations = 5\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.DirectiveNotAllowedInModule)
	})

	t.Run("missing import file", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n@import \"nope.vs\"\nlet y = 1\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.ImportFileNotFound)
	})

	t.Run("stdin cannot import", func(t *testing.T) {
		root, err := parser.Parse("@iterations = 1\n@output = y\n@import \"a.vs\"\nlet y = 1\n", "")
		require.NoError(t, err)
		_, err = Discover(root, "")
		requireCode(t, err, diag.CannotImportFromStdin)
	})
}

func TestDiscoverCollisions(t *testing.T) {
	t.Run("duplicate global variable", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = a\nlet a = 1\nlet a = 2\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.DuplicateVariable)
	})

	t.Run("repeated name in one multi-assignment", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = a\nlet a, a = CapitalizeExpenses(1, [1], 5)\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.DuplicateVariable)
	})

	t.Run("redefining a builtin", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\nfunc Normal(a: scalar) -> scalar { return a }\nlet y = 1\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.RedefineBuiltinFunction)
	})

	t.Run("function name collision across modules", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n@import \"a.vs\"\n@import \"b.vs\"\nlet y = 1\n",
			"a.vs":    "@module\nfunc shared(x: scalar) -> scalar { return x }\n",
			"b.vs":    "@module\nfunc shared(x: scalar) -> scalar { return x }\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.FunctionNameCollision)
	})

	t.Run("duplicate function in one file", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n" +
				"func f(x: scalar) -> scalar { return x }\n" +
				"func f(x: scalar) -> scalar { return x }\nlet y = 1\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.DuplicateFunction)
	})

	t.Run("duplicate local in function body", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n" +
				"func f(x: scalar) -> scalar { let m = 1\nlet m = 2\nreturn m }\nlet y = 1\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.DuplicateVariableInFunc)
	})

	t.Run("parameter shadowed by local", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{
			"main.vs": "@iterations = 1\n@output = y\n" +
				"func f(x: scalar) -> scalar { let x = 1\nreturn x }\nlet y = 1\n",
		})
		_, err := discoverMain(t, dir, "main.vs")
		requireCode(t, err, diag.DuplicateVariableInFunc)
	})
}
