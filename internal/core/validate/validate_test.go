package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/discovery"
	"github.com/valuascript-lang/vsc/internal/core/parser"
	"github.com/valuascript-lang/vsc/internal/core/types"
)

func validateSource(t *testing.T, source string) error {
	t.Helper()
	root, err := parser.Parse(source, "test.vs")
	require.NoError(t, err)
	table, err := discovery.Discover(root, "/test/test.vs")
	require.NoError(t, err)
	model := types.Infer(table)
	return Validate(table, model)
}

func requireCode(t *testing.T, err error, code diag.ErrorCode) *diag.ValuaScriptError {
	t.Helper()
	require.Error(t, err)
	var vsErr *diag.ValuaScriptError
	require.ErrorAs(t, err, &vsErr)
	require.Equal(t, code, vsErr.Code)
	return vsErr
}

func TestValidateDirectives(t *testing.T) {
	cases := []struct {
		name   string
		source string
		code   diag.ErrorCode
	}{
		{"missing iterations", "@output = x\nlet x = 1\n", diag.MissingIterationsDirective},
		{"missing output", "@iterations = 1\nlet x = 1\n", diag.MissingOutputDirective},
		{"unknown directive", "@bogus = 1\n@iterations = 1\n@output = x\nlet x = 1\n", diag.UnknownDirective},
		{"duplicate directive", "@iterations = 1\n@iterations = 2\n@output = x\nlet x = 1\n", diag.DuplicateDirective},
		{"non-integer iterations", "@iterations = 1.5\n@output = x\nlet x = 1\n", diag.InvalidDirectiveValue},
		{"negative iterations", "@iterations = -5\n@output = x\nlet x = 1\n", diag.InvalidDirectiveValue},
		{"output not an identifier", "@iterations = 1\n@output = 5\nlet x = 1\n", diag.InvalidDirectiveValue},
		{"output_file not a string", "@iterations = 1\n@output = x\n@output_file = 5\nlet x = 1\n", diag.InvalidDirectiveValue},
		{"output names undefined variable", "@iterations = 1\n@output = nope\nlet x = 1\n", diag.UndefinedVariable},
		{"module with value", "@module = 1\n", diag.ModuleDirectiveWithValue},
		{"module declared twice", "@module\n@module\n", diag.ModuleDirectiveDeclaredMoreThanOnce},
		{"iterations in module", "@module\n@iterations = 5\n", diag.DirectiveNotAllowedInModule},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireCode(t, validateSource(t, tc.source), tc.code)
		})
	}

	t.Run("well-formed script passes", func(t *testing.T) {
		require.NoError(t, validateSource(t, "@iterations = 1000\n@output = x\n@output_file = \"out.csv\"\nlet x = 1\n"))
	})

	t.Run("module with only functions passes", func(t *testing.T) {
		require.NoError(t, validateSource(t, "@module\nfunc f(x: scalar) -> scalar { return x }\n"))
	})
}

func TestValidateExpressions(t *testing.T) {
	prelude := "@iterations = 1\n@output = x\n"

	cases := []struct {
		name   string
		source string
		code   diag.ErrorCode
	}{
		{"undefined variable", prelude + "let x = missing + 1\n", diag.UndefinedVariable},
		{"unknown function", prelude + "let x = Mystery(1)\n", diag.UnknownFunction},
		{"arity mismatch", prelude + "let x = Normal(1)\n", diag.ArgumentCountMismatch},
		{"argument type mismatch", prelude + "let x = SumVector(5)\n", diag.ArgumentTypeMismatch},
		{"boolean into arithmetic", prelude + "let b = true\nlet x = b + 1\n", diag.OperatorTypeMismatch},
		{"string into arithmetic", prelude + "let s = \"hi\"\nlet x = s * 2\n", diag.OperatorTypeMismatch},
		{"scalar into and", prelude + "let x = 1\nlet y = x and true\n", diag.LogicalOperatorTypeMismatch},
		{"vector ordered comparison", prelude + "let v = [1]\nlet x = if v > 1 then 1 else 2\n", diag.ComparisonTypeMismatch},
		{"non-boolean if condition", prelude + "let x = if 1 then 2 else 3\n", diag.IfConditionNotBoolean},
		{"branch type mismatch", prelude + "let c = true\nlet x = if c then 1 else [1]\n", diag.IfElseTypeMismatch},
		{"mixed vector literal", prelude + "let c = true\nlet x = [1, c]\n", diag.MixedTypesInVector},
		{"vector of booleans", prelude + "let x = [true, false]\n", diag.InvalidItemTypeInVector},
		{"multi-assign arity", prelude + "let a, b, c = CapitalizeExpenses(1, [1], 5)\nlet x = a\n", diag.AssignmentError},
		{"tuple into single target", prelude + "let x = CapitalizeExpenses(1, [1], 5)\n", diag.AssignmentError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireCode(t, validateSource(t, tc.source), tc.code)
		})
	}

	t.Run("equality accepts any pairing", func(t *testing.T) {
		require.NoError(t, validateSource(t, prelude+"let s = \"a\"\nlet x = if s == \"b\" then 1 else 2\n"))
	})

	t.Run("scalar vector broadcasting is allowed", func(t *testing.T) {
		require.NoError(t, validateSource(t, prelude+"let v = [1, 2]\nlet w = v * 2\nlet x = SumVector(w)\n"))
	})

	t.Run("BlackScholes takes its string argument", func(t *testing.T) {
		require.NoError(t, validateSource(t, prelude+"let x = BlackScholes(100, 110, 0.05, 0.5, 0.2, \"call\")\n"))
	})
}

func TestValidateFunctionBodies(t *testing.T) {
	prelude := "@iterations = 1\n@output = y\n"

	t.Run("missing return", func(t *testing.T) {
		err := validateSource(t, prelude+"func f(x: scalar) -> scalar { let m = x }\nlet y = 1\n")
		requireCode(t, err, diag.MissingReturnStatement)
	})

	t.Run("return type mismatch", func(t *testing.T) {
		err := validateSource(t, prelude+"func f(x: scalar) -> vector { return x }\nlet y = 1\n")
		requireCode(t, err, diag.ReturnTypeMismatch)
	})

	t.Run("tuple shape mismatch", func(t *testing.T) {
		err := validateSource(t, prelude+"func f(x: scalar) -> (scalar, scalar) { return x }\nlet y = 1\n")
		requireCode(t, err, diag.ReturnTypeMismatch)
	})

	t.Run("undefined variable in body names the function", func(t *testing.T) {
		err := validateSource(t, prelude+"func f(x: scalar) -> scalar { return ghost }\nlet y = 1\n")
		vsErr := requireCode(t, err, diag.UndefinedVariableInFunc)
		require.Contains(t, vsErr.Message, "'f'")
	})

	t.Run("multi-return builtin satisfies a tuple signature", func(t *testing.T) {
		require.NoError(t, validateSource(t, prelude+
			"func f(c: scalar) -> (scalar, scalar) { return CapitalizeExpenses(c, [1], 5) }\n"+
			"let a, b = f(1)\nlet y = a\n"))
	})
}

func TestValidateRecursion(t *testing.T) {
	prelude := "@iterations = 1\n@output = y\n"

	t.Run("direct recursion", func(t *testing.T) {
		err := validateSource(t, prelude+"func f(x: scalar) -> scalar { return f(x) }\nlet y = 1\n")
		vsErr := requireCode(t, err, diag.RecursiveCallDetected)
		require.Contains(t, vsErr.Message, "f -> f")
	})

	t.Run("mutual recursion reports the cycle path", func(t *testing.T) {
		err := validateSource(t, prelude+
			"func a(x: scalar) -> scalar { return b(x) }\n"+
			"func b(x: scalar) -> scalar { return a(x) }\n"+
			"let y = 1\n")
		vsErr := requireCode(t, err, diag.RecursiveCallDetected)
		require.True(t, strings.Contains(vsErr.Message, "a -> b -> a"))
	})

	t.Run("a DAG of calls is fine", func(t *testing.T) {
		require.NoError(t, validateSource(t, prelude+
			"func leaf(x: scalar) -> scalar { return x }\n"+
			"func mid(x: scalar) -> scalar { return leaf(x) + 1 }\n"+
			"func top(x: scalar) -> scalar { return mid(x) * leaf(x) }\n"+
			"let y = top(1)\n"))
	})
}
