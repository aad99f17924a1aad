package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/diag"
)

func parseOne(t *testing.T, source string) *ast.Root {
	t.Helper()
	root, err := Parse(source, "test.vs")
	require.NoError(t, err)
	return root
}

func parseErr(t *testing.T, source string) *diag.ValuaScriptError {
	t.Helper()
	_, err := Parse(source, "test.vs")
	require.Error(t, err)
	var vsErr *diag.ValuaScriptError
	require.ErrorAs(t, err, &vsErr)
	return vsErr
}

func TestParseDirectives(t *testing.T) {
	t.Run("iterations and output", func(t *testing.T) {
		root := parseOne(t, "@iterations = 1000\n@output = x\nlet x = 1\n")
		require.Len(t, root.Directives, 2)

		require.Equal(t, "iterations", root.Directives[0].Name)
		num, ok := root.Directives[0].Value.(*ast.NumberLiteral)
		require.True(t, ok)
		require.Equal(t, 1000.0, num.Value)

		require.Equal(t, "output", root.Directives[1].Name)
		id, ok := root.Directives[1].Value.(*ast.Identifier)
		require.True(t, ok)
		require.Equal(t, "x", id.Name)
	})

	t.Run("module flag has no value", func(t *testing.T) {
		root := parseOne(t, "@module\nfunc f() -> scalar { return 1 }\n")
		require.Len(t, root.Directives, 1)
		require.Equal(t, "module", root.Directives[0].Name)
		require.Nil(t, root.Directives[0].Value)
	})

	t.Run("import", func(t *testing.T) {
		root := parseOne(t, "@module\n@import \"lib/common.vs\"\n")
		require.Len(t, root.Imports, 1)
		require.Equal(t, "lib/common.vs", root.Imports[0].Path)
	})

	t.Run("output_file string", func(t *testing.T) {
		root := parseOne(t, `@output_file = "results.csv"`)
		s, ok := root.Directives[0].Value.(*ast.StringLiteral)
		require.True(t, ok)
		require.Equal(t, "results.csv", s.Value)
	})
}

func TestParseExpressions(t *testing.T) {
	exprOf := func(t *testing.T, source string) ast.Expr {
		root := parseOne(t, "let x = "+source+"\n")
		require.Len(t, root.ExecutionSteps, 1)
		switch s := root.ExecutionSteps[0].(type) {
		case *ast.ExecutionAssignment:
			return s.Expression
		case *ast.LiteralAssignment:
			return s.Value
		case *ast.ConditionalAssignment:
			return s.Expression
		}
		t.Fatalf("unexpected statement type %T", root.ExecutionSteps[0])
		return nil
	}

	t.Run("precedence puts multiplication under addition", func(t *testing.T) {
		call, ok := exprOf(t, "2 + 3 * 4").(*ast.FunctionCall)
		require.True(t, ok)
		require.Equal(t, "add", call.Function)
		require.Len(t, call.Args, 2)

		inner, ok := call.Args[1].(*ast.FunctionCall)
		require.True(t, ok)
		require.Equal(t, "multiply", inner.Function)
	})

	t.Run("chained add collapses to one variadic call", func(t *testing.T) {
		call := exprOf(t, "a + b + c + d").(*ast.FunctionCall)
		require.Equal(t, "add", call.Function)
		require.Len(t, call.Args, 4)
	})

	t.Run("parenthesized subtree does not merge into the variadic group", func(t *testing.T) {
		call := exprOf(t, "a + (b + c)").(*ast.FunctionCall)
		require.Equal(t, "add", call.Function)
		require.Len(t, call.Args, 2)
		inner := call.Args[1].(*ast.FunctionCall)
		require.Equal(t, "add", inner.Function)
		require.Len(t, inner.Args, 2)
	})

	t.Run("power is right-associative", func(t *testing.T) {
		call := exprOf(t, "2 ^ 3 ^ 2").(*ast.FunctionCall)
		require.Equal(t, "power", call.Function)
		exponent := call.Args[1].(*ast.FunctionCall)
		require.Equal(t, "power", exponent.Function)
	})

	t.Run("mixed subtraction stays binary", func(t *testing.T) {
		call := exprOf(t, "a - b - c").(*ast.FunctionCall)
		require.Equal(t, "subtract", call.Function)
		require.Len(t, call.Args, 2)
		left := call.Args[0].(*ast.FunctionCall)
		require.Equal(t, "subtract", left.Function)
	})

	t.Run("comparison maps to internal name", func(t *testing.T) {
		call := exprOf(t, "a >= b").(*ast.FunctionCall)
		require.Equal(t, "__gte__", call.Function)
	})

	t.Run("logical operators collapse variadically", func(t *testing.T) {
		call := exprOf(t, "a and b and c").(*ast.FunctionCall)
		require.Equal(t, "__and__", call.Function)
		require.Len(t, call.Args, 3)
	})

	t.Run("not binds tighter than and", func(t *testing.T) {
		call := exprOf(t, "not a and b").(*ast.FunctionCall)
		require.Equal(t, "__and__", call.Function)
		left := call.Args[0].(*ast.FunctionCall)
		require.Equal(t, "__not__", left.Function)
	})

	t.Run("conditional expression", func(t *testing.T) {
		cond, ok := exprOf(t, "if a > 1 then 2 else 3").(*ast.ConditionalExpression)
		require.True(t, ok)
		require.IsType(t, &ast.FunctionCall{}, cond.Condition)
	})

	t.Run("element access and slice delete", func(t *testing.T) {
		access := exprOf(t, "v[2]").(*ast.ElementAccess)
		require.Equal(t, "v", access.Target.Name)

		del := exprOf(t, "v[:2]").(*ast.DeleteElement)
		require.Equal(t, "v", del.Target.Name)
	})

	t.Run("numbers allow underscore separators", func(t *testing.T) {
		num := exprOf(t, "1_000_000").(*ast.NumberLiteral)
		require.Equal(t, 1_000_000.0, num.Value)
	})

	t.Run("negative literal", func(t *testing.T) {
		num := exprOf(t, "-5").(*ast.NumberLiteral)
		require.Equal(t, -5.0, num.Value)
	})

	t.Run("vector literal", func(t *testing.T) {
		vec := exprOf(t, "[1, 2, 3]").(*ast.VectorLiteral)
		require.Len(t, vec.Items, 3)
	})
}

func TestParseStatements(t *testing.T) {
	t.Run("literal vs execution classification", func(t *testing.T) {
		root := parseOne(t, "let a = 5\nlet b = Normal(0, 1)\nlet c = a\n")
		require.IsType(t, &ast.LiteralAssignment{}, root.ExecutionSteps[0])
		require.IsType(t, &ast.ExecutionAssignment{}, root.ExecutionSteps[1])
		require.IsType(t, &ast.ExecutionAssignment{}, root.ExecutionSteps[2])
	})

	t.Run("multi assignment", func(t *testing.T) {
		root := parseOne(t, "let a, b = CapitalizeExpenses(100, [1], 5)\n")
		multi, ok := root.ExecutionSteps[0].(*ast.MultiAssignment)
		require.True(t, ok)
		require.Len(t, multi.Targets, 2)
	})

	t.Run("tuple literal on let is rejected", func(t *testing.T) {
		err := parseErr(t, "let a = (1, 2)\n")
		require.Equal(t, diag.SyntaxUnexpectedToken, err.Code)
	})

	t.Run("function definition with docstring and tuple return", func(t *testing.T) {
		source := "func f(a: scalar, b: vector) -> (scalar, scalar) {\n" +
			"    \"\"\"Adds things.\"\"\"\n" +
			"    let m = 1\n" +
			"    return a, m\n" +
			"}\n"
		root := parseOne(t, source)
		require.Len(t, root.FunctionDefinitions, 1)
		fn := root.FunctionDefinitions[0]
		require.Equal(t, "f", fn.Name.Name)
		require.Equal(t, []string{"scalar", "scalar"}, fn.ReturnType)
		require.Equal(t, "Adds things.", fn.Docstring)
		require.Len(t, fn.Params, 2)
		require.Equal(t, "vector", fn.Params[1].Type.Name)
		require.Len(t, fn.Body, 2)
	})

	t.Run("comments are ignored", func(t *testing.T) {
		root := parseOne(t, "# leading comment\nlet a = 1 # trailing\n")
		require.Len(t, root.ExecutionSteps, 1)
	})
}

func TestPreParsingChecks(t *testing.T) {
	cases := []struct {
		name   string
		source string
		code   diag.ErrorCode
	}{
		{"missing value after equals", "let x =\n", diag.SyntaxMissingValueAfterEquals},
		{"incomplete let", "let x\n", diag.SyntaxIncompleteAssignment},
		{"unclosed bracket", "let x = foo(1, 2\n", diag.SyntaxUnmatchedBracket},
		{"stray closing bracket", "let x = 1)\n", diag.SyntaxUnmatchedBracket},
		{"reserved keyword as identifier", "let if = 1\n", diag.SyntaxReservedKeywordAsIdentifier},
		{"bracket inside comment is ignored", "# (((\nlet x = (\n", diag.SyntaxUnmatchedBracket},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := parseErr(t, tc.source)
			require.Equal(t, tc.code, err.Code)
		})
	}

	t.Run("brackets inside strings are ignored", func(t *testing.T) {
		parseOne(t, "let x = BlackScholes(100, 110, 0.05, 0.5, 0.2, \"ca(ll\")\n")
	})
}

func TestSpansPointAtSource(t *testing.T) {
	root := parseOne(t, "let first = 1\nlet second = 2\n")
	require.Equal(t, 1, root.ExecutionSteps[0].Span().SLine)
	require.Equal(t, 2, root.ExecutionSteps[1].Span().SLine)
	require.Equal(t, "test.vs", root.ExecutionSteps[1].Span().FilePath)
}
