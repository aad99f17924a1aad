// Package lexer provides the participle-based tokenizer for ValuaScript
// source files.
package lexer

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer is the participle lexer definition for ValuaScript.
//
// Token order matters - more specific patterns must come before general
// ones, and keywords must come before Ident to have higher priority.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	// Docstrings (triple quoted) - must come before StringLiteral
	{Name: "Docstring", Pattern: `"""([^"]|"[^"]|""[^"])*"""`},

	// Comments run from '#' to end-of-line.
	{Name: "Comment", Pattern: `#[^\n]*`},

	// Directives (must come before Ident)
	{Name: "Directive", Pattern: `@[a-zA-Z_][a-zA-Z0-9_]*`},

	// Keywords (must come before Ident to have higher priority)
	{Name: "Let", Pattern: `\blet\b`},
	{Name: "Func", Pattern: `\bfunc\b`},
	{Name: "Return", Pattern: `\breturn\b`},
	{Name: "If", Pattern: `\bif\b`},
	{Name: "Then", Pattern: `\bthen\b`},
	{Name: "Else", Pattern: `\belse\b`},
	{Name: "Import", Pattern: `\bimport\b`},
	{Name: "Scalar", Pattern: `\bscalar\b`},
	{Name: "Vector", Pattern: `\bvector\b`},
	{Name: "Boolean", Pattern: `\bboolean\b`},
	{Name: "String", Pattern: `\bstring\b`},

	// Boolean literals (must come before Ident)
	{Name: "True", Pattern: `\btrue\b`},
	{Name: "False", Pattern: `\bfalse\b`},

	// Logical word-operators
	{Name: "And", Pattern: `\band\b`},
	{Name: "Or", Pattern: `\bor\b`},
	{Name: "Not", Pattern: `\bnot\b`},

	// Literals. Numbers may use '_' as a visual separator between digits.
	{Name: "FloatLiteral", Pattern: `[0-9][0-9_]*\.[0-9][0-9_]*([eE][+-]?[0-9]+)?|[0-9][0-9_]*[eE][+-]?[0-9]+`},
	{Name: "IntLiteral", Pattern: `[0-9][0-9_]*`},
	{Name: "StringLiteral", Pattern: `"(?:\\"|\\\\|[^"])*"`},

	// Identifiers
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},

	// Multi-character operators (must come before their single-char prefixes)
	{Name: "Eq", Pattern: `==`},
	{Name: "Neq", Pattern: `!=`},
	{Name: "Gte", Pattern: `>=`},
	{Name: "Lte", Pattern: `<=`},

	// Arrow (must come before Minus)
	{Name: "Arrow", Pattern: `->`},

	// Delimiters and single-character operators
	{Name: "Newline", Pattern: `\n`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Colon", Pattern: `:`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "LBracket", Pattern: `\[`},
	{Name: "RBracket", Pattern: `\]`},
	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Plus", Pattern: `\+`},
	{Name: "Minus", Pattern: `-`},
	{Name: "Star", Pattern: `\*`},
	{Name: "Slash", Pattern: `/`},
	{Name: "Caret", Pattern: `\^`},
	{Name: "Gt", Pattern: `>`},
	{Name: "Lt", Pattern: `<`},

	// Whitespace (excluding newlines, which terminate statements)
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
})
