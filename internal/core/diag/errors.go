// Package diag defines the closed set of compiler diagnostics and the two
// exception-like error types the rest of the compiler raises: a
// ValuaScriptError for user-facing language violations, and an
// InternalCompilerError for bugs in the compiler itself.
package diag

import (
	"fmt"
	"strings"
)

// ErrorCode is the closed set of diagnosable ValuaScript compile errors.
// Each member carries its own format-string message template, keyed by the
// named fields supplied via Details when the error is raised.
type ErrorCode string

const (
	// Structural & directive errors
	MissingIterationsDirective        ErrorCode = "MISSING_ITERATIONS_DIRECTIVE"
	MissingOutputDirective            ErrorCode = "MISSING_OUTPUT_DIRECTIVE"
	UnknownDirective                  ErrorCode = "UNKNOWN_DIRECTIVE"
	DuplicateDirective                ErrorCode = "DUPLICATE_DIRECTIVE"
	InvalidDirectiveValue             ErrorCode = "INVALID_DIRECTIVE_VALUE"
	DirectiveNotAllowedInModule       ErrorCode = "DIRECTIVE_NOT_ALLOWED_IN_MODULE"
	ModuleDirectiveWithValue          ErrorCode = "MODULE_DIRECTIVE_WITH_VALUE"
	ModuleDirectiveDeclaredMoreThanOnce ErrorCode = "MODULE_DIRECTIVE_DECLARED_MORE_THAN_ONCE"
	OperatorTypeMismatch              ErrorCode = "OPERATOR_TYPE_MISMATCH"

	// Module-specific errors
	GlobalLetInModule ErrorCode = "GLOBAL_LET_IN_MODULE"

	// Variable & definition errors
	UndefinedVariable         ErrorCode = "UNDEFINED_VARIABLE"
	UndefinedVariableInFunc   ErrorCode = "UNDEFINED_VARIABLE_IN_FUNC"
	DuplicateVariable         ErrorCode = "DUPLICATE_VARIABLE"
	DuplicateVariableInFunc   ErrorCode = "DUPLICATE_VARIABLE_IN_FUNC"
	DuplicateFunction         ErrorCode = "DUPLICATE_FUNCTION"
	RedefineBuiltinFunction   ErrorCode = "REDEFINE_BUILTIN_FUNCTION"
	FunctionNameCollision     ErrorCode = "FUNCTION_NAME_COLLISION"
	MixedTypesInVector        ErrorCode = "MIXED_TYPES_IN_VECTOR"
	AssignmentError           ErrorCode = "ASSIGNMENT_ERROR"

	// Function call & type errors
	UnknownFunction              ErrorCode = "UNKNOWN_FUNCTION"
	ArgumentCountMismatch        ErrorCode = "ARGUMENT_COUNT_MISMATCH"
	ArgumentTypeMismatch         ErrorCode = "ARGUMENT_TYPE_MISMATCH"
	ReturnTypeMismatch           ErrorCode = "RETURN_TYPE_MISMATCH"
	MissingReturnStatement       ErrorCode = "MISSING_RETURN_STATEMENT"
	InvalidItemInVector          ErrorCode = "INVALID_ITEM_IN_VECTOR"
	InvalidItemTypeInVector      ErrorCode = "INVALID_ITEM_TYPE_IN_VECTOR"
	IfConditionNotBoolean        ErrorCode = "IF_CONDITION_NOT_BOOLEAN"
	IfElseTypeMismatch           ErrorCode = "IF_ELSE_TYPE_MISMATCH"
	LogicalOperatorTypeMismatch  ErrorCode = "LOGICAL_OPERATOR_TYPE_MISMATCH"
	ComparisonTypeMismatch       ErrorCode = "COMPARISON_TYPE_MISMATCH"

	// Recursion errors
	RecursiveCallDetected ErrorCode = "RECURSIVE_CALL_DETECTED"

	// Syntax / pre-parsing errors
	SyntaxMissingValueAfterEquals     ErrorCode = "SYNTAX_MISSING_VALUE_AFTER_EQUALS"
	SyntaxIncompleteAssignment        ErrorCode = "SYNTAX_INCOMPLETE_ASSIGNMENT"
	SyntaxUnmatchedBracket            ErrorCode = "SYNTAX_UNMATCHED_BRACKET"
	SyntaxUnclosedString              ErrorCode = "SYNTAX_UNCLOSED_STRING"
	SyntaxReservedKeywordAsIdentifier ErrorCode = "SYNTAX_RESERVED_KEYWORD_AS_IDENTIFIER"
	SyntaxInvalidIdentifier           ErrorCode = "SYNTAX_INVALID_IDENTIFIER"
	SyntaxUnexpectedToken             ErrorCode = "SYNTAX_UNEXPECTED_TOKEN"
	SyntaxInvalidCharacter            ErrorCode = "SYNTAX_INVALID_CHARACTER"
	SyntaxParsingError                ErrorCode = "SYNTAX_PARSING_ERROR"

	// Import errors
	ImportFileNotFound     ErrorCode = "IMPORT_FILE_NOT_FOUND"
	ImportNotAModule       ErrorCode = "IMPORT_NOT_A_MODULE"
	CircularImport         ErrorCode = "CIRCULAR_IMPORT"
	CannotImportFromStdin  ErrorCode = "CANNOT_IMPORT_FROM_STDIN"
)

// messageTemplates mirrors exceptions.py's ErrorCode string values: a
// format template with {name}-style placeholders filled from Details.
var messageTemplates = map[ErrorCode]string{
	MissingIterationsDirective:         "The @iterations directive is mandatory (e.g., '@iterations = 10000').",
	MissingOutputDirective:             "The @output directive is mandatory (e.g., '@output = final_result').",
	UnknownDirective:                   "Unknown directive '@{name}'.",
	DuplicateDirective:                 "The directive '@{name}' is defined more than once.",
	InvalidDirectiveValue:              "{error_msg}",
	DirectiveNotAllowedInModule:        "The @{name} directive is not allowed when @module is declared.",
	ModuleDirectiveWithValue:           "The @module directive does not accept a value. It should be used as '@module'.",
	ModuleDirectiveDeclaredMoreThanOnce: "The @module directive must appear exactly once per file.",
	OperatorTypeMismatch:               "The '{op}' operator cannot be used with a non-numeric type '{provided_type}'.",

	GlobalLetInModule: "Global 'let' statements are not allowed in a module file. Only function definitions are permitted.",

	UndefinedVariable:       "Variable '{name}' used in {context} is not defined.",
	UndefinedVariableInFunc: "Variable '{name}' used in function '{func_name}' is not defined.",
	DuplicateVariable:       "Variable '{name}' is defined more than once.",
	DuplicateVariableInFunc: "Variable '{name}' is defined more than once in function '{func_name}'.",
	DuplicateFunction:       "Function '{name}' is defined more than once.",
	RedefineBuiltinFunction: "Cannot redefine built-in function '{name}'.",
	FunctionNameCollision:   "Function '{name}' from '{path}' conflicts with another function of the same name.",
	MixedTypesInVector:      "Vector literals cannot contain mixed types. Found types: {found_types}.",
	AssignmentError:         "Assignment error. The left side of assignment has {lhs_count} variables while the right side returns {rhs_count}",

	UnknownFunction:             "Unknown function '{name}'.",
	ArgumentCountMismatch:       "Function '{name}' expects {expected} argument(s), but got {provided}.",
	ArgumentTypeMismatch:        "Argument {arg_num} for '{name}' expects a '{expected}', but got a '{provided}'.",
	ReturnTypeMismatch:          "Function '{name}' returns type '{provided}' but is defined to return '{expected}'.",
	MissingReturnStatement:      "Function '{name}' is missing a return statement.",
	InvalidItemInVector:         "Invalid item {value} in vector literal for '{name}'.",
	InvalidItemTypeInVector:     "Invalid item type '{type}' found in vector literal.",
	IfConditionNotBoolean:       "The condition for an 'if' expression must be a boolean (true/false) value, but got a '{provided}'.",
	IfElseTypeMismatch:          "The 'then' and 'else' branches of an 'if' expression must return the same type. The 'then' branch has type '{then_type}' but the 'else' branch has type '{else_type}'.",
	LogicalOperatorTypeMismatch: "The '{op}' operator can only be used with boolean values, but got a '{provided}'.",
	ComparisonTypeMismatch:      "The '{op}' operator cannot be used to compare a '{left_type}' and a '{right_type}'.",

	RecursiveCallDetected: "Recursive function call detected: {path}",

	SyntaxMissingValueAfterEquals:     "Syntax Error: Missing value after '='.",
	SyntaxIncompleteAssignment:        "Syntax Error: Incomplete assignment.",
	SyntaxUnmatchedBracket:            "Syntax Error: Unmatched closing bracket '{char} was never closed.",
	SyntaxUnclosedString:              "Syntax Error: Unclosed string literal",
	SyntaxReservedKeywordAsIdentifier: "Syntax Error: Cannot use reserved keyword '{ident}' as a variable name.",
	SyntaxInvalidIdentifier:           "Syntax Error: {ident}' is not a valid identifier name.",
	SyntaxUnexpectedToken:             "Syntax Error: Invalid syntax. {details}",
	SyntaxInvalidCharacter:            "Syntax Error: Invalid character '{char}' found.",
	SyntaxParsingError:                "Syntax Error: A general parsing error occurred. Details: {details}",

	ImportFileNotFound:    "Imported file not found: '{path}'",
	ImportNotAModule:      "Imported file '{path}' is not a valid module. It must contain the @module directive.",
	CircularImport:        "Circular import detected. The file '{path}' is already part of the import chain.",
	CannotImportFromStdin: "@import is not supported when reading from stdin because file paths cannot be resolved.",
}

// Details carries the named substitution values for a diagnostic's message
// template, e.g. Details{"name": "foo", "expected": "scalar"}.
type Details map[string]any

func (d Details) format(template string) string {
	out := template
	for k, v := range d {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return out
}

// ValuaScriptError is raised for any user-facing violation of the
// language's rules: bad syntax, unknown identifiers, type mismatches, and
// so on. It is fatal: the compiler stops at the first one raised.
type ValuaScriptError struct {
	Code     ErrorCode
	Span     *Span
	FilePath string
	Details  Details
	Message  string
}

// NewValuaScriptError builds a ValuaScriptError, formatting its message
// template from code and details and prefixing it with a location derived
// from span (preferred) or filePath.
func NewValuaScriptError(code ErrorCode, span *Span, filePath string, details Details) *ValuaScriptError {
	template, ok := messageTemplates[code]
	if !ok {
		template = string(code)
	}
	core := details.format(template)

	var prefix string
	switch {
	case span != nil:
		prefix = fmt.Sprintf("Error in '%s' (Line: %d, Column: %d):\n", span.FilePath, span.SLine, span.SCol)
	case filePath != "":
		prefix = fmt.Sprintf("Error in '%s': ", filePath)
	}

	return &ValuaScriptError{
		Code:     code,
		Span:     span,
		FilePath: filePath,
		Details:  details,
		Message:  prefix + core,
	}
}

func (e *ValuaScriptError) Error() string { return e.Message }

// InternalCompilerError signals a bug in the compiler itself: an invariant
// that the pipeline assumed but failed to hold (e.g. an unresolved opcode
// key). It should never be triggered by any valid or invalid ValuaScript
// source — only by a defect in the compiler.
type InternalCompilerError struct {
	Message string
}

func NewInternalCompilerError(format string, args ...any) *InternalCompilerError {
	return &InternalCompilerError{Message: fmt.Sprintf(format, args...)}
}

func (e *InternalCompilerError) Error() string { return e.Message }
