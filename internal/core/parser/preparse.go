package parser

import (
	"regexp"
	"strings"

	"github.com/valuascript-lang/vsc/internal/core/diag"
)

var reservedKeywords = map[string]bool{
	"let": true, "if": true, "then": true, "else": true,
	"true": true, "false": true, "and": true, "or": true,
	"not": true, "func": true, "return": true,
}

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var bracketPairs = map[rune]rune{'(': ')', '[': ']', '{': '}'}
var closingBrackets = map[rune]rune{')': '(', ']': '[', '}': '{'}

type openBracket struct {
	char rune
	line int
}

// preParsingChecks scans the raw source for cheap, line-local mistakes
// before the real parser runs, so the most common typos get a precise,
// friendly error instead of a generic parse failure.
func preParsingChecks(source, filePath string) error {
	lines := strings.Split(source, "\n")

	var stack []openBracket
	for i, line := range lines {
		lineNum := i + 1
		lineNoComment := stripComment(line)
		inString := false
		for _, ch := range lineNoComment {
			if ch == '"' {
				inString = !inString
			}
			if inString {
				continue
			}
			if _, ok := bracketPairs[ch]; ok {
				stack = append(stack, openBracket{ch, lineNum})
				continue
			}
			if opening, ok := closingBrackets[ch]; ok {
				if len(stack) == 0 {
					return unmatchedBracket(filePath, lineNum, ch)
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.char != opening {
					return unmatchedBracket(filePath, lineNum, ch)
				}
			}
		}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return unmatchedBracket(filePath, top.line, top.char)
	}

	for i, line := range lines {
		lineNum := i + 1
		clean := strings.TrimSpace(stripComment(line))
		if clean == "" {
			continue
		}

		if (strings.HasPrefix(clean, "let") || strings.HasPrefix(clean, "@")) && strings.HasSuffix(clean, "=") {
			return diag.NewValuaScriptError(diag.SyntaxMissingValueAfterEquals, &diag.Span{FilePath: filePath, SLine: lineNum, SCol: 1}, filePath, nil)
		}

		if strings.HasPrefix(clean, "let ") {
			if !strings.Contains(clean, "=") {
				if fields := strings.Fields(clean); len(fields) > 0 && fields[0] == "let" {
					return diag.NewValuaScriptError(diag.SyntaxIncompleteAssignment, &diag.Span{FilePath: filePath, SLine: lineNum, SCol: 1}, filePath, nil)
				}
				continue
			}

			varsPart := strings.TrimSpace(strings.SplitN(clean, "=", 2)[0][len("let"):])
			for _, ident := range strings.Split(varsPart, ",") {
				ident = strings.TrimSpace(ident)
				if ident == "" {
					continue
				}
				if reservedKeywords[ident] {
					return diag.NewValuaScriptError(diag.SyntaxReservedKeywordAsIdentifier, &diag.Span{FilePath: filePath, SLine: lineNum, SCol: 1}, filePath, diag.Details{"ident": ident})
				}
				if !validIdentifier.MatchString(ident) {
					return diag.NewValuaScriptError(diag.SyntaxInvalidIdentifier, &diag.Span{FilePath: filePath, SLine: lineNum, SCol: 1}, filePath, diag.Details{"ident": ident})
				}
			}
		}
	}

	return nil
}

func unmatchedBracket(filePath string, line int, char rune) error {
	return diag.NewValuaScriptError(diag.SyntaxUnmatchedBracket, &diag.Span{FilePath: filePath, SLine: line, SCol: 1}, filePath, diag.Details{"char": string(char)})
}

func stripComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}
