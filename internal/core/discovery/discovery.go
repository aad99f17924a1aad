// Package discovery implements the Symbol Discoverer: it walks the main
// file's `@import` graph, registers every user-defined function and every
// global variable, and catches the structural errors that can only be seen
// once all files are in hand (circular imports, name collisions, global
// `let`s in a module file).
package discovery

import (
	"path/filepath"

	"github.com/valuascript-lang/vsc/internal/core/ast"
	"github.com/valuascript-lang/vsc/internal/core/diag"
	"github.com/valuascript-lang/vsc/internal/core/parser"
	"github.com/valuascript-lang/vsc/internal/core/signatures"
	"github.com/valuascript-lang/vsc/internal/core/vfs"
)

// VarInfo records where a global or UDF-local variable was declared.
type VarInfo struct {
	Name       string
	Span       diag.Span
	SourcePath string
}

// UDF is a fully-registered user-defined function: its signature, body, and
// the body-local variables discovered inside it (used later for duplicate
// and scope checks without re-walking the AST).
type UDF struct {
	Name           string
	Params         []*ast.Parameter
	ReturnType     []string
	Docstring      string
	Span           diag.Span
	SourcePath     string
	Body           []ast.Stmt
	DiscoveredBody map[string]VarInfo
}

// SymbolTable is the complete result of discovery: every function and
// global variable visible to the compilation, plus every file's parsed AST
// so later stages never need to re-parse or re-read a file.
type SymbolTable struct {
	MainFilePath   string
	Functions      map[string]*UDF
	Globals        map[string]VarInfo
	GlobalOrder    []string
	ProcessedFiles map[string]bool
	ProcessedASTs  map[string]*ast.Root
}

type discoverer struct {
	table         *SymbolTable
	visitingStack map[string]bool
}

// Discover runs symbol discovery starting from mainRoot, recursively
// resolving and parsing every `@import`ed module.
func Discover(mainRoot *ast.Root, mainFilePath string) (*SymbolTable, error) {
	if mainFilePath == "" {
		mainFilePath = vfs.StdinPath
	}

	d := &discoverer{
		table: &SymbolTable{
			MainFilePath:   mainFilePath,
			Functions:      make(map[string]*UDF),
			Globals:        make(map[string]VarInfo),
			ProcessedFiles: make(map[string]bool),
			ProcessedASTs:  make(map[string]*ast.Root),
		},
		visitingStack: make(map[string]bool),
	}

	if err := d.processFile(mainFilePath, mainRoot, true, nil); err != nil {
		return nil, err
	}

	for name, v := range d.table.Globals {
		if _, isFunc := d.table.Functions[name]; isFunc {
			return nil, diag.NewValuaScriptError(diag.DuplicateVariable, &v.Span, v.SourcePath,
				diag.Details{"name": name})
		}
	}

	return d.table, nil
}

func (d *discoverer) processFile(filePath string, root *ast.Root, isMainFile bool, importSpan *diag.Span) error {
	if d.table.ProcessedFiles[filePath] {
		return nil
	}

	if !isMainFile {
		isModule := false
		for _, dir := range root.Directives {
			if dir.Name == "module" {
				isModule = true
				break
			}
		}
		if !isModule {
			return diag.NewValuaScriptError(diag.ImportNotAModule, importSpan, filePath,
				diag.Details{"path": filepath.Base(filePath)})
		}
		for _, dir := range root.Directives {
			if dir.Name == "module" {
				continue
			}
			dirSpan := dir.Span()
			return diag.NewValuaScriptError(diag.DirectiveNotAllowedInModule, &dirSpan, filePath,
				diag.Details{"name": dir.Name})
		}
	}

	d.visitingStack[filePath] = true
	d.table.ProcessedFiles[filePath] = true
	d.table.ProcessedASTs[filePath] = root

	if filePath == vfs.StdinPath && len(root.Imports) > 0 {
		first := root.Imports[0]
		span := first.Span()
		return diag.NewValuaScriptError(diag.CannotImportFromStdin, &span, filePath, nil)
	}

	for _, imp := range root.Imports {
		impSpan := imp.Span()
		absPath, err := vfs.Resolve(filePath, imp.Path)
		if err != nil {
			return diag.NewValuaScriptError(diag.ImportFileNotFound, &impSpan, filePath, diag.Details{"path": imp.Path})
		}

		if d.visitingStack[absPath] {
			return diag.NewValuaScriptError(diag.CircularImport, &impSpan, filePath, diag.Details{"path": imp.Path})
		}

		if d.table.ProcessedFiles[absPath] {
			continue
		}

		content, err := vfs.ReadFile(absPath)
		if err != nil {
			return diag.NewValuaScriptError(diag.ImportFileNotFound, &impSpan, filePath, diag.Details{"path": imp.Path})
		}

		importedRoot, err := parser.Parse(content, absPath)
		if err != nil {
			return err
		}

		if err := d.processFile(absPath, importedRoot, false, &impSpan); err != nil {
			return err
		}
	}

	isModule := false
	for _, dir := range root.Directives {
		if dir.Name == "module" {
			isModule = true
			break
		}
	}

	if isModule && len(root.ExecutionSteps) > 0 {
		span := root.ExecutionSteps[0].Span()
		return diag.NewValuaScriptError(diag.GlobalLetInModule, &span, filePath, nil)
	}

	for _, fn := range root.FunctionDefinitions {
		if err := d.registerFunction(fn, filePath); err != nil {
			return err
		}
	}

	if isMainFile {
		for _, step := range root.ExecutionSteps {
			if err := discoverVariablesInScope(step, d.table.Globals, &d.table.GlobalOrder, filePath, true, ""); err != nil {
				return err
			}
		}
	}

	delete(d.visitingStack, filePath)
	return nil
}

func (d *discoverer) registerFunction(fn *ast.FunctionDefinition, sourcePath string) error {
	name := fn.Name.Name
	span := fn.Span()

	if signatures.IsBuiltin(name) {
		return diag.NewValuaScriptError(diag.RedefineBuiltinFunction, &span, sourcePath, diag.Details{"name": name})
	}

	if existing, ok := d.table.Functions[name]; ok {
		if existing.SourcePath != sourcePath {
			return diag.NewValuaScriptError(diag.FunctionNameCollision, &span, sourcePath, diag.Details{
				"name": name, "path": filepath.Base(existing.SourcePath),
			})
		}
		return diag.NewValuaScriptError(diag.DuplicateFunction, &span, sourcePath, diag.Details{"name": name})
	}

	bodyScope := make(map[string]VarInfo, len(fn.Params))
	var bodyOrder []string
	for _, param := range fn.Params {
		bodyScope[param.Name.Name] = VarInfo{Name: param.Name.Name, Span: param.Span(), SourcePath: sourcePath}
	}

	for _, stmt := range fn.Body {
		a, ok := stmt.(ast.Assignment)
		if !ok {
			continue
		}
		if err := discoverVariablesInScope(a, bodyScope, &bodyOrder, sourcePath, false, name); err != nil {
			return err
		}
	}

	discoveredBody := make(map[string]VarInfo, len(bodyOrder))
	for _, n := range bodyOrder {
		discoveredBody[n] = bodyScope[n]
	}

	d.table.Functions[name] = &UDF{
		Name:           name,
		Params:         fn.Params,
		ReturnType:     fn.ReturnType,
		Docstring:      fn.Docstring,
		Span:           span,
		SourcePath:     sourcePath,
		Body:           fn.Body,
		DiscoveredBody: discoveredBody,
	}
	return nil
}

// discoverVariablesInScope registers every name an assignment defines into
// scope, raising a duplicate-variable error (global or in-function
// depending on isGlobal) on collision - either within the same assignment
// (`let a, a = ...`) or against an already-registered name.
func discoverVariablesInScope(a ast.Assignment, scope map[string]VarInfo, order *[]string, sourcePath string, isGlobal bool, funcName string) error {
	names := a.ResultNames()
	span := a.Span()

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return duplicateVariableError(isGlobal, span, sourcePath, n, funcName)
		}
		seen[n] = true
	}

	for _, n := range names {
		if _, ok := scope[n]; ok {
			return duplicateVariableError(isGlobal, span, sourcePath, n, funcName)
		}
		scope[n] = VarInfo{Name: n, Span: span, SourcePath: sourcePath}
		*order = append(*order, n)
	}
	return nil
}

func duplicateVariableError(isGlobal bool, span diag.Span, sourcePath, name, funcName string) error {
	if isGlobal {
		return diag.NewValuaScriptError(diag.DuplicateVariable, &span, sourcePath, diag.Details{"name": name})
	}
	return diag.NewValuaScriptError(diag.DuplicateVariableInFunc, &span, sourcePath, diag.Details{"name": name, "func_name": funcName})
}
