// Package vfs resolves and reads the files `@import` pulls in.
package vfs

import (
	"os"
	"path/filepath"
)

// StdinPath is the pseudo file-path used for a script read from stdin. It
// cannot itself be the target of an `@import`.
const StdinPath = "<stdin>"

// Resolve turns an `@import "path"` relative path into an absolute path,
// relative to the directory containing fromFile. fromFile may be StdinPath,
// in which case the current working directory is used.
func Resolve(fromFile, importPath string) (string, error) {
	baseDir := ""
	if fromFile != StdinPath {
		baseDir = filepath.Dir(fromFile)
	}
	abs, err := filepath.Abs(filepath.Join(baseDir, importPath))
	if err != nil {
		return "", err
	}
	return abs, nil
}

// ReadFile reads the contents of an absolute file path.
func ReadFile(absPath string) (string, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
