// Package naming derives component names for element factory calls.
//
// A name comes from the declaration that owns a call (a named function or
// class, the variable a function is assigned to, an enclosing component) and,
// failing all of those, from the path of the file being rewritten.
package naming

import (
	"path/filepath"
	"strings"
)

// Unresolved is written in place of a name when neither the source nor the
// file path can supply one. It is deliberately visible in generated markup.
const Unresolved = "unable to resolve component name and filename"

// unknownFilename is the placeholder some toolchains pass for in-memory sources.
const unknownFilename = "unknown"

// FileDescriptor is the naming view of a source file path.
type FileDescriptor struct {
	// Directory is the base name of the file's parent directory.
	Directory string `json:"directory"`

	// Stem is the file name without its extension.
	Stem string `json:"stem"`

	resolved bool
}

// Describe splits a file path into its parent directory name and stem.
// An empty path or the "unknown" placeholder yields an unresolved descriptor.
func Describe(path string) FileDescriptor {
	if path == "" || path == unknownFilename {
		return FileDescriptor{}
	}

	// Paths from other toolchains may use either separator.
	path = filepath.FromSlash(strings.ReplaceAll(path, "\\", "/"))

	base := filepath.Base(path)
	return FileDescriptor{
		Directory: filepath.Base(filepath.Dir(path)),
		Stem:      strings.TrimSuffix(base, filepath.Ext(base)),
		resolved:  true,
	}
}

// Resolved reports whether the descriptor came from a usable path.
func (d FileDescriptor) Resolved() bool {
	return d.resolved
}

// ComponentName is the fallback name for the file: the directory for index
// files, the stem otherwise, and Unresolved when there is no path.
func (d FileDescriptor) ComponentName() string {
	if !d.resolved || d.Stem == "" {
		return Unresolved
	}
	if d.Stem == "index" && d.Directory != "" && d.Directory != "." && d.Directory != string(filepath.Separator) {
		return d.Directory
	}
	return d.Stem
}
