package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"testdiff/internal/parser"
)

// PythonResolver maps import statements to on-disk modules under a
// single project root. Module identities are project-relative,
// slash-separated file paths; dotted module names exist only as an
// intermediate form during resolution.
type PythonResolver struct {
	root string
}

func NewPythonResolver(root string) *PythonResolver {
	return &PythonResolver{root: root}
}

// ModuleName converts a project-relative path to its dotted module
// name: pkg/sub/mod.py -> pkg.sub.mod, pkg/__init__.py -> pkg.
func (r *PythonResolver) ModuleName(relPath string) string {
	relPath = strings.TrimSuffix(filepath.ToSlash(relPath), ".py")
	parts := strings.Split(relPath, "/")
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

// IsPackage reports whether relPath is a package initializer. Packages
// anchor relative imports one level higher than plain modules.
func IsPackage(relPath string) bool {
	return filepath.Base(relPath) == "__init__.py"
}

// Anchor computes the dotted prefix an import resolves against. For a
// relative import it walks `level` segments up from the importing
// module's own package path, except that a package initializer does not
// pop its own segment at level 1.
func (r *PythonResolver) Anchor(imp parser.Import, fromModule string, fromIsPackage bool) string {
	var base []string
	if imp.Level > 0 && fromModule != "" {
		base = strings.Split(fromModule, ".")
		if !(fromIsPackage && imp.Level == 1) {
			pops := imp.Level
			if pops > len(base) {
				pops = len(base)
			}
			base = base[:len(base)-pops]
		}
	}

	if imp.Module != "" {
		base = append(base, strings.Split(imp.Module, ".")...)
	}

	return strings.Join(base, ".")
}

// Locate probes the project tree for a dotted module path. A file
// a/b/c.py wins over a package initializer a/b/c/__init__.py; a module
// and a package of the same name cannot coexist in a valid project, but
// probing the file first keeps behavior predictable if both exist.
// Returns the project-relative slash path of the match.
func (r *PythonResolver) Locate(dotted string) (string, bool) {
	if dotted == "" {
		return "", false
	}
	candidate := strings.ReplaceAll(dotted, ".", "/")

	file := candidate + ".py"
	if r.isFile(file) {
		return file, true
	}

	initFile := candidate + "/__init__.py"
	if r.isFile(initFile) {
		return initFile, true
	}

	return "", false
}

func (r *PythonResolver) isFile(relPath string) bool {
	info, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(relPath)))
	return err == nil && info.Mode().IsRegular()
}
