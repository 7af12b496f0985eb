package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type PythonExtractor struct{}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte, filePath string) (*File, error) {
	file := &File{
		Path:     filePath,
		Language: "python",
	}

	e.walk(root, source, file)

	return file, nil
}

// walk visits the whole tree, not just the module body. Imports inside
// conditional branches or function bodies are still module-level
// dependencies for impact purposes.
func (e *PythonExtractor) walk(node *sitter.Node, source []byte, file *File) {
	switch node.Kind() {
	case "import_statement":
		e.extractImport(node, source, file)
	case "import_from_statement":
		e.extractFromImport(node, source, file)
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(node.Child(i), source, file)
	}
}

func (e *PythonExtractor) extractImport(node *sitter.Node, source []byte, file *File) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)

		switch child.Kind() {
		case "dotted_name", "identifier":
			module := e.getText(child, source)
			file.Imports = append(file.Imports, Import{
				Module:   module,
				Raw:      module,
				Location: e.getLocation(child, file.Path),
			})
		case "aliased_import":
			// `import a.b as c` depends on a.b; the alias is irrelevant here.
			if module := e.firstName(child, source); module != "" {
				file.Imports = append(file.Imports, Import{
					Module:   module,
					Raw:      module,
					Location: e.getLocation(child, file.Path),
				})
			}
		}
	}
}

func (e *PythonExtractor) extractFromImport(node *sitter.Node, source []byte, file *File) {
	var module string
	var items []string
	level := 0
	seenImport := false

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)

		switch child.Kind() {
		case "relative_import":
			level, module = e.relativeTarget(child, source)

		case "dotted_name", "identifier":
			if seenImport {
				items = append(items, e.getText(child, source))
			} else {
				module = e.getText(child, source)
			}

		case "aliased_import":
			// `from x import y as z` imports y; z is a local binding.
			if name := e.firstName(child, source); name != "" {
				items = append(items, name)
			}

		case "wildcard_import":
			items = append(items, "*")

		case "import":
			seenImport = true
		}
	}

	file.Imports = append(file.Imports, Import{
		Module:   module,
		Raw:      strings.Repeat(".", level) + module,
		Level:    level,
		Items:    items,
		Location: e.getLocation(node, file.Path),
	})
}

// relativeTarget decodes `.` / `..pkg` style targets: the number of
// leading dots and the optional dotted path after them.
func (e *PythonExtractor) relativeTarget(node *sitter.Node, source []byte) (int, string) {
	level := 0
	module := ""
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "import_prefix":
			level = strings.Count(e.getText(child, source), ".")
		case "dotted_name", "identifier":
			module = e.getText(child, source)
		}
	}
	return level, module
}

func (e *PythonExtractor) firstName(node *sitter.Node, source []byte) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == "dotted_name" || child.Kind() == "identifier" {
			return e.getText(child, source)
		}
	}
	return ""
}

func (e *PythonExtractor) getLocation(node *sitter.Node, filePath string) Location {
	return Location{
		File:   filePath,
		Line:   int(node.StartPosition().Row) + 1,
		Column: int(node.StartPosition().Column) + 1,
	}
}

func (e *PythonExtractor) getText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
