package parser

// File is the parse result for a single source file. It carries only
// what the dependency graph needs: the ordered import statements as
// they appear in the source.
type File struct {
	Path     string
	Language string
	Imports  []Import
}

// Import is one parsed import occurrence. For `from X import a, b` a
// single Import carries X as Module and [a b] as Items; plain
// `import a.b` has Items nil. Level counts the leading dots of a
// relative import (0 = absolute). Import values are never mutated
// after parsing.
type Import struct {
	Module   string
	Raw      string
	Level    int
	Items    []string
	Location Location
}

type Location struct {
	File   string
	Line   int
	Column int
}
