package graph

import "sort"

// Graph is the project import graph. Nodes are module identities:
// normalized project-relative file paths. An edge A->B means "A imports
// B". Forward and reverse adjacency are kept as duals so reverse
// traversal needs no inversion step. The graph is built once per run
// and is read-only afterwards, so traversal needs no locking.
type Graph struct {
	nodes      map[string]bool
	imports    map[string]map[string]bool // from -> to
	importedBy map[string]map[string]bool // to -> from
}

func New() *Graph {
	return &Graph{
		nodes:      make(map[string]bool),
		imports:    make(map[string]map[string]bool),
		importedBy: make(map[string]map[string]bool),
	}
}

// AddNode registers a scanned module. Files that fail to parse are
// still added so they can be targets of other files' imports and can be
// seeded as directly-changed modules.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = true
}

func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)

	if g.imports[from] == nil {
		g.imports[from] = make(map[string]bool)
	}
	g.imports[from][to] = true

	if g.importedBy[to] == nil {
		g.importedBy[to] = make(map[string]bool)
	}
	g.importedBy[to][from] = true
}

func (g *Graph) HasNode(id string) bool {
	return g.nodes[id]
}

func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

func (g *Graph) EdgeCount() int {
	n := 0
	for _, targets := range g.imports {
		n += len(targets)
	}
	return n
}

func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ImportsOf returns the modules id imports, sorted.
func (g *Graph) ImportsOf(id string) []string {
	return sortedKeys(g.imports[id])
}

// ImportersOf returns the modules that import id, sorted.
func (g *Graph) ImportersOf(id string) []string {
	return sortedKeys(g.importedBy[id])
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
