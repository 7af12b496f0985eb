package graph

import "sort"

// DetectCycles returns every import cycle found via DFS over the
// forward edges. Cycles are legal in Python projects; they are reported
// in dry-run mode as context, never as errors.
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	nodes := g.Nodes()
	for _, id := range nodes {
		if !visited[id] {
			g.findCycles(id, visited, onStack, nil, &cycles)
		}
	}

	return cycles
}

func (g *Graph) findCycles(curr string, visited, onStack map[string]bool, path []string, cycles *[][]string) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	targets := make([]string, 0, len(g.imports[curr]))
	for next := range g.imports[curr] {
		targets = append(targets, next)
	}
	sort.Strings(targets)

	for _, next := range targets {
		if onStack[next] {
			cycleStart := -1
			for i, id := range path {
				if id == next {
					cycleStart = i
					break
				}
			}
			if cycleStart != -1 {
				cycle := make([]string, len(path)-cycleStart)
				copy(cycle, path[cycleStart:])
				*cycles = append(*cycles, cycle)
			}
		} else if !visited[next] {
			g.findCycles(next, visited, onStack, path, cycles)
		}
	}

	onStack[curr] = false
}
