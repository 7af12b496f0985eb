package graph

// NoDistanceLimit disables distance pruning during traversal.
const NoDistanceLimit = -1

// Impact is the result of a reverse-dependency traversal. Distances
// maps every reached module to its minimum hop count from any seed
// (seeds are distance 0). Truncated is set when the distance limit
// excluded at least one otherwise-reachable module.
type Impact struct {
	Distances map[string]int
	Truncated bool
}

// Reachable walks the reverse edges breadth-first from the seed
// modules. BFS guarantees minimum-distance semantics under a limit: a
// module is included only if its minimum distance from any seed is
// within the limit. Cycles terminate via the distance map acting as a
// visited set; each module is visited at most once.
func (g *Graph) Reachable(seeds []string, distanceLimit int) Impact {
	imp := Impact{Distances: make(map[string]int, len(seeds))}

	queue := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if _, seen := imp.Distances[seed]; seen {
			continue
		}
		imp.Distances[seed] = 0
		queue = append(queue, seed)
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		dist := imp.Distances[curr]

		if distanceLimit != NoDistanceLimit && dist >= distanceLimit {
			// Nodes first reached past the frontier have minimum
			// distance > limit: all shorter paths were already expanded.
			for importer := range g.importedBy[curr] {
				if _, seen := imp.Distances[importer]; !seen {
					imp.Truncated = true
					break
				}
			}
			continue
		}

		for importer := range g.importedBy[curr] {
			if _, seen := imp.Distances[importer]; seen {
				continue
			}
			imp.Distances[importer] = dist + 1
			queue = append(queue, importer)
		}
	}

	return imp
}
