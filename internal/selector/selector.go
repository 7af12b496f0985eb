package selector

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"testdiff/internal/diag"
	"testdiff/internal/graph"
	"testdiff/internal/index"
	"testdiff/internal/shared/observability"
)

// Result is one selected test module. FilenameMatch ranks how strongly
// the test's filename relates to a changed module's name (0 strongest);
// together with Distance it orders the output most-relevant first, with
// the path as the final lexicographic tie-break.
type Result struct {
	Path          string
	Distance      int
	FilenameMatch int
}

type Selector struct {
	patterns []glob.Glob
}

// New compiles the test-shape filename patterns (defaults:
// test_*.py and *_test.py; conftest.py matches neither).
func New(patterns []string) (*Selector, error) {
	s := &Selector{}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid test pattern %q: %w", pattern, err)
		}
		s.patterns = append(s.patterns, g)
	}
	return s, nil
}

func (s *Selector) IsTestPath(p string) bool {
	base := path.Base(p)
	for _, g := range s.patterns {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// Select filters the traversal result (which already contains the
// seeds at distance 0) to test-shaped indexed modules, orders them, and
// applies the optional cap. max <= 0 disables the cap. Truncation and
// capping surface as diagnostics, not errors: the selection itself is
// still correct.
func (s *Selector) Select(idx *index.ProjectIndex, imp graph.Impact, seeds []string, max int) []Result {
	if imp.Truncated {
		idx.Diags.Addf(diag.DistanceTruncated, "distance limit excluded reachable modules")
	}

	leaves := changedLeaves(idx, seeds)

	var results []Result
	for id, dist := range imp.Distances {
		if !idx.Graph.HasNode(id) || !s.IsTestPath(id) {
			continue
		}
		results = append(results, Result{
			Path:          id,
			Distance:      dist,
			FilenameMatch: filenameMatch(id, leaves),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FilenameMatch != b.FilenameMatch {
			return a.FilenameMatch < b.FilenameMatch
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Path < b.Path
	})

	if max > 0 && len(results) > max {
		results = results[:max]
		idx.Diags.Addf(diag.MaxCapped, "output capped at %d test files", max)
	}

	observability.SelectionsTotal.Inc()
	observability.SelectionSize.Observe(float64(len(results)))

	return results
}

// changedLeaves collects the last name segment of every changed module;
// test filenames are ranked by affinity to these.
func changedLeaves(idx *index.ProjectIndex, seeds []string) map[string]bool {
	leaves := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		dotted, ok := idx.Paths[seed]
		if !ok || dotted == "" {
			dotted = strings.TrimSuffix(path.Base(seed), ".py")
		}
		parts := strings.Split(dotted, ".")
		leaf := parts[len(parts)-1]
		if leaf != "" {
			leaves[leaf] = true
		}
	}
	return leaves
}

func filenameMatch(p string, leaves map[string]bool) int {
	base := path.Base(p)

	match := 2
	for leaf := range leaves {
		if strings.HasPrefix(base, "test_"+leaf) || strings.Contains(base, "_"+leaf) {
			return 0
		}
		if strings.Contains(base, leaf) && match > 1 {
			match = 1
		}
	}
	return match
}
