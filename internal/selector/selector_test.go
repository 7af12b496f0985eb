package selector

import (
	"testing"

	"testdiff/internal/diag"
	"testdiff/internal/graph"
	"testdiff/internal/index"
)

func testIndex(paths map[string]string) *index.ProjectIndex {
	idx := &index.ProjectIndex{
		Graph:   graph.New(),
		Modules: make(map[string]string),
		Paths:   make(map[string]string),
		Diags:   diag.NewSet(),
	}
	for rel, dotted := range paths {
		idx.Graph.AddNode(rel)
		idx.Modules[dotted] = rel
		idx.Paths[rel] = dotted
	}
	return idx
}

func defaultSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := New([]string{"test_*.py", "*_test.py"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestIsTestPath(t *testing.T) {
	s := defaultSelector(t)

	cases := []struct {
		path string
		want bool
	}{
		{"tests/test_auth.py", true},
		{"pkg/auth_test.py", true},
		{"pkg/auth.py", false},
		{"tests/conftest.py", false},
		{"test_top.py", true},
		{"tests/testing.py", false},
	}
	for _, tc := range cases {
		if got := s.IsTestPath(tc.path); got != tc.want {
			t.Errorf("IsTestPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestSelectFiltersToIndexedTests(t *testing.T) {
	idx := testIndex(map[string]string{
		"pkg/auth.py":        "pkg.auth",
		"tests/test_auth.py": "tests.test_auth",
		"tests/conftest.py":  "tests.conftest",
	})
	s := defaultSelector(t)

	imp := graph.Impact{Distances: map[string]int{
		"pkg/auth.py":        0,
		"tests/test_auth.py": 1,
		"tests/conftest.py":  1,
		"gone/test_gone.py":  2, // not a graph node
	}}

	results := s.Select(idx, imp, []string{"pkg/auth.py"}, 0)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	if results[0].Path != "tests/test_auth.py" {
		t.Errorf("selected %q, want tests/test_auth.py", results[0].Path)
	}
	if results[0].Distance != 1 {
		t.Errorf("distance = %d, want 1", results[0].Distance)
	}
}

func TestSelectIncludesChangedTestItself(t *testing.T) {
	idx := testIndex(map[string]string{
		"tests/test_auth.py": "tests.test_auth",
	})
	s := defaultSelector(t)

	imp := graph.Impact{Distances: map[string]int{"tests/test_auth.py": 0}}

	results := s.Select(idx, imp, []string{"tests/test_auth.py"}, 0)
	if len(results) != 1 || results[0].Path != "tests/test_auth.py" {
		t.Fatalf("changed test file not selected: %+v", results)
	}
}

func TestSelectPriorityOrdering(t *testing.T) {
	idx := testIndex(map[string]string{
		"pkg/auth.py":          "pkg.auth",
		"tests/test_auth.py":   "tests.test_auth",
		"tests/test_api.py":    "tests.test_api",
		"tests/test_other.py":  "tests.test_other",
		"tests/helper_test.py": "tests.helper_test",
	})
	s := defaultSelector(t)

	imp := graph.Impact{Distances: map[string]int{
		"pkg/auth.py":          0,
		"tests/test_auth.py":   2, // name matches changed leaf: ranks first despite distance
		"tests/test_api.py":    1,
		"tests/test_other.py":  1,
		"tests/helper_test.py": 1,
	}}

	results := s.Select(idx, imp, []string{"pkg/auth.py"}, 0)

	want := []string{
		"tests/test_auth.py",
		"tests/helper_test.py",
		"tests/test_api.py",
		"tests/test_other.py",
	}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d: %+v", len(results), len(want), results)
	}
	for i, w := range want {
		if results[i].Path != w {
			t.Errorf("results[%d] = %q, want %q", i, results[i].Path, w)
		}
	}
	if results[0].FilenameMatch != 0 {
		t.Errorf("test_auth FilenameMatch = %d, want 0", results[0].FilenameMatch)
	}
}

func TestSelectMaxCap(t *testing.T) {
	idx := testIndex(map[string]string{
		"pkg/core.py":     "pkg.core",
		"tests/test_a.py": "tests.test_a",
		"tests/test_b.py": "tests.test_b",
		"tests/test_c.py": "tests.test_c",
	})
	s := defaultSelector(t)

	imp := graph.Impact{Distances: map[string]int{
		"pkg/core.py":     0,
		"tests/test_a.py": 1,
		"tests/test_b.py": 1,
		"tests/test_c.py": 1,
	}}

	results := s.Select(idx, imp, []string{"pkg/core.py"}, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// equal priority falls back to lexicographic path order
	if results[0].Path != "tests/test_a.py" || results[1].Path != "tests/test_b.py" {
		t.Errorf("unexpected capped set: %+v", results)
	}
	if !idx.Diags.Has(diag.MaxCapped) {
		t.Error("expected MaxCapped diagnostic")
	}
}

func TestSelectMaxEqualToSizeNoDiagnostic(t *testing.T) {
	idx := testIndex(map[string]string{
		"pkg/core.py":     "pkg.core",
		"tests/test_a.py": "tests.test_a",
	})
	s := defaultSelector(t)

	imp := graph.Impact{Distances: map[string]int{
		"pkg/core.py":     0,
		"tests/test_a.py": 1,
	}}

	results := s.Select(idx, imp, []string{"pkg/core.py"}, 1)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if idx.Diags.Has(diag.MaxCapped) {
		t.Error("cap equal to result size should not warn")
	}
}

func TestSelectTruncationDiagnostic(t *testing.T) {
	idx := testIndex(map[string]string{"pkg/core.py": "pkg.core"})
	s := defaultSelector(t)

	imp := graph.Impact{
		Distances: map[string]int{"pkg/core.py": 0},
		Truncated: true,
	}

	s.Select(idx, imp, []string{"pkg/core.py"}, 0)
	if !idx.Diags.Has(diag.DistanceTruncated) {
		t.Error("expected DistanceTruncated diagnostic")
	}
}
