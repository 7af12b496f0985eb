package index

import (
	"fmt"
	"path/filepath"
	"strings"

	coreerrors "testdiff/internal/core/errors"
	"testdiff/internal/diag"
	"testdiff/internal/resolver"
)

// NormalizeChanges converts externally supplied changed paths into the
// ChangeSet: project-relative, slash-separated, Python-only. Non-Python
// paths are dropped with a notice, never silently. A Python path
// outside the project root cannot be analyzed and aborts the run.
func (idx *ProjectIndex) NormalizeChanges(paths []string) ([]string, error) {
	var changed []string
	seen := make(map[string]bool, len(paths))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidInput, "changed path unusable")
		}

		// Non-Python files never abort a run, wherever they live; they
		// are dropped up front with a notice.
		if !strings.HasSuffix(abs, ".py") {
			idx.Diags.Add(diag.Diagnostic{
				Kind:    diag.NonPythonChange,
				Message: "changed file is not a Python source, skipping",
				File:    displayPath(idx.Root, abs),
			})
			continue
		}

		rel, err := filepath.Rel(idx.Root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, coreerrors.Newf(coreerrors.CodeInvalidInput,
				"changed path is outside the project root: %s", p)
		}
		rel = filepath.ToSlash(rel)

		if !seen[rel] {
			seen[rel] = true
			changed = append(changed, rel)
		}
	}

	return changed, nil
}

// displayPath prefers the project-relative form for messages when the
// path lives under the root.
func displayPath(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return filepath.ToSlash(rel)
}

// Seeds maps the ChangeSet onto graph nodes. A changed file missing
// from the index (deleted, or inside an excluded directory) is
// approximated by its derived module identity: trimming its dotted name
// finds the enclosing package initializer, which importers' fallback
// edges already point at.
func (idx *ProjectIndex) Seeds(changed []string) []string {
	res := resolver.NewPythonResolver(idx.Root)

	seeds := make([]string, 0, len(changed))
	seen := make(map[string]bool, len(changed))
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			seeds = append(seeds, id)
		}
	}

	for _, rel := range changed {
		if idx.Graph.HasNode(rel) {
			add(rel)
			continue
		}

		dotted := res.ModuleName(rel)
		target, ok := trimToKnown(idx, dotted)
		if !ok {
			target = rel
		}
		add(target)

		idx.Diags.Add(diag.Diagnostic{
			Kind:    diag.UnindexedChange,
			Message: fmt.Sprintf("changed file not indexed (seeding `%s`)", target),
			File:    rel,
		})
	}

	return seeds
}
