package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testdiff/internal/config"
	"testdiff/internal/diag"
	"testdiff/internal/graph"
)

func writeFile(t *testing.T, root, rel, contents string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(config.Default())
	require.NoError(t, err)
	return app
}

func selectedPaths(res *RunResult) []string {
	var out []string
	for _, r := range res.Results {
		out = append(out, r.Path)
	}
	return out
}

func defaultOpts() RunOptions {
	return RunOptions{DistanceLimit: graph.NoDistanceLimit}
}

func TestSelectsReverseDependencyTests(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/__init__.py", "")
	changed := writeFile(t, root, "pkg/foo.py", "def f():\n    return 1\n")
	writeFile(t, root, "tests/test_foo.py", "from pkg import foo\n")

	app := newTestApp(t)
	res, err := app.RunOnce(context.Background(), root, []string{changed}, defaultOpts())
	require.NoError(t, err)

	assert.Contains(t, selectedPaths(res), "tests/test_foo.py")
}

func TestDistanceLimitPrunes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/__init__.py", "")
	changed := writeFile(t, root, "pkg/core.py", "def core():\n    return 1\n")
	writeFile(t, root, "pkg/service.py", "from pkg import core\n\ndef use():\n    return core.core()\n")
	writeFile(t, root, "tests/test_service.py", "from pkg import service\n\ndef test_use():\n    assert service.use()\n")

	app := newTestApp(t)

	unbounded, err := app.RunOnce(context.Background(), root, []string{changed}, defaultOpts())
	require.NoError(t, err)
	assert.Contains(t, selectedPaths(unbounded), "tests/test_service.py")
	assert.False(t, unbounded.Diags.Has(diag.DistanceTruncated))

	opts := defaultOpts()
	opts.DistanceLimit = 1
	capped, err := app.RunOnce(context.Background(), root, []string{changed}, opts)
	require.NoError(t, err)
	assert.NotContains(t, selectedPaths(capped), "tests/test_service.py")
	assert.True(t, capped.Diags.Has(diag.DistanceTruncated))
}

func TestDeletedFileStillImpactsImporters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/__init__.py", "")
	removed := writeFile(t, root, "pkg/foo.py", "def f():\n    return 1\n")
	writeFile(t, root, "tests/test_foo.py", "from pkg import foo\n")

	require.NoError(t, os.Remove(removed))

	app := newTestApp(t)
	res, err := app.RunOnce(context.Background(), root, []string{removed}, defaultOpts())
	require.NoError(t, err)

	// Resolution of `from pkg import foo` falls back to the package
	// initializer once foo.py is gone, and the deleted file seeds the
	// same place, so the importer's test is still found.
	assert.Contains(t, selectedPaths(res), "tests/test_foo.py")
	assert.True(t, res.Diags.Has(diag.UnindexedChange))
}

func TestDeletedTopLevelModule(t *testing.T) {
	root := t.TempDir()
	removed := writeFile(t, root, "foo.py", "def f():\n    return 1\n")
	writeFile(t, root, "tests/test_bar.py", "import foo\n")

	require.NoError(t, os.Remove(removed))

	app := newTestApp(t)
	res, err := app.RunOnce(context.Background(), root, []string{removed}, defaultOpts())
	require.NoError(t, err)

	// With no enclosing package to fall back to, the deletion cannot
	// be connected to its importers; it surfaces as diagnostics
	// instead of silently producing an empty, confident answer.
	assert.Empty(t, selectedPaths(res))
	assert.True(t, res.Diags.Has(diag.UnindexedChange))
	assert.True(t, res.Diags.Has(diag.UnresolvedImport))
}

func TestConftestIsNotSelected(t *testing.T) {
	root := t.TempDir()
	changed := writeFile(t, root, "pkg/util.py", "def u():\n    return 1\n")
	writeFile(t, root, "pkg/__init__.py", "")
	writeFile(t, root, "tests/conftest.py", "from pkg import util\n")
	writeFile(t, root, "tests/test_util.py", "from pkg import util\n")

	app := newTestApp(t)
	res, err := app.RunOnce(context.Background(), root, []string{changed}, defaultOpts())
	require.NoError(t, err)

	paths := selectedPaths(res)
	assert.Contains(t, paths, "tests/test_util.py")
	assert.NotContains(t, paths, "tests/conftest.py")
}

func TestMaxCapsOutput(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/__init__.py", "")
	changed := writeFile(t, root, "pkg/core.py", "")
	writeFile(t, root, "tests/test_a.py", "from pkg import core\n")
	writeFile(t, root, "tests/test_b.py", "from pkg import core\n")

	app := newTestApp(t)
	opts := defaultOpts()
	opts.Max = 1
	res, err := app.RunOnce(context.Background(), root, []string{changed}, opts)
	require.NoError(t, err)

	assert.Len(t, res.Results, 1)
	assert.True(t, res.Diags.Has(diag.MaxCapped))
}

func TestPrintResultExitPolicy(t *testing.T) {
	root := t.TempDir()
	changed := writeFile(t, root, "app.py", "import requests\n")
	writeFile(t, root, "test_app.py", "import app\n")

	app := newTestApp(t)
	res, err := app.RunOnce(context.Background(), root, []string{changed}, defaultOpts())
	require.NoError(t, err)
	require.True(t, res.Diags.Has(diag.UnresolvedImport))

	var out, errOut bytes.Buffer
	require.NoError(t, app.PrintResult(&out, &errOut, res, defaultOpts()))
	assert.Contains(t, out.String(), "test_app.py")
	assert.Contains(t, errOut.String(), "Warning:")

	// Quiet keeps stderr clean but the selection unchanged.
	out.Reset()
	errOut.Reset()
	quietOpts := defaultOpts()
	quietOpts.Quiet = true
	require.NoError(t, app.PrintResult(&out, &errOut, res, quietOpts))
	assert.Contains(t, out.String(), "test_app.py")
	assert.Empty(t, errOut.String())

	// Warn-as-error flips the exit code, not the output.
	out.Reset()
	strictOpts := defaultOpts()
	strictOpts.WarnAsError = true
	err = app.PrintResult(&out, &errOut, res, strictOpts)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "test_app.py")
}

func TestMixedChangesetReportsNonPythonNotice(t *testing.T) {
	root := t.TempDir()
	changedPy := writeFile(t, root, "app.py", "")
	changedTxt := writeFile(t, root, "notes.txt", "not code\n")
	writeFile(t, root, "test_app.py", "import app\n")

	app := newTestApp(t)
	res, err := app.RunOnce(context.Background(), root, []string{changedPy, changedTxt}, defaultOpts())
	require.NoError(t, err)

	// The non-Python file is dropped from the changeset but its drop
	// is visible, both on stderr and to warn-as-error.
	assert.Equal(t, []string{"app.py"}, res.Changed)
	assert.True(t, res.Diags.Has(diag.NonPythonChange))

	var out, errOut bytes.Buffer
	require.NoError(t, app.PrintResult(&out, &errOut, res, defaultOpts()))
	assert.Contains(t, out.String(), "test_app.py")
	assert.Contains(t, errOut.String(), "not a Python source")

	strictOpts := defaultOpts()
	strictOpts.WarnAsError = true
	assert.Error(t, app.PrintResult(&out, &errOut, res, strictOpts))
}

func TestDryRunKeepsStdoutEmpty(t *testing.T) {
	root := t.TempDir()
	changed := writeFile(t, root, "app.py", "")
	writeFile(t, root, "test_app.py", "import app\n")

	app := newTestApp(t)
	res, err := app.RunOnce(context.Background(), root, []string{changed}, defaultOpts())
	require.NoError(t, err)

	var out, errOut bytes.Buffer
	opts := defaultOpts()
	opts.DryRun = true
	require.NoError(t, app.PrintResult(&out, &errOut, res, opts))

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Selected tests (1):")
	assert.Contains(t, errOut.String(), "test_app.py")
}

func TestChooseRootPrefersNearestMarker(t *testing.T) {
	tmp := t.TempDir()
	workspace := filepath.Join(tmp, "repo")
	nested := filepath.Join(workspace, "pkg", "module")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "pyproject.toml"), nil, 0o644))
	changed := filepath.Join(nested, "file.py")
	require.NoError(t, os.WriteFile(changed, []byte("x = 1\n"), 0o644))

	root := chooseRoot("", []string{changed}, tmp)
	assert.Equal(t, workspace, root)
}

func TestChooseRootFallsBackToCommonAncestor(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a", "b", "c.py")
	b := filepath.Join(tmp, "a", "b", "d.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(a), 0o755))
	require.NoError(t, os.WriteFile(a, nil, 0o644))
	require.NoError(t, os.WriteFile(b, nil, 0o644))

	got := commonAncestor([]string{a, b})
	assert.Equal(t, filepath.Join(tmp, "a", "b"), got)
}

func TestFilterPythonFiles(t *testing.T) {
	got := filterPythonFiles([]string{"foo.py", "bar.txt", "scripts/test", "nested/baz.py"})
	assert.Equal(t, []string{"foo.py", "nested/baz.py"}, got)
}
