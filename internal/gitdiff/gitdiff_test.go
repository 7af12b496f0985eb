package gitdiff

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
)

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	git(t, dir, "init", "-q", "-b", "main")
	return dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func relPaths(t *testing.T, dir string, abs []string) []string {
	t.Helper()
	var rels []string
	for _, p := range abs {
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			t.Fatal(err)
		}
		rels = append(rels, filepath.ToSlash(rel))
	}
	slices.Sort(rels)
	return rels
}

func TestStagedAndWorktree(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "pkg/auth.py", "x = 1\n")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-q", "-m", "initial")

	writeFile(t, dir, "pkg/auth.py", "x = 2\n")
	writeFile(t, dir, "pkg/new.py", "y = 1\n")
	git(t, dir, "add", "pkg/new.py")

	ctx := context.Background()

	staged, err := Staged(ctx, dir)
	if err != nil {
		t.Fatalf("Staged: %v", err)
	}
	if got := relPaths(t, dir, staged); !slices.Equal(got, []string{"pkg/new.py"}) {
		t.Errorf("staged = %v, want [pkg/new.py]", got)
	}

	worktree, err := Worktree(ctx, dir)
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	want := []string{"pkg/auth.py", "pkg/new.py"}
	if got := relPaths(t, dir, worktree); !slices.Equal(got, want) {
		t.Errorf("worktree = %v, want %v", got, want)
	}
}

func TestRangeAndMergeBase(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "a.py", "a = 1\n")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-q", "-m", "one")

	git(t, dir, "checkout", "-q", "-b", "feature")
	writeFile(t, dir, "b.py", "b = 1\n")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-q", "-m", "two")

	ctx := context.Background()

	ranged, err := Range(ctx, dir, "main")
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if got := relPaths(t, dir, ranged); !slices.Equal(got, []string{"b.py"}) {
		t.Errorf("range = %v, want [b.py]", got)
	}

	// Advance main so merge-base diverges from its tip.
	git(t, dir, "checkout", "-q", "main")
	writeFile(t, dir, "c.py", "c = 1\n")
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-q", "-m", "three")
	git(t, dir, "checkout", "-q", "feature")

	based, err := MergeBase(ctx, dir, "main")
	if err != nil {
		t.Fatalf("MergeBase: %v", err)
	}
	if got := relPaths(t, dir, based); !slices.Equal(got, []string{"b.py"}) {
		t.Errorf("merge-base diff = %v, want [b.py]", got)
	}
}

func TestNotARepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	_, err := Staged(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected an error outside a repository")
	}
}
