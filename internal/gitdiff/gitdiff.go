// Package gitdiff gathers changed files from a git checkout so the
// caller does not have to list them by hand. All functions return
// absolute paths anchored at the repository toplevel, since git prints
// names relative to it regardless of the working directory.
package gitdiff

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	coreerrors "testdiff/internal/core/errors"
)

// Staged returns files with staged modifications.
func Staged(ctx context.Context, dir string) ([]string, error) {
	return changedFiles(ctx, dir, "--cached")
}

// Worktree returns files modified relative to HEAD, staged or not.
func Worktree(ctx context.Context, dir string) ([]string, error) {
	return changedFiles(ctx, dir, "HEAD")
}

// Range returns files modified between ref and HEAD.
func Range(ctx context.Context, dir, ref string) ([]string, error) {
	return changedFiles(ctx, dir, ref+"..HEAD")
}

// MergeBase diffs HEAD against its merge base with ref, which is what
// a CI run on a feature branch wants: only the branch's own changes,
// not everything that landed on the target since it forked.
func MergeBase(ctx context.Context, dir, ref string) ([]string, error) {
	base, err := runGit(ctx, dir, "merge-base", ref, "HEAD")
	if err != nil {
		return nil, err
	}
	return changedFiles(ctx, dir, base+"..HEAD")
}

func changedFiles(ctx context.Context, dir string, diffArgs ...string) ([]string, error) {
	toplevel, err := runGit(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}

	args := append([]string{"diff", "--name-only"}, diffArgs...)
	out, err := runGit(ctx, dir, args...)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		paths = append(paths, filepath.Join(toplevel, filepath.FromSlash(line)))
	}
	return paths, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", coreerrors.Newf(coreerrors.CodeInternal,
			"git %s: %s", strings.Join(args, " "), msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}
