package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"testdiff/internal/config"
	"testdiff/internal/diag"
	"testdiff/internal/graph"
	"testdiff/internal/index"
	"testdiff/internal/selector"
	"testdiff/internal/shared/util"
	"testdiff/internal/watcher"
)

type App struct {
	Config     *config.Config
	Builder    *index.Builder
	Selector   *selector.Selector
	teaProgram *tea.Program
	limiter    *util.Limiter
}

// RunOptions are the per-invocation selection knobs.
type RunOptions struct {
	Max           int
	DistanceLimit int
	DryRun        bool
	WarnAsError   bool
	Quiet         bool
}

// RunResult carries one completed selection so printing and the TUI
// can share it.
type RunResult struct {
	Root    string
	Changed []string
	Results []selector.Result
	Diags   *diag.Set

	graph *graph.Graph
}

func NewApp(cfg *config.Config) (*App, error) {
	b, err := index.NewBuilder(cfg)
	if err != nil {
		return nil, err
	}

	s, err := selector.New(cfg.Tests.Patterns)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Builder:  b,
		Selector: s,
		limiter:  util.NewLimiter(cfg.Watch.RescansPerSecond),
	}, nil
}

// RunOnce builds a fresh index and selects impacted tests for the
// given changed files. changedAbs must already be absolute,
// Python-only paths.
func (a *App) RunOnce(ctx context.Context, root string, changedAbs []string, opts RunOptions) (*RunResult, error) {
	idx, err := a.Builder.Build(ctx, root)
	if err != nil {
		return nil, err
	}

	changed, err := idx.NormalizeChanges(changedAbs)
	if err != nil {
		return nil, err
	}

	seeds := idx.Seeds(changed)
	imp := idx.Graph.Reachable(seeds, opts.DistanceLimit)
	results := a.Selector.Select(idx, imp, seeds, opts.Max)

	return &RunResult{
		Root:    root,
		Changed: changed,
		Results: results,
		Diags:   idx.Diags,
		graph:   idx.Graph,
	}, nil
}

// PrintResult writes the selection to out and diagnostics to errOut,
// returning a non-nil error only under warn-as-error.
func (a *App) PrintResult(out, errOut io.Writer, res *RunResult, opts RunOptions) error {
	if opts.DryRun {
		printDryRun(errOut, res)
	} else {
		for _, r := range res.Results {
			fmt.Fprintln(out, r.Path)
		}
	}

	reporter := &diag.Reporter{Out: errOut, Quiet: opts.Quiet, WarnAsError: opts.WarnAsError}
	reporter.Report(res.Diags)
	return reporter.Err(res.Diags)
}

// printDryRun goes to the side channel so a piped consumer reading
// stdout never sees it.
func printDryRun(w io.Writer, res *RunResult) {
	fmt.Fprintf(w, "Root: %s\n", res.Root)
	fmt.Fprintf(w, "Changed files (%d):\n", len(res.Changed))
	for _, p := range res.Changed {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	fmt.Fprintf(w, "\nSelected tests (%d):\n", len(res.Results))
	for _, r := range res.Results {
		fmt.Fprintf(w, "  - %s (distance=%d, filename_match=%d)\n", r.Path, r.Distance, r.FilenameMatch)
	}
	if cycles := detectCyclesFor(res); len(cycles) > 0 {
		fmt.Fprintf(w, "\nImport cycles (%d):\n", len(cycles))
		for _, c := range cycles {
			fmt.Fprintf(w, "  - %s\n", strings.Join(c, " -> "))
		}
	}
}

// Cycles only matter for the human-facing dry run; the traversal
// itself handles them without help.
func detectCyclesFor(res *RunResult) [][]string {
	if res.graph == nil {
		return nil
	}
	return res.graph.DetectCycles()
}

// Watch re-runs selection whenever watched Python sources change.
// Each batch of filesystem events becomes one scan, rate-limited so a
// branch switch does not trigger dozens of rebuilds.
func (a *App) Watch(ctx context.Context, root string, opts RunOptions) error {
	runs := make(chan []string, 1)

	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		func(paths []string) {
			select {
			case runs <- paths:
			default:
				slog.Warn("dropping change batch, previous scan still pending")
			}
		},
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch([]string{root}); err != nil {
		return err
	}

	slog.Info("watching for changes", "root", root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case paths := <-runs:
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
			a.runScan(ctx, root, paths, opts)
		}
	}
}

func (a *App) runScan(ctx context.Context, root string, changedAbs []string, opts RunOptions) {
	scanID := uuid.NewString()
	start := time.Now()

	res, err := a.RunOnce(ctx, root, changedAbs, opts)
	if err != nil {
		slog.Error("scan failed", "scan_id", scanID, "error", err)
		return
	}

	slog.Info("scan complete",
		"scan_id", scanID,
		"changed", len(res.Changed),
		"selected", len(res.Results),
		"duration", time.Since(start))

	if a.teaProgram != nil {
		a.teaProgram.Send(updateMsg{result: res, scanID: scanID})
		return
	}
	_ = a.PrintResult(os.Stdout, os.Stderr, res, opts)
}

// RunUI runs watch mode behind a terminal UI instead of plain output.
func (a *App) RunUI(ctx context.Context, root string, opts RunOptions) error {
	p := tea.NewProgram(initialModel(root), tea.WithAltScreen())
	a.teaProgram = p

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- a.Watch(ctx, root, opts) }()

	if _, err := p.Run(); err != nil {
		return err
	}
	cancel()
	if err := <-errc; err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// StartMetrics exposes the prometheus registry for long-running watch
// sessions. One-shot runs skip it.
func (a *App) StartMetrics(addr string) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
}

// chooseRoot picks the project root: an explicit flag wins, then the
// nearest ancestor of a changed file carrying pyproject.toml or .git
// (shortest ascent across all changed files), then the changed files'
// common parent, then cwd.
func chooseRoot(explicit string, changedAbs []string, cwd string) string {
	pickDir := func(p string) string {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p
		}
		return filepath.Dir(p)
	}

	if explicit != "" {
		return pickDir(explicit)
	}

	bestDepth := -1
	best := ""
	for _, p := range changedAbs {
		depth := 0
		current := pickDir(p)
		for {
			if isProjectMarker(current) {
				if bestDepth == -1 || depth < bestDepth {
					bestDepth, best = depth, current
				}
				break
			}
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
			depth++
		}
	}
	if best != "" && filepath.Dir(best) != best {
		return best
	}

	if common := commonAncestor(changedAbs); common != "" {
		return common
	}
	return cwd
}

func isProjectMarker(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "pyproject.toml")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	return false
}

// commonAncestor returns the deepest directory containing every path's
// parent, or "" when the inputs share nothing.
func commonAncestor(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	common := splitPath(filepath.Dir(paths[0]))
	for _, p := range paths[1:] {
		parts := splitPath(filepath.Dir(p))
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
		if len(common) == 0 {
			return ""
		}
	}
	return strings.Join(common, string(filepath.Separator))
}

func splitPath(p string) []string {
	return strings.Split(filepath.Clean(p), string(filepath.Separator))
}
