package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"testdiff/internal/annotate"
	"testdiff/internal/config"
	"testdiff/internal/gitdiff"
	"testdiff/internal/shared/observability"
)

var (
	configPath    = flag.String("config", "./testdiff.toml", "Path to config file")
	changed       = flag.String("changed", "", "Comma-separated list of changed files (relative to CWD or absolute)")
	gitDiff       = flag.String("git-diff", "", "Diff against this Git ref (e.g., origin/main) to populate changed files")
	gitStaged     = flag.Bool("git-staged", false, "Use staged changes (git diff --cached) to populate changed files")
	gitMergeBase  = flag.String("git-merge-base", "", "Diff against the merge base with this ref")
	gitWorktree   = flag.Bool("git-worktree", false, "Use working tree (staged + unstaged) changes against HEAD")
	rootFlag      = flag.String("root", "", "Project root to scan (defaults to inferred root or CWD)")
	maxResults    = flag.Int("max", 0, "Maximum number of test files to output, most relevant first (0 = no cap)")
	distanceLimit = flag.Int("distance-limit", -1, "Limit graph distance from changed modules (0 = only changed tests themselves, -1 = no cap)")
	dryRun        = flag.Bool("dry-run", false, "Print selection details to stderr instead of the plain list")
	warnAsError   = flag.Bool("warn-as-error", false, "Treat any warning as an error (non-zero exit)")
	quiet         = flag.Bool("quiet", false, "Suppress warnings on stderr")
	watchMode     = flag.Bool("watch", false, "Keep running and re-select on filesystem changes")
	ui            = flag.Bool("ui", false, "Terminal UI for watch mode (implies --watch)")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
	version       = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "format" {
		os.Exit(runFormat(os.Args[2:]))
	}

	flag.Parse()

	if *version {
		fmt.Printf("testdiff v%s\n", VERSION)
		os.Exit(0)
	}

	setupLogging(*verbose, *ui)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("cannot determine working directory", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	changedAbs, err := gatherChanged(ctx, cwd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	// Non-Python paths stay in the set so their drop is reported as a
	// notice during normalization; they only decide nothing here.
	pythonChanged := filterPythonFiles(changedAbs)

	opts := RunOptions{
		Max:           *maxResults,
		DistanceLimit: *distanceLimit,
		DryRun:        *dryRun,
		WarnAsError:   *warnAsError,
		Quiet:         *quiet,
	}

	if *watchMode || *ui {
		root := chooseRoot(*rootFlag, pythonChanged, cwd)
		app.StartMetrics(cfg.Observability.MetricsAddr)
		if cfg.Observability.OTLPEndpoint != "" {
			shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
			if err != nil {
				slog.Error("failed to set up tracing", "error", err)
				os.Exit(1)
			}
			defer shutdown(ctx)
		}

		if *ui {
			err = app.RunUI(ctx, root, opts)
		} else {
			err = app.Watch(ctx, root, opts)
		}
		if err != nil {
			slog.Error("watch mode failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if len(pythonChanged) == 0 {
		if !*quiet {
			fmt.Fprintln(os.Stderr, "Info: no changed Python files detected; skipping.")
		}
		os.Exit(0)
	}

	root := chooseRoot(*rootFlag, pythonChanged, cwd)

	res, err := app.RunOnce(ctx, root, changedAbs, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err := app.PrintResult(os.Stdout, os.Stderr, res, opts); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func runFormat(args []string) int {
	fs := flag.NewFlagSet("format", flag.ExitOnError)
	includeSkipped := fs.Bool("include-skipped", false, "Emit warnings for skipped tests")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: testdiff format [--include-skipped] <report.xml>")
		return 1
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	n, err := annotate.WriteReport(os.Stdout, fs.Arg(0), cwd, annotate.Options{IncludeSkipped: *includeSkipped})
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	if n == 0 {
		fmt.Fprintf(os.Stderr, "No failures, errors, or skipped tests found in %s\n", fs.Arg(0))
	}
	return 0
}

func setupLogging(verbose, ui bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stderr
	if ui {
		// In UI mode, divert logs so they cannot corrupt the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err == nil {
			if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600); err == nil {
				output = f
			} else {
				fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "testdiff", "testdiff.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "testdiff", "testdiff.log")
	}

	return "testdiff.log"
}

// gatherChanged merges the explicit --changed list, positional
// arguments, and any requested git sources into absolute paths.
func gatherChanged(ctx context.Context, cwd string) ([]string, error) {
	var inputs []string
	if *changed != "" {
		inputs = append(inputs, strings.Split(*changed, ",")...)
	}
	inputs = append(inputs, flag.Args()...)

	paths := absolutizeChanged(inputs, cwd)

	if *gitStaged {
		more, err := gitdiff.Staged(ctx, cwd)
		if err != nil {
			return nil, err
		}
		paths = append(paths, more...)
	}
	if *gitWorktree {
		more, err := gitdiff.Worktree(ctx, cwd)
		if err != nil {
			return nil, err
		}
		paths = append(paths, more...)
	}

	switch {
	case *gitMergeBase != "":
		more, err := gitdiff.MergeBase(ctx, cwd, *gitMergeBase)
		if err != nil {
			return nil, err
		}
		paths = append(paths, more...)
	case *gitDiff != "":
		more, err := gitdiff.Range(ctx, cwd, *gitDiff)
		if err != nil {
			return nil, err
		}
		paths = append(paths, more...)
	}

	return dedupe(paths), nil
}

func absolutizeChanged(inputs []string, cwd string) []string {
	var paths []string
	for _, raw := range inputs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p := expandTilde(raw)
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, p)
		}
		// Prefer canonical paths; fall back on error (e.g., deleted file).
		if real, err := filepath.EvalSymlinks(p); err == nil {
			p = real
		} else {
			p = filepath.Clean(p)
		}
		paths = append(paths, p)
	}
	return paths
}

func expandTilde(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Config files, shell scripts and the like should never trigger tests.
func filterPythonFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if strings.HasSuffix(p, ".py") {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
