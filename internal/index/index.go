package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"

	"testdiff/internal/config"
	coreerrors "testdiff/internal/core/errors"
	"testdiff/internal/diag"
	"testdiff/internal/graph"
	"testdiff/internal/parser"
	"testdiff/internal/resolver"
	"testdiff/internal/shared/observability"
)

// ProjectIndex is the fully built view of one project scan: the import
// graph plus the module-name bookkeeping resolution needs. It is
// constructed once per run and read-only afterwards.
type ProjectIndex struct {
	Root    string
	Graph   *graph.Graph
	Modules map[string]string // dotted module name -> project-relative path
	Paths   map[string]string // project-relative path -> dotted module name
	Diags   *diag.Set
}

type Builder struct {
	cfg       *config.Config
	parser    *parser.Parser
	workers   int
	dirGlobs  []glob.Glob
	fileGlobs []glob.Glob
}

func NewBuilder(cfg *config.Config) (*Builder, error) {
	p := parser.NewParser(parser.NewGrammarLoader())
	p.RegisterExtractor("python", &parser.PythonExtractor{})

	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	b := &Builder{cfg: cfg, parser: p, workers: workers}

	for _, pattern := range cfg.Exclude.Dirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude dir pattern %q: %w", pattern, err)
		}
		b.dirGlobs = append(b.dirGlobs, g)
	}
	for _, pattern := range cfg.Exclude.Files {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude file pattern %q: %w", pattern, err)
		}
		b.fileGlobs = append(b.fileGlobs, g)
	}

	return b, nil
}

// Build scans the project tree under root, parses every Python file,
// resolves imports and assembles the dependency graph. The graph is
// complete before it is returned: resolution needs the full set of
// on-disk modules, so there is no streaming traversal.
//
// Parsing runs on a small worker pool; the merge into the graph is
// single-threaded in discovery order, so the result is deterministic
// regardless of worker completion order.
func (b *Builder) Build(ctx context.Context, root string) (*ProjectIndex, error) {
	start := time.Now()
	ctx, span := observability.Tracer.Start(ctx, "index.Build")
	defer span.End()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInvalidInput, "project root unusable")
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, coreerrors.Newf(coreerrors.CodeInvalidInput, "project root is not a directory: %s", absRoot)
	}

	idx := &ProjectIndex{
		Root:    absRoot,
		Graph:   graph.New(),
		Modules: make(map[string]string),
		Paths:   make(map[string]string),
		Diags:   diag.NewSet(),
	}

	relPaths, err := b.discover(absRoot)
	if err != nil {
		return nil, err
	}

	res := resolver.NewPythonResolver(absRoot)
	for _, rel := range relPaths {
		dotted := res.ModuleName(rel)
		idx.Paths[rel] = dotted
		// First come wins on a malformed tree where a module and a
		// package initializer share a dotted name; discovery order is
		// lexical, so a/b.py precedes a/b/__init__.py.
		if _, exists := idx.Modules[dotted]; !exists {
			idx.Modules[dotted] = rel
		}
		idx.Graph.AddNode(rel)
	}

	results, err := b.parseAll(ctx, absRoot, relPaths)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "scan interrupted")
	}

	for i, rel := range relPaths {
		if results[i].err != nil {
			observability.ParseFailures.Inc()
			idx.Diags.Add(diag.Diagnostic{
				Kind:    diag.ParseFailure,
				Message: fmt.Sprintf("failed to parse: %v", results[i].err),
				File:    rel,
			})
			continue
		}
		b.resolveImports(idx, res, rel, results[i].file)
	}

	observability.GraphNodes.Set(float64(idx.Graph.NodeCount()))
	observability.GraphEdges.Set(float64(idx.Graph.EdgeCount()))
	span.SetAttributes(
		attribute.String("root", absRoot),
		attribute.Int("files", len(relPaths)),
		attribute.Int("edges", idx.Graph.EdgeCount()),
	)
	slog.Debug("project indexed",
		"root", absRoot,
		"files", len(relPaths),
		"edges", idx.Graph.EdgeCount(),
		"duration", time.Since(start))

	return idx, nil
}

// discover walks the tree and returns project-relative slash paths of
// every candidate source file, in lexical walk order. Excluded
// directory names match on the path segment, never on full-path
// patterns.
func (b *Builder) discover(absRoot string) ([]string, error) {
	var relPaths []string

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		base := filepath.Base(path)
		if d.IsDir() {
			if path != absRoot {
				for _, g := range b.dirGlobs {
					if g.Match(base) {
						return filepath.SkipDir
					}
				}
			}
			return nil
		}

		if !b.parser.IsSupportedPath(path) {
			return nil
		}
		for _, g := range b.fileGlobs {
			if g.Match(base) {
				return nil
			}
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeInternal, "project walk failed")
	}

	sort.Strings(relPaths)
	return relPaths, nil
}

type parseResult struct {
	file *parser.File
	err  error
}

func (b *Builder) parseAll(ctx context.Context, absRoot string, relPaths []string) ([]parseResult, error) {
	results := make([]parseResult, len(relPaths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = b.parseOne(absRoot, relPaths[i])
			}
		}()
	}

	var err error
dispatch:
	for i := range relPaths {
		if err = ctx.Err(); err != nil {
			break dispatch
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return results, err
}

func (b *Builder) parseOne(absRoot, rel string) parseResult {
	content, err := os.ReadFile(filepath.Join(absRoot, filepath.FromSlash(rel)))
	if err != nil {
		return parseResult{err: err}
	}

	timer := time.Now()
	file, err := b.parser.ParseFile(rel, content)
	observability.ParsingDuration.Observe(time.Since(timer).Seconds())
	observability.FilesScanned.Inc()

	return parseResult{file: file, err: err}
}

// resolveImports adds one forward/reverse edge pair per successful
// resolution. An import statement that resolves to nothing on disk
// records a single diagnostic; stdlib imports are silently external.
func (b *Builder) resolveImports(idx *ProjectIndex, res *resolver.PythonResolver, rel string, file *parser.File) {
	fromModule := idx.Paths[rel]
	isPackage := resolver.IsPackage(rel)

	for _, imp := range file.Imports {
		prefix := res.Anchor(imp, fromModule, isPackage)

		items := make([]string, 0, len(imp.Items))
		for _, item := range imp.Items {
			if item != "*" {
				items = append(items, item)
			}
		}

		edges := 0
		if len(items) == 0 {
			if target, ok := b.lookup(idx, res, prefix); ok {
				edges += idx.addEdge(rel, target)
			}
		} else {
			for _, item := range items {
				dotted := joinDotted(prefix, item)
				if target, ok := b.lookup(idx, res, dotted); ok {
					edges += idx.addEdge(rel, target)
					continue
				}
				// The item may be a symbol rather than a submodule; the
				// dependency is then on the module itself.
				if target, ok := b.lookup(idx, res, prefix); ok {
					edges += idx.addEdge(rel, target)
				}
			}
		}

		if edges > 0 {
			continue
		}

		if target, ok := trimToKnown(idx, prefix); ok {
			idx.addEdge(rel, target)
			continue
		}

		if imp.Level == 0 && resolver.IsStdlib(prefix) {
			continue
		}

		observability.UnresolvedImports.Inc()
		idx.Diags.Add(diag.Diagnostic{
			Kind:    diag.UnresolvedImport,
			Message: fmt.Sprintf("unresolved import `%s`", imp.Raw),
			File:    rel,
			Line:    imp.Location.Line,
		})
	}
}

// lookup resolves a dotted path to a module identity: scanned modules
// first, then an on-disk probe for files the walk did not cover.
func (b *Builder) lookup(idx *ProjectIndex, res *resolver.PythonResolver, dotted string) (string, bool) {
	if dotted == "" {
		return "", false
	}
	if rel, ok := idx.Modules[dotted]; ok {
		return rel, true
	}
	return res.Locate(dotted)
}

// trimToKnown pops trailing segments until a scanned module matches:
// `from pkg.mod import helper` falls back to pkg.mod, then pkg.
func trimToKnown(idx *ProjectIndex, dotted string) (string, bool) {
	parts := strings.Split(dotted, ".")
	for len(parts) > 1 {
		parts = parts[:len(parts)-1]
		if rel, ok := idx.Modules[strings.Join(parts, ".")]; ok {
			return rel, true
		}
	}
	return "", false
}

// addEdge skips self-imports, which carry no impact information.
func (idx *ProjectIndex) addEdge(from, to string) int {
	if from == to {
		return 0
	}
	idx.Graph.AddEdge(from, to)
	return 1
}

func joinDotted(prefix, item string) string {
	if prefix == "" {
		return item
	}
	return prefix + "." + item
}
