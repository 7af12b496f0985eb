package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "testdiff_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	})

	FilesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testdiff_files_scanned_total",
		Help: "Total number of source files discovered and parsed.",
	})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testdiff_parse_failures_total",
		Help: "Total number of files that failed to parse.",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "testdiff_graph_nodes_total",
		Help: "Number of nodes in the last built dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "testdiff_graph_edges_total",
		Help: "Number of edges in the last built dependency graph.",
	})

	UnresolvedImports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testdiff_unresolved_imports_total",
		Help: "Total number of imports that could not be resolved to a module.",
	})

	SelectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testdiff_selections_total",
		Help: "Total number of impacted-test selections computed.",
	})

	SelectionSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "testdiff_selection_size",
		Help:    "Number of test files per selection.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "testdiff_watcher_events_total",
		Help: "Total number of file system change events observed by the watcher.",
	})
)
