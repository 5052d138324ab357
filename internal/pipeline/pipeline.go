// Package pipeline runs project analysis end to end: load packages, extract
// the item catalog and build the graph.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zheng/modgraph/internal/analyzer"
	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/logging"
	"github.com/zheng/modgraph/internal/observability"
)

// Options for one analysis run
type Options struct {
	Dir        string
	Patterns   []string
	Tests      bool
	Externs    bool
	CallGraph  bool
	Fields     bool
	Implements bool

	// ChangedSince, when set, resolves git changes against this base and
	// reports the changed packages in Result.Changed
	ChangedSince string

	Build []graph.BuilderOption
}

// Result of an analysis run
type Result struct {
	Catalog  graph.Catalog
	Graph    *graph.Graph
	Changed  []graph.ItemID
	Duration time.Duration
}

// Run loads the project in opts.Dir and builds its graph
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	ctx, span := observability.StartPhaseSpan(ctx, "analyze", attribute.String("project.dir", opts.Dir))
	defer span.End()

	phaseStart := time.Now()
	loadCtx, loadSpan := observability.StartPhaseSpan(ctx, "load")
	pkgs, err := analyzer.LoadPackages(loadCtx, analyzer.LoadConfig{
		Dir:      opts.Dir,
		Patterns: opts.Patterns,
		Tests:    opts.Tests,
		Logger:   logger,
	})
	if err == nil {
		pkgs = analyzer.FilterSourcePackages(pkgs)
		if len(pkgs) == 0 {
			err = fmt.Errorf("no Go packages with source found in %s", opts.Dir)
		}
	}
	if err != nil {
		observability.RecordError(loadSpan, err)
		loadSpan.End()
		observability.RecordError(span, err)
		return nil, err
	}
	loadSpan.SetAttributes(attribute.Int("packages", len(pkgs)))
	loadSpan.End()
	observability.ObservePhase("load", time.Since(phaseStart))
	logger.Debug("packages loaded", "packages", len(pkgs), "duration", time.Since(phaseStart))

	phaseStart = time.Now()
	_, extractSpan := observability.StartPhaseSpan(ctx, "extract")
	cat := analyzer.Extract(pkgs, analyzer.Options{
		ProjectRoot: opts.Dir,
		Externs:     opts.Externs,
		CallGraph:   opts.CallGraph,
		Fields:      opts.Fields,
		Implements:  opts.Implements,
		Logger:      logger,
	})
	extractSpan.SetAttributes(
		attribute.Int("catalog.items", len(cat.Items)),
		attribute.Int("catalog.relations", len(cat.Relations)),
	)
	extractSpan.End()
	observability.ObservePhase("extract", time.Since(phaseStart))

	g, err := Build(ctx, cat, opts.Build...)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	res := &Result{Catalog: cat, Graph: g}

	if opts.ChangedSince != "" {
		changes, err := analyzer.GetGitChanges(ctx, opts.Dir, opts.ChangedSince)
		if err != nil {
			observability.RecordError(span, err)
			return nil, fmt.Errorf("failed to get changes since %s: %w", opts.ChangedSince, err)
		}
		res.Changed = changes.PackageIDs(opts.Dir, pkgs)
		logger.Info("git changes", "summary", changes.String(), "packages", len(res.Changed))
	}

	res.Duration = time.Since(start)
	logger.Info("analysis complete",
		"nodes", g.NodeCount(), "edges", g.EdgeCount(), "duration", res.Duration)
	return res, nil
}

// Build builds a graph from a catalog with tracing and metrics
func Build(ctx context.Context, cat graph.Catalog, opts ...graph.BuilderOption) (*graph.Graph, error) {
	start := time.Now()
	_, span := observability.StartPhaseSpan(ctx, "build")
	defer span.End()

	opts = append([]graph.BuilderOption{graph.WithLogger(logging.FromContext(ctx))}, opts...)
	g, err := graph.FromCatalog(cat, opts...)
	observability.ObservePhase("build", time.Since(start))
	if err != nil {
		observability.ObserveBuild(err, 0, nil)
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}

	stats := graph.ComputeStats(g)
	observability.ObserveBuild(nil, stats.Nodes, stats.ByRelationship)
	observability.RecordGraphSize(span, stats.Nodes, stats.Edges)
	return g, nil
}
