package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/logging"
	"github.com/zheng/modgraph/internal/pipeline"
	"github.com/zheng/modgraph/internal/storage"
)

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openOutput returns stdout for "" or "-", else a created file
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// projectFlags are shared by every command that needs a graph
type projectFlags struct {
	dir        string
	tests      bool
	externs    bool
	callgraph  bool
	fields     bool
	implements bool
	snapshot   string
}

func (p *projectFlags) register(cmd *cobra.Command) {
	p.registerAnalysis(cmd)
	cmd.Flags().StringVarP(&p.snapshot, "snapshot", "s", "", `load a stored snapshot ("latest" or an ID) instead of analysing`)
}

func (p *projectFlags) registerAnalysis(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&p.dir, "dir", "C", ".", "project directory")
	f.BoolVar(&p.tests, "tests", false, "include _test.go files")
	f.BoolVar(&p.externs, "externs", false, "add referenced non-project packages as external items")
	f.BoolVar(&p.callgraph, "callgraph", false, "add uses edges from a VTA call graph")
	f.BoolVar(&p.fields, "fields", false, "add struct fields as items")
	f.BoolVar(&p.implements, "implements", false, "add uses edges from types to the project interfaces they implement")
}

// options merges config with the flags the user set explicitly
func (p *projectFlags) options(cmd *cobra.Command, patterns []string) pipeline.Options {
	opts := pipeline.Options{
		Dir:        p.dir,
		Patterns:   cfg.Analysis.Patterns,
		Tests:      cfg.Analysis.Tests,
		Externs:    cfg.Analysis.Externs,
		CallGraph:  cfg.Analysis.CallGraph,
		Fields:     cfg.Analysis.Fields,
		Implements: cfg.Analysis.Implements,
		Build:      cfg.BuilderOptions(),
	}
	if len(patterns) > 0 {
		opts.Patterns = patterns
	}
	f := cmd.Flags()
	if f.Changed("tests") {
		opts.Tests = p.tests
	}
	if f.Changed("externs") {
		opts.Externs = p.externs
	}
	if f.Changed("callgraph") {
		opts.CallGraph = p.callgraph
	}
	if f.Changed("fields") {
		opts.Fields = p.fields
	}
	if f.Changed("implements") {
		opts.Implements = p.implements
	}
	return opts
}

// project is the snapshot key of the analysed directory
func (p *projectFlags) project() string {
	abs, err := filepath.Abs(p.dir)
	if err != nil {
		return p.dir
	}
	return abs
}

// loaded is a graph with where it came from
type loaded struct {
	Graph      *graph.Graph
	Catalog    graph.Catalog
	Changed    []graph.ItemID
	SnapshotID string
}

// load analyses the project, or rebuilds a stored snapshot when --snapshot is set
func (p *projectFlags) load(cmd *cobra.Command, patterns []string) (*loaded, error) {
	return p.loadWith(cmd, p.options(cmd, patterns))
}

func (p *projectFlags) loadWith(cmd *cobra.Command, opts pipeline.Options) (*loaded, error) {
	ctx := cmd.Context()
	if p.snapshot == "" {
		res, err := pipeline.Run(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &loaded{Graph: res.Graph, Catalog: res.Catalog, Changed: res.Changed}, nil
	}

	db, err := openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	id, err := resolveSnapshot(ctx, db, p.snapshot, p.project())
	if err != nil {
		return nil, err
	}
	cat, err := db.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	g, err := pipeline.Build(ctx, cat, opts.Build...)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("snapshot loaded", "snapshot", id, "nodes", g.NodeCount())
	return &loaded{Graph: g, Catalog: cat, SnapshotID: id}, nil
}

func openDB() (*storage.DB, error) {
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// resolveSnapshot maps "latest" to the newest snapshot of project
func resolveSnapshot(ctx context.Context, db *storage.DB, ref, project string) (string, error) {
	if ref != "latest" {
		if _, err := db.GetSnapshot(ctx, ref); err != nil {
			return "", err
		}
		return ref, nil
	}
	s, err := db.LatestSnapshot(ctx, project)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		return "", fmt.Errorf("no snapshot of %s, run 'modgraph analyze' first: %w", project, err)
	}
	if err != nil {
		return "", err
	}
	return s.ID, nil
}
