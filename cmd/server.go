package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/logging"
	"github.com/zheng/modgraph/internal/mcp"
	"github.com/zheng/modgraph/internal/pipeline"
	"github.com/zheng/modgraph/internal/watcher"
	"github.com/zheng/modgraph/internal/web"
)

// newWatcher builds a watcher that reruns the pipeline with opts
func newWatcher(cmd *cobra.Command, opts pipeline.Options, debounce time.Duration, extra ...watcher.WatcherOption) (*watcher.Watcher, error) {
	rebuild := func(ctx context.Context) (*graph.Graph, error) {
		res, err := pipeline.Run(ctx, opts)
		if err != nil {
			return nil, err
		}
		return res.Graph, nil
	}
	wopts := []watcher.WatcherOption{
		watcher.WithDebounceDelay(debounce),
		watcher.WithTests(opts.Tests),
		watcher.WithLogger(logging.FromContext(cmd.Context())),
	}
	w, err := watcher.New(opts.Dir, rebuild, append(wopts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return w, nil
}

func debounceFor(cmd *cobra.Command, ms int) time.Duration {
	if cmd.Flags().Changed("debounce") {
		return time.Duration(ms) * time.Millisecond
	}
	return cfg.Watch.Debounce
}

func watchCmd() *cobra.Command {
	var pf projectFlags
	var debounceMs int
	var noSave bool

	cmd := &cobra.Command{
		Use:   "watch [packages...]",
		Short: "Rebuild the graph whenever Go files change",
		Long: `Watch the project for Go file changes. Each change, after a debounce delay,
reruns the analysis and stores a new snapshot.

Features:
  - watches every directory recursively
  - debounces bursts of changes into one rebuild
  - skips hidden, vendor and testdata directories

Examples:
  modgraph watch
  modgraph watch -C ../svc --debounce 1000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := pf.options(cmd, args)

			fmt.Println("Running initial analysis...")
			res, err := pipeline.Run(ctx, opts)
			if err != nil {
				return fmt.Errorf("initial analysis failed: %w", err)
			}
			fmt.Printf("Initial analysis done: %d items, %d relations\n", res.Graph.NodeCount(), res.Graph.EdgeCount())

			save := func(g *graph.Graph) {}
			if !noSave {
				db, err := openDB()
				if err != nil {
					return err
				}
				defer db.Close()
				save = func(g *graph.Graph) {
					id, err := db.SaveSnapshot(ctx, pf.project(), g.Catalog())
					if err != nil {
						fmt.Fprintf(os.Stderr, "[%s] failed to save snapshot: %v\n", time.Now().Format("15:04:05"), err)
						return
					}
					fmt.Printf("[%s] snapshot %s saved\n", time.Now().Format("15:04:05"), id)
				}
				save(res.Graph)
			}

			debounce := debounceFor(cmd, debounceMs)
			w, err := newWatcher(cmd, opts, debounce,
				watcher.WithOnAnalysisStart(func(files []string) {
					fmt.Printf("[%s] %d files changed, rebuilding...\n", time.Now().Format("15:04:05"), len(files))
				}),
				watcher.WithOnAnalysisDone(func(g *graph.Graph, d time.Duration) {
					fmt.Printf("[%s] rebuilt: %d items, %d relations (%v)\n",
						time.Now().Format("15:04:05"), g.NodeCount(), g.EdgeCount(), d.Round(time.Millisecond))
					save(g)
				}),
				watcher.WithOnError(func(err error) {
					fmt.Fprintf(os.Stderr, "[%s] error: %v\n", time.Now().Format("15:04:05"), err)
				}),
			)
			if err != nil {
				return err
			}

			fmt.Printf("\nWatching %s (%d directories)\n", pf.project(), len(w.Watched()))
			fmt.Printf("Debounce: %v\n", debounce)
			fmt.Println("\nPress Ctrl+C to stop...")

			err = w.Run(ctx)
			fmt.Println("\nStopped watching")
			return err
		},
	}

	pf.registerAnalysis(cmd)
	cmd.Flags().IntVar(&debounceMs, "debounce", 500, "debounce delay in milliseconds (default from config)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store snapshots")
	return cmd
}

func serveCmd() *cobra.Command {
	var pf projectFlags
	var port int
	var watch bool
	var debounceMs int

	cmd := &cobra.Command{
		Use:   "serve [packages...]",
		Short: "Serve the graph over a JSON HTTP API",
		Long: `Start an HTTP server with a JSON API over the graph and a Prometheus
/metrics endpoint. With --watch the graph is rebuilt on file changes and
swapped in without restarting the server.

Examples:
  modgraph serve                 # port from config (8080)
  modgraph serve -p 3000 --watch
  modgraph serve -s latest       # serve a stored snapshot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.FromContext(ctx)
			opts := pf.options(cmd, args)
			if watch && pf.snapshot != "" {
				return fmt.Errorf("--watch cannot be combined with --snapshot")
			}

			l, err := pf.loadWith(cmd, opts)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("port") {
				port = cfg.Web.Port
			}
			srv := web.NewServer(l.Graph, port, logger)

			if !watch {
				return srv.Run(ctx)
			}

			w, err := newWatcher(cmd, opts, debounceFor(cmd, debounceMs),
				watcher.WithOnAnalysisDone(func(g *graph.Graph, d time.Duration) {
					srv.SetGraph(g)
				}),
			)
			if err != nil {
				return err
			}

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error { return srv.Run(egCtx) })
			eg.Go(func() error { return w.Run(egCtx) })
			return eg.Wait()
		},
	}

	pf.register(cmd)
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "server port (default from config)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild on file changes")
	cmd.Flags().IntVar(&debounceMs, "debounce", 500, "debounce delay in milliseconds (default from config)")
	return cmd
}

func mcpCmd() *cobra.Command {
	var pf projectFlags
	var watch bool

	cmd := &cobra.Command{
		Use:   "mcp [packages...]",
		Short: "Start an MCP (Model Context Protocol) server on stdio",
		Long: `Start an MCP server so that code assistants can query the graph directly.

MCP tools:
  - tree: ownership tree with uses lines
  - impact: what a change to an item affects
  - search: find items by ID
  - cycles: groups of items that use each other
  - orphans: items nothing owns or uses
  - stats: item and relation counts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := pf.options(cmd, args)
			if watch && pf.snapshot != "" {
				return fmt.Errorf("--watch cannot be combined with --snapshot")
			}

			l, err := pf.loadWith(cmd, opts)
			if err != nil {
				return err
			}
			server := mcp.NewServer(l.Graph, version)

			if !watch {
				return server.Run(ctx)
			}

			w, err := newWatcher(cmd, opts, cfg.Watch.Debounce,
				watcher.WithOnAnalysisDone(func(g *graph.Graph, d time.Duration) {
					server.SetGraph(g)
				}),
			)
			if err != nil {
				return err
			}

			// the client closing stdin ends the session and the watcher with it
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				defer cancel()
				return server.Run(egCtx)
			})
			eg.Go(func() error { return w.Run(egCtx) })
			return eg.Wait()
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild on file changes")
	return cmd
}
