package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zheng/modgraph/internal/export"
	"github.com/zheng/modgraph/internal/logging"
)

func exportCmd() *cobra.Command {
	var pf projectFlags
	var outputFile string
	var format string
	var incremental string
	var noMermaid bool
	var toNeo4j bool
	var clearNeo4j bool

	cmd := &cobra.Command{
		Use:   "export [packages...]",
		Short: "Export the graph as DOT, Mermaid, JSON, YAML or Markdown",
		Long: `Export the whole graph. Markdown produces one section per package and
can be used as context for code assistants. With --neo4j the graph is also
merged into the Neo4j database from the config.

Examples:
  modgraph export -f dot -o graph.dot
  modgraph export -f markdown --incremental HEAD
  modgraph export -s latest --neo4j -f json -o /dev/null`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if incremental != "" && f != export.FormatMarkdown {
				return fmt.Errorf("--incremental needs markdown output")
			}

			opts := pf.options(cmd, args)
			opts.ChangedSince = incremental
			l, err := pf.loadWith(cmd, opts)
			if err != nil {
				return err
			}

			if toNeo4j {
				sink, err := export.NewNeo4jSink(ctx, export.Neo4jConfig{
					URI:      cfg.Neo4j.URI,
					Username: cfg.Neo4j.Username,
					Password: cfg.Neo4j.Password,
					Database: cfg.Neo4j.Database,
				})
				if err != nil {
					return err
				}
				defer sink.Close(ctx)
				if clearNeo4j {
					if err := sink.Clear(ctx); err != nil {
						return fmt.Errorf("failed to clear neo4j: %w", err)
					}
				}
				if err := sink.Store(ctx, l.Graph); err != nil {
					return fmt.Errorf("failed to store graph in neo4j: %w", err)
				}
				logging.FromContext(ctx).Info("graph stored in neo4j",
					"uri", cfg.Neo4j.URI, "nodes", l.Graph.NodeCount(), "edges", l.Graph.EdgeCount())
			}

			w, closeOut, err := openOutput(outputFile)
			if err != nil {
				return err
			}
			defer closeOut()

			mdOpts := export.DefaultMarkdownOptions()
			mdOpts.ProjectName = filepath.Base(pf.project())
			mdOpts.IncludeMermaid = !noMermaid

			if incremental != "" {
				fmt.Fprintf(os.Stderr, "%d changed packages since %s\n", len(l.Changed), incremental)
				return export.WriteIncremental(w, l.Graph, l.Changed, mdOpts)
			}
			return export.Write(w, l.Graph, f, mdOpts)
		},
	}

	pf.register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&format, "format", "f", "markdown", "output format: dot, mermaid, json, yaml, markdown")
	fl.StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")
	fl.StringVarP(&incremental, "incremental", "i", "", "only report packages changed since this git base (markdown)")
	fl.BoolVar(&noMermaid, "no-mermaid", false, "omit Mermaid diagrams from markdown")
	fl.BoolVar(&toNeo4j, "neo4j", false, "also merge the graph into Neo4j")
	fl.BoolVar(&clearNeo4j, "neo4j-clear", false, "delete stored items before merging")
	return cmd
}
