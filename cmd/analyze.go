package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zheng/modgraph/internal/analyzer"
	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/pipeline"
)

func analyzeCmd() *cobra.Command {
	var pf projectFlags
	var gitBase string
	var remote bool
	var noSave bool

	cmd := &cobra.Command{
		Use:   "analyze [packages...]",
		Short: "Analyze a Go project and store a snapshot of its graph",
		Long: `Load the project packages, build the item graph and store the catalog
as a snapshot in the database so later commands can use --snapshot latest.

Examples:
  modgraph analyze                     # ./... in the current directory
  modgraph analyze -C ../svc ./api/...  # a subtree of another project
  modgraph analyze --base main         # also report packages changed since main
  modgraph analyze --remote            # compare against origin/<branch>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := pf.options(cmd, args)

			if remote {
				branch, err := analyzer.GetRemoteTrackingBranch(ctx, pf.dir)
				if err != nil {
					fmt.Printf("Warning: no remote branch: %v\n", err)
				} else {
					gitBase = branch
					fmt.Printf("Comparing with remote branch: %s\n", branch)
				}
			}
			opts.ChangedSince = gitBase

			res, err := pipeline.Run(ctx, opts)
			if err != nil {
				return err
			}

			st := graph.ComputeStats(res.Graph)
			fmt.Printf("Analyzed %s in %v\n", pf.project(), res.Duration.Round(time.Millisecond))
			fmt.Printf("  items: %d  owns: %d  uses: %d\n",
				st.Nodes, st.ByRelationship[graph.Owns.DisplayName()], st.ByRelationship[graph.Uses.DisplayName()])

			if gitBase != "" {
				fmt.Printf("Changed packages since %s: %d\n", gitBase, len(res.Changed))
				for _, id := range res.Changed {
					fmt.Printf("  - %s\n", id)
				}
			}

			if noSave {
				return nil
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := db.SaveSnapshot(ctx, pf.project(), res.Catalog)
			if err != nil {
				return fmt.Errorf("failed to save snapshot: %w", err)
			}
			fmt.Printf("Snapshot %s written to %s\n", id, cfg.Storage.Path)
			return nil
		},
	}

	pf.registerAnalysis(cmd)
	cmd.Flags().StringVar(&gitBase, "base", "", "git base to report changed packages against (HEAD for uncommitted changes)")
	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "compare with origin/<current branch>")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not store a snapshot")
	return cmd
}
