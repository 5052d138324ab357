package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/modgraph/internal/display"
	"github.com/zheng/modgraph/internal/export"
	"github.com/zheng/modgraph/internal/graph"
)

func treeCmd() *cobra.Command {
	var pf projectFlags
	var roots []string
	var changed string
	var order string
	var depth int
	var noUses bool
	var events string
	var location bool
	var visibility bool

	cmd := &cobra.Command{
		Use:   "tree [packages...]",
		Short: "Print the ownership tree with the items each one uses",
		Long: `Walk the graph depth-first from its roots (or the given --root items) and
print each owned item under its owner, followed by the items it uses.

Examples:
  modgraph tree                                 # every unowned item
  modgraph tree --root example.com/app/store    # one subtree
  modgraph tree --changed HEAD                  # packages with uncommitted changes
  modgraph tree --order kind --depth 2
  modgraph tree --events json -s latest         # raw walk events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if changed != "" && pf.snapshot != "" {
				return fmt.Errorf("--changed cannot be combined with --snapshot")
			}
			opts := pf.options(cmd, args)
			opts.ChangedSince = changed
			l, err := pf.loadWith(cmd, opts)
			if err != nil {
				return err
			}

			walkOpts := cfg.WalkOptions()
			f := cmd.Flags()
			if f.Changed("order") {
				o, err := graph.ParseOrder(order)
				if err != nil {
					return err
				}
				walkOpts = append(walkOpts, graph.WithOrder(o))
			}
			if f.Changed("depth") {
				walkOpts = append(walkOpts, graph.WithMaxDepth(max(depth, 0)))
			}
			showUses := cfg.Walk.Uses
			if f.Changed("no-uses") {
				showUses = !noUses
			}
			walkOpts = append(walkOpts, graph.WithUses(showUses))

			ids := make([]graph.ItemID, 0, len(roots))
			for _, r := range roots {
				ids = append(ids, graph.ItemID(r))
			}
			if changed != "" {
				if len(l.Changed) == 0 {
					fmt.Printf("No changed packages since %s\n", changed)
					return nil
				}
				ids = append(ids, l.Changed...)
			}
			if len(ids) > 0 {
				walkOpts = append(walkOpts, graph.WithRoots(ids...))
			}

			seq := graph.NewWalker(l.Graph, walkOpts...).Walk(cmd.Context())

			if events != "" {
				format, err := export.ParseFormat(events)
				if err != nil {
					return err
				}
				evs, err := graph.Collect(seq)
				if err != nil {
					return err
				}
				return export.WriteEvents(os.Stdout, evs, format)
			}

			return display.RenderTree(os.Stdout, seq, display.TreeOptions{
				Color:          display.ColorEnabled(os.Stdout),
				ShowLocation:   location,
				ShowVisibility: visibility,
				ShowUses:       showUses,
			})
		},
	}

	pf.register(cmd)
	f := cmd.Flags()
	f.StringSliceVar(&roots, "root", nil, "item IDs to start from (repeatable)")
	f.StringVar(&changed, "changed", "", "start from packages changed since this git base")
	f.StringVar(&order, "order", "insertion", "sibling order: insertion, name or kind")
	f.IntVar(&depth, "depth", 0, "deepest ownership level to print (0 = unlimited)")
	f.BoolVar(&noUses, "no-uses", false, "omit uses lines")
	f.StringVar(&events, "events", "", "print walk events as json or yaml instead of a tree")
	f.BoolVarP(&location, "location", "l", false, "show file:line")
	f.BoolVar(&visibility, "visibility", false, "show visibility")
	return cmd
}
