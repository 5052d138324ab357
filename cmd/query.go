package cmd

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zheng/modgraph/internal/graph"
	"github.com/zheng/modgraph/internal/impact"
)

func impactCmd() *cobra.Command {
	var pf projectFlags
	var depth int
	var format string
	var selectN int

	cmd := &cobra.Command{
		Use:   "impact <item>",
		Short: "Show what a change to an item would affect",
		Long: `List the items that use the given item, directly and through other items,
and the items it uses, with a risk level based on how many users it has.

The item is an exact item ID or a part of one that matches a single item.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]

			l, err := pf.load(cmd, nil)
			if err != nil {
				return err
			}

			report, err := impact.Analyze(l.Graph, query, depth)
			if errors.Is(err, impact.ErrAmbiguous) {
				var n graph.Node
				n, err = choose(candidates(l.Graph, query), selectN)
				if err != nil {
					return err
				}
				report, err = impact.Analyze(l.Graph, string(n.Item.ID), depth)
			}
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return outputJSON(report)
			case "markdown":
				fmt.Print(report.FormatMarkdown())
			case "summary":
				fmt.Println(report.Summary())
			default:
				fmt.Print(report.FormatTree())
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().IntVar(&depth, "depth", 7, "uses hops to follow in each direction (0 = unlimited)")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text/json/markdown/summary)")
	cmd.Flags().IntVar(&selectN, "select", 0, "pick the Nth match when the name is ambiguous (skips the prompt)")
	return cmd
}

// candidates returns the nodes whose ID contains query
func candidates(g *graph.Graph, query string) []graph.Node {
	var result []graph.Node
	for _, n := range g.Nodes() {
		if strings.Contains(string(n.Item.ID), query) {
			result = append(result, n)
		}
	}
	return result
}

// choose picks nodes[selectN-1], or prompts on stdin when selectN is unset
func choose(nodes []graph.Node, selectN int) (graph.Node, error) {
	if selectN >= 1 && selectN <= len(nodes) {
		return nodes[selectN-1], nil
	}

	fmt.Println("Several items match, pick one:")
	for i, n := range nodes {
		fmt.Printf("  [%d] %s\n      %s:%d\n", i+1, n.Item.ID, n.Item.File, n.Item.Line)
	}
	fmt.Printf("\nEnter a number [1-%d]: ", len(nodes))

	var choice int
	if _, err := fmt.Scanf("%d", &choice); err != nil || choice < 1 || choice > len(nodes) {
		return graph.Node{}, fmt.Errorf("invalid choice")
	}
	return nodes[choice-1], nil
}

func searchCmd() *cobra.Command {
	var snapshot string
	var dir string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Search the items of a stored snapshot",
		Long: `Search item IDs in a snapshot. Exact short names rank first, then IDs
ending with the pattern, then shorter IDs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pattern := args[0]

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			pf := projectFlags{dir: dir}
			id, err := resolveSnapshot(ctx, db, snapshot, pf.project())
			if err != nil {
				return err
			}

			items, err := db.SearchItems(ctx, id, pattern, limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if len(items) == 0 {
				fmt.Println("No matching items")
				return nil
			}

			fmt.Printf("Found %d matches:\n\n", len(items))
			for _, it := range items {
				fmt.Printf("  %s (%s)\n", it.ID, it.Kind)
				if it.File != "" {
					fmt.Printf("    %s:%d\n", it.File, it.Line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&snapshot, "snapshot", "s", "latest", `snapshot to search ("latest" or an ID)`)
	cmd.Flags().StringVarP(&dir, "dir", "C", ".", "project directory whose latest snapshot is used")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func cyclesCmd() *cobra.Command {
	var pf projectFlags

	cmd := &cobra.Command{
		Use:   "cycles [packages...]",
		Short: "List groups of items that use each other",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := pf.load(cmd, args)
			if err != nil {
				return err
			}

			cycles := graph.UsesCycles(l.Graph)
			if len(cycles) == 0 {
				fmt.Println("No uses cycles")
				return nil
			}
			fmt.Printf("Found %d uses cycles:\n\n", len(cycles))
			for i, c := range cycles {
				fmt.Printf("%3d. ", i+1)
				for j, id := range c {
					if j > 0 {
						fmt.Print(" ↔ ")
					}
					fmt.Print(id)
				}
				fmt.Println()
			}
			return nil
		},
	}

	pf.register(cmd)
	return cmd
}

func orphansCmd() *cobra.Command {
	var pf projectFlags

	cmd := &cobra.Command{
		Use:   "orphans [packages...]",
		Short: "List items that nothing owns or uses",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := pf.load(cmd, args)
			if err != nil {
				return err
			}

			orphans := graph.Orphans(l.Graph)
			if len(orphans) == 0 {
				fmt.Println("No orphan items")
				return nil
			}
			fmt.Printf("Found %d orphan items:\n\n", len(orphans))
			for _, n := range orphans {
				fmt.Printf("  %-50s %-10s %s:%d\n", n.Item.ID, n.Item.Kind, n.Item.File, n.Item.Line)
			}
			return nil
		},
	}

	pf.register(cmd)
	return cmd
}

func statsCmd() *cobra.Command {
	var pf projectFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats [packages...]",
		Short: "Count items and relations",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := pf.load(cmd, args)
			if err != nil {
				return err
			}

			st := graph.ComputeStats(l.Graph)
			if asJSON {
				return outputJSON(st)
			}
			fmt.Printf("Items:     %d\n", st.Nodes)
			fmt.Printf("Relations: %d\n", st.Edges)
			for _, rel := range graph.Relationships {
				fmt.Printf("  %-8s %d\n", rel.DisplayName(), st.ByRelationship[rel.DisplayName()])
			}
			fmt.Printf("Roots:     %d\n", st.Roots)
			fmt.Printf("Depth:     %d\n", st.MaxDepth)
			fmt.Println("By kind:")
			for _, kind := range slices.Sorted(maps.Keys(st.ByKind)) {
				fmt.Printf("  %-10s %d\n", kind, st.ByKind[kind])
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
