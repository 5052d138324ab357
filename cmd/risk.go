package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zheng/modgraph/internal/display"
	"github.com/zheng/modgraph/internal/impact"
)

func riskCmd() *cobra.Command {
	var pf projectFlags
	var limit int

	cmd := &cobra.Command{
		Use:   "risk [item]",
		Short: "Grade how risky a change to an item is",
		Long: `Grade the change risk of an item from the number of items that use it.

Risk levels:
  - critical: direct users >= 50 or total users >= 200
  - high:     direct users >= 20 or total users >= 100
  - medium:   direct users >= 5 or total users >= 30
  - low:      otherwise

Without an item, list the most used items of a snapshot.

Examples:
  modgraph risk Config.Load             # one item
  modgraph risk --top --limit 20        # top 20 of the latest snapshot`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showTop, _ := cmd.Flags().GetBool("top")
			ctx := cmd.Context()

			if showTop || len(args) == 0 {
				db, err := openDB()
				if err != nil {
					return err
				}
				defer db.Close()

				ref := pf.snapshot
				if ref == "" {
					ref = "latest"
				}
				id, err := resolveSnapshot(ctx, db, ref, pf.project())
				if err != nil {
					return err
				}
				top, err := db.TopUsed(ctx, id, limit)
				if err != nil {
					return fmt.Errorf("query failed: %w", err)
				}
				if len(top) == 0 {
					fmt.Println("No item has users")
					return nil
				}

				fmt.Printf("Most used items (top %d)\n\n", limit)
				for _, u := range top {
					risk := impact.CalculateRiskLevel(u.Users, u.Users)
					fmt.Printf("%s %-8s  %s\n", risk.Icon(), risk, display.ShortName(u.Item.Path))
					fmt.Printf("             users: %d  %s:%d\n\n", u.Users, u.Item.File, u.Item.Line)
				}
				fmt.Println("Risk levels: 🔴critical(>=50) 🟠high(>=20) 🟡medium(>=5) 🟢low")
				fmt.Println("\n💡 Run modgraph risk <item> for the full analysis")
				return nil
			}

			l, err := pf.load(cmd, nil)
			if err != nil {
				return err
			}
			report, err := impact.Analyze(l.Graph, args[0], 0)
			if errors.Is(err, impact.ErrAmbiguous) {
				n, cerr := choose(candidates(l.Graph, args[0]), 0)
				if cerr != nil {
					return cerr
				}
				report, err = impact.Analyze(l.Graph, string(n.Item.ID), 0)
			}
			if err != nil {
				return err
			}

			t := report.Target.Item
			fmt.Printf("## Change risk: %s\n\n", t.ID)
			if t.File != "" {
				fmt.Printf("**Location:** %s:%d\n", t.File, t.Line)
			}
			if t.Signature != "" {
				fmt.Printf("**Signature:** `%s`\n", display.ShortSignature(t.Signature))
			}
			fmt.Println()

			fmt.Printf("### Risk: %s %s\n\n", report.Risk.Icon(), report.Risk)
			fmt.Printf("Direct users: %d\n", len(report.DirectUsers))
			fmt.Printf("Total users:  %d\n", len(report.Users()))

			fmt.Println("\n**Advice:**")
			switch report.Risk {
			case impact.RiskCritical:
				fmt.Println("- ⚠️  Used very widely, change with great care")
				fmt.Println("- Run `modgraph impact` for the full picture first")
				fmt.Println("- Consider adding a new item instead of changing this one")
			case impact.RiskHigh:
				fmt.Println("- ⚠️  Many users, change with care")
				fmt.Println("- Update every user in the same change")
			case impact.RiskMedium:
				fmt.Println("- Normal risk, check whether the users need the same change")
			default:
				fmt.Println("- Low risk, small blast radius")
			}
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "number of items to list")
	cmd.Flags().Bool("top", false, "list the most used items")
	return cmd
}
