package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func snapshotsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := db.ListSnapshots(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list snapshots: %w", err)
			}
			if asJSON {
				return outputJSON(list)
			}
			if len(list) == 0 {
				fmt.Println("No snapshots, run 'modgraph analyze' first")
				return nil
			}
			for _, s := range list {
				fmt.Printf("%s  %s  %6d items %6d relations  %s\n",
					s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.ItemCount, s.RelationCount, s.Project)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete snapshots",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			for _, id := range args {
				if err := db.DeleteSnapshot(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Clear(); err != nil {
				return fmt.Errorf("failed to clear database: %w", err)
			}
			fmt.Printf("Cleared %s\n", db.Path())
			return nil
		},
	})

	return cmd
}
