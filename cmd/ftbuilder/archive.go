package main

import (
	"github.com/spf13/cobra"

	"github.com/preston-bernstein/ftbuilder/internal/providers/fixture"
	"github.com/preston-bernstein/ftbuilder/internal/snapshots"
)

func newArchiveCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect archived schedule revisions",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "data/archive", "Archive directory")

	cmd.AddCommand(newArchiveListCmd(&dir), newArchiveShowCmd(&dir))
	return cmd
}

func newArchiveListCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the archive manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := snapshots.NewFSStore(*dir).Manifest()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}
}

func newArchiveShowCmd(dir *string) *cobra.Command {
	var (
		sportID  string
		season   string
		revision uint64
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one archived revision",
		Long:  "Prints an archived revision as JSON. Without --revision the newest one is shown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := snapshots.NewFSStore(*dir)
			var (
				snap snapshots.Snapshot
				err  error
			)
			if cmd.Flags().Changed("revision") {
				snap, err = store.Load(sportID, season, revision)
			} else {
				snap, err = store.Latest(sportID, season)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().StringVar(&sportID, "sport", fixture.SportID, "Sport id")
	cmd.Flags().StringVar(&season, "season", fixture.Season, "Season")
	cmd.Flags().Uint64Var(&revision, "revision", 0, "Revision to show")

	return cmd
}
