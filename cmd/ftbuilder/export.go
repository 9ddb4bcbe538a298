package main

import (
	"github.com/spf13/cobra"

	"github.com/preston-bernstein/ftbuilder/internal/providers/fixture"
	"github.com/preston-bernstein/ftbuilder/internal/providers/sqlite"
)

func newExportCmd() *cobra.Command {
	var (
		dbPath  string
		sportID string
		season  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a stored season as a schedule file",
		Long:  "Reads the roster and season from a SQLite store and prints them as schedule YAML.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, dbPath, sportID, season)
		},
	}

	cmd.Flags().StringVar(&dbPath, "sqlite", "data/ftbuilder.db", "SQLite database path")
	cmd.Flags().StringVar(&sportID, "sport", fixture.SportID, "Sport id")
	cmd.Flags().StringVar(&season, "season", fixture.Season, "Season")

	return cmd
}

func runExport(cmd *cobra.Command, dbPath, sportID, season string) error {
	ctx := cmd.Context()
	db, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	roster, err := db.LoadTeams(ctx, sportID)
	if err != nil {
		return err
	}
	doc, err := db.LoadSchedule(ctx, sportID, season)
	if err != nil {
		return err
	}
	return writeScheduleFile(cmd.OutOrStdout(), scheduleFile{Meta: doc.Meta, Teams: roster, Games: doc.Games})
}
