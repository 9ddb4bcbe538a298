package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/providers/fixture"
	"github.com/preston-bernstein/ftbuilder/internal/providers/sqlite"
)

func newSeedCmd() *cobra.Command {
	var (
		dbPath       string
		schedulePath string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a SQLite store from a schedule file",
		Long:  "Replaces the roster and season in a SQLite store with a schedule file, or with the built-in fixture conference when no file is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, dbPath, schedulePath)
		},
	}

	cmd.Flags().StringVar(&dbPath, "sqlite", "data/ftbuilder.db", "SQLite database path")
	cmd.Flags().StringVarP(&schedulePath, "schedule", "s", "", "Schedule YAML file; defaults to the fixture conference")

	return cmd
}

func runSeed(cmd *cobra.Command, dbPath, schedulePath string) error {
	f := scheduleFile{Meta: fixture.Meta(), Teams: fixture.Teams(), Games: fixture.Games()}
	if schedulePath != "" {
		var err error
		if f, err = readScheduleFile(schedulePath); err != nil {
			return err
		}
	}
	if err := schedule.New(f.Meta, f.Games).Validate(teams.NewIndex(f.Teams)); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	ctx := cmd.Context()
	db, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Seed(ctx, f.Meta, f.Teams, f.Games); err != nil {
		return fmt.Errorf("seeding %s: %w", dbPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s %s: %d teams, %d games.\n", f.Meta.SportID, f.Meta.Season, len(f.Teams), len(f.Games))
	return nil
}
