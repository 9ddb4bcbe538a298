package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preston-bernstein/ftbuilder/internal/constraints"
	"github.com/preston-bernstein/ftbuilder/internal/views"
)

func newProjectCmd() *cobra.Command {
	var (
		schedulePath string
		rulesPath    string
		kind         string
		from, to     string
	)

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Print a view model for a schedule file",
		Long:  "Projects a schedule file into one view (timeline, calendar, gantt, matrix) or all of them and prints the JSON render model.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(cmd, schedulePath, rulesPath, kind, views.Window{From: from, To: to})
		},
	}

	cmd.Flags().StringVarP(&schedulePath, "schedule", "s", "", "Schedule YAML file (required)")
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "", "Rule set YAML file")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "View kind; empty projects every view")
	cmd.Flags().StringVar(&from, "from", "", "First date of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last date of the window (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("schedule")

	return cmd
}

func runProject(cmd *cobra.Command, schedulePath, rulesPath, kind string, window views.Window) error {
	l, err := loadForEvaluation(schedulePath, rulesPath, true)
	if err != nil {
		return err
	}
	list, err := l.engine.Evaluate(cmd.Context(), l.schedule, l.known, constraints.Options{})
	if err != nil {
		return fmt.Errorf("evaluating constraints: %w", err)
	}
	in := views.Input{Schedule: l.schedule, Teams: l.known, Conflicts: list}

	if kind == "" {
		set, err := views.ProjectAll(in, window)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), set)
	}
	k, err := views.ParseKind(kind)
	if err != nil {
		return err
	}
	model, err := views.Project(in, k, window)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), model)
}
