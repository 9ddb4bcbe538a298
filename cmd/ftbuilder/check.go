package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preston-bernstein/ftbuilder/internal/constraints"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
)

type checkReport struct {
	SportID    string           `json:"sportId"`
	Season     string           `json:"season"`
	Games      int              `json:"games"`
	FullSeason bool             `json:"fullSeason"`
	Hard       int              `json:"hard"`
	Soft       int              `json:"soft"`
	Conflicts  []rules.Conflict `json:"conflicts"`
}

func newCheckCmd() *cobra.Command {
	var (
		schedulePath string
		rulesPath    string
		fullSeason   bool
		strict       bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a schedule file against a rule set",
		Long:  "Loads a schedule file, evaluates every constraint and prints the conflicts as JSON. Exits non-zero when hard conflicts are found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, schedulePath, rulesPath, fullSeason, strict)
		},
	}

	cmd.Flags().StringVarP(&schedulePath, "schedule", "s", "", "Schedule YAML file (required)")
	cmd.Flags().StringVarP(&rulesPath, "rules", "r", "", "Rule set YAML file")
	cmd.Flags().BoolVar(&fullSeason, "full-season", true, "Include season-level rules")
	cmd.Flags().BoolVar(&strict, "strict", false, "Also fail on soft conflicts")
	_ = cmd.MarkFlagRequired("schedule")

	return cmd
}

func runCheck(cmd *cobra.Command, schedulePath, rulesPath string, fullSeason, strict bool) error {
	l, err := loadForEvaluation(schedulePath, rulesPath, false)
	if err != nil {
		return err
	}
	list, err := l.engine.Evaluate(cmd.Context(), l.schedule, l.known, constraints.Options{FullSeason: fullSeason})
	if err != nil {
		return fmt.Errorf("evaluating constraints: %w", err)
	}
	if list == nil {
		list = []rules.Conflict{}
	}
	meta := l.schedule.Meta()
	hard := countHard(list)
	report := checkReport{
		SportID:    meta.SportID,
		Season:     meta.Season,
		Games:      len(l.schedule.Games()),
		FullSeason: fullSeason,
		Hard:       hard,
		Soft:       len(list) - hard,
		Conflicts:  list,
	}
	if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	switch {
	case hard > 0:
		return fmt.Errorf("%d hard conflicts", hard)
	case strict && report.Soft > 0:
		return fmt.Errorf("%d soft conflicts", report.Soft)
	}
	return nil
}
