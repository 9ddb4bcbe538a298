package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/preston-bernstein/ftbuilder/internal/config"
	"github.com/preston-bernstein/ftbuilder/internal/constraints"
	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
)

// scheduleFile is the on-disk form of a season: metadata, roster and games.
type scheduleFile struct {
	Meta  schedule.Meta `yaml:"meta"`
	Teams []teams.Team  `yaml:"teams"`
	Games []games.Game  `yaml:"games"`
}

func readScheduleFile(path string) (scheduleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scheduleFile{}, fmt.Errorf("read schedule %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f scheduleFile
	if err := dec.Decode(&f); err != nil {
		return scheduleFile{}, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	return f, nil
}

func writeScheduleFile(w io.Writer, f scheduleFile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return enc.Close()
}

// loaded is a validated schedule ready for evaluation.
type loaded struct {
	schedule *schedule.Schedule
	known    teams.Index
	engine   *constraints.Engine
}

// loadForEvaluation reads a schedule file and its rules. With requireUnique
// the team and venue uniqueness invariants are enforced up front; without it
// double bookings are left for the engine to report as hard conflicts.
func loadForEvaluation(schedulePath, rulesPath string, requireUnique bool) (loaded, error) {
	f, err := readScheduleFile(schedulePath)
	if err != nil {
		return loaded{}, err
	}
	list, err := config.LoadRules(rulesPath)
	if err != nil {
		return loaded{}, err
	}
	engine, err := constraints.New(list)
	if err != nil {
		return loaded{}, err
	}
	known := teams.NewIndex(f.Teams)
	seen := make(map[string]struct{}, len(f.Games))
	for _, g := range f.Games {
		if _, dup := seen[g.ID]; dup {
			return loaded{}, fmt.Errorf("invalid schedule: %w: %s", schedule.ErrDuplicateGame, g.ID)
		}
		seen[g.ID] = struct{}{}
	}
	s := schedule.New(f.Meta, f.Games)
	validate := s.ValidateReferences
	if requireUnique {
		validate = s.Validate
	}
	if err := validate(known); err != nil {
		return loaded{}, fmt.Errorf("invalid schedule: %w", err)
	}
	return loaded{schedule: s, known: known, engine: engine}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func countHard(list []rules.Conflict) int {
	n := 0
	for _, c := range list {
		if c.IsHard() {
			n++
		}
	}
	return n
}
