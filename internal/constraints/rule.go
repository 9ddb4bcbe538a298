package constraints

import (
	"context"
	"sort"

	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
)

// Scope declares which slice of the schedule a rule's conflicts depend on.
// Delta evaluation reuses conflicts outside the delta's scope.
type Scope int

const (
	// ScopeTeam rules depend only on the games of the teams in each conflict's TeamIDs.
	ScopeTeam Scope = iota
	// ScopeDate rules depend only on the games played on each conflict's Date.
	ScopeDate
)

// Options tune a single evaluation.
type Options struct {
	// FullSeason enables rules that only make sense over a complete season view.
	FullSeason bool
}

// Rule is the common evaluation interface every constraint kind implements.
// With a team filter, a ScopeTeam rule must return exactly the conflicts
// whose TeamIDs intersect the filter; a ScopeDate rule likewise for Date.
type Rule interface {
	Kind() rules.Kind
	Scope() Scope
	Evaluate(ctx context.Context, in *Input) ([]rules.Conflict, error)
}

// fullSeasonRule marks rules that only run when Options.FullSeason is set.
type fullSeasonRule interface {
	FullSeasonOnly() bool
}

// Input is what a rule sees during one evaluation.
type Input struct {
	Schedule *schedule.Schedule
	Teams    teams.Index
	Geodata  Geodata
	Options  Options

	teamFilter map[string]struct{}
	dateFilter map[string]struct{}
}

// TeamIDs returns the sorted teams the rule should consider: every known
// team plus any team with games, narrowed by the team filter.
func (in *Input) TeamIDs() []string {
	set := make(map[string]struct{}, len(in.Teams))
	for id := range in.Teams {
		set[id] = struct{}{}
	}
	for _, id := range in.Schedule.TeamIDs() {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		if in.IncludesTeam(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// IncludesTeam reports whether teamID is inside the team filter.
func (in *Input) IncludesTeam(teamID string) bool {
	if in.teamFilter == nil {
		return true
	}
	_, ok := in.teamFilter[teamID]
	return ok
}

// IncludesDate reports whether date is inside the date filter.
func (in *Input) IncludesDate(date string) bool {
	if in.dateFilter == nil {
		return true
	}
	_, ok := in.dateFilter[date]
	return ok
}

// DateFilter exposes the date filter; nil means every date.
func (in *Input) DateFilter() map[string]struct{} {
	return in.dateFilter
}
