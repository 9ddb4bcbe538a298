package rules

import (
	"sort"
	"strings"
)

// Conflict is a derived report of one constraint violation.
type Conflict struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	GameIDs  []string `json:"gameIds,omitempty"`
	TeamIDs  []string `json:"teamIds,omitempty"`
	Date     string   `json:"date,omitempty"`
	Reason   string   `json:"reason"`
}

// Key identifies a conflict for deduplication: kind plus the sorted game ids,
// or kind plus the team ids for conflicts not anchored to any game.
func (c Conflict) Key() string {
	if len(c.GameIDs) > 0 {
		return string(c.Kind) + "|g|" + strings.Join(c.GameIDs, ",")
	}
	return string(c.Kind) + "|t|" + strings.Join(c.TeamIDs, ",")
}

// Touches reports whether the conflict references gameID.
func (c Conflict) Touches(gameID string) bool {
	for _, id := range c.GameIDs {
		if id == gameID {
			return true
		}
	}
	return false
}

// InvolvesTeam reports whether the conflict is anchored to teamID.
func (c Conflict) InvolvesTeam(teamID string) bool {
	for _, id := range c.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

// IsHard reports whether the conflict blocks commits.
func (c Conflict) IsHard() bool {
	return c.Severity == SeverityHard
}

// Normalize sorts ids, collapses conflicts sharing a Key (the first keeps its
// reason, team ids are merged), and orders the result.
func Normalize(list []Conflict) []Conflict {
	seen := make(map[string]int, len(list))
	out := make([]Conflict, 0, len(list))
	for _, c := range list {
		c.GameIDs = sortedCopy(c.GameIDs)
		c.TeamIDs = sortedCopy(c.TeamIDs)
		key := c.Key()
		if i, dup := seen[key]; dup {
			out[i].TeamIDs = sortedCopy(union(out[i].TeamIDs, c.TeamIDs))
			continue
		}
		seen[key] = len(out)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Hard filters the hard conflicts.
func Hard(list []Conflict) []Conflict {
	var out []Conflict
	for _, c := range list {
		if c.IsHard() {
			out = append(out, c)
		}
	}
	return out
}

// Introduced returns the conflicts in after whose key is absent from before.
func Introduced(before, after []Conflict) []Conflict {
	known := make(map[string]struct{}, len(before))
	for _, c := range before {
		known[c.Key()] = struct{}{}
	}
	var out []Conflict
	for _, c := range after {
		if _, ok := known[c.Key()]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func sortedCopy(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

func union(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range append(append([]string{}, a...), b...) {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
