package schedule

import (
	"sort"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
)

// Clash groups games that share a resource they may not share.
type Clash struct {
	Key   string
	Games []games.Game
}

// GameIDs returns the ids of the clashing games.
func (c Clash) GameIDs() []string {
	ids := make([]string, len(c.Games))
	for i, g := range c.Games {
		ids[i] = g.ID
	}
	return ids
}

// TeamDateClashes returns, per (team, date), the games that double book a
// team. Empty when the sport allows doubleheaders.
func (s *Schedule) TeamDateClashes() []Clash {
	if s.meta.Rules.AllowDoubleheaders {
		return nil
	}
	return s.teamDateClashes(s.ordered)
}

// TeamDateClashesOn is TeamDateClashes restricted to the given dates.
func (s *Schedule) TeamDateClashesOn(dates map[string]struct{}) []Clash {
	if s.meta.Rules.AllowDoubleheaders {
		return nil
	}
	return s.teamDateClashes(s.filterDates(dates))
}

func (s *Schedule) teamDateClashes(list []games.Game) []Clash {
	groups := make(map[string][]games.Game)
	for _, g := range list {
		for _, team := range g.Teams() {
			groups[team+"@"+g.Date] = append(groups[team+"@"+g.Date], g)
		}
	}
	return collect(groups, func(key string) string {
		for i := range key {
			if key[i] == '@' {
				return key[:i]
			}
		}
		return key
	})
}

// VenueClashes returns games sharing date, time, and venue. Empty when the
// sport is multi-field capable.
func (s *Schedule) VenueClashes() []Clash {
	if s.meta.Rules.MultiField {
		return nil
	}
	return s.venueClashes(s.ordered)
}

// VenueClashesOn is VenueClashes restricted to the given dates.
func (s *Schedule) VenueClashesOn(dates map[string]struct{}) []Clash {
	if s.meta.Rules.MultiField {
		return nil
	}
	return s.venueClashes(s.filterDates(dates))
}

func (s *Schedule) venueClashes(list []games.Game) []Clash {
	groups := make(map[string][]games.Game)
	for _, g := range list {
		key := g.VenueKey() + " " + g.Date + " " + g.Time
		groups[key] = append(groups[key], g)
	}
	return collect(groups, func(key string) string { return key })
}

func (s *Schedule) filterDates(dates map[string]struct{}) []games.Game {
	var out []games.Game
	for _, g := range s.ordered {
		if _, ok := dates[g.Date]; ok {
			out = append(out, g)
		}
	}
	return out
}

func collect(groups map[string][]games.Game, label func(string) string) []Clash {
	keys := make([]string, 0, len(groups))
	for k, list := range groups {
		if len(list) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]Clash, 0, len(keys))
	for _, k := range keys {
		out = append(out, Clash{Key: label(k), Games: groups[k]})
	}
	return out
}
