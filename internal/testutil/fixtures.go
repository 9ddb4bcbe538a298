package testutil

import (
	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
)

// SportID and Season scope every fixture schedule.
const (
	SportID = "soccer"
	Season  = "2025"
)

// SampleTeams returns four teams with real-ish coordinates.
func SampleTeams() []teams.Team {
	return []teams.Team{
		{ID: "t1", Name: "Harbor City", Abbreviation: "HBC", Location: teams.Location{Lat: 40.71, Lon: -74.00}},
		{ID: "t2", Name: "Lakeside", Abbreviation: "LKS", Location: teams.Location{Lat: 41.88, Lon: -87.63}},
		{ID: "t3", Name: "Bayview", Abbreviation: "BAY", Location: teams.Location{Lat: 37.77, Lon: -122.42}},
		{ID: "t4", Name: "Northgate", Abbreviation: "NTG", Location: teams.Location{Lat: 47.61, Lon: -122.33}},
	}
}

// SampleIndex indexes SampleTeams.
func SampleIndex() teams.Index {
	return teams.NewIndex(SampleTeams())
}

// SampleMeta returns fixture schedule metadata with default sport rules.
func SampleMeta() schedule.Meta {
	return schedule.Meta{SportID: SportID, Season: Season}
}

// SampleGame returns a game without time or venue.
func SampleGame(id, home, away, date string) games.Game {
	return games.Game{ID: id, SportID: SportID, HomeTeamID: home, AwayTeamID: away, Date: date}
}

// SampleGameAt returns a game pinned to a venue and kickoff.
func SampleGameAt(id, home, away, date, clock, venue string) games.Game {
	g := SampleGame(id, home, away, date)
	g.Time = clock
	g.Venue = venue
	return g
}

// SampleGames returns a small conflict-free round of games.
func SampleGames() []games.Game {
	return []games.Game{
		SampleGameAt("g1", "t1", "t2", "2025-03-01", "15:00", "V1"),
		SampleGameAt("g2", "t3", "t4", "2025-03-01", "15:00", "V2"),
		SampleGameAt("g3", "t2", "t3", "2025-03-08", "15:00", "V1"),
		SampleGameAt("g4", "t4", "t1", "2025-03-08", "18:00", "V2"),
	}
}
