package views

import (
	"sort"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/timeutil"
)

// Entry is one game as seen from a cell.
type Entry struct {
	GameID     string `json:"gameId"`
	HomeTeamID string `json:"homeTeamId"`
	AwayTeamID string `json:"awayTeamId"`
	Time       string `json:"time,omitempty"`
	Venue      string `json:"venue,omitempty"`
	Marker     Marker `json:"marker"`
}

// Timeline has one row per team and one column per date.
type Timeline struct {
	Dates []string      `json:"dates"`
	Rows  []TimelineRow `json:"rows"`
}

type TimelineRow struct {
	TeamID string         `json:"teamId"`
	Name   string         `json:"name"`
	Cells  []TimelineCell `json:"cells"`
}

// TimelineCell lists the team's games on Date; usually zero or one.
type TimelineCell struct {
	Date  string          `json:"date"`
	Games []TimelineEntry `json:"games,omitempty"`
}

type TimelineEntry struct {
	Entry
	OpponentID string `json:"opponentId"`
	Home       bool   `json:"home"`
}

// Calendar is a month grid; weeks start on Monday.
type Calendar struct {
	Months []Month `json:"months"`
}

type Month struct {
	Month string  `json:"month"`
	Weeks [][]Day `json:"weeks"`
}

// Day is a calendar square. Squares outside the month or window carry no games.
type Day struct {
	Date     string  `json:"date"`
	InMonth  bool    `json:"inMonth"`
	InWindow bool    `json:"inWindow"`
	Games    []Entry `json:"games,omitempty"`
}

// Gantt orders games as bars; a dependency links consecutive games of one team.
type Gantt struct {
	Bars         []Bar        `json:"bars"`
	Dependencies []Dependency `json:"dependencies"`
}

type Bar struct {
	Entry
	Date  string `json:"date"`
	Label string `json:"label"`
}

type Dependency struct {
	From   string `json:"from"`
	To     string `json:"to"`
	TeamID string `json:"teamId"`
}

// Matrix rows are home teams and columns away teams.
type Matrix struct {
	TeamIDs []string    `json:"teamIds"`
	Rows    []MatrixRow `json:"rows"`
}

type MatrixRow struct {
	HomeTeamID string       `json:"homeTeamId"`
	Cells      []MatrixCell `json:"cells"`
}

// MatrixCell reports the games a pairing has in the window and how many
// conflicts touch them.
type MatrixCell struct {
	AwayTeamID string   `json:"awayTeamId"`
	GameIDs    []string `json:"gameIds,omitempty"`
	Conflicts  int      `json:"conflicts"`
}

func (p *projection) entry(g games.Game) Entry {
	return Entry{
		GameID:     g.ID,
		HomeTeamID: g.HomeTeamID,
		AwayTeamID: g.AwayTeamID,
		Time:       g.Time,
		Venue:      g.Venue,
		Marker:     p.markers[g.ID],
	}
}

func (p *projection) timeline() Timeline {
	out := Timeline{Dates: append([]string{}, p.dates...), Rows: []TimelineRow{}}
	byTeamDate := make(map[string]map[string][]games.Game)
	for _, g := range p.games {
		for _, team := range g.Teams() {
			if byTeamDate[team] == nil {
				byTeamDate[team] = make(map[string][]games.Game)
			}
			byTeamDate[team][g.Date] = append(byTeamDate[team][g.Date], g)
		}
	}
	for _, team := range p.teamIDs {
		row := TimelineRow{TeamID: team, Name: p.teamName(team), Cells: make([]TimelineCell, 0, len(p.dates))}
		for _, date := range p.dates {
			cell := TimelineCell{Date: date}
			for _, g := range byTeamDate[team][date] {
				opponent := g.HomeTeamID
				if g.IsHome(team) {
					opponent = g.AwayTeamID
				}
				cell.Games = append(cell.Games, TimelineEntry{Entry: p.entry(g), OpponentID: opponent, Home: g.IsHome(team)})
			}
			row.Cells = append(row.Cells, cell)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func (p *projection) calendar() Calendar {
	out := Calendar{Months: []Month{}}
	if len(p.dates) == 0 {
		return out
	}
	byDate := make(map[string][]Entry)
	for _, g := range p.games {
		byDate[g.Date] = append(byDate[g.Date], p.entry(g))
	}

	first, _ := timeutil.ParseDate(p.dates[0])
	last, _ := timeutil.ParseDate(p.dates[len(p.dates)-1])
	for m := first.AddDate(0, 0, 1-first.Day()); !m.After(last); m = m.AddDate(0, 1, 0) {
		month := Month{Month: m.Format("2006-01")}
		gridEnd := timeutil.WeekStart(m.AddDate(0, 1, -1)).AddDate(0, 0, 6)
		var week []Day
		for d := timeutil.WeekStart(m); !d.After(gridEnd); d = d.AddDate(0, 0, 1) {
			date := timeutil.FormatDate(d)
			day := Day{
				Date:     date,
				InMonth:  d.Month() == m.Month(),
				InWindow: date >= p.window.From && date <= p.window.To,
			}
			if day.InMonth && day.InWindow {
				day.Games = byDate[date]
			}
			week = append(week, day)
			if len(week) == 7 {
				month.Weeks = append(month.Weeks, week)
				week = nil
			}
		}
		out.Months = append(out.Months, month)
	}
	return out
}

func (p *projection) gantt() Gantt {
	out := Gantt{Bars: []Bar{}, Dependencies: []Dependency{}}
	for _, g := range p.games {
		out.Bars = append(out.Bars, Bar{
			Entry: p.entry(g),
			Date:  g.Date,
			Label: p.label(g),
		})
	}
	for _, team := range p.teamIDs {
		var prev string
		for _, g := range p.games {
			if !g.Involves(team) {
				continue
			}
			if prev != "" {
				out.Dependencies = append(out.Dependencies, Dependency{From: prev, To: g.ID, TeamID: team})
			}
			prev = g.ID
		}
	}
	return out
}

func (p *projection) label(g games.Game) string {
	away, home := g.AwayTeamID, g.HomeTeamID
	if t, ok := p.in.Teams[away]; ok && t.Abbreviation != "" {
		away = t.Abbreviation
	}
	if t, ok := p.in.Teams[home]; ok && t.Abbreviation != "" {
		home = t.Abbreviation
	}
	return away + " @ " + home
}

func (p *projection) matrix() Matrix {
	out := Matrix{TeamIDs: append([]string{}, p.teamIDs...), Rows: []MatrixRow{}}
	pairs := make(map[[2]string][]string)
	for _, g := range p.games {
		key := [2]string{g.HomeTeamID, g.AwayTeamID}
		pairs[key] = append(pairs[key], g.ID)
	}
	for _, home := range p.teamIDs {
		row := MatrixRow{HomeTeamID: home, Cells: make([]MatrixCell, 0, len(p.teamIDs))}
		for _, away := range p.teamIDs {
			ids := pairs[[2]string{home, away}]
			sort.Strings(ids)
			cell := MatrixCell{AwayTeamID: away, GameIDs: ids}
			for _, c := range p.in.Conflicts {
				for _, id := range ids {
					if c.Touches(id) {
						cell.Conflicts++
						break
					}
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
