package games

import (
	"errors"
	"fmt"
	"sort"

	"github.com/preston-bernstein/ftbuilder/internal/timeutil"
)

// Broadcast describes a television assignment. The zero value means the game is not televised.
type Broadcast struct {
	Network string `json:"network,omitempty" yaml:"network,omitempty"`
}

// Televised reports whether a network is assigned.
func (b Broadcast) Televised() bool {
	return b.Network != ""
}

// Game is the canonical game shape held by the schedule.
type Game struct {
	ID         string    `json:"id" yaml:"id"`
	SportID    string    `json:"sportId" yaml:"sportId"`
	HomeTeamID string    `json:"homeTeamId" yaml:"homeTeamId"`
	AwayTeamID string    `json:"awayTeamId" yaml:"awayTeamId"`
	Date       string    `json:"date" yaml:"date"`
	Time       string    `json:"time,omitempty" yaml:"time,omitempty"`
	Venue      string    `json:"venue,omitempty" yaml:"venue,omitempty"`
	Broadcast  Broadcast `json:"broadcast,omitzero" yaml:"broadcast,omitempty"`
}

// Slot is where and when a game is played.
type Slot struct {
	Date  string `json:"date" yaml:"date"`
	Time  string `json:"time,omitempty" yaml:"time,omitempty"`
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`
}

// Validate checks the slot's date and optional time formats.
func (s Slot) Validate() error {
	if !timeutil.ValidDate(s.Date) {
		return fmt.Errorf("invalid slot date %q", s.Date)
	}
	if s.Time != "" {
		if _, err := timeutil.ParseClock(s.Time); err != nil {
			return fmt.Errorf("invalid slot time: %w", err)
		}
	}
	return nil
}

// Slot returns the game's current slot.
func (g Game) Slot() Slot {
	return Slot{Date: g.Date, Time: g.Time, Venue: g.Venue}
}

// WithSlot returns a copy of the game placed at s.
func (g Game) WithSlot(s Slot) Game {
	g.Date = s.Date
	g.Time = s.Time
	g.Venue = s.Venue
	return g
}

// VenueKey identifies the physical venue. Games without an explicit venue
// are played at the home team's venue.
func (g Game) VenueKey() string {
	if g.Venue != "" {
		return g.Venue
	}
	return "home:" + g.HomeTeamID
}

// Involves reports whether teamID plays in the game.
func (g Game) Involves(teamID string) bool {
	return g.HomeTeamID == teamID || g.AwayTeamID == teamID
}

// IsHome reports whether teamID is the home side.
func (g Game) IsHome(teamID string) bool {
	return g.HomeTeamID == teamID
}

// Teams returns home and away team ids.
func (g Game) Teams() []string {
	return []string{g.HomeTeamID, g.AwayTeamID}
}

// Validate checks the game's own fields. Cross-game invariants live on the schedule.
func (g Game) Validate() error {
	if g.ID == "" {
		return errors.New("game id is required")
	}
	if g.HomeTeamID == "" || g.AwayTeamID == "" {
		return fmt.Errorf("game %s: home and away teams are required", g.ID)
	}
	if g.HomeTeamID == g.AwayTeamID {
		return fmt.Errorf("game %s: home and away teams must differ", g.ID)
	}
	if err := g.Slot().Validate(); err != nil {
		return fmt.Errorf("game %s: %w", g.ID, err)
	}
	return nil
}

// Less orders games by date, time, then id.
func Less(a, b Game) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.ID < b.ID
}

// Sort orders games in place by date, time, then id.
func Sort(list []Game) {
	sort.Slice(list, func(i, j int) bool { return Less(list[i], list[j]) })
}
