// Package schedule holds the immutable schedule snapshot for one sport and
// season. Every edit produces a new Schedule; existing values never change.
package schedule

import (
	"errors"
	"fmt"
	"sort"

	"github.com/preston-bernstein/ftbuilder/internal/codec"
	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
)

var (
	// ErrUnknownGame is returned when an edit references a game that is not scheduled.
	ErrUnknownGame = errors.New("unknown game")
	// ErrDuplicateGame is returned when an add reuses an existing game id.
	ErrDuplicateGame = errors.New("duplicate game id")
	// ErrStaleDelta is returned when a move was prepared against a slot the game no longer occupies.
	ErrStaleDelta = errors.New("delta prepared against a stale schedule")
	// ErrSportMismatch is returned when a game belongs to a different sport than its schedule.
	ErrSportMismatch = errors.New("game sport does not match schedule")
)

// Rules are the sport-level capabilities that relax uniqueness invariants.
type Rules struct {
	AllowDoubleheaders bool `json:"allowDoubleheaders" yaml:"allowDoubleheaders"`
	MultiField         bool `json:"multiField" yaml:"multiField"`
}

// Meta scopes a schedule. Start and End optionally bound the season; when
// empty the span of scheduled games is used.
type Meta struct {
	SportID string `json:"sportId" yaml:"sportId"`
	Season  string `json:"season" yaml:"season"`
	Rules   Rules  `json:"rules" yaml:"rules"`
	Start   string `json:"start,omitempty" yaml:"start,omitempty"`
	End     string `json:"end,omitempty" yaml:"end,omitempty"`
}

// Document is the serializable form of a schedule.
type Document struct {
	Meta  Meta         `json:"meta" yaml:"meta"`
	Games []games.Game `json:"games" yaml:"games"`
}

// Schedule is an immutable set of games.
type Schedule struct {
	meta    Meta
	byID    map[string]games.Game
	ordered []games.Game
}

// New builds a schedule from a list of games. Games without a sport take
// the schedule's. Structural validation is left to Validate.
func New(meta Meta, list []games.Game) *Schedule {
	byID := make(map[string]games.Game, len(list))
	for _, g := range list {
		byID[g.ID] = scoped(meta, g)
	}
	return build(meta, byID)
}

func build(meta Meta, byID map[string]games.Game) *Schedule {
	ordered := make([]games.Game, 0, len(byID))
	for _, g := range byID {
		ordered = append(ordered, g)
	}
	games.Sort(ordered)
	return &Schedule{meta: meta, byID: byID, ordered: ordered}
}

func scoped(meta Meta, g games.Game) games.Game {
	if g.SportID == "" {
		g.SportID = meta.SportID
	}
	return g
}

// Empty returns a schedule with no games.
func Empty(meta Meta) *Schedule {
	return New(meta, nil)
}

// Meta returns the schedule's scope.
func (s *Schedule) Meta() Meta {
	return s.meta
}

// Len returns the number of games.
func (s *Schedule) Len() int {
	return len(s.ordered)
}

// Games returns a copy of all games ordered by date, time, id.
func (s *Schedule) Games() []games.Game {
	out := make([]games.Game, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Game looks up a game by id.
func (s *Schedule) Game(id string) (games.Game, bool) {
	g, ok := s.byID[id]
	return g, ok
}

// TeamGames returns a team's games in date order.
func (s *Schedule) TeamGames(teamID string) []games.Game {
	var out []games.Game
	for _, g := range s.ordered {
		if g.Involves(teamID) {
			out = append(out, g)
		}
	}
	return out
}

// GamesOn returns the games played on date.
func (s *Schedule) GamesOn(date string) []games.Game {
	var out []games.Game
	for _, g := range s.ordered {
		if g.Date == date {
			out = append(out, g)
		}
	}
	return out
}

// TeamIDs returns the sorted ids of every team with at least one game.
func (s *Schedule) TeamIDs() []string {
	seen := make(map[string]struct{})
	for _, g := range s.ordered {
		seen[g.HomeTeamID] = struct{}{}
		seen[g.AwayTeamID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Span returns the season window: Meta.Start/End when set, otherwise the
// first and last scheduled dates. ok is false for an empty, unbounded schedule.
func (s *Schedule) Span() (start, end string, ok bool) {
	start, end = s.meta.Start, s.meta.End
	if len(s.ordered) > 0 {
		if start == "" {
			start = s.ordered[0].Date
		}
		if end == "" {
			end = s.ordered[len(s.ordered)-1].Date
		}
	}
	return start, end, start != "" && end != ""
}

// Document returns the serializable form.
func (s *Schedule) Document() Document {
	return Document{Meta: s.meta, Games: s.Games()}
}

// Apply returns a new schedule with d applied. The receiver is unchanged.
func (s *Schedule) Apply(d games.Delta) (*Schedule, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	next := make(map[string]games.Game, len(s.byID)+len(d.Ops))
	for id, g := range s.byID {
		next[id] = g
	}
	for _, op := range d.Ops {
		switch op.Kind {
		case games.OpAdd:
			if _, exists := next[op.Game.ID]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateGame, op.Game.ID)
			}
			next[op.Game.ID] = scoped(s.meta, *op.Game)
		case games.OpRemove:
			g, exists := next[op.GameID]
			if !exists {
				return nil, fmt.Errorf("%w: %s", ErrUnknownGame, op.GameID)
			}
			if op.From != nil && *op.From != g.Slot() {
				return nil, fmt.Errorf("%w: game %s is no longer at %s", ErrStaleDelta, op.GameID, op.From.Date)
			}
			delete(next, op.GameID)
		case games.OpMove:
			g, exists := next[op.GameID]
			if !exists {
				return nil, fmt.Errorf("%w: %s", ErrUnknownGame, op.GameID)
			}
			if op.From != nil && *op.From != g.Slot() {
				return nil, fmt.Errorf("%w: game %s is no longer at %s", ErrStaleDelta, op.GameID, op.From.Date)
			}
			next[op.GameID] = g.WithSlot(*op.To)
		}
	}
	return build(s.meta, next), nil
}

// Touched returns the sorted ids of games that differ between before and after.
func Touched(before, after *Schedule) []string {
	var out []string
	for id, g := range before.byID {
		other, ok := after.byID[id]
		if !ok || g != other {
			out = append(out, id)
		}
	}
	for id := range after.byID {
		if _, ok := before.byID[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// ValidateReferences checks every game's own fields, its sport and that both
// teams are known.
func (s *Schedule) ValidateReferences(known teams.Index) error {
	for _, g := range s.ordered {
		if err := g.Validate(); err != nil {
			return err
		}
		if s.meta.SportID != "" && g.SportID != s.meta.SportID {
			return fmt.Errorf("%w: game %s is %q, schedule is %q", ErrSportMismatch, g.ID, g.SportID, s.meta.SportID)
		}
		if _, ok := known[g.HomeTeamID]; !ok {
			return fmt.Errorf("game %s: unknown home team %q", g.ID, g.HomeTeamID)
		}
		if _, ok := known[g.AwayTeamID]; !ok {
			return fmt.Errorf("game %s: unknown away team %q", g.ID, g.AwayTeamID)
		}
	}
	return nil
}

// Validate checks references and the uniqueness invariants.
func (s *Schedule) Validate(known teams.Index) error {
	if err := s.ValidateReferences(known); err != nil {
		return err
	}
	if clashes := s.TeamDateClashes(); len(clashes) > 0 {
		c := clashes[0]
		return fmt.Errorf("team %s plays more than once on %s", c.Key, c.Games[0].Date)
	}
	if clashes := s.VenueClashes(); len(clashes) > 0 {
		c := clashes[0]
		return fmt.Errorf("venue double booked: %s", c.Key)
	}
	return nil
}

// Fingerprint identifies the schedule's content. Equal schedules have equal
// fingerprints regardless of how they were built.
func (s *Schedule) Fingerprint() (string, error) {
	return codec.Fingerprint(s.Document())
}
