// Package views projects one schedule snapshot into the render models of
// the timeline, calendar, gantt and matrix views. Projection is pure: the
// same input always yields an equal model.
package views

import (
	"errors"
	"fmt"
	"sort"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/timeutil"
)

// Kind names a view.
type Kind string

const (
	KindTimeline Kind = "timeline"
	KindCalendar Kind = "calendar"
	KindGantt    Kind = "gantt"
	KindMatrix   Kind = "matrix"
)

// Kinds lists every supported view.
var Kinds = []Kind{KindTimeline, KindCalendar, KindGantt, KindMatrix}

var (
	ErrUnknownKind   = errors.New("unknown view kind")
	ErrInvalidWindow = errors.New("invalid window")
)

// MaxWindowDays bounds an explicit window. A schedule whose own span is
// longer may always be projected in full.
const MaxWindowDays = 731

// ParseKind validates a view name.
func ParseKind(v string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, v)
}

// Window is an inclusive date range. Empty bounds default to the
// schedule's span.
type Window struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Input is the single snapshot every view is derived from.
type Input struct {
	Schedule  *schedule.Schedule
	Teams     teams.Index
	Conflicts []rules.Conflict
	Revision  uint64
}

// Model is the render model for one view. Exactly one of the view fields is set.
type Model struct {
	Kind     Kind      `json:"kind"`
	Revision uint64    `json:"revision"`
	Window   Window    `json:"window"`
	Timeline *Timeline `json:"timeline,omitempty"`
	Calendar *Calendar `json:"calendar,omitempty"`
	Gantt    *Gantt    `json:"gantt,omitempty"`
	Matrix   *Matrix   `json:"matrix,omitempty"`
}

// Set holds all four views projected from the same snapshot.
type Set struct {
	Revision uint64   `json:"revision"`
	Window   Window   `json:"window"`
	Timeline Timeline `json:"timeline"`
	Calendar Calendar `json:"calendar"`
	Gantt    Gantt    `json:"gantt"`
	Matrix   Matrix   `json:"matrix"`
}

// Marker summarizes the conflicts touching a game.
type Marker struct {
	Count    int            `json:"count"`
	Severity rules.Severity `json:"severity,omitempty"`
}

// Project builds the model for kind.
func Project(in Input, kind Kind, w Window) (Model, error) {
	p, err := newProjection(in, w)
	if err != nil {
		return Model{}, err
	}
	m := Model{Kind: kind, Revision: in.Revision, Window: p.window}
	switch kind {
	case KindTimeline:
		v := p.timeline()
		m.Timeline = &v
	case KindCalendar:
		v := p.calendar()
		m.Calendar = &v
	case KindGantt:
		v := p.gantt()
		m.Gantt = &v
	case KindMatrix:
		v := p.matrix()
		m.Matrix = &v
	default:
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return m, nil
}

// ProjectAll builds every view in one pass over the snapshot.
func ProjectAll(in Input, w Window) (Set, error) {
	p, err := newProjection(in, w)
	if err != nil {
		return Set{}, err
	}
	return Set{
		Revision: in.Revision,
		Window:   p.window,
		Timeline: p.timeline(),
		Calendar: p.calendar(),
		Gantt:    p.gantt(),
		Matrix:   p.matrix(),
	}, nil
}

type projection struct {
	in      Input
	window  Window
	dates   []string
	games   []games.Game
	markers map[string]Marker
	teamIDs []string
}

func newProjection(in Input, w Window) (*projection, error) {
	if in.Schedule == nil {
		return nil, errors.New("views: nil schedule")
	}
	start, end, ok := in.Schedule.Span()
	if w.From == "" {
		w.From = start
	}
	if w.To == "" {
		w.To = end
	}
	p := &projection{in: in, window: w, markers: markers(in.Conflicts)}

	teamSet := make(map[string]struct{}, len(in.Teams))
	for id := range in.Teams {
		teamSet[id] = struct{}{}
	}
	for _, id := range in.Schedule.TeamIDs() {
		teamSet[id] = struct{}{}
	}
	for id := range teamSet {
		p.teamIDs = append(p.teamIDs, id)
	}
	sort.Strings(p.teamIDs)

	if w.From == "" && w.To == "" && !ok {
		return p, nil
	}
	if !timeutil.ValidDate(w.From) || !timeutil.ValidDate(w.To) || w.From > w.To {
		return nil, fmt.Errorf("%w: %q..%q", ErrInvalidWindow, w.From, w.To)
	}
	limit := MaxWindowDays
	if ok {
		limit = max(limit, spanDays(start, end))
	}
	if n := spanDays(w.From, w.To); n > limit {
		return nil, fmt.Errorf("%w: %d days exceeds the %d day limit", ErrInvalidWindow, n, limit)
	}
	dates, err := timeutil.Days(w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	p.dates = dates
	for _, g := range in.Schedule.Games() {
		if g.Date >= w.From && g.Date <= w.To {
			p.games = append(p.games, g)
		}
	}
	return p, nil
}

// spanDays counts the days in the inclusive range. Both dates must be valid.
func spanDays(from, to string) int {
	a, errA := timeutil.ParseDate(from)
	b, errB := timeutil.ParseDate(to)
	if errA != nil || errB != nil {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

func markers(list []rules.Conflict) map[string]Marker {
	out := make(map[string]Marker)
	for _, c := range list {
		for _, id := range c.GameIDs {
			m := out[id]
			m.Count++
			if m.Severity != rules.SeverityHard {
				m.Severity = c.Severity
			}
			out[id] = m
		}
	}
	return out
}

func (p *projection) teamName(id string) string {
	if t, ok := p.in.Teams[id]; ok && t.Name != "" {
		return t.Name
	}
	return id
}
