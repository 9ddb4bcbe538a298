// Package constraints evaluates schedules against a configured rule set and
// reports conflicts. Evaluation never fails because of a violation; errors
// are reserved for broken input or cancelled geodata lookups.
package constraints

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
)

const tracerName = "github.com/preston-bernstein/ftbuilder/internal/constraints"

// Engine holds a compiled rule set.
type Engine struct {
	rules       []Rule
	constraints []rules.Constraint
	geo         Geodata
	tracer      trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithGeodata replaces the default great-circle distance source.
func WithGeodata(g Geodata) Option {
	return func(e *Engine) {
		if g != nil {
			e.geo = g
		}
	}
}

// WithRule adds a custom rule alongside the configured constraints.
func WithRule(r Rule) Option {
	return func(e *Engine) {
		if r != nil {
			e.rules = append(e.rules, r)
		}
	}
}

// New compiles constraints into an Engine. Venue and team double booking
// are always enforced, whether or not they are listed.
func New(list []rules.Constraint, opts ...Option) (*Engine, error) {
	e := &Engine{
		geo:    GreatCircle{},
		tracer: otel.Tracer(tracerName),
	}
	present := make(map[rules.Kind]bool, len(list))
	for i, c := range list {
		r, err := compile(c)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		present[c.Kind] = true
		e.rules = append(e.rules, r)
		e.constraints = append(e.constraints, c)
	}
	for _, kind := range []rules.Kind{rules.KindVenueDoubleBooking, rules.KindTeamDoubleBooking} {
		if present[kind] {
			continue
		}
		c := rules.Constraint{Kind: kind}
		r, _ := compile(c)
		e.rules = append(e.rules, r)
		e.constraints = append(e.constraints, c)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Constraints returns the descriptors the engine was built from, including the built-ins.
func (e *Engine) Constraints() []rules.Constraint {
	out := make([]rules.Constraint, len(e.constraints))
	copy(out, e.constraints)
	return out
}

// Evaluate checks the whole schedule.
func (e *Engine) Evaluate(ctx context.Context, s *schedule.Schedule, known teams.Index, opts Options) ([]rules.Conflict, error) {
	ctx, span := e.tracer.Start(ctx, "constraints.Evaluate", trace.WithAttributes(attribute.Int("games", s.Len())))
	defer span.End()

	var out []rules.Conflict
	for _, r := range e.active(opts) {
		found, err := r.Evaluate(ctx, e.input(s, known, opts, nil, nil))
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("evaluate %s: %w", r.Kind(), err)
		}
		out = append(out, found...)
	}
	return rules.Normalize(out), nil
}

// EvaluateDelta returns the conflicts of s with d applied, plus that
// schedule. When base holds the conflicts of s (from Evaluate with the same
// options), only rules inside the delta's team/date scope are recomputed;
// with a nil base the result is a full evaluation.
func (e *Engine) EvaluateDelta(ctx context.Context, s *schedule.Schedule, known teams.Index, d games.Delta, base *Baseline, opts Options) ([]rules.Conflict, *schedule.Schedule, error) {
	next, err := s.Apply(d)
	if err != nil {
		return nil, nil, err
	}
	if base == nil || spanChanged(s, next) {
		conflicts, err := e.Evaluate(ctx, next, known, opts)
		return conflicts, next, err
	}

	ctx, span := e.tracer.Start(ctx, "constraints.EvaluateDelta", trace.WithAttributes(attribute.Int("ops", len(d.Ops))))
	defer span.End()

	teamScope, dateScope := deltaScope(s, next, d)
	kept := make(map[rules.Kind][]rules.Conflict)
	for _, c := range base.Conflicts {
		kept[c.Kind] = append(kept[c.Kind], c)
	}

	var out []rules.Conflict
	for _, r := range e.active(opts) {
		var in *Input
		switch r.Scope() {
		case ScopeTeam:
			for _, c := range kept[r.Kind()] {
				if !intersects(c.TeamIDs, teamScope) {
					out = append(out, c)
				}
			}
			in = e.input(next, known, opts, teamScope, nil)
		case ScopeDate:
			for _, c := range kept[r.Kind()] {
				if _, touched := dateScope[c.Date]; !touched {
					out = append(out, c)
				}
			}
			in = e.input(next, known, opts, nil, dateScope)
		default:
			in = e.input(next, known, opts, nil, nil)
		}
		found, err := r.Evaluate(ctx, in)
		if err != nil {
			span.RecordError(err)
			return nil, nil, fmt.Errorf("evaluate %s: %w", r.Kind(), err)
		}
		out = append(out, found...)
	}
	return rules.Normalize(out), next, nil
}

// Baseline carries previously computed conflicts for delta evaluation.
type Baseline struct {
	Conflicts []rules.Conflict
}

func (e *Engine) active(opts Options) []Rule {
	out := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if fs, ok := r.(fullSeasonRule); ok && fs.FullSeasonOnly() && !opts.FullSeason {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) input(s *schedule.Schedule, known teams.Index, opts Options, teamFilter, dateFilter map[string]struct{}) *Input {
	return &Input{
		Schedule:   s,
		Teams:      known,
		Geodata:    e.geo,
		Options:    opts,
		teamFilter: teamFilter,
		dateFilter: dateFilter,
	}
}

// deltaScope collects the teams and dates a delta touches, before and after.
func deltaScope(before, after *schedule.Schedule, d games.Delta) (map[string]struct{}, map[string]struct{}) {
	teamScope := make(map[string]struct{})
	dateScope := make(map[string]struct{})
	mark := func(g games.Game) {
		teamScope[g.HomeTeamID] = struct{}{}
		teamScope[g.AwayTeamID] = struct{}{}
		dateScope[g.Date] = struct{}{}
	}
	for _, id := range d.GameIDs() {
		if g, ok := before.Game(id); ok {
			mark(g)
		}
		if g, ok := after.Game(id); ok {
			mark(g)
		}
	}
	return teamScope, dateScope
}

func spanChanged(before, after *schedule.Schedule) bool {
	bs, be, bok := before.Span()
	as, ae, aok := after.Span()
	return bs != as || be != ae || bok != aok
}

func intersects(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
