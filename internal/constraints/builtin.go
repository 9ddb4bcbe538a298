package constraints

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/timeutil"
)

const (
	defaultBalanceRatio = 0.5
	defaultKickoff      = 12 * time.Hour
)

// compile turns a descriptor into its rule.
func compile(c rules.Constraint) (Rule, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	sev := c.EffectiveSeverity()
	switch c.Kind {
	case rules.KindMaxConsecutiveHome:
		return consecutiveRule{kind: c.Kind, severity: sev, max: c.Max, home: true}, nil
	case rules.KindMaxConsecutiveAway:
		return consecutiveRule{kind: c.Kind, severity: sev, max: c.Max, home: false}, nil
	case rules.KindHomeAwayBalance:
		ratio := c.Ratio
		if ratio == 0 {
			ratio = defaultBalanceRatio
		}
		return balanceRule{severity: sev, ratio: ratio, tolerance: c.Tolerance}, nil
	case rules.KindRivalryProtection:
		return rivalryRule{severity: sev, a: c.Teams[0], b: c.Teams[1]}, nil
	case rules.KindByeWeekRequired:
		return byeWeekRule{severity: sev}, nil
	case rules.KindTVWindowSet:
		return tvWindowRule{severity: sev, windows: c.Windows}, nil
	case rules.KindVenueDoubleBooking, rules.KindTeamDoubleBooking:
		if sev != rules.SeverityHard {
			return nil, fmt.Errorf("%s: double booking is always a hard constraint", c.Kind)
		}
		if c.Kind == rules.KindVenueDoubleBooking {
			return venueRule{}, nil
		}
		return teamDateRule{}, nil
	case rules.KindTravelFeasibility:
		kickoff := defaultKickoff
		if c.DefaultKickoff != "" {
			parsed, err := timeutil.ParseClock(c.DefaultKickoff)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Kind, err)
			}
			kickoff = parsed
		}
		return travelRule{
			severity:      sev,
			minTurnaround: c.MinTurnaround,
			speedKmh:      c.TravelSpeedKmh,
			maxDistanceKm: c.MaxDistanceKm,
			kickoff:       kickoff,
		}, nil
	}
	return nil, fmt.Errorf("unknown constraint kind %q", c.Kind)
}

type consecutiveRule struct {
	kind     rules.Kind
	severity rules.Severity
	max      int
	home     bool
}

func (r consecutiveRule) Kind() rules.Kind { return r.kind }
func (r consecutiveRule) Scope() Scope     { return ScopeTeam }

func (r consecutiveRule) Evaluate(_ context.Context, in *Input) ([]rules.Conflict, error) {
	label := "away"
	if r.home {
		label = "home"
	}
	var out []rules.Conflict
	for _, team := range in.TeamIDs() {
		var run []games.Game
		flush := func() {
			if len(run) > r.max {
				out = append(out, rules.Conflict{
					Kind:     r.kind,
					Severity: r.severity,
					GameIDs:  ids(run),
					TeamIDs:  []string{team},
					Date:     run[0].Date,
					Reason:   fmt.Sprintf("%s plays %d consecutive %s games from %s (max %d)", team, len(run), label, run[0].Date, r.max),
				})
			}
			run = nil
		}
		for _, g := range in.Schedule.TeamGames(team) {
			if g.IsHome(team) == r.home {
				run = append(run, g)
				continue
			}
			flush()
		}
		flush()
	}
	return out, nil
}

type balanceRule struct {
	severity  rules.Severity
	ratio     float64
	tolerance float64
}

func (r balanceRule) Kind() rules.Kind     { return rules.KindHomeAwayBalance }
func (r balanceRule) Scope() Scope         { return ScopeTeam }
func (r balanceRule) FullSeasonOnly() bool { return true }

func (r balanceRule) Evaluate(_ context.Context, in *Input) ([]rules.Conflict, error) {
	var out []rules.Conflict
	for _, team := range in.TeamIDs() {
		list := in.Schedule.TeamGames(team)
		if len(list) == 0 {
			continue
		}
		home := 0
		for _, g := range list {
			if g.IsHome(team) {
				home++
			}
		}
		got := float64(home) / float64(len(list))
		// Rounded to absorb float noise at the tolerance boundary.
		if math.Round(math.Abs(got-r.ratio)*1e9)/1e9 > r.tolerance {
			out = append(out, rules.Conflict{
				Kind:     rules.KindHomeAwayBalance,
				Severity: r.severity,
				TeamIDs:  []string{team},
				Reason:   fmt.Sprintf("%s home ratio %.2f outside %.2f±%.2f (%d of %d at home)", team, got, r.ratio, r.tolerance, home, len(list)),
			})
		}
	}
	return out, nil
}

type rivalryRule struct {
	severity rules.Severity
	a, b     string
}

func (r rivalryRule) Kind() rules.Kind { return rules.KindRivalryProtection }
func (r rivalryRule) Scope() Scope     { return ScopeTeam }

func (r rivalryRule) Evaluate(_ context.Context, in *Input) ([]rules.Conflict, error) {
	if !in.IncludesTeam(r.a) && !in.IncludesTeam(r.b) {
		return nil, nil
	}
	for _, g := range in.Schedule.TeamGames(r.a) {
		if g.Involves(r.b) {
			return nil, nil
		}
	}
	return []rules.Conflict{{
		Kind:     rules.KindRivalryProtection,
		Severity: r.severity,
		TeamIDs:  []string{r.a, r.b},
		Reason:   fmt.Sprintf("rivals %s and %s do not meet this season", r.a, r.b),
	}}, nil
}

type byeWeekRule struct {
	severity rules.Severity
}

func (r byeWeekRule) Kind() rules.Kind { return rules.KindByeWeekRequired }
func (r byeWeekRule) Scope() Scope     { return ScopeTeam }

func (r byeWeekRule) Evaluate(_ context.Context, in *Input) ([]rules.Conflict, error) {
	startDate, endDate, ok := in.Schedule.Span()
	if !ok {
		return nil, nil
	}
	start, err := timeutil.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("bye week: season start: %w", err)
	}
	end, err := timeutil.ParseDate(endDate)
	if err != nil {
		return nil, fmt.Errorf("bye week: season end: %w", err)
	}
	var weeks []string
	for w := timeutil.WeekStart(start); !w.After(end); w = w.AddDate(0, 0, 7) {
		weeks = append(weeks, timeutil.FormatDate(w))
	}

	var out []rules.Conflict
	for _, team := range in.TeamIDs() {
		list := in.Schedule.TeamGames(team)
		if len(list) == 0 {
			continue
		}
		played := make(map[string]struct{}, len(list))
		for _, g := range list {
			day, err := timeutil.ParseDate(g.Date)
			if err != nil {
				return nil, fmt.Errorf("bye week: game %s: %w", g.ID, err)
			}
			played[timeutil.FormatDate(timeutil.WeekStart(day))] = struct{}{}
		}
		bye := false
		for _, w := range weeks {
			if _, ok := played[w]; !ok {
				bye = true
				break
			}
		}
		if !bye {
			out = append(out, rules.Conflict{
				Kind:     rules.KindByeWeekRequired,
				Severity: r.severity,
				TeamIDs:  []string{team},
				Reason:   fmt.Sprintf("%s has no bye week between %s and %s", team, startDate, endDate),
			})
		}
	}
	return out, nil
}

type tvWindowRule struct {
	severity rules.Severity
	windows  []rules.TimeWindow
}

func (r tvWindowRule) Kind() rules.Kind { return rules.KindTVWindowSet }
func (r tvWindowRule) Scope() Scope     { return ScopeDate }

func (r tvWindowRule) Evaluate(_ context.Context, in *Input) ([]rules.Conflict, error) {
	var out []rules.Conflict
	for _, g := range in.Schedule.Games() {
		if !g.Broadcast.Televised() || !in.IncludesDate(g.Date) {
			continue
		}
		reason := ""
		if g.Time == "" {
			reason = fmt.Sprintf("televised game %s on %s has no kickoff time", g.ID, g.Broadcast.Network)
		} else {
			inside, err := r.inside(g)
			if err != nil {
				return nil, err
			}
			if !inside {
				reason = fmt.Sprintf("game %s at %s on %s is outside every broadcast window", g.ID, g.Time, g.Broadcast.Network)
			}
		}
		if reason != "" {
			out = append(out, rules.Conflict{
				Kind:     rules.KindTVWindowSet,
				Severity: r.severity,
				GameIDs:  []string{g.ID},
				Date:     g.Date,
				Reason:   reason,
			})
		}
	}
	return out, nil
}

func (r tvWindowRule) inside(g games.Game) (bool, error) {
	day, err := timeutil.ParseDate(g.Date)
	if err != nil {
		return false, err
	}
	weekday := strings.ToLower(day.Weekday().String())
	for _, w := range r.windows {
		if len(w.Days) > 0 && !containsFold(w.Days, weekday) {
			continue
		}
		if g.Time >= w.Start && g.Time < w.End {
			return true, nil
		}
	}
	return false, nil
}

type venueRule struct{}

func (venueRule) Kind() rules.Kind { return rules.KindVenueDoubleBooking }
func (venueRule) Scope() Scope     { return ScopeDate }

func (venueRule) Evaluate(_ context.Context, in *Input) ([]rules.Conflict, error) {
	clashes := in.Schedule.VenueClashes()
	if in.DateFilter() != nil {
		clashes = in.Schedule.VenueClashesOn(in.DateFilter())
	}
	out := make([]rules.Conflict, 0, len(clashes))
	for _, c := range clashes {
		g := c.Games[0]
		out = append(out, rules.Conflict{
			Kind:     rules.KindVenueDoubleBooking,
			Severity: rules.SeverityHard,
			GameIDs:  c.GameIDs(),
			Date:     g.Date,
			Reason:   fmt.Sprintf("%d games share venue %s on %s %s", len(c.Games), g.VenueKey(), g.Date, g.Time),
		})
	}
	return out, nil
}

type teamDateRule struct{}

func (teamDateRule) Kind() rules.Kind { return rules.KindTeamDoubleBooking }
func (teamDateRule) Scope() Scope     { return ScopeDate }

func (teamDateRule) Evaluate(_ context.Context, in *Input) ([]rules.Conflict, error) {
	clashes := in.Schedule.TeamDateClashes()
	if in.DateFilter() != nil {
		clashes = in.Schedule.TeamDateClashesOn(in.DateFilter())
	}
	out := make([]rules.Conflict, 0, len(clashes))
	for _, c := range clashes {
		out = append(out, rules.Conflict{
			Kind:     rules.KindTeamDoubleBooking,
			Severity: rules.SeverityHard,
			GameIDs:  c.GameIDs(),
			TeamIDs:  []string{c.Key},
			Date:     c.Games[0].Date,
			Reason:   fmt.Sprintf("%s is scheduled %d times on %s", c.Key, len(c.Games), c.Games[0].Date),
		})
	}
	return out, nil
}

type travelRule struct {
	severity      rules.Severity
	minTurnaround time.Duration
	speedKmh      float64
	maxDistanceKm float64
	kickoff       time.Duration
}

func (r travelRule) Kind() rules.Kind { return rules.KindTravelFeasibility }
func (r travelRule) Scope() Scope     { return ScopeTeam }

func (r travelRule) Evaluate(ctx context.Context, in *Input) ([]rules.Conflict, error) {
	geo := in.Geodata
	if geo == nil {
		geo = GreatCircle{}
	}
	var out []rules.Conflict
	for _, team := range in.TeamIDs() {
		list := in.Schedule.TeamGames(team)
		for i := 1; i < len(list); i++ {
			prev, next := list[i-1], list[i]
			if prev.IsHome(team) || next.IsHome(team) {
				continue
			}
			from, okFrom := in.Teams[prev.HomeTeamID]
			to, okTo := in.Teams[next.HomeTeamID]
			if !okFrom || !okTo {
				continue
			}
			dist, err := geo.DistanceKm(ctx, from.Location, to.Location)
			if err != nil {
				return nil, fmt.Errorf("travel distance %s to %s: %w", prev.HomeTeamID, next.HomeTeamID, err)
			}
			reason, err := r.check(team, prev, next, dist)
			if err != nil {
				return nil, err
			}
			if reason != "" {
				out = append(out, rules.Conflict{
					Kind:     rules.KindTravelFeasibility,
					Severity: r.severity,
					GameIDs:  []string{prev.ID, next.ID},
					TeamIDs:  []string{team},
					Date:     next.Date,
					Reason:   reason,
				})
			}
		}
	}
	return out, nil
}

func (r travelRule) check(team string, prev, next games.Game, dist float64) (string, error) {
	if r.maxDistanceKm > 0 && dist > r.maxDistanceKm {
		return fmt.Sprintf("%s travels %.0fkm between %s and %s (max %.0fkm)", team, dist, prev.ID, next.ID, r.maxDistanceKm), nil
	}
	if r.speedKmh <= 0 {
		return "", nil
	}
	start, err := timeutil.At(prev.Date, prev.Time, r.kickoff)
	if err != nil {
		return "", err
	}
	end, err := timeutil.At(next.Date, next.Time, r.kickoff)
	if err != nil {
		return "", err
	}
	required := time.Duration(dist/r.speedKmh*float64(time.Hour)) + r.minTurnaround
	available := end.Sub(start)
	if available < required {
		return fmt.Sprintf("%s has %s to cover %.0fkm between %s and %s (needs %s)", team, available, dist, prev.ID, next.ID, required.Round(time.Minute)), nil
	}
	return "", nil
}

func ids(list []games.Game) []string {
	out := make([]string, len(list))
	for i, g := range list {
		out[i] = g.ID
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
