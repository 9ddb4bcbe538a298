// Package rules holds constraint descriptors and the conflicts they produce.
// Constraints are configuration; conflicts are always derived and never stored.
package rules

import (
	"fmt"
	"time"
)

// Kind names a scheduling rule.
type Kind string

const (
	KindMaxConsecutiveHome Kind = "maxConsecutiveHome"
	KindMaxConsecutiveAway Kind = "maxConsecutiveAway"
	KindHomeAwayBalance    Kind = "homeAwayBalance"
	KindRivalryProtection  Kind = "rivalryProtection"
	KindByeWeekRequired    Kind = "byeWeekRequired"
	KindTVWindowSet        Kind = "tvWindowSet"
	KindVenueDoubleBooking Kind = "venueDoubleBooking"
	KindTeamDoubleBooking  Kind = "teamDoubleBooking"
	KindTravelFeasibility  Kind = "travelFeasibility"
)

// Kinds lists every supported rule kind.
var Kinds = []Kind{
	KindMaxConsecutiveHome,
	KindMaxConsecutiveAway,
	KindHomeAwayBalance,
	KindRivalryProtection,
	KindByeWeekRequired,
	KindTVWindowSet,
	KindVenueDoubleBooking,
	KindTeamDoubleBooking,
	KindTravelFeasibility,
}

// Severity says whether a violation blocks a commit.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityHard || s == SeveritySoft
}

// DefaultSeverity is used when a constraint leaves severity unset.
func DefaultSeverity(kind Kind) Severity {
	switch kind {
	case KindVenueDoubleBooking, KindTeamDoubleBooking, KindTravelFeasibility:
		return SeverityHard
	default:
		return SeveritySoft
	}
}

// TimeWindow is a broadcast window. Days holds lowercase weekday names; empty means every day.
type TimeWindow struct {
	Days  []string `json:"days,omitempty" yaml:"days,omitempty"`
	Start string   `json:"start" yaml:"start"`
	End   string   `json:"end" yaml:"end"`
}

// Constraint is a rule descriptor. Only the parameters relevant to Kind are read.
type Constraint struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Severity Severity `json:"severity,omitempty" yaml:"severity,omitempty"`

	// maxConsecutiveHome / maxConsecutiveAway
	Max int `json:"max,omitempty" yaml:"max,omitempty"`
	// rivalryProtection
	Teams []string `json:"teams,omitempty" yaml:"teams,omitempty"`
	// homeAwayBalance
	Ratio     float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	// tvWindowSet
	Windows []TimeWindow `json:"windows,omitempty" yaml:"windows,omitempty"`
	// travelFeasibility
	MinTurnaround  time.Duration `json:"minTurnaround,omitempty" yaml:"minTurnaround,omitempty"`
	TravelSpeedKmh float64       `json:"travelSpeedKmh,omitempty" yaml:"travelSpeedKmh,omitempty"`
	MaxDistanceKm  float64       `json:"maxDistanceKm,omitempty" yaml:"maxDistanceKm,omitempty"`
	DefaultKickoff string        `json:"defaultKickoff,omitempty" yaml:"defaultKickoff,omitempty"`
}

// EffectiveSeverity returns the configured severity or the kind's default.
func (c Constraint) EffectiveSeverity() Severity {
	if c.Severity != "" {
		return c.Severity
	}
	return DefaultSeverity(c.Kind)
}

// Validate checks that the parameters required by the kind are present.
func (c Constraint) Validate() error {
	if c.Severity != "" && !c.Severity.Valid() {
		return fmt.Errorf("%s: invalid severity %q", c.Kind, c.Severity)
	}
	switch c.Kind {
	case KindMaxConsecutiveHome, KindMaxConsecutiveAway:
		if c.Max <= 0 {
			return fmt.Errorf("%s: max must be positive", c.Kind)
		}
	case KindRivalryProtection:
		if len(c.Teams) != 2 || c.Teams[0] == c.Teams[1] {
			return fmt.Errorf("%s: exactly two distinct teams required", c.Kind)
		}
	case KindHomeAwayBalance:
		if c.Ratio < 0 || c.Ratio > 1 || c.Tolerance < 0 {
			return fmt.Errorf("%s: ratio must be in [0,1] and tolerance non-negative", c.Kind)
		}
	case KindTVWindowSet:
		if len(c.Windows) == 0 {
			return fmt.Errorf("%s: at least one window required", c.Kind)
		}
	case KindTravelFeasibility:
		if c.TravelSpeedKmh <= 0 && c.MaxDistanceKm <= 0 {
			return fmt.Errorf("%s: travelSpeedKmh or maxDistanceKm required", c.Kind)
		}
	case KindByeWeekRequired, KindVenueDoubleBooking, KindTeamDoubleBooking:
	default:
		return fmt.Errorf("unknown constraint kind %q", c.Kind)
	}
	return nil
}
