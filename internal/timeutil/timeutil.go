package timeutil

import (
	"fmt"
	"time"
)

// DateLayout defines the canonical date format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ClockLayout defines the canonical time-of-day format (HH:MM, 24h).
const ClockLayout = "15:04"

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// FormatDate formats a time as YYYY-MM-DD in its current location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidDate reports whether value is a well-formed YYYY-MM-DD date.
func ValidDate(value string) bool {
	_, err := ParseDate(value)
	return err == nil
}

// ParseClock parses an HH:MM time of day and returns the offset from midnight.
func ParseClock(value string) (time.Duration, error) {
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// AddDays shifts a YYYY-MM-DD date by n days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// WeekStart returns the Monday starting the week that contains date.
func WeekStart(date time.Time) time.Time {
	offset := (int(date.Weekday()) + 6) % 7
	return date.AddDate(0, 0, -offset)
}

// Days lists every date from from to to inclusive. It returns nil when to precedes from.
func Days(from, to string) ([]string, error) {
	start, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return nil, err
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, FormatDate(d))
	}
	return out, nil
}

// At combines a date and an optional HH:MM clock into an instant in UTC.
// An empty clock falls back to fallback.
func At(date, clock string, fallback time.Duration) (time.Time, error) {
	day, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	offset := fallback
	if clock != "" {
		offset, err = ParseClock(clock)
		if err != nil {
			return time.Time{}, err
		}
	}
	return day.Add(offset), nil
}
