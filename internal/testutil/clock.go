package testutil

import (
	"sync"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/timeutil"
)

// PreSeason is the instant fixture clocks start from, before the first
// sample game.
var PreSeason = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

// NowAt returns a clock fixed at t.
func NowAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// StepClock returns a clock that starts at t and moves forward by step on
// every call. It is safe for concurrent use.
func StepClock(t time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := t
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}

// MustParseDate parses a schedule date (YYYY-MM-DD) or panics.
func MustParseDate(v string) time.Time {
	t, err := timeutil.ParseDate(v)
	if err != nil {
		panic(err)
	}
	return t
}
