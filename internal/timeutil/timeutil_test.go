package timeutil

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	parsed, err := ParseDate("2024-01-02")
	if err != nil {
		t.Fatalf("expected parse to succeed, got %v", err)
	}
	if got := FormatDate(parsed); got != "2024-01-02" {
		t.Fatalf("expected formatted date to round-trip, got %s", got)
	}
}

func TestFormatDateUsesLocation(t *testing.T) {
	loc := time.FixedZone("test", -5*60*60)
	value := time.Date(2024, 1, 2, 23, 0, 0, 0, loc)
	if got := FormatDate(value); got != "2024-01-02" {
		t.Fatalf("expected formatted date, got %s", got)
	}
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock("19:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 19*time.Hour+30*time.Minute {
		t.Fatalf("expected 19h30m, got %s", got)
	}
	if _, err := ParseClock("7pm"); err == nil {
		t.Fatal("expected error for malformed clock")
	}
}

func TestWeekStartIsMonday(t *testing.T) {
	sat := time.Date(2024, 9, 7, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(WeekStart(sat)); got != "2024-09-02" {
		t.Fatalf("expected 2024-09-02, got %s", got)
	}
	sun := time.Date(2024, 9, 8, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(WeekStart(sun)); got != "2024-09-02" {
		t.Fatalf("expected sunday to belong to the monday week, got %s", got)
	}
}

func TestDaysInclusive(t *testing.T) {
	days, err := Days("2024-02-27", "2024-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}
	if len(days) != len(want) {
		t.Fatalf("expected %v, got %v", want, days)
	}
	for i := range want {
		if days[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, days)
		}
	}
}

func TestAtUsesFallbackWithoutClock(t *testing.T) {
	got, err := At("2024-09-07", "", 12*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != time.Date(2024, 9, 7, 12, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected instant %s", got)
	}
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2024-12-31", 1)
	if err != nil || got != "2025-01-01" {
		t.Fatalf("expected 2025-01-01, got %s (%v)", got, err)
	}
}
