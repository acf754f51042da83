package models

import (
	"testing"
	"time"
)

func testSeason() *Season {
	return &Season{
		Name:      "Season 1",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func TestSeasonEndingSoon(t *testing.T) {
	s := testSeason()
	window := 7 * 24 * time.Hour

	early := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if s.EndingSoon(early, window) {
		t.Fatal("a month before the end is not inside the warning window")
	}

	inside := time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)
	if !s.EndingSoon(inside, window) {
		t.Fatal("four days before the end is inside the warning window")
	}

	after := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !s.Ended(after) {
		t.Fatal("season past its end date must report ended")
	}
	if s.Ended(inside) {
		t.Fatal("season before its end date must not report ended")
	}
}

func TestSeasonGates(t *testing.T) {
	s := testSeason()
	if !s.AllowsNewMatches() {
		t.Fatal("active season must allow new matches")
	}
	if !s.AllowsRatingWrites() {
		t.Fatal("active season must allow rating writes")
	}

	s.NewMatchesBlocked = true
	if s.AllowsNewMatches() {
		t.Fatal("blocked season must reject new matches")
	}
	if !s.AllowsRatingWrites() {
		t.Fatal("blocking matches must not block in-flight rating writes")
	}

	s.RatingCalculationLocked = true
	if s.AllowsRatingWrites() {
		t.Fatal("rating-locked season must reject rating writes")
	}

	inactive := testSeason()
	inactive.IsActive = false
	if inactive.AllowsNewMatches() || inactive.AllowsRatingWrites() {
		t.Fatal("inactive season must reject all writes")
	}
}
