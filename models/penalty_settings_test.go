package models

import (
	"errors"
	"testing"
)

func tieredSettings() *PenaltySettings {
	return &PenaltySettings{
		GuildID:      1,
		FreeRestarts: 2,
		Tiers: []PenaltyTier{
			{Threshold: 3, PenaltySeconds: 5},
			{Threshold: 5, PenaltySeconds: 15},
			{Threshold: 7, PenaltySeconds: 60},
		},
	}
}

func TestPenaltyFreeAllowance(t *testing.T) {
	s := tieredSettings()
	for restarts := 0; restarts <= 2; restarts++ {
		if got := s.Penalty(restarts); got != 0 {
			t.Fatalf("restarts=%d: expected zero penalty, got %v", restarts, got)
		}
	}
}

func TestPenaltyTierLookup(t *testing.T) {
	s := tieredSettings()
	tests := []struct {
		restarts int
		want     float64
	}{
		{3, 5},
		{4, 15},
		{5, 15},
		{6, 60},
		{7, 60},
		{8, 60},  // выше последнего порога действует последний тир
		{50, 60},
	}
	for _, tt := range tests {
		if got := s.Penalty(tt.restarts); got != tt.want {
			t.Fatalf("restarts=%d: expected %v, got %v", tt.restarts, tt.want, got)
		}
	}
}

func TestPenaltyMonotonic(t *testing.T) {
	s := tieredSettings()
	prev := 0.0
	for restarts := 0; restarts <= 20; restarts++ {
		got := s.Penalty(restarts)
		if got < prev {
			t.Fatalf("penalty decreased at restarts=%d: %v < %v", restarts, got, prev)
		}
		prev = got
	}
}

// Сценарий: у A чистое время хуже, но B перебрал рестартов и проиграл
// по итоговому времени.
func TestFinalTimePenaltyFlipsOutcome(t *testing.T) {
	s := &PenaltySettings{
		FreeRestarts: 2,
		Tiers:        []PenaltyTier{{Threshold: 3, PenaltySeconds: 5}},
	}

	timeA := s.FinalTime(120, 1)
	timeB := s.FinalTime(118, 3)
	if timeA != 120 {
		t.Fatalf("expected A final time 120, got %v", timeA)
	}
	if timeB != 123 {
		t.Fatalf("expected B final time 123, got %v", timeB)
	}
	if timeA >= timeB {
		t.Fatalf("expected A to win: %v vs %v", timeA, timeB)
	}
}

func TestValidateRejectsBadTiers(t *testing.T) {
	tests := []struct {
		name     string
		settings PenaltySettings
		want     error
	}{
		{
			name:     "no tiers",
			settings: PenaltySettings{FreeRestarts: 0},
			want:     ErrPenaltyTiersEmpty,
		},
		{
			name: "negative free allowance",
			settings: PenaltySettings{
				FreeRestarts: -1,
				Tiers:        []PenaltyTier{{Threshold: 1, PenaltySeconds: 10}},
			},
			want: ErrFreeRestartsNegative,
		},
		{
			name: "unsorted thresholds",
			settings: PenaltySettings{
				Tiers: []PenaltyTier{
					{Threshold: 5, PenaltySeconds: 10},
					{Threshold: 3, PenaltySeconds: 20},
				},
			},
			want: ErrPenaltyTiersNotSorted,
		},
		{
			name: "duplicate thresholds",
			settings: PenaltySettings{
				Tiers: []PenaltyTier{
					{Threshold: 3, PenaltySeconds: 10},
					{Threshold: 3, PenaltySeconds: 20},
				},
			},
			want: ErrPenaltyTiersNotSorted,
		},
		{
			name: "decreasing penalty across tiers",
			settings: PenaltySettings{
				Tiers: []PenaltyTier{
					{Threshold: 3, PenaltySeconds: 500},
					{Threshold: 5, PenaltySeconds: 100},
				},
			},
			want: ErrPenaltyTiersNotMonotone,
		},
		{
			name: "negative penalty",
			settings: PenaltySettings{
				Tiers: []PenaltyTier{{Threshold: 1, PenaltySeconds: -5}},
			},
			want: ErrPenaltyTierInvalid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.settings.Validate(); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateAcceptsSortedTiers(t *testing.T) {
	if err := tieredSettings().Validate(); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}
}
