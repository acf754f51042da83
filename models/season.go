package models

import "time"

// Season — окно времени, в рамках которого ведётся рейтинг.
// Ровно один сезон активен в любой момент.
type Season struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	IsActive bool `json:"is_active"`
	IsEnding bool `json:"is_ending"`

	SeasonEndWarningSent     bool `json:"season_end_warning_sent"`
	NewMatchesBlocked        bool `json:"new_matches_blocked"`
	RatingCalculationLocked  bool `json:"rating_calculation_locked"`

	// Glicko-2 defaults for lazily created rating rows.
	Tau               float64 `json:"tau"`
	InitialRating     float64 `json:"initial_rating"`
	InitialRD         float64 `json:"initial_rd"`
	InitialVolatility float64 `json:"initial_volatility"`

	LastDecayAt *time.Time `json:"last_decay_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// EndingSoon reports whether now falls inside the pre-end warning window.
func (s *Season) EndingSoon(now time.Time, warningWindow time.Duration) bool {
	return s.IsActive && now.Before(s.EndDate) && !now.Before(s.EndDate.Add(-warningWindow))
}

// Ended reports whether the season's end timestamp has passed.
func (s *Season) Ended(now time.Time) bool {
	return !now.Before(s.EndDate)
}

// AllowsNewMatches — инактивные, завершающиеся-с-блокировкой и явно
// заблокированные сезоны отклоняют создание новых матчей.
func (s *Season) AllowsNewMatches() bool {
	if !s.IsActive {
		return false
	}
	return !s.NewMatchesBlocked
}

// AllowsRatingWrites reports whether the rating engine may write updates.
func (s *Season) AllowsRatingWrites() bool {
	return s.IsActive && !s.RatingCalculationLocked
}
