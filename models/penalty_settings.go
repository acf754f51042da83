package models

import (
	"errors"
	"time"
)

var (
	ErrPenaltyTiersEmpty       = errors.New("at least one penalty tier is required")
	ErrPenaltyTiersNotSorted   = errors.New("penalty tiers must be strictly increasing in restart threshold")
	ErrPenaltyTiersNotMonotone = errors.New("penalty seconds must be non-decreasing across tiers")
	ErrPenaltyTierInvalid      = errors.New("penalty tier threshold and seconds must be non-negative")
	ErrFreeRestartsNegative    = errors.New("free restart allowance must be non-negative")
)

// PenaltyTier maps a restart-count threshold to a penalty in seconds.
// The highest tier commonly encodes an effectively-disqualifying penalty.
type PenaltyTier struct {
	Threshold      int     `json:"threshold"`
	PenaltySeconds float64 `json:"penalty_seconds"`
}

// PenaltySettings — настройки штрафов за рестарты для гильдии.
type PenaltySettings struct {
	ID      int   `json:"id"`
	GuildID int64 `json:"guild_id"`

	FreeRestarts int           `json:"free_restarts"`
	Tiers        []PenaltyTier `json:"tiers"`

	// Channel/category references used by collaborators, not by the core.
	MatchCategoryID  *int64 `json:"match_category_id,omitempty"`
	RefereeChannelID *int64 `json:"referee_channel_id,omitempty"`

	Description *string `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет инварианты тиров: строго возрастающие пороги,
// неубывающие штрафы, неотрицательные значения.
func (p *PenaltySettings) Validate() error {
	if p.FreeRestarts < 0 {
		return ErrFreeRestartsNegative
	}
	if len(p.Tiers) == 0 {
		return ErrPenaltyTiersEmpty
	}
	prevThreshold := -1
	prevPenalty := -1.0
	for _, t := range p.Tiers {
		if t.Threshold < 0 || t.PenaltySeconds < 0 {
			return ErrPenaltyTierInvalid
		}
		if t.Threshold <= prevThreshold {
			return ErrPenaltyTiersNotSorted
		}
		if t.PenaltySeconds < prevPenalty {
			return ErrPenaltyTiersNotMonotone
		}
		prevThreshold = t.Threshold
		prevPenalty = t.PenaltySeconds
	}
	return nil
}

// Penalty возвращает штраф в секундах за данное число рестартов.
// Ноль в пределах бесплатного лимита; иначе значение наименьшего тира,
// чей порог >= n; выше последнего порога действует последний тир.
func (p *PenaltySettings) Penalty(restarts int) float64 {
	if restarts <= p.FreeRestarts || len(p.Tiers) == 0 {
		return 0
	}
	for _, t := range p.Tiers {
		if restarts <= t.Threshold {
			return t.PenaltySeconds
		}
	}
	return p.Tiers[len(p.Tiers)-1].PenaltySeconds
}

// FinalTime = raw time + penalty(restarts). Pure and re-derivable at audit
// time from the stored raw time, restart count and settings.
func (p *PenaltySettings) FinalTime(rawSeconds float64, restarts int) float64 {
	return rawSeconds + p.Penalty(restarts)
}
