package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/duel-system/events"
	"github.com/Dosada05/duel-system/glicko"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
)

type CreateSeasonInput struct {
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Tau               *float64 `json:"tau,omitempty"`
	InitialRating     *float64 `json:"initial_rating,omitempty"`
	InitialRD         *float64 `json:"initial_rd,omitempty"`
	InitialVolatility *float64 `json:"initial_volatility,omitempty"`
}

type SeasonService interface {
	CreateSeason(ctx context.Context, input CreateSeasonInput) (*models.Season, error)
	GetSeason(ctx context.Context, id int) (*models.Season, error)
	GetActiveSeason(ctx context.Context) (*models.Season, error)
	ListSeasons(ctx context.Context) ([]*models.Season, error)
	SetNewMatchesBlocked(ctx context.Context, seasonID int, blocked bool) (*models.Season, error)
	SetRatingLocked(ctx context.Context, seasonID int, locked bool) (*models.Season, error)
	// AutoUpdateSeasonStatuses продвигает активный сезон по жизненному
	// циклу active → ending → inactive. Вызывается планировщиком.
	AutoUpdateSeasonStatuses(ctx context.Context) error
}

type seasonService struct {
	db         *sql.DB
	seasonRepo repositories.SeasonRepository
	bus        *events.Bus
	logger     *slog.Logger

	warningWindow time.Duration
	now           func() time.Time
}

func NewSeasonService(
	db *sql.DB,
	seasonRepo repositories.SeasonRepository,
	bus *events.Bus,
	logger *slog.Logger,
	warningWindow time.Duration,
	now func() time.Time,
) SeasonService {
	if now == nil {
		now = time.Now
	}
	return &seasonService{
		db:            db,
		seasonRepo:    seasonRepo,
		bus:           bus,
		logger:        logger,
		warningWindow: warningWindow,
		now:           now,
	}
}

func (s *seasonService) CreateSeason(ctx context.Context, input CreateSeasonInput) (*models.Season, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: season name is required", ErrValidationFailed)
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, fmt.Errorf("%w: season end date must be after start date", ErrValidationFailed)
	}

	// Ровно один активный сезон: новый создаётся только после завершения
	// предыдущего.
	if _, err := s.seasonRepo.GetActive(ctx, nil); err == nil {
		return nil, fmt.Errorf("%w: another season is still active", ErrValidationFailed)
	} else if !errors.Is(err, repositories.ErrSeasonNotFound) {
		return nil, err
	}

	season := &models.Season{
		Name:              input.Name,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		IsActive:          true,
		Tau:               glicko.DefaultTau,
		InitialRating:     glicko.DefaultRating,
		InitialRD:         glicko.DefaultRD,
		InitialVolatility: glicko.DefaultVolatility,
	}
	if input.Tau != nil {
		season.Tau = *input.Tau
	}
	if input.InitialRating != nil {
		season.InitialRating = *input.InitialRating
	}
	if input.InitialRD != nil {
		season.InitialRD = *input.InitialRD
	}
	if input.InitialVolatility != nil {
		season.InitialVolatility = *input.InitialVolatility
	}

	if err := s.seasonRepo.Create(ctx, season); err != nil {
		return nil, err
	}
	s.logger.Info("season created",
		slog.Int("season_id", season.ID),
		slog.String("name", season.Name))
	return season, nil
}

func (s *seasonService) GetSeason(ctx context.Context, id int) (*models.Season, error) {
	season, err := s.seasonRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}
	return season, nil
}

func (s *seasonService) GetActiveSeason(ctx context.Context) (*models.Season, error) {
	season, err := s.seasonRepo.GetActive(ctx, nil)
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrNoActiveSeason
		}
		return nil, err
	}
	return season, nil
}

func (s *seasonService) ListSeasons(ctx context.Context) ([]*models.Season, error) {
	return s.seasonRepo.List(ctx)
}

func (s *seasonService) SetNewMatchesBlocked(ctx context.Context, seasonID int, blocked bool) (*models.Season, error) {
	return s.updateFlags(ctx, seasonID, func(season *models.Season) error {
		season.NewMatchesBlocked = blocked
		return nil
	})
}

func (s *seasonService) SetRatingLocked(ctx context.Context, seasonID int, locked bool) (*models.Season, error) {
	return s.updateFlags(ctx, seasonID, func(season *models.Season) error {
		season.RatingCalculationLocked = locked
		return nil
	})
}

func (s *seasonService) updateFlags(ctx context.Context, seasonID int, mutate func(*models.Season) error) (*models.Season, error) {
	var season *models.Season
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		season, err = s.seasonRepo.GetByIDForUpdate(ctx, tx, seasonID)
		if err != nil {
			if errors.Is(err, repositories.ErrSeasonNotFound) {
				return ErrSeasonNotFound
			}
			return err
		}
		// Неактивный сезон неизменяем.
		if !season.IsActive {
			return fmt.Errorf("%w: season is inactive", ErrValidationFailed)
		}
		if err := mutate(season); err != nil {
			return err
		}
		return s.seasonRepo.UpdateFlags(ctx, tx, season)
	})
	if err != nil {
		return nil, err
	}
	return season, nil
}

func (s *seasonService) AutoUpdateSeasonStatuses(ctx context.Context) error {
	now := s.now()

	var ending, ended *models.Season
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		season, err := s.seasonRepo.GetActive(ctx, tx)
		if err != nil {
			if errors.Is(err, repositories.ErrSeasonNotFound) {
				return nil // нет активного сезона — нечего делать
			}
			return err
		}
		// Блокируем строку на время перехода: переходы сезона глобально
		// сериализуются.
		season, err = s.seasonRepo.GetByIDForUpdate(ctx, tx, season.ID)
		if err != nil {
			return err
		}

		switch {
		case season.Ended(now):
			season.IsActive = false
			season.IsEnding = false
			// На границе сезона принудительно блокируются и матчи, и рейтинг.
			season.NewMatchesBlocked = true
			season.RatingCalculationLocked = true
			ended = season
			return s.seasonRepo.UpdateFlags(ctx, tx, season)

		case season.EndingSoon(now, s.warningWindow) && !season.IsEnding:
			season.IsEnding = true
			season.NewMatchesBlocked = true
			if !season.SeasonEndWarningSent {
				season.SeasonEndWarningSent = true
				ending = season
			}
			return s.seasonRepo.UpdateFlags(ctx, tx, season)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update season statuses: %w", err)
	}

	if ending != nil {
		s.logger.Info("season entering ending window",
			slog.Int("season_id", ending.ID),
			slog.Time("end_date", ending.EndDate))
		s.bus.Publish(events.New(events.TypeSeasonEnding, events.SeasonPayload{
			SeasonID: ending.ID,
			Name:     ending.Name,
			EndDate:  ending.EndDate,
		}))
	}
	if ended != nil {
		s.logger.Info("season ended",
			slog.Int("season_id", ended.ID))
		s.bus.Publish(events.New(events.TypeSeasonEnded, events.SeasonPayload{
			SeasonID: ended.ID,
			Name:     ended.Name,
			EndDate:  ended.EndDate,
		}))
	}
	return nil
}
