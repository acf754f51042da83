package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
)

type PenaltyService interface {
	// GetSettings возвращает настройки гильдии или настройки по умолчанию,
	// если гильдия их не задавала.
	GetSettings(ctx context.Context, guildID int64) (*models.PenaltySettings, error)
	SaveSettings(ctx context.Context, settings *models.PenaltySettings) error
	// Preview рассчитывает штраф и итоговое время без записи результата.
	Preview(ctx context.Context, guildID int64, rawSeconds float64, restarts int) (penalty, finalTime float64, err error)
}

type penaltyService struct {
	penaltyRepo repositories.PenaltySettingsRepository
	logger      *slog.Logger
}

func NewPenaltyService(penaltyRepo repositories.PenaltySettingsRepository, logger *slog.Logger) PenaltyService {
	return &penaltyService{penaltyRepo: penaltyRepo, logger: logger}
}

func (s *penaltyService) GetSettings(ctx context.Context, guildID int64) (*models.PenaltySettings, error) {
	settings, err := s.penaltyRepo.GetByGuild(ctx, nil, guildID)
	if err != nil {
		if errors.Is(err, repositories.ErrPenaltySettingsNotFound) {
			fallback := fallbackPenaltySettings
			fallback.GuildID = guildID
			return &fallback, nil
		}
		return nil, err
	}
	return settings, nil
}

func (s *penaltyService) SaveSettings(ctx context.Context, settings *models.PenaltySettings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if err := s.penaltyRepo.Upsert(ctx, settings); err != nil {
		return err
	}
	s.logger.Info("penalty settings saved",
		slog.Int64("guild_id", settings.GuildID),
		slog.Int("free_restarts", settings.FreeRestarts),
		slog.Int("tiers", len(settings.Tiers)))
	return nil
}

func (s *penaltyService) Preview(ctx context.Context, guildID int64, rawSeconds float64, restarts int) (float64, float64, error) {
	if rawSeconds < 0 {
		return 0, 0, ErrNegativeTime
	}
	if restarts < 0 {
		return 0, 0, ErrNegativeRestarts
	}
	settings, err := s.GetSettings(ctx, guildID)
	if err != nil {
		return 0, 0, err
	}
	return settings.Penalty(restarts), settings.FinalTime(rawSeconds, restarts), nil
}
