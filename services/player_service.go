package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
)

type PlayerService interface {
	// GetOrCreate возвращает игрока по внешнему идентификатору,
	// регистрируя его при первом обращении.
	GetOrCreate(ctx context.Context, externalID, username string, displayName *string) (*models.Player, error)
	GetByID(ctx context.Context, id int) (*models.Player, error)
	SetActive(ctx context.Context, id int, active bool) error
}

type playerService struct {
	playerRepo repositories.PlayerRepository
	logger     *slog.Logger
}

func NewPlayerService(playerRepo repositories.PlayerRepository, logger *slog.Logger) PlayerService {
	return &playerService{playerRepo: playerRepo, logger: logger}
}

func (s *playerService) GetOrCreate(ctx context.Context, externalID, username string, displayName *string) (*models.Player, error) {
	externalID = strings.TrimSpace(externalID)
	username = strings.TrimSpace(username)
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id is required", ErrValidationFailed)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidationFailed)
	}

	player, err := s.playerRepo.GetByExternalID(ctx, externalID)
	if err == nil {
		// Освежаем имена, если они изменились на стороне сообщества.
		if player.Username != username || !equalNames(player.DisplayName, displayName) {
			if err := s.playerRepo.UpdateNames(ctx, player.ID, username, displayName); err != nil {
				return nil, err
			}
			player.Username = username
			player.DisplayName = displayName
		}
		return player, nil
	}
	if !errors.Is(err, repositories.ErrPlayerNotFound) {
		return nil, err
	}

	player = &models.Player{
		ExternalID:  externalID,
		Username:    username,
		DisplayName: displayName,
		IsActive:    true,
	}
	err = s.playerRepo.Create(ctx, nil, player)
	if errors.Is(err, repositories.ErrPlayerIDConflict) {
		// Гонка регистрации: кто-то успел раньше, перечитываем.
		return s.playerRepo.GetByExternalID(ctx, externalID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("player registered",
		slog.Int("player_id", player.ID),
		slog.String("external_id", externalID))
	return player, nil
}

func (s *playerService) GetByID(ctx context.Context, id int) (*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return player, nil
}

func (s *playerService) SetActive(ctx context.Context, id int, active bool) error {
	err := s.playerRepo.SetActive(ctx, id, active)
	if errors.Is(err, repositories.ErrPlayerNotFound) {
		return ErrPlayerNotFound
	}
	return err
}

func equalNames(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
