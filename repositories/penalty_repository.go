package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/duel-system/models"
)

var ErrPenaltySettingsNotFound = errors.New("penalty settings not found for guild")

type PenaltySettingsRepository interface {
	GetByGuild(ctx context.Context, exec SQLExecutor, guildID int64) (*models.PenaltySettings, error)
	Upsert(ctx context.Context, settings *models.PenaltySettings) error
}

type postgresPenaltySettingsRepository struct {
	db *sql.DB
}

func NewPostgresPenaltySettingsRepository(db *sql.DB) PenaltySettingsRepository {
	return &postgresPenaltySettingsRepository{db: db}
}

func (r *postgresPenaltySettingsRepository) GetByGuild(ctx context.Context, exec SQLExecutor, guildID int64) (*models.PenaltySettings, error) {
	if exec == nil {
		exec = r.db
	}
	query := `
		SELECT id, guild_id, free_restarts, tiers,
		       match_category_id, referee_channel_id, description,
		       created_at, updated_at
		FROM penalty_settings
		WHERE guild_id = $1`

	settings := &models.PenaltySettings{}
	var tiersJSON []byte
	err := exec.QueryRowContext(ctx, query, guildID).Scan(
		&settings.ID,
		&settings.GuildID,
		&settings.FreeRestarts,
		&tiersJSON,
		&settings.MatchCategoryID,
		&settings.RefereeChannelID,
		&settings.Description,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPenaltySettingsNotFound
		}
		return nil, fmt.Errorf("failed to scan penalty settings for guild %d: %w", guildID, err)
	}

	// Тиры хранятся как JSONB — порядок сохраняется как записан.
	if err := json.Unmarshal(tiersJSON, &settings.Tiers); err != nil {
		return nil, fmt.Errorf("failed to decode penalty tiers for guild %d: %w", guildID, err)
	}
	return settings, nil
}

func (r *postgresPenaltySettingsRepository) Upsert(ctx context.Context, settings *models.PenaltySettings) error {
	tiersJSON, err := json.Marshal(settings.Tiers)
	if err != nil {
		return fmt.Errorf("failed to encode penalty tiers: %w", err)
	}

	query := `
		INSERT INTO penalty_settings
			(guild_id, free_restarts, tiers, match_category_id, referee_channel_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (guild_id) DO UPDATE
		SET free_restarts = EXCLUDED.free_restarts,
		    tiers = EXCLUDED.tiers,
		    match_category_id = EXCLUDED.match_category_id,
		    referee_channel_id = EXCLUDED.referee_channel_id,
		    description = EXCLUDED.description,
		    updated_at = now()
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		settings.GuildID,
		settings.FreeRestarts,
		tiersJSON,
		settings.MatchCategoryID,
		settings.RefereeChannelID,
		settings.Description,
	).Scan(&settings.ID, &settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert penalty settings for guild %d: %w", settings.GuildID, err)
	}
	return nil
}
