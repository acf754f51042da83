package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/duel-system/models"
)

var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrPlayerIDConflict = errors.New("player external id already registered")
)

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.Player) error
	GetByID(ctx context.Context, id int) (*models.Player, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Player, error)
	UpdateNames(ctx context.Context, id int, username string, displayName *string) error
	SetActive(ctx context.Context, id int, active bool) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO players (external_id, username, display_name, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := exec.QueryRowContext(ctx, query,
		player.ExternalID,
		player.Username,
		player.DisplayName,
		player.IsActive,
	).Scan(&player.ID, &player.CreatedAt, &player.UpdatedAt)

	if isUniqueViolation(err) {
		return ErrPlayerIDConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *postgresPlayerRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Player, error) {
	return r.getOne(ctx, `WHERE external_id = $1`, externalID)
}

func (r *postgresPlayerRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Player, error) {
	query := `
		SELECT id, external_id, username, display_name, is_active, created_at, updated_at
		FROM players ` + where

	player := &models.Player{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&player.ID,
		&player.ExternalID,
		&player.Username,
		&player.DisplayName,
		&player.IsActive,
		&player.CreatedAt,
		&player.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}
	return player, nil
}

func (r *postgresPlayerRepository) UpdateNames(ctx context.Context, id int, username string, displayName *string) error {
	query := `UPDATE players SET username = $1, display_name = $2, updated_at = now() WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, username, displayName, id)
	if err != nil {
		return fmt.Errorf("failed to update player %d names: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) SetActive(ctx context.Context, id int, active bool) error {
	query := `UPDATE players SET is_active = $1, updated_at = now() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to update player %d active flag: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}
