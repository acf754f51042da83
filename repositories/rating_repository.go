package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/duel-system/models"
)

var (
	ErrRatingNotFound = errors.New("rating not found")
	ErrRatingConflict = errors.New("rating row already exists for this player and season")
)

const ratingColumns = `
	id, player_id, season_id, rating, rd, volatility,
	games_played, wins, losses, draws, rating_change, created_at, updated_at`

type RatingRepository interface {
	Create(ctx context.Context, exec SQLExecutor, rating *models.Rating) error
	Get(ctx context.Context, playerID, seasonID int) (*models.Rating, error)
	// GetForUpdate locks the (player, season) row inside the surrounding
	// transaction. Callers must acquire rows in ascending player-id order.
	GetForUpdate(ctx context.Context, exec SQLExecutor, playerID, seasonID int) (*models.Rating, error)
	Update(ctx context.Context, exec SQLExecutor, rating *models.Rating) error
	ListBySeason(ctx context.Context, seasonID int, limit, offset int) ([]*models.Rating, error)
	// ListForDecay locks and returns the season's rows untouched since the
	// cutoff, in ascending player-id order.
	ListForDecay(ctx context.Context, exec SQLExecutor, seasonID int, updatedBefore time.Time) ([]*models.Rating, error)
}

type postgresRatingRepository struct {
	db *sql.DB
}

func NewPostgresRatingRepository(db *sql.DB) RatingRepository {
	return &postgresRatingRepository{db: db}
}

func (r *postgresRatingRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresRatingRepository) Create(ctx context.Context, exec SQLExecutor, rating *models.Rating) error {
	query := `
		INSERT INTO ratings
			(player_id, season_id, rating, rd, volatility,
			 games_played, wins, losses, draws, rating_change)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.exec(exec).QueryRowContext(ctx, query,
		rating.PlayerID,
		rating.SeasonID,
		rating.Rating,
		rating.RD,
		rating.Volatility,
		rating.GamesPlayed,
		rating.Wins,
		rating.Losses,
		rating.Draws,
		rating.RatingChange,
	).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRatingConflict
		}
		return fmt.Errorf("failed to insert rating for player %d season %d: %w", rating.PlayerID, rating.SeasonID, err)
	}
	return nil
}

func (r *postgresRatingRepository) Get(ctx context.Context, playerID, seasonID int) (*models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE player_id = $1 AND season_id = $2`
	return scanRating(r.db.QueryRowContext(ctx, query, playerID, seasonID))
}

func (r *postgresRatingRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, playerID, seasonID int) (*models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE player_id = $1 AND season_id = $2 FOR UPDATE`
	return scanRating(r.exec(exec).QueryRowContext(ctx, query, playerID, seasonID))
}

func scanRating(row *sql.Row) (*models.Rating, error) {
	rating := &models.Rating{}
	err := row.Scan(
		&rating.ID,
		&rating.PlayerID,
		&rating.SeasonID,
		&rating.Rating,
		&rating.RD,
		&rating.Volatility,
		&rating.GamesPlayed,
		&rating.Wins,
		&rating.Losses,
		&rating.Draws,
		&rating.RatingChange,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to scan rating: %w", err)
	}
	return rating, nil
}

func (r *postgresRatingRepository) Update(ctx context.Context, exec SQLExecutor, rating *models.Rating) error {
	query := `
		UPDATE ratings
		SET rating = $1, rd = $2, volatility = $3,
		    games_played = $4, wins = $5, losses = $6, draws = $7,
		    rating_change = $8, updated_at = now()
		WHERE id = $9`

	result, err := r.exec(exec).ExecContext(ctx, query,
		rating.Rating,
		rating.RD,
		rating.Volatility,
		rating.GamesPlayed,
		rating.Wins,
		rating.Losses,
		rating.Draws,
		rating.RatingChange,
		rating.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rating %d: %w", rating.ID, err)
	}
	return checkAffectedRows(result, ErrRatingNotFound)
}

func (r *postgresRatingRepository) ListBySeason(ctx context.Context, seasonID int, limit, offset int) ([]*models.Rating, error) {
	query := `
		SELECT r.id, r.player_id, r.season_id, r.rating, r.rd, r.volatility,
		       r.games_played, r.wins, r.losses, r.draws, r.rating_change,
		       r.created_at, r.updated_at,
		       p.id, p.external_id, p.username, p.display_name, p.is_active, p.created_at, p.updated_at
		FROM ratings r
		JOIN players p ON p.id = r.player_id
		WHERE r.season_id = $1
		ORDER BY r.rating DESC, r.id ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, seasonID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings for season %d: %w", seasonID, err)
	}
	defer rows.Close()

	ratings := make([]*models.Rating, 0)
	for rows.Next() {
		rating := &models.Rating{Player: &models.Player{}}
		if scanErr := rows.Scan(
			&rating.ID,
			&rating.PlayerID,
			&rating.SeasonID,
			&rating.Rating,
			&rating.RD,
			&rating.Volatility,
			&rating.GamesPlayed,
			&rating.Wins,
			&rating.Losses,
			&rating.Draws,
			&rating.RatingChange,
			&rating.CreatedAt,
			&rating.UpdatedAt,
			&rating.Player.ID,
			&rating.Player.ExternalID,
			&rating.Player.Username,
			&rating.Player.DisplayName,
			&rating.Player.IsActive,
			&rating.Player.CreatedAt,
			&rating.Player.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", scanErr)
		}
		ratings = append(ratings, rating)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rating rows iteration: %w", err)
	}
	return ratings, nil
}

func (r *postgresRatingRepository) ListForDecay(ctx context.Context, exec SQLExecutor, seasonID int, updatedBefore time.Time) ([]*models.Rating, error) {
	query := `
		SELECT ` + ratingColumns + `
		FROM ratings
		WHERE season_id = $1 AND updated_at < $2
		ORDER BY player_id ASC
		FOR UPDATE`

	rows, err := r.exec(exec).QueryContext(ctx, query, seasonID, updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to query decay candidates for season %d: %w", seasonID, err)
	}
	defer rows.Close()

	ratings := make([]*models.Rating, 0)
	for rows.Next() {
		rating := &models.Rating{}
		if scanErr := rows.Scan(
			&rating.ID,
			&rating.PlayerID,
			&rating.SeasonID,
			&rating.Rating,
			&rating.RD,
			&rating.Volatility,
			&rating.GamesPlayed,
			&rating.Wins,
			&rating.Losses,
			&rating.Draws,
			&rating.RatingChange,
			&rating.CreatedAt,
			&rating.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan decay candidate row: %w", scanErr)
		}
		ratings = append(ratings, rating)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during decay candidate rows iteration: %w", err)
	}
	return ratings, nil
}
