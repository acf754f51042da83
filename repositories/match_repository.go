package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/duel-system/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchPlayerInvalid     = errors.New("match player reference conflict or invalid")
	ErrMatchSeasonInvalid     = errors.New("match season reference conflict or invalid")
)

const matchColumns = `
	id, season_id, guild_id, channel_id, thread_id, voice_channel_id,
	player1_id, player2_id, format, status, current_stage, current_game,
	draft_link, first_player_id, referee_id,
	winner_id, annul_reason, rating_applied, created_at, updated_at`

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetByIDForUpdate locks the match row inside the surrounding
	// transaction; every stage-advancing operation reads through this.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
	// CountActiveByPlayer counts non-terminal matches the player is in.
	CountActiveByPlayer(ctx context.Context, exec SQLExecutor, playerID int) (int, error)
	ListActive(ctx context.Context, seasonID int) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches
			(season_id, guild_id, channel_id, thread_id, voice_channel_id,
			 player1_id, player2_id, format, status, current_stage, current_game)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.exec(exec).QueryRowContext(ctx, query,
		match.SeasonID,
		match.GuildID,
		match.ChannelID,
		match.ThreadID,
		match.VoiceChannelID,
		match.Player1ID,
		match.Player2ID,
		match.Format,
		match.Status,
		match.CurrentStage,
		match.CurrentGame,
	).Scan(&match.ID, &match.CreatedAt, &match.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMatchPlayerInvalid
		}
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`
	return scanMatch(r.exec(exec).QueryRowContext(ctx, query, id))
}

func scanMatch(row *sql.Row) (*models.Match, error) {
	match := &models.Match{}
	err := row.Scan(
		&match.ID,
		&match.SeasonID,
		&match.GuildID,
		&match.ChannelID,
		&match.ThreadID,
		&match.VoiceChannelID,
		&match.Player1ID,
		&match.Player2ID,
		&match.Format,
		&match.Status,
		&match.CurrentStage,
		&match.CurrentGame,
		&match.DraftLink,
		&match.FirstPlayerID,
		&match.RefereeID,
		&match.WinnerID,
		&match.AnnulReason,
		&match.RatingApplied,
		&match.CreatedAt,
		&match.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return match, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		UPDATE matches
		SET status = $1, current_stage = $2, current_game = $3,
		    draft_link = $4, first_player_id = $5, referee_id = $6,
		    winner_id = $7, annul_reason = $8, rating_applied = $9,
		    thread_id = $10, voice_channel_id = $11, updated_at = now()
		WHERE id = $12`

	result, err := r.exec(exec).ExecContext(ctx, query,
		match.Status,
		match.CurrentStage,
		match.CurrentGame,
		match.DraftLink,
		match.FirstPlayerID,
		match.RefereeID,
		match.WinnerID,
		match.AnnulReason,
		match.RatingApplied,
		match.ThreadID,
		match.VoiceChannelID,
		match.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMatchPlayerInvalid
		}
		return fmt.Errorf("failed to update match %d: %w", match.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountActiveByPlayer(ctx context.Context, exec SQLExecutor, playerID int) (int, error) {
	query := `
		SELECT count(*) FROM matches
		WHERE (player1_id = $1 OR player2_id = $1)
		  AND status IN ($2, $3)`

	var count int
	err := r.exec(exec).QueryRowContext(ctx, query, playerID, models.MatchStatusWaiting, models.MatchStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active matches for player %d: %w", playerID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) ListActive(ctx context.Context, seasonID int) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE season_id = $1 AND status IN ($2, $3)
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, seasonID, models.MatchStatusWaiting, models.MatchStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active matches for season %d: %w", seasonID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match := &models.Match{}
		if scanErr := rows.Scan(
			&match.ID,
			&match.SeasonID,
			&match.GuildID,
			&match.ChannelID,
			&match.ThreadID,
			&match.VoiceChannelID,
			&match.Player1ID,
			&match.Player2ID,
			&match.Format,
			&match.Status,
			&match.CurrentStage,
			&match.CurrentGame,
			&match.DraftLink,
			&match.FirstPlayerID,
			&match.RefereeID,
			&match.WinnerID,
			&match.AnnulReason,
			&match.RatingApplied,
			&match.CreatedAt,
			&match.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}
