package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/duel-system/models"
)

var (
	ErrGameResultNotFound = errors.New("game result not found")
	ErrGameResultConflict = errors.New("game result already recorded for this game number")
)

const gameResultColumns = `
	id, match_id, game_number,
	player1_time, player1_restarts, player1_penalty, player1_final_time,
	player2_time, player2_restarts, player2_penalty, player2_final_time,
	player1_confirmed, player2_confirmed, referee_confirmed_by,
	notes, created_at, updated_at`

type GameResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, result *models.GameResult) error
	Get(ctx context.Context, exec SQLExecutor, matchID, gameNumber int) (*models.GameResult, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.GameResult, error)
	UpdateConfirmation(ctx context.Context, exec SQLExecutor, result *models.GameResult) error
	// UpdateFinalTimes overwrites the computed times; used only by referee
	// modify_results resolutions, with an audit note.
	UpdateFinalTimes(ctx context.Context, exec SQLExecutor, result *models.GameResult) error
	// Delete removes one game's result so it can be re-reported. Used only
	// by replay_game resolutions; the audit trail survives in match_states.
	Delete(ctx context.Context, exec SQLExecutor, matchID, gameNumber int) error
}

type postgresGameResultRepository struct {
	db *sql.DB
}

func NewPostgresGameResultRepository(db *sql.DB) GameResultRepository {
	return &postgresGameResultRepository{db: db}
}

func (r *postgresGameResultRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresGameResultRepository) Create(ctx context.Context, exec SQLExecutor, result *models.GameResult) error {
	query := `
		INSERT INTO game_results
			(match_id, game_number,
			 player1_time, player1_restarts, player1_penalty, player1_final_time,
			 player2_time, player2_restarts, player2_penalty, player2_final_time,
			 player1_confirmed, player2_confirmed, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err := r.exec(exec).QueryRowContext(ctx, query,
		result.MatchID,
		result.GameNumber,
		result.Player1Time,
		result.Player1Restarts,
		result.Player1Penalty,
		result.Player1FinalTime,
		result.Player2Time,
		result.Player2Restarts,
		result.Player2Penalty,
		result.Player2FinalTime,
		result.Player1Confirmed,
		result.Player2Confirmed,
		result.Notes,
	).Scan(&result.ID, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrGameResultConflict
		}
		return fmt.Errorf("failed to insert game result for match %d game %d: %w", result.MatchID, result.GameNumber, err)
	}
	return nil
}

func (r *postgresGameResultRepository) Get(ctx context.Context, exec SQLExecutor, matchID, gameNumber int) (*models.GameResult, error) {
	query := `SELECT ` + gameResultColumns + ` FROM game_results WHERE match_id = $1 AND game_number = $2`
	return scanGameResult(r.exec(exec).QueryRowContext(ctx, query, matchID, gameNumber))
}

func scanGameResult(row *sql.Row) (*models.GameResult, error) {
	result := &models.GameResult{}
	err := row.Scan(
		&result.ID,
		&result.MatchID,
		&result.GameNumber,
		&result.Player1Time,
		&result.Player1Restarts,
		&result.Player1Penalty,
		&result.Player1FinalTime,
		&result.Player2Time,
		&result.Player2Restarts,
		&result.Player2Penalty,
		&result.Player2FinalTime,
		&result.Player1Confirmed,
		&result.Player2Confirmed,
		&result.RefereeConfirmedBy,
		&result.Notes,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameResultNotFound
		}
		return nil, fmt.Errorf("failed to scan game result: %w", err)
	}
	return result, nil
}

func (r *postgresGameResultRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.GameResult, error) {
	query := `SELECT ` + gameResultColumns + ` FROM game_results WHERE match_id = $1 ORDER BY game_number ASC`

	rows, err := r.exec(exec).QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query game results for match %d: %w", matchID, err)
	}
	defer rows.Close()

	results := make([]*models.GameResult, 0)
	for rows.Next() {
		result := &models.GameResult{}
		if scanErr := rows.Scan(
			&result.ID,
			&result.MatchID,
			&result.GameNumber,
			&result.Player1Time,
			&result.Player1Restarts,
			&result.Player1Penalty,
			&result.Player1FinalTime,
			&result.Player2Time,
			&result.Player2Restarts,
			&result.Player2Penalty,
			&result.Player2FinalTime,
			&result.Player1Confirmed,
			&result.Player2Confirmed,
			&result.RefereeConfirmedBy,
			&result.Notes,
			&result.CreatedAt,
			&result.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan game result row: %w", scanErr)
		}
		results = append(results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during game result rows iteration: %w", err)
	}
	return results, nil
}

func (r *postgresGameResultRepository) UpdateConfirmation(ctx context.Context, exec SQLExecutor, result *models.GameResult) error {
	query := `
		UPDATE game_results
		SET player1_confirmed = $1, player2_confirmed = $2,
		    referee_confirmed_by = $3, updated_at = now()
		WHERE id = $4`

	res, err := r.exec(exec).ExecContext(ctx, query,
		result.Player1Confirmed,
		result.Player2Confirmed,
		result.RefereeConfirmedBy,
		result.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game result %d confirmation: %w", result.ID, err)
	}
	return checkAffectedRows(res, ErrGameResultNotFound)
}

func (r *postgresGameResultRepository) UpdateFinalTimes(ctx context.Context, exec SQLExecutor, result *models.GameResult) error {
	query := `
		UPDATE game_results
		SET player1_penalty = $1, player1_final_time = $2,
		    player2_penalty = $3, player2_final_time = $4,
		    notes = $5, updated_at = now()
		WHERE id = $6`

	res, err := r.exec(exec).ExecContext(ctx, query,
		result.Player1Penalty,
		result.Player1FinalTime,
		result.Player2Penalty,
		result.Player2FinalTime,
		result.Notes,
		result.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game result %d times: %w", result.ID, err)
	}
	return checkAffectedRows(res, ErrGameResultNotFound)
}

func (r *postgresGameResultRepository) Delete(ctx context.Context, exec SQLExecutor, matchID, gameNumber int) error {
	query := `DELETE FROM game_results WHERE match_id = $1 AND game_number = $2`
	res, err := r.exec(exec).ExecContext(ctx, query, matchID, gameNumber)
	if err != nil {
		return fmt.Errorf("failed to delete game result for match %d game %d: %w", matchID, gameNumber, err)
	}
	return checkAffectedRows(res, ErrGameResultNotFound)
}
