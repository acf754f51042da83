package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/duel-system/models"
)

// MatchStateRepository — append-only журнал переходов.
// Удаления и изменения записей нет намеренно: это канонический аудит.
type MatchStateRepository interface {
	Append(ctx context.Context, exec SQLExecutor, state *models.MatchState) error
	ListByMatch(ctx context.Context, matchID int) ([]*models.MatchState, error)
}

type postgresMatchStateRepository struct {
	db *sql.DB
}

func NewPostgresMatchStateRepository(db *sql.DB) MatchStateRepository {
	return &postgresMatchStateRepository{db: db}
}

func (r *postgresMatchStateRepository) Append(ctx context.Context, exec SQLExecutor, state *models.MatchState) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO match_states (match_id, stage, payload, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		state.MatchID,
		state.Stage,
		state.Payload,
		state.Notes,
	).Scan(&state.ID, &state.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append match state for match %d: %w", state.MatchID, err)
	}
	return nil
}

func (r *postgresMatchStateRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.MatchState, error) {
	query := `
		SELECT id, match_id, stage, payload, notes, created_at
		FROM match_states
		WHERE match_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match states for match %d: %w", matchID, err)
	}
	defer rows.Close()

	states := make([]*models.MatchState, 0)
	for rows.Next() {
		state := &models.MatchState{}
		if scanErr := rows.Scan(
			&state.ID,
			&state.MatchID,
			&state.Stage,
			&state.Payload,
			&state.Notes,
			&state.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match state row: %w", scanErr)
		}
		states = append(states, state)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match state rows iteration: %w", err)
	}
	return states, nil
}
