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
	ErrSeasonNotFound     = errors.New("season not found")
	ErrSeasonNameConflict = errors.New("season name already exists")
)

const seasonColumns = `
	id, name, start_date, end_date,
	is_active, is_ending,
	season_end_warning_sent, new_matches_blocked, rating_calculation_locked,
	tau, initial_rating, initial_rd, initial_volatility,
	last_decay_at, created_at, updated_at`

type SeasonRepository interface {
	Create(ctx context.Context, season *models.Season) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error)
	// GetByIDForUpdate locks the season row for the duration of the
	// surrounding transaction. Gate checks re-read through this to get
	// read-after-write consistency with season transitions.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error)
	GetActive(ctx context.Context, exec SQLExecutor) (*models.Season, error)
	UpdateFlags(ctx context.Context, exec SQLExecutor, season *models.Season) error
	SetLastDecayAt(ctx context.Context, exec SQLExecutor, id int, at time.Time) error
	List(ctx context.Context) ([]*models.Season, error)
}

type postgresSeasonRepository struct {
	db *sql.DB
}

func NewPostgresSeasonRepository(db *sql.DB) SeasonRepository {
	return &postgresSeasonRepository{db: db}
}

func (r *postgresSeasonRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresSeasonRepository) Create(ctx context.Context, season *models.Season) error {
	query := `
		INSERT INTO seasons
			(name, start_date, end_date, is_active, is_ending,
			 season_end_warning_sent, new_matches_blocked, rating_calculation_locked,
			 tau, initial_rating, initial_rd, initial_volatility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		season.Name,
		season.StartDate,
		season.EndDate,
		season.IsActive,
		season.IsEnding,
		season.SeasonEndWarningSent,
		season.NewMatchesBlocked,
		season.RatingCalculationLocked,
		season.Tau,
		season.InitialRating,
		season.InitialRD,
		season.InitialVolatility,
	).Scan(&season.ID, &season.CreatedAt, &season.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSeasonNameConflict
		}
		return fmt.Errorf("failed to insert season: %w", err)
	}
	return nil
}

func (r *postgresSeasonRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1`
	return r.scanOne(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresSeasonRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresSeasonRepository) GetActive(ctx context.Context, exec SQLExecutor) (*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons WHERE is_active = true ORDER BY start_date DESC LIMIT 1`
	return r.scanOne(r.exec(exec).QueryRowContext(ctx, query))
}

func (r *postgresSeasonRepository) scanOne(row *sql.Row) (*models.Season, error) {
	season := &models.Season{}
	err := row.Scan(
		&season.ID,
		&season.Name,
		&season.StartDate,
		&season.EndDate,
		&season.IsActive,
		&season.IsEnding,
		&season.SeasonEndWarningSent,
		&season.NewMatchesBlocked,
		&season.RatingCalculationLocked,
		&season.Tau,
		&season.InitialRating,
		&season.InitialRD,
		&season.InitialVolatility,
		&season.LastDecayAt,
		&season.CreatedAt,
		&season.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeasonNotFound
		}
		return nil, fmt.Errorf("failed to scan season: %w", err)
	}
	return season, nil
}

func (r *postgresSeasonRepository) UpdateFlags(ctx context.Context, exec SQLExecutor, season *models.Season) error {
	query := `
		UPDATE seasons
		SET is_active = $1, is_ending = $2,
		    season_end_warning_sent = $3, new_matches_blocked = $4,
		    rating_calculation_locked = $5, updated_at = now()
		WHERE id = $6`

	result, err := r.exec(exec).ExecContext(ctx, query,
		season.IsActive,
		season.IsEnding,
		season.SeasonEndWarningSent,
		season.NewMatchesBlocked,
		season.RatingCalculationLocked,
		season.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update season %d flags: %w", season.ID, err)
	}
	return checkAffectedRows(result, ErrSeasonNotFound)
}

func (r *postgresSeasonRepository) SetLastDecayAt(ctx context.Context, exec SQLExecutor, id int, at time.Time) error {
	query := `UPDATE seasons SET last_decay_at = $1, updated_at = now() WHERE id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to set season %d last_decay_at: %w", id, err)
	}
	return checkAffectedRows(result, ErrSeasonNotFound)
}

func (r *postgresSeasonRepository) List(ctx context.Context) ([]*models.Season, error) {
	query := `SELECT ` + seasonColumns + ` FROM seasons ORDER BY start_date DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query seasons: %w", err)
	}
	defer rows.Close()

	seasons := make([]*models.Season, 0)
	for rows.Next() {
		season := &models.Season{}
		if scanErr := rows.Scan(
			&season.ID,
			&season.Name,
			&season.StartDate,
			&season.EndDate,
			&season.IsActive,
			&season.IsEnding,
			&season.SeasonEndWarningSent,
			&season.NewMatchesBlocked,
			&season.RatingCalculationLocked,
			&season.Tau,
			&season.InitialRating,
			&season.InitialRD,
			&season.InitialVolatility,
			&season.LastDecayAt,
			&season.CreatedAt,
			&season.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan season row: %w", scanErr)
		}
		seasons = append(seasons, season)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during season rows iteration: %w", err)
	}
	return seasons, nil
}
