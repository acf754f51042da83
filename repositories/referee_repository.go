package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/duel-system/models"
)

var (
	ErrRefereeNotFound      = errors.New("referee not found")
	ErrRefereeEmailConflict = errors.New("referee email is already in use")
)

const refereeColumns = `
	id, external_id, username, guild_id, email, password_hash, role,
	is_active, can_annul_matches, can_modify_results, can_resolve_disputes,
	cases_resolved, matches_annulled, notes, created_at, updated_at`

type RefereeRepository interface {
	Create(ctx context.Context, referee *models.Referee) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Referee, error)
	GetByEmail(ctx context.Context, email string) (*models.Referee, error)
	ListByGuild(ctx context.Context, guildID int64) ([]*models.Referee, error)
	UpdateCapabilities(ctx context.Context, referee *models.Referee) error
	IncrementCasesResolved(ctx context.Context, exec SQLExecutor, id int) error
	IncrementMatchesAnnulled(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresRefereeRepository struct {
	db *sql.DB
}

func NewPostgresRefereeRepository(db *sql.DB) RefereeRepository {
	return &postgresRefereeRepository{db: db}
}

func (r *postgresRefereeRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresRefereeRepository) Create(ctx context.Context, referee *models.Referee) error {
	query := `
		INSERT INTO referees
			(external_id, username, guild_id, email, password_hash, role,
			 is_active, can_annul_matches, can_modify_results, can_resolve_disputes, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		referee.ExternalID,
		referee.Username,
		referee.GuildID,
		referee.Email,
		referee.PasswordHash,
		referee.Role,
		referee.IsActive,
		referee.CanAnnulMatches,
		referee.CanModifyResults,
		referee.CanResolveDisputes,
		referee.Notes,
	).Scan(&referee.ID, &referee.CreatedAt, &referee.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRefereeEmailConflict
		}
		return fmt.Errorf("failed to insert referee: %w", err)
	}
	return nil
}

func (r *postgresRefereeRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Referee, error) {
	query := `SELECT ` + refereeColumns + ` FROM referees WHERE id = $1`
	return scanReferee(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresRefereeRepository) GetByEmail(ctx context.Context, email string) (*models.Referee, error) {
	query := `SELECT ` + refereeColumns + ` FROM referees WHERE email = $1`
	return scanReferee(r.db.QueryRowContext(ctx, query, email))
}

func scanReferee(row *sql.Row) (*models.Referee, error) {
	referee := &models.Referee{}
	err := row.Scan(
		&referee.ID,
		&referee.ExternalID,
		&referee.Username,
		&referee.GuildID,
		&referee.Email,
		&referee.PasswordHash,
		&referee.Role,
		&referee.IsActive,
		&referee.CanAnnulMatches,
		&referee.CanModifyResults,
		&referee.CanResolveDisputes,
		&referee.CasesResolved,
		&referee.MatchesAnnulled,
		&referee.Notes,
		&referee.CreatedAt,
		&referee.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefereeNotFound
		}
		return nil, fmt.Errorf("failed to scan referee: %w", err)
	}
	return referee, nil
}

func (r *postgresRefereeRepository) ListByGuild(ctx context.Context, guildID int64) ([]*models.Referee, error) {
	query := `SELECT ` + refereeColumns + ` FROM referees WHERE guild_id = $1 ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query referees for guild %d: %w", guildID, err)
	}
	defer rows.Close()

	referees := make([]*models.Referee, 0)
	for rows.Next() {
		referee := &models.Referee{}
		if scanErr := rows.Scan(
			&referee.ID,
			&referee.ExternalID,
			&referee.Username,
			&referee.GuildID,
			&referee.Email,
			&referee.PasswordHash,
			&referee.Role,
			&referee.IsActive,
			&referee.CanAnnulMatches,
			&referee.CanModifyResults,
			&referee.CanResolveDisputes,
			&referee.CasesResolved,
			&referee.MatchesAnnulled,
			&referee.Notes,
			&referee.CreatedAt,
			&referee.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan referee row: %w", scanErr)
		}
		referees = append(referees, referee)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during referee rows iteration: %w", err)
	}
	return referees, nil
}

func (r *postgresRefereeRepository) UpdateCapabilities(ctx context.Context, referee *models.Referee) error {
	query := `
		UPDATE referees
		SET is_active = $1, can_annul_matches = $2, can_modify_results = $3,
		    can_resolve_disputes = $4, notes = $5, updated_at = now()
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		referee.IsActive,
		referee.CanAnnulMatches,
		referee.CanModifyResults,
		referee.CanResolveDisputes,
		referee.Notes,
		referee.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update referee %d capabilities: %w", referee.ID, err)
	}
	return checkAffectedRows(result, ErrRefereeNotFound)
}

func (r *postgresRefereeRepository) IncrementCasesResolved(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE referees SET cases_resolved = cases_resolved + 1, updated_at = now() WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment cases_resolved for referee %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRefereeNotFound)
}

func (r *postgresRefereeRepository) IncrementMatchesAnnulled(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE referees SET matches_annulled = matches_annulled + 1, updated_at = now() WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment matches_annulled for referee %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRefereeNotFound)
}
