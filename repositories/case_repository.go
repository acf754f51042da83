package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/duel-system/models"
)

var ErrCaseNotFound = errors.New("referee case not found")

const caseColumns = `
	id, match_id, referee_id, case_type, status,
	reported_by, problem_description, evidence, evidence_url,
	referee_notes, resolution_type, resolution_details, resolved_at,
	stage_when_reported, additional_data, created_at, updated_at`

type RefereeCaseRepository interface {
	Create(ctx context.Context, exec SQLExecutor, c *models.RefereeCase) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.RefereeCase, error)
	// GetByIDForUpdate locks the case row for the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.RefereeCase, error)
	Update(ctx context.Context, exec SQLExecutor, c *models.RefereeCase) error
	ListOpen(ctx context.Context, guildID int64) ([]*models.RefereeCase, error)
	ListByMatch(ctx context.Context, matchID int) ([]*models.RefereeCase, error)
}

type postgresRefereeCaseRepository struct {
	db *sql.DB
}

func NewPostgresRefereeCaseRepository(db *sql.DB) RefereeCaseRepository {
	return &postgresRefereeCaseRepository{db: db}
}

func (r *postgresRefereeCaseRepository) exec(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresRefereeCaseRepository) Create(ctx context.Context, exec SQLExecutor, c *models.RefereeCase) error {
	query := `
		INSERT INTO referee_cases
			(match_id, referee_id, case_type, status, reported_by,
			 problem_description, evidence, stage_when_reported, additional_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.exec(exec).QueryRowContext(ctx, query,
		c.MatchID,
		c.RefereeID,
		c.CaseType,
		c.Status,
		c.ReportedBy,
		c.ProblemDescription,
		c.Evidence,
		c.StageWhenReported,
		c.AdditionalData,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to insert referee case for match %d: %w", c.MatchID, err)
	}
	return nil
}

func (r *postgresRefereeCaseRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.RefereeCase, error) {
	query := `SELECT ` + caseColumns + ` FROM referee_cases WHERE id = $1`
	return scanCase(r.exec(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresRefereeCaseRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.RefereeCase, error) {
	query := `SELECT ` + caseColumns + ` FROM referee_cases WHERE id = $1 FOR UPDATE`
	return scanCase(r.exec(exec).QueryRowContext(ctx, query, id))
}

func scanCase(row *sql.Row) (*models.RefereeCase, error) {
	c := &models.RefereeCase{}
	err := row.Scan(
		&c.ID,
		&c.MatchID,
		&c.RefereeID,
		&c.CaseType,
		&c.Status,
		&c.ReportedBy,
		&c.ProblemDescription,
		&c.Evidence,
		&c.EvidenceURL,
		&c.RefereeNotes,
		&c.ResolutionType,
		&c.ResolutionDetails,
		&c.ResolvedAt,
		&c.StageWhenReported,
		&c.AdditionalData,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to scan referee case: %w", err)
	}
	return c, nil
}

func (r *postgresRefereeCaseRepository) Update(ctx context.Context, exec SQLExecutor, c *models.RefereeCase) error {
	query := `
		UPDATE referee_cases
		SET referee_id = $1, status = $2, referee_notes = $3,
		    resolution_type = $4, resolution_details = $5, resolved_at = $6,
		    evidence = $7, evidence_url = $8, additional_data = $9, updated_at = now()
		WHERE id = $10`

	result, err := r.exec(exec).ExecContext(ctx, query,
		c.RefereeID,
		c.Status,
		c.RefereeNotes,
		c.ResolutionType,
		c.ResolutionDetails,
		c.ResolvedAt,
		c.Evidence,
		c.EvidenceURL,
		c.AdditionalData,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update referee case %d: %w", c.ID, err)
	}
	return checkAffectedRows(result, ErrCaseNotFound)
}

func (r *postgresRefereeCaseRepository) ListOpen(ctx context.Context, guildID int64) ([]*models.RefereeCase, error) {
	query := `
		SELECT c.id, c.match_id, c.referee_id, c.case_type, c.status,
		       c.reported_by, c.problem_description, c.evidence, c.evidence_url,
		       c.referee_notes, c.resolution_type, c.resolution_details, c.resolved_at,
		       c.stage_when_reported, c.additional_data, c.created_at, c.updated_at
		FROM referee_cases c
		JOIN matches m ON m.id = c.match_id
		WHERE m.guild_id = $1 AND c.status NOT IN ($2, $3)
		ORDER BY c.id ASC`

	return r.list(ctx, query, guildID, models.CaseResolved, models.CaseClosed)
}

func (r *postgresRefereeCaseRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.RefereeCase, error) {
	query := `SELECT ` + caseColumns + ` FROM referee_cases WHERE match_id = $1 ORDER BY id ASC`
	return r.list(ctx, query, matchID)
}

func (r *postgresRefereeCaseRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.RefereeCase, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query referee cases: %w", err)
	}
	defer rows.Close()

	cases := make([]*models.RefereeCase, 0)
	for rows.Next() {
		c := &models.RefereeCase{}
		if scanErr := rows.Scan(
			&c.ID,
			&c.MatchID,
			&c.RefereeID,
			&c.CaseType,
			&c.Status,
			&c.ReportedBy,
			&c.ProblemDescription,
			&c.Evidence,
			&c.EvidenceURL,
			&c.RefereeNotes,
			&c.ResolutionType,
			&c.ResolutionDetails,
			&c.ResolvedAt,
			&c.StageWhenReported,
			&c.AdditionalData,
			&c.CreatedAt,
			&c.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan referee case row: %w", scanErr)
		}
		cases = append(cases, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during referee case rows iteration: %w", err)
	}
	return cases, nil
}
