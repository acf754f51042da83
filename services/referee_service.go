package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/duel-system/events"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
	"github.com/Dosada05/duel-system/storage"
)

type OpenCaseInput struct {
	MatchID     int             `json:"match_id"`
	ReportedBy  int             `json:"reported_by"`
	CaseType    models.CaseType `json:"case_type"`
	Description string          `json:"description"`
	Evidence    *string         `json:"evidence,omitempty"`
}

// ResolveCaseInput — решение судьи. Поля Modified/GameNumber нужны только
// для modify_results и replay_game, Reason — для annull_match.
type ResolveCaseInput struct {
	Resolution models.ResolutionType `json:"resolution"`
	Details    string                `json:"details"`

	GameNumber int              `json:"game_number,omitempty"`
	Modified   *GameReportInput `json:"modified,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

type RefereeService interface {
	GetReferee(ctx context.Context, id int) (*models.Referee, error)
	ListReferees(ctx context.Context, guildID int64) ([]*models.Referee, error)
	UpdateCapabilities(ctx context.Context, referee *models.Referee) error

	OpenCase(ctx context.Context, input OpenCaseInput) (*models.RefereeCase, error)
	GetCase(ctx context.Context, id int) (*models.RefereeCase, error)
	ListOpenCases(ctx context.Context, guildID int64) ([]*models.RefereeCase, error)
	ListCasesByMatch(ctx context.Context, matchID int) ([]*models.RefereeCase, error)

	// TakeCase — судья берёт кейс в работу (opened → assigned).
	TakeCase(ctx context.Context, caseID, refereeID int) (*models.RefereeCase, error)
	StartResolution(ctx context.Context, caseID, refereeID int) (*models.RefereeCase, error)
	ResolveCase(ctx context.Context, caseID, refereeID int, input ResolveCaseInput) (*models.RefereeCase, error)
	CloseCase(ctx context.Context, caseID, refereeID int) (*models.RefereeCase, error)

	UploadEvidence(ctx context.Context, caseID int, filename, contentType string, r io.Reader) (*models.RefereeCase, error)

	// HandleStageExpiry открывает кейс по истечении окна неактивности
	// таймированного этапа. Подключается к StageTimers.
	HandleStageExpiry(matchID int, stage models.MatchStage)
}

type refereeService struct {
	db          *sql.DB
	refereeRepo repositories.RefereeRepository
	caseRepo    repositories.RefereeCaseRepository
	matchRepo   repositories.MatchRepository

	matches  MatchService
	uploader storage.FileUploader
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time
}

func NewRefereeService(
	db *sql.DB,
	refereeRepo repositories.RefereeRepository,
	caseRepo repositories.RefereeCaseRepository,
	matchRepo repositories.MatchRepository,
	matches MatchService,
	uploader storage.FileUploader,
	bus *events.Bus,
	logger *slog.Logger,
	now func() time.Time,
) RefereeService {
	if now == nil {
		now = time.Now
	}
	return &refereeService{
		db:          db,
		refereeRepo: refereeRepo,
		caseRepo:    caseRepo,
		matchRepo:   matchRepo,
		matches:     matches,
		uploader:    uploader,
		bus:         bus,
		logger:      logger,
		now:         now,
	}
}

func (s *refereeService) GetReferee(ctx context.Context, id int) (*models.Referee, error) {
	referee, err := s.refereeRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrRefereeNotFound) {
			return nil, ErrRefereeNotFound
		}
		return nil, err
	}
	return referee, nil
}

func (s *refereeService) ListReferees(ctx context.Context, guildID int64) ([]*models.Referee, error) {
	return s.refereeRepo.ListByGuild(ctx, guildID)
}

func (s *refereeService) UpdateCapabilities(ctx context.Context, referee *models.Referee) error {
	err := s.refereeRepo.UpdateCapabilities(ctx, referee)
	if errors.Is(err, repositories.ErrRefereeNotFound) {
		return ErrRefereeNotFound
	}
	return err
}

func (s *refereeService) OpenCase(ctx context.Context, input OpenCaseInput) (*models.RefereeCase, error) {
	if !input.CaseType.Valid() {
		return nil, ErrInvalidCaseType
	}
	if input.Description == "" {
		return nil, fmt.Errorf("%w: case description is required", ErrValidationFailed)
	}

	match, err := s.matchRepo.GetByID(ctx, nil, input.MatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if match.IsTerminal() {
		return nil, ErrMatchTerminal
	}
	if !match.HasPlayer(input.ReportedBy) {
		return nil, ErrNotAParticipant
	}

	c := &models.RefereeCase{
		MatchID:            input.MatchID,
		CaseType:           input.CaseType,
		Status:             models.CaseOpened,
		ReportedBy:         input.ReportedBy,
		ProblemDescription: input.Description,
		Evidence:           input.Evidence,
		StageWhenReported:  match.CurrentStage,
	}
	if err := s.caseRepo.Create(ctx, nil, c); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	s.logger.Info("referee case opened",
		slog.Int("case_id", c.ID),
		slog.Int("match_id", c.MatchID),
		slog.String("case_type", string(c.CaseType)))
	s.bus.Publish(events.New(events.TypeCaseOpened, events.CaseOpenedPayload{
		CaseID:   c.ID,
		MatchID:  c.MatchID,
		CaseType: string(c.CaseType),
	}))
	return c, nil
}

func (s *refereeService) GetCase(ctx context.Context, id int) (*models.RefereeCase, error) {
	c, err := s.caseRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrCaseNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *refereeService) ListOpenCases(ctx context.Context, guildID int64) ([]*models.RefereeCase, error) {
	return s.caseRepo.ListOpen(ctx, guildID)
}

func (s *refereeService) ListCasesByMatch(ctx context.Context, matchID int) ([]*models.RefereeCase, error) {
	return s.caseRepo.ListByMatch(ctx, matchID)
}

// transitionCase переводит кейс в следующий статус под блокировкой строки.
func (s *refereeService) transitionCase(ctx context.Context, caseID, refereeID int, next models.CaseStatus, mutate func(c *models.RefereeCase, ref *models.Referee) error) (*models.RefereeCase, error) {
	var c *models.RefereeCase
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = s.caseRepo.GetByIDForUpdate(ctx, tx, caseID)
		if err != nil {
			if errors.Is(err, repositories.ErrCaseNotFound) {
				return ErrCaseNotFound
			}
			return err
		}
		referee, err := s.refereeRepo.GetByID(ctx, tx, refereeID)
		if err != nil {
			if errors.Is(err, repositories.ErrRefereeNotFound) {
				return ErrRefereeNotFound
			}
			return err
		}
		if !referee.IsActive {
			return ErrRefereeInactive
		}
		if c.IsResolved() && next != models.CaseClosed {
			return ErrCaseAlreadyResolved
		}
		if !c.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrCaseTransitionInvalid, c.Status, next)
		}
		if mutate != nil {
			if err := mutate(c, referee); err != nil {
				return err
			}
		}
		c.Status = next
		return s.caseRepo.Update(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *refereeService) TakeCase(ctx context.Context, caseID, refereeID int) (*models.RefereeCase, error) {
	return s.transitionCase(ctx, caseID, refereeID, models.CaseAssigned, func(c *models.RefereeCase, ref *models.Referee) error {
		c.RefereeID = &ref.ID
		return nil
	})
}

func (s *refereeService) StartResolution(ctx context.Context, caseID, refereeID int) (*models.RefereeCase, error) {
	return s.transitionCase(ctx, caseID, refereeID, models.CaseInProgress, func(c *models.RefereeCase, ref *models.Referee) error {
		if c.RefereeID != nil && *c.RefereeID != ref.ID {
			return fmt.Errorf("%w: case is assigned to another referee", ErrPermissionDenied)
		}
		c.RefereeID = &ref.ID
		return nil
	})
}

func (s *refereeService) ResolveCase(ctx context.Context, caseID, refereeID int, input ResolveCaseInput) (*models.RefereeCase, error) {
	if !input.Resolution.Valid() {
		return nil, ErrInvalidResolution
	}

	// Предварительные проверки до побочных эффектов.
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.IsResolved() {
		return nil, ErrCaseAlreadyResolved
	}
	referee, err := s.GetReferee(ctx, refereeID)
	if err != nil {
		return nil, err
	}
	if !referee.IsActive {
		return nil, ErrRefereeInactive
	}
	if !referee.CanApply(input.Resolution) {
		return nil, fmt.Errorf("%w: resolution %s", ErrPermissionDenied, input.Resolution)
	}

	// Сначала эффект на матч: его операции сами сериализуются и валидируют
	// состояние. При их отказе кейс остаётся нерешённым.
	if err := s.applyResolution(ctx, c, refereeID, input); err != nil {
		return nil, err
	}

	resolvedAt := s.now()
	resolution := input.Resolution
	c, err = s.transitionCase(ctx, caseID, refereeID, models.CaseResolved, func(c *models.RefereeCase, ref *models.Referee) error {
		c.RefereeID = &ref.ID
		c.ResolutionType = &resolution
		if input.Details != "" {
			c.ResolutionDetails = &input.Details
		}
		c.ResolvedAt = &resolvedAt
		return nil
	})
	if err != nil {
		// Эффект применён, но кейс не зафиксирован: оставляем след в логе,
		// повторный resolve поднимет это же решение.
		s.logger.Error("case resolution applied but not recorded",
			slog.Int("case_id", caseID),
			slog.String("resolution", string(input.Resolution)),
			slog.Any("error", err))
		return nil, err
	}

	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.refereeRepo.IncrementCasesResolved(ctx, tx, refereeID); err != nil {
			return err
		}
		if input.Resolution == models.ResolutionAnnulMatch {
			return s.refereeRepo.IncrementMatchesAnnulled(ctx, tx, refereeID)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update referee counters",
			slog.Int("referee_id", refereeID),
			slog.Any("error", err))
	}

	s.logger.Info("referee case resolved",
		slog.Int("case_id", caseID),
		slog.Int("referee_id", refereeID),
		slog.String("resolution", string(input.Resolution)))
	return c, nil
}

func (s *refereeService) applyResolution(ctx context.Context, c *models.RefereeCase, refereeID int, input ResolveCaseInput) error {
	switch input.Resolution {
	case models.ResolutionContinueMatch:
		return s.matches.ContinueMatch(ctx, c.MatchID)

	case models.ResolutionModifyResults:
		if input.Modified == nil || input.GameNumber <= 0 {
			return fmt.Errorf("%w: modify_results requires a game number and modified times", ErrValidationFailed)
		}
		_, err := s.matches.ModifyGameResult(ctx, c.MatchID, input.GameNumber, refereeID, *input.Modified)
		return err

	case models.ResolutionReplayGame:
		if input.GameNumber <= 0 {
			return fmt.Errorf("%w: replay_game requires a game number", ErrValidationFailed)
		}
		_, err := s.matches.ReplayGame(ctx, c.MatchID, input.GameNumber, refereeID)
		return err

	case models.ResolutionAnnulMatch:
		reason := input.Reason
		if reason == "" {
			reason = input.Details
		}
		_, err := s.matches.AnnulMatch(ctx, c.MatchID, refereeID, reason)
		return err

	case models.ResolutionWarningIssued, models.ResolutionOther:
		// Решение без эффекта на состояние матча; окно неактивности
		// перезапускается, чтобы матч не завис.
		return s.matches.ContinueMatch(ctx, c.MatchID)
	}
	return ErrInvalidResolution
}

func (s *refereeService) CloseCase(ctx context.Context, caseID, refereeID int) (*models.RefereeCase, error) {
	return s.transitionCase(ctx, caseID, refereeID, models.CaseClosed, nil)
}

func (s *refereeService) UploadEvidence(ctx context.Context, caseID int, filename, contentType string, r io.Reader) (*models.RefereeCase, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.IsResolved() {
		return nil, ErrCaseAlreadyResolved
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: evidence storage is not configured", ErrValidationFailed)
	}

	key := fmt.Sprintf("cases/%d/%s%s", caseID, uuid.NewString(), path.Ext(filename))
	result, err := s.uploader.Upload(ctx, key, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload case evidence: %w", err)
	}

	url := result.Location
	err = runInTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err = s.caseRepo.GetByIDForUpdate(ctx, tx, caseID)
		if err != nil {
			return err
		}
		c.EvidenceURL = &url
		return s.caseRepo.Update(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("case evidence uploaded",
		slog.Int("case_id", caseID),
		slog.String("key", result.Key))
	return c, nil
}

// HandleStageExpiry вызывается таймером вне HTTP-запроса, поэтому работает
// на собственном контексте с таймаутом.
func (s *refereeService) HandleStageExpiry(matchID int, stage models.MatchStage) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Не плодим кейсы, если по матчу уже есть нерешённый.
	existing, err := s.caseRepo.ListByMatch(ctx, matchID)
	if err != nil {
		s.logger.Error("failed to check existing cases on stage expiry",
			slog.Int("match_id", matchID),
			slog.Any("error", err))
		return
	}
	for _, c := range existing {
		if !c.IsResolved() {
			return
		}
	}

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil || match.IsTerminal() {
		return
	}

	c := &models.RefereeCase{
		MatchID:            matchID,
		CaseType:           models.CaseTechnicalIssue,
		Status:             models.CaseOpened,
		ProblemDescription: fmt.Sprintf("stage %s inactivity window expired", stage),
		StageWhenReported:  stage,
	}
	if err := s.caseRepo.Create(ctx, nil, c); err != nil {
		s.logger.Error("failed to open expiry case",
			slog.Int("match_id", matchID),
			slog.Any("error", err))
		return
	}
	s.bus.Publish(events.New(events.TypeCaseOpened, events.CaseOpenedPayload{
		CaseID:   c.ID,
		MatchID:  matchID,
		CaseType: string(c.CaseType),
	}))
}
