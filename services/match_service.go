package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/duel-system/events"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
)

// StageWindows — окна неактивности таймированных этапов.
type StageWindows struct {
	Preparation time.Duration
	Game        time.Duration
}

type CreateMatchInput struct {
	GuildID        int64              `json:"guild_id"`
	ChannelID      int64              `json:"channel_id"`
	ThreadID       *int64             `json:"thread_id,omitempty"`
	VoiceChannelID *int64             `json:"voice_channel_id,omitempty"`
	Player1ID      int                `json:"player1_id"`
	Player2ID      int                `json:"player2_id"`
	Format         models.MatchFormat `json:"format"`
}

// GameReportInput — отчёт об одной игре: времена и рестарты обеих сторон.
type GameReportInput struct {
	Player1Time     float64 `json:"player1_time"`
	Player1Restarts int     `json:"player1_restarts"`
	Player2Time     float64 `json:"player2_time"`
	Player2Restarts int     `json:"player2_restarts"`
	Notes           *string `json:"notes,omitempty"`
}

type MatchService interface {
	CreateMatch(ctx context.Context, input CreateMatchInput) (*models.Match, error)
	// GetMatch возвращает матч вместе с результатами игр и журналом переходов.
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListActiveMatches(ctx context.Context, seasonID int) ([]*models.Match, error)

	ReportReadiness(ctx context.Context, matchID, playerID int) (*models.Match, error)
	ReportDraft(ctx context.Context, matchID, playerID int, draftLink string) (*models.Match, error)
	ReportFirstPlayer(ctx context.Context, matchID, actorID, firstPlayerID int) (*models.Match, error)
	ReportGameStart(ctx context.Context, matchID, playerID int) (*models.Match, error)
	ReportResult(ctx context.Context, matchID, playerID int, input GameReportInput) (*models.Match, error)
	ConfirmResult(ctx context.Context, matchID, playerID int) (*models.Match, error)
	// Withdraw фиксирует отказ игрока; матч отменяется, когда отказались оба.
	Withdraw(ctx context.Context, matchID, playerID int) (*models.Match, error)

	// Операции, доступные только через решения судьи.
	AnnulMatch(ctx context.Context, matchID, refereeID int, reason string) (*models.Match, error)
	RefereeConfirmGame(ctx context.Context, matchID, gameNumber, refereeID int) (*models.Match, error)
	ModifyGameResult(ctx context.Context, matchID, gameNumber, refereeID int, input GameReportInput) (*models.Match, error)
	ReplayGame(ctx context.Context, matchID, gameNumber, refereeID int) (*models.Match, error)
	// ContinueMatch перезапускает окно неактивности после решения
	// continue_match.
	ContinueMatch(ctx context.Context, matchID int) error
}

type matchService struct {
	db          *sql.DB
	matchRepo   repositories.MatchRepository
	stateRepo   repositories.MatchStateRepository
	resultRepo  repositories.GameResultRepository
	penaltyRepo repositories.PenaltySettingsRepository
	seasonRepo  repositories.SeasonRepository
	caseRepo    repositories.RefereeCaseRepository
	refereeRepo repositories.RefereeRepository

	ratings RatingService
	bus     *events.Bus
	logger  *slog.Logger

	locks   *matchLocks
	timers  *StageTimers
	windows StageWindows
}

func NewMatchService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	stateRepo repositories.MatchStateRepository,
	resultRepo repositories.GameResultRepository,
	penaltyRepo repositories.PenaltySettingsRepository,
	seasonRepo repositories.SeasonRepository,
	caseRepo repositories.RefereeCaseRepository,
	refereeRepo repositories.RefereeRepository,
	ratings RatingService,
	bus *events.Bus,
	logger *slog.Logger,
	timers *StageTimers,
	windows StageWindows,
) MatchService {
	return &matchService{
		db:          db,
		matchRepo:   matchRepo,
		stateRepo:   stateRepo,
		resultRepo:  resultRepo,
		penaltyRepo: penaltyRepo,
		seasonRepo:  seasonRepo,
		caseRepo:    caseRepo,
		refereeRepo: refereeRepo,
		ratings:     ratings,
		bus:         bus,
		logger:      logger,
		locks:       newMatchLocks(),
		timers:      timers,
		windows:     windows,
	}
}

// Настройки штрафов по умолчанию: 30 секунд за каждый рестарт без
// бесплатного лимита, как до появления тиров.
var fallbackPenaltySettings = models.PenaltySettings{
	FreeRestarts: 0,
	Tiers: []models.PenaltyTier{
		{Threshold: 1, PenaltySeconds: 30},
		{Threshold: 2, PenaltySeconds: 60},
		{Threshold: 3, PenaltySeconds: 90},
		{Threshold: 4, PenaltySeconds: 120},
		{Threshold: 5, PenaltySeconds: 150},
	},
}

// statePayload — содержимое журнальной записи перехода.
type statePayload struct {
	Action     string `json:"action"`
	PlayerID   int    `json:"player_id,omitempty"`
	RefereeID  int    `json:"referee_id,omitempty"`
	GameNumber int    `json:"game_number,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func (s *matchService) CreateMatch(ctx context.Context, input CreateMatchInput) (*models.Match, error) {
	if !input.Format.Valid() {
		return nil, ErrInvalidMatchFormat
	}
	if input.Player1ID == input.Player2ID {
		return nil, ErrSamePlayer
	}

	var match *models.Match
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		season, err := s.seasonRepo.GetActive(ctx, tx)
		if err != nil {
			if errors.Is(err, repositories.ErrSeasonNotFound) {
				return ErrNoActiveSeason
			}
			return err
		}
		if !season.AllowsNewMatches() {
			return ErrSeasonBlocked
		}

		for _, playerID := range []int{input.Player1ID, input.Player2ID} {
			n, err := s.matchRepo.CountActiveByPlayer(ctx, tx, playerID)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: player %d", ErrAlreadyInMatch, playerID)
			}
		}

		match = &models.Match{
			SeasonID:       season.ID,
			GuildID:        input.GuildID,
			ChannelID:      input.ChannelID,
			ThreadID:       input.ThreadID,
			VoiceChannelID: input.VoiceChannelID,
			Player1ID:      input.Player1ID,
			Player2ID:      input.Player2ID,
			Format:         input.Format,
			Status:         models.MatchStatusWaiting,
			CurrentStage:   models.StageWaitingReadiness,
			CurrentGame:    1,
		}
		if err := s.matchRepo.Create(ctx, tx, match); err != nil {
			if errors.Is(err, repositories.ErrMatchPlayerInvalid) {
				return ErrPlayerNotFound
			}
			return err
		}
		return s.appendState(ctx, tx, match.ID, models.StageWaitingReadiness, statePayload{Action: "match_created"})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match created",
		slog.Int("match_id", match.ID),
		slog.Int("season_id", match.SeasonID),
		slog.Int("player1_id", match.Player1ID),
		slog.Int("player2_id", match.Player2ID),
		slog.String("format", string(match.Format)))
	s.publishStage(match)
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if match.GameResults, err = s.resultRepo.ListByMatch(ctx, nil, id); err != nil {
		return nil, err
	}
	if match.States, err = s.stateRepo.ListByMatch(ctx, id); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListActiveMatches(ctx context.Context, seasonID int) ([]*models.Match, error) {
	return s.matchRepo.ListActive(ctx, seasonID)
}

// withMatch сериализует операцию по матчу: per-match мьютекс поверх
// транзакции с блокировкой строки. fn меняет match; изменения сохраняются
// одним Update.
func (s *matchService) withMatch(ctx context.Context, matchID int, fn func(tx *sql.Tx, match *models.Match) error) (*models.Match, error) {
	unlock := s.locks.Lock(matchID)
	defer unlock()

	var match *models.Match
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		match, err = s.matchRepo.GetByIDForUpdate(ctx, tx, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		if err := fn(tx, match); err != nil {
			return err
		}
		return s.matchRepo.Update(ctx, tx, match)
	})
	if err != nil {
		return nil, err
	}

	s.syncTimer(match)
	return match, nil
}

// syncTimer приводит таймер неактивности в соответствие текущему этапу.
func (s *matchService) syncTimer(match *models.Match) {
	if s.timers == nil {
		return
	}
	switch match.CurrentStage {
	case models.StageGamePreparation:
		s.timers.Start(match.ID, match.CurrentStage, s.windows.Preparation)
	case models.StageGameInProgress:
		s.timers.Start(match.ID, match.CurrentStage, s.windows.Game)
	default:
		s.timers.Cancel(match.ID)
	}
}

func (s *matchService) appendState(ctx context.Context, exec repositories.SQLExecutor, matchID int, stage models.MatchStage, payload statePayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal state payload: %w", err)
	}
	return s.stateRepo.Append(ctx, exec, &models.MatchState{
		MatchID: matchID,
		Stage:   stage,
		Payload: raw,
	})
}

func (s *matchService) publishPending(pending []events.Event) {
	for _, e := range pending {
		s.bus.Publish(e)
	}
}

func (s *matchService) publishStage(match *models.Match) {
	s.bus.Publish(events.New(events.TypeMatchStageChanged, events.MatchStageChangedPayload{
		MatchID: match.ID,
		GuildID: match.GuildID,
		Stage:   string(match.CurrentStage),
	}))
}

func requireParticipant(match *models.Match, playerID int) error {
	if !match.HasPlayer(playerID) {
		return ErrNotAParticipant
	}
	return nil
}

func requireStage(match *models.Match, stage models.MatchStage) error {
	if match.IsTerminal() {
		return ErrMatchTerminal
	}
	if match.CurrentStage != stage {
		return fmt.Errorf("%w: expected %s, match is at %s", ErrStageMismatch, stage, match.CurrentStage)
	}
	return nil
}

// requireCapability проверяет флаг возможностей судьи для прямых судейских
// операций, идущих в обход кейса.
func (s *matchService) requireCapability(ctx context.Context, refereeID int, res models.ResolutionType) error {
	referee, err := s.refereeRepo.GetByID(ctx, nil, refereeID)
	if err != nil {
		if errors.Is(err, repositories.ErrRefereeNotFound) {
			return ErrRefereeNotFound
		}
		return err
	}
	if !referee.CanApply(res) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, res)
	}
	return nil
}

// listActions собирает из журнала матча все записи с данным действием.
func (s *matchService) listActions(ctx context.Context, matchID int, action string) (map[int]bool, error) {
	states, err := s.stateRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	actors := make(map[int]bool)
	for _, st := range states {
		if len(st.Payload) == 0 {
			continue
		}
		var p statePayload
		if err := json.Unmarshal(st.Payload, &p); err != nil {
			continue
		}
		if p.Action == action {
			actors[p.PlayerID] = true
		}
	}
	return actors, nil
}

func (s *matchService) ReportReadiness(ctx context.Context, matchID, playerID int) (*models.Match, error) {
	var changed bool
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if err := requireParticipant(match, playerID); err != nil {
			return err
		}
		if err := requireStage(match, models.StageWaitingReadiness); err != nil {
			return err
		}

		ready, err := s.listActions(ctx, matchID, "ready")
		if err != nil {
			return err
		}
		if ready[playerID] {
			return nil // повторное подтверждение готовности — no-op
		}
		if err := s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{Action: "ready", PlayerID: playerID}); err != nil {
			return err
		}
		ready[playerID] = true

		if ready[match.Player1ID] && ready[match.Player2ID] {
			match.CurrentStage = models.StageDraftVerification
			changed = true
			return s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{Action: "stage_advanced"})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishStage(match)
	}
	return match, nil
}

func (s *matchService) ReportDraft(ctx context.Context, matchID, playerID int, draftLink string) (*models.Match, error) {
	if draftLink == "" {
		return nil, ErrDraftLinkRequired
	}
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if err := requireParticipant(match, playerID); err != nil {
			return err
		}
		if err := requireStage(match, models.StageDraftVerification); err != nil {
			return err
		}
		match.DraftLink = &draftLink
		match.CurrentStage = models.StageFirstPlayerSelection
		return s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{
			Action:   "draft_verified",
			PlayerID: playerID,
			Detail:   draftLink,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishStage(match)
	return match, nil
}

func (s *matchService) ReportFirstPlayer(ctx context.Context, matchID, actorID, firstPlayerID int) (*models.Match, error) {
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if err := requireParticipant(match, actorID); err != nil {
			return err
		}
		if !match.HasPlayer(firstPlayerID) {
			return fmt.Errorf("%w: first player must be a participant", ErrValidationFailed)
		}
		if err := requireStage(match, models.StageFirstPlayerSelection); err != nil {
			return err
		}
		match.FirstPlayerID = &firstPlayerID
		match.Status = models.MatchStatusActive
		match.CurrentStage = models.StageGamePreparation
		return s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{
			Action:   "first_player_selected",
			PlayerID: firstPlayerID,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishStage(match)
	return match, nil
}

func (s *matchService) ReportGameStart(ctx context.Context, matchID, playerID int) (*models.Match, error) {
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if err := requireParticipant(match, playerID); err != nil {
			return err
		}
		if err := requireStage(match, models.StageGamePreparation); err != nil {
			return err
		}
		match.CurrentStage = models.StageGameInProgress
		return s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{
			Action:     "game_started",
			PlayerID:   playerID,
			GameNumber: match.CurrentGame,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishStage(match)
	return match, nil
}

func validateReport(input GameReportInput) error {
	if input.Player1Time < 0 || input.Player2Time < 0 {
		return ErrNegativeTime
	}
	if input.Player1Restarts < 0 || input.Player2Restarts < 0 {
		return ErrNegativeRestarts
	}
	return nil
}

// buildResult рассчитывает штрафы и итоговые времена по настройкам гильдии.
func (s *matchService) buildResult(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, input GameReportInput) (*models.GameResult, error) {
	settings, err := s.penaltyRepo.GetByGuild(ctx, exec, match.GuildID)
	if err != nil {
		if !errors.Is(err, repositories.ErrPenaltySettingsNotFound) {
			return nil, err
		}
		settings = &fallbackPenaltySettings
	}

	result := &models.GameResult{
		MatchID:    match.ID,
		GameNumber: match.CurrentGame,

		Player1Time:      input.Player1Time,
		Player1Restarts:  input.Player1Restarts,
		Player1Penalty:   settings.Penalty(input.Player1Restarts),
		Player1FinalTime: settings.FinalTime(input.Player1Time, input.Player1Restarts),

		Player2Time:      input.Player2Time,
		Player2Restarts:  input.Player2Restarts,
		Player2Penalty:   settings.Penalty(input.Player2Restarts),
		Player2FinalTime: settings.FinalTime(input.Player2Time, input.Player2Restarts),

		Notes: input.Notes,
	}
	return result, nil
}

func sameReport(existing *models.GameResult, input GameReportInput) bool {
	return existing.Player1Time == input.Player1Time &&
		existing.Player1Restarts == input.Player1Restarts &&
		existing.Player2Time == input.Player2Time &&
		existing.Player2Restarts == input.Player2Restarts
}

func (s *matchService) ReportResult(ctx context.Context, matchID, playerID int, input GameReportInput) (*models.Match, error) {
	if err := validateReport(input); err != nil {
		return nil, err
	}
	var pending []events.Event
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if err := requireParticipant(match, playerID); err != nil {
			return err
		}
		if match.IsTerminal() {
			return ErrMatchTerminal
		}

		// Повторная отправка того же результата на этапе подтверждения
		// считается подтверждением отправителя.
		if match.CurrentStage == models.StageResultConfirmation {
			existing, err := s.resultRepo.Get(ctx, tx, matchID, match.CurrentGame)
			if err != nil {
				return err
			}
			if !sameReport(existing, input) {
				return ErrResultAlreadyExists
			}
			return s.confirmBy(ctx, tx, match, existing, playerID, &pending)
		}

		if match.CurrentStage != models.StageGameInProgress {
			return fmt.Errorf("%w: expected %s, match is at %s", ErrStageMismatch, models.StageGameInProgress, match.CurrentStage)
		}

		result, err := s.buildResult(ctx, tx, match, input)
		if err != nil {
			return err
		}
		if match.Player1ID == playerID {
			result.Player1Confirmed = true
		} else {
			result.Player2Confirmed = true
		}
		if err := s.resultRepo.Create(ctx, tx, result); err != nil {
			return err
		}

		match.CurrentStage = models.StageResultConfirmation
		return s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{
			Action:     "result_reported",
			PlayerID:   playerID,
			GameNumber: match.CurrentGame,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishPending(pending)
	s.afterAdvance(ctx, match)
	return match, nil
}

func (s *matchService) ConfirmResult(ctx context.Context, matchID, playerID int) (*models.Match, error) {
	var pending []events.Event
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if err := requireParticipant(match, playerID); err != nil {
			return err
		}
		if err := requireStage(match, models.StageResultConfirmation); err != nil {
			return err
		}
		result, err := s.resultRepo.Get(ctx, tx, matchID, match.CurrentGame)
		if err != nil {
			return err
		}
		return s.confirmBy(ctx, tx, match, result, playerID, &pending)
	})
	if err != nil {
		return nil, err
	}
	s.publishPending(pending)
	s.afterAdvance(ctx, match)
	return match, nil
}

// confirmBy выставляет подтверждение игрока и, когда подтверждены обе
// стороны, двигает матч дальше. События копятся в pending и публикуются
// только после фиксации транзакции.
func (s *matchService) confirmBy(ctx context.Context, tx *sql.Tx, match *models.Match, result *models.GameResult, playerID int, pending *[]events.Event) error {
	if match.Player1ID == playerID {
		if result.Player1Confirmed {
			return nil
		}
		result.Player1Confirmed = true
	} else {
		if result.Player2Confirmed {
			return nil
		}
		result.Player2Confirmed = true
	}
	if err := s.resultRepo.UpdateConfirmation(ctx, tx, result); err != nil {
		return err
	}
	if err := s.appendState(ctx, tx, match.ID, match.CurrentStage, statePayload{
		Action:     "result_confirmed",
		PlayerID:   playerID,
		GameNumber: result.GameNumber,
	}); err != nil {
		return err
	}
	if !result.Confirmed() {
		return nil
	}
	return s.advance(ctx, tx, match, pending)
}

// advance решает, что делать после подтверждённой игры: следующая игра,
// завершение матча или кейс судье при ничейном исходе.
func (s *matchService) advance(ctx context.Context, tx *sql.Tx, match *models.Match, pending *[]events.Event) error {
	results, err := s.resultRepo.ListByMatch(ctx, tx, match.ID)
	if err != nil {
		return err
	}

	winnerSlot, decided, needsReferee := decideOutcome(match.Format, results)
	switch {
	case needsReferee:
		return s.escalateTie(ctx, tx, match, pending)
	case decided:
		return s.complete(ctx, tx, match, winnerSlot)
	default:
		match.CurrentGame++
		match.CurrentStage = models.StageGamePreparation
		return s.appendState(ctx, tx, match.ID, match.CurrentStage, statePayload{
			Action:     "next_game",
			GameNumber: match.CurrentGame,
		})
	}
}

// decideOutcome применяет правило формата к подтверждённым играм.
// needsReferee=true означает ничейный суммарный исход, который решает судья.
func decideOutcome(format models.MatchFormat, results []*models.GameResult) (winnerSlot int, decided, needsReferee bool) {
	confirmed := make([]*models.GameResult, 0, len(results))
	for _, r := range results {
		if r.Confirmed() {
			confirmed = append(confirmed, r)
		}
	}

	switch format {
	case models.FormatBo1:
		if len(confirmed) < 1 {
			return 0, false, false
		}
		slot := confirmed[0].WinnerSlot()
		if slot == 0 {
			return 0, false, true
		}
		return slot, true, false

	case models.FormatBo2:
		if len(confirmed) < 2 {
			return 0, false, false
		}
		var sum1, sum2 float64
		for _, r := range confirmed {
			sum1 += r.Player1FinalTime
			sum2 += r.Player2FinalTime
		}
		const timeEpsilon = 1e-9
		switch {
		case sum1 < sum2-timeEpsilon:
			return 1, true, false
		case sum2 < sum1-timeEpsilon:
			return 2, true, false
		}
		return 0, false, true

	case models.FormatBo3:
		var wins1, wins2 int
		for _, r := range confirmed {
			switch r.WinnerSlot() {
			case 1:
				wins1++
			case 2:
				wins2++
			}
		}
		if wins1 >= 2 {
			return 1, true, false
		}
		if wins2 >= 2 {
			return 2, true, false
		}
		if len(confirmed) < 3 {
			return 0, false, false
		}
		switch {
		case wins1 > wins2:
			return 1, true, false
		case wins2 > wins1:
			return 2, true, false
		}
		return 0, false, true
	}
	return 0, false, false
}

// escalateTie оставляет матч на подтверждении результата и открывает кейс.
func (s *matchService) escalateTie(ctx context.Context, tx *sql.Tx, match *models.Match, pending *[]events.Event) error {
	if err := s.appendState(ctx, tx, match.ID, match.CurrentStage, statePayload{
		Action: "tie_escalated",
		Detail: "outcome tied, referee review required",
	}); err != nil {
		return err
	}
	return s.openCase(ctx, tx, match, models.CaseResultDispute, "match outcome is tied and requires a referee decision", pending)
}

func (s *matchService) openCase(ctx context.Context, tx *sql.Tx, match *models.Match, caseType models.CaseType, description string, pending *[]events.Event) error {
	// ReportedBy = 0 помечает кейс, открытый самим движком матча.
	c := &models.RefereeCase{
		MatchID:            match.ID,
		CaseType:           caseType,
		Status:             models.CaseOpened,
		ProblemDescription: description,
		StageWhenReported:  match.CurrentStage,
	}
	if err := s.caseRepo.Create(ctx, tx, c); err != nil {
		return err
	}
	s.logger.Warn("referee case opened by the match engine",
		slog.Int("match_id", match.ID),
		slog.Int("case_id", c.ID),
		slog.String("case_type", string(caseType)))
	*pending = append(*pending, events.New(events.TypeCaseOpened, events.CaseOpenedPayload{
		CaseID:   c.ID,
		MatchID:  match.ID,
		CaseType: string(caseType),
	}))
	return nil
}

// complete переводит матч в завершённое состояние. Рейтинги применяются вне
// транзакции матча: см. afterAdvance.
func (s *matchService) complete(ctx context.Context, tx *sql.Tx, match *models.Match, winnerSlot int) error {
	winnerID := match.Player1ID
	if winnerSlot == 2 {
		winnerID = match.Player2ID
	}
	if winnerSlot != 0 {
		match.WinnerID = &winnerID
	}
	match.Status = models.MatchStatusCompleted
	match.CurrentStage = models.StageComplete
	return s.appendState(ctx, tx, match.ID, match.CurrentStage, statePayload{
		Action:   "match_completed",
		PlayerID: winnerID,
	})
}

// afterAdvance публикует события и применяет рейтинги после фиксации
// транзакции перехода. Отказ пересчёта (например, залоченный сезон) не
// откатывает матч: он остаётся завершённым с rating_applied = false.
func (s *matchService) afterAdvance(ctx context.Context, match *models.Match) {
	s.publishStage(match)
	if match.Status != models.MatchStatusCompleted || match.RatingApplied {
		return
	}

	s.bus.Publish(events.New(events.TypeMatchDecided, events.MatchDecidedPayload{
		MatchID:   match.ID,
		SeasonID:  match.SeasonID,
		GuildID:   match.GuildID,
		Player1ID: match.Player1ID,
		Player2ID: match.Player2ID,
		WinnerID:  match.WinnerID,
		Format:    string(match.Format),
	}))

	s.applyRatings(ctx, match.ID)
}

// applyRatings применяет рейтинги под тем же per-match замком, что и
// остальные операции. Состояние перечитывается из строки: аннуляция,
// успевшая между фиксацией завершения и этим вызовом, подавляет запись.
func (s *matchService) applyRatings(ctx context.Context, matchID int) {
	_, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if match.Status != models.MatchStatusCompleted || match.RatingApplied {
			return nil
		}
		if err := s.ratings.ApplyMatchResult(ctx, match); err != nil {
			return err
		}
		match.RatingApplied = true
		return nil
	})
	if err != nil {
		s.logger.Error("failed to apply match ratings, match left pending",
			slog.Int("match_id", matchID),
			slog.Any("error", err))
	}
}

func (s *matchService) Withdraw(ctx context.Context, matchID, playerID int) (*models.Match, error) {
	var cancelled bool
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if err := requireParticipant(match, playerID); err != nil {
			return err
		}
		if match.IsTerminal() {
			return ErrMatchTerminal
		}

		withdrawn, err := s.listActions(ctx, matchID, "withdraw")
		if err != nil {
			return err
		}
		if withdrawn[playerID] {
			return nil
		}
		if err := s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{Action: "withdraw", PlayerID: playerID}); err != nil {
			return err
		}
		withdrawn[playerID] = true

		// Отмена по обоюдному отказу: рейтинги не трогаются.
		if withdrawn[match.Player1ID] && withdrawn[match.Player2ID] {
			reason := "both players withdrew"
			match.Status = models.MatchStatusCancelled
			match.CurrentStage = models.StageCancelled
			match.AnnulReason = &reason
			cancelled = true
			return s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{Action: "match_cancelled", Detail: reason})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cancelled {
		s.publishStage(match)
		s.bus.Publish(events.New(events.TypeMatchAnnulled, events.MatchAnnulledPayload{
			MatchID: match.ID,
			GuildID: match.GuildID,
			Reason:  *match.AnnulReason,
		}))
	}
	return match, nil
}

func (s *matchService) AnnulMatch(ctx context.Context, matchID, refereeID int, reason string) (*models.Match, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: annul reason is required", ErrValidationFailed)
	}
	if err := s.requireCapability(ctx, refereeID, models.ResolutionAnnulMatch); err != nil {
		return nil, err
	}
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if match.Status == models.MatchStatusCancelled {
			return ErrMatchTerminal
		}
		// Завершённый матч ещё можно аннулировать, пока рейтинги
		// не применены; после применения он неизменяем.
		if match.RatingApplied {
			return fmt.Errorf("%w: ratings already applied", ErrPreconditionNotMet)
		}
		match.Status = models.MatchStatusCancelled
		match.CurrentStage = models.StageCancelled
		match.WinnerID = nil
		match.AnnulReason = &reason
		match.RefereeID = &refereeID
		return s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{
			Action:    "match_annulled",
			RefereeID: refereeID,
			Detail:    reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishStage(match)
	s.bus.Publish(events.New(events.TypeMatchAnnulled, events.MatchAnnulledPayload{
		MatchID: match.ID,
		GuildID: match.GuildID,
		Reason:  reason,
	}))
	return match, nil
}

func (s *matchService) RefereeConfirmGame(ctx context.Context, matchID, gameNumber, refereeID int) (*models.Match, error) {
	if err := s.requireCapability(ctx, refereeID, models.ResolutionModifyResults); err != nil {
		return nil, err
	}
	var pending []events.Event
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if err := requireStage(match, models.StageResultConfirmation); err != nil {
			return err
		}
		result, err := s.resultRepo.Get(ctx, tx, matchID, gameNumber)
		if err != nil {
			return err
		}
		if result.Confirmed() {
			return nil
		}
		result.RefereeConfirmedBy = &refereeID
		if err := s.resultRepo.UpdateConfirmation(ctx, tx, result); err != nil {
			return err
		}
		match.RefereeID = &refereeID
		if err := s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{
			Action:     "result_confirmed_by_referee",
			RefereeID:  refereeID,
			GameNumber: gameNumber,
		}); err != nil {
			return err
		}
		return s.advance(ctx, tx, match, &pending)
	})
	if err != nil {
		return nil, err
	}
	s.publishPending(pending)
	s.afterAdvance(ctx, match)
	return match, nil
}

func (s *matchService) ModifyGameResult(ctx context.Context, matchID, gameNumber, refereeID int, input GameReportInput) (*models.Match, error) {
	if err := validateReport(input); err != nil {
		return nil, err
	}
	var pending []events.Event
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if match.IsTerminal() && match.RatingApplied {
			// Матч с применёнными рейтингами неизменяем.
			return fmt.Errorf("%w: ratings already applied", ErrPreconditionNotMet)
		}
		result, err := s.resultRepo.Get(ctx, tx, matchID, gameNumber)
		if err != nil {
			return err
		}

		fresh, err := s.buildResult(ctx, tx, match, input)
		if err != nil {
			return err
		}
		result.Player1Time = fresh.Player1Time
		result.Player1Restarts = fresh.Player1Restarts
		result.Player1Penalty = fresh.Player1Penalty
		result.Player1FinalTime = fresh.Player1FinalTime
		result.Player2Time = fresh.Player2Time
		result.Player2Restarts = fresh.Player2Restarts
		result.Player2Penalty = fresh.Player2Penalty
		result.Player2FinalTime = fresh.Player2FinalTime
		result.RefereeConfirmedBy = &refereeID
		result.Notes = input.Notes
		if err := s.resultRepo.UpdateFinalTimes(ctx, tx, result); err != nil {
			return err
		}

		match.RefereeID = &refereeID
		if err := s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{
			Action:     "result_modified_by_referee",
			RefereeID:  refereeID,
			GameNumber: gameNumber,
		}); err != nil {
			return err
		}

		if match.CurrentStage == models.StageResultConfirmation {
			return s.advance(ctx, tx, match, &pending)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishPending(pending)
	s.afterAdvance(ctx, match)
	return match, nil
}

func (s *matchService) ReplayGame(ctx context.Context, matchID, gameNumber, refereeID int) (*models.Match, error) {
	match, err := s.withMatch(ctx, matchID, func(tx *sql.Tx, match *models.Match) error {
		if match.IsTerminal() && match.RatingApplied {
			return fmt.Errorf("%w: ratings already applied", ErrPreconditionNotMet)
		}
		if err := s.resultRepo.Delete(ctx, tx, matchID, gameNumber); err != nil {
			return err
		}
		match.Status = models.MatchStatusActive
		match.WinnerID = nil
		match.CurrentGame = gameNumber
		match.CurrentStage = models.StageGamePreparation
		match.RefereeID = &refereeID
		return s.appendState(ctx, tx, matchID, match.CurrentStage, statePayload{
			Action:     "game_replay_ordered",
			RefereeID:  refereeID,
			GameNumber: gameNumber,
		})
	})
	if err != nil {
		return nil, err
	}
	s.publishStage(match)
	return match, nil
}

func (s *matchService) ContinueMatch(ctx context.Context, matchID int) error {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	if match.IsTerminal() {
		return ErrMatchTerminal
	}
	s.syncTimer(match)
	return nil
}
