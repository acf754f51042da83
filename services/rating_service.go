package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/duel-system/events"
	"github.com/Dosada05/duel-system/glicko"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
)

type RatingService interface {
	// GetRating возвращает рейтинг игрока в сезоне. Если игрок ещё не играл,
	// возвращается стартовый рейтинг сезона (без записи в базу).
	GetRating(ctx context.Context, playerID, seasonID int) (*models.Rating, error)
	GetLeaderboard(ctx context.Context, seasonID, limit, offset int) ([]*models.Rating, error)
	// ApplyMatchResult атомарно пересчитывает рейтинги обоих участников
	// решённого матча. winnerID == nil означает ничью.
	ApplyMatchResult(ctx context.Context, match *models.Match) error
	// ApplySeasonDecay увеличивает RD игроков, не игравших дольше периода
	// распада. Возвращает число затронутых строк.
	ApplySeasonDecay(ctx context.Context, seasonID int) (int, error)
}

type ratingService struct {
	db         *sql.DB
	ratingRepo repositories.RatingRepository
	seasonRepo repositories.SeasonRepository
	bus        *events.Bus
	logger     *slog.Logger

	decayInterval time.Duration
	now           func() time.Time
}

func NewRatingService(
	db *sql.DB,
	ratingRepo repositories.RatingRepository,
	seasonRepo repositories.SeasonRepository,
	bus *events.Bus,
	logger *slog.Logger,
	decayInterval time.Duration,
	now func() time.Time,
) RatingService {
	if now == nil {
		now = time.Now
	}
	return &ratingService{
		db:            db,
		ratingRepo:    ratingRepo,
		seasonRepo:    seasonRepo,
		bus:           bus,
		logger:        logger,
		decayInterval: decayInterval,
		now:           now,
	}
}

func (s *ratingService) GetRating(ctx context.Context, playerID, seasonID int) (*models.Rating, error) {
	rating, err := s.ratingRepo.Get(ctx, playerID, seasonID)
	if err == nil {
		return rating, nil
	}
	if !errors.Is(err, repositories.ErrRatingNotFound) {
		return nil, err
	}

	season, err := s.seasonRepo.GetByID(ctx, nil, seasonID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeasonNotFound) {
			return nil, ErrSeasonNotFound
		}
		return nil, err
	}
	return &models.Rating{
		PlayerID:   playerID,
		SeasonID:   seasonID,
		Rating:     season.InitialRating,
		RD:         season.InitialRD,
		Volatility: season.InitialVolatility,
	}, nil
}

func (s *ratingService) GetLeaderboard(ctx context.Context, seasonID, limit, offset int) ([]*models.Rating, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.ratingRepo.ListBySeason(ctx, seasonID, limit, offset)
}

func (s *ratingService) ApplyMatchResult(ctx context.Context, match *models.Match) error {
	if match.WinnerID != nil && *match.WinnerID != match.Player1ID && *match.WinnerID != match.Player2ID {
		return fmt.Errorf("%w: winner %d is not a participant of match %d", ErrIntegrity, *match.WinnerID, match.ID)
	}

	var updated [2]*models.Rating
	err := runInTxRetry(ctx, s.db, func(tx *sql.Tx) error {
		season, err := s.seasonRepo.GetByID(ctx, tx, match.SeasonID)
		if err != nil {
			if errors.Is(err, repositories.ErrSeasonNotFound) {
				return ErrSeasonNotFound
			}
			return err
		}
		if !season.AllowsRatingWrites() {
			return ErrSeasonRatingLocked
		}

		// Строки блокируются в порядке возрастания player_id, чтобы два
		// параллельных матча с общим игроком не взаимоблокировались.
		loID, hiID := match.Player1ID, match.Player2ID
		if loID > hiID {
			loID, hiID = hiID, loID
		}
		lo, err := s.lockOrCreate(ctx, tx, season, loID)
		if err != nil {
			return err
		}
		hi, err := s.lockOrCreate(ctx, tx, season, hiID)
		if err != nil {
			return err
		}

		r1, r2 := lo, hi
		if r1.PlayerID != match.Player1ID {
			r1, r2 = hi, lo
		}

		score := glicko.ScoreDraw
		switch {
		case match.WinnerID == nil:
		case *match.WinnerID == match.Player1ID:
			score = glicko.ScoreWin
		default:
			score = glicko.ScoreLoss
		}

		params := glicko.Params{Tau: season.Tau}
		before1 := glicko.Rating{Rating: r1.Rating, RD: r1.RD, Volatility: r1.Volatility}
		before2 := glicko.Rating{Rating: r2.Rating, RD: r2.RD, Volatility: r2.Volatility}
		after1, after2, err := glicko.UpdatePair(params, before1, before2, score)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIntegrity, err)
		}

		applyOutcome(r1, after1, score)
		applyOutcome(r2, after2, 1-score)

		if err := s.ratingRepo.Update(ctx, tx, lo); err != nil {
			return err
		}
		if err := s.ratingRepo.Update(ctx, tx, hi); err != nil {
			return err
		}
		updated[0], updated[1] = r1, r2
		return nil
	})
	if err != nil {
		return err
	}

	for _, rating := range updated {
		s.bus.Publish(events.New(events.TypeRatingUpdated, events.RatingUpdatedPayload{
			PlayerID:     rating.PlayerID,
			SeasonID:     rating.SeasonID,
			Rating:       rating.Rating,
			RatingChange: rating.RatingChange,
		}))
	}
	s.logger.Info("match ratings applied",
		slog.Int("match_id", match.ID),
		slog.Int("season_id", match.SeasonID),
		slog.Float64("player1_rating", updated[0].Rating),
		slog.Float64("player2_rating", updated[1].Rating))
	return nil
}

// lockOrCreate возвращает заблокированную строку рейтинга, создавая её со
// стартовыми значениями сезона при первом матче игрока.
func (s *ratingService) lockOrCreate(ctx context.Context, tx *sql.Tx, season *models.Season, playerID int) (*models.Rating, error) {
	rating, err := s.ratingRepo.GetForUpdate(ctx, tx, playerID, season.ID)
	if err == nil {
		return rating, nil
	}
	if !errors.Is(err, repositories.ErrRatingNotFound) {
		return nil, err
	}

	rating = &models.Rating{
		PlayerID:   playerID,
		SeasonID:   season.ID,
		Rating:     season.InitialRating,
		RD:         season.InitialRD,
		Volatility: season.InitialVolatility,
	}
	err = s.ratingRepo.Create(ctx, tx, rating)
	if errors.Is(err, repositories.ErrRatingConflict) {
		// Параллельная транзакция успела вставить строку первой.
		return s.ratingRepo.GetForUpdate(ctx, tx, playerID, season.ID)
	}
	if err != nil {
		return nil, err
	}
	return rating, nil
}

func applyOutcome(rating *models.Rating, after glicko.Rating, score float64) {
	rating.RatingChange = after.Rating - rating.Rating
	rating.Rating = after.Rating
	rating.RD = after.RD
	rating.Volatility = after.Volatility
	rating.GamesPlayed++
	switch score {
	case glicko.ScoreWin:
		rating.Wins++
	case glicko.ScoreLoss:
		rating.Losses++
	default:
		rating.Draws++
	}
}

func (s *ratingService) ApplySeasonDecay(ctx context.Context, seasonID int) (int, error) {
	now := s.now()
	decayed := 0
	err := runInTx(ctx, s.db, func(tx *sql.Tx) error {
		// Блокировка строки сезона сериализует запуски распада.
		season, err := s.seasonRepo.GetByIDForUpdate(ctx, tx, seasonID)
		if err != nil {
			if errors.Is(err, repositories.ErrSeasonNotFound) {
				return ErrSeasonNotFound
			}
			return err
		}
		if !season.AllowsRatingWrites() {
			return ErrSeasonRatingLocked
		}
		// Идемпотентность: повторный запуск внутри того же периода — no-op.
		if season.LastDecayAt != nil && now.Sub(*season.LastDecayAt) < s.decayInterval {
			return nil
		}

		cutoff := now.Add(-s.decayInterval)
		ratings, err := s.ratingRepo.ListForDecay(ctx, tx, seasonID, cutoff)
		if err != nil {
			return err
		}
		for _, rating := range ratings {
			after := glicko.Decay(glicko.Rating{
				Rating:     rating.Rating,
				RD:         rating.RD,
				Volatility: rating.Volatility,
			})
			rating.RD = after.RD
			if err := s.ratingRepo.Update(ctx, tx, rating); err != nil {
				return err
			}
		}
		decayed = len(ratings)
		return s.seasonRepo.SetLastDecayAt(ctx, tx, seasonID, now)
	})
	if err != nil {
		return 0, err
	}
	if decayed > 0 {
		s.logger.Info("season decay applied",
			slog.Int("season_id", seasonID),
			slog.Int("ratings_decayed", decayed))
	}
	return decayed, nil
}
