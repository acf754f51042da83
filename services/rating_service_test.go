package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Dosada05/duel-system/events"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
)

type fakeSeasonRepo struct {
	repositories.SeasonRepository
	season *models.Season
}

func (f *fakeSeasonRepo) GetByID(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Season, error) {
	if f.season == nil || f.season.ID != id {
		return nil, repositories.ErrSeasonNotFound
	}
	return f.season, nil
}

type fakeRatingRepo struct {
	repositories.RatingRepository
	rows    map[int]*models.Rating
	creates int
	updates int
}

func (f *fakeRatingRepo) GetForUpdate(ctx context.Context, _ repositories.SQLExecutor, playerID, seasonID int) (*models.Rating, error) {
	rating, ok := f.rows[playerID]
	if !ok || rating.SeasonID != seasonID {
		return nil, repositories.ErrRatingNotFound
	}
	return rating, nil
}

func (f *fakeRatingRepo) Create(ctx context.Context, _ repositories.SQLExecutor, rating *models.Rating) error {
	if _, ok := f.rows[rating.PlayerID]; ok {
		return repositories.ErrRatingConflict
	}
	f.rows[rating.PlayerID] = rating
	f.creates++
	return nil
}

func (f *fakeRatingRepo) Update(ctx context.Context, _ repositories.SQLExecutor, rating *models.Rating) error {
	f.rows[rating.PlayerID] = rating
	f.updates++
	return nil
}

func newRatingFixture(season *models.Season) (RatingService, *fakeRatingRepo) {
	ratings := &fakeRatingRepo{rows: make(map[int]*models.Rating)}
	seasons := &fakeSeasonRepo{season: season}
	svc := NewRatingService(nil, ratings, seasons, events.NewBus(testLogger()), testLogger(), time.Hour, nil)
	return svc, ratings
}

func testSeason(locked bool) *models.Season {
	return &models.Season{
		ID:                      1,
		IsActive:                true,
		RatingCalculationLocked: locked,
		Tau:                     0.5,
		InitialRating:           1500,
		InitialRD:               350,
		InitialVolatility:       0.06,
	}
}

func decidedMatch(winnerID int) *models.Match {
	return &models.Match{
		ID:        7,
		SeasonID:  1,
		Player1ID: 10,
		Player2ID: 20,
		Status:    models.MatchStatusCompleted,
		WinnerID:  &winnerID,
	}
}

func TestApplyMatchResultSeasonLocked(t *testing.T) {
	svc, ratings := newRatingFixture(testSeason(true))

	err := svc.ApplyMatchResult(context.Background(), decidedMatch(10))
	if !errors.Is(err, ErrSeasonRatingLocked) {
		t.Fatalf("expected ErrSeasonRatingLocked, got %v", err)
	}
	if ratings.creates != 0 || ratings.updates != 0 {
		t.Fatalf("locked season must leave ratings untouched: creates=%d updates=%d", ratings.creates, ratings.updates)
	}
}

func TestApplyMatchResultInactiveSeason(t *testing.T) {
	season := testSeason(false)
	season.IsActive = false
	svc, ratings := newRatingFixture(season)

	err := svc.ApplyMatchResult(context.Background(), decidedMatch(10))
	if !errors.Is(err, ErrSeasonRatingLocked) {
		t.Fatalf("expected ErrSeasonRatingLocked, got %v", err)
	}
	if ratings.updates != 0 {
		t.Fatalf("inactive season must leave ratings untouched: updates=%d", ratings.updates)
	}
}

func TestApplyMatchResultRejectsForeignWinner(t *testing.T) {
	svc, ratings := newRatingFixture(testSeason(false))

	err := svc.ApplyMatchResult(context.Background(), decidedMatch(99))
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for a non-participant winner, got %v", err)
	}
	if ratings.creates != 0 || ratings.updates != 0 {
		t.Fatalf("rejected match must leave ratings untouched: creates=%d updates=%d", ratings.creates, ratings.updates)
	}
}

func TestApplyMatchResultDecisiveWin(t *testing.T) {
	svc, ratings := newRatingFixture(testSeason(false))

	if err := svc.ApplyMatchResult(context.Background(), decidedMatch(10)); err != nil {
		t.Fatalf("ApplyMatchResult: %v", err)
	}
	if ratings.creates != 2 {
		t.Fatalf("expected lazily created rows for both players, got %d", ratings.creates)
	}
	if ratings.updates != 2 {
		t.Fatalf("expected both rows updated, got %d", ratings.updates)
	}

	winner, loser := ratings.rows[10], ratings.rows[20]
	if winner.Rating <= 1500 || winner.RatingChange <= 0 {
		t.Fatalf("winner must gain rating: rating=%.2f change=%.2f", winner.Rating, winner.RatingChange)
	}
	if loser.Rating >= 1500 || loser.RatingChange >= 0 {
		t.Fatalf("loser must lose rating: rating=%.2f change=%.2f", loser.Rating, loser.RatingChange)
	}
	if winner.GamesPlayed != 1 || winner.Wins != 1 || loser.Losses != 1 {
		t.Fatalf("counters off: winner=%+v loser=%+v", winner, loser)
	}
}

func TestApplyMatchResultDraw(t *testing.T) {
	svc, ratings := newRatingFixture(testSeason(false))

	match := decidedMatch(10)
	match.WinnerID = nil
	if err := svc.ApplyMatchResult(context.Background(), match); err != nil {
		t.Fatalf("ApplyMatchResult: %v", err)
	}

	p1, p2 := ratings.rows[10], ratings.rows[20]
	if p1.Draws != 1 || p2.Draws != 1 {
		t.Fatalf("draw must count for both players: p1=%+v p2=%+v", p1, p2)
	}
	// Равные стартовые рейтинги: ничья почти не сдвигает рейтинг.
	if math.Abs(p1.Rating-1500) > 1 || math.Abs(p2.Rating-1500) > 1 {
		t.Fatalf("draw between equals must not move ratings: p1=%.2f p2=%.2f", p1.Rating, p2.Rating)
	}
}
