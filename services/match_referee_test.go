package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/duel-system/events"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
)

type fakeMatchRepo struct {
	repositories.MatchRepository
	match *models.Match
}

func (f *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	if f.match == nil || f.match.ID != id {
		return nil, repositories.ErrMatchNotFound
	}
	m := *f.match
	return &m, nil
}

func (f *fakeMatchRepo) Update(ctx context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	f.match = match
	return nil
}

type fakeStateRepo struct {
	repositories.MatchStateRepository
	appended int
}

func (f *fakeStateRepo) Append(ctx context.Context, _ repositories.SQLExecutor, state *models.MatchState) error {
	f.appended++
	return nil
}

type fakeRefereeRepo struct {
	repositories.RefereeRepository
	referee *models.Referee
}

func (f *fakeRefereeRepo) GetByID(ctx context.Context, _ repositories.SQLExecutor, id int) (*models.Referee, error) {
	if f.referee == nil || f.referee.ID != id {
		return nil, repositories.ErrRefereeNotFound
	}
	return f.referee, nil
}

type recordingRatingService struct {
	RatingService
	applied int
}

func (r *recordingRatingService) ApplyMatchResult(ctx context.Context, match *models.Match) error {
	r.applied++
	return nil
}

type matchFixture struct {
	svc      *matchService
	matches  *fakeMatchRepo
	referees *fakeRefereeRepo
	ratings  *recordingRatingService
}

func newMatchFixture(match *models.Match, referee *models.Referee) *matchFixture {
	matches := &fakeMatchRepo{match: match}
	referees := &fakeRefereeRepo{referee: referee}
	ratings := &recordingRatingService{}
	svc := NewMatchService(
		nil,
		matches,
		&fakeStateRepo{},
		nil,
		nil,
		nil,
		nil,
		referees,
		ratings,
		events.NewBus(testLogger()),
		testLogger(),
		nil,
		StageWindows{},
	)
	return &matchFixture{
		svc:      svc.(*matchService),
		matches:  matches,
		referees: referees,
		ratings:  ratings,
	}
}

func completedMatch() *models.Match {
	winner := 10
	return &models.Match{
		ID:           7,
		SeasonID:     1,
		Player1ID:    10,
		Player2ID:    20,
		Status:       models.MatchStatusCompleted,
		CurrentStage: models.StageComplete,
		WinnerID:     &winner,
	}
}

func activeReferee(annul, modify bool) *models.Referee {
	return &models.Referee{
		ID:               3,
		IsActive:         true,
		CanAnnulMatches:  annul,
		CanModifyResults: modify,
	}
}

func TestAnnulMatchRequiresCapability(t *testing.T) {
	f := newMatchFixture(completedMatch(), activeReferee(false, true))

	_, err := f.svc.AnnulMatch(context.Background(), 7, 3, "collusion")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if f.matches.match.Status != models.MatchStatusCompleted {
		t.Fatalf("denied annulment must not touch the match, status=%s", f.matches.match.Status)
	}
}

func TestAnnulMatchInactiveReferee(t *testing.T) {
	referee := activeReferee(true, true)
	referee.IsActive = false
	f := newMatchFixture(completedMatch(), referee)

	_, err := f.svc.AnnulMatch(context.Background(), 7, 3, "collusion")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("inactive referee holds no capabilities, got %v", err)
	}
}

func TestRefereeConfirmGameRequiresCapability(t *testing.T) {
	f := newMatchFixture(completedMatch(), activeReferee(true, false))

	_, err := f.svc.RefereeConfirmGame(context.Background(), 7, 1, 3)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestAnnulMatchSuppressesPendingRatings(t *testing.T) {
	// Завершённый матч с неприменёнными рейтингами аннулируется; последующий
	// отложенный пересчёт обязан увидеть отмену и ничего не записать.
	f := newMatchFixture(completedMatch(), activeReferee(true, false))

	annulled, err := f.svc.AnnulMatch(context.Background(), 7, 3, "draft link shared early")
	if err != nil {
		t.Fatalf("AnnulMatch: %v", err)
	}
	if annulled.Status != models.MatchStatusCancelled || annulled.WinnerID != nil {
		t.Fatalf("annulled match must be cancelled without a winner: %+v", annulled)
	}

	f.svc.applyRatings(context.Background(), 7)
	if f.ratings.applied != 0 {
		t.Fatalf("annulled match must not reach the rating engine, applied=%d", f.ratings.applied)
	}
	if f.matches.match.RatingApplied {
		t.Fatal("annulled match must stay without applied ratings")
	}
}

func TestApplyRatingsMarksCompletedMatch(t *testing.T) {
	f := newMatchFixture(completedMatch(), activeReferee(true, true))

	f.svc.applyRatings(context.Background(), 7)
	if f.ratings.applied != 1 {
		t.Fatalf("completed match must be rated exactly once, applied=%d", f.ratings.applied)
	}
	if !f.matches.match.RatingApplied {
		t.Fatal("rated match must be flagged")
	}

	// Повторный вызов идемпотентен.
	f.svc.applyRatings(context.Background(), 7)
	if f.ratings.applied != 1 {
		t.Fatalf("rating application must be idempotent, applied=%d", f.ratings.applied)
	}
}

func TestAnnulMatchRejectsAppliedRatings(t *testing.T) {
	match := completedMatch()
	match.RatingApplied = true
	f := newMatchFixture(match, activeReferee(true, false))

	_, err := f.svc.AnnulMatch(context.Background(), 7, 3, "late dispute")
	if !errors.Is(err, ErrPreconditionNotMet) {
		t.Fatalf("applied ratings make the match immutable, got %v", err)
	}
}
