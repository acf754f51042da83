package services

import (
	"testing"

	"github.com/Dosada05/duel-system/models"
)

func confirmedGame(game int, t1, t2 float64) *models.GameResult {
	return &models.GameResult{
		GameNumber:       game,
		Player1FinalTime: t1,
		Player2FinalTime: t2,
		Player1Confirmed: true,
		Player2Confirmed: true,
	}
}

func TestDecideOutcomeBo1(t *testing.T) {
	slot, decided, referee := decideOutcome(models.FormatBo1, nil)
	if decided || referee || slot != 0 {
		t.Fatalf("no games: expected undecided, got slot=%d decided=%v referee=%v", slot, decided, referee)
	}

	slot, decided, referee = decideOutcome(models.FormatBo1, []*models.GameResult{confirmedGame(1, 100, 110)})
	if !decided || referee || slot != 1 {
		t.Fatalf("expected player 1 win, got slot=%d decided=%v referee=%v", slot, decided, referee)
	}

	_, decided, referee = decideOutcome(models.FormatBo1, []*models.GameResult{confirmedGame(1, 100, 100)})
	if decided || !referee {
		t.Fatal("tied single game must escalate to a referee")
	}
}

func TestDecideOutcomeBo1IgnoresUnconfirmed(t *testing.T) {
	unconfirmed := &models.GameResult{GameNumber: 1, Player1FinalTime: 100, Player2FinalTime: 110, Player1Confirmed: true}
	_, decided, referee := decideOutcome(models.FormatBo1, []*models.GameResult{unconfirmed})
	if decided || referee {
		t.Fatal("unconfirmed game must not decide the match")
	}
}

func TestDecideOutcomeBo2SumOfTimes(t *testing.T) {
	// Игрок 2 выигрывает первую игру, но по сумме времён побеждает игрок 1.
	results := []*models.GameResult{
		confirmedGame(1, 105, 100),
		confirmedGame(2, 90, 110),
	}
	slot, decided, referee := decideOutcome(models.FormatBo2, results)
	if !decided || referee || slot != 1 {
		t.Fatalf("expected player 1 by total time, got slot=%d decided=%v referee=%v", slot, decided, referee)
	}

	_, decided, _ = decideOutcome(models.FormatBo2, results[:1])
	if decided {
		t.Fatal("bo2 needs both games before deciding")
	}

	tied := []*models.GameResult{
		confirmedGame(1, 100, 110),
		confirmedGame(2, 110, 100),
	}
	_, decided, referee = decideOutcome(models.FormatBo2, tied)
	if decided || !referee {
		t.Fatal("equal total times must escalate to a referee")
	}
}

func TestDecideOutcomeBo3EarlyFinish(t *testing.T) {
	twoWins := []*models.GameResult{
		confirmedGame(1, 100, 110),
		confirmedGame(2, 95, 120),
	}
	slot, decided, referee := decideOutcome(models.FormatBo3, twoWins)
	if !decided || referee || slot != 1 {
		t.Fatalf("two wins finish a bo3, got slot=%d decided=%v referee=%v", slot, decided, referee)
	}

	split := []*models.GameResult{
		confirmedGame(1, 100, 110),
		confirmedGame(2, 120, 95),
	}
	_, decided, _ = decideOutcome(models.FormatBo3, split)
	if decided {
		t.Fatal("1-1 after two games must continue to game 3")
	}
}

func TestDecideOutcomeBo3TiedGames(t *testing.T) {
	// Одна победа у каждого и ничья в третьей игре: исход решает судья.
	results := []*models.GameResult{
		confirmedGame(1, 100, 110),
		confirmedGame(2, 120, 95),
		confirmedGame(3, 100, 100),
	}
	_, decided, referee := decideOutcome(models.FormatBo3, results)
	if decided || !referee {
		t.Fatal("1-1 with a drawn third game must escalate to a referee")
	}

	// Две ничьи и одна победа: победитель определён.
	results = []*models.GameResult{
		confirmedGame(1, 100, 100),
		confirmedGame(2, 100, 100),
		confirmedGame(3, 90, 100),
	}
	slot, decided, referee := decideOutcome(models.FormatBo3, results)
	if !decided || referee || slot != 1 {
		t.Fatalf("single decisive game must decide, got slot=%d decided=%v referee=%v", slot, decided, referee)
	}
}

func TestSameReport(t *testing.T) {
	existing := &models.GameResult{
		Player1Time:     120,
		Player1Restarts: 1,
		Player2Time:     118,
		Player2Restarts: 3,
	}
	identical := GameReportInput{Player1Time: 120, Player1Restarts: 1, Player2Time: 118, Player2Restarts: 3}
	if !sameReport(existing, identical) {
		t.Fatal("identical resubmission must match")
	}
	different := identical
	different.Player2Restarts = 2
	if sameReport(existing, different) {
		t.Fatal("diverging resubmission must not match")
	}
}

func TestFallbackPenaltySettingsValid(t *testing.T) {
	if err := fallbackPenaltySettings.Validate(); err != nil {
		t.Fatalf("fallback settings must validate: %v", err)
	}
	if got := fallbackPenaltySettings.Penalty(1); got != 30 {
		t.Fatalf("expected 30s for the first restart, got %v", got)
	}
	if got := fallbackPenaltySettings.Penalty(9); got != 150 {
		t.Fatalf("restarts past the last tier use the last tier, got %v", got)
	}
}
