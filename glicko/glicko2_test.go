package glicko

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// Worked example from Glickman's paper: a 1500/200 player beating a 1400/30
// opponent and losing to 1550/100 and 1700/300 opponents.
func TestUpdatePaperExample(t *testing.T) {
	player := Rating{Rating: 1500, RD: 200, Volatility: 0.06}
	results := []Result{
		{Opponent: Rating{Rating: 1400, RD: 30, Volatility: 0.06}, Score: ScoreWin},
		{Opponent: Rating{Rating: 1550, RD: 100, Volatility: 0.06}, Score: ScoreLoss},
		{Opponent: Rating{Rating: 1700, RD: 300, Volatility: 0.06}, Score: ScoreLoss},
	}

	updated, err := Update(DefaultParams(), player, results)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if !almostEqual(updated.Rating, 1464.06, 0.5) {
		t.Fatalf("expected rating near 1464.06, got %.2f", updated.Rating)
	}
	if !almostEqual(updated.RD, 151.52, 0.5) {
		t.Fatalf("expected RD near 151.52, got %.2f", updated.RD)
	}
	if !almostEqual(updated.Volatility, 0.05999, 0.0005) {
		t.Fatalf("expected volatility near 0.05999, got %.5f", updated.Volatility)
	}
}

func TestUpdatePairDecisiveWin(t *testing.T) {
	winner, loser, err := UpdatePair(DefaultParams(), Default(), Default(), ScoreWin)
	if err != nil {
		t.Fatalf("update pair: %v", err)
	}

	if winner.Rating <= 1500 {
		t.Fatalf("winner rating should rise above 1500, got %.2f", winner.Rating)
	}
	if loser.Rating >= 1500 {
		t.Fatalf("loser rating should fall below 1500, got %.2f", loser.Rating)
	}
	if winner.RD >= DefaultRD || loser.RD >= DefaultRD {
		t.Fatalf("both RDs should shrink after a game, got %.2f and %.2f", winner.RD, loser.RD)
	}
}

func TestUpdatePairDrawIsSymmetric(t *testing.T) {
	a, b, err := UpdatePair(DefaultParams(), Default(), Default(), ScoreDraw)
	if err != nil {
		t.Fatalf("update pair: %v", err)
	}

	if !almostEqual(a.Rating, 1500, 1e-9) || !almostEqual(b.Rating, 1500, 1e-9) {
		t.Fatalf("a draw between equals must not move ratings, got %.4f and %.4f", a.Rating, b.Rating)
	}
	if !almostEqual(a.RD, b.RD, 1e-9) {
		t.Fatalf("expected identical RDs, got %.4f and %.4f", a.RD, b.RD)
	}
}

func TestDecayGrowsRD(t *testing.T) {
	player := Rating{Rating: 1620, RD: 80, Volatility: 0.06}
	decayed := Decay(player)

	if decayed.Rating != player.Rating {
		t.Fatalf("decay must not change the rating, got %.2f", decayed.Rating)
	}
	if decayed.RD <= player.RD {
		t.Fatalf("decay must grow RD, got %.2f from %.2f", decayed.RD, player.RD)
	}
	if decayed.Volatility != player.Volatility {
		t.Fatalf("decay must not change volatility, got %.4f", decayed.Volatility)
	}
}

func TestUpdateWithoutResultsDecays(t *testing.T) {
	player := Rating{Rating: 1500, RD: 200, Volatility: 0.06}
	updated, err := Update(DefaultParams(), player, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := Decay(player)
	if !almostEqual(updated.RD, want.RD, 1e-9) {
		t.Fatalf("empty update should equal decay: got RD %.4f, want %.4f", updated.RD, want.RD)
	}
}
