package models

import "testing"

func TestFormatGamesRequired(t *testing.T) {
	tests := []struct {
		format MatchFormat
		want   int
	}{
		{FormatBo1, 1},
		{FormatBo2, 2},
		{FormatBo3, 3},
		{MatchFormat("bo5"), 0},
		{MatchFormat(""), 0},
	}
	for _, tt := range tests {
		if got := tt.format.GamesRequired(); got != tt.want {
			t.Fatalf("%q: expected %d games, got %d", tt.format, tt.want, got)
		}
		if tt.format.Valid() != (tt.want > 0) {
			t.Fatalf("%q: Valid disagrees with GamesRequired", tt.format)
		}
	}
}

func TestStageClassification(t *testing.T) {
	terminal := map[MatchStage]bool{
		StageComplete:  true,
		StageCancelled: true,
	}
	timed := map[MatchStage]bool{
		StageGamePreparation: true,
		StageGameInProgress:  true,
	}
	all := []MatchStage{
		StageWaitingReadiness, StageDraftVerification, StageFirstPlayerSelection,
		StageGamePreparation, StageGameInProgress, StageResultConfirmation,
		StageComplete, StageCancelled,
	}
	for _, stage := range all {
		if stage.Terminal() != terminal[stage] {
			t.Fatalf("%s: Terminal() = %v", stage, stage.Terminal())
		}
		if stage.Timed() != timed[stage] {
			t.Fatalf("%s: Timed() = %v", stage, stage.Timed())
		}
	}
}

func TestMatchParticipants(t *testing.T) {
	m := &Match{Player1ID: 10, Player2ID: 20}
	if !m.HasPlayer(10) || !m.HasPlayer(20) {
		t.Fatal("participants not recognized")
	}
	if m.HasPlayer(30) {
		t.Fatal("non-participant recognized")
	}
	if got := m.Opponent(10); got != 20 {
		t.Fatalf("expected opponent 20, got %d", got)
	}
	if got := m.Opponent(20); got != 10 {
		t.Fatalf("expected opponent 10, got %d", got)
	}
}

func TestGameResultConfirmed(t *testing.T) {
	g := &GameResult{}
	if g.Confirmed() {
		t.Fatal("unconfirmed result reported as confirmed")
	}
	g.Player1Confirmed = true
	if g.Confirmed() {
		t.Fatal("one-sided confirmation must not suffice")
	}
	g.Player2Confirmed = true
	if !g.Confirmed() {
		t.Fatal("both players confirmed")
	}

	refID := 7
	override := &GameResult{RefereeConfirmedBy: &refID}
	if !override.Confirmed() {
		t.Fatal("referee override must confirm the result")
	}
}

func TestGameResultWinnerSlot(t *testing.T) {
	tests := []struct {
		t1, t2 float64
		want   int
	}{
		{100, 110, 1},
		{110, 100, 2},
		{100, 100, 0},
	}
	for _, tt := range tests {
		g := &GameResult{Player1FinalTime: tt.t1, Player2FinalTime: tt.t2}
		if got := g.WinnerSlot(); got != tt.want {
			t.Fatalf("times %v/%v: expected slot %d, got %d", tt.t1, tt.t2, tt.want, got)
		}
	}
}
