package models

import "time"

// GameResult — результат одной игры внутри матча. Времена каждого игрока
// вводит его соперник; обе стороны должны подтвердить результат
// (или судья перекрывает подтверждение).
type GameResult struct {
	ID         int `json:"id"`
	MatchID    int `json:"match_id"`
	GameNumber int `json:"game_number"`

	Player1Time      float64 `json:"player1_time"`
	Player1Restarts  int     `json:"player1_restarts"`
	Player1Penalty   float64 `json:"player1_penalty"`
	Player1FinalTime float64 `json:"player1_final_time"`

	Player2Time      float64 `json:"player2_time"`
	Player2Restarts  int     `json:"player2_restarts"`
	Player2Penalty   float64 `json:"player2_penalty"`
	Player2FinalTime float64 `json:"player2_final_time"`

	Player1Confirmed bool `json:"player1_confirmed"`
	Player2Confirmed bool `json:"player2_confirmed"`
	// Set when a referee confirmed the game instead of the players.
	RefereeConfirmedBy *int `json:"referee_confirmed_by,omitempty"`

	Notes *string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Confirmed — оба игрока подтвердили, либо подтверждение перекрыто судьёй.
func (g *GameResult) Confirmed() bool {
	if g.RefereeConfirmedBy != nil {
		return true
	}
	return g.Player1Confirmed && g.Player2Confirmed
}

// WinnerSlot returns 1 or 2 for the player with the lower final time,
// or 0 when the game is tied.
func (g *GameResult) WinnerSlot() int {
	switch {
	case g.Player1FinalTime < g.Player2FinalTime:
		return 1
	case g.Player2FinalTime < g.Player1FinalTime:
		return 2
	}
	return 0
}
