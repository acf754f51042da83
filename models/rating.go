package models

import "time"

// Rating — строка рейтинга (player, season), уникальная пара.
// Мутируется только рейтинговым движком.
type Rating struct {
	ID       int `json:"id"`
	PlayerID int `json:"player_id"`
	SeasonID int `json:"season_id"`

	Rating     float64 `json:"rating"`
	RD         float64 `json:"rd"`
	Volatility float64 `json:"volatility"`

	GamesPlayed int `json:"games_played"`
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
	Draws       int `json:"draws"`

	// Rating change from the last decided match.
	RatingChange float64 `json:"rating_change"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Связанные сущности (не мапятся напрямую)
	Player *Player `json:"player,omitempty"`
}

func (r *Rating) WinRate() float64 {
	if r.GamesPlayed == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.GamesPlayed)
}
