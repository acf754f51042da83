package models

import (
	"encoding/json"
	"time"
)

type MatchFormat string

const (
	FormatBo1 MatchFormat = "bo1"
	FormatBo2 MatchFormat = "bo2"
	FormatBo3 MatchFormat = "bo3"
)

// GamesRequired возвращает число игр, результаты которых нужны для
// определения исхода матча данного формата.
func (f MatchFormat) GamesRequired() int {
	switch f {
	case FormatBo1:
		return 1
	case FormatBo2:
		return 2
	case FormatBo3:
		return 3
	}
	return 0
}

func (f MatchFormat) Valid() bool {
	return f.GamesRequired() > 0
}

type MatchStatus string

const (
	MatchStatusWaiting   MatchStatus = "waiting"
	MatchStatusActive    MatchStatus = "active"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCancelled MatchStatus = "cancelled"
)

// MatchStage — этап матча, соответствует ENUM в БД.
type MatchStage string

const (
	StageWaitingReadiness     MatchStage = "waiting_readiness"
	StageDraftVerification    MatchStage = "draft_verification"
	StageFirstPlayerSelection MatchStage = "first_player_selection"
	StageGamePreparation      MatchStage = "game_preparation"
	StageGameInProgress       MatchStage = "game_in_progress"
	StageResultConfirmation   MatchStage = "result_confirmation"
	StageComplete             MatchStage = "complete"
	StageCancelled            MatchStage = "cancelled"
)

func (s MatchStage) Terminal() bool {
	return s == StageComplete || s == StageCancelled
}

// Timed reports whether the stage is bounded by an inactivity window.
func (s MatchStage) Timed() bool {
	return s == StageGamePreparation || s == StageGameInProgress
}

// Match — одиночный матч между двумя игроками. Мутируется исключительно
// операциями переходов и решениями судьи; никогда не удаляется.
type Match struct {
	ID       int   `json:"id"`
	SeasonID int   `json:"season_id"`
	GuildID  int64 `json:"guild_id"`

	ChannelID      int64  `json:"channel_id"`
	ThreadID       *int64 `json:"thread_id,omitempty"`
	VoiceChannelID *int64 `json:"voice_channel_id,omitempty"`

	Player1ID int `json:"player1_id"`
	Player2ID int `json:"player2_id"`

	Format       MatchFormat `json:"format"`
	Status       MatchStatus `json:"status"`
	CurrentStage MatchStage  `json:"current_stage"`
	CurrentGame  int         `json:"current_game"`

	DraftLink     *string `json:"draft_link,omitempty"`
	FirstPlayerID *int    `json:"first_player_id,omitempty"`
	RefereeID     *int    `json:"referee_id,omitempty"`

	WinnerID      *int    `json:"winner_id,omitempty"`
	AnnulReason   *string `json:"annul_reason,omitempty"`
	RatingApplied bool    `json:"rating_applied"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Связанные сущности (не мапятся напрямую)
	Player1     *Player       `json:"player1,omitempty"`
	Player2     *Player       `json:"player2,omitempty"`
	GameResults []*GameResult `json:"game_results,omitempty"`
	States      []*MatchState `json:"states,omitempty"`
}

// HasPlayer reports whether the given player participates in the match.
func (m *Match) HasPlayer(playerID int) bool {
	return m.Player1ID == playerID || m.Player2ID == playerID
}

// Opponent returns the other participant's id.
func (m *Match) Opponent(playerID int) int {
	if m.Player1ID == playerID {
		return m.Player2ID
	}
	return m.Player1ID
}

func (m *Match) IsTerminal() bool {
	return m.Status == MatchStatusCompleted || m.Status == MatchStatusCancelled
}

// MatchState — append-only журнал переходов. Каноническая история матча:
// одна строка на переход, никогда не изменяется и не удаляется.
type MatchState struct {
	ID      int             `json:"id"`
	MatchID int             `json:"match_id"`
	Stage   MatchStage      `json:"stage"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Notes   *string         `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
