// Package events decouples external collaborators (notifications, security
// scoring, achievements) from the match state machine: the core publishes
// after a transition commits, subscribers react independently, and a failing
// subscriber never rolls back the transition.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeMatchStageChanged Type = "match.stage_changed"
	TypeMatchDecided      Type = "match.decided"
	TypeMatchAnnulled     Type = "match.annulled"
	TypeRatingUpdated     Type = "rating.updated"
	TypeSeasonEnding      Type = "season.ending"
	TypeSeasonEnded       Type = "season.ended"
	TypeCaseOpened        Type = "case.opened"
)

type Event struct {
	ID         string      `json:"id"`
	Type       Type        `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

func New(t Type, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type MatchStageChangedPayload struct {
	MatchID int    `json:"match_id"`
	GuildID int64  `json:"guild_id"`
	Stage   string `json:"stage"`
}

type MatchDecidedPayload struct {
	MatchID   int    `json:"match_id"`
	SeasonID  int    `json:"season_id"`
	GuildID   int64  `json:"guild_id"`
	Player1ID int    `json:"player1_id"`
	Player2ID int    `json:"player2_id"`
	WinnerID  *int   `json:"winner_id,omitempty"`
	Format    string `json:"format"`
}

type MatchAnnulledPayload struct {
	MatchID int    `json:"match_id"`
	GuildID int64  `json:"guild_id"`
	Reason  string `json:"reason"`
}

type RatingUpdatedPayload struct {
	PlayerID     int     `json:"player_id"`
	SeasonID     int     `json:"season_id"`
	Rating       float64 `json:"rating"`
	RatingChange float64 `json:"rating_change"`
}

type SeasonPayload struct {
	SeasonID int       `json:"season_id"`
	Name     string    `json:"name"`
	EndDate  time.Time `json:"end_date"`
}

type CaseOpenedPayload struct {
	CaseID   int    `json:"case_id"`
	MatchID  int    `json:"match_id"`
	CaseType string `json:"case_type"`
}

type Handler func(Event)

// Bus — простой in-process pub/sub. Публикация асинхронная:
// каждый обработчик получает событие в своей горутине.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]Handler
	all    []Handler
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[Type][]Handler),
		logger: logger,
	}
}

func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// SubscribeAll registers a handler for every event type (e.g. the Kafka
// publisher mirrors the whole stream).
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Type])+len(b.all))
	handlers = append(handlers, b.subs[e.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h := h
		go func() {
			defer func() {
				if p := recover(); p != nil {
					b.logger.Error("event handler panicked",
						slog.String("event_type", string(e.Type)),
						slog.Any("panic", p))
				}
			}()
			h(e)
		}()
	}
}
