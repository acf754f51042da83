// Package live раздаёт события матча подключённым по WebSocket зрителям.
// Комната = матч; клиенты подписываются на комнату по ID матча.
package live

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/Dosada05/duel-system/events"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	rooms  map[string]map[*Client]bool
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.logger.Debug("live client joined",
				slog.String("room", client.Room),
				slog.Int("room_size", len(h.rooms[client.Room])))
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			if roomClients, ok := h.rooms[client.Room]; ok {
				if _, joined := roomClients[client]; joined {
					client.closeSend()
					delete(roomClients, client)
					if len(roomClients) == 0 {
						delete(h.rooms, client.Room)
					}
					h.logger.Debug("live client left", slog.String("room", client.Room))
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToRoom отправляет сообщение всем клиентам комнаты. Клиент с
// переполненным каналом пропускается, а не блокирует остальных.
func (h *Hub) BroadcastToRoom(roomID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		return
	}

	msg.RoomID = roomID
	raw, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal live message", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	for client := range roomClients {
		client.trySend(raw)
	}
}

// HandleEvent транслирует события шины в комнату соответствующего матча.
// Подписывается на шину через bus.SubscribeAll.
func (h *Hub) HandleEvent(e events.Event) {
	matchID, ok := matchIDOf(e)
	if !ok {
		return
	}
	h.BroadcastToRoom(strconv.Itoa(matchID), Message{
		Type:    string(e.Type),
		Payload: e.Payload,
	})
}

func matchIDOf(e events.Event) (int, bool) {
	switch p := e.Payload.(type) {
	case events.MatchStageChangedPayload:
		return p.MatchID, true
	case events.MatchDecidedPayload:
		return p.MatchID, true
	case events.MatchAnnulledPayload:
		return p.MatchID, true
	case events.CaseOpenedPayload:
		return p.MatchID, true
	default:
		return 0, false
	}
}
