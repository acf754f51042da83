package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/duel-system/models"
)

// StageTimers отслеживает окна неактивности таймированных этапов.
// Один отменяемый таймер на матч; истечение не двигает и не проваливает
// матч, а поднимает судейский кейс через onExpire.
type StageTimers struct {
	mu       sync.Mutex
	timers   map[int]*time.Timer
	onExpire func(matchID int, stage models.MatchStage)
	logger   *slog.Logger
	stopped  bool
}

func NewStageTimers(logger *slog.Logger, onExpire func(matchID int, stage models.MatchStage)) *StageTimers {
	return &StageTimers{
		timers:   make(map[int]*time.Timer),
		onExpire: onExpire,
		logger:   logger,
	}
}

// Start arms the inactivity timer for a match, replacing any previous one.
func (t *StageTimers) Start(matchID int, stage models.MatchStage, window time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if prev, ok := t.timers[matchID]; ok {
		prev.Stop()
	}
	t.timers[matchID] = time.AfterFunc(window, func() {
		t.mu.Lock()
		delete(t.timers, matchID)
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return
		}
		t.logger.Warn("stage inactivity window expired",
			slog.Int("match_id", matchID),
			slog.String("stage", string(stage)))
		t.onExpire(matchID, stage)
	})
}

// Cancel disarms the match's timer. Called when the match advances past the
// timed stage or is annulled.
func (t *StageTimers) Cancel(matchID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[matchID]; ok {
		timer.Stop()
		delete(t.timers, matchID)
	}
}

// Stop disarms everything; used on shutdown.
func (t *StageTimers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
