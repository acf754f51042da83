package services

import (
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/duel-system/models"
)

func TestMatchLocksSerializeSameMatch(t *testing.T) {
	locks := newMatchLocks()

	var mu sync.Mutex
	order := make([]int, 0, 100)

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(1)
			defer unlock()
			counter++
			mu.Lock()
			order = append(order, counter)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 serialized increments, got %d", counter)
	}
	locks.mu.Lock()
	remaining := len(locks.locks)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("lock map must be empty after release, %d entries left", remaining)
	}
}

func TestMatchLocksIndependentMatches(t *testing.T) {
	locks := newMatchLocks()

	unlock1 := locks.Lock(1)
	done := make(chan struct{})
	go func() {
		unlock2 := locks.Lock(2)
		unlock2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on match 2 must not wait for match 1")
	}
	unlock1()
}

func TestStageTimersExpiry(t *testing.T) {
	fired := make(chan int, 1)
	timers := NewStageTimers(testLogger(), func(matchID int, stage models.MatchStage) {
		fired <- matchID
	})
	defer timers.Stop()

	timers.Start(7, models.StageGameInProgress, 10*time.Millisecond)
	select {
	case id := <-fired:
		if id != 7 {
			t.Fatalf("expected match 7, got %d", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestStageTimersCancel(t *testing.T) {
	fired := make(chan int, 1)
	timers := NewStageTimers(testLogger(), func(matchID int, stage models.MatchStage) {
		fired <- matchID
	})
	defer timers.Stop()

	timers.Start(7, models.StageGamePreparation, 20*time.Millisecond)
	timers.Cancel(7)

	select {
	case <-fired:
		t.Fatal("cancelled timer must not fire")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestStageTimersRestartReplaces(t *testing.T) {
	fired := make(chan models.MatchStage, 2)
	timers := NewStageTimers(testLogger(), func(matchID int, stage models.MatchStage) {
		fired <- stage
	})
	defer timers.Stop()

	timers.Start(7, models.StageGamePreparation, 15*time.Millisecond)
	timers.Start(7, models.StageGameInProgress, 15*time.Millisecond)

	select {
	case stage := <-fired:
		if stage != models.StageGameInProgress {
			t.Fatalf("expected the replacement timer, got %s", stage)
		}
	case <-time.After(time.Second):
		t.Fatal("replacement timer did not fire")
	}

	select {
	case stage := <-fired:
		t.Fatalf("replaced timer fired too: %s", stage)
	case <-time.After(40 * time.Millisecond):
	}
}
