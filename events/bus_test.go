package events

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testBus() *Bus {
	return NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBusDeliversToTypeSubscribers(t *testing.T) {
	bus := testBus()

	var wg sync.WaitGroup
	wg.Add(1)
	var got Event
	bus.Subscribe(TypeMatchDecided, func(e Event) {
		got = e
		wg.Done()
	})

	published := New(TypeMatchDecided, MatchDecidedPayload{MatchID: 42})
	bus.Publish(published)

	if waitTimeout(&wg, time.Second) {
		t.Fatal("subscriber did not receive the event")
	}
	if got.ID != published.ID {
		t.Fatalf("expected event %s, got %s", published.ID, got.ID)
	}
}

func TestBusSkipsOtherTypes(t *testing.T) {
	bus := testBus()

	received := make(chan Event, 1)
	bus.Subscribe(TypeSeasonEnded, func(e Event) {
		received <- e
	})

	bus.Publish(New(TypeMatchDecided, MatchDecidedPayload{MatchID: 1}))

	select {
	case e := <-received:
		t.Fatalf("subscriber received a foreign event: %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := testBus()

	var wg sync.WaitGroup
	wg.Add(2)
	var mu sync.Mutex
	seen := make(map[Type]bool)
	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		seen[e.Type] = true
		mu.Unlock()
		wg.Done()
	})

	bus.Publish(New(TypeSeasonEnding, SeasonPayload{SeasonID: 1}))
	bus.Publish(New(TypeRatingUpdated, RatingUpdatedPayload{PlayerID: 1}))

	if waitTimeout(&wg, time.Second) {
		t.Fatal("catch-all subscriber missed events")
	}
	mu.Lock()
	defer mu.Unlock()
	if !seen[TypeSeasonEnding] || !seen[TypeRatingUpdated] {
		t.Fatalf("expected both event types, saw %v", seen)
	}
}

func TestBusRecoversFromPanickingHandler(t *testing.T) {
	bus := testBus()

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(TypeCaseOpened, func(e Event) {
		panic("handler bug")
	})
	bus.Subscribe(TypeCaseOpened, func(e Event) {
		wg.Done()
	})

	bus.Publish(New(TypeCaseOpened, CaseOpenedPayload{CaseID: 1}))

	if waitTimeout(&wg, time.Second) {
		t.Fatal("healthy subscriber starved by a panicking one")
	}
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return false
	case <-time.After(d):
		return true
	}
}
