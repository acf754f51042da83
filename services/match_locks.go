package services

import "sync"

// matchLocks — по одному мьютексу на матч: все переходы этапов, отчёты
// результатов и решения судьи по матчу сериализуются через него.
// Разные матчи не делят блокировок.
type matchLocks struct {
	mu    sync.Mutex
	locks map[int]*matchLock
}

type matchLock struct {
	mu   sync.Mutex
	refs int
}

func newMatchLocks() *matchLocks {
	return &matchLocks{locks: make(map[int]*matchLock)}
}

// Lock acquires the per-match mutex and returns its unlock function.
// Entries are reference-counted so the map does not grow with dead matches.
func (l *matchLocks) Lock(matchID int) func() {
	l.mu.Lock()
	entry, ok := l.locks[matchID]
	if !ok {
		entry = &matchLock{}
		l.locks[matchID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, matchID)
		}
		l.mu.Unlock()
	}
}
