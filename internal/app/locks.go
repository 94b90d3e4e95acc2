package app

import "sync"

// gameLocks hands out one mutex per game code. Entries are dropped once no
// goroutine holds or waits on them.
type gameLocks struct {
	mu    sync.Mutex
	locks map[string]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

func newGameLocks() *gameLocks {
	return &gameLocks{locks: make(map[string]*gameLock)}
}

// lock blocks until the game's mutex is held and returns its release func
func (l *gameLocks) lock(code string) func() {
	l.mu.Lock()
	entry, ok := l.locks[code]
	if !ok {
		entry = &gameLock{}
		l.locks[code] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, code)
		}
		l.mu.Unlock()
	}
}

// size returns the number of live entries
func (l *gameLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
