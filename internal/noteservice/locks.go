package noteservice

import (
	"slices"
	"sync"
)

// pathLocks hands out one mutex per absolute path. Entries are dropped
// once nobody holds or waits for them.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// lock acquires the locks for all paths in sorted order and returns the
// function that releases them.
func (l *pathLocks) lock(paths ...string) func() {
	keys := slices.Clone(paths)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*pathLock, 0, len(keys))
	for _, k := range keys {
		l.mu.Lock()
		pl, ok := l.locks[k]
		if !ok {
			pl = &pathLock{}
			l.locks[k] = pl
		}
		pl.refs++
		l.mu.Unlock()

		pl.mu.Lock()
		held = append(held, pl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()

			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, keys[i])
			}
			l.mu.Unlock()
		}
	}
}

// size returns the number of live entries.
func (l *pathLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
