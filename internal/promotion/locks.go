package promotion

import "sync"

// assetLocks serializes promotion attempts per asset. Entries are refcounted
// and removed once the last holder releases, so the map does not grow with
// the library.
type assetLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAssetLocks() *assetLocks {
	return &assetLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the lock for key is held and returns the release func.
func (l *assetLocks) acquire(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
