package worker

import "sync"

// keyLocks serializes work per string key. It guarantees that for a given
// (recipient, channel) pair at most one delivery attempt is in flight,
// even when a tick and a retry land in different workers at once.
// Entries are reference counted and removed when the last holder leaves,
// so the map does not grow with the recipient population.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*lockEntry)}
}

// Lock blocks until the key is free and returns the unlock function.
func (k *keyLocks) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
