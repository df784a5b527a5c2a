package session

import "sync"

// KeyedLocker serializes access per session key. Two turns for the same
// session run their load-merge-save cycles strictly sequentially; turns for
// different sessions proceed concurrently. This prevents the lost-update
// hazard of concurrent read-modify-write on one session.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocker creates an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*sessionLock)}
}

// Lock acquires the lock for a key, blocking until it is available.
// The returned function releases the lock and must be called exactly once.
func (l *KeyedLocker) Lock(key string) func() {
	l.mu.Lock()
	sl, ok := l.locks[key]
	if !ok {
		sl = &sessionLock{}
		l.locks[key] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
