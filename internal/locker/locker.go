// Package locker serializes work per key, e.g. per aggregate id, without a
// global lock. Entries are dropped once nobody holds or waits for them.
package locker

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNoSuchLock is returned by Unlock for a key that is not locked.
var ErrNoSuchLock = errors.New("no such lock")

type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockCtr
}

type lockCtr struct {
	mu      sync.Mutex
	waiters int32
}

func New() *Locker {
	return &Locker{locks: make(map[string]*lockCtr)}
}

// Lock blocks until the lock for key is held.
func (l *Locker) Lock(key string) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*lockCtr)
	}
	ctr, ok := l.locks[key]
	if !ok {
		ctr = &lockCtr{}
		l.locks[key] = ctr
	}
	// counted under the map lock so Unlock never drops an entry someone waits on
	atomic.AddInt32(&ctr.waiters, 1)
	l.mu.Unlock()

	ctr.mu.Lock()
	atomic.AddInt32(&ctr.waiters, -1)
}

func (l *Locker) Unlock(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ctr, ok := l.locks[key]
	if !ok {
		return ErrNoSuchLock
	}
	if atomic.LoadInt32(&ctr.waiters) == 0 {
		delete(l.locks, key)
	}
	ctr.mu.Unlock()
	return nil
}

// Len returns the number of keys currently tracked.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
