package regeneration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type runKey struct {
	ownerID uuid.UUID
	date    time.Time
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// keyedLock is a mutex per runKey. Entries are dropped once nobody holds or
// waits for them.
type keyedLock struct {
	mu      sync.Mutex
	entries map[runKey]*keyedEntry
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[runKey]*keyedEntry)}
}

// Lock blocks until key is free or ctx is done. The returned function
// releases the lock.
func (l *keyedLock) Lock(ctx context.Context, key runKey) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *keyedLock) release(key runKey, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size returns the number of keys currently held or awaited.
func (l *keyedLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
