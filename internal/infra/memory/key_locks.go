package memory

import (
	"context"
	"sync"

	"quiz-platform/internal/domain"
)

// KeyLocks hands out one lock per score key. Entries are dropped once no goroutine holds or
// waits on them, so the registry does not grow with the number of keys ever seen.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[domain.ScoreKey]*keyLock
}

// keyLock is held while its one-slot channel is full.
type keyLock struct {
	slot chan struct{}
	refs int
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: make(map[domain.ScoreKey]*keyLock)}
}

// Lock blocks until key is free or ctx is done, and returns the matching unlock function.
func (l *KeyLocks) Lock(ctx context.Context, key domain.ScoreKey) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &keyLock{slot: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.slot <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lock)
		return nil, ctx.Err()
	}
	return func() {
		<-lock.slot
		l.release(key, lock)
	}, nil
}

func (l *KeyLocks) release(key domain.ScoreKey, lock *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *KeyLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
