package coordinator

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// keyedLocks hands out one mutual-exclusion slot per user. Entries are
// reference counted and removed when nobody holds or waits on them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*userLock
}

type userLock struct {
	slot chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[uuid.UUID]*userLock)}
}

// lock blocks until the user's slot is free or ctx is done. The returned
// function releases it.
func (k *keyedLocks) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &userLock{slot: make(chan struct{}, 1)}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		k.release(id, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.slot
			k.release(id, l)
		})
	}, nil
}

func (k *keyedLocks) release(id uuid.UUID, l *userLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, id)
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
