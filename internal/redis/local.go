package redisclient

import (
	"context"
	"fmt"
	"sync"
)

// localSlotLocker is an in-process Locker for single instance deployments
// and tests. Each key gets a one-slot channel used as a context-aware mutex.
type localSlotLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	sem  chan struct{}
	refs int
}

func NewLocalSlotLocker() Locker {
	return &localSlotLocker{slots: make(map[string]*localSlot)}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	s := l.ref(key)
	defer l.unref(key)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
	}
	defer func() { <-s.sem }()

	return fn(ctx)
}

func (l *localSlotLocker) ref(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *localSlotLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[key]
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
