package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLocalSlotLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalSlotLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most one holder at a time, saw %d", maxInside)
	}
}

func TestLocalSlotLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalSlotLocker()
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = l.WithSlotLock(context.Background(), "a", func(ctx context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.WithSlotLock(ctx, "b", func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("lock on other key blocked: %v", err)
	}
	close(done)
}

func TestLocalSlotLocker_ContextTimeout(t *testing.T) {
	l := NewLocalSlotLocker()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = l.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.WithSlotLock(ctx, "k", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrLockNotAcquired) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected ErrLockNotAcquired wrapping deadline, got %v", err)
	}
}

func TestSlotKey(t *testing.T) {
	id := uuid.MustParse("6f1c1c3e-0000-4000-8000-000000000001")
	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.FixedZone("x", 3600))
	same := at.UTC()
	if SlotKey(id, at) != SlotKey(id, same) {
		t.Error("slot key should not depend on location")
	}
	if SlotKey(id, at) == SlotKey(id, at.Add(time.Hour)) {
		t.Error("different start times must map to different keys")
	}
}
