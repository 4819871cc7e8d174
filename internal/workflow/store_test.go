package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hopecann/scheduling/internal/availability"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, ttl), mr
}

func TestRedisSessionStore_RoundTripAndTTL(t *testing.T) {
	store, mr := newRedisStore(t, 30*time.Minute)
	ctx := context.Background()

	doctorID := uuid.New()
	s := &Session{
		ID:          uuid.New(),
		Step:        StepLoginRequired,
		DoctorID:    &doctorID,
		Date:        "2024-06-03",
		Time:        tod(10, 0),
		ConsultType: "phone",
		Form:        &PatientForm{Name: "Ada Lovelace", Phone: "555-0100", Reason: "follow-up"},
		Notice:      NoticeLoginRequired,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL(sessionKey(s.ID)); ttl != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %s", ttl)
	}

	got, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Step != s.Step || *got.DoctorID != doctorID || *got.Time != *s.Time || got.Date != s.Date {
		t.Errorf("selection not preserved: %+v", got)
	}
	if got.Form == nil || *got.Form != *s.Form {
		t.Errorf("form not preserved: %+v", got.Form)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestRedisSessionStore_SaveRestartsTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()
	s := &Session{ID: uuid.New(), Step: StepSelectDoctor}

	if err := store.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(50 * time.Second)
	if err := store.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(50 * time.Second)
	if _, err := store.Get(ctx, s.ID); err != nil {
		t.Fatalf("expected session to survive after resave, got %v", err)
	}
}

func TestRedisSessionStore_Delete(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()
	s := &Session{ID: uuid.New(), Step: StepSelectDoctor}

	if err := store.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists(sessionKey(s.ID)) {
		t.Error("key still present after delete")
	}
	if err := store.Delete(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second delete: expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisSessionStore_Failures(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	id := uuid.New()
	if err := mr.Set(sessionKey(id), "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, id); err == nil || errors.Is(err, ErrSessionNotFound) {
		t.Errorf("corrupt session: expected decode error, got %v", err)
	}

	mr.Close()
	if _, err := store.Get(ctx, id); !errors.Is(err, availability.ErrStoreUnavailable) {
		t.Errorf("redis down: expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.Save(ctx, &Session{ID: id}); !errors.Is(err, availability.ErrStoreUnavailable) {
		t.Errorf("redis down save: expected ErrStoreUnavailable, got %v", err)
	}
}
