package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hopecann/scheduling/internal/availability"
)

var ErrSessionNotFound = errors.New("booking session not found")

// SessionStore keeps sessions alive for a bounded time so a login detour
// can resume them.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// Delete returns ErrSessionNotFound when nothing was stored under id.
	Delete(ctx context.Context, id uuid.UUID) error
}

type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return "booking-session:" + id.String()
}

func (r *RedisSessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, availability.Unavailable("load booking session", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode booking session %s: %w", id, err)
	}
	return &s, nil
}

// Save writes the session and restarts its TTL.
func (r *RedisSessionStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode booking session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		return availability.Unavailable("save booking session", err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return availability.Unavailable("delete booking session", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[uuid.UUID]memorySession
}

type memorySession struct {
	data      []byte
	expiresAt time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: make(map[uuid.UUID]memorySession)}
}

func (m *MemorySessionStore) Get(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.ttl > 0 && !m.now().Before(entry.expiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}

	var s Session
	if err := json.Unmarshal(entry.data, &s); err != nil {
		return nil, fmt.Errorf("decode booking session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	// Stored encoded so callers never share mutable state with the store.
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode booking session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = memorySession{data: data, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	if !ok || (m.ttl > 0 && !m.now().Before(entry.expiresAt)) {
		return ErrSessionNotFound
	}
	return nil
}
