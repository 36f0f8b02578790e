package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultSessionTTL = 24 * time.Hour

// Store persists session snapshots so a widget can reconnect.
type Store interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context, sessionID string) (Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisStore keeps one JSON snapshot per session with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("chatbot: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("leadchat.internal.chatbot.store")
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	ctx, span := s.tracer.Start(ctx, "chatbot.save_session",
		trace.WithAttributes(attribute.String("session_id", snap.ID), attribute.Int64("version", int64(snap.Version))))
	defer span.End()

	data, err := json.Marshal(snap)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("chatbot: failed to marshal snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(snap.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chatbot: failed to persist snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "chatbot.load_session",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrSessionNotFound
		}
		span.RecordError(err)
		return Snapshot{}, fmt.Errorf("chatbot: failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		span.RecordError(err)
		return Snapshot{}, fmt.Errorf("chatbot: failed to decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "chatbot.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("chatbot: failed to delete snapshot: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("chat_session:%s", id)
}

// MemoryStore is the store used when Redis is not configured. Entries expire
// after the TTL like their Redis counterparts.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type memoryEntry struct {
	snap      Snapshot
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithTTL(defaultSessionTTL)
}

func NewMemoryStoreWithTTL(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &MemoryStore{
		snaps: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.ID] = memoryEntry{snap: snap, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.snaps[sessionID]
	if !ok || !m.now().Before(entry.expiresAt) {
		return Snapshot{}, ErrSessionNotFound
	}
	return entry.snap, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, sessionID)
	return nil
}

// DeleteExpired drops every entry past its TTL and returns how many went.
func (m *MemoryStore) DeleteExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, entry := range m.snaps {
		if !now.Before(entry.expiresAt) {
			delete(m.snaps, id)
			removed++
		}
	}
	return removed
}

// expiringStore is implemented by stores that need an explicit sweep.
type expiringStore interface {
	DeleteExpired(now time.Time) int
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)

	_ expiringStore = (*MemoryStore)(nil)
)
