package chatbot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

const (
	subscriberBuffer     = 8
	storeTimeout         = 5 * time.Second
	sessionSweepInterval = 5 * time.Minute
)

// Manager owns the live sessions of this process, persists every change to
// the store and fans snapshots out to subscribers.
type Manager struct {
	cfg    Config
	store  Store
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	lastSeen map[string]time.Time

	subsMu  sync.Mutex
	subs    map[string]map[uint64]chan Snapshot
	nextSub uint64
}

// NewManager builds a manager. A nil store keeps snapshots in memory.
func NewManager(cfg Config, store Store) *Manager {
	cfg = cfg.withDefaults()
	if store == nil {
		mem := NewMemoryStoreWithTTL(cfg.SessionTTL)
		mem.now = cfg.Now
		store = mem
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
		lastSeen: make(map[string]time.Time),
		subs:     make(map[string]map[uint64]chan Snapshot),
	}
}

// Start creates a session with a fresh ID and posts the welcome message.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	sess := NewSession(id, m.cfg, m.handleChange)

	m.mu.Lock()
	m.sessions[id] = sess
	m.lastSeen[id] = m.cfg.Now()
	m.mu.Unlock()
	m.cfg.Metrics.SessionOpened()

	if err := sess.Start(); err != nil {
		return nil, err
	}
	m.logger.Info("chat session started", "session_id", id)
	return sess, nil
}

// Get returns a live session, restoring it from the store if this process
// does not hold it.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if sess, ok := m.touch(id); ok {
		return sess, nil
	}

	snap, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	sess := RestoreSession(snap, m.cfg, m.handleChange)
	m.sessions[id] = sess
	m.lastSeen[id] = m.cfg.Now()
	m.cfg.Metrics.SessionOpened()
	m.logger.Info("chat session restored", "session_id", id, "version", snap.Version)
	return sess, nil
}

// Subscribe streams snapshots of one session. Slow subscribers only ever
// miss intermediate snapshots, never the latest. Call cancel to stop.
func (m *Manager) Subscribe(id string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subsMu.Lock()
	m.nextSub++
	key := m.nextSub
	if m.subs[id] == nil {
		m.subs[id] = make(map[uint64]chan Snapshot)
	}
	m.subs[id][key] = ch
	m.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if set, ok := m.subs[id]; ok {
				if _, ok := set[key]; ok {
					delete(set, key)
					close(ch)
				}
				if len(set) == 0 {
					delete(m.subs, id)
				}
			}
		})
	}
	return ch, cancel
}

// Close evicts a session from memory. Its stored snapshot survives so the
// visitor can resume later.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	delete(m.lastSeen, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.Close()
	m.cfg.Metrics.SessionClosed()
	m.closeSubscribers(id)
}

// Shutdown closes every live session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	live := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		live = append(live, id)
	}
	m.mu.Unlock()

	for _, id := range live {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.Close(id)
	}
	return nil
}

// Run evicts sessions nobody has touched for SessionTTL until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := sessionSweepInterval
	if m.cfg.SessionTTL < interval {
		interval = m.cfg.SessionTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(m.cfg.Now())
		}
	}
}

// sweep closes idle sessions that are not mid-turn and returns how many went.
func (m *Manager) sweep(now time.Time) int {
	cutoff := now.Add(-m.cfg.SessionTTL)

	m.mu.RLock()
	var stale []*Session
	for id, seen := range m.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, m.sessions[id])
		}
	}
	m.mu.RUnlock()

	evicted := 0
	for _, sess := range stale {
		if sess == nil || sess.Busy() {
			continue
		}
		m.mu.RLock()
		seen, ok := m.lastSeen[sess.ID()]
		m.mu.RUnlock()
		if !ok || !seen.Before(cutoff) {
			continue
		}
		m.Close(sess.ID())
		m.logger.Info("chat session evicted", "session_id", sess.ID(), "idle_since", seen)
		evicted++
	}

	if expiring, ok := m.store.(expiringStore); ok {
		expiring.DeleteExpired(now)
	}
	return evicted
}

// touch returns a live session and records the access.
func (m *Manager) touch(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if ok {
		m.lastSeen[id] = m.cfg.Now()
	}
	return sess, ok
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) handleChange(snap Snapshot) {
	m.touch(snap.ID)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Save(ctx, snap); err != nil {
		m.logger.Error("failed to persist session snapshot", "session_id", snap.ID, "error", err)
	}

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs[snap.ID] {
		deliverLatest(ch, snap)
	}
}

func deliverLatest(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (m *Manager) closeSubscribers(id string) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for key, ch := range m.subs[id] {
		close(ch)
		delete(m.subs[id], key)
	}
	delete(m.subs, id)
}
