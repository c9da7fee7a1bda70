package session

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tugmath/internal/game"
	"tugmath/internal/storage"
)

// ErrNotFound is returned for an unknown session code.
var ErrNotFound = errors.New("session not found")

// DefaultTickInterval is the wall-clock length of one match second.
const DefaultTickInterval = time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithTickInterval overrides DefaultTickInterval.
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.tickInterval = d
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager manages all active sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	registry *game.Registry
	store    *storage.Store

	ctx          context.Context
	cancel       context.CancelFunc
	tickInterval time.Duration
	logger       *zap.Logger
	notify       func(*Session)
}

// NewManager creates a session manager.
func NewManager(registry *game.Registry, store *storage.Store, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:     make(map[string]*Session),
		registry:     registry,
		store:        store,
		ctx:          ctx,
		cancel:       cancel,
		tickInterval: DefaultTickInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("session")
	return m
}

// OnChange registers a callback run on the session's event loop after every
// applied action.
func (m *Manager) OnChange(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// Create makes a new session with a random seed and persists it.
func (m *Manager) Create(gameType string) (*Session, error) {
	return m.CreateSeeded(gameType, randomSeed())
}

// CreateSeeded makes a new session whose questions are drawn from seed.
func (m *Manager) CreateSeeded(gameType string, seed uint64) (*Session, error) {
	g, ok := m.registry.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
	match, err := g.NewMatch(game.MatchConfig{Seed: seed})
	if err != nil {
		return nil, fmt.Errorf("new match: %w", err)
	}
	code := generateCode()
	if err := m.store.CreateSession(code, gameType, seed); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s := newSession(code, gameType, seed, match, m.tickInterval, m.logger)
	s.applied = m.afterApply
	s.start(m.ctx)

	m.mu.Lock()
	m.sessions[code] = s
	m.mu.Unlock()
	m.logger.Info("session created", zap.String("code", code), zap.String("game", gameType), zap.Uint64("seed", seed))
	return s, nil
}

// afterApply journals the action and the resulting match state. It runs on
// the session's event loop.
func (m *Manager) afterApply(s *Session, a game.Action) {
	if _, err := m.store.AppendEvent(s.Code, a.Type, string(a.Payload)); err != nil {
		m.logger.Error("append event", zap.String("code", s.Code), zap.Error(err))
	}
	if err := m.store.UpdateSessionStatus(s.Code, string(s.match.Phase())); err != nil {
		m.logger.Error("update status", zap.String("code", s.Code), zap.Error(err))
	}
	data, err := s.match.MarshalJSON()
	if err != nil {
		m.logger.Error("marshal match state", zap.String("code", s.Code), zap.Error(err))
	} else if err := m.store.SaveMatchState(s.Code, string(data)); err != nil {
		m.logger.Error("save match state", zap.String("code", s.Code), zap.Error(err))
	}

	m.mu.RLock()
	notify := m.notify
	m.mu.RUnlock()
	if notify != nil {
		notify(s)
	}
}

// Get returns a session by code.
func (m *Manager) Get(code string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[code]
	return s, ok
}

// List returns info for all active sessions.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Events returns the journal of applied actions for a session.
func (m *Manager) Events(code string) ([]storage.EventRow, error) {
	if _, ok := m.Get(code); !ok {
		return nil, ErrNotFound
	}
	events, err := m.store.ListEvents(code)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Replay rebuilds a session's match from its seed and journal. The result is
// independent of the live match.
func (m *Manager) Replay(code string) (game.Match, error) {
	if _, ok := m.Get(code); !ok {
		return nil, ErrNotFound
	}
	row, err := m.store.GetSession(code)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	g, ok := m.registry.Get(row.GameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type: %s", row.GameType)
	}
	match, err := g.NewMatch(game.MatchConfig{Seed: row.Seed})
	if err != nil {
		return nil, fmt.Errorf("new match: %w", err)
	}
	events, err := m.store.ListEvents(code)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	for _, e := range events {
		// Only accepted actions are journaled, host ones included.
		a := game.Action{Type: e.Type, Host: true}
		if e.Payload != "" {
			a.Payload = []byte(e.Payload)
		}
		if _, err := match.ApplyAction(a); err != nil {
			return nil, fmt.Errorf("replay event %d: %w", e.Seq, err)
		}
	}
	return match, nil
}

// Remove stops a session and deletes it from memory and storage.
func (m *Manager) Remove(code string) error {
	m.mu.Lock()
	s, ok := m.sessions[code]
	delete(m.sessions, code)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.close()
	if err := m.store.DeleteSession(code); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close stops every session loop.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// CleanupLoop removes stale sessions periodically until ctx is done.
func (m *Manager) CleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanup(time.Now(), maxAge)
		}
	}
}

func (m *Manager) cleanup(now time.Time, maxAge time.Duration) {
	m.mu.RLock()
	var stale []string
	for code, s := range m.sessions {
		if s.idle(now, maxAge) {
			stale = append(stale, code)
		}
	}
	m.mu.RUnlock()

	for _, code := range stale {
		m.logger.Info("cleaning up session", zap.String("code", code))
		if err := m.Remove(code); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Error("cleanup", zap.String("code", code), zap.Error(err))
		}
	}
	m.purgeOrphans(now, maxAge)
}

// purgeOrphans deletes stored sessions with no live match, such as those
// left in a database file by an earlier process. Young rows are skipped so a
// session still being created is not touched.
func (m *Manager) purgeOrphans(now time.Time, maxAge time.Duration) {
	rows, err := m.store.ListSessions("")
	if err != nil {
		m.logger.Error("list stored sessions", zap.Error(err))
		return
	}
	for _, row := range rows {
		if _, live := m.Get(row.Code); live || now.Sub(row.CreatedAt) <= maxAge {
			continue
		}
		m.logger.Info("purging orphaned session", zap.String("code", row.Code), zap.String("status", row.Status))
		if err := m.store.DeleteSession(row.Code); err != nil {
			m.logger.Error("purge session", zap.String("code", row.Code), zap.Error(err))
		}
	}
}

func generateCode() string {
	b := make([]byte, 3) // 6 hex chars
	rand.Read(b)
	return hex.EncodeToString(b)
}

func randomSeed() uint64 {
	var b [8]byte
	rand.Read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}
