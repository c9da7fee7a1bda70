package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tugmath/internal/game"
)

// ErrClosed is returned when an action is sent to a session that has shut down.
var ErrClosed = errors.New("session closed")

// Display is one connected screen rendering the match.
type Display struct {
	ID   string
	Send chan []byte // outbound messages
}

type request struct {
	action game.Action
	reply  chan error // nil for timer-posted actions
}

// Session hosts one on-screen match. All actions, ticks and feedback timers
// are applied by a single goroutine (run); the rest of the fields are
// snapshots guarded by mu.
type Session struct {
	Code      string
	GameType  string
	Seed      uint64
	CreatedAt time.Time

	mu         sync.RWMutex
	displays   map[string]*Display
	phase      game.Phase
	view       any
	results    []game.PlayerResult
	lastActive time.Time
	closed     bool

	match        game.Match
	requests     chan request
	done         chan struct{}
	cancel       context.CancelFunc
	tickInterval time.Duration
	applied      func(*Session, game.Action)
	logger       *zap.Logger
}

func newSession(code, gameType string, seed uint64, m game.Match, tick time.Duration, logger *zap.Logger) *Session {
	now := time.Now()
	return &Session{
		Code:         code,
		GameType:     gameType,
		Seed:         seed,
		CreatedAt:    now,
		displays:     make(map[string]*Display),
		phase:        m.Phase(),
		view:         m.View(),
		lastActive:   now,
		match:        m,
		requests:     make(chan request),
		done:         make(chan struct{}),
		tickInterval: tick,
		logger:       logger.With(zap.String("session", code)),
	}
}

// start launches the event loop. The session stops when ctx is cancelled or
// close is called.
func (s *Session) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.tickInterval)
	ticker.Stop()
	defer ticker.Stop()
	ticking := false

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.requests:
			err := s.apply(req.action)
			if req.reply != nil {
				req.reply <- err
			} else if err != nil {
				s.logger.Warn("timer action rejected", zap.String("type", req.action.Type), zap.Error(err))
			}
		case <-ticker.C:
			if err := s.apply(game.TickAction); err != nil {
				s.logger.Error("tick rejected", zap.Error(err))
			}
		}

		// The countdown restarts from a full interval whenever a match starts.
		now := s.match.Ticking()
		switch {
		case now && !ticking:
			ticker.Reset(s.tickInterval)
		case !now && ticking:
			ticker.Stop()
		}
		ticking = now
	}
}

func (s *Session) apply(a game.Action) error {
	effects, err := s.match.ApplyAction(a)
	if err != nil {
		return err
	}
	for _, eff := range effects {
		action := eff.Action
		time.AfterFunc(eff.After, func() { s.post(action) })
	}

	s.mu.Lock()
	s.phase = s.match.Phase()
	s.view = s.match.View()
	s.results = s.match.Results()
	s.lastActive = time.Now()
	s.mu.Unlock()

	if s.applied != nil {
		s.applied(s, a)
	}
	return nil
}

// post delivers a timer-driven action to the loop, dropping it once the
// session has stopped.
func (s *Session) post(a game.Action) {
	select {
	case s.requests <- request{action: a}:
	case <-s.done:
	}
}

// Dispatch applies a shell action through the event loop and waits for the
// result. Host-only actions are rejected by the match.
func (s *Session) Dispatch(ctx context.Context, a game.Action) error {
	a.Host = false
	req := request{action: a, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the loop and disconnects all displays.
func (s *Session) close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, d := range s.displays {
		close(d.Send)
		delete(s.displays, id)
	}
}

// Attach connects a display. An empty id gets a fresh one; a known id is
// treated as a reconnect and its previous channel is closed.
func (s *Session) Attach(id string) (*Display, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if id == "" {
		id = uuid.NewString()
	}
	if old, ok := s.displays[id]; ok {
		close(old.Send)
	}
	d := &Display{ID: id, Send: make(chan []byte, 64)}
	s.displays[id] = d
	s.lastActive = time.Now()
	return d, nil
}

// Detach removes d if it is still the current connection for its id.
func (s *Session) Detach(d *Display) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.displays[d.ID]; ok && cur == d {
		close(d.Send)
		delete(s.displays, d.ID)
	}
}

// Display returns a connected display, or nil if not found.
func (s *Session) Display(id string) *Display {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displays[id]
}

// DisplayIDs returns the ids of connected displays.
func (s *Session) DisplayIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.displays))
	for id := range s.displays {
		ids = append(ids, id)
	}
	return ids
}

// Send queues msg for one display. It is dropped if d has been detached or
// its buffer is full.
func (s *Session) Send(d *Display, msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cur, ok := s.displays[d.ID]; !ok || cur != d {
		return
	}
	select {
	case d.Send <- msg:
	default:
	}
}

// Broadcast sends a message to all connected displays.
func (s *Session) Broadcast(msg []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.displays {
		select {
		case d.Send <- msg:
		default:
			// drop message if buffer full
		}
	}
}

// View returns the latest rendered match view.
func (s *Session) View() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Phase returns the match phase after the last applied action.
func (s *Session) Phase() game.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Results returns final standings once the match is finished.
func (s *Session) Results() []game.PlayerResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results
}

// Info returns session info for the API.
type Info struct {
	Code      string     `json:"code"`
	GameType  string     `json:"gameType"`
	Seed      uint64     `json:"seed"`
	Status    game.Phase `json:"status"`
	Displays  []string   `json:"displays"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.displays))
	for id := range s.displays {
		ids = append(ids, id)
	}
	return Info{
		Code:      s.Code,
		GameType:  s.GameType,
		Seed:      s.Seed,
		Status:    s.phase,
		Displays:  ids,
		CreatedAt: s.CreatedAt,
	}
}

// idle reports whether the session can be reaped: it is finished or has no
// displays, and nothing has happened for maxAge.
func (s *Session) idle(now time.Time, maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase != game.PhaseFinished && len(s.displays) > 0 {
		return false
	}
	return now.Sub(s.lastActive) > maxAge
}
