package tugofwar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"tugmath/internal/game"
	"tugmath/internal/match"
	"tugmath/internal/question"
)

// Name is the registry key for the game.
const Name = "tugofwar"

// DefaultFeedbackWindow is how long a correct/incorrect flag stays visible.
const DefaultFeedbackWindow = time.Second

// Action types understood by the match.
const (
	ActionStart         = "start"
	ActionDigit         = "digit"
	ActionClear         = "clear"
	ActionSubmit        = "submit"
	ActionTick          = "tick"
	ActionClearFeedback = "clear_feedback"
	ActionMenu          = "menu"
)

// TugOfWar implements game.Game.
type TugOfWar struct {
	// FeedbackWindow overrides DefaultFeedbackWindow when positive.
	FeedbackWindow time.Duration
	// Icons overrides the default icon catalog when non-empty.
	Icons []string
}

func (t TugOfWar) Info() game.GameInfo {
	return game.GameInfo{
		Name:        Name,
		Title:       "Tug of War Math",
		Description: "Answer faster than your opponent to pull the rope to your side.",
		Players:     2,
	}
}

// NewMatch builds a match in the menu phase. Settings are applied on top of
// the menu defaults and validated.
func (t TugOfWar) NewMatch(config game.MatchConfig) (game.Match, error) {
	cfg, err := decodeSettings(match.DefaultConfig(), config.Settings)
	if err != nil {
		return nil, err
	}
	window := t.FeedbackWindow
	if window <= 0 {
		window = DefaultFeedbackWindow
	}
	gen := question.NewGenerator(question.NewSource(config.Seed), t.Icons)
	return &Match{
		engine:         match.NewEngine(gen, cfg),
		seed:           config.Seed,
		feedbackWindow: window,
	}, nil
}

// Match implements game.Match on top of the match engine.
type Match struct {
	engine         *match.Engine
	seed           uint64
	feedbackWindow time.Duration
}

type playerPayload struct {
	Player match.Player `json:"player"`
}

type digitPayload struct {
	Player match.Player `json:"player"`
	Digit  int          `json:"digit"`
}

type clearFeedbackPayload struct {
	Player match.Player `json:"player"`
	Seq    uint64       `json:"seq"`
}

// State returns the engine snapshot.
func (m *Match) State() match.State {
	return m.engine.State()
}

func (m *Match) View() any {
	return match.NewView(m.engine.State())
}

func (m *Match) ApplyAction(action game.Action) ([]game.Effect, error) {
	ev, err := m.decode(action)
	if err != nil {
		return nil, err
	}
	before := m.engine.State()
	after := m.engine.Apply(ev)

	sub, ok := ev.(match.Submit)
	if !ok {
		return nil, nil
	}
	seq := after.Player(sub.Player).FeedbackSeq
	if seq == before.Player(sub.Player).FeedbackSeq {
		return nil, nil
	}
	payload, err := json.Marshal(clearFeedbackPayload{Player: sub.Player, Seq: seq})
	if err != nil {
		return nil, fmt.Errorf("encode feedback clear: %w", err)
	}
	return []game.Effect{{
		After:  m.feedbackWindow,
		Action: game.Action{Type: ActionClearFeedback, Payload: payload, Host: true},
	}}, nil
}

func (m *Match) decode(action game.Action) (match.Event, error) {
	switch action.Type {
	case ActionTick, ActionClearFeedback:
		if !action.Host {
			return nil, fmt.Errorf("%w: %s", game.ErrHostOnly, action.Type)
		}
	}

	switch action.Type {
	case ActionStart:
		if isEmpty(action.Payload) {
			return match.Start{}, nil
		}
		cfg, err := decodeSettings(m.engine.State().Config, action.Payload)
		if err != nil {
			return nil, err
		}
		return match.Start{Config: &cfg}, nil
	case ActionDigit:
		var p digitPayload
		if err := decodePayload(action, &p); err != nil {
			return nil, err
		}
		if err := checkPlayer(p.Player); err != nil {
			return nil, err
		}
		if p.Digit < 0 || p.Digit > 9 {
			return nil, fmt.Errorf("digit %d out of range", p.Digit)
		}
		return match.Digit{Player: p.Player, Digit: p.Digit}, nil
	case ActionClear, ActionSubmit:
		var p playerPayload
		if err := decodePayload(action, &p); err != nil {
			return nil, err
		}
		if err := checkPlayer(p.Player); err != nil {
			return nil, err
		}
		if action.Type == ActionClear {
			return match.Clear{Player: p.Player}, nil
		}
		return match.Submit{Player: p.Player}, nil
	case ActionClearFeedback:
		var p clearFeedbackPayload
		if err := decodePayload(action, &p); err != nil {
			return nil, err
		}
		if err := checkPlayer(p.Player); err != nil {
			return nil, err
		}
		return match.ClearFeedback{Player: p.Player, Seq: p.Seq}, nil
	case ActionTick:
		return match.Tick{}, nil
	case ActionMenu:
		return match.ReturnToMenu{}, nil
	}
	return nil, fmt.Errorf("%w: %s", game.ErrUnknownAction, action.Type)
}

func (m *Match) Phase() game.Phase {
	switch m.engine.State().Phase {
	case match.PhasePlaying:
		return game.PhasePlaying
	case match.PhaseFinished:
		return game.PhaseFinished
	}
	return game.PhaseMenu
}

func (m *Match) Ticking() bool {
	s := m.engine.State()
	return s.Phase == match.PhasePlaying && !s.Config.Unbounded()
}

func (m *Match) Results() []game.PlayerResult {
	s := m.engine.State()
	if s.Phase != match.PhaseFinished {
		return nil
	}
	p1 := game.PlayerResult{Seat: 1, Name: s.Config.Player1Name, Rank: 1}
	p2 := game.PlayerResult{Seat: 2, Name: s.Config.Player2Name, Rank: 1}
	switch s.Winner {
	case match.WinPlayer1:
		p2.Rank = 2
	case match.WinPlayer2:
		p1.Rank = 2
	}
	return []game.PlayerResult{p1, p2}
}

type snapshot struct {
	Seed  uint64      `json:"seed"`
	State match.State `json:"state"`
}

func (m *Match) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{Seed: m.seed, State: m.engine.State()})
}

func decodeSettings(base match.Config, raw json.RawMessage) (match.Config, error) {
	cfg := base
	cfg.Operations = append([]question.Operator(nil), base.Operations...)
	if isEmpty(raw) {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return match.Config{}, fmt.Errorf("invalid settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return match.Config{}, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func decodePayload(action game.Action, v any) error {
	if isEmpty(action.Payload) {
		return fmt.Errorf("%s: missing payload", action.Type)
	}
	if err := json.Unmarshal(action.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", action.Type, err)
	}
	return nil
}

func checkPlayer(p match.Player) error {
	if !p.Valid() {
		return fmt.Errorf("player must be 1 or 2, got %d", p)
	}
	return nil
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
