package game

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrUnknownAction is returned for action types a match does not handle.
var ErrUnknownAction = errors.New("unknown action type")

// ErrHostOnly is returned when a shell sends an action only the host may post.
var ErrHostOnly = errors.New("action reserved for the host")

// GameInfo describes a game type for the lobby.
type GameInfo struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Players     int    `json:"players"`
}

// MatchConfig holds settings for creating a new match.
type MatchConfig struct {
	// Seed drives every random choice the match makes, so a match can be
	// rebuilt from its seed and journal.
	Seed uint64
	// Settings is the game-specific menu configuration; empty means defaults.
	Settings json.RawMessage
}

// Action is one input event sent by the shell.
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// Host marks actions raised by the host itself (clock ticks, timers).
	// It never comes off the wire.
	Host bool `json:"-"`
}

// Effect asks the host to deliver Action back to the match after a delay.
type Effect struct {
	After  time.Duration
	Action Action
}

// Phase mirrors the match lifecycle for hosts that do not know the game.
type Phase string

const (
	PhaseMenu     Phase = "menu"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// PlayerResult holds the outcome for one player.
type PlayerResult struct {
	Seat int    `json:"seat"`
	Name string `json:"name"`
	Rank int    `json:"rank"` // 1 = first place; both 1 on a tie
}

// Game describes a game type.
type Game interface {
	Info() GameInfo
	NewMatch(config MatchConfig) (Match, error)
}

// Match is one in-progress game. Implementations are not safe for
// concurrent use; the host serializes calls.
type Match interface {
	// View returns the render-ready state.
	View() any
	// ApplyAction applies one action and returns follow-up effects the host
	// must schedule. Errors only report undecodable actions.
	ApplyAction(action Action) ([]Effect, error)
	Phase() Phase
	// Ticking reports whether the host should deliver TickAction once per
	// tick interval.
	Ticking() bool
	Results() []PlayerResult
	MarshalJSON() ([]byte, error)
}

// TickAction is the action hosts deliver on every clock tick.
var TickAction = Action{Type: "tick", Host: true}
