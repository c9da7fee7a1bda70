package match

import "tugmath/internal/question"

const (
	// RopeLimit is the distance from centre at which a player wins.
	RopeLimit = 5
	// MaxInputDigits caps how many digits a player can type.
	MaxInputDigits = 3
	// MaxTypedAnswer is the largest answer that fits in MaxInputDigits.
	// Problems with larger answers can only be answered wrongly.
	MaxTypedAnswer = 999
)

// Phase is the lifecycle stage of a match.
type Phase string

const (
	PhaseMenu     Phase = "menu"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Player identifies a side. Player1 pulls toward negative rope positions.
type Player int

const (
	Player1 Player = 1
	Player2 Player = 2
)

// Valid reports whether p names one of the two sides.
func (p Player) Valid() bool {
	return p == Player1 || p == Player2
}

// Opponent returns the other side.
func (p Player) Opponent() Player {
	if p == Player1 {
		return Player2
	}
	return Player1
}

func (p Player) index() int {
	return int(p) - 1
}

// pull is the rope delta when p answers correctly.
func (p Player) pull() int {
	if p == Player1 {
		return -1
	}
	return 1
}

// Winner is the outcome of a match.
type Winner string

const (
	Unresolved Winner = ""
	WinPlayer1 Winner = "player1"
	WinPlayer2 Winner = "player2"
	WinTie     Winner = "tie"
)

// Outcome is the transient feedback flag shown after a submission.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
)

// PlayerState is one player's slice of the match.
type PlayerState struct {
	Problem question.Problem `json:"problem"`
	Input   string           `json:"input"`
	Outcome Outcome          `json:"outcome,omitempty"`
	// FeedbackSeq increments on every submission so a delayed clear can
	// tell whether the flag it targets is still the current one.
	FeedbackSeq uint64 `json:"feedbackSeq"`
}

// State is a snapshot of the whole match. It is a value: Engine hands out
// copies and never mutates a snapshot it has returned.
type State struct {
	Phase         Phase          `json:"phase"`
	Rope          int            `json:"rope"`
	TimeRemaining int            `json:"timeRemaining"`
	Winner        Winner         `json:"winner,omitempty"`
	Players       [2]PlayerState `json:"players"`
	Config        Config         `json:"config"`
}

// Player returns the state of p.
func (s State) Player(p Player) PlayerState {
	if !p.Valid() {
		return PlayerState{}
	}
	return s.Players[p.index()]
}

// WinnerName is the name shown on the end screen: a player's name, "Tie",
// or empty while unresolved.
func (s State) WinnerName() string {
	switch s.Winner {
	case WinPlayer1:
		return s.Config.Player1Name
	case WinPlayer2:
		return s.Config.Player2Name
	case WinTie:
		return "Tie"
	}
	return ""
}

func (s State) clone() State {
	out := s
	out.Config.Operations = append([]question.Operator(nil), s.Config.Operations...)
	return out
}
