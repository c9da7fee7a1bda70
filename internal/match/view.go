package match

import (
	"fmt"

	"tugmath/internal/question"
)

// UnboundedClock is shown in place of a countdown when there is no time limit.
const UnboundedClock = "∞"

// ropeOffsetStep converts one rope step into a percentage shift of the rope graphic.
const ropeOffsetStep = 5

// View is the render-ready projection of a State.
type View struct {
	Phase      Phase         `json:"phase"`
	Rope       int           `json:"rope"`
	RopeOffset int           `json:"ropeOffset"`
	Clock      string        `json:"clock"`
	Winner     string        `json:"winner,omitempty"`
	Headline   string        `json:"headline,omitempty"`
	Players    [2]PlayerView `json:"players"`
}

// PlayerView is one player's panel.
type PlayerView struct {
	Name        string               `json:"name"`
	Operand1    int                  `json:"operand1"`
	Operand2    int                  `json:"operand2"`
	Symbol      string               `json:"symbol"`
	Display     question.DisplayKind `json:"display"`
	Icon        string               `json:"icon,omitempty"`
	Question    string               `json:"question"`
	Input       string               `json:"input"`
	Outcome     Outcome              `json:"outcome,omitempty"`
	FeedbackSeq uint64               `json:"feedbackSeq"`
}

// NewView projects s for rendering.
func NewView(s State) View {
	v := View{
		Phase:      s.Phase,
		Rope:       s.Rope,
		RopeOffset: s.Rope * ropeOffsetStep,
		Clock:      FormatClock(s.TimeRemaining, s.Config.Unbounded()),
		Winner:     s.WinnerName(),
	}
	switch s.Winner {
	case WinTie:
		v.Headline = "It's a Tie!"
	case WinPlayer1, WinPlayer2:
		v.Headline = v.Winner + " Wins!"
	}
	if s.Phase == PhaseMenu {
		for _, p := range []Player{Player1, Player2} {
			v.Players[p.index()] = PlayerView{Name: s.Config.Name(p)}
		}
		return v
	}
	for _, p := range []Player{Player1, Player2} {
		ps := s.Player(p)
		input := ps.Input
		if input == "" {
			input = "_"
		}
		v.Players[p.index()] = PlayerView{
			Name:        s.Config.Name(p),
			Operand1:    ps.Problem.Operand1,
			Operand2:    ps.Problem.Operand2,
			Symbol:      ps.Problem.Operator.Symbol(),
			Display:     ps.Problem.Display,
			Icon:        ps.Problem.Icon,
			Question:    ps.Problem.String(),
			Input:       input,
			Outcome:     ps.Outcome,
			FeedbackSeq: ps.FeedbackSeq,
		}
	}
	return v
}

// FormatClock renders seconds as m:ss, or the unbounded marker.
func FormatClock(seconds int, unbounded bool) string {
	if unbounded {
		return UnboundedClock
	}
	seconds = max(0, seconds)
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
