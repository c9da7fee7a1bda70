// Package match implements the tug-of-war match engine: two players answer
// generated problems and every answer moves a shared rope.
//
// The engine is a reducer. Each call to Apply processes one event to
// completion and returns the resulting snapshot. It is not safe for
// concurrent use; hosts must serialize events through a single writer.
package match

import (
	"strconv"

	"tugmath/internal/question"
)

// Engine owns one match's mutable state.
type Engine struct {
	gen   *question.Generator
	state State
}

// NewEngine returns an engine in the menu phase holding cfg as the pending
// configuration.
func NewEngine(gen *question.Generator, cfg Config) *Engine {
	return &Engine{
		gen:   gen,
		state: State{Phase: PhaseMenu, Config: cfg.Normalize()},
	}
}

// State returns the current snapshot.
func (e *Engine) State() State {
	return e.state.clone()
}

// Apply processes ev and returns the new snapshot. Events that do not apply
// in the current phase leave the state untouched.
func (e *Engine) Apply(ev Event) State {
	switch ev := ev.(type) {
	case Start:
		e.start(ev.Config)
	case ReturnToMenu:
		e.state = State{Phase: PhaseMenu, Config: e.state.Config}
	case Digit:
		e.digit(ev.Player, ev.Digit)
	case Clear:
		if p := e.playing(ev.Player); p != nil {
			p.Input = ""
		}
	case Submit:
		e.submit(ev.Player)
	case Tick:
		e.tick()
	case ClearFeedback:
		e.clearFeedback(ev.Player, ev.Seq)
	}
	return e.State()
}

func (e *Engine) start(cfg *Config) {
	if e.state.Phase == PhasePlaying {
		return
	}
	next := e.state.Config
	if cfg != nil {
		next = cfg.Normalize()
	}
	e.state = State{
		Phase:         PhasePlaying,
		TimeRemaining: next.TimeLimitSeconds,
		Config:        next,
	}
	for i := range e.state.Players {
		e.state.Players[i] = PlayerState{Problem: e.newProblem()}
	}
}

// playing returns p's state if the match is in play and p is a real side.
func (e *Engine) playing(p Player) *PlayerState {
	if e.state.Phase != PhasePlaying || !p.Valid() {
		return nil
	}
	return &e.state.Players[p.index()]
}

func (e *Engine) digit(p Player, d int) {
	ps := e.playing(p)
	if ps == nil || d < 0 || d > 9 {
		return
	}
	if len(ps.Input) < MaxInputDigits {
		ps.Input += strconv.Itoa(d)
	}
}

func (e *Engine) submit(p Player) {
	ps := e.playing(p)
	if ps == nil {
		return
	}
	answer, err := strconv.Atoi(ps.Input)
	ps.Input = ""
	ps.FeedbackSeq++

	if err == nil && answer == ps.Problem.Answer {
		ps.Outcome = OutcomeCorrect
		ps.Problem = e.newProblem()
		e.moveRope(p.pull())
	} else {
		ps.Outcome = OutcomeIncorrect
		e.moveRope(p.Opponent().pull())
	}
}

func (e *Engine) moveRope(delta int) {
	e.state.Rope = min(RopeLimit, max(-RopeLimit, e.state.Rope+delta))
	switch {
	case e.state.Rope <= -RopeLimit:
		e.finish(WinPlayer1)
	case e.state.Rope >= RopeLimit:
		e.finish(WinPlayer2)
	}
}

func (e *Engine) tick() {
	if e.state.Phase != PhasePlaying || e.state.Config.Unbounded() {
		return
	}
	if e.state.TimeRemaining > 0 {
		e.state.TimeRemaining--
	}
	if e.state.TimeRemaining > 0 {
		return
	}
	switch {
	case e.state.Rope < 0:
		e.finish(WinPlayer1)
	case e.state.Rope > 0:
		e.finish(WinPlayer2)
	default:
		e.finish(WinTie)
	}
}

// clearFeedback is honoured while playing and on the end screen, since the
// last submission's flag may still be showing when the match ends.
func (e *Engine) clearFeedback(p Player, seq uint64) {
	if e.state.Phase == PhaseMenu || !p.Valid() {
		return
	}
	ps := &e.state.Players[p.index()]
	if seq != 0 && seq != ps.FeedbackSeq {
		return
	}
	ps.Outcome = OutcomeNone
}

func (e *Engine) finish(w Winner) {
	e.state.Phase = PhaseFinished
	e.state.Winner = w
}

func (e *Engine) newProblem() question.Problem {
	cfg := e.state.Config
	return e.gen.Generate(cfg.Operations, cfg.MaxResult, cfg.VisualMode)
}
