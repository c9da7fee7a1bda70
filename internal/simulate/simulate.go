// Package simulate plays headless matches between scripted players.
package simulate

import (
	"strconv"

	"tugmath/internal/match"
	"tugmath/internal/question"
)

// DefaultMaxSeconds bounds matches without a time limit.
const DefaultMaxSeconds = 600

// Bot is a scripted player that submits one answer per match second.
type Bot struct {
	// Accuracy is the probability in [0, 1] that an answer is correct.
	Accuracy float64
}

// Options configures a simulated match.
type Options struct {
	Seed   uint64
	Config match.Config
	Bots   [2]Bot
	// MaxSeconds caps the number of simulated seconds. Zero means
	// DefaultMaxSeconds.
	MaxSeconds int
}

// Tally counts a bot's submissions as the engine judged them.
type Tally struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
}

// Result summarizes a finished (or capped) match.
type Result struct {
	Winner   match.Winner `json:"winner"`
	Headline string       `json:"headline"`
	Rope     int          `json:"rope"`
	Seconds  int          `json:"seconds"`
	Tallies  [2]Tally     `json:"tallies"`
	Final    match.State  `json:"-"`
}

// Run plays a match to completion. Questions come from Seed; bot decisions
// use an independent stream derived from it, so equal options give equal
// results. Bots type through the same capped input as players, so answers
// above match.MaxTypedAnswer are scored incorrect whatever the accuracy.
func Run(opts Options) Result {
	limit := opts.MaxSeconds
	if limit <= 0 {
		limit = DefaultMaxSeconds
	}
	engine := match.NewEngine(question.NewSeeded(opts.Seed), opts.Config)
	rng := question.NewSource(^opts.Seed)

	var res Result
	state := engine.Apply(match.Start{})
	for res.Seconds < limit && state.Phase == match.PhasePlaying {
		order := [2]match.Player{match.Player1, match.Player2}
		if rng.IntN(2) == 1 {
			order[0], order[1] = order[1], order[0]
		}
		for _, p := range order {
			if state.Phase != match.PhasePlaying {
				break
			}
			answer := state.Player(p).Problem.Answer
			if rng.Float64() >= opts.Bots[p-1].Accuracy {
				answer++
			}
			for _, r := range strconv.Itoa(answer) {
				engine.Apply(match.Digit{Player: p, Digit: int(r - '0')})
			}
			state = engine.Apply(match.Submit{Player: p})
			switch state.Player(p).Outcome {
			case match.OutcomeCorrect:
				res.Tallies[p-1].Correct++
			case match.OutcomeIncorrect:
				res.Tallies[p-1].Incorrect++
			}
		}
		if state.Phase == match.PhasePlaying {
			state = engine.Apply(match.Tick{})
			res.Seconds++
		}
	}

	res.Winner = state.Winner
	res.Headline = match.NewView(state).Headline
	res.Rope = state.Rope
	res.Final = state
	return res
}
