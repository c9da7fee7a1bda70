package match

import (
	"errors"
	"fmt"
	"slices"

	"tugmath/internal/question"
)

// Reference values offered by the menu. The engine accepts any positive
// MaxResult and any non-negative time limit.
var (
	MaxResultChoices = []int{10, 20, 50, 100}
	TimeLimitChoices = []int{0, 30, 60, 120}
)

// Config holds the settings chosen in the menu. It is fixed for the
// duration of a match.
type Config struct {
	Player1Name      string              `json:"player1Name"`
	Player2Name      string              `json:"player2Name"`
	Operations       []question.Operator `json:"operations"`
	MaxResult        int                 `json:"maxResult"`
	TimeLimitSeconds int                 `json:"timeLimit"`
	VisualMode       question.VisualMode `json:"visualMode"`
}

// DefaultConfig returns the settings the menu opens with.
func DefaultConfig() Config {
	return Config{
		Player1Name:      "Player 1",
		Player2Name:      "Player 2",
		Operations:       []question.Operator{question.Add},
		MaxResult:        10,
		TimeLimitSeconds: 60,
		VisualMode:       question.Mixed,
	}
}

// Normalize returns a copy that is safe to start a match with: unknown and
// duplicate operators are dropped, an empty set becomes {Add}, and numeric
// fields are floored at their minimums.
func (c Config) Normalize() Config {
	out := c
	out.Operations = make([]question.Operator, 0, len(c.Operations))
	for _, op := range c.Operations {
		if op.Valid() && !slices.Contains(out.Operations, op) {
			out.Operations = append(out.Operations, op)
		}
	}
	if len(out.Operations) == 0 {
		out.Operations = []question.Operator{question.Add}
	}
	if out.MaxResult < 1 {
		out.MaxResult = 1
	}
	if out.TimeLimitSeconds < 0 {
		out.TimeLimitSeconds = 0
	}
	switch out.VisualMode {
	case question.NumbersOnly, question.Mixed, question.ObjectsPreferred:
	default:
		out.VisualMode = question.Mixed
	}
	return out
}

// Validate is the menu-side check run before Start. The engine itself
// tolerates anything Normalize can repair.
func (c Config) Validate() error {
	var errs []error
	if len(c.Operations) == 0 {
		errs = append(errs, errors.New("at least one operation is required"))
	}
	for _, op := range c.Operations {
		if !op.Valid() {
			errs = append(errs, fmt.Errorf("unknown operation %q", string(op)))
		}
	}
	if c.MaxResult < 1 {
		errs = append(errs, fmt.Errorf("maxResult must be positive, got %d", c.MaxResult))
	}
	if c.TimeLimitSeconds < 0 {
		errs = append(errs, fmt.Errorf("timeLimit must not be negative, got %d", c.TimeLimitSeconds))
	}
	if c.VisualMode != "" {
		if _, err := question.ParseVisualMode(string(c.VisualMode)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unbounded reports whether the match has no countdown.
func (c Config) Unbounded() bool {
	return c.TimeLimitSeconds == 0
}

// Name returns the display name for p.
func (c Config) Name(p Player) string {
	if p == Player2 {
		return c.Player2Name
	}
	return c.Player1Name
}
