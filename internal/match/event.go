package match

// Event is an input to the engine. The set is closed: only the types in
// this file implement it.
type Event interface {
	isEvent()
}

// Start begins a match. A nil Config replays the last configuration, which
// is how "play again" works.
type Start struct {
	Config *Config
}

// Digit appends one digit to a player's pending input.
type Digit struct {
	Player Player
	Digit  int
}

// Clear empties a player's pending input.
type Clear struct {
	Player Player
}

// Submit checks a player's pending input against their problem.
type Submit struct {
	Player Player
}

// Tick advances the countdown by one second.
type Tick struct{}

// ClearFeedback drops a player's correct/incorrect flag once the host's
// display window has elapsed. A non-zero Seq only clears the flag raised by
// that submission.
type ClearFeedback struct {
	Player Player
	Seq    uint64
}

// ReturnToMenu abandons the current match.
type ReturnToMenu struct{}

func (Start) isEvent()         {}
func (Digit) isEvent()         {}
func (Clear) isEvent()         {}
func (Submit) isEvent()        {}
func (Tick) isEvent()          {}
func (ClearFeedback) isEvent() {}
func (ReturnToMenu) isEvent()  {}
