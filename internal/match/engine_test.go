package match

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tugmath/internal/question"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	return NewEngine(question.NewSeeded(7), cfg)
}

func addOnly(timeLimit int) Config {
	cfg := DefaultConfig()
	cfg.Player1Name = "Ada"
	cfg.Player2Name = "Bo"
	cfg.TimeLimitSeconds = timeLimit
	return cfg
}

// typeAnswer keys in value digit by digit.
func typeAnswer(e *Engine, p Player, value int) {
	for _, r := range strconv.Itoa(value) {
		e.Apply(Digit{Player: p, Digit: int(r - '0')})
	}
}

func answerCorrectly(e *Engine, p Player) State {
	typeAnswer(e, p, e.State().Player(p).Problem.Answer)
	return e.Apply(Submit{Player: p})
}

func answerWrongly(e *Engine, p Player) State {
	typeAnswer(e, p, e.State().Player(p).Problem.Answer+1)
	return e.Apply(Submit{Player: p})
}

func TestNewEngineStartsInMenu(t *testing.T) {
	e := newTestEngine(t, addOnly(60))
	s := e.State()
	assert.Equal(t, PhaseMenu, s.Phase)
	assert.Equal(t, Unresolved, s.Winner)
	assert.Equal(t, "Ada", s.Config.Player1Name)
}

func TestStartInitialisesMatch(t *testing.T) {
	e := newTestEngine(t, addOnly(60))
	s := e.Apply(Start{})

	assert.Equal(t, PhasePlaying, s.Phase)
	assert.Equal(t, 0, s.Rope)
	assert.Equal(t, 60, s.TimeRemaining)
	assert.Equal(t, Unresolved, s.Winner)
	for _, p := range []Player{Player1, Player2} {
		ps := s.Player(p)
		assert.True(t, ps.Problem.Valid())
		assert.Equal(t, question.Add, ps.Problem.Operator)
		assert.Empty(t, ps.Input)
		assert.Equal(t, OutcomeNone, ps.Outcome)
	}
}

func TestFiveCorrectAnswersWin(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})

	var s State
	for i := 0; i < RopeLimit; i++ {
		s = answerCorrectly(e, Player1)
		assert.Equal(t, -(i + 1), s.Rope)
	}
	assert.Equal(t, -5, s.Rope)
	assert.Equal(t, PhaseFinished, s.Phase)
	assert.Equal(t, WinPlayer1, s.Winner)
	assert.Equal(t, "Ada", s.WinnerName())
}

func TestPlayer2PullsPositive(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})

	var s State
	for i := 0; i < RopeLimit; i++ {
		s = answerCorrectly(e, Player2)
	}
	assert.Equal(t, 5, s.Rope)
	assert.Equal(t, WinPlayer2, s.Winner)
	assert.Equal(t, "Bo", s.WinnerName())
}

func TestWrongAnswerPullsTowardOpponent(t *testing.T) {
	for _, p := range []Player{Player1, Player2} {
		e := newTestEngine(t, addOnly(0))
		e.Apply(Start{})
		s := answerWrongly(e, p)
		assert.Equal(t, p.Opponent().pull(), s.Rope, "player %d", p)
		assert.Equal(t, p, p.Opponent().Opponent())
	}
}

func TestCorrectAnswerReplacesProblem(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})

	s := answerCorrectly(e, Player1)
	p1 := s.Player(Player1)
	assert.Equal(t, OutcomeCorrect, p1.Outcome)
	assert.Empty(t, p1.Input)
	assert.Equal(t, uint64(1), p1.FeedbackSeq)
	assert.True(t, p1.Problem.Valid())
}

func TestIncorrectAnswerPenalises(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	start := e.Apply(Start{})

	s := answerWrongly(e, Player1)
	assert.Equal(t, 1, s.Rope, "wrong answer moves the rope toward the opponent")
	assert.Equal(t, start.Player(Player1).Problem, s.Player(Player1).Problem, "problem is kept for a retry")
	assert.Equal(t, OutcomeIncorrect, s.Player(Player1).Outcome)
	assert.Empty(t, s.Player(Player1).Input)

	s = answerWrongly(e, Player2)
	assert.Equal(t, 0, s.Rope)
}

func TestEmptySubmissionIsIncorrect(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})

	s := e.Apply(Submit{Player: Player2})
	assert.Equal(t, -1, s.Rope)
	assert.Equal(t, OutcomeIncorrect, s.Player(Player2).Outcome)
}

func TestWrongAnswersCanLoseTheMatch(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})

	var s State
	for i := 0; i < RopeLimit; i++ {
		s = e.Apply(Submit{Player: Player1})
	}
	assert.Equal(t, PhaseFinished, s.Phase)
	assert.Equal(t, WinPlayer2, s.Winner)
}

func TestDigitInputIsCapped(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})

	for _, d := range []int{1, 2, 3, 4, 5} {
		e.Apply(Digit{Player: Player1, Digit: d})
	}
	s := e.State()
	assert.Equal(t, "123", s.Player(Player1).Input)
	assert.Empty(t, s.Player(Player2).Input)

	s = e.Apply(Digit{Player: Player2, Digit: 12})
	assert.Empty(t, s.Player(Player2).Input)
	s = e.Apply(Digit{Player: Player2, Digit: -1})
	assert.Empty(t, s.Player(Player2).Input)
}

func TestClearInput(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})
	typeAnswer(e, Player1, 42)

	s := e.Apply(Clear{Player: Player1})
	assert.Empty(t, s.Player(Player1).Input)
	assert.Equal(t, 0, s.Rope)
}

func TestInputEventsIgnoredInMenu(t *testing.T) {
	e := newTestEngine(t, addOnly(30))
	before := e.State()

	e.Apply(Digit{Player: Player1, Digit: 3})
	e.Apply(Submit{Player: Player1})
	e.Apply(Clear{Player: Player2})
	e.Apply(Tick{})
	e.Apply(ClearFeedback{Player: Player1})

	assert.Equal(t, before, e.State())
}

func TestUnknownPlayerIgnored(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	before := e.Apply(Start{})

	assert.Equal(t, before, e.Apply(Digit{Player: 3, Digit: 1}))
	assert.Equal(t, before, e.Apply(Submit{Player: 0}))
}

func TestTimeoutTie(t *testing.T) {
	e := newTestEngine(t, addOnly(30))
	e.Apply(Start{})

	var s State
	for i := 0; i < 29; i++ {
		s = e.Apply(Tick{})
		require.Equal(t, PhasePlaying, s.Phase)
	}
	assert.Equal(t, 1, s.TimeRemaining)

	s = e.Apply(Tick{})
	assert.Equal(t, 0, s.TimeRemaining)
	assert.Equal(t, PhaseFinished, s.Phase)
	assert.Equal(t, WinTie, s.Winner)
	assert.Equal(t, "Tie", s.WinnerName())
}

func TestTimeoutFavoursRopeSide(t *testing.T) {
	tests := []struct {
		name   string
		player Player
		want   Winner
	}{
		{"player1 ahead", Player1, WinPlayer1},
		{"player2 ahead", Player2, WinPlayer2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, addOnly(2))
			e.Apply(Start{})
			answerCorrectly(e, tt.player)
			e.Apply(Tick{})
			s := e.Apply(Tick{})
			assert.Equal(t, PhaseFinished, s.Phase)
			assert.Equal(t, tt.want, s.Winner)
		})
	}
}

func TestUnboundedTicksAreInert(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	before := e.Apply(Start{})

	for i := 0; i < 500; i++ {
		e.Apply(Tick{})
	}
	s := e.State()
	assert.Equal(t, before, s)
	assert.Equal(t, PhasePlaying, s.Phase)

	for i := 0; i < RopeLimit; i++ {
		s = answerCorrectly(e, Player2)
	}
	assert.Equal(t, PhaseFinished, s.Phase)
}

func TestFinishedIgnoresPlayEvents(t *testing.T) {
	e := newTestEngine(t, addOnly(60))
	e.Apply(Start{})
	for i := 0; i < RopeLimit; i++ {
		answerCorrectly(e, Player1)
	}
	frozen := e.State()
	require.Equal(t, PhaseFinished, frozen.Phase)

	for i := 0; i < 3; i++ {
		assert.Equal(t, frozen, e.Apply(Digit{Player: Player2, Digit: 4}))
		assert.Equal(t, frozen, e.Apply(Clear{Player: Player1}))
		assert.Equal(t, frozen, e.Apply(Submit{Player: Player2}))
		assert.Equal(t, frozen, e.Apply(Tick{}))
	}
}

func TestClearFeedback(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})

	first := answerWrongly(e, Player1).Player(Player1).FeedbackSeq
	second := answerCorrectly(e, Player1).Player(Player1).FeedbackSeq
	require.Greater(t, second, first)

	s := e.Apply(ClearFeedback{Player: Player1, Seq: first})
	assert.Equal(t, OutcomeCorrect, s.Player(Player1).Outcome, "stale clear must not wipe newer feedback")

	s = e.Apply(ClearFeedback{Player: Player1, Seq: second})
	assert.Equal(t, OutcomeNone, s.Player(Player1).Outcome)
	assert.Equal(t, 0, s.Rope)

	answerWrongly(e, Player2)
	s = e.Apply(ClearFeedback{Player: Player2})
	assert.Equal(t, OutcomeNone, s.Player(Player2).Outcome)
}

func TestClearFeedbackAfterFinish(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	e.Apply(Start{})
	var s State
	for i := 0; i < RopeLimit; i++ {
		s = answerCorrectly(e, Player1)
	}
	require.Equal(t, OutcomeCorrect, s.Player(Player1).Outcome)

	s = e.Apply(ClearFeedback{Player: Player1, Seq: s.Player(Player1).FeedbackSeq})
	assert.Equal(t, OutcomeNone, s.Player(Player1).Outcome)
	assert.Equal(t, PhaseFinished, s.Phase)
	assert.Equal(t, WinPlayer1, s.Winner)
}

func TestRestartReusesConfig(t *testing.T) {
	e := newTestEngine(t, addOnly(45))
	e.Apply(Start{})
	for i := 0; i < RopeLimit; i++ {
		answerCorrectly(e, Player2)
	}

	s := e.Apply(Start{})
	assert.Equal(t, PhasePlaying, s.Phase)
	assert.Equal(t, 0, s.Rope)
	assert.Equal(t, 45, s.TimeRemaining)
	assert.Equal(t, Unresolved, s.Winner)
	assert.Equal(t, "Ada", s.Config.Player1Name)
	assert.Equal(t, uint64(0), s.Player(Player2).FeedbackSeq)
}

func TestStartWithNewConfig(t *testing.T) {
	e := newTestEngine(t, addOnly(45))
	cfg := Config{
		Player1Name:      "Cy",
		Player2Name:      "Di",
		Operations:       []question.Operator{question.Multiply},
		MaxResult:        20,
		TimeLimitSeconds: 120,
		VisualMode:       question.NumbersOnly,
	}
	s := e.Apply(Start{Config: &cfg})
	assert.Equal(t, 120, s.TimeRemaining)
	assert.Equal(t, question.Multiply, s.Player(Player1).Problem.Operator)
	assert.Equal(t, question.Numeric, s.Player(Player2).Problem.Display)
	assert.Equal(t, "Di", s.Config.Player2Name)
}

func TestStartIgnoredWhilePlaying(t *testing.T) {
	e := newTestEngine(t, addOnly(60))
	e.Apply(Start{})
	e.Apply(Tick{})
	before := answerCorrectly(e, Player1)

	assert.Equal(t, before, e.Apply(Start{}))
}

func TestEmptyOperationsFallBackToAdd(t *testing.T) {
	cfg := addOnly(0)
	cfg.Operations = nil
	e := newTestEngine(t, cfg)
	s := e.Apply(Start{})
	assert.Equal(t, []question.Operator{question.Add}, s.Config.Operations)
	assert.Equal(t, question.Add, s.Player(Player1).Problem.Operator)
}

func TestReturnToMenu(t *testing.T) {
	e := newTestEngine(t, addOnly(60))
	e.Apply(Start{})
	answerCorrectly(e, Player1)

	s := e.Apply(ReturnToMenu{})
	assert.Equal(t, PhaseMenu, s.Phase)
	assert.Equal(t, 0, s.Rope)
	assert.Equal(t, Unresolved, s.Winner)
	assert.Equal(t, "Ada", s.Config.Player1Name)
	assert.Empty(t, s.Player(Player1).Input)

	s = e.Apply(Start{})
	assert.Equal(t, PhasePlaying, s.Phase)
}

func TestRopeStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for game := 0; game < 50; game++ {
		e := newTestEngine(t, addOnly(0))
		s := e.Apply(Start{})
		for step := 0; step < 200 && s.Phase == PhasePlaying; step++ {
			p := Player(rng.IntN(2) + 1)
			if rng.IntN(3) == 0 {
				s = answerWrongly(e, p)
			} else {
				s = answerCorrectly(e, p)
			}
			require.GreaterOrEqual(t, s.Rope, -RopeLimit)
			require.LessOrEqual(t, s.Rope, RopeLimit)
			if s.Phase == PhaseFinished {
				require.Contains(t, []int{-RopeLimit, RopeLimit}, s.Rope)
			}
		}
	}
}

func TestSnapshotsAreIndependent(t *testing.T) {
	e := newTestEngine(t, addOnly(0))
	s := e.Apply(Start{})
	s.Config.Operations[0] = question.Divide
	s.Players[0].Input = "999"

	fresh := e.State()
	assert.Equal(t, question.Add, fresh.Config.Operations[0])
	assert.Empty(t, fresh.Player(Player1).Input)
}
