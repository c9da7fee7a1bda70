// Package question generates the arithmetic problems players race to answer.
package question

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// MaxIconCount is the largest operand that can be drawn as counted icons.
const MaxIconCount = 20

// Problem is one generated question. It is never mutated; a new Problem
// replaces the old one when the player needs another question.
type Problem struct {
	Operand1 int         `json:"operand1"`
	Operand2 int         `json:"operand2"`
	Operator Operator    `json:"operator"`
	Answer   int         `json:"answer"`
	Display  DisplayKind `json:"display"`
	Icon     string      `json:"icon"`
}

// Valid reports whether the problem is internally consistent.
func (p Problem) Valid() bool {
	if !p.Operator.Valid() || p.Operand1 < 0 || p.Operand2 < 0 || p.Answer < 0 {
		return false
	}
	if p.Operator == Divide {
		return p.Operand2 > 0 && p.Operand1 == p.Operand2*p.Answer
	}
	return p.Operator.Apply(p.Operand1, p.Operand2) == p.Answer
}

func (p Problem) String() string {
	return fmt.Sprintf("%d %s %d = ?", p.Operand1, p.Operator.Symbol(), p.Operand2)
}

// Generator builds problems from an injected random source so that a seed
// reproduces the same sequence of questions.
type Generator struct {
	rng   *rand.Rand
	icons []string
}

// NewGenerator returns a Generator drawing from rng. An empty icon catalog
// falls back to DefaultIcons.
func NewGenerator(rng *rand.Rand, icons []string) *Generator {
	if len(icons) == 0 {
		icons = DefaultIcons()
	}
	return &Generator{rng: rng, icons: icons}
}

// NewSource returns the PCG source used for seeded generation.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewSeeded is shorthand for a Generator over NewSource(seed) with the
// default icon catalog.
func NewSeeded(seed uint64) *Generator {
	return NewGenerator(NewSource(seed), nil)
}

// Generate produces one problem. An empty operator set means addition only.
func (g *Generator) Generate(ops []Operator, maxResult int, mode VisualMode) Problem {
	if len(ops) == 0 {
		ops = []Operator{Add}
	}
	op := ops[g.rng.IntN(len(ops))]

	var p Problem
	switch op {
	case Subtract:
		p = g.subtract(maxResult)
	case Multiply:
		p = g.multiply(maxResult)
	case Divide:
		p = g.divide(maxResult)
	default:
		p = g.add(maxResult)
	}

	p.Display = g.display(p, mode)
	p.Icon = g.icons[g.rng.IntN(len(g.icons))]
	return p
}

func (g *Generator) add(maxResult int) Problem {
	answer := g.between(2, max(2, maxResult))
	a := g.between(1, answer-1)
	return Problem{Operand1: a, Operand2: answer - a, Operator: Add, Answer: answer}
}

func (g *Generator) subtract(maxResult int) Problem {
	a := g.between(2, max(2, maxResult))
	b := g.between(1, a-1)
	return Problem{Operand1: a, Operand2: b, Operator: Subtract, Answer: a - b}
}

func (g *Generator) multiply(maxResult int) Problem {
	a := g.between(1, max(1, isqrt(maxResult)))
	b := g.between(1, max(1, maxResult/a))
	return Problem{Operand1: a, Operand2: b, Operator: Multiply, Answer: a * b}
}

func (g *Generator) divide(maxResult int) Problem {
	divisor := g.between(1, 10)
	quotient := g.between(1, 10)
	dividend := divisor * quotient
	if dividend > maxResult {
		// Clamp onto an exact division by two. For maxResult 1 this yields 0 ÷ 2.
		divisor = 2
		quotient = max(0, maxResult) / divisor
		dividend = quotient * divisor
	}
	return Problem{Operand1: dividend, Operand2: divisor, Operator: Divide, Answer: quotient}
}

func (g *Generator) display(p Problem, mode VisualMode) DisplayKind {
	if !IconEligible(p) {
		return Numeric
	}
	switch mode {
	case ObjectsPreferred:
		return Iconic
	case Mixed:
		if g.rng.IntN(2) == 0 {
			return Iconic
		}
	}
	return Numeric
}

// IconEligible reports whether p may be rendered with counted icons.
func IconEligible(p Problem) bool {
	if p.Operator != Add && p.Operator != Subtract {
		return false
	}
	return p.Operand1 <= MaxIconCount && p.Operand2 <= MaxIconCount
}

// between returns a uniform integer in [lo, hi]; hi < lo collapses to lo.
func (g *Generator) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}

func isqrt(n int) int {
	if n < 1 {
		return 0
	}
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
