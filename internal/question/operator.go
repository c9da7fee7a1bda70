package question

import (
	"fmt"
	"strings"
)

// Operator is one of the four arithmetic operations a problem can use.
type Operator string

const (
	Add      Operator = "add"
	Subtract Operator = "subtract"
	Multiply Operator = "multiply"
	Divide   Operator = "divide"
)

// Operators lists every operator in menu order.
func Operators() []Operator {
	return []Operator{Add, Subtract, Multiply, Divide}
}

// Symbol returns the glyph shown between the operands.
func (o Operator) Symbol() string {
	switch o {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "×"
	case Divide:
		return "÷"
	default:
		return "?"
	}
}

// Apply computes a op b. Division is integer division; a zero divisor yields 0.
func (o Operator) Apply(a, b int) int {
	switch o {
	case Add:
		return a + b
	case Subtract:
		return a - b
	case Multiply:
		return a * b
	case Divide:
		if b == 0 {
			return 0
		}
		return a / b
	default:
		return 0
	}
}

// Valid reports whether o is one of the four known operators.
func (o Operator) Valid() bool {
	switch o {
	case Add, Subtract, Multiply, Divide:
		return true
	}
	return false
}

// ParseOperator accepts an operator name or its symbol.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "+", "plus":
		return Add, nil
	case "subtract", "sub", "-", "minus":
		return Subtract, nil
	case "multiply", "mul", "×", "x", "*", "times":
		return Multiply, nil
	case "divide", "div", "÷", "/":
		return Divide, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

func (o Operator) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("unknown operator %q", string(o))
	}
	return []byte(o), nil
}

func (o *Operator) UnmarshalText(text []byte) error {
	parsed, err := ParseOperator(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// VisualMode is the policy deciding when a problem may be drawn with icons.
type VisualMode string

const (
	NumbersOnly      VisualMode = "numbers"
	Mixed            VisualMode = "mixed"
	ObjectsPreferred VisualMode = "objects"
)

// VisualModes lists every policy in menu order.
func VisualModes() []VisualMode {
	return []VisualMode{NumbersOnly, Mixed, ObjectsPreferred}
}

// Description is the menu hint text for the policy.
func (m VisualMode) Description() string {
	switch m {
	case NumbersOnly:
		return "Questions will only show numbers"
	case Mixed:
		return "Questions will mix numbers and object visuals"
	case ObjectsPreferred:
		return "Questions will show object visuals when possible"
	default:
		return ""
	}
}

// ParseVisualMode accepts the policy names and the older menu spellings.
func ParseVisualMode(s string) (VisualMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "numbers", "only-number", "numbers-only":
		return NumbersOnly, nil
	case "mixed", "mix":
		return Mixed, nil
	case "objects", "only-objects", "objects-preferred":
		return ObjectsPreferred, nil
	}
	return "", fmt.Errorf("unknown visual mode %q", s)
}

func (m *VisualMode) UnmarshalText(text []byte) error {
	parsed, err := ParseVisualMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DisplayKind tells the renderer whether to draw digits or counted icons.
type DisplayKind string

const (
	Numeric DisplayKind = "numeric"
	Iconic  DisplayKind = "iconic"
)
