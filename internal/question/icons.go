package question

var defaultIcons = []string{
	"apple", "orange", "car", "ball", "carrot", "star",
	"flower", "banana", "fish", "butterfly", "cupcake", "watermelon",
}

// DefaultIcons returns a copy of the built-in icon catalog.
func DefaultIcons() []string {
	out := make([]string, len(defaultIcons))
	copy(out, defaultIcons)
	return out
}
