package linepack

import (
	"fmt"
	"strings"

	"crosswarped.com/linepack/pkg/primitives"
)

// Line is one packed output line.
type Line struct {
	Words []string
	// Target is the rendered length, trailing separator included, that the
	// words were chosen to fill.
	Target int
}

func NewLine(words []string, target int) Line {
	return Line{
		Words:  words,
		Target: target,
	}
}

// Repr returns the line as printed: the words joined by single separators.
func (l Line) Repr() string {
	return strings.Join(l.Words, primitives.Separator)
}

// Width returns the rendered width of the line under measure m.
func (l Line) Width(m primitives.Measure) int {
	return m.Len(l.Repr())
}

func (l Line) DebugString() string {
	return fmt.Sprintf("Line{target: %d, words: %q}", l.Target, l.Words)
}
