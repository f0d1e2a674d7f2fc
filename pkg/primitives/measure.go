package primitives

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// Separator is appended to every word when it is placed on a line.
const Separator = " "

// Measure is an enum selecting how the characters of a word are counted.
type Measure int

const (
	// MeasureRunes counts Unicode code points.
	MeasureRunes Measure = iota
	// MeasureGraphemes counts user-perceived characters (grapheme clusters).
	MeasureGraphemes
	// MeasureCells counts monospace terminal columns, so wide CJK characters
	// and emoji count as two.
	MeasureCells
)

var measureNames = map[Measure]string{
	MeasureRunes:     "runes",
	MeasureGraphemes: "graphemes",
	MeasureCells:     "cells",
}

// ParseMeasure parses the name of a measure, as printed by Measure.String.
func ParseMeasure(name string) (Measure, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "runes":
		return MeasureRunes, nil
	case "graphemes":
		return MeasureGraphemes, nil
	case "cells":
		return MeasureCells, nil
	}
	return MeasureRunes, fmt.Errorf("unknown measure %q (want runes, graphemes or cells)", name)
}

func (m Measure) String() string {
	if name, ok := measureNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Measure(%d)", int(m))
}

// Len returns the number of characters in word under this measure. A
// non-empty word is at least one character long, even when it only holds
// zero-width characters such as U+200B.
func (m Measure) Len(word string) int {
	if word == "" {
		return 0
	}
	var n int
	switch m {
	case MeasureGraphemes:
		n = uniseg.GraphemeClusterCount(word)
	case MeasureCells:
		n = uniseg.StringWidth(word)
	default:
		n = utf8.RuneCountInString(word)
	}
	return max(n, 1)
}

// RenderedLen returns the length of word once its trailing separator is
// appended.
func (m Measure) RenderedLen(word string) int {
	return m.Len(word) + m.Len(Separator)
}

// Normalize converts word to Unicode normalization form C.
func Normalize(word string) string {
	return norm.NFC.String(word)
}
