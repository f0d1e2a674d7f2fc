package primitives

import (
	"context"
	"fmt"
	"iter"
)

// OversizedWordError reports a word that cannot fit on a line on its own.
type OversizedWordError struct {
	Word   string
	Length int // rendered length, separator included
	Max    int // configured line width
}

func (e *OversizedWordError) Error() string {
	return fmt.Sprintf("word %q is longer than the line width %d (rendered length %d)", e.Word, e.Max, e.Length)
}

type BankParams struct {
	// MaxLength is the target line width. Rendered lengths up to MaxLength+1
	// are accepted since the trailing separator of a line is trimmed.
	MaxLength int
	Measure   Measure
	Normalize bool
}

// WordBank holds the words that are still to be placed, grouped by rendered
// length.
type WordBank struct {
	// buckets[n] is a stack of the words whose rendered length is n.
	buckets [][]string
	counts  LengthCounts
	longest int
}

// LoadWordBank consumes every word of words into a new bank.
//
// It fails with an *OversizedWordError as soon as a word would not fit on a
// line by itself; nothing is kept from a failed load. Empty tokens are
// skipped.
func LoadWordBank(ctx context.Context, words iter.Seq2[string, error], p BankParams) (*WordBank, error) {
	if p.MaxLength <= 0 {
		return nil, fmt.Errorf("line width must be positive, got %d", p.MaxLength)
	}

	b := &WordBank{
		buckets: make([][]string, p.MaxLength+2),
		counts:  NewLengthCounts(p.MaxLength + 2),
	}

	for word, err := range words {
		if err != nil {
			return nil, fmt.Errorf("reading words: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if word == "" {
			continue
		}
		if p.Normalize {
			word = Normalize(word)
		}

		length := p.Measure.RenderedLen(word)
		if length > p.MaxLength+1 {
			return nil, &OversizedWordError{Word: word, Length: length, Max: p.MaxLength}
		}
		b.buckets[length] = append(b.buckets[length], word)
		if err := b.counts.Add(length); err != nil {
			return nil, err
		}
	}

	for l := range b.buckets {
		if len(b.buckets[l]) > 0 {
			b.longest = l
		}
	}
	return b, nil
}

// PopWord removes and returns a word of exactly the given rendered length.
// It reports false if there is none, which is not an error.
func (b *WordBank) PopWord(length int) (string, bool) {
	if length < 0 || length >= len(b.buckets) || len(b.buckets[length]) == 0 {
		return "", false
	}

	bucket := b.buckets[length]
	word := bucket[len(bucket)-1]
	bucket[len(bucket)-1] = ""
	b.buckets[length] = bucket[:len(bucket)-1]
	b.counts.Take(length)
	return word, true
}

// IsExhausted checks if every word has been popped.
func (b *WordBank) IsExhausted() bool {
	return b.counts.IsEmpty()
}

// LengthCounts returns a snapshot of the number of words left per length,
// indexable in [0, MaxLength+2).
func (b *WordBank) LengthCounts() LengthCounts {
	return b.counts.Clone()
}

// LongestWordLength returns the longest rendered length seen during load.
//
// It is not updated as words are popped.
func (b *WordBank) LongestWordLength() int {
	return b.longest
}

// Len returns the number of words left.
func (b *WordBank) Len() int {
	return b.counts.Total()
}
