package primitives

import "fmt"

// LengthCounts efficiently represents how many words of each rendered length
// are available.
type LengthCounts struct {
	counts   []int
	nonEmpty int
}

// NewLengthCounts returns an empty set of counts able to index lengths in
// [0, capacity).
func NewLengthCounts(capacity int) LengthCounts {
	return LengthCounts{
		counts: make([]int, capacity),
	}
}

// Add records one more word of the given length.
func (c *LengthCounts) Add(length int) error {
	if length < 0 || length >= len(c.counts) {
		return fmt.Errorf("length %d is out of range [0, %d)", length, len(c.counts))
	}

	if c.counts[length] == 0 {
		c.nonEmpty++
	}
	c.counts[length]++
	return nil
}

// Take removes one word of the given length. It reports false, leaving the
// counts unchanged, when no word of that length is available.
func (c *LengthCounts) Take(length int) bool {
	if length < 0 || length >= len(c.counts) || c.counts[length] == 0 {
		return false
	}

	c.counts[length]--
	if c.counts[length] == 0 {
		c.nonEmpty--
	}
	return true
}

// Put undoes a Take.
func (c *LengthCounts) Put(length int) {
	if c.counts[length] == 0 {
		c.nonEmpty++
	}
	c.counts[length]++
}

// Count returns the number of words of the given length.
func (c LengthCounts) Count(length int) int {
	if length < 0 || length >= len(c.counts) {
		return 0
	}
	return c.counts[length]
}

// NonEmpty returns the number of lengths with at least one word.
func (c LengthCounts) NonEmpty() int {
	return c.nonEmpty
}

// IsEmpty checks if no length has any words.
func (c LengthCounts) IsEmpty() bool {
	return c.nonEmpty == 0
}

// Capacity returns the number of lengths that can be indexed.
func (c LengthCounts) Capacity() int {
	return len(c.counts)
}

// Total returns the number of words over all lengths.
func (c LengthCounts) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Available returns the lengths with a non-zero count, ascending.
func (c LengthCounts) Available() []int {
	lengths := make([]int, 0, c.nonEmpty)
	for l, n := range c.counts {
		if n > 0 {
			lengths = append(lengths, l)
		}
	}
	return lengths
}

// Clone returns an independent copy; mutating one never affects the other.
func (c LengthCounts) Clone() LengthCounts {
	counts := make([]int, len(c.counts))
	copy(counts, c.counts)
	return LengthCounts{
		counts:   counts,
		nonEmpty: c.nonEmpty,
	}
}

func (c LengthCounts) String() string {
	return fmt.Sprintf("LengthCounts(%v)", c.counts)
}
