package linepack

import (
	"errors"
	"fmt"

	"crosswarped.com/linepack/pkg/primitives"
)

// OversizedWordError reports a word longer than the line width. It is
// returned before any line is produced.
type OversizedWordError = primitives.OversizedWordError

var (
	// ErrInvalidWidth is returned for a line width that is not positive.
	ErrInvalidWidth = errors.New("line width must be positive")

	// ErrBankInconsistent is returned when a word the search relied on is
	// missing from the bank.
	ErrBankInconsistent = errors.New("word bank is inconsistent")
)

// NoFeasibleSequenceError reports that no target down to zero could be
// filled from the words left. Lines produced before it stay valid.
type NoFeasibleSequenceError struct {
	Remaining    int // words left in the bank
	LinesEmitted int
}

func (e *NoFeasibleSequenceError) Error() string {
	return fmt.Sprintf("no sequence of word lengths fits any line width (%d words left, %d lines written)", e.Remaining, e.LinesEmitted)
}
