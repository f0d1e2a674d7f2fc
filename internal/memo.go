package internal

import (
	"strconv"
	"sync"

	"crosswarped.com/linepack/pkg/primitives"
)

// FailureMemo remembers searches that found no sequence.
//
// An entry is keyed by the target and by which lengths were available, and
// holds how many words of each of those lengths were available. Any later
// search for the same key with no more words of any length cannot succeed
// either. Since words are only ever removed from a bank, one memo can serve
// every search of a run.
type FailureMemo struct {
	mu     sync.Mutex
	failed map[string][]int
}

func NewFailureMemo() *FailureMemo {
	return &FailureMemo{failed: make(map[string][]int)}
}

func memoKey(target int, available []int) string {
	buf := make([]byte, 0, 4+4*len(available))
	buf = strconv.AppendInt(buf, int64(target), 10)
	buf = append(buf, ':')
	for i, l := range available {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(l), 10)
	}
	return string(buf)
}

func supplyOf(counts *primitives.LengthCounts, available []int) []int {
	supply := make([]int, len(available))
	for i, l := range available {
		supply[i] = counts.Count(l)
	}
	return supply
}

// Prunes reports whether a search for target over counts is already known
// to fail.
func (m *FailureMemo) Prunes(target int, counts *primitives.LengthCounts) bool {
	available := counts.Available()
	key := memoKey(target, available)

	m.mu.Lock()
	cached, ok := m.failed[key]
	m.mu.Unlock()
	if !ok {
		return false
	}

	for i, l := range available {
		if counts.Count(l) > cached[i] {
			return false
		}
	}
	return true
}

// Store records that a search for target over counts failed.
func (m *FailureMemo) Store(target int, counts *primitives.LengthCounts) {
	available := counts.Available()
	key := memoKey(target, available)
	supply := supplyOf(counts, available)

	m.mu.Lock()
	m.failed[key] = supply
	m.mu.Unlock()
}

// Len returns the number of remembered failures.
func (m *FailureMemo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.failed)
}
