package internal

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"crosswarped.com/linepack/pkg/primitives"
)

type SequencerParams struct {
	// Longest is the longest length worth scanning, normally the bank's
	// LongestWordLength.
	Longest int
	// Memo, if set, prunes searches already known to fail. It may be shared
	// between sequencers.
	Memo *FailureMemo
	// Parallel searches the top-level candidates concurrently.
	Parallel bool
}

// Stats counts the work done by a Sequencer.
type Stats struct {
	Nodes    int64
	MemoHits int64
}

// Sequencer finds combinations of word lengths that sum to a target.
//
// It works on its own copy of the counts and never touches the bank they came
// from.
type Sequencer struct {
	counts   primitives.LengthCounts
	longest  int
	memo     *FailureMemo
	parallel bool

	nodes    atomic.Int64
	memoHits atomic.Int64
}

func NewSequencer(counts primitives.LengthCounts, p SequencerParams) *Sequencer {
	longest := p.Longest
	if longest >= counts.Capacity() {
		longest = counts.Capacity() - 1
	}
	return &Sequencer{
		counts:   counts.Clone(),
		longest:  longest,
		memo:     p.Memo,
		parallel: p.Parallel,
	}
}

// Stats returns the work done so far.
func (s *Sequencer) Stats() Stats {
	return Stats{Nodes: s.nodes.Load(), MemoHits: s.memoHits.Load()}
}

// FindSequence returns lengths summing exactly to target, each used no more
// often than its count allows, or nil if there is no such combination.
//
// Lengths are tried longest first and the first combination found wins, so
// the result is deterministic. The sequence starts with the longest length
// chosen at the top of the search. The only errors are context errors.
func (s *Sequencer) FindSequence(ctx context.Context, target int) ([]int, error) {
	if s.parallel {
		return s.findParallel(ctx, target)
	}

	st := s.newSearch(s.counts.Clone())
	ok, err := st.find(ctx, target)
	if err != nil || !ok {
		return nil, err
	}
	return st.sequence(), nil
}

func (s *Sequencer) newSearch(counts primitives.LengthCounts) *search {
	return &search{s: s, counts: counts}
}

func (s *Sequencer) findParallel(ctx context.Context, target int) ([]int, error) {
	if target <= 1 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.nodes.Add(1)

	root := s.counts.Clone()
	if s.memo != nil && s.memo.Prunes(target, &root) {
		s.memoHits.Add(1)
		return nil, nil
	}

	var candidates []int
	for l := min(s.longest, target); l >= 0; l-- {
		if root.Count(l) == 0 {
			continue
		}
		if l == target {
			// Every longer length was skipped, so this is the first
			// candidate the sequential scan would have reached.
			return []int{l}, nil
		}
		candidates = append(candidates, l)
	}

	results := make([][]int, len(candidates))
	branchCtx := make([]context.Context, len(candidates))
	cancels := make([]context.CancelFunc, len(candidates))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range candidates {
		branchCtx[i], cancels[i] = context.WithCancel(gCtx)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	var mu sync.Mutex
	best := len(candidates)

	for i, l := range candidates {
		g.Go(func() error {
			st := s.newSearch(root.Clone())
			st.counts.Take(l)
			ok, err := st.find(branchCtx[i], target-l)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				// Superseded by a success at a lower index.
				return nil
			}
			if !ok {
				return nil
			}

			st.seq = append(st.seq, l)
			results[i] = st.sequence()

			mu.Lock()
			defer mu.Unlock()
			if i < best {
				best = i
				for j := i + 1; j < len(cancels); j++ {
					cancels[j]()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, seq := range results {
		if seq != nil {
			return seq, nil
		}
	}
	if s.memo != nil {
		s.memo.Store(target, &root)
	}
	return nil, nil
}

// search is one depth-first walk. It takes a length before descending and
// puts it back when backtracking, so a single count array serves the whole
// walk.
type search struct {
	s      *Sequencer
	counts primitives.LengthCounts

	// seq is built leaf first: the length completing the target is appended
	// before the lengths chosen above it.
	seq []int
}

func (st *search) find(ctx context.Context, target int) (bool, error) {
	if target <= 1 {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	st.s.nodes.Add(1)

	if st.s.memo != nil && st.s.memo.Prunes(target, &st.counts) {
		st.s.memoHits.Add(1)
		return false, nil
	}

	for l := min(st.s.longest, target); l >= 0; l-- {
		if st.counts.Count(l) == 0 {
			continue
		}
		if l == target {
			st.seq = append(st.seq, l)
			return true, nil
		}

		st.counts.Take(l)
		ok, err := st.find(ctx, target-l)
		st.counts.Put(l)
		if err != nil {
			return false, err
		}
		if ok {
			st.seq = append(st.seq, l)
			return true, nil
		}
	}

	if st.s.memo != nil {
		st.s.memo.Store(target, &st.counts)
	}
	return false, nil
}

// sequence returns the lengths found, top of the search first.
func (st *search) sequence() []int {
	seq := slices.Clone(st.seq)
	slices.Reverse(seq)
	return seq
}
