package linepack

// Observer is notified of the progress of a run. Implementations must be
// cheap; they are called from the packing loop.
type Observer interface {
	WordsLoaded(words, longest int)
	LineEmitted(words, width, target int)
	TargetDegraded(from, to int)
	SearchFinished(nodes, memoHits int64, found bool)
}

type nopObserver struct{}

func (nopObserver) WordsLoaded(int, int)              {}
func (nopObserver) LineEmitted(int, int, int)         {}
func (nopObserver) TargetDegraded(int, int)           {}
func (nopObserver) SearchFinished(int64, int64, bool) {}
