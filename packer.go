// Package linepack packs a stream of words into lines as close as possible to
// a target width, using every word exactly once.
//
// Words are grouped by rendered length (characters plus one trailing
// separator). For each line the packer searches, longest lengths first, for
// word lengths that sum exactly to width+1; the extra one is the separator
// trimmed from the end of the line. When no combination fits, the target is
// lowered one at a time until one does.
package linepack

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"crosswarped.com/linepack/internal"
	"crosswarped.com/linepack/pkg/primitives"
)

// DefaultWidth is the line width used when none is configured.
const DefaultWidth = 80

var tracer = otel.Tracer("crosswarped.com/linepack")

type Packer struct {
	Width     int
	Measure   primitives.Measure
	Normalize bool
	Memoize   bool
	Parallel  bool

	logger   *slog.Logger
	observer Observer
}

type PackerParams struct {
	Measure   primitives.Measure
	Normalize bool
	// DisableMemo turns off the cache of failed searches. Output is the same
	// either way; only the search time changes.
	DisableMemo bool
	Parallel    bool
	Logger      *slog.Logger
	Observer    Observer
}

func CreatePacker(width int, params PackerParams) *Packer {
	logger := params.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var observer Observer = nopObserver{}
	if params.Observer != nil {
		observer = params.Observer
	}
	return &Packer{
		Width:     width,
		Measure:   params.Measure,
		Normalize: params.Normalize,
		Memoize:   !params.DisableMemo,
		Parallel:  params.Parallel,
		logger:    logger,
		observer:  observer,
	}
}

// Summary describes a finished run.
type Summary struct {
	Words       int
	Lines       int
	Degrades    int
	SearchNodes int64
	MemoHits    int64
}

// wordBank is the part of *primitives.WordBank the packing loop uses.
type wordBank interface {
	PopWord(length int) (string, bool)
	IsExhausted() bool
	LengthCounts() primitives.LengthCounts
	LongestWordLength() int
	Len() int
}

// Lines packs the words of src and yields each line as soon as it is known.
//
// If the run fails, the error is yielded once as the last element. Lines
// yielded before it are valid.
func (p *Packer) Lines(ctx context.Context, src WordSource) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		_, err := p.run(ctx, src, func(l Line) bool {
			return yield(l, nil)
		})
		if err != nil {
			yield(Line{}, err)
		}
	}
}

// Pack packs the words of src, writing each line to sink.
func (p *Packer) Pack(ctx context.Context, src WordSource, sink LineSink) (Summary, error) {
	var sinkErr error
	summary, err := p.run(ctx, src, func(l Line) bool {
		sinkErr = sink.WriteLine(l.Repr())
		return sinkErr == nil
	})
	if err != nil {
		return summary, err
	}
	if sinkErr != nil {
		return summary, fmt.Errorf("write line: %w", sinkErr)
	}
	return summary, nil
}

func (p *Packer) run(ctx context.Context, src WordSource, emit func(Line) bool) (Summary, error) {
	if p.Width <= 0 {
		return Summary{}, fmt.Errorf("%w: %d", ErrInvalidWidth, p.Width)
	}

	ctx, span := tracer.Start(ctx, "linepack.Pack", trace.WithAttributes(
		attribute.Int("linepack.width", p.Width),
		attribute.String("linepack.measure", p.Measure.String()),
	))
	defer span.End()

	bank, err := primitives.LoadWordBank(ctx, src.Words(ctx), primitives.BankParams{
		MaxLength: p.Width,
		Measure:   p.Measure,
		Normalize: p.Normalize,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load words")
		return Summary{}, fmt.Errorf("load words: %w", err)
	}
	p.observer.WordsLoaded(bank.Len(), bank.LongestWordLength())
	p.logger.InfoContext(ctx, "words loaded",
		slog.Int("words", bank.Len()),
		slog.Int("longest", bank.LongestWordLength()),
		slog.Int("width", p.Width),
	)

	summary, err := p.packBank(ctx, bank, emit)
	span.SetAttributes(
		attribute.Int("linepack.words", summary.Words),
		attribute.Int("linepack.lines", summary.Lines),
		attribute.Int("linepack.degrades", summary.Degrades),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pack")
		return summary, err
	}
	p.logger.InfoContext(ctx, "words packed",
		slog.Int("lines", summary.Lines),
		slog.Int("degrades", summary.Degrades),
		slog.Int64("search_nodes", summary.SearchNodes),
		slog.Int64("memo_hits", summary.MemoHits),
	)
	return summary, nil
}

// packBank empties bank one line at a time. It stops early, without error,
// when emit returns false.
func (p *Packer) packBank(ctx context.Context, bank wordBank, emit func(Line) bool) (Summary, error) {
	var memo *internal.FailureMemo
	if p.Memoize {
		memo = internal.NewFailureMemo()
	}
	span := trace.SpanFromContext(ctx)

	summary := Summary{Words: bank.Len()}
	initial := p.Width + 1
	target := initial

	for !bank.IsExhausted() {
		seq := internal.NewSequencer(bank.LengthCounts(), internal.SequencerParams{
			Longest:  bank.LongestWordLength(),
			Memo:     memo,
			Parallel: p.Parallel,
		})
		lengths, err := seq.FindSequence(ctx, target)

		stats := seq.Stats()
		summary.SearchNodes += stats.Nodes
		summary.MemoHits += stats.MemoHits
		p.observer.SearchFinished(stats.Nodes, stats.MemoHits, lengths != nil)
		if err != nil {
			return summary, err
		}

		if lengths == nil {
			if target > 0 {
				p.observer.TargetDegraded(target, target-1)
				p.logger.DebugContext(ctx, "no sequence for target", slog.Int("target", target))
				span.AddEvent("degrade", trace.WithAttributes(attribute.Int("linepack.target", target)))
				summary.Degrades++
				target--
				continue
			}
			return summary, &NoFeasibleSequenceError{
				Remaining:    bank.Len(),
				LinesEmitted: summary.Lines,
			}
		}

		words := make([]string, 0, len(lengths))
		for _, l := range lengths {
			w, ok := bank.PopWord(l)
			if !ok {
				return summary, fmt.Errorf("%w: no word of length %d for sequence %v", ErrBankInconsistent, l, lengths)
			}
			words = append(words, w)
		}

		line := NewLine(words, target)
		summary.Lines++
		p.observer.LineEmitted(len(words), line.Width(p.Measure), target)
		p.logger.DebugContext(ctx, "line packed",
			slog.Int("target", target),
			slog.Int("words", len(words)),
		)
		if !emit(line) {
			return summary, nil
		}
		target = initial
	}
	return summary, nil
}
