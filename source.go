package linepack

import (
	"bufio"
	"context"
	"io"
	"iter"
)

// maxTokenSize bounds a single word read by ReaderSource.
const maxTokenSize = 1 << 20

// WordSource produces the words to pack. The packer does not care about
// their order.
type WordSource interface {
	Words(ctx context.Context) iter.Seq2[string, error]
}

// WordSourceFunc adapts a function to a WordSource.
type WordSourceFunc func(ctx context.Context) iter.Seq2[string, error]

func (f WordSourceFunc) Words(ctx context.Context) iter.Seq2[string, error] {
	return f(ctx)
}

type readerSource struct {
	r io.Reader
}

// ReaderSource reads whitespace-delimited words from r.
func ReaderSource(r io.Reader) WordSource {
	return readerSource{r: r}
}

func (s readerSource) Words(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(s.r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxTokenSize)
		scanner.Split(bufio.ScanWords)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(scanner.Text(), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", err)
		}
	}
}

// SliceSource yields the given words in order.
type SliceSource []string

func (s SliceSource) Words(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, w := range s {
			if !yield(w, nil) {
				return
			}
		}
	}
}

// MultiSource yields the words of each source in turn.
func MultiSource(sources ...WordSource) WordSource {
	return WordSourceFunc(func(ctx context.Context) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, src := range sources {
				for w, err := range src.Words(ctx) {
					if !yield(w, err) || err != nil {
						return
					}
				}
			}
		}
	})
}

// LineSink receives finished lines, one call per line, in output order.
type LineSink interface {
	WriteLine(line string) error
}

// LineSinkFunc adapts a function to a LineSink.
type LineSinkFunc func(line string) error

func (f LineSinkFunc) WriteLine(line string) error {
	return f(line)
}

// SliceSink collects lines in memory.
type SliceSink struct {
	Lines []string
}

func (s *SliceSink) WriteLine(line string) error {
	s.Lines = append(s.Lines, line)
	return nil
}

// WriterSink writes each line followed by a newline. Call Flush when done.
type WriterSink struct {
	w *bufio.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: bufio.NewWriter(w)}
}

func (s *WriterSink) WriteLine(line string) error {
	if _, err := s.w.WriteString(line); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

func (s *WriterSink) Flush() error {
	return s.w.Flush()
}
