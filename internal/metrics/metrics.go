// Package metrics exports packing progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linepack"

// Recorder implements linepack.Observer on top of Prometheus collectors.
type Recorder struct {
	wordsLoaded  prometheus.Counter
	longestWord  prometheus.Gauge
	linesEmitted prometheus.Counter
	lineWidth    prometheus.Histogram
	degrades     prometheus.Counter
	searches     *prometheus.CounterVec
	searchNodes  prometheus.Counter
	memoHits     prometheus.Counter
}

// NewRecorder registers the collectors with reg. A nil reg uses the default
// registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		wordsLoaded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_loaded_total",
			Help:      "Words loaded into word banks",
		}),
		longestWord: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "longest_word_length",
			Help:      "Rendered length of the longest word in the last bank loaded",
		}),
		linesEmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_emitted_total",
			Help:      "Lines packed",
		}),
		lineWidth: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "line_width",
			Help:      "Measured width of packed lines",
			Buckets:   []float64{10, 20, 40, 60, 72, 76, 78, 79, 80, 100, 120},
		}),
		degrades: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "target_degrades_total",
			Help:      "Times the line target was lowered after a failed search",
		}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Sequence searches by result",
		}, []string{"result"}),
		searchNodes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_nodes_total",
			Help:      "Search states visited",
		}),
		memoHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memo_hits_total",
			Help:      "Search states pruned by the failure memo",
		}),
	}
}

func (r *Recorder) WordsLoaded(words, longest int) {
	r.wordsLoaded.Add(float64(words))
	r.longestWord.Set(float64(longest))
}

func (r *Recorder) LineEmitted(words, width, target int) {
	r.linesEmitted.Inc()
	r.lineWidth.Observe(float64(width))
}

func (r *Recorder) TargetDegraded(from, to int) {
	r.degrades.Inc()
}

func (r *Recorder) SearchFinished(nodes, memoHits int64, found bool) {
	result := "miss"
	if found {
		result = "found"
	}
	r.searches.WithLabelValues(result).Inc()
	r.searchNodes.Add(float64(nodes))
	r.memoHits.Add(float64(memoHits))
}
