package runloop

import (
	"sync"

	"github.com/streamtask/runloop/metrics"
)

// Metric names per §6, "Metrics sink".
const (
	MetricEnvelopes      = "envelopes"
	MetricNullEnvelopes  = "nullEnvelopes"
	MetricProcesses      = "processes"
	MetricWindows        = "windows"
	MetricCommits        = "commits"
	MetricChooseNs       = "chooseNs"
	MetricBlockNs        = "blockNs"
	MetricProcessNs      = "processNs"
	MetricWindowNs       = "windowNs"
	MetricCommitNs       = "commitNs"
	MetricPendingMessage = "pendingMessages"
	MetricUtilization    = "utilization"
)

// noopMetricsSink discards everything; it is the Config default.
type noopMetricsSink struct{}

func (noopMetricsSink) CounterAdd(string, int64)         {}
func (noopMetricsSink) HistogramObserve(string, float64) {}
func (noopMetricsSink) GaugeSet(string, float64)         {}

// ProviderMetricsSink adapts a metrics.Provider (the teacher's generic
// instrument factory, kept in the metrics/ sub-package) into a MetricsSink:
// it lazily creates one counter/histogram/gauge per named metric and
// forwards updates to it. It is an in-memory alternative to a dedicated
// collector (e.g. Prometheus, see metrics_prometheus.go); Config's default
// sink is noopMetricsSink, so this one is used only when set through
// WithMetrics.
type ProviderMetricsSink struct {
	provider metrics.Provider

	mu         sync.Mutex
	counters   map[string]metrics.Counter
	histograms map[string]metrics.Histogram
	gauges     map[string]metrics.Gauge
}

// NewProviderMetricsSink wraps provider as a MetricsSink. Pass
// metrics.NewBasicProvider() for an in-process, test-friendly sink.
func NewProviderMetricsSink(provider metrics.Provider) *ProviderMetricsSink {
	return &ProviderMetricsSink{
		provider:   provider,
		counters:   make(map[string]metrics.Counter),
		histograms: make(map[string]metrics.Histogram),
		gauges:     make(map[string]metrics.Gauge),
	}
}

func (s *ProviderMetricsSink) CounterAdd(name string, n int64) {
	s.mu.Lock()
	c, ok := s.counters[name]
	if !ok {
		c = s.provider.Counter(name)
		s.counters[name] = c
	}
	s.mu.Unlock()
	c.Add(n)
}

func (s *ProviderMetricsSink) HistogramObserve(name string, v float64) {
	s.mu.Lock()
	h, ok := s.histograms[name]
	if !ok {
		h = s.provider.Histogram(name)
		s.histograms[name] = h
	}
	s.mu.Unlock()
	h.Record(v)
}

// GaugeSet records an absolute float64 value, e.g. the utilization ratio
// in [0,1]. metrics.Gauge holds it directly rather than truncating to an
// integer delta, so fractional values (the common case for utilization)
// survive exactly.
func (s *ProviderMetricsSink) GaugeSet(name string, v float64) {
	s.mu.Lock()
	g, ok := s.gauges[name]
	if !ok {
		g = s.provider.Gauge(name)
		s.gauges[name] = g
	}
	s.mu.Unlock()
	g.Set(v)
}
