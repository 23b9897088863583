package runloop

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsSink is a MetricsSink backed by
// github.com/prometheus/client_golang, grounded in estuary-flow's use of
// prometheus/client_golang for container-level metrics. Instruments are
// created lazily per metric name and registered against reg (pass
// prometheus.DefaultRegisterer for the global registry, or a dedicated
// *prometheus.Registry in tests to avoid collisions).
type PrometheusMetricsSink struct {
	reg       prometheus.Registerer
	namespace string

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
	gauges     map[string]prometheus.Gauge
}

// NewPrometheusMetricsSink builds a MetricsSink that registers instruments
// under namespace against reg.
func NewPrometheusMetricsSink(reg prometheus.Registerer, namespace string) *PrometheusMetricsSink {
	return &PrometheusMetricsSink{
		reg:        reg,
		namespace:  namespace,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
		gauges:     make(map[string]prometheus.Gauge),
	}
}

func (s *PrometheusMetricsSink) CounterAdd(name string, n int64) {
	s.mu.Lock()
	c, ok := s.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      "runloop counter " + name,
		})
		s.reg.MustRegister(c)
		s.counters[name] = c
	}
	s.mu.Unlock()
	c.Add(float64(n))
}

func (s *PrometheusMetricsSink) HistogramObserve(name string, v float64) {
	s.mu.Lock()
	h, ok := s.histograms[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      "runloop histogram " + name,
		})
		s.reg.MustRegister(h)
		s.histograms[name] = h
	}
	s.mu.Unlock()
	h.Observe(v)
}

func (s *PrometheusMetricsSink) GaugeSet(name string, v float64) {
	s.mu.Lock()
	g, ok := s.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      name,
			Help:      "runloop gauge " + name,
		})
		s.reg.MustRegister(g)
		s.gauges[name] = g
	}
	s.mu.Unlock()
	g.Set(v)
}
