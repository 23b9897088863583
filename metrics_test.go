package runloop

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamtask/runloop/metrics"
)

func TestProviderMetricsSink_ForwardsToProvider(t *testing.T) {
	provider := metrics.NewBasicProvider()
	sink := NewProviderMetricsSink(provider)

	sink.CounterAdd(MetricEnvelopes, 3)
	sink.CounterAdd(MetricEnvelopes, 2)
	sink.HistogramObserve(MetricProcessNs, 1.5)
	sink.GaugeSet(MetricUtilization, 0.5)
	sink.GaugeSet(MetricUtilization, 0.25)

	require.Equal(t, int64(5), provider.Counter(MetricEnvelopes).(*metrics.BasicCounter).Snapshot())
	require.Equal(t, 0.25, provider.Gauge(MetricUtilization).(*metrics.BasicGauge).Snapshot())
}

func TestProviderMetricsSink_GaugeSetIsAbsoluteAndKeepsFractionalPrecision(t *testing.T) {
	provider := metrics.NewBasicProvider()
	sink := NewProviderMetricsSink(provider)

	sink.GaugeSet(MetricUtilization, 0.75)
	require.Equal(t, 0.75, provider.Gauge(MetricUtilization).(*metrics.BasicGauge).Snapshot())

	sink.GaugeSet(MetricUtilization, 0.1)
	require.Equal(t, 0.1, provider.Gauge(MetricUtilization).(*metrics.BasicGauge).Snapshot(), "GaugeSet replaces the value outright, it does not accumulate a delta")
}

func TestNoopMetricsSink_DiscardsEverything(t *testing.T) {
	var sink noopMetricsSink
	require.NotPanics(t, func() {
		sink.CounterAdd("x", 1)
		sink.HistogramObserve("y", 1.0)
		sink.GaugeSet("z", 1.0)
	})
}
