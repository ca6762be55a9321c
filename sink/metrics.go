package sink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	datagrams      prometheus.Counter
	bytes          prometheus.Counter
	spans          prometheus.Counter
	decodeFailures prometheus.Counter
}

// newMetrics creates the sink counters, registering them with reg when
// it is non-nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		datagrams: factory.NewCounter(prometheus.CounterOpts{
			Name: "spanz_sink_datagrams_total",
			Help: "Datagrams received by the sink",
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "spanz_sink_bytes_total",
			Help: "Bytes received by the sink",
		}),
		spans: factory.NewCounter(prometheus.CounterOpts{
			Name: "spanz_sink_spans_total",
			Help: "Spans decoded by the sink",
		}),
		decodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "spanz_sink_decode_failures_total",
			Help: "Datagrams that failed to decode",
		}),
	}
}
