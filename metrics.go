package spanz

import "github.com/prometheus/client_golang/prometheus"

// metricsCollector exposes Outbox counters to Prometheus. Values are
// read at scrape time, so the hot path never touches Prometheus types.
type metricsCollector struct {
	tracer         *Tracer
	merges         *prometheus.Desc
	flushes        *prometheus.Desc
	sentBytes      *prometheus.Desc
	droppedBatches *prometheus.Desc
	droppedBytes   *prometheus.Desc
	buffered       *prometheus.Desc
}

// NewMetricsCollector returns a prometheus.Collector reporting t's
// Outbox statistics.
func NewMetricsCollector(t *Tracer) prometheus.Collector {
	return &metricsCollector{
		tracer: t,
		merges: prometheus.NewDesc("spanz_merges_total",
			"Handles merged into the outbox.", nil, nil),
		flushes: prometheus.NewDesc("spanz_flushes_total",
			"Datagrams sent to the collector.", nil, nil),
		sentBytes: prometheus.NewDesc("spanz_datagrams_bytes_total",
			"Bytes sent to the collector.", nil, nil),
		droppedBatches: prometheus.NewDesc("spanz_dropped_batches_total",
			"Batches dropped on capacity or transport failure.", nil, nil),
		droppedBytes: prometheus.NewDesc("spanz_dropped_bytes_total",
			"Bytes dropped on capacity or transport failure.", nil, nil),
		buffered: prometheus.NewDesc("spanz_outbox_bytes",
			"Bytes waiting in the outbox.", nil, nil),
	}
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.merges
	ch <- c.flushes
	ch <- c.sentBytes
	ch <- c.droppedBatches
	ch <- c.droppedBytes
	ch <- c.buffered
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.tracer.Stats()
	ch <- prometheus.MustNewConstMetric(c.merges, prometheus.CounterValue, float64(s.Merges))
	ch <- prometheus.MustNewConstMetric(c.flushes, prometheus.CounterValue, float64(s.Flushes))
	ch <- prometheus.MustNewConstMetric(c.sentBytes, prometheus.CounterValue, float64(s.SentBytes))
	ch <- prometheus.MustNewConstMetric(c.droppedBatches, prometheus.CounterValue, float64(s.DroppedBatches))
	ch <- prometheus.MustNewConstMetric(c.droppedBytes, prometheus.CounterValue, float64(s.DroppedBytes))
	ch <- prometheus.MustNewConstMetric(c.buffered, prometheus.GaugeValue, float64(s.Buffered))
}
