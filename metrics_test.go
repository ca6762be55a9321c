package spanz

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollectorReportsOutbox(t *testing.T) {
	tracer, _, _ := newTestTracer(t, WithMaxBufferedSize(100))
	require.NoError(t, tracer.Outbox().Merge(filled(60, 'a')))
	require.NoError(t, tracer.Outbox().Merge(filled(50, 'b')))

	collector := NewMetricsCollector(tracer)
	assert.Equal(t, 6, testutil.CollectAndCount(collector))

	expected := `
# HELP spanz_flushes_total Datagrams sent to the collector.
# TYPE spanz_flushes_total counter
spanz_flushes_total 1
# HELP spanz_datagrams_bytes_total Bytes sent to the collector.
# TYPE spanz_datagrams_bytes_total counter
spanz_datagrams_bytes_total 60
# HELP spanz_outbox_bytes Bytes waiting in the outbox.
# TYPE spanz_outbox_bytes gauge
spanz_outbox_bytes 50
`
	err := testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"spanz_flushes_total", "spanz_datagrams_bytes_total", "spanz_outbox_bytes")
	require.NoError(t, err)
}

func TestMetricsCollectorRegisters(t *testing.T) {
	tracer, _, _ := newTestTracer(t)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewMetricsCollector(tracer)))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}
