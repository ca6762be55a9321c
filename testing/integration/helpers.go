package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/spanz"
	"github.com/zoobzio/spanz/sink"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap/zaptest"
)

// Collector is a decoding sink on a loopback port that keeps every span
// it receives.
//
//nolint:govet // Field alignment optimized for test helper readability
type Collector struct {
	sink  *sink.Sink
	spans []*tracepb.Span
	mu    sync.Mutex
}

// NewCollector starts a collector that stops when the test ends.
func NewCollector(t *testing.T, workers int) *Collector {
	t.Helper()
	c := &Collector{}
	c.sink = sink.New(sink.Config{
		Addr:    "127.0.0.1:0",
		Workers: workers,
		Decode:  true,
	}, sink.WithLogger(zaptest.NewLogger(t)), sink.WithSpanHandler(c.handle))
	require.NoError(t, c.sink.Listen(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.sink.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return c
}

func (c *Collector) handle(spans []*tracepb.Span) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, spans...)
}

// Addr is the address tracers should ship to.
func (c *Collector) Addr() string {
	return c.sink.Addr().String()
}

// Spans returns a copy of everything received so far.
func (c *Collector) Spans() []*tracepb.Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*tracepb.Span, len(c.spans))
	copy(out, c.spans)
	return out
}

// WaitFor blocks until at least n spans have arrived.
func (c *Collector) WaitFor(t *testing.T, n int) []*tracepb.Span {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(c.Spans()) >= n
	}, 5*time.Second, 10*time.Millisecond, "expected %d spans", n)
	return c.Spans()
}

// NewTracer returns a tracer shipping to c, closed when the test ends.
func (c *Collector) NewTracer(t *testing.T, opts ...spanz.Option) *spanz.Tracer {
	t.Helper()
	opts = append([]spanz.Option{
		spanz.WithCollectorAddr(c.Addr()),
		spanz.WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	tracer := spanz.New(opts...)
	t.Cleanup(func() { _ = tracer.Close() })
	return tracer
}

// Step is one operation in a scripted trace.
type Step struct {
	Enter string
	Attrs map[string]any
	Exit  bool
}

// Run plays steps against a fresh handle and closes it.
func Run(t *testing.T, tracer *spanz.Tracer, steps ...Step) spanz.TraceID {
	t.Helper()
	h := tracer.NewHandle()
	for _, step := range steps {
		if step.Enter != "" {
			require.NoError(t, h.Enter(step.Enter))
		}
		for k, v := range step.Attrs {
			require.NoError(t, setAttr(h, k, v))
		}
		if step.Exit {
			require.NoError(t, h.Exit())
		}
	}
	id := h.TraceID()
	require.NoError(t, h.Close())
	return id
}

func setAttr(h *spanz.Handle, key string, value any) error {
	switch v := value.(type) {
	case string:
		return h.SetString(key, v)
	case bool:
		return h.SetBool(key, v)
	case int:
		return h.SetInt64(key, int64(v))
	case int64:
		return h.SetInt64(key, v)
	case float64:
		return h.SetFloat64(key, v)
	default:
		return fmt.Errorf("unsupported attribute type %T", value)
	}
}

// Leaf enters and exits a span in a single step.
func Leaf(name string) []Step {
	return []Step{{Enter: name}, {Exit: true}}
}

// ByTrace groups spans by trace id.
func ByTrace(spans []*tracepb.Span) map[spanz.TraceID][]*tracepb.Span {
	out := make(map[spanz.TraceID][]*tracepb.Span)
	for _, s := range spans {
		var id spanz.TraceID
		copy(id[:], s.GetTraceId())
		out[id] = append(out[id], s)
	}
	return out
}
