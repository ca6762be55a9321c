package spanz

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
)

// testEpoch is the fake clock's starting point in every test.
var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is the part of the clockz fake the tests drive.
type fakeClock interface {
	clockz.Clock
	Advance(d time.Duration)
}

// recordingTransport keeps a copy of every datagram it is given.
//
//nolint:govet // Field alignment optimized for test helper readability
type recordingTransport struct {
	datagrams [][]byte
	err       error
	closed    bool
	mu        sync.Mutex
}

func (r *recordingTransport) Send(datagram []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.datagrams = append(r.datagrams, append([]byte(nil), datagram...))
	return nil
}

func (r *recordingTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *recordingTransport) sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.datagrams))
	copy(out, r.datagrams)
	return out
}

func (r *recordingTransport) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// newTestTracer returns a tracer on a fake clock and recording transport.
func newTestTracer(t *testing.T, opts ...Option) (*Tracer, *recordingTransport, fakeClock) {
	t.Helper()
	transport := &recordingTransport{}
	clock := clockz.NewFakeClockAt(testEpoch)
	base := []Option{WithTransport(transport), WithClock(clock)}
	return New(append(base, opts...)...), transport, clock
}

// decodeLocal decodes a handle's local buffer, failing the test on error.
func decodeLocal(t *testing.T, h *Handle) []*tracepb.Span {
	t.Helper()
	spans, err := DecodeSpans(h.Serialized())
	require.NoError(t, err)
	return spans
}
