package spanz

import (
	"fmt"
	"unicode/utf8"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

var marshalOptions = proto.MarshalOptions{}

// Handle records one trace. Spans are opened with Enter and closed with
// Exit in strict LIFO order; each closed span is encoded immediately
// into the handle's local buffer. Close hands the buffer to the
// Tracer's Outbox.
//
// A Handle is NOT safe for concurrent use. Keep it on the goroutine
// that handles the unit of work it describes.
type Handle struct {
	tracer  *Tracer
	arena   *arena
	traceID TraceID
}

// NewHandle starts a new trace with a fresh trace id.
func (t *Tracer) NewHandle() *Handle {
	return &Handle{
		tracer:  t,
		arena:   t.acquireArena(),
		traceID: t.ids.TraceID(),
	}
}

// TraceID returns the id shared by every span of this handle.
func (h *Handle) TraceID() TraceID {
	return h.traceID
}

// Depth returns the number of currently open spans.
func (h *Handle) Depth() int {
	if h.arena == nil {
		return 0
	}
	return len(h.arena.stack)
}

// Enter opens a span as a child of the innermost open span, if any.
func (h *Handle) Enter(name Key) error {
	if h.arena == nil {
		return ErrHandleClosed
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("span name: %w", ErrInvalidUTF8)
	}

	parent := h.arena.top()
	ref, span := h.arena.allocSpan()

	span.Name = name
	span.StartTimeUnixNano = h.tracer.now()
	span.TraceId = append(span.TraceId, h.traceID[:]...)
	spanID := h.tracer.ids.SpanID()
	span.SpanId = append(span.SpanId, spanID[:]...)
	if parent != nil {
		span.ParentSpanId = append(span.ParentSpanId, parent.SpanId...)
	}

	h.arena.push(ref)
	return nil
}

// Exit closes the innermost open span and appends its encoding to the
// local buffer.
func (h *Handle) Exit() error {
	if h.arena == nil {
		return ErrHandleClosed
	}
	span := h.arena.top()
	if span == nil {
		return ErrNoOpenSpan
	}
	h.arena.pop()

	span.EndTimeUnixNano = h.tracer.now()
	return h.encode(span)
}

func (h *Handle) encode(span *tracepb.Span) error {
	buf, err := marshalOptions.MarshalAppend(h.arena.buf, span)
	if err != nil {
		return fmt.Errorf("encode span %q: %w", span.Name, err)
	}
	h.arena.buf = buf
	return nil
}

// Serialized returns the spans encoded so far. The slice is owned by
// the handle and is only valid until Close.
func (h *Handle) Serialized() []byte {
	if h.arena == nil {
		return nil
	}
	return h.arena.buf
}

// CopySerialized copies the encoded spans into dst and returns the
// number of bytes written. It writes nothing and returns 0 when dst is
// too small to hold all of them.
func (h *Handle) CopySerialized(dst []byte) int {
	src := h.Serialized()
	if len(src) > len(dst) {
		return 0
	}
	return copy(dst, src)
}

// Close finalizes the handle. It fails with ErrSpanNotClosed if any span
// is still open, otherwise merges the local buffer into the Outbox,
// which may flush a datagram first. The handle's records are released
// whatever the outcome; a second Close returns ErrHandleClosed.
func (h *Handle) Close() error {
	if h.arena == nil {
		return ErrHandleClosed
	}
	defer h.release()

	if depth := len(h.arena.stack); depth > 0 {
		return fmt.Errorf("%w: %d open", ErrSpanNotClosed, depth)
	}
	return h.tracer.outbox.Merge(h.arena.buf)
}

func (h *Handle) release() {
	h.tracer.releaseArena(h.arena)
	h.arena = nil
}
