package spanz

import (
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/proto"
)

const (
	defaultStackCapacity      = 16
	defaultSerializedCapacity = 2048
)

// spanRef is a non-owning reference into an arena. A ref taken before
// the arena was reset carries a stale generation and resolves to nil.
type spanRef struct {
	index      int32
	generation uint32
}

// arena owns every record a Handle builds: spans, attributes, the open
// span stack and the local serialized buffer. Records are reused across
// handles via the Tracer's pool, and all of them are invalidated
// together by reset.
type arena struct {
	spans      []*tracepb.Span
	kvs        []*commonpb.KeyValue
	stack      []spanRef
	buf        []byte
	spansUsed  int
	kvsUsed    int
	generation uint32
}

func newArena() *arena {
	return &arena{
		stack: make([]spanRef, 0, defaultStackCapacity),
		buf:   make([]byte, 0, defaultSerializedCapacity),
	}
}

// allocSpan returns a zeroed span record and its reference.
func (a *arena) allocSpan() (spanRef, *tracepb.Span) {
	if a.spansUsed == len(a.spans) {
		a.spans = append(a.spans, &tracepb.Span{})
	}
	ref := spanRef{index: int32(a.spansUsed), generation: a.generation}
	span := a.spans[a.spansUsed]
	a.spansUsed++
	return ref, span
}

// allocKeyValue returns an attribute record with an empty value.
func (a *arena) allocKeyValue() *commonpb.KeyValue {
	if a.kvsUsed == len(a.kvs) {
		a.kvs = append(a.kvs, &commonpb.KeyValue{Value: &commonpb.AnyValue{}})
	}
	kv := a.kvs[a.kvsUsed]
	a.kvsUsed++
	return kv
}

// get resolves ref, returning nil for stale or out-of-range references.
func (a *arena) get(ref spanRef) *tracepb.Span {
	if ref.generation != a.generation || int(ref.index) >= a.spansUsed {
		return nil
	}
	return a.spans[ref.index]
}

// push records ref as the innermost open span.
func (a *arena) push(ref spanRef) {
	a.stack = append(a.stack, ref)
}

// pop drops the innermost open span.
func (a *arena) pop() {
	a.stack = a.stack[:len(a.stack)-1]
}

// top returns the innermost open span, or nil when the stack is empty.
func (a *arena) top() *tracepb.Span {
	if len(a.stack) == 0 {
		return nil
	}
	return a.get(a.stack[len(a.stack)-1])
}

// reset releases every record at once. Id and attribute slices keep
// their backing arrays so the next handle does not reallocate them.
func (a *arena) reset() {
	for _, span := range a.spans[:a.spansUsed] {
		traceID, spanID, parentID := span.TraceId[:0], span.SpanId[:0], span.ParentSpanId[:0]
		attrs := span.Attributes
		clear(attrs)

		proto.Reset(span)

		span.TraceId, span.SpanId, span.ParentSpanId = traceID, spanID, parentID
		span.Attributes = attrs[:0]
	}
	for _, kv := range a.kvs[:a.kvsUsed] {
		kv.Key = ""
		kv.Value.Value = nil
	}

	a.spansUsed = 0
	a.kvsUsed = 0
	a.stack = a.stack[:0]
	a.buf = a.buf[:0]
	a.generation++
}
