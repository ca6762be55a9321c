package spanz

import (
	"fmt"

	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// traceIDField is the wire number of Span.trace_id. Every span written
// by a Handle leads with it, which is what lets DecodeSpans find span
// boundaries in a datagram with no length prefixes.
var traceIDField = (&tracepb.Span{}).ProtoReflect().Descriptor().Fields().ByName("trace_id").Number()

// DecodeSpans splits a datagram of concatenated Span messages.
// A new span starts at every trace_id field after the first one.
// Spans decoded before an error are returned with it.
func DecodeSpans(datagram []byte) ([]*tracepb.Span, error) {
	var (
		spans   []*tracepb.Span
		start   int
		hasID   bool
		current = datagram
	)

	for off := 0; off < len(datagram); {
		num, typ, n := protowire.ConsumeTag(current)
		if n < 0 {
			return spans, fmt.Errorf("tag at offset %d: %w", off, protowire.ParseError(n))
		}

		if num == traceIDField {
			if hasID {
				span, err := unmarshalSpan(datagram[start:off])
				if err != nil {
					return spans, fmt.Errorf("span at offset %d: %w", start, err)
				}
				spans = append(spans, span)
				start = off
			}
			hasID = true
		}

		m := protowire.ConsumeFieldValue(num, typ, current[n:])
		if m < 0 {
			return spans, fmt.Errorf("field %d at offset %d: %w", num, off, protowire.ParseError(m))
		}
		off += n + m
		current = datagram[off:]
	}

	if start < len(datagram) {
		span, err := unmarshalSpan(datagram[start:])
		if err != nil {
			return spans, fmt.Errorf("span at offset %d: %w", start, err)
		}
		spans = append(spans, span)
	}
	return spans, nil
}

func unmarshalSpan(b []byte) (*tracepb.Span, error) {
	span := &tracepb.Span{}
	if err := proto.Unmarshal(b, span); err != nil {
		return nil, err
	}
	return span, nil
}
