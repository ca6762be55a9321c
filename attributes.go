package spanz

import (
	"fmt"
	"unicode/utf8"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
)

// SetString appends a string attribute to the innermost open span.
// Keys are neither deduplicated nor validated beyond UTF-8.
func (h *Handle) SetString(key Tag, value string) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("attribute %q value: %w", key, ErrInvalidUTF8)
	}
	kv, err := h.newAttribute(key)
	if err != nil {
		return err
	}
	kv.Value.Value = &commonpb.AnyValue_StringValue{StringValue: value}
	return nil
}

// SetBool appends a boolean attribute to the innermost open span.
func (h *Handle) SetBool(key Tag, value bool) error {
	kv, err := h.newAttribute(key)
	if err != nil {
		return err
	}
	kv.Value.Value = &commonpb.AnyValue_BoolValue{BoolValue: value}
	return nil
}

// SetInt64 appends an integer attribute to the innermost open span.
func (h *Handle) SetInt64(key Tag, value int64) error {
	kv, err := h.newAttribute(key)
	if err != nil {
		return err
	}
	kv.Value.Value = &commonpb.AnyValue_IntValue{IntValue: value}
	return nil
}

// SetFloat64 appends a double attribute to the innermost open span.
func (h *Handle) SetFloat64(key Tag, value float64) error {
	kv, err := h.newAttribute(key)
	if err != nil {
		return err
	}
	kv.Value.Value = &commonpb.AnyValue_DoubleValue{DoubleValue: value}
	return nil
}

// newAttribute allocates a keyed record in the arena and appends it to
// the innermost open span. The caller fills in the value.
func (h *Handle) newAttribute(key Tag) (*commonpb.KeyValue, error) {
	if h.arena == nil {
		return nil, ErrHandleClosed
	}
	span := h.arena.top()
	if span == nil {
		return nil, ErrNoOpenSpan
	}
	if !utf8.ValidString(key) {
		return nil, fmt.Errorf("attribute key: %w", ErrInvalidUTF8)
	}

	kv := h.arena.allocKeyValue()
	kv.Key = key
	span.Attributes = append(span.Attributes, kv)
	return kv, nil
}
