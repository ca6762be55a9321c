package spanz

import "errors"

var (
	// ErrSpanNotClosed is returned by Handle.Close when spans are still open.
	ErrSpanNotClosed = errors.New("span not closed")

	// ErrSerializedTooLarge is returned when one handle's output can never fit in a datagram.
	ErrSerializedTooLarge = errors.New("serialized data too large")

	// ErrTransport wraps socket creation and send failures.
	ErrTransport = errors.New("transport failure")

	// ErrNoOpenSpan is returned by Exit and the Set methods on an empty stack.
	ErrNoOpenSpan = errors.New("no open span")

	// ErrHandleClosed is returned by any call on a finalized handle.
	ErrHandleClosed = errors.New("handle already closed")

	// ErrInvalidUTF8 is returned for names, keys and string values that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
)
