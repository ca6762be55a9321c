// Package spanz provides an in-process span recorder that batches
// OTLP-encoded spans into UDP datagrams.
//
// spanz sits on the hot path of request handling. It keeps per-trace
// state in a Handle, encodes every finished span immediately, and ships
// accumulated bytes to a collector on a fixed loopback endpoint in
// best-effort, fire-and-forget datagrams.
//
// Core Components:
//   - Tracer: Owns the id generator, clock and outgoing Outbox.
//   - Handle: One trace. Tracks the stack of open spans and the local buffer.
//   - Outbox: Process-wide batch of encoded spans waiting to be sent.
//   - Transport: Datagram sink. UDPTransport dials lazily on first send.
//
// Basic Usage:
//
//	tracer := spanz.Default()
//
//	h := tracer.NewHandle()
//	_ = h.Enter("request")
//	_ = h.SetString("http.method", "GET")
//	_ = h.Enter("db.query")
//	_ = h.Exit()
//	_ = h.Exit()
//	if err := h.Close(); err != nil {
//		// see ErrSpanNotClosed and ErrSerializedTooLarge
//	}
//
// Thread Safety:
//
// A Handle belongs to one goroutine. Enter, Exit and the Set methods do
// no locking. Tracer and Outbox are safe for concurrent use; the Outbox
// holds a single mutex across merge and flush so a datagram is always
// sent before the bytes that would have overflowed it are appended.
//
// Datagram Framing:
//
// Spans are concatenated with no length prefix. Use DecodeSpans on the
// receiving side to split a datagram back into spans.
package spanz

const (
	// MaxBufferedSize is the largest datagram spanz will send: the
	// maximum UDP payload minus IP, UDP and safety header allowance.
	MaxBufferedSize = 65536 - 1 - 8 - 20

	// DefaultCollectorAddr is the loopback endpoint the collector binds.
	DefaultCollectorAddr = "127.0.0.1:9999"
)

// Key represents a span operation name.
type Key = string

// Tag represents an attribute key.
type Tag = string
