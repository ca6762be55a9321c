package spanz

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Outbox accumulates encoded spans from finalized handles and sends them
// as datagrams no larger than its size limit. It is drained only when a
// merge would overflow it, or by an explicit Flush or Close.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Outbox struct {
	transport      Transport
	logger         *zap.Logger
	buf            []byte
	maxSize        int
	mu             sync.Mutex // Held across Send so flush-before-append is atomic.
	dropOnFailure  bool
	merges         atomic.Uint64
	flushes        atomic.Uint64
	sentBytes      atomic.Uint64
	droppedBatches atomic.Uint64
	droppedBytes   atomic.Uint64
}

// Stats is a snapshot of Outbox activity.
type Stats struct {
	Merges         uint64
	Flushes        uint64
	SentBytes      uint64
	DroppedBatches uint64
	DroppedBytes   uint64
	Buffered       int
}

func newOutbox(transport Transport, maxSize int, dropOnFailure bool, logger *zap.Logger) *Outbox {
	return &Outbox{
		transport:     transport,
		logger:        logger,
		buf:           make([]byte, 0, defaultSerializedCapacity),
		maxSize:       maxSize,
		dropOnFailure: dropOnFailure,
	}
}

// Merge appends one handle's encoded spans.
//
// A local buffer that alone reaches the size limit is rejected with
// ErrSerializedTooLarge. If the combined length would reach the limit,
// the pending bytes are sent and cleared first. A failed send drops the
// pending batch and, unless the outbox drops on failure, local too.
func (o *Outbox) Merge(local []byte) error {
	if len(local) >= o.maxSize {
		o.drop(len(local))
		return o.fail(fmt.Errorf("%w: %d bytes, limit %d", ErrSerializedTooLarge, len(local), o.maxSize))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.buf)+len(local) >= o.maxSize {
		if err := o.flushLocked(); err != nil {
			if err = o.fail(err); err != nil {
				o.drop(len(local))
				return err
			}
		}
	}

	o.buf = append(o.buf, local...)
	o.merges.Add(1)
	return nil
}

// Flush sends whatever is pending, if anything.
func (o *Outbox) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fail(o.flushLocked())
}

// Close flushes pending bytes and closes the transport.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return errors.Join(o.fail(o.flushLocked()), o.transport.Close())
}

// Len returns the number of bytes waiting to be sent.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buf)
}

// Stats returns a snapshot of the counters.
func (o *Outbox) Stats() Stats {
	return Stats{
		Merges:         o.merges.Load(),
		Flushes:        o.flushes.Load(),
		SentBytes:      o.sentBytes.Load(),
		DroppedBatches: o.droppedBatches.Load(),
		DroppedBytes:   o.droppedBytes.Load(),
		Buffered:       o.Len(),
	}
}

// flushLocked sends and clears the buffer. The batch is cleared even
// when the send fails; nothing is retried. Caller holds o.mu.
func (o *Outbox) flushLocked() error {
	n := len(o.buf)
	if n == 0 {
		return nil
	}

	err := o.transport.Send(o.buf)
	o.buf = o.buf[:0]
	if err != nil {
		o.drop(n)
		return fmt.Errorf("%w: send %d bytes: %w", ErrTransport, n, err)
	}

	o.flushes.Add(1)
	o.sentBytes.Add(uint64(n))
	o.logger.Debug("flushed outbox", zap.Int("bytes", n))
	return nil
}

func (o *Outbox) drop(n int) {
	o.droppedBatches.Add(1)
	o.droppedBytes.Add(uint64(n)) //nolint:gosec // n is a slice length
}

// fail applies the failure policy: log and swallow when dropping on
// failure, otherwise return err unchanged.
func (o *Outbox) fail(err error) error {
	if err == nil {
		return nil
	}
	o.logger.Warn("spanz batch dropped", zap.Error(err))
	if o.dropOnFailure {
		return nil
	}
	return err
}
