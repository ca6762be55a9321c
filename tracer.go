package spanz

import (
	"sync"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Tracer creates Handles and owns the state they share: the id
// generator, the clock and the Outbox. Safe for concurrent use by
// multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	ids    *IDGenerator
	clock  clockz.Clock
	outbox *Outbox
	arenas sync.Pool
}

// Option configures a Tracer.
type Option func(*tracerOptions)

//nolint:govet // Field order optimized for readability
type tracerOptions struct {
	clock         clockz.Clock
	logger        *zap.Logger
	transport     Transport
	ids           *IDGenerator
	collectorAddr string
	maxSize       int
	dropOnFailure bool
}

// WithClock injects the clock used for span timestamps.
// Enables deterministic timestamps in tests.
func WithClock(clock clockz.Clock) Option {
	return func(o *tracerOptions) {
		o.clock = clock
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *tracerOptions) {
		o.logger = logger
	}
}

// WithTransport replaces the UDP transport.
func WithTransport(transport Transport) Option {
	return func(o *tracerOptions) {
		o.transport = transport
	}
}

// WithCollectorAddr sets the UDP endpoint of the default transport.
// Ignored when WithTransport is also given.
func WithCollectorAddr(addr string) Option {
	return func(o *tracerOptions) {
		o.collectorAddr = addr
	}
}

// WithMaxBufferedSize lowers the datagram ceiling. Values outside
// (0, MaxBufferedSize] are ignored.
func WithMaxBufferedSize(size int) Option {
	return func(o *tracerOptions) {
		if size > 0 && size <= MaxBufferedSize {
			o.maxSize = size
		}
	}
}

// WithDropOnFailure turns capacity and transport failures into counted
// drops instead of errors returned from Handle.Close.
func WithDropOnFailure(drop bool) Option {
	return func(o *tracerOptions) {
		o.dropOnFailure = drop
	}
}

// WithIDGenerator shares or replaces the id generator.
func WithIDGenerator(ids *IDGenerator) Option {
	return func(o *tracerOptions) {
		o.ids = ids
	}
}

// New creates a tracer. Without options it sends to DefaultCollectorAddr
// using the real clock.
func New(opts ...Option) *Tracer {
	o := tracerOptions{
		clock:         clockz.RealClock,
		logger:        zap.NewNop(),
		collectorAddr: DefaultCollectorAddr,
		maxSize:       MaxBufferedSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = NewIDGenerator()
	}
	if o.transport == nil {
		o.transport = NewUDPTransport(o.collectorAddr)
	}

	t := &Tracer{
		ids:    o.ids,
		clock:  o.clock,
		outbox: newOutbox(o.transport, o.maxSize, o.dropOnFailure, o.logger),
	}
	t.arenas.New = func() any {
		return newArena()
	}
	return t
}

var (
	defaultTracer *Tracer
	defaultOnce   sync.Once
)

// Default returns the process-wide tracer, built on first use from the
// SPANZ_* environment. An invalid environment falls back to defaults.
func Default() *Tracer {
	defaultOnce.Do(func() {
		cfg, err := LoadConfig()
		if err == nil {
			defaultTracer, err = NewFromConfig(cfg, WithLogger(zap.L()))
		}
		if err != nil {
			zap.L().Warn("invalid spanz config, using defaults", zap.Error(err))
			defaultTracer = New(WithLogger(zap.L()))
		}
	})
	return defaultTracer
}

// IDs returns the tracer's id generator.
func (t *Tracer) IDs() *IDGenerator {
	return t.ids
}

// Outbox returns the tracer's outgoing buffer.
func (t *Tracer) Outbox() *Outbox {
	return t.outbox
}

// Stats returns a snapshot of the outbox counters.
func (t *Tracer) Stats() Stats {
	return t.outbox.Stats()
}

// Close flushes anything still buffered and closes the transport.
func (t *Tracer) Close() error {
	return t.outbox.Close()
}

func (t *Tracer) now() uint64 {
	return uint64(t.clock.Now().UnixNano()) //nolint:gosec // wall clock is after 1970
}

func (t *Tracer) acquireArena() *arena {
	return t.arenas.Get().(*arena) //nolint:forcetypeassert // pool only holds arenas
}

func (t *Tracer) releaseArena(a *arena) {
	a.reset()
	t.arenas.Put(a)
}
