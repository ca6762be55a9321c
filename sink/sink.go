// Package sink implements a collector for spanz datagrams.
//
// A Sink binds one UDP address and runs several readers against it,
// either sharing a single socket or, with ReusePort, each on its own
// SO_REUSEPORT socket so the kernel spreads datagrams across them. By
// default datagrams are counted and discarded; with Decode set they
// are split into spans and passed to the span handler.
package sink

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/spanz"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultReadBufferSize = 1 << 20

// Config describes how the sink listens.
type Config struct {
	// Addr is the UDP address to bind, e.g. "127.0.0.1:9999".
	Addr string

	// Workers is the number of concurrent readers. Values below 1 mean 1.
	Workers int

	// ReusePort gives every reader its own SO_REUSEPORT socket.
	ReusePort bool

	// Decode splits datagrams into spans instead of discarding them.
	Decode bool

	// ReadBufferSize is the per-reader receive buffer. Defaults to 1 MiB.
	ReadBufferSize int
}

// SpanHandler receives the spans decoded from one datagram. It is
// called concurrently from every reader.
type SpanHandler func(spans []*tracepb.Span)

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the sink's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// WithRegisterer registers the sink's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Sink) {
		s.registerer = reg
	}
}

// WithSpanHandler sets the handler for decoded spans.
func WithSpanHandler(handler SpanHandler) Option {
	return func(s *Sink) {
		s.handler = handler
	}
}

// Sink receives spanz datagrams.
//
//nolint:govet // Field order optimized for readability
type Sink struct {
	cfg        Config
	logger     *zap.Logger
	registerer prometheus.Registerer
	handler    SpanHandler
	metrics    *metrics
	conns      []net.PacketConn
}

// New creates a sink. No socket is bound until Listen.
func New(cfg Config, opts ...Option) *Sink {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	s := &Sink{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.registerer)
	return s
}

// Listen binds the reader sockets.
func (s *Sink) Listen(ctx context.Context) error {
	if len(s.conns) > 0 {
		return errors.New("sink already listening")
	}

	if !s.cfg.ReusePort {
		conn, err := (&net.ListenConfig{}).ListenPacket(ctx, "udp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
		}
		s.conns = append(s.conns, conn)
		return nil
	}

	lc := &net.ListenConfig{Control: reusePort}
	addr := s.cfg.Addr
	for i := 0; i < s.cfg.Workers; i++ {
		conn, err := lc.ListenPacket(ctx, "udp", addr)
		if err != nil {
			s.closeConns()
			return fmt.Errorf("listen %s (reader %d): %w", addr, i, err)
		}
		s.conns = append(s.conns, conn)
		// Later readers join the port the first one actually bound.
		addr = conn.LocalAddr().String()
	}
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Sink) Addr() net.Addr {
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[0].LocalAddr()
}

// Serve runs the readers until ctx is cancelled or a reader fails.
// The sockets are closed when Serve returns.
func (s *Sink) Serve(ctx context.Context) error {
	if len(s.conns) == 0 {
		return errors.New("sink is not listening")
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.cfg.Workers; i++ {
		conn := s.conns[i%len(s.conns)]
		g.Go(func() error {
			return s.read(gctx, conn)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.closeConns()
		return nil
	})

	s.logger.Info("sink serving",
		zap.Stringer("addr", s.Addr()),
		zap.Int("workers", s.cfg.Workers),
		zap.Bool("reuseport", s.cfg.ReusePort),
		zap.Bool("decode", s.cfg.Decode),
	)
	return g.Wait()
}

func (s *Sink) read(ctx context.Context, conn net.PacketConn) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.receive(buf[:n])
	}
}

// receive accounts for one datagram and, when decoding, hands its spans on.
func (s *Sink) receive(datagram []byte) {
	s.metrics.datagrams.Inc()
	s.metrics.bytes.Add(float64(len(datagram)))

	if !s.cfg.Decode {
		return
	}

	spans, err := spanz.DecodeSpans(datagram)
	s.metrics.spans.Add(float64(len(spans)))
	if err != nil {
		s.metrics.decodeFailures.Inc()
		s.logger.Debug("decode datagram", zap.Int("bytes", len(datagram)), zap.Error(err))
	}
	if s.handler != nil && len(spans) > 0 {
		s.handler(spans)
	}
}

func (s *Sink) closeConns() {
	for _, conn := range s.conns {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("close reader socket", zap.Error(err))
		}
	}
}
