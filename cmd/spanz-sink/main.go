// Command spanz-sink receives spanz datagrams over UDP.
//
//	spanz-sink --addr 127.0.0.1:9999 --workers 4 --reuseport --decode
//
// With --metrics-addr set, receive counters are served at /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/zoobzio/spanz"
	"github.com/zoobzio/spanz/sink"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var flags struct {
	addr        string
	workers     int
	reusePort   bool
	decode      bool
	metricsAddr string
	logLevel    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spanz-sink",
		Short: "Receive spanz trace datagrams over UDP",
		Long: `Bind a UDP address and read spanz datagrams with one or more readers.

By default datagrams are counted and discarded. With --decode each datagram
is split into its spans and the span names are logged at debug level.`,
		SilenceUsage: true,
		RunE:         run,
	}

	f := cmd.Flags()
	f.StringVar(&flags.addr, "addr", spanz.DefaultCollectorAddr, "UDP address to listen on")
	f.IntVar(&flags.workers, "workers", 1, "number of concurrent readers")
	f.BoolVar(&flags.reusePort, "reuseport", false, "give each reader its own SO_REUSEPORT socket")
	f.BoolVar(&flags.decode, "decode", false, "decode datagrams into spans")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.StringVar(&flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func run(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(flags.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	opts := []sink.Option{sink.WithLogger(logger), sink.WithRegisterer(reg)}
	if flags.decode {
		opts = append(opts, sink.WithSpanHandler(logSpans(logger)))
	}

	s := sink.New(sink.Config{
		Addr:      flags.addr,
		Workers:   flags.workers,
		ReusePort: flags.reusePort,
		Decode:    flags.decode,
	}, opts...)
	if err := s.Listen(ctx); err != nil {
		return err
	}

	if flags.metricsAddr != "" {
		srv := serveMetrics(flags.metricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", zap.Error(err))
			}
		}()
	}

	if err := s.Serve(ctx); err != nil {
		logger.Error("sink stopped", zap.Error(err))
		return err
	}
	logger.Info("sink stopped")
	return nil
}

func logSpans(logger *zap.Logger) sink.SpanHandler {
	return func(spans []*tracepb.Span) {
		for _, span := range spans {
			logger.Debug("span",
				zap.String("name", span.GetName()),
				zap.Binary("trace_id", span.GetTraceId()),
				zap.Uint64("duration_ns", span.GetEndTimeUnixNano()-span.GetStartTimeUnixNano()),
				zap.Int("attributes", len(span.GetAttributes())),
			)
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return srv
}
