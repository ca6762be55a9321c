package spanz

import (
	"errors"
	"fmt"
	"net"

	"github.com/caarlos0/env/v11"
)

// Config holds tracer settings read from the environment.
type Config struct {
	// CollectorAddr is the UDP endpoint datagrams are sent to.
	CollectorAddr string `env:"COLLECTOR_ADDR" envDefault:"127.0.0.1:9999"`

	// MaxBufferedSize caps datagram size; at most MaxBufferedSize.
	MaxBufferedSize int `env:"MAX_BUFFERED_SIZE" envDefault:"65507"`

	// DropOnFailure counts capacity and transport failures instead of
	// returning them from Handle.Close.
	DropOnFailure bool `env:"DROP_ON_FAILURE" envDefault:"false"`
}

// EnvPrefix prefixes every Config variable.
const EnvPrefix = "SPANZ_"

// LoadConfig reads Config from SPANZ_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports whether the settings are usable.
func (c Config) Validate() error {
	if c.CollectorAddr == "" {
		return errors.New("collector address is required")
	}
	if _, _, err := net.SplitHostPort(c.CollectorAddr); err != nil {
		return fmt.Errorf("collector address %q: %w", c.CollectorAddr, err)
	}
	if c.MaxBufferedSize <= 0 || c.MaxBufferedSize > MaxBufferedSize {
		return fmt.Errorf("max buffered size %d out of range (0, %d]", c.MaxBufferedSize, MaxBufferedSize)
	}
	return nil
}

// NewFromConfig validates cfg and creates a tracer from it. opts are
// applied after the config, so they take precedence.
func NewFromConfig(cfg Config, opts ...Option) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []Option{
		WithCollectorAddr(cfg.CollectorAddr),
		WithMaxBufferedSize(cfg.MaxBufferedSize),
		WithDropOnFailure(cfg.DropOnFailure),
	}
	return New(append(base, opts...)...), nil
}
