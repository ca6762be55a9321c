package reliability

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration for reliability testing, read from
// SPANZ_RELIABILITY_* variables.
type Config struct {
	Level            string        `env:"LEVEL"`                               // "basic" or "stress"
	Duration         time.Duration `env:"DURATION" envDefault:"30s"`           // Test duration for stress tests
	MaxGoroutines    int           `env:"MAX_GOROUTINES" envDefault:"100"`     // Maximum goroutines for concurrent tests
	FailureThreshold float64       `env:"FAILURE_THRESHOLD" envDefault:"0.05"` // Failure rate threshold (0.0-1.0)
}

func loadConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "SPANZ_RELIABILITY_"})
	if err != nil {
		t.Fatalf("reliability config: %v", err)
	}
	return cfg
}

// requireLevel skips the test unless SPANZ_RELIABILITY_LEVEL is set.
func requireLevel(t *testing.T) Config {
	t.Helper()
	cfg := loadConfig(t)
	if cfg.Level == "" {
		t.Skip("SPANZ_RELIABILITY_LEVEL not set, skipping reliability tests")
	}
	return cfg
}

func (c Config) stress() bool {
	return c.Level == "stress"
}
