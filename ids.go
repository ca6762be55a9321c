package spanz

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceID is the 16-byte identifier shared by every span of a Handle.
type TraceID = trace.TraceID

// SpanID is the 8-byte identifier of a single span.
type SpanID = trace.SpanID

// IDGenerator draws trace and span identifiers from one seeded
// pseudo-random source. Uniqueness is probabilistic; collisions are not
// checked. Safe for concurrent use.
type IDGenerator struct {
	rng *mrand.Rand
	mu  sync.Mutex
}

// NewIDGenerator creates a generator seeded from crypto/rand.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{rng: mrand.New(mrand.NewChaCha8(newSeed()))}
}

// newIDGeneratorWithSeed creates a deterministic generator for tests.
func newIDGeneratorWithSeed(seed [32]byte) *IDGenerator {
	return &IDGenerator{rng: mrand.New(mrand.NewChaCha8(seed))}
}

// Reseed replaces the source with a fresh crypto/rand seed.
// Embedders that copy process state (fork without exec) call this in
// the child so siblings do not share an id sequence.
func (g *IDGenerator) Reseed() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng = mrand.New(mrand.NewChaCha8(newSeed()))
}

// TraceID returns a new trace id built from two 64-bit draws.
func (g *IDGenerator) TraceID() TraceID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var id TraceID
	for !id.IsValid() {
		binary.LittleEndian.PutUint64(id[:8], g.rng.Uint64())
		binary.LittleEndian.PutUint64(id[8:], g.rng.Uint64())
	}
	return id
}

// SpanID returns a new span id from one 64-bit draw.
func (g *IDGenerator) SpanID() SpanID {
	g.mu.Lock()
	defer g.mu.Unlock()

	var id SpanID
	for !id.IsValid() {
		binary.LittleEndian.PutUint64(id[:], g.rng.Uint64())
	}
	return id
}

func newSeed() [32]byte {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// Fallback to time-based seed if crypto/rand fails.
		binary.LittleEndian.PutUint64(seed[:8], uint64(time.Now().UnixNano()))
	}
	return seed
}
