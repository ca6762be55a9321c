package reliability

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/spanz"
)

// Handle lifecycle tests - random sequences of valid and invalid calls
// from many goroutines must never leak spans between handles or ship
// spans from handles that failed to close.

// capture keeps every datagram sent.
type capture struct {
	mu        sync.Mutex
	datagrams [][]byte
}

func (c *capture) Send(datagram []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.datagrams = append(c.datagrams, append([]byte(nil), datagram...))
	return nil
}

func (c *capture) Close() error { return nil }

func TestHandleLifecycle(t *testing.T) {
	cfg := requireLevel(t)

	t.Run("random_sequences", func(t *testing.T) {
		testRandomSequences(t, cfg)
	})
	t.Run("arena_reuse_under_pressure", func(t *testing.T) {
		testArenaReuse(t, cfg)
	})
}

func testRandomSequences(t *testing.T, cfg Config) {
	transport := &capture{}
	tracer := spanz.New(spanz.WithTransport(transport), spanz.WithMaxBufferedSize(8192))

	var (
		mu       sync.Mutex
		shipped  = make(map[spanz.TraceID]int)
		rejected = make(map[spanz.TraceID]bool)
		wg       sync.WaitGroup
	)

	iterations := 300
	if cfg.stress() {
		iterations = 5000
	}

	for w := 0; w < cfg.MaxGoroutines; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			for i := 0; i < iterations; i++ {
				id, spans, err := randomHandle(tracer, rng)
				mu.Lock()
				if err != nil {
					rejected[id] = true
				} else {
					shipped[id] = spans
				}
				mu.Unlock()
				if err != nil && !errors.Is(err, spanz.ErrSpanNotClosed) {
					t.Errorf("unexpected close error: %v", err)
					return
				}
			}
		}(uint64(w))
	}
	wg.Wait()
	if err := tracer.Close(); err != nil {
		t.Fatal(err)
	}

	received := make(map[spanz.TraceID]int)
	for _, datagram := range transport.datagrams {
		spans, err := spanz.DecodeSpans(datagram)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		for _, s := range spans {
			var id spanz.TraceID
			copy(id[:], s.GetTraceId())
			received[id]++
		}
	}

	for id := range rejected {
		if received[id] != 0 {
			t.Errorf("trace %s failed to close but shipped %d spans", id, received[id])
		}
	}
	for id, want := range shipped {
		if received[id] != want {
			t.Errorf("trace %s: shipped %d spans, received %d", id, want, received[id])
		}
	}
}

// randomHandle runs a random call sequence and returns the number of
// spans it encoded along with the Close result.
func randomHandle(tracer *spanz.Tracer, rng *rand.Rand) (spanz.TraceID, int, error) {
	h := tracer.NewHandle()
	exited := 0
	for op := rng.IntN(20); op > 0; op-- {
		switch rng.IntN(5) {
		case 0, 1:
			_ = h.Enter(fmt.Sprintf("span-%d", h.Depth()))
		case 2:
			if h.Exit() == nil {
				exited++
			}
		case 3:
			_ = h.SetString("k", "v")
		case 4:
			_ = h.SetFloat64("f", rng.Float64())
		}
	}
	// Most handles unwind cleanly; the rest are left open on purpose.
	if rng.IntN(4) != 0 {
		for h.Depth() > 0 {
			_ = h.Exit()
			exited++
		}
	}
	id := h.TraceID()
	return id, exited, h.Close()
}

func testArenaReuse(t *testing.T, cfg Config) {
	tracer := spanz.New(spanz.WithTransport(&flakyTransport{}))

	rounds := 20_000
	if cfg.stress() {
		rounds = 500_000
	}

	run := func() {
		for i := 0; i < rounds; i++ {
			h := tracer.NewHandle()
			_ = h.Enter("a")
			_ = h.SetString("key", "value")
			_ = h.Enter("b")
			_ = h.SetBool("flag", true)
			_ = h.Exit()
			_ = h.Exit()
			_ = h.Close()
		}
	}

	run()
	runtime.GC()
	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	start := time.Now()
	run()
	elapsed := time.Since(start)

	runtime.GC()
	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	growth := int64(after.HeapAlloc) - int64(before.HeapAlloc)
	if growth > 16<<20 {
		t.Errorf("heap grew by %d bytes across %d recycled handles", growth, rounds)
	}
	t.Logf("%d handles in %v (%.0f/s), heap growth %d bytes",
		rounds, elapsed, float64(rounds)/elapsed.Seconds(), growth)
}
