// Package host exposes spanz to embedding environments that can only
// pass primitive values: opaque handle tokens, byte slices, integers
// and doubles.
//
// Every Handle lives in a Registry keyed by a Token. Tokens are never
// reused, so destroying a handle twice, or using one after destroy, is
// reported as ErrUnknownHandle instead of touching freed state.
package host

import (
	"errors"
	"sync"

	"github.com/zoobzio/spanz"
)

// Token identifies a Handle across the host boundary. Zero is never issued.
type Token uint64

// ErrUnknownHandle is returned for tokens that were never issued or were already destroyed.
var ErrUnknownHandle = errors.New("unknown trace handle")

// Registry owns the live handles of one Tracer.
// Safe for concurrent use; a single handle still belongs to one caller at a time.
//
//nolint:govet // Field order optimized for readability
type Registry struct {
	tracer  *spanz.Tracer
	handles map[Token]*spanz.Handle
	next    Token
	mu      sync.Mutex
}

// NewRegistry creates an empty registry creating handles on tracer.
func NewRegistry(tracer *spanz.Tracer) *Registry {
	return &Registry{
		tracer:  tracer,
		handles: make(map[Token]*spanz.Handle),
	}
}

// Create starts a new trace and returns its token.
func (r *Registry) Create() Token {
	h := r.tracer.NewHandle()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.handles[r.next] = h
	return r.next
}

// Destroy finalizes the handle and forgets the token. The token is
// invalid afterwards even when finalization fails.
func (r *Registry) Destroy(tok Token) error {
	r.mu.Lock()
	h, ok := r.handles[tok]
	delete(r.handles, tok)
	r.mu.Unlock()

	if !ok {
		return ErrUnknownHandle
	}
	return h.Close()
}

// EnterSpan opens a span named name.
func (r *Registry) EnterSpan(tok Token, name []byte) error {
	h, err := r.lookup(tok)
	if err != nil {
		return err
	}
	return h.Enter(string(name))
}

// ExitSpan closes the innermost open span.
func (r *Registry) ExitSpan(tok Token) error {
	h, err := r.lookup(tok)
	if err != nil {
		return err
	}
	return h.Exit()
}

// AddStringAttribute appends a string attribute to the innermost span.
func (r *Registry) AddStringAttribute(tok Token, key, value []byte) error {
	h, err := r.lookup(tok)
	if err != nil {
		return err
	}
	return h.SetString(string(key), string(value))
}

// AddBoolAttribute appends a boolean attribute; any non-zero value is true.
func (r *Registry) AddBoolAttribute(tok Token, key []byte, value int32) error {
	h, err := r.lookup(tok)
	if err != nil {
		return err
	}
	return h.SetBool(string(key), value != 0)
}

// AddInt64Attribute appends an integer attribute to the innermost span.
func (r *Registry) AddInt64Attribute(tok Token, key []byte, value int64) error {
	h, err := r.lookup(tok)
	if err != nil {
		return err
	}
	return h.SetInt64(string(key), value)
}

// AddDoubleAttribute appends a double attribute to the innermost span.
func (r *Registry) AddDoubleAttribute(tok Token, key []byte, value float64) error {
	h, err := r.lookup(tok)
	if err != nil {
		return err
	}
	return h.SetFloat64(string(key), value)
}

// GetSerialized copies the handle's encoded spans into buf and returns
// the byte count, or 0 when buf is too small.
func (r *Registry) GetSerialized(tok Token, buf []byte) (int, error) {
	h, err := r.lookup(tok)
	if err != nil {
		return 0, err
	}
	return h.CopySerialized(buf), nil
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *Registry) lookup(tok Token) (*spanz.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[tok]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return h, nil
}
