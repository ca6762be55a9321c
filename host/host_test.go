package host

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/spanz"
)

type discardTransport struct {
	mu    sync.Mutex
	sends int
}

func (d *discardTransport) Send([]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sends++
	return nil
}

func (*discardTransport) Close() error { return nil }

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(spanz.New(spanz.WithTransport(&discardTransport{})))
}

func TestRegistryLifecycle(t *testing.T) {
	r := newRegistry(t)

	tok := r.Create()
	assert.NotZero(t, tok)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.EnterSpan(tok, []byte("root")))
	require.NoError(t, r.AddStringAttribute(tok, []byte("k"), []byte("v")))
	require.NoError(t, r.AddBoolAttribute(tok, []byte("b"), 7))
	require.NoError(t, r.AddInt64Attribute(tok, []byte("i"), 42))
	require.NoError(t, r.AddDoubleAttribute(tok, []byte("d"), 2.5))
	require.NoError(t, r.EnterSpan(tok, []byte("child")))
	require.NoError(t, r.ExitSpan(tok))
	require.NoError(t, r.ExitSpan(tok))

	buf := make([]byte, 4096)
	n, err := r.GetSerialized(tok, buf)
	require.NoError(t, err)
	require.Positive(t, n)

	spans, err := spanz.DecodeSpans(buf[:n])
	require.NoError(t, err)
	require.Len(t, spans, 2)
	root := spans[1]
	assert.Equal(t, "root", root.Name)
	require.Len(t, root.Attributes, 4)
	assert.True(t, root.Attributes[1].Value.GetBoolValue(), "non-zero is true")
	assert.Equal(t, spans[0].ParentSpanId, root.SpanId)

	tooSmall := make([]byte, n-1)
	n2, err := r.GetSerialized(tok, tooSmall)
	require.NoError(t, err)
	assert.Zero(t, n2)

	require.NoError(t, r.Destroy(tok))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryDoubleDestroy(t *testing.T) {
	r := newRegistry(t)
	tok := r.Create()

	require.NoError(t, r.Destroy(tok))
	err := r.Destroy(tok)
	require.ErrorIs(t, err, ErrUnknownHandle)
	assert.Equal(t, StatusUnknownHandle, Code(err))

	assert.ErrorIs(t, r.EnterSpan(tok, []byte("late")), ErrUnknownHandle)
	_, err = r.GetSerialized(tok, make([]byte, 8))
	assert.ErrorIs(t, err, ErrUnknownHandle)
	assert.ErrorIs(t, r.ExitSpan(Token(0)), ErrUnknownHandle)
}

func TestRegistryDestroyWithOpenSpan(t *testing.T) {
	r := newRegistry(t)
	tok := r.Create()
	require.NoError(t, r.EnterSpan(tok, []byte("left-open")))

	err := r.Destroy(tok)
	require.ErrorIs(t, err, spanz.ErrSpanNotClosed)
	assert.Equal(t, StatusSpanNotClosed, Code(err))
	assert.Equal(t, 0, r.Len(), "token is gone even when finalization fails")
	assert.ErrorIs(t, r.Destroy(tok), ErrUnknownHandle)
}

func TestRegistryTokensNotReused(t *testing.T) {
	r := newRegistry(t)
	seen := map[Token]bool{}
	for i := 0; i < 100; i++ {
		tok := r.Create()
		require.False(t, seen[tok])
		seen[tok] = true
		require.NoError(t, r.Destroy(tok))
	}
}

func TestRegistryConcurrentHandles(t *testing.T) {
	r := newRegistry(t)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				tok := r.Create()
				if err := r.EnterSpan(tok, []byte(fmt.Sprintf("w%d-%d", w, i))); err != nil {
					errs <- err
					return
				}
				if err := r.ExitSpan(tok); err != nil {
					errs <- err
					return
				}
				if err := r.Destroy(tok); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 0, r.Len())
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, StatusOK},
		{ErrUnknownHandle, StatusUnknownHandle},
		{fmt.Errorf("wrapped: %w", spanz.ErrSpanNotClosed), StatusSpanNotClosed},
		{spanz.ErrSerializedTooLarge, StatusTooLarge},
		{fmt.Errorf("%w: boom", spanz.ErrTransport), StatusTransport},
		{spanz.ErrNoOpenSpan, StatusNoOpenSpan},
		{spanz.ErrInvalidUTF8, StatusInvalidUTF8},
		{spanz.ErrHandleClosed, StatusHandleClosed},
		{errors.New("something else"), StatusInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Code(tt.err), "%v", tt.err)
	}
}

func TestWriteError(t *testing.T) {
	err := errors.New("span not closed")

	buf := make([]byte, 64)
	n := WriteError(buf, err)
	assert.Equal(t, len("span not closed"), n)
	assert.Equal(t, "span not closed\x00", string(buf[:n+1]))

	short := make([]byte, 5)
	n = WriteError(short, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "span\x00", string(short))

	assert.Zero(t, WriteError(nil, err))
	assert.Zero(t, WriteError(buf, nil))
}
