package host

import (
	"errors"

	"github.com/zoobzio/spanz"
)

// Status codes returned across the host boundary. They are stable;
// append new ones, never renumber.
const (
	StatusOK            = 0
	StatusUnknownHandle = 1
	StatusSpanNotClosed = 2
	StatusTooLarge      = 3
	StatusTransport     = 4
	StatusNoOpenSpan    = 5
	StatusInvalidUTF8   = 6
	StatusHandleClosed  = 7
	StatusInternal      = 255
)

var statusErrors = []struct {
	err  error
	code int
}{
	{ErrUnknownHandle, StatusUnknownHandle},
	{spanz.ErrSpanNotClosed, StatusSpanNotClosed},
	{spanz.ErrSerializedTooLarge, StatusTooLarge},
	{spanz.ErrTransport, StatusTransport},
	{spanz.ErrNoOpenSpan, StatusNoOpenSpan},
	{spanz.ErrInvalidUTF8, StatusInvalidUTF8},
	{spanz.ErrHandleClosed, StatusHandleClosed},
}

// Code maps err to a status code. Errors spanz does not define map to
// StatusInternal.
func Code(err error) int {
	if err == nil {
		return StatusOK
	}
	for _, s := range statusErrors {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return StatusInternal
}

// WriteError copies err's message into buf as a NUL-terminated string,
// truncating to fit, and returns the number of message bytes written.
// Nothing is written when buf is empty or err is nil.
func WriteError(buf []byte, err error) int {
	if err == nil || len(buf) == 0 {
		return 0
	}
	n := copy(buf[:len(buf)-1], err.Error())
	buf[n] = 0
	return n
}
