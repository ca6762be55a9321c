// Command libspanz builds spanz as a C shared library:
//
//	go build -buildmode=c-shared -o libspanz.so ./cmd/libspanz
//
// Every entry point takes an opaque handle plus primitive arguments.
// Calls that can fail return a status code from package host and,
// when err_buf is non-NULL, write a NUL-terminated message into it.
// The process-wide tracer is configured from SPANZ_* variables.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/zoobzio/spanz"
	"github.com/zoobzio/spanz/host"
)

var registry = sync.OnceValue(func() *host.Registry {
	return host.NewRegistry(spanz.Default())
})

func bytesOf(p unsafe.Pointer, n C.uint64_t) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), int(n))
}

func status(err error, errBuf *C.uchar, errBufLen C.uint64_t) C.int {
	if err != nil {
		host.WriteError(bytesOf(unsafe.Pointer(errBuf), errBufLen), err)
	}
	return C.int(host.Code(err))
}

//export spanz_trace_new
func spanz_trace_new() C.uint64_t {
	return C.uint64_t(registry().Create())
}

//export spanz_trace_free
func spanz_trace_free(handle C.uint64_t, errBuf *C.uchar, errBufLen C.uint64_t) C.int {
	return status(registry().Destroy(host.Token(handle)), errBuf, errBufLen)
}

//export spanz_trace_enter_span
func spanz_trace_enter_span(handle C.uint64_t, name *C.char, nameLen C.uint64_t, errBuf *C.uchar, errBufLen C.uint64_t) C.int {
	err := registry().EnterSpan(host.Token(handle), bytesOf(unsafe.Pointer(name), nameLen))
	return status(err, errBuf, errBufLen)
}

//export spanz_trace_exit_span
func spanz_trace_exit_span(handle C.uint64_t, errBuf *C.uchar, errBufLen C.uint64_t) C.int {
	return status(registry().ExitSpan(host.Token(handle)), errBuf, errBufLen)
}

//export spanz_trace_add_string_attribute
func spanz_trace_add_string_attribute(handle C.uint64_t, key *C.char, keyLen C.uint64_t, val *C.char, valLen C.uint64_t, errBuf *C.uchar, errBufLen C.uint64_t) C.int {
	err := registry().AddStringAttribute(host.Token(handle),
		bytesOf(unsafe.Pointer(key), keyLen), bytesOf(unsafe.Pointer(val), valLen))
	return status(err, errBuf, errBufLen)
}

//export spanz_trace_add_bool_attribute
func spanz_trace_add_bool_attribute(handle C.uint64_t, key *C.char, keyLen C.uint64_t, val C.int32_t, errBuf *C.uchar, errBufLen C.uint64_t) C.int {
	err := registry().AddBoolAttribute(host.Token(handle), bytesOf(unsafe.Pointer(key), keyLen), int32(val))
	return status(err, errBuf, errBufLen)
}

//export spanz_trace_add_int64_attribute
func spanz_trace_add_int64_attribute(handle C.uint64_t, key *C.char, keyLen C.uint64_t, val C.int64_t, errBuf *C.uchar, errBufLen C.uint64_t) C.int {
	err := registry().AddInt64Attribute(host.Token(handle), bytesOf(unsafe.Pointer(key), keyLen), int64(val))
	return status(err, errBuf, errBufLen)
}

//export spanz_trace_add_double_attribute
func spanz_trace_add_double_attribute(handle C.uint64_t, key *C.char, keyLen C.uint64_t, val C.double, errBuf *C.uchar, errBufLen C.uint64_t) C.int {
	err := registry().AddDoubleAttribute(host.Token(handle), bytesOf(unsafe.Pointer(key), keyLen), float64(val))
	return status(err, errBuf, errBufLen)
}

// spanz_trace_get_serialized returns the number of bytes copied into
// buf, or 0 when buf is too small or the handle is unknown.
//
//export spanz_trace_get_serialized
func spanz_trace_get_serialized(handle C.uint64_t, buf *C.uchar, bufLen C.uint64_t) C.uint64_t {
	n, err := registry().GetSerialized(host.Token(handle), bytesOf(unsafe.Pointer(buf), bufLen))
	if err != nil {
		return 0
	}
	return C.uint64_t(n)
}

func main() {}
