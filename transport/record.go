// File: transport/record.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"time"
	"unsafe"
)

// AsBytes exposes the memory of a fixed-size record as a byte slice
// without copying. The record's in-memory layout is the wire format,
// byte for byte: no framing, no length prefix, no endianness
// conversion. T must therefore be a fixed-size type free of pointers,
// slices, maps and strings.
func AsBytes[T any](rec *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(rec)), unsafe.Sizeof(*rec))
}

// Receive allocates one record of type T and fills it from the
// endpoint under RecvAll semantics.
func Receive[T any](e *Endpoint, timeout time.Duration) (*T, error) {
	rec := new(T)
	if err := e.RecvAll(AsBytes(rec), timeout); err != nil {
		return nil, err
	}
	return rec, nil
}
