// Package codec converts typed numeric slices to and from the raw byte
// buffers handed to the compute device. The byte layout is the platform's
// native one, which is what storage buffers expect on the same machine.
package codec

import (
	"fmt"
	"unsafe"
)

// Element is a 32-bit scalar that can live in a storage buffer.
type Element interface {
	~int32 | ~float32
}

const elementSize = 4

// Encode copies src into dst byte for byte.
// len(src)*4 must equal len(dst); anything else is a caller bug and panics.
func Encode[E Element](dst []byte, src []E) {
	if len(src)*elementSize != len(dst) {
		panic(fmt.Sprintf("codec: encode %d elements into %d bytes", len(src), len(dst)))
	}
	if len(src) == 0 {
		return
	}
	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(dst)))
}

// Decode copies src into dst. Same length contract as Encode.
func Decode[E Element](dst []E, src []byte) {
	if len(dst)*elementSize != len(src) {
		panic(fmt.Sprintf("codec: decode %d bytes into %d elements", len(src), len(dst)))
	}
	if len(dst) == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), len(src)), src)
}

// Bytes returns a freshly allocated buffer holding src.
func Bytes[E Element](src []E) []byte {
	out := make([]byte, len(src)*elementSize)
	Encode(out, src)
	return out
}

// Values returns a freshly allocated slice decoded from src.
// len(src) must be a multiple of 4.
func Values[E Element](src []byte) []E {
	if len(src)%elementSize != 0 {
		panic(fmt.Sprintf("codec: %d bytes is not a whole number of elements", len(src)))
	}
	out := make([]E, len(src)/elementSize)
	Decode(out, src)
	return out
}
