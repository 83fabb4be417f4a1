//go:build !unix

package dnnl

import "unsafe"

const bufferAlign = 64

// allocAligned over-allocates Go memory and slices it at the first aligned
// offset.
func allocAligned(n int) ([]byte, error) {
	raw := make([]byte, n+bufferAlign)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % bufferAlign); rem != 0 {
		off = bufferAlign - rem
	}
	return raw[off : off+n : off+n], nil
}

func freeAligned([]byte) {}
