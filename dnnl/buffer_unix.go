//go:build unix

package dnnl

import "golang.org/x/sys/unix"

// allocAligned maps anonymous pages; mappings are page aligned and zeroed.
func allocAligned(n int) ([]byte, error) {
	return unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func freeAligned(b []byte) {
	if b != nil {
		_ = unix.Munmap(b)
	}
}
