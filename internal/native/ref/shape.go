package ref

import (
	"math"
	"math/bits"
	"slices"
)

func equalDims(a, b []int64) bool { return slices.Equal(a, b) }

// broadcastable reports whether src can be broadcast to dst: same rank and
// every extent either equal or one.
func broadcastable(src, dst []int64) bool {
	if len(src) != len(dst) {
		return false
	}
	for d := range src {
		if src[d] != dst[d] && src[d] != 1 {
			return false
		}
	}
	return true
}

// checkedVolume is scale times the product of dims, or false when a dim is
// negative or the product leaves the int64 range.
func checkedVolume(dims []int64, scale int64) (int64, bool) {
	if scale < 0 {
		return 0, false
	}
	n := uint64(scale)
	for _, d := range dims {
		if d < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(n, uint64(d))
		if hi != 0 || lo > math.MaxInt64 {
			return 0, false
		}
		n = lo
	}
	return int64(n), true
}

func volume(dims []int64) int64 {
	n := int64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

func rowMajorStrides(dims []int64) []int64 {
	s := make([]int64, len(dims))
	acc := int64(1)
	for d := len(dims) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= dims[d]
	}
	return s
}

// broadcastMap returns, for every row-major element of dst, the row-major
// index of the src element it reads.
func broadcastMap(dst, src []int64) []int {
	ss := rowMajorStrides(src)
	n := volume(dst)
	out := make([]int, n)
	idx := make([]int64, len(dst))
	for i := int64(0); i < n; i++ {
		var off int64
		for d, v := range idx {
			if src[d] != 1 {
				off += v * ss[d]
			}
		}
		out[i] = int(off)
		for d := len(dst) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < dst[d] {
				break
			}
			idx[d] = 0
		}
	}
	return out
}
