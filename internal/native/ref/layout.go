package ref

import (
	"bytes"
	"math"
	"slices"
	"strconv"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// blobMagic prefixes every serialized layout.
var blobMagic = []byte("DNNLREF\x01")

// block is one inner block of a blocked layout: Size consecutive indices of
// logical dimension Dim stored innermost.
type block struct {
	Dim  int   `cbor:"d"`
	Size int64 `cbor:"s"`
}

// layout is the reference memory descriptor. Strides are in elements and
// address outer blocks; inner blocks are addressed through Blocks.
type layout struct {
	DataType native.DataType `cbor:"t"`
	Dims     []int64         `cbor:"dims"`
	Padded   []int64         `cbor:"pad"`
	Strides  []int64         `cbor:"str,omitempty"`
	Blocks   []block         `cbor:"blk,omitempty"`
	Any      bool            `cbor:"any,omitempty"`

	once sync.Once
	offs []int64
}

var dataTypeSizes = map[native.DataType]int64{
	native.F16:  2,
	native.BF16: 2,
	native.F32:  4,
	native.S32:  4,
	native.S8:   1,
	native.U8:   1,
	native.F64:  8,
}

func newLayout(dims []int64, dt native.DataType, tag native.FormatTag) (*layout, native.Status) {
	n := len(dims)
	if n < 1 || n > native.MaxDims {
		return nil, native.InvalidArguments
	}
	if _, ok := dataTypeSizes[dt]; !ok {
		return nil, native.InvalidArguments
	}
	for _, d := range dims {
		if d <= 0 {
			return nil, native.InvalidArguments
		}
	}
	if tag == native.FormatAny {
		if _, ok := checkedVolume(dims, dataTypeSizes[dt]); !ok {
			return nil, native.InvalidArguments
		}
		return &layout{DataType: dt, Dims: slices.Clone(dims), Padded: slices.Clone(dims), Any: true}, native.Success
	}
	if tag.NDims() != n {
		return nil, native.InvalidArguments
	}
	order, blocks, ok := parseTag(tag.String(), n)
	if !ok || !paddedFits(dims, dt, blocks) {
		return nil, native.InvalidArguments
	}
	return blockedLayout(dims, dt, order, blocks), native.Success
}

// paddedFits reports whether the padded storage of dims is addressable in
// int64 bytes.
func paddedFits(dims []int64, dt native.DataType, blocks []block) bool {
	sizes := make([]int64, len(blocks))
	for i, b := range blocks {
		sizes[i] = b.Size
	}
	if _, ok := checkedVolume(sizes, 1); !ok {
		return false
	}
	bp := blockProducts(len(dims), blocks)
	padded := make([]int64, len(dims))
	for d, x := range dims {
		if x > math.MaxInt64-(bp[d]-1) {
			return false
		}
		padded[d] = (x + bp[d] - 1) / bp[d] * bp[d]
	}
	_, ok := checkedVolume(padded, dataTypeSizes[dt])
	return ok
}

func plainLayout(dims []int64, dt native.DataType) *layout {
	order := make([]int, len(dims))
	for i := range order {
		order[i] = i
	}
	return blockedLayout(dims, dt, order, nil)
}

func blockedLayout(dims []int64, dt native.DataType, order []int, blocks []block) *layout {
	n := len(dims)
	bp := blockProducts(n, blocks)
	l := &layout{
		DataType: dt,
		Dims:     slices.Clone(dims),
		Padded:   make([]int64, n),
		Strides:  make([]int64, n),
		Blocks:   slices.Clone(blocks),
	}
	inner := int64(1)
	for _, b := range blocks {
		inner *= b.Size
	}
	for d := range dims {
		l.Padded[d] = (dims[d] + bp[d] - 1) / bp[d] * bp[d]
	}
	s := inner
	for j := n - 1; j >= 0; j-- {
		d := order[j]
		l.Strides[d] = s
		s *= l.Padded[d] / bp[d]
	}
	return l
}

func blockProducts(n int, blocks []block) []int64 {
	bp := make([]int64, n)
	for i := range bp {
		bp[i] = 1
	}
	for _, b := range blocks {
		bp[b.Dim] *= b.Size
	}
	return bp
}

// parseTag reads a format tag name such as "acdb" or "aBcd16b". Leading
// letters give the outer order of the n dimensions; uppercase letters are
// blocked and each needs a trailing "<size><letter>" block.
func parseTag(name string, n int) ([]int, []block, bool) {
	var (
		order   []int
		blocked = make([]bool, n)
		seen    = make([]bool, n)
		blocks  []block
		i       int
	)
	for i < len(name) && isLetter(name[i]) {
		c := name[i]
		upper := c >= 'A' && c <= 'Z'
		if upper {
			c += 'a' - 'A'
		}
		d := int(c - 'a')
		if d >= n || seen[d] {
			return nil, nil, false
		}
		seen[d] = true
		blocked[d] = upper
		order = append(order, d)
		i++
	}
	if len(order) != n {
		return nil, nil, false
	}
	for i < len(name) {
		start := i
		for i < len(name) && name[i] >= '0' && name[i] <= '9' {
			i++
		}
		if start == i || i >= len(name) {
			return nil, nil, false
		}
		size, err := strconv.ParseInt(name[start:i], 10, 64)
		if err != nil || size <= 0 {
			return nil, nil, false
		}
		d := int(name[i] - 'a')
		if name[i] < 'a' || d >= n || !blocked[d] {
			return nil, nil, false
		}
		blocks = append(blocks, block{Dim: d, Size: size})
		i++
	}
	for d, b := range blocked {
		if b && !slices.ContainsFunc(blocks, func(bl block) bool { return bl.Dim == d }) {
			return nil, nil, false
		}
	}
	return order, blocks, true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (l *layout) ndims() int { return len(l.Dims) }

func (l *layout) elemSize() int64 { return dataTypeSizes[l.DataType] }

// nelems is the number of logical elements.
func (l *layout) nelems() int64 {
	n := int64(1)
	for _, d := range l.Dims {
		n *= d
	}
	return n
}

// size is the byte size of the backing storage, padding included.
func (l *layout) size() int64 {
	if l.Any {
		return 0
	}
	n := int64(1)
	for _, d := range l.Padded {
		n *= d
	}
	return n * l.elemSize()
}

func (l *layout) isPlain() bool {
	if l.Any || len(l.Blocks) > 0 {
		return false
	}
	s := int64(1)
	for d := l.ndims() - 1; d >= 0; d-- {
		if l.Strides[d] != s {
			return false
		}
		s *= l.Dims[d]
	}
	return true
}

// offset maps a logical index to an element offset.
func (l *layout) offset(idx []int64) int64 {
	bp := blockProducts(l.ndims(), l.Blocks)
	var off int64
	for d, i := range idx {
		off += i / bp[d] * l.Strides[d]
	}
	if len(l.Blocks) == 0 {
		return off
	}
	div := make([]int64, l.ndims())
	for i := range div {
		div[i] = 1
	}
	s := int64(1)
	for j := len(l.Blocks) - 1; j >= 0; j-- {
		b := l.Blocks[j]
		off += (idx[b.Dim] / div[b.Dim] % b.Size) * s
		s *= b.Size
		div[b.Dim] *= b.Size
	}
	return off
}

// offsets returns the element offset of every logical element in row-major
// order. Computed once per layout.
func (l *layout) offsets() []int64 {
	l.once.Do(func() {
		n := l.nelems()
		l.offs = make([]int64, n)
		if l.isPlain() {
			for i := range l.offs {
				l.offs[i] = int64(i)
			}
			return
		}
		idx := make([]int64, l.ndims())
		for i := int64(0); i < n; i++ {
			l.offs[i] = l.offset(idx)
			for d := l.ndims() - 1; d >= 0; d-- {
				idx[d]++
				if idx[d] < l.Dims[d] {
					break
				}
				idx[d] = 0
			}
		}
	})
	return l.offs
}

func (l *layout) clone() *layout {
	return &layout{
		DataType: l.DataType,
		Dims:     slices.Clone(l.Dims),
		Padded:   slices.Clone(l.Padded),
		Strides:  slices.Clone(l.Strides),
		Blocks:   slices.Clone(l.Blocks),
		Any:      l.Any,
	}
}

// equal compares physical layouts; the tag used to build them is irrelevant.
func (l *layout) equal(o *layout) bool {
	return l.DataType == o.DataType &&
		l.Any == o.Any &&
		slices.Equal(l.Dims, o.Dims) &&
		slices.Equal(l.Padded, o.Padded) &&
		slices.Equal(l.Strides, o.Strides) &&
		slices.Equal(l.Blocks, o.Blocks)
}

// resolve replaces an "any" layout with the plain row-major one.
func (l *layout) resolve() *layout {
	if l.Any {
		return plainLayout(l.Dims, l.DataType)
	}
	return l
}

func (l *layout) blob() ([]byte, error) {
	body, err := cbor.Marshal(l)
	if err != nil {
		return nil, err
	}
	return append(slices.Clone(blobMagic), body...), nil
}

func layoutFromBlob(b []byte) (*layout, native.Status) {
	if !bytes.HasPrefix(b, blobMagic) {
		return nil, native.InvalidArguments
	}
	var l layout
	if err := cbor.Unmarshal(b[len(blobMagic):], &l); err != nil {
		return nil, native.InvalidArguments
	}
	if !l.valid() {
		return nil, native.InvalidArguments
	}
	return &l, native.Success
}

func (l *layout) valid() bool {
	n := l.ndims()
	if n < 1 || n > native.MaxDims || len(l.Padded) != n {
		return false
	}
	if _, ok := dataTypeSizes[l.DataType]; !ok {
		return false
	}
	for d := range l.Dims {
		if l.Dims[d] <= 0 || l.Padded[d] < l.Dims[d] {
			return false
		}
	}
	if _, ok := checkedVolume(l.Padded, dataTypeSizes[l.DataType]); !ok {
		return false
	}
	if l.Any {
		return len(l.Strides) == 0 && len(l.Blocks) == 0
	}
	if len(l.Strides) != n {
		return false
	}
	for _, s := range l.Strides {
		if s <= 0 {
			return false
		}
	}
	bp := blockProducts(n, nil)
	for _, b := range l.Blocks {
		if b.Dim < 0 || b.Dim >= n || b.Size <= 0 {
			return false
		}
		bp[b.Dim] *= b.Size
	}
	for d := range l.Padded {
		if l.Padded[d]%bp[d] != 0 {
			return false
		}
	}
	return true
}
