package ref

import (
	"slices"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

func (l *Library) MemoryDescCreateWithTag(dims []int64, dt native.DataType, tag native.FormatTag) (native.MemoryDesc, native.Status) {
	md, st := newLayout(dims, dt, tag)
	if st != native.Success {
		return 0, st
	}
	return native.MemoryDesc(l.put(md)), native.Success
}

func (l *Library) MemoryDescCreateWithBlob(blob []byte) (native.MemoryDesc, native.Status) {
	md, st := layoutFromBlob(blob)
	if st != native.Success {
		return 0, st
	}
	return native.MemoryDesc(l.put(md)), native.Success
}

func (l *Library) MemoryDescClone(h native.MemoryDesc) (native.MemoryDesc, native.Status) {
	md, ok := l.desc(h)
	if !ok {
		return 0, native.InvalidArguments
	}
	return native.MemoryDesc(l.put(md.clone())), native.Success
}

func (l *Library) MemoryDescEqual(a, b native.MemoryDesc) bool {
	ma, ok := l.desc(a)
	if !ok {
		return false
	}
	mb, ok := l.desc(b)
	if !ok {
		return false
	}
	return ma.equal(mb)
}

func (l *Library) MemoryDescGetSize(h native.MemoryDesc) uint64 {
	md, ok := l.desc(h)
	if !ok {
		return 0
	}
	return uint64(md.size())
}

func (l *Library) MemoryDescGetBlob(h native.MemoryDesc) ([]byte, native.Status) {
	md, ok := l.desc(h)
	if !ok {
		return nil, native.InvalidArguments
	}
	b, err := md.blob()
	if err != nil {
		return nil, native.RuntimeError
	}
	return b, native.Success
}

func (l *Library) MemoryDescQueryInt(h native.MemoryDesc, q native.Query) (int64, native.Status) {
	md, ok := l.desc(h)
	if !ok {
		return 0, native.InvalidArguments
	}
	switch q {
	case native.QueryNDims:
		return int64(md.ndims()), native.Success
	case native.QueryDataType:
		return int64(md.DataType), native.Success
	case native.QuerySize:
		return md.size(), native.Success
	}
	return 0, native.Unimplemented
}

func (l *Library) MemoryDescQueryDims(h native.MemoryDesc, q native.Query) ([]int64, native.Status) {
	md, ok := l.desc(h)
	if !ok {
		return nil, native.InvalidArguments
	}
	switch q {
	case native.QueryDims:
		return slices.Clone(md.Dims), native.Success
	case native.QueryPaddedDims:
		return slices.Clone(md.Padded), native.Success
	}
	return nil, native.Unimplemented
}

func (l *Library) MemoryDescDestroy(h native.MemoryDesc) native.Status {
	return destroy[*layout](l, uintptr(h), nil)
}

func (l *Library) DataTypeSize(dt native.DataType) uint64 {
	return uint64(dataTypeSizes[dt])
}

// borrowedLayout is a descriptor handle owned by a primitive descriptor.
// It is readable through every query but cannot be destroyed directly.
type borrowedLayout struct{ *layout }

func (l *Library) desc(h native.MemoryDesc) (*layout, bool) {
	if md, ok := lookup[*layout](l, uintptr(h)); ok {
		return md, true
	}
	if b, ok := lookup[borrowedLayout](l, uintptr(h)); ok {
		return b.layout, true
	}
	return nil, false
}
