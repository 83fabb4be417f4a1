package ref

import (
	"math"
	"unsafe"

	"github.com/x448/float16"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

type memory struct {
	md   *layout
	eng  *engine
	data []byte // nil for descriptor-only memory
	kind native.Storage
}

func (l *Library) MemoryCreate(mdh native.MemoryDesc, eh native.Engine, storage native.Storage, ptr unsafe.Pointer) (native.Memory, native.Status) {
	md, ok := l.desc(mdh)
	if !ok {
		return 0, native.InvalidArguments
	}
	e, ok := lookup[*engine](l, uintptr(eh))
	if !ok {
		return 0, native.InvalidArguments
	}
	if md.Any {
		return 0, native.InvalidArguments
	}
	m := &memory{md: md.clone(), eng: e, kind: storage}
	switch storage {
	case native.StorageNone:
	case native.StorageLibrary:
		m.data = make([]byte, md.size())
		libraryBytes.Add(float64(len(m.data)))
	case native.StorageUser:
		if ptr == nil {
			return 0, native.InvalidArguments
		}
		m.data = unsafe.Slice((*byte)(ptr), md.size())
	default:
		return 0, native.InvalidArguments
	}
	return native.Memory(l.put(m)), native.Success
}

func (l *Library) MemoryGetDataHandle(h native.Memory) (unsafe.Pointer, native.Status) {
	m, ok := lookup[*memory](l, uintptr(h))
	if !ok {
		return nil, native.InvalidArguments
	}
	if len(m.data) == 0 {
		return nil, native.Success
	}
	return unsafe.Pointer(&m.data[0]), native.Success
}

func (l *Library) MemoryDestroy(h native.Memory) native.Status {
	return destroy(l, uintptr(h), func(m *memory) {
		if m.kind == native.StorageLibrary {
			libraryBytes.Sub(float64(len(m.data)))
		}
		m.data = nil
	})
}

// tensor is a typed view of a memory object used by the kernels.
type tensor struct {
	md   *layout
	data []byte
}

func (m *memory) tensor() tensor { return tensor{md: m.md, data: m.data} }

// load reads every logical element in row-major order as float32.
func (t tensor) load() []float32 {
	offs := t.md.offsets()
	out := make([]float32, len(offs))
	dt := t.md.DataType
	for i, off := range offs {
		out[i] = loadElem(t.data, dt, off)
	}
	return out
}

// store writes row-major float32 values into the layout.
func (t tensor) store(vals []float32) {
	offs := t.md.offsets()
	dt := t.md.DataType
	for i, off := range offs {
		storeElem(t.data, dt, off, vals[i])
	}
}

func loadElem(b []byte, dt native.DataType, off int64) float32 {
	switch dt {
	case native.F32:
		return *(*float32)(unsafe.Pointer(&b[off*4]))
	case native.F64:
		return float32(*(*float64)(unsafe.Pointer(&b[off*8])))
	case native.F16:
		return float16.Frombits(*(*uint16)(unsafe.Pointer(&b[off*2]))).Float32()
	case native.BF16:
		return math.Float32frombits(uint32(*(*uint16)(unsafe.Pointer(&b[off*2]))) << 16)
	case native.S32:
		return float32(*(*int32)(unsafe.Pointer(&b[off*4])))
	case native.S8:
		return float32(int8(b[off]))
	case native.U8:
		return float32(b[off])
	}
	return 0
}

func storeElem(b []byte, dt native.DataType, off int64, v float32) {
	switch dt {
	case native.F32:
		*(*float32)(unsafe.Pointer(&b[off*4])) = v
	case native.F64:
		*(*float64)(unsafe.Pointer(&b[off*8])) = float64(v)
	case native.F16:
		*(*uint16)(unsafe.Pointer(&b[off*2])) = float16.Fromfloat32(v).Bits()
	case native.BF16:
		*(*uint16)(unsafe.Pointer(&b[off*2])) = uint16(math.Float32bits(v) >> 16)
	case native.S32:
		*(*int32)(unsafe.Pointer(&b[off*4])) = int32(saturate(v, math.MinInt32, math.MaxInt32))
	case native.S8:
		b[off] = byte(int8(saturate(v, math.MinInt8, math.MaxInt8)))
	case native.U8:
		b[off] = uint8(saturate(v, 0, math.MaxUint8))
	}
}

// saturate rounds half to even and clamps into [lo, hi].
func saturate(v float32, lo, hi float64) float64 {
	f := math.RoundToEven(float64(v))
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(lo, math.Min(hi, f))
}
