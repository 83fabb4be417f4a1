//go:build dnnl

package onednn

/*
#include <dnnl.h>

static void *memory_allocate(void) { return DNNL_MEMORY_ALLOCATE; }
*/
import "C"
import (
	"unsafe"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

func (*Library) MemoryDescCreateWithTag(dims []int64, dt native.DataType, tag native.FormatTag) (native.MemoryDesc, native.Status) {
	cdt, ok := dataTypes[dt]
	if !ok {
		return 0, native.InvalidArguments
	}
	ctag, ok := formatTags[tag]
	if !ok {
		return 0, native.InvalidArguments
	}
	if len(dims) == 0 || len(dims) > native.MaxDims {
		return 0, native.InvalidArguments
	}
	var cd C.dnnl_dims_t
	for i, d := range dims {
		cd[i] = C.dnnl_dim_t(d)
	}
	var md C.dnnl_memory_desc_t
	if st := status(C.dnnl_memory_desc_create_with_tag(&md, C.int(len(dims)), &cd[0], cdt, ctag)); st != native.Success {
		return 0, st
	}
	return native.MemoryDesc(uintptr(unsafe.Pointer(md))), native.Success
}

func (*Library) MemoryDescCreateWithBlob(blob []byte) (native.MemoryDesc, native.Status) {
	if len(blob) == 0 {
		return 0, native.InvalidArguments
	}
	var md C.dnnl_memory_desc_t
	if st := status(C.dnnl_memory_desc_create_with_blob(&md, (*C.uint8_t)(unsafe.Pointer(&blob[0])))); st != native.Success {
		return 0, st
	}
	return native.MemoryDesc(uintptr(unsafe.Pointer(md))), native.Success
}

func (*Library) MemoryDescClone(h native.MemoryDesc) (native.MemoryDesc, native.Status) {
	var md C.dnnl_memory_desc_t
	if st := status(C.dnnl_memory_desc_clone(&md, mdOf(h))); st != native.Success {
		return 0, st
	}
	return native.MemoryDesc(uintptr(unsafe.Pointer(md))), native.Success
}

func (*Library) MemoryDescEqual(a, b native.MemoryDesc) bool {
	return C.dnnl_memory_desc_equal(mdOf(a), mdOf(b)) != 0
}

func (*Library) MemoryDescGetSize(h native.MemoryDesc) uint64 {
	return uint64(C.dnnl_memory_desc_get_size(mdOf(h)))
}

func (*Library) MemoryDescGetBlob(h native.MemoryDesc) ([]byte, native.Status) {
	var size C.size_t
	if st := status(C.dnnl_memory_desc_get_blob(nil, &size, mdOf(h))); st != native.Success {
		return nil, st
	}
	if size == 0 {
		return nil, native.RuntimeError
	}
	blob := make([]byte, int(size))
	if st := status(C.dnnl_memory_desc_get_blob((*C.uint8_t)(unsafe.Pointer(&blob[0])), &size, mdOf(h))); st != native.Success {
		return nil, st
	}
	return blob[:int(size)], native.Success
}

func (*Library) MemoryDescQueryInt(h native.MemoryDesc, q native.Query) (int64, native.Status) {
	switch q {
	case native.QueryNDims:
		var n C.int32_t
		st := status(C.dnnl_memory_desc_query(mdOf(h), C.dnnl_query_ndims_s32, unsafe.Pointer(&n)))
		return int64(n), st
	case native.QueryDataType:
		var dt C.dnnl_data_type_t
		if st := status(C.dnnl_memory_desc_query(mdOf(h), C.dnnl_query_data_type, unsafe.Pointer(&dt))); st != native.Success {
			return 0, st
		}
		for g, c := range dataTypes {
			if c == dt {
				return int64(g), native.Success
			}
		}
		return int64(native.DataTypeUndef), native.Success
	case native.QuerySize:
		return int64(C.dnnl_memory_desc_get_size(mdOf(h))), native.Success
	}
	return 0, native.Unimplemented
}

func (l *Library) MemoryDescQueryDims(h native.MemoryDesc, q native.Query) ([]int64, native.Status) {
	cq, ok := queries[q]
	if !ok || (q != native.QueryDims && q != native.QueryPaddedDims) {
		return nil, native.Unimplemented
	}
	n, st := l.MemoryDescQueryInt(h, native.QueryNDims)
	if st != native.Success {
		return nil, st
	}
	var p *C.dnnl_dim_t
	if st := status(C.dnnl_memory_desc_query(mdOf(h), cq, unsafe.Pointer(&p))); st != native.Success {
		return nil, st
	}
	if p == nil || n < 0 || n > native.MaxDims {
		return nil, native.RuntimeError
	}
	src := unsafe.Slice(p, int(n))
	out := make([]int64, n)
	for i, d := range src {
		out[i] = int64(d)
	}
	return out, native.Success
}

func (*Library) MemoryDescDestroy(h native.MemoryDesc) native.Status {
	return status(C.dnnl_memory_desc_destroy(mdOf(h)))
}

func (*Library) DataTypeSize(dt native.DataType) uint64 {
	cdt, ok := dataTypes[dt]
	if !ok {
		return 0
	}
	return uint64(C.dnnl_data_type_size(cdt))
}

func (*Library) MemoryCreate(mdh native.MemoryDesc, eh native.Engine, storage native.Storage, ptr unsafe.Pointer) (native.Memory, native.Status) {
	var handle unsafe.Pointer
	switch storage {
	case native.StorageNone:
	case native.StorageLibrary:
		handle = C.memory_allocate()
	case native.StorageUser:
		if ptr == nil {
			return 0, native.InvalidArguments
		}
		handle = ptr
	default:
		return 0, native.InvalidArguments
	}
	var m C.dnnl_memory_t
	if st := status(C.dnnl_memory_create(&m, mdOf(mdh), engineOf(eh), handle)); st != native.Success {
		return 0, st
	}
	return native.Memory(uintptr(unsafe.Pointer(m))), native.Success
}

func (*Library) MemoryGetDataHandle(h native.Memory) (unsafe.Pointer, native.Status) {
	var p unsafe.Pointer
	st := status(C.dnnl_memory_get_data_handle(memoryOf(h), &p))
	return p, st
}

func (*Library) MemoryDestroy(h native.Memory) native.Status {
	return status(C.dnnl_memory_destroy(memoryOf(h)))
}

func (*Library) AttrCreate() (native.Attr, native.Status) {
	var a C.dnnl_primitive_attr_t
	if st := status(C.dnnl_primitive_attr_create(&a)); st != native.Success {
		return 0, st
	}
	return native.Attr(uintptr(unsafe.Pointer(a))), native.Success
}

func (*Library) AttrGetAccumulationMode(h native.Attr) (native.AccumulationMode, native.Status) {
	var m C.dnnl_accumulation_mode_t
	if st := status(C.dnnl_primitive_attr_get_accumulation_mode(attrOf(h), &m)); st != native.Success {
		return 0, st
	}
	for g, c := range accumulationModes {
		if c == m {
			return g, native.Success
		}
	}
	return 0, native.InvalidArguments
}

func (*Library) AttrSetAccumulationMode(h native.Attr, mode native.AccumulationMode) native.Status {
	m, ok := accumulationModes[mode]
	if !ok {
		return native.InvalidArguments
	}
	return status(C.dnnl_primitive_attr_set_accumulation_mode(attrOf(h), m))
}

func (*Library) AttrGetDeterministic(h native.Attr) (bool, native.Status) {
	var v C.int
	st := status(C.dnnl_primitive_attr_get_deterministic(attrOf(h), &v))
	return v != 0, st
}

func (*Library) AttrSetDeterministic(h native.Attr, v bool) native.Status {
	var c C.int
	if v {
		c = 1
	}
	return status(C.dnnl_primitive_attr_set_deterministic(attrOf(h), c))
}

func (*Library) AttrDestroy(h native.Attr) native.Status {
	return status(C.dnnl_primitive_attr_destroy(attrOf(h)))
}
