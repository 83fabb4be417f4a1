//go:build dnnl

// Package onednn binds native.Library to oneDNN's C API through cgo. Handles
// are the C object pointers carried as uintptr.
package onednn

/*
#cgo LDFLAGS: -ldnnl
#include <dnnl.h>
*/
import "C"
import (
	"unsafe"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

var _ native.Library = (*Library)(nil)

// Library is stateless; every call goes straight to the C library.
type Library struct{}

func New() *Library {
	v := C.dnnl_version()
	log.Debug().
		Int("major", int(v.major)).
		Int("minor", int(v.minor)).
		Int("patch", int(v.patch)).
		Msg("oneDNN loaded")
	return &Library{}
}

func (*Library) Name() string { return "onednn" }

func status(s C.dnnl_status_t) native.Status { return native.Status(s) }

func engineOf(h native.Engine) C.dnnl_engine_t { return C.dnnl_engine_t(unsafe.Pointer(h)) }
func streamOf(h native.Stream) C.dnnl_stream_t { return C.dnnl_stream_t(unsafe.Pointer(h)) }
func mdOf(h native.MemoryDesc) C.dnnl_memory_desc_t {
	return C.dnnl_memory_desc_t(unsafe.Pointer(h))
}
func memoryOf(h native.Memory) C.dnnl_memory_t { return C.dnnl_memory_t(unsafe.Pointer(h)) }
func attrOf(h native.Attr) C.dnnl_primitive_attr_t {
	return C.dnnl_primitive_attr_t(unsafe.Pointer(h))
}
func pdOf(h native.PrimitiveDesc) C.dnnl_primitive_desc_t {
	return C.dnnl_primitive_desc_t(unsafe.Pointer(h))
}
func primitiveOf(h native.Primitive) C.dnnl_primitive_t {
	return C.dnnl_primitive_t(unsafe.Pointer(h))
}

func (*Library) EngineGetCount(kind native.EngineKind) uint64 {
	k, ok := engineKinds[kind]
	if !ok {
		return 0
	}
	return uint64(C.dnnl_engine_get_count(k))
}

func (*Library) EngineCreate(kind native.EngineKind, index uint64) (native.Engine, native.Status) {
	k, ok := engineKinds[kind]
	if !ok {
		return 0, native.InvalidArguments
	}
	var e C.dnnl_engine_t
	if st := status(C.dnnl_engine_create(&e, k, C.size_t(index))); st != native.Success {
		return 0, st
	}
	return native.Engine(uintptr(unsafe.Pointer(e))), native.Success
}

func (*Library) EngineGetKind(h native.Engine) (native.EngineKind, native.Status) {
	var k C.dnnl_engine_kind_t
	if st := status(C.dnnl_engine_get_kind(engineOf(h), &k)); st != native.Success {
		return native.AnyEngine, st
	}
	for gk, ck := range engineKinds {
		if ck == k {
			return gk, native.Success
		}
	}
	return native.AnyEngine, native.InvalidArguments
}

func (*Library) EngineDestroy(h native.Engine) native.Status {
	return status(C.dnnl_engine_destroy(engineOf(h)))
}

func (*Library) StreamCreate(h native.Engine, flags native.StreamFlags) (native.Stream, native.Status) {
	var cf C.uint
	if flags&native.StreamInOrder != 0 {
		cf |= C.uint(C.dnnl_stream_in_order)
	}
	if flags&native.StreamOutOfOrder != 0 {
		cf |= C.uint(C.dnnl_stream_out_of_order)
	}
	var s C.dnnl_stream_t
	if st := status(C.dnnl_stream_create(&s, engineOf(h), cf)); st != native.Success {
		return 0, st
	}
	return native.Stream(uintptr(unsafe.Pointer(s))), native.Success
}

func (*Library) StreamWait(h native.Stream) native.Status {
	return status(C.dnnl_stream_wait(streamOf(h)))
}

func (*Library) StreamDestroy(h native.Stream) native.Status {
	return status(C.dnnl_stream_destroy(streamOf(h)))
}

func (*Library) SetPrimitiveCacheCapacity(capacity int) native.Status {
	return status(C.dnnl_set_primitive_cache_capacity(C.int(capacity)))
}

func (*Library) GetPrimitiveCacheCapacity() (int, native.Status) {
	var c C.int
	st := status(C.dnnl_get_primitive_cache_capacity(&c))
	return int(c), st
}
