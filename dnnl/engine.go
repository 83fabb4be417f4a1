package dnnl

import (
	"fmt"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// Engine is a compute device context. It is shared by reference count:
// every stream, memory, primitive descriptor and primitive built from it
// holds a reference, so the native engine outlives all of them no matter
// which Close runs first.
type Engine struct {
	ref   *shared[native.Engine]
	index int
}

// EngineCount reports the devices of the given kind; 0 for unsupported kinds.
func EngineCount(kind EngineKind) int { return int(lib.EngineGetCount(kind)) }

func NewEngine(kind EngineKind, index int) (*Engine, error) {
	if index < 0 {
		return nil, fail(KindInvalidArguments, "engine_create", "negative index")
	}
	h, st := lib.EngineCreate(kind, uint64(index))
	if err := check("engine_create", st); err != nil {
		return nil, err
	}
	e := &Engine{ref: newShared("engine", h, lib.EngineDestroy), index: index}
	guard(e, "engine", (*Engine).Close)
	return e, nil
}

// Kind queries the device kind from the native library.
func (e *Engine) Kind() (EngineKind, error) {
	h, err := e.ref.handle("engine_get_kind")
	if err != nil {
		return AnyEngine, err
	}
	k, st := lib.EngineGetKind(h)
	if err := check("engine_get_kind", st); err != nil {
		return AnyEngine, err
	}
	switch k {
	case AnyEngine, CPU, GPU:
		return k, nil
	}
	panic(fmt.Sprintf("dnnl: engine_get_kind returned unknown kind %d", k))
}

func (e *Engine) Index() int { return e.index }

// Close drops the creator's reference. The native engine is destroyed once
// every dependent has been closed as well.
func (e *Engine) Close() {
	unguard(e)
	e.ref.close()
}

// retain hands out a dependent reference.
func (e *Engine) retain() (native.Engine, error) {
	h, err := e.ref.handle("engine")
	if err != nil {
		return 0, err
	}
	e.ref.acquire()
	return h, nil
}

// share adds a reference for an object derived from an existing dependent,
// which stays valid after the creator closed the engine.
func (e *Engine) share() native.Engine {
	e.ref.acquire()
	return e.ref.raw
}

func (e *Engine) drop() { e.ref.release() }
