package dnnl

import (
	"fmt"
	"unsafe"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// BoundMemory is a memory object that can be bound to an execution argument.
type BoundMemory interface {
	// bind hands out the native handle plus a reference that the stream
	// releases after the covering Wait.
	bind(op string) (native.Memory, func(), error)
}

// Memory pairs a descriptor with storage holding elements of type T. User
// buffers are owned by the Memory from the moment binding succeeds and are
// freed with it.
type Memory[T Element] struct {
	ref     *shared[native.Memory]
	eng     *Engine
	desc    *MemoryDescriptor
	storage Storage
	buf     *AlignedBuffer[T]
	size    int
}

var _ BoundMemory = (*Memory[float32])(nil)

// NewMemoryWithUserBuffer binds buf as the storage of desc. Only CPU
// engines can address Go-side buffers.
func NewMemoryWithUserBuffer[T Element](e *Engine, desc *MemoryDescriptor, buf *AlignedBuffer[T]) (*Memory[T], error) {
	kind, err := e.Kind()
	if err != nil {
		return nil, err
	}
	if kind != CPU {
		return nil, fail(KindUnsupported, "memory_create", "unsupported device kind")
	}
	if buf == nil || buf.Len() == 0 {
		return nil, fail(KindInvalidArguments, "memory_create", "nil or freed buffer")
	}
	if err := checkElement[T](desc); err != nil {
		return nil, err
	}
	if need := desc.Size() / elemSize[T](); buf.Len() < need {
		return nil, fail(KindInvalidArguments, "memory_create",
			fmt.Sprintf("buffer holds %d elements, descriptor needs %d", buf.Len(), need))
	}
	if !buf.claim() {
		return nil, fail(KindInvalidArguments, "memory_create", "buffer is already bound to a memory")
	}
	m, err := newMemory(e, desc, StorageUser, buf)
	if err != nil {
		buf.unclaim()
		return nil, err
	}
	return m, nil
}

// NewMemoryWithLibraryBuffer lets the native library allocate and own the
// storage.
func NewMemoryWithLibraryBuffer[T Element](e *Engine, desc *MemoryDescriptor) (*Memory[T], error) {
	if err := checkElement[T](desc); err != nil {
		return nil, err
	}
	return newMemory[T](e, desc, StorageLibrary, nil)
}

// NewMemoryWithoutBuffer creates a descriptor-only memory, used to mark an
// optional argument such as a disabled bias as absent.
func NewMemoryWithoutBuffer[T Element](e *Engine, desc *MemoryDescriptor) (*Memory[T], error) {
	if err := checkElement[T](desc); err != nil {
		return nil, err
	}
	return newMemory[T](e, desc, StorageNone, nil)
}

func checkElement[T Element](desc *MemoryDescriptor) error {
	dt, err := desc.DataType()
	if err != nil {
		return err
	}
	if want := DataTypeOf[T](); dt != want {
		return fail(KindInvalidDataType, "memory_create", fmt.Sprintf("descriptor holds %s, element type is %s", dt, want))
	}
	return nil
}

func newMemory[T Element](e *Engine, desc *MemoryDescriptor, storage Storage, buf *AlignedBuffer[T]) (*Memory[T], error) {
	eh, err := e.retain()
	if err != nil {
		return nil, err
	}
	dh, err := desc.retain("memory_create")
	if err != nil {
		e.drop()
		return nil, err
	}
	var ptr unsafe.Pointer
	if buf != nil {
		ptr = buf.ptr()
	}
	h, st := lib.MemoryCreate(dh, eh, storage, ptr)
	if err := check("memory_create", st); err != nil {
		desc.drop()
		e.drop()
		return nil, err
	}
	m := &Memory[T]{eng: e, desc: desc, storage: storage, buf: buf, size: desc.Size()}
	m.ref = newShared("memory", h, m.destroy)
	guard(m, "memory", (*Memory[T]).Close)
	return m, nil
}

func (m *Memory[T]) destroy(h native.Memory) native.Status {
	st := lib.MemoryDestroy(h)
	if m.buf != nil {
		m.buf.release()
	}
	m.desc.drop()
	m.eng.drop()
	return st
}

// ToSlice copies the contents out as Size()/sizeof(T) elements.
func (m *Memory[T]) ToSlice() ([]T, error) {
	h, err := m.ref.handle("memory_read")
	if err != nil {
		return nil, err
	}
	n := m.size / elemSize[T]()
	out := make([]T, n)
	switch m.storage {
	case StorageUser:
		copy(out, m.buf.Slice())
	case StorageLibrary:
		ptr, st := lib.MemoryGetDataHandle(h)
		if err := check("memory_get_data_handle", st); err != nil {
			return nil, err
		}
		if ptr == nil {
			return nil, fail(KindNonNullViolation, "memory_get_data_handle", "library storage has no data handle")
		}
		copy(out, unsafe.Slice((*T)(ptr), n))
	default:
		return nil, fail(KindInvalidArguments, "memory_read", "memory has no storage")
	}
	return out, nil
}

// Descriptor returns a copy of the layout the memory was created with.
func (m *Memory[T]) Descriptor() (*MemoryDescriptor, error) {
	if _, err := m.ref.handle("memory_get_memory_desc"); err != nil {
		return nil, err
	}
	return cloneDescriptor("memory_get_memory_desc", m.desc.ref.raw)
}

func (m *Memory[T]) Storage() Storage { return m.storage }

// Buffer is the owned user buffer, nil for other storage kinds. Its Free is
// ignored; the storage goes away with the memory.
func (m *Memory[T]) Buffer() *AlignedBuffer[T] { return m.buf }

func (m *Memory[T]) Engine() *Engine { return m.eng }

// Close releases the memory once no pending execution still references it.
func (m *Memory[T]) Close() {
	unguard(m)
	m.ref.close()
}

func (m *Memory[T]) bind(op string) (native.Memory, func(), error) {
	h, err := m.ref.handle(op)
	if err != nil {
		return 0, nil, err
	}
	m.ref.acquire()
	return h, m.ref.release, nil
}
