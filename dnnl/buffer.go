package dnnl

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog/log"
)

// AlignedBuffer is an owned, page-aligned block of elements. The storage is
// allocated outside the Go heap on unix so the native library may keep a
// pointer to it for the lifetime of a Memory. Once bound, the buffer
// belongs to the Memory and only closing the Memory frees it.
type AlignedBuffer[T Element] struct {
	raw   []byte
	data  []T
	once  sync.Once
	owned atomic.Bool
}

// NewAlignedBuffer copies data into a fresh aligned buffer.
func NewAlignedBuffer[T Element](data []T) (*AlignedBuffer[T], error) {
	b, err := ZeroedBuffer[T](len(data))
	if err != nil {
		return nil, err
	}
	copy(b.data, data)
	return b, nil
}

// ZeroedBuffer allocates n zero elements.
func ZeroedBuffer[T Element](n int) (*AlignedBuffer[T], error) {
	if n <= 0 {
		return nil, fail(KindInvalidArguments, "buffer_alloc", "length must be positive")
	}
	raw, err := allocAligned(n * elemSize[T]())
	if err != nil {
		return nil, &Error{Kind: KindOutOfMemory, Op: "buffer_alloc", Detail: err.Error()}
	}
	bufferBytes.Add(float64(len(raw)))
	b := &AlignedBuffer[T]{raw: raw, data: unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), n)}
	guard(b, "buffer", (*AlignedBuffer[T]).Free)
	return b, nil
}

// Len is the element count; 0 after Free.
func (b *AlignedBuffer[T]) Len() int { return len(b.data) }

// Slice is a mutable view valid until Free.
func (b *AlignedBuffer[T]) Slice() []T { return b.data }

// Values returns a copy of the contents.
func (b *AlignedBuffer[T]) Values() []T {
	out := make([]T, len(b.data))
	copy(out, b.data)
	return out
}

func (b *AlignedBuffer[T]) ptr() unsafe.Pointer {
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&b.data[0])
}

// Owned reports whether a Memory has taken the buffer.
func (b *AlignedBuffer[T]) Owned() bool { return b.owned.Load() }

// claim hands the buffer to a Memory; it fails if another Memory already
// holds it.
func (b *AlignedBuffer[T]) claim() bool { return b.owned.CompareAndSwap(false, true) }

func (b *AlignedBuffer[T]) unclaim() { b.owned.Store(false) }

// Free releases the storage. It is a no-op while a Memory owns the buffer
// and on later calls.
func (b *AlignedBuffer[T]) Free() {
	if b.owned.Load() {
		log.Warn().Msg("Free on a buffer owned by a memory object ignored")
		return
	}
	b.release()
}

func (b *AlignedBuffer[T]) release() {
	b.once.Do(func() {
		unguard(b)
		bufferBytes.Sub(float64(len(b.raw)))
		freeAligned(b.raw)
		b.raw, b.data = nil, nil
	})
}
