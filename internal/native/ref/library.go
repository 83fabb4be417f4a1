// Package ref is a pure-Go implementation of the native tensor-compute
// library ABI. It computes in float32 on the CPU, honors the same handle,
// status and argument-slot contracts as oneDNN, and is linked by default so
// the safety layer can run without the C library installed.
package ref

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-dnnl/internal/cache"
	"github.com/23skdu/longbow-dnnl/internal/native"
)

// DefaultCacheCapacity matches oneDNN's default primitive cache size.
const DefaultCacheCapacity = 1024

var _ native.Library = (*Library)(nil)

// Library owns the handle table. The zero value is not usable; call New.
type Library struct {
	mu      sync.RWMutex
	objects map[uintptr]any
	next    atomic.Uintptr

	programs *cache.LRU[string, *program]
}

func New() *Library {
	l := &Library{
		objects:  make(map[uintptr]any),
		programs: cache.NewLRU[string, *program](DefaultCacheCapacity),
	}
	l.programs.OnEvict(func(string, *program) { cacheEvictions.Inc() })
	return l
}

func (l *Library) Name() string { return "ref" }

// Live returns the number of objects currently held in the handle table.
func (l *Library) Live() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.objects)
}

func (l *Library) put(obj any) uintptr {
	h := l.next.Add(1)
	l.mu.Lock()
	l.objects[h] = obj
	l.mu.Unlock()
	return h
}

func (l *Library) drop(h uintptr) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	obj, ok := l.objects[h]
	if ok {
		delete(l.objects, h)
	}
	return obj, ok
}

// lookup resolves a handle to its object; zero and stale handles miss.
func lookup[T any](l *Library, h uintptr) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	l.mu.RLock()
	obj, ok := l.objects[h]
	l.mu.RUnlock()
	if !ok {
		return zero, false
	}
	t, ok := obj.(T)
	return t, ok
}

// destroy removes a handle of type T and runs its release hook.
func destroy[T any](l *Library, h uintptr, release func(T)) native.Status {
	if _, ok := lookup[T](l, h); !ok {
		return native.InvalidArguments
	}
	obj, ok := l.drop(h)
	if !ok {
		return native.InvalidArguments
	}
	if release != nil {
		release(obj.(T))
	}
	return native.Success
}

func (l *Library) SetPrimitiveCacheCapacity(capacity int) native.Status {
	if capacity < 0 {
		return native.InvalidArguments
	}
	l.programs.SetCapacity(capacity)
	log.Debug().Int("capacity", capacity).Msg("primitive cache resized")
	return native.Success
}

func (l *Library) GetPrimitiveCacheCapacity() (int, native.Status) {
	return l.programs.Capacity(), native.Success
}
