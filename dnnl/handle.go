package dnnl

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// shared is a reference-counted native handle. The creator holds the first
// reference; dependents acquire their own. The native object is destroyed
// exactly once, when the last reference is released.
type shared[H ~uintptr] struct {
	raw    H
	kind   string
	free   func(H) native.Status
	refs   atomic.Int64
	closed atomic.Bool
}

func newShared[H ~uintptr](kind string, raw H, free func(H) native.Status) *shared[H] {
	s := &shared[H]{raw: raw, kind: kind, free: free}
	s.refs.Store(1)
	liveObjects.WithLabelValues(kind).Inc()
	log.Debug().Str("type", kind).Msg("native object created")
	return s
}

func (s *shared[H]) acquire() { s.refs.Add(1) }

func (s *shared[H]) release() {
	switch n := s.refs.Add(-1); {
	case n == 0:
		// destroy statuses are not actionable
		_ = s.free(s.raw)
		liveObjects.WithLabelValues(s.kind).Dec()
		log.Debug().Str("type", s.kind).Msg("native object destroyed")
	case n < 0:
		panic("dnnl: " + s.kind + " released more often than acquired")
	}
}

// close drops the creator's reference; later calls are no-ops.
func (s *shared[H]) close() {
	if s.closed.CompareAndSwap(false, true) {
		s.release()
	}
}

// handle returns the raw handle until the creator closes the object.
// Dependents that already hold a reference keep using their own copy.
func (s *shared[H]) handle(op string) (H, error) {
	if s == nil || s.closed.Load() || s.refs.Load() <= 0 {
		return 0, fail(KindInvalidArguments, op, s.kindName()+" used after close")
	}
	return s.raw, nil
}

func (s *shared[H]) kindName() string {
	if s == nil {
		return "object"
	}
	return s.kind
}

// owned is a single-owner native handle destroyed exactly once.
type owned[H ~uintptr] struct {
	raw  H
	kind string
	free func(H) native.Status
	once sync.Once
	done atomic.Bool
}

func newOwned[H ~uintptr](kind string, raw H, free func(H) native.Status) *owned[H] {
	liveObjects.WithLabelValues(kind).Inc()
	log.Debug().Str("type", kind).Msg("native object created")
	return &owned[H]{raw: raw, kind: kind, free: free}
}

func (o *owned[H]) destroy() {
	o.once.Do(func() {
		o.done.Store(true)
		_ = o.free(o.raw)
		liveObjects.WithLabelValues(o.kind).Dec()
		log.Debug().Str("type", o.kind).Msg("native object destroyed")
	})
}

func (o *owned[H]) handle(op string) (H, error) {
	if o == nil || o.done.Load() {
		return 0, fail(KindInvalidArguments, op, "object used after close")
	}
	return o.raw, nil
}

// guard releases obj through closeFn if it becomes unreachable without
// being closed.
func guard[T any](obj *T, kind string, closeFn func(*T)) {
	runtime.SetFinalizer(obj, func(x *T) {
		log.Warn().Str("type", kind).Msg("releasing leaked native object")
		closeFn(x)
	})
}

func unguard[T any](obj *T) { runtime.SetFinalizer(obj, nil) }
