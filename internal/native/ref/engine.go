package ref

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

type engine struct {
	kind  native.EngineKind
	index uint64
}

// EngineGetCount reports one CPU device. GPU and "any" devices are never
// present in the reference library.
func (l *Library) EngineGetCount(kind native.EngineKind) uint64 {
	if kind == native.CPU {
		return 1
	}
	return 0
}

func (l *Library) EngineCreate(kind native.EngineKind, index uint64) (native.Engine, native.Status) {
	switch kind {
	case native.CPU:
	case native.GPU, native.AnyEngine:
		return 0, native.Unimplemented
	default:
		return 0, native.InvalidArguments
	}
	if index >= l.EngineGetCount(kind) {
		return 0, native.InvalidArguments
	}
	h := l.put(&engine{kind: kind, index: index})
	log.Debug().Uint64("index", index).Msg("ref engine created")
	return native.Engine(h), native.Success
}

func (l *Library) EngineGetKind(h native.Engine) (native.EngineKind, native.Status) {
	e, ok := lookup[*engine](l, uintptr(h))
	if !ok {
		return native.AnyEngine, native.InvalidArguments
	}
	return e.kind, native.Success
}

func (l *Library) EngineDestroy(h native.Engine) native.Status {
	return destroy[*engine](l, uintptr(h), nil)
}

// stream executes submitted kernels. In-order streams drain a FIFO on one
// worker goroutine; out-of-order streams run each submission on its own
// goroutine, bounded by a semaphore.
type stream struct {
	eng   *engine
	flags native.StreamFlags

	mu   sync.Mutex
	cond *sync.Cond
	err  error
	// seq numbers submissions; outstanding holds those not yet finished.
	seq         uint64
	outstanding map[uint64]struct{}
	queue       chan job
	sem         *semaphore.Weighted
}

type job struct {
	id uint64
	fn func() error
}

func newStream(e *engine, flags native.StreamFlags) *stream {
	s := &stream{eng: e, flags: flags, outstanding: make(map[uint64]struct{})}
	s.cond = sync.NewCond(&s.mu)
	if flags&native.StreamOutOfOrder != 0 {
		s.sem = semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
		return s
	}
	s.queue = make(chan job, 64)
	go s.worker()
	return s
}

func (s *stream) worker() {
	for j := range s.queue {
		s.run(j)
	}
}

// run executes one submission. A kernel panic is reported as that
// submission's failure.
func (s *stream) run(j job) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("kernel panic: %v", r)
			}
		}()
		return j.fn()
	}()
	s.mu.Lock()
	if err != nil && s.err == nil {
		s.err = err
	}
	delete(s.outstanding, j.id)
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *stream) submit(fn func() error) {
	s.mu.Lock()
	s.seq++
	j := job{id: s.seq, fn: fn}
	s.outstanding[j.id] = struct{}{}
	s.mu.Unlock()
	if s.queue != nil {
		s.queue <- j
		return
	}
	go func() {
		// Acquire only fails on a cancelled context.
		_ = s.sem.Acquire(context.Background(), 1)
		defer s.sem.Release(1)
		s.run(j)
	}()
}

// pendingUpTo reports whether a submission numbered at most id is still
// running. Callers hold mu.
func (s *stream) pendingUpTo(id uint64) bool {
	for k := range s.outstanding {
		if k <= id {
			return true
		}
	}
	return false
}

// wait blocks until every submission made before the call has finished and
// returns the first kernel failure since the previous wait.
func (s *stream) wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.seq
	for s.pendingUpTo(target) {
		s.cond.Wait()
	}
	err := s.err
	s.err = nil
	return err
}

func (s *stream) close() {
	s.mu.Lock()
	for len(s.outstanding) > 0 {
		s.cond.Wait()
	}
	s.mu.Unlock()
	if s.queue != nil {
		close(s.queue)
	}
}

func (l *Library) StreamCreate(h native.Engine, flags native.StreamFlags) (native.Stream, native.Status) {
	e, ok := lookup[*engine](l, uintptr(h))
	if !ok {
		return 0, native.InvalidArguments
	}
	if flags&(native.StreamInOrder|native.StreamOutOfOrder) == 0 ||
		flags&^(native.StreamInOrder|native.StreamOutOfOrder) != 0 {
		return 0, native.InvalidArguments
	}
	return native.Stream(l.put(newStream(e, flags))), native.Success
}

func (l *Library) StreamWait(h native.Stream) native.Status {
	s, ok := lookup[*stream](l, uintptr(h))
	if !ok {
		return native.InvalidArguments
	}
	if err := s.wait(); err != nil {
		log.Error().Err(err).Msg("ref kernel failed")
		return native.RuntimeError
	}
	return native.Success
}

func (l *Library) StreamDestroy(h native.Stream) native.Status {
	return destroy(l, uintptr(h), (*stream).close)
}
