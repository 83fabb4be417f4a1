package dnnl

import (
	"sync"
	"time"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// Stream is an execution queue on one engine. Execute only submits; Wait
// blocks until every submitted primitive has finished. The primitive and
// memories of each Execute hold a reference owned by the stream until the
// Wait that covers them, so closing them early never frees storage that
// in-flight work still reads.
type Stream struct {
	eng   *Engine
	h     *owned[native.Stream]
	flags StreamFlags

	mu      sync.Mutex
	seq     uint64
	pending []pendingRelease
}

// pendingRelease is a reference held for the submission numbered seq.
type pendingRelease struct {
	seq     uint64
	release func()
}

func NewStream(e *Engine) (*Stream, error) { return NewStreamWithFlags(e, StreamDefault) }

func NewStreamWithFlags(e *Engine, flags StreamFlags) (*Stream, error) {
	eh, err := e.retain()
	if err != nil {
		return nil, err
	}
	h, st := lib.StreamCreate(eh, flags)
	if err := check("stream_create", st); err != nil {
		e.drop()
		return nil, err
	}
	s := &Stream{eng: e, h: newOwned("stream", h, lib.StreamDestroy), flags: flags}
	guard(s, "stream", (*Stream).Close)
	return s, nil
}

func (s *Stream) Engine() *Engine    { return s.eng }
func (s *Stream) Flags() StreamFlags { return s.flags }

// keep records releases to run once in-flight work is complete.
func (s *Stream) keep(release ...func()) {
	s.mu.Lock()
	s.seq++
	for _, r := range release {
		s.pending = append(s.pending, pendingRelease{seq: s.seq, release: r})
	}
	s.mu.Unlock()
}

// Wait blocks until all work submitted so far has completed and returns the
// first kernel failure.
func (s *Stream) Wait() error {
	h, err := s.h.handle("stream_wait")
	if err != nil {
		return err
	}
	s.mu.Lock()
	covered := s.seq
	s.mu.Unlock()

	start := time.Now()
	st := lib.StreamWait(h)
	streamWaitSeconds.Observe(time.Since(start).Seconds())

	// Only submissions made before the native wait are known to be done; a
	// concurrent Wait may already have released some of them.
	s.mu.Lock()
	n := 0
	for n < len(s.pending) && s.pending[n].seq <= covered {
		n++
	}
	done := s.pending[:n:n]
	s.pending = append([]pendingRelease(nil), s.pending[n:]...)
	s.mu.Unlock()
	for _, p := range done {
		p.release()
	}
	return check("stream_wait", st)
}

// Close waits for outstanding work, destroys the stream and releases its
// engine reference.
func (s *Stream) Close() {
	unguard(s)
	if _, err := s.h.handle("stream_close"); err != nil {
		return
	}
	_ = s.Wait()
	s.h.destroy()
	s.eng.drop()
}
