package dnnl

import (
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// ExecArg binds a memory to an argument slot for one Execute.
type ExecArg struct {
	Index Arg
	Mem   BoundMemory
}

// Primitive is an executable instance of a plan.
type Primitive[D Direction, P PropKind[D], C Config[D, P]] struct {
	ref      *shared[native.Primitive]
	eng      *Engine
	desc     *PrimitiveDescriptor[D, P, C]
	ownsDesc bool
}

// NewPrimitive builds the plan for cfg and the primitive in one step. The
// primitive owns the plan.
func NewPrimitive[D Direction, P PropKind[D], C Config[D, P]](cfg C, e *Engine) (*Primitive[D, P, C], error) {
	pd, err := NewPrimitiveDescriptor[D, P](cfg, e)
	if err != nil {
		return nil, err
	}
	p, err := NewPrimitiveFromDescriptor(pd)
	if err != nil {
		pd.Close()
		return nil, err
	}
	p.ownsDesc = true
	return p, nil
}

// NewPrimitiveFromDescriptor creates a primitive from a plan the caller
// keeps ownership of. The plan may be closed afterwards.
func NewPrimitiveFromDescriptor[D Direction, P PropKind[D], C Config[D, P]](pd *PrimitiveDescriptor[D, P, C]) (*Primitive[D, P, C], error) {
	h, err := pd.ref.handle("primitive_create")
	if err != nil {
		return nil, err
	}
	ph, st := lib.PrimitiveCreate(h)
	if err := check("primitive_create", st); err != nil {
		return nil, err
	}
	pd.eng.share()
	p := &Primitive[D, P, C]{eng: pd.eng, desc: pd}
	p.ref = newShared("primitive", ph, func(h native.Primitive) native.Status {
		st := lib.PrimitiveDestroy(h)
		if p.ownsDesc {
			p.desc.Close()
		}
		p.eng.drop()
		return st
	})
	guard(p, "primitive", (*Primitive[D, P, C]).Close)
	primitivesCreated.WithLabelValues(pd.Operation().String()).Inc()
	return p, nil
}

// Descriptor is the plan the primitive was created from.
func (p *Primitive[D, P, C]) Descriptor() *PrimitiveDescriptor[D, P, C] { return p.desc }

func (p *Primitive[D, P, C]) Engine() *Engine { return p.eng }

// Execute submits the primitive to s and returns without waiting. Slot and
// layout mismatches are reported here; kernel failures surface from the
// stream's Wait. The primitive and every bound memory stay alive until that
// Wait returns, even if they are closed in between.
func (p *Primitive[D, P, C]) Execute(s *Stream, args []ExecArg) error {
	const op = "primitive_execute"
	ph, err := p.ref.handle(op)
	if err != nil {
		return err
	}
	sh, err := s.h.handle(op)
	if err != nil {
		return err
	}
	if s.eng.ref.raw != p.eng.ref.raw {
		return fail(KindInvalidArguments, op, "stream and primitive belong to different engines")
	}

	releases := make([]func(), 0, len(args)+1)
	unwind := func() {
		for _, r := range releases {
			r()
		}
	}
	nargs := make([]native.ExecArg, 0, len(args))
	for _, a := range args {
		if a.Mem == nil {
			unwind()
			return fail(KindInvalidArguments, op, "nil memory")
		}
		mh, release, err := a.Mem.bind(op)
		if err != nil {
			unwind()
			return err
		}
		releases = append(releases, release)
		nargs = append(nargs, native.ExecArg{Arg: a.Index, Memory: mh})
	}
	p.ref.acquire()
	releases = append(releases, p.ref.release)

	if err := check(op, lib.PrimitiveExecute(ph, sh, nargs)); err != nil {
		unwind()
		return err
	}
	s.keep(releases...)
	name := p.desc.cfg.operation().String()
	primitiveExecutions.WithLabelValues(name).Inc()
	log.Trace().Str("op", name).Int("args", len(nargs)).Msg("primitive submitted")
	return nil
}

// Close releases the primitive once pending executions have been waited on.
func (p *Primitive[D, P, C]) Close() {
	unguard(p)
	p.ref.close()
}
