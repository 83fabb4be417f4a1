package dnnl

import (
	"fmt"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// PrimitiveDescriptor is a validated execution plan for one config. It holds
// references to the engine and to every descriptor and attribute set of the
// config until it is closed.
type PrimitiveDescriptor[D Direction, P PropKind[D], C Config[D, P]] struct {
	ref *shared[native.PrimitiveDesc]
	eng *Engine
	cfg C
}

// NewPrimitiveDescriptor validates cfg on e with exactly one native call.
//
//	pd, err := dnnl.NewPrimitiveDescriptor[dnnl.Forward, dnnl.PropForwardInference](cfg, eng)
func NewPrimitiveDescriptor[D Direction, P PropKind[D], C Config[D, P]](cfg C, e *Engine) (*PrimitiveDescriptor[D, P, C], error) {
	op := cfg.operation().String() + "_primitive_desc_create"
	eh, err := e.retain()
	if err != nil {
		return nil, err
	}
	var held []*MemoryDescriptor
	release := func() {
		for _, d := range held {
			d.drop()
		}
	}
	for _, d := range cfg.descriptors() {
		if d == nil {
			continue
		}
		if _, err := d.retain(op); err != nil {
			release()
			e.drop()
			return nil, err
		}
		held = append(held, d)
	}
	attr := cfg.attributes()
	ah, err := attr.retain(op)
	if err != nil {
		release()
		e.drop()
		return nil, err
	}
	unwind := func() {
		attr.drop()
		release()
		e.drop()
	}

	var hh native.PrimitiveDesc
	if h := cfg.forwardHint(); h != nil {
		if hh, err = h.hintHandle(op); err != nil {
			unwind()
			return nil, err
		}
	}
	h, st := cfg.create(eh, ah, hh)
	if err := check(op, st); err != nil {
		unwind()
		return nil, err
	}
	pd := &PrimitiveDescriptor[D, P, C]{eng: e, cfg: cfg}
	pd.ref = newShared("primitive_desc", h, func(h native.PrimitiveDesc) native.Status {
		st := lib.PrimitiveDescDestroy(h)
		unwind()
		return st
	})
	guard(pd, "primitive_desc", (*PrimitiveDescriptor[D, P, C]).Close)
	return pd, nil
}

func (pd *PrimitiveDescriptor[D, P, C]) Config() C                { return pd.cfg }
func (pd *PrimitiveDescriptor[D, P, C]) Engine() *Engine          { return pd.eng }
func (pd *PrimitiveDescriptor[D, P, C]) Operation() OperationKind { return pd.cfg.operation() }
func (pd *PrimitiveDescriptor[D, P, C]) PropKind() Propagation    { return propOf[D, P]() }

// QueryMemoryDescriptor returns a copy of the layout the plan chose for an
// argument slot. Slots the plan does not use fail with KindNotRequired.
func (pd *PrimitiveDescriptor[D, P, C]) QueryMemoryDescriptor(arg Arg) (*MemoryDescriptor, error) {
	h, err := pd.ref.handle("primitive_desc_query_md")
	if err != nil {
		return nil, err
	}
	md, st := lib.PrimitiveDescQueryMD(h, arg)
	if err := check("primitive_desc_query_md", st); err != nil {
		return nil, err
	}
	if md == 0 {
		return nil, fail(KindNotRequired, "primitive_desc_query_md", fmt.Sprintf("slot %d is not used by %s", arg, pd.cfg.operation()))
	}
	return cloneDescriptor("primitive_desc_query_md", md)
}

// Close drops the creator's reference. Primitives created from the plan
// stay valid.
func (pd *PrimitiveDescriptor[D, P, C]) Close() {
	unguard(pd)
	pd.ref.close()
}

// hintHandle is only reached from backward configs, so a nil plan is a
// missing hint.
func (pd *PrimitiveDescriptor[D, P, C]) hintHandle(op string) (native.PrimitiveDesc, error) {
	if pd == nil {
		return 0, fail(KindInvalidArguments, op, "backward config needs a forward hint")
	}
	return pd.ref.handle(op)
}
