package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// ReductionConfig reduces Src over every dimension where Dst has extent 1.
// P and Eps parameterize the norm_lp algorithms.
type ReductionConfig struct {
	forward
	Alg      AlgKind
	Src, Dst *MemoryDescriptor
	P, Eps   float32
	Attr     *PrimitiveAttributes
}

func (ReductionConfig) typed(Forward, PropForwardInference) {}
func (ReductionConfig) operation() OperationKind            { return OpReduction }

func (c ReductionConfig) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src, c.Dst}
}

func (c ReductionConfig) attributes() *PrimitiveAttributes { return c.Attr }

func (c ReductionConfig) create(e native.Engine, a native.Attr, _ native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.ReductionPrimitiveDescCreate(e, c.Alg, raw(c.Src), raw(c.Dst), c.P, c.Eps, a)
}
