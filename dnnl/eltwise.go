package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// EltwiseForwardConfig applies a unary activation. Alpha and Beta are the
// algorithm parameters (slope, clip bounds, linear coefficients).
type EltwiseForwardConfig[P PropKind[Forward]] struct {
	forward
	Alg         AlgKind
	Src, Dst    *MemoryDescriptor
	Alpha, Beta float32
	Attr        *PrimitiveAttributes
}

func (EltwiseForwardConfig[P]) typed(Forward, P)         {}
func (EltwiseForwardConfig[P]) operation() OperationKind { return OpEltwise }

func (c EltwiseForwardConfig[P]) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src, c.Dst}
}

func (c EltwiseForwardConfig[P]) attributes() *PrimitiveAttributes { return c.Attr }

func (c EltwiseForwardConfig[P]) create(e native.Engine, a native.Attr, _ native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.EltwiseForwardPrimitiveDescCreate(e, propOf[Forward, P](), c.Alg, raw(c.Src), raw(c.Dst), c.Alpha, c.Beta, a)
}

// EltwiseTrainingDescriptor is the forward plan a backward eltwise needs.
type EltwiseTrainingDescriptor = PrimitiveDescriptor[Forward, PropForwardTraining, EltwiseForwardConfig[PropForwardTraining]]

// EltwiseBackwardConfig computes DiffSrc from DiffDst. Data is the forward
// source, or the forward destination for the use-dst-for-bwd algorithms.
type EltwiseBackwardConfig struct {
	Alg              AlgKind
	DiffSrc, DiffDst *MemoryDescriptor
	Data             *MemoryDescriptor
	Alpha, Beta      float32
	Hint             *EltwiseTrainingDescriptor
	Attr             *PrimitiveAttributes
}

func (EltwiseBackwardConfig) typed(Backward, PropBackward) {}
func (EltwiseBackwardConfig) operation() OperationKind     { return OpEltwise }

func (c EltwiseBackwardConfig) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.DiffSrc, c.DiffDst, c.Data}
}

func (c EltwiseBackwardConfig) attributes() *PrimitiveAttributes { return c.Attr }
func (c EltwiseBackwardConfig) forwardHint() hint                { return c.Hint }

func (c EltwiseBackwardConfig) create(e native.Engine, a native.Attr, h native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.EltwiseBackwardPrimitiveDescCreate(e, c.Alg, raw(c.DiffSrc), raw(c.DiffDst), raw(c.Data), c.Alpha, c.Beta, h, a)
}
