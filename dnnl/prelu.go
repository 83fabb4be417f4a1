package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// PReLUForwardConfig computes Dst = Src > 0 ? Src : Weights * Src with
// Weights broadcast against Src.
type PReLUForwardConfig[P PropKind[Forward]] struct {
	forward
	Src, Weights *MemoryDescriptor
	Dst          *MemoryDescriptor
	Attr         *PrimitiveAttributes
}

func (PReLUForwardConfig[P]) typed(Forward, P)         {}
func (PReLUForwardConfig[P]) operation() OperationKind { return OpPRelu }

func (c PReLUForwardConfig[P]) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src, c.Weights, c.Dst}
}

func (c PReLUForwardConfig[P]) attributes() *PrimitiveAttributes { return c.Attr }

func (c PReLUForwardConfig[P]) create(e native.Engine, a native.Attr, _ native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.PReluForwardPrimitiveDescCreate(e, propOf[Forward, P](), raw(c.Src), raw(c.Weights), raw(c.Dst), a)
}

type PReLUTrainingDescriptor = PrimitiveDescriptor[Forward, PropForwardTraining, PReLUForwardConfig[PropForwardTraining]]

type PReLUBackwardConfig struct {
	Src, Weights         *MemoryDescriptor
	DiffSrc, DiffWeights *MemoryDescriptor
	DiffDst              *MemoryDescriptor
	Hint                 *PReLUTrainingDescriptor
	Attr                 *PrimitiveAttributes
}

func (PReLUBackwardConfig) typed(Backward, PropBackward) {}
func (PReLUBackwardConfig) operation() OperationKind     { return OpPRelu }

func (c PReLUBackwardConfig) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src, c.Weights, c.DiffSrc, c.DiffWeights, c.DiffDst}
}

func (c PReLUBackwardConfig) attributes() *PrimitiveAttributes { return c.Attr }
func (c PReLUBackwardConfig) forwardHint() hint                { return c.Hint }

func (c PReLUBackwardConfig) create(e native.Engine, a native.Attr, h native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.PReluBackwardPrimitiveDescCreate(e, raw(c.Src), raw(c.Weights), raw(c.DiffSrc), raw(c.DiffWeights), raw(c.DiffDst), h, a)
}
