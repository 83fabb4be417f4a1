package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// MatMulConfig computes Dst = Src x Weights (+ Bias) over the last two
// dimensions, broadcasting leading batch dimensions. A nil Bias disables the
// bias term.
type MatMulConfig[P PropKind[Forward]] struct {
	forward
	Src, Weights *MemoryDescriptor
	Bias         *MemoryDescriptor
	Dst          *MemoryDescriptor
	Attr         *PrimitiveAttributes
}

func (MatMulConfig[P]) typed(Forward, P)         {}
func (MatMulConfig[P]) operation() OperationKind { return OpMatMul }

func (c MatMulConfig[P]) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src, c.Weights, c.Bias, c.Dst}
}

func (c MatMulConfig[P]) attributes() *PrimitiveAttributes { return c.Attr }

func (c MatMulConfig[P]) create(e native.Engine, a native.Attr, _ native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.MatmulPrimitiveDescCreate(e, raw(c.Src), raw(c.Weights), raw(c.Bias), raw(c.Dst), a)
}
