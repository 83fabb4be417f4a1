package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// BinaryConfig combines Src0 and Src1 elementwise into Dst. Src1 broadcasts
// along its unit dimensions.
type BinaryConfig struct {
	forward
	Alg        AlgKind
	Src0, Src1 *MemoryDescriptor
	Dst        *MemoryDescriptor
	Attr       *PrimitiveAttributes
}

func (BinaryConfig) typed(Forward, PropForwardInference) {}
func (BinaryConfig) operation() OperationKind            { return OpBinary }

func (c BinaryConfig) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src0, c.Src1, c.Dst}
}

func (c BinaryConfig) attributes() *PrimitiveAttributes { return c.Attr }

func (c BinaryConfig) create(e native.Engine, a native.Attr, _ native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.BinaryPrimitiveDescCreate(e, c.Alg, raw(c.Src0), raw(c.Src1), raw(c.Dst), a)
}
