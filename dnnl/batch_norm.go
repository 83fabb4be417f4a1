package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// BatchNormForwardConfig normalizes Src per channel (dimension 1). Training
// computes the statistics into ArgMean and ArgVariance; inference, or
// UseGlobalStats, reads them from those slots.
type BatchNormForwardConfig[P PropKind[Forward]] struct {
	forward
	Src, Dst *MemoryDescriptor
	Epsilon  float32
	Flags    NormalizationFlags
	Attr     *PrimitiveAttributes
}

func (BatchNormForwardConfig[P]) typed(Forward, P)         {}
func (BatchNormForwardConfig[P]) operation() OperationKind { return OpBatchNormalization }

func (c BatchNormForwardConfig[P]) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src, c.Dst}
}

func (c BatchNormForwardConfig[P]) attributes() *PrimitiveAttributes { return c.Attr }

func (c BatchNormForwardConfig[P]) create(e native.Engine, a native.Attr, _ native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.BatchNormForwardPrimitiveDescCreate(e, propOf[Forward, P](), raw(c.Src), raw(c.Dst), c.Epsilon, c.Flags, a)
}

type BatchNormTrainingDescriptor = PrimitiveDescriptor[Forward, PropForwardTraining, BatchNormForwardConfig[PropForwardTraining]]

// BatchNormBackwardProp admits PropBackward, which also produces scale and
// shift gradients, and PropBackwardData.
type BatchNormBackwardProp interface {
	PropBackward | PropBackwardData
	PropKind[Backward]
}

type BatchNormBackwardConfig[P BatchNormBackwardProp] struct {
	DiffSrc, DiffDst *MemoryDescriptor
	Src              *MemoryDescriptor
	Epsilon          float32
	Flags            NormalizationFlags
	Hint             *BatchNormTrainingDescriptor
	Attr             *PrimitiveAttributes
}

func (BatchNormBackwardConfig[P]) typed(Backward, P)        {}
func (BatchNormBackwardConfig[P]) operation() OperationKind { return OpBatchNormalization }

func (c BatchNormBackwardConfig[P]) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.DiffSrc, c.DiffDst, c.Src}
}

func (c BatchNormBackwardConfig[P]) attributes() *PrimitiveAttributes { return c.Attr }
func (c BatchNormBackwardConfig[P]) forwardHint() hint                { return c.Hint }

func (c BatchNormBackwardConfig[P]) create(e native.Engine, a native.Attr, h native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.BatchNormBackwardPrimitiveDescCreate(e, propOf[Backward, P](), raw(c.DiffSrc), raw(c.DiffDst), raw(c.Src), c.Epsilon, c.Flags, h, a)
}
