package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// InnerProductForwardConfig is a fully connected layer:
// Dst[n][o] = sum_k Src[n][k] * Weights[o][k] + Bias[o].
type InnerProductForwardConfig[P PropKind[Forward]] struct {
	forward
	Src, Weights *MemoryDescriptor
	Bias         *MemoryDescriptor
	Dst          *MemoryDescriptor
	Attr         *PrimitiveAttributes
}

func (InnerProductForwardConfig[P]) typed(Forward, P)         {}
func (InnerProductForwardConfig[P]) operation() OperationKind { return OpInnerProduct }

func (c InnerProductForwardConfig[P]) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src, c.Weights, c.Bias, c.Dst}
}

func (c InnerProductForwardConfig[P]) attributes() *PrimitiveAttributes { return c.Attr }

func (c InnerProductForwardConfig[P]) create(e native.Engine, a native.Attr, _ native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.InnerProductForwardPrimitiveDescCreate(e, propOf[Forward, P](), raw(c.Src), raw(c.Weights), raw(c.Bias), raw(c.Dst), a)
}

type InnerProductTrainingDescriptor = PrimitiveDescriptor[Forward, PropForwardTraining, InnerProductForwardConfig[PropForwardTraining]]

type InnerProductBackwardDataConfig struct {
	DiffSrc, Weights *MemoryDescriptor
	DiffDst          *MemoryDescriptor
	Hint             *InnerProductTrainingDescriptor
	Attr             *PrimitiveAttributes
}

func (InnerProductBackwardDataConfig) typed(Backward, PropBackwardData) {}
func (InnerProductBackwardDataConfig) operation() OperationKind         { return OpInnerProduct }

func (c InnerProductBackwardDataConfig) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.DiffSrc, c.Weights, c.DiffDst}
}

func (c InnerProductBackwardDataConfig) attributes() *PrimitiveAttributes { return c.Attr }
func (c InnerProductBackwardDataConfig) forwardHint() hint                { return c.Hint }

func (c InnerProductBackwardDataConfig) create(e native.Engine, a native.Attr, h native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.InnerProductBackwardDataPrimitiveDescCreate(e, raw(c.DiffSrc), raw(c.Weights), raw(c.DiffDst), h, a)
}

// InnerProductBackwardWeightsConfig computes weight and bias gradients. A
// nil DiffBias skips the bias gradient.
type InnerProductBackwardWeightsConfig struct {
	Src, DiffWeights *MemoryDescriptor
	DiffBias         *MemoryDescriptor
	DiffDst          *MemoryDescriptor
	Hint             *InnerProductTrainingDescriptor
	Attr             *PrimitiveAttributes
}

func (InnerProductBackwardWeightsConfig) typed(Backward, PropBackwardWeights) {}
func (InnerProductBackwardWeightsConfig) operation() OperationKind            { return OpInnerProduct }

func (c InnerProductBackwardWeightsConfig) descriptors() []*MemoryDescriptor {
	return []*MemoryDescriptor{c.Src, c.DiffWeights, c.DiffBias, c.DiffDst}
}

func (c InnerProductBackwardWeightsConfig) attributes() *PrimitiveAttributes { return c.Attr }
func (c InnerProductBackwardWeightsConfig) forwardHint() hint                { return c.Hint }

func (c InnerProductBackwardWeightsConfig) create(e native.Engine, a native.Attr, h native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.InnerProductBackwardWeightsPrimitiveDescCreate(e, raw(c.Src), raw(c.DiffWeights), raw(c.DiffBias), raw(c.DiffDst), h, a)
}
