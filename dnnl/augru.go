package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// AuGRUDescriptors are the tensors of an attention-update GRU layer:
// layer input [T,N,SLC], initial state [L,D,N,DHC], attention [T,N,1],
// weights [L,D,SLC|DHC,3,DHC], bias [L,D,3,DHC] and the layer and final-state
// outputs. Nil SrcIter, Bias or DstIter mark the argument absent.
type AuGRUDescriptors struct {
	SrcLayer     *MemoryDescriptor
	SrcIter      *MemoryDescriptor
	Attention    *MemoryDescriptor
	WeightsLayer *MemoryDescriptor
	WeightsIter  *MemoryDescriptor
	Bias         *MemoryDescriptor
	DstLayer     *MemoryDescriptor
	DstIter      *MemoryDescriptor
}

func (d AuGRUDescriptors) list() []*MemoryDescriptor {
	return []*MemoryDescriptor{d.SrcLayer, d.SrcIter, d.Attention, d.WeightsLayer, d.WeightsIter, d.Bias, d.DstLayer, d.DstIter}
}

func (d AuGRUDescriptors) handles() native.RNNDescs {
	return native.RNNDescs{
		SrcLayer:     raw(d.SrcLayer),
		SrcIter:      raw(d.SrcIter),
		Attention:    raw(d.Attention),
		WeightsLayer: raw(d.WeightsLayer),
		WeightsIter:  raw(d.WeightsIter),
		Bias:         raw(d.Bias),
		DstLayer:     raw(d.DstLayer),
		DstIter:      raw(d.DstIter),
	}
}

type AuGRUForwardConfig[P PropKind[Forward]] struct {
	forward
	Direction RNNDirection
	AuGRUDescriptors
	Flags RNNFlags
	Attr  *PrimitiveAttributes
}

func (AuGRUForwardConfig[P]) typed(Forward, P)         {}
func (AuGRUForwardConfig[P]) operation() OperationKind { return OpAugru }

func (c AuGRUForwardConfig[P]) descriptors() []*MemoryDescriptor { return c.list() }
func (c AuGRUForwardConfig[P]) attributes() *PrimitiveAttributes { return c.Attr }

func (c AuGRUForwardConfig[P]) create(e native.Engine, a native.Attr, _ native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.AugruForwardPrimitiveDescCreate(e, propOf[Forward, P](), c.Direction, c.AuGRUDescriptors.handles(), c.Flags, a)
}

type AuGRUTrainingDescriptor = PrimitiveDescriptor[Forward, PropForwardTraining, AuGRUForwardConfig[PropForwardTraining]]

// AuGRUBackwardConfig carries the forward tensors plus their gradients.
// Weight and bias gradients accumulate into the bound memories.
type AuGRUBackwardConfig struct {
	Direction RNNDirection
	AuGRUDescriptors
	Diff  AuGRUDescriptors
	Flags RNNFlags
	Hint  *AuGRUTrainingDescriptor
	Attr  *PrimitiveAttributes
}

func (AuGRUBackwardConfig) typed(Backward, PropBackward) {}
func (AuGRUBackwardConfig) operation() OperationKind     { return OpAugru }

func (c AuGRUBackwardConfig) descriptors() []*MemoryDescriptor {
	return append(c.list(), c.Diff.list()...)
}

func (c AuGRUBackwardConfig) attributes() *PrimitiveAttributes { return c.Attr }
func (c AuGRUBackwardConfig) forwardHint() hint                { return c.Hint }

func (c AuGRUBackwardConfig) create(e native.Engine, a native.Attr, h native.PrimitiveDesc) (native.PrimitiveDesc, native.Status) {
	return lib.AugruBackwardPrimitiveDescCreate(e, native.PropBackward, c.Direction, c.AuGRUDescriptors.handles(), c.Diff.handles(), c.Flags, h, a)
}
