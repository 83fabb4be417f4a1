package native

import "unsafe"

// Library is the C ABI of the tensor-compute library, one method per entry
// point. Handles are opaque; the zero handle stands for a null pointer and is
// accepted wherever the C API accepts NULL (optional descriptors, absent
// attributes). Every method reports failure only through its Status.
type Library interface {
	Name() string

	EngineGetCount(kind EngineKind) uint64
	EngineCreate(kind EngineKind, index uint64) (Engine, Status)
	EngineGetKind(e Engine) (EngineKind, Status)
	EngineDestroy(e Engine) Status

	StreamCreate(e Engine, flags StreamFlags) (Stream, Status)
	StreamWait(s Stream) Status
	StreamDestroy(s Stream) Status

	MemoryDescCreateWithTag(dims []int64, dt DataType, tag FormatTag) (MemoryDesc, Status)
	MemoryDescCreateWithBlob(blob []byte) (MemoryDesc, Status)
	MemoryDescClone(md MemoryDesc) (MemoryDesc, Status)
	MemoryDescEqual(a, b MemoryDesc) bool
	MemoryDescGetSize(md MemoryDesc) uint64
	MemoryDescGetBlob(md MemoryDesc) ([]byte, Status)
	MemoryDescQueryInt(md MemoryDesc, q Query) (int64, Status)
	MemoryDescQueryDims(md MemoryDesc, q Query) ([]int64, Status)
	MemoryDescDestroy(md MemoryDesc) Status

	DataTypeSize(dt DataType) uint64

	// MemoryCreate backs md according to storage. ptr is read only for
	// StorageUser and must stay valid until MemoryDestroy.
	MemoryCreate(md MemoryDesc, e Engine, storage Storage, ptr unsafe.Pointer) (Memory, Status)
	MemoryGetDataHandle(m Memory) (unsafe.Pointer, Status)
	MemoryDestroy(m Memory) Status

	AttrCreate() (Attr, Status)
	AttrGetAccumulationMode(a Attr) (AccumulationMode, Status)
	AttrSetAccumulationMode(a Attr, mode AccumulationMode) Status
	AttrGetDeterministic(a Attr) (bool, Status)
	AttrSetDeterministic(a Attr, v bool) Status
	AttrDestroy(a Attr) Status

	BinaryPrimitiveDescCreate(e Engine, alg AlgKind, src0, src1, dst MemoryDesc, attr Attr) (PrimitiveDesc, Status)

	EltwiseForwardPrimitiveDescCreate(e Engine, prop PropKind, alg AlgKind, src, dst MemoryDesc,
		alpha, beta float32, attr Attr) (PrimitiveDesc, Status)
	EltwiseBackwardPrimitiveDescCreate(e Engine, alg AlgKind, diffSrc, diffDst, data MemoryDesc,
		alpha, beta float32, hint PrimitiveDesc, attr Attr) (PrimitiveDesc, Status)

	MatmulPrimitiveDescCreate(e Engine, src, weights, bias, dst MemoryDesc, attr Attr) (PrimitiveDesc, Status)

	InnerProductForwardPrimitiveDescCreate(e Engine, prop PropKind, src, weights, bias, dst MemoryDesc,
		attr Attr) (PrimitiveDesc, Status)
	InnerProductBackwardDataPrimitiveDescCreate(e Engine, diffSrc, weights, diffDst MemoryDesc,
		hint PrimitiveDesc, attr Attr) (PrimitiveDesc, Status)
	InnerProductBackwardWeightsPrimitiveDescCreate(e Engine, src, diffWeights, diffBias, diffDst MemoryDesc,
		hint PrimitiveDesc, attr Attr) (PrimitiveDesc, Status)

	ReductionPrimitiveDescCreate(e Engine, alg AlgKind, src, dst MemoryDesc, p, eps float32,
		attr Attr) (PrimitiveDesc, Status)

	BatchNormForwardPrimitiveDescCreate(e Engine, prop PropKind, src, dst MemoryDesc, eps float32,
		flags NormalizationFlags, attr Attr) (PrimitiveDesc, Status)
	BatchNormBackwardPrimitiveDescCreate(e Engine, prop PropKind, diffSrc, diffDst, src MemoryDesc,
		eps float32, flags NormalizationFlags, hint PrimitiveDesc, attr Attr) (PrimitiveDesc, Status)

	PReluForwardPrimitiveDescCreate(e Engine, prop PropKind, src, weights, dst MemoryDesc,
		attr Attr) (PrimitiveDesc, Status)
	PReluBackwardPrimitiveDescCreate(e Engine, src, weights, diffSrc, diffWeights, diffDst MemoryDesc,
		hint PrimitiveDesc, attr Attr) (PrimitiveDesc, Status)

	AugruForwardPrimitiveDescCreate(e Engine, prop PropKind, dir RNNDirection, r RNNDescs,
		flags RNNFlags, attr Attr) (PrimitiveDesc, Status)
	AugruBackwardPrimitiveDescCreate(e Engine, prop PropKind, dir RNNDirection, r RNNDescs,
		diff RNNDescs, flags RNNFlags, hint PrimitiveDesc, attr Attr) (PrimitiveDesc, Status)

	// PrimitiveDescQueryMD returns the plan's descriptor for an execution
	// argument. The handle is owned by the primitive descriptor; zero means
	// the plan has no such argument.
	PrimitiveDescQueryMD(pd PrimitiveDesc, arg Arg) (MemoryDesc, Status)
	PrimitiveDescDestroy(pd PrimitiveDesc) Status

	PrimitiveCreate(pd PrimitiveDesc) (Primitive, Status)
	PrimitiveExecute(p Primitive, s Stream, args []ExecArg) Status
	PrimitiveDestroy(p Primitive) Status

	SetPrimitiveCacheCapacity(capacity int) Status
	GetPrimitiveCacheCapacity() (int, Status)
}

// RNNDescs groups the eight descriptors of an AuGRU cell. For backward
// constructors the same shape carries the diff descriptors.
type RNNDescs struct {
	SrcLayer     MemoryDesc
	SrcIter      MemoryDesc
	Attention    MemoryDesc
	WeightsLayer MemoryDesc
	WeightsIter  MemoryDesc
	Bias         MemoryDesc
	DstLayer     MemoryDesc
	DstIter      MemoryDesc
}
