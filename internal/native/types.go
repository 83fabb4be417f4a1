package native

// Opaque handles. Zero is the null handle.
type (
	Engine        uintptr
	Stream        uintptr
	MemoryDesc    uintptr
	Memory        uintptr
	Attr          uintptr
	PrimitiveDesc uintptr
	Primitive     uintptr
)

// Storage selects how MemoryCreate backs a memory object.
type Storage int32

const (
	// StorageNone creates a descriptor-only memory object.
	StorageNone Storage = iota
	// StorageLibrary asks the library to allocate and own the storage.
	StorageLibrary
	// StorageUser wraps a caller-provided pointer.
	StorageUser
)

type EngineKind int32

const (
	AnyEngine EngineKind = 0
	CPU       EngineKind = 1
	GPU       EngineKind = 2
)

type StreamFlags uint32

const (
	StreamInOrder    StreamFlags = 0x1
	StreamOutOfOrder StreamFlags = 0x2
	StreamDefault    StreamFlags = StreamInOrder
)

type DataType int32

const (
	DataTypeUndef DataType = 0
	F16           DataType = 1
	BF16          DataType = 2
	F32           DataType = 3
	S32           DataType = 4
	S8            DataType = 5
	U8            DataType = 6
	F64           DataType = 7
)

type PropKind int32

const (
	PropUndef            PropKind = 0
	PropForwardTraining  PropKind = 64
	PropForwardInference PropKind = 96
	PropBackward         PropKind = 128
	PropBackwardData     PropKind = 160
	PropBackwardWeights  PropKind = 192
	PropBackwardBias     PropKind = 193
)

type AccumulationMode int32

const (
	AccumulationStrict  AccumulationMode = 0
	AccumulationRelaxed AccumulationMode = 1
	AccumulationAny     AccumulationMode = 2
	AccumulationS32     AccumulationMode = 3
	AccumulationF32     AccumulationMode = 4
	AccumulationF16     AccumulationMode = 5
)

// Query selects what a descriptor query returns.
type Query int32

const (
	QueryUndef      Query = 0
	QueryNDims      Query = 1
	QueryDims       Query = 2
	QueryDataType   Query = 3
	QuerySize       Query = 4
	QueryPaddedDims Query = 5
)

// NormalizationFlags mirror dnnl_normalization_flags_t.
type NormalizationFlags uint32

const (
	NormNone            NormalizationFlags = 0x0
	NormUseGlobalStats  NormalizationFlags = 0x1
	NormUseScale        NormalizationFlags = 0x2
	NormUseShift        NormalizationFlags = 0x4
	NormFuseNormRelu    NormalizationFlags = 0x8
	NormFuseNormAddRelu NormalizationFlags = 0x10
)

type RNNDirection int32

const (
	RNNUnidirectionalLeft2Right RNNDirection = 1
	RNNUnidirectionalRight2Left RNNDirection = 2
	RNNBidirectionalConcat      RNNDirection = 3
	RNNBidirectionalSum         RNNDirection = 4
)

type RNNFlags uint32

const RNNFlagsUndef RNNFlags = 0

// Arg identifies an execution argument slot.
type Arg int32

const (
	ArgSrc0       Arg = 1
	ArgSrc        Arg = ArgSrc0
	ArgSrcLayer   Arg = ArgSrc0
	ArgSrc1       Arg = 2
	ArgSrcIter    Arg = ArgSrc1
	ArgSrc2       Arg = 3
	ArgSrcIterC   Arg = ArgSrc2
	ArgSrc3       Arg = 4
	ArgAugruAttn  Arg = ArgSrc3
	ArgDst0       Arg = 17
	ArgDst        Arg = ArgDst0
	ArgDstLayer   Arg = ArgDst0
	ArgDst1       Arg = 18
	ArgDstIter    Arg = ArgDst1
	ArgWeights0   Arg = 33
	ArgWeights    Arg = ArgWeights0
	ArgWtsLayer   Arg = ArgWeights0
	ArgWeights1   Arg = 34
	ArgWtsIter    Arg = ArgWeights1
	ArgBias       Arg = 41
	ArgMean       Arg = 49
	ArgVariance   Arg = 50
	ArgScale      Arg = 51
	ArgShift      Arg = 52
	ArgWorkspace  Arg = 64
	ArgScratchpad Arg = 80

	argDiffOffset Arg = 128

	ArgDiffSrc0      Arg = argDiffOffset + ArgSrc0
	ArgDiffSrc       Arg = ArgDiffSrc0
	ArgDiffSrcLayer  Arg = ArgDiffSrc0
	ArgDiffSrc1      Arg = argDiffOffset + ArgSrc1
	ArgDiffSrcIter   Arg = ArgDiffSrc1
	ArgDiffAugruAttn Arg = argDiffOffset + ArgSrc3
	ArgDiffDst0      Arg = argDiffOffset + ArgDst0
	ArgDiffDst       Arg = ArgDiffDst0
	ArgDiffDstLayer  Arg = ArgDiffDst0
	ArgDiffDst1      Arg = argDiffOffset + ArgDst1
	ArgDiffDstIter   Arg = ArgDiffDst1
	ArgDiffWeights0  Arg = argDiffOffset + ArgWeights0
	ArgDiffWeights   Arg = ArgDiffWeights0
	ArgDiffWtsLayer  Arg = ArgDiffWeights0
	ArgDiffWeights1  Arg = argDiffOffset + ArgWeights1
	ArgDiffWtsIter   Arg = ArgDiffWeights1
	ArgDiffBias      Arg = argDiffOffset + ArgBias
	ArgDiffScale     Arg = argDiffOffset + ArgScale
	ArgDiffShift     Arg = argDiffOffset + ArgShift
)

// ExecArg binds a memory handle to an argument slot for one execute call.
type ExecArg struct {
	Arg    Arg
	Memory Memory
}

var dataTypeNames = map[DataType]string{
	F16: "f16", BF16: "bf16", F32: "f32", S32: "s32", S8: "s8", U8: "u8", F64: "f64",
}

func (d DataType) String() string {
	if n, ok := dataTypeNames[d]; ok {
		return n
	}
	return "undef"
}

func (k EngineKind) String() string {
	switch k {
	case AnyEngine:
		return "any"
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	}
	return "unknown"
}

func (p PropKind) String() string {
	switch p {
	case PropForwardTraining:
		return "forward_training"
	case PropForwardInference:
		return "forward_inference"
	case PropBackward:
		return "backward"
	case PropBackwardData:
		return "backward_data"
	case PropBackwardWeights:
		return "backward_weights"
	case PropBackwardBias:
		return "backward_bias"
	}
	return "undef"
}
