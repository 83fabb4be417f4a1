package dnnl

import (
	"math"
	"unsafe"

	"github.com/x448/float16"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

type (
	DataType           = native.DataType
	EngineKind         = native.EngineKind
	StreamFlags        = native.StreamFlags
	Storage            = native.Storage
	Arg                = native.Arg
	AlgKind            = native.AlgKind
	AccumulationMode   = native.AccumulationMode
	NormalizationFlags = native.NormalizationFlags
	RNNDirection       = native.RNNDirection
	RNNFlags           = native.RNNFlags
)

const (
	F16  = native.F16
	BF16 = native.BF16
	F32  = native.F32
	S32  = native.S32
	S8   = native.S8
	U8   = native.U8
	F64  = native.F64

	AnyEngine = native.AnyEngine
	CPU       = native.CPU
	GPU       = native.GPU

	StreamInOrder    = native.StreamInOrder
	StreamOutOfOrder = native.StreamOutOfOrder
	StreamDefault    = native.StreamDefault

	StorageNone    = native.StorageNone
	StorageLibrary = native.StorageLibrary
	StorageUser    = native.StorageUser

	UseGlobalStats  = native.NormUseGlobalStats
	UseScale        = native.NormUseScale
	UseShift        = native.NormUseShift
	FuseNormRelu    = native.NormFuseNormRelu
	FuseNormAddRelu = native.NormFuseNormAddRelu

	UnidirectionalLeft2Right = native.RNNUnidirectionalLeft2Right
	UnidirectionalRight2Left = native.RNNUnidirectionalRight2Left
	BidirectionalConcat      = native.RNNBidirectionalConcat
	BidirectionalSum         = native.RNNBidirectionalSum
)

// BFloat16 holds the upper 16 bits of an IEEE-754 float32.
type BFloat16 uint16

func BFloat16From(f float32) BFloat16 {
	bits := math.Float32bits(f)
	// round to nearest even on the dropped half
	bits += 0x7fff + (bits>>16)&1
	return BFloat16(bits >> 16)
}

func (b BFloat16) Float32() float32 { return math.Float32frombits(uint32(b) << 16) }

// Element is the set of Go types a buffer can hold.
type Element interface {
	float32 | float64 | int32 | int8 | uint8 | float16.Float16 | BFloat16
}

// DataTypeOf returns the native data type matching T.
func DataTypeOf[T Element]() DataType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return F32
	case float64:
		return F64
	case int32:
		return S32
	case int8:
		return S8
	case uint8:
		return U8
	case float16.Float16:
		return F16
	case BFloat16:
		return BF16
	}
	return native.DataTypeUndef
}

func elemSize[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Execution argument slots.
const (
	ArgSrc0          = native.ArgSrc0
	ArgSrc           = native.ArgSrc
	ArgSrcLayer      = native.ArgSrcLayer
	ArgSrc1          = native.ArgSrc1
	ArgSrcIter       = native.ArgSrcIter
	ArgSrc2          = native.ArgSrc2
	ArgSrcIterC      = native.ArgSrcIterC
	ArgSrc3          = native.ArgSrc3
	ArgAugruAttn     = native.ArgAugruAttn
	ArgDst0          = native.ArgDst0
	ArgDst           = native.ArgDst
	ArgDstLayer      = native.ArgDstLayer
	ArgDst1          = native.ArgDst1
	ArgDstIter       = native.ArgDstIter
	ArgWeights0      = native.ArgWeights0
	ArgWeights       = native.ArgWeights
	ArgWtsLayer      = native.ArgWtsLayer
	ArgWeights1      = native.ArgWeights1
	ArgWtsIter       = native.ArgWtsIter
	ArgBias          = native.ArgBias
	ArgMean          = native.ArgMean
	ArgVariance      = native.ArgVariance
	ArgScale         = native.ArgScale
	ArgShift         = native.ArgShift
	ArgWorkspace     = native.ArgWorkspace
	ArgScratchpad    = native.ArgScratchpad
	ArgDiffSrc0      = native.ArgDiffSrc0
	ArgDiffSrc       = native.ArgDiffSrc
	ArgDiffSrcLayer  = native.ArgDiffSrcLayer
	ArgDiffSrc1      = native.ArgDiffSrc1
	ArgDiffSrcIter   = native.ArgDiffSrcIter
	ArgDiffAugruAttn = native.ArgDiffAugruAttn
	ArgDiffDst0      = native.ArgDiffDst0
	ArgDiffDst       = native.ArgDiffDst
	ArgDiffDstLayer  = native.ArgDiffDstLayer
	ArgDiffDst1      = native.ArgDiffDst1
	ArgDiffDstIter   = native.ArgDiffDstIter
	ArgDiffWeights0  = native.ArgDiffWeights0
	ArgDiffWeights   = native.ArgDiffWeights
	ArgDiffWtsLayer  = native.ArgDiffWtsLayer
	ArgDiffWeights1  = native.ArgDiffWeights1
	ArgDiffWtsIter   = native.ArgDiffWtsIter
	ArgDiffBias      = native.ArgDiffBias
	ArgDiffScale     = native.ArgDiffScale
	ArgDiffShift     = native.ArgDiffShift
)

// Algorithms.
const (
	EltwiseRelu                 = native.EltwiseRelu
	EltwiseTanh                 = native.EltwiseTanh
	EltwiseElu                  = native.EltwiseElu
	EltwiseSquare               = native.EltwiseSquare
	EltwiseAbs                  = native.EltwiseAbs
	EltwiseSqrt                 = native.EltwiseSqrt
	EltwiseLinear               = native.EltwiseLinear
	EltwiseSoftRelu             = native.EltwiseSoftRelu
	EltwiseHardSigmoid          = native.EltwiseHardSigmoid
	EltwiseLogistic             = native.EltwiseLogistic
	EltwiseExp                  = native.EltwiseExp
	EltwiseGeluTanh             = native.EltwiseGeluTanh
	EltwiseSwish                = native.EltwiseSwish
	EltwiseLog                  = native.EltwiseLog
	EltwiseClip                 = native.EltwiseClip
	EltwiseClipV2               = native.EltwiseClipV2
	EltwisePow                  = native.EltwisePow
	EltwiseGeluErf              = native.EltwiseGeluErf
	EltwiseRound                = native.EltwiseRound
	EltwiseMish                 = native.EltwiseMish
	EltwiseHardSwish            = native.EltwiseHardSwish
	EltwiseReluUseDstForBwd     = native.EltwiseReluUseDstForBwd
	EltwiseTanhUseDstForBwd     = native.EltwiseTanhUseDstForBwd
	EltwiseEluUseDstForBwd      = native.EltwiseEluUseDstForBwd
	EltwiseSqrtUseDstForBwd     = native.EltwiseSqrtUseDstForBwd
	EltwiseLogisticUseDstForBwd = native.EltwiseLogisticUseDstForBwd
	EltwiseExpUseDstForBwd      = native.EltwiseExpUseDstForBwd
	EltwiseClipV2UseDstForBwd   = native.EltwiseClipV2UseDstForBwd
	BinaryAdd                   = native.BinaryAdd
	BinaryMul                   = native.BinaryMul
	BinaryMax                   = native.BinaryMax
	BinaryMin                   = native.BinaryMin
	BinaryDiv                   = native.BinaryDiv
	BinarySub                   = native.BinarySub
	BinaryGE                    = native.BinaryGE
	BinaryGT                    = native.BinaryGT
	BinaryLE                    = native.BinaryLE
	BinaryLT                    = native.BinaryLT
	BinaryEQ                    = native.BinaryEQ
	BinaryNE                    = native.BinaryNE
	ReductionMax                = native.ReductionMax
	ReductionMin                = native.ReductionMin
	ReductionSum                = native.ReductionSum
	ReductionMul                = native.ReductionMul
	ReductionMean               = native.ReductionMean
	ReductionNormLpMax          = native.ReductionNormLpMax
	ReductionNormLpSum          = native.ReductionNormLpSum
	ReductionNormLpPowerPMax    = native.ReductionNormLpPowerPMax
	ReductionNormLpPowerPSum    = native.ReductionNormLpPowerPSum
)

// ParseAlgorithm resolves an algorithm by its native name, e.g. "eltwise_relu".
func ParseAlgorithm(name string) (AlgKind, bool) { return native.AlgByName(name) }
