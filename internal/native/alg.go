package native

// AlgKind selects the algorithm of an eltwise, binary or reduction primitive.
// The numbering is local to this package; the oneDNN binding translates it.
type AlgKind int32

const (
	AlgUndef AlgKind = iota

	EltwiseRelu
	EltwiseTanh
	EltwiseElu
	EltwiseSquare
	EltwiseAbs
	EltwiseSqrt
	EltwiseLinear
	EltwiseSoftRelu
	EltwiseHardSigmoid
	EltwiseLogistic
	EltwiseExp
	EltwiseGeluTanh
	EltwiseSwish
	EltwiseLog
	EltwiseClip
	EltwiseClipV2
	EltwisePow
	EltwiseGeluErf
	EltwiseRound
	EltwiseMish
	EltwiseHardSwish
	EltwiseReluUseDstForBwd
	EltwiseTanhUseDstForBwd
	EltwiseEluUseDstForBwd
	EltwiseSqrtUseDstForBwd
	EltwiseLogisticUseDstForBwd
	EltwiseExpUseDstForBwd
	EltwiseClipV2UseDstForBwd

	BinaryAdd
	BinaryMul
	BinaryMax
	BinaryMin
	BinaryDiv
	BinarySub
	BinaryGE
	BinaryGT
	BinaryLE
	BinaryLT
	BinaryEQ
	BinaryNE

	ReductionMax
	ReductionMin
	ReductionSum
	ReductionMul
	ReductionMean
	ReductionNormLpMax
	ReductionNormLpSum
	ReductionNormLpPowerPMax
	ReductionNormLpPowerPSum

	algEnd
)

var algNames = map[AlgKind]string{
	EltwiseRelu:                 "eltwise_relu",
	EltwiseTanh:                 "eltwise_tanh",
	EltwiseElu:                  "eltwise_elu",
	EltwiseSquare:               "eltwise_square",
	EltwiseAbs:                  "eltwise_abs",
	EltwiseSqrt:                 "eltwise_sqrt",
	EltwiseLinear:               "eltwise_linear",
	EltwiseSoftRelu:             "eltwise_soft_relu",
	EltwiseHardSigmoid:          "eltwise_hardsigmoid",
	EltwiseLogistic:             "eltwise_logistic",
	EltwiseExp:                  "eltwise_exp",
	EltwiseGeluTanh:             "eltwise_gelu_tanh",
	EltwiseSwish:                "eltwise_swish",
	EltwiseLog:                  "eltwise_log",
	EltwiseClip:                 "eltwise_clip",
	EltwiseClipV2:               "eltwise_clip_v2",
	EltwisePow:                  "eltwise_pow",
	EltwiseGeluErf:              "eltwise_gelu_erf",
	EltwiseRound:                "eltwise_round",
	EltwiseMish:                 "eltwise_mish",
	EltwiseHardSwish:            "eltwise_hardswish",
	EltwiseReluUseDstForBwd:     "eltwise_relu_use_dst_for_bwd",
	EltwiseTanhUseDstForBwd:     "eltwise_tanh_use_dst_for_bwd",
	EltwiseEluUseDstForBwd:      "eltwise_elu_use_dst_for_bwd",
	EltwiseSqrtUseDstForBwd:     "eltwise_sqrt_use_dst_for_bwd",
	EltwiseLogisticUseDstForBwd: "eltwise_logistic_use_dst_for_bwd",
	EltwiseExpUseDstForBwd:      "eltwise_exp_use_dst_for_bwd",
	EltwiseClipV2UseDstForBwd:   "eltwise_clip_v2_use_dst_for_bwd",
	BinaryAdd:                   "binary_add",
	BinaryMul:                   "binary_mul",
	BinaryMax:                   "binary_max",
	BinaryMin:                   "binary_min",
	BinaryDiv:                   "binary_div",
	BinarySub:                   "binary_sub",
	BinaryGE:                    "binary_ge",
	BinaryGT:                    "binary_gt",
	BinaryLE:                    "binary_le",
	BinaryLT:                    "binary_lt",
	BinaryEQ:                    "binary_eq",
	BinaryNE:                    "binary_ne",
	ReductionMax:                "reduction_max",
	ReductionMin:                "reduction_min",
	ReductionSum:                "reduction_sum",
	ReductionMul:                "reduction_mul",
	ReductionMean:               "reduction_mean",
	ReductionNormLpMax:          "reduction_norm_lp_max",
	ReductionNormLpSum:          "reduction_norm_lp_sum",
	ReductionNormLpPowerPMax:    "reduction_norm_lp_power_p_max",
	ReductionNormLpPowerPSum:    "reduction_norm_lp_power_p_sum",
}

func (a AlgKind) String() string {
	if n, ok := algNames[a]; ok {
		return n
	}
	return "undef"
}

// AlgByName is the reverse of String. Unknown names return AlgUndef, false.
func AlgByName(name string) (AlgKind, bool) {
	for k, n := range algNames {
		if n == name {
			return k, true
		}
	}
	return AlgUndef, false
}

func (a AlgKind) IsEltwise() bool   { return a >= EltwiseRelu && a <= EltwiseClipV2UseDstForBwd }
func (a AlgKind) IsBinary() bool    { return a >= BinaryAdd && a <= BinaryNE }
func (a AlgKind) IsReduction() bool { return a >= ReductionMax && a <= ReductionNormLpPowerPSum }

// UsesDstForBackward reports whether the backward pass of an eltwise
// algorithm reads the forward destination instead of the forward source.
func (a AlgKind) UsesDstForBackward() bool {
	return a >= EltwiseReluUseDstForBwd && a <= EltwiseClipV2UseDstForBwd
}
