//go:build dnnl

package onednn

/*
#include <dnnl.h>
*/
import "C"

import "github.com/23skdu/longbow-dnnl/internal/native"

var engineKinds = map[native.EngineKind]C.dnnl_engine_kind_t{
	native.AnyEngine: C.dnnl_any_engine,
	native.CPU:       C.dnnl_cpu,
	native.GPU:       C.dnnl_gpu,
}

var dataTypes = map[native.DataType]C.dnnl_data_type_t{
	native.DataTypeUndef: C.dnnl_data_type_undef,
	native.F16:           C.dnnl_f16,
	native.BF16:          C.dnnl_bf16,
	native.F32:           C.dnnl_f32,
	native.S32:           C.dnnl_s32,
	native.S8:            C.dnnl_s8,
	native.U8:            C.dnnl_u8,
	native.F64:           C.dnnl_f64,
}

var propKinds = map[native.PropKind]C.dnnl_prop_kind_t{
	native.PropUndef:            C.dnnl_prop_kind_undef,
	native.PropForwardTraining:  C.dnnl_forward_training,
	native.PropForwardInference: C.dnnl_forward_inference,
	native.PropBackward:         C.dnnl_backward,
	native.PropBackwardData:     C.dnnl_backward_data,
	native.PropBackwardWeights:  C.dnnl_backward_weights,
	native.PropBackwardBias:     C.dnnl_backward_bias,
}

var accumulationModes = map[native.AccumulationMode]C.dnnl_accumulation_mode_t{
	native.AccumulationStrict:  C.dnnl_accumulation_mode_strict,
	native.AccumulationRelaxed: C.dnnl_accumulation_mode_relaxed,
	native.AccumulationAny:     C.dnnl_accumulation_mode_any,
	native.AccumulationS32:     C.dnnl_accumulation_mode_s32,
	native.AccumulationF32:     C.dnnl_accumulation_mode_f32,
	native.AccumulationF16:     C.dnnl_accumulation_mode_f16,
}

var rnnDirections = map[native.RNNDirection]C.dnnl_rnn_direction_t{
	native.RNNUnidirectionalLeft2Right: C.dnnl_unidirectional_left2right,
	native.RNNUnidirectionalRight2Left: C.dnnl_unidirectional_right2left,
	native.RNNBidirectionalConcat:      C.dnnl_bidirectional_concat,
	native.RNNBidirectionalSum:         C.dnnl_bidirectional_sum,
}

var algKinds = map[native.AlgKind]C.dnnl_alg_kind_t{
	native.EltwiseRelu:                 C.dnnl_eltwise_relu,
	native.EltwiseTanh:                 C.dnnl_eltwise_tanh,
	native.EltwiseElu:                  C.dnnl_eltwise_elu,
	native.EltwiseSquare:               C.dnnl_eltwise_square,
	native.EltwiseAbs:                  C.dnnl_eltwise_abs,
	native.EltwiseSqrt:                 C.dnnl_eltwise_sqrt,
	native.EltwiseLinear:               C.dnnl_eltwise_linear,
	native.EltwiseSoftRelu:             C.dnnl_eltwise_soft_relu,
	native.EltwiseHardSigmoid:          C.dnnl_eltwise_hardsigmoid,
	native.EltwiseLogistic:             C.dnnl_eltwise_logistic,
	native.EltwiseExp:                  C.dnnl_eltwise_exp,
	native.EltwiseGeluTanh:             C.dnnl_eltwise_gelu_tanh,
	native.EltwiseSwish:                C.dnnl_eltwise_swish,
	native.EltwiseLog:                  C.dnnl_eltwise_log,
	native.EltwiseClip:                 C.dnnl_eltwise_clip,
	native.EltwiseClipV2:               C.dnnl_eltwise_clip_v2,
	native.EltwisePow:                  C.dnnl_eltwise_pow,
	native.EltwiseGeluErf:              C.dnnl_eltwise_gelu_erf,
	native.EltwiseRound:                C.dnnl_eltwise_round,
	native.EltwiseMish:                 C.dnnl_eltwise_mish,
	native.EltwiseHardSwish:            C.dnnl_eltwise_hardswish,
	native.EltwiseReluUseDstForBwd:     C.dnnl_eltwise_relu_use_dst_for_bwd,
	native.EltwiseTanhUseDstForBwd:     C.dnnl_eltwise_tanh_use_dst_for_bwd,
	native.EltwiseEluUseDstForBwd:      C.dnnl_eltwise_elu_use_dst_for_bwd,
	native.EltwiseSqrtUseDstForBwd:     C.dnnl_eltwise_sqrt_use_dst_for_bwd,
	native.EltwiseLogisticUseDstForBwd: C.dnnl_eltwise_logistic_use_dst_for_bwd,
	native.EltwiseExpUseDstForBwd:      C.dnnl_eltwise_exp_use_dst_for_bwd,
	native.EltwiseClipV2UseDstForBwd:   C.dnnl_eltwise_clip_v2_use_dst_for_bwd,

	native.BinaryAdd: C.dnnl_binary_add,
	native.BinaryMul: C.dnnl_binary_mul,
	native.BinaryMax: C.dnnl_binary_max,
	native.BinaryMin: C.dnnl_binary_min,
	native.BinaryDiv: C.dnnl_binary_div,
	native.BinarySub: C.dnnl_binary_sub,
	native.BinaryGE:  C.dnnl_binary_ge,
	native.BinaryGT:  C.dnnl_binary_gt,
	native.BinaryLE:  C.dnnl_binary_le,
	native.BinaryLT:  C.dnnl_binary_lt,
	native.BinaryEQ:  C.dnnl_binary_eq,
	native.BinaryNE:  C.dnnl_binary_ne,

	native.ReductionMax:             C.dnnl_reduction_max,
	native.ReductionMin:             C.dnnl_reduction_min,
	native.ReductionSum:             C.dnnl_reduction_sum,
	native.ReductionMul:             C.dnnl_reduction_mul,
	native.ReductionMean:            C.dnnl_reduction_mean,
	native.ReductionNormLpMax:       C.dnnl_reduction_norm_lp_max,
	native.ReductionNormLpSum:       C.dnnl_reduction_norm_lp_sum,
	native.ReductionNormLpPowerPMax: C.dnnl_reduction_norm_lp_power_p_max,
	native.ReductionNormLpPowerPSum: C.dnnl_reduction_norm_lp_power_p_sum,
}

var formatTags = map[native.FormatTag]C.dnnl_format_tag_t{
	native.FormatUndef:        C.dnnl_format_tag_undef,
	native.FormatAny:          C.dnnl_format_tag_any,
	native.FormatA:            C.dnnl_a,
	native.FormatAB:           C.dnnl_ab,
	native.FormatABC:          C.dnnl_abc,
	native.FormatABCD:         C.dnnl_abcd,
	native.FormatABCDE:        C.dnnl_abcde,
	native.FormatABCDEF:       C.dnnl_abcdef,
	native.FormatABCDEFG:      C.dnnl_abcdefg,
	native.FormatABCDEFGH:     C.dnnl_abcdefgh,
	native.FormatABCDEFGHI:    C.dnnl_abcdefghi,
	native.FormatABCDEFGHIJ:   C.dnnl_abcdefghij,
	native.FormatABCDEFGHIJK:  C.dnnl_abcdefghijk,
	native.FormatABCDEFGHIJKL: C.dnnl_abcdefghijkl,
	native.FormatBA:           C.dnnl_ba,
	native.FormatACB:          C.dnnl_acb,
	native.FormatBAC:          C.dnnl_bac,
	native.FormatBCA:          C.dnnl_bca,
	native.FormatCBA:          C.dnnl_cba,
	native.FormatACDB:         C.dnnl_acdb,
	native.FormatBACD:         C.dnnl_bacd,
	native.FormatBCDA:         C.dnnl_bcda,
	native.FormatCDBA:         C.dnnl_cdba,
	native.FormatACDEB:        C.dnnl_acdeb,
	native.FormatABDC:         C.dnnl_abdc,
	native.FormatABDEC:        C.dnnl_abdec,
	native.FormatABc16b:       C.dnnl_aBc16b,
	native.FormatABcd8b:       C.dnnl_aBcd8b,
	native.FormatABcd16b:      C.dnnl_aBcd16b,
	native.FormatAbcd8a:       C.dnnl_Abcd8a,
	native.FormatAbcd16a:      C.dnnl_Abcd16a,
	native.FormatABcde8b:      C.dnnl_aBcde8b,
	native.FormatABcde16b:     C.dnnl_aBcde16b,
	native.FormatABcd16a16b:   C.dnnl_ABcd16a16b,
}

var queries = map[native.Query]C.dnnl_query_t{
	native.QueryNDims:      C.dnnl_query_ndims_s32,
	native.QueryDims:       C.dnnl_query_dims,
	native.QueryDataType:   C.dnnl_query_data_type,
	native.QueryPaddedDims: C.dnnl_query_padded_dims,
}

func normFlags(f native.NormalizationFlags) C.uint {
	var out C.uint
	for g, c := range map[native.NormalizationFlags]C.uint{
		native.NormUseGlobalStats:  C.uint(C.dnnl_use_global_stats),
		native.NormUseScale:        C.uint(C.dnnl_use_scale),
		native.NormUseShift:        C.uint(C.dnnl_use_shift),
		native.NormFuseNormRelu:    C.uint(C.dnnl_fuse_norm_relu),
		native.NormFuseNormAddRelu: C.uint(C.dnnl_fuse_norm_add_relu),
	} {
		if f&g != 0 {
			out |= c
		}
	}
	return out
}
