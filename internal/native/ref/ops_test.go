package ref

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

func TestBinaryAdd(t *testing.T) {
	f := newFixture(t)
	md := f.plain(3)
	a, b, dst := []float32{4, 5, 6}, []float32{1, 2, 3}, make([]float32, 3)

	pd, st := f.lib.BinaryPrimitiveDescCreate(f.eng, native.BinaryAdd, md, md, md, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc0, f.user(md, a)), arg(native.ArgSrc1, f.user(md, b)), arg(native.ArgDst, f.user(md, dst)))

	assert.Equal(t, []float32{5, 7, 9}, dst)
}

func TestBinaryBroadcastAndCompare(t *testing.T) {
	f := newFixture(t)
	md0, md1 := f.plain(2, 3), f.plain(1, 3)
	a, b := []float32{1, 2, 3, 4, 5, 6}, []float32{10, 20, 30}

	out := make([]float32, 6)
	pd, st := f.lib.BinaryPrimitiveDescCreate(f.eng, native.BinaryAdd, md0, md1, md0, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc0, f.user(md0, a)), arg(native.ArgSrc1, f.user(md1, b)), arg(native.ArgDst, f.user(md0, out)))
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out)

	cmp := make([]float32, 6)
	c := []float32{3, 3, 3}
	pd, st = f.lib.BinaryPrimitiveDescCreate(f.eng, native.BinaryGE, md0, md1, md0, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc0, f.user(md0, a)), arg(native.ArgSrc1, f.user(md1, c)), arg(native.ArgDst, f.user(md0, cmp)))
	assert.Equal(t, []float32{0, 0, 1, 1, 1, 1}, cmp)
}

func TestBinaryRejectsBadShapes(t *testing.T) {
	f := newFixture(t)
	_, st := f.lib.BinaryPrimitiveDescCreate(f.eng, native.BinaryAdd, f.plain(2, 3), f.plain(2, 2), f.plain(2, 3), 0)
	assert.Equal(t, native.InvalidArguments, st)

	_, st = f.lib.BinaryPrimitiveDescCreate(f.eng, native.EltwiseRelu, f.plain(3), f.plain(3), f.plain(3), 0)
	assert.Equal(t, native.InvalidArguments, st)
}

func TestReluForwardBackward(t *testing.T) {
	f := newFixture(t)
	md := f.plain(6)
	src := []float32{-1, 2, -3, 4, 0, 5}
	dst := make([]float32, 6)

	fwd, st := f.lib.EltwiseForwardPrimitiveDescCreate(f.eng, native.PropForwardTraining, native.EltwiseReluUseDstForBwd, md, md, 0, 0, 0)
	require.Equal(t, native.Success, st)
	dstMem := f.user(md, dst)
	f.run(fwd, arg(native.ArgSrc, f.user(md, src)), arg(native.ArgDst, dstMem))
	assert.Equal(t, []float32{0, 2, 0, 4, 0, 5}, dst)

	diffDst, diffSrc := fill(6, 1), make([]float32, 6)
	bwd, st := f.lib.EltwiseBackwardPrimitiveDescCreate(f.eng, native.EltwiseReluUseDstForBwd, md, md, md, 0, 0, fwd, 0)
	require.Equal(t, native.Success, st)
	f.run(bwd, arg(native.ArgDst, dstMem), arg(native.ArgDiffDst, f.user(md, diffDst)), arg(native.ArgDiffSrc, f.user(md, diffSrc)))
	assert.Equal(t, []float32{0, 1, 0, 1, 0, 1}, diffSrc)
}

func TestEltwiseBackwardHintMismatch(t *testing.T) {
	f := newFixture(t)
	fwd, st := f.lib.EltwiseForwardPrimitiveDescCreate(f.eng, native.PropForwardTraining, native.EltwiseRelu, f.plain(6), f.plain(6), 0, 0, 0)
	require.Equal(t, native.Success, st)

	md := f.plain(4)
	_, st = f.lib.EltwiseBackwardPrimitiveDescCreate(f.eng, native.EltwiseRelu, md, md, md, 0, 0, fwd, 0)
	assert.Equal(t, native.InvalidShape, st)

	_, st = f.lib.EltwiseBackwardPrimitiveDescCreate(f.eng, native.EltwiseRelu, md, md, md, 0, 0, 0, 0)
	assert.Equal(t, native.InvalidArguments, st)

	_, st = f.lib.EltwiseForwardPrimitiveDescCreate(f.eng, native.PropBackward, native.EltwiseRelu, md, md, 0, 0, 0)
	assert.Equal(t, native.InvalidArguments, st)
}

func TestEltwiseGradientsMatchFiniteDifferences(t *testing.T) {
	algs := []native.AlgKind{
		native.EltwiseTanh, native.EltwiseElu, native.EltwiseSquare, native.EltwiseSqrt,
		native.EltwiseSoftRelu, native.EltwiseLogistic, native.EltwiseExp, native.EltwiseGeluTanh,
		native.EltwiseGeluErf, native.EltwiseSwish, native.EltwiseLog, native.EltwisePow,
		native.EltwiseMish, native.EltwiseLinear,
	}
	const h = 1e-5
	for _, alg := range algs {
		f, df := eltwiseForward(alg), eltwiseBackward(alg)
		require.NotNil(t, f, alg.String())
		require.NotNil(t, df, alg.String())
		for _, x := range []float64{0.3, 1.7} {
			want := (f(x+h, 0.8, 1.5) - f(x-h, 0.8, 1.5)) / (2 * h)
			assert.InDelta(t, want, df(x, 0.8, 1.5), 1e-4, "%s at %v", alg, x)
		}
	}
	assert.Nil(t, eltwiseBackward(native.EltwiseRound))
}

func TestMatmulWithoutBias(t *testing.T) {
	f := newFixture(t)
	srcMD, weiMD, dstMD := f.plain(1, 2, 3), f.plain(1, 3, 2), f.plain(1, 2, 2)
	biasMD := f.plain(1, 2, 2)
	src := []float32{1, 2, 3, 4, 5, 6}
	wei := []float32{7, 8, 9, 10, 11, 12}
	dst := make([]float32, 4)

	pd, st := f.lib.MatmulPrimitiveDescCreate(f.eng, srcMD, weiMD, biasMD, dstMD, 0)
	require.Equal(t, native.Success, st)
	bias, st := f.lib.MemoryCreate(biasMD, f.eng, native.StorageNone, nil)
	require.Equal(t, native.Success, st)

	f.run(pd, arg(native.ArgSrc, f.user(srcMD, src)), arg(native.ArgWeights, f.user(weiMD, wei)),
		arg(native.ArgBias, bias), arg(native.ArgDst, f.user(dstMD, dst)))
	assert.Equal(t, []float32{58, 64, 139, 154}, dst)
}

func TestMatmulBroadcastBias(t *testing.T) {
	f := newFixture(t)
	srcMD, weiMD, dstMD, biasMD := f.plain(2, 3), f.plain(3, 2), f.plain(2, 2), f.plain(1, 2)
	src := []float32{1, 2, 3, 4, 5, 6}
	wei := []float32{7, 8, 9, 10, 11, 12}
	bias := []float32{1, 2}
	dst := make([]float32, 4)

	pd, st := f.lib.MatmulPrimitiveDescCreate(f.eng, srcMD, weiMD, biasMD, dstMD, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc, f.user(srcMD, src)), arg(native.ArgWeights, f.user(weiMD, wei)),
		arg(native.ArgBias, f.user(biasMD, bias)), arg(native.ArgDst, f.user(dstMD, dst)))
	assert.Equal(t, []float32{59, 66, 140, 156}, dst)

	_, st = f.lib.MatmulPrimitiveDescCreate(f.eng, f.plain(2, 3), f.plain(2, 2), 0, f.plain(2, 2), 0)
	assert.Equal(t, native.InvalidArguments, st)
}

func TestReduction(t *testing.T) {
	f := newFixture(t)
	src, dst := []float32{1, 2, 3}, make([]float32, 1)
	pd, st := f.lib.ReductionPrimitiveDescCreate(f.eng, native.ReductionSum, f.plain(3), f.plain(1), 0, 0, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc, f.user(f.plain(3), src)), arg(native.ArgDst, f.user(f.plain(1), dst)))
	assert.Equal(t, []float32{6}, dst)

	mean := make([]float32, 2)
	pd, st = f.lib.ReductionPrimitiveDescCreate(f.eng, native.ReductionMean, f.plain(2, 3), f.plain(2, 1), 0, 0, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc, f.user(f.plain(2, 3), []float32{1, 2, 3, 4, 5, 6})), arg(native.ArgDst, f.user(f.plain(2, 1), mean)))
	assert.Equal(t, []float32{2, 5}, mean)

	norm := make([]float32, 1)
	pd, st = f.lib.ReductionPrimitiveDescCreate(f.eng, native.ReductionNormLpSum, f.plain(2), f.plain(1), 2, 0, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc, f.user(f.plain(2), []float32{3, 4})), arg(native.ArgDst, f.user(f.plain(1), norm)))
	assert.InDelta(t, 5, norm[0], 1e-6)

	full := make([]float32, 1)
	pd, st = f.lib.ReductionPrimitiveDescCreate(f.eng, native.ReductionMean, f.plain(2, 3), f.plain(1, 1), 0, 0, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc, f.user(f.plain(2, 3), []float32{1, 2, 3, 4, 5, 6})), arg(native.ArgDst, f.user(f.plain(1, 1), full)))
	assert.InDelta(t, 3.5, full[0], 1e-6)
}

func TestInnerProductSingleSample(t *testing.T) {
	f := newFixture(t)
	srcMD, weiMD, biasMD, dstMD := f.plain(1, 3), f.plain(2, 3), f.plain(2), f.plain(1, 2)
	dst := make([]float32, 2)
	pd, st := f.lib.InnerProductForwardPrimitiveDescCreate(f.eng, native.PropForwardInference, srcMD, weiMD, biasMD, dstMD, 0)
	require.Equal(t, native.Success, st)
	f.run(pd, arg(native.ArgSrc, f.user(srcMD, []float32{1, 2, 3})),
		arg(native.ArgWeights, f.user(weiMD, []float32{1, 0, 1, 0, 1, 0})),
		arg(native.ArgBias, f.user(biasMD, []float32{0.5, -1})),
		arg(native.ArgDst, f.user(dstMD, dst)))
	assert.Equal(t, []float32{4.5, 1}, dst)
}

func TestInnerProductForwardBackward(t *testing.T) {
	f := newFixture(t)
	srcMD, weiMD, biasMD, dstMD := f.plain(2, 3), f.plain(2, 3), f.plain(2), f.plain(2, 2)
	src := []float32{1, 2, 3, 4, 5, 6}
	wei := []float32{1, 0, 1, 0, 1, 0}
	bias := []float32{0.5, -1}
	dst := make([]float32, 4)

	fwd, st := f.lib.InnerProductForwardPrimitiveDescCreate(f.eng, native.PropForwardTraining, srcMD, weiMD, biasMD, dstMD, 0)
	require.Equal(t, native.Success, st)
	srcMem, weiMem := f.user(srcMD, src), f.user(weiMD, wei)
	f.run(fwd, arg(native.ArgSrc, srcMem), arg(native.ArgWeights, weiMem),
		arg(native.ArgBias, f.user(biasMD, bias)), arg(native.ArgDst, f.user(dstMD, dst)))
	assert.Equal(t, []float32{4.5, 1, 10.5, 4}, dst)

	dd := fill(4, 1)
	ddMem := f.user(dstMD, dd)

	diffSrc := make([]float32, 6)
	bwdData, st := f.lib.InnerProductBackwardDataPrimitiveDescCreate(f.eng, srcMD, weiMD, dstMD, fwd, 0)
	require.Equal(t, native.Success, st)
	f.run(bwdData, arg(native.ArgDiffSrc, f.user(srcMD, diffSrc)), arg(native.ArgWeights, weiMem), arg(native.ArgDiffDst, ddMem))
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, diffSrc)

	diffWei, diffBias := make([]float32, 6), make([]float32, 2)
	bwdWei, st := f.lib.InnerProductBackwardWeightsPrimitiveDescCreate(f.eng, srcMD, weiMD, biasMD, dstMD, fwd, 0)
	require.Equal(t, native.Success, st)
	f.run(bwdWei, arg(native.ArgSrc, srcMem), arg(native.ArgDiffDst, ddMem),
		arg(native.ArgDiffWeights, f.user(weiMD, diffWei)), arg(native.ArgDiffBias, f.user(biasMD, diffBias)))
	assert.Equal(t, []float32{5, 7, 9, 5, 7, 9}, diffWei)
	assert.Equal(t, []float32{2, 2}, diffBias)

	_, st = f.lib.InnerProductBackwardDataPrimitiveDescCreate(f.eng, f.plain(3, 3), f.plain(2, 3), f.plain(3, 2), fwd, 0)
	assert.Equal(t, native.InvalidShape, st)
}

func TestBatchNormTrainingAndBackward(t *testing.T) {
	f := newFixture(t)
	md, stat := f.plain(2, 2), f.plain(2)
	src := []float32{1, 2, 3, 6}
	scale, shift := []float32{2, 1}, []float32{0, 10}
	dst, mean, variance := make([]float32, 4), make([]float32, 2), make([]float32, 2)
	flags := native.NormUseScale | native.NormUseShift

	fwd, st := f.lib.BatchNormForwardPrimitiveDescCreate(f.eng, native.PropForwardTraining, md, md, 0, flags, 0)
	require.Equal(t, native.Success, st)
	srcMem, scaleMem := f.user(md, src), f.user(stat, scale)
	meanMem, varMem := f.user(stat, mean), f.user(stat, variance)
	f.run(fwd, arg(native.ArgSrc, srcMem), arg(native.ArgDst, f.user(md, dst)),
		arg(native.ArgMean, meanMem), arg(native.ArgVariance, varMem),
		arg(native.ArgScale, scaleMem), arg(native.ArgShift, f.user(stat, shift)))
	assert.Equal(t, []float32{2, 4}, mean)
	assert.Equal(t, []float32{1, 4}, variance)
	assert.Equal(t, []float32{-2, 9, 2, 11}, dst)

	dd := []float32{1, 0, 0, 0}
	diffSrc, dScale, dShift := make([]float32, 4), make([]float32, 2), make([]float32, 2)
	bwd, st := f.lib.BatchNormBackwardPrimitiveDescCreate(f.eng, native.PropBackward, md, md, md, 0, flags, fwd, 0)
	require.Equal(t, native.Success, st)
	f.run(bwd, arg(native.ArgSrc, srcMem), arg(native.ArgDiffDst, f.user(md, dd)),
		arg(native.ArgMean, meanMem), arg(native.ArgVariance, varMem), arg(native.ArgScale, scaleMem),
		arg(native.ArgDiffSrc, f.user(md, diffSrc)),
		arg(native.ArgDiffScale, f.user(stat, dScale)), arg(native.ArgDiffShift, f.user(stat, dShift)))
	assert.Equal(t, []float32{-1, 0}, dScale)
	assert.Equal(t, []float32{1, 0}, dShift)
	assert.InDeltaSlice(t, []float32{0, 0, 0, 0}, diffSrc, 1e-6)

	_, st = f.lib.BatchNormBackwardPrimitiveDescCreate(f.eng, native.PropForwardTraining, md, md, md, 0, flags, fwd, 0)
	assert.Equal(t, native.InvalidArguments, st)
}

func TestPRelu(t *testing.T) {
	f := newFixture(t)
	md, wmd := f.plain(4), f.plain(1)
	src, wei, dst := []float32{-2, -1, 0, 3}, []float32{0.5}, make([]float32, 4)

	fwd, st := f.lib.PReluForwardPrimitiveDescCreate(f.eng, native.PropForwardTraining, md, wmd, md, 0)
	require.Equal(t, native.Success, st)
	srcMem, weiMem := f.user(md, src), f.user(wmd, wei)
	f.run(fwd, arg(native.ArgSrc, srcMem), arg(native.ArgWeights, weiMem), arg(native.ArgDst, f.user(md, dst)))
	assert.Equal(t, []float32{-1, -0.5, 0, 3}, dst)

	diffSrc, diffWei := make([]float32, 4), make([]float32, 1)
	bwd, st := f.lib.PReluBackwardPrimitiveDescCreate(f.eng, md, wmd, md, wmd, md, fwd, 0)
	require.Equal(t, native.Success, st)
	f.run(bwd, arg(native.ArgSrc, srcMem), arg(native.ArgWeights, weiMem), arg(native.ArgDiffDst, f.user(md, fill(4, 1))),
		arg(native.ArgDiffSrc, f.user(md, diffSrc)), arg(native.ArgDiffWeights, f.user(wmd, diffWei)))
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 1}, diffSrc)
	assert.Equal(t, []float32{-3}, diffWei)
}

func augruDescs(f *fixture, t, n, slc, dhc int64) native.RNNDescs {
	return native.RNNDescs{
		SrcLayer:     f.desc([]int64{t, n, slc}, native.FormatABC),
		SrcIter:      f.desc([]int64{1, 1, n, dhc}, native.FormatABCD),
		Attention:    f.desc([]int64{t, n, 1}, native.FormatABC),
		WeightsLayer: f.desc([]int64{1, 1, slc, 3, dhc}, native.FormatABCDE),
		WeightsIter:  f.desc([]int64{1, 1, dhc, 3, dhc}, native.FormatABCDE),
		Bias:         f.desc([]int64{1, 1, 3, dhc}, native.FormatABCD),
		DstLayer:     f.desc([]int64{t, n, dhc}, native.FormatABC),
		DstIter:      f.desc([]int64{1, 1, n, dhc}, native.FormatABCD),
	}
}

func TestAugruForward(t *testing.T) {
	f := newFixture(t)
	r := augruDescs(f, 1, 1, 1, 1)
	pd, st := f.lib.AugruForwardPrimitiveDescCreate(f.eng, native.PropForwardInference, native.RNNUnidirectionalLeft2Right, r, native.RNNFlagsUndef, 0)
	require.Equal(t, native.Success, st)

	x, h0, att := []float32{1}, []float32{1}, []float32{0.5}
	wl, wi, bias := []float32{1, 1, 1}, []float32{0, 0, 0}, []float32{0, 0, 0}
	dst, dstIter := make([]float32, 1), make([]float32, 1)
	f.run(pd,
		arg(native.ArgSrcLayer, f.user(r.SrcLayer, x)), arg(native.ArgSrcIter, f.user(r.SrcIter, h0)),
		arg(native.ArgAugruAttn, f.user(r.Attention, att)), arg(native.ArgWtsLayer, f.user(r.WeightsLayer, wl)),
		arg(native.ArgWtsIter, f.user(r.WeightsIter, wi)), arg(native.ArgBias, f.user(r.Bias, bias)),
		arg(native.ArgDstLayer, f.user(r.DstLayer, dst)), arg(native.ArgDstIter, f.user(r.DstIter, dstIter)))

	u := 1 / (1 + math.Exp(-1))
	o := math.Tanh(1)
	ut := 0.5 * u
	want := ut*1 + (1-ut)*o
	assert.InDelta(t, want, dst[0], 1e-6)
	assert.Equal(t, dst, dstIter)
}

func TestAugruRejectsUnsupported(t *testing.T) {
	f := newFixture(t)
	r := augruDescs(f, 1, 1, 1, 1)
	_, st := f.lib.AugruForwardPrimitiveDescCreate(f.eng, native.PropForwardInference, native.RNNBidirectionalConcat, r, native.RNNFlagsUndef, 0)
	assert.Equal(t, native.Unimplemented, st)

	r.WeightsIter = f.desc([]int64{1, 1, 2, 3, 1}, native.FormatABCDE)
	_, st = f.lib.AugruForwardPrimitiveDescCreate(f.eng, native.PropForwardInference, native.RNNUnidirectionalLeft2Right, r, native.RNNFlagsUndef, 0)
	assert.Equal(t, native.InvalidArguments, st)
}

func view(dims []int64, data []float32) tensor {
	return tensor{md: plainLayout(dims, native.F32), data: unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)}
}

func TestAugruBackwardMatchesFiniteDifferences(t *testing.T) {
	d := augruDims{t: 2, n: 1, slc: 2, dhc: 2}
	in := augruInputs{
		x:    []float32{0.5, -0.3, 0.8, 0.1},
		h0:   []float32{0.2, -0.1},
		att:  []float32{0.3, 0.7},
		wl:   []float32{0.1, -0.2, 0.3, 0.05, 0.4, -0.1, -0.3, 0.2, 0.1, 0.25, -0.15, 0.3},
		wi:   []float32{0.2, 0.1, -0.1, 0.3, 0.05, -0.2, -0.25, 0.15, 0.2, 0.1, 0.3, -0.05},
		bias: []float32{0.01, -0.02, 0.03, 0.0, 0.05, -0.01},
	}
	loss := func(in augruInputs) float64 {
		dst, _, _ := d.forward(in, false)
		var s float64
		for _, v := range dst {
			s += float64(v)
		}
		return s
	}

	dx, da := make([]float32, 4), make([]float32, 2)
	dwl, dwi, db := make([]float32, 12), make([]float32, 12), make([]float32, 6)
	dh0 := make([]float32, 2)
	args := map[native.Arg]tensor{
		native.ArgSrcLayer:      view([]int64{2, 1, 2}, in.x),
		native.ArgSrcIter:       view([]int64{1, 1, 1, 2}, in.h0),
		native.ArgAugruAttn:     view([]int64{2, 1, 1}, in.att),
		native.ArgWtsLayer:      view([]int64{1, 1, 2, 3, 2}, in.wl),
		native.ArgWtsIter:       view([]int64{1, 1, 2, 3, 2}, in.wi),
		native.ArgBias:          view([]int64{1, 1, 3, 2}, in.bias),
		native.ArgDiffDstLayer:  view([]int64{2, 1, 2}, fill(4, 1)),
		native.ArgDiffSrcLayer:  view([]int64{2, 1, 2}, dx),
		native.ArgDiffSrcIter:   view([]int64{1, 1, 1, 2}, dh0),
		native.ArgDiffAugruAttn: view([]int64{2, 1, 1}, da),
		native.ArgDiffWtsLayer:  view([]int64{1, 1, 2, 3, 2}, dwl),
		native.ArgDiffWtsIter:   view([]int64{1, 1, 2, 3, 2}, dwi),
		native.ArgDiffBias:      view([]int64{1, 1, 3, 2}, db),
	}
	d.backward(args)

	const h = 1e-2
	check := func(name string, vals []float32, grad []float32) {
		for i := range vals {
			orig := vals[i]
			vals[i] = orig + h
			up := loss(in)
			vals[i] = orig - h
			down := loss(in)
			vals[i] = orig
			assert.InDelta(t, (up-down)/(2*h), grad[i], 1e-2, "%s[%d]", name, i)
		}
	}
	check("x", in.x, dx)
	check("att", in.att, da)
	check("h0", in.h0, dh0)
	check("wl", in.wl, dwl)
	check("wi", in.wi, dwi)
	check("bias", in.bias, db)
}
