package dnnl

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryAdd(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	md, err := NewDescriptor(Dims1{3}, F32, TagA)
	require.NoError(t, err)
	defer md.Close()

	before := testutil.ToFloat64(primitiveExecutions.WithLabelValues("binary"))
	add, err := NewPrimitive[Forward, PropForwardInference](BinaryConfig{Alg: BinaryAdd, Src0: md, Src1: md, Dst: md}, e)
	require.NoError(t, err)
	defer add.Close()

	dst := zeros(t, e, md)
	run(t, s, add,
		ExecArg{ArgSrc0, user(t, e, md, []float32{4, 5, 6})},
		ExecArg{ArgSrc1, user(t, e, md, []float32{1, 2, 3})},
		ExecArg{ArgDst, dst})
	assert.Equal(t, []float32{5, 7, 9}, read(t, dst))
	assert.Equal(t, before+1, testutil.ToFloat64(primitiveExecutions.WithLabelValues("binary")))
}

func TestBinaryBroadcast(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	a, b := plain(t, 2, 3), plain(t, 1, 3)
	p, err := NewPrimitive[Forward, PropForwardInference](BinaryConfig{Alg: BinarySub, Src0: a, Src1: b, Dst: a}, e)
	require.NoError(t, err)
	defer p.Close()

	dst := zeros(t, e, a)
	run(t, s, p,
		ExecArg{ArgSrc0, user(t, e, a, []float32{1, 2, 3, 4, 5, 6})},
		ExecArg{ArgSrc1, user(t, e, b, []float32{1, 1, 1})},
		ExecArg{ArgDst, dst})
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, read(t, dst))
}

func TestReluForwardBackward(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	md := plain(t, 6)

	fwd, err := NewPrimitiveDescriptor[Forward, PropForwardTraining](EltwiseForwardConfig[PropForwardTraining]{
		Alg: EltwiseRelu, Src: md, Dst: md,
	}, e)
	require.NoError(t, err)
	defer fwd.Close()
	relu, err := NewPrimitiveFromDescriptor(fwd)
	require.NoError(t, err)
	defer relu.Close()

	src := user(t, e, md, []float32{-1, 2, -3, 4, 0, 5})
	dst := zeros(t, e, md)
	run(t, s, relu, ExecArg{ArgSrc, src}, ExecArg{ArgDst, dst})
	assert.Equal(t, []float32{0, 2, 0, 4, 0, 5}, read(t, dst))

	bwd, err := NewPrimitive[Backward, PropBackward](EltwiseBackwardConfig{
		Alg: EltwiseRelu, DiffSrc: md, DiffDst: md, Data: md, Hint: fwd,
	}, e)
	require.NoError(t, err)
	defer bwd.Close()

	diffSrc := zeros(t, e, md)
	run(t, s, bwd, ExecArg{ArgSrc, src}, ExecArg{ArgDiffDst, user(t, e, md, fill(6, 1))}, ExecArg{ArgDiffSrc, diffSrc})
	assert.Equal(t, []float32{0, 1, 0, 1, 0, 1}, read(t, diffSrc))
}

func TestBackwardHintShapeMismatch(t *testing.T) {
	e := cpu(t)
	six, four := plain(t, 6), plain(t, 4)
	fwd, err := NewPrimitiveDescriptor[Forward, PropForwardTraining](EltwiseForwardConfig[PropForwardTraining]{
		Alg: EltwiseTanh, Src: six, Dst: six,
	}, e)
	require.NoError(t, err)
	defer fwd.Close()

	_, err = NewPrimitiveDescriptor[Backward, PropBackward](EltwiseBackwardConfig{
		Alg: EltwiseTanh, DiffSrc: four, DiffDst: four, Data: four, Hint: fwd,
	}, e)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = NewPrimitiveDescriptor[Backward, PropBackward](EltwiseBackwardConfig{
		Alg: EltwiseTanh, DiffSrc: six, DiffDst: six, Data: six,
	}, e)
	assert.ErrorIs(t, err, ErrInvalidArguments, "backward plans need a hint")
	assert.ErrorContains(t, err, "needs a forward hint", "rejected before the native call")

	fwd.Close()
	_, err = NewPrimitiveDescriptor[Backward, PropBackward](EltwiseBackwardConfig{
		Alg: EltwiseTanh, DiffSrc: six, DiffDst: six, Data: six, Hint: fwd,
	}, e)
	assert.ErrorIs(t, err, ErrInvalidArguments, "closed hints are rejected before the native call")
}

func TestMatMul(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	a, b, c := plain(t, 2, 3), plain(t, 3, 2), plain(t, 2, 2)
	src := user(t, e, a, []float32{1, 2, 3, 4, 5, 6})
	wei := user(t, e, b, []float32{7, 8, 9, 10, 11, 12})

	t.Run("without bias", func(t *testing.T) {
		mm, err := NewPrimitive[Forward, PropForwardInference](MatMulConfig[PropForwardInference]{Src: a, Weights: b, Dst: c}, e)
		require.NoError(t, err)
		defer mm.Close()
		dst := zeros(t, e, c)
		run(t, s, mm, ExecArg{ArgSrc, src}, ExecArg{ArgWeights, wei}, ExecArg{ArgDst, dst})
		assert.Equal(t, []float32{58, 64, 139, 154}, read(t, dst))
	})

	t.Run("descriptor-only bias", func(t *testing.T) {
		bias := plain(t, 1, 2)
		mm, err := NewPrimitive[Forward, PropForwardTraining](MatMulConfig[PropForwardTraining]{Src: a, Weights: b, Bias: bias, Dst: c}, e)
		require.NoError(t, err)
		defer mm.Close()
		none, err := NewMemoryWithoutBuffer[float32](e, bias)
		require.NoError(t, err)
		defer none.Close()
		dst := zeros(t, e, c)
		run(t, s, mm, ExecArg{ArgSrc, src}, ExecArg{ArgWeights, wei}, ExecArg{ArgBias, none}, ExecArg{ArgDst, dst})
		assert.Equal(t, []float32{58, 64, 139, 154}, read(t, dst))
	})

	t.Run("broadcast bias", func(t *testing.T) {
		bias := plain(t, 1, 2)
		mm, err := NewPrimitive[Forward, PropForwardInference](MatMulConfig[PropForwardInference]{Src: a, Weights: b, Bias: bias, Dst: c}, e)
		require.NoError(t, err)
		defer mm.Close()
		dst := zeros(t, e, c)
		run(t, s, mm, ExecArg{ArgSrc, src}, ExecArg{ArgWeights, wei},
			ExecArg{ArgBias, user(t, e, bias, []float32{1, 2})}, ExecArg{ArgDst, dst})
		assert.Equal(t, []float32{59, 66, 140, 156}, read(t, dst))
	})
}

func TestReductionSum(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	src, dst := plain(t, 3), plain(t, 1)
	p, err := NewPrimitive[Forward, PropForwardInference](ReductionConfig{Alg: ReductionSum, Src: src, Dst: dst}, e)
	require.NoError(t, err)
	defer p.Close()
	out := zeros(t, e, dst)
	run(t, s, p, ExecArg{ArgSrc, user(t, e, src, []float32{1, 2, 3})}, ExecArg{ArgDst, out})
	assert.Equal(t, []float32{6}, read(t, out))
}

func TestInnerProductForwardBackward(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	srcMD, weiMD, biasMD, dstMD := plain(t, 2, 3), plain(t, 2, 3), plain(t, 2), plain(t, 2, 2)

	fwd, err := NewPrimitiveDescriptor[Forward, PropForwardTraining](InnerProductForwardConfig[PropForwardTraining]{
		Src: srcMD, Weights: weiMD, Bias: biasMD, Dst: dstMD,
	}, e)
	require.NoError(t, err)
	defer fwd.Close()
	ip, err := NewPrimitiveFromDescriptor(fwd)
	require.NoError(t, err)
	defer ip.Close()

	src := user(t, e, srcMD, []float32{1, 2, 3, 4, 5, 6})
	wei := user(t, e, weiMD, []float32{1, 0, 1, 0, 1, 0})
	dst := zeros(t, e, dstMD)
	run(t, s, ip, ExecArg{ArgSrc, src}, ExecArg{ArgWeights, wei},
		ExecArg{ArgBias, user(t, e, biasMD, []float32{0.5, -1})}, ExecArg{ArgDst, dst})
	assert.Equal(t, []float32{4.5, 1, 10.5, 4}, read(t, dst))

	diffDst := user(t, e, dstMD, fill(4, 1))
	bwdData, err := NewPrimitive[Backward, PropBackwardData](InnerProductBackwardDataConfig{
		DiffSrc: srcMD, Weights: weiMD, DiffDst: dstMD, Hint: fwd,
	}, e)
	require.NoError(t, err)
	defer bwdData.Close()
	diffSrc := zeros(t, e, srcMD)
	run(t, s, bwdData, ExecArg{ArgDiffSrc, diffSrc}, ExecArg{ArgWeights, wei}, ExecArg{ArgDiffDst, diffDst})
	assert.Equal(t, fill(6, 1), read(t, diffSrc))

	bwdWei, err := NewPrimitive[Backward, PropBackwardWeights](InnerProductBackwardWeightsConfig{
		Src: srcMD, DiffWeights: weiMD, DiffBias: biasMD, DiffDst: dstMD, Hint: fwd,
	}, e)
	require.NoError(t, err)
	defer bwdWei.Close()
	diffWei, diffBias := zeros(t, e, weiMD), zeros(t, e, biasMD)
	run(t, s, bwdWei, ExecArg{ArgSrc, src}, ExecArg{ArgDiffDst, diffDst},
		ExecArg{ArgDiffWeights, diffWei}, ExecArg{ArgDiffBias, diffBias})
	assert.Equal(t, []float32{5, 7, 9, 5, 7, 9}, read(t, diffWei))
	assert.Equal(t, []float32{2, 2}, read(t, diffBias))

	_, err = NewPrimitiveDescriptor[Backward, PropBackwardData](InnerProductBackwardDataConfig{
		DiffSrc: plain(t, 3, 3), Weights: plain(t, 2, 3), DiffDst: plain(t, 3, 2), Hint: fwd,
	}, e)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestBatchNormTrainingAndBackward(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	md, stat := plain(t, 2, 2), plain(t, 2)
	flags := UseScale | UseShift

	fwd, err := NewPrimitiveDescriptor[Forward, PropForwardTraining](BatchNormForwardConfig[PropForwardTraining]{
		Src: md, Dst: md, Flags: flags,
	}, e)
	require.NoError(t, err)
	defer fwd.Close()
	bn, err := NewPrimitiveFromDescriptor(fwd)
	require.NoError(t, err)
	defer bn.Close()

	src := user(t, e, md, []float32{1, 2, 3, 6})
	scale := user(t, e, stat, []float32{2, 1})
	mean, variance, dst := zeros(t, e, stat), zeros(t, e, stat), zeros(t, e, md)
	run(t, s, bn, ExecArg{ArgSrc, src}, ExecArg{ArgDst, dst},
		ExecArg{ArgMean, mean}, ExecArg{ArgVariance, variance},
		ExecArg{ArgScale, scale}, ExecArg{ArgShift, user(t, e, stat, []float32{0, 10})})
	assert.Equal(t, []float32{2, 4}, read(t, mean))
	assert.Equal(t, []float32{1, 4}, read(t, variance))
	assert.Equal(t, []float32{-2, 9, 2, 11}, read(t, dst))

	bwd, err := NewPrimitive[Backward, PropBackward](BatchNormBackwardConfig[PropBackward]{
		DiffSrc: md, DiffDst: md, Src: md, Flags: flags, Hint: fwd,
	}, e)
	require.NoError(t, err)
	defer bwd.Close()
	diffSrc, dScale, dShift := zeros(t, e, md), zeros(t, e, stat), zeros(t, e, stat)
	run(t, s, bwd, ExecArg{ArgSrc, src}, ExecArg{ArgDiffDst, user(t, e, md, []float32{1, 0, 0, 0})},
		ExecArg{ArgMean, mean}, ExecArg{ArgVariance, variance}, ExecArg{ArgScale, scale},
		ExecArg{ArgDiffSrc, diffSrc}, ExecArg{ArgDiffScale, dScale}, ExecArg{ArgDiffShift, dShift})
	assert.Equal(t, []float32{-1, 0}, read(t, dScale))
	assert.Equal(t, []float32{1, 0}, read(t, dShift))
	assert.InDeltaSlice(t, []float32{0, 0, 0, 0}, read(t, diffSrc), 1e-6)
}

func TestPReLU(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	md, wmd := plain(t, 4), plain(t, 1)

	fwd, err := NewPrimitiveDescriptor[Forward, PropForwardTraining](PReLUForwardConfig[PropForwardTraining]{
		Src: md, Weights: wmd, Dst: md,
	}, e)
	require.NoError(t, err)
	defer fwd.Close()
	p, err := NewPrimitiveFromDescriptor(fwd)
	require.NoError(t, err)
	defer p.Close()

	src, wei, dst := user(t, e, md, []float32{-2, -1, 0, 3}), user(t, e, wmd, []float32{0.5}), zeros(t, e, md)
	run(t, s, p, ExecArg{ArgSrc, src}, ExecArg{ArgWeights, wei}, ExecArg{ArgDst, dst})
	assert.Equal(t, []float32{-1, -0.5, 0, 3}, read(t, dst))

	bwd, err := NewPrimitive[Backward, PropBackward](PReLUBackwardConfig{
		Src: md, Weights: wmd, DiffSrc: md, DiffWeights: wmd, DiffDst: md, Hint: fwd,
	}, e)
	require.NoError(t, err)
	defer bwd.Close()
	diffSrc, diffWei := zeros(t, e, md), zeros(t, e, wmd)
	run(t, s, bwd, ExecArg{ArgSrc, src}, ExecArg{ArgWeights, wei}, ExecArg{ArgDiffDst, user(t, e, md, fill(4, 1))},
		ExecArg{ArgDiffSrc, diffSrc}, ExecArg{ArgDiffWeights, diffWei})
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 1}, read(t, diffSrc))
	assert.Equal(t, []float32{-3}, read(t, diffWei))
}

func augruDescriptors(t *testing.T, steps, batch, slc, dhc int64) AuGRUDescriptors {
	desc := func(dims ...int64) *MemoryDescriptor { return plain(t, dims...) }
	return AuGRUDescriptors{
		SrcLayer:     desc(steps, batch, slc),
		SrcIter:      desc(1, 1, batch, dhc),
		Attention:    desc(steps, batch, 1),
		WeightsLayer: desc(1, 1, slc, 3, dhc),
		WeightsIter:  desc(1, 1, dhc, 3, dhc),
		Bias:         desc(1, 1, 3, dhc),
		DstLayer:     desc(steps, batch, dhc),
		DstIter:      desc(1, 1, batch, dhc),
	}
}

func TestAuGRUForward(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	d := augruDescriptors(t, 1, 1, 1, 1)
	p, err := NewPrimitive[Forward, PropForwardInference](AuGRUForwardConfig[PropForwardInference]{
		Direction: UnidirectionalLeft2Right, AuGRUDescriptors: d,
	}, e)
	require.NoError(t, err)
	defer p.Close()

	dst, dstIter := zeros(t, e, d.DstLayer), zeros(t, e, d.DstIter)
	run(t, s, p,
		ExecArg{ArgSrcLayer, user(t, e, d.SrcLayer, []float32{1})},
		ExecArg{ArgSrcIter, user(t, e, d.SrcIter, []float32{1})},
		ExecArg{ArgAugruAttn, user(t, e, d.Attention, []float32{0.5})},
		ExecArg{ArgWtsLayer, user(t, e, d.WeightsLayer, []float32{1, 1, 1})},
		ExecArg{ArgWtsIter, user(t, e, d.WeightsIter, []float32{0, 0, 0})},
		ExecArg{ArgBias, user(t, e, d.Bias, []float32{0, 0, 0})},
		ExecArg{ArgDstLayer, dst}, ExecArg{ArgDstIter, dstIter})

	u := 0.5 / (1 + math.Exp(-1))
	want := u + (1-u)*math.Tanh(1)
	got := read(t, dst)
	assert.InDelta(t, want, got[0], 1e-6)
	assert.Equal(t, got, read(t, dstIter))
}

func TestAuGRUBackwardRunsWithHint(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	d := augruDescriptors(t, 2, 1, 2, 2)
	fwd, err := NewPrimitiveDescriptor[Forward, PropForwardTraining](AuGRUForwardConfig[PropForwardTraining]{
		Direction: UnidirectionalLeft2Right, AuGRUDescriptors: d,
	}, e)
	require.NoError(t, err)
	defer fwd.Close()

	bwd, err := NewPrimitive[Backward, PropBackward](AuGRUBackwardConfig{
		Direction: UnidirectionalLeft2Right, AuGRUDescriptors: d, Diff: d, Hint: fwd,
	}, e)
	require.NoError(t, err)
	defer bwd.Close()

	// zero upstream gradients give zero parameter gradients
	mem := func(md *MemoryDescriptor) *Memory[float32] { return zeros(t, e, md) }
	dWl := mem(d.WeightsLayer)
	run(t, s, bwd,
		ExecArg{ArgSrcLayer, user(t, e, d.SrcLayer, []float32{1, -1, 0.5, 2})},
		ExecArg{ArgSrcIter, mem(d.SrcIter)},
		ExecArg{ArgAugruAttn, user(t, e, d.Attention, []float32{0.3, 0.7})},
		ExecArg{ArgWtsLayer, user(t, e, d.WeightsLayer, fill(12, 0.1))},
		ExecArg{ArgWtsIter, user(t, e, d.WeightsIter, fill(12, -0.1))},
		ExecArg{ArgBias, mem(d.Bias)},
		ExecArg{ArgDstLayer, mem(d.DstLayer)},
		ExecArg{ArgDstIter, mem(d.DstIter)},
		ExecArg{ArgDiffSrcLayer, mem(d.SrcLayer)},
		ExecArg{ArgDiffSrcIter, mem(d.SrcIter)},
		ExecArg{ArgDiffAugruAttn, mem(d.Attention)},
		ExecArg{ArgDiffWtsLayer, dWl},
		ExecArg{ArgDiffWtsIter, mem(d.WeightsIter)},
		ExecArg{ArgDiffBias, mem(d.Bias)},
		ExecArg{ArgDiffDstLayer, mem(d.DstLayer)},
		ExecArg{ArgDiffDstIter, mem(d.DstIter)})
	assert.Equal(t, make([]float32, 12), read(t, dWl))

	_, err = NewPrimitiveDescriptor[Forward, PropForwardInference](AuGRUForwardConfig[PropForwardInference]{
		Direction: BidirectionalSum, AuGRUDescriptors: d,
	}, e)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestQueryMemoryDescriptor(t *testing.T) {
	e := cpu(t)
	a, b := plain(t, 2, 3), plain(t, 3, 2)
	anyDst, err := NewDescriptorAny([]int64{2, 2}, F32)
	require.NoError(t, err)
	defer anyDst.Close()

	pd, err := NewPrimitiveDescriptor[Forward, PropForwardInference](MatMulConfig[PropForwardInference]{
		Src: a, Weights: b, Dst: anyDst,
	}, e)
	require.NoError(t, err)
	defer pd.Close()
	assert.Equal(t, OpMatMul, pd.Operation())
	assert.Equal(t, PropagationForwardInference, pd.PropKind())

	chosen, err := pd.QueryMemoryDescriptor(ArgDst)
	require.NoError(t, err)
	defer chosen.Close()
	assert.True(t, chosen.Equal(plain(t, 2, 2)))

	_, err = pd.QueryMemoryDescriptor(ArgDiffSrc)
	assert.ErrorIs(t, err, ErrNotRequired)
}
