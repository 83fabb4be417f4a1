package ref

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

func (l *Library) MatmulPrimitiveDescCreate(eh native.Engine, srch, weightsh, biash, dsth native.MemoryDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	mds, st := l.required(srch, weightsh, dsth)
	if st != native.Success {
		return 0, st
	}
	bias, st := l.optionalDesc(biash)
	if st != native.Success {
		return 0, st
	}
	src, wei, dst := mds[0].resolve(), mds[1].resolve(), mds[2].resolve()
	n := src.ndims()
	if n < 2 || wei.ndims() != n || dst.ndims() != n {
		return 0, native.InvalidArguments
	}
	m, k, nn := src.Dims[n-2], src.Dims[n-1], wei.Dims[n-1]
	if wei.Dims[n-2] != k || dst.Dims[n-2] != m || dst.Dims[n-1] != nn {
		return 0, native.InvalidArguments
	}
	for d := 0; d < n-2; d++ {
		s, w, o := src.Dims[d], wei.Dims[d], dst.Dims[d]
		if (s != o && s != 1) || (w != o && w != 1) {
			return 0, native.InvalidArguments
		}
	}
	slots := map[native.Arg]slot{
		native.ArgSrc:     {md: src},
		native.ArgWeights: {md: wei},
		native.ArgDst:     {md: dst},
	}
	if bias != nil {
		bias = bias.resolve()
		if !broadcastable(bias.Dims, dst.Dims) {
			return 0, native.InvalidArguments
		}
		slots[native.ArgBias] = slot{md: bias, optional: true}
	}
	pd := &primitiveDesc{op: "matmul", eng: e, prop: native.PropForwardInference, attr: a, slots: slots}
	pd.compile = func() kernel {
		return matmulKernel(src.Dims, wei.Dims, dst.Dims, bias)
	}
	return l.register(pd)
}

func matmulKernel(srcDims, weiDims, dstDims []int64, bias *layout) kernel {
	n := len(dstDims)
	m, k, nn := int(srcDims[n-2]), int(srcDims[n-1]), int(weiDims[n-1])
	batch := dstDims[:n-2]
	srcBatch := broadcastMap(batch, srcDims[:n-2])
	weiBatch := broadcastMap(batch, weiDims[:n-2])
	var biasMap []int
	if bias != nil {
		biasMap = broadcastMap(dstDims, bias.Dims)
	}
	return func(args map[native.Arg]tensor) error {
		src := args[native.ArgSrc].load()
		wei := args[native.ArgWeights].load()
		out := make([]float32, volume(dstDims))
		for b := range srcBatch {
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: m, Cols: k, Stride: k, Data: src[srcBatch[b]*m*k:][:m*k]},
				blas32.General{Rows: k, Cols: nn, Stride: nn, Data: wei[weiBatch[b]*k*nn:][:k*nn]},
				0,
				blas32.General{Rows: m, Cols: nn, Stride: nn, Data: out[b*m*nn:][:m*nn]})
		}
		if bt, ok := args[native.ArgBias]; ok {
			bv := bt.load()
			for i := range out {
				out[i] += bv[biasMap[i]]
			}
		}
		args[native.ArgDst].store(out)
		return nil
	}
}
