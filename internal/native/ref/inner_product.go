package ref

import (
	"slices"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/23skdu/longbow-dnnl/internal/native"
	"github.com/23skdu/longbow-dnnl/internal/simd"
)

// ipShapes checks src [N, IC, ...], weights [OC, IC, ...], dst [N, OC] and
// returns N, OC and the flattened reduction length K.
func ipShapes(src, wei, dst *layout) (n, oc, k int, ok bool) {
	nd := src.ndims()
	if nd < 2 || nd > 5 || wei.ndims() != nd || dst.ndims() != 2 {
		return 0, 0, 0, false
	}
	if !slices.Equal(src.Dims[1:], wei.Dims[1:]) {
		return 0, 0, 0, false
	}
	if dst.Dims[0] != src.Dims[0] || dst.Dims[1] != wei.Dims[0] {
		return 0, 0, 0, false
	}
	return int(src.Dims[0]), int(wei.Dims[0]), int(volume(src.Dims[1:])), true
}

func biasShapeOK(bias *layout, oc int) bool {
	return bias.ndims() == 1 && bias.Dims[0] == int64(oc)
}

func (l *Library) InnerProductForwardPrimitiveDescCreate(eh native.Engine, prop native.PropKind, srch, weightsh, biash, dsth native.MemoryDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if !isForward(prop) {
		return 0, native.InvalidArguments
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
	n, oc, k, ok := ipShapes(src, wei, dst)
	if !ok {
		return 0, native.InvalidArguments
	}
	slots := map[native.Arg]slot{
		native.ArgSrc:     {md: src},
		native.ArgWeights: {md: wei},
		native.ArgDst:     {md: dst},
	}
	if bias != nil {
		bias = bias.resolve()
		if !biasShapeOK(bias, oc) {
			return 0, native.InvalidArguments
		}
		slots[native.ArgBias] = slot{md: bias, optional: true}
	}
	pd := &primitiveDesc{op: "inner_product", eng: e, prop: prop, attr: a, slots: slots}
	pd.compile = func() kernel {
		return func(args map[native.Arg]tensor) error {
			x := args[native.ArgSrc].load()
			w := args[native.ArgWeights].load()
			out := make([]float32, n*oc)
			if n == 1 {
				simd.MatVecMul(out, w, x, oc, k)
				if bt, ok := args[native.ArgBias]; ok {
					simd.VecAdd(out, out, bt.load())
				}
				args[native.ArgDst].store(out)
				return nil
			}
			if bt, ok := args[native.ArgBias]; ok {
				bv := bt.load()
				for i := 0; i < n; i++ {
					copy(out[i*oc:(i+1)*oc], bv)
				}
			}
			blas32.Gemm(blas.NoTrans, blas.Trans, 1,
				blas32.General{Rows: n, Cols: k, Stride: k, Data: x},
				blas32.General{Rows: oc, Cols: k, Stride: k, Data: w},
				1,
				blas32.General{Rows: n, Cols: oc, Stride: oc, Data: out})
			args[native.ArgDst].store(out)
			return nil
		}
	}
	return l.register(pd)
}

func (l *Library) InnerProductBackwardDataPrimitiveDescCreate(eh native.Engine, diffSrch, weightsh, diffDsth native.MemoryDesc, hinth native.PrimitiveDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	fwd, st := l.hint(hinth, "inner_product")
	if st != native.Success {
		return 0, st
	}
	mds, st := l.required(diffSrch, weightsh, diffDsth)
	if st != native.Success {
		return 0, st
	}
	diffSrc, wei, diffDst := mds[0].resolve(), mds[1].resolve(), mds[2].resolve()
	if !sameDims(diffSrc, fwd.slots[native.ArgSrc].md) ||
		!sameDims(wei, fwd.slots[native.ArgWeights].md) ||
		!sameDims(diffDst, fwd.slots[native.ArgDst].md) {
		return 0, native.InvalidShape
	}
	n, oc, k, ok := ipShapes(diffSrc, wei, diffDst)
	if !ok {
		return 0, native.InvalidArguments
	}
	pd := &primitiveDesc{
		op: "inner_product", eng: e, prop: native.PropBackwardData, attr: a, fwd: fwd,
		slots: map[native.Arg]slot{
			native.ArgDiffSrc: {md: diffSrc},
			native.ArgWeights: {md: wei},
			native.ArgDiffDst: {md: diffDst},
		},
	}
	pd.compile = func() kernel {
		return func(args map[native.Arg]tensor) error {
			dd := args[native.ArgDiffDst].load()
			w := args[native.ArgWeights].load()
			out := make([]float32, n*k)
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
				blas32.General{Rows: n, Cols: oc, Stride: oc, Data: dd},
				blas32.General{Rows: oc, Cols: k, Stride: k, Data: w},
				0,
				blas32.General{Rows: n, Cols: k, Stride: k, Data: out})
			args[native.ArgDiffSrc].store(out)
			return nil
		}
	}
	return l.register(pd)
}

func (l *Library) InnerProductBackwardWeightsPrimitiveDescCreate(eh native.Engine, srch, diffWeightsh, diffBiash, diffDsth native.MemoryDesc, hinth native.PrimitiveDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	fwd, st := l.hint(hinth, "inner_product")
	if st != native.Success {
		return 0, st
	}
	mds, st := l.required(srch, diffWeightsh, diffDsth)
	if st != native.Success {
		return 0, st
	}
	diffBias, st := l.optionalDesc(diffBiash)
	if st != native.Success {
		return 0, st
	}
	src, diffWei, diffDst := mds[0].resolve(), mds[1].resolve(), mds[2].resolve()
	if !sameDims(src, fwd.slots[native.ArgSrc].md) ||
		!sameDims(diffWei, fwd.slots[native.ArgWeights].md) ||
		!sameDims(diffDst, fwd.slots[native.ArgDst].md) {
		return 0, native.InvalidShape
	}
	n, oc, k, ok := ipShapes(src, diffWei, diffDst)
	if !ok {
		return 0, native.InvalidArguments
	}
	slots := map[native.Arg]slot{
		native.ArgSrc:         {md: src},
		native.ArgDiffWeights: {md: diffWei},
		native.ArgDiffDst:     {md: diffDst},
	}
	if diffBias != nil {
		diffBias = diffBias.resolve()
		if !biasShapeOK(diffBias, oc) {
			return 0, native.InvalidShape
		}
		slots[native.ArgDiffBias] = slot{md: diffBias, optional: true}
	}
	pd := &primitiveDesc{op: "inner_product", eng: e, prop: native.PropBackwardWeights, attr: a, fwd: fwd, slots: slots}
	pd.compile = func() kernel {
		return func(args map[native.Arg]tensor) error {
			x := args[native.ArgSrc].load()
			dd := args[native.ArgDiffDst].load()
			dw := make([]float32, oc*k)
			blas32.Gemm(blas.Trans, blas.NoTrans, 1,
				blas32.General{Rows: n, Cols: oc, Stride: oc, Data: dd},
				blas32.General{Rows: n, Cols: k, Stride: k, Data: x},
				0,
				blas32.General{Rows: oc, Cols: k, Stride: k, Data: dw})
			args[native.ArgDiffWeights].store(dw)
			if bt, ok := args[native.ArgDiffBias]; ok {
				db := make([]float32, oc)
				for i := 0; i < n; i++ {
					simd.VecAdd(db, db, dd[i*oc:(i+1)*oc])
				}
				bt.store(db)
			}
			return nil
		}
	}
	return l.register(pd)
}
