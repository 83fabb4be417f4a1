package ref

import (
	"fmt"
	"math"

	"github.com/23skdu/longbow-dnnl/internal/native"
	"github.com/23skdu/longbow-dnnl/internal/simd"
)

func (l *Library) BinaryPrimitiveDescCreate(eh native.Engine, alg native.AlgKind, src0h, src1h, dsth native.MemoryDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if !alg.IsBinary() {
		return 0, native.InvalidArguments
	}
	mds, st := l.required(src0h, src1h, dsth)
	if st != native.Success {
		return 0, st
	}
	src0, src1, dst := mds[0].resolve(), mds[1].resolve(), mds[2]
	if !broadcastable(src1.Dims, src0.Dims) || !sameDims(src0, dst) {
		return 0, native.InvalidArguments
	}
	if dst.Any {
		dst = plainLayout(dst.Dims, dst.DataType)
	}
	pd := &primitiveDesc{
		op:   "binary",
		eng:  e,
		prop: native.PropForwardInference,
		alg:  alg,
		attr: a,
		slots: map[native.Arg]slot{
			native.ArgSrc0: {md: src0},
			native.ArgSrc1: {md: src1},
			native.ArgDst:  {md: dst},
		},
	}
	pd.compile = func() kernel { return binaryKernel(alg, src0.Dims, src1.Dims) }
	return l.register(pd)
}

func binaryKernel(alg native.AlgKind, dims0, dims1 []int64) kernel {
	var bmap []int
	if !equalDims(dims0, dims1) {
		bmap = broadcastMap(dims0, dims1)
	}
	fn := binaryOp(alg)
	return func(args map[native.Arg]tensor) error {
		if fn == nil {
			return fmt.Errorf("unknown binary algorithm %v", alg)
		}
		a := args[native.ArgSrc0].load()
		b := args[native.ArgSrc1].load()
		out := make([]float32, len(a))
		switch {
		case bmap == nil && alg == native.BinaryAdd:
			simd.VecAdd(out, a, b)
		case bmap == nil && alg == native.BinaryMul:
			simd.VecMul(out, a, b)
		case bmap == nil:
			for i := range out {
				out[i] = fn(a[i], b[i])
			}
		default:
			for i := range out {
				out[i] = fn(a[i], b[bmap[i]])
			}
		}
		args[native.ArgDst].store(out)
		return nil
	}
}

func binaryOp(alg native.AlgKind) func(a, b float32) float32 {
	switch alg {
	case native.BinaryAdd:
		return func(a, b float32) float32 { return a + b }
	case native.BinaryMul:
		return func(a, b float32) float32 { return a * b }
	case native.BinaryMax:
		return func(a, b float32) float32 { return float32(math.Max(float64(a), float64(b))) }
	case native.BinaryMin:
		return func(a, b float32) float32 { return float32(math.Min(float64(a), float64(b))) }
	case native.BinaryDiv:
		return func(a, b float32) float32 { return a / b }
	case native.BinarySub:
		return func(a, b float32) float32 { return a - b }
	case native.BinaryGE:
		return func(a, b float32) float32 { return boolf(a >= b) }
	case native.BinaryGT:
		return func(a, b float32) float32 { return boolf(a > b) }
	case native.BinaryLE:
		return func(a, b float32) float32 { return boolf(a <= b) }
	case native.BinaryLT:
		return func(a, b float32) float32 { return boolf(a < b) }
	case native.BinaryEQ:
		return func(a, b float32) float32 { return boolf(a == b) }
	case native.BinaryNE:
		return func(a, b float32) float32 { return boolf(a != b) }
	}
	return nil
}

func boolf(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
