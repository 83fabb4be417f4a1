package ref

import (
	"math"

	"github.com/23skdu/longbow-dnnl/internal/native"
	"github.com/23skdu/longbow-dnnl/internal/simd"
)

// ReductionPrimitiveDescCreate reduces src over every dimension whose dst
// extent is one.
func (l *Library) ReductionPrimitiveDescCreate(eh native.Engine, alg native.AlgKind, srch, dsth native.MemoryDesc, p, eps float32, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if !alg.IsReduction() {
		return 0, native.InvalidArguments
	}
	mds, st := l.required(srch, dsth)
	if st != native.Success {
		return 0, st
	}
	src, dst := mds[0].resolve(), mds[1].resolve()
	if !broadcastable(dst.Dims, src.Dims) {
		return 0, native.InvalidArguments
	}
	if isNorm(alg) && p < 1 {
		return 0, native.InvalidArguments
	}
	pd := &primitiveDesc{
		op:     "reduction",
		eng:    e,
		prop:   native.PropForwardInference,
		alg:    alg,
		attr:   a,
		params: paramString(p, eps),
		slots: map[native.Arg]slot{
			native.ArgSrc: {md: src},
			native.ArgDst: {md: dst},
		},
	}
	pd.compile = func() kernel {
		dmap := broadcastMap(src.Dims, dst.Dims)
		nd := volume(dst.Dims)
		count := float64(volume(src.Dims) / nd)
		return func(args map[native.Arg]tensor) error {
			x := args[native.ArgSrc].load()
			if nd == 1 && (alg == native.ReductionSum || alg == native.ReductionMean) {
				out := []float32{float32(simd.Sum(x))}
				if alg == native.ReductionMean {
					simd.VecScale(out, float32(1/count))
				}
				args[native.ArgDst].store(out)
				return nil
			}
			acc := make([]float64, nd)
			init := reductionInit(alg)
			for i := range acc {
				acc[i] = init
			}
			pp := float64(p)
			for i, v := range x {
				j := dmap[i]
				f := float64(v)
				switch alg {
				case native.ReductionMax:
					acc[j] = math.Max(acc[j], f)
				case native.ReductionMin:
					acc[j] = math.Min(acc[j], f)
				case native.ReductionSum, native.ReductionMean:
					acc[j] += f
				case native.ReductionMul:
					acc[j] *= f
				default:
					acc[j] += math.Pow(math.Abs(f), pp)
				}
			}
			out := make([]float32, nd)
			epsv := float64(eps)
			for j, v := range acc {
				switch alg {
				case native.ReductionMean:
					v /= count
				case native.ReductionNormLpMax:
					v = math.Max(math.Pow(v, 1/pp), epsv)
				case native.ReductionNormLpSum:
					v = math.Pow(v+epsv, 1/pp)
				case native.ReductionNormLpPowerPMax:
					v = math.Max(v, epsv)
				case native.ReductionNormLpPowerPSum:
					v += epsv
				}
				out[j] = float32(v)
			}
			args[native.ArgDst].store(out)
			return nil
		}
	}
	return l.register(pd)
}

func isNorm(alg native.AlgKind) bool {
	return alg >= native.ReductionNormLpMax && alg <= native.ReductionNormLpPowerPSum
}

func reductionInit(alg native.AlgKind) float64 {
	switch alg {
	case native.ReductionMax:
		return math.Inf(-1)
	case native.ReductionMin:
		return math.Inf(1)
	case native.ReductionMul:
		return 1
	}
	return 0
}
