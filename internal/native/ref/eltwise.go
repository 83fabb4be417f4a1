package ref

import (
	"math"

	"github.com/23skdu/longbow-dnnl/internal/native"
	"github.com/23skdu/longbow-dnnl/internal/simd"
)

func (l *Library) EltwiseForwardPrimitiveDescCreate(eh native.Engine, prop native.PropKind, alg native.AlgKind, srch, dsth native.MemoryDesc, alpha, beta float32, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if !isForward(prop) || !alg.IsEltwise() {
		return 0, native.InvalidArguments
	}
	mds, st := l.required(srch, dsth)
	if st != native.Success {
		return 0, st
	}
	src, dst := mds[0].resolve(), mds[1]
	if !sameDims(src, dst) {
		return 0, native.InvalidArguments
	}
	if dst.Any {
		dst = src
	}
	pd := &primitiveDesc{
		op:     "eltwise",
		eng:    e,
		prop:   prop,
		alg:    alg,
		attr:   a,
		params: paramString(alpha, beta),
		slots: map[native.Arg]slot{
			native.ArgSrc: {md: src},
			native.ArgDst: {md: dst},
		},
	}
	pd.compile = func() kernel {
		f := eltwiseForward(alg)
		return func(args map[native.Arg]tensor) error {
			x := args[native.ArgSrc].load()
			if alg == native.EltwiseLinear {
				out := make([]float32, len(x))
				for i := range out {
					out[i] = beta
				}
				simd.VecAddScaled(out, x, alpha)
				args[native.ArgDst].store(out)
				return nil
			}
			for i, v := range x {
				x[i] = float32(f(float64(v), float64(alpha), float64(beta)))
			}
			args[native.ArgDst].store(x)
			return nil
		}
	}
	return l.register(pd)
}

func (l *Library) EltwiseBackwardPrimitiveDescCreate(eh native.Engine, alg native.AlgKind, diffSrch, diffDsth, datah native.MemoryDesc, alpha, beta float32, hinth native.PrimitiveDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if !alg.IsEltwise() {
		return 0, native.InvalidArguments
	}
	fwd, st := l.hint(hinth, "eltwise")
	if st != native.Success {
		return 0, st
	}
	if fwd.alg != alg {
		return 0, native.InvalidArguments
	}
	mds, st := l.required(diffSrch, diffDsth, datah)
	if st != native.Success {
		return 0, st
	}
	diffSrc, diffDst, data := mds[0].resolve(), mds[1].resolve(), mds[2].resolve()
	if !sameDims(diffSrc, diffDst) || !sameDims(diffSrc, data) || !sameDims(diffSrc, fwd.slots[native.ArgSrc].md) {
		return 0, native.InvalidShape
	}
	df := eltwiseBackward(alg)
	if df == nil {
		return 0, native.Unimplemented
	}
	dataArg := native.ArgSrc
	if alg.UsesDstForBackward() {
		dataArg = native.ArgDst
	}
	pd := &primitiveDesc{
		op:     "eltwise",
		eng:    e,
		prop:   native.PropBackwardData,
		alg:    alg,
		attr:   a,
		params: paramString(alpha, beta),
		fwd:    fwd,
		slots: map[native.Arg]slot{
			dataArg:           {md: data},
			native.ArgDiffDst: {md: diffDst},
			native.ArgDiffSrc: {md: diffSrc},
		},
	}
	pd.compile = func() kernel {
		return func(args map[native.Arg]tensor) error {
			s := args[dataArg].load()
			dd := args[native.ArgDiffDst].load()
			if alg == native.EltwiseLinear {
				simd.VecScale(dd, alpha)
				args[native.ArgDiffSrc].store(dd)
				return nil
			}
			for i := range dd {
				dd[i] = float32(float64(dd[i]) * df(float64(s[i]), float64(alpha), float64(beta)))
			}
			args[native.ArgDiffSrc].store(dd)
			return nil
		}
	}
	return l.register(pd)
}

type unary func(x, alpha, beta float64) float64

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func softplus(x float64) float64 {
	if x > 20 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

const sqrt2OverPi = 0.7978845608028654

func eltwiseForward(alg native.AlgKind) unary {
	switch alg {
	case native.EltwiseRelu, native.EltwiseReluUseDstForBwd:
		return func(x, a, _ float64) float64 {
			if x > 0 {
				return x
			}
			return a * x
		}
	case native.EltwiseTanh, native.EltwiseTanhUseDstForBwd:
		return func(x, _, _ float64) float64 { return math.Tanh(x) }
	case native.EltwiseElu, native.EltwiseEluUseDstForBwd:
		return func(x, a, _ float64) float64 {
			if x > 0 {
				return x
			}
			return a * math.Expm1(x)
		}
	case native.EltwiseSquare:
		return func(x, _, _ float64) float64 { return x * x }
	case native.EltwiseAbs:
		return func(x, _, _ float64) float64 { return math.Abs(x) }
	case native.EltwiseSqrt, native.EltwiseSqrtUseDstForBwd:
		return func(x, _, _ float64) float64 { return math.Sqrt(x) }
	case native.EltwiseLinear:
		return func(x, a, b float64) float64 { return a*x + b }
	case native.EltwiseSoftRelu:
		return func(x, a, _ float64) float64 {
			if a == 0 {
				a = 1
			}
			return softplus(a*x) / a
		}
	case native.EltwiseHardSigmoid:
		return func(x, a, b float64) float64 { return math.Max(0, math.Min(1, a*x+b)) }
	case native.EltwiseLogistic, native.EltwiseLogisticUseDstForBwd:
		return func(x, _, _ float64) float64 { return logistic(x) }
	case native.EltwiseExp, native.EltwiseExpUseDstForBwd:
		return func(x, _, _ float64) float64 { return math.Exp(x) }
	case native.EltwiseGeluTanh:
		return func(x, _, _ float64) float64 {
			return 0.5 * x * (1 + math.Tanh(sqrt2OverPi*(x+0.044715*x*x*x)))
		}
	case native.EltwiseGeluErf:
		return func(x, _, _ float64) float64 { return 0.5 * x * (1 + math.Erf(x/math.Sqrt2)) }
	case native.EltwiseSwish:
		return func(x, a, _ float64) float64 { return x * logistic(a*x) }
	case native.EltwiseLog:
		return func(x, _, _ float64) float64 { return math.Log(x) }
	case native.EltwiseClip, native.EltwiseClipV2, native.EltwiseClipV2UseDstForBwd:
		return func(x, a, b float64) float64 { return math.Min(b, math.Max(a, x)) }
	case native.EltwisePow:
		return func(x, a, b float64) float64 { return a * math.Pow(x, b) }
	case native.EltwiseRound:
		return func(x, _, _ float64) float64 { return math.RoundToEven(x) }
	case native.EltwiseMish:
		return func(x, _, _ float64) float64 { return x * math.Tanh(softplus(x)) }
	case native.EltwiseHardSwish:
		return func(x, a, b float64) float64 { return x * math.Max(0, math.Min(1, a*x+b)) }
	}
	return nil
}

// eltwiseBackward returns d(dst)/d(src) evaluated at s, where s is the
// forward source, or the forward destination for use-dst algorithms.
// Algorithms without a gradient return nil.
func eltwiseBackward(alg native.AlgKind) unary {
	switch alg {
	case native.EltwiseRelu, native.EltwiseReluUseDstForBwd:
		return func(s, a, _ float64) float64 {
			if s > 0 {
				return 1
			}
			return a
		}
	case native.EltwiseTanh:
		return func(x, _, _ float64) float64 {
			t := math.Tanh(x)
			return 1 - t*t
		}
	case native.EltwiseTanhUseDstForBwd:
		return func(y, _, _ float64) float64 { return 1 - y*y }
	case native.EltwiseElu:
		return func(x, a, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return a * math.Exp(x)
		}
	case native.EltwiseEluUseDstForBwd:
		return func(y, a, _ float64) float64 {
			if y > 0 {
				return 1
			}
			return y + a
		}
	case native.EltwiseSquare:
		return func(x, _, _ float64) float64 { return 2 * x }
	case native.EltwiseAbs:
		return func(x, _, _ float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return 0
		}
	case native.EltwiseSqrt:
		return func(x, _, _ float64) float64 { return 0.5 / math.Sqrt(x) }
	case native.EltwiseSqrtUseDstForBwd:
		return func(y, _, _ float64) float64 { return 0.5 / y }
	case native.EltwiseLinear:
		return func(_, a, _ float64) float64 { return a }
	case native.EltwiseSoftRelu:
		return func(x, a, _ float64) float64 {
			if a == 0 {
				a = 1
			}
			return logistic(a * x)
		}
	case native.EltwiseHardSigmoid:
		return func(x, a, b float64) float64 {
			if v := a*x + b; v > 0 && v < 1 {
				return a
			}
			return 0
		}
	case native.EltwiseLogistic:
		return func(x, _, _ float64) float64 {
			s := logistic(x)
			return s * (1 - s)
		}
	case native.EltwiseLogisticUseDstForBwd:
		return func(y, _, _ float64) float64 { return y * (1 - y) }
	case native.EltwiseExp:
		return func(x, _, _ float64) float64 { return math.Exp(x) }
	case native.EltwiseExpUseDstForBwd:
		return func(y, _, _ float64) float64 { return y }
	case native.EltwiseGeluTanh:
		return func(x, _, _ float64) float64 {
			u := sqrt2OverPi * (x + 0.044715*x*x*x)
			t := math.Tanh(u)
			du := sqrt2OverPi * (1 + 3*0.044715*x*x)
			return 0.5*(1+t) + 0.5*x*(1-t*t)*du
		}
	case native.EltwiseGeluErf:
		return func(x, _, _ float64) float64 {
			pdf := math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
			return 0.5*(1+math.Erf(x/math.Sqrt2)) + x*pdf
		}
	case native.EltwiseSwish:
		return func(x, a, _ float64) float64 {
			s := logistic(a * x)
			return s + a*x*s*(1-s)
		}
	case native.EltwiseLog:
		return func(x, _, _ float64) float64 { return 1 / x }
	case native.EltwiseClip:
		return func(x, a, b float64) float64 { return float64(boolf(x > a && x <= b)) }
	case native.EltwiseClipV2, native.EltwiseClipV2UseDstForBwd:
		return func(s, a, b float64) float64 { return float64(boolf(s > a && s < b)) }
	case native.EltwisePow:
		return func(x, a, b float64) float64 {
			if b == 0 {
				return 0
			}
			return a * b * math.Pow(x, b-1)
		}
	case native.EltwiseMish:
		return func(x, _, _ float64) float64 {
			sp := softplus(x)
			t := math.Tanh(sp)
			return t + x*(1-t*t)*logistic(x)
		}
	case native.EltwiseHardSwish:
		return func(x, a, b float64) float64 {
			v := a*x + b
			switch {
			case v <= 0:
				return 0
			case v >= 1:
				return 1
			}
			return 2*a*x + b
		}
	}
	return nil
}
