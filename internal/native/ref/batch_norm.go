package ref

import (
	"math"

	"github.com/23skdu/longbow-dnnl/internal/native"
	"github.com/23skdu/longbow-dnnl/internal/simd"
)

type bnShape struct {
	c, spatial int
	m          float64 // elements per channel
}

func newBNShape(src *layout) (bnShape, bool) {
	nd := src.ndims()
	if nd < 2 || nd > 5 {
		return bnShape{}, false
	}
	c := int(src.Dims[1])
	spatial := int(volume(src.Dims[2:]))
	return bnShape{c: c, spatial: spatial, m: float64(src.Dims[0]) * float64(spatial)}, true
}

func (s bnShape) channel(i int) int { return i / s.spatial % s.c }

// stats computes per-channel mean and biased variance.
func (s bnShape) stats(x []float32) (mean, variance []float32) {
	per := make([][]float32, s.c)
	for c := range per {
		per[c] = make([]float32, 0, int(s.m))
	}
	for i, v := range x {
		c := s.channel(i)
		per[c] = append(per[c], v)
	}
	mean = make([]float32, s.c)
	variance = make([]float32, s.c)
	for c, v := range per {
		mu, va := simd.MeanVar(v)
		mean[c], variance[c] = float32(mu), float32(va)
	}
	return mean, variance
}

func bnStatSlots(src *layout, flags native.NormalizationFlags, slots map[native.Arg]slot) {
	stat := plainLayout([]int64{src.Dims[1]}, native.F32)
	slots[native.ArgMean] = slot{md: stat}
	slots[native.ArgVariance] = slot{md: stat}
	if flags&native.NormUseScale != 0 {
		slots[native.ArgScale] = slot{md: stat}
	}
	if flags&native.NormUseShift != 0 {
		slots[native.ArgShift] = slot{md: stat}
	}
}

func (l *Library) BatchNormForwardPrimitiveDescCreate(eh native.Engine, prop native.PropKind, srch, dsth native.MemoryDesc, eps float32, flags native.NormalizationFlags, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if !isForward(prop) || eps < 0 {
		return 0, native.InvalidArguments
	}
	if flags&native.NormFuseNormAddRelu != 0 || (flags&native.NormFuseNormRelu != 0 && prop == native.PropForwardTraining) {
		return 0, native.Unimplemented
	}
	mds, st := l.required(srch, dsth)
	if st != native.Success {
		return 0, st
	}
	src, dst := mds[0].resolve(), mds[1].resolve()
	shape, ok := newBNShape(src)
	if !ok || !sameDims(src, dst) {
		return 0, native.InvalidArguments
	}
	slots := map[native.Arg]slot{
		native.ArgSrc: {md: src},
		native.ArgDst: {md: dst},
	}
	bnStatSlots(src, flags, slots)
	global := flags&native.NormUseGlobalStats != 0
	if !global && prop == native.PropForwardInference {
		delete(slots, native.ArgMean)
		delete(slots, native.ArgVariance)
	}
	pd := &primitiveDesc{
		op: "batch_normalization", eng: e, prop: prop, attr: a,
		params: paramString(eps, float32(flags)), slots: slots,
	}
	pd.compile = func() kernel {
		return func(args map[native.Arg]tensor) error {
			x := args[native.ArgSrc].load()
			var mean, variance []float32
			if global {
				mean = args[native.ArgMean].load()
				variance = args[native.ArgVariance].load()
			} else {
				mean, variance = shape.stats(x)
				if prop == native.PropForwardTraining {
					args[native.ArgMean].store(mean)
					args[native.ArgVariance].store(variance)
				}
			}
			scale, shift := bnAffine(args, shape.c)
			for i, v := range x {
				c := shape.channel(i)
				y := scale[c]*(v-mean[c])/float32(math.Sqrt(float64(variance[c])+float64(eps))) + shift[c]
				if flags&native.NormFuseNormRelu != 0 && y < 0 {
					y = 0
				}
				x[i] = y
			}
			args[native.ArgDst].store(x)
			return nil
		}
	}
	return l.register(pd)
}

// bnAffine returns the bound scale and shift, defaulting to 1 and 0.
func bnAffine(args map[native.Arg]tensor, c int) (scale, shift []float32) {
	if t, ok := args[native.ArgScale]; ok {
		scale = t.load()
	} else {
		scale = make([]float32, c)
		for i := range scale {
			scale[i] = 1
		}
	}
	if t, ok := args[native.ArgShift]; ok {
		shift = t.load()
	} else {
		shift = make([]float32, c)
	}
	return scale, shift
}

func (l *Library) BatchNormBackwardPrimitiveDescCreate(eh native.Engine, prop native.PropKind, diffSrch, diffDsth, srch native.MemoryDesc, eps float32, flags native.NormalizationFlags, hinth native.PrimitiveDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if prop != native.PropBackward && prop != native.PropBackwardData {
		return 0, native.InvalidArguments
	}
	if flags&(native.NormFuseNormRelu|native.NormFuseNormAddRelu) != 0 {
		return 0, native.Unimplemented
	}
	fwd, st := l.hint(hinth, "batch_normalization")
	if st != native.Success {
		return 0, st
	}
	mds, st := l.required(diffSrch, diffDsth, srch)
	if st != native.Success {
		return 0, st
	}
	diffSrc, diffDst, src := mds[0].resolve(), mds[1].resolve(), mds[2].resolve()
	if !sameDims(src, fwd.slots[native.ArgSrc].md) || !sameDims(diffSrc, src) || !sameDims(diffDst, src) {
		return 0, native.InvalidShape
	}
	shape, ok := newBNShape(src)
	if !ok {
		return 0, native.InvalidArguments
	}
	slots := map[native.Arg]slot{
		native.ArgSrc:     {md: src},
		native.ArgDiffDst: {md: diffDst},
		native.ArgDiffSrc: {md: diffSrc},
	}
	bnStatSlots(src, flags, slots)
	delete(slots, native.ArgShift)
	stat := slots[native.ArgMean].md
	if prop == native.PropBackward {
		if flags&native.NormUseScale != 0 {
			slots[native.ArgDiffScale] = slot{md: stat}
		}
		if flags&native.NormUseShift != 0 {
			slots[native.ArgDiffShift] = slot{md: stat}
		}
	}
	global := flags&native.NormUseGlobalStats != 0
	pd := &primitiveDesc{
		op: "batch_normalization", eng: e, prop: prop, attr: a, fwd: fwd,
		params: paramString(eps, float32(flags)), slots: slots,
	}
	pd.compile = func() kernel {
		return func(args map[native.Arg]tensor) error {
			x := args[native.ArgSrc].load()
			dd := args[native.ArgDiffDst].load()
			mean := args[native.ArgMean].load()
			variance := args[native.ArgVariance].load()
			scale, _ := bnAffine(args, shape.c)

			inv := make([]float64, shape.c)
			for c := range inv {
				inv[c] = 1 / math.Sqrt(float64(variance[c])+float64(eps))
			}
			dGamma := make([]float64, shape.c)
			dBeta := make([]float64, shape.c)
			for i, g := range dd {
				c := shape.channel(i)
				xhat := (float64(x[i]) - float64(mean[c])) * inv[c]
				dGamma[c] += float64(g) * xhat
				dBeta[c] += float64(g)
			}
			out := make([]float32, len(x))
			for i, g := range dd {
				c := shape.channel(i)
				k := float64(scale[c]) * inv[c]
				if global {
					out[i] = float32(k * float64(g))
					continue
				}
				xhat := (float64(x[i]) - float64(mean[c])) * inv[c]
				out[i] = float32(k * (float64(g) - dBeta[c]/shape.m - xhat*dGamma[c]/shape.m))
			}
			args[native.ArgDiffSrc].store(out)
			if t, ok := args[native.ArgDiffScale]; ok {
				t.store(toFloat32(dGamma))
			}
			if t, ok := args[native.ArgDiffShift]; ok {
				t.store(toFloat32(dBeta))
			}
			return nil
		}
	}
	return l.register(pd)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
