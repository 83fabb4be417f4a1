package ref

import "github.com/23skdu/longbow-dnnl/internal/native"

func (l *Library) PReluForwardPrimitiveDescCreate(eh native.Engine, prop native.PropKind, srch, weightsh, dsth native.MemoryDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
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
	src, wei, dst := mds[0].resolve(), mds[1].resolve(), mds[2].resolve()
	if !broadcastable(wei.Dims, src.Dims) || !sameDims(src, dst) {
		return 0, native.InvalidArguments
	}
	pd := &primitiveDesc{
		op: "prelu", eng: e, prop: prop, attr: a,
		slots: map[native.Arg]slot{
			native.ArgSrc:     {md: src},
			native.ArgWeights: {md: wei},
			native.ArgDst:     {md: dst},
		},
	}
	pd.compile = func() kernel {
		wmap := broadcastMap(src.Dims, wei.Dims)
		return func(args map[native.Arg]tensor) error {
			x := args[native.ArgSrc].load()
			w := args[native.ArgWeights].load()
			for i, v := range x {
				if v <= 0 {
					x[i] = v * w[wmap[i]]
				}
			}
			args[native.ArgDst].store(x)
			return nil
		}
	}
	return l.register(pd)
}

func (l *Library) PReluBackwardPrimitiveDescCreate(eh native.Engine, srch, weightsh, diffSrch, diffWeightsh, diffDsth native.MemoryDesc, hinth native.PrimitiveDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	fwd, st := l.hint(hinth, "prelu")
	if st != native.Success {
		return 0, st
	}
	mds, st := l.required(srch, weightsh, diffSrch, diffWeightsh, diffDsth)
	if st != native.Success {
		return 0, st
	}
	src, wei := mds[0].resolve(), mds[1].resolve()
	diffSrc, diffWei, diffDst := mds[2].resolve(), mds[3].resolve(), mds[4].resolve()
	if !sameDims(src, fwd.slots[native.ArgSrc].md) || !sameDims(wei, fwd.slots[native.ArgWeights].md) ||
		!sameDims(diffSrc, src) || !sameDims(diffDst, src) || !sameDims(diffWei, wei) {
		return 0, native.InvalidShape
	}
	pd := &primitiveDesc{
		op: "prelu", eng: e, prop: native.PropBackward, attr: a, fwd: fwd,
		slots: map[native.Arg]slot{
			native.ArgSrc:         {md: src},
			native.ArgWeights:     {md: wei},
			native.ArgDiffDst:     {md: diffDst},
			native.ArgDiffSrc:     {md: diffSrc},
			native.ArgDiffWeights: {md: diffWei},
		},
	}
	pd.compile = func() kernel {
		wmap := broadcastMap(src.Dims, wei.Dims)
		nw := volume(wei.Dims)
		return func(args map[native.Arg]tensor) error {
			x := args[native.ArgSrc].load()
			w := args[native.ArgWeights].load()
			dd := args[native.ArgDiffDst].load()
			ds := make([]float32, len(x))
			dw := make([]float64, nw)
			for i, v := range x {
				if v > 0 {
					ds[i] = dd[i]
					continue
				}
				ds[i] = dd[i] * w[wmap[i]]
				dw[wmap[i]] += float64(dd[i]) * float64(v)
			}
			args[native.ArgDiffSrc].store(ds)
			args[native.ArgDiffWeights].store(toFloat32(dw))
			return nil
		}
	}
	return l.register(pd)
}
