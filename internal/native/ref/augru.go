package ref

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// AuGRU gate order in weights and bias is update, reset, output.
const augruGates = 3

type rnnLayouts struct {
	srcLayer, srcIter, attention, weiLayer, weiIter, bias, dstLayer, dstIter *layout
}

func (l *Library) rnnLayouts(r native.RNNDescs) (rnnLayouts, native.Status) {
	req, st := l.required(r.SrcLayer, r.Attention, r.WeightsLayer, r.WeightsIter, r.DstLayer)
	if st != native.Success {
		return rnnLayouts{}, st
	}
	out := rnnLayouts{
		srcLayer:  req[0].resolve(),
		attention: req[1].resolve(),
		weiLayer:  req[2].resolve(),
		weiIter:   req[3].resolve(),
		dstLayer:  req[4].resolve(),
	}
	for _, o := range []struct {
		h   native.MemoryDesc
		dst **layout
	}{{r.SrcIter, &out.srcIter}, {r.Bias, &out.bias}, {r.DstIter, &out.dstIter}} {
		md, st := l.optionalDesc(o.h)
		if st != native.Success {
			return rnnLayouts{}, st
		}
		if md != nil {
			*o.dst = md.resolve()
		}
	}
	return out, native.Success
}

type augruDims struct {
	t, n, slc, dhc int
}

// dims validates tnc / ldnc / ldigo / ldgo shapes for a single-layer,
// single-direction cell.
func (r rnnLayouts) dims() (augruDims, native.Status) {
	if r.srcLayer.ndims() != 3 || r.attention.ndims() != 3 || r.dstLayer.ndims() != 3 ||
		r.weiLayer.ndims() != 5 || r.weiIter.ndims() != 5 {
		return augruDims{}, native.InvalidArguments
	}
	if r.weiLayer.Dims[0] != 1 || r.weiLayer.Dims[1] != 1 || r.weiIter.Dims[0] != 1 || r.weiIter.Dims[1] != 1 {
		return augruDims{}, native.Unimplemented
	}
	d := augruDims{
		t:   int(r.srcLayer.Dims[0]),
		n:   int(r.srcLayer.Dims[1]),
		slc: int(r.srcLayer.Dims[2]),
		dhc: int(r.weiLayer.Dims[4]),
	}
	t, n, slc, dhc := int64(d.t), int64(d.n), int64(d.slc), int64(d.dhc)
	ok := equalDims(r.attention.Dims, []int64{t, n, 1}) &&
		equalDims(r.weiLayer.Dims, []int64{1, 1, slc, augruGates, dhc}) &&
		equalDims(r.weiIter.Dims, []int64{1, 1, dhc, augruGates, dhc}) &&
		equalDims(r.dstLayer.Dims, []int64{t, n, dhc})
	if r.bias != nil {
		ok = ok && equalDims(r.bias.Dims, []int64{1, 1, augruGates, dhc})
	}
	for _, it := range []*layout{r.srcIter, r.dstIter} {
		if it != nil {
			ok = ok && equalDims(it.Dims, []int64{1, 1, n, dhc})
		}
	}
	if !ok {
		return augruDims{}, native.InvalidArguments
	}
	return d, native.Success
}

func (r rnnLayouts) sameShape(o rnnLayouts) bool {
	pairs := [][2]*layout{
		{r.srcLayer, o.srcLayer}, {r.srcIter, o.srcIter}, {r.attention, o.attention},
		{r.weiLayer, o.weiLayer}, {r.weiIter, o.weiIter}, {r.bias, o.bias},
		{r.dstLayer, o.dstLayer}, {r.dstIter, o.dstIter},
	}
	for _, p := range pairs {
		if (p[0] == nil) != (p[1] == nil) {
			return false
		}
		if p[0] != nil && !sameDims(p[0], p[1]) {
			return false
		}
	}
	return true
}

func (r rnnLayouts) slots(diff bool) map[native.Arg]slot {
	args := []native.Arg{
		native.ArgSrcLayer, native.ArgSrcIter, native.ArgAugruAttn, native.ArgWtsLayer,
		native.ArgWtsIter, native.ArgBias, native.ArgDstLayer, native.ArgDstIter,
	}
	if diff {
		args = []native.Arg{
			native.ArgDiffSrcLayer, native.ArgDiffSrcIter, native.ArgDiffAugruAttn, native.ArgDiffWtsLayer,
			native.ArgDiffWtsIter, native.ArgDiffBias, native.ArgDiffDstLayer, native.ArgDiffDstIter,
		}
	}
	mds := []*layout{r.srcLayer, r.srcIter, r.attention, r.weiLayer, r.weiIter, r.bias, r.dstLayer, r.dstIter}
	out := make(map[native.Arg]slot, len(args))
	for i, a := range args {
		if mds[i] == nil {
			continue
		}
		// iteration states and bias default to zero when absent
		opt := i == 1 || i == 5 || i == 7
		out[a] = slot{md: mds[i], optional: opt}
	}
	return out
}

func checkRNN(dir native.RNNDirection, flags native.RNNFlags) native.Status {
	switch {
	case dir < native.RNNUnidirectionalLeft2Right || dir > native.RNNBidirectionalSum:
		return native.InvalidArguments
	case dir != native.RNNUnidirectionalLeft2Right || flags != native.RNNFlagsUndef:
		return native.Unimplemented
	}
	return native.Success
}

func (l *Library) AugruForwardPrimitiveDescCreate(eh native.Engine, prop native.PropKind, dir native.RNNDirection, r native.RNNDescs, flags native.RNNFlags, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if !isForward(prop) {
		return 0, native.InvalidArguments
	}
	if st := checkRNN(dir, flags); st != native.Success {
		return 0, st
	}
	rl, st := l.rnnLayouts(r)
	if st != native.Success {
		return 0, st
	}
	d, st := rl.dims()
	if st != native.Success {
		return 0, st
	}
	pd := &primitiveDesc{op: "augru", eng: e, prop: prop, attr: a, slots: rl.slots(false)}
	pd.compile = func() kernel {
		return func(args map[native.Arg]tensor) error {
			in := loadAugruInputs(args, d)
			dst, hLast, _ := d.forward(in, false)
			args[native.ArgDstLayer].store(dst)
			if t, ok := args[native.ArgDstIter]; ok {
				t.store(hLast)
			}
			return nil
		}
	}
	return l.register(pd)
}

func (l *Library) AugruBackwardPrimitiveDescCreate(eh native.Engine, prop native.PropKind, dir native.RNNDirection, r, diff native.RNNDescs, flags native.RNNFlags, hinth native.PrimitiveDesc, ah native.Attr) (native.PrimitiveDesc, native.Status) {
	e, a, st := l.planContext(eh, ah)
	if st != native.Success {
		return 0, st
	}
	if prop != native.PropBackward {
		return 0, native.InvalidArguments
	}
	if st := checkRNN(dir, flags); st != native.Success {
		return 0, st
	}
	fwd, st := l.hint(hinth, "augru")
	if st != native.Success {
		return 0, st
	}
	rl, st := l.rnnLayouts(r)
	if st != native.Success {
		return 0, st
	}
	dl, st := l.rnnLayouts(diff)
	if st != native.Success {
		return 0, st
	}
	d, st := rl.dims()
	if st != native.Success {
		return 0, st
	}
	fl := rnnLayouts{
		srcLayer:  fwd.slots[native.ArgSrcLayer].md,
		attention: fwd.slots[native.ArgAugruAttn].md,
		weiLayer:  fwd.slots[native.ArgWtsLayer].md,
		weiIter:   fwd.slots[native.ArgWtsIter].md,
		dstLayer:  fwd.slots[native.ArgDstLayer].md,
	}
	if !sameDims(rl.srcLayer, fl.srcLayer) || !sameDims(rl.attention, fl.attention) ||
		!sameDims(rl.weiLayer, fl.weiLayer) || !sameDims(rl.weiIter, fl.weiIter) ||
		!sameDims(rl.dstLayer, fl.dstLayer) || !rl.sameShape(dl) {
		return 0, native.InvalidShape
	}
	slots := rl.slots(false)
	for k, v := range dl.slots(true) {
		slots[k] = v
	}
	pd := &primitiveDesc{op: "augru", eng: e, prop: prop, attr: a, fwd: fwd, slots: slots}
	pd.compile = func() kernel {
		return func(args map[native.Arg]tensor) error {
			d.backward(args)
			return nil
		}
	}
	return l.register(pd)
}

type augruInputs struct {
	x, h0, att, wl, wi, bias []float32
}

func loadOrZero(args map[native.Arg]tensor, a native.Arg, n int) []float32 {
	if t, ok := args[a]; ok {
		return t.load()
	}
	return make([]float32, n)
}

func loadAugruInputs(args map[native.Arg]tensor, d augruDims) augruInputs {
	return augruInputs{
		x:    args[native.ArgSrcLayer].load(),
		h0:   loadOrZero(args, native.ArgSrcIter, d.n*d.dhc),
		att:  args[native.ArgAugruAttn].load(),
		wl:   args[native.ArgWtsLayer].load(),
		wi:   args[native.ArgWtsIter].load(),
		bias: loadOrZero(args, native.ArgBias, augruGates*d.dhc),
	}
}

func mat(rows, cols, stride int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: stride, Data: data}
}

func sigmoid32(x float32) float32 { return float32(logistic(float64(x))) }

// augruStep keeps the activations of one time step for the backward pass.
type augruStep struct {
	hPrev, u, r, o, ut []float32
}

// forward runs the cell over all time steps:
//
//	u = σ(Wu·x + Uu·h + bu), r = σ(Wr·x + Ur·h + br)
//	o = tanh(Wo·x + Uo·(r⊙h) + bo)
//	ũ = (1-a)·u, h' = ũ⊙h + (1-ũ)⊙o
func (d augruDims) forward(in augruInputs, trace bool) (dst, hLast []float32, steps []augruStep) {
	g := augruGates * d.dhc
	nh := d.n * d.dhc
	xw := make([]float32, d.t*d.n*g)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		mat(d.t*d.n, d.slc, d.slc, in.x), mat(d.slc, g, g, in.wl), 0, mat(d.t*d.n, g, g, xw))

	h := append([]float32(nil), in.h0...)
	dst = make([]float32, d.t*nh)
	hu := make([]float32, d.n*g)
	for t := 0; t < d.t; t++ {
		st := augruStep{
			hPrev: append([]float32(nil), h...),
			u:     make([]float32, nh),
			r:     make([]float32, nh),
			o:     make([]float32, nh),
			ut:    make([]float32, nh),
		}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, mat(d.n, d.dhc, d.dhc, h), mat(d.dhc, g, g, in.wi), 0, mat(d.n, g, g, hu))
		rh := make([]float32, nh)
		for n := 0; n < d.n; n++ {
			base := (t*d.n + n) * g
			for o := 0; o < d.dhc; o++ {
				i := n*d.dhc + o
				st.u[i] = sigmoid32(xw[base+o] + hu[n*g+o] + in.bias[o])
				st.r[i] = sigmoid32(xw[base+d.dhc+o] + hu[n*g+d.dhc+o] + in.bias[d.dhc+o])
				rh[i] = st.r[i] * h[i]
			}
		}
		ro := make([]float32, nh)
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, mat(d.n, d.dhc, d.dhc, rh), mat(d.dhc, d.dhc, g, in.wi[2*d.dhc:]), 0, mat(d.n, d.dhc, d.dhc, ro))
		for n := 0; n < d.n; n++ {
			base := (t*d.n + n) * g
			a := in.att[t*d.n+n]
			for o := 0; o < d.dhc; o++ {
				i := n*d.dhc + o
				st.o[i] = float32(math.Tanh(float64(xw[base+2*d.dhc+o] + ro[i] + in.bias[2*d.dhc+o])))
				st.ut[i] = (1 - a) * st.u[i]
				h[i] = st.ut[i]*h[i] + (1-st.ut[i])*st.o[i]
			}
		}
		copy(dst[t*nh:], h)
		if trace {
			steps = append(steps, st)
		}
	}
	return dst, h, steps
}

// backward recomputes the forward activations and back-propagates through
// time. Weight and bias gradients accumulate into the bound diff memories.
func (d augruDims) backward(args map[native.Arg]tensor) {
	in := loadAugruInputs(args, d)
	_, _, steps := d.forward(in, true)

	g := augruGates * d.dhc
	nh := d.n * d.dhc
	ddl := args[native.ArgDiffDstLayer].load()
	dh := loadOrZero(args, native.ArgDiffDstIter, nh)
	dx := make([]float32, d.t*d.n*d.slc)
	da := make([]float32, d.t*d.n)
	dwl := args[native.ArgDiffWtsLayer].load()
	dwi := args[native.ArgDiffWtsIter].load()
	db := loadOrZero(args, native.ArgDiffBias, g)

	G := make([]float32, d.n*g)
	drh := make([]float32, nh)
	for t := d.t - 1; t >= 0; t-- {
		st := steps[t]
		for i := range dh {
			dh[i] += ddl[t*nh+i]
		}
		dhPrev := make([]float32, nh)
		for n := 0; n < d.n; n++ {
			a := in.att[t*d.n+n]
			for o := 0; o < d.dhc; o++ {
				i := n*d.dhc + o
				dut := dh[i] * (st.hPrev[i] - st.o[i])
				dhPrev[i] = dh[i] * st.ut[i]
				do := dh[i] * (1 - st.ut[i])
				da[t*d.n+n] -= dut * st.u[i]
				G[n*g+o] = dut * (1 - a) * st.u[i] * (1 - st.u[i])
				G[n*g+2*d.dhc+o] = do * (1 - st.o[i]*st.o[i])
			}
		}
		gO := G[2*d.dhc:]
		// d(r⊙h) = Go·Uoᵀ
		blas32.Gemm(blas.NoTrans, blas.Trans, 1, mat(d.n, d.dhc, g, gO), mat(d.dhc, d.dhc, g, in.wi[2*d.dhc:]), 0, mat(d.n, d.dhc, d.dhc, drh))
		rh := make([]float32, nh)
		for n := 0; n < d.n; n++ {
			for o := 0; o < d.dhc; o++ {
				i := n*d.dhc + o
				r := st.r[i]
				G[n*g+d.dhc+o] = drh[i] * st.hPrev[i] * r * (1 - r)
				dhPrev[i] += drh[i] * r
				rh[i] = r * st.hPrev[i]
			}
		}
		// dh_prev += G_ur·U_urᵀ
		blas32.Gemm(blas.NoTrans, blas.Trans, 1, mat(d.n, 2*d.dhc, g, G), mat(d.dhc, 2*d.dhc, g, in.wi), 1, mat(d.n, d.dhc, d.dhc, dhPrev))
		// dU_ur += h_prevᵀ·G_ur, dU_o += (r⊙h_prev)ᵀ·G_o
		blas32.Gemm(blas.Trans, blas.NoTrans, 1, mat(d.n, d.dhc, d.dhc, st.hPrev), mat(d.n, 2*d.dhc, g, G), 1, mat(d.dhc, 2*d.dhc, g, dwi))
		blas32.Gemm(blas.Trans, blas.NoTrans, 1, mat(d.n, d.dhc, d.dhc, rh), mat(d.n, d.dhc, g, gO), 1, mat(d.dhc, d.dhc, g, dwi[2*d.dhc:]))

		xt := in.x[t*d.n*d.slc : (t+1)*d.n*d.slc]
		// dW += xᵀ·G, dx = G·Wᵀ
		blas32.Gemm(blas.Trans, blas.NoTrans, 1, mat(d.n, d.slc, d.slc, xt), mat(d.n, g, g, G), 1, mat(d.slc, g, g, dwl))
		blas32.Gemm(blas.NoTrans, blas.Trans, 1, mat(d.n, g, g, G), mat(d.slc, g, g, in.wl), 0, mat(d.n, d.slc, d.slc, dx[t*d.n*d.slc:]))
		for n := 0; n < d.n; n++ {
			for j := 0; j < g; j++ {
				db[j] += G[n*g+j]
			}
		}
		dh = dhPrev
	}

	args[native.ArgDiffSrcLayer].store(dx)
	args[native.ArgDiffAugruAttn].store(da)
	args[native.ArgDiffWtsLayer].store(dwl)
	args[native.ArgDiffWtsIter].store(dwi)
	if t, ok := args[native.ArgDiffBias]; ok {
		t.store(db)
	}
	if t, ok := args[native.ArgDiffSrcIter]; ok {
		t.store(dh)
	}
}
