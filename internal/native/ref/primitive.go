package ref

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// slot is one execution argument of a plan.
type slot struct {
	md *layout
	// optional slots may be omitted or bound to memory without storage.
	optional bool
}

// kernel runs one primitive over the bound arguments. Optional arguments
// that were not supplied are absent from the map.
type kernel func(args map[native.Arg]tensor) error

type primitiveDesc struct {
	op     string
	eng    *engine
	prop   native.PropKind
	alg    native.AlgKind
	attr   attr
	params string
	slots  map[native.Arg]slot

	// compile builds the kernel. It must only capture plan state so the
	// program can be shared between identical plans.
	compile func() kernel

	// fwd is the forward plan a backward plan was hinted with.
	fwd *primitiveDesc

	handles map[native.Arg]native.MemoryDesc
}

type program struct {
	op  string
	run kernel
}

type primitive struct {
	pd   *primitiveDesc
	prog *program
}

func (pd *primitiveDesc) signature() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%d|%d|%s|%d|%t", pd.op, pd.prop, pd.alg, pd.params, pd.attr.accumulation, pd.attr.deterministic)
	args := make([]native.Arg, 0, len(pd.slots))
	for a := range pd.slots {
		args = append(args, a)
	}
	slices.Sort(args)
	for _, a := range args {
		s := pd.slots[a]
		fmt.Fprintf(&b, "|%d:%t:%d:%v:%v:%v:%v", a, s.optional, s.md.DataType, s.md.Dims, s.md.Padded, s.md.Strides, s.md.Blocks)
	}
	return b.String()
}

// register publishes a plan and a borrowed descriptor handle per slot.
func (l *Library) register(pd *primitiveDesc) (native.PrimitiveDesc, native.Status) {
	pd.handles = make(map[native.Arg]native.MemoryDesc, len(pd.slots))
	for a, s := range pd.slots {
		pd.handles[a] = native.MemoryDesc(l.put(borrowedLayout{s.md}))
	}
	h := l.put(pd)
	log.Debug().Str("op", pd.op).Int32("prop", int32(pd.prop)).Msg("ref primitive descriptor created")
	return native.PrimitiveDesc(h), native.Success
}

func (l *Library) PrimitiveDescQueryMD(h native.PrimitiveDesc, arg native.Arg) (native.MemoryDesc, native.Status) {
	pd, ok := lookup[*primitiveDesc](l, uintptr(h))
	if !ok {
		return 0, native.InvalidArguments
	}
	return pd.handles[arg], native.Success
}

func (l *Library) PrimitiveDescDestroy(h native.PrimitiveDesc) native.Status {
	return destroy(l, uintptr(h), func(pd *primitiveDesc) {
		for _, mh := range pd.handles {
			l.drop(uintptr(mh))
		}
	})
}

func (l *Library) PrimitiveCreate(h native.PrimitiveDesc) (native.Primitive, native.Status) {
	pd, ok := lookup[*primitiveDesc](l, uintptr(h))
	if !ok {
		return 0, native.InvalidArguments
	}
	sig := pd.signature()
	prog, hit := l.programs.Get(sig)
	if hit {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
		prog = &program{op: pd.op, run: pd.compile()}
		l.programs.Put(sig, prog)
	}
	return native.Primitive(l.put(&primitive{pd: pd, prog: prog})), native.Success
}

func (l *Library) PrimitiveDestroy(h native.Primitive) native.Status {
	return destroy[*primitive](l, uintptr(h), nil)
}

// PrimitiveExecute validates the bindings against the plan and submits the
// kernel to the stream. Validation failures are reported synchronously.
func (l *Library) PrimitiveExecute(ph native.Primitive, sh native.Stream, args []native.ExecArg) native.Status {
	p, ok := lookup[*primitive](l, uintptr(ph))
	if !ok {
		return native.InvalidArguments
	}
	s, ok := lookup[*stream](l, uintptr(sh))
	if !ok || s.eng != p.pd.eng {
		return native.InvalidArguments
	}
	bound := make(map[native.Arg]*memory, len(args))
	for _, a := range args {
		m, ok := lookup[*memory](l, uintptr(a.Memory))
		if !ok || m.eng != p.pd.eng {
			return native.InvalidArguments
		}
		bound[a.Arg] = m
	}
	views := make(map[native.Arg]tensor, len(p.pd.slots))
	for a, sl := range p.pd.slots {
		m, ok := bound[a]
		if !ok || m.data == nil {
			if sl.optional {
				continue
			}
			log.Debug().Str("op", p.pd.op).Int32("arg", int32(a)).Msg("required argument missing")
			return native.InvalidArguments
		}
		if !m.md.equal(sl.md) {
			log.Debug().Str("op", p.pd.op).Int32("arg", int32(a)).Msg("argument layout does not match plan")
			return native.InvalidArguments
		}
		views[a] = m.tensor()
	}
	prog := p.prog
	s.submit(func() error {
		start := time.Now()
		err := prog.run(views)
		kernelSeconds.WithLabelValues(prog.op).Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("%s: %w", prog.op, err)
		}
		return nil
	})
	return native.Success
}

// planContext resolves the engine and attribute shared by every constructor.
func (l *Library) planContext(eh native.Engine, ah native.Attr) (*engine, attr, native.Status) {
	e, ok := lookup[*engine](l, uintptr(eh))
	if !ok {
		return nil, attr{}, native.InvalidArguments
	}
	a, ok := l.attrOf(ah)
	if !ok {
		return nil, attr{}, native.InvalidArguments
	}
	return e, a, native.Success
}

// required resolves descriptor handles that must be non-null.
func (l *Library) required(hs ...native.MemoryDesc) ([]*layout, native.Status) {
	out := make([]*layout, len(hs))
	for i, h := range hs {
		md, ok := l.desc(h)
		if !ok {
			return nil, native.InvalidArguments
		}
		out[i] = md
	}
	return out, native.Success
}

// optionalDesc resolves a descriptor handle that may be null.
func (l *Library) optionalDesc(h native.MemoryDesc) (*layout, native.Status) {
	if h == 0 {
		return nil, native.Success
	}
	md, ok := l.desc(h)
	if !ok {
		return nil, native.InvalidArguments
	}
	return md, native.Success
}

// hint resolves the forward plan handed to a backward constructor.
func (l *Library) hint(h native.PrimitiveDesc, op string) (*primitiveDesc, native.Status) {
	pd, ok := lookup[*primitiveDesc](l, uintptr(h))
	if !ok || pd.op != op || !isForward(pd.prop) {
		return nil, native.InvalidArguments
	}
	return pd, native.Success
}

func isForward(p native.PropKind) bool {
	return p == native.PropForwardTraining || p == native.PropForwardInference
}

func sameDims(a, b *layout) bool { return slices.Equal(a.Dims, b.Dims) }

func paramString(vals ...float32) string { return fmt.Sprint(vals) }
