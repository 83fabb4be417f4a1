package main

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/23skdu/longbow-dnnl/dnnl"
	"github.com/23skdu/longbow-dnnl/internal/client"
)

var tracer = otel.Tracer("dnnl-server")

// Runner executes requests on one engine. Submissions are serialized on a
// single stream so each Wait covers exactly one request.
type Runner struct {
	eng    *dnnl.Engine
	mu     sync.Mutex
	stream *dnnl.Stream
}

func NewRunner(kind dnnl.EngineKind, index int, flags dnnl.StreamFlags) (*Runner, error) {
	eng, err := dnnl.NewEngine(kind, index)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s engine %d", kind, index)
	}
	s, err := dnnl.NewStreamWithFlags(eng, flags)
	if err != nil {
		eng.Close()
		return nil, errors.Wrap(err, "create stream")
	}
	return &Runner{eng: eng, stream: s}, nil
}

func (r *Runner) Engine() *dnnl.Engine { return r.eng }

func (r *Runner) Close() {
	r.stream.Close()
	r.eng.Close()
}

// Execute runs one forward-inference primitive and returns its destination
// as the single output tensor "dst".
func (r *Runner) Execute(ctx context.Context, req *ExecuteRequest) ([]client.Tensor, error) {
	_, span := tracer.Start(ctx, "Runner.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("operation", req.Operation), attribute.String("algorithm", req.Algorithm))

	op, ok := dnnl.ParseOperation(req.Operation)
	if !ok {
		return nil, errors.Wrapf(errBadRequest, "unknown operation %q", req.Operation)
	}
	prop, dir, err := parsePropagation(req.Propagation)
	if err != nil {
		return nil, err
	}
	if err := dnnl.CheckSupported(op, dir, prop); err != nil {
		return nil, err
	}
	if prop != dnnl.PropagationForwardInference {
		return nil, errors.Wrapf(errBadRequest, "%s is not served, only forward_inference", prop)
	}
	for _, t := range req.Inputs {
		if err := t.Validate(); err != nil {
			return nil, errors.Wrap(errBadRequest, err.Error())
		}
	}

	s := &session{eng: r.eng, req: req}
	defer s.close()
	if err := s.build(op); err != nil {
		span.RecordError(err)
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := s.run(r.stream); err != nil {
		span.RecordError(err)
		return nil, err
	}
	out, err := s.output()
	if err != nil {
		return nil, err
	}
	elementsProcessed.WithLabelValues(req.Operation).Add(float64(req.Weight()))
	log.Debug().Str("operation", req.Operation).Ints64("dims", out.Dims).Msg("executed request")
	return []client.Tensor{out}, nil
}

// session owns every object created for one request.
type session struct {
	eng     *dnnl.Engine
	req     *ExecuteRequest
	closers []func()

	run    func(*dnnl.Stream) error
	dst    *dnnl.Memory[float32]
	dstMD  *dnnl.MemoryDescriptor
	bound  []dnnl.ExecArg
	output func() (client.Tensor, error)
}

func (s *session) onClose(f func()) { s.closers = append(s.closers, f) }

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// input binds the named tensor. Missing optional inputs return nil.
func (s *session) input(name string, required bool) (*dnnl.MemoryDescriptor, *dnnl.Memory[float32], error) {
	t, ok := s.req.input(name)
	if !ok {
		if required {
			return nil, nil, errors.Wrapf(errBadRequest, "%s needs input %q", s.req.Operation, name)
		}
		return nil, nil, nil
	}
	md, err := dnnl.NewPlainDescriptor(t.Dims, dnnl.F32)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "input %q", name)
	}
	s.onClose(md.Close)
	buf, err := dnnl.NewAlignedBuffer(t.Data)
	if err != nil {
		return nil, nil, err
	}
	m, err := dnnl.NewMemoryWithUserBuffer(s.eng, md, buf)
	if err != nil {
		buf.Free()
		return nil, nil, errors.Wrapf(err, "input %q", name)
	}
	s.onClose(m.Close)
	return md, m, nil
}

// dimsOf reads the shape of a descriptor the session created.
func dimsOf(md *dnnl.MemoryDescriptor) ([]int64, error) {
	dims, err := md.Dims()
	if err != nil {
		return nil, errors.Wrap(err, "query dims")
	}
	return dims, nil
}

func (s *session) bind(arg dnnl.Arg, m *dnnl.Memory[float32]) {
	if m != nil {
		s.bound = append(s.bound, dnnl.ExecArg{Index: arg, Mem: m})
	}
}

// anyDst is the destination descriptor handed to the plan; the plan picks
// the concrete layout.
func (s *session) anyDst(dims []int64) (*dnnl.MemoryDescriptor, error) {
	md, err := dnnl.NewDescriptorAny(dims, dnnl.F32)
	if err != nil {
		return nil, errors.Wrap(err, "destination")
	}
	s.onClose(md.Close)
	return md, nil
}

func (s *session) algorithm(check func(dnnl.AlgKind) bool) (dnnl.AlgKind, error) {
	alg, ok := dnnl.ParseAlgorithm(s.req.Algorithm)
	if !ok || !check(alg) {
		return 0, errors.Wrapf(errBadRequest, "%s does not take algorithm %q", s.req.Operation, s.req.Algorithm)
	}
	return alg, nil
}

func (s *session) build(op dnnl.OperationKind) error {
	switch op {
	case dnnl.OpBinary:
		return s.binary()
	case dnnl.OpEltwise:
		return s.eltwise()
	case dnnl.OpMatMul:
		return s.matmul()
	case dnnl.OpInnerProduct:
		return s.innerProduct()
	case dnnl.OpReduction:
		return s.reduction()
	case dnnl.OpPRelu:
		return s.prelu()
	case dnnl.OpBatchNormalization:
		return s.batchNorm()
	}
	return errors.Wrapf(errBadRequest, "%s is not served", op)
}

func (s *session) binary() error {
	alg, err := s.algorithm(dnnl.AlgKind.IsBinary)
	if err != nil {
		return err
	}
	a, src0, err := s.input("src0", true)
	if err != nil {
		return err
	}
	b, src1, err := s.input("src1", true)
	if err != nil {
		return err
	}
	dims, err := dimsOf(a)
	if err != nil {
		return err
	}
	dst, err := s.anyDst(dims)
	if err != nil {
		return err
	}
	s.bind(dnnl.ArgSrc0, src0)
	s.bind(dnnl.ArgSrc1, src1)
	return plan[dnnl.Forward, dnnl.PropForwardInference](s, dnnl.BinaryConfig{Alg: alg, Src0: a, Src1: b, Dst: dst})
}

func (s *session) eltwise() error {
	alg, err := s.algorithm(dnnl.AlgKind.IsEltwise)
	if err != nil {
		return err
	}
	md, src, err := s.input("src", true)
	if err != nil {
		return err
	}
	dims, err := dimsOf(md)
	if err != nil {
		return err
	}
	dst, err := s.anyDst(dims)
	if err != nil {
		return err
	}
	s.bind(dnnl.ArgSrc, src)
	return plan[dnnl.Forward, dnnl.PropForwardInference](s, dnnl.EltwiseForwardConfig[dnnl.PropForwardInference]{
		Alg: alg, Src: md, Dst: dst, Alpha: s.req.Alpha, Beta: s.req.Beta,
	})
}

func (s *session) matmul() error {
	a, src, err := s.input("src", true)
	if err != nil {
		return err
	}
	b, wei, err := s.input("weights", true)
	if err != nil {
		return err
	}
	c, bias, err := s.input("bias", false)
	if err != nil {
		return err
	}
	sd, err := dimsOf(a)
	if err != nil {
		return err
	}
	wd, err := dimsOf(b)
	if err != nil {
		return err
	}
	if len(sd) < 2 || len(sd) != len(wd) {
		return errors.Wrapf(errBadRequest, "matmul src %v and weights %v", sd, wd)
	}
	n := len(sd)
	dims := make([]int64, n)
	for i := 0; i < n-2; i++ {
		dims[i] = max(sd[i], wd[i])
	}
	dims[n-2], dims[n-1] = sd[n-2], wd[n-1]
	dst, err := s.anyDst(dims)
	if err != nil {
		return err
	}
	s.bind(dnnl.ArgSrc, src)
	s.bind(dnnl.ArgWeights, wei)
	s.bind(dnnl.ArgBias, bias)
	return plan[dnnl.Forward, dnnl.PropForwardInference](s, dnnl.MatMulConfig[dnnl.PropForwardInference]{
		Src: a, Weights: b, Bias: c, Dst: dst,
	})
}

func (s *session) innerProduct() error {
	a, src, err := s.input("src", true)
	if err != nil {
		return err
	}
	b, wei, err := s.input("weights", true)
	if err != nil {
		return err
	}
	c, bias, err := s.input("bias", false)
	if err != nil {
		return err
	}
	sd, err := dimsOf(a)
	if err != nil {
		return err
	}
	wd, err := dimsOf(b)
	if err != nil {
		return err
	}
	if len(sd) < 2 || len(wd) != len(sd) {
		return errors.Wrapf(errBadRequest, "inner_product src %v and weights %v", sd, wd)
	}
	dst, err := s.anyDst([]int64{sd[0], wd[0]})
	if err != nil {
		return err
	}
	s.bind(dnnl.ArgSrc, src)
	s.bind(dnnl.ArgWeights, wei)
	s.bind(dnnl.ArgBias, bias)
	return plan[dnnl.Forward, dnnl.PropForwardInference](s, dnnl.InnerProductForwardConfig[dnnl.PropForwardInference]{
		Src: a, Weights: b, Bias: c, Dst: dst,
	})
}

func (s *session) reduction() error {
	alg, err := s.algorithm(dnnl.AlgKind.IsReduction)
	if err != nil {
		return err
	}
	md, src, err := s.input("src", true)
	if err != nil {
		return err
	}
	dims := s.req.OutputDims
	if len(dims) == 0 {
		// full reduction
		sdims, err := dimsOf(md)
		if err != nil {
			return err
		}
		dims = make([]int64, len(sdims))
		for i := range dims {
			dims[i] = 1
		}
	}
	dst, err := s.anyDst(dims)
	if err != nil {
		return err
	}
	s.bind(dnnl.ArgSrc, src)
	return plan[dnnl.Forward, dnnl.PropForwardInference](s, dnnl.ReductionConfig{
		Alg: alg, Src: md, Dst: dst, P: s.req.P, Eps: s.req.Epsilon,
	})
}

func (s *session) prelu() error {
	a, src, err := s.input("src", true)
	if err != nil {
		return err
	}
	b, wei, err := s.input("weights", true)
	if err != nil {
		return err
	}
	dims, err := dimsOf(a)
	if err != nil {
		return err
	}
	dst, err := s.anyDst(dims)
	if err != nil {
		return err
	}
	s.bind(dnnl.ArgSrc, src)
	s.bind(dnnl.ArgWeights, wei)
	return plan[dnnl.Forward, dnnl.PropForwardInference](s, dnnl.PReLUForwardConfig[dnnl.PropForwardInference]{
		Src: a, Weights: b, Dst: dst,
	})
}

func (s *session) batchNorm() error {
	md, src, err := s.input("src", true)
	if err != nil {
		return err
	}
	_, scale, err := s.input("scale", false)
	if err != nil {
		return err
	}
	_, shift, err := s.input("shift", false)
	if err != nil {
		return err
	}
	var flags dnnl.NormalizationFlags
	if scale != nil {
		flags |= dnnl.UseScale
	}
	if shift != nil {
		flags |= dnnl.UseShift
	}
	dims, err := dimsOf(md)
	if err != nil {
		return err
	}
	dst, err := s.anyDst(dims)
	if err != nil {
		return err
	}
	s.bind(dnnl.ArgSrc, src)
	s.bind(dnnl.ArgScale, scale)
	s.bind(dnnl.ArgShift, shift)
	return plan[dnnl.Forward, dnnl.PropForwardInference](s, dnnl.BatchNormForwardConfig[dnnl.PropForwardInference]{
		Src: md, Dst: dst, Epsilon: s.req.Epsilon, Flags: flags,
	})
}

// plan validates cfg, allocates the destination in the layout the plan
// chose and prepares the submission.
func plan[D dnnl.Direction, P dnnl.PropKind[D], C dnnl.Config[D, P]](s *session, cfg C) error {
	pd, err := dnnl.NewPrimitiveDescriptor[D, P](cfg, s.eng)
	if err != nil {
		return err
	}
	s.onClose(pd.Close)
	md, err := pd.QueryMemoryDescriptor(dnnl.ArgDst)
	if err != nil {
		return err
	}
	s.onClose(md.Close)
	dst, err := dnnl.NewMemoryWithLibraryBuffer[float32](s.eng, md)
	if err != nil {
		return err
	}
	s.onClose(dst.Close)
	p, err := dnnl.NewPrimitiveFromDescriptor(pd)
	if err != nil {
		return err
	}
	s.onClose(p.Close)

	s.dst, s.dstMD = dst, md
	s.bind(dnnl.ArgDst, dst)
	s.run = func(st *dnnl.Stream) error {
		if err := p.Execute(st, s.bound); err != nil {
			return err
		}
		return st.Wait()
	}
	s.output = func() (client.Tensor, error) {
		data, err := s.dst.ToSlice()
		if err != nil {
			return client.Tensor{}, err
		}
		dims, err := s.dstMD.Dims()
		if err != nil {
			return client.Tensor{}, err
		}
		return client.Tensor{Name: "dst", Dims: dims, Data: data}, nil
	}
	return nil
}
