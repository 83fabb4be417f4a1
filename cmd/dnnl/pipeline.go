package main

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/23skdu/longbow-dnnl/dnnl"
	"github.com/23skdu/longbow-dnnl/internal/client"
)

// smokeRequests exercise the served operations end to end.
func smokeRequests() []*ExecuteRequest {
	return []*ExecuteRequest{
		{
			Operation: "binary", Algorithm: "binary_add",
			Inputs: []client.Tensor{
				{Name: "src0", Dims: []int64{3}, Data: []float32{4, 5, 6}},
				{Name: "src1", Dims: []int64{3}, Data: []float32{1, 2, 3}},
			},
		},
		{
			Operation: "matmul",
			Inputs: []client.Tensor{
				{Name: "src", Dims: []int64{2, 3}, Data: []float32{1, 2, 3, 4, 5, 6}},
				{Name: "weights", Dims: []int64{3, 2}, Data: []float32{7, 8, 9, 10, 11, 12}},
			},
		},
		{
			Operation: "reduction", Algorithm: "reduction_sum",
			Inputs: []client.Tensor{{Name: "src", Dims: []int64{3}, Data: []float32{1, 2, 3}}},
		},
	}
}

// runSmoke runs the smoke requests plus a relu training step. Outputs are
// named after the request that produced them.
func runSmoke(ctx context.Context, r *Runner) ([]client.Tensor, error) {
	var out []client.Tensor
	for _, req := range smokeRequests() {
		res, err := r.Execute(ctx, req)
		if err != nil {
			return nil, errors.Wrap(err, req.Operation)
		}
		res[0].Name = req.Operation
		out = append(out, res[0])
	}
	relu, err := r.reluTrainingStep([]float32{-2, -1, 0, 1, 2, 3})
	if err != nil {
		return nil, errors.Wrap(err, "relu training step")
	}
	return append(out, relu...), nil
}

// reluTrainingStep runs relu forward in training mode, then the backward
// pass hinted by the forward plan with a gradient of ones.
func (r *Runner) reluTrainingStep(x []float32) ([]client.Tensor, error) {
	dims := []int64{int64(len(x))}
	md, err := dnnl.NewPlainDescriptor(dims, dnnl.F32)
	if err != nil {
		return nil, err
	}
	defer md.Close()

	fwdPD, err := dnnl.NewPrimitiveDescriptor[dnnl.Forward, dnnl.PropForwardTraining](
		dnnl.EltwiseForwardConfig[dnnl.PropForwardTraining]{Alg: dnnl.EltwiseRelu, Src: md, Dst: md}, r.eng)
	if err != nil {
		return nil, err
	}
	defer fwdPD.Close()
	fwd, err := dnnl.NewPrimitiveFromDescriptor(fwdPD)
	if err != nil {
		return nil, err
	}
	defer fwd.Close()
	bwd, err := dnnl.NewPrimitive[dnnl.Backward, dnnl.PropBackward](dnnl.EltwiseBackwardConfig{
		Alg: dnnl.EltwiseRelu, DiffSrc: md, DiffDst: md, Data: md, Hint: fwdPD,
	}, r.eng)
	if err != nil {
		return nil, err
	}
	defer bwd.Close()

	src, err := userMemory(r.eng, md, x)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	ones := make([]float32, len(x))
	for i := range ones {
		ones[i] = 1
	}
	diffDst, err := userMemory(r.eng, md, ones)
	if err != nil {
		return nil, err
	}
	defer diffDst.Close()
	dst, err := dnnl.NewMemoryWithLibraryBuffer[float32](r.eng, md)
	if err != nil {
		return nil, err
	}
	defer dst.Close()
	diffSrc, err := dnnl.NewMemoryWithLibraryBuffer[float32](r.eng, md)
	if err != nil {
		return nil, err
	}
	defer diffSrc.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := fwd.Execute(r.stream, []dnnl.ExecArg{{Index: dnnl.ArgSrc, Mem: src}, {Index: dnnl.ArgDst, Mem: dst}}); err != nil {
		return nil, err
	}
	if err := bwd.Execute(r.stream, []dnnl.ExecArg{
		{Index: dnnl.ArgSrc, Mem: src},
		{Index: dnnl.ArgDiffDst, Mem: diffDst},
		{Index: dnnl.ArgDiffSrc, Mem: diffSrc},
	}); err != nil {
		return nil, err
	}
	if err := r.stream.Wait(); err != nil {
		return nil, err
	}
	y, err := dst.ToSlice()
	if err != nil {
		return nil, err
	}
	dx, err := diffSrc.ToSlice()
	if err != nil {
		return nil, err
	}
	return []client.Tensor{
		{Name: "relu", Dims: dims, Data: y},
		{Name: "relu_diff_src", Dims: dims, Data: dx},
	}, nil
}

func userMemory(e *dnnl.Engine, md *dnnl.MemoryDescriptor, data []float32) (*dnnl.Memory[float32], error) {
	buf, err := dnnl.NewAlignedBuffer(data)
	if err != nil {
		return nil, err
	}
	m, err := dnnl.NewMemoryWithUserBuffer(e, md, buf)
	if err != nil {
		buf.Free()
		return nil, err
	}
	return m, nil
}

// soak repeatedly executes an n x n matmul until the deadline and logs
// throughput every ten iterations.
func soak(ctx context.Context, r *Runner, n int64, d time.Duration) error {
	md, err := dnnl.NewDescriptor(dnnl.Dims2{n, n}, dnnl.F32, dnnl.TagAB)
	if err != nil {
		return err
	}
	defer md.Close()
	mm, err := dnnl.NewPrimitive[dnnl.Forward, dnnl.PropForwardInference](
		dnnl.MatMulConfig[dnnl.PropForwardInference]{Src: md, Weights: md, Dst: md}, r.eng)
	if err != nil {
		return err
	}
	defer mm.Close()

	vals := make([]float32, n*n)
	for i := range vals {
		vals[i] = float32(i%7) / 7
	}
	a, err := userMemory(r.eng, md, vals)
	if err != nil {
		return err
	}
	defer a.Close()
	c, err := dnnl.NewMemoryWithLibraryBuffer[float32](r.eng, md)
	if err != nil {
		return err
	}
	defer c.Close()
	args := []dnnl.ExecArg{{Index: dnnl.ArgSrc, Mem: a}, {Index: dnnl.ArgWeights, Mem: a}, {Index: dnnl.ArgDst, Mem: c}}

	log.Info().Str("duration", d.String()).Int64("n", n).Msg("Starting soak test")
	flopsPerIter := 2 * float64(n) * float64(n) * float64(n)
	start := time.Now()
	end := start.Add(d)
	var iter int
	for time.Now().Before(end) {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.mu.Lock()
		err := mm.Execute(r.stream, args)
		if err == nil {
			err = r.stream.Wait()
		}
		r.mu.Unlock()
		if err != nil {
			return err
		}
		iter++
		if iter%10 == 0 {
			elapsed := time.Since(start)
			log.Info().
				Str("elapsed", elapsed.Round(time.Second).String()).
				Int("iter", iter).
				Str("throughput", humanize.SIWithDigits(flopsPerIter*float64(iter)/elapsed.Seconds(), 2, "FLOP/s")).
				Msg("Soak test progress")
		}
	}
	total := time.Since(start)
	log.Info().
		Int("iterations", iter).
		Dur("total_time", total).
		Str("avg_throughput", humanize.SIWithDigits(flopsPerIter*float64(iter)/total.Seconds(), 2, "FLOP/s")).
		Msg("Soak test complete")
	return nil
}
