package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/23skdu/longbow-dnnl/dnnl"
	"github.com/23skdu/longbow-dnnl/internal/client"
)

var errBadRequest = errors.New("bad request")

// ExecuteRequest names one forward-inference primitive and its inputs.
// Inputs are matched by role name: src0/src1 for binary; src for the
// other operations; weights for matmul, inner_product and prelu; bias for
// matmul and inner_product; scale and shift for batch_normalization.
type ExecuteRequest struct {
	Operation   string          `cbor:"operation"`
	Algorithm   string          `cbor:"algorithm,omitempty"`
	Propagation string          `cbor:"propagation,omitempty"`
	Alpha       float32         `cbor:"alpha,omitempty"`
	Beta        float32         `cbor:"beta,omitempty"`
	P           float32         `cbor:"p,omitempty"`
	Epsilon     float32         `cbor:"epsilon,omitempty"`
	OutputDims  []int64         `cbor:"output_dims,omitempty"`
	Inputs      []client.Tensor `cbor:"inputs"`
	Forward     bool            `cbor:"forward,omitempty"`
}

type ExecuteResponse struct {
	Operation string          `cbor:"operation"`
	Outputs   []client.Tensor `cbor:"outputs"`
}

// Weight is the number of input elements, used for admission control.
func (r *ExecuteRequest) Weight() int64 {
	var n int64
	for _, t := range r.Inputs {
		n += int64(len(t.Data))
	}
	return n
}

func (r *ExecuteRequest) input(name string) (client.Tensor, bool) {
	for _, t := range r.Inputs {
		if t.Name == name {
			return t, true
		}
	}
	return client.Tensor{}, false
}

// Metadata encodes the parameters as Arrow schema metadata, the inverse of
// requestFromParams.
func (r *ExecuteRequest) Metadata() map[string]string {
	md := map[string]string{"operation": r.Operation}
	put := func(k, v string) {
		if v != "" {
			md[k] = v
		}
	}
	num := func(k string, f float32) {
		if f != 0 {
			md[k] = strconv.FormatFloat(float64(f), 'g', -1, 32)
		}
	}
	put("algorithm", r.Algorithm)
	put("propagation", r.Propagation)
	num("alpha", r.Alpha)
	num("beta", r.Beta)
	num("p", r.P)
	num("epsilon", r.Epsilon)
	if len(r.OutputDims) > 0 {
		dims := make([]string, len(r.OutputDims))
		for i, d := range r.OutputDims {
			dims[i] = strconv.FormatInt(d, 10)
		}
		md["output_dims"] = strings.Join(dims, ",")
	}
	return md
}

// requestFromParams reads request parameters from URL query values or Arrow
// schema metadata. Inputs are filled in by the caller.
func requestFromParams(get func(string) (string, bool)) (*ExecuteRequest, error) {
	req := &ExecuteRequest{}
	var ok bool
	if req.Operation, ok = get("operation"); !ok || req.Operation == "" {
		return nil, errors.Wrap(errBadRequest, "missing operation")
	}
	req.Algorithm, _ = get("algorithm")
	req.Propagation, _ = get("propagation")
	for _, f := range []struct {
		key string
		dst *float32
	}{{"alpha", &req.Alpha}, {"beta", &req.Beta}, {"p", &req.P}, {"epsilon", &req.Epsilon}} {
		v, ok := get(f.key)
		if !ok || v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, errors.Wrapf(errBadRequest, "%s: %v", f.key, err)
		}
		*f.dst = float32(x)
	}
	if v, ok := get("output_dims"); ok && v != "" {
		for _, s := range strings.Split(v, ",") {
			d, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, errors.Wrapf(errBadRequest, "output_dims: %v", err)
			}
			req.OutputDims = append(req.OutputDims, d)
		}
	}
	if v, ok := get("forward"); ok {
		req.Forward, _ = strconv.ParseBool(v)
	}
	return req, nil
}

var propagations = []dnnl.Propagation{
	dnnl.PropagationForwardTraining,
	dnnl.PropagationForwardInference,
	dnnl.PropagationBackward,
	dnnl.PropagationBackwardData,
	dnnl.PropagationBackwardWeights,
	dnnl.PropagationBackwardBias,
}

// parsePropagation defaults to forward_inference.
func parsePropagation(name string) (dnnl.Propagation, dnnl.DirectionKind, error) {
	if name == "" {
		return dnnl.PropagationForwardInference, dnnl.DirectionForward, nil
	}
	for _, p := range propagations {
		if p.String() != name {
			continue
		}
		if p == dnnl.PropagationForwardTraining || p == dnnl.PropagationForwardInference {
			return p, dnnl.DirectionForward, nil
		}
		return p, dnnl.DirectionBackward, nil
	}
	return 0, 0, errors.Wrapf(errBadRequest, "unknown propagation %q", name)
}
