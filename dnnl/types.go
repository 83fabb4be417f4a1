package dnnl

import (
	"fmt"
	"slices"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// Direction markers.
type (
	Forward  struct{}
	Backward struct{}
)

// Direction is the compile-time pass direction.
type Direction interface{ Forward | Backward }

// Propagation markers. Each names the single direction it belongs to.
type (
	PropForwardTraining  struct{}
	PropForwardInference struct{}
	PropBackward         struct{}
	PropBackwardData     struct{}
	PropBackwardWeights  struct{}
	PropBackwardBias     struct{}
)

func (PropForwardTraining) propKind() native.PropKind  { return native.PropForwardTraining }
func (PropForwardInference) propKind() native.PropKind { return native.PropForwardInference }
func (PropBackward) propKind() native.PropKind         { return native.PropBackward }
func (PropBackwardData) propKind() native.PropKind     { return native.PropBackwardData }
func (PropBackwardWeights) propKind() native.PropKind  { return native.PropBackwardWeights }
func (PropBackwardBias) propKind() native.PropKind     { return native.PropBackwardBias }

func (PropForwardTraining) direction() Forward  { return Forward{} }
func (PropForwardInference) direction() Forward { return Forward{} }
func (PropBackward) direction() Backward        { return Backward{} }
func (PropBackwardData) direction() Backward    { return Backward{} }
func (PropBackwardWeights) direction() Backward { return Backward{} }
func (PropBackwardBias) direction() Backward    { return Backward{} }

// PropKind admits only the propagation markers of direction D.
type PropKind[D Direction] interface {
	propKind() native.PropKind
	direction() D
}

func propOf[D Direction, P PropKind[D]]() native.PropKind {
	var p P
	return p.propKind()
}

// Propagation is the run-time counterpart of the propagation markers.
type Propagation = native.PropKind

const (
	PropagationForwardTraining  = native.PropForwardTraining
	PropagationForwardInference = native.PropForwardInference
	PropagationBackward         = native.PropBackward
	PropagationBackwardData     = native.PropBackwardData
	PropagationBackwardWeights  = native.PropBackwardWeights
	PropagationBackwardBias     = native.PropBackwardBias
)

// DirectionKind is the run-time counterpart of Forward and Backward.
type DirectionKind int

const (
	DirectionForward DirectionKind = iota
	DirectionBackward
)

func (d DirectionKind) String() string {
	if d == DirectionBackward {
		return "backward"
	}
	return "forward"
}

// OperationKind enumerates the primitive families of the native library.
type OperationKind int

const (
	OpAugru OperationKind = iota
	OpBatchNormalization
	OpBinary
	OpConcat
	OpConvolution
	OpDeconvolution
	OpEltwise
	OpGroupNormalization
	OpGru
	OpInnerProduct
	OpLayerNormalization
	OpLbrAugru
	OpLrn
	OpLstm
	OpMatMul
	OpPRelu
	OpReduction
	OpShuffle
	OpSoftmax
	OpVanillaRnn
	opEnd
)

var opNames = [...]string{
	OpAugru:              "augru",
	OpBatchNormalization: "batch_normalization",
	OpBinary:             "binary",
	OpConcat:             "concat",
	OpConvolution:        "convolution",
	OpDeconvolution:      "deconvolution",
	OpEltwise:            "eltwise",
	OpGroupNormalization: "group_normalization",
	OpGru:                "gru",
	OpInnerProduct:       "inner_product",
	OpLayerNormalization: "layer_normalization",
	OpLbrAugru:           "lbr_augru",
	OpLrn:                "lrn",
	OpLstm:               "lstm",
	OpMatMul:             "matmul",
	OpPRelu:              "prelu",
	OpReduction:          "reduction",
	OpShuffle:            "shuffle",
	OpSoftmax:            "softmax",
	OpVanillaRnn:         "vanilla_rnn",
}

func (o OperationKind) String() string {
	if o >= 0 && o < opEnd {
		return opNames[o]
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// ParseOperation resolves an operation name as printed by String.
func ParseOperation(name string) (OperationKind, bool) {
	i := slices.Index(opNames[:], name)
	if i < 0 {
		return 0, false
	}
	return OperationKind(i), true
}

type capability struct {
	op   OperationKind
	dir  DirectionKind
	prop Propagation
}

var (
	forwardProps = []Propagation{PropagationForwardTraining, PropagationForwardInference}

	// capabilities lists every triple that has a config type.
	capabilities = buildCapabilities(map[OperationKind]map[DirectionKind][]Propagation{
		OpBinary:    {DirectionForward: {PropagationForwardInference}},
		OpReduction: {DirectionForward: {PropagationForwardInference}},
		OpMatMul:    {DirectionForward: forwardProps},
		OpEltwise: {
			DirectionForward:  forwardProps,
			DirectionBackward: {PropagationBackward},
		},
		OpInnerProduct: {
			DirectionForward:  forwardProps,
			DirectionBackward: {PropagationBackwardData, PropagationBackwardWeights},
		},
		OpBatchNormalization: {
			DirectionForward:  forwardProps,
			DirectionBackward: {PropagationBackward, PropagationBackwardData},
		},
		OpPRelu: {
			DirectionForward:  forwardProps,
			DirectionBackward: {PropagationBackward},
		},
		OpAugru: {
			DirectionForward:  forwardProps,
			DirectionBackward: {PropagationBackward},
		},
	})
)

func buildCapabilities(t map[OperationKind]map[DirectionKind][]Propagation) map[capability]bool {
	out := make(map[capability]bool)
	for op, dirs := range t {
		for dir, props := range dirs {
			for _, p := range props {
				out[capability{op, dir, p}] = true
			}
		}
	}
	return out
}

// Supported reports whether a config type exists for the triple.
func Supported(op OperationKind, dir DirectionKind, prop Propagation) bool {
	return capabilities[capability{op, dir, prop}]
}

// CheckSupported fails with KindUnsupported for triples without a config
// type, before any native call is made.
func CheckSupported(op OperationKind, dir DirectionKind, prop Propagation) error {
	if Supported(op, dir, prop) {
		return nil
	}
	return fail(KindUnsupported, "primitive_desc_create", fmt.Sprintf("%s %s %s", op, dir, prop))
}
