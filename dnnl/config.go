package dnnl

import "github.com/23skdu/longbow-dnnl/internal/native"

// Config is the configuration of one operation for direction D and
// propagation kind P. The set of implementations is closed: each config type
// declares the single (D, P) pairs it is legal for, so handing a
// backward-data config to a forward-inference pipeline does not compile.
type Config[D Direction, P PropKind[D]] interface {
	typed(D, P)
	operation() OperationKind
	descriptors() []*MemoryDescriptor
	attributes() *PrimitiveAttributes
	forwardHint() hint
	create(e native.Engine, a native.Attr, h native.PrimitiveDesc) (native.PrimitiveDesc, native.Status)
}

// hint is a forward primitive descriptor referenced by a backward config.
type hint interface {
	hintHandle(op string) (native.PrimitiveDesc, error)
}

// raw is the handle of a descriptor the caller already holds a reference
// to; nil descriptors pass the null handle.
func raw(d *MemoryDescriptor) native.MemoryDesc {
	if d == nil {
		return 0
	}
	return d.ref.raw
}

// forward embeds into forward configs; it carries no hint.
type forward struct{}

func (forward) forwardHint() hint { return nil }
