//go:build dnnl

package onednn

/*
#include <dnnl.h>
*/
import "C"
import (
	"unsafe"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

func pdHandle(pd C.dnnl_primitive_desc_t, st native.Status) (native.PrimitiveDesc, native.Status) {
	if st != native.Success {
		return 0, st
	}
	return native.PrimitiveDesc(uintptr(unsafe.Pointer(pd))), native.Success
}

func (*Library) BinaryPrimitiveDescCreate(e native.Engine, alg native.AlgKind, src0, src1, dst native.MemoryDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	calg, ok := algKinds[alg]
	if !ok {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_binary_primitive_desc_create(&pd, engineOf(e), calg, mdOf(src0), mdOf(src1), mdOf(dst), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) EltwiseForwardPrimitiveDescCreate(e native.Engine, prop native.PropKind, alg native.AlgKind, src, dst native.MemoryDesc, alpha, beta float32, a native.Attr) (native.PrimitiveDesc, native.Status) {
	cprop, ok := propKinds[prop]
	calg, ok2 := algKinds[alg]
	if !ok || !ok2 {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_eltwise_forward_primitive_desc_create(&pd, engineOf(e), cprop, calg,
		mdOf(src), mdOf(dst), C.float(alpha), C.float(beta), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) EltwiseBackwardPrimitiveDescCreate(e native.Engine, alg native.AlgKind, diffSrc, diffDst, data native.MemoryDesc, alpha, beta float32, hint native.PrimitiveDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	calg, ok := algKinds[alg]
	if !ok {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_eltwise_backward_primitive_desc_create(&pd, engineOf(e), calg,
		mdOf(diffSrc), mdOf(diffDst), mdOf(data), C.float(alpha), C.float(beta), pdOf(hint), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) MatmulPrimitiveDescCreate(e native.Engine, src, weights, bias, dst native.MemoryDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_matmul_primitive_desc_create(&pd, engineOf(e), mdOf(src), mdOf(weights), mdOf(bias), mdOf(dst), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) InnerProductForwardPrimitiveDescCreate(e native.Engine, prop native.PropKind, src, weights, bias, dst native.MemoryDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	cprop, ok := propKinds[prop]
	if !ok {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_inner_product_forward_primitive_desc_create(&pd, engineOf(e), cprop,
		mdOf(src), mdOf(weights), mdOf(bias), mdOf(dst), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) InnerProductBackwardDataPrimitiveDescCreate(e native.Engine, diffSrc, weights, diffDst native.MemoryDesc, hint native.PrimitiveDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_inner_product_backward_data_primitive_desc_create(&pd, engineOf(e),
		mdOf(diffSrc), mdOf(weights), mdOf(diffDst), pdOf(hint), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) InnerProductBackwardWeightsPrimitiveDescCreate(e native.Engine, src, diffWeights, diffBias, diffDst native.MemoryDesc, hint native.PrimitiveDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_inner_product_backward_weights_primitive_desc_create(&pd, engineOf(e),
		mdOf(src), mdOf(diffWeights), mdOf(diffBias), mdOf(diffDst), pdOf(hint), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) ReductionPrimitiveDescCreate(e native.Engine, alg native.AlgKind, src, dst native.MemoryDesc, p, eps float32, a native.Attr) (native.PrimitiveDesc, native.Status) {
	calg, ok := algKinds[alg]
	if !ok {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_reduction_primitive_desc_create(&pd, engineOf(e), calg, mdOf(src), mdOf(dst),
		C.float(p), C.float(eps), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) BatchNormForwardPrimitiveDescCreate(e native.Engine, prop native.PropKind, src, dst native.MemoryDesc, eps float32, flags native.NormalizationFlags, a native.Attr) (native.PrimitiveDesc, native.Status) {
	cprop, ok := propKinds[prop]
	if !ok {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_batch_normalization_forward_primitive_desc_create(&pd, engineOf(e), cprop,
		mdOf(src), mdOf(dst), C.float(eps), normFlags(flags), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) BatchNormBackwardPrimitiveDescCreate(e native.Engine, prop native.PropKind, diffSrc, diffDst, src native.MemoryDesc, eps float32, flags native.NormalizationFlags, hint native.PrimitiveDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	cprop, ok := propKinds[prop]
	if !ok {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_batch_normalization_backward_primitive_desc_create(&pd, engineOf(e), cprop,
		mdOf(diffSrc), mdOf(diffDst), mdOf(src), C.float(eps), normFlags(flags), pdOf(hint), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) PReluForwardPrimitiveDescCreate(e native.Engine, prop native.PropKind, src, weights, dst native.MemoryDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	cprop, ok := propKinds[prop]
	if !ok {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_prelu_forward_primitive_desc_create(&pd, engineOf(e), cprop,
		mdOf(src), mdOf(weights), mdOf(dst), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) PReluBackwardPrimitiveDescCreate(e native.Engine, src, weights, diffSrc, diffWeights, diffDst native.MemoryDesc, hint native.PrimitiveDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_prelu_backward_primitive_desc_create(&pd, engineOf(e),
		mdOf(src), mdOf(weights), mdOf(diffSrc), mdOf(diffWeights), mdOf(diffDst), pdOf(hint), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) AugruForwardPrimitiveDescCreate(e native.Engine, prop native.PropKind, dir native.RNNDirection, r native.RNNDescs, flags native.RNNFlags, a native.Attr) (native.PrimitiveDesc, native.Status) {
	cprop, ok := propKinds[prop]
	cdir, ok2 := rnnDirections[dir]
	if !ok || !ok2 {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_augru_forward_primitive_desc_create(&pd, engineOf(e), cprop, cdir,
		mdOf(r.SrcLayer), mdOf(r.SrcIter), mdOf(r.Attention), mdOf(r.WeightsLayer), mdOf(r.WeightsIter),
		mdOf(r.Bias), mdOf(r.DstLayer), mdOf(r.DstIter), C.uint(flags), attrOf(a)))
	return pdHandle(pd, st)
}

func (*Library) AugruBackwardPrimitiveDescCreate(e native.Engine, prop native.PropKind, dir native.RNNDirection, r, diff native.RNNDescs, flags native.RNNFlags, hint native.PrimitiveDesc, a native.Attr) (native.PrimitiveDesc, native.Status) {
	cprop, ok := propKinds[prop]
	cdir, ok2 := rnnDirections[dir]
	if !ok || !ok2 {
		return 0, native.InvalidArguments
	}
	var pd C.dnnl_primitive_desc_t
	st := status(C.dnnl_augru_backward_primitive_desc_create(&pd, engineOf(e), cprop, cdir,
		mdOf(r.SrcLayer), mdOf(r.SrcIter), mdOf(r.Attention), mdOf(r.WeightsLayer), mdOf(r.WeightsIter),
		mdOf(r.Bias), mdOf(r.DstLayer), mdOf(r.DstIter),
		mdOf(diff.SrcLayer), mdOf(diff.SrcIter), mdOf(diff.Attention), mdOf(diff.WeightsLayer), mdOf(diff.WeightsIter),
		mdOf(diff.Bias), mdOf(diff.DstLayer), mdOf(diff.DstIter),
		C.uint(flags), pdOf(hint), attrOf(a)))
	return pdHandle(pd, st)
}

// PrimitiveDescQueryMD returns a descriptor owned by the primitive
// descriptor; callers clone it before keeping it.
func (*Library) PrimitiveDescQueryMD(h native.PrimitiveDesc, arg native.Arg) (native.MemoryDesc, native.Status) {
	md := C.dnnl_primitive_desc_query_md(pdOf(h), C.dnnl_query_exec_arg_md, C.int(arg))
	return native.MemoryDesc(uintptr(unsafe.Pointer(md))), native.Success
}

func (*Library) PrimitiveDescDestroy(h native.PrimitiveDesc) native.Status {
	return status(C.dnnl_primitive_desc_destroy(pdOf(h)))
}

func (*Library) PrimitiveCreate(h native.PrimitiveDesc) (native.Primitive, native.Status) {
	var p C.dnnl_primitive_t
	if st := status(C.dnnl_primitive_create(&p, pdOf(h))); st != native.Success {
		return 0, st
	}
	return native.Primitive(uintptr(unsafe.Pointer(p))), native.Success
}

func (*Library) PrimitiveExecute(h native.Primitive, s native.Stream, args []native.ExecArg) native.Status {
	cargs := make([]C.dnnl_exec_arg_t, len(args))
	for i, a := range args {
		cargs[i].arg = C.int(a.Arg)
		cargs[i].memory = memoryOf(a.Memory)
	}
	var ptr *C.dnnl_exec_arg_t
	if len(cargs) > 0 {
		ptr = &cargs[0]
	}
	return status(C.dnnl_primitive_execute(primitiveOf(h), streamOf(s), C.int(len(cargs)), ptr))
}

func (*Library) PrimitiveDestroy(h native.Primitive) native.Status {
	return status(C.dnnl_primitive_destroy(primitiveOf(h)))
}
