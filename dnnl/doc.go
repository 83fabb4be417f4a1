// Package dnnl is a typed, ownership-safe layer over a handle-based tensor
// compute library.
//
// A pipeline runs Engine -> Stream -> MemoryDescriptor -> Memory -> Config ->
// PrimitiveDescriptor -> Primitive -> Execute -> Stream.Wait:
//
//	eng, _ := dnnl.NewEngine(dnnl.CPU, 0)
//	defer eng.Close()
//	s, _ := dnnl.NewStream(eng)
//	defer s.Close()
//
//	md, _ := dnnl.NewDescriptor(dnnl.Dims1{3}, dnnl.F32, dnnl.TagA)
//	defer md.Close()
//	buf, _ := dnnl.NewAlignedBuffer([]float32{4, 5, 6})
//	src0, _ := dnnl.NewMemoryWithUserBuffer(eng, md, buf)
//	...
//	add, _ := dnnl.NewPrimitive[dnnl.Forward, dnnl.PropForwardInference](dnnl.BinaryConfig{
//		Alg: dnnl.BinaryAdd, Src0: md, Src1: md, Dst: md,
//	}, eng)
//	_ = add.Execute(s, []dnnl.ExecArg{{dnnl.ArgSrc0, src0}, {dnnl.ArgSrc1, src1}, {dnnl.ArgDst, dst}})
//	_ = s.Wait()
//
// Legal (operation, direction, propagation kind) triples are checked by the
// compiler: every config type names the one Forward or Backward marker and
// the propagation markers it accepts. Supported exposes the same table for
// run-time dispatch.
//
// Engines, descriptors and attribute sets are reference counted; every
// object built from them holds its own reference, so Close may be called in
// any order and each native object is destroyed exactly once. Objects that
// are never closed are released by a finalizer, which logs a warning.
//
// The native library is the pure-Go reference implementation unless the
// binary is built with -tags dnnl, which links oneDNN through cgo.
package dnnl
