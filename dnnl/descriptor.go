package dnnl

import (
	"fmt"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// Fixed-arity shapes. Pairing a shape with a FormatTag of the same arity is
// checked by the compiler.
type (
	Dims1  [1]int64
	Dims2  [2]int64
	Dims3  [3]int64
	Dims4  [4]int64
	Dims5  [5]int64
	Dims6  [6]int64
	Dims7  [7]int64
	Dims8  [8]int64
	Dims9  [9]int64
	Dims10 [10]int64
	Dims11 [11]int64
	Dims12 [12]int64
)

func (d Dims1) slice() []int64  { return d[:] }
func (d Dims2) slice() []int64  { return d[:] }
func (d Dims3) slice() []int64  { return d[:] }
func (d Dims4) slice() []int64  { return d[:] }
func (d Dims5) slice() []int64  { return d[:] }
func (d Dims6) slice() []int64  { return d[:] }
func (d Dims7) slice() []int64  { return d[:] }
func (d Dims8) slice() []int64  { return d[:] }
func (d Dims9) slice() []int64  { return d[:] }
func (d Dims10) slice() []int64 { return d[:] }
func (d Dims11) slice() []int64 { return d[:] }
func (d Dims12) slice() []int64 { return d[:] }

// Dims is any fixed-arity shape.
type Dims interface {
	Dims1 | Dims2 | Dims3 | Dims4 | Dims5 | Dims6 | Dims7 | Dims8 | Dims9 | Dims10 | Dims11 | Dims12
	slice() []int64
}

// FormatTag is a physical layout usable with shapes of type S.
type FormatTag[S Dims] struct{ tag native.FormatTag }

func (f FormatTag[S]) String() string { return f.tag.String() }

var (
	TagA = FormatTag[Dims1]{native.FormatA}

	TagAB = FormatTag[Dims2]{native.FormatAB}
	TagBA = FormatTag[Dims2]{native.FormatBA}

	TagABC    = FormatTag[Dims3]{native.FormatABC}
	TagACB    = FormatTag[Dims3]{native.FormatACB}
	TagBAC    = FormatTag[Dims3]{native.FormatBAC}
	TagBCA    = FormatTag[Dims3]{native.FormatBCA}
	TagCBA    = FormatTag[Dims3]{native.FormatCBA}
	TagABc16b = FormatTag[Dims3]{native.FormatABc16b}

	TagABCD       = FormatTag[Dims4]{native.FormatABCD}
	TagACDB       = FormatTag[Dims4]{native.FormatACDB}
	TagBACD       = FormatTag[Dims4]{native.FormatBACD}
	TagBCDA       = FormatTag[Dims4]{native.FormatBCDA}
	TagCDBA       = FormatTag[Dims4]{native.FormatCDBA}
	TagABDC       = FormatTag[Dims4]{native.FormatABDC}
	TagABcd8b     = FormatTag[Dims4]{native.FormatABcd8b}
	TagABcd16b    = FormatTag[Dims4]{native.FormatABcd16b}
	TagAbcd8a     = FormatTag[Dims4]{native.FormatAbcd8a}
	TagAbcd16a    = FormatTag[Dims4]{native.FormatAbcd16a}
	TagABcd16a16b = FormatTag[Dims4]{native.FormatABcd16a16b}

	TagABCDE    = FormatTag[Dims5]{native.FormatABCDE}
	TagACDEB    = FormatTag[Dims5]{native.FormatACDEB}
	TagABDEC    = FormatTag[Dims5]{native.FormatABDEC}
	TagABcde8b  = FormatTag[Dims5]{native.FormatABcde8b}
	TagABcde16b = FormatTag[Dims5]{native.FormatABcde16b}

	TagABCDEF       = FormatTag[Dims6]{native.FormatABCDEF}
	TagABCDEFG      = FormatTag[Dims7]{native.FormatABCDEFG}
	TagABCDEFGH     = FormatTag[Dims8]{native.FormatABCDEFGH}
	TagABCDEFGHI    = FormatTag[Dims9]{native.FormatABCDEFGHI}
	TagABCDEFGHIJ   = FormatTag[Dims10]{native.FormatABCDEFGHIJ}
	TagABCDEFGHIJK  = FormatTag[Dims11]{native.FormatABCDEFGHIJK}
	TagABCDEFGHIJKL = FormatTag[Dims12]{native.FormatABCDEFGHIJKL}

	// Common aliases.
	TagNC   = TagAB
	TagNCHW = TagABCD
	TagNHWC = TagACDB
	TagOI   = TagAB
	TagIO   = TagBA
	TagTNC  = TagABC
)

// MemoryDescriptor describes the element type, shape and physical layout of
// a tensor. It owns no storage. Memories and primitive descriptors built on
// it hold their own reference, so it may be closed as soon as they exist.
type MemoryDescriptor struct {
	ref *shared[native.MemoryDesc]
}

func wrapDescriptor(h native.MemoryDesc) *MemoryDescriptor {
	d := &MemoryDescriptor{ref: newShared("memory_desc", h, lib.MemoryDescDestroy)}
	guard(d, "memory_desc", (*MemoryDescriptor).Close)
	return d
}

// NewDescriptor creates a descriptor whose tag arity matches dims.
func NewDescriptor[S Dims](dims S, dt DataType, tag FormatTag[S]) (*MemoryDescriptor, error) {
	return newDescriptor(dims.slice(), dt, tag.tag)
}

// NewPlainDescriptor creates a row-major descriptor for a shape whose rank is
// only known at run time.
func NewPlainDescriptor(dims []int64, dt DataType) (*MemoryDescriptor, error) {
	tag, ok := native.PlainFormat(len(dims))
	if !ok {
		return nil, fail(KindInvalidArguments, "memory_desc_create", fmt.Sprintf("rank %d outside 1..%d", len(dims), native.MaxDims))
	}
	return newDescriptor(dims, dt, tag)
}

// NewDescriptorAny leaves the physical layout to the primitive descriptor
// that consumes it.
func NewDescriptorAny(dims []int64, dt DataType) (*MemoryDescriptor, error) {
	if len(dims) < 1 || len(dims) > native.MaxDims {
		return nil, fail(KindInvalidArguments, "memory_desc_create", fmt.Sprintf("rank %d outside 1..%d", len(dims), native.MaxDims))
	}
	return newDescriptor(dims, dt, native.FormatAny)
}

func newDescriptor(dims []int64, dt DataType, tag native.FormatTag) (*MemoryDescriptor, error) {
	h, st := lib.MemoryDescCreateWithTag(dims, dt, tag)
	if err := check("memory_desc_create_with_tag", st); err != nil {
		return nil, err
	}
	return wrapDescriptor(h), nil
}

// NewDescriptorFromBlob restores a descriptor serialized by Blob.
func NewDescriptorFromBlob(blob []byte) (*MemoryDescriptor, error) {
	if len(blob) == 0 {
		return nil, fail(KindInvalidArguments, "memory_desc_create_with_blob", "empty blob")
	}
	h, st := lib.MemoryDescCreateWithBlob(blob)
	if err := check("memory_desc_create_with_blob", st); err != nil {
		return nil, err
	}
	return wrapDescriptor(h), nil
}

// Clone returns an independent deep copy.
func (d *MemoryDescriptor) Clone() (*MemoryDescriptor, error) {
	h, err := d.ref.handle("memory_desc_clone")
	if err != nil {
		return nil, err
	}
	return cloneDescriptor("memory_desc_clone", h)
}

func cloneDescriptor(op string, h native.MemoryDesc) (*MemoryDescriptor, error) {
	c, st := lib.MemoryDescClone(h)
	if err := check(op, st); err != nil {
		return nil, err
	}
	return wrapDescriptor(c), nil
}

// Equal reports whether the native library considers the layouts equal.
// Closed descriptors are never equal.
func (d *MemoryDescriptor) Equal(o *MemoryDescriptor) bool {
	a, err := d.ref.handle("memory_desc_equal")
	if err != nil || o == nil {
		return false
	}
	b, err := o.ref.handle("memory_desc_equal")
	if err != nil {
		return false
	}
	return lib.MemoryDescEqual(a, b)
}

// Size is the byte size including padding; 0 after Close.
func (d *MemoryDescriptor) Size() int {
	h, err := d.ref.handle("memory_desc_get_size")
	if err != nil {
		return 0
	}
	return int(lib.MemoryDescGetSize(h))
}

// Blob serializes the descriptor into an opaque byte string.
func (d *MemoryDescriptor) Blob() ([]byte, error) {
	h, err := d.ref.handle("memory_desc_get_blob")
	if err != nil {
		return nil, err
	}
	b, st := lib.MemoryDescGetBlob(h)
	if err := check("memory_desc_get_blob", st); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *MemoryDescriptor) NDims() (int, error)          { return Query(d, QueryNDims) }
func (d *MemoryDescriptor) Dims() ([]int64, error)       { return Query(d, QueryDims) }
func (d *MemoryDescriptor) PaddedDims() ([]int64, error) { return Query(d, QueryPaddedDims) }
func (d *MemoryDescriptor) DataType() (DataType, error)  { return Query(d, QueryDataType) }

// Close drops the creator's reference.
func (d *MemoryDescriptor) Close() {
	unguard(d)
	d.ref.close()
}

func (d *MemoryDescriptor) retain(op string) (native.MemoryDesc, error) {
	h, err := d.ref.handle(op)
	if err != nil {
		return 0, err
	}
	d.ref.acquire()
	return h, nil
}

func (d *MemoryDescriptor) drop() { d.ref.release() }

// DescQuery selects a read-only projection of a descriptor with result type R.
type DescQuery[R any] struct{ q native.Query }

var (
	QueryNDims      = DescQuery[int]{native.QueryNDims}
	QueryDims       = DescQuery[[]int64]{native.QueryDims}
	QueryPaddedDims = DescQuery[[]int64]{native.QueryPaddedDims}
	QueryDataType   = DescQuery[DataType]{native.QueryDataType}
)

// Query runs q against d.
func Query[R any](d *MemoryDescriptor, q DescQuery[R]) (R, error) {
	var zero R
	h, err := d.ref.handle("memory_desc_query")
	if err != nil {
		return zero, err
	}
	var out any
	switch q.q {
	case native.QueryNDims, native.QueryDataType:
		v, st := lib.MemoryDescQueryInt(h, q.q)
		if err := check("memory_desc_query", st); err != nil {
			return zero, err
		}
		if q.q == native.QueryNDims {
			out = int(v)
		} else {
			out = DataType(v)
		}
	case native.QueryDims, native.QueryPaddedDims:
		v, st := lib.MemoryDescQueryDims(h, q.q)
		if err := check("memory_desc_query", st); err != nil {
			return zero, err
		}
		out = v
	}
	r, ok := out.(R)
	if !ok {
		return zero, fail(KindInvalidQueryOutput, "memory_desc_query", fmt.Sprintf("query %d does not yield %T", q.q, zero))
	}
	return r, nil
}
