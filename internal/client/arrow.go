package client

import (
	"math"
	"math/bits"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"
)

// Tensor is a named dense float32 array in plain row-major order.
type Tensor struct {
	Name string    `cbor:"name"`
	Dims []int64   `cbor:"dims"`
	Data []float32 `cbor:"data"`
}

// Elements is the product of Dims. It is false when a dim is negative or
// the product does not fit an int64.
func (t Tensor) Elements() (int64, bool) {
	n := uint64(1)
	for _, d := range t.Dims {
		if d < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(n, uint64(d))
		if hi != 0 || lo > math.MaxInt64 {
			return 0, false
		}
		n = lo
	}
	return int64(n), true
}

// Validate checks that Data holds exactly Elements() values.
func (t Tensor) Validate() error {
	if len(t.Dims) == 0 {
		return errors.Errorf("tensor %q has no dims", t.Name)
	}
	for _, d := range t.Dims {
		if d <= 0 {
			return errors.Errorf("tensor %q has non-positive dim %d", t.Name, d)
		}
	}
	n, ok := t.Elements()
	if !ok {
		return errors.Errorf("tensor %q dims %v overflow", t.Name, t.Dims)
	}
	if int64(len(t.Data)) != n {
		return errors.Errorf("tensor %q has %d values, dims %v need %d", t.Name, len(t.Data), t.Dims, n)
	}
	return nil
}

// Column names of a tensor record.
const (
	ColumnName   = "name"
	ColumnDims   = "dims"
	ColumnValues = "values"
)

var tensorFields = []arrow.Field{
	{Name: ColumnName, Type: arrow.BinaryTypes.String},
	{Name: ColumnDims, Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
	{Name: ColumnValues, Type: arrow.ListOf(arrow.PrimitiveTypes.Float32)},
}

// TensorSchema returns the tensor record schema carrying meta as schema
// metadata, e.g. the operation that produced the tensors.
func TensorSchema(meta map[string]string) *arrow.Schema {
	if len(meta) == 0 {
		return arrow.NewSchema(tensorFields, nil)
	}
	md := arrow.MetadataFrom(meta)
	return arrow.NewSchema(tensorFields, &md)
}

// TensorRecordBuilder turns tensors into Arrow record batches, one row per
// tensor.
type TensorRecordBuilder struct {
	mem memory.Allocator
}

func NewTensorRecordBuilder(mem memory.Allocator) *TensorRecordBuilder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &TensorRecordBuilder{mem: mem}
}

// Build returns nil for an empty input.
func (b *TensorRecordBuilder) Build(tensors []Tensor, meta map[string]string) (arrow.RecordBatch, error) {
	if len(tensors) == 0 {
		return nil, nil
	}
	for _, t := range tensors {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	names := array.NewStringBuilder(b.mem)
	defer names.Release()
	dims := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Int64)
	defer dims.Release()
	values := array.NewListBuilder(b.mem, arrow.PrimitiveTypes.Float32)
	defer values.Release()
	dimValues := dims.ValueBuilder().(*array.Int64Builder)
	floatValues := values.ValueBuilder().(*array.Float32Builder)

	for _, t := range tensors {
		names.Append(t.Name)
		dims.Append(true)
		dimValues.AppendValues(t.Dims, nil)
		values.Append(true)
		floatValues.AppendValues(t.Data, nil)
	}

	cols := []arrow.Array{names.NewArray(), dims.NewArray(), values.NewArray()}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	return array.NewRecordBatch(TensorSchema(meta), cols, int64(len(tensors))), nil
}

// TensorsFromRecord reads the tensors of a record built by Build. Values are
// copied, so the result stays valid after the record is released.
func TensorsFromRecord(rec arrow.RecordBatch) ([]Tensor, error) {
	names, err := column[*array.String](rec, ColumnName)
	if err != nil {
		return nil, err
	}
	dims, err := column[*array.List](rec, ColumnDims)
	if err != nil {
		return nil, err
	}
	values, err := column[*array.List](rec, ColumnValues)
	if err != nil {
		return nil, err
	}
	dimValues, ok := dims.ListValues().(*array.Int64)
	if !ok {
		return nil, errors.Errorf("column %q is not list<int64>", ColumnDims)
	}
	floatValues, ok := values.ListValues().(*array.Float32)
	if !ok {
		return nil, errors.Errorf("column %q is not list<float32>", ColumnValues)
	}

	out := make([]Tensor, 0, rec.NumRows())
	for i := 0; i < int(rec.NumRows()); i++ {
		ds, de := dims.ValueOffsets(i)
		vs, ve := values.ValueOffsets(i)
		t := Tensor{
			Name: names.Value(i),
			Dims: append([]int64(nil), dimValues.Int64Values()[ds:de]...),
			Data: append([]float32(nil), floatValues.Float32Values()[vs:ve]...),
		}
		if err := t.Validate(); err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		out = append(out, t)
	}
	return out, nil
}

func column[A arrow.Array](rec arrow.RecordBatch, name string) (A, error) {
	var zero A
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return zero, errors.Errorf("record has no %q column", name)
	}
	a, ok := rec.Column(idx[0]).(A)
	if !ok {
		return zero, errors.Errorf("column %q has type %s", name, rec.Column(idx[0]).DataType())
	}
	return a, nil
}
