package client

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTensorRecord(t *testing.T) {
	pool := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer pool.AssertSize(t, 0)
	builder := NewTensorRecordBuilder(pool)

	t.Run("empty input", func(t *testing.T) {
		rb, err := builder.Build(nil, nil)
		assert.NoError(t, err)
		assert.Nil(t, rb)
	})

	t.Run("valid input", func(t *testing.T) {
		tensors := []Tensor{
			{Name: "dst", Dims: []int64{2, 2}, Data: []float32{58, 64, 139, 154}},
			{Name: "sum", Dims: []int64{1}, Data: []float32{6}},
		}
		rb, err := builder.Build(tensors, map[string]string{"operation": "matmul"})
		require.NoError(t, err)
		defer rb.Release()

		assert.Equal(t, int64(2), rb.NumRows())
		assert.Equal(t, int64(3), rb.NumCols())
		assert.Equal(t, ColumnName, rb.ColumnName(0))
		v, ok := rb.Schema().Metadata().GetValue("operation")
		assert.True(t, ok)
		assert.Equal(t, "matmul", v)

		values := rb.Column(2).(*array.List)
		assert.Equal(t, []int32{0, 4, 5}, values.Offsets())

		back, err := TensorsFromRecord(rb)
		require.NoError(t, err)
		assert.Equal(t, tensors, back)
	})

	t.Run("mismatched values", func(t *testing.T) {
		_, err := builder.Build([]Tensor{{Name: "x", Dims: []int64{3}, Data: []float32{1}}}, nil)
		assert.ErrorContains(t, err, `tensor "x" has 1 values`)
	})
}

func TestTensorsFromRecordRejectsForeignSchema(t *testing.T) {
	pool := memory.NewGoAllocator()
	b := array.NewFloat32Builder(pool)
	defer b.Release()
	b.AppendValues([]float32{1, 2}, nil)
	a := b.NewArray()
	defer a.Release()
	schema := arrow.NewSchema([]arrow.Field{{Name: "vector", Type: arrow.PrimitiveTypes.Float32}}, nil)
	rb := array.NewRecordBatch(schema, []arrow.Array{a}, 2)
	defer rb.Release()

	_, err := TensorsFromRecord(rb)
	assert.ErrorContains(t, err, `no "name" column`)
}

func TestTensorValidate(t *testing.T) {
	assert.NoError(t, Tensor{Name: "a", Dims: []int64{2, 3}, Data: make([]float32, 6)}.Validate())
	assert.Error(t, Tensor{Name: "a"}.Validate())
	assert.Error(t, Tensor{Name: "a", Dims: []int64{0}}.Validate())
	n, ok := Tensor{Dims: []int64{2, 3, 4}}.Elements()
	assert.True(t, ok)
	assert.Equal(t, int64(24), n)

	// 2^62+1 times 4 wraps to 4 in int64 arithmetic
	huge := Tensor{Name: "a", Dims: []int64{1<<62 + 1, 4}, Data: make([]float32, 4)}
	_, ok = huge.Elements()
	assert.False(t, ok)
	assert.ErrorContains(t, huge.Validate(), "overflow")
}
