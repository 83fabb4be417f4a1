package dnnl

import (
	"testing"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestAlignedBuffer(t *testing.T) {
	before := testutil.ToFloat64(bufferBytes)
	b, err := NewAlignedBuffer([]float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())
	assert.Zero(t, uintptr(unsafe.Pointer(&b.Slice()[0]))%64)
	assert.Greater(t, testutil.ToFloat64(bufferBytes), before)

	vals := b.Values()
	b.Slice()[0] = 10
	assert.Equal(t, []float32{1, 2, 3}, vals)
	assert.Equal(t, []float32{10, 2, 3}, b.Values())

	b.Free()
	b.Free()
	assert.Zero(t, b.Len())
	assert.Nil(t, b.Slice())
	assert.Equal(t, before, testutil.ToFloat64(bufferBytes))
}

func TestZeroedBuffer(t *testing.T) {
	b, err := ZeroedBuffer[int8](5)
	require.NoError(t, err)
	defer b.Free()
	assert.Equal(t, []int8{0, 0, 0, 0, 0}, b.Values())

	_, err = ZeroedBuffer[float32](0)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = NewAlignedBuffer([]uint8{})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestElementTypes(t *testing.T) {
	assert.Equal(t, F32, DataTypeOf[float32]())
	assert.Equal(t, F64, DataTypeOf[float64]())
	assert.Equal(t, S32, DataTypeOf[int32]())
	assert.Equal(t, S8, DataTypeOf[int8]())
	assert.Equal(t, U8, DataTypeOf[uint8]())
	assert.Equal(t, F16, DataTypeOf[float16.Float16]())
	assert.Equal(t, BF16, DataTypeOf[BFloat16]())

	assert.Equal(t, 2, elemSize[BFloat16]())
	assert.Equal(t, 2, elemSize[float16.Float16]())
	assert.Equal(t, 8, elemSize[float64]())
	for _, dt := range []DataType{F16, BF16, F32, S32, S8, U8, F64} {
		assert.Positive(t, DataTypeSize(dt), dt.String())
	}
}

func TestBFloat16(t *testing.T) {
	assert.Equal(t, float32(1), BFloat16From(1).Float32())
	assert.Equal(t, float32(-2.5), BFloat16From(-2.5).Float32())
	// 1 + 2^-8 is halfway between two bf16 values and rounds to even
	assert.Equal(t, float32(1), BFloat16From(1+1.0/256).Float32())
	assert.InDelta(t, 3.140625, BFloat16From(3.14159).Float32(), 1e-6)
}
