package dnnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-dnnl/internal/native"
	"github.com/23skdu/longbow-dnnl/internal/native/ref"
)

func TestUserBufferReadBack(t *testing.T) {
	e := cpu(t)
	m := user(t, e, plain(t, 2, 2), []float32{1, 2, 3, 4})
	assert.Equal(t, StorageUser, m.Storage())
	assert.Equal(t, []float32{1, 2, 3, 4}, read(t, m))
	m.Buffer().Slice()[3] = 9
	assert.Equal(t, []float32{1, 2, 3, 9}, read(t, m))
}

func TestUserBufferTooSmall(t *testing.T) {
	e := cpu(t)
	buf, err := NewAlignedBuffer([]float32{1, 2})
	require.NoError(t, err)
	defer buf.Free()

	_, err = NewMemoryWithUserBuffer(e, plain(t, 3), buf)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	assert.Equal(t, 2, buf.Len(), "a rejected buffer stays with the caller")
}

func TestUserBufferElementMismatch(t *testing.T) {
	e := cpu(t)
	buf, err := ZeroedBuffer[int32](4)
	require.NoError(t, err)
	defer buf.Free()
	_, err = NewMemoryWithUserBuffer(e, plain(t, 4), buf)
	assert.ErrorIs(t, err, ErrInvalidDataType)
}

func TestLibraryBuffer(t *testing.T) {
	e := cpu(t)
	m := zeros(t, e, plain(t, 3))
	assert.Equal(t, StorageLibrary, m.Storage())
	assert.Nil(t, m.Buffer())
	assert.Equal(t, []float32{0, 0, 0}, read(t, m))

	_, err := NewMemoryWithLibraryBuffer[uint8](e, plain(t, 3))
	assert.ErrorIs(t, err, ErrInvalidDataType)
}

func TestDescriptorOnlyMemoryCannotBeRead(t *testing.T) {
	e := cpu(t)
	m, err := NewMemoryWithoutBuffer[float32](e, plain(t, 3))
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, StorageNone, m.Storage())
	_, err = m.ToSlice()
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestAnyLayoutCannotBeBound(t *testing.T) {
	e := cpu(t)
	md, err := NewDescriptorAny([]int64{3}, F32)
	require.NoError(t, err)
	defer md.Close()
	_, err = NewMemoryWithLibraryBuffer[float32](e, md)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestUserBufferOnNonCPUEngine(t *testing.T) {
	for _, kind := range []native.EngineKind{native.GPU, native.AnyEngine} {
		t.Run(kind.String(), func(t *testing.T) {
			useLibrary(t, &kindLibrary{Library: ref.New(), kind: kind})
			e := cpu(t)
			buf, err := NewAlignedBuffer([]float32{1, 2, 3})
			require.NoError(t, err)
			defer buf.Free()

			_, err = NewMemoryWithUserBuffer(e, plain(t, 3), buf)
			require.ErrorIs(t, err, ErrUnsupported)
			assert.Contains(t, err.Error(), "unsupported device kind")
		})
	}
}

func TestMemoryOwnsBufferAndDescriptor(t *testing.T) {
	e := cpu(t)
	md, err := NewDescriptor(Dims1{3}, F32, TagA)
	require.NoError(t, err)
	buf, err := NewAlignedBuffer([]float32{1, 2, 3})
	require.NoError(t, err)
	m, err := NewMemoryWithUserBuffer(e, md, buf)
	require.NoError(t, err)

	md.Close()
	d, err := m.Descriptor()
	require.NoError(t, err)
	defer d.Close()
	dims, err := d.Dims()
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, dims)

	m.Close()
	m.Close()
	assert.Zero(t, buf.Len(), "closing the memory frees its buffer")
	_, err = m.ToSlice()
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestBoundBufferIgnoresFree(t *testing.T) {
	e := cpu(t)
	s := stream(t, e, StreamDefault)
	md := plain(t, 3)

	buf, err := NewAlignedBuffer([]float32{0, 0, 0})
	require.NoError(t, err)
	dst, err := NewMemoryWithUserBuffer(e, md, buf)
	require.NoError(t, err)
	defer dst.Close()
	assert.True(t, buf.Owned())

	buf.Free()
	dst.Buffer().Free()
	assert.Equal(t, 3, buf.Len(), "the memory keeps its storage")

	_, err = NewMemoryWithUserBuffer(e, md, buf)
	assert.ErrorIs(t, err, ErrInvalidArguments, "a buffer backs one memory")

	add, err := NewPrimitive[Forward, PropForwardInference](BinaryConfig{Alg: BinaryAdd, Src0: md, Src1: md, Dst: md}, e)
	require.NoError(t, err)
	defer add.Close()
	src := user(t, e, md, []float32{1, 2, 3})
	run(t, s, add, ExecArg{ArgSrc0, src}, ExecArg{ArgSrc1, src}, ExecArg{ArgDst, dst})
	assert.Equal(t, []float32{2, 4, 6}, read(t, dst))

	dst.Close()
	assert.Zero(t, buf.Len())
}

func TestRejectedBufferStaysFreeable(t *testing.T) {
	e := cpu(t)
	buf, err := NewAlignedBuffer([]float32{1, 2})
	require.NoError(t, err)
	_, err = NewMemoryWithUserBuffer(e, plain(t, 3), buf)
	require.Error(t, err)
	assert.False(t, buf.Owned())
	buf.Free()
	assert.Zero(t, buf.Len())
}
