package dnnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorQueriesReturnDims(t *testing.T) {
	check := func(md *MemoryDescriptor, err error, dims []int64) {
		t.Helper()
		require.NoError(t, err)
		defer md.Close()
		got, err := Query(md, QueryDims)
		require.NoError(t, err)
		assert.Equal(t, dims, got)
		n, err := md.NDims()
		require.NoError(t, err)
		assert.Equal(t, len(dims), n)
		dt, err := md.DataType()
		require.NoError(t, err)
		assert.Equal(t, F32, dt)
	}
	md, err := NewDescriptor(Dims1{7}, F32, TagA)
	check(md, err, []int64{7})
	md, err = NewDescriptor(Dims2{2, 3}, F32, TagBA)
	check(md, err, []int64{2, 3})
	md, err = NewDescriptor(Dims3{4, 1, 2}, F32, TagTNC)
	check(md, err, []int64{4, 1, 2})
	md, err = NewDescriptor(Dims4{1, 3, 8, 8}, F32, TagNHWC)
	check(md, err, []int64{1, 3, 8, 8})
	md, err = NewDescriptor(Dims5{1, 2, 3, 4, 5}, F32, TagACDEB)
	check(md, err, []int64{1, 2, 3, 4, 5})
	md, err = NewDescriptor(Dims12{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2}, F32, TagABCDEFGHIJKL)
	check(md, err, []int64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 2})
	md, err = NewPlainDescriptor([]int64{2, 2, 2, 2, 2, 2}, F32)
	check(md, err, []int64{2, 2, 2, 2, 2, 2})
}

func TestDescriptorSize(t *testing.T) {
	md, err := NewDescriptor(Dims2{3, 5}, S8, TagAB)
	require.NoError(t, err)
	defer md.Close()
	assert.Equal(t, 15, md.Size())

	md2, err := NewDescriptor(Dims2{3, 5}, F64, TagAB)
	require.NoError(t, err)
	defer md2.Close()
	assert.Equal(t, 120, md2.Size())
	assert.False(t, md.Equal(md2))
}

func TestDescriptorCloneAndBlobRoundTrip(t *testing.T) {
	md, err := NewDescriptor(Dims4{2, 3, 4, 5}, F32, TagABcd8b)
	require.NoError(t, err)

	c, err := md.Clone()
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, md.Equal(c))

	blob, err := md.Blob()
	require.NoError(t, err)
	back, err := NewDescriptorFromBlob(blob)
	require.NoError(t, err)
	defer back.Close()
	assert.True(t, md.Equal(back))
	again, err := back.Blob()
	require.NoError(t, err)
	assert.Equal(t, blob, again)

	md.Close()
	assert.True(t, c.Equal(back), "clones outlive their source")
}

func TestBlockedLayoutPadding(t *testing.T) {
	blocked, err := NewDescriptor(Dims4{2, 3, 4, 5}, F32, TagABcd8b)
	require.NoError(t, err)
	defer blocked.Close()
	flat := plain(t, 2, 3, 4, 5)

	assert.Equal(t, 2*8*4*5*4, blocked.Size())
	assert.Equal(t, 2*3*4*5*4, flat.Size())
	padded, err := blocked.PaddedDims()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 8, 4, 5}, padded)
	dims, err := blocked.Dims()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4, 5}, dims)
	assert.False(t, blocked.Equal(flat))
}

func TestDescriptorRejects(t *testing.T) {
	_, err := NewPlainDescriptor(nil, F32)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = NewPlainDescriptor(make([]int64, 13), F32)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = NewDescriptorAny(make([]int64, 13), F32)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = NewDescriptorFromBlob(nil)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = NewDescriptorFromBlob([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = NewDescriptor(Dims2{2, -1}, F32, TagAB)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	// the byte size would wrap to 16
	_, err = NewDescriptor(Dims2{1<<62 + 1, 4}, F32, TagAB)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = NewDescriptorAny([]int64{1<<62 + 1, 4}, F32)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestQueryUnknownProjection(t *testing.T) {
	md := plain(t, 4)
	_, err := Query(md, DescQuery[string]{})
	assert.ErrorIs(t, err, ErrInvalidQueryOutput)
}

func TestClosedDescriptor(t *testing.T) {
	md, err := NewDescriptor(Dims1{4}, F32, TagA)
	require.NoError(t, err)
	other := plain(t, 4)
	md.Close()
	md.Close()

	_, err = md.Dims()
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = md.Clone()
	assert.ErrorIs(t, err, ErrInvalidArguments)
	assert.False(t, md.Equal(other))
	assert.Zero(t, md.Size())
}
