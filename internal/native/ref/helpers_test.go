package ref

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

type fixture struct {
	t   *testing.T
	lib *Library
	eng native.Engine
	str native.Stream
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lib := New()
	eng, st := lib.EngineCreate(native.CPU, 0)
	require.Equal(t, native.Success, st)
	str, st := lib.StreamCreate(eng, native.StreamDefault)
	require.Equal(t, native.Success, st)
	t.Cleanup(func() {
		lib.StreamDestroy(str)
		lib.EngineDestroy(eng)
	})
	return &fixture{t: t, lib: lib, eng: eng, str: str}
}

func (f *fixture) desc(dims []int64, tag native.FormatTag) native.MemoryDesc {
	f.t.Helper()
	md, st := f.lib.MemoryDescCreateWithTag(dims, native.F32, tag)
	require.Equal(f.t, native.Success, st)
	return md
}

func (f *fixture) plain(dims ...int64) native.MemoryDesc {
	tag, ok := native.PlainFormat(len(dims))
	require.True(f.t, ok)
	return f.desc(dims, tag)
}

// user wraps a Go slice; the slice must outlive the memory.
func (f *fixture) user(md native.MemoryDesc, data []float32) native.Memory {
	f.t.Helper()
	m, st := f.lib.MemoryCreate(md, f.eng, native.StorageUser, unsafe.Pointer(&data[0]))
	require.Equal(f.t, native.Success, st)
	return m
}

func (f *fixture) run(pd native.PrimitiveDesc, args ...native.ExecArg) {
	f.t.Helper()
	p, st := f.lib.PrimitiveCreate(pd)
	require.Equal(f.t, native.Success, st)
	defer f.lib.PrimitiveDestroy(p)
	require.Equal(f.t, native.Success, f.lib.PrimitiveExecute(p, f.str, args))
	require.Equal(f.t, native.Success, f.lib.StreamWait(f.str))
}

func arg(a native.Arg, m native.Memory) native.ExecArg { return native.ExecArg{Arg: a, Memory: m} }

func fill(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}
