package dnnl

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-dnnl/internal/native"
)

// useLibrary swaps the linked native library for the duration of a test.
func useLibrary(t *testing.T, l native.Library) {
	t.Helper()
	prev := lib
	lib = l
	t.Cleanup(func() { lib = prev })
}

// countingLibrary records engine destroys.
type countingLibrary struct {
	native.Library
	engineDestroys atomic.Int32
}

func (c *countingLibrary) EngineDestroy(e native.Engine) native.Status {
	c.engineDestroys.Add(1)
	return c.Library.EngineDestroy(e)
}

// kindLibrary reports a fixed engine kind for every engine.
type kindLibrary struct {
	native.Library
	kind native.EngineKind
}

func (k *kindLibrary) EngineGetKind(native.Engine) (native.EngineKind, native.Status) {
	return k.kind, native.Success
}

func cpu(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(CPU, 0)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func stream(t *testing.T, e *Engine, flags StreamFlags) *Stream {
	t.Helper()
	s, err := NewStreamWithFlags(e, flags)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func plain(t *testing.T, dims ...int64) *MemoryDescriptor {
	t.Helper()
	md, err := NewPlainDescriptor(dims, F32)
	require.NoError(t, err)
	t.Cleanup(md.Close)
	return md
}

func user(t *testing.T, e *Engine, md *MemoryDescriptor, data []float32) *Memory[float32] {
	t.Helper()
	buf, err := NewAlignedBuffer(data)
	require.NoError(t, err)
	m, err := NewMemoryWithUserBuffer(e, md, buf)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func zeros(t *testing.T, e *Engine, md *MemoryDescriptor) *Memory[float32] {
	t.Helper()
	m, err := NewMemoryWithLibraryBuffer[float32](e, md)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func read(t *testing.T, m *Memory[float32]) []float32 {
	t.Helper()
	v, err := m.ToSlice()
	require.NoError(t, err)
	return v
}

func fill(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func run[D Direction, P PropKind[D], C Config[D, P]](t *testing.T, s *Stream, p *Primitive[D, P, C], args ...ExecArg) {
	t.Helper()
	require.NoError(t, p.Execute(s, args))
	require.NoError(t, s.Wait())
}
