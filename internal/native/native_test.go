package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "invalid_shape", InvalidShape.String())
	assert.Equal(t, "status(99)", Status(99).String())
}

func TestAlgKindNames(t *testing.T) {
	for a := EltwiseRelu; a < algEnd; a++ {
		name := a.String()
		if name == "undef" {
			t.Errorf("alg %d has no name", a)
			continue
		}
		back, ok := AlgByName(name)
		assert.True(t, ok)
		assert.Equal(t, a, back)
	}
	_, ok := AlgByName("eltwise_nope")
	assert.False(t, ok)
}

func TestAlgKindClasses(t *testing.T) {
	assert.True(t, EltwiseGeluErf.IsEltwise())
	assert.False(t, EltwiseGeluErf.IsBinary())
	assert.True(t, BinaryNE.IsBinary())
	assert.True(t, ReductionMean.IsReduction())
	assert.True(t, EltwiseExpUseDstForBwd.UsesDstForBackward())
	assert.False(t, EltwiseExp.UsesDstForBackward())
}

func TestFormatTags(t *testing.T) {
	for f := FormatA; f < formatEnd; f++ {
		if _, ok := formats[f]; !ok {
			t.Errorf("format %d has no name", f)
		}
	}
	assert.Equal(t, "aBcd8b", FormatABcd8b.String())
	assert.Equal(t, 4, FormatABcd8b.NDims())
	assert.Equal(t, 0, FormatAny.NDims())

	for n := 1; n <= MaxDims; n++ {
		tag, ok := PlainFormat(n)
		assert.True(t, ok)
		assert.Equal(t, n, tag.NDims())
		assert.Equal(t, "abcdefghijkl"[:n], tag.String())
	}
	_, ok := PlainFormat(MaxDims + 1)
	assert.False(t, ok)
	_, ok = PlainFormat(0)
	assert.False(t, ok)
}

func TestEnumNames(t *testing.T) {
	assert.Equal(t, "bf16", BF16.String())
	assert.Equal(t, "undef", DataTypeUndef.String())
	assert.Equal(t, "gpu", GPU.String())
	assert.Equal(t, "unknown", EngineKind(7).String())
	assert.Equal(t, "backward_data", PropBackwardData.String())
}
