package simd

import (
	"math"
	"testing"
)

func TestVecAdd(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{10, 20, 30, 40, 50}
	expected := []float32{11, 22, 33, 44, 55}
	dst := make([]float32, len(a))

	VecAdd(dst, a, b)

	for i, v := range dst {
		if v != expected[i] {
			t.Errorf("VecAdd(%d) = %f, want %f", i, v, expected[i])
		}
	}
}

func TestVecMul(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{2, 2, 2, 2, 2, 0.5}
	expected := []float32{2, 4, 6, 8, 10, 3}
	dst := make([]float32, len(a))

	VecMul(dst, a, b)

	for i, v := range dst {
		if v != expected[i] {
			t.Errorf("VecMul(%d) = %f, want %f", i, v, expected[i])
		}
	}
}

func TestVecAddScaled(t *testing.T) {
	dst := []float32{1, 2, 3, 4, 5}
	src := []float32{10, 20, 30, 40, 50}
	expected := []float32{6, 12, 18, 24, 30}

	VecAddScaled(dst, src, 0.5)

	for i, v := range dst {
		if v != expected[i] {
			t.Errorf("VecAddScaled(%d) = %f, want %f", i, v, expected[i])
		}
	}
}

func TestVecScale(t *testing.T) {
	dst := []float32{1, -2, 3}
	VecScale(dst, -2)
	expected := []float32{-2, 4, -6}
	for i, v := range dst {
		if v != expected[i] {
			t.Errorf("VecScale(%d) = %f, want %f", i, v, expected[i])
		}
	}
}

func TestDotProduct(t *testing.T) {
	a := []float32{1, 2, 3, 4, 5}
	b := []float32{2, 3, 4, 5, 6}
	// 2 + 6 + 12 + 20 + 30 = 70
	if got := DotProduct(a, b); got != 70 {
		t.Errorf("DotProduct = %f, want 70", got)
	}
}

func TestSumAndMeanVar(t *testing.T) {
	v := []float32{1, 2, 3, 4, 5, 6, 7}
	if got := Sum(v); got != 28 {
		t.Errorf("Sum = %f, want 28", got)
	}
	mean, variance := MeanVar(v)
	if mean != 4 {
		t.Errorf("mean = %f, want 4", mean)
	}
	if math.Abs(variance-4) > 1e-12 {
		t.Errorf("variance = %f, want 4", variance)
	}

	mean, variance = MeanVar(nil)
	if mean != 0 || variance != 0 {
		t.Errorf("MeanVar(nil) = %f, %f", mean, variance)
	}
}

func TestMatVecMul(t *testing.T) {
	mat := []float32{
		1, 2, 3,
		4, 5, 6,
	}
	vec := []float32{1, 2, 3}
	dst := make([]float32, 2)

	// Row 0: 1+4+9 = 14, Row 1: 4+10+18 = 32
	MatVecMul(dst, mat, vec, 2, 3)

	if dst[0] != 14 || dst[1] != 32 {
		t.Errorf("MatVecMul = %v, want [14 32]", dst)
	}
}

func BenchmarkDotProduct(b *testing.B) {
	x := make([]float32, 1024)
	y := make([]float32, 1024)
	for i := range x {
		x[i] = float32(i) * 0.001
		y[i] = float32(1024-i) * 0.001
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DotProduct(x, y)
	}
}
