package memory

import (
	"math"
	"testing"
)

func TestCosine_SelfSimilarity(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	if got := Cosine(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("Cosine(a, a) = %f, want 1", got)
	}
}

func TestCosine_ZeroCases(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
	}{
		{"both empty", nil, nil},
		{"a empty", nil, []float32{1, 2}},
		{"b empty", []float32{1, 2}, nil},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}},
		{"zero norm", []float32{0, 0}, []float32{1, 2}},
	}
	for _, tc := range cases {
		if got := Cosine(tc.a, tc.b); got != 0 {
			t.Errorf("%s: Cosine = %f, want 0", tc.name, got)
		}
	}
}

func TestCosine_Symmetric(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-4, 0.5, 2}
	if Cosine(a, b) != Cosine(b, a) {
		t.Errorf("Cosine not symmetric: %f vs %f", Cosine(a, b), Cosine(b, a))
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("Cosine orthogonal = %f, want 0", got)
	}
}
