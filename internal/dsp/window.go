package dsp

import "math"

// Hamming coefficients used for band windowing
const (
	HammingA = 0.54
	HammingB = 0.46
	HammingC = 0.0
)

// RaisedCosine generates an n-point generalized cosine window:
// w[i] = a + c*cos(4*pi*t) - b*cos(2*pi*t), t = i/(n-1)
func RaisedCosine(n int, a, b, c float64) []float64 {
	if n <= 0 {
		return nil
	}

	step := 1.0
	if n > 1 {
		step = 1.0 / float64(n-1)
	}

	w := make([]float64, n)
	for i := range w {
		t := float64(i) * step
		w[i] = a + c*math.Cos(4*math.Pi*t) - b*math.Cos(2*math.Pi*t)
	}
	return w
}

// Window returns the n-point Hamming window applied to each band
func Window(n int) []float64 {
	return RaisedCosine(n, HammingA, HammingB, HammingC)
}
