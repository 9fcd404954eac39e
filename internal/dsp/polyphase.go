package dsp

import (
	"fmt"
	"math"
)

// DecimationFactor is the downsampling ratio applied between bands
const DecimationFactor = 4

// Polyphase is an FIR filter split into M interleaved sub-filters
type Polyphase struct {
	Phases   [][]float64
	TapCount int // Length of the prototype filter
	Factor   int
}

// Decompose splits taps into m polyphase sub-filters.
// Phase p holds taps p, p+m, p+2m, ...
func Decompose(taps []float64, m int) (*Polyphase, error) {
	if m <= 0 {
		return nil, fmt.Errorf("decimation factor must be positive, got %d: %w", m, ErrInvalidBank)
	}
	if len(taps) == 0 {
		return nil, fmt.Errorf("empty tap table: %w", ErrInvalidBank)
	}

	phases := make([][]float64, m)
	for p := 0; p < m; p++ {
		phases[p] = make([]float64, 0, (len(taps)+m-1)/m)
		for n := p; n < len(taps); n += m {
			phases[p] = append(phases[p], taps[n])
		}
	}

	return &Polyphase{
		Phases:   phases,
		TapCount: len(taps),
		Factor:   m,
	}, nil
}

// OutputLength returns the decimated length for an input of n samples
func (f *Polyphase) OutputLength(n int) int {
	if n <= 0 || f.TapCount == 0 {
		return 0
	}
	return int(math.Ceil(float64(n+f.TapCount-1) / float64(f.Factor)))
}

// Decimate filters signal and keeps every Factor-th sample of the full convolution.
// y[k] = sum over p, i of Phases[p][i] * signal[(k-i)*Factor - p]
func (f *Polyphase) Decimate(signal []float64) []float64 {
	outLen := f.OutputLength(len(signal))
	if outLen == 0 {
		return nil
	}

	out := make([]float64, outLen)
	for k := 0; k < outLen; k++ {
		var acc float64
		for p, phase := range f.Phases {
			for i, tap := range phase {
				idx := (k-i)*f.Factor - p
				if idx < 0 {
					// Later taps only move further left
					break
				}
				if idx < len(signal) {
					acc += tap * signal[idx]
				}
			}
		}
		out[k] = acc
	}

	return out
}

// PolyphaseDecimate runs a decomposed filter over signal.
// It mirrors Polyphase.Decimate for callers holding only the phase slices.
func PolyphaseDecimate(signal []float64, phases [][]float64, m, tapCount int) []float64 {
	if m <= 0 || len(phases) != m {
		return nil
	}
	f := &Polyphase{Phases: phases, TapCount: tapCount, Factor: m}
	return f.Decimate(signal)
}
