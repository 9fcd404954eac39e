package dsp

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func impulse(n int) []float64 {
	x := make([]float64, n)
	x[0] = 1.0
	return x
}

func TestDecompose(t *testing.T) {
	taps := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	f, err := Decompose(taps, 4)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	expected := [][]float64{{0, 4, 8}, {1, 5, 9}, {2, 6}, {3, 7}}
	if len(f.Phases) != len(expected) {
		t.Fatalf("Expected %d phases, got %d", len(expected), len(f.Phases))
	}
	for p := range expected {
		if len(f.Phases[p]) != len(expected[p]) {
			t.Fatalf("Phase %d: expected %v, got %v", p, expected[p], f.Phases[p])
		}
		for i := range expected[p] {
			if f.Phases[p][i] != expected[p][i] {
				t.Errorf("Phase %d: expected %v, got %v", p, expected[p], f.Phases[p])
			}
		}
	}
	if f.TapCount != 10 {
		t.Errorf("Expected tap count 10, got %d", f.TapCount)
	}

	if _, err := Decompose(nil, 4); !errors.Is(err, ErrInvalidBank) {
		t.Errorf("Expected ErrInvalidBank for empty taps, got %v", err)
	}
	if _, err := Decompose(taps, 0); !errors.Is(err, ErrInvalidBank) {
		t.Errorf("Expected ErrInvalidBank for zero factor, got %v", err)
	}
}

func TestPolyphaseMatchesDirectDecimation(t *testing.T) {
	signal := make([]float64, 50)
	for i := range signal {
		signal[i] = math.Sin(float64(i) * 0.3)
	}

	f, _ := Decompose(sub29Taps, DecimationFactor)
	got := f.Decimate(signal)

	// Full convolution followed by keeping every 4th sample
	full := make([]float64, len(signal)+len(sub29Taps)-1)
	for n := range full {
		for k, tap := range sub29Taps {
			if n-k >= 0 && n-k < len(signal) {
				full[n] += tap * signal[n-k]
			}
		}
	}

	expectedLen := (len(full) + DecimationFactor - 1) / DecimationFactor
	if len(got) != expectedLen {
		t.Fatalf("Expected %d samples, got %d", expectedLen, len(got))
	}
	for k := range got {
		if math.Abs(got[k]-full[k*DecimationFactor]) > 1e-12 {
			t.Errorf("Sample %d: expected %g, got %g", k, full[k*DecimationFactor], got[k])
		}
	}

	viaPhases := PolyphaseDecimate(signal, f.Phases, DecimationFactor, f.TapCount)
	if len(viaPhases) != len(got) {
		t.Errorf("PolyphaseDecimate length %d differs from %d", len(viaPhases), len(got))
	}

	if out := f.Decimate(nil); out != nil {
		t.Errorf("Expected nil output for empty signal, got %v", out)
	}
}

func TestWindow(t *testing.T) {
	w := Window(11)
	if len(w) != 11 {
		t.Fatalf("Expected 11 points, got %d", len(w))
	}
	if math.Abs(w[0]-0.08) > 1e-12 || math.Abs(w[10]-0.08) > 1e-12 {
		t.Errorf("Expected Hamming edges of 0.08, got %g and %g", w[0], w[10])
	}
	if math.Abs(w[5]-1.0) > 1e-12 {
		t.Errorf("Expected peak of 1.0 at the midpoint, got %g", w[5])
	}

	hann := RaisedCosine(5, 0.5, 0.5, 0)
	if hann[0] != 0 || math.Abs(hann[2]-1.0) > 1e-12 {
		t.Errorf("Unexpected Hann window %v", hann)
	}

	if Window(0) != nil {
		t.Errorf("Expected nil window for zero length")
	}
	if single := Window(1); len(single) != 1 {
		t.Errorf("Expected one point, got %v", single)
	}
}

func TestBanksValidate(t *testing.T) {
	for _, bank := range DefaultBanks() {
		t.Run(bank.Name, func(t *testing.T) {
			if err := bank.Validate(); err != nil {
				t.Errorf("Expected valid bank but got: %v", err)
			}
			if bank.BandTotal() > bank.OutputLength {
				t.Errorf("Band total %d exceeds output length %d", bank.BandTotal(), bank.OutputLength)
			}
		})
	}

	bad := &Bank{
		Name:         "short",
		InputLength:  100,
		OutputLength: 10,
		Bands: []Band{
			{Length: 5, Filter: sub29, DelayCompensation: true},
			{Length: 5},
		},
	}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidBank) {
		t.Errorf("Expected ErrInvalidBank, got %v", err)
	}
}

func TestBandDelay(t *testing.T) {
	tests := []struct {
		name     string
		band     Band
		expected int
	}{
		{"sub29", Band{Length: 0x60, Filter: sub29, DelayCompensation: true}, 42},
		{"sub37", Band{Length: 0x60, Filter: sub37, DelayCompensation: true}, 54},
		{"sub93", Band{Length: 0x100, Filter: sub93, DelayCompensation: true}, 138},
		{"sat129", Band{Length: 0x100, Filter: sat129, DelayCompensation: true}, 192},
		{"uncompensated", Band{Length: 0x100, Filter: sat129}, 0},
		{"baseband", Band{Length: 0xEF}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.band.Delay(); got != tt.expected {
				t.Errorf("Expected delay %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestProcessBand(t *testing.T) {
	bank := SubwooferBank()
	residual := make([]float64, 200)
	for i := range residual {
		residual[i] = 1.0
	}

	out, next, err := ProcessBand(residual, 0, bank)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if len(out) != 0x60 {
		t.Fatalf("Expected %d band samples, got %d", 0x60, len(out))
	}

	// Delay span is copied verbatim
	for i := 0; i < 42; i++ {
		if out[i] != 1.0 {
			t.Fatalf("Sample %d: expected verbatim 1.0, got %g", i, out[i])
		}
	}
	// Windowed span decays from just under 1 toward the window edge
	if out[42] >= 1.0 || out[42] <= 0.9 {
		t.Errorf("Expected first windowed sample just under 1, got %g", out[42])
	}
	if out[0x5F] >= out[42] {
		t.Errorf("Expected window to fall off, got %g then %g", out[42], out[0x5F])
	}

	// carry = winLen difference samples + untouched tail, then decimated
	carry := (0x60 - 42) + (200 - 0x60)
	expectedNext := (carry + len(sub29Taps) - 1 + DecimationFactor - 1) / DecimationFactor
	if len(next) != expectedNext {
		t.Errorf("Expected %d residual samples, got %d", expectedNext, len(next))
	}

	if _, _, err := ProcessBand(residual, 3, bank); !errors.Is(err, ErrInvalidBank) {
		t.Errorf("Expected ErrInvalidBank for the baseband index, got %v", err)
	}
}

func TestConvertIfOversized(t *testing.T) {
	logger := testLogger()

	tests := []struct {
		name     string
		length   int
		expected int
		outcome  Outcome
	}{
		{"subwoofer", SubwooferInputLength, SubwooferOutputLength, OutcomeDecimated},
		{"speaker", SpeakerInputLength, SpeakerOutputLength, OutcomeDecimated},
		{"already fits", 704, 704, OutcomePassthrough},
		{"multeq speaker", 127, 127, OutcomePassthrough},
		{"off by one", SubwooferInputLength - 1, SubwooferInputLength - 1, OutcomePassthrough},
	}

	converter := NewConverter(logger)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := impulse(tt.length)
			out, outcome := converter.Convert(in)
			if outcome != tt.outcome {
				t.Errorf("Expected outcome %s, got %s", tt.outcome, outcome)
			}
			if len(out) != tt.expected {
				t.Errorf("Expected %d coefficients, got %d", tt.expected, len(out))
			}
			if tt.outcome == OutcomePassthrough && &out[0] != &in[0] {
				t.Errorf("Expected passthrough to return the input slice")
			}
			if len(ConvertIfOversized(in, logger)) != tt.expected {
				t.Errorf("ConvertIfOversized disagrees with Converter for %s", tt.name)
			}
		})
	}
}

func TestConvertKeepsImpulseHead(t *testing.T) {
	out, outcome := NewConverter(testLogger()).Convert(impulse(SpeakerInputLength))
	if outcome != OutcomeDecimated {
		t.Fatalf("Expected decimation, got %s", outcome)
	}

	// The impulse sits inside the first band's delay span
	if out[0] != 1.0 {
		t.Errorf("Expected leading coefficient 1.0, got %g", out[0])
	}
	for i := 1; i < 0x100; i++ {
		if out[i] != 0 {
			t.Fatalf("Expected zero at %d, got %g", i, out[i])
		}
	}

	// Zero padding between the band total and the output length
	bank := SpeakerBank()
	for i := bank.BandTotal(); i < bank.OutputLength; i++ {
		if out[i] != 0 {
			t.Fatalf("Expected zero padding at %d, got %g", i, out[i])
		}
	}
}

func TestConvertFallsBackOnBrokenBank(t *testing.T) {
	broken := &Bank{
		Name:         "broken",
		InputLength:  64,
		OutputLength: 8,
		Bands: []Band{
			{Length: 4, Filter: sub29, DelayCompensation: true},
			{Length: 4},
		},
	}

	in := impulse(64)
	out, outcome := NewConverter(testLogger(), broken).Convert(in)
	if outcome != OutcomeFallback {
		t.Errorf("Expected fallback, got %s", outcome)
	}
	if len(out) != len(in) {
		t.Errorf("Expected original %d coefficients, got %d", len(in), len(out))
	}
}
