package dsp

import (
	"fmt"
	"log/slog"
)

// ProcessBand windows the head of residual into band bandIndex of bank and
// returns the band output together with the decimated residual for the next band.
func ProcessBand(residual []float64, bandIndex int, bank *Bank) ([]float64, []float64, error) {
	if bandIndex < 0 || bandIndex >= len(bank.Bands)-1 {
		return nil, nil, fmt.Errorf("band %d is not a decimating band of %s: %w", bandIndex, bank.Name, ErrInvalidBank)
	}

	band := bank.Bands[bandIndex]
	if band.Filter == nil || band.Filter.TapCount == 0 {
		return nil, nil, fmt.Errorf("band %d of %s has no decimation filter: %w", bandIndex, bank.Name, ErrInvalidBank)
	}

	delay := band.Delay()
	winLen := band.Length - delay
	if winLen < 0 {
		return nil, nil, fmt.Errorf("band %d of %s: negative window length %d: %w", bandIndex, bank.Name, winLen, ErrInvalidBank)
	}

	// Only the falling half of the window past its midpoint is used
	winAlloc := winLen*2 + 3
	window := Window(winAlloc)
	offset := winAlloc/2 + 1

	out := make([]float64, band.Length)
	for i := 0; i < delay && i < len(residual); i++ {
		out[i] = residual[i]
	}
	for i := 0; i < winLen; i++ {
		idx := delay + i
		if idx >= len(residual) {
			break
		}
		out[idx] = residual[idx] * window[offset+i]
	}

	// What the window removed is carried to the next, lower-rate band
	tail := 0
	if len(residual) > band.Length {
		tail = len(residual) - band.Length
	}
	carry := make([]float64, 0, winLen+tail)
	for i := 0; i < winLen; i++ {
		idx := delay + i
		if idx < len(residual) {
			carry = append(carry, residual[idx]-out[idx])
		} else {
			carry = append(carry, 0)
		}
	}
	if tail > 0 {
		carry = append(carry, residual[band.Length:]...)
	}

	next := band.Filter.Decimate(carry)
	for i := range next {
		next[i] *= float64(band.Filter.Factor)
	}

	return out, next, nil
}

// Multirate runs the full multiband transform of impulse over bank
func Multirate(impulse []float64, bank *Bank) ([]float64, error) {
	if err := bank.Validate(); err != nil {
		return nil, err
	}

	out := make([]float64, bank.OutputLength)
	residual := make([]float64, len(impulse))
	copy(residual, impulse)

	offset := 0
	for i := 0; i < len(bank.Bands)-1; i++ {
		band, next, err := ProcessBand(residual, i, bank)
		if err != nil {
			return nil, err
		}
		copy(out[offset:offset+bank.Bands[i].Length], band)
		offset += bank.Bands[i].Length
		residual = next
	}

	// Baseband remainder goes out undecimated
	last := bank.Bands[len(bank.Bands)-1]
	n := min(last.Length, len(residual))
	copy(out[offset:offset+n], residual[:n])

	return out, nil
}

// Outcome reports what ConvertIfOversized did with its input
type Outcome int

const (
	OutcomePassthrough Outcome = iota // Length not recognized; input returned as-is
	OutcomeDecimated                  // Input reshaped to a bank layout
	OutcomeFallback                   // Transform failed; input returned as-is
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomePassthrough:
		return "passthrough"
	case OutcomeDecimated:
		return "decimated"
	case OutcomeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Converter dispatches coefficient arrays to the bank matching their length
type Converter struct {
	banks  []*Bank
	logger *slog.Logger
}

// NewConverter creates a converter over banks, or DefaultBanks when none are given
func NewConverter(logger *slog.Logger, banks ...*Bank) *Converter {
	if len(banks) == 0 {
		banks = DefaultBanks()
	}
	return &Converter{
		banks:  banks,
		logger: logger,
	}
}

// Bank returns the bank recognizing inputs of length n
func (c *Converter) Bank(n int) (*Bank, bool) {
	for _, bank := range c.banks {
		if bank.InputLength == n {
			return bank, true
		}
	}
	return nil, false
}

// Convert reshapes taps when their length matches a known bank.
// Any failure is logged and degrades to returning taps unchanged.
func (c *Converter) Convert(taps []float64) ([]float64, Outcome) {
	bank, ok := c.Bank(len(taps))
	if !ok {
		return taps, OutcomePassthrough
	}

	out, err := Multirate(taps, bank)
	if err == nil && len(out) != bank.OutputLength {
		err = fmt.Errorf("%s produced %d coefficients, expected %d: %w", bank.Name, len(out), bank.OutputLength, ErrOutputLength)
	}
	if err != nil {
		c.logger.Warn("Decimation failed, sending original coefficients",
			slog.String("bank", bank.Name),
			slog.Int("input_length", len(taps)),
			slog.String("error", err.Error()))
		return taps, OutcomeFallback
	}

	c.logger.Debug("Decimated coefficients",
		slog.String("bank", bank.Name),
		slog.Int("input_length", len(taps)),
		slog.Int("output_length", len(out)))

	return out, OutcomeDecimated
}

// ConvertIfOversized reshapes taps with the default banks
func ConvertIfOversized(taps []float64, logger *slog.Logger) []float64 {
	out, _ := NewConverter(logger).Convert(taps)
	return out
}
