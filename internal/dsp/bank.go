package dsp

import "fmt"

// Band is one output segment of a decimation bank
type Band struct {
	Length            int        // Coefficients written to the output for this band
	Filter            *Polyphase // Anti-aliasing decimator; nil for the final baseband remainder
	DelayCompensation bool       // Copy the filter's group delay span through unwindowed
}

// Delay returns the number of leading residual samples copied through verbatim
func (b Band) Delay() int {
	if !b.DelayCompensation || b.Filter == nil {
		return 0
	}
	return (b.Filter.TapCount*3 - 3) / 2
}

// Bank describes how one recognized input length maps to the receiver's coefficient layout
type Bank struct {
	Name         string
	InputLength  int
	OutputLength int
	Bands        []Band
}

// Recognized XT32 layouts
const (
	SubwooferInputLength  = 0x3EB7
	SubwooferOutputLength = 0x2C0
	SpeakerInputLength    = 0x3FC1
	SpeakerOutputLength   = 0x3FF
)

var (
	sub29  = mustDecompose(sub29Taps)
	sub37  = mustDecompose(sub37Taps)
	sub93  = mustDecompose(sub93Taps)
	sat129 = mustDecompose(sat129Taps)
)

func mustDecompose(taps []float64) *Polyphase {
	f, err := Decompose(taps, DecimationFactor)
	if err != nil {
		panic(err)
	}
	return f
}

// SubwooferBank returns the XT32 subwoofer layout
func SubwooferBank() *Bank {
	return &Bank{
		Name:         "xt32-subwoofer",
		InputLength:  SubwooferInputLength,
		OutputLength: SubwooferOutputLength,
		Bands: []Band{
			{Length: 0x60, Filter: sub29, DelayCompensation: true},
			{Length: 0x60, Filter: sub37, DelayCompensation: true},
			{Length: 0x100, Filter: sub93, DelayCompensation: true},
			{Length: 0xEF},
		},
	}
}

// SpeakerBank returns the XT32 speaker layout
func SpeakerBank() *Bank {
	return &Bank{
		Name:         "xt32-speaker",
		InputLength:  SpeakerInputLength,
		OutputLength: SpeakerOutputLength,
		Bands: []Band{
			{Length: 0x100, Filter: sat129, DelayCompensation: true},
			{Length: 0x100, Filter: sat129, DelayCompensation: true},
			{Length: 0x100, Filter: sat129, DelayCompensation: true},
			{Length: 0xEB},
		},
	}
}

// DefaultBanks returns every bank recognized by ConvertIfOversized
func DefaultBanks() []*Bank {
	return []*Bank{SpeakerBank(), SubwooferBank()}
}

// BandTotal returns the sum of all band lengths.
// The output is zero-padded from BandTotal up to OutputLength.
func (b *Bank) BandTotal() int {
	total := 0
	for _, band := range b.Bands {
		total += band.Length
	}
	return total
}

// Validate checks that the bank can produce its configured layout
func (b *Bank) Validate() error {
	if len(b.Bands) < 1 {
		return fmt.Errorf("bank %s has no bands: %w", b.Name, ErrInvalidBank)
	}

	for i, band := range b.Bands {
		last := i == len(b.Bands)-1
		if band.Length < 0 {
			return fmt.Errorf("bank %s band %d has negative length: %w", b.Name, i, ErrInvalidBank)
		}
		if !last && band.Filter == nil {
			return fmt.Errorf("bank %s band %d has no decimation filter: %w", b.Name, i, ErrInvalidBank)
		}
		if !last && band.Filter.TapCount == 0 {
			return fmt.Errorf("bank %s band %d has an empty decimation filter: %w", b.Name, i, ErrInvalidBank)
		}
		if band.Length-band.Delay() < 0 {
			return fmt.Errorf("bank %s band %d: delay %d exceeds band length %d: %w",
				b.Name, i, band.Delay(), band.Length, ErrInvalidBank)
		}
	}

	if total := b.BandTotal(); total > b.OutputLength {
		return fmt.Errorf("bank %s bands total %d exceeds output length %d: %w",
			b.Name, total, b.OutputLength, ErrInvalidBank)
	}

	return nil
}
