package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EQType identifies the receiver's room-correction engine
type EQType int

const (
	EQTypeMultEQ EQType = iota
	EQTypeXT
	EQTypeXT32
)

// String returns the engine name
func (e EQType) String() string {
	switch e {
	case EQTypeMultEQ:
		return "MultEQ"
	case EQTypeXT:
		return "XT"
	case EQTypeXT32:
		return "XT32"
	default:
		return fmt.Sprintf("EQType(%d)", int(e))
	}
}

// ParseEQType converts the numeric eqType of an OCA file
func ParseEQType(v int) (EQType, error) {
	switch v {
	case 0:
		return EQTypeMultEQ, nil
	case 1:
		return EQTypeXT, nil
	case 2:
		return EQTypeXT32, nil
	default:
		return 0, fmt.Errorf("eqType %d: %w", v, ErrUnsupportedEQType)
	}
}

// Channel holds the calibration data for one logical channel
type Channel struct {
	CommandID      string          `json:"commandId"`
	ReferenceTaps  []float64       `json:"filter"`
	FlatTaps       []float64       `json:"filterLV"`
	DistanceMeters *float64        `json:"distanceInMeters,omitempty"`
	TrimDB         *float64        `json:"trimAdjustmentInDbs,omitempty"`
	Crossover      json.RawMessage `json:"xover,omitempty"`
}

// HasFilters reports whether both curves carry coefficients
func (c *Channel) HasFilters() bool {
	return len(c.ReferenceTaps) > 0 && len(c.FlatTaps) > 0
}

// CrossoverHz returns the crossover frequency when xover is a number or a
// numeric string. Anything else reports false and is left to the caller.
func (c *Channel) CrossoverHz() (float64, bool) {
	if !c.HasCrossover() {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(c.Crossover, &v); err != nil {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		hz, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return hz, true
	default:
		return 0, false
	}
}

// HasCrossover reports whether the file carries an xover value at all
func (c *Channel) HasCrossover() bool {
	return len(c.Crossover) > 0 && string(c.Crossover) != "null"
}

// File is a parsed OCA calibration file
type File struct {
	EQType          EQType
	LowPassForLFE   float64
	AltDSP          bool // hasGriffinLiteDSP
	AmpAssignBinary string
	Channels        []Channel
}

// Channel returns the calibration channel whose normalized id matches id
func (f *File) Channel(id string) (*Channel, bool) {
	id = NormalizeChannelID(id)
	for i := range f.Channels {
		if NormalizeChannelID(f.Channels[i].CommandID) == id {
			return &f.Channels[i], true
		}
	}
	return nil, false
}

// ChannelIDs returns the command ids in file order
func (f *File) ChannelIDs() []string {
	ids := make([]string, len(f.Channels))
	for i, ch := range f.Channels {
		ids[i] = ch.CommandID
	}
	return ids
}

// fileJSON is the on-disk layout
type fileJSON struct {
	EQType            *int      `json:"eqType"`
	LowPassForLFE     float64   `json:"lpfForLFE"`
	HasGriffinLiteDSP bool      `json:"hasGriffinLiteDSP"`
	AmpAssignBin      string    `json:"ampAssignBin"`
	Channels          []Channel `json:"channels"`
}

// Load reads and validates an OCA file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration file: %w", err)
	}

	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Parse decodes and validates OCA file contents
func Parse(data []byte) (*File, error) {
	var raw fileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse calibration file: %v: %w", err, ErrInvalidFile)
	}

	if raw.EQType == nil {
		return nil, fmt.Errorf("missing eqType: %w", ErrInvalidFile)
	}
	eqType, err := ParseEQType(*raw.EQType)
	if err != nil {
		return nil, err
	}

	file := &File{
		EQType:          eqType,
		LowPassForLFE:   raw.LowPassForLFE,
		AltDSP:          raw.HasGriffinLiteDSP,
		AmpAssignBinary: raw.AmpAssignBin,
		Channels:        raw.Channels,
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file, nil
}

// Validate checks the channel list
func (f *File) Validate() error {
	if len(f.Channels) == 0 {
		return fmt.Errorf("no channels: %w", ErrInvalidFile)
	}

	seen := make(map[string]string, len(f.Channels))
	for i, ch := range f.Channels {
		id := strings.TrimSpace(ch.CommandID)
		if id == "" {
			return fmt.Errorf("channel %d has no commandId: %w", i, ErrInvalidFile)
		}
		norm := NormalizeChannelID(id)
		if prev, ok := seen[norm]; ok {
			return fmt.Errorf("channels %s and %s address the same output: %w", prev, id, ErrInvalidFile)
		}
		seen[norm] = id
	}

	return nil
}
