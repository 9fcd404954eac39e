package calibration

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleOCA = `{
  "eqType": 2,
  "lpfForLFE": 120,
  "hasGriffinLiteDSP": false,
  "ampAssignBin": "0101",
  "channels": [
    {"commandId": "FL", "filter": [1, 0, 0], "filterLV": [0.5, 0, 0], "distanceInMeters": 3.12, "trimAdjustmentInDbs": -1.5, "xover": 80},
    {"commandId": "SWMIX1", "filter": [1], "filterLV": [1], "distanceInMeters": 2.5, "trimAdjustmentInDbs": 0, "xover": "120"},
    {"commandId": "C", "filter": [], "filterLV": [1]}
  ]
}`

func TestParse(t *testing.T) {
	file, err := Parse([]byte(sampleOCA))
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	if file.EQType != EQTypeXT32 {
		t.Errorf("Expected XT32, got %s", file.EQType)
	}
	if file.LowPassForLFE != 120 {
		t.Errorf("Expected LPF 120, got %v", file.LowPassForLFE)
	}
	if file.AmpAssignBinary != "0101" {
		t.Errorf("Expected ampAssignBin 0101, got %s", file.AmpAssignBinary)
	}
	if len(file.Channels) != 3 {
		t.Fatalf("Expected 3 channels, got %d", len(file.Channels))
	}

	fl := file.Channels[0]
	if *fl.DistanceMeters != 3.12 || *fl.TrimDB != -1.5 {
		t.Errorf("Unexpected FL distance/trim %v/%v", *fl.DistanceMeters, *fl.TrimDB)
	}
	if hz, ok := fl.CrossoverHz(); !ok || hz != 80 {
		t.Errorf("Expected FL crossover 80, got %v (ok=%v)", hz, ok)
	}

	sub, ok := file.Channel("SW1")
	if !ok || sub.CommandID != "SWMIX1" {
		t.Fatalf("Expected SW1 lookup to find SWMIX1, got %+v", sub)
	}
	if hz, ok := sub.CrossoverHz(); !ok || hz != 120 {
		t.Errorf("Expected string crossover to parse as 120, got %v", hz)
	}

	center, _ := file.Channel("C")
	if center.HasFilters() {
		t.Errorf("Expected center with empty filter to report no filters")
	}
	if center.DistanceMeters != nil {
		t.Errorf("Expected absent distance to stay nil")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		expectError error
	}{
		{"not json", `{"eqType":`, ErrInvalidFile},
		{"missing eqType", `{"channels":[{"commandId":"FL"}]}`, ErrInvalidFile},
		{"bad eqType", `{"eqType":3,"channels":[{"commandId":"FL"}]}`, ErrUnsupportedEQType},
		{"no channels", `{"eqType":0,"channels":[]}`, ErrInvalidFile},
		{"empty commandId", `{"eqType":0,"channels":[{"commandId":" "}]}`, ErrInvalidFile},
		{"alias duplicate", `{"eqType":0,"channels":[{"commandId":"SW1"},{"commandId":"SWMIX1"}]}`, ErrInvalidFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, tt.expectError) {
				t.Errorf("Expected error %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.oca")
	if err := os.WriteFile(path, []byte(sampleOCA), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	file, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if got := file.ChannelIDs(); len(got) != 3 || got[1] != "SWMIX1" {
		t.Errorf("Unexpected channel ids %v", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.oca")); err == nil {
		t.Errorf("Expected error for missing file")
	}
}

func TestNormalizeChannelID(t *testing.T) {
	tests := map[string]string{
		"SWMIX1": "SW1",
		"SWMIX4": "SW4",
		"SWMIX5": "SWMIX5",
		"SW2":    "SW2",
		"FL":     "FL",
		"LFE":    "LFE",
	}

	for in, expected := range tests {
		if got := NormalizeChannelID(in); got != expected {
			t.Errorf("NormalizeChannelID(%s): expected %s, got %s", in, expected, got)
		}
	}

	for _, id := range []string{"SW1", "SWMIX2", "LFE"} {
		if !IsSubwoofer(id) {
			t.Errorf("Expected %s to be a subwoofer", id)
		}
	}
	if IsSubwoofer("SLA") || IsSubwoofer("FL") {
		t.Errorf("Expected speakers not to be subwoofers")
	}
}

func TestCrossoverHz(t *testing.T) {
	tests := []struct {
		raw      string
		expected float64
		ok       bool
	}{
		{`80`, 80, true},
		{`"120"`, 120, true},
		{`" 90 "`, 90, true},
		{`"N/A"`, 0, false},
		{`""`, 0, false},
		{`true`, 0, false},
		{`null`, 0, false},
		{``, 0, false},
	}

	for _, tt := range tests {
		ch := Channel{Crossover: json.RawMessage(tt.raw)}
		hz, ok := ch.CrossoverHz()
		if ok != tt.ok || hz != tt.expected {
			t.Errorf("CrossoverHz(%s): expected %v (ok=%v), got %v (ok=%v)", tt.raw, tt.expected, tt.ok, hz, ok)
		}
	}

	if (&Channel{Crossover: json.RawMessage(`null`)}).HasCrossover() {
		t.Errorf("Expected null xover to count as absent")
	}
	if !(&Channel{Crossover: json.RawMessage(`"N/A"`)}).HasCrossover() {
		t.Errorf("Expected non-numeric xover to be present")
	}
}

func TestChannelByte(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		eqType      EQType
		altDSP      bool
		expected    byte
		expectError error
	}{
		{name: "front left", id: "FL", eqType: EQTypeXT32, expected: 0x00},
		{name: "rear height xt32", id: "RHR", eqType: EQTypeXT32, expected: 0x13},
		{name: "rear height legacy", id: "RHR", eqType: EQTypeXT, expected: 0x17},
		{name: "back dolby legacy", id: "BDL", eqType: EQTypeMultEQ, expected: 0x00},
		{name: "back dolby alt dsp", id: "BDL", eqType: EQTypeXT32, altDSP: true, expected: 0x20},
		{name: "alt dsp falls back to scheme", id: "SRB", eqType: EQTypeXT, altDSP: true, expected: 0x07},
		{name: "mixed sub alias", id: "SWMIX3", eqType: EQTypeXT32, expected: 0x21},
		{name: "legacy only on xt32", id: "SRB", eqType: EQTypeXT32, expectError: ErrNoChannelByte},
		{name: "alt dsp missing on xt32", id: "SLB", eqType: EQTypeXT32, altDSP: true, expectError: ErrNoChannelByte},
		{name: "unknown", id: "XYZ", eqType: EQTypeXT32, expectError: ErrUnknownChannel},
		{name: "bad eq type", id: "FL", eqType: EQType(7), expectError: ErrUnsupportedEQType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChannelByte(tt.id, tt.eqType, tt.altDSP)
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("Expected error %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected 0x%02x, got 0x%02x", tt.expected, got)
			}
		})
	}
}
