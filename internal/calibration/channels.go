package calibration

import (
	"fmt"
	"strings"
)

// noByte marks a channel code that does not exist in a numbering scheme
const noByte = -1

// channelBytes holds one channel's code in each numbering scheme
type channelBytes struct {
	xt32   int // XT32 numbering
	legacy int // MultEQ and XT numbering
	altDSP int // Receivers with the alternate (Griffin Lite) DSP
}

var channelByteTable = map[string]channelBytes{
	"FL":     {0x00, 0x00, 0x00},
	"C":      {0x01, 0x01, 0x01},
	"FR":     {0x02, 0x02, 0x02},
	"FWR":    {0x15, 0x15, 0x15},
	"SRA":    {0x03, 0x03, 0x03},
	"SRB":    {noByte, 0x07, noByte},
	"SBR":    {0x07, 0x07, 0x07},
	"SBL":    {0x08, 0x08, 0x08},
	"SLB":    {noByte, 0x0d, noByte},
	"SLA":    {0x0c, 0x0c, 0x0c},
	"FWL":    {0x1c, 0x1c, 0x1c},
	"FHL":    {0x10, 0x10, 0x10},
	"CH":     {0x12, 0x12, 0x12},
	"FHR":    {0x14, 0x14, 0x14},
	"TFR":    {0x04, 0x04, 0x04},
	"TMR":    {0x05, 0x05, 0x05},
	"TRR":    {0x06, 0x06, 0x06},
	"SHR":    {0x16, 0x16, 0x16},
	"RHR":    {0x13, 0x17, 0x13},
	"TS":     {0x1d, 0x1d, 0x1d},
	"RHL":    {0x11, 0x1a, 0x11},
	"SHL":    {0x1b, 0x1b, 0x1b},
	"TRL":    {0x09, 0x09, 0x09},
	"TML":    {0x0a, 0x0a, 0x0a},
	"TFL":    {0x0b, 0x0b, 0x0b},
	"FDL":    {0x1a, 0x1a, 0x1a},
	"FDR":    {0x17, 0x17, 0x17},
	"SDR":    {0x18, 0x18, 0x18},
	"BDR":    {0x18, 0x00, 0x1f},
	"SDL":    {0x19, 0x19, 0x19},
	"BDL":    {0x19, 0x00, 0x20},
	"LFE":    {0x0d, 0x0d, 0x0d},
	"SW1":    {0x0d, 0x0d, 0x0d},
	"SW2":    {0x0e, 0x0e, 0x0e},
	"SW3":    {0x21, 0x21, 0x21},
	"SW4":    {0x22, 0x22, 0x22},
	"SWMIX1": {0x0d, 0x0d, 0x0d},
	"SWMIX2": {0x0e, 0x0e, 0x0e},
	"SWMIX3": {0x21, 0x21, 0x21},
	"SWMIX4": {0x22, 0x22, 0x22},
}

// mixedSubwooferPrefix marks the aliased ids of subwoofers in mixed mode
const mixedSubwooferPrefix = "SWMIX"

// NormalizeChannelID collapses mixed-subwoofer aliases (SWMIXn) onto their base id (SWn)
func NormalizeChannelID(id string) string {
	if suffix, ok := strings.CutPrefix(id, mixedSubwooferPrefix); ok && len(suffix) == 1 && suffix >= "1" && suffix <= "4" {
		return "SW" + suffix
	}
	return id
}

// IsSubwoofer reports whether id addresses a subwoofer output
func IsSubwoofer(id string) bool {
	id = NormalizeChannelID(id)
	return strings.HasPrefix(id, "SW") || id == "LFE"
}

// ChannelByte returns the receiver byte code for id.
// On alternate-DSP receivers the dedicated code wins when it exists; otherwise
// the eq type's numbering scheme decides. A code missing from the selected
// scheme is an error, never a default.
func ChannelByte(id string, eqType EQType, altDSP bool) (byte, error) {
	entry, ok := channelByteTable[id]
	if !ok {
		return 0, fmt.Errorf("%s: %w", id, ErrUnknownChannel)
	}

	if altDSP && entry.altDSP != noByte {
		return byte(entry.altDSP), nil
	}

	var code int
	switch eqType {
	case EQTypeXT32:
		code = entry.xt32
	case EQTypeMultEQ, EQTypeXT:
		code = entry.legacy
	default:
		return 0, fmt.Errorf("%d: %w", int(eqType), ErrUnsupportedEQType)
	}

	if code == noByte {
		return 0, fmt.Errorf("%s with %s: %w", id, eqType, ErrNoChannelByte)
	}
	return byte(code), nil
}
