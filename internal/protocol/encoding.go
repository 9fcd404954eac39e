package protocol

import (
	"encoding/binary"
	"math"
	"strings"
)

// Encoding selects how coefficients are written into stream packets
type Encoding int

const (
	EncodingFloat Encoding = iota // IEEE-754 float32, little-endian
	EncodingFixed                 // Q31 fixed-point int32, little-endian
)

// EncodingFromDataType maps the receiver-reported DType to an encoding.
// Anything other than "float" is treated as fixed-point.
func EncodingFromDataType(dataType string) Encoding {
	if strings.EqualFold(dataType, "float") {
		return EncodingFloat
	}
	return EncodingFixed
}

// IsFixedPointInit reports whether the receiver needs the INIT/FINZ coefficient handshake
func IsFixedPointInit(dataType string) bool {
	return strings.EqualFold(dataType, "fixeda")
}

// String returns the encoding name
func (e Encoding) String() string {
	switch e {
	case EncodingFloat:
		return "float32"
	case EncodingFixed:
		return "fixed-q31"
	default:
		return "unknown"
	}
}

// Encode converts coefficients into their wire bytes
func (e Encoding) Encode(coefficients []float64) []byte {
	out := make([]byte, 0, len(coefficients)*BytesPerCoefficient)
	for _, c := range coefficients {
		if e == EncodingFloat {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(c)))
		} else {
			out = binary.LittleEndian.AppendUint32(out, uint32(FixedQ31(c)))
		}
	}
	return out
}

// FixedQ31 converts f to a saturating Q31 fixed-point value
func FixedQ31(f float64) int32 {
	abs := math.Abs(f)
	if abs >= 1.0 {
		if f < 0 {
			return math.MinInt32
		}
		return math.MaxInt32
	}

	fixed := math.Round(abs * 2147483648.0)
	if fixed > math.MaxInt32 {
		fixed = math.MaxInt32
	}
	if f < 0 {
		return -int32(fixed)
	}
	return int32(fixed)
}
