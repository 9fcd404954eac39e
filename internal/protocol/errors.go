package protocol

import "errors"

var (
	ErrPayloadTooLarge   = errors.New("payload exceeds 16-bit length field")
	ErrPacketTooShort    = errors.New("packet too short")
	ErrBadMarker         = errors.New("invalid packet marker")
	ErrChecksum          = errors.New("checksum mismatch")
	ErrLengthMismatch    = errors.New("packet length mismatch")
	ErrEmptyCoefficients = errors.New("coefficient array is empty")
)
