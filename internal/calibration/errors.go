package calibration

import "errors"

var (
	ErrInvalidFile       = errors.New("invalid calibration file")
	ErrUnsupportedEQType = errors.New("unsupported eq type")
	ErrUnknownChannel    = errors.New("unknown channel")
	ErrNoChannelByte     = errors.New("no channel byte for eq type")
)
