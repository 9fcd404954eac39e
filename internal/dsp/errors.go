package dsp

import "errors"

var (
	// ErrInvalidBank means a band bank or tap table cannot produce a valid layout
	ErrInvalidBank = errors.New("invalid decimation bank")

	// ErrOutputLength means the transform did not produce the bank's configured total
	ErrOutputLength = errors.New("decimation output length mismatch")
)
