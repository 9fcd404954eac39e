// Package dsp reshapes oversized room-correction impulse responses into the
// receiver's banded coefficient layout.
// It implements polyphase FIR decomposition, factor-4 polyphase decimation,
// raised-cosine band windowing and the sequential multiband transform used by
// the XT32 speaker and subwoofer coefficient banks.
package dsp
