// Package avrsim implements a simulated AV receiver control port.
// It frames and validates incoming packets with the protocol codec, answers
// info and status queries from configured JSON, acknowledges commands the way
// receiver firmware does, and records everything it receives so tests can
// assert on the exact byte stream of a transfer.
package avrsim
