package transport

import "errors"

var (
	ErrRejected   = errors.New("receiver rejected command")
	ErrTimeout    = errors.New("no response received")
	ErrOverflow   = errors.New("no valid response (buffer overflow)")
	ErrConnection = errors.New("connection error")
	ErrClosed     = errors.New("transport closed")
	ErrBadJSON    = errors.New("malformed JSON response")
)
