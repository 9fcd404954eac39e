package protocol

import "bytes"

// Verdict is the classification of the bytes received so far for one command
type Verdict int

const (
	VerdictPending    Verdict = iota // Keep waiting
	VerdictAcked                     // Receiver accepted the command
	VerdictRejected                  // Receiver rejected the command
	VerdictInProgress                // Receiver is still working; extend the deadline
)

// ResponseCeiling is the buffered response size past which a command fails
const ResponseCeiling = 2048

// Response tokens
var (
	RejectTokens    = [][]byte{[]byte("NAK"), []byte("NACK"), []byte("ERROR")}
	AckToken        = []byte("ACK")
	InProgressToken = []byte("INPROGRESS")
)

// Classify inspects the accumulated response buffer.
// Reject tokens win over everything else; ACK only counts when one is expected.
func Classify(buf []byte, expectAck bool) Verdict {
	for _, token := range RejectTokens {
		if bytes.Contains(buf, token) {
			return VerdictRejected
		}
	}

	if expectAck && bytes.Contains(buf, AckToken) {
		return VerdictAcked
	}

	if bytes.Contains(buf, InProgressToken) {
		return VerdictInProgress
	}

	return VerdictPending
}

// String returns the verdict name
func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "pending"
	case VerdictAcked:
		return "acked"
	case VerdictRejected:
		return "rejected"
	case VerdictInProgress:
		return "in_progress"
	default:
		return "unknown"
	}
}

// ExtractJSON returns the bytes between the first '{' and the last '}' of buf
func ExtractJSON(buf []byte) ([]byte, bool) {
	start := bytes.IndexByte(buf, '{')
	end := bytes.LastIndexByte(buf, '}')
	if start < 0 || end < 0 || end <= start {
		return nil, false
	}
	return buf[start : end+1], true
}
