// Package protocol implements the receiver's binary command protocol.
// It builds and parses tagged command packets and coefficient stream packets,
// computes the trailing modulo-256 checksum, plans how coefficient arrays are
// split across packets, and classifies receiver responses into ACK, NAK and
// INPROGRESS outcomes.
package protocol
