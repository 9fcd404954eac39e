package protocol

import (
	"encoding/binary"
	"fmt"
)

// Protocol constants
const (
	// Every packet starts with this marker byte
	Marker = 0x54

	// Separator between the ASCII command name and the payload length field
	NameSeparator = 0x00

	// Receiver control port
	DefaultPort = 1256

	// Packet structure sizes
	LengthFieldSize  = 2
	ChecksumSize     = 1
	TaggedOverhead   = 1 + LengthFieldSize + 1 + 1 + 1 + LengthFieldSize + ChecksumSize // marker, len, seq, last, sep, plen, checksum
	MaxPacketLength  = 0xFFFF
	MaxPayloadLength = 0xFFFF
)

// Fixed command names
const (
	CmdGetInfo           = "GET_AVRINF"
	CmdGetStatus         = "GET_AVRSTS"
	CmdEnterCalibration  = "ENTER_AUDY"
	CmdExitCalibration   = "EXIT_AUDMD"
	CmdSetLayout         = "SET_SETDAT"
	CmdStreamCoefficient = "SET_COEFDT"
	CmdInitCoefficients  = "INIT_COEFS"
	CmdFinalize          = "FINZ_COEFS"
)

// Packet represents a parsed tagged packet.
// Layout: [Marker:1][TotalLen:2][Seq:1][LastSeq:1][Name:N][0x00][PayloadLen:2][Payload:M][Checksum:1]
//
// Coefficient stream packets share this layout: Seq carries the packet index,
// LastSeq the full packet count and DeclaredLen the size field.
type Packet struct {
	Seq         uint8
	LastSeq     uint8
	Command     string
	DeclaredLen uint16 // Payload length field as written on the wire
	Payload     []byte // Bytes actually carried between the length field and the checksum
}

// Checksum returns the sum of all bytes modulo 256
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// AppendChecksum returns data with its checksum byte appended
func AppendChecksum(data []byte) []byte {
	out := make([]byte, len(data), len(data)+ChecksumSize)
	copy(out, data)
	return append(out, Checksum(data))
}

// VerifyChecksum reports whether the last byte of packet is the checksum of the preceding bytes
func VerifyChecksum(packet []byte) bool {
	if len(packet) < ChecksumSize {
		return false
	}
	n := len(packet) - ChecksumSize
	return Checksum(packet[:n]) == packet[n]
}

// BuildTagged builds a tagged command packet carrying payload
func BuildTagged(command string, payload []byte, seq, lastSeq uint8) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("%s payload of %d bytes: %w", command, len(payload), ErrPayloadTooLarge)
	}

	totalLen := TaggedOverhead + len(command) + len(payload)
	if totalLen > MaxPacketLength {
		return nil, fmt.Errorf("%s packet of %d bytes: %w", command, totalLen, ErrPayloadTooLarge)
	}

	buf := make([]byte, 0, totalLen)
	buf = append(buf, Marker)
	buf = binary.BigEndian.AppendUint16(buf, uint16(totalLen))
	buf = append(buf, seq, lastSeq)
	buf = append(buf, command...)
	buf = append(buf, NameSeparator)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, Checksum(buf))

	if len(buf) != totalLen {
		return nil, fmt.Errorf("%s packet construction: built %d bytes, expected %d: %w",
			command, len(buf), totalLen, ErrLengthMismatch)
	}

	return buf, nil
}

// Command builds the fixed, payload-less packet for one of the opcode names
func Command(name string) []byte {
	packet, err := BuildTagged(name, nil, 0, 0)
	if err != nil {
		// Opcode names are short constants
		panic(err)
	}
	return packet
}

// ParsePacket parses and validates a complete packet
func ParsePacket(data []byte) (*Packet, error) {
	if len(data) < TaggedOverhead {
		return nil, fmt.Errorf("expected at least %d bytes, got %d: %w", TaggedOverhead, len(data), ErrPacketTooShort)
	}

	if data[0] != Marker {
		return nil, fmt.Errorf("got 0x%02x: %w", data[0], ErrBadMarker)
	}

	totalLen := int(binary.BigEndian.Uint16(data[1:3]))
	if totalLen != len(data) {
		return nil, fmt.Errorf("header says %d bytes, got %d: %w", totalLen, len(data), ErrLengthMismatch)
	}

	if !VerifyChecksum(data) {
		return nil, fmt.Errorf("expected 0x%02x, got 0x%02x: %w",
			Checksum(data[:len(data)-ChecksumSize]), data[len(data)-ChecksumSize], ErrChecksum)
	}

	// Locate the separator that ends the command name
	sep := -1
	for i := 5; i < len(data)-ChecksumSize; i++ {
		if data[i] == NameSeparator {
			sep = i
			break
		}
	}
	if sep < 0 || sep+1+LengthFieldSize > len(data)-ChecksumSize {
		return nil, fmt.Errorf("missing command separator: %w", ErrPacketTooShort)
	}

	packet := &Packet{
		Seq:         data[3],
		LastSeq:     data[4],
		Command:     string(data[5:sep]),
		DeclaredLen: binary.BigEndian.Uint16(data[sep+1 : sep+1+LengthFieldSize]),
	}

	payloadStart := sep + 1 + LengthFieldSize
	payloadEnd := len(data) - ChecksumSize
	if payloadEnd > payloadStart {
		packet.Payload = make([]byte, payloadEnd-payloadStart)
		copy(packet.Payload, data[payloadStart:payloadEnd])
	}

	return packet, nil
}

// String returns a human-readable representation of the packet
func (p *Packet) String() string {
	return fmt.Sprintf("Packet{Command:%s, Seq:%d/%d, DeclaredLen:%d, PayloadLen:%d}",
		p.Command, p.Seq, p.LastSeq, p.DeclaredLen, len(p.Payload))
}
