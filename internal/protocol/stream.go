package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Coefficient stream sizing
const (
	BytesPerCoefficient  = 4
	FirstPacketFloats    = 127
	MidPacketFloats      = 128
	StreamHeaderInfoSize = 4 // curve, sample rate, channel byte, padding

	// The receiver expects this size field on packet 0 of every stream,
	// whatever the packet actually carries.
	FirstPacketSizeField = MidPacketFloats * BytesPerCoefficient
)

var (
	terminationPayloadMultEQ = []byte{0x09, 0x6f, 0x08, 0x00}
	terminationPayloadXT32   = []byte{0x0b, 0x07, 0xf2, 0xff}
)

// PacketPlan describes how one coefficient array is split into stream packets
type PacketPlan struct {
	TotalFloats       int
	PacketCount       int
	FirstPacketFloats int
	MidPacketFloats   int
	LastPacketFloats  int
	FullPacketCount   uint8 // Repeated in every packet of the stream
}

// StreamTarget identifies where a coefficient stream lands on the receiver
type StreamTarget struct {
	Curve       byte
	SampleRate  byte
	ChannelByte byte
}

// StreamPacket is one framed packet of a coefficient stream
type StreamPacket struct {
	Index     int
	Floats    int
	ExpectAck bool
	Data      []byte
}

// PacketCount returns the number of stream packets needed for n coefficients
func PacketCount(n int) int {
	if n <= FirstPacketFloats {
		return 1
	}
	remaining := n - FirstPacketFloats
	return 1 + (remaining+MidPacketFloats-1)/MidPacketFloats
}

// NewPacketPlan computes the packet plan for totalFloats coefficients
func NewPacketPlan(totalFloats int) (PacketPlan, error) {
	if totalFloats <= 0 {
		return PacketPlan{}, fmt.Errorf("invalid coefficient count %d: %w", totalFloats, ErrEmptyCoefficients)
	}

	plan := PacketPlan{
		TotalFloats:     totalFloats,
		PacketCount:     PacketCount(totalFloats),
		MidPacketFloats: MidPacketFloats,
	}

	if totalFloats <= FirstPacketFloats {
		plan.FirstPacketFloats = totalFloats
		plan.LastPacketFloats = totalFloats
		plan.FullPacketCount = 1
		return plan, nil
	}

	remaining := totalFloats - FirstPacketFloats
	plan.FirstPacketFloats = FirstPacketFloats
	plan.LastPacketFloats = remaining % MidPacketFloats
	if plan.LastPacketFloats == 0 {
		plan.LastPacketFloats = MidPacketFloats
	}

	full := 1 + remaining/MidPacketFloats
	if full > 0xFF {
		return PacketPlan{}, fmt.Errorf("full packet count %d does not fit one byte: %w", full, ErrPayloadTooLarge)
	}
	plan.FullPacketCount = uint8(full)

	return plan, nil
}

// BuildStreamPackets frames encoded coefficients (4 bytes each) into SET_COEFDT stream packets
func BuildStreamPackets(encoded []byte, plan PacketPlan, target StreamTarget) ([]StreamPacket, error) {
	if len(encoded)%BytesPerCoefficient != 0 {
		return nil, fmt.Errorf("encoded coefficients length %d is not a multiple of %d", len(encoded), BytesPerCoefficient)
	}

	total := len(encoded) / BytesPerCoefficient
	if total == 0 {
		return nil, ErrEmptyCoefficients
	}

	packets := make([]StreamPacket, 0, plan.PacketCount)
	current := 0

	for index := 0; index < plan.PacketCount; index++ {
		isFirst := index == 0
		isLast := index == plan.PacketCount-1

		var floats int
		switch {
		case isFirst:
			floats = min(plan.FirstPacketFloats, total-current)
		case isLast:
			floats = total - current
		default:
			floats = min(plan.MidPacketFloats, total-current)
		}
		if floats <= 0 {
			break
		}

		sizeField := floats * BytesPerCoefficient
		if isFirst {
			sizeField = FirstPacketSizeField
		}

		headerLen := len(CmdStreamCoefficient) + 1 + LengthFieldSize
		if isFirst {
			headerLen += StreamHeaderInfoSize
		}
		payload := encoded[current*BytesPerCoefficient : (current+floats)*BytesPerCoefficient]
		totalLen := 1 + LengthFieldSize + 1 + 1 + headerLen + len(payload) + ChecksumSize
		if totalLen > MaxPacketLength {
			return nil, fmt.Errorf("stream packet %d of %d bytes: %w", index, totalLen, ErrPayloadTooLarge)
		}

		buf := make([]byte, 0, totalLen)
		buf = append(buf, Marker)
		buf = binary.BigEndian.AppendUint16(buf, uint16(totalLen))
		buf = append(buf, byte(index), plan.FullPacketCount)
		buf = append(buf, CmdStreamCoefficient...)
		buf = append(buf, NameSeparator)
		buf = binary.BigEndian.AppendUint16(buf, uint16(sizeField))
		if isFirst {
			buf = append(buf, target.Curve, target.SampleRate, target.ChannelByte, 0x00)
		}
		buf = append(buf, payload...)
		buf = append(buf, Checksum(buf))

		packets = append(packets, StreamPacket{
			Index:     index,
			Floats:    floats,
			ExpectAck: !isLast || floats == plan.MidPacketFloats,
			Data:      buf,
		})

		current += floats
		if current >= total {
			break
		}
	}

	return packets, nil
}

// TerminationMultEQ builds the stream commit packet used by the MultEQ and XT engines
func TerminationMultEQ(packetCount int, fullPacketCount uint8) ([]byte, error) {
	return BuildTagged(CmdStreamCoefficient, terminationPayloadMultEQ, uint8(packetCount), fullPacketCount)
}

// IsTerminationPayload reports whether payload is one of the stream commit payloads
func IsTerminationPayload(payload []byte) bool {
	return bytes.Equal(payload, terminationPayloadMultEQ) || bytes.Equal(payload, terminationPayloadXT32)
}

// TerminationXT32 builds the stream commit packet used by the XT32 engine
func TerminationXT32() []byte {
	packet, err := BuildTagged(CmdStreamCoefficient, terminationPayloadXT32, 1, 1)
	if err != nil {
		panic(err)
	}
	return packet
}
