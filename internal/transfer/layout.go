package transfer

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/calibration"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/protocol"
)

// LayoutThreshold is the largest SET_SETDAT packet the receiver reliably accepts
const LayoutThreshold = 510

const (
	minCrossoverHz       = 40
	decahertzCrossoverHz = 100
)

// LayoutPacket is one SET_SETDAT packet of the layout group
type LayoutPacket struct {
	Seq     uint8
	LastSeq uint8
	Payload protocol.Object
}

// Empty reports whether the packet has nothing to send
func (p LayoutPacket) Empty() bool {
	return len(p.Payload) == 0
}

// Build frames the packet
func (p LayoutPacket) Build() ([]byte, error) {
	body, err := protocol.Encode(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode SET_SETDAT payload: %w", err)
	}
	return protocol.BuildTagged(protocol.CmdSetLayout, body, p.Seq, p.LastSeq)
}

// finalBase returns the fields the receiver expects in the terminal layout packet
func finalBase() protocol.Object {
	return protocol.Object{
		{Key: "AudyFinFlg", Value: "NotFin"},
		{Key: "AudyDynEq", Value: 0},
		{Key: "AudyEqRef", Value: 0},
		{Key: "AudyDynVol", Value: 0},
		{Key: "AudyDynSet", Value: "M"},
		{Key: "AudyMultEq", Value: 1},
		{Key: "AudyEqSet", Value: "Flat"},
		{Key: "AudyLfc", Value: 0},
		{Key: "AudyLfcLev", Value: 4},
	}
}

// FinishedFlag returns the SET_SETDAT packet that marks the calibration complete
func FinishedFlag() LayoutPacket {
	return LayoutPacket{
		Seq:     1,
		LastSeq: 1,
		Payload: protocol.Object{{Key: "AudyFinFlg", Value: "Fin"}},
	}
}

// roundHalfUp rounds x.5 toward positive infinity, as the receiver's own tools do
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// packetSize returns the framed size of payload as a 1/1 SET_SETDAT packet
func packetSize(payload protocol.Object) (int, error) {
	packet, err := LayoutPacket{Seq: 1, LastSeq: 1, Payload: payload}.Build()
	if err != nil {
		return 0, err
	}
	return len(packet), nil
}

// PlanLayout splits the layout, trim, crossover and amp-map data into
// SET_SETDAT packets. The receiver's current amp assignment is always used.
//
// Packets are filled greedily: core, distance and level together when they fit,
// otherwise level moves to its own packet, otherwise core goes alone and
// distance with level follows. The final group is always the last packet.
func PlanLayout(status *Status, file *calibration.File, logger *slog.Logger) ([]LayoutPacket, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}

	spConfig := make([]protocol.Object, 0, len(status.ChSetup))
	for _, entry := range status.ChSetup {
		if !entry.Active() {
			continue
		}
		speakerType := entry.Type
		if speakerType == "" {
			speakerType = "S"
		}
		spConfig = append(spConfig, protocol.Object{{Key: calibration.NormalizeChannelID(entry.ID), Value: speakerType}})
	}

	active := status.activeSet()
	var distance, level, crossover []protocol.Object
	for _, ch := range file.Channels {
		id := calibration.NormalizeChannelID(ch.CommandID)
		if !active[id] {
			continue
		}

		if ch.DistanceMeters != nil {
			distance = append(distance, protocol.Object{{Key: id, Value: roundHalfUp(*ch.DistanceMeters * 100)}})
		}
		if ch.TrimDB != nil {
			level = append(level, protocol.Object{{Key: id, Value: roundHalfUp(*ch.TrimDB * 10)}})
		}

		if calibration.IsSubwoofer(id) {
			crossover = append(crossover, protocol.Object{{Key: id, Value: "F"}})
		} else if ch.HasCrossover() {
			hz, ok := ch.CrossoverHz()
			if !ok || hz < minCrossoverHz {
				logger.Warn("Invalid crossover, skipping",
					slog.String("channel", id),
					slog.String("xover", string(ch.Crossover)))
				continue
			}
			if hz >= decahertzCrossoverHz {
				hz /= 10
			}
			crossover = append(crossover, protocol.Object{{Key: id, Value: hz}})
		}
	}

	core := protocol.Object{
		{Key: "AmpAssign", Value: status.AmpAssign},
		{Key: "AssignBin", Value: status.AssignBin},
		{Key: "SpConfig", Value: spConfig},
	}
	var distPart, levelPart protocol.Object
	if len(distance) > 0 {
		distPart = protocol.Object{{Key: "Distance", Value: distance}}
	}
	if len(level) > 0 {
		levelPart = protocol.Object{{Key: "ChLevel", Value: level}}
	}

	final := finalBase()
	if len(crossover) > 0 {
		final.Set("Crossover", crossover)
	}

	coreSize, err := packetSize(core)
	if err != nil {
		return nil, err
	}
	if coreSize > LayoutThreshold {
		return nil, fmt.Errorf("core payload is %d bytes: %w", coreSize, ErrLayoutTooLarge)
	}

	coreDist := core.Merge(distPart)
	coreDistSize, err := packetSize(coreDist)
	if err != nil {
		return nil, err
	}
	coreDistLevel := coreDist.Merge(levelPart)
	coreDistLevelSize, err := packetSize(coreDistLevel)
	if err != nil {
		return nil, err
	}

	var payloads []protocol.Object
	switch {
	case coreDistLevelSize <= LayoutThreshold:
		payloads = []protocol.Object{coreDistLevel, final}
	case coreDistSize <= LayoutThreshold && levelPart != nil:
		payloads = []protocol.Object{coreDist, levelPart, final}
	case coreDistSize <= LayoutThreshold:
		payloads = []protocol.Object{coreDist, final}
	default:
		second := distPart.Merge(levelPart)
		if len(second) > 0 {
			size, err := packetSize(second)
			if err != nil {
				return nil, err
			}
			if size > LayoutThreshold {
				return nil, fmt.Errorf("combined distance and level payload is %d bytes: %w", size, ErrLayoutTooLarge)
			}
		}
		payloads = []protocol.Object{core, second, final}
	}

	if status.SWSetup != nil && len(status.SWSetup.SWNum) > 0 {
		if n, ok := status.SWSetup.Count(); ok && n > 0 {
			payloads[len(payloads)-1].Set("SubwooferSetup", protocol.Object{
				{Key: "SWNum", Value: n},
				{Key: "SWMode", Value: "Standard"},
				{Key: "SWLayout", Value: "N/A"},
			})
		} else {
			logger.Warn("SWSetup present but SWNum invalid, SubwooferSetup will not be sent",
				slog.String("swnum", string(status.SWSetup.SWNum)))
		}
	}

	last := uint8(len(payloads))
	packets := make([]LayoutPacket, len(payloads))
	for i, payload := range payloads {
		packets[i] = LayoutPacket{Seq: uint8(i + 1), LastSeq: last, Payload: payload}
	}

	if size, err := packetSize(packets[len(packets)-1].Payload); err == nil && size > LayoutThreshold {
		logger.Warn("Final SET_SETDAT packet exceeds threshold, sending anyway",
			slog.Int("size", size),
			slog.Int("threshold", LayoutThreshold))
	}

	return packets, nil
}
