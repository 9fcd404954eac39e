package avrsim

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/protocol"
)

// Config controls how the simulated receiver answers
type Config struct {
	// Info is returned for GET_AVRINF, Status for GET_AVRSTS
	Info   any
	Status any

	// InProgress sends INPROGRESS before each ACK, InProgressDelay apart
	InProgress      bool
	InProgressDelay time.Duration

	// RejectCommand answers NAK to every packet of this command
	RejectCommand string

	// IgnoreEnterAttempts drops this many ENTER_AUDY packets before acknowledging
	IgnoreEnterAttempts int

	// SilentCommands are received but never answered
	SilentCommands []string
}

// DefaultInfo returns a float-coefficient XT32 receiver info object
func DefaultInfo() map[string]any {
	return map[string]any{
		"DType":        "Float",
		"CoefWaitTime": map[string]any{"Init": 0, "Final": 0},
	}
}

// DefaultStatus returns a 5.1 layout with one subwoofer
func DefaultStatus() map[string]any {
	return map[string]any{
		"ChSetup": []map[string]string{
			{"FL": "S"}, {"C": "S"}, {"FR": "S"}, {"SLA": "S"}, {"SRA": "S"}, {"SW1": "E"}, {"FHL": "N"},
		},
		"AmpAssign": "Basic",
		"AssignBin": "0101",
		"SWSetup":   map[string]any{"SWNum": 1},
	}
}

// Received is one packet as seen by the simulator
type Received struct {
	Packet *protocol.Packet
	Raw    []byte
	At     time.Time
}

// Statistics counts simulator traffic
type Statistics struct {
	Connections    uint64 `json:"connections"`
	Packets        uint64 `json:"packets"`
	ParseErrors    uint64 `json:"parse_errors"`
	Acks           uint64 `json:"acks"`
	Naks           uint64 `json:"naks"`
	Unacknowledged uint64 `json:"unacknowledged"`
}

// Simulator is a TCP server speaking the receiver control protocol
type Simulator struct {
	config   Config
	logger   *slog.Logger
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	received     []Received
	enterIgnored int
	conns        map[net.Conn]struct{}
	stats        Statistics
}

// New creates a simulator instance
func New(config Config, logger *slog.Logger) *Simulator {
	if config.Info == nil {
		config.Info = DefaultInfo()
	}
	if config.Status == nil {
		config.Status = DefaultStatus()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start listens on address (use "127.0.0.1:0" for an ephemeral port)
func (s *Simulator) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.listener = listener

	s.logger.Info("Simulated receiver started", slog.String("address", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the listening address
func (s *Simulator) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and every open connection
func (s *Simulator) Stop() error {
	s.cancel()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	stats := s.Statistics()
	s.logger.Info("Simulated receiver stopped",
		slog.Uint64("packets", stats.Packets),
		slog.Uint64("acks", stats.Acks),
		slog.Uint64("naks", stats.Naks))

	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Simulator) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to accept connection", slog.String("error", err.Error()))
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.stats.Connections++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

// serve frames packets by their length header and answers each in order
func (s *Simulator) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	s.logger.Debug("Client connected", slog.String("remote_addr", conn.RemoteAddr().String()))

	var pending []byte
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = s.consume(conn, pending)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("Connection read ended", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// consume handles every complete packet at the head of pending and returns the rest
func (s *Simulator) consume(conn net.Conn, pending []byte) []byte {
	for len(pending) >= 1+protocol.LengthFieldSize {
		if pending[0] != protocol.Marker {
			// Resynchronize on the next marker
			idx := bytes.IndexByte(pending[1:], protocol.Marker)
			s.countParseError()
			s.reply(conn, "NAK")
			if idx < 0 {
				return nil
			}
			pending = pending[idx+1:]
			continue
		}

		total := int(binary.BigEndian.Uint16(pending[1:3]))
		if total < protocol.TaggedOverhead {
			s.countParseError()
			s.reply(conn, "NAK")
			return nil
		}
		if len(pending) < total {
			return pending
		}

		raw := make([]byte, total)
		copy(raw, pending[:total])
		pending = pending[total:]

		s.handle(conn, raw)
	}
	return pending
}

func (s *Simulator) countParseError() {
	s.mu.Lock()
	s.stats.ParseErrors++
	s.mu.Unlock()
}

func (s *Simulator) handle(conn net.Conn, raw []byte) {
	packet, err := protocol.ParsePacket(raw)
	if err != nil {
		s.logger.Warn("Rejecting malformed packet", slog.String("error", err.Error()))
		s.countParseError()
		s.reply(conn, "NAK")
		return
	}

	s.mu.Lock()
	s.received = append(s.received, Received{Packet: packet, Raw: raw, At: time.Now()})
	s.stats.Packets++
	s.mu.Unlock()

	s.logger.Debug("Packet received", slog.String("packet", packet.String()))

	switch {
	case s.isSilent(packet.Command):
		return

	case packet.Command == s.config.RejectCommand:
		s.reply(conn, "NAK")
		return

	case packet.Command == protocol.CmdGetInfo:
		s.replyJSON(conn, packet.Command, s.config.Info)
		return

	case packet.Command == protocol.CmdGetStatus:
		s.replyJSON(conn, packet.Command, s.config.Status)
		return

	case packet.Command == protocol.CmdEnterCalibration:
		s.mu.Lock()
		ignore := s.enterIgnored < s.config.IgnoreEnterAttempts
		if ignore {
			s.enterIgnored++
		}
		s.mu.Unlock()
		if ignore {
			return
		}

	case packet.Command == protocol.CmdStreamCoefficient && partialStreamPacket(packet):
		// Firmware stays quiet after the short final packet of a stream
		s.mu.Lock()
		s.stats.Unacknowledged++
		s.mu.Unlock()
		return
	}

	if s.config.InProgress {
		s.reply(conn, "INPROGRESS")
		time.Sleep(s.config.InProgressDelay)
	}
	s.reply(conn, "ACK")
}

// partialStreamPacket reports a coefficient packet carrying fewer than a full packet of floats
func partialStreamPacket(p *protocol.Packet) bool {
	if protocol.IsTerminationPayload(p.Payload) {
		return false
	}
	if p.Seq == 0 {
		return len(p.Payload) < protocol.FirstPacketSizeField
	}
	return int(p.DeclaredLen) < protocol.FirstPacketSizeField
}

func (s *Simulator) isSilent(command string) bool {
	for _, c := range s.config.SilentCommands {
		if c == command {
			return true
		}
	}
	return false
}

func (s *Simulator) reply(conn net.Conn, token string) {
	if _, err := conn.Write([]byte(token)); err != nil {
		s.logger.Debug("Failed to write reply", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	switch token {
	case "ACK":
		s.stats.Acks++
	case "NAK":
		s.stats.Naks++
	}
	s.mu.Unlock()
}

func (s *Simulator) replyJSON(conn net.Conn, command string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode reply", slog.String("error", err.Error()))
		s.reply(conn, "ERROR")
		return
	}

	packet, err := protocol.BuildTagged(command, body, 0, 0)
	if err != nil {
		s.reply(conn, "ERROR")
		return
	}
	if _, err := conn.Write(packet); err != nil {
		s.logger.Debug("Failed to write reply", slog.String("error", err.Error()))
	}
}

// Received returns a copy of every packet received so far
func (s *Simulator) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Received, len(s.received))
	copy(out, s.received)
	return out
}

// Commands returns the command name of every received packet in order
func (s *Simulator) Commands() []string {
	received := s.Received()
	out := make([]string, len(received))
	for i, r := range received {
		out[i] = r.Packet.Command
	}
	return out
}

// Statistics returns current traffic counters
func (s *Simulator) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
