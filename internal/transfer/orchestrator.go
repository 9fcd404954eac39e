package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/calibration"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/dsp"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/protocol"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/reconcile"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/transport"
)

// Curve ids on the receiver
const (
	CurveReference byte = 0x00 // Full-volume curve, from "filter"
	CurveFlat      byte = 0x01 // Low-volume curve, from "filterLV"
)

// Sample rate id after which a silent XT32 termination is tolerated
const lastXT32SampleRate byte = 0x02

// Timing holds every timeout and mandatory pacing delay of a transfer.
// The receiver firmware needs the delays; they are not incidental sleeps.
type Timing struct {
	FinalizeTimeout   time.Duration // INIT_COEFS and FINZ_COEFS
	EnterTimeout      time.Duration // Per ENTER_AUDY attempt
	EnterAttempts     int
	EnterBackoff      time.Duration
	SetDatGap         time.Duration // After each SET_SETDAT packet
	CurveGap          time.Duration // After each curve of a channel
	InitDefault       time.Duration // Before INIT_COEFS when the receiver gives no hint
	FinalDefault      time.Duration // After the INIT_COEFS pair when the receiver gives no hint
	InitPairGap       time.Duration // Between the two INIT_COEFS
	TermDelayMultEQ   time.Duration
	TermDelayXT32     time.Duration
	FixedFinalizeWait time.Duration // Before FINZ_COEFS on fixed-point receivers
}

// DefaultTiming returns the timing real receivers need
func DefaultTiming() Timing {
	return Timing{
		FinalizeTimeout:   30 * time.Second,
		EnterTimeout:      3 * time.Second,
		EnterAttempts:     20,
		EnterBackoff:      time.Second,
		SetDatGap:         250 * time.Millisecond,
		CurveGap:          250 * time.Millisecond,
		InitDefault:       250 * time.Millisecond,
		FinalDefault:      250 * time.Millisecond,
		InitPairGap:       2 * time.Second,
		TermDelayMultEQ:   50 * time.Millisecond,
		TermDelayXT32:     1500 * time.Millisecond,
		FixedFinalizeWait: 10 * time.Second,
	}
}

// Config is the immutable configuration of one transfer
type Config struct {
	Transport   transport.Config
	Timing      Timing
	Curves      []byte
	SampleRates []byte
}

// DefaultConfig returns the configuration for a receiver at address (host:port)
func DefaultConfig(address string) Config {
	return Config{
		Transport:   transport.DefaultConfig(address),
		Timing:      DefaultTiming(),
		Curves:      []byte{CurveReference, CurveFlat},
		SampleRates: []byte{0x00, 0x01, 0x02},
	}
}

// Session is the command channel a transfer drives
type Session interface {
	Send(ctx context.Context, packet []byte, label string, opts transport.Options) (transport.Result, error)
	QueryInto(ctx context.Context, packet []byte, label string, v any) error
	Close() error
}

// Progress is a snapshot of a running transfer
type Progress struct {
	State         string    `json:"state"`
	Target        string    `json:"target"`
	EQType        string    `json:"eq_type"`
	Encoding      string    `json:"encoding,omitempty"`
	Channel       string    `json:"channel,omitempty"`
	Curve         string    `json:"curve,omitempty"`
	SampleRate    string    `json:"sample_rate,omitempty"`
	ChannelsDone  int       `json:"channels_done"`
	ChannelsTotal int       `json:"channels_total"`
	PacketsSent   int       `json:"packets_sent"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// channelPlan is one receiver channel resolved during pre-flight
type channelPlan struct {
	receiverID  string
	data        *calibration.Channel
	channelByte byte
}

// Orchestrator runs one calibration transfer
type Orchestrator struct {
	config    Config
	file      *calibration.File
	converter *dsp.Converter
	observer  Observer
	logger    *slog.Logger

	mu       sync.RWMutex
	progress Progress
}

// New creates an orchestrator for file. observer may be nil.
func New(config Config, file *calibration.File, observer Observer, logger *slog.Logger) *Orchestrator {
	if observer == nil {
		observer = Observers(nil)
	}
	return &Orchestrator{
		config:    config,
		file:      file,
		converter: dsp.NewConverter(logger),
		observer:  observer,
		logger:    logger,
		progress: Progress{
			State:  StateIdle.String(),
			Target: config.Transport.Address,
			EQType: file.EQType.String(),
		},
	}
}

// Progress returns a snapshot of the transfer
func (o *Orchestrator) Progress() Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.progress
}

func (o *Orchestrator) update(fn func(p *Progress)) {
	o.mu.Lock()
	fn(&o.progress)
	o.mu.Unlock()
}

func (o *Orchestrator) setState(state State) {
	o.update(func(p *Progress) { p.State = state.String() })
	o.logger.Info("Transfer state changed", slog.String("state", state.String()))
	o.observer.Observe(Event{Kind: EventState, At: time.Now(), State: state})
}

// Run connects to the receiver and performs the whole transfer.
// The connection is always closed before Run returns.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	start := time.Now()
	o.update(func(p *Progress) { p.StartedAt = start })

	defer func() {
		if err != nil {
			o.update(func(p *Progress) { p.Error = err.Error() })
		}
		o.observer.Observe(Event{Kind: EventDone, At: time.Now(), Elapsed: time.Since(start), Err: err})
	}()

	session, err := transport.Dial(ctx, o.config.Transport, o.logger)
	if err != nil {
		return stepErr("connect", err)
	}
	o.setState(StateConnected)

	return o.RunSession(ctx, session)
}

// RunSession performs the transfer over an established session and closes it
func (o *Orchestrator) RunSession(ctx context.Context, session Session) error {
	defer func() {
		if err := session.Close(); err != nil {
			o.logger.Warn("Error closing receiver connection", slog.String("error", err.Error()))
		}
		o.setState(StateClosed)
	}()

	info, status, err := o.query(ctx, session)
	if err != nil {
		return stepErr("query receiver", err)
	}
	o.setState(StateQueried)

	encoding := protocol.EncodingFromDataType(info.DType)
	o.update(func(p *Progress) { p.Encoding = encoding.String() })

	channels, layout, err := o.preflight(status)
	if err != nil {
		return stepErr("validate", err)
	}
	o.setState(StateValidated)

	if err := o.enterCalibration(ctx, session); err != nil {
		return stepErr("enter calibration mode", err)
	}
	o.setState(StateCalibrationModeEntered)

	if err := o.sendLayout(ctx, session, layout); err != nil {
		return stepErr("send layout", err)
	}
	o.setState(StateLayoutSent)

	fixedPoint := protocol.IsFixedPointInit(info.DType)
	if fixedPoint {
		o.setState(StateFixedPointInit)
		if err := o.initCoefficients(ctx, session, info); err != nil {
			return stepErr("initialize coefficients", err)
		}
	}

	o.setState(StateStreamingChannels)
	if len(channels) == 0 {
		o.logger.Warn("No active channels with calibration data, skipping coefficient transfer")
	}
	for _, ch := range channels {
		if err := o.sendChannel(ctx, session, ch, encoding); err != nil {
			return stepErr(fmt.Sprintf("stream channel %s", ch.receiverID), err)
		}
	}

	if err := o.finalize(ctx, session, fixedPoint); err != nil {
		return stepErr("finalize", err)
	}
	o.setState(StateFinalized)

	return nil
}

// query reads the receiver's info and status
func (o *Orchestrator) query(ctx context.Context, session Session) (*Info, *Status, error) {
	var info Info
	if err := session.QueryInto(ctx, protocol.Command(protocol.CmdGetInfo), protocol.CmdGetInfo, &info); err != nil {
		return nil, nil, err
	}

	var status Status
	if err := session.QueryInto(ctx, protocol.Command(protocol.CmdGetStatus), protocol.CmdGetStatus, &status); err != nil {
		return nil, nil, err
	}

	o.logger.Info("Receiver reported configuration",
		slog.String("dtype", info.DType),
		slog.Any("active_channels", status.ActiveChannels()),
		slog.String("assign_bin", status.AssignBin))

	return &info, &status, nil
}

// preflight reconciles the configurations and resolves everything that can
// fail before the first mutating command
func (o *Orchestrator) preflight(status *Status) ([]channelPlan, []LayoutPacket, error) {
	if err := status.Validate(); err != nil {
		return nil, nil, err
	}

	active := status.ActiveChannels()
	if _, err := reconcile.Reconcile(reconcile.Input{
		FileChannels:   o.file.ChannelIDs(),
		ActiveChannels: active,
		FileAssignBin:  o.file.AmpAssignBinary,
		LiveAssignBin:  status.AssignBin,
	}, o.logger); err != nil {
		return nil, nil, err
	}

	for _, curve := range o.config.Curves {
		if _, _, err := curveTaps(&calibration.Channel{}, curve); err != nil {
			return nil, nil, err
		}
	}

	var channels []channelPlan
	for _, id := range active {
		data, ok := o.file.Channel(id)
		if !ok || !data.HasFilters() {
			o.logger.Warn("Missing filter data, skipping channel", slog.String("channel", id))
			continue
		}
		code, err := calibration.ChannelByte(id, o.file.EQType, o.file.AltDSP)
		if err != nil {
			return nil, nil, err
		}
		channels = append(channels, channelPlan{receiverID: id, data: data, channelByte: code})
	}
	o.update(func(p *Progress) { p.ChannelsTotal = len(channels) })

	layout, err := PlanLayout(status, o.file, o.logger)
	if err != nil {
		return nil, nil, err
	}

	return channels, layout, nil
}

// send issues one command and reports it to the observer
func (o *Orchestrator) send(ctx context.Context, session Session, packet []byte, label, command string, opts transport.Options) (transport.Result, error) {
	result, err := session.Send(ctx, packet, label, opts)

	event := Event{
		Kind:       EventCommand,
		At:         time.Now(),
		Label:      label,
		Command:    command,
		Elapsed:    result.Elapsed,
		Extensions: result.Extensions,
		Err:        err,
	}
	if err != nil {
		event.Outcome = failureOutcome(err)
		o.logger.Debug("Command failed", slog.String("label", label), slog.String("error", err.Error()))
	} else {
		event.Outcome = result.Outcome.String()
		o.logger.Debug("Command completed",
			slog.String("label", label),
			slog.String("outcome", event.Outcome),
			slog.Duration("elapsed", result.Elapsed))
	}
	o.observer.Observe(event)

	return result, err
}

// failureOutcome names the error class of a failed command
func failureOutcome(err error) string {
	switch {
	case errors.Is(err, transport.ErrRejected):
		return "rejected"
	case errors.Is(err, transport.ErrTimeout):
		return "timeout"
	case errors.Is(err, transport.ErrOverflow):
		return "overflow"
	case errors.Is(err, transport.ErrConnection), errors.Is(err, transport.ErrClosed):
		return "connection"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// enterCalibration repeats ENTER_AUDY until the receiver acknowledges it
func (o *Orchestrator) enterCalibration(ctx context.Context, session Session) error {
	timing := o.config.Timing
	attempts := max(timing.EnterAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err := o.send(ctx, session, protocol.Command(protocol.CmdEnterCalibration), protocol.CmdEnterCalibration,
			protocol.CmdEnterCalibration, transport.Options{ExpectAck: true, Timeout: timing.EnterTimeout})
		if err == nil {
			o.logger.Info("Receiver ready to accept filters", slog.Int("attempts", attempt))
			return nil
		}
		if !errors.Is(err, transport.ErrTimeout) && !errors.Is(err, transport.ErrRejected) {
			return err
		}
		lastErr = err

		if attempt < attempts {
			o.logger.Info("Retrying to set the receiver in calibration mode",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts))
			if err := sleep(ctx, timing.EnterBackoff); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%d attempts, last error %v: %w", attempts, lastErr, ErrEnterCalibrationExhausted)
}

// sendLayout sends the SET_SETDAT group in order, skipping empty packets
func (o *Orchestrator) sendLayout(ctx context.Context, session Session, packets []LayoutPacket) error {
	for i, packet := range packets {
		if packet.Empty() {
			continue
		}
		data, err := packet.Build()
		if err != nil {
			return err
		}

		label := fmt.Sprintf("%s P%d/%d", protocol.CmdSetLayout, i+1, len(packets))
		if _, err := o.send(ctx, session, data, label, protocol.CmdSetLayout, transport.Options{ExpectAck: true}); err != nil {
			return err
		}
		if err := sleep(ctx, o.config.Timing.SetDatGap); err != nil {
			return err
		}
	}
	return nil
}

// initCoefficients prepares a fixed-point receiver for coefficient upload
func (o *Orchestrator) initCoefficients(ctx context.Context, session Session, info *Info) error {
	timing := o.config.Timing
	opts := transport.Options{ExpectAck: true, Timeout: timing.FinalizeTimeout}
	packet := protocol.Command(protocol.CmdInitCoefficients)

	if err := sleep(ctx, info.InitWait(timing.InitDefault)); err != nil {
		return err
	}
	if _, err := o.send(ctx, session, packet, protocol.CmdInitCoefficients, protocol.CmdInitCoefficients, opts); err != nil {
		return err
	}

	o.logger.Info("Applying delay between INIT_COEFS", slog.Duration("delay", timing.InitPairGap))
	if err := sleep(ctx, timing.InitPairGap); err != nil {
		return err
	}
	if _, err := o.send(ctx, session, packet, protocol.CmdInitCoefficients+"_2", protocol.CmdInitCoefficients, opts); err != nil {
		return err
	}

	return sleep(ctx, info.FinalWait(timing.FinalDefault))
}

// curveTaps selects the coefficient array for a curve id
func curveTaps(ch *calibration.Channel, curve byte) ([]float64, string, error) {
	switch curve {
	case CurveReference:
		return ch.ReferenceTaps, "Reference", nil
	case CurveFlat:
		return ch.FlatTaps, "Flat", nil
	default:
		return nil, "", fmt.Errorf("unknown target curve %02x", curve)
	}
}

// sendChannel streams every configured curve of one channel
func (o *Orchestrator) sendChannel(ctx context.Context, session Session, ch channelPlan, encoding protocol.Encoding) error {
	o.logger.Info("Processing channel", slog.String("channel", ch.receiverID))
	o.update(func(p *Progress) { p.Channel = ch.receiverID })

	for _, curve := range o.config.Curves {
		taps, name, err := curveTaps(ch.data, curve)
		if err != nil {
			return err
		}

		converted, outcome := o.converter.Convert(taps)
		o.observer.Observe(Event{
			Kind:    EventDecimation,
			At:      time.Now(),
			Channel: ch.receiverID,
			Curve:   name,
			Outcome: outcome.String(),
			Floats:  len(converted),
		})

		if err := o.sendCurve(ctx, session, ch, curve, name, converted, encoding); err != nil {
			return err
		}
		if err := sleep(ctx, o.config.Timing.CurveGap); err != nil {
			return err
		}
	}

	o.update(func(p *Progress) { p.ChannelsDone++ })
	o.observer.Observe(Event{Kind: EventChannel, At: time.Now(), Channel: ch.receiverID})
	o.logger.Info("Channel processed", slog.String("channel", ch.receiverID))
	return nil
}

// sendCurve streams one curve at every configured sample rate
func (o *Orchestrator) sendCurve(ctx context.Context, session Session, ch channelPlan, curve byte, name string, taps []float64, encoding protocol.Encoding) error {
	plan, err := protocol.NewPacketPlan(len(taps))
	if err != nil {
		return err
	}
	encoded := encoding.Encode(taps)

	for _, sr := range o.config.SampleRates {
		o.update(func(p *Progress) {
			p.Curve = name
			p.SampleRate = fmt.Sprintf("%02x", sr)
		})

		packets, err := protocol.BuildStreamPackets(encoded, plan, protocol.StreamTarget{
			Curve:       curve,
			SampleRate:  sr,
			ChannelByte: ch.channelByte,
		})
		if err != nil {
			return err
		}

		for _, packet := range packets {
			label := fmt.Sprintf("PACKET %d/%d %s %s SR%02x", packet.Index, len(packets)-1, ch.receiverID, name, sr)
			if _, err := o.send(ctx, session, packet.Data, label, protocol.CmdStreamCoefficient,
				transport.Options{ExpectAck: packet.ExpectAck}); err != nil {
				return err
			}
			o.update(func(p *Progress) { p.PacketsSent++ })
			o.observer.Observe(Event{
				Kind:    EventStream,
				At:      time.Now(),
				Label:   label,
				Channel: ch.receiverID,
				Curve:   name,
				Floats:  packet.Floats,
			})
		}

		if len(packets) > 1 {
			if err := o.terminate(ctx, session, ch, name, sr, len(packets), plan.FullPacketCount); err != nil {
				return err
			}
		}
	}
	return nil
}

// terminate commits a multi-packet stream
func (o *Orchestrator) terminate(ctx context.Context, session Session, ch channelPlan, name string, sr byte, packetCount int, full uint8) error {
	timing := o.config.Timing

	var (
		packet []byte
		delay  time.Duration
		err    error
	)
	switch o.file.EQType {
	case calibration.EQTypeXT32:
		packet = protocol.TerminationXT32()
		delay = timing.TermDelayXT32
	default:
		packet, err = protocol.TerminationMultEQ(packetCount, full)
		if err != nil {
			return err
		}
		delay = timing.TermDelayMultEQ
	}

	label := fmt.Sprintf("TERM %s %s SR%02x (%s)", ch.receiverID, name, sr, o.file.EQType)
	if err := sleep(ctx, delay); err != nil {
		return err
	}

	_, err = o.send(ctx, session, packet, label, protocol.CmdStreamCoefficient, transport.Options{ExpectAck: true})
	if err != nil && o.file.EQType == calibration.EQTypeXT32 && sr == lastXT32SampleRate && errors.Is(err, transport.ErrTimeout) {
		o.logger.Error("Timeout receiving ACK for termination, continuing", slog.String("label", label))
		return nil
	}
	return err
}

// finalize commits the upload and leaves calibration mode
func (o *Orchestrator) finalize(ctx context.Context, session Session, fixedPoint bool) error {
	timing := o.config.Timing

	if fixedPoint {
		if err := sleep(ctx, timing.FixedFinalizeWait); err != nil {
			return err
		}
		if _, err := o.send(ctx, session, protocol.Command(protocol.CmdFinalize), "FINZ", protocol.CmdFinalize,
			transport.Options{ExpectAck: true, Timeout: timing.FinalizeTimeout}); err != nil {
			return err
		}
	}

	flag, err := FinishedFlag().Build()
	if err != nil {
		return err
	}
	if _, err := o.send(ctx, session, flag, "SET_AUDYFINFLG", protocol.CmdSetLayout, transport.Options{ExpectAck: true}); err != nil {
		return err
	}

	_, err = o.send(ctx, session, protocol.Command(protocol.CmdExitCalibration), protocol.CmdExitCalibration,
		protocol.CmdExitCalibration, transport.Options{ExpectAck: true})
	return err
}

// sleep waits for d unless ctx ends first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
