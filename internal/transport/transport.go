package transport

import (
	"bytes"
	"context"
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

// Config holds the session timing and buffer limits
type Config struct {
	Address         string        // host:port of the receiver control port
	ConnectTimeout  time.Duration // Dial timeout
	CommandTimeout  time.Duration // Default wait for commands expecting an ACK
	NonAckTimeout   time.Duration // Quiet period that completes a fire-and-forget packet
	CloseGrace      time.Duration // Wait for a graceful close before forcing teardown
	ResponseCeiling int           // Buffered bytes past which an ACK-expecting command fails
	QueryCeiling    int           // Buffered bytes past which a JSON query fails
}

// DefaultConfig returns the timing used against real receivers
func DefaultConfig(address string) Config {
	return Config{
		Address:         address,
		ConnectTimeout:  5 * time.Second,
		CommandTimeout:  15 * time.Second,
		NonAckTimeout:   150 * time.Millisecond,
		CloseGrace:      time.Second,
		ResponseCeiling: protocol.ResponseCeiling,
		QueryCeiling:    8192,
	}
}

// Options controls how one command waits for its response
type Options struct {
	Timeout   time.Duration // Zero means Config.CommandTimeout
	ExpectAck bool
}

// Outcome is how a successful command completed
type Outcome int

const (
	OutcomeAcked Outcome = iota // Receiver sent ACK
	OutcomeSent                 // Fire-and-forget packet; quiet period elapsed without rejection
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeAcked:
		return "acked"
	case OutcomeSent:
		return "sent"
	default:
		return "unknown"
	}
}

// Result describes a completed command
type Result struct {
	Outcome    Outcome
	Response   []byte
	Elapsed    time.Duration
	Extensions int // INPROGRESS deadline extensions
}

// CommandError ties a transport failure to the command that caused it
type CommandError struct {
	Label    string
	Err      error
	Response []byte
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Label, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Transport is one TCP session with the receiver.
// Commands are strictly sequential: Send and Query hold a lock for their full duration.
type Transport struct {
	conn   net.Conn
	config Config
	logger *slog.Logger

	chunks     chan []byte
	readerDone chan struct{}
	readErr    error
	done       chan struct{}

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the receiver and starts the response reader
func Dial(ctx context.Context, config Config, logger *slog.Logger) (*Transport, error) {
	dialer := net.Dialer{Timeout: config.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v: %w", config.Address, err, ErrConnection)
	}

	logger.Info("Connected to receiver", slog.String("address", config.Address))
	return New(conn, config, logger), nil
}

// New wraps an established connection
func New(conn net.Conn, config Config, logger *slog.Logger) *Transport {
	t := &Transport{
		conn:       conn,
		config:     config,
		logger:     logger,
		chunks:     make(chan []byte, 64),
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// readLoop forwards everything the receiver sends until the connection ends
func (t *Transport) readLoop() {
	defer close(t.readerDone)

	buf := make([]byte, 4096)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case t.chunks <- chunk:
			case <-t.done:
				// Closing; keep reading until EOF but drop data
			}
		}
		if err != nil {
			t.readErr = err
			return
		}
	}
}

// drain discards responses that arrived outside any command
func (t *Transport) drain() {
	for {
		select {
		case chunk := <-t.chunks:
			t.logger.Debug("Discarding unsolicited response", slog.Int("bytes", len(chunk)))
		default:
			return
		}
	}
}

// connErr reports why the reader stopped
func (t *Transport) connErr() error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	if t.readErr == nil || errors.Is(t.readErr, io.EOF) {
		return fmt.Errorf("connection closed by receiver: %w", ErrConnection)
	}
	return fmt.Errorf("%v: %w", t.readErr, ErrConnection)
}

func (t *Transport) write(packet []byte, timeout time.Duration) error {
	select {
	case <-t.done:
		return ErrClosed
	case <-t.readerDone:
		return t.connErr()
	default:
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("send failed: %v: %w", err, ErrConnection)
	}
	if _, err := t.conn.Write(packet); err != nil {
		return fmt.Errorf("send failed: %v: %w", err, ErrConnection)
	}
	return nil
}

// Send writes packet and waits for the receiver's verdict.
// Reject tokens fail immediately. With ExpectAck an ACK succeeds, the
// timeout fails and growth past the response ceiling fails. Without it the
// short quiet period completes the command. INPROGRESS restarts the timer.
func (t *Transport) Send(ctx context.Context, packet []byte, label string, opts Options) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.config.CommandTimeout
	}
	wait := timeout
	if !opts.ExpectAck {
		wait = t.config.NonAckTimeout
	}

	t.drain()

	start := time.Now()
	if err := t.write(packet, timeout); err != nil {
		return Result{}, &CommandError{Label: label, Err: err}
	}

	t.logger.Debug("Sent command",
		slog.String("label", label),
		slog.Int("bytes", len(packet)),
		slog.Bool("expect_ack", opts.ExpectAck))

	var (
		response   []byte
		extensions int
	)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	// evaluate applies the verdict for the buffer so far; done reports a final result
	evaluate := func() (result Result, done bool, err error) {
		switch protocol.Classify(response, opts.ExpectAck) {
		case protocol.VerdictRejected:
			return Result{}, true, &CommandError{Label: label, Err: ErrRejected, Response: response}
		case protocol.VerdictAcked:
			return Result{Outcome: OutcomeAcked, Response: response, Elapsed: time.Since(start), Extensions: extensions}, true, nil
		case protocol.VerdictInProgress:
			extensions++
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)
		}
		if opts.ExpectAck && len(response) > t.config.ResponseCeiling {
			return Result{}, true, &CommandError{Label: label, Err: ErrOverflow, Response: response}
		}
		return Result{}, false, nil
	}

	for {
		select {
		case chunk := <-t.chunks:
			response = append(response, chunk...)
			if result, done, err := evaluate(); done {
				return result, err
			}

		case <-timer.C:
			if opts.ExpectAck {
				return Result{}, &CommandError{Label: label, Err: ErrTimeout, Response: response}
			}
			return Result{Outcome: OutcomeSent, Response: response, Elapsed: time.Since(start), Extensions: extensions}, nil

		case <-t.readerDone:
			// Take whatever arrived before the connection ended
			for drained := false; !drained; {
				select {
				case chunk := <-t.chunks:
					response = append(response, chunk...)
				default:
					drained = true
				}
			}
			if result, done, err := evaluate(); done {
				return result, err
			}
			return Result{}, &CommandError{Label: label, Err: t.connErr(), Response: response}

		case <-ctx.Done():
			return Result{}, &CommandError{Label: label, Err: ctx.Err(), Response: response}
		}
	}
}

// Query writes packet and returns the JSON object found between the first
// '{' and the last '}' of the response once it parses.
func (t *Transport) Query(ctx context.Context, packet []byte, label string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.drain()

	if err := t.write(packet, t.config.CommandTimeout); err != nil {
		return nil, &CommandError{Label: label, Err: err}
	}

	var response []byte
	timer := time.NewTimer(t.config.CommandTimeout)
	defer timer.Stop()

	for {
		select {
		case chunk := <-t.chunks:
			response = append(response, chunk...)
			if body, ok := protocol.ExtractJSON(response); ok {
				if json.Valid(body) {
					return bytes.Clone(body), nil
				}
				// A later '}' may still complete the object
			}
			if len(response) > t.config.QueryCeiling {
				return nil, &CommandError{Label: label, Err: ErrOverflow, Response: response}
			}

		case <-timer.C:
			if _, ok := protocol.ExtractJSON(response); ok {
				return nil, &CommandError{Label: label, Err: ErrBadJSON, Response: response}
			}
			return nil, &CommandError{Label: label, Err: ErrTimeout, Response: response}

		case <-t.readerDone:
			return nil, &CommandError{Label: label, Err: t.connErr(), Response: response}

		case <-ctx.Done():
			return nil, &CommandError{Label: label, Err: ctx.Err(), Response: response}
		}
	}
}

// QueryInto runs Query and decodes the JSON object into v
func (t *Transport) QueryInto(ctx context.Context, packet []byte, label string, v any) error {
	body, err := t.Query(ctx, packet, label)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &CommandError{Label: label, Err: fmt.Errorf("%v: %w", err, ErrBadJSON), Response: body}
	}
	return nil
}

// Close half-closes the connection and waits up to the grace period for the
// receiver to finish, then tears the socket down regardless.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)

		graceful := false
		if tcp, ok := t.conn.(interface{ CloseWrite() error }); ok {
			if err := tcp.CloseWrite(); err != nil {
				t.logger.Warn("Graceful close failed", slog.String("error", err.Error()))
			} else {
				graceful = true
			}
		}

		if graceful {
			timer := time.NewTimer(t.config.CloseGrace)
			select {
			case <-t.readerDone:
			case <-timer.C:
				t.logger.Warn("Connection did not close gracefully, forcing teardown",
					slog.Duration("grace", t.config.CloseGrace))
			}
			timer.Stop()
		}

		if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = err
		}
		<-t.readerDone

		t.logger.Info("Connection closed", slog.Bool("graceful", graceful))
	})
	return t.closeErr
}

// RemoteAddr returns the receiver address
func (t *Transport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
