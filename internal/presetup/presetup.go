package presetup

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultLowPassForLFE is used when the calibration file carries no LFE low-pass
	DefaultLowPassForLFE = 120

	// DefaultPresetQueryTimeout bounds the wait for the answer to SPPR ?
	DefaultPresetQueryTimeout = 4 * time.Second
)

// Config controls the telnet pre-setup
type Config struct {
	Address       string // host:port of the receiver's telnet interface
	Preset        int    // 1 or 2 selects a preset, 0 leaves it alone
	LowPassForLFE float64
	DialTimeout   time.Duration
	PowerOnWait   time.Duration
	CommandGap    time.Duration

	// PresetQueryTimeout defaults to DefaultPresetQueryTimeout when zero
	PresetQueryTimeout time.Duration
}

// Commands returns the lines sent after power-on, without the carriage return.
// presetSupported reports whether the receiver answered the preset query.
func (c Config) Commands(presetSupported bool) []string {
	var commands []string
	if presetSupported && c.wantsPreset() {
		commands = append(commands, fmt.Sprintf("SPPR %d", c.Preset))
	}
	lpf := c.LowPassForLFE
	if lpf <= 0 {
		lpf = DefaultLowPassForLFE
	}
	return append(commands,
		"SSSWM LFE",
		"SSSWO LFE",
		"SSLFL "+strconv.FormatFloat(lpf, 'f', -1, 64),
	)
}

func (c Config) wantsPreset() bool {
	return c.Preset == 1 || c.Preset == 2
}

// Run powers the receiver on and puts the subwoofer output into LFE mode with
// the calibrated low-pass. A configured preset is selected only when the
// receiver answers the preset query; other replies are only logged.
func Run(ctx context.Context, config Config, logger *slog.Logger) error {
	dialer := net.Dialer{Timeout: config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", config.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Address, err)
	}
	defer conn.Close()

	logger.Info("Telnet connected", slog.String("address", config.Address))

	replies := make(chan string, 64)
	go readReplies(conn, replies, logger)

	if err := writeLine(conn, "ZMON"); err != nil {
		return err
	}
	logger.Info("Powering on receiver", slog.Duration("wait", config.PowerOnWait))
	if err := sleep(ctx, config.PowerOnWait); err != nil {
		return err
	}

	presetSupported := false
	if config.wantsPreset() {
		presetSupported, err = queryPreset(ctx, conn, replies, config.PresetQueryTimeout, logger)
		if err != nil {
			return err
		}
	}

	for _, cmd := range config.Commands(presetSupported) {
		if err := writeLine(conn, cmd); err != nil {
			return err
		}
		logger.Debug("Telnet command sent", slog.String("command", cmd))
		if err := sleep(ctx, config.CommandGap); err != nil {
			return err
		}
	}

	logger.Info("Telnet pre-setup complete")
	return nil
}

func writeLine(conn net.Conn, line string) error {
	if _, err := conn.Write([]byte(line + "\r")); err != nil {
		return fmt.Errorf("failed to send %q: %w", line, err)
	}
	return nil
}

// queryPreset asks for the active preset. Receivers without presets never answer.
func queryPreset(ctx context.Context, conn net.Conn, replies <-chan string, timeout time.Duration, logger *slog.Logger) (bool, error) {
	if timeout <= 0 {
		timeout = DefaultPresetQueryTimeout
	}

	// Power-on echoes are not answers
	for drained := false; !drained; {
		select {
		case <-replies:
		default:
			drained = true
		}
	}

	if err := writeLine(conn, "SPPR ?"); err != nil {
		return false, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			logger.Warn("Receiver does not support multiple presets, keeping the current one")
			return false, nil
		case line, ok := <-replies:
			if !ok {
				return false, fmt.Errorf("connection closed while querying preset")
			}
			if preset, found := parsePreset(line); found {
				logger.Info("Receiver preset", slog.String("current", preset))
				return true, nil
			}
		}
	}
}

// parsePreset matches "SPPR 1" and "SPPR 2"
func parsePreset(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "SPPR" {
		return "", false
	}
	if fields[1] != "1" && fields[1] != "2" {
		return "", false
	}
	return fields[1], true
}

// readReplies splits the telnet stream on CR and forwards each line until the
// connection is closed. Lines nobody waits for are dropped once replies is full.
func readReplies(conn net.Conn, replies chan<- string, logger *slog.Logger) {
	defer close(replies)

	scanner := bufio.NewScanner(conn)
	scanner.Split(scanCR)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("Telnet reply", slog.String("data", line))
		select {
		case replies <- line:
		default:
		}
	}
}

func scanCR(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
