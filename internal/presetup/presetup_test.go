package presetup

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		supported bool
		want      []string
	}{
		{
			name:   "no preset",
			config: Config{LowPassForLFE: 120},
			want:   []string{"SSSWM LFE", "SSSWO LFE", "SSLFL 120"},
		},
		{
			name:      "preset 2",
			config:    Config{Preset: 2, LowPassForLFE: 80},
			supported: true,
			want:      []string{"SPPR 2", "SSSWM LFE", "SSSWO LFE", "SSLFL 80"},
		},
		{
			name:   "preset without receiver support",
			config: Config{Preset: 2, LowPassForLFE: 80},
			want:   []string{"SSSWM LFE", "SSSWO LFE", "SSLFL 80"},
		},
		{
			name:      "invalid preset ignored",
			config:    Config{Preset: 3, LowPassForLFE: 250},
			supported: true,
			want:      []string{"SSSWM LFE", "SSSWO LFE", "SSLFL 250"},
		},
		{
			name:   "missing lpf uses default",
			config: Config{},
			want:   []string{"SSSWM LFE", "SSSWO LFE", "SSLFL 120"},
		},
		{
			name:   "fractional lpf",
			config: Config{LowPassForLFE: 90.5},
			want:   []string{"SSSWM LFE", "SSSWO LFE", "SSLFL 90.5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.config.Commands(tt.supported)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// listen accepts one connection and collects every CR-terminated line.
// A non-empty preset answers the preset query.
func listen(t *testing.T, preset string) (string, <-chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	lines := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			lines <- nil
			return
		}
		defer conn.Close()

		var got []string
		scanner := bufio.NewScanner(conn)
		scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
			if i := strings.IndexByte(string(data), '\r'); i >= 0 {
				return i + 1, data[:i], nil
			}
			if atEOF && len(data) > 0 {
				return len(data), data, nil
			}
			return 0, nil, nil
		})
		for scanner.Scan() {
			line := scanner.Text()
			got = append(got, line)
			switch {
			case line == "ZMON":
				conn.Write([]byte("ZMON\r"))
			case line == "SPPR ?" && preset != "":
				conn.Write([]byte("SPPR " + preset + "\r"))
			}
		}
		lines <- got
	}()

	return ln.Addr().String(), lines
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		preset int
		answer string
		want   []string
	}{
		{
			name:   "preset selected after query",
			preset: 1,
			answer: "2",
			want:   []string{"ZMON", "SPPR ?", "SPPR 1", "SSSWM LFE", "SSSWO LFE", "SSLFL 100"},
		},
		{
			name:   "receiver without presets",
			preset: 1,
			want:   []string{"ZMON", "SPPR ?", "SSSWM LFE", "SSSWO LFE", "SSLFL 100"},
		},
		{
			name: "no preset configured",
			want: []string{"ZMON", "SSSWM LFE", "SSSWO LFE", "SSLFL 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, lines := listen(t, tt.answer)

			config := Config{
				Address:            addr,
				Preset:             tt.preset,
				LowPassForLFE:      100,
				DialTimeout:        time.Second,
				PowerOnWait:        20 * time.Millisecond,
				CommandGap:         5 * time.Millisecond,
				PresetQueryTimeout: 200 * time.Millisecond,
			}
			if err := Run(context.Background(), config, testLogger()); err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}

			select {
			case got := <-lines:
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Timed out waiting for telnet lines")
			}
		})
	}
}

func TestParsePreset(t *testing.T) {
	tests := []struct {
		line  string
		want  string
		found bool
	}{
		{"SPPR 1", "1", true},
		{"SPPR 2", "2", true},
		{"SPPR 3", "", false},
		{"SPPR", "", false},
		{"ZMON", "", false},
	}

	for _, tt := range tests {
		got, found := parsePreset(tt.line)
		if got != tt.want || found != tt.found {
			t.Errorf("parsePreset(%q): expected %q (%v), got %q (%v)", tt.line, tt.want, tt.found, got, found)
		}
	}
}

func TestRunCanceled(t *testing.T) {
	addr, _ := listen(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	config := Config{Address: addr, DialTimeout: time.Second, PowerOnWait: time.Minute}
	err := Run(ctx, config, testLogger())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestRunConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	config := Config{Address: addr, DialTimeout: 200 * time.Millisecond}
	if err := Run(context.Background(), config, testLogger()); err == nil {
		t.Error("Expected connect error")
	}
}
