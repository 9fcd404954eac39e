package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/yookoala/realpath"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/calibration"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/config"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/metrics"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/presetup"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/progress"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/server"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/transfer"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/transport"
)

const (
	serviceName    = "ocatransfer"
	serviceVersion = "1.0.0"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to configuration file (defaults are used when empty)")
		target     = pflag.StringP("target", "t", "", "IPv4 address of the receiver")
		filePath   = pflag.StringP("file", "f", "", "Path to the .oca calibration file")
		logLevel   = pflag.String("log-level", "", "Override logging level (debug, info, warn, error)")
		version    = pflag.BoolP("version", "v", false, "Print version and exit")
	)
	pflag.Parse()

	if *version {
		fmt.Printf("%s %s\n", serviceName, serviceVersion)
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	if *target != "" {
		cfg.Target.Address = *target
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
		if err := cfg.Logging.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --log-level: %v\n", err)
			return 1
		}
	}

	if !isIPv4(cfg.Target.Address) {
		fmt.Fprintf(os.Stderr, "A valid IPv4 target address is required (--target), got %q\n", cfg.Target.Address)
		return 1
	}
	ocaPath, err := resolveFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Transfer starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("target", cfg.Target.Address),
		slog.String("file", ocaPath),
	)

	file, err := calibration.Load(ocaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load calibration file: %v\n", err)
		return 1
	}
	logger.Info("Calibration file loaded",
		slog.String("eq_type", file.EQType.String()),
		slog.Int("channels", len(file.Channels)),
		slog.Float64("lpf_for_lfe", file.LowPassForLFE),
	)

	// A signal closes the connection and ends the run with an error
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Presetup.Enabled {
		setup := presetup.Config{
			Address:       net.JoinHostPort(cfg.Target.Address, strconv.Itoa(cfg.Presetup.Port)),
			Preset:        cfg.Presetup.Preset,
			LowPassForLFE: file.LowPassForLFE,
			DialTimeout:   cfg.Timeouts.GetConnectDuration(),
			PowerOnWait:   cfg.Presetup.GetPowerOnDuration(),
			CommandGap:    cfg.Presetup.GetCommandGapDuration(),
		}
		if err := presetup.Run(ctx, setup, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Telnet pre-setup failed: %v\n", err)
			return 1
		}
	}

	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(registry)

	observers := transfer.Observers{transfer.NewMetricsObserver(appMetrics)}

	var publisher *progress.Publisher
	if cfg.MQTT.Enabled {
		publisher = progress.Connect(progress.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
		}, logger)
		defer publisher.Close()
		observers = append(observers, publisher)
	}

	orch := transfer.New(transferConfig(cfg), file, observers, logger)

	if cfg.HTTP.Enabled {
		httpServer := server.NewHTTPServer(server.HTTPServerConfig{
			Port:    cfg.HTTP.Port,
			Address: cfg.HTTP.Address,
			Enabled: cfg.HTTP.Enabled,
		}, logger, orch, appMetrics, registry)
		if err := httpServer.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to start HTTP server: %v\n", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Stop(shutdownCtx); err != nil {
				logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
			}
		}()
	}

	if err := orch.Run(ctx); err != nil {
		logger.Error("Transfer failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "Transfer failed: %v\n", err)
		return 1
	}

	p := orch.Progress()
	logger.Info("Transfer complete",
		slog.Int("channels", p.ChannelsDone),
		slog.Int("packets", p.PacketsSent),
		slog.Duration("elapsed", time.Since(p.StartedAt)),
	)
	fmt.Fprintf(os.Stdout, "Calibration transferred to %s (%d channels)\n", cfg.Target.Address, p.ChannelsDone)
	return 0
}

// transferConfig maps the file configuration onto the transfer's timing
func transferConfig(cfg *config.Config) transfer.Config {
	address := net.JoinHostPort(cfg.Target.Address, strconv.Itoa(cfg.Target.Port))
	pacing := cfg.Pacing.Durations()

	return transfer.Config{
		Transport: transport.Config{
			Address:         address,
			ConnectTimeout:  cfg.Timeouts.GetConnectDuration(),
			CommandTimeout:  cfg.Timeouts.GetCommandDuration(),
			NonAckTimeout:   cfg.Timeouts.GetNonAckPacketDuration(),
			CloseGrace:      cfg.Timeouts.GetCloseGraceDuration(),
			ResponseCeiling: cfg.Stream.ResponseCeiling,
			QueryCeiling:    cfg.Stream.QueryCeiling,
		},
		Timing: transfer.Timing{
			FinalizeTimeout:   cfg.Timeouts.GetFinalizeDuration(),
			EnterTimeout:      cfg.Timeouts.GetEnterCalibrationDuration(),
			EnterAttempts:     cfg.EnterCalibration.MaxAttempts,
			EnterBackoff:      cfg.EnterCalibration.GetRetryBackoffDuration(),
			SetDatGap:         pacing.SetDatGap,
			CurveGap:          pacing.CurveGap,
			InitDefault:       pacing.InitDefault,
			FinalDefault:      pacing.FinalDefault,
			InitPairGap:       pacing.InitPairGap,
			TermDelayMultEQ:   pacing.TermDelayMultEQ,
			TermDelayXT32:     pacing.TermDelayXT32,
			FixedFinalizeWait: pacing.FixedFinalizeWait,
		},
		Curves:      cfg.Stream.CurveIDs(),
		SampleRates: cfg.Stream.SampleRateIDs(),
	}
}

// isIPv4 accepts dotted-quad addresses only
func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && !strings.Contains(s, ":")
}

// resolveFile returns the canonical path of an existing calibration file
func resolveFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("a calibration file is required (--file)")
	}
	resolved, err := realpath.Realpath(path)
	if err != nil {
		return "", fmt.Errorf("calibration file %s: %w", path, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("calibration file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("calibration file %s is a directory", path)
	}
	return resolved, nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// A file path, rotated by size
		output = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
