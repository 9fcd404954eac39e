package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/avrsim"
)

const serviceVersion = "1.0.0"

// scenario is the optional YAML file describing the simulated receiver
type scenario struct {
	Info   map[string]any `yaml:"info"`
	Status map[string]any `yaml:"status"`
}

func main() {
	var (
		listen       = pflag.StringP("listen", "l", "0.0.0.0:1256", "Address to listen on")
		scenarioPath = pflag.StringP("scenario", "s", "", "YAML file with info and status replies")
		dtype        = pflag.String("dtype", "", "Override the DType reported in receiver info (Float, FixedA)")
		inProgress   = pflag.Bool("in-progress", false, "Send INPROGRESS before every ACK")
		reject       = pflag.String("reject", "", "Command answered with NAK")
		ignoreEnter  = pflag.Int("ignore-enter", 0, "Number of ENTER_AUDY attempts to ignore")
		silent       = pflag.StringSlice("silent", nil, "Commands that are never answered")
		debug        = pflag.BoolP("debug", "d", false, "Log every packet")
		version      = pflag.BoolP("version", "v", false, "Print version and exit")
	)
	pflag.Parse()

	if *version {
		fmt.Printf("avrsim %s\n", serviceVersion)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	config := avrsim.Config{
		Info:                avrsim.DefaultInfo(),
		Status:              avrsim.DefaultStatus(),
		InProgress:          *inProgress,
		InProgressDelay:     200 * time.Millisecond,
		RejectCommand:       *reject,
		IgnoreEnterAttempts: *ignoreEnter,
		SilentCommands:      *silent,
	}

	if *scenarioPath != "" {
		sc, err := loadScenario(*scenarioPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
			os.Exit(1)
		}
		if sc.Info != nil {
			config.Info = sc.Info
		}
		if sc.Status != nil {
			config.Status = sc.Status
		}
	}
	if *dtype != "" {
		if info, ok := config.Info.(map[string]any); ok {
			info["DType"] = *dtype
		}
	}

	sim := avrsim.New(config, logger)
	if err := sim.Start(*listen); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	if err := sim.Stop(); err != nil {
		logger.Error("Error stopping simulator", slog.String("error", err.Error()))
	}
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &sc, nil
}
