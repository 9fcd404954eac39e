package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete transfer configuration
type Config struct {
	Target           TargetConfig           `yaml:"target"`
	Timeouts         TimeoutsConfig         `yaml:"timeouts"`
	EnterCalibration EnterCalibrationConfig `yaml:"enter_calibration"`
	Pacing           PacingConfig           `yaml:"pacing"`
	Stream           StreamConfig           `yaml:"stream"`
	Presetup         PresetupConfig         `yaml:"presetup"`
	HTTP             HTTPConfig             `yaml:"http"`
	MQTT             MQTTConfig             `yaml:"mqtt"`
	Logging          LoggingConfig          `yaml:"logging"`
}

// TargetConfig identifies the receiver
type TargetConfig struct {
	Address string `yaml:"address"` // IPv4 address; usually given on the command line
	Port    int    `yaml:"port"`
}

// TimeoutsConfig contains command and connection timeouts
type TimeoutsConfig struct {
	ConnectMs          int `yaml:"connect_ms"`
	CommandMs          int `yaml:"command_ms"`
	FinalizeMs         int `yaml:"finalize_ms"`
	EnterCalibrationMs int `yaml:"enter_calibration_ms"`
	NonAckPacketMs     int `yaml:"non_ack_packet_ms"`
	CloseGraceMs       int `yaml:"close_grace_ms"`
}

// EnterCalibrationConfig bounds the enter-calibration retry loop
type EnterCalibrationConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
}

// PacingConfig contains the mandatory delays between receiver commands
type PacingConfig struct {
	SetDatGapMs         int `yaml:"setdat_gap_ms"`
	CurveGapMs          int `yaml:"curve_gap_ms"`
	InitDefaultMs       int `yaml:"init_default_ms"`
	FinalDefaultMs      int `yaml:"final_default_ms"`
	InitPairGapMs       int `yaml:"init_pair_gap_ms"`
	TermDelayMultEQMs   int `yaml:"term_delay_multeq_ms"`
	TermDelayXT32Ms     int `yaml:"term_delay_xt32_ms"`
	FixedFinalizeWaitMs int `yaml:"fixed_finalize_wait_ms"`
}

// StreamConfig contains coefficient stream parameters
type StreamConfig struct {
	TargetCurves    []string `yaml:"target_curves"` // hex byte ids, "00" Reference, "01" Flat
	SampleRates     []string `yaml:"sample_rates"`  // hex byte ids
	ResponseCeiling int      `yaml:"response_ceiling"`
	QueryCeiling    int      `yaml:"query_ceiling"`
}

// PresetupConfig contains the optional telnet pre-configuration
type PresetupConfig struct {
	Enabled      bool `yaml:"enabled"`
	Port         int  `yaml:"port"`
	Preset       int  `yaml:"preset"` // 0 leaves the receiver's preset alone
	PowerOnMs    int  `yaml:"power_on_ms"`
	CommandGapMs int  `yaml:"command_gap_ms"`
}

// HTTPConfig contains the status server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// MQTTConfig contains the progress publisher configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is given.
// The pacing values are what receiver firmware needs between commands.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Port: 1256,
		},
		Timeouts: TimeoutsConfig{
			ConnectMs:          5000,
			CommandMs:          15000,
			FinalizeMs:         30000,
			EnterCalibrationMs: 3000,
			NonAckPacketMs:     150,
			CloseGraceMs:       1000,
		},
		EnterCalibration: EnterCalibrationConfig{
			MaxAttempts:    20,
			RetryBackoffMs: 1000,
		},
		Pacing: PacingConfig{
			SetDatGapMs:         250,
			CurveGapMs:          250,
			InitDefaultMs:       250,
			FinalDefaultMs:      250,
			InitPairGapMs:       2000,
			TermDelayMultEQMs:   50,
			TermDelayXT32Ms:     1500,
			FixedFinalizeWaitMs: 10000,
		},
		Stream: StreamConfig{
			TargetCurves:    []string{"00", "01"},
			SampleRates:     []string{"00", "01", "02"},
			ResponseCeiling: 2048,
			QueryCeiling:    8192,
		},
		Presetup: PresetupConfig{
			Enabled:      false,
			Port:         23,
			PowerOnMs:    10000,
			CommandGapMs: 1500,
		},
		HTTP: HTTPConfig{
			Port:    9256,
			Address: "127.0.0.1",
			Enabled: false,
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			ClientID:    "ocatransfer",
			TopicPrefix: "ocatransfer",
			QoS:         0,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads and parses the configuration file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target config: %w", err)
	}

	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts config: %w", err)
	}

	if err := c.EnterCalibration.Validate(); err != nil {
		return fmt.Errorf("enter_calibration config: %w", err)
	}

	if err := c.Pacing.Validate(); err != nil {
		return fmt.Errorf("pacing config: %w", err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	if err := c.Presetup.Validate(); err != nil {
		return fmt.Errorf("presetup config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates target configuration
func (t *TargetConfig) Validate() error {
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", t.Port)
	}
	return nil
}

// Validate validates timeouts
func (t *TimeoutsConfig) Validate() error {
	values := []struct {
		name  string
		value int
	}{
		{"connect_ms", t.ConnectMs},
		{"command_ms", t.CommandMs},
		{"finalize_ms", t.FinalizeMs},
		{"enter_calibration_ms", t.EnterCalibrationMs},
		{"non_ack_packet_ms", t.NonAckPacketMs},
		{"close_grace_ms", t.CloseGraceMs},
	}
	for _, v := range values {
		if v.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", v.name, v.value)
		}
	}
	return nil
}

// Validate validates the retry bound
func (e *EnterCalibrationConfig) Validate() error {
	if e.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", e.MaxAttempts)
	}
	if e.RetryBackoffMs < 0 {
		return fmt.Errorf("retry_backoff_ms cannot be negative, got %d", e.RetryBackoffMs)
	}
	return nil
}

// Validate validates pacing delays
func (p *PacingConfig) Validate() error {
	values := []struct {
		name  string
		value int
	}{
		{"setdat_gap_ms", p.SetDatGapMs},
		{"curve_gap_ms", p.CurveGapMs},
		{"init_default_ms", p.InitDefaultMs},
		{"final_default_ms", p.FinalDefaultMs},
		{"init_pair_gap_ms", p.InitPairGapMs},
		{"term_delay_multeq_ms", p.TermDelayMultEQMs},
		{"term_delay_xt32_ms", p.TermDelayXT32Ms},
		{"fixed_finalize_wait_ms", p.FixedFinalizeWaitMs},
	}
	for _, v := range values {
		if v.value < 0 {
			return fmt.Errorf("%s cannot be negative, got %d", v.name, v.value)
		}
	}
	return nil
}

// Validate validates stream configuration
func (s *StreamConfig) Validate() error {
	if len(s.TargetCurves) == 0 {
		return fmt.Errorf("target_curves cannot be empty")
	}
	if _, err := parseIDs(s.TargetCurves); err != nil {
		return fmt.Errorf("target_curves: %w", err)
	}

	if len(s.SampleRates) == 0 {
		return fmt.Errorf("sample_rates cannot be empty")
	}
	if _, err := parseIDs(s.SampleRates); err != nil {
		return fmt.Errorf("sample_rates: %w", err)
	}

	if s.ResponseCeiling < 64 {
		return fmt.Errorf("response_ceiling must be at least 64 bytes, got %d", s.ResponseCeiling)
	}
	if s.QueryCeiling < 64 {
		return fmt.Errorf("query_ceiling must be at least 64 bytes, got %d", s.QueryCeiling)
	}

	return nil
}

// Validate validates presetup configuration
func (p *PresetupConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", p.Port)
	}
	if p.Preset < 0 || p.Preset > 2 {
		return fmt.Errorf("preset must be 0, 1 or 2, got %d", p.Preset)
	}
	if p.PowerOnMs < 0 || p.CommandGapMs < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates MQTT configuration
func (m *MQTTConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Broker == "" {
		return fmt.Errorf("broker cannot be empty when MQTT is enabled")
	}
	if m.TopicPrefix == "" {
		return fmt.Errorf("topic_prefix cannot be empty when MQTT is enabled")
	}
	if m.QoS < 0 || m.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", m.QoS)
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("output cannot be empty; use stdout, stderr or a file path")
	}

	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits cannot be negative")
	}

	return nil
}

// parseIDs converts two-digit hex ids to bytes
func parseIDs(ids []string) ([]byte, error) {
	out := make([]byte, len(ids))
	for i, id := range ids {
		if len(id) != 2 {
			return nil, fmt.Errorf("id %q must be two hex digits", id)
		}
		b, err := hex.DecodeString(id)
		if err != nil {
			return nil, fmt.Errorf("id %q is not hex: %w", id, err)
		}
		out[i] = b[0]
	}
	return out, nil
}

// CurveIDs returns the target curve ids as bytes
func (s *StreamConfig) CurveIDs() []byte {
	ids, _ := parseIDs(s.TargetCurves)
	return ids
}

// SampleRateIDs returns the sample rate ids as bytes
func (s *StreamConfig) SampleRateIDs() []byte {
	ids, _ := parseIDs(s.SampleRates)
	return ids
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// GetConnectDuration returns the connect timeout as a time.Duration
func (t *TimeoutsConfig) GetConnectDuration() time.Duration { return ms(t.ConnectMs) }

// GetCommandDuration returns the command timeout as a time.Duration
func (t *TimeoutsConfig) GetCommandDuration() time.Duration { return ms(t.CommandMs) }

// GetFinalizeDuration returns the finalize timeout as a time.Duration
func (t *TimeoutsConfig) GetFinalizeDuration() time.Duration { return ms(t.FinalizeMs) }

// GetEnterCalibrationDuration returns the per-attempt enter timeout as a time.Duration
func (t *TimeoutsConfig) GetEnterCalibrationDuration() time.Duration { return ms(t.EnterCalibrationMs) }

// GetNonAckPacketDuration returns the fire-and-forget quiet period as a time.Duration
func (t *TimeoutsConfig) GetNonAckPacketDuration() time.Duration { return ms(t.NonAckPacketMs) }

// GetCloseGraceDuration returns the graceful close window as a time.Duration
func (t *TimeoutsConfig) GetCloseGraceDuration() time.Duration { return ms(t.CloseGraceMs) }

// GetRetryBackoffDuration returns the enter retry backoff as a time.Duration
func (e *EnterCalibrationConfig) GetRetryBackoffDuration() time.Duration { return ms(e.RetryBackoffMs) }

// GetPowerOnDuration returns the telnet power-on wait as a time.Duration
func (p *PresetupConfig) GetPowerOnDuration() time.Duration { return ms(p.PowerOnMs) }

// GetCommandGapDuration returns the gap between telnet commands as a time.Duration
func (p *PresetupConfig) GetCommandGapDuration() time.Duration { return ms(p.CommandGapMs) }

// Durations returns every pacing delay as a time.Duration
func (p *PacingConfig) Durations() PacingDurations {
	return PacingDurations{
		SetDatGap:         ms(p.SetDatGapMs),
		CurveGap:          ms(p.CurveGapMs),
		InitDefault:       ms(p.InitDefaultMs),
		FinalDefault:      ms(p.FinalDefaultMs),
		InitPairGap:       ms(p.InitPairGapMs),
		TermDelayMultEQ:   ms(p.TermDelayMultEQMs),
		TermDelayXT32:     ms(p.TermDelayXT32Ms),
		FixedFinalizeWait: ms(p.FixedFinalizeWaitMs),
	}
}

// PacingDurations is PacingConfig converted to durations
type PacingDurations struct {
	SetDatGap         time.Duration
	CurveGap          time.Duration
	InitDefault       time.Duration
	FinalDefault      time.Duration
	InitPairGap       time.Duration
	TermDelayMultEQ   time.Duration
	TermDelayXT32     time.Duration
	FixedFinalizeWait time.Duration
}
