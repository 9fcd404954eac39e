package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got: %v", err)
	}

	if cfg.Target.Port != 1256 {
		t.Errorf("Expected target port 1256, got %d", cfg.Target.Port)
	}
	if got := cfg.Timeouts.GetCommandDuration(); got != 15*time.Second {
		t.Errorf("Expected command timeout 15s, got %v", got)
	}
	if got := cfg.Timeouts.GetNonAckPacketDuration(); got != 150*time.Millisecond {
		t.Errorf("Expected non-ack period 150ms, got %v", got)
	}
	if got := cfg.Pacing.Durations().TermDelayXT32; got != 1500*time.Millisecond {
		t.Errorf("Expected XT32 termination delay 1.5s, got %v", got)
	}
	if got := cfg.Stream.SampleRateIDs(); len(got) != 3 || got[2] != 0x02 {
		t.Errorf("Expected sample rates [0 1 2], got %v", got)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid default",
			modify:      func(c *Config) {},
			expectError: false,
		},
		{
			name: "invalid target port",
			modify: func(c *Config) {
				c.Target.Port = 70000
			},
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name: "zero command timeout",
			modify: func(c *Config) {
				c.Timeouts.CommandMs = 0
			},
			expectError: true,
			errorMsg:    "command_ms must be positive",
		},
		{
			name: "no enter attempts",
			modify: func(c *Config) {
				c.EnterCalibration.MaxAttempts = 0
			},
			expectError: true,
			errorMsg:    "max_attempts must be at least 1",
		},
		{
			name: "negative pacing",
			modify: func(c *Config) {
				c.Pacing.CurveGapMs = -1
			},
			expectError: true,
			errorMsg:    "curve_gap_ms cannot be negative",
		},
		{
			name: "zero pacing is allowed",
			modify: func(c *Config) {
				c.Pacing = PacingConfig{}
			},
			expectError: false,
		},
		{
			name: "bad sample rate id",
			modify: func(c *Config) {
				c.Stream.SampleRates = []string{"00", "zz"}
			},
			expectError: true,
			errorMsg:    "is not hex",
		},
		{
			name: "empty curves",
			modify: func(c *Config) {
				c.Stream.TargetCurves = nil
			},
			expectError: true,
			errorMsg:    "target_curves cannot be empty",
		},
		{
			name: "presetup preset out of range",
			modify: func(c *Config) {
				c.Presetup.Enabled = true
				c.Presetup.Preset = 3
			},
			expectError: true,
			errorMsg:    "preset must be 0, 1 or 2",
		},
		{
			name: "disabled presetup is not checked",
			modify: func(c *Config) {
				c.Presetup.Preset = 9
			},
			expectError: false,
		},
		{
			name: "http enabled without address",
			modify: func(c *Config) {
				c.HTTP.Enabled = true
				c.HTTP.Address = ""
			},
			expectError: true,
			errorMsg:    "http address cannot be empty",
		},
		{
			name: "mqtt enabled without broker",
			modify: func(c *Config) {
				c.MQTT.Enabled = true
			},
			expectError: true,
			errorMsg:    "broker cannot be empty",
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			expectError: true,
			errorMsg:    "level must be one of",
		},
		{
			name: "invalid log format",
			modify: func(c *Config) {
				c.Logging.Format = "xml"
			},
			expectError: true,
			errorMsg:    "format must be 'json' or 'text'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.modify(config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("overrides keep defaults", func(t *testing.T) {
		path := filepath.Join(dir, "partial.yaml")
		data := []byte(`
target:
  address: "192.168.1.50"
timeouts:
  command_ms: 5000
logging:
  level: debug
  format: json
`)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Expected no error but got: %v", err)
		}
		if cfg.Target.Address != "192.168.1.50" {
			t.Errorf("Expected address 192.168.1.50, got %s", cfg.Target.Address)
		}
		if cfg.Target.Port != 1256 {
			t.Errorf("Expected default port to survive, got %d", cfg.Target.Port)
		}
		if cfg.Timeouts.CommandMs != 5000 {
			t.Errorf("Expected command_ms 5000, got %d", cfg.Timeouts.CommandMs)
		}
		if cfg.Timeouts.FinalizeMs != 30000 {
			t.Errorf("Expected default finalize_ms, got %d", cfg.Timeouts.FinalizeMs)
		}
		if cfg.Logging.Format != "json" {
			t.Errorf("Expected json format, got %s", cfg.Logging.Format)
		}
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.yaml")
		if err := os.WriteFile(path, []byte("mqtt:\n  enabled: true\n"), 0o644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		_, err := Load(path)
		if err == nil || !contains(err.Error(), "mqtt config") {
			t.Errorf("Expected mqtt validation error, got %v", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		if err := os.WriteFile(path, []byte("target: [unclosed"), 0o644); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}
		if _, err := Load(path); err == nil || !contains(err.Error(), "failed to parse") {
			t.Errorf("Expected parse error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Errorf("Expected error for missing file")
		}
	})
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Expected example config to load, got: %v", err)
	}

	want := Default()
	if cfg.Timeouts != want.Timeouts || cfg.Pacing != want.Pacing || cfg.EnterCalibration != want.EnterCalibration {
		t.Errorf("Expected example timing to match defaults")
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("Expected example broker, got %s", cfg.MQTT.Broker)
	}
}

// Helper function to check if string contains substring
func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr ||
		(len(s) > len(substr) &&
			(s[:len(substr)] == substr ||
				s[len(s)-len(substr):] == substr ||
				containsAt(s, substr))))
}

func containsAt(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
