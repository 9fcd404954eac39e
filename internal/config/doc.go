// Package config provides configuration loading and validation for the
// calibration transfer tool.
// It handles YAML-based configuration layered over built-in defaults, validates
// every section, and converts the millisecond settings into durations for the
// transport and transfer components.
package config
