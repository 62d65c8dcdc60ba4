// Package config provides configuration loading and validation for the
// streaming transcription service. It handles YAML-based configuration with
// per-section validation and duration helpers for all time-valued parameters.
package config
