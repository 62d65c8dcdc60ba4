package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Audio        AudioConfig        `yaml:"audio"`
	VAD          VADConfig          `yaml:"vad"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	Models       ModelsConfig       `yaml:"models"`
	Diarization  DiarizationConfig  `yaml:"diarization"`
	Speaker      SpeakerConfig      `yaml:"speaker"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int    `yaml:"port"`
	Address         string `yaml:"address"`
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
}

// AudioConfig contains audio stream parameters
type AudioConfig struct {
	SampleRate           int     `yaml:"sample_rate"`
	RollingBufferSeconds float64 `yaml:"rolling_buffer_seconds"`
	SessionTimeout       int     `yaml:"session_timeout"` // seconds, idle sessions past this are reaped
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	Threshold         float64 `yaml:"threshold"`
	WindowSize        int     `yaml:"window_size"`         // samples
	EvalWindowSeconds float64 `yaml:"eval_window_seconds"` // tail of audio scored each tick
}

// SegmentationConfig contains the segmentation state machine parameters
type SegmentationConfig struct {
	TickInterval          float64 `yaml:"tick_interval"`           // seconds
	SilenceDuration       float64 `yaml:"silence_duration"`        // seconds of silence that finalize a segment
	MaxSegmentDuration    float64 `yaml:"max_segment_duration"`    // seconds
	MinTranscribeInterval float64 `yaml:"min_transcribe_interval"` // seconds between partial transcriptions
	MinSegmentAudio       float64 `yaml:"min_segment_audio"`       // seconds of audio before a partial is attempted
}

// ModelsConfig contains the external model service endpoints
type ModelsConfig struct {
	ASREndpoint       string `yaml:"asr_endpoint"`
	VADEndpoint       string `yaml:"vad_endpoint"`
	DiarizerEndpoint  string `yaml:"diarizer_endpoint"`
	EmbeddingEndpoint string `yaml:"embedding_endpoint"`
	Timeout           int    `yaml:"timeout"` // seconds
	MaxRetries        int    `yaml:"max_retries"`
	MaxConcurrent     int    `yaml:"max_concurrent"`
	MaxSegments       int    `yaml:"max_segments"`
	ProbeInterval     int    `yaml:"probe_interval"`     // seconds
	ProbeMaxAttempts  int    `yaml:"probe_max_attempts"` // 0 probes forever
}

// DiarizationConfig contains diarization post-processing parameters
type DiarizationConfig struct {
	MinTurnDuration   float64 `yaml:"min_turn_duration"`   // seconds, shorter turns are dropped
	MinSwitchDuration float64 `yaml:"min_switch_duration"` // seconds, shorter interlopers are absorbed
	MinSpeakers       int     `yaml:"min_speakers"`
	MaxSpeakers       int     `yaml:"max_speakers"`
}

// SpeakerConfig contains cross-pass speaker identity configuration
type SpeakerConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinEmbedDuration    float64 `yaml:"min_embed_duration"` // seconds of audio required to embed a turn
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Segmentation.Validate(); err != nil {
		return fmt.Errorf("segmentation config: %w", err)
	}

	if err := c.Models.Validate(); err != nil {
		return fmt.Errorf("models config: %w", err)
	}

	if err := c.Diarization.Validate(); err != nil {
		return fmt.Errorf("diarization config: %w", err)
	}

	if err := c.Speaker.Validate(); err != nil {
		return fmt.Errorf("speaker config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout must be at least 1 second, got %d", s.ShutdownTimeout)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 16000 Hz, got %d", a.SampleRate)
	}

	if a.RollingBufferSeconds <= 0 {
		return fmt.Errorf("rolling_buffer_seconds must be positive, got %f", a.RollingBufferSeconds)
	}

	if a.SessionTimeout < 1 {
		return fmt.Errorf("session_timeout must be at least 1 second, got %d", a.SessionTimeout)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.WindowSize < 256 || v.WindowSize > 2048 {
		return fmt.Errorf("window_size must be between 256 and 2048 samples, got %d", v.WindowSize)
	}

	if v.EvalWindowSeconds <= 0 {
		return fmt.Errorf("eval_window_seconds must be positive, got %f", v.EvalWindowSeconds)
	}

	return nil
}

// Validate validates segmentation configuration
func (s *SegmentationConfig) Validate() error {
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %f", s.TickInterval)
	}

	if s.SilenceDuration <= 0 {
		return fmt.Errorf("silence_duration must be positive, got %f", s.SilenceDuration)
	}

	if s.MaxSegmentDuration <= s.SilenceDuration {
		return fmt.Errorf("max_segment_duration (%f) must be greater than silence_duration (%f)",
			s.MaxSegmentDuration, s.SilenceDuration)
	}

	if s.MinTranscribeInterval <= 0 {
		return fmt.Errorf("min_transcribe_interval must be positive, got %f", s.MinTranscribeInterval)
	}

	if s.MinSegmentAudio <= 0 {
		return fmt.Errorf("min_segment_audio must be positive, got %f", s.MinSegmentAudio)
	}

	return nil
}

// Validate validates model services configuration
func (m *ModelsConfig) Validate() error {
	if m.ASREndpoint == "" {
		return fmt.Errorf("asr_endpoint cannot be empty")
	}

	// The remaining endpoints are optional: a missing endpoint degrades the
	// feature it serves instead of failing startup.

	if m.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", m.Timeout)
	}

	if m.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", m.MaxRetries)
	}

	if m.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", m.MaxConcurrent)
	}

	if m.MaxSegments < 1 {
		return fmt.Errorf("max_segments must be at least 1, got %d", m.MaxSegments)
	}

	if m.ProbeInterval < 1 {
		return fmt.Errorf("probe_interval must be at least 1 second, got %d", m.ProbeInterval)
	}

	if m.ProbeMaxAttempts < 0 {
		return fmt.Errorf("probe_max_attempts cannot be negative, got %d", m.ProbeMaxAttempts)
	}

	return nil
}

// Validate validates diarization configuration
func (d *DiarizationConfig) Validate() error {
	if d.MinTurnDuration < 0 {
		return fmt.Errorf("min_turn_duration cannot be negative, got %f", d.MinTurnDuration)
	}

	if d.MinSwitchDuration < 0 {
		return fmt.Errorf("min_switch_duration cannot be negative, got %f", d.MinSwitchDuration)
	}

	if d.MinSpeakers < 1 {
		return fmt.Errorf("min_speakers must be at least 1, got %d", d.MinSpeakers)
	}

	if d.MaxSpeakers < d.MinSpeakers {
		return fmt.Errorf("max_speakers (%d) must be at least min_speakers (%d)",
			d.MaxSpeakers, d.MinSpeakers)
	}

	return nil
}

// Validate validates speaker identity configuration
func (s *SpeakerConfig) Validate() error {
	if s.SimilarityThreshold < -1 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be between -1 and 1, got %f", s.SimilarityThreshold)
	}

	if s.MinEmbedDuration < 0 {
		return fmt.Errorf("min_embed_duration cannot be negative, got %f", s.MinEmbedDuration)
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

	return nil
}

// GetShutdownTimeout returns the shutdown timeout as a time.Duration
func (s *ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetSessionTimeout returns the session idle timeout as a time.Duration
func (a *AudioConfig) GetSessionTimeout() time.Duration {
	return time.Duration(a.SessionTimeout) * time.Second
}

// GetTickInterval returns the processing tick interval as a time.Duration
func (s *SegmentationConfig) GetTickInterval() time.Duration {
	return time.Duration(s.TickInterval * float64(time.Second))
}

// GetSilenceDuration returns the finalizing silence duration as a time.Duration
func (s *SegmentationConfig) GetSilenceDuration() time.Duration {
	return time.Duration(s.SilenceDuration * float64(time.Second))
}

// GetMaxSegmentDuration returns the maximum segment duration as a time.Duration
func (s *SegmentationConfig) GetMaxSegmentDuration() time.Duration {
	return time.Duration(s.MaxSegmentDuration * float64(time.Second))
}

// GetMinTranscribeInterval returns the partial transcription spacing as a time.Duration
func (s *SegmentationConfig) GetMinTranscribeInterval() time.Duration {
	return time.Duration(s.MinTranscribeInterval * float64(time.Second))
}

// GetTimeoutDuration returns the model request timeout as a time.Duration
func (m *ModelsConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(m.Timeout) * time.Second
}

// GetProbeInterval returns the readiness probe interval as a time.Duration
func (m *ModelsConfig) GetProbeInterval() time.Duration {
	return time.Duration(m.ProbeInterval) * time.Second
}
