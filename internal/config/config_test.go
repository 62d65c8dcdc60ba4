package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			Address:         "0.0.0.0",
			ShutdownTimeout: 10,
		},
		Audio: AudioConfig{
			SampleRate:           16000,
			RollingBufferSeconds: 30.0,
			SessionTimeout:       300,
		},
		VAD: VADConfig{
			Threshold:         0.3,
			WindowSize:        512,
			EvalWindowSeconds: 1.0,
		},
		Segmentation: SegmentationConfig{
			TickInterval:          0.1,
			SilenceDuration:       1.2,
			MaxSegmentDuration:    10.0,
			MinTranscribeInterval: 2.0,
			MinSegmentAudio:       3.0,
		},
		Models: ModelsConfig{
			ASREndpoint:       "http://localhost:9000",
			VADEndpoint:       "http://localhost:9001",
			DiarizerEndpoint:  "http://localhost:9002",
			EmbeddingEndpoint: "http://localhost:9003",
			Timeout:           30,
			MaxRetries:        3,
			MaxConcurrent:     10,
			MaxSegments:       50,
			ProbeInterval:     5,
			ProbeMaxAttempts:  0,
		},
		Diarization: DiarizationConfig{
			MinTurnDuration:   0.4,
			MinSwitchDuration: 0.5,
			MinSpeakers:       1,
			MaxSpeakers:       4,
		},
		Speaker: SpeakerConfig{
			SimilarityThreshold: 0.82,
			MinEmbedDuration:    0.8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid server port",
			mutate:      func(c *Config) { c.Server.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "invalid audio sample rate",
			mutate:      func(c *Config) { c.Audio.SampleRate = 8000 },
			expectError: true,
			errorMsg:    "sample_rate must be 16000 Hz",
		},
		{
			name:        "invalid VAD threshold",
			mutate:      func(c *Config) { c.VAD.Threshold = 1.5 },
			expectError: true,
			errorMsg:    "threshold must be between 0 and 1",
		},
		{
			name:        "max segment shorter than silence window",
			mutate:      func(c *Config) { c.Segmentation.MaxSegmentDuration = 1.0 },
			expectError: true,
			errorMsg:    "max_segment_duration",
		},
		{
			name:        "missing asr endpoint",
			mutate:      func(c *Config) { c.Models.ASREndpoint = "" },
			expectError: true,
			errorMsg:    "asr_endpoint cannot be empty",
		},
		{
			name: "optional model endpoints may be empty",
			mutate: func(c *Config) {
				c.Models.VADEndpoint = ""
				c.Models.DiarizerEndpoint = ""
				c.Models.EmbeddingEndpoint = ""
			},
			expectError: false,
		},
		{
			name:        "max speakers below min speakers",
			mutate:      func(c *Config) { c.Diarization.MaxSpeakers = 0 },
			expectError: true,
			errorMsg:    "max_speakers",
		},
		{
			name:        "speaker threshold out of range",
			mutate:      func(c *Config) { c.Speaker.SimilarityThreshold = 2.0 },
			expectError: true,
			errorMsg:    "similarity_threshold",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "trace" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
server:
  port: 8080
  address: "0.0.0.0"
  shutdown_timeout: 10
audio:
  sample_rate: 16000
  rolling_buffer_seconds: 30.0
  session_timeout: 300
vad:
  threshold: 0.3
  window_size: 512
  eval_window_seconds: 1.0
segmentation:
  tick_interval: 0.1
  silence_duration: 1.2
  max_segment_duration: 10.0
  min_transcribe_interval: 2.0
  min_segment_audio: 3.0
models:
  asr_endpoint: "http://localhost:9000"
  vad_endpoint: "http://localhost:9001"
  diarizer_endpoint: "http://localhost:9002"
  embedding_endpoint: "http://localhost:9003"
  timeout: 30
  max_retries: 3
  max_concurrent: 10
  max_segments: 50
  probe_interval: 5
  probe_max_attempts: 0
diarization:
  min_turn_duration: 0.4
  min_switch_duration: 0.5
  min_speakers: 1
  max_speakers: 4
speaker:
  similarity_threshold: 0.82
  min_embed_duration: 0.8
logging:
  level: "info"
  format: "json"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
server:
  port: 8080
  shutdown_timeout: invalid_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
server:
  port: 8080
`,
			expectError: true,
			errorMsg:    "address cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.configYAML), 0644)
			if err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Errorf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestDurationHelpers(t *testing.T) {
	seg := SegmentationConfig{
		TickInterval:          0.1,
		SilenceDuration:       1.2,
		MaxSegmentDuration:    10.0,
		MinTranscribeInterval: 2.0,
	}

	if seg.GetTickInterval() != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", seg.GetTickInterval())
	}

	if seg.GetSilenceDuration() != 1200*time.Millisecond {
		t.Errorf("Expected 1.2 seconds, got %v", seg.GetSilenceDuration())
	}

	if seg.GetMaxSegmentDuration() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", seg.GetMaxSegmentDuration())
	}

	if seg.GetMinTranscribeInterval() != 2*time.Second {
		t.Errorf("Expected 2 seconds, got %v", seg.GetMinTranscribeInterval())
	}

	audio := AudioConfig{SessionTimeout: 300}
	if audio.GetSessionTimeout() != 300*time.Second {
		t.Errorf("Expected 300 seconds, got %v", audio.GetSessionTimeout())
	}

	models := ModelsConfig{Timeout: 30, ProbeInterval: 5}
	if models.GetTimeoutDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", models.GetTimeoutDuration())
	}
	if models.GetProbeInterval() != 5*time.Second {
		t.Errorf("Expected 5 seconds, got %v", models.GetProbeInterval())
	}

	server := ServerConfig{ShutdownTimeout: 10}
	if server.GetShutdownTimeout() != 10*time.Second {
		t.Errorf("Expected 10 seconds, got %v", server.GetShutdownTimeout())
	}
}
