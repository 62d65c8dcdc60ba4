package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/RoastedBrotato/audio-translator/internal/config"
	"github.com/RoastedBrotato/audio-translator/internal/diarize"
	"github.com/RoastedBrotato/audio-translator/internal/metrics"
	"github.com/RoastedBrotato/audio-translator/internal/model"
	"github.com/RoastedBrotato/audio-translator/internal/server"
	"github.com/RoastedBrotato/audio-translator/internal/session"
	"github.com/RoastedBrotato/audio-translator/internal/speaker"
	"github.com/RoastedBrotato/audio-translator/internal/transcribe"
	"github.com/RoastedBrotato/audio-translator/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "audio-translator"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("address", cfg.Server.Address),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("rolling_buffer_seconds", cfg.Audio.RollingBufferSeconds),
		slog.Float64("vad_threshold", cfg.VAD.Threshold),
		slog.Float64("silence_duration", cfg.Segmentation.SilenceDuration),
		slog.Float64("max_segment_duration", cfg.Segmentation.MaxSegmentDuration),
		slog.String("asr_endpoint", cfg.Models.ASREndpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Speech-to-text client (required)
	transcriber, err := transcribe.NewClient(transcribe.Config{
		Endpoint:      cfg.Models.ASREndpoint,
		Timeout:       cfg.Models.GetTimeoutDuration(),
		MaxRetries:    cfg.Models.MaxRetries,
		MaxConcurrent: cfg.Models.MaxConcurrent,
		MaxSegments:   cfg.Models.MaxSegments,
		SampleRate:    cfg.Audio.SampleRate,
		Metrics:       appMetrics,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Optional model clients: a missing endpoint degrades the feature it
	// serves instead of failing startup.
	var scorer vad.Scorer
	var vadClient *vad.Client
	if cfg.Models.VADEndpoint != "" {
		vadClient, err = vad.NewClient(cfg.Models.VADEndpoint, cfg.Models.GetTimeoutDuration())
		if err != nil {
			logger.Error("Failed to create VAD client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		scorer = vadClient
	} else {
		logger.Warn("No VAD endpoint configured, running on RMS fallback")
	}

	var diarizer session.Diarizer
	var diarizeClient *diarize.Client
	if cfg.Models.DiarizerEndpoint != "" {
		diarizeClient, err = diarize.NewClient(cfg.Models.DiarizerEndpoint, cfg.Audio.SampleRate, cfg.Models.GetTimeoutDuration(), cfg.Models.MaxConcurrent)
		if err != nil {
			logger.Error("Failed to create diarization client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		diarizer = diarizeClient
	} else {
		logger.Warn("No diarizer endpoint configured, results carry the default speaker label")
	}

	var embedder speaker.Embedder
	var embedClient *speaker.Client
	if cfg.Models.EmbeddingEndpoint != "" {
		embedClient, err = speaker.NewClient(cfg.Models.EmbeddingEndpoint, cfg.Models.GetTimeoutDuration(), cfg.Models.MaxConcurrent)
		if err != nil {
			logger.Error("Failed to create embedding client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		embedder = embedClient
	} else {
		logger.Warn("No embedding endpoint configured, speaker identity degrades to raw diarizer labels")
	}

	gate := vad.NewGate(scorer, cfg.VAD.Threshold, cfg.VAD.WindowSize, cfg.Audio.SampleRate, logger)

	newTracker := func() *speaker.Tracker {
		return speaker.NewTracker(embedder, cfg.Speaker.SimilarityThreshold, cfg.Speaker.MinEmbedDuration, cfg.Audio.SampleRate, logger)
	}

	finalizer := session.NewFinalizer(transcriber, diarizer, session.FinalizerConfig{
		SampleRate:        cfg.Audio.SampleRate,
		MinTurnDuration:   cfg.Diarization.MinTurnDuration,
		MinSwitchDuration: cfg.Diarization.MinSwitchDuration,
		MinSpeakers:       cfg.Diarization.MinSpeakers,
		MaxSpeakers:       cfg.Diarization.MaxSpeakers,
	}, appMetrics, logger)

	sessionConfig := session.Config{
		SampleRate:            cfg.Audio.SampleRate,
		RollingBufferSeconds:  cfg.Audio.RollingBufferSeconds,
		EvalWindowSeconds:     cfg.VAD.EvalWindowSeconds,
		MinSegmentAudio:       cfg.Segmentation.MinSegmentAudio,
		TickInterval:          cfg.Segmentation.GetTickInterval(),
		SilenceDuration:       cfg.Segmentation.GetSilenceDuration(),
		MaxSegmentDuration:    cfg.Segmentation.GetMaxSegmentDuration(),
		MinTranscribeInterval: cfg.Segmentation.GetMinTranscribeInterval(),
	}

	registry := session.NewRegistry(sessionConfig, gate, transcriber, finalizer, newTracker, cfg.Audio.GetSessionTimeout(), appMetrics, logger)
	logger.Info("Session registry initialized",
		slog.Duration("session_timeout", cfg.Audio.GetSessionTimeout()),
	)

	// Background readiness probing of the model services
	asrReady := model.NewReadiness("asr")
	readiness := []*model.Readiness{asrReady}

	prober := model.NewProber(cfg.Models.GetProbeInterval(), cfg.Models.ProbeMaxAttempts, logger)
	prober.Register(asrReady, transcriber)
	if vadClient != nil {
		r := model.NewReadiness("vad")
		readiness = append(readiness, r)
		prober.Register(r, vadClient)
	}
	if diarizeClient != nil {
		r := model.NewReadiness("diarizer")
		readiness = append(readiness, r)
		prober.Register(r, diarizeClient)
	}
	if embedClient != nil {
		r := model.NewReadiness("embedding")
		readiness = append(readiness, r)
		prober.Register(r, embedClient)
	}
	prober.Start(ctx)

	httpServer := server.New(cfg, registry, transcriber, gate, asrReady, readiness, appMetrics, logger)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	registry.Stop()

	if err := transcriber.Close(); err != nil {
		logger.Warn("Error closing transcription client", slog.String("error", err.Error()))
	}

	stats := transcriber.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("successful_requests", stats.SuccessRequests),
		slog.Float64("success_rate", stats.SuccessRate),
	)

	logger.Info("Service stopped")
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

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
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
