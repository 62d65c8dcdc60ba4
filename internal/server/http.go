package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RoastedBrotato/audio-translator/internal/audio"
	"github.com/RoastedBrotato/audio-translator/internal/config"
	"github.com/RoastedBrotato/audio-translator/internal/metrics"
	"github.com/RoastedBrotato/audio-translator/internal/model"
	"github.com/RoastedBrotato/audio-translator/internal/session"
	"github.com/RoastedBrotato/audio-translator/internal/transcribe"
	"github.com/RoastedBrotato/audio-translator/internal/vad"
)

// maxBatchBodyBytes bounds the audio accepted by the batch endpoint (100 MB,
// about 55 minutes of 16 kHz PCM16).
const maxBatchBodyBytes = 100 << 20

// Server provides the HTTP API: the streaming endpoint, transcript
// retrieval, batch transcription and the monitoring surface.
type Server struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	registry *session.Registry

	transcriber *transcribe.Client
	gate        *vad.Gate
	asrReady    *model.Readiness
	readiness   []*model.Readiness

	metrics   *metrics.Metrics
	startTime time.Time
}

// New creates the HTTP API server. asrReady gates the transcription
// endpoints; readiness lists every probed model service for reporting.
func New(cfg *config.Config, registry *session.Registry, transcriber *transcribe.Client, gate *vad.Gate, asrReady *model.Readiness, readiness []*model.Readiness, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		logger:      logger,
		config:      cfg,
		registry:    registry,
		transcriber: transcriber,
		gate:        gate,
		asrReady:    asrReady,
		readiness:   readiness,
		metrics:     m,
		startTime:   time.Now(),
	}

	router := chi.NewRouter()
	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:     router,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupRoutes configures the HTTP API routes.
func (s *Server) setupRoutes(router chi.Router) {
	// Streaming endpoint (no read/write timeouts: connections are long-lived)
	router.Get("/v1/stream", s.handleStream)

	// Transcription endpoints
	router.Get("/v1/transcriptions/{sessionID}", s.withMetrics("/v1/transcriptions/{sessionID}", s.handleGetTranscription))
	router.Post("/v1/transcribe", s.withMetrics("/v1/transcribe", s.handleBatchTranscribe))
	router.Get("/v1/sessions", s.withMetrics("/v1/sessions", s.handleSessions))

	// Monitoring endpoints
	router.Get("/health", s.withMetrics("/health", s.handleHealth))
	router.Get("/stats", s.withMetrics("/stats", s.handleStats))
	router.Get("/config", s.withMetrics("/config", s.handleConfig))
	router.Handle("/metrics", promhttp.Handler())

	router.Get("/", s.withMetrics("/", s.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection.
func (s *Server) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		s.metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			s.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		slog.String("address", s.server.Addr),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server...")
	return s.server.Shutdown(ctx)
}

// requireASR rejects requests while the speech model is not usable. Loading
// returns a retryable 503; failed returns a terminal 503.
func (s *Server) requireASR(w http.ResponseWriter) bool {
	switch s.asrReady.State() {
	case model.StateReady:
		return true
	case model.StateLoading:
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "speech model is still loading, retry later")
	default:
		writeError(w, http.StatusServiceUnavailable, "speech model is unavailable")
	}
	return false
}

// handleGetTranscription implements GET /v1/transcriptions/{sessionID}.
// A missing result is indistinguishable from a still-processing session by
// design: absence means "not available", never a partial result.
func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	result, ok := s.registry.GetResult(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found or still processing")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleBatchTranscribe implements POST /v1/transcribe: one complete audio
// buffer in, the speaker-labeled transcript out, synchronously. The body is
// WAV or raw 16-bit little-endian PCM at the configured sample rate.
func (s *Server) handleBatchTranscribe(w http.ResponseWriter, r *http.Request) {
	if !s.requireASR(w) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxBatchBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "audio too large")
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty request body")
		return
	}

	samples, err := s.decodeBatchAudio(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	language := strings.TrimSpace(query.Get("language"))
	if strings.EqualFold(language, "auto") {
		language = ""
	}
	minSpeakers := queryInt(query.Get("min_speakers"))
	maxSpeakers := queryInt(query.Get("max_speakers"))
	sessionID := strings.TrimSpace(query.Get("session_id"))

	result, err := s.registry.ProcessBatch(r.Context(), samples, language, minSpeakers, maxSpeakers, sessionID)
	if err != nil {
		s.logger.Warn("Batch transcription failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// decodeBatchAudio accepts WAV (validated mono PCM16) or raw PCM16 bytes.
func (s *Server) decodeBatchAudio(body []byte) ([]float32, error) {
	if audio.IsWAV(body) {
		samples, sampleRate, err := audio.DecodeWAV(body)
		if err != nil {
			return nil, fmt.Errorf("invalid WAV payload: %w", err)
		}
		if sampleRate != s.config.Audio.SampleRate {
			return nil, fmt.Errorf("unsupported sample rate %d, expected %d", sampleRate, s.config.Audio.SampleRate)
		}
		return samples, nil
	}

	samples, err := audio.DecodePCM16(body)
	if err != nil {
		return nil, fmt.Errorf("invalid PCM payload: %w", err)
	}
	return samples, nil
}

// handleSessions implements GET /v1/sessions.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.GetAllSessionInfo()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_sessions": len(infos),
		"timestamp":      time.Now().UTC(),
		"sessions":       infos,
	})
}

// handleHealth implements the /health endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	models := make(map[string]string, len(s.readiness))
	for _, rd := range s.readiness {
		models[rd.Name()] = rd.State().String()
	}

	status := "healthy"
	if !s.asrReady.Ready() {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
		"service": map[string]interface{}{
			"name":    "audio-translator",
			"version": "1.0.0",
		},
		"models":          models,
		"active_sessions": s.registry.ActiveSessionCount(),
	})
}

// handleStats implements the /stats endpoint.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC(),
		"sessions": map[string]interface{}{
			"active_count": s.registry.ActiveSessionCount(),
		},
		"transcription": s.transcriber.GetStats(),
		"vad":           s.gate.GetStats(),
	})
}

// handleConfig implements the /config endpoint.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"server": map[string]interface{}{
			"port":    s.config.Server.Port,
			"address": s.config.Server.Address,
		},
		"audio": map[string]interface{}{
			"sample_rate":            s.config.Audio.SampleRate,
			"rolling_buffer_seconds": s.config.Audio.RollingBufferSeconds,
			"session_timeout":        s.config.Audio.SessionTimeout,
		},
		"vad": map[string]interface{}{
			"threshold":           s.config.VAD.Threshold,
			"window_size":         s.config.VAD.WindowSize,
			"eval_window_seconds": s.config.VAD.EvalWindowSeconds,
		},
		"segmentation": map[string]interface{}{
			"tick_interval":           s.config.Segmentation.TickInterval,
			"silence_duration":        s.config.Segmentation.SilenceDuration,
			"max_segment_duration":    s.config.Segmentation.MaxSegmentDuration,
			"min_transcribe_interval": s.config.Segmentation.MinTranscribeInterval,
			"min_segment_audio":       s.config.Segmentation.MinSegmentAudio,
		},
		"diarization": map[string]interface{}{
			"min_turn_duration":   s.config.Diarization.MinTurnDuration,
			"min_switch_duration": s.config.Diarization.MinSwitchDuration,
			"min_speakers":        s.config.Diarization.MinSpeakers,
			"max_speakers":        s.config.Diarization.MaxSpeakers,
		},
		"speaker": map[string]interface{}{
			"similarity_threshold": s.config.Speaker.SimilarityThreshold,
			"min_embed_duration":   s.config.Speaker.MinEmbedDuration,
		},
		"logging": map[string]interface{}{
			"level":  s.config.Logging.Level,
			"format": s.config.Logging.Format,
			"output": s.config.Logging.Output,
		},
	})
}

// handleRoot implements the / endpoint with API documentation.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Streaming Transcription Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /v1/stream":                      "WebSocket audio streaming (query: session_id, language)",
			"GET /v1/transcriptions/{session_id}": "Retrieve a finalized session transcript",
			"POST /v1/transcribe":                 "Batch transcription of a complete audio buffer",
			"GET /v1/sessions":                    "List active streaming sessions",
			"GET /health":                         "Service health and model readiness",
			"GET /stats":                          "Service statistics",
			"GET /config":                         "Service configuration",
			"GET /metrics":                        "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
