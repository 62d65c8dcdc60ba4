package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription service
type Metrics struct {
	// Audio ingest metrics
	FramesReceived prometheus.Counter
	FrameBytes     prometheus.Counter
	DecodeErrors   prometheus.Counter

	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsCreated   prometheus.Counter
	SessionsDestroyed prometheus.Counter
	SessionDuration   prometheus.Histogram

	// VAD metrics
	VADWindowsProcessed prometheus.Counter
	VADSpeechDetected   prometheus.Counter

	// Transcript emission metrics
	PartialsEmitted       prometheus.Counter
	FinalsEmitted         prometheus.Counter
	HallucinationsDropped prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Finalization metrics
	FinalizeSuccesses prometheus.Counter
	FinalizeFailures  prometheus.Counter
	FinalizeDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Audio ingest metrics
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_frames_received_total",
			Help: "Total number of audio frames received over streaming connections",
		}),
		FrameBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_frame_bytes_total",
			Help: "Total number of audio bytes received over streaming connections",
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_frame_decode_errors_total",
			Help: "Total number of rejected audio frames",
		}),

		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "asr_active_sessions",
			Help: "Current number of active streaming sessions",
		}),
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsDestroyed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_sessions_destroyed_total",
			Help: "Total number of sessions destroyed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_session_duration_seconds",
			Help:    "Duration of streaming sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),

		// VAD metrics
		VADWindowsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_vad_windows_processed_total",
			Help: "Total number of VAD windows evaluated",
		}),
		VADSpeechDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_vad_speech_detected_total",
			Help: "Total number of VAD windows classified as speech",
		}),

		// Transcript emission metrics
		PartialsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_partials_emitted_total",
			Help: "Total number of partial transcript messages emitted",
		}),
		FinalsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_finals_emitted_total",
			Help: "Total number of final transcript messages emitted",
		}),
		HallucinationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_hallucinations_dropped_total",
			Help: "Total number of transcripts rejected by the hallucination filter",
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Finalization metrics
		FinalizeSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_finalize_successes_total",
			Help: "Total number of completed full-session finalization passes",
		}),
		FinalizeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "asr_finalize_failures_total",
			Help: "Total number of failed full-session finalization passes",
		}),
		FinalizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "asr_finalize_duration_seconds",
			Help:    "Duration of full-session finalization passes",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asr_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "asr_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordFrameReceived records one inbound audio frame
func (m *Metrics) RecordFrameReceived(sizeBytes int) {
	m.FramesReceived.Inc()
	m.FrameBytes.Add(float64(sizeBytes))
}

// RecordDecodeError increments the rejected frames counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionDestroyed increments the sessions destroyed counter and records duration
func (m *Metrics) RecordSessionDestroyed(durationSeconds float64) {
	m.SessionsDestroyed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordVADWindow records one evaluated VAD window
func (m *Metrics) RecordVADWindow(isSpeech bool) {
	m.VADWindowsProcessed.Inc()
	if isSpeech {
		m.VADSpeechDetected.Inc()
	}
}

// RecordPartialEmitted increments the partials counter
func (m *Metrics) RecordPartialEmitted() {
	m.PartialsEmitted.Inc()
}

// RecordFinalEmitted increments the finals counter
func (m *Metrics) RecordFinalEmitted() {
	m.FinalsEmitted.Inc()
}

// RecordHallucinationDropped increments the hallucination filter counter
func (m *Metrics) RecordHallucinationDropped() {
	m.HallucinationsDropped.Inc()
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordFinalizeSuccess records a completed finalization pass
func (m *Metrics) RecordFinalizeSuccess(durationSeconds float64) {
	m.FinalizeSuccesses.Inc()
	m.FinalizeDuration.Observe(durationSeconds)
}

// RecordFinalizeFailure records a failed finalization pass
func (m *Metrics) RecordFinalizeFailure(durationSeconds float64) {
	m.FinalizeFailures.Inc()
	m.FinalizeDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
