package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/RoastedBrotato/audio-translator/internal/audio"
	"github.com/RoastedBrotato/audio-translator/internal/metrics"
	"github.com/RoastedBrotato/audio-translator/internal/protocol"
	"github.com/RoastedBrotato/audio-translator/internal/transcribe"
	"github.com/RoastedBrotato/audio-translator/internal/vad"
)

// Transcriber is the slice of the speech-to-text client the session loop
// depends on.
type Transcriber interface {
	Transcribe(ctx context.Context, request *transcribe.Request) (*transcribe.Result, error)
}

// Emitter delivers typed transcript messages back to the streaming client.
// Implemented by the transport layer. Emit errors are logged and ignored:
// a slow or gone client never aborts the evaluation loop.
type Emitter interface {
	Emit(msg protocol.ServerMessage) error
}

// Decision is the outcome of one evaluation tick.
type Decision int

const (
	// DecisionContinue - nothing to do this tick.
	DecisionContinue Decision = iota
	// DecisionTranscribe - re-transcribe the current segment buffer.
	DecisionTranscribe
	// DecisionFinalizeSilence - silence threshold reached, commit the segment.
	DecisionFinalizeSilence
	// DecisionFinalizeMaxDuration - segment hit its maximum length, commit it.
	DecisionFinalizeMaxDuration
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionContinue:
		return "continue"
	case DecisionTranscribe:
		return "transcribe"
	case DecisionFinalizeSilence:
		return "finalize_silence"
	case DecisionFinalizeMaxDuration:
		return "finalize_max_duration"
	default:
		return "unknown"
	}
}

// Config contains the session state machine parameters.
type Config struct {
	SampleRate            int
	RollingBufferSeconds  float64
	EvalWindowSeconds     float64
	MinSegmentAudio       float64 // seconds of segment audio before a partial is attempted
	TickInterval          time.Duration
	SilenceDuration       time.Duration
	MaxSegmentDuration    time.Duration
	MinTranscribeInterval time.Duration
}

// Session is one live streaming connection: the audio buffers plus the
// segmentation state machine driving partial and final transcript emission.
//
// Two concurrent activities share a session: the inbound-frame receiver
// calling AddAudio, and the evaluation loop started by Start. The ring buffer
// carries its own lock for the sample data; the session mutex covers the
// segmentation timers and partial text.
type Session struct {
	ID       string
	Language string

	StartTime time.Time

	ring        *audio.Ring
	gate        *vad.Gate
	transcriber Transcriber
	emitter     Emitter
	cfg         Config
	metrics     *metrics.Metrics
	logger      *slog.Logger

	// now is the clock used by the state machine timers.
	now func() time.Time

	// Segmentation state, guarded by mu.
	lastSpeech     time.Time
	segmentStart   time.Time
	lastTranscribe time.Time
	currentPartial string
	finalized      []string
	lastActivity   time.Time

	partialsEmitted       uint64
	finalsEmitted         uint64
	framesReceived        uint64
	decodeErrors          uint64
	hallucinationsDropped uint64
	transcribeFailures    uint64

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	finalizeOnce sync.Once

	mu sync.Mutex
}

// Info represents session information for monitoring and APIs.
type Info struct {
	SessionID       string          `json:"session_id"`
	Language        string          `json:"language,omitempty"`
	StartTime       time.Time       `json:"start_time"`
	LastActivity    time.Time       `json:"last_activity"`
	Duration        float64         `json:"duration_seconds"`
	PartialsEmitted uint64          `json:"partials_emitted"`
	FinalsEmitted   uint64          `json:"finals_emitted"`
	FramesReceived  uint64          `json:"frames_received"`
	DecodeErrors    uint64          `json:"decode_errors"`
	Hallucinations  uint64          `json:"hallucinations_dropped"`
	TranscribeFails uint64          `json:"transcription_failures"`
	Buffer          audio.RingStats `json:"buffer"`
}

// New creates a session. The metrics handle may be nil (tests).
func New(id, language string, cfg Config, gate *vad.Gate, transcriber Transcriber, emitter Emitter, m *metrics.Metrics, logger *slog.Logger) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		Language:     language,
		StartTime:    now,
		ring:         audio.NewRing(cfg.RollingBufferSeconds, cfg.SampleRate),
		gate:         gate,
		transcriber:  transcriber,
		emitter:      emitter,
		cfg:          cfg,
		metrics:      m,
		logger:       logger.With(slog.String("session_id", id)),
		now:          time.Now,
		lastSpeech:   now,
		segmentStart: now,
		lastActivity: now,
	}
}

// Start launches the evaluation loop as an independent goroutine. The loop
// stops when the parent context is cancelled or Stop is called.
func (s *Session) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the evaluation loop and waits for it to exit.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// AddAudio appends normalized samples from the inbound-frame receiver.
// Never blocks on the evaluation loop beyond the buffer critical section.
func (s *Session) AddAudio(samples []float32) {
	s.ring.Append(samples)

	s.mu.Lock()
	s.lastActivity = s.now()
	s.framesReceived++
	s.mu.Unlock()
}

// RecordDecodeError counts a rejected inbound frame. The transport layer
// calls this; the frame itself never reaches the buffer.
func (s *Session) RecordDecodeError() {
	s.mu.Lock()
	s.decodeErrors++
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent inbound audio.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// RollingAudio returns a copy of the full retained session audio, used by the
// post-disconnect finalization pass.
func (s *Session) RollingAudio() []float32 {
	return s.ring.SnapshotRolling()
}

// FinalizedSegments returns a copy of the committed segment texts in order.
func (s *Session) FinalizedSegments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.finalized))
	copy(out, s.finalized)
	return out
}

// GetInfo returns session information for monitoring.
func (s *Session) GetInfo() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Info{
		SessionID:       s.ID,
		Language:        s.Language,
		StartTime:       s.StartTime,
		LastActivity:    s.lastActivity,
		Duration:        s.now().Sub(s.StartTime).Seconds(),
		PartialsEmitted: s.partialsEmitted,
		FinalsEmitted:   s.finalsEmitted,
		FramesReceived:  s.framesReceived,
		DecodeErrors:    s.decodeErrors,
		Hallucinations:  s.hallucinationsDropped,
		TranscribeFails: s.transcribeFailures,
		Buffer:          s.ring.GetStats(),
	}
}

// run drives the evaluation ticks. Cancellation is cooperative: checked at
// each tick boundary, never mid-tick.
func (s *Session) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Debug("Session evaluation loop started",
		slog.Duration("tick_interval", s.cfg.TickInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Session evaluation loop stopping")
			return
		case <-ticker.C:
			s.processTick(ctx)
		}
	}
}

// processTick runs one evaluation cycle: score the trailing window, update
// the speech timers, then act on the resulting decision. External call
// failures are absorbed as "no update this tick"; the next tick is the retry.
func (s *Session) processTick(ctx context.Context) {
	if s.ring.SegmentLen() < s.gate.WindowSize() {
		return
	}

	tail := s.ring.SnapshotTail(int(s.cfg.EvalWindowSeconds * float64(s.cfg.SampleRate)))
	prob := s.gate.Score(ctx, tail)
	speech := s.gate.HasSpeech(prob)

	if s.metrics != nil {
		s.metrics.RecordVADWindow(speech)
	}

	now := s.now()

	s.mu.Lock()
	decision := s.decide(speech, now)
	if decision == DecisionTranscribe {
		// Reserve the slot before the slow call so back-to-back ticks
		// cannot double-transcribe.
		s.lastTranscribe = now
	}
	s.mu.Unlock()

	switch decision {
	case DecisionTranscribe:
		s.transcribeSegment(ctx)
	case DecisionFinalizeSilence, DecisionFinalizeMaxDuration:
		s.finalizeSegment(decision, now)
	}
}

// decide derives the tick decision from the timers and buffer state.
// Caller holds mu. Finalization wins over transcription so continuous speech
// cannot grow a segment past its maximum.
func (s *Session) decide(speech bool, now time.Time) Decision {
	if speech {
		s.lastSpeech = now
	}

	if s.currentPartial != "" {
		if now.Sub(s.lastSpeech) >= s.cfg.SilenceDuration {
			return DecisionFinalizeSilence
		}
		if now.Sub(s.segmentStart) >= s.cfg.MaxSegmentDuration {
			return DecisionFinalizeMaxDuration
		}
	}

	if speech &&
		now.Sub(s.lastTranscribe) >= s.cfg.MinTranscribeInterval &&
		s.ring.SegmentDuration().Seconds() >= s.cfg.MinSegmentAudio {
		return DecisionTranscribe
	}

	return DecisionContinue
}

// transcribeSegment re-transcribes the entire current segment buffer and
// emits the result as a partial. Whole-buffer re-transcription lets later
// context refine earlier words.
func (s *Session) transcribeSegment(ctx context.Context) {
	samples := s.ring.SnapshotSegment()
	if len(samples) == 0 {
		return
	}

	result, err := s.transcriber.Transcribe(ctx, &transcribe.Request{
		Samples:   samples,
		Language:  s.Language,
		SessionID: s.ID,
	})
	if err != nil {
		s.mu.Lock()
		s.transcribeFailures++
		s.mu.Unlock()
		s.logger.Warn("Partial transcription failed, retrying next tick",
			slog.String("error", err.Error()),
		)
		return
	}

	text := result.Text
	if text == "" {
		return
	}

	if IsHallucination(text) {
		s.mu.Lock()
		s.hallucinationsDropped++
		s.mu.Unlock()
		s.logger.Debug("Dropped hallucinated partial",
			slog.String("text", text),
		)
		if s.metrics != nil {
			s.metrics.RecordHallucinationDropped()
		}
		return
	}

	s.mu.Lock()
	s.currentPartial = text
	s.partialsEmitted++
	s.mu.Unlock()

	s.emit(protocol.Partial(text))
	if s.metrics != nil {
		s.metrics.RecordPartialEmitted()
	}
}

// finalizeSegment commits the current partial as a final segment: emits the
// final message, stores the text, clears the segment buffer and restarts the
// segment timers. The rolling buffer is untouched.
func (s *Session) finalizeSegment(decision Decision, now time.Time) {
	s.mu.Lock()
	text := s.currentPartial
	if text == "" {
		s.mu.Unlock()
		return
	}
	s.currentPartial = ""
	s.finalized = append(s.finalized, text)
	s.segmentStart = now
	s.finalsEmitted++
	s.mu.Unlock()

	s.ring.ClearSegment()

	s.logger.Info("Segment finalized",
		slog.String("reason", decision.String()),
		slog.Int("text_length", len(text)),
	)

	s.emit(protocol.Final(text))
	if s.metrics != nil {
		s.metrics.RecordFinalEmitted()
	}
}

func (s *Session) emit(msg protocol.ServerMessage) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(msg); err != nil {
		s.logger.Warn("Failed to deliver message to client",
			slog.String("type", msg.Type),
			slog.String("error", err.Error()),
		)
	}
}
