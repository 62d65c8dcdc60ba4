package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RoastedBrotato/audio-translator/internal/diarize"
	"github.com/RoastedBrotato/audio-translator/internal/metrics"
	"github.com/RoastedBrotato/audio-translator/internal/speaker"
	"github.com/RoastedBrotato/audio-translator/internal/transcribe"
)

// Diarizer is the slice of the diarization client the finalization pass
// depends on. May be nil, degrading results to the default speaker label.
type Diarizer interface {
	Diarize(ctx context.Context, samples []float32, minSpeakers, maxSpeakers int) ([]diarize.Turn, error)
}

// ResultSegment is one speaker-labeled span of the finalized transcript.
type ResultSegment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Result is the stored outcome of one finalization or batch pass.
type Result struct {
	FullText    string          `json:"full_text"`
	Segments    []ResultSegment `json:"segments"`
	Language    string          `json:"language,omitempty"`
	Duration    float64         `json:"duration"`
	NumSpeakers int             `json:"num_speakers"`
}

// FinalizerConfig contains the finalization pipeline parameters.
type FinalizerConfig struct {
	SampleRate        int
	MinAudioSeconds   float64 // shorter sessions are not worth a full pass
	MinTurnDuration   float64
	MinSwitchDuration float64
	MinSpeakers       int
	MaxSpeakers       int
}

// Finalizer runs the high-quality full-audio pass: timestamped
// transcription, diarization, turn smoothing, cross-pass speaker identity
// resolution and overlap alignment of segments to speaker turns. The same
// pipeline backs the post-disconnect pass and the batch endpoint.
type Finalizer struct {
	transcriber Transcriber
	diarizer    Diarizer
	cfg         FinalizerConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewFinalizer creates a finalization pipeline. diarizer may be nil.
func NewFinalizer(transcriber Transcriber, diarizer Diarizer, cfg FinalizerConfig, m *metrics.Metrics, logger *slog.Logger) *Finalizer {
	if cfg.MinAudioSeconds <= 0 {
		cfg.MinAudioSeconds = 2.0
	}
	return &Finalizer{
		transcriber: transcriber,
		diarizer:    diarizer,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
	}
}

// Process runs the full pipeline over one complete audio buffer.
// minSpeakers/maxSpeakers of 0 fall back to the configured bounds; tracker
// may be nil, in which case turns keep their diarizer-local labels.
func (f *Finalizer) Process(ctx context.Context, samples []float32, language string, tracker *speaker.Tracker, minSpeakers, maxSpeakers int, sessionID string) (*Result, error) {
	started := time.Now()

	result, err := f.process(ctx, samples, language, tracker, minSpeakers, maxSpeakers, sessionID)

	if f.metrics != nil {
		if err != nil {
			f.metrics.RecordFinalizeFailure(time.Since(started).Seconds())
		} else {
			f.metrics.RecordFinalizeSuccess(time.Since(started).Seconds())
		}
	}

	return result, err
}

func (f *Finalizer) process(ctx context.Context, samples []float32, language string, tracker *speaker.Tracker, minSpeakers, maxSpeakers int, sessionID string) (*Result, error) {
	duration := float64(len(samples)) / float64(f.cfg.SampleRate)
	if duration < f.cfg.MinAudioSeconds {
		return nil, fmt.Errorf("not enough audio for finalization: %.2fs (need %.2fs)", duration, f.cfg.MinAudioSeconds)
	}

	tr, err := f.transcriber.Transcribe(ctx, &transcribe.Request{
		Samples:    samples,
		Language:   language,
		Timestamps: true,
		SessionID:  sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("full-session transcription failed: %w", err)
	}

	if tr.Text == "" || IsHallucination(tr.Text) {
		return nil, fmt.Errorf("full-session transcription produced no usable text")
	}

	turns := f.diarizeTurns(ctx, samples, tracker, minSpeakers, maxSpeakers, sessionID)

	segments := f.alignSegments(tr, turns, duration)

	return &Result{
		FullText:    tr.Text,
		Segments:    segments,
		Language:    tr.Language,
		Duration:    duration,
		NumSpeakers: countSpeakers(segments),
	}, nil
}

// diarizeTurns runs diarization plus post-processing. Any failure degrades
// to no speaker information instead of failing the pass.
func (f *Finalizer) diarizeTurns(ctx context.Context, samples []float32, tracker *speaker.Tracker, minSpeakers, maxSpeakers int, sessionID string) []diarize.Turn {
	if f.diarizer == nil {
		return nil
	}

	if minSpeakers <= 0 {
		minSpeakers = f.cfg.MinSpeakers
	}
	if maxSpeakers <= 0 {
		maxSpeakers = f.cfg.MaxSpeakers
	}

	turns, err := f.diarizer.Diarize(ctx, samples, minSpeakers, maxSpeakers)
	if err != nil {
		f.logger.Warn("Diarization failed, continuing without speaker info",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	turns = diarize.DropShort(turns, f.cfg.MinTurnDuration)
	turns = diarize.Smooth(turns, f.cfg.MinSwitchDuration)

	if tracker != nil {
		turns = tracker.ResolveTurns(ctx, turns, samples)
	}

	return turns
}

// alignSegments assigns a speaker to every transcript segment by temporal
// overlap with the diarization turns. A transcription response without
// segment timestamps collapses to one segment spanning the whole audio.
func (f *Finalizer) alignSegments(tr *transcribe.Result, turns []diarize.Turn, duration float64) []ResultSegment {
	spans := tr.Segments
	if len(spans) == 0 {
		spans = []transcribe.Segment{{Start: 0, End: duration, Text: tr.Text}}
	}

	out := make([]ResultSegment, 0, len(spans))
	for _, span := range spans {
		// Whisper-style segments carry leading spaces; a stored segment is
		// always trimmed and never whitespace-only.
		text := strings.TrimSpace(span.Text)
		if text == "" {
			continue
		}

		label := speaker.DefaultLabel
		if turn, ok := diarize.BestTurn(span.Start, span.End, turns); ok {
			label = turn.Label
		}

		out = append(out, ResultSegment{
			Text:    text,
			Start:   span.Start,
			End:     span.End,
			Speaker: label,
		})
	}

	return out
}

func countSpeakers(segments []ResultSegment) int {
	seen := make(map[string]struct{})
	for _, s := range segments {
		seen[s.Speaker] = struct{}{}
	}
	return len(seen)
}
