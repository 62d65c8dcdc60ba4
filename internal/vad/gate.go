package vad

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
)

const (
	// MinWindowSamples is the default scoring window
	// (512 samples = 32ms at 16 kHz).
	MinWindowSamples = 512

	// Fallback probabilities when the external scorer is unavailable.
	fallbackSpeechProb  = 0.9
	fallbackSilenceProb = 0.1

	// RMS energy above this level is treated as speech by the fallback.
	fallbackRMSThreshold = 0.01
)

// Scorer produces a speech probability for a window of normalized samples.
// Implemented by the external VAD service client.
type Scorer interface {
	Score(ctx context.Context, samples []float32, sampleRate int) (float64, error)
}

// Gate converts a trailing audio window into a speech probability. It
// delegates to the external scorer and falls back to an RMS energy heuristic
// on any scorer failure. Score never returns an error: the fallback is the
// availability guarantee for the whole pipeline.
type Gate struct {
	scorer     Scorer
	threshold  float64
	windowSize int
	sampleRate int
	logger     *slog.Logger

	// Statistics
	totalWindows  uint64
	speechWindows uint64
	fallbackCalls uint64
	lastProcessed time.Time

	mu sync.RWMutex
}

// GateStats represents gate statistics for monitoring.
type GateStats struct {
	TotalWindows     uint64    `json:"total_windows"`
	SpeechWindows    uint64    `json:"speech_windows"`
	SpeechPercentage float64   `json:"speech_percentage"`
	FallbackCalls    uint64    `json:"fallback_calls"`
	Threshold        float64   `json:"threshold"`
	LastProcessed    time.Time `json:"last_processed"`
}

// NewGate creates a voice activity gate. A nil scorer means the gate runs on
// the RMS fallback alone (external scorer never initialized). windowSize of
// zero or less falls back to MinWindowSamples.
func NewGate(scorer Scorer, threshold float64, windowSize, sampleRate int, logger *slog.Logger) *Gate {
	if windowSize <= 0 {
		windowSize = MinWindowSamples
	}
	return &Gate{
		scorer:     scorer,
		threshold:  threshold,
		windowSize: windowSize,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// WindowSize returns the configured scoring window in samples.
func (g *Gate) WindowSize() int {
	return g.windowSize
}

// Score returns a speech probability in [0, 1] for the trailing window.
// Windows shorter than the scoring window score 0.0; longer windows are
// truncated to their most recent windowSize samples before scoring.
func (g *Gate) Score(ctx context.Context, samples []float32) float64 {
	if len(samples) < g.windowSize {
		return 0.0
	}
	if len(samples) > g.windowSize {
		samples = samples[len(samples)-g.windowSize:]
	}

	prob, usedFallback := g.score(ctx, samples)

	g.mu.Lock()
	g.totalWindows++
	if prob >= g.threshold {
		g.speechWindows++
	}
	if usedFallback {
		g.fallbackCalls++
	}
	g.lastProcessed = time.Now()
	g.mu.Unlock()

	return prob
}

func (g *Gate) score(ctx context.Context, samples []float32) (prob float64, usedFallback bool) {
	if g.scorer != nil {
		p, err := g.scorer.Score(ctx, samples, g.sampleRate)
		if err == nil {
			return clampProb(p), false
		}
		g.logger.Warn("VAD scorer failed, using RMS fallback",
			slog.String("error", err.Error()),
		)
	}

	if RMS(samples) > fallbackRMSThreshold {
		return fallbackSpeechProb, true
	}
	return fallbackSilenceProb, true
}

// HasSpeech reports whether the probability crosses the configured threshold.
func (g *Gate) HasSpeech(prob float64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return prob >= g.threshold
}

// Threshold returns the configured speech probability threshold.
func (g *Gate) Threshold() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.threshold
}

// GetStats returns current gate statistics.
func (g *Gate) GetStats() GateStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pct := float64(0)
	if g.totalWindows > 0 {
		pct = float64(g.speechWindows) / float64(g.totalWindows) * 100
	}

	return GateStats{
		TotalWindows:     g.totalWindows,
		SpeechWindows:    g.speechWindows,
		SpeechPercentage: pct,
		FallbackCalls:    g.fallbackCalls,
		Threshold:        g.threshold,
		LastProcessed:    g.lastProcessed,
	}
}

// RMS computes the root-mean-square energy of a sample window.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	f := make([]float64, len(samples))
	for i, s := range samples {
		f[i] = float64(s)
	}
	return math.Sqrt(floats.Dot(f, f) / float64(len(f)))
}

func clampProb(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
