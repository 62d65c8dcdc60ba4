package speaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/RoastedBrotato/audio-translator/internal/diarize"
)

// DefaultLabel is assigned when diarization or identification is unavailable.
const DefaultLabel = "SPEAKER_00"

// Embedder extracts a fixed-length voice embedding from an audio span.
// Implemented by the external embedding service client. May be nil, in which
// case identity tracking degrades to raw diarizer labels.
type Embedder interface {
	Embed(ctx context.Context, samples []float32, sampleRate int) ([]float64, error)
}

// Profile is one clustered speaker identity: a running-mean centroid over the
// embeddings of every turn merged into it. Profiles are never deleted for the
// lifetime of their session.
type Profile struct {
	ID       string    `json:"id"`
	Centroid []float64 `json:"-"`
	Count    int       `json:"count"`
}

// Tracker clusters per-turn embeddings into stable speaker identities using
// greedy single-pass nearest-centroid matching. Cost is linear in
// profiles-so-far per turn; similarity ties go to the first profile reaching
// the maximum, deterministic given profile insertion order.
type Tracker struct {
	embedder       Embedder
	threshold      float64
	minTurnSeconds float64
	sampleRate     int
	logger         *slog.Logger

	profiles []*Profile
	nextID   int

	mu sync.Mutex
}

// TrackerStats represents tracker statistics for monitoring.
type TrackerStats struct {
	NumProfiles int  `json:"num_profiles"`
	TotalTurns  int  `json:"total_turns"`
	Degraded    bool `json:"degraded"`
}

// NewTracker creates a speaker identity tracker.
func NewTracker(embedder Embedder, threshold, minTurnSeconds float64, sampleRate int, logger *slog.Logger) *Tracker {
	return &Tracker{
		embedder:       embedder,
		threshold:      threshold,
		minTurnSeconds: minTurnSeconds,
		sampleRate:     sampleRate,
		logger:         logger,
	}
}

// ResolveTurns remaps the raw diarizer labels of one diarization pass to
// persistent profile ids. samples is the audio the turns were produced over,
// with t=0 at samples[0]. Turns whose span is too short to embed, or any turn
// when the embedder is unavailable or failing, keep their raw label.
func (t *Tracker) ResolveTurns(ctx context.Context, turns []diarize.Turn, samples []float32) []diarize.Turn {
	out := make([]diarize.Turn, len(turns))
	copy(out, turns)

	if t.embedder == nil {
		return out
	}

	// Raw labels are stable within one pass: resolve each label once.
	resolved := make(map[string]string)

	for i, turn := range out {
		if id, ok := resolved[turn.Label]; ok {
			out[i].Label = id
			continue
		}

		if turn.Duration() < t.minTurnSeconds {
			continue
		}

		span := t.spanSamples(turn, samples)
		if span == nil {
			continue
		}

		embedding, err := t.embedder.Embed(ctx, span, t.sampleRate)
		if err != nil {
			t.logger.Warn("Embedding extraction failed, keeping raw label",
				slog.String("raw_label", turn.Label),
				slog.Float64("turn_start", turn.Start),
				slog.String("error", err.Error()),
			)
			continue
		}

		id := t.Assign(embedding)
		resolved[turn.Label] = id
		out[i].Label = id
	}

	return out
}

// Assign matches an embedding against every stored profile centroid and
// returns the matched (or newly created) profile id. A match at or above the
// similarity threshold merges into the profile's running mean; anything below
// allocates a fresh sequential profile.
func (t *Tracker) Assign(embedding []float64) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var best *Profile
	bestSim := -1.0
	for _, p := range t.profiles {
		sim := cosineSimilarity(embedding, p.Centroid)
		if sim > bestSim {
			bestSim = sim
			best = p
		}
	}

	if best != nil && bestSim >= t.threshold {
		// Running mean: (centroid*count + embedding) / (count+1)
		for i := range best.Centroid {
			best.Centroid[i] = (best.Centroid[i]*float64(best.Count) + embedding[i]) / float64(best.Count+1)
		}
		best.Count++
		return best.ID
	}

	profile := &Profile{
		ID:       fmt.Sprintf("SPEAKER_%02d", t.nextID),
		Centroid: append([]float64(nil), embedding...),
		Count:    1,
	}
	t.nextID++
	t.profiles = append(t.profiles, profile)
	return profile.ID
}

// NumProfiles returns the number of distinct speaker profiles so far.
func (t *Tracker) NumProfiles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.profiles)
}

// Profiles returns a snapshot of the stored profiles (centroids excluded).
func (t *Tracker) Profiles() []Profile {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Profile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, Profile{ID: p.ID, Count: p.Count})
	}
	return out
}

// GetStats returns tracker statistics.
func (t *Tracker) GetStats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	for _, p := range t.profiles {
		total += p.Count
	}
	return TrackerStats{
		NumProfiles: len(t.profiles),
		TotalTurns:  total,
		Degraded:    t.embedder == nil,
	}
}

// spanSamples extracts the turn's audio span, clamped to the sample range.
func (t *Tracker) spanSamples(turn diarize.Turn, samples []float32) []float32 {
	start := int(turn.Start * float64(t.sampleRate))
	end := int(turn.End * float64(t.sampleRate))

	if start < 0 {
		start = 0
	}
	if end > len(samples) {
		end = len(samples)
	}
	if end-start < int(t.minTurnSeconds*float64(t.sampleRate)) {
		return nil
	}
	return samples[start:end]
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions or zero vectors score -1 (never matched).
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return -1
	}
	return floats.Dot(a, b) / (na * nb)
}
