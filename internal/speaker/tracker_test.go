package speaker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/RoastedBrotato/audio-translator/internal/diarize"
)

type stubEmbedder struct {
	// embeddings returned per call, in order
	embeddings [][]float64
	err        error
	calls      int
}

func (s *stubEmbedder) Embed(ctx context.Context, samples []float32, sampleRate int) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.embeddings) == 0 {
		return nil, fmt.Errorf("no stub embedding left")
	}
	e := s.embeddings[0]
	s.embeddings = s.embeddings[1:]
	return e, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(embedder Embedder) *Tracker {
	return NewTracker(embedder, 0.82, 0.8, 16000, testLogger())
}

// unitVec builds a 2D unit vector at the given angle so that the cosine
// similarity between two vectors is exactly cos(delta).
func unitVec(angle float64) []float64 {
	return []float64{math.Cos(angle), math.Sin(angle)}
}

func TestAssignSimilarEmbeddingsMerge(t *testing.T) {
	tracker := newTestTracker(nil)

	// cos(0.45) ≈ 0.900, above the 0.82 threshold.
	first := tracker.Assign(unitVec(0))
	second := tracker.Assign(unitVec(0.45))

	if first != second {
		t.Errorf("Expected same profile for similar embeddings, got %s and %s", first, second)
	}
	if first != "SPEAKER_00" {
		t.Errorf("Expected first profile SPEAKER_00, got %s", first)
	}

	profiles := tracker.Profiles()
	if len(profiles) != 1 {
		t.Fatalf("Expected 1 profile, got %d", len(profiles))
	}
	if profiles[0].Count != 2 {
		t.Errorf("Expected merged profile count 2, got %d", profiles[0].Count)
	}
}

func TestAssignDissimilarEmbeddingsSplit(t *testing.T) {
	tracker := newTestTracker(nil)

	// cos(1.047) ≈ 0.5, below the 0.82 threshold.
	first := tracker.Assign(unitVec(0))
	second := tracker.Assign(unitVec(1.047))

	if first == second {
		t.Errorf("Expected distinct profiles for dissimilar embeddings, both got %s", first)
	}
	if second != "SPEAKER_01" {
		t.Errorf("Expected sequential id SPEAKER_01, got %s", second)
	}
	if tracker.NumProfiles() != 2 {
		t.Errorf("Expected 2 profiles, got %d", tracker.NumProfiles())
	}
}

func TestAssignRunningMeanCentroid(t *testing.T) {
	tracker := newTestTracker(nil)

	tracker.Assign([]float64{1, 0})
	tracker.Assign([]float64{0.9, 0.1})

	tracker.mu.Lock()
	centroid := tracker.profiles[0].Centroid
	tracker.mu.Unlock()

	if math.Abs(centroid[0]-0.95) > 1e-9 || math.Abs(centroid[1]-0.05) > 1e-9 {
		t.Errorf("Expected centroid [0.95 0.05], got %v", centroid)
	}
}

func TestResolveTurnsLabelCache(t *testing.T) {
	embedder := &stubEmbedder{embeddings: [][]float64{unitVec(0)}}
	tracker := newTestTracker(embedder)

	samples := make([]float32, 16000*10)
	turns := []diarize.Turn{
		{Start: 0, End: 2.0, Label: "RAW_A"},
		{Start: 4.0, End: 6.0, Label: "RAW_A"}, // same raw label, same pass
	}

	out := tracker.ResolveTurns(context.Background(), turns, samples)

	if embedder.calls != 1 {
		t.Errorf("Expected 1 embedding call (label cache hit), got %d", embedder.calls)
	}
	if out[0].Label != "SPEAKER_00" || out[1].Label != "SPEAKER_00" {
		t.Errorf("Expected both turns resolved to SPEAKER_00, got %s and %s", out[0].Label, out[1].Label)
	}
}

func TestResolveTurnsShortSpanKeepsRawLabel(t *testing.T) {
	embedder := &stubEmbedder{embeddings: [][]float64{unitVec(0)}}
	tracker := newTestTracker(embedder)

	samples := make([]float32, 16000*10)
	turns := []diarize.Turn{
		{Start: 0, End: 0.5, Label: "RAW_A"}, // below the 0.8s minimum
	}

	out := tracker.ResolveTurns(context.Background(), turns, samples)

	if embedder.calls != 0 {
		t.Errorf("Expected no embedding call for short span, got %d", embedder.calls)
	}
	if out[0].Label != "RAW_A" {
		t.Errorf("Expected raw label preserved, got %s", out[0].Label)
	}
}

func TestResolveTurnsEmbedderFailureKeepsRawLabel(t *testing.T) {
	embedder := &stubEmbedder{err: fmt.Errorf("service down")}
	tracker := newTestTracker(embedder)

	samples := make([]float32, 16000*10)
	turns := []diarize.Turn{{Start: 0, End: 2.0, Label: "RAW_A"}}

	out := tracker.ResolveTurns(context.Background(), turns, samples)

	if out[0].Label != "RAW_A" {
		t.Errorf("Expected raw label on embedder failure, got %s", out[0].Label)
	}
	if tracker.NumProfiles() != 0 {
		t.Errorf("Expected no profiles created, got %d", tracker.NumProfiles())
	}
}

func TestResolveTurnsNilEmbedderDegrades(t *testing.T) {
	tracker := newTestTracker(nil)

	turns := []diarize.Turn{{Start: 0, End: 2.0, Label: "RAW_A"}}
	out := tracker.ResolveTurns(context.Background(), turns, make([]float32, 16000*4))

	if out[0].Label != "RAW_A" {
		t.Errorf("Expected raw label with nil embedder, got %s", out[0].Label)
	}
	if !tracker.GetStats().Degraded {
		t.Error("Expected degraded stats with nil embedder")
	}
}

func TestResolveTurnsCrossPassIdentity(t *testing.T) {
	// Two independent passes with different raw labels for the same voice
	// must resolve to one profile.
	embedder := &stubEmbedder{embeddings: [][]float64{unitVec(0), unitVec(0.3)}}
	tracker := newTestTracker(embedder)
	samples := make([]float32, 16000*10)

	first := tracker.ResolveTurns(context.Background(),
		[]diarize.Turn{{Start: 0, End: 2.0, Label: "PASS1_S0"}}, samples)
	second := tracker.ResolveTurns(context.Background(),
		[]diarize.Turn{{Start: 0, End: 2.0, Label: "PASS2_S7"}}, samples)

	if first[0].Label != second[0].Label {
		t.Errorf("Expected stable identity across passes, got %s then %s",
			first[0].Label, second[0].Label)
	}
	if tracker.NumProfiles() != 1 {
		t.Errorf("Expected 1 profile across passes, got %d", tracker.NumProfiles())
	}
}

func TestCosineSimilarity(t *testing.T) {
	if sim := cosineSimilarity([]float64{1, 0}, []float64{1, 0}); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("Expected similarity 1.0 for identical vectors, got %f", sim)
	}
	if sim := cosineSimilarity([]float64{1, 0}, []float64{0, 1}); math.Abs(sim) > 1e-9 {
		t.Errorf("Expected similarity 0.0 for orthogonal vectors, got %f", sim)
	}
	if sim := cosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}); sim != -1 {
		t.Errorf("Expected -1 for dimension mismatch, got %f", sim)
	}
	if sim := cosineSimilarity([]float64{0, 0}, []float64{1, 0}); sim != -1 {
		t.Errorf("Expected -1 for zero vector, got %f", sim)
	}
}
