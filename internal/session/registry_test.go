package session

import (
	"context"
	"testing"
	"time"

	"github.com/RoastedBrotato/audio-translator/internal/protocol"
	"github.com/RoastedBrotato/audio-translator/internal/speaker"
	"github.com/RoastedBrotato/audio-translator/internal/transcribe"
	"github.com/RoastedBrotato/audio-translator/internal/vad"
)

func testRegistry(t *testing.T, transcriber Transcriber) *Registry {
	t.Helper()

	cfg := testConfig()
	gate := vad.NewGate(nil, 0.3, 0, cfg.SampleRate, testLogger())
	finalizer := NewFinalizer(transcriber, nil, testFinalizerConfig(), nil, testLogger())
	newTracker := func() *speaker.Tracker {
		return speaker.NewTracker(nil, 0.82, 0.8, cfg.SampleRate, testLogger())
	}

	r := NewRegistry(cfg, gate, transcriber, finalizer, newTracker, 5*time.Minute, nil, testLogger())
	t.Cleanup(r.Stop)
	return r
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := testRegistry(t, &stubTranscriber{text: "irrelevant"})

	s, err := r.CreateSession(protocol.StreamParams{SessionID: "sess-1", Language: "en"}, &captureEmitter{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, ok := r.GetSession("sess-1")
	if !ok || got != s {
		t.Error("Expected to retrieve the created session")
	}

	if r.ActiveSessionCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", r.ActiveSessionCount())
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := testRegistry(t, &stubTranscriber{text: "irrelevant"})

	if _, err := r.CreateSession(protocol.StreamParams{SessionID: "sess-1"}, &captureEmitter{}); err != nil {
		t.Fatalf("First CreateSession failed: %v", err)
	}
	if _, err := r.CreateSession(protocol.StreamParams{SessionID: "sess-1"}, &captureEmitter{}); err == nil {
		t.Fatal("Expected error for duplicate session id")
	}
}

func TestCloseSessionStoresFinalResult(t *testing.T) {
	transcriber := &stubTranscriber{text: "the full recording transcript"}
	r := testRegistry(t, transcriber)

	s, err := r.CreateSession(protocol.StreamParams{SessionID: "sess-1", Language: "en"}, &captureEmitter{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	// Enough retained audio for the full pass (minimum is 2s).
	s.AddAudio(loudSamples(3.0, s.cfg.SampleRate))

	r.CloseSession(s)

	if _, ok := r.GetSession("sess-1"); ok {
		t.Error("Expected session removed from registry")
	}

	// Finalization runs as an independent goroutine; poll for the result.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if result, ok := r.GetResult("sess-1"); ok {
			if result.FullText != "the full recording transcript" {
				t.Errorf("Unexpected full text: %q", result.FullText)
			}
			if result.NumSpeakers != 1 {
				t.Errorf("Expected 1 speaker, got %d", result.NumSpeakers)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("Finalization result never stored")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseSessionWithTooLittleAudioStoresNothing(t *testing.T) {
	r := testRegistry(t, &stubTranscriber{text: "irrelevant"})

	s, err := r.CreateSession(protocol.StreamParams{SessionID: "sess-short"}, &captureEmitter{})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	s.AddAudio(loudSamples(0.5, s.cfg.SampleRate))
	r.CloseSession(s)

	time.Sleep(100 * time.Millisecond)
	if _, ok := r.GetResult("sess-short"); ok {
		t.Error("Expected no stored result for a session below the audio minimum")
	}
}

func TestGetResultUnknownSession(t *testing.T) {
	r := testRegistry(t, &stubTranscriber{text: "irrelevant"})

	if _, ok := r.GetResult("never-existed"); ok {
		t.Error("Expected no result for unknown session id")
	}
}

func TestTrackerReusedAcrossBatchCalls(t *testing.T) {
	r := testRegistry(t, &stubTranscriber{text: "irrelevant"})

	first := r.Tracker("batch-user")
	second := r.Tracker("batch-user")
	if first != second {
		t.Error("Expected the same tracker for repeated calls with one session id")
	}

	other := r.Tracker("different-user")
	if other == first {
		t.Error("Expected distinct trackers for distinct session ids")
	}
}

func TestProcessBatch(t *testing.T) {
	transcriber := &stubSegmentTranscriber{
		result: &transcribe.Result{
			Text:     "batch audio transcript",
			Segments: []transcribe.Segment{{Start: 0, End: 3, Text: "batch audio transcript"}},
		},
	}
	r := testRegistry(t, transcriber)

	result, err := r.ProcessBatch(context.Background(), silentSamples(3.0, 16000), "en", 0, 0, "")
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if result.FullText != "batch audio transcript" {
		t.Errorf("Unexpected full text: %q", result.FullText)
	}
	if len(result.Segments) != 1 || result.Segments[0].Speaker != "SPEAKER_00" {
		t.Errorf("Unexpected segments: %+v", result.Segments)
	}
}

func TestSessionInfoListing(t *testing.T) {
	r := testRegistry(t, &stubTranscriber{text: "irrelevant"})

	if _, err := r.CreateSession(protocol.StreamParams{SessionID: "a"}, &captureEmitter{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateSession(protocol.StreamParams{SessionID: "b"}, &captureEmitter{}); err != nil {
		t.Fatal(err)
	}

	infos := r.GetAllSessionInfo()
	if len(infos) != 2 {
		t.Fatalf("Expected 2 session infos, got %d", len(infos))
	}
}
