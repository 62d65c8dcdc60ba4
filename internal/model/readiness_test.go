package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

type stubChecker struct {
	failures int // probes that fail before turning healthy
	calls    int
}

func (s *stubChecker) Healthy(ctx context.Context) error {
	s.calls++
	if s.calls <= s.failures {
		return fmt.Errorf("still loading")
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadinessInitialState(t *testing.T) {
	r := NewReadiness("asr")

	if r.State() != StateLoading {
		t.Errorf("Expected initial state loading, got %s", r.State())
	}
	if r.Ready() {
		t.Error("Expected not ready initially")
	}
	if r.Name() != "asr" {
		t.Errorf("Expected name asr, got %s", r.Name())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateLoading, "loading"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{State(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestProberMarksReady(t *testing.T) {
	r := NewReadiness("vad")
	prober := NewProber(10*time.Millisecond, 0, testLogger())
	prober.Register(r, &stubChecker{failures: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	prober.Start(ctx)
	prober.Wait()

	if r.State() != StateReady {
		t.Errorf("Expected ready after successful probe, got %s", r.State())
	}
}

func TestProberMarksFailedAfterMaxAttempts(t *testing.T) {
	r := NewReadiness("diarizer")
	prober := NewProber(5*time.Millisecond, 3, testLogger())
	prober.Register(r, &stubChecker{failures: 100})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	prober.Start(ctx)
	prober.Wait()

	if r.State() != StateFailed {
		t.Errorf("Expected failed after max attempts, got %s", r.State())
	}
}

func TestProberStopsOnCancel(t *testing.T) {
	r := NewReadiness("embedding")
	prober := NewProber(5*time.Millisecond, 0, testLogger())
	prober.Register(r, &stubChecker{failures: 1 << 30})

	ctx, cancel := context.WithCancel(context.Background())
	prober.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		prober.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Prober did not stop on context cancel")
	}

	if r.State() != StateLoading {
		t.Errorf("Expected loading state preserved on cancel, got %s", r.State())
	}
}
