package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/RoastedBrotato/audio-translator/internal/metrics"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/transcribe", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost:9999"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.config.MaxSegments != DefaultMaxSegments {
		t.Errorf("Expected default segment cap %d, got %d", DefaultMaxSegments, client.config.MaxSegments)
	}
}

func TestTranscribeParsesResponse(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Expected multipart form: %v", err)
		}
		if r.FormValue("language") != "en" {
			t.Errorf("Expected language field 'en', got %q", r.FormValue("language"))
		}
		json.NewEncoder(w).Encode(Result{
			Text:     "  hello world  ",
			Language: "en",
			Segments: []Segment{{Start: 0, End: 1.5, Text: "hello world"}},
		})
	})

	client, err := NewClient(Config{Endpoint: srv.URL, MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.Transcribe(context.Background(), &Request{
		Samples:  make([]float32, 16000),
		Language: "en",
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if result.Text != "hello world" {
		t.Errorf("Expected trimmed text, got %q", result.Text)
	}
	if len(result.Segments) != 1 {
		t.Errorf("Expected 1 segment, got %d", len(result.Segments))
	}
}

func TestTranscribeSegmentCap(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		segments := make([]Segment, 80)
		for i := range segments {
			segments[i] = Segment{Start: float64(i), End: float64(i + 1), Text: "x"}
		}
		json.NewEncoder(w).Encode(Result{Text: "long", Segments: segments})
	})

	client, err := NewClient(Config{Endpoint: srv.URL, MaxSegments: 50, MaxRetries: 0})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	result, err := client.Transcribe(context.Background(), &Request{Samples: make([]float32, 16000)})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(result.Segments) != 50 {
		t.Errorf("Expected segments truncated to 50, got %d", len(result.Segments))
	}
}

func TestTranscribeNonRetryableClientError(t *testing.T) {
	attempts := 0
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad audio", http.StatusBadRequest)
	})

	client, err := NewClient(Config{Endpoint: srv.URL, MaxRetries: 3})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), &Request{Samples: make([]float32, 1600)}); err == nil {
		t.Fatal("Expected error for 400 response")
	}

	if attempts != 1 {
		t.Errorf("Expected no retries on 4xx, got %d attempts", attempts)
	}
}

func TestTranscribeRecordsMetrics(t *testing.T) {
	// NewMetrics registers against the default registry, so it is created
	// exactly once in this test binary.
	m := metrics.NewMetrics()

	shouldFail := false
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if shouldFail {
			http.Error(w, "bad audio", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(Result{Text: "counted"})
	})

	client, err := NewClient(Config{Endpoint: srv.URL, MaxRetries: 0, Metrics: m})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Transcribe(context.Background(), &Request{Samples: make([]float32, 1600)}); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	shouldFail = true
	if _, err := client.Transcribe(context.Background(), &Request{Samples: make([]float32, 1600)}); err == nil {
		t.Fatal("Expected error for 400 response")
	}

	if got := testutil.ToFloat64(m.TranscriptionRequests); got != 2 {
		t.Errorf("Expected 2 transcription requests recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.TranscriptionSuccesses); got != 1 {
		t.Errorf("Expected 1 transcription success recorded, got %v", got)
	}
	if got := testutil.ToFloat64(m.TranscriptionFailures); got != 1 {
		t.Errorf("Expected 1 transcription failure recorded, got %v", got)
	}
}

func TestTranscribeEmptySamples(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "http://localhost:9999"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := client.Transcribe(context.Background(), &Request{}); err == nil {
		t.Error("Expected error for empty samples")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		errStr    string
		retryable bool
	}{
		{"HTTP error 500: boom", true},
		{"HTTP error 429: slow down", true},
		{"HTTP error 400: bad request", false},
		{"connection refused", true},
	}

	for _, tt := range tests {
		got := isRetryableError(errString(tt.errStr))
		if got != tt.retryable {
			t.Errorf("isRetryableError(%q) = %v, want %v", tt.errStr, got, tt.retryable)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
