package vad

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RoastedBrotato/audio-translator/internal/audio"
)

// Client calls the external VAD scoring service over HTTP. It implements the
// Scorer interface consumed by the Gate.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// scoreResponse is the VAD service response shape.
type scoreResponse struct {
	Probability float64 `json:"probability"`
}

// NewClient creates a VAD service client.
func NewClient(endpoint string, timeout time.Duration) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Score posts the sample window as WAV and returns the speech probability.
func (c *Client) Score(ctx context.Context, samples []float32, sampleRate int) (float64, error) {
	wav, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return 0, fmt.Errorf("failed to encode window: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/score", bytes.NewReader(wav))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("VAD request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read VAD response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("VAD HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var sr scoreResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return 0, fmt.Errorf("failed to parse VAD response: %w", err)
	}

	return sr.Probability, nil
}

// Healthy probes the VAD service health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("VAD health status %d", resp.StatusCode)
	}
	return nil
}
