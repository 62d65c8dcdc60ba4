package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/RoastedBrotato/audio-translator/internal/audio"
)

// Client calls the external diarization service over HTTP.
type Client struct {
	endpoint   string
	sampleRate int
	httpClient *http.Client
	semaphore  chan struct{}
}

// diarizeResponse is the diarization service response shape.
type diarizeResponse struct {
	Turns []Turn `json:"turns"`
}

// NewClient creates a diarization service client.
func NewClient(endpoint string, sampleRate int, timeout time.Duration, maxConcurrent int) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &Client{
		endpoint:   endpoint,
		sampleRate: sampleRate,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		semaphore: make(chan struct{}, maxConcurrent),
	}, nil
}

// Diarize posts the audio as WAV and returns raw speaker turns.
// minSpeakers/maxSpeakers of 0 leave the speaker count unconstrained.
func (c *Client) Diarize(ctx context.Context, samples []float32, minSpeakers, maxSpeakers int) ([]Turn, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to diarize")
	}

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	wav, err := audio.EncodeWAV(samples, c.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audio: %w", err)
	}

	endpoint := c.endpoint + "/diarize"
	params := url.Values{}
	if minSpeakers > 0 {
		params.Set("min_speakers", strconv.Itoa(minSpeakers))
	}
	if maxSpeakers > 0 {
		params.Set("max_speakers", strconv.Itoa(maxSpeakers))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(wav))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarization request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read diarization response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("diarization HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var dr diarizeResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("failed to parse diarization response: %w", err)
	}

	return dr.Turns, nil
}

// Healthy probes the diarization service health endpoint.
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
		return fmt.Errorf("diarization health status %d", resp.StatusCode)
	}
	return nil
}
