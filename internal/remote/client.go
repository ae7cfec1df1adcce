// Package remote drives a standalone voice-cloning inference server over
// HTTP, for hosts where the model itself runs on a separate GPU machine.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	apiGenerate = "/v1/generate"
	apiHealth   = "/health"

	contentTypeJSON = "application/json"
	contentTypeWAV  = "audio/wav"

	// maxErrorBody caps how much of a non-JSON error body is kept.
	maxErrorBody = 4 << 10
)

// ErrRejected marks 4xx responses: the server understood the request and
// refused its content.
var ErrRejected = errors.New("request rejected by inference server")

// GenerateRequest is the JSON body of POST /v1/generate.
type GenerateRequest struct {
	Text         string  `json:"text"`
	Exaggeration float64 `json:"exaggeration"`
	Temperature  float64 `json:"temperature"`
	CFGWeight    float64 `json:"cfg_weight"`
	Seed         int64   `json:"seed"`
	Device       string  `json:"device,omitempty"`
	// AudioPrompt is a base64 WAV reference clip. Empty uses the server's
	// built-in voice.
	AudioPrompt string `json:"audio_prompt,omitempty"`
}

// Health is the body of GET /health.
type Health struct {
	Status     string `json:"status"`
	Device     string `json:"device"`
	SampleRate int    `json:"sample_rate"`
}

// ErrorResponse is the structured error body returned by the server.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Client talks to the inference server.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate sends req and returns the WAV bytes.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("text cannot be empty")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiGenerate, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, contentTypeWAV) {
		return nil, fmt.Errorf("unexpected content type: expected %s, got %q", contentTypeWAV, ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("received empty audio data")
	}

	return data, nil
}

// Health fetches the server status.
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return Health{}, fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{}, fmt.Errorf("health check failed for %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode health response: %w", err)
	}
	if h.Status != "" && h.Status != "ok" {
		return h, fmt.Errorf("inference server reports status %q", h.Status)
	}

	return h, nil
}

func parseErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(raw))
	var er ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Detail != "" {
		msg = er.Detail
		if er.ErrorCode != "" {
			msg = fmt.Sprintf("%s (code: %s)", er.Detail, er.ErrorCode)
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: %s: %s", ErrRejected, resp.Status, msg)
	}
	return fmt.Errorf("inference server error: %s: %s", resp.Status, msg)
}
