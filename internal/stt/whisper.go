package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lexiqai/stream-transcriber/internal/audio"
	"github.com/lexiqai/stream-transcriber/internal/config"
	"github.com/lexiqai/stream-transcriber/internal/resilience"
)

// WhisperClient implements Transcriber against an OpenAI-compatible
// /v1/audio/transcriptions endpoint (OpenAI, faster-whisper-server, whisper.cpp server).
type WhisperClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	semaphore  chan struct{} // bounds concurrent requests across all sessions
}

// whisperResponse is the verbose_json response body
type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// NewWhisperClient creates a whisper HTTP client from the service configuration
func NewWhisperClient(cfg *config.Config) (*WhisperClient, error) {
	if cfg.WhisperURL == "" {
		return nil, fmt.Errorf("whisper endpoint cannot be empty")
	}

	maxConcurrent := cfg.TranscriberMaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &WhisperClient{
		endpoint: cfg.WhisperURL,
		apiKey:   cfg.WhisperAPIKey,
		model:    cfg.WhisperModel,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: maxConcurrent,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		semaphore: make(chan struct{}, maxConcurrent),
	}, nil
}

// Name returns the backend name
func (c *WhisperClient) Name() string {
	return config.ProviderWhisper
}

// Transcribe uploads the window as WAV and returns the response segments
func (c *WhisperClient) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	wav, err := audio.EncodeWAV(req.Window, req.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode window: %w", err)
	}

	body, contentType, err := c.createMultipartRequest(wav, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, resilience.NewRetryableError(fmt.Errorf("whisper request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewRetryableError(fmt.Errorf("failed to read whisper response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := fmt.Errorf("whisper HTTP error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, resilience.NewRetryableError(statusErr)
		}
		return nil, statusErr
	}

	var parsed whisperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse whisper response: %w", err)
	}

	return parsed.toSegments(req.WindowDuration()), nil
}

func (r *whisperResponse) toSegments(windowDuration float64) []Segment {
	if len(r.Segments) == 0 {
		// Servers that ignore timestamp granularity still return the text
		text := strings.TrimSpace(r.Text)
		if text == "" {
			return nil
		}
		end := r.Duration
		if end <= 0 {
			end = windowDuration
		}
		return []Segment{{Text: text, Start: 0, End: end}}
	}

	segments := make([]Segment, 0, len(r.Segments))
	for _, s := range r.Segments {
		segments = append(segments, Segment{
			Text:  strings.TrimSpace(s.Text),
			Start: s.Start,
			End:   s.End,
		})
	}
	return segments
}

// createMultipartRequest creates a multipart/form-data request body
func (c *WhisperClient) createMultipartRequest(wav []byte, req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "window.wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wav); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", c.model},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
		{"temperature", "0"},
	}
	if req.Language != "" {
		fields = append(fields, [2]string{"language", req.Language})
	}
	if req.Prompt != "" {
		fields = append(fields, [2]string{"prompt", req.Prompt})
	}

	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", field[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
