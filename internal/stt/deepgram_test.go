package stt

import (
	"context"
	"errors"
	"io"
	"testing"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"

	"github.com/lexiqai/stream-transcriber/internal/config"
	"github.com/lexiqai/stream-transcriber/internal/resilience"
)

func newTestDeepgram(response interface{}, err error, seen *interfaces.PreRecordedTranscriptionOptions) *DeepgramClient {
	return &DeepgramClient{
		model:    "nova-2",
		language: "en",
		submit: func(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (interface{}, error) {
			if seen != nil {
				*seen = *options
			}
			io.Copy(io.Discard, src)
			return response, err
		},
	}
}

func TestDeepgramClient_Utterances(t *testing.T) {
	response := map[string]interface{}{
		"results": map[string]interface{}{
			"utterances": []map[string]interface{}{
				{"start": 0.1, "end": 1.2, "transcript": "good morning"},
				{"start": 1.5, "end": 2.4, "transcript": "everyone "},
			},
		},
	}
	var seen interfaces.PreRecordedTranscriptionOptions
	client := newTestDeepgram(response, nil, &seen)

	segments, err := client.Transcribe(context.Background(), Request{
		Window:     make([]float32, 16000*3),
		SampleRate: 16000,
		Prompt:     "ignored",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}
	if segments[1].Text != "everyone" || segments[1].Start != 1.5 || segments[1].End != 2.4 {
		t.Errorf("Unexpected segment: %+v", segments[1])
	}
	if !seen.Utterances || seen.Model != "nova-2" || seen.Language != "en" {
		t.Errorf("Unexpected options: %+v", seen)
	}
}

func TestDeepgramClient_RequestLanguageOverrides(t *testing.T) {
	var seen interfaces.PreRecordedTranscriptionOptions
	client := newTestDeepgram(map[string]interface{}{}, nil, &seen)

	segments, err := client.Transcribe(context.Background(), Request{
		Window:     make([]float32, 160),
		SampleRate: 16000,
		Language:   "de",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("Expected no segments, got %+v", segments)
	}
	if seen.Language != "de" {
		t.Errorf("Expected language 'de', got %q", seen.Language)
	}
}

func TestDeepgramClient_ChannelFallback(t *testing.T) {
	response := map[string]interface{}{
		"results": map[string]interface{}{
			"channels": []map[string]interface{}{{
				"alternatives": []map[string]interface{}{{
					"transcript": "hi there",
					"words": []map[string]interface{}{
						{"start": 0.2, "end": 0.5},
						{"start": 0.6, "end": 0.9},
					},
				}},
			}},
		},
	}
	client := newTestDeepgram(response, nil, nil)

	segments, err := client.Transcribe(context.Background(), Request{Window: make([]float32, 16000), SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}
	if segments[0].Text != "hi there" || segments[0].Start != 0.2 || segments[0].End != 0.9 {
		t.Errorf("Unexpected segment: %+v", segments[0])
	}
}

func TestDeepgramClient_ErrorIsRetryable(t *testing.T) {
	cause := errors.New("connection reset")
	client := newTestDeepgram(nil, cause, nil)

	_, err := client.Transcribe(context.Background(), Request{Window: make([]float32, 160), SampleRate: 16000})
	if !errors.Is(err, cause) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
	if !resilience.IsRetryable(err) {
		t.Error("Expected SDK errors to be retryable")
	}
}

func TestNewDeepgramClient_RequiresKey(t *testing.T) {
	if _, err := NewDeepgramClient(&config.Config{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}
