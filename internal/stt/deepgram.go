package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/lexiqai/stream-transcriber/internal/audio"
	"github.com/lexiqai/stream-transcriber/internal/config"
	"github.com/lexiqai/stream-transcriber/internal/resilience"
)

// preRecordedFunc submits one audio file to the pre-recorded API
type preRecordedFunc func(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (interface{}, error)

// DeepgramClient implements Transcriber using Deepgram's pre-recorded REST API.
// Each window is sent as a WAV file with utterance segmentation enabled.
// The API has no free-text prompt, so Request.Prompt is ignored.
type DeepgramClient struct {
	model    string
	submit   preRecordedFunc
	language string
}

// deepgramResult is the subset of the pre-recorded response that carries timing
type deepgramResult struct {
	Results struct {
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					Start float64 `json:"start"`
					End   float64 `json:"end"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// NewDeepgramClient creates a Deepgram pre-recorded client
func NewDeepgramClient(cfg *config.Config) (*DeepgramClient, error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}

	rest := api.New(listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{}))

	return &DeepgramClient{
		model:    cfg.DeepgramModel,
		language: cfg.Language,
		submit: func(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions) (interface{}, error) {
			return rest.FromStream(ctx, src, options)
		},
	}, nil
}

// Name returns the backend name
func (d *DeepgramClient) Name() string {
	return config.ProviderDeepgram
}

// Transcribe sends the window and maps utterances to segments
func (d *DeepgramClient) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	wav, err := audio.EncodeWAV(req.Window, req.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode window: %w", err)
	}

	language := req.Language
	if language == "" {
		language = d.language
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:      d.model,
		Language:   language,
		Punctuate:  true,
		Utterances: true,
	}

	res, err := d.submit(ctx, bytes.NewReader(wav), options)
	if err != nil {
		// The SDK does not expose typed transport errors
		return nil, resilience.NewRetryableError(fmt.Errorf("deepgram request failed: %w", err))
	}

	// Round-trip through the wire format to stay independent of SDK struct layout
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deepgram response: %w", err)
	}
	var parsed deepgramResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse deepgram response: %w", err)
	}

	return parsed.toSegments(), nil
}

func (r *deepgramResult) toSegments() []Segment {
	if len(r.Results.Utterances) > 0 {
		segments := make([]Segment, 0, len(r.Results.Utterances))
		for _, u := range r.Results.Utterances {
			segments = append(segments, Segment{
				Text:  strings.TrimSpace(u.Transcript),
				Start: u.Start,
				End:   u.End,
			})
		}
		return segments
	}

	// Without utterances, fall back to the first alternative spanning its words
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return nil
	}
	alt := r.Results.Channels[0].Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" || len(alt.Words) == 0 {
		return nil
	}
	return []Segment{{
		Text:  text,
		Start: alt.Words[0].Start,
		End:   alt.Words[len(alt.Words)-1].End,
	}}
}
