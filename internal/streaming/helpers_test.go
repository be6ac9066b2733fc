package streaming

import (
	"context"

	"github.com/lexiqai/stream-transcriber/internal/stt"
)

// tone returns n samples alternating between +amp and -amp
func tone(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}

func speech(n int) []float32 { return tone(n, 0.1) }

func silence(n int) []float32 { return make([]float32, n) }

// stubTranscriber answers with a scripted function and records requests
type stubTranscriber struct {
	respond  func(req stt.Request) ([]stt.Segment, error)
	requests []stt.Request
}

func (s *stubTranscriber) Name() string { return "stub" }

func (s *stubTranscriber) Transcribe(ctx context.Context, req stt.Request) ([]stt.Segment, error) {
	s.requests = append(s.requests, req)
	if s.respond == nil {
		return nil, nil
	}
	return s.respond(req)
}

func fixedSegments(segments ...stt.Segment) func(stt.Request) ([]stt.Segment, error) {
	return func(stt.Request) ([]stt.Segment, error) {
		return segments, nil
	}
}
