package stt

import "context"

// Segment is one timestamped span of recognized text.
// Start and End are seconds relative to the start of the decoded window.
type Segment struct {
	Text  string
	Start float64
	End   float64
}

// Request is a single window decode
type Request struct {
	// Window holds mean-centered mono samples
	Window     []float32
	SampleRate int
	Language   string
	// Prompt is the tail of the committed transcript; empty means none
	Prompt string
}

// Transcriber maps an audio window to ordered timestamped segments.
// Results for overlapping audio may differ between calls.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) ([]Segment, error)

	// Name identifies the backend in logs and metrics
	Name() string
}

// WindowDuration returns the window length in seconds
func (r Request) WindowDuration() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(len(r.Window)) / float64(r.SampleRate)
}
