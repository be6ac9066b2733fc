package streaming

import (
	"math"

	"github.com/lexiqai/stream-transcriber/internal/config"
)

// Config holds the per-session windowing and commit policy
type Config struct {
	SampleRate          int
	Language            string
	WindowSeconds       float64
	StepSeconds         float64
	CommitLagSeconds    float64
	MaxBufferSeconds    float64
	SilenceFlushSeconds float64
	MinContextSeconds   float64
	SpeechRMSThreshold  float64
	PromptChars         int
}

// DefaultConfig returns the stock policy for 16 kHz input
func DefaultConfig() Config {
	return Config{
		SampleRate:          16000,
		Language:            "en",
		WindowSeconds:       5.0,
		StepSeconds:         1.0,
		CommitLagSeconds:    1.0,
		MaxBufferSeconds:    8.0,
		SilenceFlushSeconds: 1.2,
		MinContextSeconds:   1.0,
		SpeechRMSThreshold:  0.008,
		PromptChars:         200,
	}
}

// ConfigFrom extracts the session policy from the service configuration
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		SampleRate:          cfg.SampleRate,
		Language:            cfg.Language,
		WindowSeconds:       cfg.WindowSeconds,
		StepSeconds:         cfg.StepSeconds,
		CommitLagSeconds:    cfg.CommitLagSeconds,
		MaxBufferSeconds:    cfg.MaxBufferSeconds,
		SilenceFlushSeconds: cfg.SilenceFlushSeconds,
		MinContextSeconds:   cfg.MinContextSeconds,
		SpeechRMSThreshold:  cfg.SpeechRMSThreshold,
		PromptChars:         cfg.PromptChars,
	}
}

// Samples converts a duration in seconds to a sample count
func (c Config) Samples(seconds float64) int {
	if seconds <= 0 || c.SampleRate <= 0 {
		return 0
	}
	return int(math.Round(seconds * float64(c.SampleRate)))
}

// Seconds converts a sample count to seconds
func (c Config) Seconds(samples int64) float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(samples) / float64(c.SampleRate)
}

func (c Config) bufferCapacity() int {
	capacity := c.Samples(c.MaxBufferSeconds)
	if window := c.Samples(c.WindowSeconds); capacity < window {
		capacity = window
	}
	return capacity
}
