package sink

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/stream-transcriber/internal/config"
)

// Event types
const (
	EventDelta = "delta"
	EventFinal = "final"
)

// Event is one transcript update published for downstream consumers
type Event struct {
	Type           string    `json:"type"`
	SessionID      string    `json:"session_id"`
	Seq            int       `json:"seq,omitempty"`
	Text           string    `json:"text,omitempty"`
	Transcript     string    `json:"transcript,omitempty"`
	CommittedUntil float64   `json:"committed_until"`
	Timestamp      time.Time `json:"timestamp"`
}

// Sink receives committed transcript events. Implementations must be
// safe for concurrent use by many sessions.
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Healthy(ctx context.Context) (bool, error)
	Close() error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error  { return nil }
func (Nop) Healthy(context.Context) (bool, error) { return true, nil }
func (Nop) Close() error                          { return nil }

// New returns a NATS sink when NATS_URL is set, otherwise Nop
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Sink, error) {
	if cfg.NATSURL == "" {
		return Nop{}, nil
	}
	return NewNATSSink(ctx, cfg, logger)
}
