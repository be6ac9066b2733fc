package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/lexiqai/stream-transcriber/internal/config"
	"github.com/lexiqai/stream-transcriber/internal/observability"
	"github.com/lexiqai/stream-transcriber/internal/resilience"
)

// NATSSink publishes events as JSON on <prefix>.<session_id>
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

// NewNATSSink connects to NATS, retrying the initial connection with backoff
func NewNATSSink(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*NATSSink, error) {
	logger = logger.With().Str("component", "nats_sink").Logger()

	options := []nats.Option{
		nats.Name("stream-transcriber"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Duration(cfg.ReconnectBackoff) * time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
	}

	var conn *nats.Conn
	err := resilience.Reconnect(ctx, func() error {
		var err error
		conn, err = nats.Connect(cfg.NATSURL, options...)
		return err
	}, &resilience.ReconnectConfig{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info().Str("url", conn.ConnectedUrl()).Str("subject_prefix", cfg.NATSSubjectPrefix).Msg("Connected to NATS")

	return &NATSSink{
		conn:   conn,
		prefix: cfg.NATSSubjectPrefix,
		logger: logger,
	}, nil
}

// Subject returns the subject events for sessionID are published on
func (s *NATSSink) Subject(sessionID string) string {
	return Subject(s.prefix, sessionID)
}

// Subject joins a subject prefix and a session ID
func Subject(prefix, sessionID string) string {
	if prefix == "" {
		return sessionID
	}
	return prefix + "." + sessionID
}

// Publish sends one event. NATS buffers while reconnecting, so this does not block on the network.
func (s *NATSSink) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := s.conn.Publish(s.Subject(event.SessionID), data); err != nil {
		observability.RecordSinkPublish(false)
		return fmt.Errorf("publish to nats: %w", err)
	}
	observability.RecordSinkPublish(true)
	return nil
}

// Healthy reports whether the connection is up
func (s *NATSSink) Healthy(ctx context.Context) (bool, error) {
	if status := s.conn.Status(); status != nats.CONNECTED {
		return false, fmt.Errorf("nats connection is %s", status)
	}
	return true, nil
}

// Close flushes pending events and closes the connection
func (s *NATSSink) Close() error {
	s.logger.Info().Msg("Closing NATS connection")
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
