package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/stream-transcriber/internal/config"
	"github.com/lexiqai/stream-transcriber/internal/observability"
	"github.com/lexiqai/stream-transcriber/internal/resilience"
)

// ResilientTranscriber wraps a Transcriber with a per-call timeout,
// bounded retries of transient failures and a shared circuit breaker.
type ResilientTranscriber struct {
	inner   Transcriber
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	timeout time.Duration
	logger  zerolog.Logger
}

// NewResilientTranscriber wraps inner using the resilience settings from cfg
func NewResilientTranscriber(inner Transcriber, cfg *config.Config) *ResilientTranscriber {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	if cfg.RetryInitialBackoff > 0 {
		retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond
	}

	return &ResilientTranscriber{
		inner: inner,
		breaker: resilience.NewCircuitBreaker(
			inner.Name(),
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		retry:   retry,
		timeout: time.Duration(cfg.TranscriberTimeout) * time.Second,
		logger:  observability.GetLogger().With().Str("component", "transcriber").Str("provider", inner.Name()).Logger(),
	}
}

// Name returns the wrapped backend name
func (r *ResilientTranscriber) Name() string {
	return r.inner.Name()
}

// Transcribe calls the wrapped backend. Circuit-open and non-retryable
// errors return immediately.
func (r *ResilientTranscriber) Transcribe(ctx context.Context, req Request) ([]Segment, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var segments []Segment
	attempt := 0
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		attempt++
		callErr := r.breaker.Call(func() error {
			var err error
			segments, err = r.inner.Transcribe(ctx, req)
			return err
		})
		r.observeBreaker(callErr)
		if callErr != nil && attempt > 1 {
			r.logger.Debug().Err(callErr).Int("attempt", attempt).Msg("Transcription attempt failed")
		}
		return callErr
	}, r.retry, resilience.IsRetryableNetworkError)

	if err != nil {
		return nil, fmt.Errorf("%s transcription failed: %w", r.inner.Name(), err)
	}
	return segments, nil
}

// Healthy reports false while the circuit is open
func (r *ResilientTranscriber) Healthy(ctx context.Context) (bool, error) {
	if state := r.breaker.State(); state == resilience.StateOpen {
		return false, fmt.Errorf("%s circuit breaker is %s", r.inner.Name(), state)
	}
	return true, nil
}

func (r *ResilientTranscriber) observeBreaker(callErr error) {
	stats := r.breaker.Stats()
	observability.UpdateCircuitBreakerState(r.inner.Name(), int(stats.State))
	if callErr == nil || errors.Is(callErr, resilience.ErrCircuitOpen) {
		return
	}
	observability.IncrementCircuitBreakerFailures(r.inner.Name())
	if stats.State == resilience.StateOpen {
		r.logger.Warn().
			Err(callErr).
			Int("consecutive_failures", stats.Consecutive).
			Int64("requests", stats.Requests).
			Float64("failure_rate", stats.FailureRate()).
			Msg("Circuit breaker opened")
	}
}

// New builds the configured backend wrapped for resilience
func New(cfg *config.Config) (*ResilientTranscriber, error) {
	var (
		inner Transcriber
		err   error
	)
	switch cfg.TranscriberProvider {
	case config.ProviderWhisper:
		inner, err = NewWhisperClient(cfg)
	case config.ProviderDeepgram:
		inner, err = NewDeepgramClient(cfg)
	default:
		return nil, fmt.Errorf("unknown transcriber provider: %s", cfg.TranscriberProvider)
	}
	if err != nil {
		return nil, err
	}
	return NewResilientTranscriber(inner, cfg), nil
}
