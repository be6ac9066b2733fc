package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/stream-transcriber/internal/config"
	"github.com/lexiqai/stream-transcriber/internal/observability"
	"github.com/lexiqai/stream-transcriber/internal/server"
	"github.com/lexiqai/stream-transcriber/internal/sink"
	"github.com/lexiqai/stream-transcriber/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("transcriber", cfg.TranscriberProvider).
		Int("sample_rate", cfg.SampleRate).
		Float64("window_seconds", cfg.WindowSeconds).
		Float64("commit_lag_seconds", cfg.CommitLagSeconds).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Stream transcriber starting")

	transcriber, err := stt.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcriber")
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	egress, err := sink.New(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcript sink")
	}

	srv := server.New(cfg, transcriber, egress)

	// Create HTTP server
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", srv.HandleWS())
	mux.HandleFunc("/health", observability.HealthCheckHandler(srv.ActiveSessions))
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"transcriber": transcriber.Healthy,
		"sink":        egress.Healthy,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// No write timeout: WebSocket streams are long-lived
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown does not track hijacked WebSocket connections
	srv.Shutdown()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := egress.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close transcript sink")
	}

	logger.Info().Msg("Server exited gracefully")
}
