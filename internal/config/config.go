package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Transcriber providers
const (
	ProviderWhisper  = "whisper"
	ProviderDeepgram = "deepgram"
)

// Config holds all configuration for the stream transcriber service
type Config struct {
	// Server configuration
	Port        string `envconfig:"PORT" default:"8080" yaml:"port"`
	MaxSessions int    `envconfig:"MAX_SESSIONS" default:"0" yaml:"max_sessions"` // 0 = unlimited

	// Optional YAML file; values found there override env and defaults
	ConfigFile string `envconfig:"CONFIG_FILE" default:"" yaml:"-"`

	// Audio input
	SampleRate int    `envconfig:"SAMPLE_RATE" default:"16000" yaml:"sample_rate"`
	Language   string `envconfig:"LANGUAGE" default:"en" yaml:"language"`

	// Windowing and commit policy
	WindowSeconds       float64 `envconfig:"WINDOW_SECONDS" default:"5.0" yaml:"window_seconds"`
	StepSeconds         float64 `envconfig:"STEP_SECONDS" default:"1.0" yaml:"step_seconds"`
	CommitLagSeconds    float64 `envconfig:"COMMIT_LAG_SECONDS" default:"1.0" yaml:"commit_lag_seconds"`
	MaxBufferSeconds    float64 `envconfig:"MAX_BUFFER_SECONDS" default:"8.0" yaml:"max_buffer_seconds"`
	SilenceFlushSeconds float64 `envconfig:"SILENCE_FLUSH_SECONDS" default:"1.2" yaml:"silence_flush_seconds"`
	MinContextSeconds   float64 `envconfig:"MIN_CONTEXT_SECONDS" default:"1.0" yaml:"min_context_seconds"`
	SpeechRMSThreshold  float64 `envconfig:"SPEECH_RMS_THRESHOLD" default:"0.008" yaml:"speech_rms_threshold"`
	PromptChars         int     `envconfig:"PROMPT_CHARS" default:"200" yaml:"prompt_chars"`

	// Recognition backend
	TranscriberProvider      string `envconfig:"TRANSCRIBER_PROVIDER" default:"whisper" yaml:"transcriber_provider"`
	TranscriberTimeout       int    `envconfig:"TRANSCRIBER_TIMEOUT" default:"30" yaml:"transcriber_timeout"` // seconds
	TranscriberMaxConcurrent int    `envconfig:"TRANSCRIBER_MAX_CONCURRENT" default:"4" yaml:"transcriber_max_concurrent"`

	// OpenAI-compatible whisper endpoint
	WhisperURL    string `envconfig:"WHISPER_URL" default:"http://localhost:9000/v1/audio/transcriptions" yaml:"whisper_url"`
	WhisperAPIKey string `envconfig:"WHISPER_API_KEY" default:"" yaml:"-"`
	WhisperModel  string `envconfig:"WHISPER_MODEL" default:"whisper-1" yaml:"whisper_model"`

	// Deepgram pre-recorded API
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:"" yaml:"-"`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2" yaml:"deepgram_model"`

	// Transcript egress over NATS (disabled when empty)
	NATSURL           string `envconfig:"NATS_URL" default:"" yaml:"nats_url"`
	NATSSubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"transcripts" yaml:"nats_subject_prefix"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5" yaml:"circuit_breaker_max_failures"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30" yaml:"circuit_breaker_reset_timeout"` // seconds
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"2" yaml:"retry_max_attempts"`
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100" yaml:"retry_initial_backoff"` // milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5" yaml:"reconnect_max_attempts"`
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000" yaml:"reconnect_backoff"` // milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info" yaml:"log_level"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false" yaml:"log_pretty"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true" yaml:"metrics_enabled"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := cfg.overlayFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// overlayFile decodes a YAML file on top of the already loaded values
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the loaded values describe a usable pipeline
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}

	positive := map[string]float64{
		"WINDOW_SECONDS":        c.WindowSeconds,
		"STEP_SECONDS":          c.StepSeconds,
		"MAX_BUFFER_SECONDS":    c.MaxBufferSeconds,
		"SILENCE_FLUSH_SECONDS": c.SilenceFlushSeconds,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, v)
		}
	}

	if c.CommitLagSeconds < 0 {
		return fmt.Errorf("COMMIT_LAG_SECONDS must not be negative, got %v", c.CommitLagSeconds)
	}
	if c.MinContextSeconds < 0 {
		return fmt.Errorf("MIN_CONTEXT_SECONDS must not be negative, got %v", c.MinContextSeconds)
	}
	if c.SpeechRMSThreshold < 0 {
		return fmt.Errorf("SPEECH_RMS_THRESHOLD must not be negative, got %v", c.SpeechRMSThreshold)
	}
	if c.PromptChars < 0 {
		return fmt.Errorf("PROMPT_CHARS must not be negative, got %d", c.PromptChars)
	}
	if c.MaxBufferSeconds < c.WindowSeconds {
		return fmt.Errorf("MAX_BUFFER_SECONDS (%v) must be at least WINDOW_SECONDS (%v)", c.MaxBufferSeconds, c.WindowSeconds)
	}

	c.TranscriberProvider = strings.ToLower(strings.TrimSpace(c.TranscriberProvider))
	switch c.TranscriberProvider {
	case ProviderWhisper:
		if c.WhisperURL == "" {
			return fmt.Errorf("WHISPER_URL is required for the whisper provider")
		}
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the deepgram provider")
		}
	default:
		return fmt.Errorf("unknown TRANSCRIBER_PROVIDER %q", c.TranscriberProvider)
	}

	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
