package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("TRANSCRIBER_PROVIDER")
	os.Unsetenv("CONFIG_FILE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default SampleRate 16000, got %d", cfg.SampleRate)
	}
	if cfg.Language != "en" {
		t.Errorf("Expected default Language 'en', got '%s'", cfg.Language)
	}
	if cfg.TranscriberProvider != ProviderWhisper {
		t.Errorf("Expected default provider %q, got %q", ProviderWhisper, cfg.TranscriberProvider)
	}
}

func TestLoad_StreamingDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"WindowSeconds", cfg.WindowSeconds, 5.0},
		{"StepSeconds", cfg.StepSeconds, 1.0},
		{"CommitLagSeconds", cfg.CommitLagSeconds, 1.0},
		{"MaxBufferSeconds", cfg.MaxBufferSeconds, 8.0},
		{"SilenceFlushSeconds", cfg.SilenceFlushSeconds, 1.2},
		{"MinContextSeconds", cfg.MinContextSeconds, 1.0},
		{"SpeechRMSThreshold", cfg.SpeechRMSThreshold, 0.008},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected default %v, got %v", tt.want, tt.got)
			}
		})
	}

	if cfg.PromptChars != 200 {
		t.Errorf("Expected default PromptChars 200, got %d", cfg.PromptChars)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Setenv("WINDOW_SECONDS", "4.5")
	os.Setenv("LANGUAGE", "zh")
	defer os.Unsetenv("WINDOW_SECONDS")
	defer os.Unsetenv("LANGUAGE")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.WindowSeconds != 4.5 {
		t.Errorf("Expected WindowSeconds 4.5, got %v", cfg.WindowSeconds)
	}
	if cfg.Language != "zh" {
		t.Errorf("Expected Language 'zh', got '%s'", cfg.Language)
	}
}

func TestLoad_DeepgramRequiresKey(t *testing.T) {
	os.Setenv("TRANSCRIBER_PROVIDER", "deepgram")
	os.Unsetenv("DEEPGRAM_API_KEY")
	defer os.Unsetenv("TRANSCRIBER_PROVIDER")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error when DEEPGRAM_API_KEY is missing")
	}

	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	defer os.Unsetenv("DEEPGRAM_API_KEY")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	os.Setenv("TRANSCRIBER_PROVIDER", "carrier-pigeon")
	defer os.Unsetenv("TRANSCRIBER_PROVIDER")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestLoad_ConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcriber.yaml")
	content := "window_seconds: 6\ncommit_lag_seconds: 0.5\nlanguage: de\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	os.Setenv("CONFIG_FILE", path)
	os.Setenv("LANGUAGE", "fr")
	defer os.Unsetenv("CONFIG_FILE")
	defer os.Unsetenv("LANGUAGE")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.WindowSeconds != 6 {
		t.Errorf("Expected WindowSeconds 6 from file, got %v", cfg.WindowSeconds)
	}
	if cfg.CommitLagSeconds != 0.5 {
		t.Errorf("Expected CommitLagSeconds 0.5 from file, got %v", cfg.CommitLagSeconds)
	}
	if cfg.Language != "de" {
		t.Errorf("Expected file to override env Language, got '%s'", cfg.Language)
	}
	if cfg.StepSeconds != 1.0 {
		t.Errorf("Expected untouched StepSeconds default 1.0, got %v", cfg.StepSeconds)
	}
}

func TestLoad_ConfigFileMissing(t *testing.T) {
	os.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	defer os.Unsetenv("CONFIG_FILE")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			SampleRate:          16000,
			WindowSeconds:       5,
			StepSeconds:         1,
			CommitLagSeconds:    1,
			MaxBufferSeconds:    8,
			SilenceFlushSeconds: 1.2,
			MinContextSeconds:   1,
			SpeechRMSThreshold:  0.008,
			PromptChars:         200,
			TranscriberProvider: "Whisper",
			WhisperURL:          "http://localhost:9000/v1/audio/transcriptions",
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("Expected base config to be valid, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero window", func(c *Config) { c.WindowSeconds = 0 }},
		{"zero step", func(c *Config) { c.StepSeconds = 0 }},
		{"negative lag", func(c *Config) { c.CommitLagSeconds = -1 }},
		{"buffer shorter than window", func(c *Config) { c.MaxBufferSeconds = 4 }},
		{"negative prompt budget", func(c *Config) { c.PromptChars = -1 }},
		{"missing whisper url", func(c *Config) { c.WhisperURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
