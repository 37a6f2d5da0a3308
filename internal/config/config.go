// Package config loads runtime settings from the environment and the
// optional interview script file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the screening service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	AllowAnyOrigin           bool

	LogLevel  string
	LogFormat string

	VoiceProvider             string
	ElevenLabsAPIKey          string
	ElevenLabsWSBaseURL       string
	ElevenLabsTTSVoice        string
	ElevenLabsTTSModel        string
	ElevenLabsSTTModel        string
	ElevenLabsTTSOutputFormat string
	ListenTimeout             time.Duration
	StopGrace                 time.Duration

	JudgeMode        string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	JudgeHTTPURL     string
	JudgeTimeout     time.Duration
	JudgeMaxRetries  int

	TranscriptStore      string
	TranscriptCSVPath    string
	TranscriptSQLitePath string
	DatabaseURL          string
	RedactPII            bool

	OutputDir       string
	InterviewFile   string
	FAQFile         string
	FinalizeTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                  envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:          envOrDefault("APP_METRICS_NAMESPACE", "screener"),
		LogLevel:                  envOrDefault("LOG_LEVEL", "info"),
		LogFormat:                 envOrDefault("LOG_FORMAT", "text"),
		VoiceProvider:             envOrDefault("VOICE_PROVIDER", "auto"),
		ElevenLabsAPIKey:          trimmedEnv("ELEVENLABS_API_KEY"),
		ElevenLabsWSBaseURL:       envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		ElevenLabsTTSVoice:        envOrDefault("ELEVENLABS_TTS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsTTSModel:        envOrDefault("ELEVENLABS_TTS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsSTTModel:        envOrDefault("ELEVENLABS_STT_MODEL_ID", "scribe_v1"),
		ElevenLabsTTSOutputFormat: envOrDefault("ELEVENLABS_TTS_OUTPUT_FORMAT", "mp3_44100_128"),
		JudgeMode:                 envOrDefault("JUDGE_MODE", "auto"),
		AnthropicAPIKey:           trimmedEnv("ANTHROPIC_API_KEY"),
		AnthropicModel:            trimmedEnv("ANTHROPIC_MODEL"),
		AnthropicBaseURL:          trimmedEnv("ANTHROPIC_BASE_URL"),
		JudgeHTTPURL:              trimmedEnv("JUDGE_HTTP_URL"),
		TranscriptStore:           envOrDefault("TRANSCRIPT_STORE", "auto"),
		TranscriptCSVPath:         envOrDefault("TRANSCRIPT_CSV_PATH", "interview_session.csv"),
		TranscriptSQLitePath:      envOrDefault("TRANSCRIPT_SQLITE_PATH", "interview_session.db"),
		DatabaseURL:               trimmedEnv("DATABASE_URL"),
		OutputDir:                 envOrDefault("OUTPUT_DIR", "."),
		InterviewFile:             trimmedEnv("INTERVIEW_FILE"),
		FAQFile:                   trimmedEnv("FAQ_FILE"),
		ShutdownTimeout:           15 * time.Second,
		SessionInactivityTimeout:  10 * time.Minute,
		ListenTimeout:             60 * time.Second,
		StopGrace:                 1500 * time.Millisecond,
		JudgeTimeout:              30 * time.Second,
		JudgeMaxRetries:           2,
		FinalizeTimeout:           90 * time.Second,
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"APP_SESSION_INACTIVITY_TIMEOUT", &cfg.SessionInactivityTimeout},
		{"LISTEN_TIMEOUT", &cfg.ListenTimeout},
		{"STOP_GRACE", &cfg.StopGrace},
		{"JUDGE_TIMEOUT", &cfg.JudgeTimeout},
		{"FINALIZE_TIMEOUT", &cfg.FinalizeTimeout},
	}
	for _, d := range durations {
		v, err := durationFromEnv(d.key, *d.dst)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	var err error
	cfg.JudgeMaxRetries, err = intFromEnv("JUDGE_MAX_RETRIES", cfg.JudgeMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.RedactPII, err = boolFromEnv("TRANSCRIPT_REDACT_PII", cfg.RedactPII)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if c.ListenTimeout <= 0 || c.StopGrace <= 0 || c.JudgeTimeout <= 0 || c.FinalizeTimeout <= 0 {
		return fmt.Errorf("LISTEN_TIMEOUT, STOP_GRACE, JUDGE_TIMEOUT and FINALIZE_TIMEOUT must be positive")
	}
	if c.JudgeMaxRetries < 0 {
		return fmt.Errorf("JUDGE_MAX_RETRIES must be >= 0")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := trimmedEnv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
