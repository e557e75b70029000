// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	DBPath             string
	LogLevel           string
	MaxRequestBodySize int64
	SessionTTL         time.Duration
	SweepInterval      time.Duration
	Gemini             GeminiConfig
	Retry              RetryConfig
	Diagnostics        DiagnosticsConfig
}

// GeminiConfig points the service at the completion endpoint.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// RetryConfig controls upstream retries.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
}

// DiagnosticsConfig controls the attempt recorder.
type DiagnosticsConfig struct {
	Enabled   bool
	QueueSize int
	Retention time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		DBPath:             getEnv("DB_PATH", "./data/prayu.db"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		SessionTTL:         getEnvDuration("SESSION_TTL", 60*time.Minute),
		SweepInterval:      getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		Gemini: GeminiConfig{
			APIKey:  strings.TrimSpace(getEnv("GEMINI_API_KEY", "")),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-preview-05-20"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Timeout: getEnvDuration("GEMINI_TIMEOUT", 60*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvDuration("RETRY_BASE_DELAY", time.Second),
			MaxJitter:   getEnvDuration("RETRY_MAX_JITTER", time.Second),
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:   getEnvBool("DIAGNOSTICS_ENABLED", true),
			QueueSize: getEnvInt("DIAGNOSTICS_QUEUE_SIZE", 256),
			Retention: getEnvDuration("DIAGNOSTICS_RETENTION", 7*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing GEMINI_API_KEY is allowed; the chat then reports AI as disabled.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if !strings.HasPrefix(c.Gemini.BaseURL, "http://") && !strings.HasPrefix(c.Gemini.BaseURL, "https://") {
		return fmt.Errorf("GEMINI_BASE_URL must be an http(s) URL")
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be > 0")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxJitter < 0 {
		return fmt.Errorf("RETRY_BASE_DELAY and RETRY_MAX_JITTER must be >= 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.Diagnostics.Enabled {
		if c.Diagnostics.QueueSize <= 0 {
			return fmt.Errorf("DIAGNOSTICS_QUEUE_SIZE must be > 0")
		}
		if c.Diagnostics.Retention <= 0 {
			return fmt.Errorf("DIAGNOSTICS_RETENTION must be > 0")
		}
	}
	return nil
}

// AIEnabled reports whether an API key is configured.
func (c *Config) AIEnabled() bool {
	return c.Gemini.APIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins: everything in development,
// otherwise only FRONTEND_URL.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
