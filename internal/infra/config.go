package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"studio/internal/infra/credentials"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string        `env:"APP_ENV" envDefault:"development"`
	Port             string        `env:"PORT" envDefault:"8080"`
	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"330s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RateLimitPerMin  int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	CORSOrigins      []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	DefaultLocale    string        `env:"DEFAULT_LOCALE" envDefault:"en"`
	MaxUploadBytes   int64         `env:"MAX_UPLOAD_BYTES" envDefault:"20971520"`
	BlobMaxBytes     int64         `env:"BLOB_MAX_BYTES" envDefault:"536870912"`

	BriaAPIKey         string `env:"BRIA_API_KEY"`
	BriaBaseURL        string `env:"BRIA_BASE_URL" envDefault:"https://engine.prod.bria-api.com/v1"`
	BriaHDModelVersion string `env:"BRIA_HD_MODEL_VERSION" envDefault:"2.2"`

	FalAPIKey        string        `env:"FAL_KEY"`
	FalQueueURL      string        `env:"FAL_QUEUE_URL" envDefault:"https://queue.fal.run"`
	FalStorageURL    string        `env:"FAL_STORAGE_URL" envDefault:"https://rest.alpha.fal.ai"`
	VideoSyncTimeout time.Duration `env:"VIDEO_SYNC_TIMEOUT" envDefault:"5m"`

	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	VeoModel     string `env:"VEO_MODEL" envDefault:"veo-3.0-generate-001"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"120s"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS" envDefault:"3"`
	PollDelay       time.Duration `env:"POLL_DELAY" envDefault:"2s"`
}

// falLegacyKeyEnv is the variable name older deployments used for the fal key.
const falLegacyKeyEnv = "Fal.ai_LTX_API_KEY"

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if cfg.FalAPIKey == "" {
		cfg.FalAPIKey = strings.TrimSpace(os.Getenv(falLegacyKeyEnv))
	}
	cfg.BriaBaseURL = strings.TrimRight(cfg.BriaBaseURL, "/")
	cfg.FalQueueURL = strings.TrimRight(cfg.FalQueueURL, "/")
	cfg.FalStorageURL = strings.TrimRight(cfg.FalStorageURL, "/")

	if cfg.PollMaxAttempts <= 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if cfg.PollDelay < 0 {
		return nil, fmt.Errorf("POLL_DELAY must not be negative")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if cfg.RateLimitPerMin < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return cfg, nil
}

// CredentialEnv returns the process level API keys by backend name. Every
// session starts from these and may override them.
func (c *Config) CredentialEnv() map[string]string {
	return map[string]string{
		credentials.BackendBria:   c.BriaAPIKey,
		credentials.BackendFal:    c.FalAPIKey,
		credentials.BackendGoogle: c.GoogleAPIKey,
	}
}
