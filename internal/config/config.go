// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables, read once at startup.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Imgur API access. The client ID is an application-level credential
	// attached to every provider call, not an end-user credential.
	ImgurClientID       string        `env:"IMGUR_CLIENT_ID,required"`
	ImgurBaseURL        string        `env:"IMGUR_BASE_URL" envDefault:"https://api.imgur.com/3"`
	ImgurConnectTimeout time.Duration `env:"IMGUR_CONNECT_TIMEOUT" envDefault:"3s"`
	ImgurRequestTimeout time.Duration `env:"IMGUR_REQUEST_TIMEOUT" envDefault:"30s"`

	// Upload validation
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10 MiB

	// Auth tokens
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (per client IP on the API)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"20"`

	// Orphan cleanup worker
	CleanupEnabled     bool `env:"CLEANUP_ENABLED" envDefault:"true"`
	CleanupMaxAttempts int  `env:"CLEANUP_MAX_ATTEMPTS" envDefault:"5"`

	// Comma-separated allow-list of upload content types.
	AllowedContentTypes string `env:"ALLOWED_CONTENT_TYPES" envDefault:"image/jpeg,image/png,image/gif"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetAllowedContentTypes parses the comma-separated content type list.
func (c *Config) GetAllowedContentTypes() []string {
	parts := strings.Split(c.AllowedContentTypes, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
