package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// SharedSecretPlaceholder is the value shipped in .env.example. Trusted
// server-to-server endpoints refuse to operate until it is replaced.
const SharedSecretPlaceholder = "change-me"

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret      string `env:"JWT_SECRET,required" validate:"required,min=32"`
	JWTIssuer      string `env:"JWT_ISSUER" envDefault:"funtime-identity"`
	JWTAudience    string `env:"JWT_AUDIENCE" envDefault:"funtime-sites"`
	JWTLifetimeMin int    `env:"JWT_LIFETIME_MIN" envDefault:"60" validate:"min=5,max=1440"`

	// SharedSecret authorizes server-to-server calls (external-login, force-auth).
	// Those endpoints fail closed while it is empty or still the placeholder.
	SharedSecret string `env:"SHARED_SECRET" envDefault:"change-me"`

	OtpTTLMin       int `env:"OTP_TTL_MIN" envDefault:"10" validate:"min=1,max=60"`
	OtpWindowMin    int `env:"OTP_WINDOW_MIN" envDefault:"10" validate:"min=1,max=60"`
	OtpMaxPerWindow int `env:"OTP_MAX_PER_WINDOW" envDefault:"5" validate:"min=1,max=20"`
	OtpMaxAttempts  int `env:"OTP_MAX_ATTEMPTS" envDefault:"5" validate:"min=1,max=20"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	// SweepSchedule is a standard cron expression consumed by cmd/sweeper.
	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"*/15 * * * *"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
