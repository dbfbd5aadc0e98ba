package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port               string `mapstructure:"PORT"`
	DatabaseURL        string `mapstructure:"DB_DSN"`
	Timezone           string `mapstructure:"CLINIC_TIMEZONE"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MIN"`
	RateLimitBurst     int    `mapstructure:"RATE_LIMIT_BURST"`
	ETASeed            uint64 `mapstructure:"ETA_SEED"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
	LogFormat          string `mapstructure:"LOG_FORMAT"`
	ServiceName        string `mapstructure:"OTEL_SERVICE_NAME"`

	location *time.Location
}

var keys = []string{
	"PORT",
	"DB_DSN",
	"CLINIC_TIMEZONE",
	"RATE_LIMIT_PER_MIN",
	"RATE_LIMIT_BURST",
	"ETA_SEED",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"OTEL_SERVICE_NAME",
}

// Load reads configuration from the environment. A .env file in the
// working directory, when present, is loaded into the environment first
// without overriding variables that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("RATE_LIMIT_PER_MIN", 120)
	v.SetDefault("RATE_LIMIT_BURST", 30)
	v.SetDefault("ETA_SEED", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_SERVICE_NAME", "cliniq")

	// Unmarshal only sees env vars that are bound explicitly.
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.RateLimitPerMinute < 0 || cfg.RateLimitBurst < 0 {
		return nil, fmt.Errorf("rate limits must not be negative")
	}
	return cfg, nil
}

// Location is the clinic time zone used for hour/day analytics and
// slot dates. It is UTC when the config was not built by Load.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
