// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// Package config defines Circulate's configuration and its layered loading:
// built-in defaults, an optional YAML file, then environment variables.
//
// The resulting Config is an explicit value passed into each component's
// constructor. Nothing reads credentials from ambient globals after startup.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the circulated service.
type Config struct {
	Circulation CirculationConfig `koanf:"circulation"`
	Sync        SyncConfig        `koanf:"sync"`
	Digest      DigestConfig      `koanf:"digest"`
	Database    DatabaseConfig    `koanf:"database"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// CirculationConfig holds credentials and tuning for the external
// circulation API.
type CirculationConfig struct {
	// BaseURL is the root of the circulation API, without a trailing slash.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	Username string `koanf:"username" validate:"required"`
	Password string `koanf:"password" validate:"required"`

	// PageSize is the max parameter sent to paginated endpoints.
	PageSize int `koanf:"page_size" validate:"gte=1,lte=500"`

	// Timeout is the hard per-attempt HTTP timeout.
	Timeout time.Duration `koanf:"timeout"`

	// Retries is the number of additional attempts after the first.
	Retries int `koanf:"retries" validate:"gte=0,lte=10"`

	// RetryBackoff is the base of the linear backoff between attempts.
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// RatePerSecond throttles outgoing calls to the circulation API.
	RatePerSecond float64 `koanf:"rate_per_second"`
}

// SyncConfig controls the scheduled reconciliation job.
type SyncConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// DigestConfig controls the daily note digest job.
type DigestConfig struct {
	Enabled bool `koanf:"enabled"`

	// WebhookURL is the messaging webhook receiving the digest text.
	WebhookURL string `koanf:"webhook_url" validate:"omitempty,url"`

	// Hour is the local hour of day (0-23) the digest fires.
	Hour int `koanf:"hour" validate:"gte=0,lte=23"`

	// Timeout bounds the webhook POST.
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds the local store location.
type DatabaseConfig struct {
	// Path is the DuckDB database file; ":memory:" for tests.
	Path string `koanf:"path" validate:"required"`
}

// ServerConfig holds the HTTP trigger surface settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// APIToken, when set, is required as a bearer token on trigger routes.
	APIToken string `koanf:"api_token"`

	// RateLimitReqs caps requests per client per minute on trigger routes.
	RateLimitReqs int `koanf:"rate_limit_reqs"`
}

// LoggingConfig mirrors logging.Config for the koanf layer.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	File   string `koanf:"file"`
}

// defaultConfig returns a Config with all defaults applied. File and env
// layers override these.
func defaultConfig() *Config {
	return &Config{
		Circulation: CirculationConfig{
			PageSize:      50,
			Timeout:       15 * time.Second,
			Retries:       2,
			RetryBackoff:  2 * time.Second,
			RatePerSecond: 4,
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: 6 * time.Hour,
		},
		Digest: DigestConfig{
			Enabled: false,
			Hour:    8,
			Timeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "/data/circulate.duckdb",
		},
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8470,
			Timeout:       30 * time.Second,
			RateLimitReqs: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

var validate = validator.New()

// Validate checks the configuration for structural problems and
// cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Digest.Enabled && c.Digest.WebhookURL == "" {
		return fmt.Errorf("digest.webhook_url is required when digest.enabled is true")
	}
	if c.Sync.Enabled && c.Sync.Interval < time.Minute {
		return fmt.Errorf("sync.interval must be at least 1m, got %s", c.Sync.Interval)
	}

	return nil
}
