// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first match wins.
var DefaultConfigPaths = []string{
	"circulate.yaml",
	"circulate.yml",
	"/etc/circulate/config.yaml",
	"/etc/circulate/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CIRCULATE_CONFIG"

// Load builds the configuration from layered sources, lowest to highest
// priority: defaults, YAML file, environment variables. The result is
// validated before being returned.
func Load() (*Config, error) {
	return loadFrom(findConfigFile())
}

// LoadFile loads configuration with an explicit config file path. An empty
// path skips the file layer.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("CIRCULATE_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envKeyMap maps CIRCULATE_* environment variables to config paths. Section
// and field names both contain underscores, so the mapping is explicit
// rather than derived by splitting.
var envKeyMap = map[string]string{
	"circulation_base_url":        "circulation.base_url",
	"circulation_username":        "circulation.username",
	"circulation_password":        "circulation.password",
	"circulation_page_size":       "circulation.page_size",
	"circulation_timeout":         "circulation.timeout",
	"circulation_retries":         "circulation.retries",
	"circulation_retry_backoff":   "circulation.retry_backoff",
	"circulation_rate_per_second": "circulation.rate_per_second",

	"sync_enabled":  "sync.enabled",
	"sync_interval": "sync.interval",

	"digest_enabled":     "digest.enabled",
	"digest_webhook_url": "digest.webhook_url",
	"digest_hour":        "digest.hour",
	"digest_timeout":     "digest.timeout",

	"database_path": "database.path",

	"server_host":            "server.host",
	"server_port":            "server.port",
	"server_timeout":         "server.timeout",
	"server_api_token":       "server.api_token",
	"server_rate_limit_reqs": "server.rate_limit_reqs",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_file":   "logging.file",
}

// envTransformFunc maps CIRCULATE_CIRCULATION_BASE_URL to
// circulation.base_url and so on. Unknown variables are dropped rather than
// guessed at.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "CIRCULATE_"))
	if path, ok := envKeyMap[key]; ok {
		return path
	}
	return ""
}
