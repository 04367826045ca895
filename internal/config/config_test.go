// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CIRCULATE_CIRCULATION_BASE_URL", "https://library.example.test")
	t.Setenv("CIRCULATE_CIRCULATION_USERNAME", "reader")
	t.Setenv("CIRCULATE_CIRCULATION_PASSWORD", "secret")
}

func TestLoadDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Circulation.PageSize != 50 {
		t.Errorf("page_size = %d, want default 50", cfg.Circulation.PageSize)
	}
	if cfg.Circulation.Retries != 2 {
		t.Errorf("retries = %d, want default 2", cfg.Circulation.Retries)
	}
	if cfg.Circulation.RetryBackoff != 2*time.Second {
		t.Errorf("retry_backoff = %v, want 2s", cfg.Circulation.RetryBackoff)
	}
	if cfg.Sync.Interval != 6*time.Hour {
		t.Errorf("sync interval = %v, want 6h", cfg.Sync.Interval)
	}
	if cfg.Server.Port != 8470 {
		t.Errorf("port = %d, want 8470", cfg.Server.Port)
	}
	if cfg.Digest.Enabled {
		t.Error("digest enabled by default; want disabled until a webhook is configured")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	validEnv(t)
	t.Setenv("CIRCULATE_CIRCULATION_PAGE_SIZE", "25")
	t.Setenv("CIRCULATE_SYNC_INTERVAL", "1h")
	t.Setenv("CIRCULATE_DIGEST_ENABLED", "true")
	t.Setenv("CIRCULATE_DIGEST_WEBHOOK_URL", "https://hooks.example.test/digest")
	t.Setenv("CIRCULATE_DIGEST_HOUR", "21")
	t.Setenv("CIRCULATE_LOG_LEVEL", "debug")
	t.Setenv("CIRCULATE_SERVER_API_TOKEN", "tok")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Circulation.PageSize != 25 {
		t.Errorf("page_size = %d, want 25", cfg.Circulation.PageSize)
	}
	if cfg.Sync.Interval != time.Hour {
		t.Errorf("sync interval = %v, want 1h", cfg.Sync.Interval)
	}
	if !cfg.Digest.Enabled || cfg.Digest.Hour != 21 {
		t.Errorf("digest = %+v", cfg.Digest)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Server.APIToken != "tok" {
		t.Errorf("api token = %q", cfg.Server.APIToken)
	}
}

func TestLoadYAMLFileLayersUnderEnv(t *testing.T) {
	validEnv(t)
	t.Setenv("CIRCULATE_SERVER_PORT", "9000")

	path := filepath.Join(t.TempDir(), "circulate.yaml")
	yaml := strings.Join([]string{
		"circulation:",
		"  page_size: 10",
		"server:",
		"  port: 8000",
	}, "\n")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Circulation.PageSize != 10 {
		t.Errorf("page_size = %d, want 10 from file", cfg.Circulation.PageSize)
	}
	// Env wins over file.
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000 from env", cfg.Server.Port)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T)
		wantErr string
	}{
		{
			name:    "missing base url",
			mutate:  func(t *testing.T) { t.Setenv("CIRCULATE_CIRCULATION_BASE_URL", "") },
			wantErr: "invalid configuration",
		},
		{
			name:    "digest enabled without webhook",
			mutate:  func(t *testing.T) { t.Setenv("CIRCULATE_DIGEST_ENABLED", "true") },
			wantErr: "digest.webhook_url",
		},
		{
			name:    "sync interval too short",
			mutate:  func(t *testing.T) { t.Setenv("CIRCULATE_SYNC_INTERVAL", "10s") },
			wantErr: "sync.interval",
		},
		{
			name:    "bad digest hour",
			mutate:  func(t *testing.T) { t.Setenv("CIRCULATE_DIGEST_HOUR", "24") },
			wantErr: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validEnv(t)
			tt.mutate(t)

			_, err := LoadFile("")
			if err == nil {
				t.Fatal("LoadFile() succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformDropsUnknownKeys(t *testing.T) {
	if got := envTransformFunc("CIRCULATE_CIRCULATION_BASE_URL"); got != "circulation.base_url" {
		t.Errorf("known key mapped to %q", got)
	}
	if got := envTransformFunc("CIRCULATE_SOMETHING_ELSE"); got != "" {
		t.Errorf("unknown key mapped to %q, want dropped", got)
	}
}

func TestLoadFileMissing(t *testing.T) {
	validEnv(t)
	if _, err := LoadFile("/nonexistent/circulate.yaml"); err == nil {
		t.Fatal("LoadFile() with a missing explicit path must fail")
	}
}
