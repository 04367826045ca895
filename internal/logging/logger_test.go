// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTestLoggerWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTestLogger(&buf)

	logger.Info().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) || !strings.Contains(out, "hello") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestSlogAdapterRoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	setLoggerForTest(t, NewTestLogger(&buf))

	slogger := NewSlogLogger()
	slogger.Info("service started", "service", "scheduler")

	out := buf.String()
	if !strings.Contains(out, "service started") {
		t.Errorf("slog message did not reach zerolog sink: %s", out)
	}
	if !strings.Contains(out, `"service":"scheduler"`) {
		t.Errorf("slog attr missing from output: %s", out)
	}
}

// setLoggerForTest swaps the global logger and restores it on cleanup.
func setLoggerForTest(t *testing.T, l zerolog.Logger) {
	t.Helper()
	mu.Lock()
	old := log
	log = l
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		log = old
		mu.Unlock()
	})
}
