// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package scheduler

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jdwhite/circulate/internal/models"
)

type countingSync struct {
	runs  atomic.Int32
	panic bool
}

func (c *countingSync) Run(_ context.Context) (models.SyncSummary, error) {
	c.runs.Add(1)
	if c.panic {
		panic("job blew up")
	}
	return models.SyncSummary{}, nil
}

type countingDigest struct {
	runs atomic.Int32
}

func (c *countingDigest) BroadcastDailyNote(_ context.Context) bool {
	c.runs.Add(1)
	return true
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSchedulerRunsSyncImmediatelyAndOnTicks(t *testing.T) {
	syncJob := &countingSync{}
	s := New(syncJob, &countingDigest{}, zerolog.New(io.Discard), Config{
		SyncEnabled:  true,
		SyncInterval: 20 * time.Millisecond,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = s.Stop() }()

	waitFor(t, 2*time.Second, func() bool { return syncJob.runs.Load() >= 3 })
}

func TestSchedulerStartTwice(t *testing.T) {
	s := New(&countingSync{}, &countingDigest{}, zerolog.New(io.Discard), Config{SyncEnabled: true, SyncInterval: time.Hour})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded, want error")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	// Stopping an already-stopped scheduler is a no-op.
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestSchedulerRecoversFromJobPanic(t *testing.T) {
	syncJob := &countingSync{panic: true}
	s := New(syncJob, &countingDigest{}, zerolog.New(io.Discard), Config{
		SyncEnabled:  true,
		SyncInterval: 10 * time.Millisecond,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop() }()

	// A panicking job must not kill the loop; later ticks still fire.
	waitFor(t, 2*time.Second, func() bool { return syncJob.runs.Load() >= 2 })
}

func TestSchedulerDigestDisabled(t *testing.T) {
	digestJob := &countingDigest{}
	s := New(&countingSync{}, digestJob, zerolog.New(io.Discard), Config{
		SyncEnabled:   true,
		SyncInterval:  time.Hour,
		DigestEnabled: false,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	if digestJob.runs.Load() != 0 {
		t.Errorf("digest ran %d times while disabled", digestJob.runs.Load())
	}
}

func TestSchedulerDigestFiresAtHour(t *testing.T) {
	digestJob := &countingDigest{}
	s := New(&countingSync{}, digestJob, zerolog.New(io.Discard), Config{
		SyncEnabled:   false,
		DigestEnabled: true,
		DigestHour:    8,
	})
	// Pin "now" one instant before 08:00 so the timer fires immediately.
	s.now = func() time.Time {
		return time.Date(2026, 9, 1, 7, 59, 59, int(time.Second-50*time.Millisecond), time.UTC)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Stop() }()

	waitFor(t, 2*time.Second, func() bool { return digestJob.runs.Load() >= 1 })
}

func TestNextDigestRun(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "before the hour fires today",
			now:  time.Date(2026, 9, 1, 6, 30, 0, 0, loc),
			hour: 8,
			want: time.Date(2026, 9, 1, 8, 0, 0, 0, loc),
		},
		{
			name: "after the hour fires tomorrow",
			now:  time.Date(2026, 9, 1, 9, 0, 0, 0, loc),
			hour: 8,
			want: time.Date(2026, 9, 2, 8, 0, 0, 0, loc),
		},
		{
			name: "exactly on the hour fires tomorrow",
			now:  time.Date(2026, 9, 1, 8, 0, 0, 0, loc),
			hour: 8,
			want: time.Date(2026, 9, 2, 8, 0, 0, 0, loc),
		},
		{
			name: "midnight hour",
			now:  time.Date(2026, 9, 1, 23, 30, 0, 0, loc),
			hour: 0,
			want: time.Date(2026, 9, 2, 0, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextDigestRun(tt.now, tt.hour); !got.Equal(tt.want) {
				t.Errorf("nextDigestRun() = %v, want %v", got, tt.want)
			}
		})
	}
}
