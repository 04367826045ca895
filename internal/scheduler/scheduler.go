// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// Package scheduler drives the two periodic jobs: charge reconciliation on
// a fixed interval and the note digest once per day at a configured hour.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jdwhite/circulate/internal/models"
)

// SyncRunner executes one reconciliation pass.
type SyncRunner interface {
	Run(ctx context.Context) (models.SyncSummary, error)
}

// DigestRunner executes one digest pass.
type DigestRunner interface {
	BroadcastDailyNote(ctx context.Context) bool
}

// Config holds scheduler configuration.
type Config struct {
	// SyncEnabled controls whether the reconciliation job runs at all.
	SyncEnabled bool

	// SyncInterval is how often reconciliation runs (default: 6 hours).
	SyncInterval time.Duration

	// DigestEnabled controls whether the daily digest job runs at all.
	DigestEnabled bool

	// DigestHour is the local hour of day (0-23) the digest fires.
	DigestHour int

	// ExecutionTimeout bounds a single job execution (default: 5 minutes).
	ExecutionTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		SyncEnabled:      true,
		SyncInterval:     6 * time.Hour,
		DigestEnabled:    true,
		DigestHour:       8,
		ExecutionTimeout: 5 * time.Minute,
	}
}

// Scheduler owns the job loops. Jobs run in their own goroutines; a panic
// inside one execution is recovered and logged so a bad run never kills
// the loop.
type Scheduler struct {
	sync   SyncRunner
	digest DigestRunner
	logger zerolog.Logger
	config Config

	// Runtime state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// now is replaceable in tests for next-fire computations.
	now func() time.Time
}

// New creates a scheduler for the given jobs.
func New(syncJob SyncRunner, digestJob DigestRunner, logger zerolog.Logger, config Config) *Scheduler {
	if config.SyncInterval <= 0 {
		config.SyncInterval = 6 * time.Hour
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = 5 * time.Minute
	}

	return &Scheduler{
		sync:   syncJob,
		digest: digestJob,
		logger: logger.With().Str("component", "scheduler").Logger(),
		config: config,
		now:    time.Now,
	}
}

// Start begins the job loops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().
		Bool("sync_enabled", s.config.SyncEnabled).
		Dur("sync_interval", s.config.SyncInterval).
		Bool("digest_enabled", s.config.DigestEnabled).
		Int("digest_hour", s.config.DigestHour).
		Msg("Starting scheduler")

	if s.config.SyncEnabled {
		s.wg.Add(1)
		go s.runSyncLoop(ctx)
	}

	if s.config.DigestEnabled {
		s.wg.Add(1)
		go s.runDigestLoop(ctx)
	}

	return nil
}

// Stop stops the job loops and waits for in-flight executions to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info().Msg("Stopping scheduler...")
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// runSyncLoop runs reconciliation immediately on start and then on every
// interval tick.
func (s *Scheduler) runSyncLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SyncInterval)
	defer ticker.Stop()

	s.executeSync(ctx)

	for {
		select {
		case <-ticker.C:
			s.executeSync(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runDigestLoop sleeps until the next digest hour, fires, and repeats.
func (s *Scheduler) runDigestLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := s.now()
		timer := time.NewTimer(nextDigestRun(now, s.config.DigestHour).Sub(now))

		select {
		case <-timer.C:
			s.executeDigest(ctx)
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) executeSync(ctx context.Context) {
	defer s.recoverJob("sync")

	execCtx, cancel := context.WithTimeout(ctx, s.config.ExecutionTimeout)
	defer cancel()

	if _, err := s.sync.Run(execCtx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled reconciliation failed")
	}
}

func (s *Scheduler) executeDigest(ctx context.Context) {
	defer s.recoverJob("digest")

	execCtx, cancel := context.WithTimeout(ctx, s.config.ExecutionTimeout)
	defer cancel()

	sent := s.digest.BroadcastDailyNote(execCtx)
	s.logger.Debug().Bool("sent", sent).Msg("Scheduled digest pass complete")
}

func (s *Scheduler) recoverJob(job string) {
	if r := recover(); r != nil {
		s.logger.Error().Interface("panic", r).Str("job", job).Msg("Job panicked")
	}
}

// nextDigestRun returns the next occurrence of hour:00 strictly after now.
func nextDigestRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
