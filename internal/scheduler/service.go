// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package scheduler

import (
	"context"
	"fmt"
)

// Service adapts the scheduler's Start/Stop lifecycle to suture's Serve
// pattern: start, block on context cancellation, stop.
type Service struct {
	scheduler *Scheduler
}

// NewService wraps a scheduler for supervision.
func NewService(s *Scheduler) *Service {
	return &Service{scheduler: s}
}

// Serve implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.scheduler.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *Service) String() string {
	return "scheduler"
}
