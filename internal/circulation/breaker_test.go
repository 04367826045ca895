// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package circulation

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jdwhite/circulate/internal/models"
)

type stubSource struct {
	charges []models.LoanCharge
	err     error
	calls   int
}

func (s *stubSource) ListCharges(_ context.Context) ([]models.LoanCharge, error) {
	s.calls++
	return s.charges, s.err
}

func (s *stubSource) ListDischarges(_ context.Context) ([]models.LoanCharge, error) {
	s.calls++
	return s.charges, s.err
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	src := &stubSource{charges: []models.LoanCharge{{ChargeID: "CHG-1"}}}
	b := NewBreakerClient(src, zerolog.New(io.Discard))

	charges, err := b.ListCharges(context.Background())
	if err != nil {
		t.Fatalf("ListCharges() error = %v", err)
	}
	if len(charges) != 1 || charges[0].ChargeID != "CHG-1" {
		t.Errorf("charges = %+v", charges)
	}

	discharges, err := b.ListDischarges(context.Background())
	if err != nil {
		t.Fatalf("ListDischarges() error = %v", err)
	}
	if len(discharges) != 1 {
		t.Errorf("discharges = %+v", discharges)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	b := NewBreakerClient(src, zerolog.New(io.Discard))

	// Five straight failures exceed the 60% threshold at the minimum sample.
	for i := 0; i < 5; i++ {
		if _, err := b.ListCharges(context.Background()); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}

	callsBefore := src.calls
	_, err := b.ListCharges(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState after trip, got %v", err)
	}
	// An open circuit rejects without touching the wrapped client.
	if src.calls != callsBefore {
		t.Errorf("open breaker still called the source (%d -> %d)", callsBefore, src.calls)
	}
}

func TestBreakerCountsPartialDataAsFailure(t *testing.T) {
	src := &stubSource{err: &PartialDataError{Err: errors.New("history down")}}
	b := NewBreakerClient(src, zerolog.New(io.Discard))

	for i := 0; i < 5; i++ {
		_, err := b.ListDischarges(context.Background())
		if !IsPartialData(err) {
			t.Fatalf("call %d: error = %v, want PartialDataError passed through", i, err)
		}
	}

	if _, err := b.ListDischarges(context.Background()); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit after repeated partial failures, got %v", err)
	}
}
