// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jdwhite/circulate/internal/metrics"
	"github.com/jdwhite/circulate/internal/models"
)

// BreakerClient wraps a ChargeSource with a circuit breaker so a dead or
// flapping circulation system stops consuming retry budgets on every
// scheduled run.
//
// The breaker uses real time for its interval and timeout; tests exercise
// the wrapped client directly.
type BreakerClient struct {
	source ChargeSource
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewBreakerClient wraps source with a circuit breaker. The breaker opens
// after a 60% failure rate over at least 5 requests and probes again after
// two minutes.
func NewBreakerClient(source ChargeSource, logger zerolog.Logger) *BreakerClient {
	cbName := "circulation-api"
	cbLogger := logger.With().Str("component", "breaker").Logger()

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			cbLogger.Info().Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{source: source, cb: cb, name: cbName}
}

// execute runs fn under the breaker and records outcome metrics.
func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		}
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// ListCharges fetches the charge list with circuit breaker protection.
func (b *BreakerClient) ListCharges(ctx context.Context) ([]models.LoanCharge, error) {
	return castCharges(b.execute(func() (any, error) {
		return b.source.ListCharges(ctx)
	}))
}

// ListDischarges fetches the discharge history with circuit breaker
// protection. PartialDataError results still count as failures so a broken
// history endpoint contributes to opening the circuit.
func (b *BreakerClient) ListDischarges(ctx context.Context) ([]models.LoanCharge, error) {
	return castCharges(b.execute(func() (any, error) {
		return b.source.ListDischarges(ctx)
	}))
}

func castCharges(result any, err error) ([]models.LoanCharge, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.([]models.LoanCharge)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
