// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package digest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jdwhite/circulate/internal/metrics"
	"github.com/jdwhite/circulate/internal/models"
)

// Store is the persistence surface the dispatcher consumes.
type Store interface {
	GetNoteCandidates(ctx context.Context) ([]models.NoteCandidate, error)
	IncrementSendCount(ctx context.Context, noteID int64) error
}

// PostFunc delivers text to a webhook and returns the HTTP status code.
// Injected so tests never touch the network.
type PostFunc func(ctx context.Context, url, text string) (int, error)

// Dispatcher runs the daily note digest job.
//
// State machine per run: fetch candidates -> (none: done) -> select one ->
// send -> (success: increment count) | (failure: done). The send counter is
// only incremented after a confirmed 2xx, so a failed delivery never costs
// a note its place in the least-sent-first ordering.
type Dispatcher struct {
	store      Store
	webhookURL string
	post       PostFunc
	random     RandFunc
	logger     zerolog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithPostFunc replaces the webhook delivery call.
func WithPostFunc(post PostFunc) Option {
	return func(d *Dispatcher) { d.post = post }
}

// WithRandFunc replaces the random source used for tie-breaking.
func WithRandFunc(random RandFunc) Option {
	return func(d *Dispatcher) { d.random = random }
}

// NewDispatcher creates a digest dispatcher posting to webhookURL.
func NewDispatcher(store Store, webhookURL string, timeout time.Duration, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		webhookURL: webhookURL,
		post:       defaultPostFunc(timeout),
		logger:     logger.With().Str("component", "digest").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BroadcastDailyNote runs one digest pass and reports whether a message was
// sent and counted.
//
// Every failure mode is absorbed here: an empty candidate list, a delivery
// error, and a non-2xx webhook response all yield false, never an error or
// panic to the scheduler.
func (d *Dispatcher) BroadcastDailyNote(ctx context.Context) bool {
	candidates, err := d.store.GetNoteCandidates(ctx)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to load note candidates")
		metrics.DigestDeliveries.WithLabelValues("failed").Inc()
		return false
	}

	if len(candidates) == 0 {
		d.logger.Debug().Msg("No note candidates; nothing to broadcast")
		metrics.DigestDeliveries.WithLabelValues("empty").Inc()
		return false
	}

	winner := SelectNoteCandidate(candidates, d.random)
	message := FormatNoteMessage(winner)

	status, err := d.post(ctx, d.webhookURL, message)
	if err != nil {
		d.logger.Warn().Err(err).Int64("note_id", winner.NoteID).Msg("Digest delivery failed")
		metrics.DigestDeliveries.WithLabelValues("failed").Inc()
		return false
	}
	if status < 200 || status >= 300 {
		d.logger.Warn().Int("status", status).Int64("note_id", winner.NoteID).Msg("Digest webhook rejected message")
		metrics.DigestDeliveries.WithLabelValues("failed").Inc()
		return false
	}

	if err := d.store.IncrementSendCount(ctx, winner.NoteID); err != nil {
		// Delivered but not counted; report false so the caller does not
		// believe the fairness state advanced.
		d.logger.Error().Err(err).Int64("note_id", winner.NoteID).Msg("Failed to record digest delivery")
		metrics.DigestDeliveries.WithLabelValues("failed").Inc()
		return false
	}

	metrics.DigestDeliveries.WithLabelValues("sent").Inc()
	metrics.DigestLastSent.SetToCurrentTime()
	d.logger.Info().Int64("note_id", winner.NoteID).Int("send_count", winner.SendCount+1).Msg("Digest sent")
	return true
}

// defaultPostFunc posts {"text": ...} as JSON and returns the status code.
func defaultPostFunc(timeout time.Duration) PostFunc {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context, url, text string) (int, error) {
		payload, err := json.Marshal(map[string]string{"text": text})
		if err != nil {
			return 0, fmt.Errorf("failed to marshal digest payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return 0, fmt.Errorf("failed to create webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		return resp.StatusCode, nil
	}
}
