// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// Package circulation implements the client side of the external library
// circulation system: a resilient HTTP fetch layer, session management, the
// typed API client, and a circuit breaker wrapper.
//
// Wire shapes are mapped into internal models at this boundary; nothing
// above this package inspects raw response envelopes.
package circulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jdwhite/circulate/internal/metrics"
)

// maxBodySize bounds how much of a response body is read into memory.
const maxBodySize = 4 << 20 // 4MB

// RequestOptions tunes one resilient request.
type RequestOptions struct {
	// Timeout is the hard deadline per attempt.
	Timeout time.Duration

	// Retries is the number of additional attempts after the first.
	Retries int

	// RetryBackoff is the base of the linear backoff: the sleep before
	// attempt n+1 is RetryBackoff * n.
	RetryBackoff time.Duration
}

// Response is a fully-read HTTP response. The body is buffered so retries
// and envelope decoding never deal with half-consumed streams.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs HTTP calls with per-attempt timeouts, bounded retries,
// and linear backoff. Timeouts, connection errors, and 5xx statuses are
// retryable; any response below 500 is handed back to the caller as-is.
//
// Exhausting retries yields a *FetchError; the caller always receives a
// typed result, never a panic across the component boundary.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewFetcher creates a fetcher with a politeness throttle of ratePerSecond
// outgoing calls. A zero or negative rate disables throttling.
func NewFetcher(ratePerSecond float64, logger zerolog.Logger) *Fetcher {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Fetcher{
		// Per-attempt deadlines come from the request context, not a
		// client-wide timeout.
		client:  &http.Client{},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("component", "fetcher").Logger(),
	}
}

// Do performs the request, retrying retryable failures up to opts.Retries
// additional times. The returned Response may carry any status below 500;
// classifying 4xx (for example 401 handling) is the caller's concern.
func (f *Fetcher) Do(ctx context.Context, method, url string, header http.Header, body []byte, opts RequestOptions) (*Response, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	var (
		lastKind   FailureKind
		lastStatus int
		lastErr    error
	)

	attempts := opts.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := f.attempt(ctx, method, url, header, body, opts.Timeout)
		if err == nil {
			if resp.StatusCode < 500 {
				return resp, nil
			}
			lastKind = FailureStatus
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
		} else {
			// A canceled parent context is not a fetch failure.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastKind, lastErr = classifyAttemptError(err)
			lastStatus = 0
		}

		if attempt == attempts {
			break
		}

		delay := opts.RetryBackoff * time.Duration(attempt)
		f.logger.Warn().
			Str("method", method).
			Str("url", url).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("Retrying request")
		metrics.FetchRetries.Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	metrics.FetchFailures.WithLabelValues(string(lastKind)).Inc()
	return nil, &FetchError{
		Kind:     lastKind,
		Status:   lastStatus,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// attempt performs a single HTTP round trip under its own deadline and
// buffers the body.
func (f *Fetcher) attempt(ctx context.Context, method, url string, header http.Header, body []byte, timeout time.Duration) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Cookies:    resp.Cookies(),
	}, nil
}

// classifyAttemptError splits transport errors into timeout vs network.
func classifyAttemptError(err error) (FailureKind, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout, err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout, err
	}
	return FailureNetwork, err
}
