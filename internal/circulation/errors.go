// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package circulation

import (
	"errors"
	"fmt"
)

// FailureKind classifies a terminal fetch failure.
type FailureKind string

const (
	// FailureTimeout means the per-attempt deadline was exceeded.
	FailureTimeout FailureKind = "timeout"

	// FailureNetwork means a connection-level error (refused, reset, DNS).
	FailureNetwork FailureKind = "network"

	// FailureStatus means the server kept answering with a 5xx status.
	FailureStatus FailureKind = "status"
)

// FetchError is the terminal result of a fetch whose retries are exhausted.
// It carries the classification and the last observed status or error.
type FetchError struct {
	Kind     FailureKind
	Status   int // last HTTP status, 0 when the failure was below HTTP
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch failed after %d attempts: status %d", e.Attempts, e.Status)
	}
	return fmt.Sprintf("fetch failed after %d attempts (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AuthError means authentication failed terminally: either login itself was
// rejected, or a call kept answering 401/403 after the single re-login
// attempt.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("circulation auth failed: %v", e.Err)
	}
	return fmt.Sprintf("circulation auth failed: status %d", e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// PartialDataError marks a run where the charge list succeeded but the
// discharge history could not be fetched. The reconciler recovers by
// skipping discharge reclassification for the run.
type PartialDataError struct {
	Err error
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("discharge history unavailable: %v", e.Err)
}

func (e *PartialDataError) Unwrap() error { return e.Err }

// APIError is a circulation response whose envelope reported failure.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("circulation API error %d: %s", e.Code, e.Message)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsPartialData reports whether err is (or wraps) a PartialDataError.
func IsPartialData(err error) bool {
	var pe *PartialDataError
	return errors.As(err, &pe)
}
