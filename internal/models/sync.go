// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package models

// SyncSummary counts the classification of every record observed during one
// reconciliation run.
//
// Invariant: Added + Updated + Unchanged == TotalCharges over the currently
// active remote charges. Returned counts local rows newly marked discharged
// and is disjoint from the active-charge tally.
type SyncSummary struct {
	TotalCharges int `json:"total_charges"`
	Added        int `json:"added"`
	Updated      int `json:"updated"`
	Unchanged    int `json:"unchanged"`
	Returned     int `json:"returned"`
}

// ActiveTotal returns the number of active remote charges classified this run.
func (s SyncSummary) ActiveTotal() int {
	return s.Added + s.Updated + s.Unchanged
}

// SyncResult is the summary surface exposed to callers and the CLI.
type SyncResult struct {
	Message string      `json:"message"`
	Summary SyncSummary `json:"summary"`
}
