// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// Package digest selects one reading note per day and broadcasts it to a
// messaging webhook.
//
// Selection is least-sent-first with a uniform random tie-break inside the
// minimum tier: every note is eventually broadcast without tracking
// per-note schedules, and the random source is injectable so tests are
// deterministic.
package digest

import (
	"fmt"
	"math/rand/v2"

	"github.com/jdwhite/circulate/internal/models"
)

// RandFunc returns a pseudo-random value in [0, 1).
type RandFunc func() float64

// SelectNoteCandidate picks the digest winner: the candidates with the
// lowest send count form the tier, and one of them is chosen uniformly at
// random. Returns nil for an empty input, which means "nothing to
// broadcast", not an error.
func SelectNoteCandidate(candidates []models.NoteCandidate, random RandFunc) *models.NoteCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if random == nil {
		random = rand.Float64
	}

	minSent := candidates[0].SendCount
	for i := 1; i < len(candidates); i++ {
		if candidates[i].SendCount < minSent {
			minSent = candidates[i].SendCount
		}
	}

	tier := make([]*models.NoteCandidate, 0, len(candidates))
	for i := range candidates {
		if candidates[i].SendCount == minSent {
			tier = append(tier, &candidates[i])
		}
	}

	idx := int(random() * float64(len(tier)))
	if idx >= len(tier) {
		// random() is half-open, but guard against a callers' 1.0.
		idx = len(tier) - 1
	}
	return tier[idx]
}

// FormatNoteMessage renders the fixed three-line digest layout:
// title - author, page, content. No truncation or escaping; the delivery
// channel owns any encoding it needs.
func FormatNoteMessage(c *models.NoteCandidate) string {
	return fmt.Sprintf("%s - %s\np.%d\n%s", c.BookTitle, c.BookAuthor, c.PageNumber, c.Content)
}
