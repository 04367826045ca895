// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package digest

import (
	"testing"

	"github.com/jdwhite/circulate/internal/models"
)

func TestSelectNoteCandidateEmpty(t *testing.T) {
	if got := SelectNoteCandidate(nil, nil); got != nil {
		t.Fatalf("expected nil for empty candidates, got %+v", got)
	}
	if got := SelectNoteCandidate([]models.NoteCandidate{}, nil); got != nil {
		t.Fatalf("expected nil for zero-length candidates, got %+v", got)
	}
}

func TestSelectNoteCandidateLeastSentTier(t *testing.T) {
	candidates := []models.NoteCandidate{
		{NoteID: 1, SendCount: 3},
		{NoteID: 2, SendCount: 0},
		{NoteID: 3, SendCount: 1},
		{NoteID: 4, SendCount: 0},
		{NoteID: 5, SendCount: 7},
	}

	// Sweep the random space; every pick must land in the min tier.
	for _, r := range []float64{0, 0.1, 0.25, 0.49, 0.5, 0.75, 0.99} {
		got := SelectNoteCandidate(candidates, func() float64 { return r })
		if got == nil {
			t.Fatalf("rand=%v: got nil", r)
		}
		if got.SendCount != 0 {
			t.Errorf("rand=%v: picked note %d with send_count %d, want send_count 0", r, got.NoteID, got.SendCount)
		}
	}
}

func TestSelectNoteCandidateDeterministic(t *testing.T) {
	candidates := []models.NoteCandidate{
		{NoteID: 10, SendCount: 2},
		{NoteID: 11, SendCount: 2},
		{NoteID: 12, SendCount: 2},
	}

	tests := []struct {
		name   string
		r      float64
		wantID int64
	}{
		{"low picks first", 0.0, 10},
		{"middle picks second", 0.4, 11},
		{"high picks third", 0.9, 12},
		{"exactly one clamps to last", 1.0, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectNoteCandidate(candidates, func() float64 { return tt.r })
			if got.NoteID != tt.wantID {
				t.Errorf("rand=%v: got note %d, want %d", tt.r, got.NoteID, tt.wantID)
			}
		})
	}
}

func TestSelectNoteCandidateSingle(t *testing.T) {
	candidates := []models.NoteCandidate{{NoteID: 42, SendCount: 99}}
	got := SelectNoteCandidate(candidates, func() float64 { return 0.5 })
	if got == nil || got.NoteID != 42 {
		t.Fatalf("expected the only candidate, got %+v", got)
	}
}

func TestFormatNoteMessage(t *testing.T) {
	tests := []struct {
		name string
		c    models.NoteCandidate
		want string
	}{
		{
			name: "typical note",
			c: models.NoteCandidate{
				BookTitle:  "Clean Code",
				BookAuthor: "Robert C. Martin",
				PageNumber: 42,
				Content:    "Meaningful names matter.",
			},
			want: "Clean Code - Robert C. Martin\np.42\nMeaningful names matter.",
		},
		{
			name: "page zero",
			c: models.NoteCandidate{
				BookTitle:  "Untitled",
				BookAuthor: "Anonymous",
				PageNumber: 0,
				Content:    "preface thought",
			},
			want: "Untitled - Anonymous\np.0\npreface thought",
		},
		{
			name: "multiline content preserved",
			c: models.NoteCandidate{
				BookTitle:  "Go in Practice",
				BookAuthor: "M. Butcher",
				PageNumber: 7,
				Content:    "line one\nline two",
			},
			want: "Go in Practice - M. Butcher\np.7\nline one\nline two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNoteMessage(&tt.c); got != tt.want {
				t.Errorf("FormatNoteMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
