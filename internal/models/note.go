// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package models

import "time"

// NoteRecord is a reading note attached to a book. Notes are owned entirely
// by the user; sync never creates or edits them. The digest job is the only
// writer of SendCount.
type NoteRecord struct {
	ID         int64  `json:"id"`
	BookID     int64  `json:"book_id"`
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`

	// SendCount is how many times this note has been broadcast in a digest.
	SendCount int `json:"send_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteCandidate pairs a note with its owning book for digest selection and
// formatting. Candidates are transient; only the winner's SendCount is
// persisted, and only after a confirmed delivery.
type NoteCandidate struct {
	NoteID     int64  `json:"note_id"`
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author"`
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
	SendCount  int    `json:"send_count"`
}
