// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package store

import (
	"context"
	"fmt"

	"github.com/jdwhite/circulate/internal/models"
)

// CreateNote inserts a user note and returns it with its assigned id.
func (s *Store) CreateNote(ctx context.Context, note *models.NoteRecord) (*models.NoteRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (book_id, page_number, content)
		VALUES (?, ?, ?)
		RETURNING id, book_id, page_number, content, send_count, created_at, updated_at`,
		note.BookID, note.PageNumber, note.Content)

	created := &models.NoteRecord{}
	if err := row.Scan(&created.ID, &created.BookID, &created.PageNumber,
		&created.Content, &created.SendCount, &created.CreatedAt, &created.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return created, nil
}

// UpdateNote rewrites a note's page number and content.
func (s *Store) UpdateNote(ctx context.Context, noteID int64, pageNumber int, content string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET page_number = ?, content = ?, updated_at = current_timestamp
		WHERE id = ?`,
		pageNumber, content, noteID)
	if err != nil {
		return fmt.Errorf("failed to update note %d: %w", noteID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteNote removes a note.
func (s *Store) DeleteNote(ctx context.Context, noteID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, noteID)
	if err != nil {
		return fmt.Errorf("failed to delete note %d: %w", noteID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListNotesForBook returns the notes attached to one book.
func (s *Store) ListNotesForBook(ctx context.Context, bookID int64) ([]models.NoteRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book_id, page_number, content, send_count, created_at, updated_at
		FROM notes WHERE book_id = ? ORDER BY page_number, id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("note query failed: %w", err)
	}
	defer rows.Close()

	var notes []models.NoteRecord
	for rows.Next() {
		var note models.NoteRecord
		if err := rows.Scan(&note.ID, &note.BookID, &note.PageNumber,
			&note.Content, &note.SendCount, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// GetNoteCandidates joins every note with its owning book for digest
// selection.
func (s *Store) GetNoteCandidates(ctx context.Context) ([]models.NoteCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, b.title, b.author, n.page_number, n.content, n.send_count
		FROM notes n
		JOIN books b ON b.id = n.book_id
		ORDER BY n.id`)
	if err != nil {
		return nil, fmt.Errorf("candidate query failed: %w", err)
	}
	defer rows.Close()

	var candidates []models.NoteCandidate
	for rows.Next() {
		var c models.NoteCandidate
		if err := rows.Scan(&c.NoteID, &c.BookTitle, &c.BookAuthor,
			&c.PageNumber, &c.Content, &c.SendCount); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// IncrementSendCount records one confirmed digest delivery for a note.
func (s *Store) IncrementSendCount(ctx context.Context, noteID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET send_count = send_count + 1, updated_at = current_timestamp
		WHERE id = ?`, noteID)
	if err != nil {
		return fmt.Errorf("failed to increment send count for note %d: %w", noteID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
