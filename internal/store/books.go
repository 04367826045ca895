// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jdwhite/circulate/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

const bookColumns = `id, charge_id, volume_id, title, author, isbn,
	charge_date, due_date, renew_count, read_status, loan_state,
	discharge_date, created_at, updated_at`

// GetActiveBooks returns every book still marked on loan.
func (s *Store) GetActiveBooks(ctx context.Context) ([]models.BookRecord, error) {
	return queryBooks(ctx, s.db,
		`SELECT `+bookColumns+` FROM books WHERE loan_state = ? ORDER BY due_date, id`,
		string(models.LoanStateOnLoan))
}

// GetBookByChargeID returns the book correlated with an external charge id.
func (s *Store) GetBookByChargeID(ctx context.Context, chargeID string) (*models.BookRecord, error) {
	return getBookByChargeID(ctx, s.db, chargeID)
}

func getBookByChargeID(ctx context.Context, q querier, chargeID string) (*models.BookRecord, error) {
	books, err := queryBooks(ctx, q,
		`SELECT `+bookColumns+` FROM books WHERE charge_id = ?`, chargeID)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, ErrNotFound
	}
	return &books[0], nil
}

// ListBooks returns all books, active loans first.
func (s *Store) ListBooks(ctx context.Context) ([]models.BookRecord, error) {
	return queryBooks(ctx, s.db,
		`SELECT `+bookColumns+` FROM books ORDER BY loan_state, due_date, id`)
}

// UpsertBook inserts a book keyed by charge_id, updating the loan fields on
// conflict. The reader-owned read_status is left untouched on update, which
// is what makes repeated reconciliation runs idempotent. Loan state follows
// the incoming record: upserting an active charge over a returned row
// reopens the loan and clears its discharge date.
func (t *Tx) UpsertBook(ctx context.Context, book *models.BookRecord) error {
	return upsertBook(ctx, t.tx, book)
}

// MarkDischarged transitions a book to returned with the given discharge
// date. Already-returned rows are not touched again.
func (t *Tx) MarkDischarged(ctx context.Context, chargeID string, date time.Time) error {
	return markDischarged(ctx, t.tx, chargeID, date)
}

// GetBookByChargeID reads through the transaction. The store runs on a
// single connection, so reads inside WithTx must not go through the pool:
// the open transaction holds the only connection and a pool read would
// block until the context expires. Reading through the transaction also
// makes earlier writes in the same run visible.
func (t *Tx) GetBookByChargeID(ctx context.Context, chargeID string) (*models.BookRecord, error) {
	return getBookByChargeID(ctx, t.tx, chargeID)
}

func upsertBook(ctx context.Context, q querier, book *models.BookRecord) error {
	readStatus := book.ReadStatus
	if readStatus == "" {
		readStatus = models.ReadStatusUnread
	}
	loanState := book.LoanState
	if loanState == "" {
		loanState = models.LoanStateOnLoan
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO books (charge_id, volume_id, title, author, isbn,
			charge_date, due_date, renew_count, read_status, loan_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (charge_id) DO UPDATE SET
			due_date       = excluded.due_date,
			renew_count    = excluded.renew_count,
			loan_state     = excluded.loan_state,
			discharge_date = NULL,
			updated_at     = now()`,
		book.ChargeID, book.VolumeID, book.Title, book.Author, book.ISBN,
		book.ChargeDate, book.DueDate, book.RenewCount,
		string(readStatus), string(loanState))
	if err != nil {
		return fmt.Errorf("failed to upsert book %s: %w", book.ChargeID, err)
	}
	return nil
}

func markDischarged(ctx context.Context, q querier, chargeID string, date time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE books
		SET loan_state = ?, discharge_date = ?, updated_at = current_timestamp
		WHERE charge_id = ? AND loan_state = ?`,
		string(models.LoanStateReturned), date, chargeID, string(models.LoanStateOnLoan))
	if err != nil {
		return fmt.Errorf("failed to mark %s discharged: %w", chargeID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReadStatus updates the reader-owned progress field.
func (s *Store) SetReadStatus(ctx context.Context, bookID int64, status models.ReadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET read_status = ?, updated_at = current_timestamp WHERE id = ?`,
		string(status), bookID)
	if err != nil {
		return fmt.Errorf("failed to set read status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func queryBooks(ctx context.Context, q querier, query string, args ...any) ([]models.BookRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("book query failed: %w", err)
	}
	defer rows.Close()

	var books []models.BookRecord
	for rows.Next() {
		var (
			book          models.BookRecord
			readStatus    string
			loanState     string
			dischargeDate sql.NullTime
		)
		if err := rows.Scan(
			&book.ID, &book.ChargeID, &book.VolumeID, &book.Title,
			&book.Author, &book.ISBN, &book.ChargeDate, &book.DueDate,
			&book.RenewCount, &readStatus, &loanState, &dischargeDate,
			&book.CreatedAt, &book.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		book.ReadStatus = models.ReadStatus(readStatus)
		book.LoanState = models.LoanState(loanState)
		if dischargeDate.Valid {
			d := dischargeDate.Time
			book.DischargeDate = &d
		}
		books = append(books, book)
	}
	return books, rows.Err()
}
