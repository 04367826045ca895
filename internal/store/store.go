// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// Package store implements the local persistent record store on DuckDB.
//
// It owns all persistence and transactional boundaries: book records created
// and reclassified by the reconciler, note records owned by the user, and
// the digest send counters. Reconciliation writes go through WithTx so a
// mid-run failure leaves either the prior snapshot or the fully-updated one.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
)

// Store is the DuckDB-backed record store.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx so the row helpers work
// inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (creating if necessary) the DuckDB database at path and
// bootstraps the schema. Use ":memory:" for tests.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	// The jobs are single-invocation; a single connection avoids DuckDB
	// writer contention entirely.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}

	if err := s.bootstrap(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info().Str("path", path).Msg("Record store opened")
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is still usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// bootstrap creates the schema if it does not exist yet. Schema migration
// tooling lives outside this service; this is only the minimal bootstrap
// that makes a fresh database usable.
func (s *Store) bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS books_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS notes_id_seq`,
		`CREATE TABLE IF NOT EXISTS books (
			id             BIGINT PRIMARY KEY DEFAULT nextval('books_id_seq'),
			charge_id      VARCHAR NOT NULL UNIQUE,
			volume_id      VARCHAR NOT NULL DEFAULT '',
			title          VARCHAR NOT NULL DEFAULT '',
			author         VARCHAR NOT NULL DEFAULT '',
			isbn           VARCHAR NOT NULL DEFAULT '',
			charge_date    TIMESTAMP NOT NULL,
			due_date       TIMESTAMP NOT NULL,
			renew_count    INTEGER NOT NULL DEFAULT 0,
			read_status    VARCHAR NOT NULL DEFAULT 'unread',
			loan_state     VARCHAR NOT NULL DEFAULT 'on_loan',
			discharge_date TIMESTAMP,
			created_at     TIMESTAMP NOT NULL DEFAULT current_timestamp,
			updated_at     TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id          BIGINT PRIMARY KEY DEFAULT nextval('notes_id_seq'),
			book_id     BIGINT NOT NULL REFERENCES books (id),
			page_number INTEGER NOT NULL DEFAULT 0,
			content     VARCHAR NOT NULL,
			send_count  INTEGER NOT NULL DEFAULT 0,
			created_at  TIMESTAMP NOT NULL DEFAULT current_timestamp,
			updated_at  TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}

// Tx exposes the mutating book operations inside one transaction.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a single transaction, committing on nil error and
// rolling back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
