// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// Package reconcile aligns the local book records with the circulation
// system's charge and discharge state.
//
// One run fetches the full current charge list, diffs it against the local
// snapshot, and classifies every pairing: new remote charges become book
// records (added), changed due dates or renew counts update existing rows
// (updated), identical rows are counted (unchanged), and local loans whose
// charge has vanished with a confirmed discharge record are closed
// (returned). All writes happen in one transaction; re-running against
// unchanged remote state is a no-op apart from the unchanged tally.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jdwhite/circulate/internal/circulation"
	"github.com/jdwhite/circulate/internal/metrics"
	"github.com/jdwhite/circulate/internal/models"
	"github.com/jdwhite/circulate/internal/store"
)

// Reconciler runs the charge reconciliation job.
type Reconciler struct {
	source   circulation.ChargeSource
	sessions *circulation.SessionManager
	store    *store.Store
	logger   zerolog.Logger
}

// New creates a reconciler. sessions may be nil when the source manages its
// own authentication lifecycle (tests, fakes).
func New(source circulation.ChargeSource, sessions *circulation.SessionManager, st *store.Store, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		source:   source,
		sessions: sessions,
		store:    st,
		logger:   logger.With().Str("component", "reconciler").Logger(),
	}
}

// Run executes one reconciliation pass and returns its summary.
//
// Failure semantics: a terminal failure fetching the charge list aborts the
// run with no writes at all. A failure fetching discharge history degrades:
// affected local rows keep their on_loan state and are retried next run.
func (r *Reconciler) Run(ctx context.Context) (models.SyncSummary, error) {
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Logger()
	start := time.Now()

	// Re-authenticate every run rather than trusting a cached credential
	// across scheduling gaps.
	if r.sessions != nil {
		r.sessions.Reset()
	}

	charges, err := r.source.ListCharges(ctx)
	if err != nil {
		metrics.SyncErrors.WithLabelValues(classifyRunError(err)).Inc()
		return models.SyncSummary{}, fmt.Errorf("charge list fetch failed: %w", err)
	}

	remote := make(map[string]*models.LoanCharge, len(charges))
	for i := range charges {
		remote[charges[i].ChargeID] = &charges[i]
	}

	local, err := r.store.GetActiveBooks(ctx)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("store").Inc()
		return models.SyncSummary{}, fmt.Errorf("failed to load local snapshot: %w", err)
	}

	discharged, partial := r.fetchDischarges(ctx, logger, local, remote)

	var summary models.SyncSummary
	summary.TotalCharges = len(charges)

	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		matched := make(map[string]bool, len(local))

		// Pass 1: classify every local on-loan row.
		for i := range local {
			book := &local[i]
			charge, ok := remote[book.ChargeID]
			if !ok {
				discharge, confirmed := discharged[book.ChargeID]
				if !confirmed {
					// No confirmed discharge record: leave the loan open
					// rather than falsely closing it. Retried next run.
					continue
				}
				if err := tx.MarkDischarged(ctx, book.ChargeID, *discharge.DischargeDate); err != nil {
					return err
				}
				summary.Returned++
				continue
			}

			matched[book.ChargeID] = true
			if book.NeedsUpdate(charge) {
				if err := tx.UpsertBook(ctx, chargeToBook(charge)); err != nil {
					return err
				}
				summary.Updated++
			} else {
				summary.Unchanged++
			}
		}

		// Pass 2: remote charges with no matching active row.
		for i := range charges {
			charge := &charges[i]
			if matched[charge.ChargeID] {
				continue
			}

			existing, err := tx.GetBookByChargeID(ctx, charge.ChargeID)
			switch {
			case err == nil && existing.LoanState == models.LoanStateReturned:
				// A charge id reappearing after discharge means the earlier
				// close was wrong; refresh the loan fields and count it as
				// an update so the active-charge tally stays consistent.
				logger.Warn().Str("charge_id", charge.ChargeID).Msg("Discharged charge reappeared in active list")
				if err := tx.UpsertBook(ctx, chargeToBook(charge)); err != nil {
					return err
				}
				summary.Updated++
			case err == nil:
				// Active row missed by pass 1; keep the tally consistent.
				summary.Unchanged++
			case err == store.ErrNotFound:
				if err := tx.UpsertBook(ctx, chargeToBook(charge)); err != nil {
					return err
				}
				summary.Added++
			default:
				return err
			}
		}

		return nil
	})
	if err != nil {
		metrics.SyncErrors.WithLabelValues("store").Inc()
		return models.SyncSummary{}, fmt.Errorf("reconciliation transaction failed: %w", err)
	}

	metrics.SyncDuration.Observe(time.Since(start).Seconds())
	metrics.SyncRecords.WithLabelValues("added").Add(float64(summary.Added))
	metrics.SyncRecords.WithLabelValues("updated").Add(float64(summary.Updated))
	metrics.SyncRecords.WithLabelValues("unchanged").Add(float64(summary.Unchanged))
	metrics.SyncRecords.WithLabelValues("returned").Add(float64(summary.Returned))
	metrics.SyncLastSuccess.SetToCurrentTime()

	logger.Info().
		Int("total_charges", summary.TotalCharges).
		Int("added", summary.Added).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("returned", summary.Returned).
		Bool("partial", partial).
		Dur("elapsed", time.Since(start)).
		Msg("Reconciliation run complete")

	return summary, nil
}

// fetchDischarges loads the discharge history when some local loans are
// missing from the active charge list. A fetch failure is recoverable:
// the affected rows simply stay on loan this run.
func (r *Reconciler) fetchDischarges(ctx context.Context, logger zerolog.Logger, local []models.BookRecord, remote map[string]*models.LoanCharge) (map[string]*models.LoanCharge, bool) {
	missing := 0
	for i := range local {
		if _, ok := remote[local[i].ChargeID]; !ok {
			missing++
		}
	}
	if missing == 0 {
		return nil, false
	}

	history, err := r.source.ListDischarges(ctx)
	if err != nil {
		metrics.SyncErrors.WithLabelValues("partial").Inc()
		logger.Warn().Err(err).Int("open_loans", missing).
			Msg("Discharge history unavailable; skipping discharge reclassification this run")
		return nil, true
	}

	discharged := make(map[string]*models.LoanCharge, len(history))
	for i := range history {
		if history[i].DischargeDate != nil {
			discharged[history[i].ChargeID] = &history[i]
		}
	}
	return discharged, false
}

// chargeToBook builds the persisted view of a remote charge.
func chargeToBook(charge *models.LoanCharge) *models.BookRecord {
	return &models.BookRecord{
		ChargeID:   charge.ChargeID,
		VolumeID:   charge.VolumeID,
		Title:      charge.Title,
		Author:     charge.Author,
		ISBN:       charge.ISBN,
		ChargeDate: charge.ChargeDate,
		DueDate:    charge.DueDate,
		RenewCount: charge.RenewCount,
		ReadStatus: models.ReadStatusUnread,
		LoanState:  models.LoanStateOnLoan,
	}
}

func classifyRunError(err error) string {
	if circulation.IsAuthError(err) {
		return "auth"
	}
	return "fetch"
}
