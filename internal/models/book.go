// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package models

import "time"

// LoanState describes whether a book is currently charged out or has been
// returned to the library.
type LoanState string

const (
	// LoanStateOnLoan marks a book the circulation system still lists as charged.
	LoanStateOnLoan LoanState = "on_loan"

	// LoanStateReturned marks a book whose discharge has been confirmed.
	// Returned rows are never deleted so note linkage survives the loan.
	LoanStateReturned LoanState = "returned"
)

// ReadStatus tracks the reader's own progress, independent of loan state.
type ReadStatus string

const (
	ReadStatusUnread    ReadStatus = "unread"
	ReadStatusReading   ReadStatus = "reading"
	ReadStatusFinished  ReadStatus = "finished"
	ReadStatusAbandoned ReadStatus = "abandoned"
)

// LoanCharge is one active loan as reported by the external circulation
// system. The external system is the source of truth; charges are mapped at
// the client boundary and never mutated locally.
type LoanCharge struct {
	// ChargeID is the external charge identifier and the stable correlation
	// key between remote charges and local book records.
	ChargeID string `json:"charge_id"`

	// VolumeID is the barcode of the physical volume.
	VolumeID string `json:"volume_id"`

	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`

	ChargeDate time.Time `json:"charge_date"`
	DueDate    time.Time `json:"due_date"`
	RenewCount int       `json:"renew_count"`

	// DischargeDate is set only on history records; nil for active charges.
	DischargeDate *time.Time `json:"discharge_date,omitempty"`
}

// BookRecord is the locally persisted view of a loan.
//
// A record is created the first time a charge is observed, updated whenever
// the remote due date or renew count changes, and transitioned to
// LoanStateReturned once a matching discharge record is confirmed. Records
// are historical after discharge and are never deleted.
type BookRecord struct {
	ID       int64  `json:"id"`
	ChargeID string `json:"charge_id"`
	VolumeID string `json:"volume_id"`

	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`

	ChargeDate time.Time `json:"charge_date"`
	DueDate    time.Time `json:"due_date"`
	RenewCount int       `json:"renew_count"`

	ReadStatus ReadStatus `json:"read_status"`
	LoanState  LoanState  `json:"loan_state"`

	// DischargeDate is nil while the book is on loan.
	DischargeDate *time.Time `json:"discharge_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NeedsUpdate reports whether the remote charge carries newer loan details
// than the local record. Only the fields the library can change while a book
// stays on loan participate in the comparison.
func (b *BookRecord) NeedsUpdate(c *LoanCharge) bool {
	return !b.DueDate.Equal(c.DueDate) || b.RenewCount != c.RenewCount
}
