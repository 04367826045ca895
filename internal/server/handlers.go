// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jdwhite/circulate/internal/models"
	"github.com/jdwhite/circulate/internal/scheduler"
	"github.com/jdwhite/circulate/internal/store"
)

const maxRequestBody = 64 << 10

// Handlers holds the endpoint implementations and their dependencies.
type Handlers struct {
	store  *store.Store
	sync   scheduler.SyncRunner
	digest scheduler.DigestRunner
	logger zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(st *store.Store, syncJob scheduler.SyncRunner, digestJob scheduler.DigestRunner, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:  st,
		sync:   syncJob,
		digest: digestJob,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// TriggerSync runs one reconciliation pass on demand.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sync.Run(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual sync failed")
		writeError(w, http.StatusBadGateway, ErrCodeServiceUnavailable, "synchronization failed: "+err.Error())
		return
	}

	writeSuccess(w, models.SyncResult{
		Message: fmt.Sprintf("synchronized %d charges: %d added, %d updated, %d unchanged, %d returned",
			summary.TotalCharges, summary.Added, summary.Updated, summary.Unchanged, summary.Returned),
		Summary: summary,
	})
}

// TriggerDigest runs one digest pass on demand.
func (h *Handlers) TriggerDigest(w http.ResponseWriter, r *http.Request) {
	sent := h.digest.BroadcastDailyNote(r.Context())
	writeSuccess(w, map[string]bool{"sent": sent})
}

// Health reports liveness plus database reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "database unreachable")
		return
	}
	writeSuccess(w, map[string]string{"status": "ok"})
}

// ListBooks returns every tracked book, active loans first.
func (h *Handlers) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.store.ListBooks(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list books")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list books")
		return
	}
	writeSuccess(w, books)
}

type readStatusRequest struct {
	ReadStatus models.ReadStatus `json:"read_status"`
}

// SetReadStatus updates the reader-owned progress field of a book.
func (h *Handlers) SetReadStatus(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req readStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.ReadStatus {
	case models.ReadStatusUnread, models.ReadStatusReading, models.ReadStatusFinished, models.ReadStatusAbandoned:
	default:
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid read_status")
		return
	}

	if err := h.store.SetReadStatus(r.Context(), bookID, req.ReadStatus); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "book not found")
			return
		}
		h.logger.Error().Err(err).Int64("book_id", bookID).Msg("Failed to set read status")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to update book")
		return
	}
	writeSuccess(w, map[string]string{"status": "updated"})
}

// ListNotes returns the notes for one book.
func (h *Handlers) ListNotes(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	notes, err := h.store.ListNotesForBook(r.Context(), bookID)
	if err != nil {
		h.logger.Error().Err(err).Int64("book_id", bookID).Msg("Failed to list notes")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list notes")
		return
	}
	writeSuccess(w, notes)
}

type noteRequest struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

func (n *noteRequest) validate() string {
	if n.PageNumber < 0 {
		return "page_number must not be negative"
	}
	if n.Content == "" {
		return "content is required"
	}
	return ""
}

// CreateNote attaches a new note to a book.
func (h *Handlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	bookID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, msg)
		return
	}

	created, err := h.store.CreateNote(r.Context(), &models.NoteRecord{
		BookID:     bookID,
		PageNumber: req.PageNumber,
		Content:    req.Content,
	})
	if err != nil {
		h.logger.Error().Err(err).Int64("book_id", bookID).Msg("Failed to create note")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to create note")
		return
	}
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: created})
}

// UpdateNote rewrites a note's page number and content.
func (h *Handlers) UpdateNote(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, msg)
		return
	}

	if err := h.store.UpdateNote(r.Context(), noteID, req.PageNumber, req.Content); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "note not found")
			return
		}
		h.logger.Error().Err(err).Int64("note_id", noteID).Msg("Failed to update note")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to update note")
		return
	}
	writeSuccess(w, map[string]string{"status": "updated"})
}

// DeleteNote removes a note.
func (h *Handlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteNote(r.Context(), noteID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "note not found")
			return
		}
		h.logger.Error().Err(err).Int64("note_id", noteID).Msg("Failed to delete note")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to delete note")
		return
	}
	writeSuccess(w, map[string]string{"status": "deleted"})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return false
	}
	return true
}
