// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/custodia/internal/models"
)

// CreateJournalEntry appends a shift journal entry.
func (h *Handlers) CreateJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req models.JournalCreateRequest
	if !decode(w, r, &req) {
		return
	}

	session := h.session(r)
	entry, err := h.db.CreateJournalEntry(r.Context(), session.TenantID, session.UserID, &req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, entry)
}

// ReviseJournalEntry creates a new revision of an existing entry.
// Journal entries are append-only; the original stays readable.
func (h *Handlers) ReviseJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req models.JournalReviseRequest
	if !decode(w, r, &req) {
		return
	}

	session := h.session(r)
	entry, err := h.db.ReviseJournalEntry(r.Context(), session.TenantID, chi.URLParam(r, "id"), session.UserID, &req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, entry)
}

// GetJournalEntry returns one entry by ID.
func (h *Handlers) GetJournalEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.db.GetJournalEntry(r.Context(), h.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, entry)
}

// ListJournalEntries returns one page of entries matching the query
// filters.
func (h *Handlers) ListJournalEntries(w http.ResponseWriter, r *http.Request) {
	page, limit := h.pagination(r)
	filter := models.JournalFilter{
		Site:     r.URL.Query().Get("site"),
		AuthorID: r.URL.Query().Get("author_id"),
		Tag:      r.URL.Query().Get("tag"),
		From:     r.URL.Query().Get("from"),
		To:       r.URL.Query().Get("to"),
		Page:     page,
		Limit:    limit,
	}

	entries, total, err := h.db.ListJournalEntries(r.Context(), h.tenantID(r), filter)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondList(w, r, entries, total, page, limit)
}
