// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/custodia/internal/models"
)

// CreatePerson registers a workforce member. Phone and bank account are
// encrypted at rest when field encryption is enabled.
func (h *Handlers) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req models.PersonCreateRequest
	if !decode(w, r, &req) {
		return
	}

	person := &models.Person{
		Code:        req.Code,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		BankAccount: req.BankAccount,
		Role:        req.Role,
		Site:        req.Site,
		Active:      true,
	}
	if err := h.db.CreatePerson(r.Context(), h.tenantID(r), person); err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, person)
}

// GetPerson returns one person by ID.
func (h *Handlers) GetPerson(w http.ResponseWriter, r *http.Request) {
	person, err := h.db.GetPerson(r.Context(), h.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, person)
}

// UpdatePerson applies a partial update; absent fields keep their
// current value.
func (h *Handlers) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	var req models.PersonUpdateRequest
	if !decode(w, r, &req) {
		return
	}

	person, err := h.db.UpdatePerson(r.Context(), h.tenantID(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, person)
}

// DeletePerson removes a person.
func (h *Handlers) DeletePerson(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeletePerson(r.Context(), h.tenantID(r), chi.URLParam(r, "id")); err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]bool{"deleted": true})
}

// ListPeople returns one page of people matching the query filters.
func (h *Handlers) ListPeople(w http.ResponseWriter, r *http.Request) {
	page, limit := h.pagination(r)
	filter := models.PersonFilter{
		Site:   r.URL.Query().Get("site"),
		Role:   models.PersonRole(r.URL.Query().Get("role")),
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}

	people, total, err := h.db.ListPeople(r.Context(), h.tenantID(r), filter)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondList(w, r, people, total, page, limit)
}
