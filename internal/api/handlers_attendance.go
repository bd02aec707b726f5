// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/custodia/internal/models"
)

// CheckIn opens an attendance record for a person. At most one open
// record per person per day.
func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if !decode(w, r, &req) {
		return
	}

	record, err := h.db.CheckIn(r.Context(), h.tenantID(r), &req, time.Now())
	if err != nil {
		mapError(w, r, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastCheckIn(record)
	}
	respond(w, r, http.StatusCreated, record)
}

// CheckOut closes the person's open attendance record and computes
// worked minutes.
func (h *Handlers) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req models.CheckOutRequest
	if !decode(w, r, &req) {
		return
	}

	record, err := h.db.CheckOut(r.Context(), h.tenantID(r), req.PersonID, time.Now())
	if err != nil {
		mapError(w, r, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastCheckOut(record)
	}
	respond(w, r, http.StatusOK, record)
}

// ListAttendance returns one page of attendance records.
func (h *Handlers) ListAttendance(w http.ResponseWriter, r *http.Request) {
	page, limit := h.pagination(r)
	filter := models.AttendanceFilter{
		PersonID: r.URL.Query().Get("person_id"),
		Site:     r.URL.Query().Get("site"),
		Day:      r.URL.Query().Get("day"),
		From:     r.URL.Query().Get("from"),
		To:       r.URL.Query().Get("to"),
		Page:     page,
		Limit:    limit,
	}

	records, total, err := h.db.ListAttendance(r.Context(), h.tenantID(r), filter)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondList(w, r, records, total, page, limit)
}
