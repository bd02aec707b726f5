// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/models"
	"github.com/tomtom215/custodia/internal/tasks"
)

// CreateReport queues a report job. The CSV materializes asynchronously
// on the reports queue; poll the job or wait for the report_ready
// websocket event.
func (h *Handlers) CreateReport(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		respondError(w, r, http.StatusServiceUnavailable, models.ErrCodeInternal, "Report processing is unavailable", nil)
		return
	}

	var req models.ReportRequest
	if !decode(w, r, &req) {
		return
	}

	params, err := json.Marshal(map[string]interface{}{
		"from": req.From,
		"to":   req.To,
		"args": req.Args,
	})
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	session := h.session(r)
	report := &models.Report{
		TenantID:    session.TenantID,
		Type:        req.Type,
		RequestedBy: session.UserID,
		ParamsJSON:  string(params),
	}
	if err := h.db.CreateReport(r.Context(), report); err != nil {
		mapError(w, r, err)
		return
	}

	correlationID := logging.CorrelationIDFromContext(r.Context())
	task, err := tasks.NewTask(tasks.TaskReportGenerate, session.TenantID, correlationID, &models.ReportTask{
		ReportID:      report.ID,
		TenantID:      session.TenantID,
		CorrelationID: correlationID,
	})
	if err == nil {
		err = h.publisher.Enqueue(r.Context(), tasks.QueueReports, task)
	}
	if err != nil {
		// The job row stays PENDING; the client can retry or an operator
		// can requeue once the broker recovers.
		logging.Ctx(r.Context()).Error().Err(err).
			Str("report_id", report.ID).
			Msg("failed to enqueue report job")
	}

	respond(w, r, http.StatusAccepted, report)
}

// GetReport returns one report job.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.db.GetReport(r.Context(), h.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, report)
}

// ListReports returns one page of report jobs, newest first.
func (h *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	page, limit := h.pagination(r)
	reports, total, err := h.db.ListReports(r.Context(), h.tenantID(r), page, limit)
	if err != nil {
		mapError(w, r, err)
		return
	}
	respondList(w, r, reports, total, page, limit)
}

// DownloadReport streams the finished CSV.
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.db.GetReport(r.Context(), h.tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	if report.Status != models.ReportDone || report.FilePath == "" {
		respondError(w, r, http.StatusConflict, models.ErrCodeConflict, "Report is not finished", map[string]interface{}{
			"status": report.Status,
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(report.FilePath)+`"`)
	http.ServeFile(w, r, report.FilePath)
}
